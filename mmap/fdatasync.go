package mmap

import "os"

// Fdatasync flushes the data written to f, and to its mapping if one is
// given, to stable storage. It skips the metadata a full fsync would flush
// where the platform allows it.
//
// An error means the state of the file on disk is unknown: the kernel may
// have already dropped the dirty pages. Callers must treat the file as lost
// rather than retry.
func Fdatasync(f *os.File, mapping []byte) error {
	return fdatasync(f, mapping)
}
