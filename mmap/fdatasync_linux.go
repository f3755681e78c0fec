package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func fdatasync(f *os.File, mapping []byte) error {
	if mapping != nil {
		if err := unix.Msync(mapping, unix.MS_SYNC); err != nil {
			return os.NewSyscallError("msync", err)
		}
	}
	return os.NewSyscallError("fdatasync", unix.Fdatasync(int(f.Fd())))
}
