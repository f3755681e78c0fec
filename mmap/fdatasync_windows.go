package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func fdatasync(f *os.File, mapping []byte) error {
	if len(mapping) > 0 {
		err := windows.FlushViewOfFile(uintptr(unsafe.Pointer(&mapping[0])), uintptr(len(mapping)))
		if err != nil {
			return os.NewSyscallError("FlushViewOfFile", err)
		}
	}
	return f.Sync()
}
