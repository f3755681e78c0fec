//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func mmap(f *os.File, size int, opt Options) ([]byte, error) {
	prot := unix.PROT_READ
	if opt.Has(Writable) {
		prot |= unix.PROT_WRITE
	}
	flags := unix.MAP_SHARED
	if opt.Has(Prefault) {
		flags |= mapPopulate
	}

	b, err := unix.Mmap(int(f.Fd()), 0, size, prot, flags)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}

	advice := -1
	if opt.Has(SequentialAccess) {
		advice = unix.MADV_SEQUENTIAL
	} else if opt.Has(RandomAccess) {
		advice = unix.MADV_RANDOM
	}
	if advice >= 0 {
		// hints are optional, so kernels without madvise are fine
		err = unix.Madvise(b, advice)
		if err != nil && !errors.Is(err, unix.ENOSYS) {
			unix.Munmap(b)
			return nil, os.NewSyscallError("madvise", err)
		}
	}
	return b, nil
}

func munmap(b []byte) error {
	return os.NewSyscallError("munmap", unix.Munmap(b))
}
