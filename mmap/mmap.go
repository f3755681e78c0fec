// Package mmap maps files into memory read-only or read-write, and syncs them
// to disk.
package mmap

import (
	"errors"
	"fmt"
	"os"
)

type Options uint

const (
	// Writable maps the file for writing (otherwise, it's mapped read-only).
	Writable Options = 1 << 0

	// SequentialAccess is a hint requesting aggressive read-ahead.
	// Incompatible with RandomAccess. Maps to MADV_SEQUENTIAL on Unix.
	SequentialAccess Options = 1 << 1

	// RandomAccess is a hint that read ahead is less useful than normally.
	// Incompatible with SequentialAccess. Maps to MADV_RANDOM on Unix.
	RandomAccess Options = 1 << 2

	// Prefault is a hint requesting the entire file to be loaded in memory
	// for fastest access. Maps to MAP_POPULATE on Linux.
	Prefault Options = 1 << 3
)

var ErrEmptyFile = errors.New("cannot map an empty file")

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// Mmap maps size bytes of f starting at the beginning of the file.
func Mmap(f *os.File, offset, size int, opt Options) ([]byte, error) {
	if offset != 0 {
		panic("non-zero offset not yet supported")
	}
	if size <= 0 {
		return nil, ErrEmptyFile
	}
	if size > MaxSize {
		return nil, fmt.Errorf("mmap size %d exceeds maximum of %d", size, MaxSize)
	}
	return mmap(f, size, opt)
}

// Munmap unmaps the given slice from memory. The slice must have been returned
// by Mmap.
func Munmap(b []byte) error {
	return munmap(b)
}

// Region is a whole file mapped into memory.
type Region struct {
	f    *os.File
	data []byte
	opt  Options
}

// Open maps the entire file at path. The file is opened read-write if opt has
// Writable, read-only otherwise.
func Open(path string, opt Options) (*Region, error) {
	flag := os.O_RDONLY
	if opt.Has(Writable) {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	data, err := Mmap(f, 0, int(stat.Size()), opt)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Region{f, data, opt}, nil
}

// Data returns the mapped bytes. They must not be used after Close, and must
// not be written to unless the region is Writable.
func (r *Region) Data() []byte {
	return r.data
}

func (r *Region) Len() int {
	return len(r.data)
}

func (r *Region) Name() string {
	return r.f.Name()
}

// Sync flushes changes made through a writable mapping to disk.
func (r *Region) Sync() error {
	return Fdatasync(r.f, r.data)
}

func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := Munmap(r.data)
	r.data = nil
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
