package mmap

import (
	"errors"
	"math/bits"
	"os"
	"path/filepath"
	"testing"
)

func TestOptionsHas(t *testing.T) {
	var o Options = Writable | Prefault
	if !o.Has(Writable) || o.Has(SequentialAccess) {
		t.Fatalf("Options.Has returned unexpected results for %v", o)
	}
}

func TestMmapAndMunmap(t *testing.T) {
	f := must(os.CreateTemp("", "mmap_test_*"))
	defer os.Remove(f.Name())
	defer f.Close()

	const size = 4096
	if err := f.Truncate(size); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	b, err := Mmap(f, 0, size, Writable)
	if err != nil {
		t.Fatalf("Mmap: %v", err)
	}
	if len(b) != size {
		t.Fatalf("len(mmap) = %d, wanted %d", len(b), size)
	}
	b[0] = 0x42
	if err := Fdatasync(f, b); err != nil {
		t.Fatalf("Fdatasync: %v", err)
	}
	if err := Munmap(b); err != nil {
		t.Fatalf("Munmap: %v", err)
	}
}

func TestMmap_PanicsOnNonZeroOffset(t *testing.T) {
	f := must(os.CreateTemp("", "mmap_test_*"))
	defer os.Remove(f.Name())
	defer f.Close()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	_, _ = Mmap(f, 1, 1, 0)
}

func TestMmap_RejectsEmptyFile(t *testing.T) {
	f := must(os.CreateTemp("", "mmap_test_*"))
	defer os.Remove(f.Name())
	defer f.Close()

	_, err := Mmap(f, 0, 0, 0)
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("Mmap of empty file: got %v, wanted ErrEmptyFile", err)
	}
}

func TestRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	if err := os.WriteFile(path, []byte("hello, world"), 0o666); err != nil {
		t.Fatal(err)
	}

	r := must(Open(path, RandomAccess))
	if string(r.Data()) != "hello, world" {
		t.Fatalf("Data() = %q", r.Data())
	}
	if r.Len() != 12 || r.Name() != path {
		t.Fatalf("Len() = %d, Name() = %q", r.Len(), r.Name())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	w := must(Open(path, Writable))
	w.Data()[0] = 'j'
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if data := must(os.ReadFile(path)); string(data) != "jello, world" {
		t.Fatalf("file contents = %q", data)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}


func TestMaxSize(t *testing.T) {
	want := uint64(1<<31 - 1)
	if bits.UintSize == 64 {
		want = 1<<48 - 1
	}
	if uint64(MaxSize) != want {
		t.Fatalf("MaxSize = %x, wanted %x", uint64(MaxSize), want)
	}
}
