package docdb

import (
	"errors"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"
)

func setupBoltStorage(t testing.TB) storage {
	bdb := must(bbolt.Open(filepath.Join(t.TempDir(), "storage.db"), 0666, &bbolt.Options{NoSync: true, InitialMmapSize: 1 << 20}))
	s := newBoltStorage(bdb)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage_NestedBuckets(t *testing.T) {
	for name, s := range map[string]storage{"mem": newMemStorage(), "bolt": setupBoltStorage(t)} {
		t.Run(name, func(t *testing.T) {
			wtx := must(s.BeginTx(true))
			must(wtx.CreateBucket("docs", "b"))
			must(wtx.CreateBucket("docs", "a"))
			must(wtx.CreateBucket("other", "c"))
			b := must(wtx.CreateBucket("docs", "a"))
			ensure(b.Put([]byte("k"), []byte("v")))
			deepEqual(t, wtx.NestedBuckets("docs"), []string{"a", "b"})
			ensure(wtx.Commit())

			rtx := must(s.BeginTx(false))
			deepEqual(t, rtx.NestedBuckets("docs"), []string{"a", "b"})
			deepEqual(t, rtx.NestedBuckets("none"), []string(nil))
			eq(t, string(rtx.Bucket("docs", "a").Get([]byte("k"))), "v")
			if rtx.Bucket("docs", "zzz") != nil {
				t.Errorf("** Bucket(zzz) != nil")
			}
			ensure(rtx.Rollback())
			ensure(rtx.Rollback())

			wtx = must(s.BeginTx(true))
			ensure(wtx.DeleteBucket("docs", "a"))
			err := wtx.DeleteBucket("docs", "a")
			if !errors.Is(err, ErrBucketNotFound) {
				t.Errorf("** DeleteBucket twice = %v, wanted ErrBucketNotFound", err)
			}
			deepEqual(t, wtx.NestedBuckets("docs"), []string{"b"})
			ensure(wtx.Rollback())
		})
	}
}

func TestStorage_Isolation(t *testing.T) {
	for name, s := range map[string]storage{"mem": newMemStorage(), "bolt": setupBoltStorage(t)} {
		t.Run(name, func(t *testing.T) {
			wtx := must(s.BeginTx(true))
			ensure(must(wtx.CreateBucket("b", "")).Put([]byte("k"), []byte("1")))
			ensure(wtx.Commit())

			rtx := must(s.BeginTx(false))
			defer rtx.Rollback()

			wtx = must(s.BeginTx(true))
			ensure(wtx.Bucket("b", "").Put([]byte("k"), []byte("2")))
			ensure(wtx.Commit())

			eq(t, string(rtx.Bucket("b", "").Get([]byte("k"))), "1")
		})
	}
}

func TestStorage_Stats(t *testing.T) {
	for name, s := range map[string]storage{"mem": newMemStorage(), "bolt": setupBoltStorage(t)} {
		t.Run(name, func(t *testing.T) {
			wtx := must(s.BeginTx(true))
			defer wtx.Rollback()
			b := must(wtx.CreateBucket("b", ""))
			ensure(b.Put([]byte("k1"), []byte("abc")))
			ensure(b.Put([]byte("k2"), []byte("def")))
			ensure(b.Delete([]byte("k2")))
			ensure(b.Delete([]byte("nope")))
			eq(t, b.KeyCount(), 1)
		})
	}
}

func TestStorage_ReadOnly(t *testing.T) {
	s := newMemStorage()
	rtx := must(s.BeginTx(false))
	defer rtx.Rollback()
	_, err := rtx.CreateBucket("b", "")
	eq(t, err, errMemTxReadOnly)
}

func TestStorage_ClosedMem(t *testing.T) {
	s := newMemStorage()
	ensure(s.Close())
	_, err := s.BeginTx(false)
	eq(t, err, errMemStorageClosed)
}
