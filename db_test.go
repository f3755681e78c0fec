package docdb

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/andreyvit/docdb/blit"
)

type (
	User struct {
		Email string   `msgpack:"e"`
		Name  string   `msgpack:"n"`
		Age   int      `msgpack:"a,omitempty"`
		Tags  []string `msgpack:"t,omitempty"`
	}
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func TestDB(t *testing.T) {
	for _, db := range setupBoth(t) {
		db.Write(func(tx *Tx) {
			must(tx.PutJSON("users", "u1", []byte(`{"Name":"Oren","Age":42}`)))
			must(tx.PutJSON("users", "u2", []byte(`{"Name":"Ayende"}`)))
		})

		db.Read(func(tx *Tx) {
			doc := must(tx.Get("users", "u1"))
			isnonnil(t, doc)
			v, _ := doc.Object().Get("Name")
			eq(t, str(v), "Oren")
			eq(t, doc.Meta.ModCount, uint64(1))
			eq(t, tx.Count("users"), 2)
			isnil(t, must(tx.Get("users", "u3")))
			isnil(t, must(tx.Get("nope", "u1")))
		})
	}
}

func TestDB_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db := must(Open(path, Options{IsTesting: true}))
	db.Write(func(tx *Tx) {
		must(tx.PutJSON("users", "u1", []byte(`{"Name":"Oren"}`)))
	})
	db.Close()

	db = must(Open(path, Options{IsTesting: true}))
	defer db.Close()
	db.Read(func(tx *Tx) {
		eq(t, string(must(tx.GetJSON("users", "u1", true))), `{"Name":"Oren"}`)
	})
	db.Write(func(tx *Tx) {
		must(tx.PutJSON("users", "u2", []byte(`{}`)))
	})
	if db.Size() <= 0 {
		t.Errorf("** Size() = %d after a write, wanted > 0", db.Size())
	}
}

func TestDB_TxRollsBackOnError(t *testing.T) {
	for _, db := range setupBoth(t) {
		boom := errors.New("boom")
		err := db.Tx(true, func(tx *Tx) error {
			must(tx.PutJSON("users", "u1", []byte(`{}`)))
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("** Tx() = %v, wanted %v", err, boom)
		}
		db.Read(func(tx *Tx) {
			eq(t, tx.Exists("users", "u1"), false)
		})
	}
}

func TestDB_TxRecoversPanics(t *testing.T) {
	db := setupMem(t)
	err := db.Tx(false, func(tx *Tx) error {
		panic("oops")
	})
	var p panicked
	if !errors.As(err, &p) {
		t.Fatalf("** Tx() = %v, wanted panicked", err)
	}
	eq(t, p.reason, any("oops"))
	eq(t, db.ReaderCount.Load(), int64(0))
}

func TestDB_TxCommits(t *testing.T) {
	db := setupMem(t)
	ensure(db.Tx(true, func(tx *Tx) error {
		_, err := tx.PutJSON("users", "u1", []byte(`{}`))
		return err
	}))
	db.Read(func(tx *Tx) {
		eq(t, tx.Exists("users", "u1"), true)
	})
}

func TestDB_ManualTransactions(t *testing.T) {
	db := setupMem(t)

	tx := db.BeginUpdate()
	must(tx.PutJSON("users", "u1", []byte(`{}`)))
	ensure(tx.Commit())
	tx.Close()
	tx.Close()

	tx = db.BeginUpdate()
	must(tx.PutJSON("users", "u2", []byte(`{}`)))
	tx.Close()

	db.Read(func(tx *Tx) {
		deepEqual(t, tx.Scan("users", AllKeys()).Keys(), []string{"u1"})
	})
	eq(t, db.WriteCount.Load(), uint64(2))
	eq(t, db.ReadCount.Load(), uint64(1))
}

func TestDB_CommitOnManagedTxPanics(t *testing.T) {
	db := setupMem(t)
	err := db.Tx(true, func(tx *Tx) error {
		return tx.Commit()
	})
	if err == nil || !strings.Contains(err.Error(), "managed") {
		t.Fatalf("** Tx() = %v, wanted panic about managed transaction", err)
	}
}

func TestDB_UseOfClosedTxPanics(t *testing.T) {
	db := setupMem(t)
	tx := db.BeginRead()
	tx.Close()
	defer func() {
		if recover() == nil {
			t.Fatalf("** Get on closed tx did not panic")
		}
	}()
	tx.Get("users", "u1")
}

func TestDB_DescribeOpenTxns(t *testing.T) {
	db := setupMem(t)
	eq(t, db.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")

	tx := db.BeginRead()
	s := db.DescribeOpenTxns()
	if !strings.HasPrefix(s, "1 OPEN TRANSACTIONS:") {
		t.Errorf("** DescribeOpenTxns() = %q", s)
	}
	tx.Close()
	eq(t, db.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")
}

func TestDB_ReleasesContext(t *testing.T) {
	db := setupMem(t)
	var ctx *blit.Context
	db.Read(func(tx *Tx) {
		ctx = tx.Context()
		eq(t, ctx.IsReleased(), false)
	})
	eq(t, ctx.IsReleased(), true)
}

func setup(t testing.TB) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	t.Logf("DB: %s", path)
	db := must(Open(path, Options{
		IsTesting: true,
		Verbose:   true,
	}))
	t.Cleanup(db.Close)
	return db
}

func setupMem(t testing.TB) *DB {
	db := OpenInMemory(Options{IsTesting: true, Verbose: true})
	t.Cleanup(db.Close)
	return db
}

func setupBoth(t testing.TB) []*DB {
	return []*DB{setup(t), setupMem(t)}
}

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func isnonnil[T any](t testing.TB, a *T) {
	if a == nil {
		t.Helper()
		t.Errorf("** got nil %T, wanted non-nil", a)
	}
}

func isErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, target)
	}
}

func str(v blit.Value) string {
	s, _ := v.AsString()
	return s
}

func x(data string) []byte {
	data = strings.ReplaceAll(data, " ", "")
	return must(hex.DecodeString(data))
}
