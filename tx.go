package docdb

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/andreyvit/docdb/blit"
)

// Tx is a storage transaction. Documents read or built within it live in the
// transaction's blit.Context and must not be used after Close.
type Tx struct {
	db      *DB
	stx     storageTx
	ctx     *blit.Context
	managed bool
	closed  bool

	written   bool
	committed bool

	startTime time.Time
	stack     string
}

func (db *DB) newTx(writable, managed bool) (*Tx, error) {
	stx, err := db.store.BeginTx(writable)
	if err != nil {
		return nil, err
	}
	tx := &Tx{
		db:        db,
		stx:       stx,
		ctx:       blit.NewContext(),
		managed:   managed,
		startTime: time.Now(),
	}
	if writable {
		db.WriterCount.Add(1)
		db.WriteCount.Add(1)
	} else {
		db.ReaderCount.Add(1)
		db.ReadCount.Add(1)
	}
	if trackTxns {
		if db.strict {
			tx.stack = string(debug.Stack())
		}
		db.addTx(tx)
	}
	return tx, nil
}

func (tx *Tx) DB() *DB {
	return tx.db
}

// Context returns the arena owning every document of the transaction.
func (tx *Tx) Context() *blit.Context {
	return tx.ctx
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

// Tx runs f in a new transaction. A writable transaction is committed if f
// succeeds and rolled back otherwise. Panics in f are returned as errors.
func (db *DB) Tx(writable bool, f func(tx *Tx) error) error {
	tx, err := db.newTx(writable, true)
	if err != nil {
		return fmt.Errorf("docdb: begin: %w", err)
	}
	defer tx.Close()
	err = safelyCall(f, tx)
	if err != nil {
		return err
	}
	if writable {
		return tx.commit()
	}
	return nil
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (db *DB) BeginRead() *Tx {
	tx, err := db.newTx(false, false)
	if err != nil {
		panic(fmt.Errorf("failed to start reading: %w", err))
	}
	return tx
}

func (db *DB) BeginUpdate() *Tx {
	tx, err := db.newTx(true, false)
	if err != nil {
		panic(fmt.Errorf("failed to start writing: %w", err))
	}
	return tx
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *DB) ReadErr(f func(tx *Tx) error) error {
	tx := db.BeginRead()
	defer tx.Close()
	return f(tx)
}

// Write runs f in a writable transaction and commits it, panicking if the
// commit fails.
func (db *DB) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

// Commit commits a transaction started with BeginUpdate. Transactions run by
// DB.Tx are committed automatically.
func (tx *Tx) Commit() error {
	if tx.managed {
		panic("docdb: Commit called on a transaction managed by DB.Tx")
	}
	return tx.commit()
}

func (tx *Tx) commit() error {
	tx.checkOpen()
	size := tx.stx.Size()
	err := tx.stx.Commit()
	if err != nil {
		return err
	}
	tx.committed = true
	if size > 0 {
		tx.db.lastSize.Store(size)
	}
	return nil
}

// Close rolls back the transaction unless it has been committed, and releases
// all of its documents. It is safe to call more than once.
func (tx *Tx) Close() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.written && !tx.committed {
		tx.db.logger.LogAttrs(context.Background(), slog.LevelWarn, "docdb: rolling back uncommitted writes", slog.Duration("age", time.Since(tx.startTime)))
	}
	err := tx.stx.Rollback()
	if err != nil {
		panic(err)
	}
	tx.ctx.Release()
	if tx.stx.Writable() {
		tx.db.WriterCount.Add(-1)
	} else {
		tx.db.ReaderCount.Add(-1)
	}
	if trackTxns {
		tx.db.removeTx(tx)
	}
}

func (tx *Tx) checkOpen() {
	if tx.closed {
		panic("docdb: use of a closed transaction")
	}
}

func (tx *Tx) logOp(op, coll, key string, attrs ...slog.Attr) {
	if !tx.db.verbose {
		return
	}
	attrs = append(attrs, slog.String("coll", coll), slog.String("key", key))
	tx.db.logger.LogAttrs(context.Background(), slog.LevelDebug, "docdb: "+op, attrs...)
}
