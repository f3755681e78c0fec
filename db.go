package docdb

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyvit/docdb/blit"
	"go.etcd.io/bbolt"
)

const trackTxns = true

// docsBucket is the root bucket; every collection is a bucket nested in it.
const docsBucket = "docs"

type DB struct {
	store   storage
	logger  *slog.Logger
	verbose bool
	strict  bool
	writer  blit.WriterOptions

	lastSize    atomic.Int64
	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64

	txns     []*Tx
	txnsLock sync.Mutex
}

type Options struct {
	// Logger receives debug logs of every operation when Verbose is set.
	// Defaults to slog.Default().
	Logger  *slog.Logger
	Verbose bool

	// IsTesting trades durability for speed, and makes misuse panic early.
	IsTesting bool
	MmapSize  int

	// Writer configures how documents are encoded on write.
	Writer blit.WriterOptions
}

// Open opens or creates a Bolt-backed database at path.
func Open(path string, opt Options) (*DB, error) {
	bopt := new(bbolt.Options)
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("docdb: %w", err)
	}
	db := newDB(newBoltStorage(bdb), opt)

	err = db.Tx(true, func(tx *Tx) error {
		_, err := tx.stx.CreateBucket(docsBucket, "")
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("docdb: initializing: %w", err)
	}
	return db, nil
}

// OpenInMemory returns a transient database that keeps everything in memory.
func OpenInMemory(opt Options) *DB {
	return newDB(newMemStorage(), opt)
}

func newDB(store storage, opt Options) *DB {
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{
		store:   store,
		logger:  logger,
		verbose: opt.Verbose,
		strict:  opt.IsTesting,
		writer:  opt.Writer,
	}
}

// Size returns the size of the database as of the last committed write.
func (db *DB) Size() int64 {
	return db.lastSize.Load()
}

// Close closes the underlying storage. In testing mode, it panics if any
// transactions are still open.
func (db *DB) Close() {
	if db.strict {
		db.txnsLock.Lock()
		n := len(db.txns)
		db.txnsLock.Unlock()
		if n > 0 {
			panic(fmt.Errorf("docdb: closing with %s", db.DescribeOpenTxns()))
		}
	}
	err := db.store.Close()
	if err != nil {
		panic(fmt.Errorf("docdb: closing: %w", err))
	}
}

func (db *DB) addTx(tx *Tx) {
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()
	db.txns = append(db.txns, tx)
}

func (db *DB) removeTx(tx *Tx) {
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()

	found := slices.Index(db.txns, tx)
	if found < 0 {
		panic("tx not found in list")
	}

	n := len(db.txns)
	db.txns[found] = db.txns[n-1]
	db.txns[n-1] = nil
	db.txns = db.txns[:n-1]
}

func (db *DB) DescribeOpenTxns() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}

	db.txnsLock.Lock()
	txns := slices.Clone(db.txns)
	db.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}

	slices.SortFunc(txns, func(a, b *Tx) int {
		return a.startTime.Compare(b.startTime)
	})

	now := time.Now()

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		ms := now.Sub(tx.startTime).Milliseconds()
		if ms < 100 {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms\n", ms)
		} else {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms:\n%s", ms, tx.stack)
		}
	}

	return buf.String()
}
