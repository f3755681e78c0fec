package docdb

import (
	"bytes"
	"context"
	"log/slog"
)

const (
	debugLogScans = false
)

// KeyRange selects document keys of a collection. The constructors use
// mnemonics: O means open, I means inclusive, E means exclusive; the first
// letter is for the lower bound, the second for the upper bound.
type KeyRange struct {
	Prefix   string
	Lower    string
	Upper    string
	HasLower bool
	HasUpper bool
	LowerInc bool
	UpperInc bool
	Reverse  bool
}

func AllKeys() KeyRange        { return KeyRange{} }
func KeysIO(l string) KeyRange { return KeyRange{Lower: l, HasLower: true, LowerInc: true} }
func KeysEO(l string) KeyRange { return KeyRange{Lower: l, HasLower: true} }
func KeysOI(u string) KeyRange { return KeyRange{Upper: u, HasUpper: true, UpperInc: true} }
func KeysOE(u string) KeyRange { return KeyRange{Upper: u, HasUpper: true} }
func KeysII(l, u string) KeyRange {
	return KeyRange{Lower: l, Upper: u, HasLower: true, HasUpper: true, LowerInc: true, UpperInc: true}
}
func KeysIE(l, u string) KeyRange {
	return KeyRange{Lower: l, Upper: u, HasLower: true, HasUpper: true, LowerInc: true}
}
func KeysPrefix(p string) KeyRange              { return KeyRange{Prefix: p} }
func (rang KeyRange) Prefixed(p string) KeyRange { rang.Prefix = p; return rang }
func (rang KeyRange) Reversed() KeyRange         { rang.Reverse = true; return rang }

func (r *KeyRange) start(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	var bound []byte
	var inc, bounded bool
	if r.Reverse {
		if r.HasUpper {
			bound, bounded, inc = []byte(r.Upper), true, r.UpperInc
			if r.Prefix != "" && !bytes.HasPrefix(bound, []byte(r.Prefix)) {
				panic("upper bound does not match prefix")
			}
		} else if r.Prefix != "" {
			bound = []byte(r.Prefix)
		}
		if bound != nil {
			k, v = bcur.SeekLast(bound)
		} else {
			k, v = bcur.Last()
		}
	} else {
		if r.HasLower {
			bound, bounded, inc = []byte(r.Lower), true, r.LowerInc
			if r.Prefix != "" && !bytes.HasPrefix(bound, []byte(r.Prefix)) {
				panic("lower bound does not match prefix")
			}
		} else if r.Prefix != "" {
			bound = []byte(r.Prefix)
		}
		if bound != nil {
			k, v = bcur.Seek(bound)
		} else {
			k, v = bcur.First()
		}
	}
	if debugLogScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "START", hexAttr("bound", bound), hexAttr("key", k))
	}
	// SeekLast lands on the last key having the bound as a prefix, which may
	// be past the bound itself.
	for bounded && k != nil && r.beyondStart(k, bound, inc) {
		k, v = r.step(bcur)
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

// beyondStart reports whether k is on the wrong side of the starting bound.
func (r *KeyRange) beyondStart(k, bound []byte, inc bool) bool {
	cmp := bytes.Compare(k, bound)
	if r.Reverse {
		cmp = -cmp
	}
	return cmp < 0 || (cmp == 0 && !inc)
}

func (r *KeyRange) step(bcur storageCursor) ([]byte, []byte) {
	if r.Reverse {
		return bcur.Prev()
	}
	return bcur.Next()
}

func (r *KeyRange) next(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	k, v := r.step(bcur)
	if debugLogScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "NEXT", hexAttr("key", k))
	}
	if k != nil && r.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (r *KeyRange) match(k []byte, logger *slog.Logger) bool {
	if r.Prefix != "" && !bytes.HasPrefix(k, []byte(r.Prefix)) {
		if debugLogScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on prefix", hexAttr("key", k))
		}
		return false
	}
	if r.Reverse {
		if r.HasLower {
			cmp := bytes.Compare(k, []byte(r.Lower))
			if cmp == -1 || (cmp == 0 && !r.LowerInc) {
				return false
			}
		}
	} else {
		if r.HasUpper {
			cmp := bytes.Compare(k, []byte(r.Upper))
			if cmp == 1 || (cmp == 0 && !r.UpperInc) {
				return false
			}
		}
	}
	return true
}

// Cursor walks the documents of a collection within a KeyRange:
//
//	c := tx.Scan("users", docdb.KeysPrefix("u/"))
//	for c.Next() {
//		doc := c.Doc()
//		...
//	}
//	if err := c.Err(); err != nil { ... }
type Cursor struct {
	tx    *Tx
	coll  string
	rang  KeyRange
	bcur  storageCursor
	limit int
	seen  int

	k, v []byte
	init bool
	doc  *Doc
	err  error
}

// Scan returns a cursor over the documents of coll whose keys fall in rang.
// A missing collection yields an empty cursor.
func (tx *Tx) Scan(coll string, rang KeyRange) *Cursor {
	c := &Cursor{tx: tx, coll: coll, rang: rang}
	if b := tx.bucket(coll); b != nil {
		c.bcur = b.Cursor()
	}
	return c
}

// Limit stops the cursor after n documents; 0 means no limit.
func (c *Cursor) Limit(n int) *Cursor {
	c.limit = n
	return c
}

func (c *Cursor) Next() bool {
	c.doc = nil
	if c.bcur == nil || c.err != nil || (c.limit > 0 && c.seen >= c.limit) {
		c.k, c.v = nil, nil
		return false
	}
	if c.init {
		c.k, c.v = c.rang.next(c.bcur, c.tx.db.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.bcur, c.tx.db.logger)
	}
	if c.k == nil {
		return false
	}
	c.seen++
	return true
}

func (c *Cursor) Key() string {
	return string(c.k)
}

// Doc decodes the current document. Decoding failures stop the cursor and
// are reported by Err.
func (c *Cursor) Doc() *Doc {
	if c.doc == nil && c.k != nil {
		doc, err := c.tx.decodeDoc(c.coll, string(c.k), c.v)
		if err != nil {
			c.err = err
			c.k, c.v = nil, nil
			return nil
		}
		c.doc = doc
	}
	return c.doc
}

func (c *Cursor) Err() error {
	return c.err
}

// Keys returns every remaining key.
func (c *Cursor) Keys() []string {
	var result []string
	for c.Next() {
		result = append(result, c.Key())
	}
	return result
}

// Docs decodes every remaining document.
func (c *Cursor) Docs() ([]*Doc, error) {
	var result []*Doc
	for c.Next() {
		doc := c.Doc()
		if doc == nil {
			break
		}
		result = append(result, doc)
	}
	return result, c.err
}
