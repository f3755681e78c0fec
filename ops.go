package docdb

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/andreyvit/docdb/blit"
	"github.com/vmihailenco/msgpack/v5"
)

// Doc is a stored document read within a transaction.
type Doc struct {
	*blit.Document
	Coll string
	Key  string
	Meta Meta
}

func (tx *Tx) bucket(coll string) storageBucket {
	tx.checkOpen()
	return tx.stx.Bucket(docsBucket, coll)
}

// Get returns the document stored under key, or nil if there is none.
func (tx *Tx) Get(coll, key string) (*Doc, error) {
	b := tx.bucket(coll)
	var raw []byte
	if b != nil {
		raw = b.Get(unsafeBytesFromString(key))
	}
	if raw == nil {
		tx.logOp("GET.NOTFOUND", coll, key)
		return nil, nil
	}
	doc, err := tx.decodeDoc(coll, key, raw)
	if err != nil {
		return nil, err
	}
	tx.logOp("GET", coll, key, slog.Uint64("m", doc.Meta.ModCount), slog.Int("size", doc.Meta.Size))
	return doc, nil
}

func (tx *Tx) decodeDoc(coll, key string, raw []byte) (*Doc, error) {
	var rec record
	err := rec.decode(raw)
	if err != nil {
		return nil, docErrf(coll, key, err, "decoding record")
	}
	data := rec.Doc
	if tx.stx.Writable() {
		// storage may reuse the bytes once the transaction writes
		data = tx.ctx.Copy(data)
	}
	doc, err := tx.ctx.Parse(data)
	if err != nil {
		return nil, docErrf(coll, key, err, "")
	}
	return &Doc{doc, coll, key, rec.Meta()}, nil
}

func (tx *Tx) Exists(coll, key string) bool {
	b := tx.bucket(coll)
	return b != nil && b.Get(unsafeBytesFromString(key)) != nil
}

// GetJSON returns the document as JSON text, or nil if there is none.
func (tx *Tx) GetJSON(coll, key string, preserveOrder bool) ([]byte, error) {
	doc, err := tx.Get(coll, key)
	if doc == nil || err != nil {
		return nil, err
	}
	return doc.JSON(preserveOrder)
}

// GetValue decodes the document into out, which is typically a pointer to
// a struct with msgpack tags. Returns false if there is no such document.
func (tx *Tx) GetValue(coll, key string, out any) (bool, error) {
	doc, err := tx.Get(coll, key)
	if doc == nil || err != nil {
		return false, err
	}
	buf, err := blit.AppendMsgpack(nil, doc.Root())
	if err != nil {
		return false, docErrf(coll, key, err, "")
	}
	err = msgpack.Unmarshal(buf, out)
	if err != nil {
		return false, docErrf(coll, key, err, "decoding into %T", out)
	}
	return true, nil
}

// Put stores v, with any pending edits applied, under key.
func (tx *Tx) Put(coll, key string, v blit.Value) (Meta, error) {
	tx.checkOpen()
	doc, err := tx.ctx.BuildWith(tx.db.writer, v)
	if err != nil {
		return Meta{}, docErrf(coll, key, err, "")
	}
	return tx.putRaw(coll, key, doc.Bytes())
}

// PutJSON stores a document given as JSON text.
func (tx *Tx) PutJSON(coll, key string, text []byte) (Meta, error) {
	tx.checkOpen()
	doc, err := tx.ctx.ReadJSON(text)
	if err != nil {
		return Meta{}, docErrf(coll, key, err, "")
	}
	return tx.putRaw(coll, key, doc.Bytes())
}

// PutValue stores a Go value, typically a struct with msgpack tags.
func (tx *Tx) PutValue(coll, key string, v any) (Meta, error) {
	tx.checkOpen()
	buf, err := msgpack.Marshal(v)
	if err != nil {
		return Meta{}, docErrf(coll, key, err, "encoding %T", v)
	}
	doc, err := tx.ctx.ReadMsgpack(buf)
	if err != nil {
		return Meta{}, docErrf(coll, key, err, "")
	}
	return tx.putRaw(coll, key, doc.Bytes())
}

func (tx *Tx) putRaw(coll, key string, data []byte) (Meta, error) {
	if key == "" {
		return Meta{}, docErrf(coll, key, ErrInvalidKey, "empty key")
	}
	if limit := tx.db.writer.MaxSize; limit > 0 && len(data) > limit {
		return Meta{}, docErrf(coll, key, blit.ErrBufferTooLarge, "document of %d bytes exceeds limit of %d", len(data), limit)
	}
	b, err := tx.stx.CreateBucket(docsBucket, coll)
	if err != nil {
		return Meta{}, docErrf(coll, "", err, "creating collection")
	}
	keyRaw := unsafeBytesFromString(key)

	var old record
	if oldRaw := b.Get(keyRaw); oldRaw != nil {
		err = old.decode(oldRaw)
		if err != nil {
			return Meta{}, docErrf(coll, key, err, "decoding old record")
		}
		if bytes.Equal(old.Doc, data) {
			meta := old.Meta()
			tx.logOp("PUT.NOOP", coll, key, slog.Uint64("m", meta.ModCount))
			return meta, nil
		}
	}

	meta := Meta{
		ModCount: old.ModCount + 1,
		Size:     len(data),
		ETag:     etagOf(data),
	}
	buf := appendRecord(tx.ctx.Alloc(maxRecordHeaderSize + len(data))[:0], meta.ModCount, data)
	err = b.Put(keyRaw, buf)
	if err != nil {
		return Meta{}, docErrf(coll, key, err, "")
	}
	tx.written = true
	tx.logOp("PUT", coll, key, slog.Uint64("m", meta.ModCount), slog.Int("size", meta.Size))
	return meta, nil
}

type PatchOptions struct {
	// IfMatch, when non-zero, is the ETag the document must still have.
	IfMatch uint64
}

// Patch edits the stored object document through an overlay and stores the
// result. f receives the root object's edit set; nested objects and arrays
// are reached through EditObject and EditArray.
func (tx *Tx) Patch(coll, key string, opt PatchOptions, f func(e *blit.ObjectEdits) error) (Meta, error) {
	doc, err := tx.Get(coll, key)
	if err != nil {
		return Meta{}, err
	}
	if doc == nil {
		return Meta{}, docErrf(coll, key, ErrNotFound, "")
	}
	if opt.IfMatch != 0 && opt.IfMatch != doc.Meta.ETag {
		return Meta{}, docErrf(coll, key, ErrConcurrencyConflict, "etag %016x, wanted %016x", doc.Meta.ETag, opt.IfMatch)
	}
	obj := doc.Object()
	if obj.IsMissing() {
		return Meta{}, docErrf(coll, key, ErrNotObject, "")
	}
	err = f(obj.Modify())
	if err != nil {
		return Meta{}, err
	}
	return tx.Put(coll, key, doc.Root())
}

// Delete removes a document, returning whether it existed.
func (tx *Tx) Delete(coll, key string) (bool, error) {
	b := tx.bucket(coll)
	keyRaw := unsafeBytesFromString(key)
	if b == nil || b.Get(keyRaw) == nil {
		tx.logOp("DELETE.NOOP", coll, key)
		return false, nil
	}
	err := b.Delete(keyRaw)
	if err != nil {
		return false, docErrf(coll, key, err, "")
	}
	tx.written = true
	tx.logOp("DELETE", coll, key)
	return true, nil
}

// Count returns the number of documents in a collection.
func (tx *Tx) Count(coll string) int {
	b := tx.bucket(coll)
	if b == nil {
		return 0
	}
	return b.KeyCount()
}

// Collections returns the names of all collections, sorted.
func (tx *Tx) Collections() []string {
	tx.checkOpen()
	return tx.stx.NestedBuckets(docsBucket)
}

// DropCollection deletes a collection with all of its documents, returning
// whether it existed.
func (tx *Tx) DropCollection(coll string) (bool, error) {
	tx.checkOpen()
	err := tx.stx.DeleteBucket(docsBucket, coll)
	if errors.Is(err, ErrBucketNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("docdb: dropping %s: %w", coll, err)
	}
	tx.written = true
	tx.logOp("DROP", coll, "")
	return true, nil
}
