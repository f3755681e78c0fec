package docdb

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/andreyvit/docdb/blit"
	"github.com/andreyvit/docdb/mmap"
	"github.com/cespare/xxhash/v2"
)

// Snapshot file layout:
//
//	magic "blitsnap", version u32, count u32
//	count × (uvarint key len, key, uvarint doc len, doc, xxhash64 of the preceding key and doc fields)
//
// Records are in key order. Integers are little-endian.
const (
	snapshotMagic   = "blitsnap"
	snapshotVersion = 1
)

// ExportSnapshot writes every document of coll into a snapshot file at path,
// replacing it atomically, and returns the number of documents written.
func (tx *Tx) ExportSnapshot(coll, path string) (int, error) {
	var bb bytesBuilder
	bb.Write([]byte(snapshotMagic))
	_, bb.Buf = grow(bb.Buf, 8)

	var n int
	c := tx.Scan(coll, AllKeys())
	for c.Next() {
		var rec record
		err := rec.decode(c.v)
		if err != nil {
			return 0, docErrf(coll, c.Key(), err, "decoding record")
		}
		start := len(bb.Buf)
		bb.AppendVarBytes(c.k)
		bb.AppendVarBytes(rec.Doc)
		bb.AppendFixedUint64(xxhash.Sum64(bb.Buf[start:]))
		n++
	}
	if n > 0xFFFFFFFF {
		return 0, fmt.Errorf("docdb: %s: too many documents for a snapshot: %d", coll, n)
	}
	binary.LittleEndian.PutUint32(bb.Buf[len(snapshotMagic):], snapshotVersion)
	binary.LittleEndian.PutUint32(bb.Buf[len(snapshotMagic)+4:], uint32(n))

	err := writeFileSynced(path, bb.Buf)
	if err != nil {
		return 0, fmt.Errorf("docdb: exporting %s: %w", coll, err)
	}
	tx.logOp("EXPORT", coll, "", slog.String("path", path), slog.Int("docs", n), slog.Int("size", len(bb.Buf)))
	return n, nil
}

func writeFileSynced(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	_, err = f.Write(data)
	if err == nil {
		err = mmap.Fdatasync(f, nil)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Snapshot is a read-only collection exported by Tx.ExportSnapshot and mapped
// into memory. Documents are parsed straight from the mapping.
type Snapshot struct {
	region *mmap.Region
	keys   []string
	docs   [][]byte
}

// OpenSnapshot maps a snapshot file and verifies every record checksum.
func OpenSnapshot(path string) (*Snapshot, error) {
	region, err := mmap.Open(path, mmap.SequentialAccess)
	if err != nil {
		return nil, fmt.Errorf("docdb: snapshot: %w", err)
	}
	snap := &Snapshot{region: region}
	err = snap.load(region.Data())
	if err != nil {
		region.Close()
		return nil, fmt.Errorf("docdb: snapshot %s: %w", path, err)
	}
	return snap, nil
}

func (snap *Snapshot) load(data []byte) error {
	d := makeByteDecoder(data)
	magic, err := d.Raw(len(snapshotMagic))
	if err != nil || string(magic) != snapshotMagic {
		return dataErrf(data, 0, nil, "not a snapshot file")
	}
	hdr, err := d.Raw(8)
	if err != nil {
		return err
	}
	if v := binary.LittleEndian.Uint32(hdr); v != snapshotVersion {
		return dataErrf(data, len(snapshotMagic), nil, "unsupported snapshot version %d", v)
	}
	n := int(binary.LittleEndian.Uint32(hdr[4:]))
	if n > len(d.Buf) {
		return dataErrf(data, len(snapshotMagic)+4, nil, "invalid document count %d", n)
	}

	snap.keys = make([]string, 0, n)
	snap.docs = make([][]byte, 0, n)
	for range n {
		start := d.Off()
		key, err := d.VarBytes()
		if err != nil {
			return err
		}
		doc, err := d.VarBytes()
		if err != nil {
			return err
		}
		end := d.Off()
		sum, err := d.FixedUint64()
		if err != nil {
			return err
		}
		if actual := xxhash.Sum64(data[start:end]); actual != sum {
			return dataErrf(data, start, nil, "checksum mismatch: stored %016x, actual %016x", sum, actual)
		}
		k := string(key)
		if m := len(snap.keys); m > 0 && snap.keys[m-1] >= k {
			return dataErrf(data, start, nil, "key %q out of order", k)
		}
		snap.keys = append(snap.keys, k)
		snap.docs = append(snap.docs, doc)
	}
	if len(d.Buf) != 0 {
		return dataErrf(data, d.Off(), nil, "%d trailing bytes", len(d.Buf))
	}
	return nil
}

func (snap *Snapshot) Len() int {
	return len(snap.keys)
}

func (snap *Snapshot) Keys() []string {
	return slices.Clone(snap.keys)
}

// Get parses the document stored under key into ctx, returning nil if there
// is none. The document references the mapping, so it must not outlive the
// snapshot.
func (snap *Snapshot) Get(ctx *blit.Context, key string) (*blit.Document, error) {
	i, found := slices.BinarySearch(snap.keys, key)
	if !found {
		return nil, nil
	}
	return snap.parse(ctx, i)
}

func (snap *Snapshot) parse(ctx *blit.Context, i int) (*blit.Document, error) {
	doc, err := ctx.Parse(snap.docs[i])
	if err != nil {
		return nil, fmt.Errorf("docdb: snapshot %s: %w", snap.keys[i], err)
	}
	return doc, nil
}

// Scan calls f for every document whose key starts with prefix, in key order,
// stopping at the first error.
func (snap *Snapshot) Scan(ctx *blit.Context, prefix string, f func(key string, doc *blit.Document) error) error {
	i, _ := slices.BinarySearch(snap.keys, prefix)
	for ; i < len(snap.keys) && strings.HasPrefix(snap.keys[i], prefix); i++ {
		doc, err := snap.parse(ctx, i)
		if err != nil {
			return err
		}
		err = f(snap.keys[i], doc)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close unmaps the file. Documents parsed from the snapshot become invalid.
func (snap *Snapshot) Close() error {
	snap.keys, snap.docs = nil, nil
	return snap.region.Close()
}
