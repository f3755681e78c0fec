package docdb

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

type recordFlags uint64

const (
	rfVerBit0 = recordFlags(1 << iota)
	rfVerBit1
	rfVerBit2
	rfVerBit3

	rfVerMask       = (rfVerBit0 | rfVerBit1 | rfVerBit2 | rfVerBit3)
	rfVer1          = rfVerBit0
	rfSupportedMask = rfVerMask
	rfDefault       = rfVer1

	maxRecordHeaderSize = binary.MaxVarintLen64 * 2
)

// Meta describes a stored document.
type Meta struct {
	// ModCount is incremented on every write, starting at 1.
	ModCount uint64

	// Size is the size of the encoded document in bytes.
	Size int

	// ETag is a hash of the encoded document. Writers can pass it back
	// to detect concurrent modifications.
	ETag uint64
}

func (m Meta) String() string {
	return fmt.Sprintf("m=%d size=%d etag=%016x", m.ModCount, m.Size, m.ETag)
}

func etagOf(doc []byte) uint64 {
	return xxhash.Sum64(doc)
}

// record is a stored document: a header followed by the encoded document.
type record struct {
	Flags    recordFlags
	ModCount uint64
	Doc      []byte
}

func (rec *record) Meta() Meta {
	return Meta{
		ModCount: rec.ModCount,
		Size:     len(rec.Doc),
		ETag:     etagOf(rec.Doc),
	}
}

func appendRecord(buf []byte, modCount uint64, doc []byte) []byte {
	buf = ensureCapacity(buf, len(buf)+maxRecordHeaderSize+len(doc))
	buf = appendUvarint(buf, uint64(rfDefault))
	buf = appendUvarint(buf, modCount)
	off, buf := grow(buf, len(doc))
	copy(buf[off:], doc)
	return buf
}

func (rec *record) decode(data []byte) error {
	d := makeByteDecoder(data)
	v, err := d.Uvarint()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid record: bad flags")
	}
	if (v &^ uint64(rfSupportedMask)) != 0 {
		return dataErrf(data, 0, nil, "invalid record: unsupported flags %x", v)
	}
	rec.Flags = recordFlags(v)
	if rec.Flags&rfVerMask != rfVer1 {
		return dataErrf(data, 0, nil, "invalid record: unsupported version %d", rec.Flags&rfVerMask)
	}

	rec.ModCount, err = d.Uvarint()
	if err != nil {
		return dataErrf(data, d.Off(), err, "invalid record: bad mod count")
	}
	rec.Doc = d.Buf
	return nil
}
