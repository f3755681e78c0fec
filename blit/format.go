package blit

import (
	"encoding/binary"
	"math"
)

// Binary layout (all integers little-endian):
//
//	document -> header stringTable value*
//
//	header -> magic:8 version:8 widths:8 rootTag:8 total:32 rootOff:32 stringsOff:32
//	  widths -> offsetWidthCode:2 nameWidthCode:2 zeros:4  (code 0, 1, 2 = 1, 2, 4 bytes)
//
//	stringTable -> count:uvarint (len:uvarint bytes)*   (strictly sorted, ids are positions)
//
//	object -> n:uvarint (nameID:NW tag:8 off:OW)*n pos:OW*n
//	  entries are sorted by nameID; pos lists entry indices in declaration order
//	array  -> n:uvarint (tag:8 off:OW)*n
//	int    -> 1, 2, 4 or 8 bytes two's complement, per tag
//	float  -> 8 bytes IEEE 754
//	string, blob -> len:uvarint bytes
//	stringRef -> id:uvarint
//
// Values are emitted bottom-up, so every child lies before its parent, and the
// root is the last value. Null and booleans carry no payload; their offset is 0.
const (
	magicByte     byte = 0xB1
	formatVersion byte = 1

	headerSize = 16

	// MaxDocumentSize is the largest document representable with 32-bit offsets.
	MaxDocumentSize = math.MaxUint32
)

const (
	tagNull byte = iota
	tagFalse
	tagTrue
	tagInt8
	tagInt16
	tagInt32
	tagInt64
	tagFloat64
	tagString
	tagStringRef
	tagBlob
	tagObject
	tagArray

	tagCount
)

var tagNames = [tagCount]string{
	tagNull:      "null",
	tagFalse:     "false",
	tagTrue:      "true",
	tagInt8:      "int8",
	tagInt16:     "int16",
	tagInt32:     "int32",
	tagInt64:     "int64",
	tagFloat64:   "float64",
	tagString:    "string",
	tagStringRef: "string_ref",
	tagBlob:      "blob",
	tagObject:    "object",
	tagArray:     "array",
}

func tagName(tag byte) string {
	if tag < tagCount {
		return tagNames[tag]
	}
	return "?"
}

func widthCode(w int) byte {
	switch w {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	default:
		panic("invalid width")
	}
}

func widthFromCode(c byte) int {
	switch c {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 0
	}
}

// widthFor returns the narrowest width able to hold v.
func widthFor(v uint64) int {
	switch {
	case v <= math.MaxUint8:
		return 1
	case v <= math.MaxUint16:
		return 2
	default:
		return 4
	}
}

func maxForWidth(w int) uint64 {
	return 1<<(8*w) - 1
}

func intTag(v int64) (byte, int) {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return tagInt8, 1
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return tagInt16, 2
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return tagInt32, 4
	default:
		return tagInt64, 8
	}
}

func putUint(b []byte, w int, v uint32) {
	switch w {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, v)
	default:
		panic("invalid width")
	}
}

func getUint(b []byte, w int) uint32 {
	switch w {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
