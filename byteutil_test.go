package docdb

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestBytesBuilder_Basics(t *testing.T) {
	var bb bytesBuilder
	_, _ = bb.Write([]byte{1, 2, 3})
	bb.AppendFixedUint64(0x0102030405060708)
	bb.AppendVarBytes([]byte("hi"))

	want := []byte{1, 2, 3}
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], 0x0102030405060708)
	want = append(want, u64[:]...)
	want = append(want, 2, 'h', 'i')

	if !reflect.DeepEqual(bb.Buf, want) {
		t.Fatalf("bb.Buf = %x, wanted %x", bb.Buf, want)
	}
}

func TestEnsureCapacity(t *testing.T) {
	buf := ensureCapacity([]byte{1, 2}, 3)
	if cap(buf) != 16 || !reflect.DeepEqual(buf, []byte{1, 2}) {
		t.Fatalf("ensureCapacity = %x cap %d, wanted 0102 cap 16", buf, cap(buf))
	}
	buf = ensureCapacity(buf, 40)
	if cap(buf) != 64 {
		t.Fatalf("cap = %d, wanted 64", cap(buf))
	}
}

func TestByteDecoder(t *testing.T) {
	buf := appendUvarint(nil, 300)
	buf = appendVarbytes(buf, []byte("hi"))
	buf = append(buf, 8, 7, 6, 5, 4, 3, 2, 1)

	d := makeByteDecoder(buf)
	v := must(d.Uvarinti())
	s := must(d.VarBytes())
	u := must(d.FixedUint64())
	if v != 300 || string(s) != "hi" || u != 0x0102030405060708 || len(d.Buf) != 0 {
		t.Fatalf("decoded (%d, %q, %x), remaining %d", v, s, u, len(d.Buf))
	}
	if d.Off() != len(buf) {
		t.Fatalf("Off = %d, wanted %d", d.Off(), len(buf))
	}
}

func TestByteDecoder_Errors(t *testing.T) {
	t.Run("invalid uvarint", func(t *testing.T) {
		d := makeByteDecoder([]byte{0x80}) // continuation bit with no terminator
		_, err := d.Uvarint()
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("Uvarint err = %T %v, wanted *DataError", err, err)
		}
		if de.Off != 0 {
			t.Fatalf("DataError.Off = %d, wanted 0", de.Off)
		}
	})

	t.Run("uvarint overflows int", func(t *testing.T) {
		var b [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(b[:], uint64(math.MaxInt)+1)
		d := makeByteDecoder(b[:n])
		_, err := d.Uvarinti()
		if err == nil {
			t.Fatalf("Uvarinti err = nil, wanted error")
		}
	})

	t.Run("Raw not enough data", func(t *testing.T) {
		d := makeByteDecoder([]byte{1, 2})
		d.Raw(1)
		_, err := d.Raw(3)
		var de *DataError
		if !errors.As(err, &de) || de.Off != 1 {
			t.Fatalf("Raw err = %v, wanted DataError at 1", err)
		}
	})
}
