package docdb

import (
	"errors"
	"strings"
	"testing"
)

func TestDataError_ErrorAndUnwrap(t *testing.T) {
	t.Run("small data", func(t *testing.T) {
		inner := errors.New("inner")
		err := dataErrf([]byte{0xAA, 0xBB}, 1, inner, "oops")
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("err = %T, wanted *DataError", err)
		}
		if !errors.Is(err, inner) {
			t.Fatalf("errors.Is(err, inner) = false, wanted true")
		}
		eq(t, err.Error(), "oops at 1: inner: (2) aabb")
	})

	t.Run("large data includes prefix+suffix", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = byte(i)
		}
		err := dataErrf(data, 0, nil, "oops")
		s := err.Error()
		if !strings.Contains(s, "(200)") || !strings.Contains(s, "...") {
			t.Fatalf("err.Error() = %q, wanted message with (200) and ...", s)
		}
	})
}

func TestDocumentError_ErrorAndUnwrap(t *testing.T) {
	err := docErrf("users", "u1", ErrNotFound, "oops %d", 1)
	isErr(t, err, ErrNotFound)
	eq(t, err.Error(), "users/u1: oops 1: document not found")

	eq(t, docErrf("users", "", ErrNotFound, "").Error(), "users: document not found")
	eq(t, (&DocumentError{Coll: "users", Key: "u1", Msg: "bad"}).Error(), "users/u1: bad")
}
