package docdb

import (
	"log/slog"
	"testing"
)

func TestInc(t *testing.T) {
	b := []byte{0x00, 0xFF}
	if !inc(b) || b[0] != 0x01 || b[1] != 0x00 {
		t.Fatalf("inc = %x, wanted 0100", b)
	}
	if inc([]byte{0xFF, 0xFF}) {
		t.Fatalf("inc(FFFF) = true, wanted false")
	}
}

func TestHexHelpers(t *testing.T) {
	if got := hexstr(nil); got != "<nil>" {
		t.Fatalf("hexstr(nil) = %q, wanted <nil>", got)
	}
	if got := hexstr([]byte{}); got != "<empty>" {
		t.Fatalf("hexstr(empty) = %q, wanted <empty>", got)
	}
	if got := hexstr([]byte{0xAA, 0xBB}); got != "aabb" {
		t.Fatalf("hexstr = %q, wanted aabb", got)
	}
	a := hexAttr("k", []byte{0xAA})
	if a.Key != "k" || a.Value.Kind() != slog.KindString {
		t.Fatalf("hexAttr returned unexpected attr: %+v", a)
	}
}
