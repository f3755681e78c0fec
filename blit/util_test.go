package blit

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func newContext(t testing.TB) *Context {
	ctx := NewContext()
	t.Cleanup(ctx.Release)
	return ctx
}

func parse(t testing.TB, ctx *Context, text string) *Document {
	t.Helper()
	doc, err := ctx.ReadJSON([]byte(text))
	if err != nil {
		t.Fatalf("** ReadJSON(%s) failed: %v", text, err)
	}
	return doc
}

func jsonText(t testing.TB, v Value, preserveOrder bool) string {
	t.Helper()
	b, err := AppendJSON(nil, v, preserveOrder)
	if err != nil {
		t.Fatalf("** AppendJSON failed: %v", err)
	}
	return string(b)
}

// rebuild serializes v and parses the result back.
func rebuild(t testing.TB, ctx *Context, v Value) *Document {
	t.Helper()
	b, err := Serialize(v)
	if err != nil {
		t.Fatalf("** Serialize failed: %v", err)
	}
	doc, err := ctx.Parse(b)
	if err != nil {
		t.Fatalf("** Parse of serialized document failed: %v", err)
	}
	return doc
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Fatalf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Fatalf("** got error %v, wanted %v", err, target)
	}
}

func panics(t testing.TB, f func()) (msg string) {
	t.Helper()
	defer func() {
		if e := recover(); e != nil {
			msg = fmt.Sprint(e)
		}
	}()
	f()
	t.Fatalf("** expected a panic")
	return ""
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
