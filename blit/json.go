package blit

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ReadJSON parses JSON text into a new document owned by the context. Key
// order is preserved as declaration order. Duplicate keys are rejected.
//
// Integers that do not fit into int64 are stored as floats. Numbers that
// overflow float64 fail with an *UnsupportedTypeError.
func (ctx *Context) ReadJSON(text []byte) (*Document, error) {
	ctx.checkAlive()
	if !gjson.ValidBytes(text) {
		return nil, malformedf(text, 0, "invalid JSON")
	}
	jr := jsonReader{text: text}
	v, err := jr.value(gjson.ParseBytes(text))
	if err != nil {
		return nil, err
	}
	return ctx.Build(v)
}

type jsonReader struct {
	text []byte
	path []string
}

func (jr *jsonReader) value(r gjson.Result) (Value, error) {
	switch r.Type {
	case gjson.Null:
		return Null(), nil
	case gjson.False:
		return Bool(false), nil
	case gjson.True:
		return Bool(true), nil
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				return Int(i), nil
			}
		}
		if !isFinite(r.Num) {
			return Value{}, &UnsupportedTypeError{Path: strings.Join(jr.path, "."), Value: r.Raw}
		}
		return Float(r.Num), nil
	case gjson.String:
		return String(r.Str), nil
	}

	var err error
	if r.IsArray() {
		e := NewArray()
		r.ForEach(func(_, item gjson.Result) bool {
			var v Value
			jr.path = append(jr.path, strconv.Itoa(e.Len()))
			v, err = jr.value(item)
			jr.path = jr.path[:len(jr.path)-1]
			e.Append(v)
			return err == nil
		})
		return EditedArray(e), err
	}

	e := NewObject()
	r.ForEach(func(key, item gjson.Result) bool {
		name := key.String()
		if _, dup := e.vals[name]; dup {
			err = malformedf(jr.text, key.Index, "duplicate property name %q", name)
			return false
		}
		var v Value
		jr.path = append(jr.path, name)
		v, err = jr.value(item)
		jr.path = jr.path[:len(jr.path)-1]
		e.Set(name, v)
		return err == nil
	})
	return EditedObject(e), err
}
