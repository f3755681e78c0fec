package blit

import (
	"encoding"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

type Kind byte

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindBlob
	KindObject
	KindArray
)

var kindNames = [...]string{"invalid", "null", "bool", "int", "float", "string", "blob", "object", "array"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a single document value: either a scalar, a view of a nested
// object or array within a parsed document, or a pending edit set.
//
// The zero Value has KindInvalid. Values of KindInvalid produced by ValueOf
// remember the Go value that could not be converted, and the writers report
// it as ErrUnsupportedValueType.
type Value struct {
	kind   Kind
	bits   uint64
	str    string
	blob   []byte
	obj    Object
	arr    Array
	oedits *ObjectEdits
	aedits *ArrayEdits
	bad    any
}

func Null() Value             { return Value{kind: KindNull} }
func Int(v int64) Value       { return Value{kind: KindInt, bits: uint64(v)} }
func Float(v float64) Value   { return Value{kind: KindFloat, bits: math.Float64bits(v)} }
func String(v string) Value   { return Value{kind: KindString, str: v} }
func Blob(v []byte) Value     { return Value{kind: KindBlob, blob: v} }
func ObjectOf(o Object) Value { return Value{kind: KindObject, obj: o} }
func ArrayOf(a Array) Value   { return Value{kind: KindArray, arr: a} }

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

func EditedObject(e *ObjectEdits) Value {
	if e == nil {
		return Null()
	}
	return Value{kind: KindObject, obj: e.base, oedits: e}
}

func EditedArray(e *ArrayEdits) Value {
	if e == nil {
		return Null()
	}
	return Value{kind: KindArray, arr: e.base, aedits: e}
}

// ValueOf converts a Go value into a Value. It accepts nil, bools, all integer
// and float types, strings, []byte, time.Time, encoding.TextMarshaler,
// map[string]any, []any, Object, Array, *ObjectEdits, *ArrayEdits and Value.
// Anything else yields an invalid Value remembering v.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(int64(v))
	case int8:
		return Int(int64(v))
	case int16:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint:
		return uintValue(uint64(v), v)
	case uint8:
		return Int(int64(v))
	case uint16:
		return Int(int64(v))
	case uint32:
		return Int(int64(v))
	case uint64:
		return uintValue(v, v)
	case float32:
		return Float(float64(v))
	case float64:
		return Float(v)
	case string:
		return String(v)
	case []byte:
		return Blob(v)
	case time.Time:
		return String(v.Format(time.RFC3339Nano))
	case Object:
		return ObjectOf(v)
	case Array:
		return ArrayOf(v)
	case *ObjectEdits:
		return EditedObject(v)
	case *ArrayEdits:
		return EditedArray(v)
	case map[string]any:
		e := NewObject()
		for _, k := range slices.Sorted(maps.Keys(v)) {
			e.Set(k, v[k])
		}
		return EditedObject(e)
	case []any:
		e := NewArray()
		e.Append(v...)
		return EditedArray(e)
	case encoding.TextMarshaler:
		text, err := v.MarshalText()
		if err != nil {
			return Value{bad: v}
		}
		return String(string(text))
	default:
		return Value{bad: v}
	}
}

func uintValue(u uint64, orig any) Value {
	if u > math.MaxInt64 {
		return Value{bad: orig}
	}
	return Int(int64(u))
}

func (v Value) Kind() Kind       { return v.kind }
func (v Value) IsNull() bool     { return v.kind == KindNull }
func (v Value) IsValid() bool    { return v.kind != KindInvalid }
func (v Value) Unsupported() any { return v.bad }

func (v Value) AsBool() (bool, bool) {
	return v.bits != 0, v.kind == KindBool
}

func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return int64(v.bits), true
	case KindFloat:
		f := math.Float64frombits(v.bits)
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f), true
		}
	}
	return 0, false
}

func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return math.Float64frombits(v.bits), true
	case KindInt:
		return float64(int64(v.bits)), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) Blob() []byte {
	return v.blob
}

// Object returns the underlying object view; it is the zero Object for
// objects created from scratch and for non-objects.
func (v Value) Object() Object {
	return v.obj
}

func (v Value) Array() Array {
	return v.arr
}

// ObjectEdits returns the pending edits of an object value, including
// edits attached to its view, or nil.
func (v Value) ObjectEdits() *ObjectEdits {
	if v.kind != KindObject {
		return nil
	}
	if v.oedits != nil {
		return v.oedits
	}
	return v.obj.Edits()
}

func (v Value) ArrayEdits() *ArrayEdits {
	if v.kind != KindArray {
		return nil
	}
	if v.aedits != nil {
		return v.aedits
	}
	return v.arr.Edits()
}

// String renders v as compact JSON in declaration order.
func (v Value) String() string {
	if v.kind == KindInvalid {
		return fmt.Sprintf("<unsupported %T>", v.bad)
	}
	b, err := AppendJSON(nil, v, true)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
