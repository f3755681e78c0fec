package blit

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// ReadMsgpack converts a msgpack-encoded value into a new document owned by
// the context. Map keys must be strings; map order becomes declaration order.
func (ctx *Context) ReadMsgpack(data []byte) (*Document, error) {
	ctx.checkAlive()
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.ResetDict(&r, nil)
	v, err := msgpackValue(dec, data, &r)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, malformedf(data, len(data)-r.Len(), "%d trailing bytes after msgpack value", r.Len())
	}
	return ctx.Build(v)
}

func msgpackValue(dec *msgpack.Decoder, data []byte, r *bytes.Reader) (Value, error) {
	off := len(data) - r.Len()
	c, err := dec.PeekCode()
	if err != nil {
		return Value{}, malformedf(data, off, "msgpack: %v", err)
	}
	switch {
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return Value{}, malformedf(data, off, "msgpack: %v", err)
		}
		e := NewObject()
		for range n {
			keyOff := len(data) - r.Len()
			key, err := dec.DecodeString()
			if err != nil {
				return Value{}, malformedf(data, keyOff, "msgpack map key: %v", err)
			}
			if _, dup := e.vals[key]; dup {
				return Value{}, malformedf(data, keyOff, "duplicate property name %q", key)
			}
			v, err := msgpackValue(dec, data, r)
			if err != nil {
				return Value{}, err
			}
			e.Set(key, v)
		}
		return EditedObject(e), nil

	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return Value{}, malformedf(data, off, "msgpack: %v", err)
		}
		e := NewArray()
		for range n {
			v, err := msgpackValue(dec, data, r)
			if err != nil {
				return Value{}, err
			}
			e.Append(v)
		}
		return EditedArray(e), nil

	case c == msgpcode.Bin8 || c == msgpcode.Bin16 || c == msgpcode.Bin32:
		b, err := dec.DecodeBytes()
		if err != nil {
			return Value{}, malformedf(data, off, "msgpack: %v", err)
		}
		return Blob(b), nil

	default:
		x, err := dec.DecodeInterfaceLoose()
		if err != nil {
			return Value{}, malformedf(data, off, "msgpack: %v", err)
		}
		v := ValueOf(x)
		if !v.IsValid() {
			return Value{}, &UnsupportedTypeError{Path: fmt.Sprintf("msgpack@%d", off), Value: x}
		}
		return v, nil
	}
}

type appendWriter struct {
	buf []byte
}

func (w *appendWriter) Write(b []byte) (int, error) {
	w.buf = append(w.buf, b...)
	return len(b), nil
}

// AppendMsgpack encodes v, with pending edits applied, as msgpack. Objects
// become maps in declaration order.
func AppendMsgpack(buf []byte, v Value) ([]byte, error) {
	w := appendWriter{buf}
	enc := msgpack.GetEncoder()
	enc.Reset(&w)
	mw := msgpackWriter{enc: enc}
	err := mw.encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return buf, err
	}
	return w.buf, nil
}

type msgpackWriter struct {
	enc   *msgpack.Encoder
	path  []string
	edits editStack
}

func (mw *msgpackWriter) encode(v Value) error {
	enc := mw.enc
	switch v.kind {
	case KindNull:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.bits != 0)
	case KindInt:
		return enc.EncodeInt(int64(v.bits))
	case KindFloat:
		f, _ := v.AsFloat()
		return enc.EncodeFloat64(f)
	case KindString:
		return enc.EncodeString(v.str)
	case KindBlob:
		return enc.EncodeBytes(v.blob)
	case KindObject, KindArray:
		e, ok := mw.edits.enter(v)
		if !ok {
			return &UnsupportedTypeError{Path: strings.Join(mw.path, "."), Value: e}
		}
		defer mw.edits.leave(e)
		if v.kind == KindObject {
			return mw.encodeObject(v)
		}
		return mw.encodeArray(v)
	default:
		return &UnsupportedTypeError{Path: strings.Join(mw.path, "."), Value: v.bad}
	}
}

func (mw *msgpackWriter) encodeObject(v Value) error {
	enc := mw.enc
	n := v.obj.Len()
	if e := v.ObjectEdits(); e != nil {
		n = e.Len()
	}
	if err := enc.EncodeMapLen(n); err != nil {
		return err
	}
	for name, child := range objectItems(v) {
		if err := enc.EncodeString(name); err != nil {
			return err
		}
		mw.path = append(mw.path, name)
		err := mw.encode(child)
		mw.path = mw.path[:len(mw.path)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func (mw *msgpackWriter) encodeArray(v Value) error {
	enc := mw.enc
	n := v.arr.Len()
	if e := v.ArrayEdits(); e != nil {
		n = e.Len()
	}
	if err := enc.EncodeArrayLen(n); err != nil {
		return err
	}
	for i, child := range arrayItems(v) {
		mw.path = append(mw.path, strconv.Itoa(i))
		err := mw.encode(child)
		mw.path = mw.path[:len(mw.path)-1]
		if err != nil {
			return err
		}
	}
	return nil
}
