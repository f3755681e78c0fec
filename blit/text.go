package blit

import (
	"encoding/base64"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// AppendJSON renders v as compact JSON text with all pending edits applied.
//
// With preserveOrder, original properties keep their declaration order and
// added ones follow in insertion order; otherwise properties are sorted by
// name. Blobs are rendered as base64 strings.
func AppendJSON(buf []byte, v Value, preserveOrder bool) ([]byte, error) {
	tw := textWriter{preserveOrder: preserveOrder}
	return tw.appendValue(buf, v)
}

func WriteJSON(w io.Writer, v Value, preserveOrder bool) error {
	buf, err := AppendJSON(nil, v, preserveOrder)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// JSON renders the document, including attached edits, as JSON text.
func (d *Document) JSON(preserveOrder bool) ([]byte, error) {
	return AppendJSON(nil, d.Root(), preserveOrder)
}

type textWriter struct {
	preserveOrder bool
	path          []string
	edits         editStack
}

type property struct {
	name  string
	value Value
}

func (tw *textWriter) appendValue(buf []byte, v Value) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return append(buf, "null"...), nil
	case KindBool:
		return strconv.AppendBool(buf, v.bits != 0), nil
	case KindInt:
		return strconv.AppendInt(buf, int64(v.bits), 10), nil
	case KindFloat:
		f := math.Float64frombits(v.bits)
		if !isFinite(f) {
			return buf, &UnsupportedTypeError{Path: strings.Join(tw.path, "."), Value: f}
		}
		return appendFloat(buf, f), nil
	case KindString:
		return appendQuoted(buf, v.str), nil
	case KindBlob:
		buf = append(buf, '"')
		buf = base64.StdEncoding.AppendEncode(buf, v.blob)
		return append(buf, '"'), nil
	case KindObject, KindArray:
		e, ok := tw.edits.enter(v)
		if !ok {
			return buf, &UnsupportedTypeError{Path: strings.Join(tw.path, "."), Value: e}
		}
		defer tw.edits.leave(e)
		if v.kind == KindObject {
			return tw.appendObject(buf, v)
		}
		return tw.appendArray(buf, v)
	default:
		return buf, &UnsupportedTypeError{Path: strings.Join(tw.path, "."), Value: v.bad}
	}
}

func (tw *textWriter) appendObject(buf []byte, v Value) ([]byte, error) {
	items := objectItems(v)
	if !tw.preserveOrder {
		if v.ObjectEdits() == nil {
			items = v.obj.All()
		} else {
			var props []property
			for name, child := range items {
				props = append(props, property{name, child})
			}
			slices.SortFunc(props, func(a, b property) int {
				return strings.Compare(a.name, b.name)
			})
			items = func(yield func(string, Value) bool) {
				for _, p := range props {
					if !yield(p.name, p.value) {
						return
					}
				}
			}
		}
	}

	buf = append(buf, '{')
	first := true
	for name, child := range items {
		if !first {
			buf = append(buf, ',')
		}
		first = false
		buf = appendQuoted(buf, name)
		buf = append(buf, ':')
		var err error
		tw.path = append(tw.path, name)
		buf, err = tw.appendValue(buf, child)
		tw.path = tw.path[:len(tw.path)-1]
		if err != nil {
			return buf, err
		}
	}
	return append(buf, '}'), nil
}

func (tw *textWriter) appendArray(buf []byte, v Value) ([]byte, error) {
	buf = append(buf, '[')
	for i, child := range arrayItems(v) {
		if i > 0 {
			buf = append(buf, ',')
		}
		var err error
		tw.path = append(tw.path, strconv.Itoa(i))
		buf, err = tw.appendValue(buf, child)
		tw.path = tw.path[:len(tw.path)-1]
		if err != nil {
			return buf, err
		}
	}
	return append(buf, ']'), nil
}

// appendFloat keeps a fraction or exponent in the output so that the value
// reads back as a float.
func appendFloat(buf []byte, f float64) []byte {
	start := len(buf)
	buf = strconv.AppendFloat(buf, f, 'g', -1, 64)
	for _, c := range buf[start:] {
		if c == '.' || c == 'e' {
			return buf
		}
	}
	return append(buf, ".0"...)
}

const hexDigits = "0123456789abcdef"

func appendQuoted(buf []byte, s string) []byte {
	buf = append(buf, '"')
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			if c >= 0x20 && c != '"' && c != '\\' {
				i++
				continue
			}
			buf = append(buf, s[start:i]...)
			switch c {
			case '"', '\\':
				buf = append(buf, '\\', c)
			case '\n':
				buf = append(buf, '\\', 'n')
			case '\r':
				buf = append(buf, '\\', 'r')
			case '\t':
				buf = append(buf, '\\', 't')
			default:
				buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
			}
			i++
			start = i
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf = append(buf, s[start:i]...)
			buf = append(buf, `\ufffd`...)
			i += size
			start = i
			continue
		}
		if r == '\u2028' || r == '\u2029' {
			buf = append(buf, s[start:i]...)
			buf = append(buf, '\\', 'u', '2', '0', '2', hexDigits[r&0xF])
			i += size
			start = i
			continue
		}
		i += size
	}
	buf = append(buf, s[start:]...)
	return append(buf, '"')
}
