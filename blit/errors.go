package blit

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedDocument    = errors.New("malformed document")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrUnsupportedValueType = errors.New("unsupported value type")
	ErrBufferTooLarge       = errors.New("buffer too large")
)

// MalformedError reports a bounds or tag violation found while parsing.
// Off is the byte offset within Data where the problem was detected.
type MalformedError struct {
	Data []byte
	Off  int
	Msg  string
}

func malformedf(data []byte, off int, format string, args ...any) error {
	return &MalformedError{data, off, fmt.Sprintf(format, args...)}
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedDocument
}

func (e *MalformedError) Error() string {
	const prefixLen = 32
	const suffixLen = 16
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		return fmt.Sprintf("malformed document at offset %d: %s: (%d) %x", e.Off, e.Msg, n, e.Data)
	}
	p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
	return fmt.Sprintf("malformed document at offset %d: %s: (%d) %x...%x", e.Off, e.Msg, n, p, s)
}

type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0:%d]", e.Index, e.Len)
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{i, n}
	}
	return nil
}

// UnsupportedTypeError is returned by the writers when an overlay holds a value
// that cannot be encoded. Path is a dotted path to the offending value.
type UnsupportedTypeError struct {
	Path  string
	Value any
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedValueType
}

func (e *UnsupportedTypeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unsupported value type %T", e.Value)
	}
	return fmt.Sprintf("%s: unsupported value type %T", e.Path, e.Value)
}
