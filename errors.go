package docdb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("document not found")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrNotObject           = errors.New("document root is not an object")
	ErrInvalidKey          = errors.New("invalid document key")
)

// DataError reports a stored record or snapshot file that cannot be decoded.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

// DocumentError attributes a failure to a document of a collection.
type DocumentError struct {
	Coll string
	Key  string
	Msg  string
	Err  error
}

func docErrf(coll, key string, err error, format string, args ...any) error {
	return &DocumentError{coll, key, fmt.Sprintf(format, args...), err}
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

func (e *DocumentError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Coll)
	if e.Key != "" {
		buf.WriteByte('/')
		buf.WriteString(e.Key)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
