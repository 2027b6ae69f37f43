package pkstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key has no value. It is a normal
	// outcome, check for it with errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by every Store operation invoked after Close.
	ErrClosed = errors.New("store closed")
)

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

// InvalidKeyError reports a composite key that cannot be encoded (a missing
// field) or raw key bytes that cannot be decoded.
type InvalidKeyError struct {
	Key Key
	Msg string
	Err error
}

func (e *InvalidKeyError) Unwrap() error {
	return e.Err
}

func (e *InvalidKeyError) Error() string {
	var buf strings.Builder
	buf.WriteString("invalid key")
	if e.Key != (Key{}) {
		buf.WriteByte(' ')
		buf.WriteString(e.Key.String())
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

// CorruptValueError reports stored bytes that are not a valid encoded record.
// Key is zero when the value was decoded outside of a store.
type CorruptValueError struct {
	Key Key
	Err error
}

func corruptErrf(data []byte, off int, err error, format string, args ...any) error {
	return &CorruptValueError{Err: dataErrf(data, off, err, format, args...)}
}

func (e *CorruptValueError) Unwrap() error {
	return e.Err
}

func (e *CorruptValueError) Error() string {
	if e.Key == (Key{}) {
		return fmt.Sprintf("corrupt value: %v", e.Err)
	}
	return fmt.Sprintf("corrupt value at %v: %v", e.Key, e.Err)
}

func withKey(err error, key Key) error {
	var cve *CorruptValueError
	if errors.As(err, &cve) && cve.Key == (Key{}) {
		return &CorruptValueError{Key: key, Err: cve.Err}
	}
	return err
}
