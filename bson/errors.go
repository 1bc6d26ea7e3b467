package bson

import (
	"errors"
	"strconv"
	"strings"
)

// ErrorKind identifies which structural check rejected a buffer.
type ErrorKind string

const (
	LengthMismatch ErrorKind = "length_mismatch"
	Truncated      ErrorKind = "truncated"
	InvalidTag     ErrorKind = "invalid_tag"
	Malformed      ErrorKind = "malformed"
)

// Sentinels for errors.Is. Every *DecodeError unwraps to exactly one of them.
var (
	ErrLengthMismatch = errors.New("bson: length mismatch")
	ErrTruncated      = errors.New("bson: truncated")
	ErrInvalidTag     = errors.New("bson: invalid type tag")
	ErrMalformed      = errors.New("bson: malformed")
)

var kindSentinels = map[ErrorKind]error{
	LengthMismatch: ErrLengthMismatch,
	Truncated:      ErrTruncated,
	InvalidTag:     ErrInvalidTag,
	Malformed:      ErrMalformed,
}

// DecodeError describes why a byte buffer is not a well-formed document.
type DecodeError struct {
	Kind   ErrorKind
	Offset int      // byte offset of the failing check
	Path   []string // field path to the element being read, if any
	Detail string
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString(kindSentinels[e.Kind].Error())
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	b.WriteString(" (offset ")
	b.WriteString(strconv.Itoa(e.Offset))
	b.WriteByte(')')
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	return kindSentinels[e.Kind]
}

// ErrorKindOf returns the kind of a decode error anywhere in err's chain.
func ErrorKindOf(err error) (ErrorKind, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
