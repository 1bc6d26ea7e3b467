package bson

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// MaxDepth bounds document/array nesting accepted by Decode.
const MaxDepth = 100

// minDocumentSize is the length header plus the terminator.
const minDocumentSize = 5

// Decode parses a complete document from b.
//
// The 4-byte little-endian length header must equal len(b). Every embedded
// document and array is held to the same rule against the bytes it actually
// occupies. On error no document is returned. The result never aliases b.
func Decode(b []byte) (*Document, error) {
	if len(b) < 4 {
		return nil, &DecodeError{Kind: Truncated, Detail: fmt.Sprintf("need 4 length bytes, have %d", len(b))}
	}
	declared := int(int32(binary.LittleEndian.Uint32(b)))
	if declared != len(b) {
		return nil, &DecodeError{
			Kind:   LengthMismatch,
			Detail: fmt.Sprintf("declared length %d, buffer holds %d bytes", declared, len(b)),
		}
	}

	d := decoder{buf: b}
	doc := &Document{}
	_, err := d.elements(0, len(b), func(key string, v Value) error {
		doc.elems = append(doc.elems, Element{Key: key, Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate reports the error Decode would return for b, if any.
func Validate(b []byte) error {
	_, err := Decode(b)
	return err
}

type decoder struct {
	buf   []byte
	depth int
	path  []string
}

func (d *decoder) fail(kind ErrorKind, off int, detail string) *DecodeError {
	var path []string
	if len(d.path) > 0 {
		path = append(path, d.path...)
	}
	return &DecodeError{Kind: kind, Offset: off, Path: path, Detail: detail}
}

// need checks that n bytes starting at off lie inside the current frame. An
// overrun of the whole buffer is truncation; an overrun of an enclosing
// document's declared length is a length mismatch.
func (d *decoder) need(off, n, frameEnd int, what string) error {
	if off+n > len(d.buf) {
		return d.fail(Truncated, off, fmt.Sprintf("%s needs %d bytes, %d remain", what, n, len(d.buf)-off))
	}
	if off+n > frameEnd {
		return d.fail(LengthMismatch, off, fmt.Sprintf("%s overruns enclosing document by %d bytes", what, off+n-frameEnd))
	}
	return nil
}

func (d *decoder) overrunKind(frameEnd int) ErrorKind {
	if frameEnd == len(d.buf) {
		return Truncated
	}
	return LengthMismatch
}

// elements reads the document whose length header is at off and calls fn for
// each element. It returns the offset just past the document.
func (d *decoder) elements(off, frameEnd int, fn func(key string, v Value) error) (int, error) {
	if err := d.need(off, 4, frameEnd, "length header"); err != nil {
		return 0, err
	}
	size := int(int32(binary.LittleEndian.Uint32(d.buf[off:])))
	if size < minDocumentSize {
		return 0, d.fail(LengthMismatch, off, fmt.Sprintf("declared length %d below minimum %d", size, minDocumentSize))
	}
	if err := d.need(off, size, frameEnd, "document body"); err != nil {
		return 0, err
	}
	end := off + size

	pos := off + 4
	for {
		if pos >= end {
			return 0, d.fail(d.overrunKind(end), pos, "document ended without terminator")
		}
		tag := Kind(d.buf[pos])
		if tag == 0 {
			if pos+1 != end {
				return 0, d.fail(LengthMismatch, pos, fmt.Sprintf("terminator at %d but declared end is %d", pos, end))
			}
			return end, nil
		}
		key, next, err := d.cstring(pos+1, end, "field name")
		if err != nil {
			return 0, err
		}
		d.path = append(d.path, key)
		v, next, err := d.value(tag, pos, next, end)
		if err != nil {
			return 0, err
		}
		d.path = d.path[:len(d.path)-1]
		if err := fn(key, v); err != nil {
			return 0, err
		}
		pos = next
	}
}

// value decodes the payload of an element whose tag byte sits at tagOff.
func (d *decoder) value(tag Kind, tagOff, off, end int) (Value, int, error) {
	switch tag {
	case KindDouble:
		if err := d.need(off, 8, end, "double"); err != nil {
			return Value{}, 0, err
		}
		return Double(math.Float64frombits(binary.LittleEndian.Uint64(d.buf[off:]))), off + 8, nil

	case KindString, KindJavaScript, KindSymbol:
		s, next, err := d.string(off, end)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{kind: tag, v: s}, next, nil

	case KindDocument:
		return d.embedded(off, end, false)

	case KindArray:
		return d.embedded(off, end, true)

	case KindBinary:
		if err := d.need(off, 5, end, "binary header"); err != nil {
			return Value{}, 0, err
		}
		n := int(int32(binary.LittleEndian.Uint32(d.buf[off:])))
		if n < 0 {
			return Value{}, 0, d.fail(Malformed, off, fmt.Sprintf("negative binary length %d", n))
		}
		subtype := d.buf[off+4]
		if err := d.need(off+5, n, end, "binary data"); err != nil {
			return Value{}, 0, err
		}
		data := make([]byte, n)
		copy(data, d.buf[off+5:off+5+n])
		return BinaryValue(subtype, data), off + 5 + n, nil

	case KindObjectID:
		if err := d.need(off, 12, end, "object id"); err != nil {
			return Value{}, 0, err
		}
		var id ObjectID
		copy(id[:], d.buf[off:off+12])
		return ObjectIDValue(id), off + 12, nil

	case KindBoolean:
		if err := d.need(off, 1, end, "boolean"); err != nil {
			return Value{}, 0, err
		}
		switch d.buf[off] {
		case 0:
			return Boolean(false), off + 1, nil
		case 1:
			return Boolean(true), off + 1, nil
		default:
			return Value{}, 0, d.fail(Malformed, off, fmt.Sprintf("boolean byte 0x%02x", d.buf[off]))
		}

	case KindDateTime, KindInt64:
		if err := d.need(off, 8, end, tag.String()); err != nil {
			return Value{}, 0, err
		}
		return Value{kind: tag, v: int64(binary.LittleEndian.Uint64(d.buf[off:]))}, off + 8, nil

	case KindRegex:
		pattern, next, err := d.cstring(off, end, "regex pattern")
		if err != nil {
			return Value{}, 0, err
		}
		options, next, err := d.cstring(next, end, "regex options")
		if err != nil {
			return Value{}, 0, err
		}
		return RegexValue(pattern, options), next, nil

	case KindInt32:
		if err := d.need(off, 4, end, "int32"); err != nil {
			return Value{}, 0, err
		}
		return Int32(int32(binary.LittleEndian.Uint32(d.buf[off:]))), off + 4, nil

	case KindTimestamp:
		if err := d.need(off, 8, end, "timestamp"); err != nil {
			return Value{}, 0, err
		}
		i := binary.LittleEndian.Uint32(d.buf[off:])
		t := binary.LittleEndian.Uint32(d.buf[off+4:])
		return TimestampValue(t, i), off + 8, nil

	case KindDecimal128:
		if err := d.need(off, 16, end, "decimal128"); err != nil {
			return Value{}, 0, err
		}
		return Decimal128Value(Decimal128{
			Low:  binary.LittleEndian.Uint64(d.buf[off:]),
			High: binary.LittleEndian.Uint64(d.buf[off+8:]),
		}), off + 16, nil

	case KindNull, KindUndefined, KindMinKey, KindMaxKey:
		return Value{kind: tag}, off, nil

	default:
		return Value{}, 0, d.fail(InvalidTag, tagOff, fmt.Sprintf("unknown type tag 0x%02x", byte(tag)))
	}
}

func (d *decoder) embedded(off, end int, array bool) (Value, int, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > MaxDepth {
		return Value{}, 0, d.fail(Malformed, off, fmt.Sprintf("nesting deeper than %d", MaxDepth))
	}

	if !array {
		sub := &Document{}
		next, err := d.elements(off, end, func(key string, v Value) error {
			sub.elems = append(sub.elems, Element{Key: key, Value: v})
			return nil
		})
		if err != nil {
			return Value{}, 0, err
		}
		return Doc(sub), next, nil
	}

	arr := &Array{}
	next, err := d.elements(off, end, func(key string, v Value) error {
		if key != strconv.Itoa(len(arr.vals)) {
			return d.fail(Malformed, off, fmt.Sprintf("array key %q, expected %q", key, strconv.Itoa(len(arr.vals))))
		}
		arr.vals = append(arr.vals, v)
		return nil
	})
	if err != nil {
		return Value{}, 0, err
	}
	return Arr(arr), next, nil
}

func (d *decoder) string(off, end int) (string, int, error) {
	if err := d.need(off, 4, end, "string length"); err != nil {
		return "", 0, err
	}
	n := int(int32(binary.LittleEndian.Uint32(d.buf[off:])))
	if n < 1 {
		return "", 0, d.fail(Malformed, off, fmt.Sprintf("string length %d must be at least 1", n))
	}
	if err := d.need(off+4, n, end, "string payload"); err != nil {
		return "", 0, err
	}
	body := d.buf[off+4 : off+4+n]
	if body[n-1] != 0 {
		return "", 0, d.fail(Malformed, off+3+n, "string is not NUL terminated")
	}
	if !utf8.Valid(body[:n-1]) {
		return "", 0, d.fail(Malformed, off+4, "string is not valid UTF-8")
	}
	return string(body[:n-1]), off + 4 + n, nil
}

func (d *decoder) cstring(off, end int, what string) (string, int, error) {
	i := bytes.IndexByte(d.buf[off:end], 0)
	if i < 0 {
		return "", 0, d.fail(d.overrunKind(end), off, what+" is not NUL terminated")
	}
	raw := d.buf[off : off+i]
	if !utf8.Valid(raw) {
		return "", 0, d.fail(Malformed, off, what+" is not valid UTF-8")
	}
	return string(raw), off + i + 1, nil
}
