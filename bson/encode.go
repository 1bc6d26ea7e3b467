package bson

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrUnencodable is returned by CheckEncodable for trees Encode would reject.
var ErrUnencodable = errors.New("bson: document cannot be encoded")

// Encode serializes d into its canonical binary form.
//
// Encode has no error path. Keys, strings and regex parts must be valid UTF-8,
// and keys and regex parts must not contain a NUL byte; violating either, or
// passing a Value with an unknown kind, is a programming error and panics.
// Callers holding untrusted input check it with CheckEncodable first.
func Encode(d *Document) []byte {
	return AppendDocument(make([]byte, 0, 64), d)
}

// AppendDocument appends the encoding of d to dst.
func AppendDocument(dst []byte, d *Document) []byte {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0)
	for _, e := range d.Elements() {
		dst = appendElement(dst, e.Key, e.Value)
	}
	dst = append(dst, 0)
	binary.LittleEndian.PutUint32(dst[start:], uint32(len(dst)-start))
	return dst
}

func appendArray(dst []byte, a *Array) []byte {
	start := len(dst)
	dst = append(dst, 0, 0, 0, 0)
	for i, v := range a.Values() {
		dst = appendElement(dst, strconv.Itoa(i), v)
	}
	dst = append(dst, 0)
	binary.LittleEndian.PutUint32(dst[start:], uint32(len(dst)-start))
	return dst
}

func appendElement(dst []byte, key string, v Value) []byte {
	dst = append(dst, byte(v.Kind()))
	dst = appendCString(dst, key)
	return appendPayload(dst, v)
}

func appendPayload(dst []byte, v Value) []byte {
	switch v.Kind() {
	case KindDouble:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.v.(float64)))
	case KindString, KindJavaScript, KindSymbol:
		return appendString(dst, v.v.(string))
	case KindDocument:
		return AppendDocument(dst, v.v.(*Document))
	case KindArray:
		return appendArray(dst, v.v.(*Array))
	case KindBinary:
		bin := v.v.(Binary)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(bin.Data)))
		dst = append(dst, bin.Subtype)
		return append(dst, bin.Data...)
	case KindObjectID:
		id := v.v.(ObjectID)
		return append(dst, id[:]...)
	case KindBoolean:
		if v.v.(bool) {
			return append(dst, 1)
		}
		return append(dst, 0)
	case KindDateTime:
		return binary.LittleEndian.AppendUint64(dst, uint64(v.v.(int64)))
	case KindRegex:
		re := v.v.(Regex)
		dst = appendCString(dst, re.Pattern)
		return appendCString(dst, re.Options)
	case KindInt32:
		return binary.LittleEndian.AppendUint32(dst, uint32(v.v.(int32)))
	case KindTimestamp:
		ts := v.v.(Timestamp)
		dst = binary.LittleEndian.AppendUint32(dst, ts.I)
		return binary.LittleEndian.AppendUint32(dst, ts.T)
	case KindInt64:
		return binary.LittleEndian.AppendUint64(dst, uint64(v.v.(int64)))
	case KindDecimal128:
		dec := v.v.(Decimal128)
		dst = binary.LittleEndian.AppendUint64(dst, dec.Low)
		return binary.LittleEndian.AppendUint64(dst, dec.High)
	case KindNull, KindUndefined, KindMinKey, KindMaxKey:
		return dst
	default:
		panic(fmt.Sprintf("bson: cannot encode value of %s", v.Kind()))
	}
}

// CheckEncodable reports the first key or string in d that Encode would panic
// on. Documents that pass round-trip through Encode and Decode.
func CheckEncodable(d *Document) error {
	return checkDocument(d, nil)
}

func checkDocument(d *Document, path []string) error {
	for _, e := range d.Elements() {
		p := append(path, e.Key)
		if err := checkCString(e.Key, "field name", p); err != nil {
			return err
		}
		if err := checkValue(e.Value, p); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(v Value, path []string) error {
	switch v.Kind() {
	case KindString, KindJavaScript, KindSymbol:
		if !utf8.ValidString(v.v.(string)) {
			return unencodable(path, "string is not valid UTF-8")
		}
	case KindRegex:
		re := v.v.(Regex)
		if err := checkCString(re.Pattern, "regex pattern", path); err != nil {
			return err
		}
		return checkCString(re.Options, "regex options", path)
	case KindDocument:
		return checkDocument(v.v.(*Document), path)
	case KindArray:
		for i, item := range v.v.(*Array).Values() {
			if err := checkValue(item, append(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkCString(s, what string, path []string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return unencodable(path, what+" contains a NUL byte")
	}
	if !utf8.ValidString(s) {
		return unencodable(path, what+" is not valid UTF-8")
	}
	return nil
}

func unencodable(path []string, detail string) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: %s", ErrUnencodable, detail)
	}
	return fmt.Errorf("%w at %s: %s", ErrUnencodable, strings.Join(path, "."), detail)
}

func appendString(dst []byte, s string) []byte {
	if !utf8.ValidString(s) {
		panic(fmt.Sprintf("bson: string %q is not valid UTF-8", s))
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)+1))
	dst = append(dst, s...)
	return append(dst, 0)
}

func appendCString(dst []byte, s string) []byte {
	if strings.IndexByte(s, 0) >= 0 {
		panic(fmt.Sprintf("bson: cstring %q contains a NUL byte", s))
	}
	if !utf8.ValidString(s) {
		panic(fmt.Sprintf("bson: cstring %q is not valid UTF-8", s))
	}
	dst = append(dst, s...)
	return append(dst, 0)
}
