// Package bson implements the document tree stored in bson columns and its
// canonical binary encoding (BSON 1.1).
//
// Decode validates every length header against the bytes actually present and
// never returns a partial document. Encode cannot fail for trees built through
// this package's constructors.
//
// Thread Safety: Decode and Encode are safe for concurrent use. Document and
// Array values are not synchronized.
package bson

import (
	"encoding/hex"
	"fmt"
	"math"
)

// Kind is the one-byte element type tag.
type Kind byte

const (
	KindDouble     Kind = 0x01
	KindString     Kind = 0x02
	KindDocument   Kind = 0x03
	KindArray      Kind = 0x04
	KindBinary     Kind = 0x05
	KindUndefined  Kind = 0x06
	KindObjectID   Kind = 0x07
	KindBoolean    Kind = 0x08
	KindDateTime   Kind = 0x09
	KindNull       Kind = 0x0A
	KindRegex      Kind = 0x0B
	KindJavaScript Kind = 0x0D
	KindSymbol     Kind = 0x0E
	KindInt32      Kind = 0x10
	KindTimestamp  Kind = 0x11
	KindInt64      Kind = 0x12
	KindDecimal128 Kind = 0x13
	KindMaxKey     Kind = 0x7F
	KindMinKey     Kind = 0xFF
)

var kindNames = map[Kind]string{
	KindDouble:     "double",
	KindString:     "string",
	KindDocument:   "document",
	KindArray:      "array",
	KindBinary:     "binary",
	KindUndefined:  "undefined",
	KindObjectID:   "objectId",
	KindBoolean:    "bool",
	KindDateTime:   "date",
	KindNull:       "null",
	KindRegex:      "regex",
	KindJavaScript: "javascript",
	KindSymbol:     "symbol",
	KindInt32:      "int",
	KindTimestamp:  "timestamp",
	KindInt64:      "long",
	KindDecimal128: "decimal",
	KindMaxKey:     "maxKey",
	KindMinKey:     "minKey",
}

// String returns the type alias used by MongoDB's $type operator.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(0x%02x)", byte(k))
}

// Valid reports whether k is a tag this package can encode and decode.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Binary is a BSON binary payload with its subtype byte.
type Binary struct {
	Subtype byte
	Data    []byte
}

// ObjectID is a 12-byte MongoDB object identifier.
type ObjectID [12]byte

// Hex returns the 24 character hex form.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// ObjectIDFromHex parses a 24 character hex string.
func ObjectIDFromHex(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 24 {
		return id, fmt.Errorf("invalid object id length %d", len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	return id, nil
}

// Regex is a BSON regular expression.
type Regex struct {
	Pattern string
	Options string
}

// Timestamp is the internal MongoDB replication timestamp.
type Timestamp struct {
	T uint32 // seconds
	I uint32 // increment
}

// Value is a single node of the document tree. The zero Value is Null.
type Value struct {
	kind Kind
	v    interface{}
}

func String(s string) Value           { return Value{kind: KindString, v: s} }
func Int32(i int32) Value             { return Value{kind: KindInt32, v: i} }
func Int64(i int64) Value             { return Value{kind: KindInt64, v: i} }
func Double(f float64) Value          { return Value{kind: KindDouble, v: f} }
func Boolean(b bool) Value            { return Value{kind: KindBoolean, v: b} }
func Null() Value                     { return Value{kind: KindNull} }
func Undefined() Value                { return Value{kind: KindUndefined} }
func MinKey() Value                   { return Value{kind: KindMinKey} }
func MaxKey() Value                   { return Value{kind: KindMaxKey} }
func DateTime(ms int64) Value         { return Value{kind: KindDateTime, v: ms} }
func JavaScript(code string) Value    { return Value{kind: KindJavaScript, v: code} }
func Symbol(s string) Value           { return Value{kind: KindSymbol, v: s} }
func ObjectIDValue(id ObjectID) Value { return Value{kind: KindObjectID, v: id} }
func Decimal128Value(d Decimal128) Value {
	return Value{kind: KindDecimal128, v: d}
}

// BinaryValue wraps data with the given subtype. data is not copied.
func BinaryValue(subtype byte, data []byte) Value {
	return Value{kind: KindBinary, v: Binary{Subtype: subtype, Data: data}}
}

func RegexValue(pattern, options string) Value {
	return Value{kind: KindRegex, v: Regex{Pattern: pattern, Options: options}}
}

func TimestampValue(t, i uint32) Value {
	return Value{kind: KindTimestamp, v: Timestamp{T: t, I: i}}
}

// Doc wraps an embedded document. A nil document encodes as {}.
func Doc(d *Document) Value {
	if d == nil {
		d = NewDocument()
	}
	return Value{kind: KindDocument, v: d}
}

// Arr wraps an embedded array. A nil array encodes as [].
func Arr(a *Array) Value {
	if a == nil {
		a = NewArray()
	}
	return Value{kind: KindArray, v: a}
}

// Kind returns the element type tag of v.
func (v Value) Kind() Kind {
	if v.kind == 0 {
		return KindNull
	}
	return v.kind
}

func (v Value) IsNull() bool { return v.Kind() == KindNull }

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.v.(string), true
}

func (v Value) AsInt32() (int32, bool) {
	if v.kind != KindInt32 {
		return 0, false
	}
	return v.v.(int32), true
}

func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindInt64 {
		return 0, false
	}
	return v.v.(int64), true
}

func (v Value) AsDouble() (float64, bool) {
	if v.kind != KindDouble {
		return 0, false
	}
	return v.v.(float64), true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.v.(bool), true
}

func (v Value) AsDateTime() (int64, bool) {
	if v.kind != KindDateTime {
		return 0, false
	}
	return v.v.(int64), true
}

func (v Value) AsDocument() (*Document, bool) {
	if v.kind != KindDocument {
		return nil, false
	}
	return v.v.(*Document), true
}

func (v Value) AsArray() (*Array, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.v.(*Array), true
}

func (v Value) AsBinary() (Binary, bool) {
	if v.kind != KindBinary {
		return Binary{}, false
	}
	return v.v.(Binary), true
}

func (v Value) AsObjectID() (ObjectID, bool) {
	if v.kind != KindObjectID {
		return ObjectID{}, false
	}
	return v.v.(ObjectID), true
}

func (v Value) AsRegex() (Regex, bool) {
	if v.kind != KindRegex {
		return Regex{}, false
	}
	return v.v.(Regex), true
}

func (v Value) AsTimestamp() (Timestamp, bool) {
	if v.kind != KindTimestamp {
		return Timestamp{}, false
	}
	return v.v.(Timestamp), true
}

func (v Value) AsDecimal128() (Decimal128, bool) {
	if v.kind != KindDecimal128 {
		return Decimal128{}, false
	}
	return v.v.(Decimal128), true
}

// AsJavaScript returns the code of a JavaScript value.
func (v Value) AsJavaScript() (string, bool) {
	if v.kind != KindJavaScript {
		return "", false
	}
	return v.v.(string), true
}

func (v Value) AsSymbol() (string, bool) {
	if v.kind != KindSymbol {
		return "", false
	}
	return v.v.(string), true
}

// Equal reports structural equality. Doubles compare by bit pattern so that
// NaN equals itself after a round trip.
func (v Value) Equal(o Value) bool {
	if v.Kind() != o.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull, KindUndefined, KindMinKey, KindMaxKey:
		return true
	case KindDouble:
		return math.Float64bits(v.v.(float64)) == math.Float64bits(o.v.(float64))
	case KindDocument:
		return v.v.(*Document).Equal(o.v.(*Document))
	case KindArray:
		return v.v.(*Array).Equal(o.v.(*Array))
	case KindBinary:
		a, b := v.v.(Binary), o.v.(Binary)
		return a.Subtype == b.Subtype && string(a.Data) == string(b.Data)
	default:
		return v.v == o.v
	}
}
