package bson

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// MarshalJSON renders d as MongoDB relaxed extended JSON (v2). Numbers that
// JSON can carry exactly are written as plain numbers.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeDocumentJSON(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON renders a as a JSON array.
func (a *Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeArrayJSON(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON renders a single value.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValueJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeDocumentJSON(buf *bytes.Buffer, d *Document) error {
	buf.WriteByte('{')
	for i, e := range d.Elements() {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, e.Key)
		buf.WriteByte(':')
		if err := writeValueJSON(buf, e.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeArrayJSON(buf *bytes.Buffer, a *Array) error {
	buf.WriteByte('[')
	for i, v := range a.Values() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValueJSON(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeValueJSON(buf *bytes.Buffer, v Value) error {
	switch v.Kind() {
	case KindDouble:
		f := v.v.(float64)
		switch {
		case math.IsNaN(f):
			buf.WriteString(`{"$numberDouble":"NaN"}`)
		case math.IsInf(f, 1):
			buf.WriteString(`{"$numberDouble":"Infinity"}`)
		case math.IsInf(f, -1):
			buf.WriteString(`{"$numberDouble":"-Infinity"}`)
		case f == math.Trunc(f) && math.Abs(f) < 1e15:
			// Keep a fraction so the value reads back as a double.
			buf.WriteString(strconv.FormatFloat(f, 'f', 1, 64))
		default:
			buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
	case KindString:
		writeJSONString(buf, v.v.(string))
	case KindDocument:
		return writeDocumentJSON(buf, v.v.(*Document))
	case KindArray:
		return writeArrayJSON(buf, v.v.(*Array))
	case KindBinary:
		bin := v.v.(Binary)
		fmt.Fprintf(buf, `{"$binary":{"base64":%q,"subType":"%02x"}}`,
			base64.StdEncoding.EncodeToString(bin.Data), bin.Subtype)
	case KindUndefined:
		buf.WriteString(`{"$undefined":true}`)
	case KindObjectID:
		fmt.Fprintf(buf, `{"$oid":"%s"}`, v.v.(ObjectID).Hex())
	case KindBoolean:
		buf.WriteString(strconv.FormatBool(v.v.(bool)))
	case KindDateTime:
		fmt.Fprintf(buf, `{"$date":{"$numberLong":"%d"}}`, v.v.(int64))
	case KindNull:
		buf.WriteString("null")
	case KindRegex:
		re := v.v.(Regex)
		buf.WriteString(`{"$regularExpression":{"pattern":`)
		writeJSONString(buf, re.Pattern)
		buf.WriteString(`,"options":`)
		writeJSONString(buf, re.Options)
		buf.WriteString("}}")
	case KindJavaScript:
		buf.WriteString(`{"$code":`)
		writeJSONString(buf, v.v.(string))
		buf.WriteByte('}')
	case KindSymbol:
		buf.WriteString(`{"$symbol":`)
		writeJSONString(buf, v.v.(string))
		buf.WriteByte('}')
	case KindInt32:
		buf.WriteString(strconv.FormatInt(int64(v.v.(int32)), 10))
	case KindTimestamp:
		ts := v.v.(Timestamp)
		fmt.Fprintf(buf, `{"$timestamp":{"t":%d,"i":%d}}`, ts.T, ts.I)
	case KindInt64:
		buf.WriteString(strconv.FormatInt(v.v.(int64), 10))
	case KindDecimal128:
		fmt.Fprintf(buf, `{"$numberDecimal":"%s"}`, v.v.(Decimal128).String())
	case KindMinKey:
		buf.WriteString(`{"$minKey":1}`)
	case KindMaxKey:
		buf.WriteString(`{"$maxKey":1}`)
	default:
		return fmt.Errorf("bson: cannot render %s as JSON", v.Kind())
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// FromJSON parses a JSON object into a document, preserving key order.
// Integers that fit in 32 bits become Int32, larger ones Int64, and anything
// with a fraction or exponent becomes Double. Extended JSON wrappers are not
// interpreted on input.
func FromJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("invalid JSON document: top level value must be an object")
	}
	doc, err := readJSONObject(dec, 1)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid JSON document: trailing data after object")
	}
	return doc, nil
}

func readJSONObject(dec *json.Decoder, depth int) (*Document, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", MaxDepth)
	}
	doc := NewDocument()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := tok.(string)
		if strings.IndexByte(key, 0) >= 0 {
			return nil, fmt.Errorf("field name %q contains a NUL byte", key)
		}
		v, err := readJSONValue(dec, depth)
		if err != nil {
			return nil, err
		}
		doc.Append(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func readJSONArray(dec *json.Decoder, depth int) (*Array, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", MaxDepth)
	}
	arr := NewArray()
	for dec.More() {
		v, err := readJSONValue(dec, depth)
		if err != nil {
			return nil, err
		}
		arr.Append(v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func readJSONValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			sub, err := readJSONObject(dec, depth+1)
			if err != nil {
				return Value{}, err
			}
			return Doc(sub), nil
		case '[':
			arr, err := readJSONArray(dec, depth+1)
			if err != nil {
				return Value{}, err
			}
			return Arr(arr), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return String(t), nil
	case json.Number:
		return numberValue(t)
	case bool:
		return Boolean(t), nil
	case nil:
		return Null(), nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func numberValue(n json.Number) (Value, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return Int32(int32(i)), nil
		}
		return Int64(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("number %s out of range", n)
	}
	return Double(f), nil
}
