package db

import (
	"fmt"
	"strings"

	"github.com/maxpert/sqlbson/bson"
	"github.com/maxpert/sqlbson/storage"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// RegisterDocumentFuncs registers the bson_* SQL functions on conn.
//
//	bson_document()            sample document
//	bson_from_json(text)       document from relaxed extended JSON
//	bson_to_json(doc)          relaxed extended JSON text
//	bson_get(doc, path)        scalar at a dotted path, NULL if missing
//	bson_typeof(doc, path)     type name at a dotted path, NULL if missing
//	bson_valid(doc)            1 if doc decodes, 0 otherwise
//	bson_size(doc)             encoded size in bytes
//	bson_repr(doc)             inline, compressed or external
//
// Decode and fetch failures are returned as statement errors.
func RegisterDocumentFuncs(conn *sqlite3.SQLiteConn, codec *Codec) error {
	f := &documentFuncs{codec: codec}
	funcs := []struct {
		name string
		impl interface{}
		pure bool
	}{
		{"bson_document", f.document, true},
		{"bson_from_json", f.fromJSON, true},
		{"bson_to_json", f.toJSON, true},
		{"bson_get", f.get, true},
		{"bson_typeof", f.typeOf, true},
		{"bson_valid", f.valid, true},
		{"bson_size", f.size, true},
		{"bson_repr", f.repr, true},
	}

	for _, fn := range funcs {
		if err := conn.RegisterFunc(fn.name, fn.impl, fn.pure); err != nil {
			return fmt.Errorf("failed to register function %s: %w", fn.name, err)
		}
	}
	return nil
}

type documentFuncs struct {
	codec *Codec
}

func (f *documentFuncs) document() (res interface{}, err error) {
	defer recoverFunc("bson_document", &err)
	return f.codec.Write(SampleDocument())
}

func (f *documentFuncs) fromJSON(text interface{}) (res interface{}, err error) {
	defer recoverFunc("bson_from_json", &err)

	var data []byte
	switch v := text.(type) {
	case nil:
		return nil, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("bson_from_json: expected TEXT, got %T", text)
	}

	doc, err := bson.FromJSON(data)
	if err != nil {
		return nil, err
	}
	return f.codec.Write(doc)
}

func (f *documentFuncs) toJSON(datum interface{}) (res interface{}, err error) {
	defer recoverFunc("bson_to_json", &err)

	nd, err := f.codec.ReadDatum(datum)
	if err != nil || !nd.Valid {
		return nil, err
	}
	out, err := nd.Document.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

func (f *documentFuncs) get(datum, path interface{}) (res interface{}, err error) {
	defer recoverFunc("bson_get", &err)

	v, ok, err := f.lookup(datum, path)
	if err != nil || !ok {
		return nil, err
	}
	return sqlValue(v)
}

func (f *documentFuncs) typeOf(datum, path interface{}) (res interface{}, err error) {
	defer recoverFunc("bson_typeof", &err)

	v, ok, err := f.lookup(datum, path)
	if err != nil || !ok {
		return nil, err
	}
	return v.Kind().String(), nil
}

func (f *documentFuncs) lookup(datum, path interface{}) (bson.Value, bool, error) {
	p, ok := path.(string)
	if !ok {
		if path == nil {
			return bson.Value{}, false, nil
		}
		return bson.Value{}, false, fmt.Errorf("path must be TEXT, got %T", path)
	}

	nd, err := f.codec.ReadDatum(datum)
	if err != nil || !nd.Valid {
		return bson.Value{}, false, err
	}
	if p == "" {
		return bson.Doc(nd.Document), true, nil
	}
	v, ok := nd.Document.LookupPath(strings.Split(p, ".")...)
	return v, ok, nil
}

// valid never fails the statement on bad input.
func (f *documentFuncs) valid(datum interface{}) (res interface{}, err error) {
	defer recoverFunc("bson_valid", &err)

	h, err := handleOf(datum)
	if err != nil {
		return false, nil
	}
	if h.IsNull() {
		return nil, nil
	}
	err = f.codec.Materializer.With(h, bson.Validate)
	return err == nil, nil
}

func (f *documentFuncs) size(datum interface{}) (res interface{}, err error) {
	defer recoverFunc("bson_size", &err)

	h, err := handleOf(datum)
	if err != nil || h.IsNull() {
		return nil, err
	}
	var n int64
	err = f.codec.Materializer.With(h, func(data []byte) error {
		n = int64(len(data))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (f *documentFuncs) repr(datum interface{}) (res interface{}, err error) {
	defer recoverFunc("bson_repr", &err)

	h, err := handleOf(datum)
	if err != nil || h.IsNull() {
		return nil, err
	}
	if r := h.Repr(); r != storage.ReprInvalid {
		return r.String(), nil
	}
	return nil, fmt.Errorf("bson_repr: unrecognized datum")
}

// sqlValue maps a document value onto the closest SQLite storage class.
// Documents, arrays and types without a native counterpart become JSON text.
func sqlValue(v bson.Value) (interface{}, error) {
	switch v.Kind() {
	case bson.KindNull, bson.KindUndefined:
		return nil, nil
	case bson.KindString:
		s, _ := v.AsString()
		return s, nil
	case bson.KindSymbol:
		s, _ := v.AsSymbol()
		return s, nil
	case bson.KindJavaScript:
		s, _ := v.AsJavaScript()
		return s, nil
	case bson.KindInt32:
		i, _ := v.AsInt32()
		return int64(i), nil
	case bson.KindInt64:
		i, _ := v.AsInt64()
		return i, nil
	case bson.KindDateTime:
		ms, _ := v.AsDateTime()
		return ms, nil
	case bson.KindDouble:
		d, _ := v.AsDouble()
		return d, nil
	case bson.KindBoolean:
		b, _ := v.AsBool()
		return b, nil
	case bson.KindObjectID:
		id, _ := v.AsObjectID()
		return id.Hex(), nil
	case bson.KindBinary:
		b, _ := v.AsBinary()
		return b.Data, nil
	case bson.KindDecimal128:
		d, _ := v.AsDecimal128()
		return d.String(), nil
	default:
		out, err := v.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return string(out), nil
	}
}

func recoverFunc(name string, err *error) {
	if r := recover(); r != nil {
		log.Error().Str("function", name).Interface("panic", r).Msg("Recovered panic in SQL function")
		*err = fmt.Errorf("%s: internal error: %v", name, r)
	}
}
