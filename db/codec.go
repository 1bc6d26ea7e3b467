// Package db adapts documents to the SQLite host: a Codec that moves
// documents in and out of BLOB columns declared with type "bson", and a
// go-sqlite3 driver that exposes them to SQL.
package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/maxpert/sqlbson/bson"
	"github.com/maxpert/sqlbson/storage"
	"github.com/maxpert/sqlbson/telemetry"
)

// TypeName is the SQL type name for document columns.
const TypeName = "bson"

// NullDocument is a document that may be absent.
type NullDocument struct {
	Document *bson.Document
	Valid    bool
}

// Codec converts between documents and stored datums.
type Codec struct {
	Host         storage.Host
	Materializer *storage.Materializer
	Toaster      *storage.Toaster
}

// NewCodec builds a Codec whose Toaster is also its Host. A nil toaster gives
// a codec that writes inline datums and can only read inline datums back.
func NewCodec(toaster *storage.Toaster) *Codec {
	c := &Codec{Toaster: toaster}
	if toaster != nil {
		c.Host = toaster
	}
	c.Materializer = storage.NewMaterializer(c.Host)
	return c
}

// SampleDocument returns {"name": "abc", "age": 43, "phones": ["0001", "0002"]}.
func SampleDocument() *bson.Document {
	return bson.NewDocument(
		bson.E("name", bson.String("abc")),
		bson.E("age", bson.Int32(43)),
		bson.E("phones", bson.Arr(bson.NewArray(bson.String("0001"), bson.String("0002")))),
	)
}

// Write encodes d and lays it out as a datum. Documents Encode would reject
// return an error wrapping bson.ErrUnencodable.
func (c *Codec) Write(d *bson.Document) ([]byte, error) {
	if err := bson.CheckEncodable(d); err != nil {
		return nil, err
	}
	start := time.Now()
	encoded := bson.Encode(d)
	telemetry.EncodeDurationSeconds.Observe(time.Since(start).Seconds())

	if c.Toaster == nil {
		return storage.InlineDatum(encoded), nil
	}
	return c.Toaster.Toast(encoded)
}

// Read materializes h and decodes it. The materialized buffer is released
// before Read returns, whatever the outcome.
func (c *Codec) Read(h storage.Handle) (NullDocument, error) {
	if h.IsNull() {
		return NullDocument{}, nil
	}

	var doc *bson.Document
	err := c.Materializer.With(h, func(data []byte) error {
		start := time.Now()
		d, err := bson.Decode(data)
		telemetry.DecodeDurationSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			telemetry.DecodeTotal.With("error").Inc()
			kind, _ := bson.ErrorKindOf(err)
			telemetry.DecodeErrorsTotal.With(string(kind)).Inc()
			return err
		}
		telemetry.DecodeTotal.With("ok").Inc()
		doc = d
		return nil
	})
	if err != nil {
		return NullDocument{}, err
	}
	return NullDocument{Document: doc, Valid: true}, nil
}

// ReadDatum reads a value as the SQLite driver hands it over.
func (c *Codec) ReadDatum(src interface{}) (NullDocument, error) {
	h, err := handleOf(src)
	if err != nil {
		return NullDocument{}, err
	}
	return c.Read(h)
}

// Value returns a driver.Valuer that writes d. A nil document is NULL.
func (c *Codec) Value(d *bson.Document) driver.Valuer {
	return documentValuer{codec: c, doc: d}
}

// Scanner returns a sql.Scanner that reads into dst.
func (c *Codec) Scanner(dst *NullDocument) sql.Scanner {
	return documentScanner{codec: c, dst: dst}
}

type documentValuer struct {
	codec *Codec
	doc   *bson.Document
}

func (v documentValuer) Value() (driver.Value, error) {
	if v.doc == nil {
		return nil, nil
	}
	return v.codec.Write(v.doc)
}

type documentScanner struct {
	codec *Codec
	dst   *NullDocument
}

func (s documentScanner) Scan(src interface{}) error {
	nd, err := s.codec.ReadDatum(src)
	if err != nil {
		return err
	}
	*s.dst = nd
	return nil
}

func handleOf(src interface{}) (storage.Handle, error) {
	switch v := src.(type) {
	case nil:
		return storage.NullHandle(), nil
	case []byte:
		if v == nil {
			return storage.NullHandle(), nil
		}
		return storage.HandleOf(v), nil
	case string:
		return storage.HandleOf([]byte(v)), nil
	default:
		return storage.Handle{}, fmt.Errorf("cannot read %T as %s", src, TypeName)
	}
}
