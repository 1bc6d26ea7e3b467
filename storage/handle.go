// Package storage turns stored column values (datums) into contiguous byte
// buffers and back.
//
// A datum is one header byte followed by a body:
//
//	0x00 inline      body is the encoded document
//	0x01 compressed  uint32 LE raw size, then a zstd frame
//	0x02 external    msgpack Pointer to a value in an ExternalStore
//
// Inline datums are read in place. The other two need the Host to fetch or
// decompress them into a fresh buffer, which the Materializer hands out behind
// a Buffer guard that releases it exactly once.
package storage

import "fmt"

// Repr identifies how a value is laid out in its datum.
type Repr byte

const (
	ReprInline     Repr = 0x00
	ReprCompressed Repr = 0x01
	ReprExternal   Repr = 0x02

	// ReprInvalid is reported for empty datums and unknown headers.
	ReprInvalid Repr = 0xFF
)

func (r Repr) String() string {
	switch r {
	case ReprInline:
		return "inline"
	case ReprCompressed:
		return "compressed"
	case ReprExternal:
		return "external"
	default:
		return fmt.Sprintf("invalid(0x%02x)", byte(r))
	}
}

// Handle is an opaque reference to a stored value as the host hands it over.
// The zero Handle is the absent (SQL NULL) value.
type Handle struct {
	datum []byte
	valid bool
}

// NullHandle returns the handle of an absent value.
func NullHandle() Handle {
	return Handle{}
}

// HandleOf wraps a datum read from the host. A nil datum is the absent value;
// a non-nil empty datum is present but malformed.
func HandleOf(datum []byte) Handle {
	return Handle{datum: datum, valid: datum != nil}
}

// IsNull reports whether the handle denotes no value.
func (h Handle) IsNull() bool {
	return !h.valid
}

// Repr classifies the datum by its header byte.
func (h Handle) Repr() Repr {
	if !h.valid || len(h.datum) == 0 {
		return ReprInvalid
	}
	switch r := Repr(h.datum[0]); r {
	case ReprInline, ReprCompressed, ReprExternal:
		return r
	default:
		return ReprInvalid
	}
}

// Datum returns the raw stored bytes including the header.
func (h Handle) Datum() []byte {
	return h.datum
}

// Body returns the datum without its header byte.
func (h Handle) Body() []byte {
	if len(h.datum) == 0 {
		return nil
	}
	return h.datum[1:]
}

// InlineDatum builds an inline datum around an encoded document.
func InlineDatum(encoded []byte) []byte {
	datum := make([]byte, 1+len(encoded))
	datum[0] = byte(ReprInline)
	copy(datum[1:], encoded)
	return datum
}
