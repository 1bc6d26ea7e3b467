package storage

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

const externalKeyPrefix = "toast/"

// Pointer is the body of an external datum.
type Pointer struct {
	Key        string `msgpack:"k"`
	RawSize    uint32 `msgpack:"r"` // Encoded document size
	StoredSize uint32 `msgpack:"s"` // Size of the value in the external store
	Checksum   uint64 `msgpack:"c"` // xxhash64 of the encoded document
	Compressed bool   `msgpack:"z"`
}

// externalKey is content addressed so identical documents share one value.
func externalKey(sum uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], sum)
	return externalKeyPrefix + hex.EncodeToString(b[:])
}

func newPointer(raw, stored []byte, compressed bool) Pointer {
	sum := xxhash.Sum64(raw)
	return Pointer{
		Key:        externalKey(sum),
		RawSize:    uint32(len(raw)),
		StoredSize: uint32(len(stored)),
		Checksum:   sum,
		Compressed: compressed,
	}
}

func encodePointer(p Pointer) ([]byte, error) {
	body, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pointer: %w", err)
	}
	datum := make([]byte, 1, 1+len(body))
	datum[0] = byte(ReprExternal)
	return append(datum, body...), nil
}

func decodePointer(body []byte) (Pointer, error) {
	var p Pointer
	if err := msgpack.Unmarshal(body, &p); err != nil {
		return Pointer{}, fmt.Errorf("failed to decode pointer: %w", err)
	}
	if p.Key == "" {
		return Pointer{}, fmt.Errorf("pointer has no key")
	}
	if p.RawSize > maxDecodedSize || p.StoredSize > maxDecodedSize {
		return Pointer{}, fmt.Errorf("pointer declares %d raw and %d stored bytes, limit is %d", p.RawSize, p.StoredSize, maxDecodedSize)
	}
	if !p.Compressed && p.StoredSize != p.RawSize {
		return Pointer{}, fmt.Errorf("uncompressed pointer declares %d raw and %d stored bytes", p.RawSize, p.StoredSize)
	}
	return p, nil
}

// PointerOf returns the pointer stored in an external handle.
func PointerOf(h Handle) (Pointer, error) {
	if h.Repr() != ReprExternal {
		return Pointer{}, fmt.Errorf("handle is %s, not external", h.Repr())
	}
	return decodePointer(h.Body())
}
