package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/maxpert/sqlbson/cfg"
	"github.com/maxpert/sqlbson/telemetry"
	"github.com/rs/zerolog/log"
)

// ToasterOptions decides when values leave the inline representation.
type ToasterOptions struct {
	CompressThreshold int // Encoded size above which compression is attempted
	ExternalThreshold int // Stored size above which the value moves out of line
	CompressionLevel  int // 1 (fastest) .. 4 (best)
}

// DefaultToasterOptions returns options derived from cfg.Config
func DefaultToasterOptions() ToasterOptions {
	return ToasterOptions{
		CompressThreshold: cfg.Config.Storage.CompressThresholdBytes,
		ExternalThreshold: cfg.Config.Storage.ExternalThresholdBytes,
		CompressionLevel:  cfg.Config.Storage.CompressionLevel,
	}
}

// Toaster writes encoded documents as datums and is the Host that fetches
// them back. Buffers it hands out come from a size-classed pool and return to
// it on Release.
type Toaster struct {
	opts        ToasterOptions
	store       ExternalStore
	codec       *codec
	buffers     bufferPool
	outstanding atomic.Int64
}

// NewToaster creates a Toaster. store may be nil, in which case values are
// never moved out of line.
func NewToaster(store ExternalStore, opts ToasterOptions) (*Toaster, error) {
	c, err := newCodec(opts.CompressionLevel)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("compress_threshold", opts.CompressThreshold).
		Int("external_threshold", opts.ExternalThreshold).
		Str("zstd_level", c.level.String()).
		Bool("external_store", store != nil).
		Msg("Created toaster")

	return &Toaster{opts: opts, store: store, codec: c}, nil
}

// Toast lays out an encoded document as a datum.
func (t *Toaster) Toast(encoded []byte) ([]byte, error) {
	telemetry.RawBytes.Observe(float64(len(encoded)))

	body := encoded
	compressed := false
	if len(encoded) > t.opts.CompressThreshold {
		if c := t.codec.compress(encoded); len(c)+4 < len(encoded) {
			body = c
			compressed = true
		}
	}

	if t.store != nil && len(body) > t.opts.ExternalThreshold {
		ptr := newPointer(encoded, body, compressed)
		if err := t.store.Put(ptr.Key, body); err != nil {
			return nil, fmt.Errorf("failed to store out-of-line value: %w", err)
		}
		datum, err := encodePointer(ptr)
		if err != nil {
			return nil, err
		}
		return t.record(ReprExternal, datum), nil
	}

	if compressed {
		datum := make([]byte, 5, 5+len(body))
		datum[0] = byte(ReprCompressed)
		binary.LittleEndian.PutUint32(datum[1:], uint32(len(encoded)))
		return t.record(ReprCompressed, append(datum, body...)), nil
	}

	return t.record(ReprInline, InlineDatum(encoded)), nil
}

func (t *Toaster) record(repr Repr, datum []byte) []byte {
	telemetry.ToastTotal.With(repr.String()).Inc()
	telemetry.StoredBytes.With(repr.String()).Observe(float64(len(datum)))
	return datum
}

// Fetch implements Host.
func (t *Toaster) Fetch(h Handle) ([]byte, error) {
	switch repr := h.Repr(); repr {
	case ReprCompressed:
		body := h.Body()
		if len(body) < 4 {
			return nil, errors.New("compressed datum too short")
		}
		return t.inflate(body[4:], uint64(binary.LittleEndian.Uint32(body)))
	case ReprExternal:
		return t.fetchExternal(h.Body())
	default:
		return nil, fmt.Errorf("nothing to fetch for %s datum", repr)
	}
}

func (t *Toaster) fetchExternal(body []byte) ([]byte, error) {
	if t.store == nil {
		return nil, errors.New("no external store configured")
	}
	ptr, err := decodePointer(body)
	if err != nil {
		return nil, err
	}

	var out []byte
	if ptr.Compressed {
		stored, err := t.store.Get(ptr.Key, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", ptr.Key, err)
		}
		if len(stored) != int(ptr.StoredSize) {
			return nil, fmt.Errorf("external value is %d bytes, pointer declares %d", len(stored), ptr.StoredSize)
		}
		if out, err = t.inflate(stored, uint64(ptr.RawSize)); err != nil {
			return nil, err
		}
	} else {
		// Only pooled sizes are preallocated; larger values are sized by the store.
		var buf []byte
		if sizeClass(int(ptr.RawSize)) <= maxPooledShift-minPooledShift {
			buf = t.buffers.get(int(ptr.RawSize))
		}
		out, err = t.store.Get(ptr.Key, buf[:0])
		if err != nil {
			t.buffers.put(buf)
			return nil, fmt.Errorf("failed to read %s: %w", ptr.Key, err)
		}
		if len(out) != int(ptr.RawSize) {
			t.buffers.put(buf)
			return nil, fmt.Errorf("external value is %d bytes, pointer declares %d", len(out), ptr.RawSize)
		}
		t.acquired()
	}

	if sum := xxhash.Sum64(out); sum != ptr.Checksum {
		t.Release(out)
		return nil, fmt.Errorf("checksum mismatch for %s: got %016x, want %016x", ptr.Key, sum, ptr.Checksum)
	}
	return out, nil
}

// inflate decompresses src into a pooled buffer of exactly raw bytes.
func (t *Toaster) inflate(src []byte, raw uint64) ([]byte, error) {
	if err := checkInflatedSize(src, raw); err != nil {
		return nil, err
	}
	buf := t.buffers.get(int(raw))
	out, err := t.codec.decompress(src, buf[:0])
	if err != nil {
		t.buffers.put(buf)
		return nil, fmt.Errorf("zstd decode failed: %w", err)
	}
	if uint64(len(out)) != raw {
		t.buffers.put(buf)
		return nil, fmt.Errorf("decompressed %d bytes, header declares %d", len(out), raw)
	}
	t.acquired()
	return out, nil
}

func (t *Toaster) acquired() {
	t.outstanding.Add(1)
	telemetry.FreshBuffersOutstanding.Inc()
}

// Release implements Host.
func (t *Toaster) Release(buf []byte) {
	t.outstanding.Add(-1)
	telemetry.FreshBuffersOutstanding.Dec()
	telemetry.FreshBufferReleasesTotal.Inc()
	t.buffers.put(buf)
}

// Outstanding returns the number of fetched buffers not yet released.
func (t *Toaster) Outstanding() int64 {
	return t.outstanding.Load()
}

// ExternalDiskUsage reports the disk usage of the external store.
func (t *Toaster) ExternalDiskUsage() uint64 {
	if t.store == nil {
		return 0
	}
	return t.store.DiskUsage()
}

// Close releases the zstd codec. The external store is owned by the caller.
func (t *Toaster) Close() {
	t.codec.close()
}
