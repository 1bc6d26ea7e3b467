package storage

import (
	"errors"
	"fmt"

	"github.com/maxpert/sqlbson/telemetry"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAbsent is returned when materializing a NULL handle.
	ErrAbsent = errors.New("storage: value is absent")

	// ErrFetchFailed matches every *MaterializeError.
	ErrFetchFailed = errors.New("storage: fetch failed")
)

// MaterializeError reports that the host could not produce contiguous bytes
// for a present value.
type MaterializeError struct {
	Repr Repr
	Err  error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("storage: fetch failed for %s datum: %v", e.Repr, e.Err)
}

func (e *MaterializeError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// Host produces contiguous bytes for datums that are not stored inline.
// Every slice returned by Fetch is handed back through Release exactly once.
type Host interface {
	Fetch(h Handle) ([]byte, error)
	Release(buf []byte)
}

// Materializer turns handles into Buffers.
type Materializer struct {
	host Host
}

// NewMaterializer creates a Materializer backed by host. host may be nil when
// only inline datums are expected.
func NewMaterializer(host Host) *Materializer {
	return &Materializer{host: host}
}

// Materialize returns a readable view of the value behind h.
//
// Inline datums are returned as a borrowed subslice. Compressed and external
// datums are fetched from the host into a fresh buffer that the caller must
// Release. NULL handles return ErrAbsent.
func (m *Materializer) Materialize(h Handle) (*Buffer, error) {
	if h.IsNull() {
		return nil, ErrAbsent
	}

	repr := h.Repr()
	switch repr {
	case ReprInline:
		telemetry.MaterializeTotal.With(repr.String()).Inc()
		return &Buffer{data: h.Body()}, nil

	case ReprCompressed, ReprExternal:
		if m.host == nil {
			return nil, m.fail(repr, errors.New("no host configured"))
		}
		data, err := m.host.Fetch(h)
		if err != nil {
			return nil, m.fail(repr, err)
		}
		telemetry.MaterializeTotal.With(repr.String()).Inc()
		return &Buffer{data: data, fresh: true, host: m.host}, nil

	default:
		if len(h.Datum()) == 0 {
			return nil, m.fail(repr, errors.New("empty datum"))
		}
		return nil, m.fail(repr, fmt.Errorf("unknown datum header 0x%02x", h.Datum()[0]))
	}
}

// With materializes h, calls fn with its bytes and releases the buffer on
// every path out, including a panic in fn. The slice must not escape fn.
func (m *Materializer) With(h Handle, fn func(data []byte) error) error {
	buf, err := m.Materialize(h)
	if err != nil {
		return err
	}
	defer buf.Release()
	return fn(buf.Bytes())
}

func (m *Materializer) fail(repr Repr, err error) error {
	telemetry.MaterializeFailuresTotal.With(repr.String()).Inc()
	log.Debug().Err(err).Str("repr", repr.String()).Msg("Materialize failed")
	return &MaterializeError{Repr: repr, Err: err}
}
