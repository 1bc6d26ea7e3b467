package storage

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	// maxDecodedSize bounds a single decompressed document.
	maxDecodedSize = 1 << 30

	// A zstd block decodes to at most 128 KiB and occupies at least three
	// bytes of its frame.
	maxBlockSize     = 128 << 10
	minBlockOverhead = 3
)

// codec wraps one zstd encoder and decoder. EncodeAll and DecodeAll are safe
// for concurrent use, so a single pair serves every caller.
type codec struct {
	level zstd.EncoderLevel
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

func newCodec(level int) (*codec, error) {
	zstdLevel := configLevelToZstd(level)
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &codec{level: zstdLevel, enc: enc, dec: dec}, nil
}

func (c *codec) compress(src []byte) []byte {
	return c.enc.EncodeAll(src, make([]byte, 0, len(src)/2))
}

// decompress appends the frame contents to dst.
func (c *codec) decompress(src, dst []byte) ([]byte, error) {
	return c.dec.DecodeAll(src, dst)
}

// checkInflatedSize verifies that src can decode to raw bytes before any
// buffer of that size is allocated.
func checkInflatedSize(src []byte, raw uint64) error {
	if raw > maxDecodedSize {
		return fmt.Errorf("declared size %d exceeds limit of %d bytes", raw, maxDecodedSize)
	}
	if limit := uint64(len(src)/minBlockOverhead+1) * maxBlockSize; raw > limit {
		return fmt.Errorf("declared size %d is impossible for a %d byte zstd frame", raw, len(src))
	}

	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return fmt.Errorf("zstd header: %w", err)
	}
	if h.Skippable {
		return errors.New("zstd frame is skippable")
	}
	// Content sizes below 256 bytes may be omitted from the frame header.
	if !h.HasFCS {
		if raw >= 256 {
			return fmt.Errorf("zstd frame omits its content size, header declares %d", raw)
		}
		return nil
	}
	if h.FrameContentSize != raw {
		return fmt.Errorf("zstd frame holds %d bytes, header declares %d", h.FrameContentSize, raw)
	}
	return nil
}

func (c *codec) close() {
	c.enc.Close()
	c.dec.Close()
}

// configLevelToZstd maps config levels (1-4) to zstd.EncoderLevel
func configLevelToZstd(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 2:
		return zstd.SpeedDefault
	case 3:
		return zstd.SpeedBetterCompression
	case 4:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedFastest
	}
}
