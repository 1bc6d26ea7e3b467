package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/maxpert/sqlbson/cfg"
	"github.com/rs/zerolog/log"
)

// PebbleStoreOptions configures the out-of-line Pebble store
type PebbleStoreOptions struct {
	CacheSizeMB    int64
	MemTableSizeMB int64
	DisableWAL     bool // Only for testing!
	Sync           bool // fsync every write
}

// DefaultPebbleStoreOptions returns options derived from cfg.Config
func DefaultPebbleStoreOptions() PebbleStoreOptions {
	opts := PebbleStoreOptions{
		CacheSizeMB:    32,
		MemTableSizeMB: 16,
		Sync:           true,
	}
	if cfg.Config != nil {
		opts.CacheSizeMB = int64(cfg.Config.Storage.PebbleCacheMB)
		opts.DisableWAL = cfg.Config.Storage.DisableWAL
	}
	return opts
}

// PebbleStore is an ExternalStore on top of Pebble.
type PebbleStore struct {
	db        *pebble.DB
	path      string
	writeOpts *pebble.WriteOptions
}

// pebbleLogger wraps zerolog for Pebble
type pebbleLogger struct{}

func (l *pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debug().Msgf("[pebble] "+format, args...)
}

func (l *pebbleLogger) Errorf(format string, args ...interface{}) {
	log.Error().Msgf("[pebble] "+format, args...)
}

func (l *pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Fatal().Msgf("[pebble] "+format, args...)
}

// OpenPebbleStore opens or creates a Pebble store at path
func OpenPebbleStore(path string, opts PebbleStoreOptions) (*PebbleStore, error) {
	cache := pebble.NewCache(opts.CacheSizeMB << 20)
	defer cache.Unref() // DB will hold reference

	pebbleOpts := &pebble.Options{
		Cache:        cache,
		MemTableSize: uint64(opts.MemTableSizeMB << 20),
		DisableWAL:   opts.DisableWAL,
		Logger:       &pebbleLogger{},
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}

	writeOpts := pebble.NoSync
	if opts.Sync && !opts.DisableWAL {
		writeOpts = pebble.Sync
	}

	log.Info().Str("path", path).Int64("cache_mb", opts.CacheSizeMB).Msg("Opened external store")
	return &PebbleStore{db: db, path: path, writeOpts: writeOpts}, nil
}

func (s *PebbleStore) Put(key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, s.writeOpts); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) Get(key string, dst []byte) ([]byte, error) {
	val, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return dst, ErrNotFound
		}
		return dst, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer closer.Close()

	// val is only valid until closer.Close()
	return append(dst, val...), nil
}

func (s *PebbleStore) Delete(key string) error {
	if err := s.db.Delete([]byte(key), s.writeOpts); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) DiskUsage() uint64 {
	return s.db.Metrics().DiskSpaceUsage()
}

func (s *PebbleStore) Path() string {
	return s.path
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
