package storage

import (
	"errors"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrNotFound is returned by an ExternalStore when a key has no value.
var ErrNotFound = errors.New("storage: external value not found")

// ExternalStore holds values too large to keep in the host row.
type ExternalStore interface {
	Put(key string, value []byte) error
	// Get appends the value stored under key to dst.
	Get(key string, dst []byte) ([]byte, error)
	Delete(key string) error
	DiskUsage() uint64
	Close() error
}

// MemoryStore is an in-process ExternalStore.
type MemoryStore struct {
	values *xsync.MapOf[string, []byte]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: xsync.NewMapOf[string, []byte]()}
}

func (s *MemoryStore) Put(key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.values.Store(key, v)
	return nil
}

func (s *MemoryStore) Get(key string, dst []byte) ([]byte, error) {
	v, ok := s.values.Load(key)
	if !ok {
		return dst, ErrNotFound
	}
	return append(dst, v...), nil
}

func (s *MemoryStore) Delete(key string) error {
	s.values.Delete(key)
	return nil
}

// DiskUsage reports the bytes held, as a stand-in for disk usage.
func (s *MemoryStore) DiskUsage() uint64 {
	var n uint64
	s.values.Range(func(_ string, v []byte) bool {
		n += uint64(len(v))
		return true
	})
	return n
}

func (s *MemoryStore) Len() int {
	return s.values.Size()
}

func (s *MemoryStore) Close() error { return nil }
