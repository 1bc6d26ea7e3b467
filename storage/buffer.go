package storage

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// Buffer is a materialized, directly addressable view of a stored value.
//
// A Buffer either borrows the host's inline bytes (Fresh() == false) or owns
// a buffer the host allocated for it (Fresh() == true). Release hands a fresh
// buffer back to the host and does nothing for a borrowed one. Release is safe
// to call more than once; only the first call has an effect, so the usual
// pattern is
//
//	buf, err := m.Materialize(h)
//	if err != nil {
//		return err
//	}
//	defer buf.Release()
type Buffer struct {
	data     []byte
	fresh    bool
	host     Host
	released atomic.Bool
}

// Bytes returns the underlying byte slice.
// Panics if the buffer has been released.
func (b *Buffer) Bytes() []byte {
	if b.released.Load() {
		panic("use after release: materialized Buffer has been released")
	}
	return b.data
}

// Fresh reports whether the host allocated this buffer for the caller.
func (b *Buffer) Fresh() bool {
	return b.fresh
}

// Len returns the length of the byte slice.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Release returns a fresh buffer to the host.
// Safe to call multiple times (no-op after first call).
func (b *Buffer) Release() {
	if b.released.CompareAndSwap(false, true) {
		if b.fresh {
			b.host.Release(b.data)
		}
		b.data = nil
	}
}

const (
	minPooledShift = 8  // 256 B
	maxPooledShift = 22 // 4 MiB
)

// bufferPool recycles fresh buffers in power-of-two size classes. Buffers
// above the largest class are left to the garbage collector.
type bufferPool struct {
	classes [maxPooledShift - minPooledShift + 1]sync.Pool
}

func sizeClass(n int) int {
	if n <= 1<<minPooledShift {
		return 0
	}
	return bits.Len(uint(n-1)) - minPooledShift
}

// get returns a slice of length n.
func (p *bufferPool) get(n int) []byte {
	class := sizeClass(n)
	if class >= len(p.classes) {
		return make([]byte, n)
	}
	if v := p.classes[class].Get(); v != nil {
		return (*v.(*[]byte))[:n]
	}
	return make([]byte, n, 1<<(class+minPooledShift))
}

func (p *bufferPool) put(b []byte) {
	c := cap(b)
	if c < 1<<minPooledShift {
		return
	}
	class := sizeClass(c)
	// Only exact class capacities are pooled so get never returns a short slice.
	if class >= len(p.classes) || c != 1<<(class+minPooledShift) {
		return
	}
	b = b[:0]
	p.classes[class].Put(&b)
}
