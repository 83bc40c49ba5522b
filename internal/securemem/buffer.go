// Package securemem keeps key material outside the Go heap where the
// platform allows it. On unix the backing memory is an anonymous mmap
// region, locked against swap when the process limits permit it and
// excluded from core dumps on linux. Close zeroes and releases it.
package securemem

import (
	"errors"
	"sync"
)

// ErrClosed is returned when a closed buffer is read.
var ErrClosed = errors.New("securemem: buffer closed")

// Buffer holds one secret. It must not be copied after creation.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	locked bool
	closed bool
}

// FromBytes moves src into a new buffer and zeroes src.
func FromBytes(src []byte) (*Buffer, error) {
	if len(src) == 0 {
		return nil, errors.New("securemem: empty secret")
	}
	data, locked, err := alloc(len(src))
	if err != nil {
		return nil, err
	}
	copy(data, src)
	for i := range src {
		src[i] = 0
	}
	return &Buffer{data: data, locked: locked}, nil
}

// Use calls fn with the secret. The slice is only valid inside fn.
func (b *Buffer) Use(fn func(secret []byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return fn(b.data)
}

// Locked reports whether the memory is pinned in RAM.
func (b *Buffer) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Close zeroes and releases the memory. Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for i := range b.data {
		b.data[i] = 0
	}
	err := release(b.data, b.locked)
	b.data = nil
	return err
}
