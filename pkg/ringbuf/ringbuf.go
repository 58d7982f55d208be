// Package ringbuf provides a lock-free single-producer single-consumer
// byte ring buffer.
package ringbuf

import "sync/atomic"

// DefaultCapacity is the capacity used by the console transport.
const DefaultCapacity = 2046

// Buffer is a fixed capacity circular byte buffer.
//
// One slot is always kept empty to tell a full buffer from an empty one,
// so at most Cap()-1 bytes are buffered. Write must only be called from
// a single producer and Read from a single consumer.
type Buffer struct {
	head atomic.Uint32
	_    [60]byte
	tail atomic.Uint32
	_    [60]byte

	buf []byte
}

// New creates a Buffer with the given capacity.
func New(capacity int) *Buffer {
	if capacity < 2 {
		panic("ringbuf: capacity must be at least 2")
	}
	return &Buffer{buf: make([]byte, capacity)}
}

// Init resets the buffer to empty. It must not race with Read or Write.
func (b *Buffer) Init() {
	b.head.Store(0)
	b.tail.Store(0)
}

// Cap returns the capacity of the backing array.
func (b *Buffer) Cap() int {
	return len(b.buf)
}

// AvailableToRead returns the number of buffered bytes.
func (b *Buffer) AvailableToRead() int {
	return b.used(b.head.Load(), b.tail.Load())
}

// AvailableToWrite returns the number of bytes which can be written
// without overwriting unread data.
func (b *Buffer) AvailableToWrite() int {
	return len(b.buf) - 1 - b.AvailableToRead()
}

func (b *Buffer) used(head, tail uint32) int {
	size := uint32(len(b.buf))
	return int((head + size - tail) % size)
}

// Write copies as many bytes from p as fit and returns the count.
// A short count means the buffer is full, the caller decides whether to
// retry later.
func (b *Buffer) Write(p []byte) int {
	head, tail := b.head.Load(), b.tail.Load()
	free := len(b.buf) - 1 - b.used(head, tail)
	n := len(p)
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}
	pos := int(head)
	first := len(b.buf) - pos
	if first >= n {
		copy(b.buf[pos:pos+n], p[:n])
	} else {
		copy(b.buf[pos:], p[:first])
		copy(b.buf[:n-first], p[first:n])
	}
	// publish only after every chunk is in place
	b.head.Store(uint32((pos + n) % len(b.buf)))
	return n
}

// Read copies up to len(p) buffered bytes into p and returns the count.
func (b *Buffer) Read(p []byte) int {
	head, tail := b.head.Load(), b.tail.Load()
	n := b.used(head, tail)
	if n > len(p) {
		n = len(p)
	}
	if n == 0 {
		return 0
	}
	pos := int(tail)
	first := len(b.buf) - pos
	if first >= n {
		copy(p[:n], b.buf[pos:pos+n])
	} else {
		copy(p[:first], b.buf[pos:])
		copy(p[first:n], b.buf[:n-first])
	}
	b.tail.Store(uint32((pos + n) % len(b.buf)))
	return n
}
