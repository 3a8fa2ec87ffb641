// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package pool supplies reusable byte buffers for the reactor's read
// path, so one dispatch cycle does not allocate per ready descriptor.
package pool

import "sync"

// BytePool hands out fixed-size byte buffers.
type BytePool struct {
	size int
	p    sync.Pool
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	bp := &BytePool{size: size}
	bp.p.New = func() any { return make([]byte, size) }
	return bp
}

// GetBuffer returns a buffer from the pool.
func (b *BytePool) GetBuffer() []byte {
	return b.p.Get().([]byte)[:b.size]
}

// PutBuffer returns a buffer to the pool. Buffers of a foreign size
// are dropped for the GC.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) < b.size {
		return
	}
	b.p.Put(buf[:b.size])
}

// Size reports the buffer size handed out by GetBuffer.
func (b *BytePool) Size() int { return b.size }
