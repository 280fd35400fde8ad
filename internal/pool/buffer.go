// Package pool provides memory management optimizations.
// This includes chunk buffer pooling to reduce allocations during
// high-throughput transfers.
package pool

import (
	"sync"
)

// ChunkPool manages reusable chunk-sized buffers. Transfers read and
// write whole chunks at a time, so every buffer in the pool has the same
// capacity: the job's chunk size.
type ChunkPool struct {
	size int64
	pool *sync.Pool
}

// NewChunkPool creates a pool of buffers with capacity size.
func NewChunkPool(size int64) *ChunkPool {
	return &ChunkPool{
		size: size,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get returns a buffer of length n, where n must not exceed the pool's
// chunk size. The caller is responsible for calling Put when done.
func (cp *ChunkPool) Get(n int64) []byte {
	if n > cp.size {
		// Oversized requests are allocated directly and never pooled.
		return make([]byte, n)
	}
	bufPtr := cp.pool.Get().(*[]byte)
	return (*bufPtr)[:n]
}

// Put returns a buffer to the pool. The buffer should not be used after
// calling Put.
func (cp *ChunkPool) Put(buf []byte) {
	if int64(cap(buf)) != cp.size {
		// Oversized or foreign buffers are not pooled.
		return
	}
	buf = buf[:cp.size]
	cp.pool.Put(&buf)
}
