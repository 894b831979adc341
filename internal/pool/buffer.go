package pool

import (
	"sync"
)

const (
	// SmallBufferSize defines the size for small buffers (64KB)
	SmallBufferSize = 64 * 1024
	// MediumBufferSize defines the size for medium buffers (1MB)
	MediumBufferSize = 1024 * 1024
	// ReadChunkSize is the largest single read a worker performs (32MB)
	ReadChunkSize = 32 * 1024 * 1024
)

// BufferPool manages reusable buffers of different sizes to reduce allocations.
type BufferPool struct {
	small  *sync.Pool
	medium *sync.Pool
	large  *sync.Pool
}

func newTier(size int) *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, size)
			return &buf
		},
	}
}

// NewBufferPool creates a new buffer pool with default sizes.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small:  newTier(SmallBufferSize),
		medium: newTier(MediumBufferSize),
		large:  newTier(ReadChunkSize),
	}
}

// ChunkSize returns the read size for a part of the given length:
// min(length, ReadChunkSize), and at least 1.
func ChunkSize(length int64) int {
	if length <= 0 {
		return 1
	}
	if length > ReadChunkSize {
		return ReadChunkSize
	}
	return int(length)
}

// Get returns a buffer of exactly size bytes backed by the smallest fitting tier.
// Sizes above ReadChunkSize are clamped to ReadChunkSize.
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get(size int) []byte {
	size = min(max(size, 1), ReadChunkSize)

	var tier *sync.Pool
	switch {
	case size <= SmallBufferSize:
		tier = bp.small
	case size <= MediumBufferSize:
		tier = bp.medium
	default:
		tier = bp.large
	}

	bufPtr := tier.Get().(*[]byte)
	return (*bufPtr)[:size]
}

// Put returns a buffer to the pool matching its capacity.
// Buffers of any other capacity are dropped.
func (bp *BufferPool) Put(buf []byte) {
	buf = buf[:cap(buf)]
	switch cap(buf) {
	case SmallBufferSize:
		bp.small.Put(&buf)
	case MediumBufferSize:
		bp.medium.Put(&buf)
	case ReadChunkSize:
		bp.large.Put(&buf)
	}
}

// Global buffer pool instance shared by all workers.
var globalBufferPool = NewBufferPool()

// GetBuffer returns a buffer from the global pool for the specified size.
func GetBuffer(size int) []byte {
	return globalBufferPool.Get(size)
}

// PutBuffer returns a buffer to the global pool.
func PutBuffer(buf []byte) {
	globalBufferPool.Put(buf)
}
