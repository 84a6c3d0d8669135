// Package pool provides reusable byte buffers for the stream writers and readers.
package pool

import (
	"io"
	"sync"
)

const (
	// BlockBufferDefaultSize fits one uncompressed block of the default size.
	BlockBufferDefaultSize = 1 << 20
	// BlockBufferMaxThreshold is the largest block buffer kept for reuse.
	BlockBufferMaxThreshold = 4 << 20

	// ChunkBufferDefaultSize fits one framed chunk of a default-size block.
	ChunkBufferDefaultSize = 1<<20 + 1<<10
	// ChunkBufferMaxThreshold is the largest chunk buffer kept for reuse.
	ChunkBufferMaxThreshold = 4<<20 + 1<<10
)

// ByteBuffer is a growable byte slice that can be returned to a ByteBufferPool.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified default capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset empties the buffer but keeps its memory.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// Sized returns the buffer resliced to exactly n bytes, reallocating when the
// capacity is short. The contents are unspecified.
func (bb *ByteBuffer) Sized(n int) []byte {
	if cap(bb.B) < n {
		bb.B = make([]byte, n)
	}
	bb.B = bb.B[:n]

	return bb.B
}

// Grow ensures the buffer can hold n more bytes without reallocating.
//
// Small buffers grow to at least 64KiB; larger ones by a quarter of their capacity.
func (bb *ByteBuffer) Grow(n int) {
	if cap(bb.B)-len(bb.B) >= n {
		return
	}

	growBy := 64 << 10
	if cap(bb.B) > 4*growBy {
		growBy = cap(bb.B) / 4
	}
	growBy = max(growBy, n)

	newBuf := make([]byte, len(bb.B), len(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// Write appends the contents of data to the buffer, growing it as needed.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.B = append(bb.B, data...)
	return len(data), nil
}

// WriteTo writes the contents of the buffer to w.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	if err == nil && n != len(bb.B) {
		err = io.ErrShortWrite
	}

	return int64(n), err
}

// ByteBufferPool is a pool of ByteBuffers.
//
// Buffers that grew beyond maxThreshold are dropped on Put instead of being
// retained, so one oversized block does not pin memory.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool of buffers with the given default capacity.
// A maxThreshold of zero keeps every buffer.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves an empty ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a ByteBuffer to the pool for reuse.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}
	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

var (
	blockPool = NewByteBufferPool(BlockBufferDefaultSize, BlockBufferMaxThreshold)
	chunkPool = NewByteBufferPool(ChunkBufferDefaultSize, ChunkBufferMaxThreshold)
)

// GetBlockBuffer retrieves a buffer for uncompressed block data.
func GetBlockBuffer() *ByteBuffer {
	return blockPool.Get()
}

// PutBlockBuffer returns a buffer obtained from GetBlockBuffer.
func PutBlockBuffer(bb *ByteBuffer) {
	blockPool.Put(bb)
}

// GetChunkBuffer retrieves a buffer for framed chunk output.
func GetChunkBuffer() *ByteBuffer {
	return chunkPool.Get()
}

// PutChunkBuffer returns a buffer obtained from GetChunkBuffer.
func PutChunkBuffer(bb *ByteBuffer) {
	chunkPool.Put(bb)
}
