package buffer

import "sync"

// DefaultChunkSize is the size of pooled read buffers.
// 4KB holds most stanzas in a single read.
const DefaultChunkSize = 4 * 1024

// chunkPool is a sync.Pool for read buffers handed to network loops.
var chunkPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, DefaultChunkSize)
		return &b
	},
}

// Get gets a DefaultChunkSize read buffer from the pool.
func Get() []byte {
	p := chunkPool.Get().(*[]byte)
	return (*p)[:DefaultChunkSize]
}

// Put returns a read buffer to the pool.
// Buffers that were grown past DefaultChunkSize are dropped.
func Put(b []byte) {
	if cap(b) != DefaultChunkSize {
		return
	}
	b = b[:DefaultChunkSize]
	chunkPool.Put(&b)
}
