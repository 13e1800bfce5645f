package util

import "sync"

// DefaultChunkSize is the wire chunk size C used by the message framer.
const DefaultChunkSize = 4096

// chunkPool provides reusable read buffers of DefaultChunkSize bytes,
// reducing GC pressure on the per-message read path.
var chunkPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultChunkSize)
		return &buf
	},
}

// GetChunk returns a buffer of exactly size bytes.  Buffers of the
// default chunk size come from a pool; callers must hand them back
// with [PutChunk] when finished.
func GetChunk(size int) *[]byte {
	if size != DefaultChunkSize {
		buf := make([]byte, size)
		return &buf
	}
	return chunkPool.Get().(*[]byte)
}

// PutChunk returns a buffer to the pool.  Buffers of any other size
// are left to the garbage collector.
func PutChunk(buf *[]byte) {
	if buf == nil || len(*buf) != DefaultChunkSize {
		return
	}
	chunkPool.Put(buf)
}
