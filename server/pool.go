package server

import (
	"bytes"
	"sync"
)

// Buffer pools for reducing allocations across connections

// arenaPool holds backing arrays of released arenas
var arenaPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, defaultArenaSize)
		return &buf
	},
}

// responseBufferPool holds bytes.Buffer for building response heads
var responseBufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Pool size limits - buffers larger than this are discarded
const (
	maxPoolBufferSize = 16384 // 16KB
)

// getArenaBuffer returns a pooled array of at least defaultArenaSize bytes.
// Arrays that grew while in use come back larger, which is kept.
func getArenaBuffer() []byte {
	bufPtr := arenaPool.Get().(*[]byte)
	buf := *bufPtr
	return buf[:cap(buf)]
}

func putArenaBuffer(buf []byte) {
	if cap(buf) > maxPoolBufferSize || cap(buf) < defaultArenaSize {
		return
	}
	arenaPool.Put(&buf)
}

func getResponseBuffer() *bytes.Buffer {
	buf := responseBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putResponseBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= maxPoolBufferSize {
		responseBufferPool.Put(buf)
	}
}
