package hub

import (
	"bytes"
	"sync"
)

var (
	// Single pool for record buffers with a reasonable starting capacity
	bufferPool = &sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 256))
		},
	}
)

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// putBuffer returns a buffer to the pool after resetting it
func putBuffer(b *bytes.Buffer) {
	b.Reset()
	// Only return to pool if capacity is reasonable (< 256KB)
	// This prevents memory bloat from very large snapshots
	if b.Cap() < 262144 {
		bufferPool.Put(b)
	}
}
