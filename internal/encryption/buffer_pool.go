package encryption

import (
	"sync"
)

// DefaultChunkSize is the streaming chunk size.
const DefaultChunkSize = 1 << 20

// bufferPool provides reusable DefaultChunkSize buffers for chunked transforms.
//
//nolint:gochecknoglobals
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultChunkSize)

		return &buf
	},
}

// getBuffer returns a buffer of exactly size bytes and a function releasing it.
// Only buffers of DefaultChunkSize are pooled.
func getBuffer(size int) ([]byte, func()) {
	if size != DefaultChunkSize {
		return make([]byte, size), func() {}
	}

	buf, _ := bufferPool.Get().(*[]byte)

	return *buf, func() { bufferPool.Put(buf) }
}
