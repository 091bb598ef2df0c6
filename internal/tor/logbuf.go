package tor

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// LogBuffer accumulates raw Tor output in arrival order.
//
// The buffer is bounded: once the stored text exceeds capacity bytes the
// oldest chunks are evicted. The newest chunk is always kept, even when it
// alone exceeds the capacity. A capacity of zero or less disables eviction.
type LogBuffer struct {
	mu       sync.Mutex
	chunks   []string
	size     int
	capacity int
	dropped  int64
}

// NewLogBuffer creates a LogBuffer that keeps at most capacity bytes.
func NewLogBuffer(capacity int) *LogBuffer {
	return &LogBuffer{capacity: capacity}
}

// Append decodes p as text and appends it. Invalid UTF-8 is replaced.
func (b *LogBuffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	chunk := string(p)
	if !utf8.ValidString(chunk) {
		chunk = strings.ToValidUTF8(chunk, "�")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk)

	if b.capacity <= 0 {
		return
	}
	evict := 0
	for b.size > b.capacity && evict < len(b.chunks)-1 {
		b.size -= len(b.chunks[evict])
		b.dropped += int64(len(b.chunks[evict]))
		evict++
	}
	if evict > 0 {
		b.chunks = append([]string(nil), b.chunks[evict:]...)
	}
}

// String returns the retained text joined in arrival order.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.chunks, "")
}

// Len returns the number of retained bytes.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped returns the number of bytes evicted so far.
func (b *LogBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
