package procgroup

import (
	"strings"
	"sync"
)

// DefaultRingSize bounds how much stderr is retained per child.
const DefaultRingSize = 32 * 1024

// Ring keeps the most recent bytes written to it. It is used as a child's
// stderr so diagnostics stay bounded no matter how chatty the tool is.
type Ring struct {
	mu    sync.Mutex
	buf   []byte
	size  int
	total int64
}

// NewRing returns a Ring holding at most size bytes.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]byte, 0, size), size: size}
}

func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total += int64(len(p))
	if len(p) >= r.size {
		r.buf = append(r.buf[:0], p[len(p)-r.size:]...)
		return len(p), nil
	}
	if overflow := len(r.buf) + len(p) - r.size; overflow > 0 {
		r.buf = append(r.buf[:0], r.buf[overflow:]...)
	}
	r.buf = append(r.buf, p...)
	return len(p), nil
}

// Len reports the total number of bytes ever written.
func (r *Ring) Len() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// String returns the retained bytes.
func (r *Ring) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.buf)
}

// Tail returns up to n trailing non-empty lines.
func (r *Ring) Tail(n int) string {
	lines := strings.Split(strings.TrimSpace(r.String()), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
