package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"instantsaver/internal/logging"
)

var (
	// ErrWriteTimeout means one write to the client took longer than
	// WriteTimeout, usually a client reading far too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")
	// ErrIdleTimeout means nothing reached the client for IdleTimeout.
	ErrIdleTimeout = errors.New("stream idle timeout exceeded")
	// ErrMaxDuration means the stream outlived MaxDuration.
	ErrMaxDuration = errors.New("stream duration limit exceeded")
	// ErrClientGone means the request context ended before the stream did.
	ErrClientGone = errors.New("client disconnected")
	// ErrStreamCanceled means Close was called.
	ErrStreamCanceled = errors.New("stream canceled")
)

// TimeoutWriterConfig bounds a single streamed response. Zero values
// disable the corresponding limit.
type TimeoutWriterConfig struct {
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxDuration  time.Duration
	// ChunkSize splits large writes so each piece is flushed on its own.
	ChunkSize int
}

// DefaultTimeoutWriterConfig matches the STREAM_* defaults.
func DefaultTimeoutWriterConfig() TimeoutWriterConfig {
	return TimeoutWriterConfig{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		MaxDuration:  30 * time.Minute,
		ChunkSize:    64 * 1024,
	}
}

// TimeoutWriter guards an http.ResponseWriter against stuck clients and
// stuck producers.
//
// Each write gets a connection deadline through http.ResponseController when
// the server supports it. Writers without deadline support (recorders,
// wrappers) get no per-write limit and rely on the idle and total limits
// instead. A single watchdog goroutine enforces the idle and
// total limits. Done is closed when the writer stops for any reason.
type TimeoutWriter struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	parent    context.Context
	ctx       context.Context
	stop      context.CancelCauseFunc
	config    TimeoutWriterConfig
	deadlines bool
	started   time.Time

	mu      sync.Mutex
	written int64
	last    time.Time
	closed  bool
}

// NewTimeoutWriter wraps w. The writer stops when ctx ends.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config TimeoutWriterConfig) *TimeoutWriter {
	wctx, stop := context.WithCancelCause(ctx)
	now := time.Now()

	tw := &TimeoutWriter{
		w:       w,
		rc:      http.NewResponseController(w),
		parent:  ctx,
		ctx:     wctx,
		stop:    stop,
		config:  config,
		started: now,
		last:    now,
	}
	if config.WriteTimeout > 0 {
		// Clearing a deadline succeeds only where deadlines are supported.
		tw.deadlines = tw.rc.SetWriteDeadline(time.Time{}) == nil
	}
	if config.IdleTimeout > 0 || config.MaxDuration > 0 {
		go tw.watchdog()
	}
	return tw
}

// Write sends p, in ChunkSize pieces when configured, flushing after each.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	size := len(p)
	if tw.config.ChunkSize > 0 {
		size = tw.config.ChunkSize
	}

	total := 0
	for len(p) > 0 {
		if err := tw.Err(); err != nil {
			return total, err
		}
		piece := p[:min(size, len(p))]
		n, err := tw.writeOnce(piece)
		total += n
		if n > 0 {
			tw.record(n)
		}
		if err != nil {
			return total, err
		}
		tw.flush()
		p = p[len(piece):]
	}
	return total, nil
}

func (tw *TimeoutWriter) record(n int) {
	tw.mu.Lock()
	tw.written += int64(n)
	tw.last = time.Now()
	tw.mu.Unlock()
}

func (tw *TimeoutWriter) flush() {
	if err := tw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.Debug("Flush failed: %v", err)
	}
}

func (tw *TimeoutWriter) writeOnce(p []byte) (int, error) {
	if !tw.deadlines {
		return tw.w.Write(p)
	}

	if err := tw.rc.SetWriteDeadline(time.Now().Add(tw.config.WriteTimeout)); err != nil {
		return 0, err
	}
	n, err := tw.w.Write(p)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		tw.stop(ErrWriteTimeout)
		return n, ErrWriteTimeout
	case tw.ctx.Err() != nil:
		return n, tw.Err()
	}
	return n, err
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// watchdog stops the writer when it goes idle or runs too long.
func (tw *TimeoutWriter) watchdog() {
	var idleTick <-chan time.Time
	if tw.config.IdleTimeout > 0 {
		ticker := time.NewTicker(tw.config.IdleTimeout / 4)
		defer ticker.Stop()
		idleTick = ticker.C
	}
	var deadline <-chan time.Time
	if tw.config.MaxDuration > 0 {
		timer := time.NewTimer(tw.config.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-tw.ctx.Done():
			return
		case <-deadline:
			logging.Warn("Stream exceeded maximum duration of %v", tw.config.MaxDuration)
			tw.stop(ErrMaxDuration)
			return
		case <-idleTick:
			tw.mu.Lock()
			idle := time.Since(tw.last)
			tw.mu.Unlock()
			if idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle for %v, stopping", idle.Round(time.Millisecond))
				tw.stop(ErrIdleTimeout)
				return
			}
		}
	}
}

// Done is closed once the writer stops accepting data.
func (tw *TimeoutWriter) Done() <-chan struct{} {
	return tw.ctx.Done()
}

// Err explains why the writer stopped, or returns nil while it is live.
func (tw *TimeoutWriter) Err() error {
	if tw.ctx.Err() == nil {
		return nil
	}
	if tw.parent.Err() != nil {
		return ErrClientGone
	}
	if cause := context.Cause(tw.ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return ErrStreamCanceled
}

// Close stops the writer. Later writes fail with ErrStreamCanceled. Close is
// idempotent and always returns nil.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return nil
	}
	tw.closed = true
	tw.stop(ErrStreamCanceled)
	if tw.deadlines {
		// Keep-alive reuse must not inherit our deadline.
		_ = tw.rc.SetWriteDeadline(time.Time{})
	}
	return nil
}

// Stats returns the bytes delivered so far and the time since creation.
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.written, time.Since(tw.started)
}

// StreamWithTimeout copies r into w through a TimeoutWriter. The caller sets
// headers first.
func StreamWithTimeout(ctx context.Context, w http.ResponseWriter, r io.Reader, config TimeoutWriterConfig) (int64, error) {
	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	_, err := io.Copy(tw, r)
	written, elapsed := tw.Stats()
	logging.Debug("Stream finished: %d bytes in %v", written, elapsed.Round(time.Millisecond))
	return written, err
}
