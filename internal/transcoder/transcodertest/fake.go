// Package transcodertest provides an in-memory Transcoder for tests.
package transcodertest

import (
	"context"
	"errors"
	"io"
	"sync"

	"instantsaver/internal/transcoder"
)

// ErrKilled is the exit error of a fake process that was killed.
var ErrKilled = errors.New("signal: killed")

// Fake emits Data through an unbuffered pipe, so a reader that stops reading
// stalls the fake process just like a real one.
type Fake struct {
	mu sync.Mutex

	Data []byte
	// ChunkSize is the size of each write; defaults to 32 KiB.
	ChunkSize int
	// Hold keeps stdout open after Data until the process is killed.
	Hold bool
	// ExitErr is returned by Wait after a normal exit.
	ExitErr     error
	StartErr    error
	Diagnostics string

	Jobs      []transcoder.Job
	Processes []*Process
}

// Start implements transcoder.Transcoder.
func (f *Fake) Start(ctx context.Context, job transcoder.Job) (transcoder.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Jobs = append(f.Jobs, job)
	if f.StartErr != nil {
		return nil, f.StartErr
	}

	chunk := f.ChunkSize
	if chunk <= 0 {
		chunk = 32 * 1024
	}

	pr, pw := io.Pipe()
	p := &Process{
		pid:   1000 + len(f.Processes),
		pr:    pr,
		pw:    pw,
		done:  make(chan struct{}),
		kill:  make(chan struct{}),
		diag:  f.Diagnostics,
		exit:  f.ExitErr,
		chunk: chunk,
	}
	f.Processes = append(f.Processes, p)

	go p.run(ctx, f.Data, f.Hold)
	return p, nil
}

// Last returns the most recently started process.
func (f *Fake) Last() *Process {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Processes) == 0 {
		return nil
	}
	return f.Processes[len(f.Processes)-1]
}

// Process is a fake running transcode.
type Process struct {
	pid   int
	pr    *io.PipeReader
	pw    *io.PipeWriter
	done  chan struct{}
	kill  chan struct{}
	once  sync.Once
	diag  string
	exit  error
	chunk int

	result error
}

func (p *Process) run(ctx context.Context, data []byte, hold bool) {
	defer close(p.done)

	go func() {
		select {
		case <-ctx.Done():
			p.Kill()
		case <-p.done:
		}
	}()

	for len(data) > 0 {
		n := min(p.chunk, len(data))
		if _, err := p.pw.Write(data[:n]); err != nil {
			p.result = ErrKilled
			return
		}
		data = data[n:]
	}

	if hold {
		<-p.kill
		p.result = ErrKilled
		return
	}

	select {
	case <-p.kill:
		p.result = ErrKilled
	default:
		p.pw.Close()
		p.result = p.exit
	}
}

func (p *Process) Stdout() io.Reader   { return p.pr }
func (p *Process) Diagnostics() string { return p.diag }
func (p *Process) PID() int            { return p.pid }

func (p *Process) Wait() error {
	<-p.done
	return p.result
}

func (p *Process) Kill() error {
	p.once.Do(func() {
		close(p.kill)
		p.pw.CloseWithError(ErrKilled)
		p.pr.CloseWithError(ErrKilled)
	})
	return nil
}

// Killed reports whether Kill was called, directly or through the context.
// Call it after Wait.
func (p *Process) Killed() bool {
	select {
	case <-p.kill:
		return true
	default:
		return false
	}
}

// Done is closed when the fake process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

var _ transcoder.Transcoder = (*Fake)(nil)
