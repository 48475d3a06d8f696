package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"instantsaver/internal/cookies"
	"instantsaver/internal/logging"
	"instantsaver/internal/metrics"
	"instantsaver/internal/procgroup"
	"instantsaver/internal/source"
)

// Kind is the media kind a job produces.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// ErrUnavailable means the transcoder binary could not be started.
var ErrUnavailable = errors.New("transcoder unavailable")

// Job describes one transcode to stdout.
type Job struct {
	Ref  source.Reference
	Kind Kind
	// HeightCeiling of zero means no ceiling.
	HeightCeiling int
}

// Process is a running transcode. Stdout must be drained or the process
// killed; Wait must always be called to reap it.
type Process interface {
	Stdout() io.Reader
	// Wait blocks until the process exits. It is safe to call more than once.
	Wait() error
	// Kill stops the process and everything it spawned.
	Kill() error
	// Diagnostics returns the tail of the process's stderr, for logs.
	Diagnostics() string
	PID() int
}

// Transcoder starts transcoding processes.
type Transcoder interface {
	Start(ctx context.Context, job Job) (Process, error)
}

// Options configures the yt-dlp backed transcoder.
type Options struct {
	Binary string
	// FFmpegPath is passed through when it differs from the default lookup.
	FFmpegPath string
	// Cookies supplies a per-process cookie file to Instagram jobs.
	Cookies *cookies.Jar
}

// YTDLP streams media through yt-dlp, which merges split streams via ffmpeg
// and writes a single container to stdout.
type YTDLP struct {
	opts      Options
	processes map[int]*process
	processMu sync.Mutex
}

// New creates a yt-dlp transcoder.
func New(opts Options) *YTDLP {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	return &YTDLP{
		opts:      opts,
		processes: make(map[int]*process),
	}
}

// Start launches the process for job. The process is bound to ctx: when ctx
// is done the whole process group is killed.
func (t *YTDLP) Start(ctx context.Context, job Job) (Process, error) {
	cookiesPath, release := "", func() {}
	if job.Ref.Platform == source.Instagram && t.opts.Cookies != nil {
		path, done, err := t.opts.Cookies.Checkout()
		if err != nil {
			return nil, fmt.Errorf("preparing cookies: %w", err)
		}
		cookiesPath, release = path, done
	}
	args := t.Args(job, cookiesPath)

	cmd := exec.CommandContext(ctx, t.opts.Binary, args...)
	procgroup.Set(cmd)
	cmd.WaitDelay = 2 * time.Second

	// An explicit pipe lets Wait run concurrently with reads. The read end
	// reaches EOF once every process holding the write end has exited.
	stdout, pw, err := os.Pipe()
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	cmd.Stdout = pw
	stderr := procgroup.NewRing(procgroup.DefaultRingSize)
	cmd.Stderr = stderr

	err = cmd.Start()
	pw.Close()
	if err != nil {
		stdout.Close()
		release()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("failed to start %s: %w", t.opts.Binary, err)
	}

	p := &process{cmd: cmd, stdout: stdout, stderr: stderr, done: make(chan struct{})}
	pid := cmd.Process.Pid

	t.processMu.Lock()
	t.processes[pid] = p
	t.processMu.Unlock()

	go func() {
		p.err = cmd.Wait()
		release()

		t.processMu.Lock()
		delete(t.processes, pid)
		t.processMu.Unlock()

		close(p.done)
	}()

	logging.Debug("Transcoder started pid %d for %s (%s)", pid, job.Ref.URL, job.Kind)
	return p, nil
}

// Args returns the command line for job. cookiesPath is only used for
// Instagram jobs and must be a per-process copy, as yt-dlp rewrites it.
func (t *YTDLP) Args(job Job, cookiesPath string) []string {
	args := []string{"-f", FormatExpression(job.Ref.Platform, job.Kind, job.HeightCeiling)}
	if job.Kind == KindVideo {
		args = append(args, "--merge-output-format", "mp4")
	}
	args = append(args, "--no-playlist", "--no-part", "--quiet", "--no-warnings")
	if t.opts.FFmpegPath != "" && t.opts.FFmpegPath != "ffmpeg" {
		args = append(args, "--ffmpeg-location", t.opts.FFmpegPath)
	}
	if job.Ref.Platform == source.Instagram && cookiesPath != "" {
		args = append(args, "--cookies", cookiesPath)
	}
	return append(args, "-o", "-", "--", job.Ref.URL)
}

// FormatExpression picks formats that play on phones: H.264 video with AAC
// audio merged into mp4, or m4a audio.
func FormatExpression(platform source.Platform, kind Kind, heightCeiling int) string {
	if kind == KindAudio {
		return "ba[ext=m4a]/ba[acodec^=mp4a]/ba"
	}

	h := ""
	if heightCeiling > 0 {
		h = "[height<=" + strconv.Itoa(heightCeiling) + "]"
	}
	merged := "bv*[vcodec^=avc]" + h + "+ba[acodec^=mp4a]"
	fallback := "b[ext=mp4]" + h + "/b" + h

	if platform == source.YouTube {
		return "b[ext=mp4][vcodec^=avc]" + h + "/" + merged + "/" + fallback
	}
	return merged + "/" + fallback
}

// Live returns the number of running processes.
func (t *YTDLP) Live() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// GetStats implements metrics.StatsProvider.
func (t *YTDLP) GetStats() metrics.Stats {
	return metrics.Stats{LiveProcesses: t.Live()}
}

// Cleanup stops all active transcoding processes.
func (t *YTDLP) Cleanup() {
	t.processMu.Lock()
	live := make([]*process, 0, len(t.processes))
	for _, p := range t.processes {
		live = append(live, p)
	}
	t.processMu.Unlock()

	for _, p := range live {
		logging.Info("Killing transcoding process %d", p.PID())
		if err := p.Kill(); err != nil {
			logging.Warn("failed to kill transcoding process %d: %v", p.PID(), err)
		}
	}
	for _, p := range live {
		_ = p.Wait()
	}
}

type process struct {
	cmd       *exec.Cmd
	stdout    *os.File
	stderr    *procgroup.Ring
	done      chan struct{}
	err       error
	closeOnce sync.Once
}

func (p *process) Stdout() io.Reader   { return p.stdout }
func (p *process) Diagnostics() string { return p.stderr.Tail(20) }
func (p *process) PID() int            { return p.cmd.Process.Pid }

func (p *process) Wait() error {
	<-p.done
	p.closeOnce.Do(func() { p.stdout.Close() })
	return p.err
}

func (p *process) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	err := procgroup.Kill(p.cmd)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

var (
	_ Transcoder            = (*YTDLP)(nil)
	_ metrics.StatsProvider = (*YTDLP)(nil)
)
