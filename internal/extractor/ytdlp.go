package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"instantsaver/internal/cookies"
	"instantsaver/internal/logging"
	"instantsaver/internal/procgroup"
	"instantsaver/internal/source"

	"golang.org/x/sync/semaphore"
)

const (
	defaultBinary          = "yt-dlp"
	defaultManifestTimeout = 45 * time.Second
	defaultDirectTimeout   = 20 * time.Second
	defaultMaxOutput       = 16 << 20
	versionTimeout         = 5 * time.Second

	// waitDelay bounds how long Wait keeps draining pipes after the child
	// was killed.
	waitDelay = 2 * time.Second
)

// Options configures the yt-dlp backed extractor.
type Options struct {
	Binary string
	// Cookies supplies a per-run cookie file to Instagram fetches when set.
	Cookies         *cookies.Jar
	ManifestTimeout time.Duration
	DirectTimeout   time.Duration
	MaxOutput       int64
	// Slots bounds concurrently running subprocesses.
	Slots int
	// Retries is the number of extra manifest attempts after an
	// ExtractionError.
	Retries  int
	Observer Observer
}

// YTDLP runs yt-dlp as a subprocess for every request. Nothing is cached
// and nothing is written to disk.
type YTDLP struct {
	opts     Options
	slots    *semaphore.Weighted
	observer Observer

	// onStart is a test hook receiving the child pid.
	onStart func(pid int)
}

// NewYTDLP creates an extractor, filling defaults for zero options.
func NewYTDLP(opts Options) *YTDLP {
	if opts.Binary == "" {
		opts.Binary = defaultBinary
	}
	if opts.ManifestTimeout <= 0 {
		opts.ManifestTimeout = defaultManifestTimeout
	}
	if opts.DirectTimeout <= 0 {
		opts.DirectTimeout = defaultDirectTimeout
	}
	if opts.MaxOutput <= 0 {
		opts.MaxOutput = defaultMaxOutput
	}
	if opts.Slots <= 0 {
		opts.Slots = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &YTDLP{
		opts:     opts,
		slots:    semaphore.NewWeighted(int64(opts.Slots)),
		observer: observer,
	}
}

// FetchManifest runs `yt-dlp -J` and parses the result.
func (y *YTDLP) FetchManifest(ctx context.Context, ref source.Reference) (*Manifest, error) {
	args := append(baseArgs(), "-J", "--", ref.URL)

	var lastErr error
	for attempt := 0; attempt <= y.opts.Retries; attempt++ {
		out, err := y.run(ctx, "manifest", y.opts.ManifestTimeout, y.jarFor(ref), args)
		if err == nil {
			return ParseManifest(out)
		}
		lastErr = err

		var xerr *ExtractionError
		if !errors.As(err, &xerr) || ctx.Err() != nil {
			break
		}
		if attempt < y.opts.Retries {
			logging.Debug("Manifest fetch for %s failed, retrying (%d/%d)", ref.URL, attempt+1, y.opts.Retries)
		}
	}
	return nil, lastErr
}

// DirectURL asks yt-dlp to print the URL of the best progressive stream,
// along with title and uploader, without dumping the full manifest.
func (y *YTDLP) DirectURL(ctx context.Context, ref source.Reference, heightCeiling int) (Direct, error) {
	args := append(baseArgs(),
		"-f", ProgressiveExpression(heightCeiling),
		"--print", "%(url)s",
		"--print", "%(title)s",
		"--print", "%(uploader)s",
		"--", ref.URL,
	)

	out, err := y.run(ctx, "direct", y.opts.DirectTimeout, y.jarFor(ref), args)
	if err != nil {
		return Direct{}, err
	}
	return parseDirect(out)
}

// Version returns the first line of `yt-dlp --version`. It does not wait
// for a slot so health checks stay responsive under load.
func (y *YTDLP) Version(ctx context.Context) (string, error) {
	out, err := y.execute(ctx, "version", versionTimeout, nil, []string{"--version"})
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return "", ErrEmptyOutput
	}
	return strings.TrimSpace(line), nil
}

// ProgressiveExpression is the format selector for a single file carrying
// both audio and video, mp4 first.
func ProgressiveExpression(heightCeiling int) string {
	h := ""
	if heightCeiling > 0 {
		h = "[height<=" + strconv.Itoa(heightCeiling) + "]"
	}
	return "b[vcodec!=none][acodec!=none][ext=mp4]" + h + "/b[vcodec!=none][acodec!=none]" + h
}

func baseArgs() []string {
	return []string{"--no-playlist", "--no-warnings", "--no-progress"}
}

// jarFor returns the cookie jar for ref, or nil when the run goes without.
func (y *YTDLP) jarFor(ref source.Reference) *cookies.Jar {
	if ref.Platform != source.Instagram {
		return nil
	}
	return y.opts.Cookies
}

func parseDirect(out []byte) (Direct, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	field := func(i int) string {
		if i >= len(lines) {
			return ""
		}
		v := strings.TrimSpace(lines[i])
		if v == "NA" {
			return ""
		}
		return v
	}

	d := Direct{URL: field(0), Title: field(1), Uploader: field(2)}
	if !strings.HasPrefix(d.URL, "http://") && !strings.HasPrefix(d.URL, "https://") {
		return Direct{}, ErrEmptyOutput
	}
	return d, nil
}

// run waits for an extractor slot, then executes the binary.
func (y *YTDLP) run(ctx context.Context, op string, timeout time.Duration, jar *cookies.Jar, args []string) ([]byte, error) {
	if err := y.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for extractor slot: %w", err)
	}
	defer y.slots.Release(1)
	return y.execute(ctx, op, timeout, jar, args)
}

// execute runs the binary with a hard timeout and an output cap. The child
// runs in its own process group and is always reaped before execute returns.
// With a jar, the child gets its own cookie copy, removed once it exits.
func (y *YTDLP) execute(ctx context.Context, op string, timeout time.Duration, jar *cookies.Jar, args []string) ([]byte, error) {
	if jar != nil {
		path, release, err := jar.Checkout()
		if err != nil {
			return nil, fmt.Errorf("preparing cookies: %w", err)
		}
		defer release()
		args = append([]string{"--cookies", path}, args...)
	}

	runCtx, cancelTimeout := context.WithTimeoutCause(ctx, timeout, ErrFetchTimeout)
	defer cancelTimeout()
	runCtx, abort := context.WithCancelCause(runCtx)
	defer abort(nil)

	cmd := exec.CommandContext(runCtx, y.opts.Binary, args...)
	procgroup.Set(cmd)
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{limit: y.opts.MaxOutput, onOverflow: func() { abort(ErrOutputTooLarge) }}
	stderr := procgroup.NewRing(procgroup.DefaultRingSize)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log := logging.With(logging.Fields{"component": "extractor", "op": op})
	start := time.Now()

	if err := cmd.Start(); err != nil {
		y.observer.RunStarted(op)
		y.observer.RunFinished(op, "unavailable", 0)
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("failed to start %s: %w", y.opts.Binary, err)
	}

	y.observer.RunStarted(op)
	if y.onStart != nil {
		y.onStart(cmd.Process.Pid)
	}
	log.Debugf("started pid %d: %s %s", cmd.Process.Pid, y.opts.Binary, strings.Join(args, " "))

	waitErr := cmd.Wait()
	err := classifyRun(runCtx, waitErr, stderr)
	elapsed := time.Since(start)
	y.observer.RunFinished(op, statusOf(err), elapsed.Seconds())

	if err != nil {
		log.Warnf("run failed after %v: %v", elapsed.Round(time.Millisecond), err)
		if tail := stderr.Tail(10); tail != "" {
			log.Debugf("stderr: %s", tail)
		}
		return nil, err
	}

	log.Debugf("completed in %v (%d bytes)", elapsed.Round(time.Millisecond), stdout.buf.Len())
	return stdout.buf.Bytes(), nil
}

func classifyRun(runCtx context.Context, waitErr error, stderr *procgroup.Ring) error {
	if cause := context.Cause(runCtx); cause != nil {
		switch {
		case errors.Is(cause, ErrOutputTooLarge):
			return ErrOutputTooLarge
		case errors.Is(cause, ErrFetchTimeout):
			return ErrFetchTimeout
		default:
			return fmt.Errorf("extractor run canceled: %w", cause)
		}
	}

	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExtractionError{ExitCode: code, Stderr: stderr.Tail(20)}
	}

	if stderr.Len() > 0 {
		return &ExtractionError{Stderr: stderr.Tail(20)}
	}
	return nil
}

// cappedBuffer collects stdout until limit bytes, then reports overflow
// once and rejects further writes.
type cappedBuffer struct {
	buf        bytes.Buffer
	limit      int64
	exceeded   bool
	onOverflow func()
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.exceeded || int64(b.buf.Len()+len(p)) > b.limit {
		if !b.exceeded {
			b.exceeded = true
			if b.onOverflow != nil {
				b.onOverflow()
			}
		}
		return 0, ErrOutputTooLarge
	}
	return b.buf.Write(p)
}

var _ Extractor = (*YTDLP)(nil)
