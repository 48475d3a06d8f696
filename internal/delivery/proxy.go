package delivery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"instantsaver/internal/logging"
	"instantsaver/internal/metrics"
	"instantsaver/internal/profilepic"
	"instantsaver/internal/source"
	"instantsaver/internal/streaming"
	"instantsaver/internal/transcoder"
)

var (
	// ErrStreamingAborted means the response was committed and then cut
	// short. The status line has already gone out.
	ErrStreamingAborted = errors.New("streaming aborted")
	// ErrNoOutput means the transcoder exited or stalled before producing a
	// single byte. Nothing was sent to the client.
	ErrNoOutput = errors.New("transcoder produced no output")
	// ErrImageUpstream means the still image could not be fetched.
	ErrImageUpstream = errors.New("image fetch failed")
)

const readBufferSize = 64 * 1024

// ImageResolver finds the still image URL for a reference.
type ImageResolver interface {
	Image(ctx context.Context, ref source.Reference) (string, error)
}

// Request is one validated-on-entry download.
type Request struct {
	Ref     source.Reference
	Profile Profile
	// Title overrides the reference label in the attachment name.
	Title string
}

// Config wires a Proxy.
type Config struct {
	Transcoder transcoder.Transcoder
	Images     ImageResolver
	Validate   *validator.Validate
	// HTTPClient fetches still images; defaults to the fingerprinted
	// profilepic transport.
	HTTPClient *http.Client
	Stream     streaming.TimeoutWriterConfig
	// FirstByteTimeout bounds the wait for the transcoder's first byte.
	FirstByteTimeout time.Duration
}

// Proxy streams media from a transcoder or an image URL to a response.
type Proxy struct {
	transcoder       transcoder.Transcoder
	images           ImageResolver
	validate         *validator.Validate
	http             *http.Client
	stream           streaming.TimeoutWriterConfig
	firstByteTimeout time.Duration
	now              func() time.Time
}

// NewProxy creates a proxy.
func NewProxy(cfg Config) *Proxy {
	p := &Proxy{
		transcoder:       cfg.Transcoder,
		images:           cfg.Images,
		validate:         cfg.Validate,
		http:             cfg.HTTPClient,
		stream:           cfg.Stream,
		firstByteTimeout: cfg.FirstByteTimeout,
		now:              time.Now,
	}
	if p.validate == nil {
		p.validate = NewValidator()
	}
	if p.http == nil {
		p.http = &http.Client{Transport: profilepic.NewTransport()}
	}
	if p.stream == (streaming.TimeoutWriterConfig{}) {
		p.stream = streaming.DefaultTimeoutWriterConfig()
	}
	if p.firstByteTimeout <= 0 {
		p.firstByteTimeout = p.stream.IdleTimeout
	}
	if p.firstByteTimeout <= 0 {
		p.firstByteTimeout = time.Minute
	}
	return p
}

// Stream delivers req into w. Errors returned before anything was written
// leave w untouched so the caller can answer with a JSON error; once the
// response is committed every failure is reported as ErrStreamingAborted.
func (p *Proxy) Stream(ctx context.Context, w http.ResponseWriter, req Request) error {
	kind := string(req.Profile.Kind)
	log := logging.With(logging.Fields{"component": "delivery", "url": req.Ref.URL, "kind": kind})

	state := streaming.NewState()
	start := time.Now()

	if err := Validate(p.validate, req.Ref, req.Profile); err != nil {
		metrics.DownloadsTotal.WithLabelValues(kind, "rejected").Inc()
		return err
	}

	metrics.DownloadsInProgress.Inc()
	defer metrics.DownloadsInProgress.Dec()

	var (
		written int64
		err     error
	)
	if req.Profile.Kind == KindImage {
		written, err = p.streamImage(ctx, w, req, state)
	} else {
		written, err = p.streamProcess(ctx, w, req, state)
	}

	metrics.DownloadBytesTotal.WithLabelValues(kind).Add(float64(written))
	switch state.Phase() {
	case streaming.Completed:
		metrics.DownloadsTotal.WithLabelValues(kind, "completed").Inc()
		metrics.DownloadDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		log.Infof("delivered %d bytes in %v", written, time.Since(start).Round(time.Millisecond))
	case streaming.Aborted:
		metrics.DownloadsTotal.WithLabelValues(kind, "aborted").Inc()
		metrics.DownloadDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		log.Warnf("aborted after %d bytes: %v", written, err)
	default:
		metrics.DownloadsTotal.WithLabelValues(kind, "rejected").Inc()
	}
	return err
}

func (p *Proxy) streamProcess(ctx context.Context, w http.ResponseWriter, req Request, state *streaming.State) (int64, error) {
	job := transcoder.Job{
		Ref:           req.Ref,
		Kind:          transcoder.KindVideo,
		HeightCeiling: req.Profile.HeightCeiling,
	}
	if req.Profile.Kind == KindAudio {
		job.Kind = transcoder.KindAudio
	}

	proc, err := p.transcoder.Start(ctx, job)
	if err != nil {
		return 0, err
	}
	// Every path reaps the child; killing an exited process is a no-op.
	reaped := false
	defer func() {
		if !reaped {
			proc.Kill()
			proc.Wait()
		}
	}()

	log := logging.With(logging.Fields{"component": "delivery", "pid": proc.PID()})

	// Hold the status line until the child proves it has something to send.
	stdout := bufio.NewReaderSize(proc.Stdout(), readBufferSize)
	stall := time.AfterFunc(p.firstByteTimeout, func() {
		log.Warnf("no output after %v, killing", p.firstByteTimeout)
		proc.Kill()
	})
	_, peekErr := stdout.Peek(1)
	stall.Stop()
	if peekErr != nil {
		proc.Kill()
		waitErr := proc.Wait()
		reaped = true
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if diag := proc.Diagnostics(); diag != "" {
			log.Warnf("transcoder stderr: %s", diag)
		}
		return 0, fmt.Errorf("%w: %v", ErrNoOutput, errors.Join(peekErr, waitErr))
	}

	p.writeHeaders(w, req, req.Profile.ContentType(), req.Profile.Container, -1)
	w.WriteHeader(http.StatusOK)
	state.To(streaming.HeadersSent)

	tw := streaming.NewTimeoutWriter(ctx, w, p.stream)
	defer tw.Close()

	copied := make(chan struct{})
	go func() {
		select {
		case <-tw.Done():
			// Client gone or too slow: stop the producer so the copy ends.
			proc.Kill()
		case <-copied:
		}
	}()

	state.To(streaming.Streaming)
	_, copyErr := stdout.WriteTo(tw)
	close(copied)

	if copyErr != nil {
		proc.Kill()
	}
	waitErr := proc.Wait()
	reaped = true
	written, _ := tw.Stats()

	if diag := proc.Diagnostics(); diag != "" && (copyErr != nil || waitErr != nil) {
		log.Debugf("transcoder stderr: %s", diag)
	}

	switch {
	case copyErr != nil:
		state.To(streaming.Aborted)
		cause := copyErr
		if twErr := tw.Err(); twErr != nil {
			cause = twErr
		}
		return written, fmt.Errorf("%w: %v", ErrStreamingAborted, cause)
	case waitErr != nil:
		// Bytes are out, so the status stays 200; the file is truncated.
		state.To(streaming.Aborted)
		log.Warnf("transcoder exited with error after output started: %v", waitErr)
		return written, fmt.Errorf("%w: %v", ErrStreamingAborted, waitErr)
	}

	state.To(streaming.Completed)
	return written, nil
}

func (p *Proxy) streamImage(ctx context.Context, w http.ResponseWriter, req Request, state *streaming.State) (int64, error) {
	if p.images == nil {
		return 0, fmt.Errorf("%w: no image resolver", ErrImageUpstream)
	}
	stillURL, err := p.images.Image(ctx, req.Ref)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, stillURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrImageUpstream, err)
	}
	httpReq.Header.Set("User-Agent", profilepic.BrowserUserAgent)

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrImageUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrImageUpstream, resp.StatusCode)
	}

	contentType, ext := ImageFormat(resp.Header.Get("Content-Type"))
	p.writeHeaders(w, req, contentType, ext, resp.ContentLength)
	w.WriteHeader(http.StatusOK)
	state.To(streaming.HeadersSent)
	state.To(streaming.Streaming)

	written, err := streaming.StreamWithTimeout(ctx, w, resp.Body, p.stream)
	if err != nil {
		state.To(streaming.Aborted)
		return written, fmt.Errorf("%w: %v", ErrStreamingAborted, err)
	}
	state.To(streaming.Completed)
	return written, nil
}

func (p *Proxy) writeHeaders(w http.ResponseWriter, req Request, contentType, ext string, contentLength int64) {
	label := req.Title
	if label == "" {
		label = req.Ref.Label()
	}
	name := Filename(label, ext, p.now())

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	if contentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(contentLength, 10))
	}
}

// Committed reports whether err came from a stream whose headers were
// already sent.
func Committed(err error) bool {
	return errors.Is(err, ErrStreamingAborted)
}

