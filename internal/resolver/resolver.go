package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"golang.org/x/sync/singleflight"

	"instantsaver/internal/extractor"
	"instantsaver/internal/logging"
	"instantsaver/internal/metrics"
	"instantsaver/internal/profilepic"
	"instantsaver/internal/selector"
	"instantsaver/internal/source"
)

// DefaultDownloadPath is where download links point when no other path is
// configured.
const DefaultDownloadPath = "/download"

const unknownUploader = "unknown"

var (
	// ErrNotFound is terminal: the referenced media does not exist or carries
	// nothing we can deliver.
	ErrNotFound = errors.New("media not found")
	// ErrResolutionFailed means every strategy was tried without success.
	ErrResolutionFailed = errors.New("resolution failed")
)

// ResolutionError reports an exhausted strategy chain along with the last
// underlying cause, which may be nil.
type ResolutionError struct {
	Cause error
}

func (e *ResolutionError) Error() string {
	if e.Cause == nil {
		return ErrResolutionFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrResolutionFailed, e.Cause)
}

func (e *ResolutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrResolutionFailed}
	}
	return []error{ErrResolutionFailed, e.Cause}
}

// Retryable reports whether trying again later could succeed.
func (e *ResolutionError) Retryable() bool {
	return e.Cause == nil || extractor.IsTransient(e.Cause) || errors.Is(e.Cause, profilepic.ErrUpstream)
}

// Options are per-request resolution parameters.
type Options struct {
	// HeightCeiling of zero means no ceiling.
	HeightCeiling int
}

// Result is the preview description returned to clients.
type Result struct {
	Type        selector.Type `json:"type"`
	CanPreview  bool          `json:"can_preview"`
	PreviewURL  *string       `json:"preview_url"`
	DownloadURL string        `json:"download_url"`
	Username    string        `json:"username"`
	Title       string        `json:"title"`
	Message     string        `json:"message,omitempty"`
	// Strategy names the stage that produced the result.
	Strategy string `json:"-"`
}

// ProfileFetcher looks up a profile picture URL by username.
type ProfileFetcher interface {
	Fetch(ctx context.Context, username string) (string, error)
}

// Config wires a Resolver.
type Config struct {
	Extractor extractor.Extractor
	Profiles  ProfileFetcher
	Selector  *selector.Selector
	// DownloadPath prefixes generated download links.
	DownloadPath string
}

// Resolver runs the ordered strategy chain for a reference.
type Resolver struct {
	extractor    extractor.Extractor
	profiles     ProfileFetcher
	selector     *selector.Selector
	downloadPath string
	strategies   []Strategy
	inflight     singleflight.Group
}

// New creates a resolver with the standard chain: profile picture, direct
// URL, full manifest.
func New(cfg Config) *Resolver {
	r := &Resolver{
		extractor:    cfg.Extractor,
		profiles:     cfg.Profiles,
		selector:     cfg.Selector,
		downloadPath: cfg.DownloadPath,
	}
	if r.selector == nil {
		r.selector = selector.New(selector.Policy{})
	}
	if r.downloadPath == "" {
		r.downloadPath = DefaultDownloadPath
	}
	r.strategies = []Strategy{
		r.profilePictureStrategy(),
		r.directURLStrategy(),
		r.manifestStrategy(),
	}
	return r
}

// Strategies returns the chain's stage names in evaluation order.
func (r *Resolver) Strategies() []string {
	return lo.Map(r.strategies, func(s Strategy, _ int) string { return s.Name })
}

// Resolve produces a preview for ref. Concurrent calls for the same
// reference and ceiling share one run of the chain; nothing is kept once it
// completes.
func (r *Resolver) Resolve(ctx context.Context, ref source.Reference, opts Options) (Result, error) {
	key := ref.URL + "|" + strconv.Itoa(opts.HeightCeiling)

	leader := false
	ch := r.inflight.DoChan(key, func() (interface{}, error) {
		leader = true
		// Followers may still want the answer if the first caller leaves.
		return r.run(context.WithoutCancel(ctx), ref, opts)
	})

	select {
	case res := <-ch:
		if !leader {
			metrics.ResolveCoalescedTotal.Inc()
		}
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (r *Resolver) run(ctx context.Context, ref source.Reference, opts Options) (Result, error) {
	log := logging.With(logging.Fields{"component": "resolver", "url": ref.URL})

	var lastErr error
	for _, s := range r.strategies {
		if !s.Applies(ref) {
			continue
		}

		start := time.Now()
		res, err := s.Run(ctx, ref, opts)
		metrics.ResolveDuration.WithLabelValues(s.Name).Observe(time.Since(start).Seconds())

		if errors.Is(err, ErrNotFound) {
			metrics.ResolveTotal.WithLabelValues(s.Name, "terminal").Inc()
			log.Infof("%s: %v", s.Name, err)
			return Result{}, err
		}
		if result, ok := res.Get(); ok && err == nil {
			metrics.ResolveTotal.WithLabelValues(s.Name, "hit").Inc()
			result.Strategy = s.Name
			log.Debugf("resolved by %s in %v", s.Name, time.Since(start).Round(time.Millisecond))
			return result, nil
		}

		metrics.ResolveTotal.WithLabelValues(s.Name, "next").Inc()
		if err != nil {
			lastErr = err
			log.Debugf("%s failed, trying next: %v", s.Name, err)
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
	}

	return Result{}, &ResolutionError{Cause: lastErr}
}

// Image returns a still image URL for ref: the profile picture for profile
// references, the manifest thumbnail otherwise.
func (r *Resolver) Image(ctx context.Context, ref source.Reference) (string, error) {
	if ref.IsProfile() {
		if r.profiles == nil {
			return "", ErrNotFound
		}
		picURL, err := r.profiles.Fetch(ctx, ref.Username)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return picURL, nil
	}

	m, err := r.extractor.FetchManifest(ctx, ref)
	if err != nil {
		return "", err
	}
	thumb, ok := m.Thumbnail.Get()
	if !ok {
		return "", fmt.Errorf("%w: no thumbnail", ErrNotFound)
	}
	return thumb, nil
}

// DownloadLink builds the relative download URL for ref.
func DownloadLink(path string, ref source.Reference, profile string, heightCeiling int) string {
	q := url.Values{}
	q.Set("url", ref.URL)
	q.Set("profile", profile)
	if heightCeiling > 0 {
		q.Set("heightCeiling", strconv.Itoa(heightCeiling))
	}
	return path + "?" + q.Encode()
}

func uploaderOrUnknown(names ...string) string {
	return lo.CoalesceOrEmpty(append(names, unknownUploader)...)
}

func some(r Result) (mo.Option[Result], error) {
	return mo.Some(r), nil
}
