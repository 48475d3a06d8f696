// Package extractortest provides an in-memory Extractor for tests.
package extractortest

import (
	"context"
	"sync"

	"instantsaver/internal/extractor"
	"instantsaver/internal/source"
)

// Fake is a scripted extractor. Responses are keyed by canonical URL; calls
// are recorded so tests can assert which path was taken.
type Fake struct {
	mu sync.Mutex

	Manifests   map[string]*extractor.Manifest
	ManifestErr map[string]error
	Directs     map[string]extractor.Direct
	DirectErr   map[string]error
	VersionStr  string
	VersionErr  error

	// Block, when set, is waited on by every fetch before it answers.
	Block chan struct{}

	ManifestCalls []string
	DirectCalls   []string
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Manifests:   map[string]*extractor.Manifest{},
		ManifestErr: map[string]error{},
		Directs:     map[string]extractor.Direct{},
		DirectErr:   map[string]error{},
		VersionStr:  "2024.10.22",
	}
}

func (f *Fake) wait(ctx context.Context) error {
	if f.Block == nil {
		return nil
	}
	select {
	case <-f.Block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchManifest implements extractor.Extractor.
func (f *Fake) FetchManifest(ctx context.Context, ref source.Reference) (*extractor.Manifest, error) {
	f.mu.Lock()
	f.ManifestCalls = append(f.ManifestCalls, ref.URL)
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.ManifestErr[ref.URL]; ok {
		return nil, err
	}
	if m, ok := f.Manifests[ref.URL]; ok {
		return m, nil
	}
	return nil, &extractor.ExtractionError{ExitCode: 1, Stderr: "ERROR: Unsupported URL"}
}

// DirectURL implements extractor.Extractor.
func (f *Fake) DirectURL(ctx context.Context, ref source.Reference, _ int) (extractor.Direct, error) {
	f.mu.Lock()
	f.DirectCalls = append(f.DirectCalls, ref.URL)
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return extractor.Direct{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.DirectErr[ref.URL]; ok {
		return extractor.Direct{}, err
	}
	if d, ok := f.Directs[ref.URL]; ok {
		return d, nil
	}
	return extractor.Direct{}, extractor.ErrEmptyOutput
}

// Version implements extractor.Extractor.
func (f *Fake) Version(context.Context) (string, error) {
	return f.VersionStr, f.VersionErr
}

// Calls returns how many manifest and direct fetches were made.
func (f *Fake) Calls() (manifest, direct int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ManifestCalls), len(f.DirectCalls)
}

var _ extractor.Extractor = (*Fake)(nil)
