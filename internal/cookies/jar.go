package cookies

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"instantsaver/internal/logging"
)

// ErrNoSource is returned by Checkout when the source file is missing.
var ErrNoSource = errors.New("cookie file not found")

const copyPattern = "run-*.txt"

// Jar copies a source cookie file for every subprocess that needs it. The
// source is never handed to a child, so its bytes only change when the
// operator changes them.
type Jar struct {
	fs     afero.Fs
	source string
	dir    string
}

// NewJar returns a jar over source. Copies are created next to it, which
// keeps them on the same private directory the source was written to.
func NewJar(fs afero.Fs, source string) *Jar {
	return &Jar{fs: fs, source: source, dir: filepath.Dir(source)}
}

// Source is the path of the startup cookie file.
func (j *Jar) Source() string {
	if j == nil {
		return ""
	}
	return j.source
}

// Checkout writes a fresh 0600 copy of the source and returns its path with
// a release func that removes it. Release must run after the child exits.
// A nil jar checks out nothing.
func (j *Jar) Checkout() (string, func(), error) {
	if j == nil {
		return "", func() {}, nil
	}

	data, err := afero.ReadFile(j.fs, j.source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrNoSource, j.source)
		}
		return "", nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	f, err := afero.TempFile(j.fs, j.dir, copyPattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create cookie copy: %w", err)
	}
	path := f.Name()
	release := func() {
		if err := j.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to remove cookie copy %s: %v", path, err)
		}
	}

	if err := j.fs.Chmod(path, 0o600); err != nil {
		f.Close()
		release()
		return "", nil, fmt.Errorf("failed to restrict cookie copy: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		release()
		return "", nil, fmt.Errorf("failed to write cookie copy: %w", err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("failed to write cookie copy: %w", err)
	}
	return path, release, nil
}
