package source

import (
	"errors"
	"fmt"
)

// Platform identifies the site a URL belongs to.
type Platform string

const (
	Instagram Platform = "instagram"
	YouTube   Platform = "youtube"
)

// Platforms lists every supported platform in routing order.
var Platforms = []Platform{Instagram, YouTube}

// ParsePlatform maps a route segment such as "instagram" to a Platform.
func ParsePlatform(s string) (Platform, bool) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Kind is the media tag attached to a classified reference.
type Kind string

const (
	KindProfilePicture Kind = "profile-picture"
	KindPost           Kind = "post"
	KindVideo          Kind = "video"
)

// Shape separates account roots from individual content items.
type Shape int

const (
	ShapeContent Shape = iota
	ShapeProfile
)

func (s Shape) String() string {
	if s == ShapeProfile {
		return "profile"
	}
	return "content"
}

// Reference is a classified, canonicalized source URL. It never changes
// after Classify returns it.
type Reference struct {
	Platform Platform
	Kind     Kind
	Shape    Shape
	// URL is the canonical form handed to the extractor.
	URL string
	// ID is the shortcode or video id; empty for profiles.
	ID string
	// Username is set for profile-shape references only.
	Username string
}

// IsProfile reports whether the reference points at an account root.
func (r Reference) IsProfile() bool {
	return r.Shape == ShapeProfile
}

// Label is a human readable name used for logs and default file names.
func (r Reference) Label() string {
	if r.IsProfile() {
		return r.Username
	}
	return string(r.Platform) + "_" + r.ID
}

var (
	// ErrInvalidURL means the input is not a URL of any supported platform.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidContentURL means the platform matched but no content
	// identifier could be extracted.
	ErrInvalidContentURL = errors.New("invalid content url")
)

// Error describes a classification failure. Platform is set when the host
// was recognized, so callers can show a matching example.
type Error struct {
	Err      error
	Platform Platform
	Input    string
}

func (e *Error) Error() string {
	if e.Platform != "" {
		return fmt.Sprintf("%s: %v: %q", e.Platform, e.Err, e.Input)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Input)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Example returns a well-formed URL for the platform, shown to users next to
// validation errors.
func Example(p Platform) string {
	switch p {
	case Instagram:
		return "https://www.instagram.com/p/C8q1n2yR4kP/"
	case YouTube:
		return "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	default:
		return "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	}
}
