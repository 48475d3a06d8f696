package selector

import (
	"github.com/samber/lo"

	"instantsaver/internal/extractor"
)

// PreferredContainer is the container that plays natively on every target
// browser and phone.
const PreferredContainer = "mp4"

// Type is the kind of media a pick represents.
type Type string

const (
	TypeNone  Type = ""
	TypeVideo Type = "video"
	TypeImage Type = "image"
)

// Policy holds selection choices that are configuration rather than
// algorithm.
type Policy struct {
	// AllowSilentPreview offers a video-only stream as a preview when no
	// progressive stream exists. The player will have no sound.
	AllowSilentPreview bool
}

// Pick is the selector's verdict for one manifest.
type Pick struct {
	Type       Type
	URL        string
	CanPreview bool
	// Silent is set when the pick is a video-only stream.
	Silent bool
	// Stream is nil for thumbnail and null picks.
	Stream *extractor.Stream
}

// IsNull reports whether nothing usable was found.
func (p Pick) IsNull() bool {
	return p.Type == TypeNone
}

// Selector chooses a preview from a manifest.
type Selector struct {
	policy Policy
}

// New creates a selector with the given policy.
func New(policy Policy) *Selector {
	return &Selector{policy: policy}
}

// Policy returns the active policy.
func (s *Selector) Policy() Policy {
	return s.policy
}

// Select picks the preview for m. A positive heightCeiling drops streams
// known to be taller; streams without a reported height are kept.
func (s *Selector) Select(m *extractor.Manifest, heightCeiling int) Pick {
	if m == nil {
		return Pick{}
	}

	streams := WithinCeiling(m.Streams, heightCeiling)

	progressive := lo.Filter(streams, func(st extractor.Stream, _ int) bool {
		return st.Layout == extractor.LayoutProgressive
	})
	if len(progressive) > 0 {
		preferred := lo.Filter(progressive, func(st extractor.Stream, _ int) bool {
			return st.Container == PreferredContainer
		})
		if len(preferred) == 0 {
			preferred = progressive
		}
		best := Best(preferred)
		return Pick{Type: TypeVideo, URL: best.URL, CanPreview: true, Stream: &best}
	}

	videoOnly := lo.Filter(streams, func(st extractor.Stream, _ int) bool {
		return st.Layout == extractor.LayoutVideoOnly
	})
	if len(videoOnly) > 0 {
		best := Best(videoOnly)
		if !s.policy.AllowSilentPreview {
			return Pick{Type: TypeVideo, Silent: true, Stream: &best}
		}
		return Pick{Type: TypeVideo, URL: best.URL, CanPreview: true, Silent: true, Stream: &best}
	}

	if thumb, ok := m.Thumbnail.Get(); ok {
		return Pick{Type: TypeImage, URL: thumb, CanPreview: true}
	}
	return Pick{}
}

// WithinCeiling returns the streams at or below heightCeiling. A ceiling of
// zero or less returns streams unchanged.
func WithinCeiling(streams []extractor.Stream, heightCeiling int) []extractor.Stream {
	if heightCeiling <= 0 {
		return streams
	}
	return lo.Filter(streams, func(st extractor.Stream, _ int) bool {
		h, ok := st.Height.Get()
		return !ok || h <= heightCeiling
	})
}

// Best returns the best of streams: higher bitrate first, then the preferred
// container. Ties keep first-seen order. Missing bitrate counts as zero.
// Best returns the zero Stream for an empty slice.
func Best(streams []extractor.Stream) extractor.Stream {
	return lo.MaxBy(streams, better)
}

func better(a, b extractor.Stream) bool {
	ab, bb := a.Bitrate.OrEmpty(), b.Bitrate.OrEmpty()
	if ab != bb {
		return ab > bb
	}
	return a.Container == PreferredContainer && b.Container != PreferredContainer
}
