package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Layout says which elementary streams a candidate carries.
type Layout int

const (
	LayoutUnknown Layout = iota
	// LayoutProgressive carries both audio and video.
	LayoutProgressive
	LayoutVideoOnly
	LayoutAudioOnly
)

func (l Layout) String() string {
	switch l {
	case LayoutProgressive:
		return "progressive"
	case LayoutVideoOnly:
		return "video-only"
	case LayoutAudioOnly:
		return "audio-only"
	default:
		return "unknown"
	}
}

// Stream is one deliverable candidate from a manifest.
type Stream struct {
	FormatID  string
	Container string
	// VideoCodec and AudioCodec are empty when the extractor reported the
	// track as absent.
	VideoCodec string
	AudioCodec string
	Bitrate    mo.Option[float64]
	Height     mo.Option[int]
	URL        string
	Layout     Layout
}

// HasVideo reports whether the stream carries a video track.
func (s Stream) HasVideo() bool {
	return s.Layout == LayoutProgressive || s.Layout == LayoutVideoOnly
}

// Manifest is the parsed description of a media item.
type Manifest struct {
	ID         string
	Title      string
	Uploader   string
	WebpageURL string
	Thumbnail  mo.Option[string]
	Duration   mo.Option[float64]
	Streams    []Stream
}

type rawFormat struct {
	FormatID string   `json:"format_id"`
	Ext      string   `json:"ext"`
	VCodec   *string  `json:"vcodec"`
	ACodec   *string  `json:"acodec"`
	TBR      *float64 `json:"tbr"`
	Height   *int     `json:"height"`
	URL      string   `json:"url"`
}

type rawThumbnail struct {
	URL string `json:"url"`
}

type rawManifest struct {
	Type       string         `json:"_type"`
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Uploader   string         `json:"uploader"`
	Channel    string         `json:"channel"`
	UploaderID string         `json:"uploader_id"`
	WebpageURL string         `json:"webpage_url"`
	Thumbnail  string         `json:"thumbnail"`
	Thumbnails []rawThumbnail `json:"thumbnails"`
	Duration   *float64       `json:"duration"`
	Formats    []rawFormat    `json:"formats"`
	// Single-format items carry the stream on the top level.
	URL     string        `json:"url"`
	Ext     string        `json:"ext"`
	VCodec  *string       `json:"vcodec"`
	ACodec  *string       `json:"acodec"`
	Entries []rawManifest `json:"entries"`
}

// ParseManifest decodes extractor output. It accepts a bare JSON document or
// output with noise before it, in which case the last line starting with '{'
// is used. Playlist documents resolve to their first entry.
func ParseManifest(output []byte) (*Manifest, error) {
	raw, err := decodeDocument(output)
	if err != nil {
		return nil, err
	}

	for len(raw.Entries) > 0 {
		raw = raw.Entries[0]
	}
	if raw.Type == "playlist" {
		return nil, fmt.Errorf("%w: playlist has no entries", ErrManifestParse)
	}

	return raw.toManifest(), nil
}

func decodeDocument(output []byte) (rawManifest, error) {
	var raw rawManifest

	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return raw, fmt.Errorf("%w: empty output", ErrManifestParse)
	}
	if err := json.Unmarshal(trimmed, &raw); err == nil {
		return raw, nil
	}

	lines := strings.Split(string(trimmed), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return raw, fmt.Errorf("%w: %v", ErrManifestParse, err)
		}
		return raw, nil
	}
	return raw, fmt.Errorf("%w: no JSON document in output", ErrManifestParse)
}

func (r rawManifest) toManifest() *Manifest {
	m := &Manifest{
		ID:         r.ID,
		Title:      r.Title,
		Uploader:   lo.CoalesceOrEmpty(r.Uploader, r.Channel, r.UploaderID),
		WebpageURL: r.WebpageURL,
		Duration:   mo.PointerToOption(r.Duration),
	}

	thumbnail := r.Thumbnail
	if thumbnail == "" {
		withURL := lo.Filter(r.Thumbnails, func(t rawThumbnail, _ int) bool { return t.URL != "" })
		thumbnail = lo.LastOrEmpty(withURL).URL
	}
	if thumbnail != "" {
		m.Thumbnail = mo.Some(thumbnail)
	}

	formats := r.Formats
	if len(formats) == 0 && r.URL != "" {
		formats = []rawFormat{{FormatID: "0", Ext: r.Ext, VCodec: r.VCodec, ACodec: r.ACodec, URL: r.URL}}
	}

	m.Streams = lo.FilterMap(formats, func(f rawFormat, _ int) (Stream, bool) {
		if f.URL == "" {
			return Stream{}, false
		}
		s := Stream{
			FormatID:   f.FormatID,
			Container:  strings.ToLower(f.Ext),
			VideoCodec: codec(f.VCodec),
			AudioCodec: codec(f.ACodec),
			Bitrate:    mo.PointerToOption(f.TBR),
			Height:     mo.PointerToOption(f.Height),
			URL:        f.URL,
		}
		s.Layout = layoutOf(s.VideoCodec, s.AudioCodec)
		return s, true
	})

	return m
}

func codec(v *string) string {
	if v == nil || *v == "none" {
		return ""
	}
	return *v
}

func layoutOf(vcodec, acodec string) Layout {
	switch {
	case vcodec != "" && acodec != "":
		return LayoutProgressive
	case vcodec != "":
		return LayoutVideoOnly
	case acodec != "":
		return LayoutAudioOnly
	default:
		return LayoutUnknown
	}
}
