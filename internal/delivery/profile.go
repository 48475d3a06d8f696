package delivery

import (
	"errors"
	"fmt"
	"mime"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"instantsaver/internal/source"
)

// Kind is the media kind a client asked to download.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// MaxHeightCeiling is the tallest ceiling a client may request.
const MaxHeightCeiling = 4320

// ErrInvalidProfile means the requested delivery profile is malformed or
// not allowed for the reference.
var ErrInvalidProfile = errors.New("invalid download profile")

// Profile is a download-time intent.
type Profile struct {
	Kind          Kind   `validate:"required,oneof=video audio image"`
	Container     string `validate:"required,oneof=mp4 m4a jpg"`
	HeightCeiling int    `validate:"min=0,max=4320"`
}

var containers = map[Kind]string{
	KindVideo: "mp4",
	KindAudio: "m4a",
	KindImage: "jpg",
}

var contentTypes = map[Kind]string{
	KindVideo: "video/mp4",
	KindAudio: "audio/m4a",
	KindImage: "image/jpeg",
}

// Still images are passed through as the CDN serves them.
var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"image/avif": "avif",
}

// ImageFormat maps an upstream Content-Type to the type and extension an
// image delivery is sent with. Unknown or missing types fall back to JPEG.
func ImageFormat(upstream string) (contentType, ext string) {
	mediaType, _, err := mime.ParseMediaType(upstream)
	if err == nil {
		mediaType = strings.ToLower(mediaType)
		if ext, ok := imageExtensions[mediaType]; ok {
			return mediaType, ext
		}
	}
	return contentTypes[KindImage], containers[KindImage]
}

// NewProfile fills in the container for kind.
func NewProfile(kind Kind, heightCeiling int) Profile {
	return Profile{Kind: kind, Container: containers[kind], HeightCeiling: heightCeiling}
}

// ParseProfile reads query parameter values. An empty kind means video and
// an empty ceiling means none.
func ParseProfile(kind, heightCeiling string) (Profile, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(kind)))
	if k == "" {
		k = KindVideo
	}

	ceiling := 0
	if s := strings.TrimSpace(heightCeiling); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: heightCeiling must be a whole number", ErrInvalidProfile)
		}
		ceiling = n
	}
	return NewProfile(k, ceiling), nil
}

// ContentType returns the response content type for the profile.
func (p Profile) ContentType() string {
	return contentTypes[p.Kind]
}

// NewValidator returns the validator used for download requests.
func NewValidator() *validator.Validate {
	return validator.New()
}

// Validate checks the profile's fields and the platform rules for ref.
// Profile-shape references only have a picture to offer.
func Validate(v *validator.Validate, ref source.Reference, p Profile) error {
	if err := v.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrInvalidProfile, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if containers[p.Kind] != p.Container {
		return fmt.Errorf("%w: %s cannot be delivered as %s", ErrInvalidProfile, p.Kind, p.Container)
	}
	if ref.IsProfile() && p.Kind != KindImage {
		return &source.Error{Err: source.ErrInvalidContentURL, Platform: ref.Platform, Input: ref.URL}
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^a-z0-9_-]+`)

const (
	maxNameLength = 40
	fallbackName  = "instantsaver"
)

// Filename builds an attachment name: the sanitized label, a millisecond
// timestamp and the container extension.
func Filename(label, ext string, now time.Time) string {
	name := unsafeName.ReplaceAllString(strings.ToLower(label), "_")
	name = strings.Trim(name, "_")
	if len(name) > maxNameLength {
		name = strings.TrimRight(name[:maxNameLength], "_")
	}
	if name == "" {
		name = fallbackName
	}
	return fmt.Sprintf("%s_%d.%s", name, now.UnixMilli(), ext)
}
