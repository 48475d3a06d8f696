package source

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var (
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	shortcodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	usernamePattern  = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)
)

// Root path segments on Instagram that are site sections, not accounts.
var instagramReserved = map[string]bool{
	"p": true, "reel": true, "reels": true, "tv": true, "stories": true,
	"explore": true, "accounts": true, "direct": true, "about": true,
	"developer": true, "legal": true, "web": true, "api": true,
	"audio": true,
}

// Content path prefixes and the canonical prefix each maps to.
var instagramContent = map[string]string{
	"p":     "p",
	"reel":  "reel",
	"reels": "reel",
	"tv":    "tv",
}

// Trailing segments allowed after a shortcode.
var instagramSuffixes = map[string]bool{
	"embed":     true,
	"captioned": true,
}

// Classify parses raw, identifies its platform and shape, and returns the
// canonical reference. The scheme and www./m. host prefixes are optional.
func Classify(raw string) (Reference, error) {
	input := strings.TrimSpace(raw)

	u, err := parse(input)
	if err != nil {
		return Reference{}, &Error{Err: ErrInvalidURL, Input: input}
	}

	platform, ok := platformForHost(u.Host)
	if !ok {
		return Reference{}, &Error{Err: ErrInvalidURL, Input: input}
	}

	var ref Reference
	switch platform {
	case Instagram:
		ref, ok = classifyInstagram(u)
	case YouTube:
		ref, ok = classifyYouTube(u)
	}
	if !ok {
		return Reference{}, &Error{Err: ErrInvalidContentURL, Platform: platform, Input: input}
	}
	return ref, nil
}

// ClassifyFor is Classify restricted to one platform. A URL of another
// platform is reported as ErrInvalidURL for the requested platform.
func ClassifyFor(raw string, platform Platform) (Reference, error) {
	ref, err := Classify(raw)
	if err != nil {
		var serr *Error
		if errors.As(err, &serr) && serr.Platform == "" {
			serr.Platform = platform
		}
		return Reference{}, err
	}
	if ref.Platform != platform {
		return Reference{}, &Error{Err: ErrInvalidURL, Platform: platform, Input: strings.TrimSpace(raw)}
	}
	return ref, nil
}

// Normalize returns the canonical form of raw. Inputs that do not classify
// are returned trimmed but otherwise untouched, so Normalize(Normalize(x))
// always equals Normalize(x).
func Normalize(raw string) string {
	ref, err := Classify(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return ref.URL
}

func parse(input string) (*url.URL, error) {
	if input == "" {
		return nil, ErrInvalidURL
	}
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	u, err := url.Parse(input)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	if u.Host == "" {
		return nil, ErrInvalidURL
	}
	return u, nil
}

func platformForHost(host string) (Platform, bool) {
	host = strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	for _, prefix := range []string{"www.", "m.", "music."} {
		host = strings.TrimPrefix(host, prefix)
	}

	switch host {
	case "instagram.com", "instagr.am":
		return Instagram, true
	case "youtube.com", "youtu.be", "youtube-nocookie.com":
		return YouTube, true
	}
	return "", false
}

func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func classifyInstagram(u *url.URL) (Reference, bool) {
	segs := segments(u.Path)

	// The shortcode must end the path, bar an embed suffix.
	content := func(prefix, code string, rest []string) (Reference, bool) {
		canonical, ok := instagramContent[strings.ToLower(prefix)]
		if !ok || !shortcodePattern.MatchString(code) || instagramReserved[strings.ToLower(code)] {
			return Reference{}, false
		}
		if len(rest) > 1 || (len(rest) == 1 && !instagramSuffixes[strings.ToLower(rest[0])]) {
			return Reference{}, false
		}
		return Reference{
			Platform: Instagram,
			Kind:     KindPost,
			Shape:    ShapeContent,
			URL:      "https://www.instagram.com/" + canonical + "/" + code + "/",
			ID:       code,
		}, true
	}

	switch {
	case len(segs) >= 2 && instagramContent[strings.ToLower(segs[0])] != "":
		return content(segs[0], segs[1], segs[2:])
	case len(segs) >= 3 && instagramContent[strings.ToLower(segs[1])] != "":
		// /<user>/p/<code>/ and /<user>/reel/<code>/
		return content(segs[1], segs[2], segs[3:])
	case len(segs) == 1:
		name := segs[0]
		if instagramReserved[strings.ToLower(name)] || !usernamePattern.MatchString(name) {
			return Reference{}, false
		}
		return Reference{
			Platform: Instagram,
			Kind:     KindProfilePicture,
			Shape:    ShapeProfile,
			URL:      "https://www.instagram.com/" + name + "/",
			Username: name,
		}, true
	}
	return Reference{}, false
}

func classifyYouTube(u *url.URL) (Reference, bool) {
	id := youTubeID(u)
	if !videoIDPattern.MatchString(id) {
		return Reference{}, false
	}
	return Reference{
		Platform: YouTube,
		Kind:     KindVideo,
		Shape:    ShapeContent,
		URL:      "https://www.youtube.com/watch?v=" + id,
		ID:       id,
	}, true
}

func youTubeID(u *url.URL) string {
	segs := segments(u.Path)

	if strings.HasSuffix(strings.ToLower(u.Hostname()), "youtu.be") {
		if len(segs) > 0 {
			return segs[0]
		}
		return ""
	}

	if len(segs) == 0 {
		return ""
	}

	switch strings.ToLower(segs[0]) {
	case "watch":
		return u.Query().Get("v")
	case "shorts", "embed", "live", "v":
		if len(segs) > 1 {
			return segs[1]
		}
	}
	return ""
}
