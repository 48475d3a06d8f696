package startup

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// CookiesFileName is the name of the Netscape cookie jar written at startup.
const CookiesFileName = "instantsaver-instagram-cookies.txt"

const netscapeHeader = "# Netscape HTTP Cookie File"

// ErrEmptyCookies is returned when the configured cookie text has no content.
var ErrEmptyCookies = errors.New("cookie text is empty")

// WriteCookies writes the raw cookie text into dir and returns the file path.
// It runs once during startup. Subprocesses never receive this file, only
// the per-run copies a cookies.Jar makes from it.
// Values pasted from a single-line env var may carry literal "\n" escapes,
// which are expanded, and the Netscape header yt-dlp expects is added when
// missing.
func WriteCookies(fs afero.Fs, dir, text string) (string, error) {
	content := normalizeCookies(text)
	if content == "" {
		return "", ErrEmptyCookies
	}

	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create cookie directory: %w", err)
	}

	path := filepath.Join(dir, CookiesFileName)
	if err := afero.WriteFile(fs, path, []byte(content), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func normalizeCookies(text string) string {
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = strings.ReplaceAll(text, `\t`, "\t")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if !strings.HasPrefix(text, netscapeHeader) {
		text = netscapeHeader + "\n" + text
	}
	return text + "\n"
}
