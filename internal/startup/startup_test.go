package startup

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS != runtime.GOOS {
		t.Errorf("Expected OS=%s, got %s", runtime.GOOS, info.OS)
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestReadConfigDefaults(t *testing.T) {
	config, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if config.Port != "3001" {
		t.Errorf("Expected default port 3001, got %s", config.Port)
	}
	if config.ManifestTimeout != 45*time.Second {
		t.Errorf("Expected MANIFEST_TIMEOUT 45s, got %v", config.ManifestTimeout)
	}
	if config.ManifestMaxBytes != 16<<20 {
		t.Errorf("Expected MANIFEST_MAX_BYTES 16MiB, got %d", config.ManifestMaxBytes)
	}
	if config.AllowSilentPreview {
		t.Error("Expected silent previews to be disabled by default")
	}
	if len(config.CORSOrigins) != 1 || config.CORSOrigins[0] != "*" {
		t.Errorf("Expected CORS origins [*], got %v", config.CORSOrigins)
	}
	if config.CookiesDir == "" {
		t.Error("Expected CookiesDir to default to the temp dir")
	}
}

func TestReadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("MANIFEST_TIMEOUT", "3s")
	t.Setenv("ALLOW_SILENT_PREVIEW", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("EXTRACTOR_WORKERS", "3")

	config, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if config.Port != "8088" {
		t.Errorf("Expected port 8088, got %s", config.Port)
	}
	if config.ManifestTimeout != 3*time.Second {
		t.Errorf("Expected 3s, got %v", config.ManifestTimeout)
	}
	if !config.AllowSilentPreview {
		t.Error("Expected silent previews to be enabled")
	}
	if len(config.CORSOrigins) != 2 {
		t.Errorf("Expected 2 origins, got %v", config.CORSOrigins)
	}
	if config.ExtractorWorkers != 3 {
		t.Errorf("Expected 3 extractor workers, got %d", config.ExtractorWorkers)
	}
}

func TestReadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("MANIFEST_MAX_BYTES", "0")

	_, err := ReadConfig()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestWriteCookies(t *testing.T) {
	fs := afero.NewMemMapFs()

	path, err := WriteCookies(fs, "/run/secrets", `.instagram.com\tTRUE\t/\tTRUE\t0\tsessionid\tabc`)
	if err != nil {
		t.Fatalf("WriteCookies failed: %v", err)
	}

	if path != filepath.Join("/run/secrets", CookiesFileName) {
		t.Errorf("Unexpected path %s", path)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("Failed to read cookie file: %v", err)
	}

	content := string(data)
	if !strings.HasPrefix(content, netscapeHeader+"\n") {
		t.Errorf("Expected Netscape header, got %q", content)
	}
	if !strings.Contains(content, ".instagram.com\tTRUE") {
		t.Errorf("Expected escaped tabs to be expanded, got %q", content)
	}

	info, err := fs.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestWriteCookiesKeepsExistingHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	text := netscapeHeader + "\n.instagram.com\tTRUE\t/\tTRUE\t0\tcsrftoken\txyz"

	path, err := WriteCookies(fs, "/tmp", text)
	if err != nil {
		t.Fatalf("WriteCookies failed: %v", err)
	}

	data, _ := afero.ReadFile(fs, path)
	if strings.Count(string(data), netscapeHeader) != 1 {
		t.Errorf("Expected exactly one header, got %q", data)
	}
}

func TestWriteCookiesEmpty(t *testing.T) {
	_, err := WriteCookies(afero.NewMemMapFs(), "/tmp", "   ")
	if !errors.Is(err, ErrEmptyCookies) {
		t.Errorf("Expected ErrEmptyCookies, got %v", err)
	}
}

func TestCheckToolMissing(t *testing.T) {
	status := CheckTool("definitely-not-a-real-binary-xyz", "--version")
	if status.Present {
		t.Error("Expected missing tool to be reported as absent")
	}
	if status.Error == "" {
		t.Error("Expected an error description")
	}
}

func TestCheckToolVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	script := filepath.Join(t.TempDir(), "fake-tool")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 2024.10.22\necho extra\n"), 0o755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	status := CheckTool(script, "--version")
	if !status.Present {
		t.Fatalf("Expected tool to be present: %+v", status)
	}
	if status.Version != "2024.10.22" {
		t.Errorf("Expected version 2024.10.22, got %q", status.Version)
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	router.HandleFunc("/resolve", noop).Methods("GET").Name("resolve")
	router.HandleFunc("/api/{platform}/download", noop).Methods("GET", "HEAD")

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}

	if len(routes) != 3 {
		t.Fatalf("Expected 3 routes, got %d: %+v", len(routes), routes)
	}
	if routes[0].Name != "resolve" || routes[0].Path != "/resolve" {
		t.Errorf("Unexpected first route %+v", routes[0])
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/resolve":              "resolve",
		"/api/instagram":        "api/instagram",
		"/api/youtube/download": "api/youtube",
		"/":                     "",
		"/health":               "health",
		"/api":                  "api",
	}

	for path, want := range tests {
		if got := routeGroup(path); got != want {
			t.Errorf("routeGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + time.Minute, "2h1m0s"},
	}

	for _, tt := range tests {
		if got := FormatUptime(tt.d); got != tt.want {
			t.Errorf("FormatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
