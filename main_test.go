package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"instantsaver/internal/delivery"
	"instantsaver/internal/handlers"
	"instantsaver/internal/middleware"
	"instantsaver/internal/resolver"
	"instantsaver/internal/source"
	"instantsaver/internal/startup"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, ref source.Reference, _ resolver.Options) (resolver.Result, error) {
	return resolver.Result{DownloadURL: "/download?url=" + ref.URL, Title: "clip"}, nil
}

type stubStreamer struct{}

func (stubStreamer) Stream(_ context.Context, w http.ResponseWriter, _ delivery.Request) error {
	w.Header().Set("Content-Type", "video/mp4")
	_, err := w.Write([]byte("media"))
	return err
}

type stubVersion struct{}

func (stubVersion) Version(context.Context) (string, error) { return "2024.08.06", nil }

func testConfig() *startup.Config {
	return &startup.Config{
		CORSOrigins: []string{"*"},
		Extractor:   startup.ToolStatus{Present: true, Version: "2024.08.06"},
		FFmpeg:      startup.ToolStatus{Present: true},
	}
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	config := testConfig()
	h := handlers.New(stubResolver{}, stubStreamer{}, stubVersion{}, config)
	srv := httptest.NewServer(buildHandler(setupRouter(h), config))
	t.Cleanup(srv.Close)
	return srv
}

func TestSetupRouterRegistersRoutes(t *testing.T) {
	h := handlers.New(stubResolver{}, stubStreamer{}, stubVersion{}, testConfig())
	routes, err := startup.GetRoutes(setupRouter(h))
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}

	registered := make(map[string]bool)
	for _, route := range routes {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"GET /health",
		"GET /healthz",
		"GET /livez",
		"HEAD /livez",
		"GET /readyz",
		"GET /version",
		"GET /resolve",
		"GET /download",
		"GET /api/{platform}",
		"GET /api/{platform}/download",
	}
	for _, route := range expected {
		if !registered[route] {
			t.Errorf("Expected route %q to be registered", route)
		}
	}
}

func TestHandlerChain(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"resolve", "/resolve?url=https://youtu.be/dQw4w9WgXcQ", http.StatusOK},
		{"platform resolve", "/api/youtube?url=https://youtu.be/dQw4w9WgXcQ", http.StatusOK},
		{"unknown platform", "/api/myspace?url=https://youtu.be/dQw4w9WgXcQ", http.StatusNotFound},
		{"download", "/download?url=https://youtu.be/dQw4w9WgXcQ", http.StatusOK},
		{"missing url", "/resolve", http.StatusBadRequest},
		{"liveness", "/livez", http.StatusOK},
		{"readiness", "/readyz", http.StatusOK},
		{"version", "/version", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatalf("Failed to build request: %v", err)
			}
			req.Header.Set("Origin", "https://app.example.com")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, resp.StatusCode)
			}
			if resp.Header.Get(middleware.RequestIDHeader) == "" {
				t.Error("Expected a request id header")
			}
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("Expected CORS origin *, got %q", got)
			}
		})
	}
}

func TestHandlerChainPreflight(t *testing.T) {
	srv := testServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/download", nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", resp.StatusCode)
	}
}

func TestHandlerChainResolveBody(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/resolve?url=https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var result resolver.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if result.Title != "clip" {
		t.Errorf("Expected title clip, got %q", result.Title)
	}
}
