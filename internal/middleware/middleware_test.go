package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"instantsaver/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestNewStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newStatusRecorder(w)

	if rw.status != http.StatusOK {
		t.Errorf("Expected default status code 200, got %d", rw.status)
	}
	if rw.bytes != 0 {
		t.Errorf("Expected bytes to be 0, got %d", rw.bytes)
	}
	if rw.wroteHeader {
		t.Error("Expected wroteHeader to be false initially")
	}
}

func TestStatusRecorderWriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newStatusRecorder(w)

	rw.WriteHeader(http.StatusNotFound)
	if rw.status != http.StatusNotFound {
		t.Errorf("Expected status code 404, got %d", rw.status)
	}

	// Write header again - should be ignored
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.status != http.StatusNotFound {
		t.Error("Status code should not change after first WriteHeader")
	}
}

func TestStatusRecorderWrite(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newStatusRecorder(w)

	data := []byte("test data")
	n, err := rw.Write(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}
	if rw.bytes != int64(len(data)) {
		t.Errorf("Expected bytes to be %d, got %d", len(data), rw.bytes)
	}
	if !rw.wroteHeader {
		t.Error("Expected wroteHeader to be true after Write")
	}
}

func TestWrappersUnwrap(t *testing.T) {
	w := httptest.NewRecorder()

	wrappers := map[string]interface{ Unwrap() http.ResponseWriter }{
		"recorder":    newStatusRecorder(w),
		"compression": newCompressWriter(w, DefaultCompressionConfig()),
	}
	for name, rw := range wrappers {
		if rw.Unwrap() != w {
			t.Errorf("Expected %s wrapper to unwrap to the recorder", name)
		}
	}
}

func TestDefaultLoggingConfig(t *testing.T) {
	config := DefaultLoggingConfig()

	if !config.LogHealthChecks {
		t.Error("Expected LogHealthChecks to be true by default")
	}
	if !shouldSkip("/metrics", config) {
		t.Error("Expected /metrics to be skipped")
	}
	if shouldSkip("/resolve", config) {
		t.Error("Expected /resolve to be logged")
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{"regular request", "/resolve", DefaultLoggingConfig(), false},
		{"favicon", "/favicon.ico", DefaultLoggingConfig(), true},
		{"health logged", "/health", LoggingConfig{LogHealthChecks: true}, false},
		{"health skipped", "/health", LoggingConfig{LogHealthChecks: false}, true},
		{"version skipped with health", "/version", LoggingConfig{LogHealthChecks: false}, true},
		{"configured prefix", "/debug/pprof", LoggingConfig{SkipPaths: []string{"/debug"}, LogHealthChecks: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestLoggerMiddleware(t *testing.T) {
	handler := Logger(DefaultLoggingConfig())(okHandler())

	req := httptest.NewRequest("GET", "/resolve?url=x%0Ay", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("Expected body to pass through, got %q", w.Body.String())
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"cr\rlf", "cr lf"},
		{"null\x00byte", "nullbyte"},
		{"ansi\x1b[31mred", "ansi[31mred"},
		{"tab\tkept", "tab\tkept"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.9"}, "10.0.0.2:1234", "203.0.113.9"},
		{"remote addr", nil, "192.0.2.4:5555", "192.0.2.4"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAccessLine(t *testing.T) {
	req := httptest.NewRequest("GET", "/resolve?url=x", http.NoBody)
	req.RemoteAddr = "192.0.2.4:5555"
	req.Header.Set("User-Agent", "curl/8.0\nforged")

	rec := newStatusRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusBadGateway)
	rec.Write([]byte("oops"))

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := accessLine(req, rec, start, 42*time.Millisecond)
	want := `2026-01-02 03:04:05 192.0.2.4 GET /resolve url=x 502 4 42 - "curl/8.0 forged" - -`
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestEscapeW3CField(t *testing.T) {
	if got := escapeW3CField("curl/8.0"); got != "curl/8.0" {
		t.Errorf("Expected unchanged field, got %q", got)
	}
	if got := escapeW3CField(`Mozilla/5.0 "x"`); got != `"Mozilla/5.0 ""x"""` {
		t.Errorf("Expected quoted field, got %q", got)
	}
}

func TestCompressionMiddleware(t *testing.T) {
	tests := []struct {
		name              string
		path              string
		responseBody      string
		contentType       string
		contentLength     bool
		acceptEncoding    string
		expectCompression bool
	}{
		{
			name:              "Compresses JSON",
			path:              "/resolve",
			responseBody:      strings.Repeat(`{"key":"value"}`, 200),
			contentType:       "application/json",
			acceptEncoding:    "gzip",
			expectCompression: true,
		},
		{
			name:              "Compresses JSON with charset",
			path:              "/health",
			responseBody:      `{"ok":true}`,
			contentType:       "application/json; charset=utf-8",
			acceptEncoding:    "br, gzip;q=0.8",
			expectCompression: true,
		},
		{
			name:              "Doesn't compress small responses of known length",
			path:              "/resolve",
			responseBody:      `{"ok":true}`,
			contentType:       "application/json",
			contentLength:     true,
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Respects gzip refused by q=0",
			path:              "/resolve",
			responseBody:      strings.Repeat(`{"key":"value"}`, 200),
			contentType:       "application/json",
			acceptEncoding:    "gzip;q=0",
			expectCompression: false,
		},
		{
			name:              "Doesn't compress media",
			path:              "/resolve",
			responseBody:      strings.Repeat("data", 500),
			contentType:       "video/mp4",
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Skips download path",
			path:              "/download",
			responseBody:      strings.Repeat(`{"key":"value"}`, 200),
			contentType:       "application/json",
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Skips platform download path",
			path:              "/api/instagram/download",
			responseBody:      strings.Repeat(`{"key":"value"}`, 200),
			contentType:       "application/json",
			acceptEncoding:    "gzip",
			expectCompression: false,
		},
		{
			name:              "Respects client without gzip support",
			path:              "/resolve",
			responseBody:      strings.Repeat(`{"key":"value"}`, 200),
			contentType:       "application/json",
			acceptEncoding:    "",
			expectCompression: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				if tt.contentLength {
					w.Header().Set("Content-Length", strconv.Itoa(len(tt.responseBody)))
				}
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(tt.responseBody))
			})

			wrappedHandler := Compression(DefaultCompressionConfig())(handler)

			req := httptest.NewRequest("GET", tt.path, http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			wrappedHandler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			isCompressed := w.Header().Get("Content-Encoding") == "gzip"
			if isCompressed != tt.expectCompression {
				t.Errorf("Expected compression=%v, got compression=%v", tt.expectCompression, isCompressed)
			}

			body := w.Body.Bytes()
			if tt.expectCompression {
				gr, err := gzip.NewReader(bytes.NewReader(body))
				if err != nil {
					t.Fatalf("Failed to create gzip reader: %v", err)
				}
				defer gr.Close()
				if body, err = io.ReadAll(gr); err != nil {
					t.Fatalf("Failed to decompress: %v", err)
				}
			}
			if string(body) != tt.responseBody {
				t.Error("Body doesn't match original")
			}
		})
	}
}

func TestCompressWriterDetectsContentType(t *testing.T) {
	w := httptest.NewRecorder()
	cw := newCompressWriter(w, DefaultCompressionConfig())

	if _, err := cw.Write([]byte("plain text body")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cw.Close()

	if got := w.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Expected sniffed text/plain to be compressed, got encoding %q", got)
	}
}

func TestCompressWriterNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	cw := newCompressWriter(w, DefaultCompressionConfig())
	cw.Header().Set("Content-Type", "application/json")

	cw.WriteHeader(http.StatusNoContent)
	cw.Close()

	if w.Header().Get("Content-Encoding") != "" {
		t.Error("Expected no encoding for 204")
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %d bytes", w.Body.Len())
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/resolve", http.NoBody))
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("Expected generated uuid, got %q", seen)
	}
	if w.Header().Get(RequestIDHeader) != seen {
		t.Errorf("Expected response header %q, got %q", seen, w.Header().Get(RequestIDHeader))
	}

	incoming := uuid.NewString()
	req := httptest.NewRequest("GET", "/resolve", http.NoBody)
	req.Header.Set(RequestIDHeader, incoming)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != incoming {
		t.Errorf("Expected incoming id to be kept, got %q", seen)
	}

	req = httptest.NewRequest("GET", "/resolve", http.NoBody)
	req.Header.Set(RequestIDHeader, "not\nan-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not\nan-id" {
		t.Error("Expected malformed id to be replaced")
	}

	if RequestIDFrom(req.Context()) != "" {
		t.Error("Expected empty id outside the middleware")
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "https://app.example", "*"},
		{"listed origin", []string{"https://app.example"}, "https://app.example", "https://app.example"},
		{"unlisted origin", []string{"https://app.example"}, "https://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.origins)(okHandler())
			req := httptest.NewRequest("GET", "/resolve", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Expected allow origin %q, got %q", tt.want, got)
			}
			if !strings.Contains(w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition") {
				t.Error("Expected Content-Disposition to be exposed")
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	handler := CORS([]string{"*"})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/resolve", http.NoBody))

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if called {
		t.Error("Expected preflight to stop before the handler")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RPS: 1, Burst: 2, SkipPaths: []string{"/health"}})
	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }
	handler := limiter.Middleware(okHandler())

	before := counterValue(t, metrics.HTTPRateLimitedTotal)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/resolve", http.NoBody)
		req.RemoteAddr = "192.0.2.1:1000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			if !strings.Contains(w.Body.String(), `"retry":true`) {
				t.Errorf("Expected retry hint, got %s", w.Body.String())
			}
			if w.Header().Get("Retry-After") == "" {
				t.Error("Expected Retry-After header")
			}
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != 429 {
		t.Errorf("Expected 200 200 429, got %v", codes)
	}
	if got := counterValue(t, metrics.HTTPRateLimitedTotal) - before; got != 1 {
		t.Errorf("Expected one rate limited request counted, got %v", got)
	}

	// Another client has its own bucket.
	req := httptest.NewRequest("GET", "/resolve", http.NoBody)
	req.RemoteAddr = "192.0.2.2:1000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected second client to pass, got %d", w.Code)
	}

	// Skipped paths are never limited.
	req = httptest.NewRequest("GET", "/health", http.NoBody)
	req.RemoteAddr = "192.0.2.1:1000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected health to bypass the limiter, got %d", w.Code)
	}

	// Tokens refill with time.
	now = now.Add(time.Second)
	if !limiter.Allow("192.0.2.1") {
		t.Error("Expected a token after one second")
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }
	limiter.lastSweep = now

	limiter.Allow("a")
	now = now.Add(2 * time.Minute)
	limiter.Allow("b")

	if _, ok := limiter.visitors["a"]; ok {
		t.Error("Expected idle client to be evicted")
	}
	if _, ok := limiter.visitors["b"]; !ok {
		t.Error("Expected active client to be kept")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	inner := okHandler()
	limiter := NewRateLimiter(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		limiter.Middleware(inner).ServeHTTP(w, httptest.NewRequest("GET", "/resolve", http.NoBody))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected unlimited requests, got %d", w.Code)
		}
	}
}

func TestRecover(t *testing.T) {
	handler := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/resolve", http.NoBody))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/resolve", "/resolve"},
		{"/api/instagram", "/api/instagram"},
		{"/api/instagram/extra/segments", "/api/instagram/{path}"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("Expected %q for %q, got %q", tt.want, tt.path, got)
		}
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.Handle("/api/{platform}", okHandler())

	before := counterValue(t, metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/{platform}", "200"))
	for _, p := range []string{"/api/instagram", "/api/youtube"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", p, http.NoBody))
	}
	after := counterValue(t, metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/{platform}", "200"))

	if after-before != 2 {
		t.Errorf("Expected 2 requests under the template label, got %v", after-before)
	}
}

func TestMetricsMiddlewareSkipPaths(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(okHandler())

	before := counterValue(t, metrics.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", http.NoBody))
	after := counterValue(t, metrics.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))

	if after != before {
		t.Error("Expected /health to be skipped")
	}
}

func TestMetricsMiddlewareStatusCode(t *testing.T) {
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	before := counterValue(t, metrics.HTTPRequestsTotal.WithLabelValues("GET", "/resolve", "400"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/resolve", http.NoBody))
	after := counterValue(t, metrics.HTTPRequestsTotal.WithLabelValues("GET", "/resolve", "400"))

	if after-before != 1 {
		t.Errorf("Expected one 400 recorded, got %v", after-before)
	}
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	wrappedHandler := Logger(DefaultLoggingConfig())(okHandler())
	req := httptest.NewRequest("GET", "/resolve", http.NoBody)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		wrappedHandler.ServeHTTP(w, req)
	}
}
