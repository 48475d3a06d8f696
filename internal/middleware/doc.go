// Package middleware provides HTTP middleware for the InstantSaver API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics keyed by route template
//   - Request ids, CORS and per-client rate limiting
//   - Gzip compression for JSON responses
//
// Every response writer wrapper implements Unwrap so http.ResponseController
// can still set write deadlines on download streams.
package middleware
