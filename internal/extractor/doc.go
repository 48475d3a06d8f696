// Package extractor wraps the yt-dlp metadata extractor.
//
// Each call starts a fresh subprocess in its own process group, bounded by a
// wall-clock timeout and a stdout cap, and the child is always reaped before
// the call returns. Output is parsed into a typed [Manifest] whose optional
// fields use mo.Option and whose streams carry a [Layout] computed once at
// parse time.
//
// Failures are reported as [ErrFetchTimeout], [ErrOutputTooLarge],
// [ErrManifestParse], [ErrUnavailable] or an [*ExtractionError] carrying the
// stderr tail for logs.
//
// The extractortest subpackage provides a scripted fake for tests.
package extractor
