// Package transcoder produces a single deliverable media stream on a pipe.
//
// It supports:
//   - Video jobs: H.264 with AAC merged into mp4, within an optional height ceiling
//   - Audio jobs: m4a, AAC preferred
//   - Process-group kill on context cancellation, so merge helpers die too
//   - A live-process registry for shutdown cleanup and metrics
//
// Transcoding is performed by yt-dlp, which uses FFmpeg for merging. Both
// must be installed. The transcodertest subpackage offers a fake for tests.
package transcoder
