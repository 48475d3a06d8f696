// Package source classifies user supplied URLs into platform references and
// rewrites them into the canonical form the extractor is given.
//
// Short-form and mobile variants collapse onto one canonical URL per item:
//
//	https://youtu.be/abc123        -> https://www.youtube.com/watch?v=abc123
//	youtube.com/shorts/abc123      -> https://www.youtube.com/watch?v=abc123
//	instagram.com/reels/Cxyz/?igsh -> https://www.instagram.com/reel/Cxyz/
//	instagram.com/someuser         -> https://www.instagram.com/someuser/
//
// Classification failures are reported as *Error wrapping either
// ErrInvalidURL or ErrInvalidContentURL.
package source
