// Package resolver turns a classified reference into a preview result.
//
// Resolution is an ordered list of [Strategy] values evaluated by a small
// driver loop:
//
//  1. profile-picture: profile references only, terminal on failure
//  2. direct-url: a quick progressive URL lookup
//  3. manifest: the full manifest run through the selector, degrading to the
//     thumbnail when no video is available
//
// Profile and content references never share a strategy. When nothing
// succeeds the caller receives a [*ResolutionError] whose Retryable method
// says whether the failure looked transient.
//
// Identical concurrent requests are coalesced with singleflight. Results are
// not cached.
package resolver
