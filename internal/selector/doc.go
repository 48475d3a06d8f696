// Package selector turns a manifest's candidate streams into a single
// preview pick.
//
// Selection order: optional height ceiling, progressive streams (mp4 first,
// then highest bitrate), video-only streams subject to
// [Policy.AllowSilentPreview], the manifest thumbnail, and finally a null
// pick. The selector never mutates the manifest.
package selector
