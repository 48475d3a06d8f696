// Package handlers implements the InstantSaver HTTP API: preview
// resolution, downloads, and health and version checks.
//
// Every failure before a download is committed is answered with a JSON body
// of the form {"error": ..., "retry": ..., "example": ...}; classifyError
// holds the mapping from the error taxonomy to status codes.
package handlers
