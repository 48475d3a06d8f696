// Package delivery streams a resolved item to the client as an attachment.
//
// Video and audio come from a transcoder process writing a single container
// to stdout; images are fetched over HTTP and passed through. The status
// line is held back until the first byte is available, so failures before
// that point can still be answered with a JSON error. After the headers are
// sent a failure can only truncate the body, and the producer is always
// killed and reaped, including when the client disconnects.
package delivery
