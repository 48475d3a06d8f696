// Package profilepic resolves Instagram profile pictures from a username.
//
// Requests go through an HTTP/1.1 transport with a Chrome TLS fingerprint
// (refraction-networking/utls). The same transport is reused for fetching
// still images during image downloads.
package profilepic
