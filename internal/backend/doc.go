// Package backend is the HTTP client for the remote collection service.
//
// It speaks three endpoints: the upload endpoint receiving raw recording
// bytes, the health endpoint used for reachability probing, and the optional
// session-complete endpoint pinged once the queue drains. All requests carry
// the X-API-Key header; uploads additionally carry the audio content type and
// a form-data content disposition naming the bare file.
package backend
