// Package pipeline connects audio capture to durable storage.
//
// The recorder task requests fixed-duration captures while recording is
// active and pushes chunks into a bounded queue, blocking with a timeout when
// it is full so memory use stays flat under storage pressure. Each recording
// session is bracketed: exactly one start chunk, any number of middle chunks,
// and exactly one end chunk captured after the stop request.
//
// The persister task drains the queue, writes each chunk under the
// session/index/timestamp naming convention, and appends the path to the
// durable upload queue. Once its queue runs dry it hands control to the sleep
// check.
package pipeline
