// Package uploader drains the durable queue to the backend.
//
// Each cycle passes a four-way gate: link up, backend reachable, files
// available, battery above the upload threshold. The head file is read fully
// into a fixed transfer buffer under the storage guard, the guard is released,
// and only then does the network transfer run. A success deletes the local
// file and commits the dequeue; failures accumulate until the configured
// limit, at which point the uploader marks the backend unreachable, forces an
// immediate reachability recheck, and terminates itself. The daemon starts a
// fresh uploader once reachability is re-established.
package uploader
