// Package uploadqueue persists the FIFO of recordings awaiting upload.
//
// The queue is a plain text file of absolute paths, one per line, in enqueue
// order. It is the crash-recovery anchor of the pipeline: line order is the
// only durable ordering invariant the system has. Head removal rewrites the
// remaining lines to a temporary file and renames it over the original, so a
// crash mid-removal loses at most the single in-flight dequeue and never a
// partial line. Every operation runs under the exclusive storage guard.
package uploadqueue
