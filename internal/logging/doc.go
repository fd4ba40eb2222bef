// Package logging provides slog-based structured logging for the coco daemon.
//
// Console output uses a compact single-line handler; JSON output is available
// for machine consumption. The async sink buffers records for a background
// flusher so the power arbiter can confirm the log backlog is drained before
// committing to sleep.
package logging
