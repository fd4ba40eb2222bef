// Package power decides when the device may stop doing work.
//
// The arbiter walks Active -> Idle-Candidate -> Sleeping: a completed
// recording marks the system ready for sleep, and once capture, the chunk
// queue, the durable queue, and uploads are all quiescent it flushes pending
// logs, checkpoints the clock, and hands off to the Sleeper. External wake
// signals pass a debounce validation before they are trusted to start a new
// recording.
//
// The battery monitor samples voltage on a slow cadence; its readings gate
// both recording and uploading.
package power
