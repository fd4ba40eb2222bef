// Package clock supplies wall-clock time with a persisted epoch checkpoint.
//
// The device can power up with a clock far behind reality. A single-line
// epoch checkpoint, rewritten periodically and immediately before sleep, lets
// the next boot restore a monotonic-enough wall clock until an NTP correction
// arrives. Corrections come through the Corrector collaborator and adjust an
// internal offset rather than the system clock.
package clock
