// Package faults defines the error taxonomy shared across daemon tasks.
//
// Every failure in the pipeline falls into one of four classes: transient I/O
// (retry next cycle), transient network (mark unreachable, recheck), threshold
// exceeded (controlled task self-termination), and fatal initialization (the
// coordination substrate itself is unusable). Wrap tags an error with its
// class so callers can route on errors.Is without parsing messages.
package faults
