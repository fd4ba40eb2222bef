// Package daemon assembles the recording pipeline and enforces
// single-instance execution.
//
// The daemon owns shared infrastructure (state store, storage guard, durable
// queue, clock, ledger) and runs the long-lived tasks: recorder, persister,
// uploader, link watcher, reachability prober, battery monitor, power
// arbiter, and wake monitor. The uploader is supervised: after it stops on a
// failure streak the daemon waits for the backend to become reachable again
// and starts a fresh one.
package daemon
