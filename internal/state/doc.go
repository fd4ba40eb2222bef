// Package state holds the shared runtime flags every daemon task reads and
// writes.
//
// The Store is constructed once at startup and passed by reference into each
// task; tasks never hold handles to one another's private memory, so all
// cross-task signaling happens through these accessors. A single coarse mutex
// guards the fields, which keeps multi-field snapshots consistent without the
// lock ordering hazards of per-field locks.
//
// Stopping a recording carries a side effect: clearing the recording request
// while it was previously set also marks the system ready for sleep, encoding
// "stop means drain, then power down".
package state
