// Package storage funnels every filesystem operation through one exclusive
// guard.
//
// The device has a single storage medium; concurrent writers corrupt the
// durable queue and partially written recordings are worse than dropped ones.
// Service methods acquire the guard with a bounded timeout, so a contended
// cycle is skipped and retried rather than deadlocking, and the guard is
// always released before any network transfer starts.
package storage
