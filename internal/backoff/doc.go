// Package backoff implements the retry schedule shared by the link scanner
// and the backend reachability prober.
//
// A Controller doubles its interval on every failure, clamps it at a
// configured maximum, and snaps straight back to the minimum on the first
// success. That keeps retries cheap against a network that is down while
// recovering full probe frequency the moment it returns.
package backoff
