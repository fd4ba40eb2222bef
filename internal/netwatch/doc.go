// Package netwatch tracks wireless link state and backend reachability.
//
// The link watcher polls the interface operstate with exponential backoff
// while disconnected, so a dead network costs a probe every few minutes
// instead of every second. The reachability prober gates on the link and
// health-checks the backend under the network guard, backing off on failure
// and re-verifying on a slow cadence while healthy. A fresh link also kicks
// off a one-shot clock correction.
package netwatch
