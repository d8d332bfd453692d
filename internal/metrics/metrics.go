// Package metrics provides the write-only statistics sink (spec.md §4.8):
// connect/disconnect/byte-count hooks invoked by the reactor and session
// handlers, with no read path on the critical I/O dispatch loop.
package metrics

import "context"

// Collector is the statistics sink. Every method is a write-only hook;
// the reactor and session code never read metrics state back (spec.md §9
// "treat statistics as write-only for the core").
type Collector interface {
	// Connect records a new session on ip, optionally attributed to user
	// once authenticated (user is "" before PASS succeeds).
	Connect(ip, user string)

	// Disconnect records a session ending.
	Disconnect(ip, user string)

	// Bytes records count bytes transferred for ip/user in direction dir.
	Bytes(ip, user string, dir Direction, count int64)
}

// Direction distinguishes inbound client bytes from outbound server bytes
// for the Bytes hook.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// Server exposes the optional Prometheus metrics HTTP endpoint described in
// SPEC_FULL.md §6, running on its own goroutine independent of the reactor.
type Server interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
