package reactor

// Result is the outcome a Handler returns from each dispatch callback,
// mirrored from spec.md §4.3/§7's KEEP_CONNECTION_OPEN/CLOSE_CONNECTION/
// CONNECTION_ERROR propagation policy. The reactor is the sole code path
// that frees session state; handlers never close fds themselves.
type Result int

const (
	// KeepOpen leaves the connection registered for further events.
	KeepOpen Result = iota
	// Close requests a graceful shutdown: the reactor defers the actual
	// close until the client's outbound queue has fully drained.
	Close
	// ConnError requests immediate teardown; nothing further is sent.
	ConnError
)

// CloseReason is passed to Handler.OnClose so a session can distinguish a
// clean shutdown from an aborted one (spec.md §4.3 on_close contract).
type CloseReason int

const (
	// GracefulClose means the queue's Esc marker was reached after a
	// successful drain.
	GracefulClose CloseReason = iota
	// ConnectionError means a read/write failure, a POLLERR event, a
	// handler returning ConnError, or OnConnection rejecting the
	// connection ended it.
	ConnectionError
)

// Handler is implemented once per listener (one for POP3, one for the
// manager protocol per spec.md §4.4/§4.6) and driven entirely by the
// reactor's single dispatch loop. No call blocks and no call may itself
// perform I/O beyond enqueueing bytes through the Reactor it was handed
// at construction time.
type Handler interface {
	// OnConnection is invoked immediately after accept. Returning
	// anything other than KeepOpen causes the reactor to close the new
	// fd without ever calling OnMessage for it, but OnClose still runs
	// for it exactly as for any other closed connection -- a rejecting
	// handler must not have recorded per-fd state in OnConnection that
	// OnClose would need to find.
	OnConnection(fd int, peerIP string, listenerFD int) Result

	// OnMessage is invoked once per readable chunk delivered on fd (up
	// to 1024 bytes per spec.md §4.3 step 4); the handler is responsible
	// for its own command framing across calls.
	OnMessage(fd int, data []byte, listenerFD int, peerIP string) Result

	// OnClose is invoked at most once per session, fd still open at
	// call time (spec.md §4.3's on_close contract). The reactor closes
	// and removes fd after this call returns.
	OnClose(fd int, reason CloseReason, listenerFD int)
}
