package reactor

import "github.com/infodancer/popd/internal/queue"

// listenerEntry is one of the reactor's listening sockets (spec.md §3
// "Reactor tables"): one for the POP3 protocol, one for the manager
// protocol, each dispatching to its own Handler.
type listenerEntry struct {
	fd      int
	handler Handler
}

// socketEntry is a SOCKET header (spec.md §3): an accepted client
// connection, its originating listener, and its outbound queue.
type socketEntry struct {
	fd         int
	peerIP     string
	listenerFD int
	handler    Handler
	queue      *queue.Queue
	closing    bool // PushGracefulClose was called; close once queue drains
}

// fileEntry is a FILE header (spec.md §3): a readable descriptor
// streaming into a client's splitter sub-queue, typically the read end
// of a RETR pipeline's final pipe.
type fileEntry struct {
	fd      int
	ownerFD int // the client fd whose queue this feeds
}
