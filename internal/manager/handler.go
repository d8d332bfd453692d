// Package manager implements the administrative control-channel protocol
// (spec.md §4.6): a second listener, separate from POP3, that lets an
// operator inspect and mutate live server configuration (maildir root,
// RETR transformer) and the user registry (ADD/DELE) without a restart.
package manager

import (
	"log/slog"
	"sync"

	"github.com/infodancer/popd/internal/config"
	"github.com/infodancer/popd/internal/reactor"
)

func init() {
	RegisterCommands()
}

// DefaultMaxSessions is the manager protocol's concurrent-session budget
// (spec.md §4.6: "≤ 10 concurrent manager sessions").
const DefaultMaxSessions = 10

// Handler adapts the manager protocol to reactor.Handler. The session
// budget (spec.md §4.6) is enforced directly against len(sessions) under
// mu, rather than through a separate counter: the map is already the
// single source of truth for who currently holds a slot, so a second,
// independently-synchronized counter would just be a chance for the two
// to drift.
type Handler struct {
	eng         *reactor.Reactor
	registry    *config.Registry
	maxSessions int
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[int]*Session
}

// NewHandler builds a manager Handler bound to eng and registry, enforcing
// at most maxSessions concurrent connections.
func NewHandler(eng *reactor.Reactor, registry *config.Registry, maxSessions int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		eng:         eng,
		registry:    registry,
		maxSessions: maxSessions,
		logger:      logger,
		sessions:    make(map[int]*Session),
	}
}

func (h *Handler) deps() *Deps {
	return &Deps{Registry: h.registry}
}

// OnConnection rejects outright once the session budget is exhausted: no
// greeting, no session recorded, just CONNECTION_ERROR (spec.md §4.6).
func (h *Handler) OnConnection(fd int, peerIP string, listenerFD int) reactor.Result {
	h.mu.Lock()
	if len(h.sessions) >= h.maxSessions {
		h.mu.Unlock()
		return reactor.ConnError
	}
	h.sessions[fd] = NewSession(fd, listenerFD, peerIP)
	h.mu.Unlock()

	h.eng.Enqueue(fd, []byte("+OK Manager ready\r\n"))
	return reactor.KeepOpen
}

func (h *Handler) OnMessage(fd int, data []byte, listenerFD int, peerIP string) reactor.Result {
	h.mu.Lock()
	sess, ok := h.sessions[fd]
	h.mu.Unlock()
	if !ok {
		return reactor.ConnError
	}

	lines, overflow := sess.Feed(data)
	for _, line := range lines {
		if result := h.dispatch(sess, line); result != reactor.KeepOpen {
			return result
		}
	}
	if overflow {
		return reactor.ConnError
	}
	return reactor.KeepOpen
}

func (h *Handler) dispatch(sess *Session, line string) reactor.Result {
	name, args := ParseCommand(line)
	if name == "" {
		return reactor.KeepOpen
	}

	if sess.State() == StateAuthorization {
		switch name {
		case "USER", "PASS", "QUIT":
		default:
			h.eng.Enqueue(sess.ClientFD, []byte("-ERR Invalid command\r\n"))
			return reactor.KeepOpen
		}
	}

	cmd, ok := GetCommand(name)
	if !ok {
		h.eng.Enqueue(sess.ClientFD, []byte("-ERR Invalid command\r\n"))
		return reactor.KeepOpen
	}
	resp := cmd.Execute(sess, h.deps(), args)
	h.eng.Enqueue(sess.ClientFD, []byte(resp.String()))
	return resp.Next
}

// OnClose frees the session's slot in the connection budget by removing it
// from the map. A rejected connection never reached OnConnection's
// session-recording step, so it is simply absent here and this is a no-op
// for it.
func (h *Handler) OnClose(fd int, reason reactor.CloseReason, listenerFD int) {
	h.mu.Lock()
	delete(h.sessions, fd)
	h.mu.Unlock()
}
