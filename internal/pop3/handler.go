// Package pop3 implements the POP3 session state machine (spec.md §4.4):
// AUTHORIZATION/TRANSACTION/UPDATE, driven entirely by reactor.Handler
// callbacks on the reactor's single dispatch goroutine.
package pop3

import (
	"log/slog"
	"sync"

	"github.com/infodancer/popd/internal/config"
	"github.com/infodancer/popd/internal/reactor"
)

func init() {
	RegisterAuthCommands()
	RegisterTransactionCommands()
}

// Handler adapts the POP3 protocol to reactor.Handler. One Handler serves
// every connection on a listener; per-connection state lives in Session.
type Handler struct {
	eng            *reactor.Reactor
	registry       *config.Registry
	hostname       string
	bytestufferCmd string
	logger         *slog.Logger

	mu       sync.Mutex
	sessions map[int]*Session
}

// NewHandler builds a POP3 Handler bound to eng and registry. hostname is
// reserved for future greeting customization. bytestufferCmd is fixed for
// the process's lifetime; the transformer command is read fresh from
// registry on every RETR, since the manager's `SET transformer` (spec.md
// §4.6) can change it while the server is running.
func NewHandler(eng *reactor.Reactor, registry *config.Registry, hostname, bytestufferCmd string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		eng:            eng,
		registry:       registry,
		hostname:       hostname,
		bytestufferCmd: bytestufferCmd,
		logger:         logger,
		sessions:       make(map[int]*Session),
	}
}

func (h *Handler) deps() *Deps {
	return &Deps{
		Registry:       h.registry,
		Reactor:        h.eng,
		TransformerCmd: h.registry.Transformer(),
		BytestufferCmd: h.bytestufferCmd,
		Logger:         h.logger,
	}
}

// OnConnection creates a session in AUTHORIZATION state and sends the
// greeting (spec.md §4.4 "Initial: AUTHORIZATION immediately after
// greeting").
func (h *Handler) OnConnection(fd int, peerIP string, listenerFD int) reactor.Result {
	sess := NewSession(fd, listenerFD, peerIP)
	h.mu.Lock()
	h.sessions[fd] = sess
	h.mu.Unlock()

	h.eng.Enqueue(fd, []byte("+OK POP3 server ready\r\n"))
	return reactor.KeepOpen
}

// OnMessage feeds newly-read bytes into the session's framing buffer and
// dispatches every complete command line it yields, in order.
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

// dispatch parses and runs one command line, enqueueing its reply.
func (h *Handler) dispatch(sess *Session, line string) reactor.Result {
	name, args := ParseCommand(line)
	if name == "" {
		return reactor.KeepOpen
	}

	if sess.State() == StateAuthorization {
		return h.dispatchAuthorization(sess, name, args)
	}
	return h.dispatchTransaction(sess, name, args)
}

// dispatchAuthorization runs the AUTHORIZATION transition table (spec.md
// §4.4): only USER/PASS/QUIT are recognized; anything else resolves to
// one of the table's two "other" error texts depending on whether a
// username is already pending a PASS.
func (h *Handler) dispatchAuthorization(sess *Session, name string, args []string) reactor.Result {
	switch name {
	case "USER", "PASS", "QUIT":
		return h.run(sess, name, args)
	default:
		msg := "Invalid command"
		if sess.Username() != "" {
			msg = "Expected PASS command"
		}
		h.eng.Enqueue(sess.ClientFD, []byte("-ERR "+msg+"\r\n"))
		return reactor.KeepOpen
	}
}

// dispatchTransaction runs the TRANSACTION command table. USER/PASS are
// meaningless post-authentication and are rejected like any unrecognized
// verb.
func (h *Handler) dispatchTransaction(sess *Session, name string, args []string) reactor.Result {
	if name == "USER" || name == "PASS" {
		h.eng.Enqueue(sess.ClientFD, []byte("-ERR Invalid command\r\n"))
		return reactor.KeepOpen
	}
	return h.run(sess, name, args)
}

func (h *Handler) run(sess *Session, name string, args []string) reactor.Result {
	cmd, ok := GetCommand(name)
	if !ok {
		h.eng.Enqueue(sess.ClientFD, []byte("-ERR Invalid command\r\n"))
		return reactor.KeepOpen
	}
	resp := cmd.Execute(sess, h.deps(), args)
	if !resp.Streamed {
		h.eng.Enqueue(sess.ClientFD, []byte(resp.String()))
	}
	return resp.Next
}

// OnClose releases a still-held mailbox lock when the session never got to
// run QUIT's own UPDATE logic (spec.md §4.4/§8 property 5: a
// CONNECTION_ERROR close skips every deletion but must still release the
// lock). A graceful QUIT already did both in quitCommand.Execute, so
// there is nothing left to do on that path.
func (h *Handler) OnClose(fd int, reason reactor.CloseReason, listenerFD int) {
	h.mu.Lock()
	sess, ok := h.sessions[fd]
	if ok {
		delete(h.sessions, fd)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	if reason == reactor.ConnectionError && sess.Authenticated() {
		_ = h.registry.Unlock(sess.Username())
	}
}
