package pop3

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/infodancer/popd/internal/maildir"
	"github.com/infodancer/popd/internal/retr"
)

func requireTransaction(sess *Session) *Response {
	if sess.State() != StateTransaction {
		return &Response{Message: "Invalid command"}
	}
	return nil
}

// messageNumberError maps a Session mail-list lookup error (out-of-range
// or already-deleted) to the wire text spec.md §4.4 specifies for LIST/
// UIDL/RETR's single-message form — unlike DELE, these commands don't
// distinguish the two cases in their response text.
func messageNumberError(error) Response {
	return Response{Message: "Invalid message number"}
}

type noopCommand struct{}

func (noopCommand) Name() string { return "NOOP" }

func (noopCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if r := requireTransaction(sess); r != nil {
		return *r
	}
	if len(args) != 0 {
		return Response{Message: "Invalid number of arguments"}
	}
	return Response{OK: true, Message: "Waiting for something to happen..."}
}

type statCommand struct{}

func (statCommand) Name() string { return "STAT" }

func (statCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if r := requireTransaction(sess); r != nil {
		return *r
	}
	if len(args) != 0 {
		return Response{Message: "Invalid number of arguments"}
	}
	return Response{OK: true, Message: fmt.Sprintf("%d %d", sess.MessageCount(), sess.TotalSize())}
}

type rsetCommand struct{}

func (rsetCommand) Name() string { return "RSET" }

func (rsetCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if r := requireTransaction(sess); r != nil {
		return *r
	}
	if len(args) != 0 {
		return Response{Message: "Invalid number of arguments"}
	}
	sess.ResetDeletions()
	return Response{OK: true, Message: "Reversed deletes"}
}

type deleCommand struct{}

func (deleCommand) Name() string { return "DELE" }

func (deleCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if r := requireTransaction(sess); r != nil {
		return *r
	}
	if len(args) != 1 {
		return Response{Message: "Invalid number of arguments"}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return Response{Message: "Invalid message number"}
	}
	if err := sess.MarkDeleted(n); err != nil {
		if errors.Is(err, ErrMessageDeleted) {
			return Response{Message: "Message already deleted"}
		}
		return Response{Message: "Invalid message number"}
	}
	return Response{OK: true}
}

type listCommand struct{}

func (listCommand) Name() string { return "LIST" }

func (listCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if r := requireTransaction(sess); r != nil {
		return *r
	}
	if len(args) > 1 {
		return Response{Message: "Invalid number of arguments"}
	}

	if len(args) == 0 {
		all := sess.AllMessages()
		lines := make([]string, len(all))
		for i, m := range all {
			lines[i] = fmt.Sprintf("%d %d", m.Num, m.Mail.Size)
		}
		return Response{OK: true, Lines: lines}
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		return Response{Message: "Invalid message number"}
	}
	m, err := sess.GetMessage(n)
	if err != nil {
		return messageNumberError(err)
	}
	return Response{OK: true, Message: fmt.Sprintf("%d %d", n, m.Size)}
}

type uidlCommand struct{}

func (uidlCommand) Name() string { return "UIDL" }

// uidPrefix returns the substring of uid before its first ':'. A uid with
// no ':' at all, or one starting with ':', has no usable prefix and
// reports false: single-message UIDL answers it with "Internal error",
// multi-line UIDL leaves that message's line out.
func uidPrefix(uid string) (string, bool) {
	idx := strings.IndexByte(uid, ':')
	if idx <= 0 {
		return "", false
	}
	return uid[:idx], true
}

func (uidlCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if r := requireTransaction(sess); r != nil {
		return *r
	}
	if len(args) > 1 {
		return Response{Message: "Invalid number of arguments"}
	}

	if len(args) == 0 {
		all := sess.AllMessages()
		lines := make([]string, 0, len(all))
		for _, m := range all {
			prefix, ok := uidPrefix(m.Mail.UID)
			if !ok {
				continue
			}
			lines = append(lines, fmt.Sprintf("%d %s", m.Num, prefix))
		}
		return Response{OK: true, Lines: lines}
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		return Response{Message: "Invalid message number"}
	}
	m, err := sess.GetMessage(n)
	if err != nil {
		return messageNumberError(err)
	}
	prefix, ok := uidPrefix(m.UID)
	if !ok {
		return Response{Message: "Internal error"}
	}
	return Response{OK: true, Message: fmt.Sprintf("%d %s", n, prefix)}
}

// retrCommand implements RETR (spec.md §4.5): instead of buffering the
// message body into Lines like every other multi-line reply here, it
// starts the internal/retr pipeline and streams the body straight through
// the reactor, returning a Streamed response so the dispatcher sends
// nothing further itself.
type retrCommand struct{}

func (retrCommand) Name() string { return "RETR" }

func (retrCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if r := requireTransaction(sess); r != nil {
		return *r
	}
	if len(args) != 1 {
		return Response{Message: "Invalid number of arguments"}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return Response{Message: "Invalid message number"}
	}
	m, err := sess.GetMessage(n)
	if err != nil {
		return messageNumberError(err)
	}

	path := maildir.Path(deps.Registry.MaildirRoot(), sess.Username(), m.UID)
	retr.Serve(deps.Reactor, sess.ClientFD, path, deps.TransformerCmd, deps.BytestufferCmd, func(err error) {
		if err != nil && deps.Logger != nil {
			deps.Logger.Warn("RETR pipeline ended with error", "uid", m.UID, "err", err)
		}
	})
	return Response{Streamed: true}
}

// RegisterTransactionCommands installs the TRANSACTION-state commands.
func RegisterTransactionCommands() {
	RegisterCommand(noopCommand{})
	RegisterCommand(statCommand{})
	RegisterCommand(rsetCommand{})
	RegisterCommand(deleCommand{})
	RegisterCommand(listCommand{})
	RegisterCommand(uidlCommand{})
	RegisterCommand(retrCommand{})
}
