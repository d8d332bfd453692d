package pop3

import (
	"errors"

	"github.com/infodancer/popd/internal/config"
	"github.com/infodancer/popd/internal/maildir"
	"github.com/infodancer/popd/internal/reactor"
)

// userCommand implements USER (spec.md §4.4 AUTHORIZATION table). The
// username is stored verbatim, without checking whether it exists, so a
// client can never use USER's response to probe account existence.
type userCommand struct{}

func (userCommand) Name() string { return "USER" }

func (userCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if sess.State() != StateAuthorization {
		return Response{Message: "Invalid command"}
	}
	if len(args) != 1 {
		return Response{Message: "Invalid number of arguments"}
	}
	sess.SetUsername(args[0])
	return Response{OK: true}
}

// passCommand implements PASS, running the exact failure-mode ordering
// spec.md §4.4 specifies: invalid credentials, then already-locked, then
// lock-acquisition failure, then mail-enumeration failure, then success.
type passCommand struct{}

func (passCommand) Name() string { return "PASS" }

func (passCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if sess.State() != StateAuthorization {
		return Response{Message: "Invalid command"}
	}
	if sess.Username() == "" {
		return Response{Message: "Invalid command"}
	}
	if len(args) != 1 {
		return Response{Message: "Invalid number of arguments"}
	}

	username := sess.Username()
	password := args[0]

	if err := deps.Registry.Authenticate(username, password); err != nil {
		sess.ClearUsername()
		return Response{Message: "Invalid credentials"}
	}

	if err := deps.Registry.Lock(username); err != nil {
		if errors.Is(err, config.ErrUserLocked) {
			sess.ClearUsername()
			return Response{Message: "User mailbox in use"}
		}
		return Response{Message: "Failed to lock mailbox"}
	}

	mails, err := maildir.Enumerate(deps.Registry.MaildirRoot(), username)
	if err != nil {
		_ = deps.Registry.Unlock(username)
		return Response{Message: "Failed to load user mails"}
	}

	sess.SetMails(mails)
	sess.SetAuthenticated(true)
	sess.SetState(StateTransaction)
	return Response{OK: true, Message: "Logged in"}
}

// quitCommand implements QUIT in both AUTHORIZATION and TRANSACTION. UPDATE
// (spec.md §4.4) runs synchronously here, at the moment QUIT is executed,
// rather than waiting for on_close: a graceful QUIT is the only path into
// UPDATE, so "the files marked deleted at the time of QUIT" and "the files
// marked deleted when on_close runs" are the same set. Doing the work here
// also lets the ordinary Response/Next=Close plumbing carry "+OK Bye!\r\n"
// through the outbound queue like any other reply, instead of needing the
// reactor's close path to re-enter the queue after the socket is already
// being torn down.
type quitCommand struct{}

func (quitCommand) Name() string { return "QUIT" }

func (quitCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if sess.State() == StateTransaction {
		root := deps.Registry.MaildirRoot()
		user := sess.Username()
		for _, uid := range sess.DeletedUIDs() {
			if err := maildir.Remove(root, user, uid); err != nil && deps.Logger != nil {
				deps.Logger.Warn("failed removing mail during UPDATE", "user", user, "uid", uid, "err", err)
			}
		}
		_ = deps.Registry.Unlock(user)
		sess.SetUpdate(true)
	}
	sess.SetState(StateUpdate)
	return Response{OK: true, Message: "Bye!", Next: reactor.Close}
}

// RegisterAuthCommands installs the AUTHORIZATION-state commands.
func RegisterAuthCommands() {
	RegisterCommand(userCommand{})
	RegisterCommand(passCommand{})
	RegisterCommand(quitCommand{})
}
