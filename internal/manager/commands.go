package manager

import (
	"github.com/infodancer/popd/internal/reactor"
)

// userCommand implements USER against the admin registry (spec.md §4.6
// "otherwise identical to POP3 AUTHORIZATION").
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

// passCommand implements PASS against the admin registry. There is no
// per-admin lock in the manager protocol, so success moves straight to
// StateReady once credentials check out.
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
	if err := deps.Registry.AuthenticateAdmin(sess.Username(), args[0]); err != nil {
		sess.ClearUsername()
		return Response{Message: "Invalid credentials"}
	}
	sess.SetState(StateReady)
	return Response{OK: true, Message: "Logged in"}
}

// quitCommand implements QUIT.
type quitCommand struct{}

func (quitCommand) Name() string { return "QUIT" }

func (quitCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	return Response{OK: true, Message: "Bye!", Next: reactor.Close}
}

// getCommand implements `GET maildir` / `GET transformer`.
type getCommand struct{}

func (getCommand) Name() string { return "GET" }

func (getCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if sess.State() != StateReady {
		return Response{Message: "Invalid command"}
	}
	if len(args) != 1 {
		return Response{Message: "Invalid number of arguments"}
	}
	switch args[0] {
	case "maildir":
		return Response{OK: true, Message: deps.Registry.MaildirRoot()}
	case "transformer":
		return Response{OK: true, Message: deps.Registry.Transformer()}
	default:
		return Response{Message: "Unknown configuration key"}
	}
}

// setCommand implements `SET maildir <path>` / `SET transformer <cmd>`.
type setCommand struct{}

func (setCommand) Name() string { return "SET" }

func (setCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if sess.State() != StateReady {
		return Response{Message: "Invalid command"}
	}
	if len(args) != 2 {
		return Response{Message: "Invalid number of arguments"}
	}
	switch args[0] {
	case "maildir":
		if err := deps.Registry.SetMaildirRoot(args[1]); err != nil {
			return Response{Message: "Failed to update maildir"}
		}
		return Response{OK: true}
	case "transformer":
		deps.Registry.SetTransformer(args[1])
		return Response{OK: true}
	default:
		return Response{Message: "Unknown configuration key"}
	}
}

// addCommand implements `ADD <user> <password>`.
type addCommand struct{}

func (addCommand) Name() string { return "ADD" }

func (addCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if sess.State() != StateReady {
		return Response{Message: "Invalid command"}
	}
	if len(args) != 2 {
		return Response{Message: "Invalid number of arguments"}
	}
	if err := deps.Registry.AddUser(args[0], args[1]); err != nil {
		return Response{Message: "Failed to add user"}
	}
	return Response{OK: true}
}

// deleCommand implements `DELE <user>`, refusing a locked mailbox.
type deleCommand struct{}

func (deleCommand) Name() string { return "DELE" }

func (deleCommand) Execute(sess *Session, deps *Deps, args []string) Response {
	if sess.State() != StateReady {
		return Response{Message: "Invalid command"}
	}
	if len(args) != 1 {
		return Response{Message: "Invalid number of arguments"}
	}
	if err := deps.Registry.DeleteUser(args[0]); err != nil {
		return Response{Message: "User mailbox in use"}
	}
	return Response{OK: true}
}

// RegisterCommands installs every manager-protocol command.
func RegisterCommands() {
	RegisterCommand(userCommand{})
	RegisterCommand(passCommand{})
	RegisterCommand(quitCommand{})
	RegisterCommand(getCommand{})
	RegisterCommand(setCommand{})
	RegisterCommand(addCommand{})
	RegisterCommand(deleCommand{})
}
