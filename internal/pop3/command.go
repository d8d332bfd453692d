package pop3

import (
	"log/slog"
	"strings"

	"github.com/infodancer/popd/internal/config"
	"github.com/infodancer/popd/internal/reactor"
)

// Deps bundles the collaborators a Command needs to act on the registry and
// the reactor, so commands stay plain, stateless values registered once.
type Deps struct {
	Registry       *config.Registry
	Reactor        *reactor.Reactor
	TransformerCmd string
	BytestufferCmd string
	Logger         *slog.Logger
}

// Command is one POP3 verb, TRANSACTION or AUTHORIZATION.
type Command interface {
	// Name returns the command's wire name, e.g. "USER".
	Name() string

	// Execute runs the command against sess and returns the response to
	// send. RETR is the one command that streams its own reply through
	// the reactor (see Response.Streamed) rather than returning text.
	Execute(sess *Session, deps *Deps, args []string) Response
}

// Response is a POP3 reply. String formats it with the dot-stuffed
// multi-line convention shared by LIST and UIDL.
type Response struct {
	OK      bool
	Message string
	Lines   []string

	// Streamed is true for a RETR that has already enqueued its own
	// +OK/body/terminator via the reactor; the dispatcher must not also
	// enqueue String() for it.
	Streamed bool

	// Next tells the dispatcher what the reactor should do with the
	// connection once this response has been enqueued.
	Next reactor.Result
}

// String renders the response in wire format: "+OK"/"-ERR" plus an
// optional message, then, for a multi-line reply (non-nil Lines, even an
// empty slice), each line CRLF-terminated and dot-stuffed, closed by a
// lone "." line.
func (r Response) String() string {
	var b strings.Builder
	if r.OK {
		b.WriteString("+OK")
	} else {
		b.WriteString("-ERR")
	}
	if r.Message != "" {
		b.WriteByte(' ')
		b.WriteString(r.Message)
	}
	b.WriteString("\r\n")

	if r.Lines != nil {
		for _, line := range r.Lines {
			if strings.HasPrefix(line, ".") {
				b.WriteByte('.')
			}
			b.WriteString(line)
			b.WriteString("\r\n")
		}
		b.WriteString(".\r\n")
	}
	return b.String()
}

var commandRegistry = make(map[string]Command)

// RegisterCommand adds cmd to the registry, keyed by its uppercased name.
func RegisterCommand(cmd Command) {
	commandRegistry[strings.ToUpper(cmd.Name())] = cmd
}

// GetCommand looks up a registered command by name, case-insensitively.
func GetCommand(name string) (Command, bool) {
	cmd, ok := commandRegistry[strings.ToUpper(name)]
	return cmd, ok
}

// ParseCommand splits a framed command line (CRLF already stripped) into
// its uppercased verb and arguments, per spec.md §4.4 "Command parsing":
// ordinary commands split their remainder on single spaces, but PASS's
// argument is the full verbatim suffix beginning 5 bytes after the line
// start (so embedded spaces in a password survive intact).
func ParseCommand(line string) (string, []string) {
	if line == "" {
		return "", nil
	}

	sp := strings.IndexByte(line, ' ')
	if sp == -1 {
		return strings.ToUpper(line), nil
	}

	name := strings.ToUpper(line[:sp])
	rest := line[sp+1:]
	if rest == "" {
		return name, nil
	}
	if name == "PASS" {
		return name, []string{rest}
	}
	return name, strings.Split(rest, " ")
}
