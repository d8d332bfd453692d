package manager

import (
	"strings"

	"github.com/infodancer/popd/internal/config"
	"github.com/infodancer/popd/internal/reactor"
)

// Deps bundles the collaborators a manager Command needs.
type Deps struct {
	Registry *config.Registry
}

// Command is one manager-protocol verb (spec.md §4.6).
type Command interface {
	Name() string
	Execute(sess *Session, deps *Deps, args []string) Response
}

// Response mirrors internal/pop3's wire-format Response: same +OK/-ERR
// framing, no multi-line replies are needed by any manager command.
type Response struct {
	OK      bool
	Message string
	Next    reactor.Result
}

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

// ParseCommand splits a framed command line into its uppercased verb and
// arguments. Most commands split their remainder on single spaces; SET's
// value (a path or a transformer command line, either of which may itself
// contain spaces) is taken verbatim as everything after its key, the same
// carve-out spec.md §4.4 gives PASS.
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
	if name == "SET" {
		sp2 := strings.IndexByte(rest, ' ')
		if sp2 == -1 {
			return name, []string{rest}
		}
		return name, []string{rest[:sp2], rest[sp2+1:]}
	}
	return name, strings.Split(rest, " ")
}
