package manager

import "bytes"

// State is a manager session's position in its (much smaller) state
// machine: authenticate, then act (spec.md §4.6).
type State int

const (
	StateAuthorization State = iota
	StateReady
)

// MaxInputBuffer bounds a session's unterminated command prefix, the same
// framing rule POP3 uses (spec.md §4.6 "Same framing as POP3").
const MaxInputBuffer = 1024

// Session holds per-connection manager-protocol state.
type Session struct {
	ClientFD   int
	ListenerFD int
	PeerIP     string

	state       State
	username    string
	inputBuffer []byte
}

// NewSession creates a session in AUTHORIZATION state.
func NewSession(clientFD, listenerFD int, peerIP string) *Session {
	return &Session{ClientFD: clientFD, ListenerFD: listenerFD, PeerIP: peerIP, state: StateAuthorization}
}

func (s *Session) State() State         { return s.state }
func (s *Session) SetState(st State)    { s.state = st }
func (s *Session) Username() string     { return s.username }
func (s *Session) SetUsername(u string) { s.username = u }
func (s *Session) ClearUsername()       { s.username = "" }

// Feed appends data to the session's framing buffer and returns every
// complete CRLF-terminated line now available; see pop3.Session.Feed for
// the identical framing rule this mirrors.
func (s *Session) Feed(data []byte) (lines []string, overflow bool) {
	s.inputBuffer = append(s.inputBuffer, data...)
	for {
		idx := bytes.Index(s.inputBuffer, []byte("\r\n"))
		if idx == -1 {
			break
		}
		lines = append(lines, string(s.inputBuffer[:idx]))
		rest := make([]byte, len(s.inputBuffer)-idx-2)
		copy(rest, s.inputBuffer[idx+2:])
		s.inputBuffer = rest
	}
	return lines, len(s.inputBuffer) > MaxInputBuffer
}
