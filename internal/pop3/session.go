package pop3

import (
	"bytes"

	"github.com/infodancer/popd/internal/maildir"
)

// State is a POP3 session's position in the AUTHORIZATION/TRANSACTION/UPDATE
// state machine (spec.md §4.4).
type State int

const (
	StateAuthorization State = iota
	StateTransaction
	StateUpdate
)

func (s State) String() string {
	switch s {
	case StateAuthorization:
		return "AUTHORIZATION"
	case StateTransaction:
		return "TRANSACTION"
	case StateUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// MaxInputBuffer bounds a session's unterminated command prefix (spec.md
// §4.4 "Framing", §8 property 7).
const MaxInputBuffer = 1024

// IndexedMail pairs a Mailfile with its 1-based, deletion-stable message
// number (spec.md §3 "the 1-based position is the POP3 message number for
// this session's lifetime; deletions do not renumber").
type IndexedMail struct {
	Num  int
	Mail maildir.Mailfile
}

// Session holds the per-connection state spec.md §3 describes for a POP3
// client: the framing buffer, auth state, and the loaded mail list.
type Session struct {
	ClientFD   int
	ListenerFD int
	PeerIP     string

	state         State
	username      string
	authenticated bool
	update        bool
	mails         []maildir.Mailfile
	inputBuffer   []byte
}

// NewSession creates a session in AUTHORIZATION state for a freshly accepted
// connection.
func NewSession(clientFD, listenerFD int, peerIP string) *Session {
	return &Session{
		ClientFD:   clientFD,
		ListenerFD: listenerFD,
		PeerIP:     peerIP,
		state:      StateAuthorization,
	}
}

func (s *Session) State() State             { return s.state }
func (s *Session) SetState(st State)        { s.state = st }
func (s *Session) Username() string         { return s.username }
func (s *Session) SetUsername(u string)     { s.username = u }
func (s *Session) ClearUsername()           { s.username = "" }
func (s *Session) Authenticated() bool      { return s.authenticated }
func (s *Session) SetAuthenticated(v bool)  { s.authenticated = v }
func (s *Session) Update() bool             { return s.update }
func (s *Session) SetUpdate(v bool)         { s.update = v }

// SetMails installs the mail list loaded during PASS-time enumeration.
func (s *Session) SetMails(mails []maildir.Mailfile) {
	s.mails = mails
}

// Feed appends newly-read bytes to the session's input buffer and returns
// every complete CRLF-terminated line now available, in order, leaving any
// undelimited trailing bytes buffered for the next call. overflow reports
// that the undispatched suffix now exceeds MaxInputBuffer bytes, per
// spec.md §4.4/§8 property 7 — the caller must terminate the connection
// with CONNECTION_ERROR in that case.
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

// MessageCount returns the number of non-deleted mails.
func (s *Session) MessageCount() int {
	n := 0
	for _, m := range s.mails {
		if !m.Deleted {
			n++
		}
	}
	return n
}

// TotalSize returns the summed size of non-deleted mails.
func (s *Session) TotalSize() int64 {
	var total int64
	for _, m := range s.mails {
		if !m.Deleted {
			total += m.Size
		}
	}
	return total
}

// GetMessage returns the 1-based message n, failing if it is out of range
// or already deleted.
func (s *Session) GetMessage(n int) (*maildir.Mailfile, error) {
	if n < 1 || n > len(s.mails) {
		return nil, ErrNoSuchMessage
	}
	m := &s.mails[n-1]
	if m.Deleted {
		return nil, ErrMessageDeleted
	}
	return m, nil
}

// MarkDeleted marks message n deleted; see GetMessage for range/state
// errors.
func (s *Session) MarkDeleted(n int) error {
	if n < 1 || n > len(s.mails) {
		return ErrNoSuchMessage
	}
	if s.mails[n-1].Deleted {
		return ErrMessageDeleted
	}
	s.mails[n-1].Deleted = true
	return nil
}

// ResetDeletions clears every Deleted flag (RSET).
func (s *Session) ResetDeletions() {
	for i := range s.mails {
		s.mails[i].Deleted = false
	}
}

// AllMessages returns every non-deleted mail paired with its stable 1-based
// number, in list order.
func (s *Session) AllMessages() []IndexedMail {
	out := make([]IndexedMail, 0, len(s.mails))
	for i, m := range s.mails {
		if !m.Deleted {
			out = append(out, IndexedMail{Num: i + 1, Mail: m})
		}
	}
	return out
}

// DeletedUIDs returns the uid of every mail still marked deleted, for
// UPDATE to remove from disk.
func (s *Session) DeletedUIDs() []string {
	var uids []string
	for _, m := range s.mails {
		if m.Deleted {
			uids = append(uids, m.UID)
		}
	}
	return uids
}
