package pop3

import "errors"

// Domain errors reported by Session's mail-list accessors.
var (
	ErrNoSuchMessage  = errors.New("no such message")
	ErrMessageDeleted = errors.New("message already deleted")
)
