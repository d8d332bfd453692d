// Package bytestuff implements the POP3 multi-line transducer (spec.md
// §4.1): normalize line endings to CRLF and dot-stuff any line beginning
// with '.'. It is a pure, single-pass, constant-memory function of its
// input; the final ".CRLF" sentinel is appended by the RETR handler, not
// here.
package bytestuff

import (
	"bufio"
	"io"
)

// Stuff reads r one byte at a time and writes the POP3-framed equivalent
// to w: bare LF becomes CRLF, existing CRLF pairs are preserved, bare CR
// not followed by LF passes through verbatim, and a leading '.' on any
// line gets an extra '.' prepended. This tracks the same two bits of
// state (was the previous byte a bare CR, are we at a line start) the
// original C implementation tracked across fgets() calls, as a single
// byte-oriented state machine rather than a buffer-boundary special case.
func Stuff(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	atLineStart := true
	prevWasCR := false

	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if atLineStart {
			if b == '.' {
				if err := bw.WriteByte('.'); err != nil {
					return err
				}
			}
			atLineStart = false
		}

		switch b {
		case '\n':
			if !prevWasCR {
				if err := bw.WriteByte('\r'); err != nil {
					return err
				}
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
			atLineStart = true
			prevWasCR = false
			continue
		case '\r':
			if err := bw.WriteByte('\r'); err != nil {
				return err
			}
			prevWasCR = true
			continue
		default:
			if err := bw.WriteByte(b); err != nil {
				return err
			}
			prevWasCR = false
		}
	}

	return bw.Flush()
}

// Unstuff reverses Stuff: it strips the one leading '.' that stuffing adds
// to any line beginning with '.', and collapses CRLF pairs back to bare
// LF. It exists only to express the round-trip testable property
// (spec.md §8 property 1); the server itself never unstuffs.
func Unstuff(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	atLineStart := true

	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if atLineStart {
			atLineStart = false
			if b == '.' {
				// The sole stuffing dot stuff() adds to a line that
				// already began with '.'; drop it and move on.
				continue
			}
		}

		switch b {
		case '\r':
			if next, perr := br.Peek(1); perr == nil && len(next) == 1 && next[0] == '\n' {
				// Part of a CRLF pair; the \n branch below writes it.
				continue
			}
			if err := bw.WriteByte('\r'); err != nil {
				return err
			}
		case '\n':
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
			atLineStart = true
		default:
			if err := bw.WriteByte(b); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}
