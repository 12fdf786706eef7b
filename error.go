package imapcore

import (
	"errors"
	"fmt"

	"github.com/fho/imapcore/wire"
)

var (
	// ErrClosed is returned when the connection is no longer usable, e.g.
	// after a transport failure, a decode failure or LOGOUT.
	ErrClosed = errors.New("imap: connection closed")

	// ErrPendingCommand is returned by Send while another command awaits its
	// completion. The protocol engine is not pipelined.
	ErrPendingCommand = errors.New("imap: another command is pending")

	// ErrNotSelected is returned by operations that require a selected
	// mailbox.
	ErrNotSelected = errors.New("imap: no mailbox selected")

	// ErrBadState is returned when an operation is invalid in the current
	// session state, e.g. LOGIN on an authenticated session.
	ErrBadState = errors.New("imap: operation invalid in current session state")
)

// TransportError reports an I/O failure on the underlying connection. It is
// fatal: the connection cannot be used for further commands.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("imap: %s on connection failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports received bytes that do not match the response
// grammar. It is fatal: the byte offset for resynchronization cannot be
// trusted anymore.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("imap: decoding server response failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProtocolError reports a well-formed but logically invalid message, e.g. a
// continuation request no command asked for, or a greeting after the first
// message. Unless it concerns the greeting handshake, only the affected
// command fails and the connection stays usable.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "imap: protocol violation: " + e.Reason
}

// CompletionError is a tagged NO or BAD completion. The connection remains
// usable; only the command that carried the tag failed.
type CompletionError struct {
	Status wire.Status
	Code   string
	Text   string
}

func (e *CompletionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("imap: command failed: %s [%s] %s", e.Status, e.Code, e.Text)
	}
	return fmt.Sprintf("imap: command failed: %s %s", e.Status, e.Text)
}
