// Package neterr classifies connection errors for reconnect decisions.
package neterr

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/fho/imapcore"
)

// IsRetryableError reports whether err describes a broken or unreachable
// connection that a fresh dial may fix. Protocol-level failures (decode
// errors, NO/BAD completions) are never retryable.
func IsRetryableError(err error) bool {
	var transportErr *imapcore.TransportError
	if errors.As(err, &transportErr) {
		err = transportErr.Err
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, imapcore.ErrClosed):
		return true
	default:
		return false
	}
}
