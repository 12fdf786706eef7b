package imapcore

import (
	"errors"
	"io"
	"log/slog"

	"github.com/fho/imapcore/wire"
)

// stream couples the transport with the buffer cell and drives the grammar
// incrementally: it reads arbitrarily chunked bytes into the buffer and
// yields one decoded response at a time.
type stream struct {
	conn   io.ReadWriteCloser
	buf    buffer
	logger *slog.Logger

	// decodeNeeds is the window size required before the next decode attempt
	// is worthwhile. Retrying the grammar with fewer buffered bytes would
	// rescan the same prefix for nothing, so fill gates on it. 0 means
	// always try.
	decodeNeeds int

	// onActivity, if set, is invoked after every read that returned bytes.
	// The wait-mode controller hooks it to reset its keepalive timer.
	onActivity func()

	eof bool
}

func newStream(conn io.ReadWriteCloser, logger *slog.Logger) *stream {
	return &stream{conn: conn, logger: logger}
}

// writeAll writes p fully or fails. A failed or short write is never
// retried: the transport's state after a partial failure is unknown.
// Writes are attempted even after the read side reported end-of-stream;
// whether such a transport is still writable is its own business.
func (s *stream) writeAll(p []byte) error {
	n, err := s.conn.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// next returns the next decoded server response. The response owns all of
// its memory; borrowed literal views are detached before the buffer window
// advances past them.
//
// On a clean end-of-stream with an empty window it returns io.EOF. Bytes
// left over at end-of-stream mean a truncated response and decode failure.
func (s *stream) next() (wire.Response, error) {
	for {
		if s.buf.used() >= s.decodeNeeds {
			resp, consumed, err := wire.Decode(s.buf.window())
			var short *wire.NeedMore
			switch {
			case err == nil:
				s.decodeNeeds = 0
				resp = wire.Owned(resp)
				s.buf.consume(consumed)
				return resp, nil
			case errors.As(err, &short):
				s.decodeNeeds = s.buf.used() + short.Min
			default:
				return nil, &DecodeError{Err: err}
			}
		}

		if s.eof {
			if s.buf.used() == 0 {
				return nil, io.EOF
			}
			return nil, &DecodeError{Err: errors.New("connection closed mid-response")}
		}

		if err := s.fill(); err != nil {
			return nil, err
		}
	}
}

// fill performs a single read from the transport into the buffer. A
// zero-byte read with io.EOF marks end-of-stream; it is a valid outcome,
// distinct from an I/O error.
func (s *stream) fill() error {
	want := s.decodeNeeds - s.buf.used()
	space := s.buf.reserve(want)

	n, err := s.conn.Read(space)
	if n > 0 {
		s.buf.extend(n)
		if s.onActivity != nil {
			s.onActivity()
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		s.eof = true
		return nil
	default:
		return &TransportError{Op: "read", Err: err}
	}
}

func (s *stream) close() error {
	return s.conn.Close()
}
