// Package imapcore implements the client-side IMAP protocol engine: an
// incremental response decoder over an arbitrarily chunked byte stream,
// tag-based command/response correlation with routing of unsolicited
// server messages, and the IDLE long-poll state machine with keepalive and
// cooperative interruption.
//
// The engine is transport-agnostic; callers hand it an established
// io.ReadWriteCloser (already TLS-wrapped if desired). TLS setup,
// authentication challenge formatting and reconnect policy are the caller's
// business.
package imapcore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fho/imapcore/internal/log"
	"github.com/fho/imapcore/wire"
)

const (
	defUnsolicitedBufSize = 64
	defIdleKeepalive      = 28 * time.Minute
)

// State is the session state of a connection.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateSelected
	// StateWaiting is the IDLE long-poll sub-state. It is entered from
	// StateSelected and always returns to it.
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateSelected:
		return "selected"
	case StateWaiting:
		return "waiting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Tag identifies a sent command and its eventual tagged completion.
type Tag string

type Options struct {
	Logger *slog.Logger

	// UnsolicitedBufSize bounds the unsolicited response channel. When it is
	// full further unsolicited responses are dropped instead of blocking the
	// read path; drops are counted, see Client.DroppedUnsolicited.
	UnsolicitedBufSize int

	// IdleKeepalive is the idle period after which a running IDLE command is
	// restarted to avoid server inactivity timeouts.
	IdleKeepalive time.Duration
}

// pending is the single in-flight command. The engine is not pipelined: a
// second Send while one is registered fails with ErrPendingCommand.
type pending struct {
	tag Tag
}

// Client is a connection to an IMAP server.
//
// A Client may be moved between goroutines, but only one logical operation
// (Send+Await, or an IDLE wait) may run on it at a time; the engine performs
// at most one transport read at any moment.
type Client struct {
	stream *stream
	logger *slog.Logger

	tagSeq  uint64
	state   State
	greeted bool
	pending *pending
	mailbox *SelectData

	// fatal poisons the connection once a transport or decode error (or
	// LOGOUT) occurred.
	fatal error

	unsolicitedCh chan wire.Response
	dropped       atomic.Uint64

	idleKeepalive time.Duration
}

// New wraps an established connection. The server greeting has not been
// read yet; call Greeting first.
func New(conn io.ReadWriteCloser, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}

	bufSize := opts.UnsolicitedBufSize
	if bufSize <= 0 {
		bufSize = defUnsolicitedBufSize
	}
	keepalive := opts.IdleKeepalive
	if keepalive <= 0 {
		keepalive = defIdleKeepalive
	}

	logger := log.SloggerWithGroup(opts.Logger, "imapcore")

	return &Client{
		stream:        newStream(conn, logger),
		logger:        logger,
		state:         StateUnauthenticated,
		unsolicitedCh: make(chan wire.Response, bufSize),
		idleKeepalive: keepalive,
	}
}

// Unsolicited returns the channel carrying server messages that were not
// part of any command's response set, in arrival order.
func (c *Client) Unsolicited() <-chan wire.Response { return c.unsolicitedCh }

// DroppedUnsolicited returns how many unsolicited responses were dropped
// because the channel was full.
func (c *Client) DroppedUnsolicited() uint64 { return c.dropped.Load() }

// State returns the current session state.
func (c *Client) State() State { return c.state }

// Mailbox returns the context of the currently selected mailbox, nil if
// none is selected.
func (c *Client) Mailbox() *SelectData { return c.mailbox }

// Close closes the underlying transport. Pending operations fail.
func (c *Client) Close() error {
	if c.fatal == nil {
		c.fatal = ErrClosed
	}
	return c.stream.close()
}

// Greeting reads the server greeting. It must be called once, before any
// command is sent. A PREAUTH greeting leaves the session authenticated.
func (c *Client) Greeting(ctx context.Context) (*wire.UntaggedStatus, error) {
	if c.greeted {
		return nil, &ProtocolError{Reason: "greeting already received"}
	}
	if err := c.usable(); err != nil {
		return nil, err
	}

	resp, err := c.read(ctx)
	if err != nil {
		return nil, err
	}

	status, ok := resp.(*wire.UntaggedStatus)
	if !ok {
		err := &ProtocolError{Reason: fmt.Sprintf("expected greeting, got %T", resp)}
		c.fail(err)
		return nil, err
	}

	switch status.Status {
	case wire.StatusOK:
	case wire.StatusPreAuth:
		c.state = StateAuthenticated
	case wire.StatusBye:
		c.fail(ErrClosed)
		return status, &CompletionError{Status: status.Status, Code: status.Code, Text: status.Text}
	default:
		err := &ProtocolError{Reason: "greeting with condition " + string(status.Status)}
		c.fail(err)
		return nil, err
	}

	c.greeted = true
	c.logger.Debug("greeting received",
		"event", "imap.greeting",
		"status", string(status.Status),
	)

	return status, nil
}

// Send encodes cmd under a fresh tag, writes it and registers it as the
// pending request. Command bodies containing literal arguments are written
// segment-wise, awaiting the server's continuation request before each raw
// byte run.
func (c *Client) Send(ctx context.Context, cmd *wire.Command) (Tag, error) {
	if err := c.usable(); err != nil {
		return "", err
	}
	if !c.greeted {
		return "", &ProtocolError{Reason: "command sent before greeting"}
	}
	if c.pending != nil {
		return "", ErrPendingCommand
	}

	tag := c.nextTag()
	segs := cmd.Encode(string(tag))
	for i, seg := range segs {
		if i > 0 {
			if done, err := c.awaitContinuation(ctx, tag); err != nil {
				return "", err
			} else if done != nil {
				// server rejected the literal and completed the command early
				return "", &CompletionError{Status: done.Status, Code: done.Code, Text: done.Text}
			}
		}
		if err := c.stream.writeAll(seg); err != nil {
			c.fail(err)
			return "", err
		}
	}

	c.pending = &pending{tag: tag}
	return tag, nil
}

// awaitContinuation reads until the server either invites the next literal
// segment or rejects the command with a completion carrying tag. Unrelated
// messages are forwarded to the unsolicited channel.
func (c *Client) awaitContinuation(ctx context.Context, tag Tag) (*wire.Done, error) {
	for {
		resp, err := c.read(ctx)
		if err != nil {
			c.fail(err)
			return nil, err
		}

		switch r := resp.(type) {
		case *wire.ContinuationRequest:
			return nil, nil
		case *wire.Done:
			if r.Tag == string(tag) {
				return r, nil
			}
			c.reportUnexpectedTag(r)
		default:
			c.route(resp, nil)
		}
	}
}

// Await drives the connection until the completion for tag arrives and
// returns it. Untagged responses received meanwhile are offered to handler;
// responses the handler does not claim are forwarded to the unsolicited
// channel. A nil handler forwards everything.
//
// A NO or BAD completion is returned together with a *CompletionError; data
// the command produced beforehand has been delivered at that point.
//
// Cancelling ctx abandons the wait but leaves the command registered: the
// connection stays usable and the caller may Await the same tag again, or
// Close the connection.
func (c *Client) Await(ctx context.Context, tag Tag, handler func(wire.Response) bool) (*wire.Done, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if c.pending == nil || c.pending.tag != tag {
		return nil, fmt.Errorf("imap: no pending command with tag %q", tag)
	}

	for {
		resp, err := c.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// abandoned, not failed: the completion may still arrive
				return nil, err
			}
			if err == io.EOF {
				err = fmt.Errorf("connection closed while awaiting completion of %s: %w", tag, ErrClosed)
			}
			c.fail(err)
			c.pending = nil
			return nil, err
		}

		switch r := resp.(type) {
		case *wire.Done:
			if r.Tag != string(tag) {
				c.reportUnexpectedTag(r)
				continue
			}
			c.pending = nil
			if r.Status != wire.StatusOK {
				return r, &CompletionError{Status: r.Status, Code: r.Code, Text: r.Text}
			}
			return r, nil

		case *wire.ContinuationRequest:
			// no literal is outstanding, the session would deadlock
			c.pending = nil
			return nil, &ProtocolError{Reason: "continuation request without outstanding literal"}

		case *wire.UntaggedStatus:
			if r.Status == wire.StatusPreAuth {
				err := &ProtocolError{Reason: "greeting received mid-session"}
				c.fail(err)
				c.pending = nil
				return nil, err
			}
			c.route(resp, handler)

		default:
			c.route(resp, handler)
		}
	}
}

// Execute sends cmd and waits for its completion, as one logical,
// non-interleaved operation.
func (c *Client) Execute(ctx context.Context, cmd *wire.Command, handler func(wire.Response) bool) (*wire.Done, error) {
	tag, err := c.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return c.Await(ctx, tag, handler)
}

// read returns the next response unless ctx is already cancelled. The
// cancellation check is cooperative: a read that is already blocked on the
// transport is not interrupted.
func (c *Client) read(ctx context.Context) (wire.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.stream.next()
}

// route offers resp to the pending command's handler and forwards it to the
// unsolicited channel if unclaimed.
func (c *Client) route(resp wire.Response, handler func(wire.Response) bool) {
	if handler != nil && handler(resp) {
		return
	}
	c.forwardUnsolicited(resp)
}

// forwardUnsolicited delivers resp without ever blocking the read path. The
// newest message is dropped when the channel is full.
func (c *Client) forwardUnsolicited(resp wire.Response) {
	select {
	case c.unsolicitedCh <- resp:
	default:
		dropped := c.dropped.Add(1)
		c.logger.Warn("unsolicited channel full, dropping response",
			"event", "imap.unsolicited_dropped",
			"dropped_total", dropped,
		)
	}
}

func (c *Client) reportUnexpectedTag(done *wire.Done) {
	c.logger.Warn("ignoring completion with unexpected tag",
		"event", "imap.unexpected_tag",
		"tag", done.Tag,
		"status", string(done.Status),
	)
}

// nextTag returns a fresh tag. Tags are strictly increasing for the
// lifetime of the connection and never reused.
func (c *Client) nextTag() Tag {
	c.tagSeq++
	return Tag(fmt.Sprintf("A%04d", c.tagSeq))
}

func (c *Client) usable() error {
	return c.fatal
}

// fail marks the connection unusable for further commands.
func (c *Client) fail(err error) {
	if c.fatal == nil {
		c.fatal = err
		c.logger.Debug("connection marked unusable", "error", err)
	}
}
