package imapcore

import (
	"context"
	"time"

	"github.com/fho/imapcore/wire"
)

var doneToken = []byte("DONE\r\n")

// IdleCommand is a running IDLE long poll. It is obtained from
// [Client.Idle]; [IdleCommand.Wait] then blocks until the caller interrupts
// it, forwarding server pushes to the unsolicited channel.
type IdleCommand struct {
	c   *Client
	tag Tag
}

// Idle enters wait mode: it sends IDLE and consumes responses until the
// server's continuation request acknowledges the long poll. Pushes that
// arrive before the acknowledgement are forwarded to the unsolicited
// channel.
//
// While wait mode is active no other command can be sent; call
// [IdleCommand.Wait] and cancel its context to leave it.
func (c *Client) Idle(ctx context.Context) (*IdleCommand, error) {
	if c.state != StateSelected {
		return nil, ErrNotSelected
	}

	h := &IdleCommand{c: c}
	if err := h.enter(ctx); err != nil {
		return nil, err
	}

	return h, nil
}

// enter issues the IDLE command and waits for the continuation request.
func (h *IdleCommand) enter(ctx context.Context) error {
	c := h.c

	tag, err := c.Send(ctx, wire.NewCommand("IDLE"))
	if err != nil {
		return err
	}
	h.tag = tag

	for {
		resp, err := c.read(ctx)
		if err != nil {
			c.fail(err)
			c.pending = nil
			return err
		}

		switch r := resp.(type) {
		case *wire.ContinuationRequest:
			c.state = StateWaiting
			c.logger.Debug("wait mode entered", "event", "imap.idle_started", "tag", string(tag))
			return nil

		case *wire.Done:
			if r.Tag != string(tag) {
				c.reportUnexpectedTag(r)
				continue
			}
			// the server refused to idle
			c.pending = nil
			return &CompletionError{Status: r.Status, Code: r.Code, Text: r.Text}

		default:
			c.route(resp, nil)
		}
	}
}

type readResult struct {
	resp wire.Response
	err  error
}

// Wait blocks until ctx is cancelled, forwarding every push the server
// sends to the unsolicited channel. When the configured keepalive period
// passes without any received activity the long poll is restarted (DONE,
// completion, IDLE again) on the same session so the server does not drop
// the connection as idle; received bytes, the continuation request
// included, reset the keepalive timer.
//
// On cancellation the exit token is written at the next scheduling
// opportunity; Wait returns once the server's tagged completion confirms
// the exit. The session is back in the selected state afterwards.
func (h *IdleCommand) Wait(ctx context.Context) error {
	c := h.c

	// reads run in their own goroutine so waiting stays a selection over
	// "response arrived", "caller interrupted" and "keepalive expired". The
	// goroutine only reads when asked, one response per demand, so there is
	// never more than one outstanding read.
	demand := make(chan struct{}, 1)
	results := make(chan readResult)

	activity := make(chan struct{}, 1)
	c.stream.onActivity = func() {
		select {
		case activity <- struct{}{}:
		default:
		}
	}

	go func() {
		defer close(results)
		for range demand {
			resp, err := c.stream.next()
			results <- readResult{resp: resp, err: err}
			if err != nil {
				return
			}
		}
	}()

	defer func() {
		close(demand)
		if c.fatal != nil {
			// unblock a reader stuck on a dead transport
			_ = c.stream.close()
		}
		for range results {
		}
		c.stream.onActivity = nil
	}()

	keepalive := time.NewTimer(c.idleKeepalive)
	defer keepalive.Stop()

	var (
		exitRequested  bool // DONE sent because the caller cancelled
		restartPending bool // DONE sent by the keepalive, re-enter after
		awaitingAck    bool // IDLE re-sent, continuation request outstanding
	)

	interrupt := ctx.Done()
	demand <- struct{}{}

	for {
		select {
		case <-activity:
			keepalive.Reset(c.idleKeepalive)

		case <-interrupt:
			interrupt = nil
			exitRequested = true
			if restartPending || awaitingAck {
				// an exit or re-entry handshake is already in flight; the
				// exit happens once it resolves
				continue
			}
			if err := c.stream.writeAll(doneToken); err != nil {
				c.fail(err)
				c.pending = nil
				return err
			}

		case <-keepalive.C:
			if exitRequested || restartPending || awaitingAck {
				continue
			}
			restartPending = true
			c.logger.Debug("keepalive expired, restarting wait mode",
				"event", "imap.idle_keepalive",
				"tag", string(h.tag),
			)
			if err := c.stream.writeAll(doneToken); err != nil {
				c.fail(err)
				c.pending = nil
				return err
			}

		case r := <-results:
			if r.err != nil {
				c.fail(r.err)
				c.pending = nil
				c.state = StateSelected
				return r.err
			}

			switch resp := r.resp.(type) {
			case *wire.Done:
				if resp.Tag != string(h.tag) {
					c.reportUnexpectedTag(resp)
					demand <- struct{}{}
					continue
				}
				c.pending = nil
				c.state = StateSelected
				if resp.Status != wire.StatusOK {
					return &CompletionError{Status: resp.Status, Code: resp.Code, Text: resp.Text}
				}
				if exitRequested {
					c.logger.Debug("wait mode left", "event", "imap.idle_stopped")
					return nil
				}
				// keepalive restart: fresh IDLE on the same session
				restartPending = false
				tag, err := c.Send(ctx, wire.NewCommand("IDLE"))
				if err != nil {
					return err
				}
				h.tag = tag
				awaitingAck = true
				demand <- struct{}{}

			case *wire.ContinuationRequest:
				if !awaitingAck {
					c.pending = nil
					c.state = StateSelected
					return &ProtocolError{Reason: "continuation request while waiting"}
				}
				awaitingAck = false
				c.state = StateWaiting
				if exitRequested {
					// the interrupt arrived during re-entry, leave again now
					if err := c.stream.writeAll(doneToken); err != nil {
						c.fail(err)
						c.pending = nil
						return err
					}
				}
				demand <- struct{}{}

			default:
				c.forwardUnsolicited(resp)
				demand <- struct{}{}
			}
		}
	}
}
