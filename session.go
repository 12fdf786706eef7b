package imapcore

import (
	"context"
	"strconv"
	"strings"

	"github.com/fho/imapcore/wire"
)

// SelectData is the mailbox context established by Select.
type SelectData struct {
	Mailbox  string
	ReadOnly bool

	NumMessages uint32
	Recent      uint32
	UnseenSeq   uint32

	Flags          []string
	PermanentFlags []string

	UIDNext       uint32
	UIDValidity   uint32
	HighestModSeq uint64
}

// SelectOptions carries the optional select parameters.
type SelectOptions struct {
	// ReadOnly selects with EXAMINE instead of SELECT.
	ReadOnly bool
	// CondStore requests modification sequences (RFC 7162).
	CondStore bool
	// QResync requests a quick resynchronization relative to a previously
	// known mailbox state (RFC 7162). It implies CondStore.
	QResync *QResyncParams
}

// QResyncParams is the known state passed to a QRESYNC select.
type QResyncParams struct {
	UIDValidity   uint32
	HighestModSeq uint64
}

// Login authenticates with a username and password.
func (c *Client) Login(ctx context.Context, user, password string) error {
	if c.state != StateUnauthenticated {
		return ErrBadState
	}

	cmd := wire.NewCommand("LOGIN").String(user).String(password)
	if _, err := c.Execute(ctx, cmd, claimCapability); err != nil {
		return err
	}

	c.state = StateAuthenticated
	c.logger.Info("authentication succeeded", "event", "imap.login", "user", user)
	return nil
}

// Select opens a mailbox and returns its context. The returned data is also
// available via Mailbox until the next Select or Logout.
func (c *Client) Select(ctx context.Context, mailbox string, opts *SelectOptions) (*SelectData, error) {
	if c.state != StateAuthenticated && c.state != StateSelected {
		return nil, ErrBadState
	}
	if opts == nil {
		opts = &SelectOptions{}
	}

	name := "SELECT"
	if opts.ReadOnly {
		name = "EXAMINE"
	}

	cmd := wire.NewCommand(name).String(mailbox)
	if opts.QResync != nil {
		cmd.List(func(l *wire.Command) {
			if opts.CondStore {
				l.Atom("CONDSTORE")
			}
			l.Atom("QRESYNC").List(func(q *wire.Command) {
				q.Number(uint64(opts.QResync.UIDValidity))
				q.Number(opts.QResync.HighestModSeq)
			})
		})
	} else if opts.CondStore {
		cmd.List(func(l *wire.Command) { l.Atom("CONDSTORE") })
	}

	data := &SelectData{Mailbox: mailbox, ReadOnly: opts.ReadOnly}
	done, err := c.Execute(ctx, cmd, data.absorb)
	if err != nil {
		return nil, err
	}

	if done.Code == "READ-ONLY" {
		data.ReadOnly = true
	}

	c.mailbox = data
	c.state = StateSelected
	c.logger.Debug("mailbox selected",
		"event", "imap.selected",
		"mailbox", mailbox,
		"messages", data.NumMessages,
	)
	return data, nil
}

// absorb claims the untagged responses that make up a select response set.
func (d *SelectData) absorb(resp wire.Response) bool {
	switch r := resp.(type) {
	case *wire.Exists:
		d.NumMessages = r.Count
	case *wire.Recent:
		d.Recent = r.Count
	case *wire.Flags:
		d.Flags = r.Flags
	case *wire.UntaggedStatus:
		if r.Status != wire.StatusOK {
			return false
		}
		switch r.Code {
		case "UNSEEN":
			d.UnseenSeq = parseUint32(r.Rest)
		case "UIDNEXT":
			d.UIDNext = parseUint32(r.Rest)
		case "UIDVALIDITY":
			d.UIDValidity = parseUint32(r.Rest)
		case "HIGHESTMODSEQ":
			d.HighestModSeq, _ = strconv.ParseUint(r.Rest, 10, 64)
		case "PERMANENTFLAGS":
			d.PermanentFlags = parseFlagList(r.Rest)
		default:
			return false
		}
	default:
		return false
	}
	return true
}

// Noop sends NOOP. Status updates it provokes arrive on the unsolicited
// channel.
func (c *Client) Noop(ctx context.Context) error {
	_, err := c.Execute(ctx, wire.NewCommand("NOOP"), nil)
	return err
}

// Logout ends the session. The connection is unusable afterwards.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Execute(ctx, wire.NewCommand("LOGOUT"), func(resp wire.Response) bool {
		// the goodbye BYE belongs to LOGOUT's response set
		s, ok := resp.(*wire.UntaggedStatus)
		return ok && s.Status == wire.StatusBye
	})
	c.mailbox = nil
	c.fail(ErrClosed)
	return err
}

// Append uploads a message to a mailbox, transmitted as a literal.
func (c *Client) Append(ctx context.Context, mailbox string, msg []byte) error {
	if c.state == StateUnauthenticated {
		return ErrBadState
	}

	cmd := wire.NewCommand("APPEND").String(mailbox).Literal(msg)
	_, err := c.Execute(ctx, cmd, nil)
	return err
}

// Fetch retrieves the named items for the messages in seqSet, e.g.
//
//	msgs, err := c.Fetch(ctx, "1:3", "UID", "RFC822.SIZE")
func (c *Client) Fetch(ctx context.Context, seqSet string, items ...string) ([]*wire.Fetch, error) {
	if c.state != StateSelected {
		return nil, ErrNotSelected
	}

	cmd := wire.NewCommand("FETCH").Atom(seqSet).List(func(l *wire.Command) {
		for _, item := range items {
			l.Atom(item)
		}
	})

	var msgs []*wire.Fetch
	_, err := c.Execute(ctx, cmd, func(resp wire.Response) bool {
		f, ok := resp.(*wire.Fetch)
		if ok {
			msgs = append(msgs, f)
		}
		return ok
	})
	if err != nil {
		return nil, err
	}

	return msgs, nil
}

// MetadataDepth selects how deep below the requested entries GETMETADATA
// descends.
type MetadataDepth int

const (
	MetadataDepthZero     MetadataDepth = 0
	MetadataDepthOne      MetadataDepth = 1
	MetadataDepthInfinity MetadataDepth = -1
)

func (d MetadataDepth) String() string {
	if d == MetadataDepthInfinity {
		return "infinity"
	}
	return strconv.Itoa(int(d))
}

// MetadataOptions carries the optional GETMETADATA parameters.
type MetadataOptions struct {
	Depth MetadataDepth
	// MaxSize suppresses entry values longer than the given byte count.
	// 0 means no limit.
	MaxSize uint32
}

// GetMetadata retrieves metadata entries of a mailbox (RFC 5464). Pass an
// empty mailbox name for server metadata.
func (c *Client) GetMetadata(ctx context.Context, mailbox string, entries []string, opts *MetadataOptions) ([]wire.MetadataEntry, error) {
	if c.state == StateUnauthenticated {
		return nil, ErrBadState
	}

	cmd := wire.NewCommand("GETMETADATA")
	if opts != nil {
		cmd.List(func(l *wire.Command) {
			l.Atom("DEPTH").Atom(opts.Depth.String())
			if opts.MaxSize > 0 {
				l.Atom("MAXSIZE").Number(uint64(opts.MaxSize))
			}
		})
	}
	cmd.String(mailbox)
	cmd.List(func(l *wire.Command) {
		for _, e := range entries {
			l.String(e)
		}
	})

	var result []wire.MetadataEntry
	_, err := c.Execute(ctx, cmd, func(resp wire.Response) bool {
		m, ok := resp.(*wire.Metadata)
		if !ok || m.Mailbox != mailbox {
			return false
		}
		// change notifications list entry names only and are not ours
		for _, e := range m.Entries {
			if !e.HasValue() {
				return false
			}
		}
		result = append(result, m.Entries...)
		return true
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// SetMetadata sets (or, with nil values, removes) metadata entries on a
// mailbox (RFC 5464).
func (c *Client) SetMetadata(ctx context.Context, mailbox string, entries []wire.MetadataEntry) error {
	if c.state == StateUnauthenticated {
		return ErrBadState
	}

	cmd := wire.NewCommand("SETMETADATA").String(mailbox)
	cmd.List(func(l *wire.Command) {
		for _, e := range entries {
			l.String(e.Name)
			if e.Value == nil {
				l.Atom("NIL")
			} else {
				l.Literal(e.Value)
			}
		}
	})

	_, err := c.Execute(ctx, cmd, nil)
	return err
}

// GetQuota returns the resource usage and limits of a quota root (RFC 2087).
func (c *Client) GetQuota(ctx context.Context, root string) (*wire.Quota, error) {
	if c.state == StateUnauthenticated {
		return nil, ErrBadState
	}

	var quota *wire.Quota
	cmd := wire.NewCommand("GETQUOTA").String(root)
	_, err := c.Execute(ctx, cmd, func(resp wire.Response) bool {
		q, ok := resp.(*wire.Quota)
		if ok && q.Root == root {
			quota = q
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	return quota, nil
}

// QuotaRootData is the result of GetQuotaRoot: the roots governing a
// mailbox and their quotas.
type QuotaRootData struct {
	Mailbox string
	Roots   []string
	Quotas  []*wire.Quota
}

// GetQuotaRoot returns the quota roots of a mailbox together with their
// current quotas (RFC 2087).
func (c *Client) GetQuotaRoot(ctx context.Context, mailbox string) (*QuotaRootData, error) {
	if c.state == StateUnauthenticated {
		return nil, ErrBadState
	}

	data := &QuotaRootData{Mailbox: mailbox}
	cmd := wire.NewCommand("GETQUOTAROOT").String(mailbox)
	_, err := c.Execute(ctx, cmd, func(resp wire.Response) bool {
		switch r := resp.(type) {
		case *wire.QuotaRoot:
			if r.Mailbox != mailbox {
				return false
			}
			data.Roots = append(data.Roots, r.Roots...)
		case *wire.Quota:
			data.Quotas = append(data.Quotas, r)
		default:
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// ID exchanges client and server identification parameters (RFC 2971). A
// nil params map sends NIL. The returned map is nil when the server
// answered NIL.
func (c *Client) ID(ctx context.Context, params map[string]string) (map[string]string, error) {
	cmd := wire.NewCommand("ID")
	if params == nil {
		cmd.Atom("NIL")
	} else {
		cmd.List(func(l *wire.Command) {
			for k, v := range params {
				l.String(k)
				l.String(v)
			}
		})
	}

	var serverID map[string]string
	_, err := c.Execute(ctx, cmd, func(resp wire.Response) bool {
		id, ok := resp.(*wire.ID)
		if ok {
			serverID = id.Params
		}
		return ok
	})
	if err != nil {
		return nil, err
	}

	return serverID, nil
}

func claimCapability(resp wire.Response) bool {
	_, ok := resp.(*wire.Capability)
	return ok
}

func parseUint32(s string) uint32 {
	n, _ := strconv.ParseUint(s, 10, 32)
	return uint32(n)
}

func parseFlagList(s string) []string {
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	if s == "" {
		return nil
	}
	return strings.Split(s, " ")
}
