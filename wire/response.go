// Package wire implements the IMAP wire grammar: incremental decoding of
// server responses and encoding of tagged client commands.
//
// Decode is a pure function over a byte window. It never blocks and never
// reads; when the window does not yet hold a complete response it returns a
// [NeedMore] error carrying the minimum number of additional bytes required
// before another attempt is worthwhile.
package wire

import "bytes"

// Status is the condition reported by a status response.
type Status string

const (
	StatusOK      Status = "OK"
	StatusNo      Status = "NO"
	StatusBad     Status = "BAD"
	StatusPreAuth Status = "PREAUTH"
	StatusBye     Status = "BYE"
)

// Response is a single decoded server message.
//
// Responses containing a Literal field may borrow that memory from the
// decoded window. Borrowed data is only valid until the window advances;
// callers that keep a response must detach it with [Owned] first.
type Response interface {
	response()
}

// ContinuationRequest is a "+" line inviting the client to proceed with a
// multi-step command, e.g. sending literal data or exiting IDLE.
type ContinuationRequest struct {
	Text string
}

// Done is a tagged completion line terminating the response set of the
// command that carried the same tag.
type Done struct {
	Tag    string
	Status Status // OK, NO or BAD
	Code   string // first atom of the optional [..] response code
	Rest   string // remainder of the response code, "" if none
	Text   string
}

// UntaggedStatus is an untagged OK/NO/BAD/PREAUTH/BYE line. The server
// greeting arrives as an UntaggedStatus with status OK or PREAUTH; whether a
// message is the greeting is decided by its position in the stream, not by
// its syntax.
type UntaggedStatus struct {
	Status Status
	Code   string
	Rest   string
	Text   string
}

// Exists reports the number of messages in the selected mailbox.
type Exists struct {
	Count uint32
}

// Recent reports the number of messages with the \Recent flag.
type Recent struct {
	Count uint32
}

// Expunge reports the removal of the message with the given sequence number.
type Expunge struct {
	Seq uint32
}

// Flags lists the flags applicable in the selected mailbox.
type Flags struct {
	Flags []string
}

// Capability lists the capabilities the server supports.
type Capability struct {
	Caps []string
}

// List is a single LIST (or LSUB) line.
type List struct {
	Attrs   []string
	Delim   string // "" if NIL
	Mailbox string
}

// Fetch carries the attribute/value pairs of one FETCH line.
type Fetch struct {
	Seq   uint32
	Items []FetchItem
}

// FetchItem is one attribute inside a FETCH response. Literal is set when
// the value was transmitted as a {n} literal and may borrow window memory;
// Value holds every other value form verbatim (atom, number, quoted string
// or parenthesized list).
type FetchItem struct {
	Name    string
	Value   string
	Literal []byte
}

// Metadata is a METADATA response. Entries carry values when the response
// answers a GETMETADATA command; unsolicited change notifications list entry
// names only.
type Metadata struct {
	Mailbox string
	Entries []MetadataEntry
}

// MetadataEntry is a single metadata entry. A nil Value encodes NIL. Values
// may borrow window memory, see Owned.
type MetadataEntry struct {
	Name  string
	Value []byte
}

// HasValue reports whether the entry carries a value (NIL counts as a
// value-less entry name).
func (e *MetadataEntry) HasValue() bool { return e.Value != nil }

// Quota reports resource usage and limits for a quota root.
type Quota struct {
	Root      string
	Resources []QuotaResource
}

// QuotaResource is one resource triplet of a QUOTA response.
type QuotaResource struct {
	Name  string
	Usage uint64
	Limit uint64
}

// QuotaRoot lists the quota roots of a mailbox.
type QuotaRoot struct {
	Mailbox string
	Roots   []string
}

// ID carries the server identification parameters. Params is nil when the
// server answered NIL.
type ID struct {
	Params map[string]string
}

// Vanished reports UIDs removed from the mailbox (QRESYNC).
type Vanished struct {
	Earlier bool
	UIDs    string
}

// Raw is a well-formed untagged line the decoder has no dedicated type for.
// Line holds the full frame including embedded literals and the trailing
// CRLF, borrowed from the window.
type Raw struct {
	Line []byte
}

func (*ContinuationRequest) response() {}
func (*Done) response()                {}
func (*UntaggedStatus) response()      {}
func (*Exists) response()              {}
func (*Recent) response()              {}
func (*Expunge) response()             {}
func (*Flags) response()               {}
func (*Capability) response()          {}
func (*List) response()                {}
func (*Fetch) response()               {}
func (*Metadata) response()            {}
func (*Quota) response()               {}
func (*QuotaRoot) response()           {}
func (*ID) response()                  {}
func (*Vanished) response()            {}
func (*Raw) response()                 {}

// Owned detaches resp from the window it was decoded from by copying every
// borrowed byte slice. It returns resp for convenience.
func Owned(resp Response) Response {
	switch r := resp.(type) {
	case *Fetch:
		for i := range r.Items {
			r.Items[i].Literal = bytes.Clone(r.Items[i].Literal)
		}
	case *Metadata:
		for i := range r.Entries {
			r.Entries[i].Value = bytes.Clone(r.Entries[i].Value)
		}
	case *Raw:
		r.Line = bytes.Clone(r.Line)
	}

	return resp
}
