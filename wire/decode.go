package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// NeedMore reports that the window does not yet hold a complete response.
// Min is the minimum number of additional bytes that must be buffered before
// retrying Decode; retrying with fewer is guaranteed to fail again.
type NeedMore struct {
	Min int
}

func (e *NeedMore) Error() string {
	return fmt.Sprintf("imap: incomplete response, need at least %d more bytes", e.Min)
}

// Decode parses the first complete response in buf and returns it together
// with the number of bytes it occupied.
//
// When buf holds no complete response a *NeedMore error is returned. Any
// other error means the bytes do not match the grammar; the window offset
// can then no longer be trusted and the connection must be abandoned.
func Decode(buf []byte) (Response, int, error) {
	n, err := frame(buf)
	if err != nil {
		return nil, 0, err
	}

	resp, err := parse(buf[:n])
	if err != nil {
		return nil, 0, err
	}

	return resp, n, nil
}

// frame returns the length of the first complete response in buf, following
// {n} literal announcements across line boundaries. The NeedMore minimum is
// derived from the declared literal length when one is pending, and is 1
// otherwise.
func frame(buf []byte) (int, error) {
	pos := 0
	for {
		i := bytes.Index(buf[pos:], []byte("\r\n"))
		if i < 0 {
			return 0, &NeedMore{Min: 1}
		}

		lineEnd := pos + i
		size, ok := literalAnnouncement(buf[pos:lineEnd])
		if !ok {
			return lineEnd + 2, nil
		}

		// the line continues after the raw literal bytes
		next := lineEnd + 2 + size
		if next > len(buf) {
			return 0, &NeedMore{Min: next - len(buf)}
		}
		pos = next
	}
}

// literalAnnouncement reports whether line ends with a "{n}" literal marker
// and returns the declared byte count.
func literalAnnouncement(line []byte) (int, bool) {
	if len(line) < 3 || line[len(line)-1] != '}' {
		return 0, false
	}

	open := bytes.LastIndexByte(line, '{')
	if open < 0 {
		return 0, false
	}

	digits := line[open+1 : len(line)-1]
	// servers never send non-synchronizing markers, but tolerate them
	digits = bytes.TrimSuffix(digits, []byte("+"))
	if len(digits) == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(string(digits))
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}

// parse decodes one complete frame (terminated by CRLF, literals included).
func parse(frame []byte) (Response, error) {
	c := &cursor{buf: frame}

	switch {
	case c.accept('+'):
		if !c.accept(' ') && !c.atCRLF() {
			return nil, c.errorf("malformed continuation request")
		}
		return &ContinuationRequest{Text: c.text()}, nil

	case c.accept('*'):
		if err := c.sp(); err != nil {
			return nil, err
		}
		return parseUntagged(c, frame)

	default:
		return parseTagged(c)
	}
}

func parseUntagged(c *cursor, frame []byte) (Response, error) {
	word := c.atom()

	if n, err := strconv.ParseUint(word, 10, 32); err == nil {
		return parseNumbered(c, uint32(n))
	}

	switch word {
	case "OK", "NO", "BAD", "PREAUTH", "BYE":
		code, rest, text, err := parseStatusTail(c)
		if err != nil {
			return nil, err
		}
		return &UntaggedStatus{Status: Status(word), Code: code, Rest: rest, Text: text}, nil

	case "FLAGS":
		if err := c.sp(); err != nil {
			return nil, err
		}
		flags, err := c.parenAtoms()
		if err != nil {
			return nil, err
		}
		return &Flags{Flags: flags}, nil

	case "CAPABILITY":
		var caps []string
		for c.accept(' ') {
			caps = append(caps, c.atom())
		}
		return &Capability{Caps: caps}, nil

	case "LIST", "LSUB":
		return parseList(c)

	case "METADATA":
		return parseMetadata(c)

	case "QUOTA":
		return parseQuota(c)

	case "QUOTAROOT":
		return parseQuotaRoot(c)

	case "ID":
		return parseID(c)

	case "VANISHED":
		return parseVanished(c)

	default:
		return &Raw{Line: frame}, nil
	}
}

func parseNumbered(c *cursor, n uint32) (Response, error) {
	if err := c.sp(); err != nil {
		return nil, err
	}

	switch word := c.atom(); word {
	case "EXISTS":
		return &Exists{Count: n}, nil
	case "RECENT":
		return &Recent{Count: n}, nil
	case "EXPUNGE":
		return &Expunge{Seq: n}, nil
	case "FETCH":
		return parseFetch(c, n)
	default:
		return nil, c.errorf("unknown numbered response %q", word)
	}
}

func parseTagged(c *cursor) (Response, error) {
	tag := c.atom()
	if tag == "" {
		return nil, c.errorf("missing tag")
	}
	if err := c.sp(); err != nil {
		return nil, err
	}

	status := Status(c.atom())
	switch status {
	case StatusOK, StatusNo, StatusBad:
	default:
		return nil, c.errorf("invalid completion condition %q", status)
	}

	code, rest, text, err := parseStatusTail(c)
	if err != nil {
		return nil, err
	}

	return &Done{Tag: tag, Status: status, Code: code, Rest: rest, Text: text}, nil
}

// parseStatusTail parses the optional [..] response code and the free text
// following a status condition.
func parseStatusTail(c *cursor) (code, rest, text string, err error) {
	if !c.accept(' ') {
		if c.atCRLF() {
			return "", "", "", nil
		}
		return "", "", "", c.errorf("malformed status response")
	}

	if c.accept('[') {
		end := bytes.IndexByte(c.remaining(), ']')
		if end < 0 {
			return "", "", "", c.errorf("unterminated response code")
		}
		inner := string(c.remaining()[:end])
		c.pos += end + 1
		code, rest, _ = strings.Cut(inner, " ")
		c.accept(' ')
	}

	return code, rest, c.text(), nil
}

func parseList(c *cursor) (Response, error) {
	if err := c.sp(); err != nil {
		return nil, err
	}
	attrs, err := c.parenAtoms()
	if err != nil {
		return nil, err
	}
	if err := c.sp(); err != nil {
		return nil, err
	}

	var delim string
	if !c.acceptWord("NIL") {
		delim, err = c.quoted()
		if err != nil {
			return nil, err
		}
	}
	if err := c.sp(); err != nil {
		return nil, err
	}

	mailbox, err := c.astring()
	if err != nil {
		return nil, err
	}

	return &List{Attrs: attrs, Delim: delim, Mailbox: string(mailbox)}, nil
}

func parseFetch(c *cursor, seq uint32) (Response, error) {
	if err := c.sp(); err != nil {
		return nil, err
	}
	if !c.accept('(') {
		return nil, c.errorf("malformed FETCH response")
	}

	f := &Fetch{Seq: seq}
	for {
		if c.accept(')') {
			return f, nil
		}
		if len(f.Items) > 0 {
			if err := c.sp(); err != nil {
				return nil, err
			}
		}

		item := FetchItem{Name: c.itemName()}
		if item.Name == "" {
			return nil, c.errorf("malformed FETCH item")
		}
		if err := c.sp(); err != nil {
			return nil, err
		}

		switch {
		case c.peek() == '{':
			lit, err := c.literal()
			if err != nil {
				return nil, err
			}
			item.Literal = lit
		case c.peek() == '(':
			list, err := c.balanced()
			if err != nil {
				return nil, err
			}
			item.Value = string(list)
		case c.peek() == '"':
			s, err := c.quoted()
			if err != nil {
				return nil, err
			}
			item.Value = s
		default:
			item.Value = c.atom()
		}

		f.Items = append(f.Items, item)
	}
}

func parseMetadata(c *cursor) (Response, error) {
	if err := c.sp(); err != nil {
		return nil, err
	}
	mailbox, err := c.astring()
	if err != nil {
		return nil, err
	}
	if err := c.sp(); err != nil {
		return nil, err
	}

	m := &Metadata{Mailbox: string(mailbox)}

	if !c.accept('(') {
		// unsolicited form: entry names only
		for {
			name, err := c.astring()
			if err != nil {
				return nil, err
			}
			m.Entries = append(m.Entries, MetadataEntry{Name: string(name)})
			if !c.accept(' ') {
				return m, nil
			}
		}
	}

	for !c.accept(')') {
		if len(m.Entries) > 0 {
			if err := c.sp(); err != nil {
				return nil, err
			}
		}

		name, err := c.astring()
		if err != nil {
			return nil, err
		}
		if err := c.sp(); err != nil {
			return nil, err
		}

		entry := MetadataEntry{Name: string(name)}
		if !c.acceptWord("NIL") {
			val, err := c.astring()
			if err != nil {
				return nil, err
			}
			entry.Value = val
			if entry.Value == nil {
				entry.Value = []byte{}
			}
		}
		m.Entries = append(m.Entries, entry)
	}

	return m, nil
}

func parseQuota(c *cursor) (Response, error) {
	if err := c.sp(); err != nil {
		return nil, err
	}
	root, err := c.astring()
	if err != nil {
		return nil, err
	}
	if err := c.sp(); err != nil {
		return nil, err
	}
	if !c.accept('(') {
		return nil, c.errorf("malformed QUOTA response")
	}

	q := &Quota{Root: string(root)}
	for !c.accept(')') {
		if len(q.Resources) > 0 {
			if err := c.sp(); err != nil {
				return nil, err
			}
		}

		var res QuotaResource
		res.Name = c.atom()
		if err := c.sp(); err != nil {
			return nil, err
		}
		if res.Usage, err = c.number64(); err != nil {
			return nil, err
		}
		if err := c.sp(); err != nil {
			return nil, err
		}
		if res.Limit, err = c.number64(); err != nil {
			return nil, err
		}

		q.Resources = append(q.Resources, res)
	}

	return q, nil
}

func parseQuotaRoot(c *cursor) (Response, error) {
	if err := c.sp(); err != nil {
		return nil, err
	}
	mailbox, err := c.astring()
	if err != nil {
		return nil, err
	}

	qr := &QuotaRoot{Mailbox: string(mailbox)}
	for c.accept(' ') {
		root, err := c.astring()
		if err != nil {
			return nil, err
		}
		qr.Roots = append(qr.Roots, string(root))
	}

	return qr, nil
}

func parseID(c *cursor) (Response, error) {
	if err := c.sp(); err != nil {
		return nil, err
	}
	if c.acceptWord("NIL") {
		return &ID{}, nil
	}
	if !c.accept('(') {
		return nil, c.errorf("malformed ID response")
	}

	params := map[string]string{}
	for !c.accept(')') {
		if len(params) > 0 {
			if err := c.sp(); err != nil {
				return nil, err
			}
		}

		key, err := c.astring()
		if err != nil {
			return nil, err
		}
		if err := c.sp(); err != nil {
			return nil, err
		}

		var value string
		if !c.acceptWord("NIL") {
			v, err := c.astring()
			if err != nil {
				return nil, err
			}
			value = string(v)
		}
		params[string(key)] = value
	}

	return &ID{Params: params}, nil
}

func parseVanished(c *cursor) (Response, error) {
	if err := c.sp(); err != nil {
		return nil, err
	}

	v := &Vanished{}
	if c.accept('(') {
		if !c.acceptWord("EARLIER") || !c.accept(')') {
			return nil, c.errorf("malformed VANISHED response")
		}
		v.Earlier = true
		if err := c.sp(); err != nil {
			return nil, err
		}
	}

	v.UIDs = c.text()
	return v, nil
}
