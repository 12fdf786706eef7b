package wire

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// cursor is a reader over one complete response frame. Byte slices it
// returns (literals) alias the frame.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() []byte { return c.buf[c.pos:] }

func (c *cursor) peek() byte {
	if c.pos >= len(c.buf) {
		return 0
	}
	return c.buf[c.pos]
}

func (c *cursor) accept(b byte) bool {
	if c.peek() != b {
		return false
	}
	c.pos++
	return true
}

// acceptWord consumes word if it appears at the cursor followed by a
// delimiter.
func (c *cursor) acceptWord(word string) bool {
	if !bytes.HasPrefix(c.remaining(), []byte(word)) {
		return false
	}
	switch next := c.pos + len(word); {
	case next >= len(c.buf):
	case isAtomByte(c.buf[next]):
		return false
	}
	c.pos += len(word)
	return true
}

func (c *cursor) sp() error {
	if !c.accept(' ') {
		return c.errorf("expected space")
	}
	return nil
}

func (c *cursor) atCRLF() bool {
	return bytes.HasPrefix(c.remaining(), []byte("\r\n"))
}

func isAtomByte(b byte) bool {
	switch b {
	case ' ', '\r', '\n', '(', ')', '{', '"', ']':
		return false
	}
	return b > 0x1f && b < 0x80
}

// atom consumes a run of atom bytes. It returns "" when the cursor is not at
// an atom.
func (c *cursor) atom() string {
	start := c.pos
	for c.pos < len(c.buf) && isAtomByte(c.buf[c.pos]) {
		c.pos++
	}
	return string(c.buf[start:c.pos])
}

// itemName consumes a FETCH attribute name, which unlike an atom may contain
// a bracketed section specifier such as BODY[HEADER.FIELDS (DATE)].
func (c *cursor) itemName() string {
	start := c.pos
	for c.pos < len(c.buf) {
		b := c.buf[c.pos]
		if b == '[' {
			end := bytes.IndexByte(c.buf[c.pos:], ']')
			if end < 0 {
				break
			}
			c.pos += end + 1
			continue
		}
		if !isAtomByte(b) {
			break
		}
		c.pos++
	}
	return string(c.buf[start:c.pos])
}

func (c *cursor) number64() (uint64, error) {
	a := c.atom()
	n, err := strconv.ParseUint(a, 10, 64)
	if err != nil {
		return 0, c.errorf("expected number, got %q", a)
	}
	return n, nil
}

func (c *cursor) quoted() (string, error) {
	if !c.accept('"') {
		return "", c.errorf("expected quoted string")
	}

	var sb strings.Builder
	for c.pos < len(c.buf) {
		b := c.buf[c.pos]
		c.pos++
		switch b {
		case '"':
			return sb.String(), nil
		case '\\':
			if c.pos >= len(c.buf) {
				return "", c.errorf("truncated quoted string")
			}
			sb.WriteByte(c.buf[c.pos])
			c.pos++
		case '\r', '\n':
			return "", c.errorf("newline in quoted string")
		default:
			sb.WriteByte(b)
		}
	}

	return "", c.errorf("unterminated quoted string")
}

// literal consumes a {n} announcement, the CRLF and the n raw bytes that
// follow. The returned slice aliases the frame.
func (c *cursor) literal() ([]byte, error) {
	if !c.accept('{') {
		return nil, c.errorf("expected literal")
	}

	end := bytes.IndexByte(c.remaining(), '}')
	if end < 0 {
		return nil, c.errorf("unterminated literal announcement")
	}
	digits := strings.TrimSuffix(string(c.remaining()[:end]), "+")
	size, err := strconv.Atoi(digits)
	if err != nil || size < 0 {
		return nil, c.errorf("invalid literal length %q", digits)
	}
	c.pos += end + 1

	if !c.atCRLF() {
		return nil, c.errorf("literal announcement not at end of line")
	}
	c.pos += 2

	if c.pos+size > len(c.buf) {
		// frame() accounted for every announcement, so this is a frame bug,
		// not short input
		return nil, c.errorf("literal exceeds frame")
	}

	lit := c.buf[c.pos : c.pos+size]
	c.pos += size
	return lit, nil
}

// astring consumes an atom, quoted string or literal. Quoted strings and
// atoms are returned as fresh copies, literals alias the frame.
func (c *cursor) astring() ([]byte, error) {
	switch c.peek() {
	case '"':
		s, err := c.quoted()
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	case '{':
		return c.literal()
	default:
		a := c.atom()
		if a == "" {
			return nil, c.errorf("expected string")
		}
		return []byte(a), nil
	}
}

// parenAtoms consumes a parenthesized list of atoms (flags, attributes).
func (c *cursor) parenAtoms() ([]string, error) {
	if !c.accept('(') {
		return nil, c.errorf("expected list")
	}

	var out []string
	for !c.accept(')') {
		if len(out) > 0 {
			if err := c.sp(); err != nil {
				return nil, err
			}
		}
		a := c.atom()
		if a == "" {
			return nil, c.errorf("malformed list")
		}
		out = append(out, a)
	}

	return out, nil
}

// balanced consumes a parenthesized expression verbatim, including nested
// lists, quoted strings and literals.
func (c *cursor) balanced() ([]byte, error) {
	start := c.pos
	depth := 0
	for c.pos < len(c.buf) {
		switch c.buf[c.pos] {
		case '(':
			depth++
			c.pos++
		case ')':
			depth--
			c.pos++
			if depth == 0 {
				return c.buf[start:c.pos], nil
			}
		case '"':
			if _, err := c.quoted(); err != nil {
				return nil, err
			}
		case '{':
			if _, err := c.literal(); err != nil {
				return nil, err
			}
		default:
			c.pos++
		}
	}

	return nil, c.errorf("unbalanced list")
}

// text consumes the remainder of the frame up to the trailing CRLF.
func (c *cursor) text() string {
	rest := c.remaining()
	rest = bytes.TrimSuffix(rest, []byte("\r\n"))
	c.pos += len(rest)
	return string(rest)
}

func (c *cursor) errorf(format string, args ...any) error {
	return fmt.Errorf("imap: %s at offset %d in %q",
		fmt.Sprintf(format, args...), c.pos, c.buf)
}
