package wire

import "strconv"

// Command is a client command under construction. Arguments are appended
// fluently:
//
//	wire.NewCommand("LOGIN").String(user).String(password)
//
// String arguments are sent quoted when possible and as a {n} literal
// otherwise; Literal arguments are always sent as literals.
type Command struct {
	name string
	args []arg
}

type argKind int

const (
	argAtom argKind = iota
	argString
	argLiteral
	argList
)

type arg struct {
	kind argKind
	str  string
	raw  []byte
	list []arg
}

// NewCommand returns a command with the given name, e.g. "SELECT".
func NewCommand(name string) *Command {
	return &Command{name: name}
}

// Atom appends an argument sent verbatim.
func (c *Command) Atom(s string) *Command {
	c.args = append(c.args, arg{kind: argAtom, str: s})
	return c
}

// Number appends a decimal number argument.
func (c *Command) Number(n uint64) *Command {
	return c.Atom(strconv.FormatUint(n, 10))
}

// String appends a string argument, quoted or as a literal depending on its
// content.
func (c *Command) String(s string) *Command {
	c.args = append(c.args, arg{kind: argString, str: s})
	return c
}

// Literal appends a length-prefixed raw byte argument.
func (c *Command) Literal(b []byte) *Command {
	c.args = append(c.args, arg{kind: argLiteral, raw: b})
	return c
}

// List appends a parenthesized list argument built by fn.
func (c *Command) List(fn func(l *Command)) *Command {
	sub := &Command{}
	fn(sub)
	c.args = append(c.args, arg{kind: argList, list: sub.args})
	return c
}

// Encode renders the command under tag as one or more wire segments. Every
// segment but the last ends with a "{n}" literal announcement; the sender
// must await a continuation request before writing the next segment. The
// last segment ends with CRLF.
func (c *Command) Encode(tag string) [][]byte {
	cur := make([]byte, 0, 64)
	cur = append(cur, tag...)
	cur = append(cur, ' ')
	cur = append(cur, c.name...)

	var segs [][]byte
	for _, a := range c.args {
		cur = append(cur, ' ')
		segs, cur = a.encode(segs, cur)
	}

	cur = append(cur, "\r\n"...)
	return append(segs, cur)
}

func (a arg) encode(segs [][]byte, cur []byte) ([][]byte, []byte) {
	switch a.kind {
	case argAtom:
		cur = append(cur, a.str...)

	case argString:
		if needsLiteral(a.str) {
			return arg{kind: argLiteral, raw: []byte(a.str)}.encode(segs, cur)
		}
		cur = appendQuoted(cur, a.str)

	case argLiteral:
		cur = append(cur, '{')
		cur = strconv.AppendInt(cur, int64(len(a.raw)), 10)
		cur = append(cur, "}\r\n"...)
		segs = append(segs, cur)
		cur = append([]byte(nil), a.raw...)

	case argList:
		cur = append(cur, '(')
		for i, sub := range a.list {
			if i > 0 {
				cur = append(cur, ' ')
			}
			segs, cur = sub.encode(segs, cur)
		}
		cur = append(cur, ')')
	}

	return segs, cur
}

func appendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			dst = append(dst, '\\')
		}
		dst = append(dst, s[i])
	}
	return append(dst, '"')
}

// needsLiteral reports whether s cannot be transmitted as a quoted string.
func needsLiteral(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' || s[i] == '\n' || s[i] >= 0x80 || s[i] == 0 {
			return true
		}
	}
	return false
}
