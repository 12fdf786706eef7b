package wire

import (
	"strconv"
	"testing"

	"github.com/fho/imapcore/internal/testutils/assert"
)

func encodeJoined(t *testing.T, cmd *Command, tag string) string {
	t.Helper()

	var out []byte
	for _, seg := range cmd.Encode(tag) {
		out = append(out, seg...)
	}
	return string(out)
}

func TestEncode_AtomsAndNumbers(t *testing.T) {
	cmd := NewCommand("FETCH").Atom("1:4").Atom("UID").Number(42)
	segs := cmd.Encode("A0001")

	assert.Equal(t, 1, len(segs))
	assert.Equal(t, "A0001 FETCH 1:4 UID 42\r\n", string(segs[0]))
}

func TestEncode_QuotedString(t *testing.T) {
	cmd := NewCommand("LOGIN").String("user").String(`pa"ss\word`)
	segs := cmd.Encode("A0002")

	assert.Equal(t, 1, len(segs))
	assert.Equal(t, `A0002 LOGIN "user" "pa\"ss\\word"`+"\r\n", string(segs[0]))
}

func TestEncode_StringFallsBackToLiteral(t *testing.T) {
	for _, s := range []string{"line\r\nbreak", "nul\x00byte", "höhe"} {
		cmd := NewCommand("X").String(s)
		segs := cmd.Encode("A0003")

		assert.Equal(t, 2, len(segs))
		assert.Equal(t, "A0003 X {"+strconv.Itoa(len(s))+"}\r\n", string(segs[0]))
		assert.Equal(t, s+"\r\n", string(segs[1]))
	}
}

func TestEncode_LiteralSplitsSegments(t *testing.T) {
	msg := []byte("Subject: hi\r\n\r\nbody\r\n")
	cmd := NewCommand("APPEND").String("INBOX").Literal(msg)
	segs := cmd.Encode("A0004")

	assert.Equal(t, 2, len(segs))
	assert.Equal(t, "A0004 APPEND \"INBOX\" {21}\r\n", string(segs[0]))
	assert.Equal(t, string(msg)+"\r\n", string(segs[1]))
}

func TestEncode_MultipleLiterals(t *testing.T) {
	cmd := NewCommand("SETMETADATA").String("INBOX").List(func(l *Command) {
		l.Atom("/private/comment").Literal([]byte("first"))
		l.Atom("/shared/comment").Literal([]byte("second"))
	})
	segs := cmd.Encode("A0005")

	assert.Equal(t, 3, len(segs))
	assert.Equal(t, "A0005 SETMETADATA \"INBOX\" (/private/comment {5}\r\n", string(segs[0]))
	assert.Equal(t, "first /shared/comment {6}\r\n", string(segs[1]))
	assert.Equal(t, "second)\r\n", string(segs[2]))
}

func TestEncode_List(t *testing.T) {
	cmd := NewCommand("SELECT").Atom("INBOX").List(func(l *Command) {
		l.Atom("QRESYNC").List(func(q *Command) {
			q.Number(67890007).Number(20050715194045000)
		})
	})

	assert.Equal(t,
		"A0006 SELECT INBOX (QRESYNC (67890007 20050715194045000))\r\n",
		encodeJoined(t, cmd, "A0006"))
}

func TestEncode_EmptyString(t *testing.T) {
	cmd := NewCommand("GETQUOTA").String("")
	segs := cmd.Encode("A0007")

	assert.Equal(t, 1, len(segs))
	assert.Equal(t, "A0007 GETQUOTA \"\"\r\n", string(segs[0]))
}
