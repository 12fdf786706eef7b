package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fho/imapcore/internal/testutils/assert"
)

func decodeOne(t *testing.T, line string) Response {
	t.Helper()

	resp, n, err := Decode([]byte(line))
	assert.NoError(t, err)
	assert.Equal(t, len(line), n)

	return resp
}

func TestDecode_ContinuationRequest(t *testing.T) {
	resp := decodeOne(t, "+ idling\r\n")
	cont, ok := resp.(*ContinuationRequest)
	if !ok {
		t.Fatalf("expected *ContinuationRequest, got %T", resp)
	}
	assert.Equal(t, "idling", cont.Text)

	resp = decodeOne(t, "+\r\n")
	cont = resp.(*ContinuationRequest)
	assert.Equal(t, "", cont.Text)
}

func TestDecode_TaggedDone(t *testing.T) {
	resp := decodeOne(t, "A0001 OK [READ-WRITE] SELECT completed\r\n")
	done, ok := resp.(*Done)
	if !ok {
		t.Fatalf("expected *Done, got %T", resp)
	}
	assert.Equal(t, "A0001", done.Tag)
	assert.Equal(t, StatusOK, done.Status)
	assert.Equal(t, "READ-WRITE", done.Code)
	assert.Equal(t, "", done.Rest)
	assert.Equal(t, "SELECT completed", done.Text)

	resp = decodeOne(t, "A0002 NO [ALREADYEXISTS] duplicate\r\n")
	done = resp.(*Done)
	assert.Equal(t, StatusNo, done.Status)
	assert.Equal(t, "ALREADYEXISTS", done.Code)

	resp = decodeOne(t, "A0003 BAD parse error\r\n")
	done = resp.(*Done)
	assert.Equal(t, StatusBad, done.Status)
	assert.Equal(t, "", done.Code)
	assert.Equal(t, "parse error", done.Text)
}

func TestDecode_TaggedDoneWithoutText(t *testing.T) {
	resp := decodeOne(t, "A0004 OK\r\n")
	done := resp.(*Done)
	assert.Equal(t, "A0004", done.Tag)
	assert.Equal(t, StatusOK, done.Status)
	assert.Equal(t, "", done.Text)
}

func TestDecode_UntaggedStatus(t *testing.T) {
	resp := decodeOne(t, "* OK [UIDVALIDITY 3857529045] UIDs valid\r\n")
	st, ok := resp.(*UntaggedStatus)
	if !ok {
		t.Fatalf("expected *UntaggedStatus, got %T", resp)
	}
	assert.Equal(t, StatusOK, st.Status)
	assert.Equal(t, "UIDVALIDITY", st.Code)
	assert.Equal(t, "3857529045", st.Rest)
	assert.Equal(t, "UIDs valid", st.Text)

	resp = decodeOne(t, "* PREAUTH ready for requests\r\n")
	st = resp.(*UntaggedStatus)
	assert.Equal(t, StatusPreAuth, st.Status)

	resp = decodeOne(t, "* BYE shutting down\r\n")
	st = resp.(*UntaggedStatus)
	assert.Equal(t, StatusBye, st.Status)
	assert.Equal(t, "shutting down", st.Text)
}

func TestDecode_NumberedResponses(t *testing.T) {
	assert.Equal(t, uint32(23), decodeOne(t, "* 23 EXISTS\r\n").(*Exists).Count)
	assert.Equal(t, uint32(2), decodeOne(t, "* 2 RECENT\r\n").(*Recent).Count)
	assert.Equal(t, uint32(4), decodeOne(t, "* 4 EXPUNGE\r\n").(*Expunge).Seq)
}

func TestDecode_Flags(t *testing.T) {
	resp := decodeOne(t, "* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)\r\n")
	f := resp.(*Flags)
	assert.Equal(t, 5, len(f.Flags))
	assert.Equal(t, "\\Answered", f.Flags[0])
	assert.Equal(t, "\\Draft", f.Flags[4])

	f = decodeOne(t, "* FLAGS ()\r\n").(*Flags)
	assert.Equal(t, 0, len(f.Flags))
}

func TestDecode_Capability(t *testing.T) {
	resp := decodeOne(t, "* CAPABILITY IMAP4rev1 IDLE QUOTA METADATA\r\n")
	caps := resp.(*Capability)
	assert.Equal(t, 4, len(caps.Caps))
	assert.Equal(t, "IMAP4rev1", caps.Caps[0])
	assert.Equal(t, "IDLE", caps.Caps[1])
}

func TestDecode_List(t *testing.T) {
	resp := decodeOne(t, "* LIST (\\HasNoChildren) \"/\" \"lists/golang\"\r\n")
	l := resp.(*List)
	assert.Equal(t, 1, len(l.Attrs))
	assert.Equal(t, "\\HasNoChildren", l.Attrs[0])
	assert.Equal(t, "/", l.Delim)
	assert.Equal(t, "lists/golang", l.Mailbox)

	l = decodeOne(t, "* LIST () NIL INBOX\r\n").(*List)
	assert.Equal(t, "", l.Delim)
	assert.Equal(t, "INBOX", l.Mailbox)
}

func TestDecode_FetchLiteralIsExact(t *testing.T) {
	// the literal contains a CRLF and a "{3}" lookalike, neither may
	// confuse the framing
	body := "A\r\n{3}BC"
	line := "* 12 FETCH (BODY[] {8}\r\n" + body + ")\r\n"

	resp := decodeOne(t, line)
	f := resp.(*Fetch)
	assert.Equal(t, uint32(12), f.Seq)
	assert.Equal(t, 1, len(f.Items))
	assert.Equal(t, "BODY[]", f.Items[0].Name)
	assert.Equal(t, body, string(f.Items[0].Literal))
}

func TestDecode_FetchMixedItems(t *testing.T) {
	line := "* 7 FETCH (UID 993 FLAGS (\\Seen) INTERNALDATE \"21-Aug-2026 03:14:15 +0000\" RFC822.SIZE 44827)\r\n"
	f := decodeOne(t, line).(*Fetch)

	assert.Equal(t, uint32(7), f.Seq)
	assert.Equal(t, 4, len(f.Items))
	assert.Equal(t, "UID", f.Items[0].Name)
	assert.Equal(t, "993", f.Items[0].Value)
	assert.Equal(t, "FLAGS", f.Items[1].Name)
	assert.Equal(t, "(\\Seen)", f.Items[1].Value)
	assert.Equal(t, "INTERNALDATE", f.Items[2].Name)
	assert.Equal(t, "21-Aug-2026 03:14:15 +0000", f.Items[2].Value)
	assert.Equal(t, "RFC822.SIZE", f.Items[3].Name)
	assert.Equal(t, "44827", f.Items[3].Value)
}

func TestDecode_MetadataWithValues(t *testing.T) {
	line := "* METADATA INBOX (/private/comment {9}\r\nmy folder /shared/comment NIL)\r\n"
	m := decodeOne(t, line).(*Metadata)

	assert.Equal(t, "INBOX", m.Mailbox)
	assert.Equal(t, 2, len(m.Entries))
	assert.Equal(t, "/private/comment", m.Entries[0].Name)
	assert.Equal(t, true, m.Entries[0].HasValue())
	assert.Equal(t, "my folder", string(m.Entries[0].Value))
	assert.Equal(t, "/shared/comment", m.Entries[1].Name)
	assert.Equal(t, false, m.Entries[1].HasValue())
}

func TestDecode_MetadataUnsolicited(t *testing.T) {
	line := "* METADATA INBOX /private/comment /shared/comment\r\n"
	m := decodeOne(t, line).(*Metadata)

	assert.Equal(t, 2, len(m.Entries))
	assert.Equal(t, "/private/comment", m.Entries[0].Name)
	assert.Equal(t, false, m.Entries[0].HasValue())
	assert.Equal(t, "/shared/comment", m.Entries[1].Name)
}

func TestDecode_Quota(t *testing.T) {
	q := decodeOne(t, "* QUOTA \"\" (STORAGE 10 512 MESSAGE 20 100)\r\n").(*Quota)
	assert.Equal(t, "", q.Root)
	assert.Equal(t, 2, len(q.Resources))
	assert.Equal(t, QuotaResource{Name: "STORAGE", Usage: 10, Limit: 512}, q.Resources[0])
	assert.Equal(t, QuotaResource{Name: "MESSAGE", Usage: 20, Limit: 100}, q.Resources[1])
}

func TestDecode_QuotaRoot(t *testing.T) {
	qr := decodeOne(t, "* QUOTAROOT INBOX \"\" user\r\n").(*QuotaRoot)
	assert.Equal(t, "INBOX", qr.Mailbox)
	assert.Equal(t, 2, len(qr.Roots))
	assert.Equal(t, "", qr.Roots[0])
	assert.Equal(t, "user", qr.Roots[1])
}

func TestDecode_ID(t *testing.T) {
	id := decodeOne(t, "* ID (\"name\" \"Dovecot\" \"version\" NIL)\r\n").(*ID)
	assert.Equal(t, 2, len(id.Params))
	assert.Equal(t, "Dovecot", id.Params["name"])
	assert.Equal(t, "", id.Params["version"])

	id = decodeOne(t, "* ID NIL\r\n").(*ID)
	if id.Params != nil {
		t.Fatalf("expected nil params, got %v", id.Params)
	}
}

func TestDecode_Vanished(t *testing.T) {
	v := decodeOne(t, "* VANISHED (EARLIER) 300:310,405\r\n").(*Vanished)
	assert.Equal(t, true, v.Earlier)
	assert.Equal(t, "300:310,405", v.UIDs)

	v = decodeOne(t, "* VANISHED 44\r\n").(*Vanished)
	assert.Equal(t, false, v.Earlier)
	assert.Equal(t, "44", v.UIDs)
}

func TestDecode_UnknownUntaggedIsRaw(t *testing.T) {
	line := "* SEARCH 2 84 882\r\n"
	raw := decodeOne(t, line).(*Raw)
	assert.Equal(t, line, string(raw.Line))
}

func TestDecode_NeedMoreOnPartialLine(t *testing.T) {
	for _, tc := range []string{"", "*", "* 23 EXIS", "* 23 EXISTS", "* 23 EXISTS\r"} {
		_, _, err := Decode([]byte(tc))
		var nm *NeedMore
		if !errors.As(err, &nm) {
			t.Fatalf("input %q: expected *NeedMore, got %v", tc, err)
		}
		assert.Equal(t, 1, nm.Min)
	}
}

func TestDecode_NeedMoreReportsMissingLiteralBytes(t *testing.T) {
	// the literal announces 100 bytes, 10 arrived so far
	buf := []byte("* 1 FETCH (BODY[] {100}\r\n0123456789")
	_, _, err := Decode(buf)

	var nm *NeedMore
	if !errors.As(err, &nm) {
		t.Fatalf("expected *NeedMore, got %v", err)
	}
	// 90 literal bytes plus at least the closing ")\r\n" are outstanding;
	// the guarantee is only a lower bound on the literal itself
	assert.Equal(t, 90, nm.Min)
}

func TestDecode_ConsumesExactlyOneResponse(t *testing.T) {
	first := "* 3 EXISTS\r\n"
	buf := []byte(first + "* 1 RECENT\r\nA0001 OK done\r\n")

	resp, n, err := Decode(buf)
	assert.NoError(t, err)
	assert.Equal(t, len(first), n)
	assert.Equal(t, uint32(3), resp.(*Exists).Count)
}

// TestDecode_ChunkedIsSplitIndependent feeds a stream containing a literal
// one byte at a time and verifies the decoded sequence is identical to
// decoding the whole buffer at once, regardless of where chunk boundaries
// fall.
func TestDecode_ChunkedIsSplitIndependent(t *testing.T) {
	stream := []byte("* OK ready\r\n" +
		"* 1 FETCH (BODY[] {6}\r\nhi\r\nyo FLAGS (\\Seen))\r\n" +
		"A0001 OK FETCH completed\r\n")

	var whole []Response
	rest := stream
	for len(rest) > 0 {
		resp, n, err := Decode(rest)
		assert.NoError(t, err)
		whole = append(whole, resp)
		rest = rest[n:]
	}

	var chunked []Response
	buf := []byte{}
	for i := 0; i < len(stream); i++ {
		buf = append(buf, stream[i])
		for {
			resp, n, err := Decode(buf)
			var nm *NeedMore
			if errors.As(err, &nm) {
				if i+1 < len(stream) && nm.Min > len(stream)-(i+1) {
					t.Fatalf("NeedMore.Min %d overshoots remaining input %d", nm.Min, len(stream)-(i+1))
				}
				break
			}
			assert.NoError(t, err)
			chunked = append(chunked, Owned(resp))
			buf = buf[n:]
		}
	}

	assert.Equal(t, len(whole), len(chunked))
	for i := range whole {
		w, c := whole[i], chunked[i]
		switch wr := w.(type) {
		case *Fetch:
			cr := c.(*Fetch)
			assert.Equal(t, wr.Seq, cr.Seq)
			assert.Equal(t, len(wr.Items), len(cr.Items))
			for j := range wr.Items {
				assert.Equal(t, wr.Items[j].Name, cr.Items[j].Name)
				assert.Equal(t, wr.Items[j].Value, cr.Items[j].Value)
				if !bytes.Equal(wr.Items[j].Literal, cr.Items[j].Literal) {
					t.Fatalf("literal mismatch: %q vs %q", wr.Items[j].Literal, cr.Items[j].Literal)
				}
			}
		case *UntaggedStatus:
			assert.Equal(t, *wr, *c.(*UntaggedStatus))
		case *Done:
			assert.Equal(t, *wr, *c.(*Done))
		default:
			t.Fatalf("unexpected response type %T", w)
		}
	}
}

func TestDecode_MalformedIsNotNeedMore(t *testing.T) {
	for _, tc := range []string{
		"* 5 FROBNICATE\r\n",
		"* LIST oops\r\n",
		" \r\n",
	} {
		_, _, err := Decode([]byte(tc))
		assert.Error(t, err)
		var nm *NeedMore
		if errors.As(err, &nm) {
			t.Fatalf("input %q: malformed data misreported as NeedMore", tc)
		}
	}
}

func TestOwned_DetachesLiterals(t *testing.T) {
	buf := []byte("* 1 FETCH (BODY[] {5}\r\nhello)\r\n")
	resp, _, err := Decode(buf)
	assert.NoError(t, err)

	f := Owned(resp).(*Fetch)
	copy(buf, bytes.Repeat([]byte{'x'}, len(buf)))
	assert.Equal(t, "hello", string(f.Items[0].Literal))
}
