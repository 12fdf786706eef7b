// Package imapserver starts an in-memory IMAP server for end-to-end tests.
package imapserver

import (
	"net"
	"testing"

	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
)

type Server struct {
	UserName   string
	UserPasswd string
	Addr       string

	InboxMailbox   string
	ArchiveMailbox string
}

// StartServer listens on an ephemeral localhost port and serves an in-memory
// IMAP server with a single user until the test ends.
func StartServer(t *testing.T) *Server {
	srv := Server{
		UserName:       "user",
		UserPasswd:     "none",
		InboxMailbox:   "INBOX",
		ArchiveMailbox: "archive",
	}

	user := imapmemserver.NewUser(srv.UserName, srv.UserPasswd)
	createMailbox(t, user, srv.InboxMailbox)
	createMailbox(t, user, srv.ArchiveMailbox)

	msrv := imapmemserver.New()
	msrv.AddUser(user)

	isrv := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return msrv.NewSession(), nil, nil
		},
		Logger:       testLoggerAsImapServerLogger(t),
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("listening for imap server failed: %s", err)
	}
	srv.Addr = ln.Addr().String()

	t.Cleanup(func() { _ = isrv.Close() })
	go func() { _ = isrv.Serve(ln) }()

	return &srv
}

func createMailbox(t *testing.T, user *imapmemserver.User, mailboxName string) {
	if err := user.Create(mailboxName, nil); err != nil {
		t.Fatalf("creating %s mailbox failed: %s", mailboxName, err)
	}
}
