package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	// Addr is the address of the IMAP server. If the port is "993" or
	// "imaps" an implicit TLS (SSL) connection is established, otherwise a
	// plaintext connection is used.
	Addr     string
	User     string
	Password string
	// Mailbox is watched for changes.
	Mailbox string
	// KeepaliveMinutes is the idle period after which the running wait mode
	// is restarted, to not be disconnected as an inactive client.
	KeepaliveMinutes int
}

func (c *Config) String() string {
	const unset = "UNSET"
	const hiddenPasswd = "***"
	var sb strings.Builder

	printKv := func(k string, v any) {
		fmt.Fprintf(&sb, "%-30v%-50v\n", k+":", v)
	}

	sb.WriteString("Configuration:\n")
	printKv("IMAP Server Address", c.Addr)
	printKv("IMAP User", c.User)

	if c.Password == "" {
		printKv("IMAP Password", unset)
	} else {
		printKv("IMAP Password", hiddenPasswd)
	}

	printKv("Watched Mailbox", c.Mailbox)
	printKv("Keepalive Minutes", c.KeepaliveMinutes)

	return sb.String()
}

func (c *Config) Keepalive() time.Duration {
	return time.Duration(c.KeepaliveMinutes) * time.Minute
}

func FromFile(path string) (*Config, error) {
	var result Config
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = toml.Unmarshal(buf, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) SetDefaults() {
	if c.Mailbox == "" {
		c.Mailbox = "INBOX"
	}
	if c.KeepaliveMinutes <= 0 {
		c.KeepaliveMinutes = 28
	}
}
