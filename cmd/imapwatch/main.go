// Command imapwatch connects to an IMAP server, selects a mailbox and logs
// every change notification the server pushes while the connection idles in
// wait mode. It owns everything the protocol engine treats as a
// collaborator concern: TLS setup, reconnects and signal handling.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fho/imapcore"
	"github.com/fho/imapcore/internal/neterr"
	"github.com/fho/imapcore/internal/retry"
	"github.com/fho/imapcore/wire"

	flag "github.com/spf13/pflag"
)

var (
	version = "version-undefined"
	commit  = "commit-undefined"
)

const dialTimeout = 120 * time.Second

type flags struct {
	cfgPath      string
	printVersion bool
}

func mustParseFlags() *flags {
	var result flags

	flag.StringVar(&result.cfgPath, "cfg-file", "/etc/imapwatch/config.toml",
		"Path to the imapwatch config file")
	flag.BoolVar(&result.printVersion, "version", false,
		"print the version and exit")

	flag.Parse()

	return &result
}

func configureLogger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			// do not log timestamp, imapwatch is normally run as daemon,
			// journald/syslog already adds timestamps
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})

	return slog.New(h)
}

// dial establishes the transport for the engine, with implicit TLS when the
// port asks for it.
func dial(logger *slog.Logger, addr string) (io.ReadWriteCloser, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	if port == "993" || port == "imaps" {
		logger.Debug("connecting to imap server", "server", addr, "tlsmode", "implicit")
		dialer := &net.Dialer{Timeout: dialTimeout}
		return tls.DialWithDialer(dialer, "tcp", addr, nil)
	}

	logger.Warn("connecting to imap server without encryption", "server", addr, "tlsmode", "none")
	return net.DialTimeout("tcp", addr, dialTimeout)
}

func logResponse(logger *slog.Logger, resp wire.Response) {
	switch r := resp.(type) {
	case *wire.Exists:
		logger.Info("mailbox changed", "event", "imap.exists", "messages", r.Count)
	case *wire.Recent:
		logger.Info("new messages", "event", "imap.recent", "count", r.Count)
	case *wire.Expunge:
		logger.Info("message removed", "event", "imap.expunge", "seq", r.Seq)
	default:
		logger.Debug("server push received", "event", "imap.push", "response", fmt.Sprintf("%#v", resp))
	}
}

// watch runs one connection lifecycle: connect, login, select, wait for
// pushes until ctx is cancelled.
func watch(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	conn, err := dial(logger, cfg.Addr)
	if err != nil {
		return fmt.Errorf("establishing imap server connection failed: %w", err)
	}
	defer conn.Close()

	clt := imapcore.New(conn, &imapcore.Options{
		Logger:        logger,
		IdleKeepalive: cfg.Keepalive(),
	})

	if _, err := clt.Greeting(ctx); err != nil {
		return fmt.Errorf("reading server greeting failed: %w", err)
	}

	if err := clt.Login(ctx, cfg.User, cfg.Password); err != nil {
		return fmt.Errorf("login at imap server failed: %w", err)
	}

	mbox, err := clt.Select(ctx, cfg.Mailbox, nil)
	if err != nil {
		return fmt.Errorf("selecting mailbox %q failed: %w", cfg.Mailbox, err)
	}

	logger.Info("watching mailbox",
		"event", "imapwatch.started",
		"mailbox", mbox.Mailbox,
		"messages", mbox.NumMessages,
	)

	drainStop := make(chan struct{})
	defer close(drainStop)
	go func() {
		for {
			select {
			case resp := <-clt.Unsolicited():
				logResponse(logger, resp)
			case <-drainStop:
				return
			}
		}
	}()

	idle, err := clt.Idle(ctx)
	if err != nil {
		return fmt.Errorf("entering wait mode failed: %w", err)
	}

	err = idle.Wait(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("waiting for mailbox changes failed: %w", err)
	}

	if err == nil {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := clt.Logout(logoutCtx); err != nil {
			logger.Warn("logout failed", "error", err)
		}
	}

	return nil
}

func main() {
	flags := mustParseFlags()
	if flags.printVersion {
		fmt.Printf("imapwatch %s (%s)\n", version, commit)
		os.Exit(0)
	}

	logger := configureLogger()

	cfg, err := FromFile(flags.cfgPath)
	if err != nil {
		logger.Error("loading config failed", "error", err)
		os.Exit(1)
	}

	cfg.SetDefaults()
	fmt.Print(cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	runner := &retry.Runner{
		Fn: func(ctx context.Context) error {
			return watch(ctx, cfg, logger)
		},
		IsRetryable:         neterr.IsRetryableError,
		MaxRetriesSameError: 10,
		RetryIntervals: []time.Duration{
			time.Second,
			10 * time.Second,
			time.Minute,
		},
		Logger: logger,
	}

	if err := runner.Run(ctx); err != nil {
		logger.Error("imapwatch terminated", "error", err)
		os.Exit(1)
	}

	logger.Info("imapwatch terminated normally, shutting down")
}
