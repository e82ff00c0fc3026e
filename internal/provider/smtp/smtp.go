// Package smtp implements a Provider that relays messages to an SMTP server.
package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/rcastera/mailer/internal/email"
)

// Config holds the relay address and optional PLAIN credentials.
type Config struct {
	Addr     string
	Username string
	Password string
}

// Provider relays each message in a single SMTP transaction. STARTTLS is
// used whenever the relay offers it.
type Provider struct {
	addr string
	auth sasl.Client
}

// New creates a Provider. Authentication is attempted only when a username
// is configured.
func New(cfg Config) (*Provider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("smtp relay address is required")
	}

	p := &Provider{addr: cfg.Addr}
	if cfg.Username != "" {
		p.auth = sasl.NewPlainClient("", cfg.Username, cfg.Password)
	}
	return p, nil
}

// Send delivers msg to every To, Cc and Bcc address. The Bcc header is not
// part of the DATA payload.
//
// ctx can abort the connection, greeting, STARTTLS and AUTH. Once MAIL FROM
// is issued the transaction runs to completion under the client's command
// timeouts, so the returned error always matches what the relay reported.
func (p *Provider) Send(ctx context.Context, msg *email.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rcpts := msg.EnvelopeRecipients()
	slog.Debug("relaying message via SMTP",
		"addr", p.addr,
		"recipients", len(rcpts),
	)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to connect to %s: %w", p.addr, err)
	}

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	c, err := p.handshake(conn)
	if err != nil {
		stop()
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("SMTP relay to %s failed: %w", p.addr, err)
	}
	defer c.Close()

	if !stop() {
		return ctx.Err()
	}

	if err := transact(c, msg.EnvelopeSender(), rcpts, msg.Bytes()); err != nil {
		return fmt.Errorf("SMTP relay to %s failed: %w", p.addr, err)
	}
	return nil
}

// handshake reads the greeting, upgrades to TLS when offered and
// authenticates when credentials are configured.
func (p *Provider) handshake(conn net.Conn) (*gosmtp.Client, error) {
	host, _, err := net.SplitHostPort(p.addr)
	if err != nil {
		host = p.addr
	}

	c, err := gosmtp.NewClient(conn, host)
	if err != nil {
		return nil, err
	}

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(nil); err != nil {
			c.Close()
			return nil, err
		}
	}

	if p.auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			c.Close()
			return nil, errors.New("server doesn't support AUTH")
		}
		if err := c.Auth(p.auth); err != nil {
			c.Close()
			return nil, err
		}
	}

	return c, nil
}

// transact runs MAIL, RCPT and DATA, then QUIT.
func transact(c *gosmtp.Client, from string, rcpts []string, data []byte) error {
	if err := c.Mail(from, nil); err != nil {
		return err
	}
	for _, rcpt := range rcpts {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := bytes.NewReader(data).WriteTo(w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	if err := c.Quit(); err != nil {
		slog.Debug("QUIT after accepted message failed", "error", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}
