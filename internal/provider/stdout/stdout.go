// Package stdout implements a Provider that prints messages to standard output.
package stdout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/docker/go-units"

	"github.com/rcastera/mailer/internal/email"
	"github.com/rcastera/mailer/internal/parser"
)

// Provider prints a decoded preview of each message, or the raw MIME text
// when raw output is requested.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
	raw    bool
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// NewRaw creates a Provider that writes the wire form of each message.
func NewRaw(w io.Writer) *Provider {
	return &Provider{writer: w, raw: true}
}

// Send prints the message. Delivery to stdout always succeeds; only a write
// error is reported.
func (p *Provider) Send(_ context.Context, msg *email.Message) error {
	raw := msg.Bytes()

	if p.raw {
		if _, err := p.writer.Write(raw); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		return nil
	}

	decoded, err := parser.Parse(raw)
	if err != nil {
		slog.Warn("failed to decode message for preview, printing raw", "error", err)
		if _, err := p.writer.Write(raw); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		return nil
	}

	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("From: %s\n", decoded.From))
	b.WriteString(fmt.Sprintf("To: %s\n", strings.Join(decoded.To, ", ")))

	if len(decoded.Cc) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\n", strings.Join(decoded.Cc, ", ")))
	}
	if len(msg.Bcc) > 0 {
		b.WriteString(fmt.Sprintf("Bcc: %s\n", strings.Join(msg.Bcc, ", ")))
	}

	b.WriteString(fmt.Sprintf("Subject: %s\n", decoded.Subject))
	if prio := decoded.RawHeaders["X-Priority"]; len(prio) > 0 {
		b.WriteString(fmt.Sprintf("Priority: %s\n", prio[0]))
	}
	b.WriteString("Body:\n")

	body := decoded.HtmlBody
	if body == "" {
		body = decoded.TextBody
	}
	b.WriteString(body + "\n")

	if len(decoded.Attachments) > 0 {
		attachments := make([]string, 0, len(decoded.Attachments))
		for _, att := range decoded.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s)", att.Filename, units.HumanSize(float64(len(att.Content)))))
		}
		b.WriteString(fmt.Sprintf("Attachments: %s\n", strings.Join(attachments, ", ")))
	}

	b.WriteString("========================================\n")

	if _, err := fmt.Fprint(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}

	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}
