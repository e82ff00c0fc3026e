// Package provider defines the interface for mail delivery backends.
package provider

import (
	"context"

	"github.com/rcastera/mailer/internal/email"
)

// Provider is the interface that delivery backends must implement.
// Each provider takes a rendered message and hands it to the target
// service (stdout, an SMTP relay, AWS SES, Microsoft Graph).
type Provider interface {
	// Send delivers a rendered message through this provider.
	// It returns an error if the delivery fails. Providers do not retry.
	Send(ctx context.Context, msg *email.Message) error

	// Name returns the human-readable name of this provider.
	Name() string
}
