package mailer

import (
	"context"
	"errors"

	"github.com/rcastera/mailer/internal/provider"
)

// Validate reports every missing required field, joined. It returns nil
// when the message can be sent.
func (b *Builder) Validate() error {
	var errs []error

	if len(b.to) == 0 {
		errs = append(errs, ErrMissingRecipients)
	}
	if b.from == "" {
		errs = append(errs, ErrMissingSender)
	}
	if b.subject == "" {
		errs = append(errs, ErrMissingSubject)
	}
	if b.body == "" {
		errs = append(errs, ErrMissingBody)
	}

	return errors.Join(errs...)
}

// Send renders the message and hands it to p. A builder sends at most once.
//
// A missing To, sender, subject or body is not an error: Send returns false
// with a nil error and the transport is never called. An unreadable
// attachment returns an *AttachmentError, and a delivery failure a
// *TransportError; both also return false.
func (b *Builder) Send(ctx context.Context, p provider.Provider) (bool, error) {
	if b.finalized != StateConfiguring {
		return false, ErrFinalized
	}

	if b.Validate() != nil {
		b.finalized = StateRejected
		return false, nil
	}

	msg, err := b.Render(ctx)
	if err != nil {
		b.finalized = StateRejected
		return false, err
	}

	if err := p.Send(ctx, msg); err != nil {
		b.finalized = StateRejected
		return false, &TransportError{Transport: p.Name(), Err: err}
	}

	b.finalized = StateSent
	return true, nil
}
