package mailer

import (
	"errors"
	"fmt"
)

// Validation errors reported by Validate. Send never returns them; it
// reports a missing field as a false result.
var (
	ErrMissingRecipients = errors.New("no To recipients")
	ErrMissingSender     = errors.New("no sender")
	ErrMissingSubject    = errors.New("no subject")
	ErrMissingBody       = errors.New("no body")
)

var (
	// ErrAttachmentUnreadable is wrapped by every AttachmentError.
	ErrAttachmentUnreadable = errors.New("attachment unreadable")

	// ErrAttachmentTooLarge is returned when an attachment exceeds the
	// configured size limit.
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")

	// ErrFinalized is returned by Send once the builder has reached Sent or
	// Rejected.
	ErrFinalized = errors.New("message already finalized")
)

// AttachmentError reports an attachment that could not be rendered. It
// aborts the send before the transport is called.
type AttachmentError struct {
	Ref  string
	Name string
	Err  error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment <%s> unreadable: %v", e.Name, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *AttachmentError) Unwrap() []error {
	return []error{ErrAttachmentUnreadable, e.Err}
}

// TransportError reports a delivery failure from a provider.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport failed: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
