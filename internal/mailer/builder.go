// Package mailer composes MIME messages with multipart bodies and binary
// attachments and hands them to a delivery provider.
//
// A Builder is configured with chained setters, rendered into an
// email.Message, and sent once. It is not safe for concurrent use.
package mailer

import (
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/rcastera/mailer/internal/email"
	"github.com/rcastera/mailer/internal/source"
	"github.com/rcastera/mailer/internal/source/local"
)

// crlf terminates every rendered line.
const crlf = "\r\n"

// boundaryPrefix starts every boundary. Neither '=' nor '_' is in the base64
// alphabet, so an encoded payload line can never contain a delimiter.
const boundaryPrefix = "----=_NextPart_"

// State is the lifecycle position of a Builder.
type State int

const (
	StateConfiguring State = iota
	StateReady
	StateSent
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateSent:
		return "sent"
	case StateRejected:
		return "rejected"
	default:
		return "configuring"
	}
}

// Option configures a Builder at construction.
type Option func(*Builder)

// WithSource sets where attachment references are read from. The default
// is the local filesystem relative to the working directory.
func WithSource(src source.Source) Option {
	return func(b *Builder) {
		b.source = src
	}
}

// WithXMailer overrides the X-Mailer header value.
func WithXMailer(name string) Option {
	return func(b *Builder) {
		b.xMailer = strings.TrimSpace(name)
	}
}

// WithLegacyFraming omits the closing multipart delimiter after the last
// part, for receivers that expect the unterminated layout.
func WithLegacyFraming() Option {
	return func(b *Builder) {
		b.legacyFraming = true
	}
}

// WithMaxAttachmentSize rejects attachments larger than n bytes. Zero or a
// negative value disables the limit.
func WithMaxAttachmentSize(n int64) Option {
	return func(b *Builder) {
		b.maxAttachmentSize = n
	}
}

// WithBoundary replaces the random boundary. Only use this when a fixed
// delimiter is required; it must not occur in any part.
func WithBoundary(boundary string) Option {
	return func(b *Builder) {
		b.boundary = boundary
	}
}

// Builder accumulates the parts of one message.
type Builder struct {
	to          []string
	cc          []string
	bcc         []string
	from        string
	subject     string
	body        string
	priority    Priority
	attachments []string

	boundary          string
	xMailer           string
	legacyFraming     bool
	maxAttachmentSize int64
	source            source.Source

	finalized State
}

// New creates a Builder with a fresh boundary and normal priority.
func New(opts ...Option) *Builder {
	b := &Builder{
		priority: PriorityNormal,
		boundary: newBoundary(),
		xMailer:  "Mailer (" + runtime.Version() + ")",
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.source == nil {
		// An empty base path never fails.
		b.source, _ = local.New("")
	}

	return b
}

func newBoundary() string {
	return boundaryPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AddTo appends trimmed addresses to the To list. Entries that are empty
// after trimming are ignored.
func (b *Builder) AddTo(addrs ...string) *Builder {
	b.to = appendTrimmed(b.to, addrs)
	return b
}

// AddCc appends trimmed addresses to the Cc list.
func (b *Builder) AddCc(addrs ...string) *Builder {
	b.cc = appendTrimmed(b.cc, addrs)
	return b
}

// AddBcc appends trimmed addresses to the Bcc list.
func (b *Builder) AddBcc(addrs ...string) *Builder {
	b.bcc = appendTrimmed(b.bcc, addrs)
	return b
}

// SetFrom sets the sender. With a name it renders as "Name<address>",
// otherwise as the bare address. Line breaks become spaces.
func (b *Builder) SetFrom(name, address string) *Builder {
	name = strings.TrimSpace(email.HeaderValue(name))
	address = strings.TrimSpace(email.HeaderValue(address))

	if name != "" && address != "" {
		b.from = name + "<" + address + ">"
	} else {
		b.from = address
	}
	return b
}

// SetSubject sets the trimmed subject.
func (b *Builder) SetSubject(subject string) *Builder {
	b.subject = strings.TrimSpace(email.HeaderValue(subject))
	return b
}

// SetBody sets the trimmed HTML body.
func (b *Builder) SetBody(body string) *Builder {
	b.body = strings.TrimSpace(body)
	return b
}

// SetPriority stores the raw level; unknown levels render as normal.
func (b *Builder) SetPriority(level int) *Builder {
	b.priority = Priority(level)
	return b
}

// AddAttachment appends attachment references. Nothing is read until the
// message is rendered.
func (b *Builder) AddAttachment(refs ...string) *Builder {
	b.attachments = append(b.attachments, refs...)
	return b
}

func (b *Builder) To() []string          { return clone(b.to) }
func (b *Builder) Cc() []string          { return clone(b.cc) }
func (b *Builder) Bcc() []string         { return clone(b.bcc) }
func (b *Builder) From() string          { return b.from }
func (b *Builder) Subject() string       { return b.subject }
func (b *Builder) Body() string          { return b.body }
func (b *Builder) Priority() Priority    { return b.priority }
func (b *Builder) Attachments() []string { return clone(b.attachments) }
func (b *Builder) Boundary() string      { return b.boundary }

// State reports where the builder is in its lifecycle.
func (b *Builder) State() State {
	if b.finalized != StateConfiguring {
		return b.finalized
	}
	if b.Validate() == nil {
		return StateReady
	}
	return StateConfiguring
}

func appendTrimmed(dst, addrs []string) []string {
	for _, a := range addrs {
		if a = strings.TrimSpace(email.HeaderValue(a)); a != "" {
			dst = append(dst, a)
		}
	}
	return dst
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
