// Package email defines the message types handed between the builder, the
// transports and the preview parser.
package email

import (
	"mime"
	"strings"
	"unicode"
)

// crlf terminates every line on the wire.
const crlf = "\r\n"

// Message is a fully rendered MIME message ready for a transport.
// Headers holds CRLF-terminated header lines without To and Subject; those
// are carried separately, the same way the system mailer receives them.
type Message struct {
	To      []string
	Cc      []string
	Bcc     []string
	From    string
	Subject string
	Headers string
	Body    string
}

// Recipients returns the comma-joined To list.
func (m *Message) Recipients() string {
	return strings.Join(m.To, ",")
}

// EnvelopeRecipients returns every address that should receive the message:
// To, then Cc, then Bcc.
func (m *Message) EnvelopeRecipients() []string {
	rcpts := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	rcpts = append(rcpts, m.To...)
	rcpts = append(rcpts, m.Cc...)
	rcpts = append(rcpts, m.Bcc...)
	return rcpts
}

// EnvelopeSender returns the bare address of the sender, stripping a display
// name rendered as "Name<address>".
func (m *Message) EnvelopeSender() string {
	return AddressOf(m.From)
}

// Bytes assembles the message as it goes on the wire: To and Subject are
// prepended to the header block and the Bcc line is dropped.
func (m *Message) Bytes() []byte {
	return m.assemble(false)
}

// BytesWithBcc is Bytes with the Bcc line kept, for relays that read blind
// recipients from the header block and strip it themselves.
func (m *Message) BytesWithBcc() []byte {
	return m.assemble(true)
}

func (m *Message) assemble(keepBcc bool) []byte {
	var b strings.Builder

	b.WriteString("To: " + HeaderValue(m.Recipients()) + crlf)
	b.WriteString("Subject: " + encodeHeaderWord(HeaderValue(m.Subject)) + crlf)

	for _, line := range strings.SplitAfter(m.Headers, crlf) {
		if line == "" || (!keepBcc && strings.HasPrefix(line, "Bcc:")) {
			continue
		}
		b.WriteString(line)
	}

	b.WriteString(crlf)
	b.WriteString(m.Body)

	return []byte(b.String())
}

// AddressOf extracts the address from "Name<address>" or returns the trimmed
// input when there are no angle brackets.
func AddressOf(sender string) string {
	start := strings.LastIndex(sender, "<")
	end := strings.LastIndex(sender, ">")
	if start >= 0 && end > start {
		return strings.TrimSpace(sender[start+1 : end])
	}
	return strings.TrimSpace(sender)
}

// HeaderValue replaces control characters with spaces so a value always
// stays on its own header line.
func HeaderValue(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// encodeHeaderWord applies RFC 2047 B-encoding when s is not plain ASCII.
func encodeHeaderWord(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return mime.BEncoding.Encode("utf-8", s)
		}
	}
	return s
}

// Email is the decoded view of a rendered message, produced by the preview
// parser for human-readable output.
type Email struct {
	From        string
	To          []string
	Cc          []string
	Subject     string
	TextBody    string
	HtmlBody    string
	Attachments []Attachment
	RawHeaders  map[string][]string
}

// Attachment represents a file decoded from a message part.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}
