package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/rcastera/mailer/internal/email"
)

// lineLength is the maximum base64 line length allowed by RFC 2045.
const lineLength = 76

// Render produces the message from the current state. It does not modify
// the builder, so it may be called any number of times. Required fields are
// not checked here; see Validate.
func (b *Builder) Render(ctx context.Context) (*email.Message, error) {
	body, err := b.renderBody(ctx)
	if err != nil {
		return nil, err
	}

	return &email.Message{
		To:      clone(b.to),
		Cc:      clone(b.cc),
		Bcc:     clone(b.bcc),
		From:    b.from,
		Subject: b.subject,
		Headers: b.renderHeaders(),
		Body:    body,
	}, nil
}

func (b *Builder) renderHeaders() string {
	var h strings.Builder

	h.WriteString("From: " + b.from + crlf)
	h.WriteString("Reply-To: " + b.from + crlf)
	h.WriteString("Return-Path: " + b.from + crlf)
	h.WriteString("X-Mailer: " + b.xMailer + crlf)
	h.WriteString("MIME-Version: 1.0" + crlf)
	h.WriteString(`Content-Type: multipart/mixed; boundary="` + b.boundary + `"` + crlf)

	if len(b.cc) > 0 {
		h.WriteString("Cc: " + strings.Join(b.cc, ",") + crlf)
	}
	if len(b.bcc) > 0 {
		h.WriteString("Bcc: " + strings.Join(b.bcc, ",") + crlf)
	}

	h.WriteString(b.priority.Headers())

	return h.String()
}

func (b *Builder) renderBody(ctx context.Context) (string, error) {
	var w strings.Builder
	alt := b.boundary + "_alt"

	w.WriteString("--" + b.boundary + crlf)
	w.WriteString(`Content-Type: multipart/alternative; boundary="` + alt + `"` + crlf)
	w.WriteString(crlf)
	w.WriteString("--" + alt + crlf)
	w.WriteString(`Content-Type: text/html; charset="utf-8"` + crlf)
	w.WriteString("Content-Transfer-Encoding: base64" + crlf)
	w.WriteString(crlf)
	w.WriteString(encodeBase64Lines([]byte(b.body)))
	w.WriteString("--" + alt + "--" + crlf)

	for _, ref := range b.attachments {
		name := attachmentName(ref)

		content, err := b.readAttachment(ctx, ref)
		if err != nil {
			return "", &AttachmentError{Ref: ref, Name: name, Err: err}
		}

		w.WriteString("--" + b.boundary + crlf)
		w.WriteString("Content-Type: application/octetstream" + crlf)
		w.WriteString("Content-Transfer-Encoding: base64" + crlf)
		w.WriteString(`Content-Disposition: attachment; filename="` + quoteParam(name) + `"` + crlf)
		w.WriteString("Content-ID: <" + contentID(name) + ">" + crlf)
		w.WriteString(crlf)
		w.WriteString(encodeBase64Lines(content))
	}

	if !b.legacyFraming {
		w.WriteString("--" + b.boundary + "--" + crlf)
	}

	return w.String(), nil
}

// readAttachment reads one attachment fully and always closes the reader.
func (b *Builder) readAttachment(ctx context.Context, ref string) ([]byte, error) {
	rc, err := b.source.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if b.maxAttachmentSize > 0 {
		r = io.LimitReader(rc, b.maxAttachmentSize+1)
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}

	if b.maxAttachmentSize > 0 && int64(len(content)) > b.maxAttachmentSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrAttachmentTooLarge, b.maxAttachmentSize)
	}

	return content, nil
}

// attachmentName returns the basename of a path or object key.
func attachmentName(ref string) string {
	return path.Base(filepath.ToSlash(ref))
}

// quoteParam escapes a value for use inside a quoted MIME parameter.
func quoteParam(v string) string {
	v = email.HeaderValue(v)
	if !strings.ContainsAny(v, `"\`) {
		return v
	}

	var b strings.Builder
	for _, r := range v {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// contentID drops the characters that would end the angle-bracketed id.
func contentID(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, email.HeaderValue(name))
}

// encodeBase64Lines encodes data as base64 split into lines of at most 76
// characters, each terminated by CRLF.
func encodeBase64Lines(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)

	var b strings.Builder
	b.Grow(len(encoded) + (len(encoded)/lineLength+1)*len(crlf))

	for i := 0; i < len(encoded); i += lineLength {
		end := min(i+lineLength, len(encoded))
		b.WriteString(encoded[i:end])
		b.WriteString(crlf)
	}

	return b.String()
}
