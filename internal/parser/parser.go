// Package parser decodes rendered MIME messages into a readable email.Email
// for previews. Multipart nesting and transfer encodings are handled by
// go-message.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"

	gomail "github.com/emersion/go-message/mail"

	"github.com/rcastera/mailer/internal/email"
)

// Parse decodes a raw RFC 5322 message. A multipart body that ends without a
// closing delimiter, as legacy framing produces, yields the parts read before
// the truncation.
func Parse(raw []byte) (*email.Email, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	result := &email.Email{
		RawHeaders: make(map[string][]string),
	}

	fields := mr.Header.Fields()
	for fields.Next() {
		key := fields.Key()
		result.RawHeaders[key] = append(result.RawHeaders[key], fields.Value())
	}

	result.From = mr.Header.Get("From")
	result.To = parseAddressList(mr.Header.Get("To"))
	result.Cc = parseAddressList(mr.Header.Get("Cc"))

	subject, err := mr.Header.Subject()
	if err != nil {
		subject = mr.Header.Get("Subject")
	}
	result.Subject = subject

	parts := 0
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if parts > 0 {
				slog.Debug("multipart body ended without closing delimiter",
					"parts", parts,
					"error", err,
				)
				break
			}
			return nil, fmt.Errorf("failed to read next part: %w", err)
		}
		parts++

		content, err := io.ReadAll(part.Body)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Debug("last part ended without closing delimiter")
			} else {
				slog.Warn("failed to read part content", "error", err)
				continue
			}
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			mediaType, _, _ := h.ContentType()
			switch mediaType {
			case "text/plain":
				if result.TextBody == "" {
					result.TextBody = string(content)
				}
			case "text/html":
				if result.HtmlBody == "" {
					result.HtmlBody = string(content)
				}
			default:
				slog.Warn("unrecognized inline part, skipping",
					"content_type", mediaType,
				)
			}
		case *gomail.AttachmentHeader:
			mediaType, params, _ := h.ContentType()
			filename, _ := h.Filename()
			if filename == "" {
				filename = params["name"]
			}
			if filename == "" {
				filename = "attachment"
			}
			result.Attachments = append(result.Attachments, email.Attachment{
				Filename:    filename,
				ContentType: mediaType,
				Content:     content,
			})
		}
	}

	return result, nil
}

// parseAddressList splits a comma-separated address list into individual addresses.
func parseAddressList(raw string) []string {
	if raw == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		// Fall back to simple comma split if RFC 5322 parsing fails
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}
