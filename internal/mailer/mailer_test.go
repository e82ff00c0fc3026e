package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rcastera/mailer/internal/email"
	"github.com/rcastera/mailer/internal/source"
)

// memorySource serves attachments from a map and records Close calls.
type memorySource struct {
	files   map[string][]byte
	readErr map[string]error
	opened  int
	closed  int
}

func (m *memorySource) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	data, ok := m.files[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, ref)
	}
	m.opened++
	var r io.Reader = strings.NewReader(string(data))
	if err := m.readErr[ref]; err != nil {
		r = &failingReader{err: err}
	}
	return &trackingCloser{Reader: r, onClose: func() { m.closed++ }}, nil
}

func (m *memorySource) Name() string { return "memory" }

type trackingCloser struct {
	io.Reader
	onClose func()
}

func (t *trackingCloser) Close() error {
	t.onClose()
	return nil
}

type failingReader struct{ err error }

func (f *failingReader) Read([]byte) (int, error) { return 0, f.err }

// recordingProvider captures messages instead of delivering them.
type recordingProvider struct {
	sent []*email.Message
	err  error
}

func (r *recordingProvider) Send(_ context.Context, msg *email.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingProvider) Name() string { return "recording" }

var errBoom = errors.New("boom")

// readyBuilder returns a builder with every required field set.
func readyBuilder(opts ...Option) *Builder {
	return New(opts...).
		AddTo("a@x.com").
		SetFrom("Jane", "jane@x.com").
		SetSubject("Hi").
		SetBody("<p>Hello</p>")
}
