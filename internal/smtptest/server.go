// Package smtptest runs an in-process SMTP server that keeps every message
// it receives in memory, for tests that exercise the SMTP transport.
package smtptest

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// maxMessageSize bounds a single DATA payload.
const maxMessageSize = 25 * units.MiB

// Envelope is one message as received: the MAIL FROM and RCPT TO
// addresses and the DATA payload.
type Envelope struct {
	Username string
	From     string
	To       []string
	Data     string
	Received time.Time
}

// Backend implements smtp.Backend on top of an InMemoryStore.
type Backend struct {
	store       *InMemoryStore
	username    string
	password    string
	requireAuth bool
}

// Login implements smtp.Backend. When credentials are configured they must
// match; otherwise any non-empty pair is accepted.
func (be *Backend) Login(_ *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	if username == "" || password == "" {
		return nil, errors.New("no username or password provided")
	}
	if be.username != "" && (username != be.username || password != be.password) {
		return nil, errors.New("invalid username or password")
	}
	return &session{store: be.store, username: username}, nil
}

// AnonymousLogin implements smtp.Backend.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	if be.requireAuth {
		return nil, smtp.ErrAuthRequired
	}
	return &session{store: be.store}, nil
}

// session collects one transaction and hands it to the store on DATA.
type session struct {
	store    *InMemoryStore
	username string
	from     string
	to       []string
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error { return nil }

func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string) error {
	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	buf, err := io.ReadAll(io.LimitReader(r, maxMessageSize))
	if err != nil {
		return err
	}

	s.store.save(Envelope{
		Username: s.username,
		From:     s.from,
		To:       append([]string(nil), s.to...),
		Data:     string(buf),
		Received: time.Now(),
	})
	return nil
}

// InMemoryStore retains received envelopes. It is safe for concurrent use.
type InMemoryStore struct {
	mu        sync.Mutex
	envelopes []Envelope
}

func (es *InMemoryStore) save(env Envelope) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.envelopes = append(es.envelopes, env)
}

// RetrieveEmails returns every envelope received so far.
func (es *InMemoryStore) RetrieveEmails() []Envelope {
	es.mu.Lock()
	defer es.mu.Unlock()
	return append([]Envelope(nil), es.envelopes...)
}

// Option configures a Server.
type Option func(*Backend)

// WithCredentials makes the server accept only this username and password
// and reject unauthenticated transactions.
func WithCredentials(username, password string) Option {
	return func(be *Backend) {
		be.username = username
		be.password = password
		be.requireAuth = true
	}
}

// Server is a running in-process SMTP server listening on a loopback port.
type Server struct {
	*InMemoryStore
	srv *smtp.Server
	ln  net.Listener
}

// NewServer starts a server on 127.0.0.1 with a random port. AUTH is
// offered without TLS so tests need no certificates.
func NewServer(opts ...Option) (*Server, error) {
	store := &InMemoryStore{}
	be := &Backend{store: store}
	for _, opt := range opts {
		opt(be)
	}

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.MaxMessageBytes = maxMessageSize
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{InMemoryStore: store, srv: srv, ln: ln}
	go func() {
		_ = srv.Serve(ln)
	}()

	return s, nil
}

// Address returns the host:port the server listens on.
func (s *Server) Address() string {
	return s.ln.Addr().String()
}

// Close stops the server. A closed Server cannot be restarted.
func (s *Server) Close() {
	_ = s.srv.Close()
}
