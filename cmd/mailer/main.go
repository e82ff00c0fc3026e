// Package main is the entry point for the mailer command. It composes one
// message from flags and delivers it through the configured provider.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rcastera/mailer/internal/config"
	"github.com/rcastera/mailer/internal/mailer"
	"github.com/rcastera/mailer/internal/provider"
	"github.com/rcastera/mailer/internal/provider/graph"
	"github.com/rcastera/mailer/internal/provider/ses"
	"github.com/rcastera/mailer/internal/provider/smtp"
	"github.com/rcastera/mailer/internal/provider/stdout"
	"github.com/rcastera/mailer/internal/source"
	"github.com/rcastera/mailer/internal/source/local"
	"github.com/rcastera/mailer/internal/source/s3"
)

// options holds the parsed command line.
type options struct {
	configPath  string
	to          string
	cc          string
	bcc         string
	fromName    string
	from        string
	subject     string
	body        string
	bodyFile    string
	priority    int
	attachments listFlag
	raw         bool
	timeout     time.Duration
}

// listFlag collects a repeatable flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		slog.Error("mailer failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("mailer", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to YAML configuration file (optional)")
	fs.StringVar(&opts.to, "to", "", "comma-separated To recipients")
	fs.StringVar(&opts.cc, "cc", "", "comma-separated Cc recipients")
	fs.StringVar(&opts.bcc, "bcc", "", "comma-separated Bcc recipients")
	fs.StringVar(&opts.fromName, "from-name", "", "sender display name")
	fs.StringVar(&opts.from, "from", "", "sender address")
	fs.StringVar(&opts.subject, "subject", "", "message subject")
	fs.StringVar(&opts.body, "body", "", "HTML body")
	fs.StringVar(&opts.bodyFile, "body-file", "", "read the HTML body from this file")
	fs.IntVar(&opts.priority, "priority", int(mailer.PriorityNormal), "1 for urgent, anything else is normal")
	fs.Var(&opts.attachments, "attach", "attachment reference (repeatable)")
	fs.BoolVar(&opts.raw, "raw", false, "print the wire form instead of a preview (stdout provider only)")
	fs.DurationVar(&opts.timeout, "timeout", time.Minute, "delivery timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// run loads configuration, builds the message and sends it once.
func run(ctx context.Context, opts *options, out io.Writer) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogger(cfg.Logging.Level)

	body := opts.body
	if opts.bodyFile != "" {
		data, err := os.ReadFile(opts.bodyFile)
		if err != nil {
			return fmt.Errorf("failed to read body file: %w", err)
		}
		body = string(data)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	src, err := selectSource(ctx, cfg)
	if err != nil {
		return err
	}

	prov, err := selectProvider(ctx, cfg, out, opts.raw)
	if err != nil {
		return err
	}

	builderOpts := []mailer.Option{
		mailer.WithSource(src),
		mailer.WithMaxAttachmentSize(cfg.MaxAttachmentBytes()),
	}
	if cfg.Mailer.XMailer != "" {
		builderOpts = append(builderOpts, mailer.WithXMailer(cfg.Mailer.XMailer))
	}
	if cfg.Mailer.LegacyFraming {
		builderOpts = append(builderOpts, mailer.WithLegacyFraming())
	}

	b := mailer.New(builderOpts...).
		AddTo(splitList(opts.to)...).
		AddCc(splitList(opts.cc)...).
		AddBcc(splitList(opts.bcc)...).
		SetFrom(opts.fromName, opts.from).
		SetSubject(opts.subject).
		SetBody(body).
		SetPriority(opts.priority).
		AddAttachment(opts.attachments...)

	slog.Info("sending message",
		"provider", prov.Name(),
		"source", src.Name(),
		"recipients", len(b.To())+len(b.Cc())+len(b.Bcc()),
		"attachments", len(b.Attachments()),
		"priority", b.Priority().String(),
	)

	sent, err := b.Send(ctx, prov)
	if err != nil {
		return err
	}
	if !sent {
		return fmt.Errorf("message not sent: %w", b.Validate())
	}

	slog.Info("message sent", "provider", prov.Name())
	return nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output on stderr
// and the specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectProvider chooses the delivery backend. An explicit provider must be
// fully configured; with none set, the first configured of graph, ses and
// smtp wins and stdout is the fallback.
func selectProvider(ctx context.Context, cfg *config.Config, out io.Writer, raw bool) (provider.Provider, error) {
	name := cfg.Provider
	if name == "" {
		switch {
		case cfg.GraphConfigured():
			name = "graph"
		case cfg.SESConfigured():
			name = "ses"
		case cfg.SMTPConfigured():
			name = "smtp"
		default:
			name = "stdout"
		}
		slog.Debug("provider auto-detected", "provider", name)
	}

	switch name {
	case "graph":
		if !cfg.GraphConfigured() {
			return nil, errors.New("graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET and GRAPH_SENDER are required")
		}
		return graph.New(graph.GraphProviderConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Sender:       cfg.Graph.Sender,
		}), nil

	case "ses":
		if !cfg.SESConfigured() {
			return nil, errors.New("ses provider selected but SES_REGION and SES_SENDER are required")
		}
		p, err := ses.New(ctx, ses.SESProviderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return p, nil

	case "smtp":
		return smtp.New(smtp.Config{
			Addr:     cfg.SMTP.Addr,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})

	case "stdout":
		if raw {
			return stdout.NewRaw(out), nil
		}
		return stdout.NewWithWriter(out), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// selectSource chooses where attachment references are read from.
func selectSource(ctx context.Context, cfg *config.Config) (source.Source, error) {
	if cfg.Storage.Mode == "s3" {
		if !cfg.S3Configured() {
			return nil, errors.New("s3 storage selected but STORAGE_BUCKET and STORAGE_REGION are required")
		}
		src, err := s3.New(ctx, s3.SourceConfig{
			Region:          cfg.Storage.Region,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 source: %w", err)
		}
		return src, nil
	}

	src, err := local.New(cfg.Storage.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create local source: %w", err)
	}
	return src, nil
}

// splitList splits a comma-separated flag value. Blank entries are left for
// the builder to drop.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
