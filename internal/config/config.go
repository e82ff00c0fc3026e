// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the mailer.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// defaultMaxAttachmentSize is the size limit applied when none is configured.
const defaultMaxAttachmentSize = "25MiB"

// Config holds the complete application configuration.
type Config struct {
	Provider string        `yaml:"provider"`
	SMTP     SMTPConfig    `yaml:"smtp"`
	SES      SESConfig     `yaml:"ses"`
	Graph    GraphConfig   `yaml:"graph"`
	Storage  StorageConfig `yaml:"storage"`
	Mailer   MailerConfig  `yaml:"mailer"`
	Logging  LoggingConfig `yaml:"logging"`
}

// SMTPConfig holds the relay used by the smtp provider.
type SMTPConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// StorageConfig selects where attachment references are read from.
type StorageConfig struct {
	Mode            string `yaml:"mode"`
	BaseDir         string `yaml:"base_dir"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// MailerConfig holds message composition settings.
type MailerConfig struct {
	XMailer       string `yaml:"x_mailer"`
	LegacyFraming bool   `yaml:"legacy_framing"`
	// MaxAttachmentSize is a human-readable size such as "10MB" or "512KiB".
	// "0" disables the limit.
	MaxAttachmentSize string `yaml:"max_attachment_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaxAttachmentBytes returns the attachment size limit in bytes, or 0 when
// the limit is disabled.
func (c *Config) MaxAttachmentBytes() int64 {
	n, err := units.RAMInBytes(c.Mailer.MaxAttachmentSize)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SMTPConfigured returns true if a relay address is set.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Addr != ""
}

// SESConfigured returns true if the SES region and sender are set.
// Credentials may come from the default AWS chain.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// S3Configured returns true if attachments are read from a bucket.
func (c *Config) S3Configured() bool {
	return c.Storage.Bucket != "" && c.Storage.Region != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Storage.Mode = "local"
	c.Mailer.MaxAttachmentSize = defaultMaxAttachmentSize
	c.Logging.Level = "info"
}

// validate rejects values that cannot be interpreted.
func (c *Config) validate() error {
	if c.Mailer.MaxAttachmentSize != "" {
		if _, err := units.RAMInBytes(c.Mailer.MaxAttachmentSize); err != nil {
			return fmt.Errorf("invalid max_attachment_size %q: %w", c.Mailer.MaxAttachmentSize, err)
		}
	}

	switch c.Storage.Mode {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown storage mode %q", c.Storage.Mode)
	}

	return nil
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("SMTP_ADDR"); v != "" {
		c.SMTP.Addr = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_SENDER"); v != "" {
		c.Graph.Sender = v
	}

	if v := os.Getenv("STORAGE_MODE"); v != "" {
		c.Storage.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("STORAGE_BASE_DIR"); v != "" {
		c.Storage.BaseDir = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		c.Storage.Region = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv("STORAGE_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretAccessKey = v
	}

	if v := os.Getenv("MAILER_X_MAILER"); v != "" {
		c.Mailer.XMailer = v
	}
	if v := os.Getenv("MAILER_LEGACY_FRAMING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Mailer.LegacyFraming = b
		} else {
			slog.Warn("ignoring invalid MAILER_LEGACY_FRAMING", "value", v)
		}
	}
	if v := os.Getenv("MAILER_MAX_ATTACHMENT_SIZE"); v != "" {
		c.Mailer.MaxAttachmentSize = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
