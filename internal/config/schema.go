package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackzampolin/runsheets/internal/dispatch"
	"github.com/jackzampolin/runsheets/internal/relay"
)

// Config holds runsheets configuration.
// Stored at: ./config.yaml or ~/.runsheets/config.yaml
type Config struct {
	Mail     MailCfg     `mapstructure:"mail" yaml:"mail"`
	Detect   DetectCfg   `mapstructure:"detect" yaml:"detect"`
	Dispatch DispatchCfg `mapstructure:"dispatch" yaml:"dispatch"`
	Relay    RelayCfg    `mapstructure:"relay" yaml:"relay"`
	Watch    WatchCfg    `mapstructure:"watch" yaml:"watch"`
}

// MailCfg configures the SMTP relay used to deliver combined run sheets.
type MailCfg struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Port           int    `mapstructure:"port" yaml:"port"`
	From           string `mapstructure:"from" yaml:"from"`                       // Sender address
	Username       string `mapstructure:"username" yaml:"username"`               // Defaults to From
	Password       string `mapstructure:"password" yaml:"password"`               // Supports ${ENV_VAR} syntax
	TLS            string `mapstructure:"tls" yaml:"tls"`                         // "mandatory", "opportunistic", "none"
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // Per-send dial and write timeout
}

// DetectCfg configures run boundary detection.
type DetectCfg struct {
	RunPrefix string `mapstructure:"run_prefix" yaml:"run_prefix"` // Run code prefix after "Run: "
	Reappear  string `mapstructure:"reappear" yaml:"reappear"`     // "merge" or "reject"
}

// DispatchCfg configures message composition and fan-out.
type DispatchCfg struct {
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"` // 1 sends sequentially
	Greeting    string `mapstructure:"greeting" yaml:"greeting"`
	Signature   string `mapstructure:"signature" yaml:"signature"`
}

// RelayCfg holds the local Mailpit relay container configuration.
type RelayCfg struct {
	// ContainerName is the Docker container name (default: runsheets-relay)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: axllent/mailpit:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// SMTPPort is the host port bound to the relay's SMTP listener
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`
	// UIPort is the host port bound to the relay's web UI and API
	UIPort string `mapstructure:"ui_port" yaml:"ui_port"`
}

// WatchCfg configures the inbox watcher.
type WatchCfg struct {
	SettleMillis int    `mapstructure:"settle_millis" yaml:"settle_millis"` // Quiet period before a new file is processed
	MetricsAddr  string `mapstructure:"metrics_addr" yaml:"metrics_addr"`   // Empty disables /metrics
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Mail: MailCfg{
			Host:           "smtp.gmail.com",
			Port:           587,
			Password:       "${RUNSHEETS_MAIL_PASSWORD}",
			TLS:            "mandatory",
			TimeoutSeconds: 30,
		},
		Detect: DetectCfg{
			RunPrefix: "SCD",
			Reappear:  "merge",
		},
		Dispatch: DispatchCfg{
			Concurrency: 1,
			Greeting:    dispatch.DefaultGreeting,
			Signature:   dispatch.DefaultSignature,
		},
		Relay: RelayCfg{
			ContainerName: relay.DefaultContainerName,
			Image:         relay.DefaultImage,
			SMTPPort:      relay.DefaultSMTPPort,
			UIPort:        relay.DefaultUIPort,
		},
		Watch: WatchCfg{
			SettleMillis: 2000,
		},
	}
}

// Resolved returns a copy with ${ENV_VAR} references expanded and the
// username defaulted to the sender address.
func (m MailCfg) Resolved() MailCfg {
	m.Host = ResolveEnvVars(m.Host)
	m.From = ResolveEnvVars(m.From)
	m.Username = ResolveEnvVars(m.Username)
	m.Password = ResolveEnvVars(m.Password)
	if m.Username == "" {
		m.Username = m.From
	}
	return m
}

// Timeout returns the per-send timeout.
func (m MailCfg) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Validate reports ErrConfigIncomplete when any field needed to send mail is
// empty after resolving environment references.
func (m MailCfg) Validate() error {
	r := m.Resolved()
	var missing []string
	if strings.TrimSpace(r.Host) == "" {
		missing = append(missing, "mail.host")
	}
	if r.Port <= 0 {
		missing = append(missing, "mail.port")
	}
	if strings.TrimSpace(r.From) == "" {
		missing = append(missing, "mail.from")
	}
	if strings.TrimSpace(r.Username) == "" {
		missing = append(missing, "mail.username")
	}
	if r.Password == "" {
		missing = append(missing, "mail.password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfigIncomplete, strings.Join(missing, ", "))
	}
	switch r.TLS {
	case "", "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("%w: unknown mail.tls %q", ErrConfigIncomplete, r.TLS)
	}
	return nil
}

// CheckPolicies rejects enumerated settings with unknown values. It does not
// require the mail credentials to be present.
func (c *Config) CheckPolicies() error {
	switch strings.ToLower(strings.TrimSpace(c.Detect.Reappear)) {
	case "", "merge", "reject":
	default:
		return fmt.Errorf("unknown detect.reappear %q (want merge or reject)", c.Detect.Reappear)
	}
	switch c.Mail.TLS {
	case "", "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("unknown mail.tls %q", c.Mail.TLS)
	}
	if c.Dispatch.Concurrency < 0 {
		return fmt.Errorf("dispatch.concurrency must not be negative, got %d", c.Dispatch.Concurrency)
	}
	return nil
}
