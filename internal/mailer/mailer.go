// Package mailer delivers dispatch requests over authenticated SMTP.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/jackzampolin/runsheets/internal/config"
	"github.com/jackzampolin/runsheets/internal/dispatch"
)

// Options configures the SMTP connection.
type Options struct {
	Host     string
	Port     int
	From     string
	Username string // Empty disables SMTP AUTH
	Password string
	TLS      string // "mandatory", "opportunistic" or "none"
	Timeout  time.Duration
}

// OptionsFromConfig converts mail configuration with env references resolved.
func OptionsFromConfig(cfg config.MailCfg) Options {
	r := cfg.Resolved()
	return Options{
		Host:     r.Host,
		Port:     r.Port,
		From:     r.From,
		Username: r.Username,
		Password: r.Password,
		TLS:      r.TLS,
		Timeout:  r.Timeout(),
	}
}

// Client sends one message per dispatch request. A new SMTP session is
// opened for every send so a broken connection only affects one recipient.
type Client struct {
	opts   Options
	policy mail.TLSPolicy
	logger *slog.Logger
}

var _ dispatch.Transport = (*Client)(nil)

// New creates a Client.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	policy, err := tlsPolicy(opts.TLS)
	if err != nil {
		return nil, err
	}
	if opts.Host == "" {
		return nil, fmt.Errorf("%w: missing mail.host", config.ErrConfigIncomplete)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{opts: opts, policy: policy, logger: logger}, nil
}

func tlsPolicy(s string) (mail.TLSPolicy, error) {
	switch s {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, fmt.Errorf("unknown TLS policy %q", s)
	}
}

// Message builds the MIME message for a request.
func (c *Client) Message(req dispatch.Request) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(c.opts.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", c.opts.From, err)
	}
	if err := msg.To(req.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", req.To, err)
	}
	msg.Subject(req.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, req.Body)
	if err := msg.AttachReader(req.Filename, bytes.NewReader(req.Attachment),
		mail.WithFileContentType(mail.TypeAppOctetStream)); err != nil {
		return nil, fmt.Errorf("failed to attach %s: %w", req.Filename, err)
	}
	return msg, nil
}

// Send implements dispatch.Transport.
func (c *Client) Send(ctx context.Context, req dispatch.Request) error {
	msg, err := c.Message(req)
	if err != nil {
		return err
	}

	clientOpts := []mail.Option{
		mail.WithPort(c.opts.Port),
		mail.WithTLSPolicy(c.policy),
		mail.WithTimeout(c.opts.Timeout),
	}
	if c.opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.opts.Username),
			mail.WithPassword(c.opts.Password),
		)
	}

	client, err := mail.NewClient(c.opts.Host, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	c.logger.Debug("sending run sheets", "to", req.To, "runs", req.RunIDs, "bytes", len(req.Attachment))
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", req.To, err)
	}
	return nil
}
