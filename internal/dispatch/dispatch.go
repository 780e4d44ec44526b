// Package dispatch sends each recipient bundle through a Transport and
// summarizes the outcome. Sends are independent: a failure for one recipient
// is recorded and never stops, retries or rolls back the others.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackzampolin/runsheets/internal/runsheet"
)

const (
	subjectDateLayout  = "2006/01/02"
	filenameDateLayout = "2006_01_02"

	// DefaultGreeting opens the message body when Options.Greeting is empty.
	DefaultGreeting = "Dear Driver,"
	// DefaultSignature closes the message body when Options.Signature is
	// empty.
	DefaultSignature = "Best regards,\nAdmin"
)

// Request is one outbound message with a single PDF attachment.
type Request struct {
	To         string
	Subject    string
	Body       string
	Attachment []byte
	Filename   string
	RunIDs     []string
}

// Transport delivers a Request.
type Transport interface {
	Send(ctx context.Context, req Request) error
}

// Failure is a recipient whose send failed.
type Failure struct {
	Recipient string   `json:"recipient" yaml:"recipient"`
	Runs      []string `json:"runs" yaml:"runs"`
	Reason    string   `json:"reason" yaml:"reason"`
}

// Summary reports the outcome of one dispatch cycle.
type Summary struct {
	RunsProcessed int       `json:"runs_processed" yaml:"runs_processed"`
	Recipients    int       `json:"recipients" yaml:"recipients"`
	Sent          int       `json:"sent" yaml:"sent"`
	Failed        int       `json:"failed" yaml:"failed"`
	Unassigned    []string  `json:"unassigned" yaml:"unassigned"`
	Failures      []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Skipped       bool      `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	SkipReason    string    `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
}

// Options configures a Coordinator.
type Options struct {
	// Concurrency is the number of sends in flight. Values below 2 send
	// sequentially in bundle order.
	Concurrency int
	Greeting    string
	Signature   string
	Now         func() time.Time
	Logger      *slog.Logger
}

// Coordinator builds requests for bundles and hands them to a Transport.
type Coordinator struct {
	transport Transport
	opts      Options
}

// New creates a Coordinator.
func New(transport Transport, opts Options) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Greeting == "" {
		opts.Greeting = DefaultGreeting
	}
	if opts.Signature == "" {
		opts.Signature = DefaultSignature
	}
	return &Coordinator{transport: transport, opts: opts}
}

// BuildRequest creates the message for one bundle.
func (c *Coordinator) BuildRequest(b runsheet.Bundle, at time.Time) Request {
	ids := b.RunIDs()
	runs := strings.Join(ids, ", ")
	return Request{
		To:         b.Recipient,
		Subject:    fmt.Sprintf("Your Combined Run Sheets (%s) - %s", runs, at.Format(subjectDateLayout)),
		Body:       fmt.Sprintf("%s\n\nPlease find attached your combined run sheets for %s.\n\n%s", c.opts.Greeting, runs, c.opts.Signature),
		Attachment: b.Merged,
		Filename:   Filename(at),
		RunIDs:     ids,
	}
}

// Filename returns the attachment name for a dispatch at the given time.
func Filename(at time.Time) string {
	return "Combined_Run_Sheets_" + at.Format(filenameDateLayout) + ".pdf"
}

// Dispatch sends every bundle in g and returns the summary. All bundles
// share one timestamp.
func (c *Coordinator) Dispatch(ctx context.Context, g runsheet.Grouping) *Summary {
	at := c.opts.Now()
	log := c.opts.Logger

	errs := make([]error, len(g.Bundles))
	send := func(i int) {
		b := g.Bundles[i]
		defer func() {
			if r := recover(); r != nil {
				errs[i] = fmt.Errorf("transport panic: %v", r)
				log.Error("send failed", "recipient", b.Recipient, "runs", len(b.Runs), "error", errs[i])
			}
		}()

		req := c.BuildRequest(b, at)
		if err := c.transport.Send(ctx, req); err != nil {
			errs[i] = err
			log.Error("send failed", "recipient", b.Recipient, "runs", len(b.Runs), "error", err)
			return
		}
		log.Info("sent combined run sheets", "recipient", b.Recipient, "runs", len(b.Runs))
	}

	if c.opts.Concurrency < 2 {
		for i := range g.Bundles {
			send(i)
		}
	} else {
		sem := make(chan struct{}, c.opts.Concurrency)
		var wg sync.WaitGroup
		for i := range g.Bundles {
			wg.Add(1)
			sem <- struct{}{} // acquire
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }() // release
				send(i)
			}(i)
		}
		wg.Wait()
	}

	s := newSummary(g)
	for i, err := range errs {
		if err == nil {
			s.Sent++
			continue
		}
		s.Failed++
		s.Failures = append(s.Failures, Failure{
			Recipient: g.Bundles[i].Recipient,
			Runs:      g.Bundles[i].RunIDs(),
			Reason:    err.Error(),
		})
	}
	return s
}

// Skip returns a summary for a cycle where nothing was sent, e.g. because
// the mail configuration is incomplete.
func Skip(g runsheet.Grouping, reason string) *Summary {
	s := newSummary(g)
	s.Skipped = true
	s.SkipReason = reason
	return s
}

func newSummary(g runsheet.Grouping) *Summary {
	unassigned := append([]string{}, g.Unassigned...)
	return &Summary{
		RunsProcessed: g.Runs,
		Recipients:    len(g.Bundles),
		Unassigned:    unassigned,
	}
}
