package mailer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/runsheets/internal/config"
	"github.com/jackzampolin/runsheets/internal/dispatch"
	"github.com/jackzampolin/runsheets/internal/relay"
	"github.com/jackzampolin/runsheets/internal/testutil"
)

func testRequest() dispatch.Request {
	return dispatch.Request{
		To:         "driver@example.com",
		Subject:    "Your Combined Run Sheets (SCD0001, SCD0002) - 2024/03/05",
		Body:       "Dear Driver,\n\nPlease find attached your combined run sheets for SCD0001, SCD0002.\n\nBest regards,\nAdmin",
		Attachment: testutil.BuildPDF([]string{"Run: SCD0001"}),
		Filename:   "Combined_Run_Sheets_2024_03_05.pdf",
		RunIDs:     []string{"SCD0001", "SCD0002"},
	}
}

func TestTLSPolicy(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"mandatory", false},
		{"opportunistic", false},
		{"none", false},
		{"starttls", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := tlsPolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("tlsPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("missing host", func(t *testing.T) {
		_, err := New(Options{Port: 587, From: "dispatch@example.com"}, nil)
		if !errors.Is(err, config.ErrConfigIncomplete) {
			t.Errorf("expected ErrConfigIncomplete, got %v", err)
		}
	})

	t.Run("bad tls policy", func(t *testing.T) {
		if _, err := New(Options{Host: "smtp.example.com", TLS: "sometimes"}, nil); err == nil {
			t.Error("expected error for unknown TLS policy")
		}
	})
}

func TestOptionsFromConfig(t *testing.T) {
	t.Setenv("TEST_SMTP_PASSWORD", "app-password")

	opts := OptionsFromConfig(config.MailCfg{
		Host:     "smtp.example.com",
		Port:     587,
		From:     "dispatch@example.com",
		Password: "${TEST_SMTP_PASSWORD}",
		TLS:      "mandatory",
	})

	if opts.Password != "app-password" {
		t.Errorf("expected resolved password, got %q", opts.Password)
	}
	if opts.Username != "dispatch@example.com" {
		t.Errorf("expected username to default to sender, got %q", opts.Username)
	}
	if opts.Timeout != 30*time.Second {
		t.Errorf("expected default timeout, got %v", opts.Timeout)
	}
}

func TestClient_Message(t *testing.T) {
	c, err := New(Options{Host: "smtp.example.com", Port: 587, From: "dispatch@example.com"}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	msg, err := c.Message(testRequest())
	if err != nil {
		t.Fatalf("Message failed: %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	raw := buf.String()

	for _, want := range []string{
		"driver@example.com",
		"dispatch@example.com",
		"Your Combined Run Sheets (SCD0001, SCD0002) - 2024/03/05",
		"Combined_Run_Sheets_2024_03_05.pdf",
		"application/octet-stream",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestClient_Message_InvalidAddress(t *testing.T) {
	c, _ := New(Options{Host: "smtp.example.com", Port: 587, From: "dispatch@example.com"}, nil)

	req := testRequest()
	req.To = "not an address"
	if _, err := c.Message(req); err == nil {
		t.Error("expected error for invalid recipient")
	}
}

func TestClient_Send_Unreachable(t *testing.T) {
	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort failed: %v", err)
	}

	c, err := New(Options{
		Host:    "127.0.0.1",
		Port:    mustAtoi(t, port),
		From:    "dispatch@example.com",
		TLS:     "none",
		Timeout: 2 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.Send(context.Background(), testRequest()); err == nil {
		t.Error("expected error sending to a closed port")
	}
}

func TestClient_Send_Relay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Docker-backed test in short mode")
	}

	tc := testutil.NewRelayConfig(t)
	r, err := relay.New(relay.Config{
		ContainerName: tc.ContainerName,
		SMTPPort:      tc.SMTPPort,
		UIPort:        tc.UIPort,
		Labels:        tc.Labels,
	})
	if err != nil {
		t.Fatalf("relay.New failed: %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("relay start failed: %v", err)
	}

	c, err := New(Options{
		Host: r.SMTPHost(),
		Port: mustAtoi(t, r.SMTPPort()),
		From: "dispatch@example.com",
		TLS:  "none",
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.Send(ctx, testRequest()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	list, err := r.Inbox().Messages(ctx)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected 1 captured message, got %d", list.Total)
	}
	got := list.Messages[0]
	if got.To[0].Address != "driver@example.com" {
		t.Errorf("unexpected recipient: %+v", got.To)
	}
	if got.Attachments != 1 {
		t.Errorf("expected 1 attachment, got %d", got.Attachments)
	}
}
