package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type report struct {
	Runs  int    `json:"runs" yaml:"runs"`
	State string `json:"state" yaml:"state"`
}

func TestOutputTo(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
		want   []string
	}{
		{name: "yaml", format: OutputFormatYAML, want: []string{"runs: 3", "state: sent"}},
		{name: "json", format: OutputFormatJSON, want: []string{`"runs": 3`, `"state": "sent"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := OutputTo(&buf, tt.format, report{Runs: 3, State: "sent"}); err != nil {
				t.Fatalf("OutputTo failed: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		if err := OutputTo(&bytes.Buffer{}, OutputFormat("xml"), report{}); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: OutputFormatYAML},
		{in: "yaml", want: OutputFormatYAML},
		{in: "YML", want: OutputFormatYAML},
		{in: " json ", want: OutputFormatJSON},
		{in: "toml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOutputFormat failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSetOutputFormat(t *testing.T) {
	defer SetOutputFormat(DefaultOutput)

	SetOutputFormat(OutputFormatJSON)
	if GetOutputFormat() != OutputFormatJSON {
		t.Errorf("expected json, got %s", GetOutputFormat())
	}
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/ok":
			w.Write([]byte(`{"runs": 2, "state": "done"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/ok":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/broken":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "relay unavailable"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	t.Run("get decodes body", func(t *testing.T) {
		var got report
		if err := c.Get(ctx, "/ok", &got); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Runs != 2 || got.State != "done" {
			t.Errorf("unexpected body: %+v", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := c.Delete(ctx, "/ok"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	})

	t.Run("error body surfaced", func(t *testing.T) {
		err := c.Get(ctx, "/broken", nil)
		if err == nil || !strings.Contains(err.Error(), "relay unavailable") {
			t.Errorf("expected relay unavailable error, got %v", err)
		}
	})

	t.Run("plain error status", func(t *testing.T) {
		err := c.Get(ctx, "/missing", nil)
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusNotFound {
			t.Errorf("expected 404 StatusError, got %v", err)
		}
	})
}
