package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseS3(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{uri: "s3://sheets/2024/03/daily.pdf", bucket: "sheets", key: "2024/03/daily.pdf"},
		{uri: "s3://sheets/", wantErr: true},
		{uri: "s3:///daily.pdf", wantErr: true},
		{uri: "gs://sheets/daily.pdf", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			b, k, err := parseS3(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURI) {
					t.Fatalf("expected ErrInvalidURI, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b != tt.bucket || k != tt.key {
				t.Errorf("got %s/%s, want %s/%s", b, k, tt.bucket, tt.key)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		base, name, joined string
	}{
		{"s3://sheets/archive", "SCD0001_run.pdf", "s3://sheets/archive/SCD0001_run.pdf"},
		{"s3://sheets/archive/", "SCD0001_run.pdf", "s3://sheets/archive/SCD0001_run.pdf"},
		{"/tmp/archive", "SCD0001_run.pdf", "/tmp/archive/SCD0001_run.pdf"},
		{"file:///tmp/archive", "SCD0001_run.pdf", "/tmp/archive/SCD0001_run.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got := Join(tt.base, tt.name)
			if got != tt.joined {
				t.Errorf("Join = %s, want %s", got, tt.joined)
			}
		})
	}
}

func TestStore_Local(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("put creates directories", func(t *testing.T) {
		target := filepath.Join(dir, "archive", "2024", "SCD0001_run.pdf")
		uri, err := s.Put(ctx, target, strings.NewReader("pdf-bytes"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if uri != target {
			t.Errorf("expected %s, got %s", target, uri)
		}
		data, err := os.ReadFile(target)
		if err != nil {
			t.Fatalf("read back failed: %v", err)
		}
		if string(data) != "pdf-bytes" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("get plain path and file uri", func(t *testing.T) {
		p := filepath.Join(dir, "daily.pdf")
		if err := os.WriteFile(p, []byte("daily"), 0644); err != nil {
			t.Fatal(err)
		}
		for _, uri := range []string{p, "file://" + p} {
			rc, size, err := s.Get(ctx, uri)
			if err != nil {
				t.Fatalf("Get(%s) failed: %v", uri, err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			if string(data) != "daily" || size != 5 {
				t.Errorf("Get(%s) = %q (%d bytes)", uri, data, size)
			}
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadAll(ctx, s, filepath.Join(dir, "nope.pdf"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected ErrNotExist, got %v", err)
		}
	})
}

// fakeS3 is a path-style object server good enough for GetObject/PutObject.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
	failFor int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = data
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		f.gets++
		if f.gets <= f.failFor {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		data, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func s3Env(t *testing.T, endpoint string) {
	t.Helper()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ENDPOINT_URL_S3", endpoint)
	t.Setenv("AWS_S3_FORCE_PATH_STYLE", "true")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))
}

func TestStore_S3(t *testing.T) {
	fake := &fakeS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	s3Env(t, srv.URL)

	s := New(nil)
	ctx := context.Background()

	uri, err := s.Put(ctx, "s3://sheets/archive/SCD0001_run.pdf", strings.NewReader("run-one"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if uri != "s3://sheets/archive/SCD0001_run.pdf" {
		t.Errorf("unexpected uri %s", uri)
	}
	if got := string(fake.objects["/sheets/archive/SCD0001_run.pdf"]); got != "run-one" {
		t.Errorf("object not stored, got %q", got)
	}

	// The first read fails and is retried.
	fake.failFor = 1
	data, err := ReadAll(ctx, s, "s3://sheets/archive/SCD0001_run.pdf")
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "run-one" {
		t.Errorf("unexpected content %q", data)
	}
	if fake.gets < 2 {
		t.Errorf("expected a retried get, saw %d requests", fake.gets)
	}
}
