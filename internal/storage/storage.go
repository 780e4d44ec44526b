// Package storage reads source documents and archives split run sheets on
// the local filesystem or in S3.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidURI is returned for malformed or unsupported locations.
var ErrInvalidURI = errors.New("invalid storage uri")

// ObjectStore reads and writes documents by URI.
type ObjectStore interface {
	// Get returns a reader for a local path, file://path or s3://bucket/key.
	Get(ctx context.Context, uri string) (io.ReadCloser, int64, error)
	// Put writes content to a local path, file://path or s3://bucket/key and
	// returns the final URI.
	Put(ctx context.Context, uri string, body io.Reader) (string, error)
}

// Store is the default ObjectStore. The S3 client is created on first use
// so local-only runs need no AWS configuration.
type Store struct {
	logger *slog.Logger

	mu       sync.Mutex
	s3client *s3.Client
}

var _ ObjectStore = (*Store)(nil)

// New creates a Store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// IsS3 reports whether uri names an S3 object or prefix.
func IsS3(uri string) bool {
	return strings.HasPrefix(uri, "s3://")
}

// Join appends name to a directory or S3 prefix.
func Join(base, name string) string {
	if IsS3(base) {
		return strings.TrimSuffix(base, "/") + "/" + name
	}
	return filepath.Join(localPath(base), name)
}

func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// newS3 creates an S3 client honoring env configuration for MinIO.
// Env support: AWS_REGION, AWS_ENDPOINT_URL_S3, AWS_S3_FORCE_PATH_STYLE.
func newS3(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("AWS_ENDPOINT_URL_S3"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
		if strings.EqualFold(os.Getenv("AWS_S3_FORCE_PATH_STYLE"), "true") {
			o.UsePathStyle = true
		}
	}), nil
}

func (s *Store) client(ctx context.Context) (*s3.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.s3client != nil {
		return s.s3client, nil
	}
	c, err := newS3(ctx)
	if err != nil {
		return nil, err
	}
	s.s3client = c
	return c, nil
}

func parseS3(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	return bucket, key, nil
}

// Get opens a document. S3 reads are retried a few times before failing.
func (s *Store) Get(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	if !IsS3(uri) {
		f, err := os.Open(localPath(uri))
		if err != nil {
			return nil, 0, err
		}
		size := int64(0)
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		return f, size, nil
	}

	b, k, err := parseS3(uri)
	if err != nil {
		return nil, 0, err
	}
	c, err := s.client(ctx)
	if err != nil {
		return nil, 0, err
	}

	var out *s3.GetObjectOutput
	err = retry.Do(
		func() error {
			var err error
			out, err = c.GetObject(ctx, &s3.GetObjectInput{Bucket: &b, Key: &k})
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("retrying s3 get", "uri", uri, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("s3 get %s: %w", uri, err)
	}

	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// ReadAll fetches a whole document from any ObjectStore.
func ReadAll(ctx context.Context, s ObjectStore, uri string) ([]byte, error) {
	rc, _, err := s.Get(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Put writes a document, creating parent directories for local paths.
func (s *Store) Put(ctx context.Context, uri string, body io.Reader) (string, error) {
	if !IsS3(uri) {
		p := localPath(uri)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
		f, err := os.Create(p)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(f, body); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return uri, nil
	}

	b, k, err := parseS3(uri)
	if err != nil {
		return "", err
	}
	c, err := s.client(ctx)
	if err != nil {
		return "", err
	}

	// PutObject signs the payload, which needs a seekable body.
	rs, ok := body.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		rs = bytes.NewReader(data)
	}

	if _, err := c.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b,
		Key:         &k,
		Body:        rs,
		ContentType: aws.String("application/pdf"),
	}); err != nil {
		return "", fmt.Errorf("s3 put %s: %w", uri, err)
	}
	return uri, nil
}
