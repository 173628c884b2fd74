// Package gcs reads the prebuilt application shell from Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

const maxShellBytes = 4 << 20

// Config names the shell object.
type Config struct {
	Bucket string
	Object string
}

// ShellSource loads the shell object on every call.
type ShellSource struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed shell source.
func New(client *storage.Client, cfg Config) (*ShellSource, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	object := strings.TrimPrefix(cfg.Object, "/")
	if object == "" {
		object = "index.html"
	}
	return &ShellSource{client: client, bucket: cfg.Bucket, object: object}, nil
}

// Load reads the shell object.
func (s *ShellSource) Load(ctx context.Context) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("shell object gs://%s/%s: %w", s.bucket, s.object, err)
		}
		return nil, fmt.Errorf("open shell object: %w", err)
	}
	defer func() {
		_ = r.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(r, maxShellBytes))
	if err != nil {
		return nil, fmt.Errorf("read shell object: %w", err)
	}
	return data, nil
}

// URI reports the object being served.
func (s *ShellSource) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}
