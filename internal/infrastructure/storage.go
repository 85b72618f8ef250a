package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"order-workflow/internal/apperror"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrDocumentNotFound is returned when no object exists under the key.
var ErrDocumentNotFound = apperror.NotFound("Documento no encontrado")

// GCSDocumentStore keeps order documents in a Cloud Storage bucket.
type GCSDocumentStore struct {
	client *storage.Client
	bucket string
}

// NewGCSDocumentStore prefers explicit credentials JSON and falls back to ADC.
func NewGCSDocumentStore(ctx context.Context, cfg StorageConfig) (*GCSDocumentStore, error) {
	if cfg.GCSBucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	var opts []option.ClientOption
	if credJSON := strings.TrimSpace(cfg.GCSCredentialsJSON); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	if _, err := client.Bucket(cfg.GCSBucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", cfg.GCSBucket, err)
	}
	return &GCSDocumentStore{client: client, bucket: cfg.GCSBucket}, nil
}

func (s *GCSDocumentStore) Save(ctx context.Context, key, contentType string, r io.Reader) error {
	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", key, err)
	}
	return nil
}

func (s *GCSDocumentStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return rc, nil
}

func (s *GCSDocumentStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *GCSDocumentStore) Close() error {
	return s.client.Close()
}

// LocalDocumentStore keeps documents on local disk under dir.
type LocalDocumentStore struct {
	dir string
}

func NewLocalDocumentStore(dir string) (*LocalDocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalDocumentStore{dir: dir}, nil
}

func (s *LocalDocumentStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid document key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalDocumentStore) Save(_ context.Context, key, _ string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create document dir: %w", err)
	}
	tmp := p + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return os.Rename(tmp, p)
}

func (s *LocalDocumentStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

func (s *LocalDocumentStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalDocumentStore) Close() error { return nil }
