package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/desktop-updater/update-agent/internal/config"
)

// GCSStore uploads installers to a Google Cloud Storage bucket.
type GCSStore struct {
	Bucket string
	client *storage.Client
}

// NewGCSStore creates a GCSStore using credentials_file when set and
// application default credentials otherwise.
func NewGCSStore(ctx context.Context, cfg config.ArchiveConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{Bucket: cfg.Bucket, client: client}, nil
}

// Upload streams localPath into the bucket under key.
func (g *GCSStore) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	w := g.client.Bucket(g.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs upload: %w", err)
	}
	return nil
}

// Close closes the storage client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}
