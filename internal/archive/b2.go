package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Backblaze/blazer/b2"

	"github.com/desktop-updater/update-agent/internal/config"
)

// B2Store uploads installers to a Backblaze B2 bucket.
type B2Store struct {
	bucket *b2.Bucket
}

// NewB2Store authorizes with the account id and application key from
// access_key_id and secret_access_key.
func NewB2Store(ctx context.Context, cfg config.ArchiveConfig) (*B2Store, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("b2 bucket, account id and application key are required")
	}
	client, err := b2.NewClient(ctx, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("authorize b2: %w", err)
	}
	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open b2 bucket %s: %w", cfg.Bucket, err)
	}
	return &B2Store{bucket: bucket}, nil
}

// Upload streams localPath into the bucket under key.
func (b *B2Store) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	w := b.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("b2 upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("b2 upload: %w", err)
	}
	return nil
}
