package archive

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/desktop-updater/update-agent/internal/config"
)

// AzureStore uploads installers to an Azure Blob Storage container.
type AzureStore struct {
	Container string
	client    *azblob.Client
}

// NewAzureStore creates an AzureStore from a storage connection string. The
// container name comes from archive.bucket.
func NewAzureStore(cfg config.ArchiveConfig) (*AzureStore, error) {
	if cfg.ConnectionString == "" || cfg.Bucket == "" {
		return nil, errors.New("azure connection string and container are required")
	}
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure client: %w", err)
	}
	return &AzureStore{Container: cfg.Bucket, client: client}, nil
}

// Upload sends localPath to the container under key.
func (a *AzureStore) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	if _, err := a.client.UploadFile(ctx, a.Container, key, f, nil); err != nil {
		return fmt.Errorf("azure upload: %w", err)
	}
	return nil
}
