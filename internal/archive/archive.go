// Package archive keeps copies of downloaded installers in local or cloud
// storage.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/desktop-updater/update-agent/internal/config"
	"github.com/desktop-updater/update-agent/internal/logging"
)

// Store uploads a local file under an object key. Stores holding a client
// connection also implement io.Closer.
type Store interface {
	Upload(ctx context.Context, localPath, key string) error
}

// New builds the Store selected by cfg. It returns nil, nil when archiving
// is disabled.
func New(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(cfg.Provider) {
	case "":
		return nil, nil
	case "local":
		store, err = NewLocalStore(cfg.LocalPath)
	case "s3":
		store, err = NewS3Store(ctx, cfg)
	case "gcs":
		store, err = NewGCSStore(ctx, cfg)
	case "azure":
		store, err = NewAzureStore(cfg)
	case "b2":
		store, err = NewB2Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// ObjectKey builds <prefix>/<app>/<tag>/<file>.
func ObjectKey(prefix, appKey, tag, filename string) string {
	return strings.TrimPrefix(path.Join(prefix, appKey, tag, filename), "/")
}

// Archiver uploads installers and logs the outcome. Failures are reported
// to the caller but never stop an update.
type Archiver struct {
	store  Store
	prefix string
	name   string
	log    *slog.Logger
}

// NewArchiver wraps store. A nil store yields a nil Archiver.
func NewArchiver(store Store, cfg config.ArchiveConfig, logger *slog.Logger) *Archiver {
	if store == nil {
		return nil
	}
	return &Archiver{
		store:  store,
		prefix: cfg.Prefix,
		name:   strings.ToLower(cfg.Provider),
		log:    logging.Or(logger, "archive"),
	}
}

// Archive uploads the installer at localPath.
func (a *Archiver) Archive(ctx context.Context, appKey, tag, localPath string) (string, error) {
	key := ObjectKey(a.prefix, appKey, tag, path.Base(strings.ReplaceAll(localPath, "\\", "/")))
	start := time.Now()
	if err := a.store.Upload(ctx, localPath, key); err != nil {
		return key, fmt.Errorf("archive %s to %s: %w", localPath, a.name, err)
	}
	a.log.Info("installer archived",
		logging.KeyApp, appKey,
		"provider", a.name,
		"key", key,
		logging.KeyDurationMs, time.Since(start).Milliseconds(),
	)
	return key, nil
}

// Close releases the store's client, if it holds one. It is safe on a nil
// Archiver.
func (a *Archiver) Close() error {
	if a == nil {
		return nil
	}
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
