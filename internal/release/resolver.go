// Package release discovers the latest published version of an application
// from its vendor release-listing page.
package release

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/html"

	"github.com/desktop-updater/update-agent/internal/httputil"
	"github.com/desktop-updater/update-agent/internal/logging"
)

// maxPageSize bounds how much of a listing page is read.
const maxPageSize = 16 * 1024 * 1024

// Options configures a Resolver.
type Options struct {
	// Client performs the listing request. Nil means a 30s client with the
	// default browser User-Agent.
	Client *http.Client
	Retry  httputil.RetryConfig

	// SnapshotPath, when set, receives the raw HTML of every fetched page.
	SnapshotPath string

	Logger *slog.Logger
}

// Resolver turns a release-listing URL into the latest Version.
type Resolver struct {
	client       *http.Client
	retry        httputil.RetryConfig
	snapshotPath string
	strategies   []strategy
	log          *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Resolver{
		client:       client,
		retry:        opts.Retry,
		snapshotPath: opts.SnapshotPath,
		strategies:   defaultStrategies(),
		log:          logging.Or(opts.Logger, "release"),
	}
}

// Resolve fetches listingURL and returns the latest version it advertises.
// It returns *VersionNotFoundError when the page carries no recognizable
// version.
func (r *Resolver) Resolve(ctx context.Context, listingURL string) (Version, error) {
	r.log.Info("checking latest version", "url", listingURL)

	body, err := r.fetch(ctx, listingURL)
	if err != nil {
		return "", err
	}
	r.saveSnapshot(body)

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse release listing %s: %w", listingURL, err)
	}

	p := &page{url: listingURL, root: root}
	for _, s := range r.strategies {
		raw, ok := s.extract(p)
		if !ok {
			r.log.Debug("version strategy found nothing", "strategy", s.name)
			continue
		}
		v, err := Normalize(raw)
		if err != nil {
			r.log.Debug("version strategy produced unusable text", "strategy", s.name, "raw", raw, "error", err)
			continue
		}
		r.log.Info("found latest version", logging.KeyVersion, v.String(), "strategy", s.name)
		return v, nil
	}

	notFound := &VersionNotFoundError{
		URL:   listingURL,
		Title: pageTitle(root),
		Tags:  elementNames(root, 10),
	}
	r.log.Error("no version found, page layout may have changed",
		"url", listingURL, "title", notFound.Title, "elements", notFound.Tags)
	return "", notFound
}

func (r *Resolver) fetch(ctx context.Context, listingURL string) ([]byte, error) {
	resp, err := httputil.Get(ctx, r.client, listingURL, r.retry)
	if err != nil {
		return nil, fmt.Errorf("fetch release listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{StatusCode: resp.StatusCode, URL: listingURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read release listing: %w", err)
	}
	return body, nil
}

func (r *Resolver) saveSnapshot(body []byte) {
	if r.snapshotPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.snapshotPath), 0755); err != nil {
		r.log.Warn("failed to create snapshot directory", "path", r.snapshotPath, "error", err)
		return
	}
	if err := os.WriteFile(r.snapshotPath, body, 0644); err != nil {
		r.log.Warn("failed to save listing snapshot", "path", r.snapshotPath, "error", err)
		return
	}
	r.log.Debug("saved listing snapshot", "path", r.snapshotPath)
}
