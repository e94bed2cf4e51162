// Package archive uploads finalized journal entries to remote storage.
//
// Archiving is optional and strictly best-effort: a failed upload is
// reported so the orchestrator can downgrade its completion notice, but it
// never aborts a member's session.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/journalpipe/journalpipe/internal/models"
)

// DefaultUploadTimeout bounds a single archive upload request.
const DefaultUploadTimeout = 30 * time.Second

// Archiver uploads one entry document to a deterministic remote path derived
// from the member id and date.
type Archiver interface {
	Upload(ctx context.Context, ownerID, date string, payload []byte) error
}

// NopArchiver is used when no archive endpoint is configured.
type NopArchiver struct{}

// Upload does nothing.
func (NopArchiver) Upload(ctx context.Context, ownerID, date string, payload []byte) error {
	slog.Debug("NopArchiver skipping upload", "owner", ownerID, "date", date)
	return nil
}

// Opts holds configuration options for the HTTP archiver.
type Opts struct {
	Token  string
	Client *http.Client
}

// Option defines a configuration option for the HTTP archiver.
type Option func(*Opts)

// WithToken sets a bearer token sent with each upload.
func WithToken(token string) Option {
	return func(o *Opts) {
		o.Token = token
	}
}

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.Client = c
	}
}

// HTTPArchiver PUTs entry documents to <base>/<ownerID>/<date>.json.
type HTTPArchiver struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTPArchiver creates an archiver for the given base URL.
func NewHTTPArchiver(base string, opts ...Option) *HTTPArchiver {
	cfg := Opts{Client: &http.Client{Timeout: DefaultUploadTimeout}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HTTPArchiver{
		base:   strings.TrimRight(base, "/"),
		token:  cfg.Token,
		client: cfg.Client,
	}
}

// Upload PUTs the payload to the deterministic remote path. Any transport or
// non-2xx failure is wrapped in models.ErrArchiveUpload.
func (a *HTTPArchiver) Upload(ctx context.Context, ownerID, date string, payload []byte) error {
	url := fmt.Sprintf("%s/%s/%s.json", a.base, ownerID, date)
	slog.Debug("HTTPArchiver uploading entry", "url", url, "bytes", len(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		slog.Error("HTTPArchiver request build failed", "error", err, "url", url)
		return fmt.Errorf("%w: %v", models.ErrArchiveUpload, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Error("HTTPArchiver upload failed", "error", err, "url", url)
		return fmt.Errorf("%w: %v", models.ErrArchiveUpload, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("HTTPArchiver upload rejected", "status", resp.StatusCode, "url", url)
		return fmt.Errorf("%w: unexpected status %d", models.ErrArchiveUpload, resp.StatusCode)
	}

	slog.Info("HTTPArchiver upload succeeded", "owner", ownerID, "date", date)
	return nil
}
