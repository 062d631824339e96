// Package media uploads case photos to the public media host and returns
// their serving URLs.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultUploadTimeout bounds a single upload round trip.
const DefaultUploadTimeout = 60 * time.Second

// Uploader stores a local media file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Opts holds configuration options for the HTTP uploader.
type Opts struct {
	Endpoint   string
	HTTPClient *http.Client
}

// Option defines a configuration option for the HTTP uploader.
type Option func(*Opts)

// WithEndpoint sets the media host's upload URL.
func WithEndpoint(url string) Option {
	return func(o *Opts) { o.Endpoint = url }
}

// WithHTTPClient overrides the HTTP client used for uploads.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// HTTPUploader posts files as multipart form data to the media host.
type HTTPUploader struct {
	endpoint string
	http     *http.Client
}

// NewHTTPUploader creates an uploader for the given media host endpoint.
func NewHTTPUploader(opts ...Option) (*HTTPUploader, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("media endpoint not set")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultUploadTimeout}
	}
	return &HTTPUploader{endpoint: cfg.Endpoint, http: httpClient}, nil
}

// Upload posts the file at path and returns the URL the host assigns.
func (u *HTTPUploader) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.http.Do(req)
	if err != nil {
		slog.Error("HTTPUploader Upload failed", "error", err, "path", path)
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("media host returned status %d: %s", resp.StatusCode, body)
	}

	url := strings.TrimSpace(string(body))
	if url == "" {
		return "", fmt.Errorf("media host returned an empty URL")
	}
	slog.Debug("HTTPUploader Upload succeeded", "path", path, "url", url)
	return url, nil
}
