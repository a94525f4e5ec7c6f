// Package source fetches the raw bytes behind a section's file path.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a local source file does not exist.
var ErrNotFound = errors.New("source not found")

// Fetcher returns the raw content of a document location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Resolver fetches local files, resolved against BaseDir when relative, and http(s) URLs.
type Resolver struct {
	baseDir  string
	client   *http.Client
	attempts int
	maxBytes int64
	logger   *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for http(s) locations.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAttempts sets how many times a remote fetch is tried. Values below 1 mean 1.
func WithAttempts(n int) Option {
	return func(r *Resolver) { r.attempts = n }
}

// WithMaxBytes bounds the size of a fetched document. Zero means unbounded.
func WithMaxBytes(n int64) Option {
	return func(r *Resolver) { r.maxBytes = n }
}

// NewResolver creates a Resolver rooted at baseDir.
func NewResolver(baseDir string, opts ...Option) *Resolver {
	r := &Resolver{
		baseDir:  baseDir,
		client:   http.DefaultClient,
		attempts: 3,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.attempts < 1 {
		r.attempts = 1
	}
	return r
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Path returns the local filesystem path for location, or "" for remote locations.
func (r *Resolver) Path(location string) string {
	if IsRemote(location) {
		return ""
	}
	if filepath.IsAbs(location) || r.baseDir == "" {
		return filepath.Clean(location)
	}
	return filepath.Join(r.baseDir, location)
}

// Fetch returns the bytes at location.
func (r *Resolver) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if IsRemote(location) {
		return r.fetchRemote(ctx, location)
	}
	return r.fetchLocal(r.Path(location))
}

func (r *Resolver) fetchLocal(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if r.maxBytes > 0 && info.Size() > r.maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), r.maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (r *Resolver) fetchRemote(ctx context.Context, location string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			r.logger.Warn("retrying fetch",
				zap.String("url", location),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		var data []byte
		data, lastErr = r.get(ctx, location)
		if lastErr == nil {
			return data, nil
		}
		if ctx.Err() != nil || isPermanent(lastErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return "unexpected status " + e.status
}

func isPermanent(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}

func (r *Resolver) get(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: %w", location, &statusError{code: resp.StatusCode, status: resp.Status})
	}
	body := io.Reader(resp.Body)
	if r.maxBytes > 0 {
		body = io.LimitReader(resp.Body, r.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	if r.maxBytes > 0 && int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", location, r.maxBytes)
	}
	return data, nil
}

// Ext returns the lowercase extension of location, ignoring any URL query.
func Ext(location string) string {
	if IsRemote(location) {
		if u, err := url.Parse(location); err == nil {
			location = u.Path
		}
	}
	return strings.ToLower(filepath.Ext(location))
}
