// Package fetch loads class resources by URL. It is the "load named resource"
// collaborator of the loader: it knows nothing about classes, only how to
// turn a path or URL into bytes.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Fetcher loads the resource at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Func adapts a plain function to the Fetcher interface.
type Func func(ctx context.Context, url string) ([]byte, error)

// Fetch implements Fetcher.
func (f Func) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// File reads resources from the local file system. Relative paths are
// resolved against Root.
type File struct {
	Root string
}

// Fetch implements Fetcher.
func (f *File) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = strings.TrimPrefix(path, "file://")
	if !filepath.IsAbs(path) && f.Root != "" {
		path = filepath.Join(f.Root, filepath.FromSlash(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// HTTP fetches resources over http and https.
type HTTP struct {
	Client *http.Client
}

// NewHTTP returns an HTTP fetcher with a pooled transport.
func NewHTTP(timeout time.Duration) *HTTP {
	return &HTTP{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch implements Fetcher.
func (h *HTTP) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %s", rawURL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// Close releases idle connections.
func (h *HTTP) Close() {
	h.Client.CloseIdleConnections()
}

// Auto dispatches http and https URLs to Remote and everything else to
// Local.
type Auto struct {
	Local  Fetcher
	Remote Fetcher
}

// Fetch implements Fetcher.
func (a *Auto) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if IsRemote(rawURL) {
		if a.Remote == nil {
			return nil, fmt.Errorf("no remote fetcher configured for %s", rawURL)
		}
		return a.Remote.Fetch(ctx, rawURL)
	}
	return a.Local.Fetch(ctx, rawURL)
}

// IsRemote reports whether rawURL uses the http or https scheme.
func IsRemote(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

// CacheBust appends a _dc=<unix millis> query parameter so intermediaries
// cannot serve a stale copy.
func CacheBust(rawURL string, now time.Time) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("_dc", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Decode transcodes src from the named charset to UTF-8. Names follow the
// WHATWG encoding labels (e.g., "windows-1251", "shift_jis"). An empty
// charset returns src unchanged.
func Decode(src []byte, charset string) ([]byte, error) {
	if charset == "" {
		return src, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(src), enc.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", charset, err)
	}
	return out, nil
}
