package avatar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider fetches a deterministic avatar image for a seed string. The same
// seed always yields the same image, so resources keep a stable author
// avatar without storing uploads.
type Provider interface {
	Fetch(ctx context.Context, seed string) ([]byte, string, error)
	URL(seed string) string
}

// DiceBear resolves avatars from the DiceBear HTTP API using the initials
// style.
type DiceBear struct {
	baseURL    string
	httpClient *http.Client
}

func NewDiceBear(baseURL string) *DiceBear {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.dicebear.com/7.x/initials/svg"
	}
	return &DiceBear{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// URL returns the public avatar URL for a seed.
func (d *DiceBear) URL(seed string) string {
	return d.baseURL + "?seed=" + url.QueryEscape(seed)
}

// Fetch downloads the rendered avatar so it can be cached alongside the
// resource files.
func (d *DiceBear) Fetch(ctx context.Context, seed string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL(seed), nil)
	if err != nil {
		return nil, "", fmt.Errorf("avatar: build request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("avatar: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("avatar: provider returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, "", fmt.Errorf("avatar: read body: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/svg+xml"
	}
	return data, contentType, nil
}

var _ Provider = (*DiceBear)(nil)
