// internal/catapi/client.go
//
// Minimal client for TheCatAPI image search.
// Responsibilities:
//   - Fetch a bounded batch of random images (GET /images/search?limit=N).
//   - Download a single image for the gallery's "save" action, restricted to
//     an allow list of CDN hosts.
//
// The API is treated as an opaque, read-only collaborator; callers decide
// whether a failure is fatal (it never is for the game loop).

package catapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public endpoint used when none is configured.
const DefaultBaseURL = "https://api.thecatapi.com/v1"

var (
	// ErrBadURL is returned by Download for URLs that are not absolute http(s).
	ErrBadURL = errors.New("invalid image url")
	// ErrHostNotAllowed is returned by Download for URLs outside the allow list.
	ErrHostNotAllowed = errors.New("image host not allowed")
)

// Image is one record of the search response.
type Image struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Client talks to the image search API.
type Client struct {
	base   string
	apiKey string
	hosts  map[string]struct{}
	http   *http.Client
}

// New builds a Client. An empty base falls back to DefaultBaseURL.
// hosts lists the CDN hostnames Download may fetch from.
func New(base, apiKey string, hosts []string) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	hs := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hs[h] = struct{}{}
		}
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		hosts:  hs,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Search returns up to limit random images.
func (c *Client) Search(ctx context.Context, limit int) ([]Image, error) {
	if limit <= 0 {
		limit = 10
	}
	u := c.base + "/images/search?limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search images: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("search images: unexpected status %d", res.StatusCode)
	}

	var out []Image
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}
	// Records without a URL are useless to every caller.
	kept := out[:0]
	for _, img := range out {
		if img.URL != "" {
			kept = append(kept, img)
		}
	}
	return kept, nil
}

// Download opens the image at rawURL. The caller must close the body.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: %q", ErrBadURL, rawURL)
	}
	if _, ok := c.hosts[strings.ToLower(u.Hostname())]; !ok {
		return nil, "", ErrHostNotAllowed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download image: %w", err)
	}
	if res.StatusCode/100 != 2 {
		res.Body.Close()
		return nil, "", fmt.Errorf("download image: unexpected status %d", res.StatusCode)
	}
	ct := res.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	return res.Body, ct, nil
}
