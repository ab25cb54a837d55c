// Package lawapi provides a typed client for the e-Gov law API (v2 JSON).
package lawapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/karlseguin/ccache/v3"
)

// DefaultBaseURL is the production e-Gov law API endpoint.
const DefaultBaseURL = "https://laws.e-gov.go.jp/api/2"

// Client calls the law API with a bounded timeout and caches response
// bodies so repeated fetches of the same law do not re-hit the upstream.
// Law texts change only on amendment, so a long TTL is safe.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *ccache.Cache[[]byte]
	cacheTTL   time.Duration
}

type Option func(*Client)

// WithBaseURL overrides the upstream endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithCacheTTL overrides how long response bodies are cached.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.cacheTTL = d }
}

// NewClient creates a law API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: ccache.New(ccache.Configure[[]byte]().
			MaxSize(256).
			ItemsToPrune(16)),
		cacheTTL: time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchLaws searches laws whose title contains the keyword.
func (c *Client) SearchLaws(ctx context.Context, keyword string, limit int) (*SearchResult, error) {
	q := url.Values{}
	q.Set("law_title", keyword)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out SearchResult
	if err := c.getJSON(ctx, "/laws", q, &out); err != nil {
		return nil, errors.Wrap(err, "search laws")
	}
	return &out, nil
}

// GetLawData fetches the full body of one law by law id or law number.
func (c *Client) GetLawData(ctx context.Context, lawIDOrNum string) (*LawData, error) {
	if lawIDOrNum == "" {
		return nil, errors.New("law id must not be empty")
	}
	q := url.Values{}
	q.Set("law_full_text_format", "json")
	var out LawData
	if err := c.getJSON(ctx, "/law_data/"+url.PathEscape(lawIDOrNum), q, &out); err != nil {
		return nil, errors.Wrapf(err, "get law data %s", lawIDOrNum)
	}
	if out.FullText == nil {
		return nil, errors.Errorf("law %s has no full text", lawIDOrNum)
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	key := path + "?" + q.Encode()

	if item := c.cache.Get(key); item != nil && !item.Expired() {
		return json.Unmarshal(item.Value(), v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+key, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "law api request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("law api returned status %d: %s", resp.StatusCode, string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response body")
	}

	c.cache.Set(key, body, c.cacheTTL)
	return json.Unmarshal(body, v)
}
