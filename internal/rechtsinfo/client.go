// Package rechtsinfo is a client for the rechtsinformationen.bund.de API,
// the federal portal for German legislation and case law.
package rechtsinfo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gaspardpetit/rechtsinfo-mcp/internal/cache"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/logx"
	"github.com/gaspardpetit/rechtsinfo-mcp/internal/metrics"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	maxResponseBytes = 8 << 20
	maxErrorBody     = 200
)

// ErrNotFound is returned when the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// StatusError reports an unexpected HTTP status from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.Code)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

// Client talks to the legal information API.
type Client struct {
	BaseURL    string
	httpClient *http.Client
	cache      cache.Store
	ttl        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache stores successful responses in s for ttl.
func WithCache(s cache.Store, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = s
		c.ttl = ttl
	}
}

// New returns a client for the API rooted at base.
func New(base string, opts ...Option) *Client {
	c := &Client{BaseURL: strings.TrimRight(base, "/"), httpClient: &http.Client{Timeout: 15 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SearchLegislation runs a full text search over legislation.
func (c *Client) SearchLegislation(ctx context.Context, q Query) (*SearchResult, error) {
	var res SearchResult
	if err := c.getJSON(ctx, "legislation", "/v1/legislation", searchParams(q, false), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchCaseLaw runs a full text search over court decisions.
func (c *Client) SearchCaseLaw(ctx context.Context, q Query) (*SearchResult, error) {
	var res SearchResult
	if err := c.getJSON(ctx, "case-law", "/v1/case-law", searchParams(q, true), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchDocuments searches legislation and case law together.
func (c *Client) SearchDocuments(ctx context.Context, q Query) (*SearchResult, error) {
	var res SearchResult
	if err := c.getJSON(ctx, "document", "/v1/document", searchParams(q, false), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CaseLaw fetches one decision by its document number.
func (c *Client) CaseLaw(ctx context.Context, documentNumber string) (*Item, error) {
	documentNumber = strings.TrimSpace(documentNumber)
	if documentNumber == "" || strings.ContainsAny(documentNumber, "/?#") {
		return nil, fmt.Errorf("invalid document number %q", documentNumber)
	}
	var item Item
	if err := c.getJSON(ctx, "case-law-detail", "/v1/case-law/"+url.PathEscape(documentNumber), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Legislation fetches one legislation expression by its ELI, for example
// "eli/bund/bgbl-1/1896/s195/2024-01-01/1/deu".
func (c *Client) Legislation(ctx context.Context, eli string) (*Item, error) {
	eli = strings.Trim(strings.TrimSpace(eli), "/")
	eli = strings.TrimPrefix(eli, "v1/legislation/")
	if !strings.HasPrefix(eli, "eli/") || strings.Contains(eli, "..") || strings.ContainsAny(eli, "?#") {
		return nil, fmt.Errorf("invalid ELI %q", eli)
	}
	var item Item
	if err := c.getJSON(ctx, "legislation-detail", "/v1/legislation/"+eli, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func searchParams(q Query, withCourt bool) url.Values {
	v := url.Values{}
	v.Set("searchTerm", strings.TrimSpace(q.Term))
	v.Set("size", strconv.Itoa(ClampSize(q.Size)))
	if withCourt && strings.TrimSpace(q.Court) != "" {
		v.Set("courtType", strings.TrimSpace(q.Court))
	}
	return v
}

// ClampSize maps a requested page size into the range the API accepts.
func ClampSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

func cacheKey(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:])
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	u := c.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	if c.cache != nil && c.ttl > 0 {
		b, ok, err := c.cache.Get(ctx, cacheKey(u))
		if err != nil {
			l := logx.Component("rechtsinfo")
			l.Warn().Err(err).Str("endpoint", endpoint).Msg("cache read failed")
		}
		metrics.RecordCacheLookup(ok)
		if ok {
			if err := json.Unmarshal(b, out); err == nil {
				return nil
			}
		}
	}

	b, err := c.fetch(ctx, u)
	metrics.RecordUpstreamRequest(endpoint, err == nil || errors.Is(err, ErrNotFound))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if c.cache != nil && c.ttl > 0 {
		if err := c.cache.Set(ctx, cacheKey(u), b, c.ttl); err != nil {
			l := logx.Component("rechtsinfo")
			l.Warn().Err(err).Str("endpoint", endpoint).Msg("cache write failed")
		}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), maxErrorBody)}
	}
	return body, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
