package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultSearchBaseURL   = "https://www.youtube.com"
	defaultSearchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultSearchTimeout   = 15 * time.Second
	defaultMaxPageSize     = 8 * 1024 * 1024 // 8MB, result pages are usually ~1MB
)

// ErrDisallowedByRobots is wrapped by SearchError when robots.txt forbids the search path
var ErrDisallowedByRobots = errors.New("search path disallowed by robots.txt")

// SearchBackend returns the raw listing page for a query
type SearchBackend interface {
	Search(ctx context.Context, query string) ([]byte, error)
}

// SearchError is a transport-level failure (network, timeout, non-2xx).
// It is distinct from a page that parses to zero results.
type SearchError struct {
	Query      string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *SearchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search %q failed with HTTP %d: %v", e.Query, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("search %q failed: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// SearchClientConfig tunes the HTTP search client
type SearchClientConfig struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	MaxPageSize int64
	Robots      *RobotsChecker // nil disables robots.txt checks
}

// SearchClient fetches result pages from the video platform
type SearchClient struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	maxPageSize int64
	robots      *RobotsChecker
}

// NewSearchClient creates a client with pooled connections tuned for
// repeated requests to a single host
func NewSearchClient(cfg SearchClientConfig) *SearchClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSearchBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultSearchUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSearchTimeout
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = defaultMaxPageSize
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &SearchClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent:   cfg.UserAgent,
		maxPageSize: cfg.MaxPageSize,
		robots:      cfg.Robots,
	}
}

// SearchURL returns the results page URL for query
func (c *SearchClient) SearchURL(query string) string {
	return c.baseURL + "/results?search_query=" + url.QueryEscape(query)
}

// Search performs exactly one GET against the results page
func (c *SearchClient) Search(ctx context.Context, query string) ([]byte, error) {
	searchURL := c.SearchURL(query)

	if c.robots != nil {
		allowed, err := c.robots.Allowed(ctx, searchURL)
		if err != nil {
			log.Printf("[SEARCH] robots.txt check failed for %s: %v", searchURL, err)
		} else if !allowed {
			return nil, &SearchError{Query: query, Err: ErrDisallowedByRobots}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &SearchError{Query: query, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SearchError{Query: query, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SearchError{Query: query, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxPageSize+1))
	if err != nil {
		return nil, &SearchError{Query: query, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if int64(len(body)) > c.maxPageSize {
		return nil, &SearchError{Query: query, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("response body too large (max %d bytes)", c.maxPageSize)}
	}

	return body, nil
}
