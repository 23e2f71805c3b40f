package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	robotsCacheTTL     = 24 * time.Hour
	robotsMaxBodyBytes = 512 * 1024
)

// RobotsChecker answers whether a URL may be fetched under the host's robots.txt.
// Parsed files are cached per origin.
type RobotsChecker struct {
	cache     *cache.Cache
	userAgent string
	client    *http.Client
}

// NewRobotsChecker creates a checker that matches rules against userAgent
func NewRobotsChecker(userAgent string, client *http.Client) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		cache:     cache.New(robotsCacheTTL, time.Hour),
		userAgent: userAgent,
		client:    client,
	}
}

// Allowed reports whether target may be fetched. Missing or unreadable
// robots.txt files allow everything.
func (rc *RobotsChecker) Allowed(ctx context.Context, target string) (bool, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}

	origin := parsed.Scheme + "://" + parsed.Host
	robots, err := rc.robotsFor(ctx, origin)
	if err != nil {
		return true, err
	}
	if robots == nil {
		return true, nil
	}

	path := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return robots.TestAgent(path, rc.userAgent), nil
}

func (rc *RobotsChecker) robotsFor(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	if cached, found := rc.cache.Get(origin); found {
		robots, _ := cached.(*robotstxt.RobotsData)
		return robots, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create robots request: %w", err)
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		// Network trouble is not cached so the next request retries.
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read robots.txt: %w", err)
	}

	// FromStatusAndBytes allows all on 4xx and disallows all on 5xx.
	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		rc.cache.Set(origin, (*robotstxt.RobotsData)(nil), cache.DefaultExpiration)
		return nil, nil
	}

	rc.cache.Set(origin, robots, cache.DefaultExpiration)
	return robots, nil
}
