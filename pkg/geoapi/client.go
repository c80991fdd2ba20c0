// Package geoapi is a client for an HTTP geolocation lookup service.
package geoapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotConfigured is returned when the client has no endpoint.
	ErrNotConfigured = errors.New("geo api client not configured")
	// ErrNotFound is returned when the service has no record for an address.
	ErrNotFound = errors.New("address not found")
	// ErrUnavailable is returned without a request while the client is cooling
	// down after consecutive failures.
	ErrUnavailable = errors.New("geo api unavailable")
)

const (
	defaultCacheSize        = 10000
	defaultFailureThreshold = 3
	defaultCooldown         = 30 * time.Second
)

// Client handles communication with the geolocation API.
type Client struct {
	apiEndpoint string
	apiKey      string
	cacheTTL    time.Duration
	cacheSize   int
	threshold   int
	cooldown    time.Duration
	httpClient  *http.Client
	log         *logrus.Logger

	mu        sync.Mutex
	cache     map[string]cacheEntry
	failures  int
	openUntil time.Time
	now       func() time.Time
}

// cacheEntry holds an answer or a failure for one address.
type cacheEntry struct {
	loc     Location
	err     error
	expires time.Time
}

// Config for the geolocation client.
type Config struct {
	APIEndpoint string
	APIKey      string
	Timeout     time.Duration
	CacheTTL    time.Duration
	// CacheSize bounds the number of cached addresses. Defaults to 10000.
	CacheSize int
	// FailureThreshold consecutive failures suspend lookups for Cooldown.
	// A failed address is also remembered for Cooldown. Defaults to 3 and 30s.
	FailureThreshold int
	Cooldown         time.Duration
}

// Location is the service's answer for one address.
type Location struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	City      string  `json:"city"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Continent string  `json:"continent"`
}

// NewClient creates a new geolocation API client.
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	return &Client{
		apiEndpoint: strings.TrimRight(cfg.APIEndpoint, "/"),
		apiKey:      cfg.APIKey,
		cacheTTL:    cfg.CacheTTL,
		cacheSize:   cfg.CacheSize,
		threshold:   cfg.FailureThreshold,
		cooldown:    cfg.Cooldown,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log:   log,
		cache: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

// Lookup returns the location of ip. Answers are cached for the cache TTL;
// failures and misses are remembered for the cooldown so a failing service
// is asked at most once per address per cooldown.
func (c *Client) Lookup(ctx context.Context, ip string) (Location, error) {
	if c.apiEndpoint == "" {
		return Location{}, ErrNotConfigured
	}
	if e, ok := c.cached(ip); ok {
		return e.loc, e.err
	}
	if c.suspended() {
		return Location{}, ErrUnavailable
	}

	loc, err := c.fetch(ctx, ip)
	switch {
	case err == nil:
		c.succeeded()
		c.store(ip, cacheEntry{loc: loc, expires: c.now().Add(c.cacheTTL)})
		c.log.WithFields(logrus.Fields{
			"ip":      ip,
			"country": loc.Country,
		}).Debug("Resolved address via geo API")
	case errors.Is(err, ErrNotFound):
		c.succeeded()
		c.store(ip, cacheEntry{err: err, expires: c.now().Add(c.cooldown)})
	default:
		c.failed(err)
		c.store(ip, cacheEntry{err: err, expires: c.now().Add(c.cooldown)})
	}
	return loc, err
}

func (c *Client) fetch(ctx context.Context, ip string) (Location, error) {
	u := fmt.Sprintf("%s/%s", c.apiEndpoint, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "alertmap/0.1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Location{}, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Location{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return Location{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return loc, nil
}

func (c *Client) cached(ip string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[ip]
	if !ok {
		return cacheEntry{}, false
	}
	if c.now().After(e.expires) {
		delete(c.cache, ip)
		return cacheEntry{}, false
	}
	return e, true
}

// store caches e for ip. When the cache is full, expired entries are purged
// first and then the entry closest to expiry is evicted.
func (c *Client) store(ip string, e cacheEntry) {
	if e.err == nil && c.cacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[ip]; !ok && len(c.cache) >= c.cacheSize {
		now := c.now()
		for k, v := range c.cache {
			if now.After(v.expires) {
				delete(c.cache, k)
			}
		}
		for len(c.cache) >= c.cacheSize {
			var oldest string
			var first time.Time
			for k, v := range c.cache {
				if oldest == "" || v.expires.Before(first) {
					oldest, first = k, v.expires
				}
			}
			delete(c.cache, oldest)
		}
	}
	c.cache[ip] = e
}

// CacheLen returns the number of cached addresses.
func (c *Client) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *Client) suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.openUntil)
}

func (c *Client) succeeded() {
	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()
}

func (c *Client) failed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures < c.threshold {
		return
	}
	c.failures = 0
	c.openUntil = c.now().Add(c.cooldown)
	c.log.WithError(err).WithField("cooldown", c.cooldown.String()).Warn("Geo API failing, suspending lookups")
}

// HealthCheck checks if the geolocation API is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.apiEndpoint == "" {
		return ErrNotConfigured
	}

	u := fmt.Sprintf("%s/health", c.apiEndpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}
