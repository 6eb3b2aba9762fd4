// Package csrf acquires, caches and rotates the anti-forgery token required
// on state-mutating API requests, and wraps an http.RoundTripper that
// attaches it and retries exactly once on a server-signaled rejection.
package csrf

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/LucianaVC752/CajasDelCampo-sub000/credentials"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTokenMaxAge is how long a fetched token is reused before a
	// proactive refetch.
	DefaultTokenMaxAge = 30 * time.Minute

	// DefaultHeaderName carries the token on protected requests.
	DefaultHeaderName = "X-CSRF-Token"

	// DefaultPathPrefix scopes protection to API-namespaced paths.
	DefaultPathPrefix = "/api"
)

// Fetcher obtains a fresh token from the issuance endpoint.
type Fetcher func(ctx context.Context) (string, error)

// Coordinator owns the current CSRF token: an in-memory cache, a persisted
// mirror in the credential store, and the fetch/rotation lifecycle.
type Coordinator struct {
	store           *credentials.Store
	headerName      string
	maxAge          time.Duration
	renewalInterval time.Duration
	pathPrefix      string
	exempt          map[string]struct{}
	nowTime         func() time.Time

	mu        sync.Mutex
	fetch     Fetcher
	token     string
	fetchedAt time.Time
}

// Option defines a function type to modify a Coordinator instance.
type Option func(*Coordinator)

// WithHeaderName overrides the header carrying the token.
func WithHeaderName(name string) Option {
	return func(c *Coordinator) {
		c.headerName = name
	}
}

// WithTokenMaxAge overrides the reuse window.
func WithTokenMaxAge(d time.Duration) Option {
	return func(c *Coordinator) {
		c.maxAge = d
	}
}

// WithRenewalInterval overrides the background refetch cadence, which
// defaults to the token reuse window.
func WithRenewalInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.renewalInterval = d
	}
}

// WithPathPrefix overrides the API path prefix that scopes protection.
func WithPathPrefix(prefix string) Option {
	return func(c *Coordinator) {
		c.pathPrefix = strings.TrimSuffix(prefix, "/")
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

// NewCoordinator initializes a Coordinator over the given credential store.
// The fetcher is attached separately via SetFetcher because the API client
// that performs the fetch is itself built around this coordinator's
// transport.
func NewCoordinator(store *credentials.Store, options ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("[NewCoordinator] credential store is required")
	}
	c := &Coordinator{
		store:      store,
		headerName: DefaultHeaderName,
		maxAge:     DefaultTokenMaxAge,
		pathPrefix: DefaultPathPrefix,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	// The issuance and refresh endpoints must be reachable without already
	// holding a token, otherwise a fresh client could never bootstrap.
	c.exempt = map[string]struct{}{
		c.pathPrefix + "/csrf-token":   {},
		c.pathPrefix + "/auth/refresh": {},
	}
	return c, nil
}

// SetFetcher attaches the function used to obtain fresh tokens.
func (c *Coordinator) SetFetcher(fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetch = fetch
}

// HeaderName returns the header under which the token travels.
func (c *Coordinator) HeaderName() string {
	return c.headerName
}

// Token returns the current CSRF token: the in-memory cache while younger
// than the reuse window, then the persisted mirror, then a network fetch.
// Fetch failures are logged and surface as "" - callers proceed without a
// token and let the server reject if it insists.
func (c *Coordinator) Token(ctx context.Context, forceRefresh bool) string {
	now := c.nowTime()

	c.mu.Lock()
	if !forceRefresh {
		if c.token != "" && now.Sub(c.fetchedAt) < c.maxAge {
			token := c.token
			c.mu.Unlock()
			return token
		}
		if token, fetchedAt := c.store.CSRFToken(); token != "" && !fetchedAt.IsZero() && now.Sub(fetchedAt) < c.maxAge {
			c.token = token
			c.fetchedAt = fetchedAt
			c.mu.Unlock()
			return token
		}
	}
	fetch := c.fetch
	c.mu.Unlock()

	if fetch == nil {
		return ""
	}
	token, err := fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("csrf: token fetch failed, proceeding without")
		return ""
	}

	fetchedAt := c.nowTime()
	c.mu.Lock()
	c.token = token
	c.fetchedAt = fetchedAt
	c.mu.Unlock()

	if err := c.store.StoreCSRFToken(token, fetchedAt); err != nil {
		log.Warn().Err(err).Msg("csrf: failed to mirror token to storage")
	}
	return token
}

// NeedsProtection reports whether an outgoing request requires the CSRF
// header: mutating methods against API-namespaced paths, excluding the
// bootstrap-critical endpoints.
func (c *Coordinator) NeedsProtection(method, path string) bool {
	switch strings.ToUpper(method) {
	case "POST", "PUT", "PATCH", "DELETE":
	default:
		return false
	}
	if !strings.HasPrefix(path, c.pathPrefix+"/") && path != c.pathPrefix {
		return false
	}
	_, exempt := c.exempt[path]
	return !exempt
}

// Clear drops the cached token and its persisted mirror. Called on logout.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.token = ""
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
	c.store.ClearCSRFToken()
}

// StartRenewal proactively refetches the token on the reuse interval,
// reducing the chance of a user-visible retry round trip. The returned stop
// function is idempotent and must be called on logout or teardown.
func (c *Coordinator) StartRenewal() (stop func()) {
	interval := c.renewalInterval
	if interval <= 0 {
		interval = c.maxAge
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.Token(context.Background(), true)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
		})
	}
}
