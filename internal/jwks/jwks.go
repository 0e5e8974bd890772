// Package jwks is a reference implementation of the external JWKS
// key-selection collaborator: HTTPS-only fetch, TTL clamped between a
// configured minimum and maximum, honoring Cache-Control/Expires response
// headers. Production callers may substitute their own fetch/cache policy
// behind the Fetcher interface.
package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/x402hpke/envelope/internal/jwk"
	"github.com/x402hpke/envelope/internal/x402err"
)

// Set is the JWKS document shape: an object whose "keys" member is the
// array of keys.
type Set struct {
	Keys []*jwk.JWK `json:"keys"`
}

// SelectJWK returns the key in the set matching kid, or nil if absent.
func SelectJWK(set *Set, kid string) *jwk.JWK {
	if set == nil {
		return nil
	}
	for _, k := range set.Keys {
		if k.Kid == kid {
			return k
		}
	}
	return nil
}

// Fetcher is the key-selection interface of the external JWKS collaborator;
// callers may substitute any implementation. The envelope codec itself takes
// a *jwk.JWK directly and does not call a Fetcher.
type Fetcher interface {
	FetchJWKS(ctx context.Context, url string) (*Set, error)
	SelectJWK(ctx context.Context, url, kid string) (*jwk.JWK, error)
}

// cacheEntry holds a fetched set and the time its TTL expires.
type cacheEntry struct {
	set       *Set
	expiresAt time.Time
}

// Cache is the reference Fetcher implementation: an in-memory, per-URL
// cache with TTL clamped to [minTTL, maxTTL].
type Cache struct {
	httpClient *http.Client
	minTTL     time.Duration
	maxTTL     time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache builds a reference JWKS cache. minTTL/maxTTL bound every fetch's
// effective TTL regardless of what the origin server advertises.
func NewCache(minTTL, maxTTL time.Duration) *Cache {
	return &Cache{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		minTTL:     minTTL,
		maxTTL:     maxTTL,
		entries:    make(map[string]cacheEntry),
	}
}

// FetchJWKS fetches (or returns a cached, unexpired) JWKS document. url must
// use HTTPS.
func (c *Cache) FetchJWKS(ctx context.Context, url string) (*Set, error) {
	if url == "" {
		return nil, x402err.New(x402err.JWKSURLRequired, "JWKS URL must not be empty")
	}
	if !strings.HasPrefix(strings.ToLower(url), "https://") {
		return nil, x402err.New(x402err.JWKSHTTPSReq, "JWKS URL must use https")
	}

	c.mu.Lock()
	if entry, ok := c.entries[url]; ok && time.Now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.set, nil
	}
	c.mu.Unlock()

	traceID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, x402err.Wrap(x402err.JWKSInvalid, "building JWKS request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("jwks fetch failed", "trace_id", traceID, "url", url, "error", err)
		return nil, x402err.Wrap(x402err.JWKSInvalid, "fetching JWKS", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, x402err.New(x402err.JWKSHTTPStatus, fmt.Sprintf("JWKS endpoint returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, x402err.Wrap(x402err.JWKSInvalid, "reading JWKS response body", err)
	}

	var set Set
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, x402err.Wrap(x402err.JWKSInvalid, "decoding JWKS document", err)
	}
	for _, k := range set.Keys {
		if err := k.Validate(); err != nil {
			return nil, err
		}
	}

	ttl := c.clampTTL(cacheTTLFromHeaders(resp.Header))
	c.mu.Lock()
	c.entries[url] = cacheEntry{set: &set, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()

	slog.Debug("jwks fetched", "trace_id", traceID, "url", url, "keys", len(set.Keys), "ttl", ttl)
	return &set, nil
}

// SelectJWK fetches (or uses the cache) and returns the key matching kid.
func (c *Cache) SelectJWK(ctx context.Context, url, kid string) (*jwk.JWK, error) {
	set, err := c.FetchJWKS(ctx, url)
	if err != nil {
		return nil, err
	}
	key := SelectJWK(set, kid)
	if key == nil {
		return nil, x402err.New(x402err.JWKSKidInvalid, "no JWKS key matches kid: "+kid)
	}
	return key, nil
}

func (c *Cache) clampTTL(ttl time.Duration) time.Duration {
	if ttl < c.minTTL {
		return c.minTTL
	}
	if ttl > c.maxTTL {
		return c.maxTTL
	}
	return ttl
}

// cacheTTLFromHeaders honors Cache-Control max-age/s-maxage, falling back
// to Expires, falling back to zero (meaning "clamp to minTTL").
func cacheTTLFromHeaders(h http.Header) time.Duration {
	if cc := h.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.TrimSpace(directive)
			for _, prefix := range []string{"s-maxage=", "max-age="} {
				if strings.HasPrefix(directive, prefix) {
					if seconds, err := strconv.Atoi(strings.TrimPrefix(directive, prefix)); err == nil {
						return time.Duration(seconds) * time.Second
					}
				}
			}
		}
	}
	if exp := h.Get("Expires"); exp != "" {
		if t, err := http.ParseTime(exp); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	return 0
}
