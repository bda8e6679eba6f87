// Package oidc verifies bearer tokens issued by an external OIDC provider.
// Keys come from the provider's JWKS endpoint and are cached in process.
package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// jwksTTL is how long fetched keys are served before refetching.
const jwksTTL = time.Hour

// KeyCache fetches and caches the JWKS for a single endpoint.
type KeyCache struct {
	url     string
	client  *http.Client
	mu      sync.RWMutex
	keys    jwk.Set
	expires time.Time
}

// NewKeyCache creates a key cache for jwksURL.
func NewKeyCache(jwksURL string) *KeyCache {
	return &KeyCache{
		url:    jwksURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Keys returns the cached key set, refetching when the TTL has lapsed.
func (c *KeyCache) Keys(ctx context.Context) (jwk.Set, error) {
	c.mu.RLock()
	if c.keys != nil && time.Now().Before(c.expires) {
		keys := c.keys
		c.mu.RUnlock()
		return keys, nil
	}
	c.mu.RUnlock()

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	c.mu.Lock()
	c.keys = keys
	c.expires = time.Now().Add(jwksTTL)
	c.mu.Unlock()

	return keys, nil
}

func (c *KeyCache) fetch(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	return keys, nil
}
