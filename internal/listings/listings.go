// Package listings fetches course listing metadata from the external course
// catalogue over HTTP, with TTL caching and stale-on-error fallback so an
// upstream outage never blanks out metadata the service already had.
package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/privacywhen/coursecluster/internal/coursekey"
)

// DefaultTTL is how long a fetched listing stays fresh.
const DefaultTTL = 6 * time.Hour

const staleKeyPrefix = "stale:"

// Listing is the metadata record for one course.
type Listing struct {
	Department string `json:"department"`
	Title      string `json:"title"`
}

// Client is a caching course-listings client.
type Client struct {
	baseURL string
	httpc   *http.Client
	cache   *gocache.Cache
	log     zerolog.Logger
}

// NewClient creates a listings client against the given catalogue base URL.
func NewClient(baseURL string, ttl time.Duration, log zerolog.Logger) *Client {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		cache:   gocache.New(ttl, ttl),
		log:     log,
	}
}

// Lookup returns the listing for a course, from cache when fresh. On an
// upstream failure the last successfully fetched listing is served instead,
// if one exists.
func (c *Client) Lookup(ctx context.Context, code coursekey.Code) (Listing, error) {
	key := code.Canonical()
	if cached, ok := c.cache.Get(key); ok {
		return cached.(Listing), nil
	}

	listing, err := c.fetch(ctx, key)
	if err != nil {
		if stale, ok := c.cache.Get(staleKeyPrefix + key); ok {
			c.log.Warn().Err(err).Str("course", key).Msg("listings fetch failed; serving stale data")
			return stale.(Listing), nil
		}
		return Listing{}, err
	}

	if listing.Department == "" {
		listing.Department = code.Department
	}
	c.cache.SetDefault(key, listing)
	c.cache.Set(staleKeyPrefix+key, listing, gocache.NoExpiration)
	return listing, nil
}

func (c *Client) fetch(ctx context.Context, canonical string) (Listing, error) {
	url := fmt.Sprintf("%s/courses/%s", c.baseURL, canonical)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Listing{}, fmt.Errorf("building listings request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Listing{}, fmt.Errorf("fetching listing for %s: %w", canonical, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Listing{}, fmt.Errorf("listings endpoint returned %d for %s", resp.StatusCode, canonical)
	}

	var listing Listing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return Listing{}, fmt.Errorf("decoding listing for %s: %w", canonical, err)
	}
	return listing, nil
}
