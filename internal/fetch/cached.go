package fetch

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/maypok86/otter"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long an imported posting is reused.
const DefaultCacheTTL = 30 * time.Minute

// JobImporter imports postings.
type JobImporter interface {
	Import(ctx context.Context, url string) (*JobDescription, error)
}

// CachedImporter reuses recent imports and collapses concurrent imports of the same URL.
type CachedImporter struct {
	inner JobImporter
	cache otter.Cache[string, *JobDescription]
	group singleflight.Group
}

// NewCachedImporter wraps inner with an in-memory cache of capacity entries.
func NewCachedImporter(inner JobImporter, capacity int, ttl time.Duration) (*CachedImporter, error) {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache, err := otter.MustBuilder[string, *JobDescription](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}
	return &CachedImporter{inner: inner, cache: cache}, nil
}

// Import returns a cached posting or imports it.
func (c *CachedImporter) Import(ctx context.Context, urlStr string) (*JobDescription, error) {
	key := cacheKey(urlStr)
	if jd, ok := c.cache.Get(key); ok {
		return jd, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		jd, err := c.inner.Import(ctx, urlStr)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, jd)
		return jd, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*JobDescription), nil
}

// Invalidate forgets a cached posting.
func (c *CachedImporter) Invalidate(urlStr string) {
	c.cache.Delete(cacheKey(urlStr))
}

// Close releases the cache.
func (c *CachedImporter) Close() {
	c.cache.Close()
}

// cacheKey drops fragments and tracking parameters so equivalent links share an entry.
func cacheKey(urlStr string) string {
	u, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return urlStr
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	q := u.Query()
	for key := range q {
		if strings.HasPrefix(key, "utm_") || key == "gh_src" || key == "lever-source" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
