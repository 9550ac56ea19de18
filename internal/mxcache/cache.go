// Package mxcache resolves and caches a domain's mail exchangers, ordered
// by preference, with singleflight deduplication for concurrent requests
// to the same domain. DNS failures are treated as "no mail exchanger" and
// cached with a short negative TTL so transient outages can recover.
package mxcache

import (
	"context"
	"net"
	"sort"
	"strings"
	"sync"
	"time"
)

// Resolver is the subset of net.Resolver the cache needs. Injectable for testing.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Config configures the MX cache.
type Config struct {
	// TTL is how long a successful resolution is served from cache. Default: 1h
	TTL time.Duration
	// NegativeTTL is how long an empty/failed resolution is served from cache. Default: 2m
	NegativeTTL time.Duration
	// LookupTimeout bounds a single underlying DNS query. Default: 10s
	LookupTimeout time.Duration
	// MaxEntries bounds the cache size; oldest-expiring entries are evicted. Default: 10000
	MaxEntries int
	// Resolver is injectable for testing. Defaults to net.DefaultResolver.
	Resolver Resolver
}

// Cache is a thread-safe MX resolution cache.
// Concurrent resolutions for the same domain are deduplicated:
// only one DNS query is performed, and all waiters receive the result.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     Config
}

type entry struct {
	hosts   []string
	expires time.Time
	done    chan struct{} // closed when the lookup is complete
}

// New creates an MX cache.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 2 * time.Minute
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 10 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.Resolver == nil {
		cfg.Resolver = net.DefaultResolver
	}
	return &Cache{
		entries: make(map[string]*entry),
		cfg:     cfg,
	}
}

// Resolve returns the domain's mail exchanger hosts ordered by preference,
// trailing dots stripped. An empty slice means the domain has no usable
// mail exchanger; resolution errors are never surfaced.
func (c *Cache) Resolve(ctx context.Context, domain string) []string {
	c.mu.Lock()

	if e, ok := c.entries[domain]; ok {
		select {
		case <-e.done:
			// Completed entry - check if still valid.
			if time.Now().Before(e.expires) {
				c.mu.Unlock()
				return copyHosts(e.hosts)
			}
			// Expired, fall through to refresh.
		default:
			// Lookup in progress - wait for it.
			c.mu.Unlock()
			select {
			case <-e.done:
				return copyHosts(e.hosts)
			case <-ctx.Done():
				return nil
			}
		}
	}

	// Start new lookup.
	e := &entry{done: make(chan struct{})}
	c.evictLocked()
	c.entries[domain] = e
	c.mu.Unlock()

	lookupCtx, cancel := context.WithTimeout(ctx, c.cfg.LookupTimeout)
	defer cancel()

	records, err := c.cfg.Resolver.LookupMX(lookupCtx, domain)
	if err != nil || len(records) == 0 {
		e.hosts = nil
		e.expires = time.Now().Add(c.cfg.NegativeTTL)
	} else {
		e.hosts = hostsByPreference(records)
		e.expires = time.Now().Add(c.cfg.TTL)
	}
	close(e.done)

	return copyHosts(e.hosts)
}

// Len returns the number of entries in the cache (for diagnostics).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all cached entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// evictLocked keeps the cache within MaxEntries. Expired entries go first;
// if none are expired, the entry closest to expiry is dropped.
func (c *Cache) evictLocked() {
	if len(c.entries) < c.cfg.MaxEntries {
		return
	}
	now := time.Now()
	for d, e := range c.entries {
		select {
		case <-e.done:
			if now.After(e.expires) {
				delete(c.entries, d)
			}
		default:
		}
	}
	for len(c.entries) >= c.cfg.MaxEntries {
		var victim string
		var soonest time.Time
		for d, e := range c.entries {
			select {
			case <-e.done:
			default:
				continue // never evict an in-flight lookup
			}
			if victim == "" || e.expires.Before(soonest) {
				victim = d
				soonest = e.expires
			}
		}
		if victim == "" {
			return
		}
		delete(c.entries, victim)
	}
}

// hostsByPreference sorts MX records by preference (lowest first) and
// returns the bare hostnames without trailing dots.
func hostsByPreference(records []*net.MX) []string {
	sorted := make([]*net.MX, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Pref < sorted[j].Pref
	})

	hosts := make([]string, 0, len(sorted))
	for _, r := range sorted {
		h := strings.TrimSuffix(r.Host, ".")
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// copyHosts returns a copy so callers cannot mutate cached data.
func copyHosts(hosts []string) []string {
	if hosts == nil {
		return nil
	}
	out := make([]string, len(hosts))
	copy(out, hosts)
	return out
}
