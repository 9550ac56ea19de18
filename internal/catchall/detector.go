// Package catchall determines whether a domain accepts any address by
// probing a synthetic, virtually-guaranteed-nonexistent local part against
// the domain's primary mail exchanger. Verdicts are cached per domain with
// singleflight deduplication, so a batch full of addresses on one domain
// costs exactly one detection probe.
package catchall

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/leadsnipe/verifykit/internal/probe"
)

// ProbeFunc runs one SMTP probe. The detector takes it as a dependency so
// detection probes flow through the same admission limits as real probes.
type ProbeFunc func(ctx context.Context, email, mxHost string) probe.Outcome

// Config configures the detector.
type Config struct {
	// TTL is how long a verdict is served from cache. Default: 2h
	// (deliberately longer than the MX cache: catch-all configuration
	// changes far less often than DNS).
	TTL time.Duration
	// MaxEntries bounds the cache size. Default: 10000
	MaxEntries int
}

// Detector caches per-domain catch-all verdicts.
type Detector struct {
	mu      sync.Mutex
	entries map[string]*entry
	cfg     Config
	probe   ProbeFunc
}

type entry struct {
	catchAll bool
	expires  time.Time
	done     chan struct{} // closed when detection is complete
}

// New creates a Detector that uses probeFn for its synthetic probes.
func New(cfg Config, probeFn ProbeFunc) *Detector {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	return &Detector{
		entries: make(map[string]*entry),
		cfg:     cfg,
		probe:   probeFn,
	}
}

// IsCatchAll reports whether the domain accepts any address. Concurrent
// calls for the same domain share one in-flight detection; at most one
// verdict is written per detection. A domain without mail exchangers is
// never catch-all.
func (d *Detector) IsCatchAll(ctx context.Context, domain string, mxHosts []string) bool {
	d.mu.Lock()

	if e, ok := d.entries[domain]; ok {
		select {
		case <-e.done:
			if time.Now().Before(e.expires) {
				d.mu.Unlock()
				return e.catchAll
			}
			// Expired, fall through to redetect.
		default:
			// Detection in progress - wait for it.
			d.mu.Unlock()
			select {
			case <-e.done:
				return e.catchAll
			case <-ctx.Done():
				return false
			}
		}
	}

	e := &entry{done: make(chan struct{})}
	d.evictLocked()
	d.entries[domain] = e
	d.mu.Unlock()

	e.catchAll = d.detect(ctx, domain, mxHosts)
	e.expires = time.Now().Add(d.cfg.TTL)
	close(e.done)

	return e.catchAll
}

// Len returns the number of cached verdicts (for diagnostics).
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Clear drops all cached verdicts.
func (d *Detector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]*entry)
}

// detect probes a synthetic address against the primary mail exchanger.
// Only an unambiguous acceptance classifies the domain catch-all.
func (d *Detector) detect(ctx context.Context, domain string, mxHosts []string) bool {
	if len(mxHosts) == 0 {
		return false
	}
	out := d.probe(ctx, syntheticAddress(domain), mxHosts[0])
	return out.Class == probe.ClassSuccess
}

// syntheticAddress builds a high-entropy local part that no real mailbox
// plausibly uses: 20 random lowercase letters plus a unix timestamp.
func syntheticAddress(domain string) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	buf := make([]byte, 20)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = letters[int(b)%len(letters)]
	}
	return fmt.Sprintf("%s%s@%s", buf, strconv.FormatInt(time.Now().Unix(), 10), domain)
}

// evictLocked keeps the cache within MaxEntries.
func (d *Detector) evictLocked() {
	if len(d.entries) < d.cfg.MaxEntries {
		return
	}
	now := time.Now()
	for dom, e := range d.entries {
		select {
		case <-e.done:
			if now.After(e.expires) {
				delete(d.entries, dom)
			}
		default:
		}
	}
	for len(d.entries) >= d.cfg.MaxEntries {
		var victim string
		var soonest time.Time
		for dom, e := range d.entries {
			select {
			case <-e.done:
			default:
				continue // never evict an in-flight detection
			}
			if victim == "" || e.expires.Before(soonest) {
				victim = dom
				soonest = e.expires
			}
		}
		if victim == "" {
			return
		}
		delete(d.entries, victim)
	}
}
