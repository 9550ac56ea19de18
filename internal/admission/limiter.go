// Package admission enforces the two probe admission caps: a global
// outstanding-probe limit and a per-domain limit. The per-domain cap keeps
// one unresponsive or defensive mail host from starving throughput to
// other domains or triggering anti-abuse blocking.
package admission

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Limiter composes a global and a per-domain bounded-resource guard.
// Acquisition order is fixed (global first, then domain) and release
// happens in reverse, so the two caps can never deadlock each other.
type Limiter struct {
	global    *semaphore.Weighted
	perDomain int64

	mu      sync.Mutex
	domains map[string]*domainSlot
}

// domainSlot is refcounted so the map stays bounded: the slot is dropped
// as soon as no caller holds or waits on it.
type domainSlot struct {
	sem  *semaphore.Weighted
	refs int
}

// New creates a Limiter with the given caps. Both must be positive.
func New(globalCap, perDomainCap int) *Limiter {
	return &Limiter{
		global:    semaphore.NewWeighted(int64(globalCap)),
		perDomain: int64(perDomainCap),
		domains:   make(map[string]*domainSlot),
	}
}

// Acquire blocks until both a global and a domain slot are available, or
// the context is cancelled. On success it returns a release func that is
// safe to call exactly once on every exit path; it is idempotent so a
// deferred call after an explicit one is harmless.
func (l *Limiter) Acquire(ctx context.Context, domain string) (release func(), err error) {
	if err := l.global.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	slot := l.retain(domain)
	if err := slot.sem.Acquire(ctx, 1); err != nil {
		l.releaseSlot(domain, slot)
		l.global.Release(1)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			l.releaseSlot(domain, slot)
			l.global.Release(1)
		})
	}, nil
}

// DomainCount returns the number of tracked domain slots (for diagnostics).
func (l *Limiter) DomainCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.domains)
}

func (l *Limiter) retain(domain string) *domainSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.domains[domain]
	if !ok {
		slot = &domainSlot{sem: semaphore.NewWeighted(l.perDomain)}
		l.domains[domain] = slot
	}
	slot.refs++
	return slot
}

func (l *Limiter) releaseSlot(domain string, slot *domainSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.domains, domain)
	}
}
