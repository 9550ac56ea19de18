package mxcache_test

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/leadsnipe/verifykit/internal/mxcache"
)

// mockResolver tracks how many times LookupMX was called.
type mockResolver struct {
	records []*net.MX
	err     error
	calls   atomic.Int64
}

func (m *mockResolver) LookupMX(_ context.Context, _ string) ([]*net.MX, error) {
	m.calls.Add(1)
	return m.records, m.err
}

func TestCache_BasicCaching(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx.example.com.", Pref: 10}},
	}
	c := mxcache.New(mxcache.Config{TTL: time.Minute, Resolver: r})

	// First call: actual lookup.
	hosts := c.Resolve(context.Background(), "example.com")
	assert.Equal(t, []string{"mx.example.com"}, hosts)
	assert.Equal(t, int64(1), r.calls.Load())

	// Second call: cached.
	hosts = c.Resolve(context.Background(), "example.com")
	assert.Equal(t, []string{"mx.example.com"}, hosts)
	assert.Equal(t, int64(1), r.calls.Load()) // still 1, no new lookup
}

func TestCache_OrderedByPreference(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{
			{Host: "backup.example.com.", Pref: 20},
			{Host: "primary.example.com.", Pref: 5},
			{Host: "secondary.example.com.", Pref: 10},
		},
	}
	c := mxcache.New(mxcache.Config{Resolver: r})

	hosts := c.Resolve(context.Background(), "example.com")
	assert.Equal(t, []string{
		"primary.example.com",
		"secondary.example.com",
		"backup.example.com",
	}, hosts)
}

func TestCache_DifferentDomains(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
	}
	c := mxcache.New(mxcache.Config{Resolver: r})

	c.Resolve(context.Background(), "a.com")
	c.Resolve(context.Background(), "b.com")
	assert.Equal(t, int64(2), r.calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
	}
	c := mxcache.New(mxcache.Config{TTL: 50 * time.Millisecond, Resolver: r})

	c.Resolve(context.Background(), "example.com")
	assert.Equal(t, int64(1), r.calls.Load())

	time.Sleep(100 * time.Millisecond) // wait for expiry

	c.Resolve(context.Background(), "example.com")
	assert.Equal(t, int64(2), r.calls.Load()) // refreshed
}

func TestCache_Singleflight(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
	}
	c := mxcache.New(mxcache.Config{Resolver: r})

	// Launch many concurrent resolutions for the same domain.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hosts := c.Resolve(context.Background(), "example.com")
			assert.Len(t, hosts, 1)
		}()
	}
	wg.Wait()

	// Should have performed only 1 actual lookup.
	assert.Equal(t, int64(1), r.calls.Load())
}

func TestCache_NegativeCaching(t *testing.T) {
	r := &mockResolver{
		err: &net.DNSError{Err: "no such host", IsNotFound: true},
	}
	c := mxcache.New(mxcache.Config{
		NegativeTTL: 50 * time.Millisecond,
		Resolver:    r,
	})

	// DNS failure yields an empty list, never an error.
	hosts := c.Resolve(context.Background(), "bad.com")
	assert.Empty(t, hosts)
	assert.Equal(t, int64(1), r.calls.Load())

	// Within the negative TTL the failure is served from cache.
	hosts = c.Resolve(context.Background(), "bad.com")
	assert.Empty(t, hosts)
	assert.Equal(t, int64(1), r.calls.Load())

	// After the negative TTL a fresh lookup is allowed to recover.
	time.Sleep(100 * time.Millisecond)
	c.Resolve(context.Background(), "bad.com")
	assert.Equal(t, int64(2), r.calls.Load())
}

func TestCache_EmptyRecordsNegativelyCached(t *testing.T) {
	r := &mockResolver{records: nil, err: nil}
	c := mxcache.New(mxcache.Config{Resolver: r})

	hosts := c.Resolve(context.Background(), "nomx.com")
	assert.Empty(t, hosts)
	c.Resolve(context.Background(), "nomx.com")
	assert.Equal(t, int64(1), r.calls.Load())
}

func TestCache_ReturnsCopy(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx1.", Pref: 10}, {Host: "mx2.", Pref: 20}},
	}
	c := mxcache.New(mxcache.Config{Resolver: r})

	h1 := c.Resolve(context.Background(), "example.com")
	h2 := c.Resolve(context.Background(), "example.com")

	// Mutating one copy should not affect the other.
	h1[0] = "modified"
	assert.NotEqual(t, h1[0], h2[0])
}

func TestCache_BoundedSize(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
	}
	c := mxcache.New(mxcache.Config{MaxEntries: 5, Resolver: r})

	domains := []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "g.com"}
	for _, d := range domains {
		c.Resolve(context.Background(), d)
	}
	assert.LessOrEqual(t, c.Len(), 5)
}

func TestCache_Clear(t *testing.T) {
	r := &mockResolver{
		records: []*net.MX{{Host: "mx.test.", Pref: 10}},
	}
	c := mxcache.New(mxcache.Config{Resolver: r})

	c.Resolve(context.Background(), "example.com")
	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())

	c.Resolve(context.Background(), "example.com")
	assert.Equal(t, int64(2), r.calls.Load())
}

// slowResolver blocks until released, to exercise waiter cancellation.
type slowResolver struct {
	release chan struct{}
}

func (s *slowResolver) LookupMX(ctx context.Context, _ string) ([]*net.MX, error) {
	select {
	case <-s.release:
		return []*net.MX{{Host: "mx.test.", Pref: 10}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCache_WaiterHonorsContext(t *testing.T) {
	s := &slowResolver{release: make(chan struct{})}
	c := mxcache.New(mxcache.Config{Resolver: s})

	go c.Resolve(context.Background(), "slow.com")
	time.Sleep(20 * time.Millisecond) // let the first lookup start

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		hosts := c.Resolve(ctx, "slow.com")
		assert.Nil(t, hosts)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter did not honor context cancellation")
	}
	close(s.release)
}
