package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache() (*Cache, *clock) {
	clk := &clock{t: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)}
	return NewWithClock(clk.now), clk
}

func TestCache_GetTTL(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		elapsed time.Duration
		wantHit bool
	}{
		{name: "fresh", ttl: time.Minute, elapsed: 0, wantHit: true},
		{name: "before expiry", ttl: time.Minute, elapsed: 59 * time.Second, wantHit: true},
		{name: "exactly at ttl", ttl: time.Minute, elapsed: time.Minute, wantHit: true},
		{name: "after expiry", ttl: time.Minute, elapsed: time.Minute + time.Millisecond, wantHit: false},
		{name: "long after expiry", ttl: 30 * time.Second, elapsed: time.Hour, wantHit: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clk := newTestCache()
			c.Set("tracks", []string{"frontend", "backend"}, tt.ttl)
			clk.advance(tt.elapsed)

			v, ok := c.Get("tracks")
			assert.Equal(t, tt.wantHit, ok)
			if tt.wantHit {
				assert.Equal(t, []string{"frontend", "backend"}, v)
			} else {
				assert.Nil(t, v)
				assert.Equal(t, 0, c.Len(), "expired entry should be evicted")
			}
		})
	}
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache()
	c.Set("cohorts", 1, time.Hour)
	c.Set("tracks", 2, time.Hour)

	c.Invalidate("cohorts")

	_, ok := c.Get("cohorts")
	assert.False(t, ok)
	v, ok := c.Get("tracks")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	c.Invalidate("unknown") // no-op
}

func TestCache_InvalidatePattern(t *testing.T) {
	c, _ := newTestCache()
	c.Set("weeks:t1", 1, time.Hour)
	c.Set("weeks:t2", 2, time.Hour)
	c.Set("enrollments:t1:c1", 3, time.Hour)
	c.Set("tracks", 4, time.Hour)

	c.InvalidatePattern("t1")

	_, ok := c.Get("weeks:t1")
	assert.False(t, ok)
	_, ok = c.Get("enrollments:t1:c1")
	assert.False(t, ok)
	_, ok = c.Get("weeks:t2")
	assert.True(t, ok)
	_, ok = c.Get("tracks")
	assert.True(t, ok)
}

func TestFetch(t *testing.T) {
	c, clk := newTestCache()
	calls := 0
	load := func() ([]int, error) {
		calls++
		return []int{calls}, nil
	}

	v, err := Fetch(c, "k", time.Minute, load)
	assert.NoError(t, err)
	assert.Equal(t, []int{1}, v)

	v, err = Fetch(c, "k", time.Minute, load)
	assert.NoError(t, err)
	assert.Equal(t, []int{1}, v, "second call should be served from cache")
	assert.Equal(t, 1, calls)

	clk.advance(2 * time.Minute)
	v, err = Fetch(c, "k", time.Minute, load)
	assert.NoError(t, err)
	assert.Equal(t, []int{2}, v)

	errBoom := errors.New("boom")
	c.Invalidate("k")
	_, err = Fetch(c, "k", time.Minute, func() ([]int, error) { return nil, errBoom })
	assert.Equal(t, errBoom, err)
	_, ok := c.Get("k")
	assert.False(t, ok, "errors must not be cached")
}

func TestFetch_NilCache(t *testing.T) {
	v, err := Fetch[int](nil, "k", time.Minute, func() (int, error) { return 7, nil })
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCache_NilIsEmpty(t *testing.T) {
	var c *Cache
	assert.NotPanics(t, func() {
		c.Set("k", 1, time.Minute)
		c.Invalidate("k")
		c.InvalidatePattern("k")
	})
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}
