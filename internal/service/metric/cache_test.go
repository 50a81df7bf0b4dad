package metric

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/catalogmf/catalog/internal/model"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time      { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t = f.t.Add(d) }
func newTestCache(size int, age time.Duration) (*QueryCache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewQueryCache(size, age)
	c.now = clk.now
	return c, clk
}

func TestQueryCacheGetSet(t *testing.T) {
	assert := assert.New(t)

	c, clk := newTestCache(4, 6*time.Second)
	p := &model.MetricsPayload{RefreshedAt: 1000}

	_, ok := c.Get("metrics")
	assert.False(ok, "empty cache should miss")

	c.Set("metrics", p)
	got, ok := c.Get("metrics")
	assert.True(ok)
	assert.Same(p, got)

	clk.add(6 * time.Second)
	_, ok = c.Get("metrics")
	assert.False(ok, "expired entries should not be returned")

	stats := c.Stats()
	assert.Equal(int64(1), stats.Hits)
	assert.Equal(int64(2), stats.Misses)
	assert.Equal(0, stats.Size)
}

func TestQueryCacheEvictsWhenFull(t *testing.T) {
	assert := assert.New(t)

	c, clk := newTestCache(2, time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("q%d", i), &model.MetricsPayload{RefreshedAt: int64(i)})
		clk.add(time.Second)
	}

	_, ok := c.Get("q0")
	assert.False(ok, "the oldest entry should be evicted")
	_, ok = c.Get("q2")
	assert.True(ok)
	assert.Equal(2, c.Stats().Size)
}

func TestQueryCacheClear(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("metrics", &model.MetricsPayload{})
	c.Get("metrics")
	c.Clear()

	assert.Equal(t, CacheStats{}, c.Stats())
}
