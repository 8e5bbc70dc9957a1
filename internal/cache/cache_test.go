package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPut(t *testing.T) {
	c := New[string]()

	_, ok := c.Get("home")
	assert.False(t, ok)

	c.Put("home", "rendered", []string{"layouts/main"})
	v, ok := c.Get("home")
	require.True(t, ok)
	assert.Equal(t, "rendered", v)

	deps, ok := c.Dependencies("home")
	require.True(t, ok)
	assert.Equal(t, []string{"home", "layouts/main"}, deps)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Stores)
	assert.Equal(t, 1, stats.Entries)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestPutReplacesWholesale(t *testing.T) {
	c := New[int]()
	c.Put("v", 1, []string{"a", "b"})
	c.Put("v", 2, []string{"c"})

	v, _ := c.Get("v")
	assert.Equal(t, 2, v)
	deps, _ := c.Dependencies("v")
	assert.Equal(t, []string{"c", "v"}, deps)

	assert.Empty(t, c.Invalidate("a"))
}

func TestInvalidateByDependency(t *testing.T) {
	c := New[string]()
	c.Put("home", "h", []string{"layouts/main", "partials/nav"})
	c.Put("about", "a", []string{"layouts/main"})
	c.Put("contact", "c", []string{"partials/form"})

	removed := c.Invalidate("layouts/main")
	assert.Equal(t, []string{"about", "home"}, removed)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("contact")
	assert.True(t, ok)

	assert.Equal(t, []string{"contact"}, c.Invalidate("contact"))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(3), c.Stats().Invalidations)
}

func TestPutIfCurrentDropsStaleValues(t *testing.T) {
	c := New[string]()

	gen := c.Generation()
	assert.True(t, c.PutIfCurrent("page", "v1", []string{"layout"}, gen))

	// an invalidation that finds nothing to remove still moves the generation
	stale := c.Generation()
	assert.Empty(t, c.Invalidate("partials/unrelated"))
	assert.NotEqual(t, stale, c.Generation())
	assert.False(t, c.PutIfCurrent("other", "old", nil, stale))
	_, ok := c.Get("other")
	assert.False(t, ok)

	// the entry stored before the invalidation is untouched
	v, ok := c.Get("page")
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	assert.True(t, c.PutIfCurrent("other", "new", nil, c.Generation()))
	assert.Equal(t, int64(2), c.Stats().Stores)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		key := fmt.Sprintf("view-%d", i%5)
		go func(i int) {
			defer wg.Done()
			c.Put(key, i, []string{"shared"})
		}(i)
		go func() {
			defer wg.Done()
			c.Get(key)
		}()
		go func() {
			defer wg.Done()
			c.Invalidate("shared")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 5)
	stats := c.Stats()
	assert.Equal(t, int64(50), stats.Hits+stats.Misses)
	assert.Equal(t, int64(50), stats.Stores)
}
