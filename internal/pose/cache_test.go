package pose

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolationCache(t *testing.T) {
	t.Parallel()

	frameFor := func(i int) *ReconciledFrame {
		return &ReconciledFrame{FrameNumber: i, Interpolated: true}
	}

	t.Run("hit after add", func(t *testing.T) {
		t.Parallel()
		cache := NewInterpolationCache(4)
		cache.Add(10, 20, 0.5, frameFor(15))

		got := cache.Get(10, 20, 0.5)
		require.NotNil(t, got)
		assert.Equal(t, 15, got.FrameNumber)
	})

	t.Run("miss on different factor", func(t *testing.T) {
		t.Parallel()
		cache := NewInterpolationCache(4)
		cache.Add(10, 20, 0.5, frameFor(15))
		assert.Nil(t, cache.Get(10, 20, 0.6))
	})

	t.Run("factor rounding folds float jitter", func(t *testing.T) {
		t.Parallel()
		cache := NewInterpolationCache(4)
		cache.Add(10, 20, 0.5, frameFor(15))
		assert.NotNil(t, cache.Get(10, 20, 0.5000001))
	})

	t.Run("least recently used entry is evicted", func(t *testing.T) {
		t.Parallel()
		cache := NewInterpolationCache(2)
		cache.Add(0, 10, 0.1, frameFor(1))
		cache.Add(0, 10, 0.2, frameFor(2))

		// Touch the first entry so the second becomes the eviction victim.
		require.NotNil(t, cache.Get(0, 10, 0.1))

		cache.Add(0, 10, 0.3, frameFor(3))
		assert.NotNil(t, cache.Get(0, 10, 0.1))
		assert.Nil(t, cache.Get(0, 10, 0.2))
		assert.NotNil(t, cache.Get(0, 10, 0.3))
		assert.Equal(t, 2, cache.Len())
	})

	t.Run("purge drops everything", func(t *testing.T) {
		t.Parallel()
		cache := NewInterpolationCache(4)
		cache.Add(0, 10, 0.1, frameFor(1))
		cache.Add(0, 10, 0.2, frameFor(2))

		cache.Purge()
		assert.Zero(t, cache.Len())
		assert.Nil(t, cache.Get(0, 10, 0.1))
	})

	t.Run("concurrent readers and writers", func(t *testing.T) {
		t.Parallel()
		cache := NewInterpolationCache(32)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					factor := float64(i%10) / 10
					if cache.Get(0, 100, factor) == nil {
						cache.Add(0, 100, factor, frameFor(i%10))
					}
				}
			}(g)
		}
		wg.Wait()

		assert.LessOrEqual(t, cache.Len(), 32)
	})

	t.Run("refreshing an existing key keeps one entry", func(t *testing.T) {
		t.Parallel()
		cache := NewInterpolationCache(4)
		cache.Add(0, 10, 0.5, frameFor(5))
		cache.Add(0, 10, 0.5, frameFor(5))
		assert.Equal(t, 1, cache.Len())
	})
}

func TestCacheKeyDistinguishesBoundPairs(t *testing.T) {
	t.Parallel()

	cache := NewInterpolationCache(8)
	for pair := 0; pair < 4; pair++ {
		cache.Add(pair*10, pair*10+10, 0.5, &ReconciledFrame{FrameNumber: pair})
	}
	for pair := 0; pair < 4; pair++ {
		got := cache.Get(pair*10, pair*10+10, 0.5)
		require.NotNil(t, got, fmt.Sprintf("pair %d", pair))
		assert.Equal(t, pair, got.FrameNumber)
	}
}
