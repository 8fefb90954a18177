package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/research-pulse/pkg/metrics"
)

type point struct {
	Day   int
	Value float64
}

func newTestCaches(t *testing.T) map[string]Cache[[]point] {
	t.Helper()
	bounded, err := NewBounded[[]point](16)
	require.NoError(t, err)
	return map[string]Cache[[]point]{
		"store":   NewStore[[]point](),
		"bounded": bounded,
	}
}

func TestPutThenGet(t *testing.T) {
	for name, c := range newTestCaches(t) {
		t.Run(name, func(t *testing.T) {
			k := Key("series", "AAPL", "pe", "1y")
			c.Put(k, []point{{1, 28.4}})

			got, ok := c.Get(k)
			require.True(t, ok)
			assert.Equal(t, []point{{1, 28.4}}, got)

			_, ok = c.Get(Key("series", "AAPL", "pe", "5y"))
			assert.False(t, ok)
			assert.Equal(t, 1, c.Len())
		})
	}
}

func TestInvalidateAndClear(t *testing.T) {
	for name, c := range newTestCaches(t) {
		t.Run(name, func(t *testing.T) {
			c.Put("a", nil)
			c.Put("b", nil)

			c.Invalidate("a")
			c.Invalidate("missing")
			_, ok := c.Get("a")
			assert.False(t, ok)
			assert.Equal(t, 1, c.Len())

			c.Clear()
			assert.Zero(t, c.Len())
		})
	}
}

func TestKeyIsCollisionFree(t *testing.T) {
	pairs := [][2][]string{
		{{"a|b", "c"}, {"a", "b|c"}},
		{{`a\`, "b"}, {"a", `\b`}},
		{{`a\|b`}, {`a\`, "b"}},
		{{"", "x"}, {"x", ""}},
		{{"a", ""}, {"a"}},
		{{}, {""}},
		{{}, {`\`}},
	}
	for _, p := range pairs {
		assert.NotEqual(t, Key(p[0]...), Key(p[1]...), "%q vs %q", p[0], p[1])
	}
	assert.Equal(t, "series|AAPL|pe|1y", Key("series", "AAPL", "pe", "1y"))
	assert.Equal(t, Key("x", "y"), Key("x", "y"))
	assert.NotEmpty(t, Key())
}

// fetchStored is Fetch followed by the write-back a controller's apply
// step performs.
func fetchStored[V any](t *testing.T, c Cache[V], key string, force bool, load func(context.Context) (V, error)) (V, error) {
	t.Helper()
	f, err := Fetch(context.Background(), c, key, force, load)
	if err == nil {
		f.WriteBack(c)
	}
	return f.Value, err
}

// A key built without the period would serve one period's series for
// another. Every parameter must reach the key.
func TestOmittedParameterServesStaleResult(t *testing.T) {
	c := NewStore[string]()
	load := func(period string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) { return "series for " + period, nil }
	}

	badKey := func(subject, _ string) string { return Key("series", subject) }
	_, err := fetchStored(t, c, badKey("AAPL", "1y"), false, load("1y"))
	require.NoError(t, err)
	got, err := fetchStored(t, c, badKey("AAPL", "5y"), false, load("5y"))
	require.NoError(t, err)
	assert.Equal(t, "series for 1y", got, "incomplete key returns the wrong period")

	goodKey := func(subject, period string) string { return Key("series", subject, period) }
	c.Clear()
	_, err = fetchStored(t, c, goodKey("AAPL", "1y"), false, load("1y"))
	require.NoError(t, err)
	got, err = fetchStored(t, c, goodKey("AAPL", "5y"), false, load("5y"))
	require.NoError(t, err)
	assert.Equal(t, "series for 5y", got)
}

func TestFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("hit skips load", func(t *testing.T) {
		c := NewStore[int]()
		c.Put("k", 1)
		got, err := Fetch(ctx, c, "k", false, func(context.Context) (int, error) {
			t.Fatal("load called on hit")
			return 0, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, got.Value)
		assert.False(t, got.Loaded)
	})

	t.Run("miss loads without writing", func(t *testing.T) {
		c := NewStore[int]()
		got, err := Fetch(ctx, c, "k", false, func(context.Context) (int, error) { return 7, nil })
		require.NoError(t, err)
		assert.Equal(t, Fetched[int]{Key: "k", Value: 7, Loaded: true}, got)
		assert.Zero(t, c.Len(), "only WriteBack stores")
	})

	t.Run("write back serves later fetches", func(t *testing.T) {
		c := NewStore[int]()
		calls := 0
		load := func(context.Context) (int, error) { calls++; return 7, nil }

		for i := 0; i < 2; i++ {
			got, err := fetchStored(t, c, "k", false, load)
			require.NoError(t, err)
			assert.Equal(t, 7, got)
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("write back of a hit is a no-op", func(t *testing.T) {
		c := NewStore[int]()
		c.Put("k", 1)
		got, err := Fetch(ctx, c, "k", false, func(context.Context) (int, error) { return 2, nil })
		require.NoError(t, err)
		c.Invalidate("k")
		got.WriteBack(c)
		assert.Zero(t, c.Len())
	})

	t.Run("force refresh always loads and overwrites", func(t *testing.T) {
		c := NewStore[int]()
		c.Put("k", 1)
		calls := 0
		got, err := fetchStored(t, c, "k", true, func(context.Context) (int, error) { calls++; return 2, nil })
		require.NoError(t, err)
		assert.Equal(t, 2, got)
		assert.Equal(t, 1, calls)

		stored, _ := c.Get("k")
		assert.Equal(t, 2, stored)
	})

	t.Run("failed load keeps previous value", func(t *testing.T) {
		c := NewStore[int]()
		c.Put("k", 1)
		boom := errors.New("boom")
		got, err := fetchStored(t, c, "k", true, func(context.Context) (int, error) { return 9, boom })
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, got)

		stored, ok := c.Get("k")
		require.True(t, ok)
		assert.Equal(t, 1, stored)
	})

	t.Run("failed load does not create entry", func(t *testing.T) {
		c := NewStore[int]()
		f, err := Fetch(ctx, c, "k", false, func(context.Context) (int, error) { return 0, errors.New("x") })
		require.Error(t, err)
		f.WriteBack(c)
		assert.Zero(t, c.Len())
	})

	t.Run("cleared before write back stays empty", func(t *testing.T) {
		c := NewStore[int]()
		f, err := Fetch(ctx, c, "k", false, func(context.Context) (int, error) { return 5, nil })
		require.NoError(t, err)
		c.Clear()
		// A superseded run never reaches its write-back.
		assert.Zero(t, c.Len())
		assert.True(t, f.Loaded)
	})
}

func TestStoreStats(t *testing.T) {
	m := metrics.New()
	s := NewStore[string](WithMetrics(m))
	s.Put("a", "1")
	s.Get("a")
	s.Get("a")
	s.Get("b")
	_, _ = fetchStored(t, s, "a", true, func(context.Context) (string, error) { return "2", nil })

	assert.Equal(t, Stats{Hits: 2, Misses: 1, Entries: 1}, s.Stats())
	assert.ElementsMatch(t, []string{"a"}, s.Keys())

	n, err := testutil.GatherAndCount(m.Registry(), "research_pulse_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n) // hit, miss, bypass series
}

func TestBoundedEvictsLeastRecentlyUsed(t *testing.T) {
	b, err := NewBounded[int](2)
	require.NoError(t, err)

	b.Put("a", 1)
	b.Put("b", 2)
	_, _ = b.Get("a")
	b.Put("c", 3)

	_, ok := b.Get("b")
	assert.False(t, ok)
	_, ok = b.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), b.Evictions())
	assert.Equal(t, Stats{Hits: 2, Misses: 1, Entries: 2}, b.Stats())
}

func TestNewBoundedRejectsNonPositiveSize(t *testing.T) {
	_, err := NewBounded[int](0)
	assert.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore[int]()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				k := Key("n", strconv.Itoa(g), strconv.Itoa(i%10))
				s.Put(k, i)
				s.Get(k)
				if i%7 == 0 {
					s.Invalidate(k)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 80)
}
