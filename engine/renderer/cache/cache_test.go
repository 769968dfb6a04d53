package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairKey struct {
	owner *int
	tag   string
}

func TestCacheGetOrCreateMemoizes(t *testing.T) {
	c := New[pairKey, int]()
	owner := new(int)
	calls := 0
	create := func() (int, Cleanup, error) {
		calls++
		return 42, nil, nil
	}

	v1, err := c.GetOrCreate(pairKey{owner, "a"}, create)
	require.NoError(t, err)
	v2, err := c.GetOrCreate(pairKey{owner, "a"}, create)
	require.NoError(t, err)

	assert.Equal(t, 42, v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestCacheKeysUseReferenceIdentity(t *testing.T) {
	c := New[pairKey, string]()
	a, b := new(int), new(int)
	c.Put(pairKey{a, "x"}, "a", nil)

	_, ok := c.Get(pairKey{b, "x"})
	assert.False(t, ok, "structurally equal owners must not share an entry")
	v, ok := c.Get(pairKey{a, "x"})
	assert.True(t, ok)
	assert.Equal(t, "a", v)
}

func TestCacheGetOrCreateErrorStoresNothing(t *testing.T) {
	c := New[string, int]()
	_, err := c.GetOrCreate("k", func() (int, Cleanup, error) { return 0, nil, errors.New("boom") })
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCacheEvictRunsCleanupOnce(t *testing.T) {
	c := New[string, int]()
	cleaned := 0
	c.Put("k", 1, func() { cleaned++ })

	assert.True(t, c.Evict("k"))
	assert.False(t, c.Evict("k"))
	assert.Equal(t, 1, cleaned)
}

func TestCachePutReplacesAndCleansPrevious(t *testing.T) {
	c := New[string, int]()
	cleaned := 0
	c.Put("k", 1, func() { cleaned++ })
	c.Put("k", 2, nil)

	v, _ := c.Get("k")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, cleaned)
}

func TestCacheEvictFunc(t *testing.T) {
	c := New[pairKey, int]()
	a, b := new(int), new(int)
	var cleaned []string
	c.Put(pairKey{a, "1"}, 1, func() { cleaned = append(cleaned, "a1") })
	c.Put(pairKey{a, "2"}, 2, func() { cleaned = append(cleaned, "a2") })
	c.Put(pairKey{b, "1"}, 3, func() { cleaned = append(cleaned, "b1") })

	n := c.EvictFunc(func(k pairKey, _ int) bool { return k.owner == a })

	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"a1", "a2"}, cleaned)
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvictFuncCleanupMayReenter(t *testing.T) {
	c := New[string, int]()
	c.Put("outer", 1, func() { c.Evict("inner") })
	c.Put("inner", 2, nil)

	c.EvictFunc(func(k string, _ int) bool { return k == "outer" })
	assert.Equal(t, 0, c.Len())
}

func TestCachePurge(t *testing.T) {
	c := New[string, int]()
	cleaned := 0
	for _, k := range []string{"a", "b", "c"} {
		c.Put(k, 0, func() { cleaned++ })
	}
	c.Purge()
	assert.Equal(t, 3, cleaned)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
}
