package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultReflectionCacheSize is the number of distinct sources a ReflectionCache keeps parsed.
const DefaultReflectionCacheSize = 512

// ReflectionCache memoizes Reflect by source text. Parsing is pure, so an evicted entry only costs
// a re-parse on next use.
type ReflectionCache struct {
	memo *lru.Cache[string, *Reflection]
}

// NewReflectionCache creates a cache holding up to size parsed sources.
//
// Parameters:
//   - size: the maximum number of memoized sources; values <= 0 select DefaultReflectionCacheSize
//
// Returns:
//   - *ReflectionCache: the created cache
//   - error: an error if the backing LRU could not be created
func NewReflectionCache(size int) (*ReflectionCache, error) {
	if size <= 0 {
		size = DefaultReflectionCacheSize
	}
	memo, err := lru.New[string, *Reflection](size)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to create reflection cache: %w", err)
	}
	return &ReflectionCache{memo: memo}, nil
}

// Reflect returns the memoized reflection of src, parsing it on first use.
//
// Parameters:
//   - src: the shader source
//
// Returns:
//   - *Reflection: the parsed metadata, shared by every caller reflecting the same text
func (c *ReflectionCache) Reflect(src *Source) *Reflection {
	if r, ok := c.memo.Get(src.Code()); ok {
		return r
	}
	r := Reflect(src.Code())
	c.memo.Add(src.Code(), r)
	common.Logger().Debug("[shader] reflected source",
		"label", src.Label(),
		"entry_points", len(r.EntryPoints),
		"bindings", len(r.Bindings))
	return r
}

// EntryPoint reflects src and selects its entry point for stage, honoring an explicit
// entry point requested on the source.
//
// Parameters:
//   - src: the shader source
//   - stage: the required pipeline stage
//
// Returns:
//   - EntryPoint: the selected entry point
//   - error: ErrEntryPointNotFound if the source does not declare it
func (c *ReflectionCache) EntryPoint(src *Source, stage Stage) (EntryPoint, error) {
	ep, err := c.Reflect(src).EntryPoint(stage, src.EntryPoint())
	if err != nil {
		if src.Label() != "" {
			return EntryPoint{}, fmt.Errorf("%s: %w", src.Label(), err)
		}
		return EntryPoint{}, err
	}
	return ep, nil
}

func (c *ReflectionCache) Len() int {
	return c.memo.Len()
}

// Purge drops every memoized reflection.
func (c *ReflectionCache) Purge() {
	c.memo.Purge()
}
