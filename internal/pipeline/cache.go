package pipeline

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"tracestat/internal/classify"
)

// blockKey identifies a fetched block. The raw address keeps the privilege
// bit, so the same code run in user and kernel context is cached twice.
type blockKey struct {
	addr    uint64
	payload string
}

// blockCache maps blocks to their classified instructions. Cached slices
// are shared and must not be modified.
type blockCache struct {
	cache *lru.Cache[blockKey, []classify.Facts]
}

func newBlockCache(size int) (*blockCache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[blockKey, []classify.Facts](size)
	if err != nil {
		return nil, err
	}
	return &blockCache{cache: c}, nil
}

func (c *blockCache) Get(k blockKey) ([]classify.Facts, bool) {
	if c == nil {
		return nil, false
	}
	return c.cache.Get(k)
}

func (c *blockCache) Add(k blockKey, facts []classify.Facts) {
	if c == nil {
		return
	}
	c.cache.Add(k, facts)
}

func (c *blockCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
