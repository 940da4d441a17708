package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"ranker/internal/domain"
)

// PostingsCache keeps decoded postings lists of one snapshot. Snapshots are
// immutable, so entries never need invalidation. A nil *PostingsCache is a
// valid, always-missing cache.
type PostingsCache struct {
	cache  *lru.Cache[string, domain.PostingsList]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPostingsCache returns nil when size is not positive.
func NewPostingsCache(size int) *PostingsCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, domain.PostingsList](size)
	if err != nil {
		return nil
	}
	return &PostingsCache{cache: c}
}

func cacheKey(field, term string) string {
	return field + "\x00" + term
}

func (c *PostingsCache) Get(field, term string) (domain.PostingsList, bool) {
	if c == nil {
		return nil, false
	}
	list, ok := c.cache.Get(cacheKey(field, term))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return list, ok
}

func (c *PostingsCache) Put(field, term string, list domain.PostingsList) {
	if c == nil {
		return
	}
	c.cache.Add(cacheKey(field, term), list)
}

func (c *PostingsCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// Stats reports hit and miss counts since creation.
func (c *PostingsCache) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
