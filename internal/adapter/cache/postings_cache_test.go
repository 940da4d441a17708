package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ranker/internal/domain"
)

func TestPostingsCache_GetPut(t *testing.T) {
	c := NewPostingsCache(2)
	require.NotNil(t, c)

	list := domain.PostingsList{{DocID: 1, Frequency: 1, Positions: []int{0}}}
	c.Put("CONTENT", "obama", list)

	got, ok := c.Get("CONTENT", "obama")
	require.True(t, ok)
	assert.Equal(t, list, got)

	_, ok = c.Get("FIRST_LINE", "obama")
	assert.False(t, ok, "fields are cached separately")

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestPostingsCache_Evicts(t *testing.T) {
	c := NewPostingsCache(2)
	c.Put("CONTENT", "a", nil)
	c.Put("CONTENT", "b", nil)
	c.Put("CONTENT", "c", nil)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("CONTENT", "a")
	assert.False(t, ok)
}

func TestPostingsCache_Disabled(t *testing.T) {
	c := NewPostingsCache(0)
	assert.Nil(t, c)

	c.Put("CONTENT", "a", domain.PostingsList{{DocID: 0}})
	_, ok := c.Get("CONTENT", "a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
