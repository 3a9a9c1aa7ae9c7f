package server

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/semql/pkg/mdl"
	"github.com/leapstack-labs/semql/pkg/transform"
)

const defaultCacheSize = 64

// Cache holds analyzed manifests keyed by content hash, evicting the least
// recently used. Concurrent requests for the same uncached manifest share
// one analysis. Plans are never cached.
type Cache struct {
	tables  map[string]mdl.DataSource
	entries *lru.Cache[string, *transform.AnalyzedModel]
	group   singleflight.Group
}

// NewCache creates a cache holding at most size manifests; size <= 0
// means a default. tables are registered in every analysis.
func NewCache(size int, tables map[string]mdl.DataSource) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	// lru.New only fails for a non-positive size
	entries, _ := lru.New[string, *transform.AnalyzedModel](size)
	return &Cache{tables: tables, entries: entries}
}

// Get returns the analysis of m, analyzing it on a miss.
func (c *Cache) Get(m *mdl.Manifest) (*transform.AnalyzedModel, error) {
	hash, err := m.Hash()
	if err != nil {
		return nil, err
	}
	if am, ok := c.entries.Get(hash); ok {
		return am, nil
	}

	v, err, _ := c.group.Do(hash, func() (any, error) {
		if am, ok := c.entries.Get(hash); ok {
			return am, nil
		}
		am, err := transform.Analyze(m, transform.WithTables(c.tables))
		if err != nil {
			return nil, fmt.Errorf("analyze manifest: %w", err)
		}
		c.entries.Add(hash, am)
		return am, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*transform.AnalyzedModel), nil
}

// Len returns the number of cached manifests.
func (c *Cache) Len() int {
	return c.entries.Len()
}
