package http

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"homeinspect/internal/core"
	"homeinspect/internal/metrics"
)

// matrixCache holds grouped completion matrices per owner. Entries are
// dropped whenever that owner's uploads change through this process.
//
// Each owner has a generation bumped by invalidate. A matrix built from a
// read that started before an invalidation is never stored.
type matrixCache struct {
	cache *expirable.LRU[string, core.CompletionMatrix]

	mu   sync.Mutex
	gens map[string]uint64
}

func newMatrixCache(size int, ttl time.Duration) *matrixCache {
	if size <= 0 {
		size = 256
	}
	return &matrixCache{
		cache: expirable.NewLRU[string, core.CompletionMatrix](size, nil, ttl),
		gens:  make(map[string]uint64),
	}
}

func (c *matrixCache) get(ownerID string) (core.CompletionMatrix, bool) {
	m, ok := c.cache.Get(ownerID)
	metrics.MatrixCache(ok)
	return m, ok
}

// generation returns the owner's current generation. Read it before
// fetching the records a matrix is built from.
func (c *matrixCache) generation(ownerID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[ownerID]
}

// set stores m only if no invalidation happened since gen was read.
func (c *matrixCache) set(ownerID string, gen uint64, m core.CompletionMatrix) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[ownerID] != gen {
		return false
	}
	c.cache.Add(ownerID, m)
	return true
}

func (c *matrixCache) invalidate(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[ownerID]++
	c.cache.Remove(ownerID)
}
