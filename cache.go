package entitlement

import (
	"sync"

	"github.com/dgraph-io/ristretto"
)

// DecisionCache memoizes eligibility decisions keyed by content id. The
// key is deliberately content scoped, not subject scoped: license-backed
// content dominates, and a license-sourced entry carries enough state to
// stay correct for every querying subject. Entries carry no TTL; they are
// corrected only by the engine's license mutations or overwritten by the
// read-through path.
//
// Implementations must be safe for concurrent use, and a Put for a key
// must be visible to subsequent Gets for that key.
type DecisionCache interface {
	Get(contentID string) (*EligibilityDecision, bool)
	Put(contentID string, decision *EligibilityDecision)
	Invalidate(contentID string)
}

// MemoryDecisionCache is the default mutex-guarded map cache.
type MemoryDecisionCache struct {
	mu      sync.RWMutex
	entries map[string]*EligibilityDecision
}

func NewMemoryDecisionCache() *MemoryDecisionCache {
	return &MemoryDecisionCache{entries: make(map[string]*EligibilityDecision)}
}

func (c *MemoryDecisionCache) Get(contentID string) (*EligibilityDecision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[contentID]
	return d, ok
}

func (c *MemoryDecisionCache) Put(contentID string, decision *EligibilityDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[contentID] = decision
}

func (c *MemoryDecisionCache) Invalidate(contentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, contentID)
}

// Len reports the number of cached entries.
func (c *MemoryDecisionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RistrettoDecisionCache backs the decision cache with dgraph-io/ristretto
// for deployments with large content catalogs. Every Set is followed by
// Wait so the write is visible to subsequent reads of the same key.
type RistrettoDecisionCache struct {
	cache *ristretto.Cache
}

// NewRistrettoDecisionCache builds a ristretto-backed cache. Zero or
// negative sizing values fall back to defaults suitable for ~100k entries.
func NewRistrettoDecisionCache(numCounters, maxCost, bufferItems int64) (*RistrettoDecisionCache, error) {
	if numCounters <= 0 {
		numCounters = 1e6
	}
	if maxCost <= 0 {
		maxCost = 1e5
	}
	if bufferItems <= 0 {
		bufferItems = 64
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoDecisionCache{cache: c}, nil
}

func (c *RistrettoDecisionCache) Get(contentID string) (*EligibilityDecision, bool) {
	v, ok := c.cache.Get(contentID)
	if !ok {
		return nil, false
	}
	d, ok := v.(*EligibilityDecision)
	return d, ok
}

func (c *RistrettoDecisionCache) Put(contentID string, decision *EligibilityDecision) {
	c.cache.Set(contentID, decision, 1)
	c.cache.Wait()
}

func (c *RistrettoDecisionCache) Invalidate(contentID string) {
	c.cache.Del(contentID)
}

// Close releases the ristretto goroutines.
func (c *RistrettoDecisionCache) Close() {
	c.cache.Close()
}
