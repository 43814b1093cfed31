package engine

import (
	"sync"
	"sync/atomic"

	"github.com/bgforge/gnubgcore/internal/positionid"
)

// Cache constants
const (
	DefaultCacheSize = 1 << 18
	cacheEmpty       = ^uint32(0)
)

// cacheEntry stores a cached evaluation result: the five probabilities
// and a cubeful equity.
type cacheEntry struct {
	key     positionid.Key
	context uint32
	output  [NumOutputs + 1]float32
}

// cacheNode holds primary and secondary entries for a two-way associative cache
type cacheNode struct {
	primary   cacheEntry
	secondary cacheEntry
}

// EvalCache is a position evaluation cache shared by all goroutines of an
// engine. Entries are keyed by position key and evaluation context.
type EvalCache struct {
	mu       sync.Mutex
	entries  []cacheNode
	hashMask uint32

	lookups atomic.Uint64
	hits    atomic.Uint64
	adds    atomic.Uint64
}

// NewEvalCache creates a cache with room for size entries, rounded up to
// a power of two.
func NewEvalCache(size int) *EvalCache {
	if size < 2 {
		size = 2
	}
	if size > 1<<30 {
		size = 1 << 30
	}
	p := 2
	for p < size {
		p <<= 1
	}

	c := &EvalCache{
		entries:  make([]cacheNode, p/2),
		hashMask: uint32(p/2) - 1,
	}
	c.Flush()
	return c
}

// Flush clears all entries and statistics.
func (c *EvalCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		c.entries[i].primary.context = cacheEmpty
		c.entries[i].secondary.context = cacheEmpty
	}
	c.lookups.Store(0)
	c.hits.Store(0)
	c.adds.Store(0)
}

// hash mixes the position key and context with MurmurHash3 steps.
func (c *EvalCache) hash(key positionid.Key, context uint32) uint32 {
	const c1 = 0xcc9e2d51
	const c2 = 0x1b873593

	mix := func(h, k uint32) uint32 {
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2
		h ^= k
		h = (h << 13) | (h >> 19)
		return h*5 + 0xe6546b64
	}

	h := uint32(0)
	for i := 0; i < len(key); i += 4 {
		var k uint32
		for j := i; j < i+4 && j < len(key); j++ {
			k |= uint32(key[j]) << (8 * (j - i))
		}
		h = mix(h, k)
	}
	h = mix(h, context)

	h ^= uint32(len(key) + 4)
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16

	return h & c.hashMask
}

// Lookup returns the cached output for key in context.
func (c *EvalCache) Lookup(key positionid.Key, context uint32) ([NumOutputs + 1]float32, bool) {
	slot := c.hash(key, context)
	c.lookups.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	node := &c.entries[slot]
	if node.primary.context == context && node.primary.key == key {
		c.hits.Add(1)
		return node.primary.output, true
	}
	if node.secondary.context == context && node.secondary.key == key {
		// promote to primary
		node.primary, node.secondary = node.secondary, node.primary
		c.hits.Add(1)
		return node.primary.output, true
	}
	return [NumOutputs + 1]float32{}, false
}

// Add stores an evaluation, demoting the current primary entry of the slot.
func (c *EvalCache) Add(key positionid.Key, context uint32, output [NumOutputs + 1]float32) {
	slot := c.hash(key, context)

	c.mu.Lock()
	defer c.mu.Unlock()

	node := &c.entries[slot]
	node.secondary = node.primary
	node.primary = cacheEntry{key: key, context: context, output: output}
	c.adds.Add(1)
}

// Stats returns cache statistics
func (c *EvalCache) Stats() (lookups, hits, adds uint64) {
	return c.lookups.Load(), c.hits.Load(), c.adds.Load()
}

// HitRate returns the cache hit rate as a percentage
func (c *EvalCache) HitRate() float64 {
	lookups := c.lookups.Load()
	if lookups == 0 {
		return 0
	}
	return float64(c.hits.Load()) / float64(lookups) * 100
}

// evalKey packs the parts of the evaluation context and cube that change
// an evaluation at nPlies into the cache context word.
func evalKey(ec EvalContext, nPlies int, ci CubeInfo, cubefulEquity bool) uint32 {
	key := uint32(nPlies & 0xf)
	if ec.Cubeful {
		key |= 1 << 4
	}
	key |= uint32(ci.Move&1) << 5
	if nPlies > 0 && ec.Prune {
		key |= 1 << 6
	}
	key |= uint32(ci.Variant&0x7) << 26

	if nPlies > 0 || cubefulEquity {
		if ci.MatchTo > 0 {
			away0, away1 := ci.score().Away()
			if ci.Crawford {
				key |= 1 << 7
			}
			key |= uint32(away0&0x3f) << 8
			key |= uint32(away1&0x3f) << 14
			key |= uint32(logCube(max(ci.Cube, 1))&0x7) << 20
			key |= uint32((ci.Owner+1)&0x3) << 23
		} else if ec.Cubeful {
			key |= uint32((ci.Owner+1)&0x3) << 8
			if ci.Jacoby {
				key |= 1 << 10
			}
			if ci.Beavers {
				key |= 1 << 11
			}
		}
		if cubefulEquity {
			key ^= 0x6a47b47e
		}
	}
	return key
}
