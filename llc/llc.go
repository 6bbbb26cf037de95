// Package llc wires a replacement decision engine (hawkeye.Engine or
// mockingjay.Engine, both satisfying engine.Engine) into a runnable last
// level cache: an Akita directory for tag/state management, a byte-level
// data store, and a backing store for misses.
package llc

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
	"github.com/sarchlab/akita/v4/mem/vm"

	"github.com/arcsim/flock/engine"
)

// BackingStore is the next level in the memory hierarchy, satisfied by
// dram.Model.
type BackingStore interface {
	Read(addr uint64, size int) []byte
	Write(addr uint64, data []byte)
}

// Config mirrors the geometry fields of engine.Config that the cache
// itself needs to size its directory and data store.
type Config struct {
	NumCacheSets   int
	NumCacheWays   int
	CacheBlockSize int
	HitLatency     uint64
}

// Statistics holds the cache's own access counters, independent of the
// stats.Aggregator the engine feeds from the request sideband.
type Statistics struct {
	Reads     uint64
	Writes    uint64
	Hits      uint64
	Misses    uint64
	Bypassed  uint64
	Evictions uint64
}

// AccessResult is the outcome of one Read or Write call.
type AccessResult struct {
	Hit      bool
	Bypassed bool
	Latency  uint64
	Data     uint64
	Evicted  bool
}

// Cache is a last-level cache driven by an engine.Engine.
type Cache struct {
	config    Config
	engine    engine.Engine
	directory *akitacache.DirectoryImpl
	backing   BackingStore
	dataStore [][]byte
	stats     Statistics
}

// victimFinder adapts an engine.Engine to the akita directory's
// VictimFinder strategy interface (FindVictim(set *cache.Set)
// *cache.Block).
type victimFinder struct {
	eng engine.Engine
}

func (v victimFinder) FindVictim(set *akitacache.Set) *akitacache.Block {
	b, err := v.eng.ChooseVictim(set.Blocks)
	if err != nil {
		return nil
	}
	return b
}

// New builds a Cache sized per cfg, driven by eng, backed by backing.
func New(cfg Config, eng engine.Engine, backing BackingStore) *Cache {
	numSets := cfg.NumCacheSets
	totalBlocks := numSets * cfg.NumCacheWays

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, cfg.CacheBlockSize)
	}

	return &Cache{
		config: cfg,
		engine: eng,
		directory: akitacache.NewDirectory(
			numSets,
			cfg.NumCacheWays,
			cfg.CacheBlockSize,
			victimFinder{eng: eng},
		),
		backing:   backing,
		dataStore: dataStore,
	}
}

// Stats returns the cache's own access counters.
func (c *Cache) Stats() Statistics { return c.stats }

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.NumCacheWays + block.WayID
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	size := uint64(c.config.CacheBlockSize)
	return (addr / size) * size
}

// Read performs an LLC read, driving the engine's
// on_access/on_hit/on_miss_insert/choose_victim contract.
func (c *Cache) Read(req *engine.Request, addr uint64, size int) AccessResult {
	c.stats.Reads++
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(vm.PID(req.ContextID), blockAddr)
	hit := block != nil && block.IsValid

	candidates := c.candidatesFor(blockAddr)
	_ = c.engine.OnAccess(req, hit, candidates)

	if hit {
		c.stats.Hits++
		c.directory.Visit(block)
		_ = c.engine.OnHit(block, req, candidates)
		offset := addr % uint64(c.config.CacheBlockSize)
		data := extractData(c.dataStore[c.blockIndex(block)], offset, size)
		return AccessResult{Hit: true, Latency: c.config.HitLatency, Data: data}
	}

	c.stats.Misses++
	return c.handleMiss(req, addr, size, false, 0)
}

// Write performs an LLC write-allocate write.
func (c *Cache) Write(req *engine.Request, addr uint64, size int, data uint64) AccessResult {
	c.stats.Writes++
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(vm.PID(req.ContextID), blockAddr)
	hit := block != nil && block.IsValid

	candidates := c.candidatesFor(blockAddr)
	_ = c.engine.OnAccess(req, hit, candidates)

	if hit {
		c.stats.Hits++
		c.directory.Visit(block)
		_ = c.engine.OnHit(block, req, candidates)
		offset := addr % uint64(c.config.CacheBlockSize)
		storeData(c.dataStore[c.blockIndex(block)], offset, size, data)
		block.IsDirty = true
		return AccessResult{Hit: true, Latency: c.config.HitLatency}
	}

	c.stats.Misses++
	return c.handleMiss(req, addr, size, true, data)
}

// candidatesFor returns every way in the set blockAddr maps to, using
// the same direct-mapped-sets arithmetic the directory itself uses
// internally (block-aligned address divided by block size, modulo the
// set count).
func (c *Cache) candidatesFor(blockAddr uint64) []*akitacache.Block {
	setIdx := int((blockAddr / uint64(c.config.CacheBlockSize)) % uint64(c.config.NumCacheSets))
	sets := c.directory.GetSets()
	if setIdx < 0 || setIdx >= len(sets) {
		return nil
	}
	return sets[setIdx].Blocks
}

func (c *Cache) handleMiss(req *engine.Request, addr uint64, size int, isWrite bool, writeData uint64) AccessResult {
	blockAddr := c.blockAddr(addr)
	candidates := c.candidatesFor(blockAddr)

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		c.stats.Bypassed++
		return AccessResult{Hit: false, Bypassed: true}
	}

	result := AccessResult{Hit: false}
	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		if victim.IsDirty && c.backing != nil {
			c.backing.Write(victim.Tag, victimData)
		}
		c.engine.Invalidate(victim)
	}

	if c.backing != nil {
		copy(victimData, c.backing.Read(blockAddr, c.config.CacheBlockSize))
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false

	if isWrite {
		offset := addr % uint64(c.config.CacheBlockSize)
		storeData(victimData, offset, size, writeData)
		victim.IsDirty = true
	} else {
		offset := addr % uint64(c.config.CacheBlockSize)
		result.Data = extractData(victimData, offset, size)
	}

	if err := c.engine.OnMissInsert(victim, req, candidates); err != nil {
		return AccessResult{Hit: false, Bypassed: true}
	}
	if !c.engine.MetaFor(victim).Valid() {
		result.Bypassed = true
		c.stats.Bypassed++
	}

	c.directory.Visit(victim)
	return result
}

// Invalidate removes addr from the cache without writeback.
func (c *Cache) Invalidate(addr uint64) {
	block := c.directory.Lookup(vm.PID(0), c.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
		c.engine.Invalidate(block)
	}
}

// Reset invalidates every line and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}
	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}
	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
