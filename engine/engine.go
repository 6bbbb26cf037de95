// Package engine declares the contract between an LLC controller and a
// replacement-decision engine: the request sideband the
// controller carries in, the per-line metadata the engine owns, and the
// six operations {instantiate_entry, invalidate, on_access, on_hit,
// on_miss_insert, choose_victim} the controller drives the engine with.
//
// Per-line metadata is not stored on akita/v4/mem/cache.Block itself —
// that struct is fixed and not ours to extend — so LineMeta is an
// interface and each engine keeps its own concrete metadata in a side
// table keyed by *cache.Block, the same pattern the Nimaj2002 Akita RRIP
// VictimFinder reference uses for its per-block RRPV map.
package engine

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// LineMeta is the common, policy-agnostic view of one cache line's
// replacement state.
type LineMeta interface {
	// Valid reports whether the line holds a resident block.
	Valid() bool
	// CacheFriendly reports whether the line's owning policy currently
	// classifies it as cache-friendly. Mockingjay lines, which carry no
	// such classification, always report false.
	CacheFriendly() bool
	// ContextID returns the owning hardware thread/core identifier.
	ContextID() int
}

// LevelStats is one cache level's contribution to the request sideband
// ("cache_stats: mapping cache-level -> (miss_count,
// avg_latency)").
type LevelStats struct {
	MissCount uint64
	AvgLatency float64
}

// DRAMStats is the DRAM telemetry tuple (access count, row-hit count,
// average access latency, ready flag).
type DRAMStats struct {
	AccessCount uint64
	RowHitCount uint64
	AvgLatency float64
	Ready bool
}

// Request is the sideband a cache access MAY carry.
type Request struct {
	HasPC bool
	PC uint64
	Prefetch bool
	ContextID int

	HasCPI bool
	InstCount uint64
	NumCycles uint64

	// CacheStats maps a cache level (1=L1, 2=L2, 3=L3/LLC,...) to that
	// level's observed miss count and average access latency.
	CacheStats map[int]LevelStats

	HasDRAMStats bool
	DRAMStats DRAMStats
}

// Engine is the decision engine contract a cache controller drives.
type Engine interface {
	// InstantiateEntry returns fresh line metadata with Valid==false.
	InstantiateEntry() LineMeta

	// MetaFor returns the metadata for block, creating it via
	// InstantiateEntry on first reference. Every engine method below that
	// needs a line's metadata is reached through block identity rather
	// than a metadata pointer the caller would otherwise have to thread
	// through, because *cache.Block is the only stable handle the
	// controller holds.
	MetaFor(block *akitacache.Block) LineMeta

	// Invalidate resets block's metadata: valid<-false, friendly<-false,
	// rrpv/etr<-0.
	Invalidate(block *akitacache.Block)

	// OnAccess runs once per LLC reference regardless of hit/miss: it
	// ingests sideband statistics, ages the candidate set, and may trigger
	// the periodic partitioning/aging tasks (Hawkeye only).
	OnAccess(req *Request, hit bool, candidates []*akitacache.Block) error

	// OnHit refreshes block's metadata on a cache hit and trains the
	// predictors via the sampler.
	OnHit(block *akitacache.Block, req *Request, candidates []*akitacache.Block) error

	// OnMissInsert initializes the metadata of a newly allocated way and
	// trains the predictors via the sampler.
	OnMissInsert(block *akitacache.Block, req *Request, candidates []*akitacache.Block) error

	// ChooseVictim returns the preferred eviction candidate from a
	// non-empty candidate set; it may return nil only when the engine
	// permits bypassing the insertion entirely.
	ChooseVictim(candidates []*akitacache.Block) (*akitacache.Block, error)
}
