// Package stats is the replacement core's statistics aggregator:
// per-core, per-level miss/instruction/latency counters, CPI, and DRAM
// row-hit tracking, fed by the request sideband each engine ingests on
// every access and consumed by flock's FCP computation.
package stats

// LevelCounters holds one (core, cache level)'s running totals.
type LevelCounters struct {
	MissCount  uint64
	InstCount  uint64
	AvgLatency float64
}

// MissRate returns MissCount/InstCount, or 0 if no instructions have been
// observed yet.
func (c LevelCounters) MissRate() float64 {
	if c.InstCount == 0 {
		return 0
	}
	return float64(c.MissCount) / float64(c.InstCount)
}

// CPICounters holds one core's cycle/instruction totals for CPI.
type CPICounters struct {
	Cycles       uint64
	Instructions uint64
}

// CPI returns Cycles/Instructions, or 1 if no instructions have retired
// yet (so a core with no activity has its FCP gain divided by 1 rather
// than by zero).
func (c CPICounters) CPI() float64 {
	if c.Instructions == 0 {
		return 1
	}
	return float64(c.Cycles) / float64(c.Instructions)
}

// DRAMCounters is the DRAM telemetry tuple reported by the memory
// controller.
type DRAMCounters struct {
	AccessCount uint64
	RowHitCount uint64
	AvgLatency  float64
	Ready       bool
}

// RowHitRate returns RowHitCount/AccessCount, or 0 if there have been no
// accesses yet.
func (d DRAMCounters) RowHitRate() float64 {
	if d.AccessCount == 0 {
		return 0
	}
	return float64(d.RowHitCount) / float64(d.AccessCount)
}

type levelKey struct {
	core  int
	level int
}

// Aggregator is the per-cache-instance statistics state.
type Aggregator struct {
	levels map[levelKey]LevelCounters
	cpi    map[int]CPICounters
	dram   DRAMCounters
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		levels: make(map[levelKey]LevelCounters),
		cpi:    make(map[int]CPICounters),
	}
}

// IngestLevel applies a cache-level stat update for one core, accepting it
// only if both missCount and instCount are monotonically non-decreasing
// relative to the last observed value for that (core, level) pair.
// Returns whether the update was applied.
//
// Some callers double-count L2 misses upstream (misses_l2 =
// cache_stats[l2].first + cache_stats[l2].first); this implementation
// ingests missCount exactly as given and is not to be called with a
// pre-doubled value.
func (a *Aggregator) IngestLevel(core, level int, missCount, instCount uint64, avgLatency float64) bool {
	key := levelKey{core: core, level: level}
	prev, ok := a.levels[key]
	if ok && (missCount < prev.MissCount || instCount < prev.InstCount) {
		return false
	}
	a.levels[key] = LevelCounters{MissCount: missCount, InstCount: instCount, AvgLatency: avgLatency}
	return true
}

// Level returns the current counters for (core, level) and whether any
// update has ever been ingested for it.
func (a *Aggregator) Level(core, level int) (LevelCounters, bool) {
	c, ok := a.levels[levelKey{core: core, level: level}]
	return c, ok
}

// IngestCPI records a core's cycle/instruction telemetry for CPI.
func (a *Aggregator) IngestCPI(core int, cycles, instructions uint64) {
	a.cpi[core] = CPICounters{Cycles: cycles, Instructions: instructions}
}

// CPI returns the current CPI counters for a core.
func (a *Aggregator) CPI(core int) CPICounters {
	return a.cpi[core]
}

// IngestDRAM records the latest DRAM telemetry tuple.
func (a *Aggregator) IngestDRAM(access, rowHit uint64, avgLatency float64, ready bool) {
	a.dram = DRAMCounters{AccessCount: access, RowHitCount: rowHit, AvgLatency: avgLatency, Ready: ready}
}

// DRAM returns the latest DRAM telemetry tuple.
func (a *Aggregator) DRAM() DRAMCounters {
	return a.dram
}
