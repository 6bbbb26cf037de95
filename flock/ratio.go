package flock

// RatioCounter drives a core's aging cadence relative to its peers,
// consumed by the Hawkeye engine's on_access aging step. A core ages
// its RRPVs once every RatioMax+1
// accesses; RatioMax itself is recomputed every ReagingPeriod accesses
// from the relative access counts of all cores.
type RatioCounter struct {
	Counter uint64
	RatioMax uint64
}

// Tick advances the counter by one access and reports whether this
// access should trigger an aging pass, resetting the counter when it
// does.
func (r *RatioCounter) Tick() bool {
	r.Counter++
	if r.Counter > r.RatioMax {
		r.Counter = 0
		return true
	}
	return false
}

// RecomputeRatioMax derives each core's RatioMax from its share of
// total LLC accesses relative to the least-active core: the
// least-active core ages on every access (RatioMax=0, via Tick's
// Counter>RatioMax check), and every other core c gets
// RatioMax[c] = access[c]/access[min] - 1, so a core receiving k times
// as many accesses as the reference core ages once every k ticks, keeping aging pressure proportional across cores regardless
// of how unevenly they share the cache.
//
// Cores with zero accesses are left at RatioMax=0. If every core has
// zero accesses, all RatioMax values are 0.
func RecomputeRatioMax(accessCounts []uint64) []uint64 {
	out := make([]uint64, len(accessCounts))

	minIdx := -1
	for i, a := range accessCounts {
		if a == 0 {
			continue
		}
		if minIdx == -1 || a < accessCounts[minIdx] {
			minIdx = i
		}
	}
	if minIdx == -1 {
		return out
	}

	minAccess := accessCounts[minIdx]
	for i, a := range accessCounts {
		if i == minIdx || a == 0 {
			continue
		}
		out[i] = a/minAccess - 1
	}
	return out
}
