// Package opt implements the occupancy-vector approximation of Belady's
// algorithm: a circular timeline of liveness counters used to
// decide, for an observed reuse interval, whether an oracle replacement
// policy would have kept the corresponding line cached.
package opt

// Vector is one OPT occupancy vector (one per core for Hawkeye, plus a
// second "projection" instance per core per candidate budget for
// Flock's FCP search).
type Vector struct {
	liveness []uint32
	cacheSize uint32

	cacheDecisions uint64
	dontCacheDecisions uint64
}

// New creates a Vector with V timeline slots and the given initial
// effective partition (cache_size).
func New(v int, cacheSize uint32) *Vector {
	return &Vector{
		liveness: make([]uint32, v),
		cacheSize: cacheSize,
	}
}

// Size returns the number of timeline slots (V).
func (o *Vector) Size() int { return len(o.liveness) }

// CacheSize returns the current effective partition.
func (o *Vector) CacheSize() uint32 { return o.cacheSize }

// SetCacheSize mutates the effective partition, e.g. after a Flock
// repartition ("cache_size is mutable to support partition
// changes").
func (o *Vector) SetCacheSize(size uint32) { o.cacheSize = size }

// Liveness returns the occupancy counter at a slot, for tests and
// inspection.
func (o *Vector) Liveness(slot int) uint32 {
	return o.liveness[slot%len(o.liveness)]
}

// CacheDecisions and DontCacheDecisions expose the running totals used to
// feed the FCP projection ("ratios feed the FCP projection").
func (o *Vector) CacheDecisions() uint64 { return o.cacheDecisions }
func (o *Vector) DontCacheDecisions() uint64 { return o.dontCacheDecisions }

// ShouldCache walks the half-open interval
// [lastTS, currTS) forward (wrapping at V); if any slot's occupancy is
// already at or above cacheSize, an oracle would not have kept the line
// cached across that interval and every live interval is left untouched.
// Otherwise every touched slot is incremented and the interval is recorded
// as a "cache" decision.
func (o *Vector) ShouldCache(currTS, lastTS uint64) bool {
	v := uint64(len(o.liveness))
	if v == 0 {
		return false
	}
	start := lastTS % v

	for i := uint64(0); i < v; i++ {
		slot := (start + i) % v
		if slot == currTS%v {
			break
		}
		if o.liveness[slot] >= o.cacheSize {
			o.dontCacheDecisions++
			return false
		}
	}

	for i := uint64(0); i < v; i++ {
		slot := (start + i) % v
		if slot == currTS%v {
			break
		}
		o.liveness[slot]++
	}

	o.cacheDecisions++
	return true
}

// AddAccess resets the occupancy counter at slot ts to zero, marking an
// access boundary ("add_access(ts) resets slot ts to 0").
func (o *Vector) AddAccess(ts uint64) {
	o.liveness[ts%uint64(len(o.liveness))] = 0
}

// MissRateScale returns opt_misses_proj / opt_misses_curr used by
// Flock's projected-FCP substitution. Returns 1.0 when the
// current vector has recorded no don't-cache decisions yet, since there is
// nothing to scale relative to.
func (curr *Vector) MissRateScale(proj *Vector) float64 {
	if curr.dontCacheDecisions == 0 {
		return 1.0
	}
	return float64(proj.dontCacheDecisions) / float64(curr.dontCacheDecisions)
}
