// Package reuse implements the per-signature temporal-difference
// reuse-distance predictor used by the Mockingjay engine: a
// table of signed counters trained from sampler outcomes and read back to
// seed a newly touched or inserted line's ETR.
package reuse

import (
	"github.com/arcsim/flock/internal/xhash"
)

// Untrained is the sentinel value for a counter that has never observed a
// sampled hit ("sentinel -1 = untrained").
const Untrained int32 = -1

// Config describes one predictor instance's geometry and bounds.
type Config struct {
	// N is the number of signature-indexed entries (a power of two).
	N int
	// MaxValue bounds the trained counter ("positive values in
	// [0, max_value]").
	MaxValue int32
	// MaxRDThreshold is the distance-from-max-value above which a trained
	// counter is treated as infinite reuse distance (22).
	MaxRDThreshold int32
	// Granularity divides a trained counter down to the aging-clock period
	// ("counter / granularity").
	Granularity int32
	// SingleCore selects the untrained-counter fallback: 0 for a
	// single-core cache, infinite (scan-assumed) for multi-core.
	SingleCore bool
}

// Predictor is a direct-mapped table of signed reuse-distance counters.
type Predictor struct {
	cfg Config
	counters []int32
	mixer xhash.Mixer
	idxBits uint
}

// New builds a Predictor with all counters at the Untrained sentinel.
func New(cfg Config, seed uint64) *Predictor {
	p := &Predictor{
		cfg: cfg,
		counters: make([]int32, cfg.N),
		mixer: xhash.NewMixer(seed),
		idxBits: indexBitsFor(cfg.N),
	}
	for i := range p.counters {
		p.counters[i] = Untrained
	}
	return p
}

func indexBitsFor(n int) uint {
	var bits uint
	for (1 << bits) < n {
		bits++
	}
	return bits
}

// Signature computes the table index for (pc, hit, prefetch, coreID), the
// same tuple hashes for both training and prediction.
func (p *Predictor) Signature(pc uint64, hit, prefetch bool, coreID int) uint64 {
	return xhash.Bits(p.mixer.Signature(pc, hit, prefetch, coreID), p.idxBits)
}

// TrainHit applies the temporal-difference update for a sampled hit: if
// untrained, the observed sample_rd seeds the counter outright; otherwise
// the counter steps toward sample_rd by max(1, |sample_rd-old|/16), and is
// left unchanged when sample_rd equals it.
func (p *Predictor) TrainHit(sig uint64, sampleRD int32) {
	c := &p.counters[sig]
	if *c == Untrained {
		*c = clamp(sampleRD, 0, p.cfg.MaxValue)
		return
	}
	delta := sampleRD - *c
	if delta == 0 {
		return
	}
	step := abs32(delta) / 16
	if step < 1 {
		step = 1
	}
	if delta < 0 {
		step = -step
	}
	*c = clamp(*c+step, 0, p.cfg.MaxValue)
}

// TrainScan bumps the evicted signature's counter toward max_value,
// interpreting a sampled miss-with-eviction (no re-reference ever
// observed before eviction) as a scan.
func (p *Predictor) TrainScan(sig uint64) {
	p.counters[sig] = p.cfg.MaxValue
}

// Prediction is the result of Predict: either a finite scaled distance, or
// the infinite-reuse-distance ("scan line") sentinel.
type Prediction struct {
	Infinite bool
	Value int32
}

// Predict implements the prediction rule for a cache insertion or
// touch.
func (p *Predictor) Predict(sig uint64) Prediction {
	c := p.counters[sig]
	if c == Untrained {
		if p.cfg.SingleCore {
			return Prediction{Value: 0}
		}
		return Prediction{Infinite: true}
	}
	if c > p.cfg.MaxValue-p.cfg.MaxRDThreshold {
		return Prediction{Infinite: true}
	}
	return Prediction{Value: c / p.cfg.Granularity}
}

// Bypass reports whether an insertion should be skipped outright: an
// infinite prediction (untrained on a multi-core cache, or a counter above
// MaxValue-MaxRDThreshold) always bypasses, and a finite prediction
// bypasses when it exceeds the maximum |ETR| currently present in the
// candidate set.
func (p *Predictor) Bypass(sig uint64, maxAbsETRInSet int32) bool {
	pred := p.Predict(sig)
	if pred.Infinite {
		return true
	}
	return pred.Value > maxAbsETRInSet
}

func clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
