// Package hawkeye implements the per-core partitioned Hawkeye replacement
// engine: a sampler-trained PC classifier drives RRPV
// insertion and aging, while an online occupancy-vector grid per core
// feeds Flock's Fetch Cost Projection search.
package hawkeye

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/arcsim/flock/engine"
	"github.com/arcsim/flock/flock"
	"github.com/arcsim/flock/internal/classifier"
	"github.com/arcsim/flock/internal/opt"
	"github.com/arcsim/flock/internal/sampler"
	"github.com/arcsim/flock/internal/satcounter"
	"github.com/arcsim/flock/stats"
)

// lineMeta is a cache line's Hawkeye-owned replacement state: a
// satcounter RRPV, the owning core recorded at insertion time, and the
// classifier verdict, set at insertion and re-derived on every hit.
type lineMeta struct {
	valid bool
	friendly bool
	contextID int
	rrpv satcounter.Counter
}

func (m *lineMeta) Valid() bool { return m.valid }
func (m *lineMeta) CacheFriendly() bool { return m.friendly }
func (m *lineMeta) ContextID() int { return m.contextID }

func newLineMeta(rrpvBits uint) *lineMeta {
	return &lineMeta{rrpv: satcounter.New(rrpvBits)}
}

// coreState is one core's Hawkeye arrays ("per-core arrays of
// sampler, OPT vector, projection OPT vector, PC predictor, ratio
// counter").
type coreState struct {
	sampler *sampler.Sampler
	opt *opt.Vector
	grid []*opt.Vector // grid[b] tracks what OPT would decide at budget b, for b in [0, NumCacheWays]
	classifier *classifier.Classifier
	ratio flock.RatioCounter
	ways int
	accesses uint64
}

// Engine is the Hawkeye replacement decision engine.
type Engine struct {
	cfg *engine.Config
	stats *stats.Aggregator
	cores []*coreState
	meta map[*akitacache.Block]*lineMeta

	accessCount uint64
}

// New builds a Hawkeye Engine sized per cfg, sharing stats with the
// partitioning controller and whatever else reports into the same
// aggregator.
func New(cfg *engine.Config, statsAgg *stats.Aggregator) *Engine {
	e := &Engine{
		cfg: cfg,
		stats: statsAgg,
		cores: make([]*coreState, cfg.NumCPUs),
		meta: make(map[*akitacache.Block]*lineMeta),
	}

	initialWays := cfg.NumCacheWays
	if cfg.CachePartitionOn && cfg.NumCPUs > 0 {
		initialWays = cfg.NumCacheWays / cfg.NumCPUs
		if initialWays < 1 {
			initialWays = 1
		}
	}

	for c := 0; c < cfg.NumCPUs; c++ {
		cs := &coreState{
			sampler: sampler.New(sampler.Config{
				NumCacheSets: cfg.NumCacheSets,
				NumSampledSets: cfg.NumSampledSets,
				Associativity: 8,
				AddrTagBits: 16,
				TimerBits: cfg.TimerSize,
			}, uint64(0xA3C+c)),
			opt: opt.New(cfg.OptgenVectorSize, uint32(initialWays)),
			grid: make([]*opt.Vector, cfg.NumCacheWays+1),
			classifier: classifier.New(cfg.NumPredEntries, cfg.NumPredBits, uint64(0xC1A5+c)),
			ways: initialWays,
		}
		for b := range cs.grid {
			cs.grid[b] = opt.New(cfg.OptgenVectorSize, uint32(b))
		}
		e.cores[c] = cs
	}

	return e
}

// InstantiateEntry returns fresh, invalid line metadata.
func (e *Engine) InstantiateEntry() engine.LineMeta {
	return newLineMeta(e.cfg.NumRRPVBits)
}

// MetaFor returns block's metadata, creating it on first reference.
func (e *Engine) MetaFor(block *akitacache.Block) engine.LineMeta {
	m, ok := e.meta[block]
	if !ok {
		m = newLineMeta(e.cfg.NumRRPVBits)
		e.meta[block] = m
	}
	return m
}

// Invalidate resets block's metadata to the all-invalid state.
func (e *Engine) Invalidate(block *akitacache.Block) {
	m := e.metaOf(block)
	m.valid = false
	m.friendly = false
	m.rrpv.Reset()
}

func (e *Engine) metaOf(block *akitacache.Block) *lineMeta {
	m, ok := e.meta[block]
	if !ok {
		m = newLineMeta(e.cfg.NumRRPVBits)
		e.meta[block] = m
	}
	return m
}

func (e *Engine) core(req *engine.Request) *coreState {
	id := req.ContextID
	if id < 0 || id >= len(e.cores) {
		id = 0
	}
	return e.cores[id]
}

// OnAccess runs steps 1-5 for every LLC reference.
func (e *Engine) OnAccess(req *engine.Request, hit bool, candidates []*akitacache.Block) error {
	for level, ls := range req.CacheStats {
		e.stats.IngestLevel(req.ContextID, level, ls.MissCount, req.InstCount, ls.AvgLatency)
	}
	if req.HasCPI {
		e.stats.IngestCPI(req.ContextID, req.NumCycles, req.InstCount)
	}
	if req.HasDRAMStats {
		d := req.DRAMStats
		e.stats.IngestDRAM(d.AccessCount, d.RowHitCount, d.AvgLatency, d.Ready)
	}

	cs := e.core(req)
	cs.accesses++
	e.accessCount++

	friendlyCeiling := uint32(1)<<e.cfg.NumRRPVBits - 2
	for ctx, owner := range e.cores {
		if !owner.ratio.Tick() {
			continue
		}
		for _, b := range candidates {
			m := e.metaOf(b)
			if m.contextID == ctx && m.rrpv.Value() < friendlyCeiling {
				m.rrpv.Inc()
			}
		}
	}

	if e.accessCount%flock.RepartitionPeriod == 0 {
		e.Repartition()
	}
	if e.accessCount%flock.ReagingPeriod == 0 {
		e.RecomputeRatios()
	}

	return nil
}

// OnHit implements `touch`: RRPV snaps to 0 for a friendly
// line or saturates for an averse one, then the sampler/classifier/OPT
// pipeline trains on whatever the set-sampled history cache observed.
func (e *Engine) OnHit(block *akitacache.Block, req *engine.Request, candidates []*akitacache.Block) error {
	cs := e.core(req)
	m := e.metaOf(block)
	// Friendliness is re-derived from the classifier's current state at
	// every touch rather than frozen at insertion time: a PC the
	// classifier learns to trust after a line was inserted should start
	// protecting that line immediately, not only on its next fill.
	if req.HasPC {
		m.friendly = cs.classifier.Predict(req.PC)
	}
	if m.friendly {
		m.rrpv.Reset()
	} else {
		m.rrpv.Saturate()
	}

	e.pollSampler(cs, block, req, true)
	return nil
}

// OnMissInsert implements `reset`: classify the PC, apply the
// Hawkeye insertion inversion (friendly lines start at the friendly cap,
// averse lines start at 0), then train.
func (e *Engine) OnMissInsert(block *akitacache.Block, req *engine.Request, candidates []*akitacache.Block) error {
	cs := e.core(req)

	friendly := false
	if req.HasPC {
		friendly = cs.classifier.Predict(req.PC)
	}

	m := e.metaOf(block)
	m.valid = true
	m.friendly = friendly
	m.contextID = req.ContextID
	if friendly {
		m.rrpv = satcounter.NewWithMax(uint32(1)<<e.cfg.NumRRPVBits - 2)
		m.rrpv.Saturate()
	} else {
		m.rrpv = satcounter.New(e.cfg.NumRRPVBits)
		m.rrpv.Reset()
	}

	e.pollSampler(cs, block, req, false)
	return nil
}

// pollSampler feeds one LLC access through the core's sampler and, on a
// sampled hit, trains the OPT vector grid and the PC classifier: the
// shared "update sampler and train" step for both touch and reset.
func (e *Engine) pollSampler(cs *coreState, block *akitacache.Block, req *engine.Request, hit bool) {
	if !req.HasPC {
		return
	}
	res := cs.sampler.Sample(block.Tag, req.PC, block.SetID, hit, req.ContextID)
	if !res.Ok {
		return
	}
	if res.Hit {
		friendly := cs.opt.ShouldCache(uint64(res.CurrTS), uint64(res.LastTS))
		for _, g := range cs.grid {
			g.ShouldCache(uint64(res.CurrTS), uint64(res.LastTS))
		}
		cs.classifier.Train(res.LastPC, friendly)
	}
	cs.opt.AddAccess(uint64(res.CurrTS))
	for _, g := range cs.grid {
		g.AddAccess(uint64(res.CurrTS))
	}
}

// ChooseVictim implements `choose_victim`: the first invalid
// line, else the line with the highest RRPV (ties broken by first
// occurrence).
func (e *Engine) ChooseVictim(candidates []*akitacache.Block) (*akitacache.Block, error) {
	for _, b := range candidates {
		if !e.metaOf(b).valid {
			return b, nil
		}
	}

	var victim *akitacache.Block
	var worst uint32
	for _, b := range candidates {
		v := e.metaOf(b).rrpv.Value()
		if victim == nil || v > worst {
			victim = b
			worst = v
		}
	}
	return victim, nil
}

// Repartition runs Flock's greedy way-budget search across all cores
// and applies the result to each core's OPT vector. Missing telemetry is
// recoverable: when DRAM telemetry is not ready, or any core has no
// ingested L1, L2 or this-level counters, it returns without changing any
// budget.
func (e *Engine) Repartition() {
	if !e.cfg.CachePartitionOn {
		return
	}
	if !e.stats.DRAM().Ready {
		return
	}
	for i := range e.cores {
		for _, level := range []int{1, 2, e.cfg.CacheLevel} {
			if _, ok := e.stats.Level(i, level); !ok {
				return
			}
		}
	}

	cpis := make([]float64, len(e.cores))
	for i := range e.cores {
		cpis[i] = e.stats.CPI(i).CPI()
	}

	r := &flock.Repartitioner{
		TotalWays: e.cfg.NumCacheWays,
		CPI: cpis,
		ProjFCP: e.projFCPAt,
	}
	budgets := r.Allocate()

	for i, b := range budgets {
		e.cores[i].ways = b
		e.cores[i].opt.SetCacheSize(uint32(b))
	}
}

// CoreWays returns core's current way budget, for tests and reporting.
func (e *Engine) CoreWays(core int) int {
	return e.cores[core].ways
}

// projFCPAt computes the projected FCP for one core at one candidate way
// budget, substituting that budget's grid vector's miss-rate scale into
// the FCP formula.
func (e *Engine) projFCPAt(core, budget int) float64 {
	if budget < 0 {
		budget = 0
	}
	if budget > e.cfg.NumCacheWays {
		budget = e.cfg.NumCacheWays
	}

	cs := e.cores[core]
	l1, _ := e.stats.Level(core, 1)
	l2, _ := e.stats.Level(core, 2)
	l3, _ := e.stats.Level(core, e.cfg.CacheLevel)
	dram := e.stats.DRAM()

	return flock.ProjFCP(flock.ProjInputs{
		MR1: l1.MissRate(), MR2: l2.MissRate(), MR3: l3.MissRate(),
		T2: l2.AvgLatency, T3: l3.AvgLatency,
		MissScale: cs.opt.MissRateScale(cs.grid[budget]),
		RowMissFraction: 1 - dram.RowHitRate(),
		TDRAMMeas: dram.AvgLatency,
	})
}

// RecomputeRatios rescales every core's aging ratio relative to the
// least-active core.
func (e *Engine) RecomputeRatios() {
	counts := make([]uint64, len(e.cores))
	for i, cs := range e.cores {
		counts[i] = cs.accesses
	}
	maxes := flock.RecomputeRatioMax(counts)
	for i, m := range maxes {
		e.cores[i].ratio.RatioMax = m
	}
}
