// Package sampler implements the set-sampled history microcache shared by
// the Hawkeye and Mockingjay engines: a small, deterministic
// subset of physical cache sets is shadowed by a tiny fully-tracked LRU
// structure that records (address tag, PC signature, last-reference
// timestamp) so the engines can observe what an OPT/ETR oracle would have
// done without instrumenting every line in the real cache.
package sampler

import (
	"math/bits"

	"github.com/arcsim/flock/internal/xhash"
)

// Config describes the fixed geometry of one sampler instance. Hawkeye and
// Mockingjay use different bit widths and associativities.
type Config struct {
	// NumCacheSets is the number of sets in the real, backing cache.
	NumCacheSets int
	// NumSampledSets is S_sample: the number of sets shadowed by this sampler.
	// Must be a power of two no larger than NumCacheSets.
	NumSampledSets int
	// Associativity is W_s: ways per sampled set (Hawkeye 8, Mockingjay 5).
	Associativity int
	// AddrTagBits is A: width of the stored address tag.
	AddrTagBits uint
	// TimerBits is T: width of the per-set timestamp counter.
	TimerBits uint
	// StaleAfter, when > 0, enables victim-priority (b): a way whose
	// elapsed time since last reference exceeds StaleAfter is preferred
	// over LRU rank as a miss victim (Mockingjay only).
	StaleAfter uint32
}

type entry struct {
	valid bool
	tag uint64
	pc uint64 // raw, unhashed PC
	ts uint16
	rank int // 0 = most recently used
}

type set struct {
	entries []entry
	timer uint16
}

// Sampler is one instance of the history microcache.
type Sampler struct {
	cfg Config
	mixer xhash.Mixer
	sets map[int]*set
	setBits uint
	timerMod uint16
}

// New constructs a Sampler. seed distinguishes the Hawkeye and Mockingjay
// samplers (and per-core samplers) from one another when hashing.
func New(cfg Config, seed uint64) *Sampler {
	s := &Sampler{
		cfg: cfg,
		mixer: xhash.NewMixer(seed),
		sets: make(map[int]*set),
		setBits: uint(bits.Len(uint(cfg.NumSampledSets)) - 1),
		timerMod: uint16(1) << cfg.TimerBits,
	}
	return s
}

// IsSampled reports whether the given physical set index is shadowed by
// this sampler: set s is sampled iff its low log2(S_sample) bits equal
// the next log2(S_sample) bits above.
func (s *Sampler) IsSampled(physicalSet int) bool {
	if s.cfg.NumSampledSets <= 0 {
		return false
	}
	low := physicalSet & (s.cfg.NumSampledSets - 1)
	next := (physicalSet >> s.setBits) & (s.cfg.NumSampledSets - 1)
	return low == next
}

// Result is the outcome of a Sample call; Ok reports whether `set` was
// sampled at all; unsampled sets return None silently.
type Result struct {
	Ok bool
	// Hit is true if addr was already resident in the sampled set.
	Hit bool
	// Evicted is true on a miss that displaced a previously valid entry.
	Evicted bool
	// LastPC/LastTS are the entry's raw, unhashed PC and timestamp *before*
	// this access on a hit, or the evicted entry's PC/timestamp on an
	// evicting miss. LastPC is stored unhashed so a caller that trains a
	// PC-indexed predictor on it hashes the same value Predict would hash
	// for that PC, rather than double-hashing through two different mixers.
	LastPC uint64
	LastTS uint16
	CurrTS uint16
}

// Sample is the sampler's single entry point. addr and pc are
// raw (un-hashed) values; hit and coreID are accepted for interface parity
// with the engine call site but do not affect sampler bookkeeping, which is
// driven purely by sampler hit/miss outcome, not by request polarity.
func (s *Sampler) Sample(addr, pc uint64, physicalSet int, hit bool, coreID int) Result {
	if !s.IsSampled(physicalSet) {
		return Result{Ok: false}
	}

	st := s.setAt(physicalSet)
	currTS := st.timer
	st.timer = (st.timer + 1) % s.timerMod

	tag := xhash.Bits(s.mixer.Addr(addr), s.cfg.AddrTagBits)

	for i := range st.entries {
		e := &st.entries[i]
		if e.valid && e.tag == tag {
			res := Result{Ok: true, Hit: true, LastPC: e.pc, LastTS: e.ts, CurrTS: currTS}
			e.pc = pc
			e.ts = currTS
			s.promote(st, i)
			return res
		}
	}

	victim := s.chooseVictimWay(st, currTS)
	res := Result{Ok: true, Hit: false, CurrTS: currTS}
	if st.entries[victim].valid {
		res.Evicted = true
		res.LastPC = st.entries[victim].pc
		res.LastTS = st.entries[victim].ts
	}

	st.entries[victim] = entry{valid: true, tag: tag, pc: pc, ts: currTS, rank: st.entries[victim].rank}
	s.promote(st, victim)

	return res
}

// Elapsed computes forward distance from old to cur with one wrap:
// elapsed(cur, old) = cur>=old ? cur-old : cur+2^T-old.
func (s *Sampler) Elapsed(cur, old uint16) uint16 {
	if cur >= old {
		return cur - old
	}
	return cur + s.timerMod - old
}

// TimerMod returns 2^T, the modulus of the timestamp counter.
func (s *Sampler) TimerMod() uint16 { return s.timerMod }

func (s *Sampler) setAt(physicalSet int) *set {
	idx := physicalSet & (s.cfg.NumSampledSets - 1)
	st, ok := s.sets[idx]
	if !ok {
		st = &set{entries: make([]entry, s.cfg.Associativity)}
		for i := range st.entries {
			st.entries[i].rank = i
		}
		s.sets[idx] = st
	}
	return st
}

// chooseVictimWay applies the priority order: (a) invalid way, (b)
// Mockingjay-only stale way, (c) lowest LRU (highest rank).
func (s *Sampler) chooseVictimWay(st *set, currTS uint16) int {
	for i := range st.entries {
		if !st.entries[i].valid {
			return i
		}
	}

	if s.cfg.StaleAfter > 0 {
		for i := range st.entries {
			if uint32(s.Elapsed(currTS, st.entries[i].ts)) > s.cfg.StaleAfter {
				return i
			}
		}
	}

	victim := 0
	worstRank := -1
	for i := range st.entries {
		if st.entries[i].rank > worstRank {
			worstRank = st.entries[i].rank
			victim = i
		}
	}
	return victim
}

// promote moves way `used` to LRU rank 0, shifting everything that was more
// recently used than it down by one. The LRU ranks of all ways in the set,
// valid or not, always remain a permutation of 0..(Associativity-1).
func (s *Sampler) promote(st *set, used int) {
	oldRank := st.entries[used].rank
	for i := range st.entries {
		if i == used {
			continue
		}
		if st.entries[i].rank < oldRank {
			st.entries[i].rank++
		}
	}
	st.entries[used].rank = 0
}
