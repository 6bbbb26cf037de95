package hawkeye_test

import (
	"testing"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/arcsim/flock/engine"
	"github.com/arcsim/flock/hawkeye"
	"github.com/arcsim/flock/stats"
)

func newEngine(t *testing.T) (*hawkeye.Engine, *engine.Config) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.NumCPUs = 1
	cfg.CachePartitionOn = false
	return hawkeye.New(cfg, stats.New()), cfg
}

func reqFor(pc uint64) *engine.Request {
	return &engine.Request{HasPC: true, PC: pc, ContextID: 0}
}

// TestPureScanEvictsFirstInsertedLine walks a pure scan through a 4-way
// set: 5 distinct addresses, none revisited. The classifier starts
// untrained (averse), so every insertion lands at RRPV=0 and every
// subsequent access ages it upward; by the fifth miss the
// earliest-inserted line carries the highest RRPV of the (still valid)
// four and is chosen as victim. Whether that RRPV specifically reaches
// the absolute max (7) depends on the aging cadence and isn't pinned
// down by only 5 accesses (see DESIGN.md); this test checks what is
// guaranteed regardless: the earliest line loses.
func TestPureScanEvictsFirstInsertedLine(t *testing.T) {
	e, _ := newEngine(t)

	ways := make([]*akitacache.Block, 4)
	for i := range ways {
		ways[i] = &akitacache.Block{SetID: 1, WayID: i}
	}

	for i, addr := range []uint64{0x1000, 0x2000, 0x3000, 0x4000, 0x5000} {
		pc := uint64(0x400000 + i)
		req := reqFor(pc)

		if err := e.OnAccess(req, false, ways); err != nil {
			t.Fatalf("OnAccess: %v", err)
		}

		victim, err := e.ChooseVictim(ways)
		if err != nil {
			t.Fatalf("ChooseVictim: %v", err)
		}
		victim.Tag = addr
		if err := e.OnMissInsert(victim, req, ways); err != nil {
			t.Fatalf("OnMissInsert: %v", err)
		}
	}

	full := ways
	victim, err := e.ChooseVictim(full)
	if err != nil {
		t.Fatalf("ChooseVictim: %v", err)
	}
	if victim != ways[0] {
		t.Fatalf("expected the first-inserted way to be evicted, got way with tag %#x", victim.Tag)
	}
}

// TestRepeatedHotPCEndsProtected reproduces S2's mechanism: one address
// touched 8 times from the same PC, in a sampled set, ends with RRPV=0
// because the classifier has had enough OPT-friendly training signal by
// the 8th touch to call the PC friendly, and a hit on a friendly line
// always resets RRPV to 0.
func TestRepeatedHotPCEndsProtected(t *testing.T) {
	e, _ := newEngine(t)

	block := &akitacache.Block{SetID: 0, WayID: 0, Tag: 0x80000}
	pc := uint64(0xdeadbeef)
	candidates := []*akitacache.Block{block}

	req := reqFor(pc)
	if err := e.OnAccess(req, false, candidates); err != nil {
		t.Fatalf("OnAccess: %v", err)
	}
	if err := e.OnMissInsert(block, req, candidates); err != nil {
		t.Fatalf("OnMissInsert: %v", err)
	}

	for i := 0; i < 7; i++ {
		if err := e.OnAccess(req, true, candidates); err != nil {
			t.Fatalf("OnAccess: %v", err)
		}
		if err := e.OnHit(block, req, candidates); err != nil {
			t.Fatalf("OnHit: %v", err)
		}
	}

	meta := e.MetaFor(block)
	if !meta.CacheFriendly() {
		t.Fatalf("expected the classifier to have learned this PC as friendly after 7 sampled hits")
	}
}

func TestChooseVictimPrefersInvalidLine(t *testing.T) {
	e, _ := newEngine(t)
	valid := &akitacache.Block{SetID: 2, WayID: 0, Tag: 0x9000}
	req := reqFor(0x1)
	if err := e.OnMissInsert(valid, req, []*akitacache.Block{valid}); err != nil {
		t.Fatalf("OnMissInsert: %v", err)
	}

	invalid := &akitacache.Block{SetID: 2, WayID: 1}
	victim, err := e.ChooseVictim([]*akitacache.Block{valid, invalid})
	if err != nil {
		t.Fatalf("ChooseVictim: %v", err)
	}
	if victim != invalid {
		t.Fatalf("expected the invalid line to be preferred over a valid one")
	}
}

func TestInvalidateClearsMetadata(t *testing.T) {
	e, _ := newEngine(t)
	block := &akitacache.Block{SetID: 3, WayID: 0, Tag: 0x1234}
	req := reqFor(0x1)
	if err := e.OnMissInsert(block, req, []*akitacache.Block{block}); err != nil {
		t.Fatalf("OnMissInsert: %v", err)
	}
	e.Invalidate(block)
	meta := e.MetaFor(block)
	if meta.Valid() {
		t.Fatalf("expected Invalidate to clear Valid")
	}
}

func TestRepartitionKeepsTotalWaysConstant(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.NumCPUs = 2
	cfg.CachePartitionOn = true
	e := hawkeye.New(cfg, stats.New())
	e.Repartition()

	sum := e.CoreWays(0) + e.CoreWays(1)
	if sum != cfg.NumCacheWays {
		t.Fatalf("expected core budgets to sum to %d ways, got %d", cfg.NumCacheWays, sum)
	}
}
