package mockingjay_test

import (
	"testing"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/arcsim/flock/engine"
	"github.com/arcsim/flock/mockingjay"
	"github.com/arcsim/flock/stats"
)

func TestClockWrapAgesETRDownward(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.NumClockBits = 1 // wraps every 2 accesses to a set
	e := mockingjay.New(cfg, stats.New())

	block := &akitacache.Block{SetID: 5, WayID: 0, Tag: 0x1000}
	req := &engine.Request{ContextID: 0}
	if err := e.OnMissInsert(block, req, []*akitacache.Block{block}); err != nil {
		t.Fatalf("OnMissInsert: %v", err)
	}

	candidates := []*akitacache.Block{block}
	if err := e.OnAccess(req, false, candidates); err != nil {
		t.Fatalf("OnAccess 1: %v", err)
	}
	if err := e.OnAccess(req, false, candidates); err != nil {
		t.Fatalf("OnAccess 2: %v", err)
	}

	if !e.MetaFor(block).Valid() {
		t.Fatalf("expected line to remain valid through aging")
	}

	// A fresh line in the same set keeps etr 0, so the aged line (etr -1,
	// |etr| 1) must win the victim choice even though it is listed second.
	fresh := &akitacache.Block{SetID: 5, WayID: 1, Tag: 0x1040}
	if err := e.OnMissInsert(fresh, req, []*akitacache.Block{block, fresh}); err != nil {
		t.Fatalf("OnMissInsert: %v", err)
	}
	victim, err := e.ChooseVictim([]*akitacache.Block{fresh, block})
	if err != nil {
		t.Fatalf("ChooseVictim: %v", err)
	}
	if victim != block {
		t.Fatalf("expected the clock wrap to have aged the first line's ETR away from 0")
	}
}

func TestChooseVictimPrefersInvalidLine(t *testing.T) {
	e := mockingjay.New(engine.DefaultConfig(), stats.New())
	valid := &akitacache.Block{SetID: 1, WayID: 0, Tag: 0x2000}
	req := &engine.Request{ContextID: 0}
	if err := e.OnMissInsert(valid, req, []*akitacache.Block{valid}); err != nil {
		t.Fatalf("OnMissInsert: %v", err)
	}

	invalid := &akitacache.Block{SetID: 1, WayID: 1}
	victim, err := e.ChooseVictim([]*akitacache.Block{valid, invalid})
	if err != nil {
		t.Fatalf("ChooseVictim: %v", err)
	}
	if victim != invalid {
		t.Fatalf("expected the invalid line to be preferred")
	}
}

// TestBypassLeavesLineInvalid exercises the bypass path: an
// untrained, multi-core predictor always predicts infinite reuse
// distance, so the very first insertion for a fresh signature is
// bypassed and the line never becomes valid.
func TestBypassLeavesLineInvalid(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.NumCPUs = 4
	e := mockingjay.New(cfg, stats.New())

	block := &akitacache.Block{SetID: 9, WayID: 0, Tag: 0x3000}
	req := &engine.Request{HasPC: true, PC: 0xaaaa, ContextID: 0}
	if err := e.OnMissInsert(block, req, []*akitacache.Block{block}); err != nil {
		t.Fatalf("OnMissInsert: %v", err)
	}

	meta := e.MetaFor(block)
	if meta.Valid() {
		t.Fatalf("expected an untrained, infinite-reuse-distance prediction to bypass insertion")
	}
}

func TestInvalidateClearsValid(t *testing.T) {
	e := mockingjay.New(engine.DefaultConfig(), stats.New())
	block := &akitacache.Block{SetID: 2, WayID: 0, Tag: 0x4000}
	req := &engine.Request{ContextID: 0}
	if err := e.OnMissInsert(block, req, []*akitacache.Block{block}); err != nil {
		t.Fatalf("OnMissInsert: %v", err)
	}
	e.Invalidate(block)
	if e.MetaFor(block).Valid() {
		t.Fatalf("expected Invalidate to clear Valid")
	}
}

func TestCacheFriendlyAlwaysFalse(t *testing.T) {
	e := mockingjay.New(engine.DefaultConfig(), stats.New())
	block := &akitacache.Block{SetID: 0, WayID: 0, Tag: 0x5000}
	req := &engine.Request{ContextID: 0}
	_ = e.OnMissInsert(block, req, []*akitacache.Block{block})
	if e.MetaFor(block).CacheFriendly() {
		t.Fatalf("expected Mockingjay lines to never report cache-friendly")
	}
}
