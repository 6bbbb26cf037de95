package dram_test

import (
	"testing"

	"github.com/arcsim/flock/dram"
)

func TestRepeatedAccessToSameRowIsAHit(t *testing.T) {
	m := dram.New(dram.DefaultConfig())
	lat1, hit1 := m.Access(0x1000)
	lat2, hit2 := m.Access(0x1004) // same 1KB row
	if hit1 {
		t.Fatalf("expected the first access to any bank to miss (no row open yet)")
	}
	if !hit2 {
		t.Fatalf("expected the second access to the same row to hit")
	}
	if lat2 >= lat1 {
		t.Fatalf("expected row hit latency to be lower than row miss latency")
	}
}

func TestNotReadyBeforeWarmup(t *testing.T) {
	cfg := dram.DefaultConfig()
	cfg.WarmupAccesses = 4
	m := dram.New(cfg)
	for i := 0; i < 3; i++ {
		m.Access(uint64(i) * 4096)
	}
	if m.Stats().Ready {
		t.Fatalf("expected model to report not-ready before warmup completes")
	}
	m.Access(4 * 4096)
	if !m.Stats().Ready {
		t.Fatalf("expected model to report ready after warmup completes")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	m := dram.New(dram.DefaultConfig())
	m.Write(0x2000, []byte{1, 2, 3, 4})
	got := m.Read(0x2000, 4)
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestRowHitRateReflectsAccessPattern(t *testing.T) {
	m := dram.New(dram.DefaultConfig())
	m.Access(0x1000)
	m.Access(0x1004)
	m.Access(0x1008)
	stats := m.Stats()
	if stats.RowHitCount != 2 {
		t.Fatalf("expected 2 row hits out of 3 accesses, got %d", stats.RowHitCount)
	}
}
