// Package dram provides an in-module DRAM telemetry source: a small,
// fixed-bank, open-row-buffer model that produces exactly the telemetry
// tuple the replacement core consumes (access_count, row_hit_count,
// avg_latency, ready), and that doubles as the LLC's backing store so
// the module runs end-to-end without an external simulator.
//
// This is grounded on an m2sim-style byte-addressable backing store
// (wired into a cache via a MemoryBacking adapter), extended with
// per-bank open-row state: accessing the currently open row in a bank is
// a "row hit" and costs RowHitLatency; anything else closes the bank's
// row and costs RowMissLatency.
package dram

import "github.com/arcsim/flock/engine"

// Config describes the DRAM model's geometry and timing.
type Config struct {
	// NumBanks is the number of independent banks (power of two).
	NumBanks int
	// RowBits is the number of low-order address bits that select a byte
	// within a row (rows are 2^RowBits bytes); the bits above them identify
	// the row and, modulo NumBanks, its bank. Addresses sharing a row are
	// row-buffer hits.
	RowBits uint
	// RowHitLatency and RowMissLatency are in cycles.
	RowHitLatency uint64
	RowMissLatency uint64
	// WarmupAccesses is the number of accesses the model requires before
	// it reports Ready=true, modeling the brief window during which a
	// real memory controller's telemetry counters have not yet settled.
	WarmupAccesses uint64
}

// DefaultConfig returns an 8-bank, 1KB-row DDR-ish timing profile.
func DefaultConfig() Config {
	return Config{
		NumBanks: 8,
		RowBits: 10,
		RowHitLatency: 40,
		RowMissLatency: 120,
		WarmupAccesses: 8,
	}
}

type bankState struct {
	openRow uint64
	valid bool
}

// Model is one DRAM device instance.
type Model struct {
	cfg Config
	banks []bankState
	store map[uint64]byte

	accesses uint64
	rowHits uint64
}

// New constructs a Model.
func New(cfg Config) *Model {
	return &Model{
		cfg: cfg,
		banks: make([]bankState, cfg.NumBanks),
		store: make(map[uint64]byte),
	}
}

func (m *Model) bankOf(addr uint64) int {
	if m.cfg.NumBanks <= 1 {
		return 0
	}
	return int((addr >> m.cfg.RowBits) % uint64(m.cfg.NumBanks))
}

func (m *Model) rowOf(addr uint64) uint64 {
	return addr >> m.cfg.RowBits
}

// Access simulates one DRAM access to addr, returning its latency in
// cycles and whether it was a row-buffer hit.
func (m *Model) Access(addr uint64) (latency uint64, rowHit bool) {
	m.accesses++

	bankIdx := m.bankOf(addr)
	row := m.rowOf(addr)
	b := &m.banks[bankIdx]

	if b.valid && b.openRow == row {
		m.rowHits++
		return m.cfg.RowHitLatency, true
	}

	b.valid = true
	b.openRow = row
	return m.cfg.RowMissLatency, false
}

// Read fetches size bytes starting at addr, implementing the llc
// package's BackingStore contract.
func (m *Model) Read(addr uint64, size int) []byte {
	m.Access(addr)
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = m.store[addr+uint64(i)]
	}
	return data
}

// Write stores data at addr.
func (m *Model) Write(addr uint64, data []byte) {
	m.Access(addr)
	for i, b := range data {
		m.store[addr+uint64(i)] = b
	}
}

// Stats returns the telemetry tuple an engine.Request carries in
// DRAMStats.
func (m *Model) Stats() engine.DRAMStats {
	avg := 0.0
	if m.accesses > 0 {
		hitFrac := float64(m.rowHits) / float64(m.accesses)
		avg = hitFrac*float64(m.cfg.RowHitLatency) + (1-hitFrac)*float64(m.cfg.RowMissLatency)
	}
	return engine.DRAMStats{
		AccessCount: m.accesses,
		RowHitCount: m.rowHits,
		AvgLatency: avg,
		Ready: m.accesses >= m.cfg.WarmupAccesses,
	}
}
