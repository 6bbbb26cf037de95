// Package xhash mixes addresses and program counters into the small,
// fixed-width tags and signatures the sampler and predictors index by.
//
// github.com/dgryski/go-farm provides a fast, well-distributed
// non-cryptographic hash, used here in place of a bespoke CRC
// implementation.
package xhash

import (
	"encoding/binary"

	farm "github.com/dgryski/go-farm"
)

// Mixer produces CRC-like hashes of addresses and PCs, truncated to a
// caller-chosen number of low-order bits.
type Mixer struct {
	seed uint64
}

// NewMixer returns a Mixer seeded for one sampler or predictor instance.
// Distinct seeds keep the Hawkeye/Mockingjay sampler and the PC classifier
// from aliasing each other's low bits on identical inputs.
func NewMixer(seed uint64) Mixer {
	return Mixer{seed: seed}
}

// Addr mixes a physical/virtual address into a 64-bit hash.
func (m Mixer) Addr(addr uint64) uint64 {
	return m.mix(addr, 0x61646472) // "addr"
}

// PC mixes a program counter into a 64-bit hash.
func (m Mixer) PC(pc uint64) uint64 {
	return m.mix(pc, 0x00706300) // "pc"
}

// Signature mixes (pc, hit, prefetch, contextID) the way the Mockingjay
// reuse-distance predictor keys its per-signature counters (
// "signature = CRC(pc, hit_flag, prefetch_flag, core_id)").
func (m Mixer) Signature(pc uint64, hit, prefetch bool, contextID int) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], pc)
	flags := uint64(0)
	if hit {
		flags |= 1
	}
	if prefetch {
		flags |= 2
	}
	binary.LittleEndian.PutUint64(buf[8:16], flags)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(int64(contextID)))
	return farm.Hash64WithSeed(buf[:], m.seed)
}

// Bits truncates a hash to its low n bits, used to turn a 64-bit hash into
// a table index or a fixed-width bit-packed tag.
func Bits(h uint64, n uint) uint64 {
	if n >= 64 {
		return h
	}
	return h & ((uint64(1) << n) - 1)
}

func (m Mixer) mix(v uint64, tag uint32) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[0:8], v)
	binary.LittleEndian.PutUint32(buf[8:12], tag)
	return farm.Hash64WithSeed(buf[:], m.seed)
}
