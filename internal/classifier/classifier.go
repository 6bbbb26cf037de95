// Package classifier implements the PC-indexed binary "cache-friendly vs.
// cache-averse" predictor shared by the Hawkeye engine: an
// array of small saturating counters trained by the OPT oracle's verdict
// and read back to classify newly-inserted lines before OPT ever gets a
// chance to judge them directly.
package classifier

import (
	"github.com/arcsim/flock/internal/satcounter"
	"github.com/arcsim/flock/internal/xhash"
)

// Classifier is a direct-mapped table of N saturating counters of width B,
// indexed by the low log2(N) bits of a hashed PC.
type Classifier struct {
	counters []satcounter.Counter
	indexBits uint
	mixer xhash.Mixer
}

// New builds a Classifier with n entries (a power of two) of bits width,
// all initialized to the zero sentinel ("Counter sentinel
// initialization: zero").
func New(n int, bits uint, seed uint64) *Classifier {
	c := &Classifier{
		counters: make([]satcounter.Counter, n),
		indexBits: indexBitsFor(n),
		mixer: xhash.NewMixer(seed),
	}
	for i := range c.counters {
		c.counters[i] = satcounter.New(bits)
	}
	return c
}

func indexBitsFor(n int) uint {
	var bits uint
	for (1 << bits) < n {
		bits++
	}
	return bits
}

func (c *Classifier) index(pc uint64) uint64 {
	return xhash.Bits(c.mixer.PC(pc), c.indexBits)
}

// Train moves the counter for pc toward "friendly" on a cache-friendly OPT
// verdict, or toward "averse" otherwise.
func (c *Classifier) Train(pc uint64, optFriendly bool) {
	cnt := &c.counters[c.index(pc)]
	if optFriendly {
		cnt.Inc()
	} else {
		cnt.Dec()
	}
}

// Predict returns the high-order bit of the counter for pc: true means
// predicted cache-friendly.
func (c *Classifier) Predict(pc uint64) bool {
	return c.counters[c.index(pc)].HighBit()
}
