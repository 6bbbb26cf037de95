// Package satcounter provides a small bounded saturating counter, the
// building block for Hawkeye RRPV values and the PC classifier's
// confidence counters.
package satcounter

// Counter is an unsigned integer bounded to [0, Max]. Inc/Dec clamp at the
// bounds instead of wrapping, matching the bit-packed hardware counters the
// replacement engines are modeling.
type Counter struct {
	value uint32
	max   uint32
}

// New returns a Counter of the given bit width, reset to zero.
func New(bits uint) Counter {
	return Counter{max: (1 << bits) - 1}
}

// NewWithMax returns a Counter bounded to max (not necessarily 2^n-1), reset
// to zero. Used where the saturation bound is narrower than the bit width,
// e.g. a cache-friendly Hawkeye line bounded to 2^W-2 instead of 2^W-1.
func NewWithMax(max uint32) Counter {
	return Counter{max: max}
}

// Value returns the current count.
func (c Counter) Value() uint32 { return c.value }

// Max returns the saturation bound.
func (c Counter) Max() uint32 { return c.max }

// Inc increments by one, clamping at Max.
func (c *Counter) Inc() {
	if c.value < c.max {
		c.value++
	}
}

// Dec decrements by one, clamping at zero.
func (c *Counter) Dec() {
	if c.value > 0 {
		c.value--
	}
}

// Reset sets the counter to zero.
func (c *Counter) Reset() { c.value = 0 }

// Saturate sets the counter to its maximum value.
func (c *Counter) Saturate() { c.value = c.max }

// IsSaturated reports whether the counter is at its maximum value.
func (c Counter) IsSaturated() bool { return c.value == c.max }

// Set assigns the counter's value, clamping to [0, Max].
func (c *Counter) Set(v uint32) {
	if v > c.max {
		v = c.max
	}
	c.value = v
}

// HighBit returns the most significant bit of the counter, used by the PC
// classifier to turn a confidence counter into a friendly/averse verdict.
func (c Counter) HighBit() bool {
	half := (c.max + 1) / 2
	return c.value >= half
}
