package flock

// ProjFCPFunc returns the projected FCP for core at the given candidate
// way budget. Implementations close over that core's projection
// occupancy vector grid, resolved as one opt.Vector per candidate
// budget, lazily evaluated here rather than precomputed for every
// budget up front.
type ProjFCPFunc func(core, budget int) float64

// Repartitioner runs the greedy way-budget search.
type Repartitioner struct {
	TotalWays int
	CPI []float64
	ProjFCP ProjFCPFunc
}

// Allocate distributes TotalWays ways across len(CPI) cores, repeatedly
// giving the next Δ-sized increment to whichever core maximizes
// (ProjFCP(budget+Δ) - ProjFCP(budget)) / CPI[core], starting every core
// at budget 0. Ties are broken in favor of the lowest-indexed core. The
// result always sums to TotalWays: the final increment is clamped to
// whatever remains in the pool.
func (r *Repartitioner) Allocate() []int {
	n := len(r.CPI)
	budgets := make([]int, n)
	if n == 0 || r.TotalWays <= 0 {
		return budgets
	}

	delta := Delta(r.TotalWays)
	pool := r.TotalWays

	for pool > 0 {
		step := delta
		if step > pool {
			step = pool
		}

		best := -1
		bestGain := 0.0
		for c := 0; c < n; c++ {
			cpi := r.CPI[c]
			if cpi <= 0 {
				cpi = 1
			}
			gain := (r.ProjFCP(c, budgets[c]+step) - r.ProjFCP(c, budgets[c])) / cpi
			if best == -1 || gain > bestGain {
				best = c
				bestGain = gain
			}
		}

		budgets[best] += step
		pool -= step
	}

	return budgets
}
