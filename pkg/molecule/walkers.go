package molecule

import (
	"math/rand"

	"github.com/paulinet/qmcgraph/pkg/core/types"
)

// electronSites assigns every electron to a nucleus. Nuclei are visited
// round-robin while they still have unassigned charge; spin-up electrons take
// the first sites and spin-down the following ones, so both spin channels are
// spread over the molecule. Electrons beyond the total charge (anions) wrap
// around to the first nuclei again.
func (m *Molecule) electronSites() []int {
	n := m.NElectrons()
	sites := make([]int, 0, n)
	if len(m.coords) == 0 {
		return sites
	}
	remaining := make([]int, len(m.charges))
	for i, z := range m.charges {
		remaining[i] = int(z)
	}
	left := 0
	for _, r := range remaining {
		left += r
	}
	for left > 0 && len(sites) < n {
		for i := range remaining {
			if remaining[i] > 0 && len(sites) < n {
				sites = append(sites, i)
				remaining[i]--
				left--
			}
		}
	}
	for i := 0; len(sites) < n; i++ {
		sites = append(sites, i%len(m.coords))
	}
	return sites
}

// InitElectrons draws a batch of electron configurations, each electron placed
// in a unit Gaussian cloud around its assigned nucleus. The result has shape
// [batch, n_up+n_down, 3] with spin-up electrons first.
func (m *Molecule) InitElectrons(rng *rand.Rand, batch int) types.Positions {
	n := m.NElectrons()
	sites := m.electronSites()
	coords := make([]float64, 0, batch*n*types.Dim)
	for b := 0; b < batch; b++ {
		for i := 0; i < n; i++ {
			var center [3]float64
			if len(sites) > 0 {
				center = m.coords[sites[i]]
			}
			for k := 0; k < types.Dim; k++ {
				coords = append(coords, center[k]+rng.NormFloat64())
			}
		}
	}
	return types.Positions{Shape: []int{batch, n, types.Dim}, Coords: coords}
}

// Propose returns a Gaussian random-walk move of every coordinate with the
// given step size. There is no acceptance test; this only explores
// configurations for capacity warm-up.
func Propose(rng *rand.Rand, rs types.Positions, step float64) types.Positions {
	out := make([]float64, len(rs.Coords))
	for i, x := range rs.Coords {
		out[i] = x + step*rng.NormFloat64()
	}
	return types.Positions{Shape: append([]int(nil), rs.Shape...), Coords: out}
}
