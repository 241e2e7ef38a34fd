// Package molecule describes the fixed nuclear framework the particle graph is
// built over: nuclear coordinates, charges and the spin-resolved electron
// counts. It also provides the electron configurations used to warm up edge
// capacities (initial clouds around nuclei and Gaussian random-walk proposals).
//
// Coordinates are in bohr.
package molecule

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulinet/qmcgraph/pkg/core/types"
)

var (
	// ErrInvalidMolecule reports inconsistent coordinates, charges or spin.
	ErrInvalidMolecule = errors.New("molecule: invalid definition")
	// ErrUnknownPreset is returned by Preset for an unregistered name.
	ErrUnknownPreset = errors.New("molecule: unknown preset")
)

// Molecule is immutable after New.
type Molecule struct {
	coords  [][3]float64
	charges []float64
	charge  int
	spin    int

	nUp, nDown int
}

// New validates the definition and derives the electron counts:
// n_elec = sum(charges) - charge, n_up - n_down = spin.
func New(coords [][3]float64, charges []float64, charge, spin int) (*Molecule, error) {
	if len(coords) != len(charges) {
		return nil, fmt.Errorf("%w: %d coordinates but %d charges", ErrInvalidMolecule, len(coords), len(charges))
	}
	var total float64
	for i, z := range charges {
		if z <= 0 || z != math.Trunc(z) {
			return nil, fmt.Errorf("%w: charge %d must be a positive integer, got %v", ErrInvalidMolecule, i, z)
		}
		total += z
	}
	nElec := int(total) - charge
	if nElec < 0 {
		return nil, fmt.Errorf("%w: charge %d leaves %d electrons", ErrInvalidMolecule, charge, nElec)
	}
	if spin < 0 || spin > nElec || (nElec+spin)%2 != 0 {
		return nil, fmt.Errorf("%w: spin %d incompatible with %d electrons", ErrInvalidMolecule, spin, nElec)
	}
	m := &Molecule{
		coords:  append([][3]float64(nil), coords...),
		charges: append([]float64(nil), charges...),
		charge:  charge,
		spin:    spin,
		nUp:     (nElec + spin) / 2,
		nDown:   (nElec - spin) / 2,
	}
	return m, nil
}

// NParticles returns the number of nuclei, spin-up and spin-down electrons.
func (m *Molecule) NParticles() (nNuc, nUp, nDown int) {
	return len(m.coords), m.nUp, m.nDown
}

// NElectrons is n_up + n_down.
func (m *Molecule) NElectrons() int { return m.nUp + m.nDown }

// Charges returns a copy of the nuclear charges.
func (m *Molecule) Charges() []float64 { return append([]float64(nil), m.charges...) }

// Coords returns a copy of the nuclear coordinates.
func (m *Molecule) Coords() [][3]float64 { return append([][3]float64(nil), m.coords...) }

// NuclearPositions returns the nuclear coordinates as an unbatched [n_nuc, 3] set.
func (m *Molecule) NuclearPositions() types.Positions {
	flat := make([]float64, 0, 3*len(m.coords))
	for _, c := range m.coords {
		flat = append(flat, c[0], c[1], c[2])
	}
	return types.Positions{Shape: []int{len(m.coords), types.Dim}, Coords: flat}
}

func (m *Molecule) String() string {
	return fmt.Sprintf("Molecule(n_nuc=%d, n_up=%d, n_down=%d, charge=%d)", len(m.coords), m.nUp, m.nDown, m.charge)
}

var presets = map[string]func() (*Molecule, error){
	"H2": func() (*Molecule, error) {
		return New([][3]float64{{0, 0, 0}, {1.4, 0, 0}}, []float64{1, 1}, 0, 0)
	},
	"LiH": func() (*Molecule, error) {
		return New([][3]float64{{0, 0, 0}, {3.015, 0, 0}}, []float64{3, 1}, 0, 0)
	},
	"Be": func() (*Molecule, error) {
		return New([][3]float64{{0, 0, 0}}, []float64{4}, 0, 0)
	},
	"H4": func() (*Molecule, error) {
		return New([][3]float64{{0, 0, 0}, {1.8, 0, 0}, {3.6, 0, 0}, {5.4, 0, 0}}, []float64{1, 1, 1, 1}, 0, 0)
	},
	"HeH+": func() (*Molecule, error) {
		return New([][3]float64{{0, 0, 0}, {1.46, 0, 0}}, []float64{2, 1}, 1, 0)
	},
}

// Preset returns a registered test system by name.
func Preset(name string) (*Molecule, error) {
	ctor, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownPreset, name, PresetNames())
	}
	return ctor()
}

// PresetNames lists the registered presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for k := range presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
