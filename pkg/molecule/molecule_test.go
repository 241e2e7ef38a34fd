package molecule

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCounts(t *testing.T) {
	cases := []struct {
		name             string
		charges          []float64
		charge, spin     int
		wantUp, wantDown int
	}{
		{"H2", []float64{1, 1}, 0, 0, 1, 1},
		{"LiH", []float64{3, 1}, 0, 0, 2, 2},
		{"Li", []float64{3}, 0, 1, 2, 1},
		{"HeH+", []float64{2, 1}, 1, 0, 1, 1},
		{"H-", []float64{1}, -1, 0, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coords := make([][3]float64, len(tc.charges))
			m, err := New(coords, tc.charges, tc.charge, tc.spin)
			require.NoError(t, err)
			nNuc, nUp, nDown := m.NParticles()
			assert.Equal(t, len(tc.charges), nNuc)
			assert.Equal(t, tc.wantUp, nUp)
			assert.Equal(t, tc.wantDown, nDown)
		})
	}
}

func TestNewRejects(t *testing.T) {
	_, err := New([][3]float64{{0, 0, 0}}, []float64{1, 1}, 0, 0)
	require.ErrorIs(t, err, ErrInvalidMolecule)

	_, err = New([][3]float64{{0, 0, 0}}, []float64{1.5}, 0, 0)
	require.ErrorIs(t, err, ErrInvalidMolecule)

	// H with an even spin cannot pair one electron.
	_, err = New([][3]float64{{0, 0, 0}}, []float64{1}, 0, 0)
	require.ErrorIs(t, err, ErrInvalidMolecule)

	_, err = New([][3]float64{{0, 0, 0}}, []float64{1}, 2, 0)
	require.ErrorIs(t, err, ErrInvalidMolecule)
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		m, err := Preset(name)
		require.NoError(t, err, name)
		assert.Positive(t, m.NElectrons(), name)
	}
	_, err := Preset("C60")
	require.ErrorIs(t, err, ErrUnknownPreset)
}

func TestNuclearPositions(t *testing.T) {
	m, err := Preset("H2")
	require.NoError(t, err)
	p := m.NuclearPositions()
	assert.Equal(t, []int{2, 3}, p.Shape)
	assert.Equal(t, []float64{0, 0, 0, 1.4, 0, 0}, p.Coords)
}

func TestInitElectrons(t *testing.T) {
	m, err := Preset("LiH")
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))

	rs := m.InitElectrons(rng, 5)
	assert.Equal(t, []int{5, 4, 3}, rs.Shape)
	assert.Len(t, rs.Coords, 5*4*3)

	// Li gets three sites, H one, interleaved round-robin.
	assert.Equal(t, []int{0, 1, 0, 0}, m.electronSites())

	moved := Propose(rng, rs, 0.1)
	assert.Equal(t, rs.Shape, moved.Shape)
	assert.NotEqual(t, rs.Coords, moved.Coords)
}
