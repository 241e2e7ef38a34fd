package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPositions(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		p, err := NewPositions([]int{2, 3, 3}, make([]float64, 18))
		require.NoError(t, err)
		assert.Equal(t, 3, p.Particles())
		assert.Equal(t, []int{2}, p.BatchShape())
		assert.Equal(t, 2, p.BatchSize())
	})

	t.Run("RankTooLow", func(t *testing.T) {
		_, err := NewPositions([]int{3}, make([]float64, 3))
		require.ErrorIs(t, err, ErrShape)
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		_, err := NewPositions([]int{2, 3}, make([]float64, 5))
		require.ErrorIs(t, err, ErrShape)
	})

	t.Run("NegativeDimension", func(t *testing.T) {
		// The product is 6 and would match the coordinates.
		_, err := NewPositions([]int{-1, -1, 2, 3}, make([]float64, 6))
		require.ErrorIs(t, err, ErrShape)
		_, err = NewPositions([]int{0, -2, 3}, nil)
		require.ErrorIs(t, err, ErrShape)
	})

	t.Run("Overflow", func(t *testing.T) {
		// (MaxInt/2+1) * 2 wraps around to a negative product.
		_, err := NewPositions([]int{math.MaxInt/2 + 1, 2, 1, 3}, nil)
		require.ErrorIs(t, err, ErrShape)
		_, err = NewPositions([]int{math.MaxInt, 2, 3}, make([]float64, 6))
		require.ErrorIs(t, err, ErrShape)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		p, err := NewPositions([]int{0, 2, 3}, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, p.BatchSize())
	})
}

func TestSliceParticles(t *testing.T) {
	p := MustPositions([]int{2, 3, 3}, []float64{
		0, 0, 0, 1, 1, 1, 2, 2, 2,
		10, 10, 10, 11, 11, 11, 12, 12, 12,
	})
	down := p.SliceParticles(1, 3)
	assert.Equal(t, []int{2, 2, 3}, down.Shape)
	assert.Equal(t, []float64{1, 1, 1, 2, 2, 2, 11, 11, 11, 12, 12, 12}, down.Coords)

	empty := p.SliceParticles(3, 3)
	assert.Equal(t, []int{2, 0, 3}, empty.Shape)
	assert.Empty(t, empty.Coords)
}

func TestBroadcast(t *testing.T) {
	p := MustPositions([]int{1, 3}, []float64{1, 2, 3})
	b := p.Broadcast([]int{2, 2})
	assert.Equal(t, []int{2, 2, 1, 3}, b.Shape)
	assert.Len(t, b.Coords, 12)
	assert.Equal(t, []float64{1, 2, 3}, b.Element(3))
}

func TestConcat(t *testing.T) {
	a := EdgeSet{
		Shape:     []int{2, 2},
		Senders:   []int32{0, 1, 2, 3},
		Receivers: []int32{4, 5, 6, 7},
		Data:      map[string][]float64{"dist": {1, 2, 3, 4}},
	}
	b := EdgeSet{
		Shape:     []int{2, 1},
		Senders:   []int32{8, 9},
		Receivers: []int32{10, 11},
		Data:      map[string][]float64{"dist": {5, 6}},
	}

	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, out.Shape)
	assert.Equal(t, []int32{0, 1, 8, 2, 3, 9}, out.Senders)
	assert.Equal(t, []int32{4, 5, 10, 6, 7, 11}, out.Receivers)
	assert.Equal(t, []float64{1, 2, 5, 3, 4, 6}, out.Data["dist"])

	t.Run("BatchMismatch", func(t *testing.T) {
		c := FilledEdgeSet([]int{3, 1}, 0, 0)
		_, err := Concat(FilledEdgeSet([]int{2, 1}, 0, 0), c)
		require.ErrorIs(t, err, ErrShape)
	})

	t.Run("FieldMismatch", func(t *testing.T) {
		_, err := Concat(a, FilledEdgeSet([]int{2, 1}, 0, 0))
		require.ErrorIs(t, err, ErrShape)
	})
}

func TestFilledEdgeSet(t *testing.T) {
	e := FilledEdgeSet([]int{3}, 7, 9)
	assert.Equal(t, 3, e.Capacity())
	assert.Empty(t, e.BatchShape())
	assert.Equal(t, []int32{7, 7, 7}, e.Senders)
	assert.Equal(t, []int32{9, 9, 9}, e.Receivers)
}
