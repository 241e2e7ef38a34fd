// Package types holds the array-shaped values that flow between the edge
// construction core and the layers that consume it.
//
// Every value carries an explicit shape and a flat row-major backing slice.
// Leading axes of a shape are batch axes that are iterated independently; the
// trailing axes are fixed by the type (particles and coordinates for Positions,
// the edge axis for EdgeSet).
package types

import (
	"errors"
	"fmt"
	"math"
)

// Dim is the spatial dimension of every particle coordinate.
const Dim = 3

// ErrShape reports a shape that does not match its backing data or violates
// the layout a type requires.
var ErrShape = errors.New("types: invalid shape")

// Positions is an ordered set of 3-D coordinates with an optional batch prefix.
// Shape is [batch..., N, 3] and Coords has prod(Shape) entries.
type Positions struct {
	Shape  []int
	Coords []float64
}

// NewPositions checks that coords matches shape and returns the set.
// The trailing dimension is not required to be 3 here; builders validate that
// themselves so the error surfaces at the call that depends on it.
func NewPositions(shape []int, coords []float64) (Positions, error) {
	if len(shape) < 2 {
		return Positions{}, fmt.Errorf("%w: positions need rank >= 2, got %v", ErrShape, shape)
	}
	n, err := checkedNumel(shape)
	if err != nil {
		return Positions{}, err
	}
	if n != len(coords) {
		return Positions{}, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrShape, shape, n, len(coords))
	}
	return Positions{Shape: append([]int(nil), shape...), Coords: coords}, nil
}

// MustPositions is NewPositions for literals in tests and presets.
func MustPositions(shape []int, coords []float64) Positions {
	p, err := NewPositions(shape, coords)
	if err != nil {
		panic(err)
	}
	return p
}

// Rank is the number of axes.
func (p Positions) Rank() int { return len(p.Shape) }

// Particles is the size of the particle axis.
func (p Positions) Particles() int { return p.Shape[len(p.Shape)-2] }

// Width is the size of the trailing coordinate axis.
func (p Positions) Width() int { return p.Shape[len(p.Shape)-1] }

// BatchShape returns the leading batch axes (possibly empty).
func (p Positions) BatchShape() []int { return p.Shape[:len(p.Shape)-2] }

// BatchSize is the product of the batch axes, 1 for an unbatched set.
func (p Positions) BatchSize() int { return Numel(p.BatchShape()) }

// Element returns the coordinates of batch element b as a flat N*Width slice.
// The slice aliases p.Coords.
func (p Positions) Element(b int) []float64 {
	stride := p.Particles() * p.Width()
	return p.Coords[b*stride : (b+1)*stride]
}

// SliceParticles copies particles [lo, hi) of every batch element into a new set.
func (p Positions) SliceParticles(lo, hi int) Positions {
	n, w := p.Particles(), p.Width()
	if lo < 0 || hi > n || lo > hi {
		panic(fmt.Sprintf("types: particle range [%d, %d) out of bounds for %d particles", lo, hi, n))
	}
	batch := p.BatchSize()
	out := make([]float64, 0, batch*(hi-lo)*w)
	for b := 0; b < batch; b++ {
		el := p.Element(b)
		out = append(out, el[lo*w:hi*w]...)
	}
	shape := append(append([]int(nil), p.BatchShape()...), hi-lo, w)
	return Positions{Shape: shape, Coords: out}
}

// Broadcast repeats an unbatched set over the given batch prefix.
func (p Positions) Broadcast(batch []int) Positions {
	if len(p.Shape) != 2 {
		panic(fmt.Sprintf("types: can only broadcast unbatched positions, got shape %v", p.Shape))
	}
	reps := Numel(batch)
	out := make([]float64, 0, reps*len(p.Coords))
	for i := 0; i < reps; i++ {
		out = append(out, p.Coords...)
	}
	shape := append(append([]int(nil), batch...), p.Shape...)
	return Positions{Shape: shape, Coords: out}
}

// EdgeSet is a batch of fixed-capacity edge lists. Shape is [batch..., C];
// Senders and Receivers hold prod(Shape) indices. Slots past the true edge
// count hold the mask sentinels chosen by the builder that produced the set.
//
// Data holds auxiliary per-edge fields. A field's length must be a multiple of
// prod(Shape); the multiple is the field width (e.g. 3 for difference vectors).
type EdgeSet struct {
	Shape     []int
	Senders   []int32
	Receivers []int32
	Data      map[string][]float64
}

// Capacity is the length of the edge axis.
func (e EdgeSet) Capacity() int { return e.Shape[len(e.Shape)-1] }

// BatchShape returns the leading batch axes (possibly empty).
func (e EdgeSet) BatchShape() []int { return e.Shape[:len(e.Shape)-1] }

// BatchSize is the product of the batch axes.
func (e EdgeSet) BatchSize() int { return Numel(e.BatchShape()) }

// Element returns the sender and receiver indices of batch element b.
// Both slices alias the set.
func (e EdgeSet) Element(b int) (senders, receivers []int32) {
	c := e.Capacity()
	return e.Senders[b*c : (b+1)*c], e.Receivers[b*c : (b+1)*c]
}

// FieldWidth returns the per-edge width of a Data field, or 0 if absent.
func (e EdgeSet) FieldWidth(name string) int {
	v, ok := e.Data[name]
	if !ok {
		return 0
	}
	n := Numel(e.Shape)
	if n == 0 {
		return 0
	}
	return len(v) / n
}

// FilledEdgeSet returns a set of the given shape with every slot set to the
// sender and receiver sentinels.
func FilledEdgeSet(shape []int, sendVal, recVal int32) EdgeSet {
	n := Numel(shape)
	s := make([]int32, n)
	r := make([]int32, n)
	for i := range s {
		s[i] = sendVal
		r[i] = recVal
	}
	return EdgeSet{
		Shape:     append([]int(nil), shape...),
		Senders:   s,
		Receivers: r,
		Data:      map[string][]float64{},
	}
}

// Numel is the product of a shape's axes; the empty shape has one element.
func Numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// checkedNumel is Numel for untrusted shapes: negative axes and products
// that overflow int are rejected.
func checkedNumel(shape []int) (int, error) {
	hasZero := false
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
		if d == 0 {
			hasZero = true
		}
	}
	if hasZero {
		return 0, nil
	}
	n := 1
	for _, d := range shape {
		if n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: shape %v overflows", ErrShape, shape)
		}
		n *= d
	}
	return n, nil
}

// EqualShape reports whether two shapes are identical.
func EqualShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
