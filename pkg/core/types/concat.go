package types

import (
	"fmt"
	"sort"
)

// Concat joins edge sets along the edge axis, batch element by batch element,
// so the result behaves as one homogeneous set whose capacity is the sum of
// the inputs' capacities. All inputs must share a batch shape and carry the
// same Data fields with the same widths.
func Concat(sets ...EdgeSet) (EdgeSet, error) {
	if len(sets) == 0 {
		return EdgeSet{}, fmt.Errorf("%w: nothing to concatenate", ErrShape)
	}
	batch := sets[0].BatchShape()
	fields := fieldNames(sets[0])
	total := 0
	for i, s := range sets {
		if !EqualShape(s.BatchShape(), batch) {
			return EdgeSet{}, fmt.Errorf("%w: set %d has batch shape %v, want %v", ErrShape, i, s.BatchShape(), batch)
		}
		if got := fieldNames(s); !equalStrings(got, fields) {
			return EdgeSet{}, fmt.Errorf("%w: set %d has data fields %v, want %v", ErrShape, i, got, fields)
		}
		for _, f := range fields {
			if s.FieldWidth(f) != sets[0].FieldWidth(f) {
				return EdgeSet{}, fmt.Errorf("%w: field %q width differs in set %d", ErrShape, f, i)
			}
		}
		total += s.Capacity()
	}

	nb := Numel(batch)
	out := EdgeSet{
		Shape:     append(append([]int(nil), batch...), total),
		Senders:   make([]int32, 0, nb*total),
		Receivers: make([]int32, 0, nb*total),
		Data:      make(map[string][]float64, len(fields)),
	}
	for b := 0; b < nb; b++ {
		for _, s := range sets {
			snd, rcv := s.Element(b)
			out.Senders = append(out.Senders, snd...)
			out.Receivers = append(out.Receivers, rcv...)
		}
	}
	for _, f := range fields {
		w := sets[0].FieldWidth(f)
		joined := make([]float64, 0, nb*total*w)
		for b := 0; b < nb; b++ {
			for _, s := range sets {
				stride := s.Capacity() * w
				joined = append(joined, s.Data[f][b*stride:(b+1)*stride]...)
			}
		}
		out.Data[f] = joined
	}
	return out, nil
}

func fieldNames(e EdgeSet) []string {
	names := make([]string, 0, len(e.Data))
	for k := range e.Data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func equalStrings(a, b []string) bool {
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
