package graph

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/paulinet/qmcgraph/pkg/core/types"
)

// SegmentSum sums the rows of values into n segments by idx: row i is added
// to segment idx[i]. Indices outside [0, n), in particular the mask sentinels
// of an edge set, address the dropped (n+1)-th segment and contribute nothing.
// It panics if len(idx) differs from the number of rows or n < 1.
func SegmentSum(idx []int32, values *mat.Dense, n int) *mat.Dense {
	r, c := values.Dims()
	if len(idx) != r {
		panic(fmt.Sprintf("graph: %d segment ids for %d rows", len(idx), r))
	}
	out := mat.NewDense(n, c, nil)
	for i, s := range idx {
		if s < 0 || int(s) >= n {
			continue
		}
		floats.Add(out.RawRowView(int(s)), values.RawRowView(i))
	}
	return out
}

// SumField aggregates the Data field name of an unbatched edge set onto the
// n nodes of one side: by receiver when byReceiver is set, by sender otherwise.
func SumField(es types.EdgeSet, name string, n int, byReceiver bool) (*mat.Dense, error) {
	if len(es.Shape) != 1 {
		return nil, fmt.Errorf("%w: expected an unbatched edge set, got shape %v", types.ErrShape, es.Shape)
	}
	v, ok := es.Data[name]
	if !ok {
		return nil, fmt.Errorf("%w: edge set has no field %q", types.ErrShape, name)
	}
	w := es.FieldWidth(name)
	if w == 0 || len(v) != w*es.Capacity() {
		return nil, fmt.Errorf("%w: field %q has %d values for %d edges", types.ErrShape, name, len(v), es.Capacity())
	}
	idx := es.Senders
	if byReceiver {
		idx = es.Receivers
	}
	return SegmentSum(idx, mat.NewDense(es.Capacity(), w, v), n), nil
}
