// Package graph defines the particle graph consumed by message-passing layers
// and the stateless update step those layers are composed from.
//
// A Graph pairs per-particle node features with the typed edge sets produced
// by package edges. Update composes an optional edge update, an aggregation of
// edges onto nodes and an optional node update into a single function over
// graphs; it keeps no state between calls.
package graph

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/paulinet/qmcgraph/pkg/core/edges"
	"github.com/paulinet/qmcgraph/pkg/core/types"
)

// Graph is a pair of node and edge data.
type Graph[N, E any] struct {
	Nodes N
	Edges E
}

// EdgeUpdateFunc recomputes edge data from the nodes and the current edges.
type EdgeUpdateFunc[N, E any] func(nodes N, edges E) E

// AggregateFunc reduces the edges incident to each node.
type AggregateFunc[N, E, A any] func(nodes N, edges E) A

// NodeUpdateFunc recomputes node data from the nodes and their aggregates.
type NodeUpdateFunc[N, A any] func(nodes N, aggregated A) N

// Update returns the composition edge update, aggregate, node update.
//
// updateEdges and updateNodes may be nil. The aggregate only feeds the node
// update, so it is evaluated only when updateNodes is set.
func Update[N, E, A any](aggregate AggregateFunc[N, E, A], updateNodes NodeUpdateFunc[N, A], updateEdges EdgeUpdateFunc[N, E]) func(Graph[N, E]) Graph[N, E] {
	return func(g Graph[N, E]) Graph[N, E] {
		nodes, es := g.Nodes, g.Edges
		if updateEdges != nil {
			es = updateEdges(nodes, es)
		}
		if updateNodes != nil {
			nodes = updateNodes(nodes, aggregate(nodes, es))
		}
		return Graph[N, E]{Nodes: nodes, Edges: es}
	}
}

// Layer is a message-passing layer expressed through the three update parts.
// Any method may return nil to skip that part.
type Layer[N, E, A any] interface {
	UpdateEdges() EdgeUpdateFunc[N, E]
	Aggregate() AggregateFunc[N, E, A]
	UpdateNodes() NodeUpdateFunc[N, A]
}

// Apply runs one layer over g.
func Apply[N, E, A any](l Layer[N, E, A], g Graph[N, E]) Graph[N, E] {
	return Update(l.Aggregate(), l.UpdateNodes(), l.UpdateEdges())(g)
}

// Nodes holds one feature row per particle of a single configuration.
type Nodes struct {
	Nuclei    *mat.Dense
	Electrons *mat.Dense
}

// Edges maps each edge type to its edge set.
type Edges map[edges.Type]types.EdgeSet

// Element returns batch element b of every edge set as an unbatched set.
// Data fields are sliced along with the indices.
func (e Edges) Element(b int) Edges {
	out := make(Edges, len(e))
	for t, es := range e {
		c := es.Capacity()
		s, r := es.Element(b)
		el := types.EdgeSet{
			Shape:     []int{c},
			Senders:   s,
			Receivers: r,
			Data:      make(map[string][]float64, len(es.Data)),
		}
		for name, v := range es.Data {
			w := es.FieldWidth(name)
			el.Data[name] = v[b*c*w : (b+1)*c*w]
		}
		out[t] = el
	}
	return out
}

// NodesFromPositions uses the coordinates of batch element b as the initial
// node features. nuclei may be unbatched.
func NodesFromPositions(nuclei, electrons types.Positions, b int) (Nodes, error) {
	nuc, err := elementCoords(nuclei, b)
	if err != nil {
		return Nodes{}, fmt.Errorf("nuclei: %w", err)
	}
	elec, err := elementCoords(electrons, b)
	if err != nil {
		return Nodes{}, fmt.Errorf("electrons: %w", err)
	}
	return Nodes{
		Nuclei:    denseRows(nuclei.Particles(), nuclei.Width(), nuc),
		Electrons: denseRows(electrons.Particles(), electrons.Width(), elec),
	}, nil
}

// denseRows copies a row-major block into a new matrix, or returns nil for an
// empty block since mat.Dense has no zero-sized form.
func denseRows(r, c int, data []float64) *mat.Dense {
	if r == 0 || c == 0 {
		return nil
	}
	return mat.NewDense(r, c, append([]float64(nil), data...))
}

// elementCoords returns the coordinates of element b, broadcasting an
// unbatched set.
func elementCoords(p types.Positions, b int) ([]float64, error) {
	if p.Rank() < 2 {
		return nil, fmt.Errorf("%w: positions have shape %v", types.ErrShape, p.Shape)
	}
	if p.Rank() == 2 {
		return p.Coords, nil
	}
	if b < 0 || b >= p.BatchSize() {
		return nil, fmt.Errorf("%w: batch element %d out of range for shape %v", types.ErrShape, b, p.Shape)
	}
	return p.Element(b), nil
}
