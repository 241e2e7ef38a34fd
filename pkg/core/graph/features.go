package graph

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/paulinet/qmcgraph/pkg/core/edges"
	"github.com/paulinet/qmcgraph/pkg/core/types"
)

// Names of the Data fields written by EdgeDifferences.
const (
	FieldDiff = "diff"
	FieldDist = "dist"
)

// EdgeDifferences returns a copy of es with two Data fields: FieldDiff, the
// vector receiver - sender (3 values per edge), and FieldDist, its length.
// Slots whose sender or receiver is out of range of its position set are
// masked and get zeros.
//
// senders and receivers index the global particle spaces of the edge set; an
// unbatched position set is shared by every batch element.
func EdgeDifferences(es types.EdgeSet, senders, receivers types.Positions) (types.EdgeSet, error) {
	for _, p := range []types.Positions{senders, receivers} {
		if p.Rank() < 2 || p.Width() != types.Dim {
			return types.EdgeSet{}, fmt.Errorf("%w: positions have shape %v", types.ErrShape, p.Shape)
		}
		if p.Rank() > 2 && !types.EqualShape(p.BatchShape(), es.BatchShape()) {
			return types.EdgeSet{}, fmt.Errorf("%w: positions batch %v, edges batch %v", types.ErrShape, p.BatchShape(), es.BatchShape())
		}
	}

	nb, c := es.BatchSize(), es.Capacity()
	diff := make([]float64, nb*c*types.Dim)
	dist := make([]float64, nb*c)
	ns, nr := int32(senders.Particles()), int32(receivers.Particles())

	for b := 0; b < nb; b++ {
		ps, err := elementCoords(senders, b)
		if err != nil {
			return types.EdgeSet{}, err
		}
		pr, err := elementCoords(receivers, b)
		if err != nil {
			return types.EdgeSet{}, err
		}
		snd, rcv := es.Element(b)
		for i := range snd {
			s, r := snd[i], rcv[i]
			if s < 0 || s >= ns || r < 0 || r >= nr {
				continue
			}
			slot := (b*c + i) * types.Dim
			d := diff[slot : slot+types.Dim]
			floats.SubTo(d, pr[int(r)*types.Dim:(int(r)+1)*types.Dim], ps[int(s)*types.Dim:(int(s)+1)*types.Dim])
			dist[b*c+i] = floats.Norm(d, 2)
		}
	}

	out := types.EdgeSet{
		Shape:     append([]int(nil), es.Shape...),
		Senders:   es.Senders,
		Receivers: es.Receivers,
		Data:      make(map[string][]float64, len(es.Data)+2),
	}
	for k, v := range es.Data {
		out.Data[k] = v
	}
	out.Data[FieldDiff] = diff
	out.Data[FieldDist] = dist
	return out, nil
}

// WithDifferences applies EdgeDifferences to every set of es, pairing each
// edge type with the position sets its senders and receivers index.
func WithDifferences(es Edges, nuclei, electrons types.Positions) (Edges, error) {
	out := make(Edges, len(es))
	for t, set := range es {
		var snd, rcv types.Positions
		switch t {
		case edges.NucleusNucleus:
			snd, rcv = nuclei, nuclei
		case edges.NucleusElectron:
			snd, rcv = nuclei, electrons
		case edges.ElectronNucleus:
			snd, rcv = electrons, nuclei
		case edges.SameSpin, edges.OppositeSpin:
			snd, rcv = electrons, electrons
		default:
			return nil, fmt.Errorf("%w: %q", edges.ErrUnknownEdgeType, t)
		}
		withDiff, err := EdgeDifferences(set, snd, rcv)
		if err != nil {
			return nil, fmt.Errorf("edge type %q: %w", t, err)
		}
		out[t] = withDiff
	}
	return out, nil
}
