package edges

import (
	"fmt"

	"github.com/tidwall/btree"

	"github.com/paulinet/qmcgraph/pkg/core/types"
	"github.com/paulinet/qmcgraph/pkg/molecule"
)

// builderEntry is a registry item of the Factory.
type builderEntry struct {
	typ     Type
	builder *Builder
}

// builderEntryLess sorts entries by canonical edge type order.
func builderEntryLess(a, b builderEntry) bool {
	return a.typ.rank() < b.typ.rank()
}

// Factory builds every requested edge type for full electron configurations
// of one molecule. It owns one Builder per edge type; their occupancy limits
// persist across calls, which is how capacities adapt over a run.
//
// A Factory is not safe for concurrent use.
type Factory struct {
	mol       *molecule.Molecule
	edgeTypes []Type
	nNuc      int
	nUp       int
	nDown     int
	nuclei    types.Positions

	builders *btree.BTreeG[builderEntry]
}

// NewFactory creates the builders for edgeTypes. optsByType overrides the
// default cutoff and occupancy limit per type; zero fields keep the default.
func NewFactory(mol *molecule.Molecule, edgeTypes []Type, optsByType map[Type]EdgeOptions, fopts ...FactoryOption) (*Factory, error) {
	if mol == nil {
		return nil, fmt.Errorf("%w: nil molecule", ErrInvalidOptions)
	}
	if len(edgeTypes) == 0 {
		return nil, fmt.Errorf("%w: no edge types requested", ErrInvalidOptions)
	}
	for t := range optsByType {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: options for %q", ErrUnknownEdgeType, t)
		}
	}
	var cfg factoryConfig
	for _, opt := range fopts {
		opt(&cfg)
	}

	nNuc, nUp, nDown := mol.NParticles()
	f := &Factory{
		mol:      mol,
		nNuc:     nNuc,
		nUp:      nUp,
		nDown:    nDown,
		nuclei:   mol.NuclearPositions(),
		builders: btree.NewBTreeG[builderEntry](builderEntryLess),
	}

	for _, t := range edgeTypes {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEdgeType, t)
		}
		if _, dup := f.builders.Get(builderEntry{typ: t}); dup {
			continue
		}
		eo := optsByType[t].withDefaults()
		pol := policyFor(t, nNuc, nUp+nDown)
		var onGrow func(string, int, int)
		if cfg.onGrow != nil {
			typ := t
			onGrow = func(_ string, from, to int) { cfg.onGrow(typ, from, to) }
		}
		b, err := NewBuilder(BuilderOptions{
			Name:           string(t),
			Cutoff:         eo.Cutoff,
			OccupancyLimit: eo.OccupancyLimit,
			MaskSelf:       pol.maskSelf,
			SendMaskVal:    pol.sendMaskVal,
			RecMaskVal:     pol.recMaskVal,
			Precision:      cfg.precision,
			Workers:        cfg.workers,
			OnGrow:         onGrow,
		})
		if err != nil {
			return nil, fmt.Errorf("edge type %q: %w", t, err)
		}
		f.builders.Set(builderEntry{typ: t, builder: b})
		f.edgeTypes = append(f.edgeTypes, t)
	}
	return f, nil
}

// Molecule returns the molecule the factory was built for.
func (f *Factory) Molecule() *molecule.Molecule { return f.mol }

// EdgeTypes returns the requested edge types in request order.
func (f *Factory) EdgeTypes() []Type { return append([]Type(nil), f.edgeTypes...) }

// Builder returns the builder of an edge type.
func (f *Factory) Builder(t Type) (*Builder, bool) {
	e, ok := f.builders.Get(builderEntry{typ: t})
	return e.builder, ok
}

// Each calls fn for every builder in canonical edge type order.
func (f *Factory) Each(fn func(Type, *Builder)) {
	f.builders.Scan(func(e builderEntry) bool {
		fn(e.typ, e.builder)
		return true
	})
}

// OccupancyLimits reports the current limit of every builder.
func (f *Factory) OccupancyLimits() map[Type]int {
	out := make(map[Type]int, f.builders.Len())
	f.Each(func(t Type, b *Builder) { out[t] = b.OccupancyLimit() })
	return out
}

// Restore raises builder limits to previously saved values. Limits are never
// lowered and unknown or unrequested types are ignored.
func (f *Factory) Restore(limits map[Type]int) {
	for t, l := range limits {
		if b, ok := f.Builder(t); ok {
			b.Grow(l)
		}
	}
}

// Build returns the edge sets of every requested type for electron positions
// rs of shape [batch..., n_up+n_down, 3], spin-up electrons first. Electron
// indices are global (0..n_elec-1); nucleus indices run over 0..n_nuc-1.
func (f *Factory) Build(rs types.Positions) (map[Type]types.EdgeSet, error) {
	if rs.Rank() < 2 || rs.Width() != types.Dim {
		return nil, fmt.Errorf("%w: electron positions have shape %v", ErrShape, rs.Shape)
	}
	if rs.Particles() != f.nUp+f.nDown {
		return nil, fmt.Errorf("%w: got %d electrons, molecule has %d", ErrParticleCount, rs.Particles(), f.nUp+f.nDown)
	}

	nuclei := f.nuclei.Broadcast(rs.BatchShape())
	up := rs.SliceParticles(0, f.nUp)
	down := rs.SliceParticles(f.nUp, f.nUp+f.nDown)
	offUp := int32(f.nUp)

	out := make(map[Type]types.EdgeSet, len(f.edgeTypes))
	for _, t := range f.edgeTypes {
		b, _ := f.Builder(t)
		var (
			es  types.EdgeSet
			err error
		)
		switch t {
		case NucleusNucleus:
			es, err = b.Build(nuclei, nuclei, 0, 0)
		case NucleusElectron:
			es, err = b.Build(nuclei, rs, 0, 0)
		case ElectronNucleus:
			es, err = b.Build(rs, nuclei, 0, 0)
		case SameSpin:
			es, err = buildPair(b,
				pairCall{up, up, 0, 0},
				pairCall{down, down, offUp, offUp},
			)
		case OppositeSpin:
			es, err = buildPair(b,
				pairCall{up, down, 0, offUp},
				pairCall{down, up, offUp, 0},
			)
		}
		if err != nil {
			return nil, fmt.Errorf("edge type %q: %w", t, err)
		}
		out[t] = es
	}
	return out, nil
}

type pairCall struct {
	senders, receivers    types.Positions
	sendOffset, recOffset int32
}

// buildPair runs two builds on the same builder and joins them along the edge axis.
func buildPair(b *Builder, first, second pairCall) (types.EdgeSet, error) {
	e1, err := b.Build(first.senders, first.receivers, first.sendOffset, first.recOffset)
	if err != nil {
		return types.EdgeSet{}, err
	}
	e2, err := b.Build(second.senders, second.receivers, second.sendOffset, second.recOffset)
	if err != nil {
		return types.EdgeSet{}, err
	}
	return types.Concat(e1, e2)
}
