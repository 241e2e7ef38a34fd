package edges

import "fmt"

// Type labels one family of particle pairs.
type Type string

const (
	// NucleusNucleus connects nuclei to nuclei, without self-edges.
	NucleusNucleus Type = "nn"
	// NucleusElectron sends from nuclei to electrons.
	NucleusElectron Type = "ne"
	// ElectronNucleus sends from electrons to nuclei.
	ElectronNucleus Type = "en"
	// SameSpin connects electrons of equal spin, without self-edges.
	SameSpin Type = "same"
	// OppositeSpin connects electrons of opposite spin.
	OppositeSpin Type = "anti"
)

// AllTypes lists the edge types in canonical order.
var AllTypes = []Type{NucleusNucleus, NucleusElectron, ElectronNucleus, SameSpin, OppositeSpin}

// rank orders types canonically; unknown types sort last.
func (t Type) rank() int {
	for i, k := range AllTypes {
		if k == t {
			return i
		}
	}
	return len(AllTypes)
}

// Valid reports whether t is one of the known edge types.
func (t Type) Valid() bool { return t.rank() < len(AllTypes) }

// ParseType validates an edge type label.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEdgeType, s)
	}
	return t, nil
}

// maskPolicy is the part of a builder's configuration fixed by its edge type
// and the particle counts.
type maskPolicy struct {
	maskSelf    bool
	sendMaskVal int32
	recMaskVal  int32
}

// policyFor returns the self-masking rule and sentinel values of an edge type.
// Sentinels equal the size of the index space of each side, so they address
// the extra "masked" slot of a segment reduction over that side.
func policyFor(t Type, nNuc, nElec int) maskPolicy {
	nn, ne := int32(nNuc), int32(nElec)
	switch t {
	case NucleusNucleus:
		return maskPolicy{maskSelf: true, sendMaskVal: nn, recMaskVal: nn}
	case NucleusElectron:
		return maskPolicy{sendMaskVal: nn, recMaskVal: ne}
	case ElectronNucleus:
		return maskPolicy{sendMaskVal: ne, recMaskVal: nn}
	case SameSpin:
		return maskPolicy{maskSelf: true, sendMaskVal: ne, recMaskVal: ne}
	case OppositeSpin:
		return maskPolicy{sendMaskVal: ne, recMaskVal: ne}
	}
	panic(fmt.Sprintf("edges: no mask policy for %q", t))
}
