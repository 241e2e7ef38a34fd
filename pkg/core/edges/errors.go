package edges

import "errors"

// Precondition violations. They signal a caller bug and are returned before
// any distance is computed; capacity overflow is never reported as an error.
var (
	// ErrShape reports positions whose trailing dimension is not 3 or whose
	// rank is below 2.
	ErrShape = errors.New("edges: invalid position shape")
	// ErrBatchMismatch reports sender and receiver sets with different batch prefixes.
	ErrBatchMismatch = errors.New("edges: batch shapes differ")
	// ErrSelfMaskSize reports self-masking between sets of unequal size.
	ErrSelfMaskSize = errors.New("edges: self-masking requires equal particle counts")
	// ErrInvalidOptions reports an unusable builder or factory configuration.
	ErrInvalidOptions = errors.New("edges: invalid options")
	// ErrUnknownEdgeType reports an edge type label outside nn, ne, en, same, anti.
	ErrUnknownEdgeType = errors.New("edges: unknown edge type")
	// ErrCandidates reports a candidate table whose size does not match the
	// sender positions.
	ErrCandidates = errors.New("edges: candidate table does not match positions")
	// ErrParticleCount reports electron positions that do not match the molecule.
	ErrParticleCount = errors.New("edges: electron count does not match molecule")
)
