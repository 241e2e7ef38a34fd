package edges

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paulinet/qmcgraph/pkg/core/distance"
	"github.com/paulinet/qmcgraph/pkg/core/types"
	"github.com/paulinet/qmcgraph/pkg/metrics"
)

// BuilderOptions configures one Builder.
type BuilderOptions struct {
	// Name labels logs and metrics, usually the edge type.
	Name string
	// Cutoff is the strict distance threshold (> 0).
	Cutoff float64
	// OccupancyLimit is the initial edge capacity per batch element (>= 1).
	OccupancyLimit int
	// MaskSelf drops sender == receiver pairs. Requires equal mask values.
	MaskSelf bool
	// SendMaskVal and RecMaskVal fill the slots past the true edge count.
	SendMaskVal int32
	RecMaskVal  int32
	// Precision selects the distance kernel; empty means float64.
	Precision distance.PrecisionType
	// Workers bounds the parallel batch map; 0 means GOMAXPROCS.
	Workers int
	// OnGrow, if set, is called after the occupancy limit was raised by a build.
	OnGrow func(name string, from, to int)
}

// BuilderStats summarises the history of a Builder.
type BuilderStats struct {
	Calls            int `json:"calls"`
	Growths          int `json:"growths"`
	LastMaxOccupancy int `json:"last_max_occupancy"`
}

// Builder turns sender/receiver positions into fixed-capacity edge sets and
// adapts its capacity to the data.
//
// The occupancy limit is ordinary mutable state owned by the Builder: it
// starts at the configured value, is raised to the largest occupancy ever
// observed, and never shrinks.
//
// A Builder is not safe for concurrent Build calls.
type Builder struct {
	opts           BuilderOptions
	dist           distance.Func
	occupancyLimit int
	stats          BuilderStats
}

// NewBuilder validates the options and returns a Builder.
func NewBuilder(opts BuilderOptions) (*Builder, error) {
	if !(opts.Cutoff > 0) {
		return nil, fmt.Errorf("%w: cutoff must be > 0, got %v", ErrInvalidOptions, opts.Cutoff)
	}
	if opts.OccupancyLimit < 1 {
		return nil, fmt.Errorf("%w: occupancy limit must be >= 1, got %d", ErrInvalidOptions, opts.OccupancyLimit)
	}
	if opts.MaskSelf && opts.SendMaskVal != opts.RecMaskVal {
		return nil, fmt.Errorf("%w: self-masking needs equal mask values, got %d and %d",
			ErrInvalidOptions, opts.SendMaskVal, opts.RecMaskVal)
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidOptions, opts.Workers)
	}
	dist, err := distance.GetFunc(opts.Precision)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if opts.Name == "" {
		opts.Name = "edges"
	}
	b := &Builder{
		opts:           opts,
		dist:           dist,
		occupancyLimit: opts.OccupancyLimit,
	}
	metrics.OccupancyLimit.WithLabelValues(opts.Name).Set(float64(b.occupancyLimit))
	return b, nil
}

// OccupancyLimit is the current capacity per batch element.
func (b *Builder) OccupancyLimit() int { return b.occupancyLimit }

// Options returns the options the Builder was created with.
func (b *Builder) Options() BuilderOptions { return b.opts }

// Stats returns counters about past builds.
func (b *Builder) Stats() BuilderStats { return b.stats }

// Grow raises the occupancy limit to at least limit. Lower values are ignored.
func (b *Builder) Grow(limit int) {
	if limit > b.occupancyLimit {
		b.occupancyLimit = limit
		metrics.OccupancyLimit.WithLabelValues(b.opts.Name).Set(float64(limit))
	}
}

// Build returns the edges from pos1 (senders) to pos2 (receivers) whose
// distance is below the cutoff. Both sets have shape [batch..., N, 3] with
// identical batch prefixes; the result has shape [batch..., C] with C the
// occupancy limit after this call. Offsets are added to the real indices so
// disjoint particle groups can share one global index space.
//
// If any batch element holds more edges than the current limit, the limit is
// raised to the batch maximum and the whole batch is recomputed once.
func (b *Builder) Build(pos1, pos2 types.Positions, sendOffset, recOffset int32) (types.EdgeSet, error) {
	if err := b.validate(pos1, pos2); err != nil {
		return types.EdgeSet{}, err
	}
	batchShape := pos1.BatchShape()

	if pos1.Particles() == 0 || pos2.Particles() == 0 {
		shape := append(append([]int(nil), batchShape...), b.occupancyLimit)
		return types.FilledEdgeSet(shape, b.opts.SendMaskVal, b.opts.RecMaskVal), nil
	}

	start := time.Now()
	b.stats.Calls++

	cand := AllCandidates(pos1.Particles(), pos2.Particles())
	if b.opts.MaskSelf {
		cand = MaskSelfEdges(cand)
	}
	params := PruneParams{
		Cutoff:      b.opts.Cutoff,
		SendOffset:  sendOffset,
		RecOffset:   recOffset,
		SendMaskVal: b.opts.SendMaskVal,
		RecMaskVal:  b.opts.RecMaskVal,
	}

	senders, receivers, maxOcc := b.computeBatch(pos1, pos2, cand, params, b.occupancyLimit)
	if maxOcc > b.occupancyLimit {
		slog.Info("edge capacity grown",
			"edge_type", b.opts.Name,
			"from", b.occupancyLimit,
			"to", maxOcc,
			"batch", pos1.BatchSize(),
		)
		from := b.occupancyLimit
		b.occupancyLimit = maxOcc
		b.stats.Growths++
		metrics.CapacityGrowthTotal.WithLabelValues(b.opts.Name).Inc()
		metrics.OccupancyLimit.WithLabelValues(b.opts.Name).Set(float64(maxOcc))
		senders, receivers, _ = b.computeBatch(pos1, pos2, cand, params, b.occupancyLimit)
		if b.opts.OnGrow != nil {
			b.opts.OnGrow(b.opts.Name, from, maxOcc)
		}
	}
	b.stats.LastMaxOccupancy = maxOcc

	metrics.MaxOccupancy.WithLabelValues(b.opts.Name).Observe(float64(maxOcc))
	metrics.BuildDuration.WithLabelValues(b.opts.Name).Observe(time.Since(start).Seconds())

	return types.EdgeSet{
		Shape:     append(append([]int(nil), batchShape...), b.occupancyLimit),
		Senders:   senders,
		Receivers: receivers,
		Data:      map[string][]float64{},
	}, nil
}

func (b *Builder) validate(pos1, pos2 types.Positions) error {
	if pos1.Rank() < 2 || pos2.Rank() < 2 {
		return fmt.Errorf("%w: rank must be >= 2, got %v and %v", ErrShape, pos1.Shape, pos2.Shape)
	}
	if pos1.Width() != types.Dim || pos2.Width() != types.Dim {
		return fmt.Errorf("%w: trailing dimension must be %d, got %v and %v", ErrShape, types.Dim, pos1.Shape, pos2.Shape)
	}
	if !types.EqualShape(pos1.BatchShape(), pos2.BatchShape()) {
		return fmt.Errorf("%w: %v vs %v", ErrBatchMismatch, pos1.BatchShape(), pos2.BatchShape())
	}
	if b.opts.MaskSelf && pos1.Particles() != pos2.Particles() {
		return fmt.Errorf("%w: %d senders, %d receivers", ErrSelfMaskSize, pos1.Particles(), pos2.Particles())
	}
	return nil
}

// computeBatch runs the kernel for every batch element at the given capacity.
// Elements are independent and write disjoint ranges of the output, so the
// result does not depend on scheduling.
func (b *Builder) computeBatch(pos1, pos2 types.Positions, cand Candidates, params PruneParams, capacity int) ([]int32, []int32, int) {
	params.Capacity = capacity
	nb := pos1.BatchSize()
	senders := make([]int32, nb*capacity)
	receivers := make([]int32, nb*capacity)
	occ := make([]int, nb)

	run := func(i int) {
		occ[i] = pruneInto(
			senders[i*capacity:(i+1)*capacity],
			receivers[i*capacity:(i+1)*capacity],
			b.dist, pos1.Element(i), pos2.Element(i), cand, params,
		)
	}

	workers := b.opts.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || nb == 1 {
		for i := 0; i < nb; i++ {
			run(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i := 0; i < nb; i++ {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	maxOcc := 0
	for _, o := range occ {
		if o > maxOcc {
			maxOcc = o
		}
	}
	return senders, receivers, maxOcc
}
