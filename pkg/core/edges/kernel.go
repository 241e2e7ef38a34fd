package edges

import (
	"fmt"
	"sync"

	"github.com/paulinet/qmcgraph/pkg/core/distance"
	"github.com/paulinet/qmcgraph/pkg/core/types"
)

// Candidates is a sender-major table of candidate receiver indices: row i
// lists the receivers considered for sender i. A value outside [0, Nr) marks
// a slot that can never become an edge.
type Candidates struct {
	Rows, Cols int
	Idx        []int32
}

// AllCandidates enumerates every (sender, receiver) pair.
func AllCandidates(nSender, nReceiver int) Candidates {
	idx := make([]int32, nSender*nReceiver)
	for i := 0; i < nSender; i++ {
		row := idx[i*nReceiver : (i+1)*nReceiver]
		for j := range row {
			row[j] = int32(j)
		}
	}
	return Candidates{Rows: nSender, Cols: nReceiver, Idx: idx}
}

// MaskSelfEdges replaces every entry equal to its own row index with the
// out-of-range value Rows. For self-masked edge types Rows equals the receiver
// count, so those candidates are rejected by the kernel's range check.
// The table is modified in place and returned.
func MaskSelfEdges(c Candidates) Candidates {
	out := int32(c.Rows)
	for i := 0; i < c.Rows; i++ {
		row := c.Idx[i*c.Cols : (i+1)*c.Cols]
		for j, r := range row {
			if r == int32(i) {
				row[j] = out
			}
		}
	}
	return c
}

// PruneParams are the per-call constants of the pruning kernel.
type PruneParams struct {
	Cutoff      float64
	Capacity    int
	SendOffset  int32
	RecOffset   int32
	SendMaskVal int32
	RecMaskVal  int32
}

// Pruned is the kernel output for one sender/receiver configuration.
// Occupancy is the number of kept candidates, which may exceed Capacity.
type Pruned struct {
	Senders   []int32
	Receivers []int32
	Occupancy int
}

var maskPool = sync.Pool{
	New: func() any { return newBitSet(256) },
}

// Prune selects the candidates closer than the cutoff and packs them densely
// into fixed-capacity index buffers. sender and receiver are flat [N, 3]
// coordinate slices. The candidate table must have one row per sender and
// Rows*Cols entries; otherwise ErrCandidates is returned.
func Prune(dist distance.Func, sender, receiver []float64, cand Candidates, p PruneParams) (Pruned, error) {
	if len(sender)%types.Dim != 0 || len(receiver)%types.Dim != 0 {
		return Pruned{}, fmt.Errorf("%w: coordinate lengths %d and %d are not multiples of %d",
			ErrShape, len(sender), len(receiver), types.Dim)
	}
	if cand.Rows < 0 || cand.Cols < 0 || cand.Rows*types.Dim != len(sender) || len(cand.Idx) != cand.Rows*cand.Cols {
		return Pruned{}, fmt.Errorf("%w: %dx%d table with %d entries for %d senders",
			ErrCandidates, cand.Rows, cand.Cols, len(cand.Idx), len(sender)/types.Dim)
	}
	if p.Capacity < 0 {
		return Pruned{}, fmt.Errorf("%w: capacity must be >= 0, got %d", ErrInvalidOptions, p.Capacity)
	}
	out := Pruned{
		Senders:   make([]int32, p.Capacity),
		Receivers: make([]int32, p.Capacity),
	}
	out.Occupancy = pruneInto(out.Senders, out.Receivers, dist, sender, receiver, cand, p)
	return out, nil
}

// pruneInto runs the kernel writing into dstS and dstR, both of length
// p.Capacity, and returns the occupancy. Inputs are already validated by
// Prune or Builder; a mismatched table here is a programming error.
//
// The packing follows a fixed recipe so the output shape never depends on
// the data:
//  1. keep = dist < cutoff && receiver < Nr, recorded in a bit mask;
//  2. an exclusive prefix sum over the mask gives each kept candidate its
//     dense slot, the final sum is the occupancy;
//  3. slots are pre-filled with maskVal-offset, kept indices are scattered,
//     and anything landing at or past Capacity goes to the discard slot;
//  4. the offset is added to every slot, turning fill values back into the
//     mask sentinels and local indices into global ones.
//
// Kept edges stay in candidate enumeration order (row-major, sender-major).
func pruneInto(dstS, dstR []int32, dist distance.Func, sender, receiver []float64, cand Candidates, p PruneParams) int {
	nr := int32(len(receiver) / types.Dim)
	if cand.Rows*types.Dim != len(sender) {
		panic(fmt.Sprintf("edges: candidate table has %d rows for %d senders", cand.Rows, len(sender)/types.Dim))
	}
	n := uint32(len(cand.Idx))

	mask := maskPool.Get().(*bitSet)
	defer maskPool.Put(mask)
	mask.reset(n)

	for k := uint32(0); k < n; k++ {
		r := cand.Idx[k]
		if r < 0 || r >= nr {
			continue
		}
		s := int(k) / cand.Cols
		d := dist(sender[s*types.Dim:(s+1)*types.Dim], receiver[int(r)*types.Dim:(int(r)+1)*types.Dim])
		if d < p.Cutoff {
			mask.add(k)
		}
	}

	fillS := p.SendMaskVal - p.SendOffset
	fillR := p.RecMaskVal - p.RecOffset
	for i := range dstS {
		dstS[i] = fillS
		dstR[i] = fillR
	}

	occupancy := 0
	for k := uint32(0); k < n; k++ {
		if !mask.has(k) {
			continue
		}
		slot := occupancy
		occupancy++
		if slot >= p.Capacity {
			continue // discard slot
		}
		dstS[slot] = int32(int(k) / cand.Cols)
		dstR[slot] = cand.Idx[k]
	}

	for i := range dstS {
		dstS[i] += p.SendOffset
		dstR[i] += p.RecOffset
	}
	return occupancy
}
