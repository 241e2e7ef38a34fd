package edges

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paulinet/qmcgraph/pkg/core/types"
)

type pair struct{ s, r int32 }

// randomPositions draws coordinates uniformly in a cube of side scale.
func randomPositions(rng *rand.Rand, batch []int, n int, scale float64) types.Positions {
	shape := append(append([]int(nil), batch...), n, 3)
	coords := make([]float64, types.Numel(shape))
	for i := range coords {
		coords[i] = scale * rng.Float64()
	}
	return types.MustPositions(shape, coords)
}

// realPairs returns the non-sentinel edges of batch element b.
func realPairs(t *testing.T, es types.EdgeSet, b int, sendMask, recMask int32) []pair {
	t.Helper()
	snd, rcv := es.Element(b)
	var out []pair
	for i := range snd {
		sMasked, rMasked := snd[i] == sendMask, rcv[i] == recMask
		require.Equal(t, sMasked, rMasked, "slot %d is half masked: %d -> %d", i, snd[i], rcv[i])
		if !sMasked {
			out = append(out, pair{snd[i], rcv[i]})
		}
	}
	return out
}

// bruteForcePairs enumerates all pairs closer than cutoff in sender-major order.
func bruteForcePairs(pos1, pos2 []float64, cutoff float64, maskSelf bool, sendOffset, recOffset int32) []pair {
	var out []pair
	n1, n2 := len(pos1)/3, len(pos2)/3
	for i := 0; i < n1; i++ {
		for j := 0; j < n2; j++ {
			if maskSelf && i == j {
				continue
			}
			var sq float64
			for k := 0; k < 3; k++ {
				d := pos1[3*i+k] - pos2[3*j+k]
				sq += d * d
			}
			if math.Sqrt(sq) < cutoff {
				out = append(out, pair{int32(i) + sendOffset, int32(j) + recOffset})
			}
		}
	}
	return out
}

func mustBuilder(t *testing.T, opts BuilderOptions) *Builder {
	t.Helper()
	b, err := NewBuilder(opts)
	require.NoError(t, err)
	return b
}
