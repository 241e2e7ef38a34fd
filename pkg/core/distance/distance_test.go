package distance

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floatsAreEqual compares with the tolerance the given precision can honour.
func floatsAreEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestImplementations(t *testing.T) {
	a, b := []float64{1, 2, 2}, []float64{0, 0, 0}
	const want = 3.0

	cases := []struct {
		precision PrecisionType
		tol       float64
	}{
		{Float64, 1e-12},
		{Float32, 1e-6},
		{Float16, 1e-3},
		{"", 1e-12},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("Euclidean_%s", tc.precision), func(t *testing.T) {
			fn, err := GetFunc(tc.precision)
			require.NoError(t, err)
			if got := fn(a, b); !floatsAreEqual(got, want, tc.tol) {
				t.Errorf("got %f, want %f", got, want)
			}
		})
	}
}

func TestFloat32PathsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		a := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		b := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		assert.InDelta(t, euclideanFloat32Go(a, b), euclideanFloat32Gonum(a, b), 1e-5)
		assert.InDelta(t, euclideanFloat64(a, b), euclideanFloat32Go(a, b), 1e-5)
	}
}

func TestStrictNorm(t *testing.T) {
	fn, _ := GetFunc(Float64)
	// Identical points have distance exactly zero; no epsilon is added.
	assert.Equal(t, 0.0, fn([]float64{1, 1, 1}, []float64{1, 1, 1}))
}

func TestParsePrecision(t *testing.T) {
	p, err := ParsePrecision("")
	require.NoError(t, err)
	assert.Equal(t, Float64, p)

	p, err = ParsePrecision("float16")
	require.NoError(t, err)
	assert.Equal(t, Float16, p)

	_, err = ParsePrecision("int8")
	require.ErrorIs(t, err, ErrUnsupportedPrecision)

	_, err = GetFunc("bfloat16")
	require.ErrorIs(t, err, ErrUnsupportedPrecision)
}

func BenchmarkEuclidean(b *testing.B) {
	x := []float64{rand.Float64(), rand.Float64(), rand.Float64()}
	y := []float64{rand.Float64(), rand.Float64(), rand.Float64()}
	for _, p := range []PrecisionType{Float64, Float32, Float16} {
		fn, _ := GetFunc(p)
		b.Run(string(p), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				fn(x, y)
			}
		})
	}
}
