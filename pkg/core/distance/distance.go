// Package distance provides the pairwise distance kernels used when pruning
// particle graph edges.
//
// Distances are the literal Euclidean norm between two coordinate vectors
// (no epsilon, no squaring shortcut), so a pair exactly at the cutoff is
// rejected by a strict comparison. Coordinates are always handed over as
// float64; the precision selects how they are rounded before the norm is taken.
//
// The package dispatches at init to the fastest implementation the CPU can
// run, in the same spirit as a compute-engine banner: Gonum (BLAS/SIMD) where
// the vector units are present, pure Go otherwise.
package distance

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/klauspost/cpuid/v2"
	"github.com/x448/float16"
	"gonum.org/v1/gonum/blas/gonum"
	"gonum.org/v1/gonum/floats"
)

func init() {
	// Gonum's float32 kernels only pay off when the SIMD paths are available.
	if cpuid.CPU.Has(cpuid.AVX2) && cpuid.CPU.Has(cpuid.FMA3) {
		funcs[Float32] = euclideanFloat32Gonum
	}
	slog.Debug("qmcgraph distance engine",
		"cpu", cpuid.CPU.BrandName,
		"avx2", cpuid.CPU.Has(cpuid.AVX2),
		"f16c", cpuid.CPU.Has(cpuid.F16C),
		"float64", "gonum/floats",
		"float32", implName(Float32),
		"float16", "pure go",
	)
}

// PrecisionType selects the arithmetic used for distance evaluation.
type PrecisionType string

const (
	// Float64 evaluates distances in double precision (the default).
	Float64 PrecisionType = "float64"
	// Float32 rounds coordinates to single precision first.
	Float32 PrecisionType = "float32"
	// Float16 rounds coordinates to half precision first. Useful for checking
	// how sensitive an edge set is to a cutoff boundary.
	Float16 PrecisionType = "float16"
)

// ErrUnsupportedPrecision is returned for an unknown precision name.
var ErrUnsupportedPrecision = errors.New("distance: unsupported precision")

// Func returns the Euclidean distance between two equally long coordinate
// vectors. Callers guarantee the lengths match; kernels do not re-check in the
// hot loop.
type Func func(a, b []float64) float64

// scratch32 is a pool of float32 buffers for the single precision path.
var scratch32 = sync.Pool{
	New: func() any {
		s := make([]float32, 0, 16)
		return &s
	},
}

// euclideanFloat64 is the reference implementation.
func euclideanFloat64(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// euclideanFloat32Go rounds to float32 and accumulates in float32.
func euclideanFloat32Go(a, b []float64) float64 {
	var sum float32
	for i := range a {
		d := float32(a[i]) - float32(b[i])
		sum += d * d
	}
	return math.Sqrt(float64(sum))
}

var gonumEngine = gonum.Implementation{}

// euclideanFloat32Gonum uses Saxpy + Sdot from the Gonum BLAS implementation.
func euclideanFloat32Gonum(a, b []float64) float64 {
	n := len(a)
	bufPtr := scratch32.Get().(*[]float32)
	defer scratch32.Put(bufPtr)
	if cap(*bufPtr) < 2*n {
		*bufPtr = make([]float32, 2*n)
	}
	buf := (*bufPtr)[:2*n]
	diff, other := buf[:n], buf[n:]
	for i := 0; i < n; i++ {
		diff[i] = float32(a[i])
		other[i] = float32(b[i])
	}
	gonumEngine.Saxpy(n, -1, other, 1, diff, 1)
	return math.Sqrt(float64(gonumEngine.Sdot(n, diff, 1, diff, 1)))
}

// euclideanFloat16 rounds each coordinate through IEEE half precision.
func euclideanFloat16(a, b []float64) float64 {
	var sum float32
	for i := range a {
		fa := float16.Fromfloat32(float32(a[i])).Float32()
		fb := float16.Fromfloat32(float32(b[i])).Float32()
		d := fa - fb
		sum += d * d
	}
	return math.Sqrt(float64(sum))
}

// funcs maps a precision to its active implementation.
var funcs = map[PrecisionType]Func{
	Float64: euclideanFloat64,
	Float32: euclideanFloat32Go, // replaced at init when SIMD is available
	Float16: euclideanFloat16,
}

func implName(p PrecisionType) string {
	if p == Float32 && cpuid.CPU.Has(cpuid.AVX2) && cpuid.CPU.Has(cpuid.FMA3) {
		return "gonum (SIMD)"
	}
	return "pure go"
}

// GetFunc returns the distance function for a precision. The empty string
// selects Float64.
func GetFunc(p PrecisionType) (Func, error) {
	if p == "" {
		p = Float64
	}
	fn, ok := funcs[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPrecision, p)
	}
	return fn, nil
}

// ParsePrecision validates a precision name from configuration.
func ParsePrecision(s string) (PrecisionType, error) {
	p := PrecisionType(s)
	if p == "" {
		return Float64, nil
	}
	if _, ok := funcs[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPrecision, s)
	}
	return p, nil
}
