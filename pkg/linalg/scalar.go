// Package linalg implements the dense real/complex matrix and vector
// templates: element access, row/column exchange, transpose, in-place
// arithmetic, Euclidean norm, finiteness, and the direct-solve drivers
// (LU Crout/Doolittle, Householder QR, Golub-Reinsch SVD). Re-expressed
// from the original's C++ template-over-{real,complex} as a Go generic
// constrained by Scalar.
package linalg

import (
	"math"
	"math/cmplx"
)

// Scalar is the number field T: either the reals or the complexes,
// fixed per analysis.
type Scalar interface {
	~float64 | ~complex128
}

// absVal, conjVal and isFiniteVal form the small capability set
// {add, mul, conj, abs, is_finite} the generic solver dispatches on;
// add/mul/sub/div are plain Go operators, which already work across
// both scalar kinds without indirection.
func absVal[T Scalar](v T) float64 {
	switch x := any(v).(type) {
	case float64:
		return math.Abs(x)
	case complex128:
		return cmplx.Abs(x)
	default:
		panic("linalg: unsupported scalar type")
	}
}

func conjVal[T Scalar](v T) T {
	switch x := any(v).(type) {
	case float64:
		return any(x).(T)
	case complex128:
		return any(cmplx.Conj(x)).(T)
	default:
		panic("linalg: unsupported scalar type")
	}
}

func isFiniteVal[T Scalar](v T) bool {
	switch x := any(v).(type) {
	case float64:
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	case complex128:
		re, im := real(x), imag(x)
		return !math.IsNaN(re) && !math.IsInf(re, 0) && !math.IsNaN(im) && !math.IsInf(im, 0)
	default:
		panic("linalg: unsupported scalar type")
	}
}

// pivotEpsilon is the type-dependent epsilon below which a pivot
// magnitude is considered singular.
func pivotEpsilon[T Scalar]() float64 {
	var zero T
	switch any(zero).(type) {
	case complex128:
		return 1e-24
	default:
		return 1e-20
	}
}
