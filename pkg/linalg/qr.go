package linalg

import (
	"math"

	"github.com/edp1096/toy-spice/pkg/errstack"
)

// solveQR factors a via Householder reflections (no column pivoting)
// and back-substitutes to produce x such that A x ~= z. float64
// systems go to qrGonum in qr_gonum.go (gonum.org/v1/gonum/mat), which
// is the only path that honours leastSquares; the hand-rolled path
// below serves complex T and ignores that flag.
func solveQR[T Scalar](a *Matrix[T], z *Vector[T], leastSquares bool, errs *errstack.Stack) (*Vector[T], error) {
	if v, ok := any(a).(*Matrix[float64]); ok {
		if zr, ok2 := any(z).(*Vector[float64]); ok2 {
			x, err := qrGonum(v, zr, leastSquares)
			if err != nil {
				if errs != nil {
					errs.Push(errstack.Singular, nil, "householder QR (gonum): %v", err)
				}
				return nil, err
			}
			return any(x).(*Vector[T]), nil
		}
	}

	m, n := a.Rows(), a.Cols()
	r := a.Clone()
	qT := identity[T](m)

	cols := make([]int, n)
	for j := range cols {
		cols[j] = j
	}

	lim := n
	if m < lim {
		lim = m
	}
	for k := 0; k < lim; k++ {
		// Householder vector for column k, rows k..m-1.
		normSq := 0.0
		for i := k; i < m; i++ {
			a := absVal(r.At(i, k))
			normSq += a * a
		}
		norm := math.Sqrt(normSq)
		if norm < pivotEpsilon[T]() {
			continue
		}

		alpha := r.At(k, k)
		// Use the real sign convention: v = x + sign(Re(x0))*||x||*e0.
		signFactor := 1.0
		if re := realPart(alpha); re < 0 {
			signFactor = -1.0
		}

		v := make([]T, m)
		for i := k; i < m; i++ {
			v[i] = r.At(i, k)
		}
		v[k] += scalarFromFloat[T](signFactor * norm)

		vNormSq := 0.0
		for i := k; i < m; i++ {
			a := absVal(v[i])
			vNormSq += a * a
		}
		if vNormSq < pivotEpsilon[T]() {
			continue
		}

		// Apply reflector H = I - 2 v v^H / (v^H v) to R and accumulate into Q^T.
		applyHouseholder(r, v, k, m, n, vNormSq)
		applyHouseholderToQ(qT, v, k, m, vNormSq)
	}

	// y = Q^T z
	y := make([]T, m)
	for i := 0; i < m; i++ {
		var sum T
		for j := 0; j < m; j++ {
			sum += qT.At(i, j) * z.At(j)
		}
		y[i] = sum
	}

	// Back-substitute R x = y (R is n x n upper-triangular within the
	// first n rows; for a square system m==n).
	x := make([]T, n)
	for i := lim - 1; i >= 0; i-- {
		sum := y[i]
		for j := i + 1; j < n; j++ {
			sum -= r.At(i, j) * x[j]
		}
		diag := r.At(i, i)
		if absVal(diag) < pivotEpsilon[T]() {
			if errs != nil {
				errs.Push(errstack.Singular, i, "householder QR: zero diagonal at row %d", i)
			}
			return nil, errstack.Entry{Code: errstack.Singular, Text: "householder QR: zero diagonal"}
		}
		x[i] = sum / diag
	}

	return VectorFrom(x), nil
}

func applyHouseholder[T Scalar](r *Matrix[T], v []T, k, m, n int, vNormSq float64) {
	for j := k; j < n; j++ {
		var dot T
		for i := k; i < m; i++ {
			dot += conjVal(v[i]) * r.At(i, j)
		}
		coeff := scalarFromFloat[T](2) * dot / scalarFromFloat[T](vNormSq)
		for i := k; i < m; i++ {
			r.Set(i, j, r.At(i, j)-coeff*v[i])
		}
	}
}

func applyHouseholderToQ[T Scalar](qT *Matrix[T], v []T, k, m int, vNormSq float64) {
	for j := 0; j < m; j++ {
		var dot T
		for i := k; i < m; i++ {
			dot += conjVal(v[i]) * qT.At(i, j)
		}
		coeff := scalarFromFloat[T](2) * dot / scalarFromFloat[T](vNormSq)
		for i := k; i < m; i++ {
			qT.Set(i, j, qT.At(i, j)-coeff*v[i])
		}
	}
}

func identity[T Scalar](n int) *Matrix[T] {
	m := NewMatrix[T](n, n)
	one := scalarFromFloat[T](1)
	for i := 0; i < n; i++ {
		m.Set(i, i, one)
	}
	return m
}

func scalarFromFloat[T Scalar](f float64) T {
	var zero T
	switch any(zero).(type) {
	case complex128:
		return any(complex(f, 0)).(T)
	default:
		return any(f).(T)
	}
}

func realPart[T Scalar](v T) float64 {
	switch x := any(v).(type) {
	case float64:
		return x
	case complex128:
		return real(x)
	default:
		return 0
	}
}
