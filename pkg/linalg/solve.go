package linalg

import (
	"fmt"

	"github.com/edp1096/toy-spice/pkg/errstack"
)

// Algorithm selects the direct-solve driver, matching the netlist-level
// Solver property.
type Algorithm int

const (
	CroutLU Algorithm = iota
	DoolittleLU
	HouseholderQR
	HouseholderLQ
	GolubSVD
)

// Factorization is the result of Factor: a permutation plus whatever
// triangular storage the algorithm needs, reusable across several
// Substitute calls against different right-hand sides (the AC-noise
// adjoint solve stamps one factorization and substitutes N+M times).
type Factorization[T Scalar] struct {
	lu     *Matrix[T] // combined L (below diag, implicit unit for Doolittle) and U (on/above diag)
	perm   []int      // row permutation applied during pivoting
	crout  bool       // true: Crout elimination order, false: Doolittle
	n      int
	errs   *errstack.Stack
}

// Factor performs LU decomposition with partial pivoting on a working
// copy of a (a itself is left untouched). algo must be CroutLU or
// DoolittleLU; other algorithms are handled by Solve directly since
// QR/SVD don't have a reusable triangular factor in the same shape.
func Factor[T Scalar](a *Matrix[T], algo Algorithm, errs *errstack.Stack) (*Factorization[T], error) {
	n := a.Rows()
	if a.Cols() != n {
		return nil, fmt.Errorf("linalg: Factor requires a square matrix, got %dx%d", n, a.Cols())
	}

	work := a.Clone()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	eps := pivotEpsilon[T]()

	switch algo {
	case CroutLU:
		if err := croutFactor(work, perm, eps, errs); err != nil {
			return nil, err
		}
		return &Factorization[T]{lu: work, perm: perm, crout: true, n: n, errs: errs}, nil
	case DoolittleLU:
		if err := doolittleFactor(work, perm, eps, errs); err != nil {
			return nil, err
		}
		return &Factorization[T]{lu: work, perm: perm, crout: false, n: n, errs: errs}, nil
	default:
		return nil, fmt.Errorf("linalg: Factor does not support algorithm %d directly", algo)
	}
}

// doolittleFactor computes L (unit diagonal) and U in place, storing
// both in work, with partial pivoting recorded in perm.
func doolittleFactor[T Scalar](work *Matrix[T], perm []int, eps float64, errs *errstack.Stack) error {
	n := work.Rows()
	for k := 0; k < n; k++ {
		pivotRow, pivotVal := k, absVal(work.At(k, k))
		for i := k + 1; i < n; i++ {
			if v := absVal(work.At(i, k)); v > pivotVal {
				pivotRow, pivotVal = i, v
			}
		}
		if pivotVal < eps {
			if errs != nil {
				errs.Push(errstack.Singular, k, "doolittle LU: pivot magnitude %g below threshold at column %d", pivotVal, k)
			}
			return errstack.Entry{Code: errstack.Singular, Data: k, Text: fmt.Sprintf("pivot magnitude %g below threshold at column %d", pivotVal, k)}
		}
		if pivotRow != k {
			work.SwapRows(pivotRow, k)
			perm[pivotRow], perm[k] = perm[k], perm[pivotRow]
		}

		pivot := work.At(k, k)
		for i := k + 1; i < n; i++ {
			factor := work.At(i, k) / pivot
			work.Set(i, k, factor)
			for j := k + 1; j < n; j++ {
				work.Set(i, j, work.At(i, j)-factor*work.At(k, j))
			}
		}
	}
	return nil
}

// croutFactor computes the Crout variant: L holds the scaled columns
// (non-unit diagonal) and U has a unit diagonal, the opposite
// normalization from Doolittle. Functionally equivalent pivot
// selection; the elimination order differs (column-by-column L then
// row U entries), so the two are kept as separate algorithms even
// though either could serve most callers.
func croutFactor[T Scalar](work *Matrix[T], perm []int, eps float64, errs *errstack.Stack) error {
	n := work.Rows()
	for k := 0; k < n; k++ {
		for i := k; i < n; i++ {
			sum := work.At(i, k)
			for p := 0; p < k; p++ {
				sum -= work.At(i, p) * work.At(p, k)
			}
			work.Set(i, k, sum)
		}

		pivotRow, pivotVal := k, absVal(work.At(k, k))
		for i := k + 1; i < n; i++ {
			if v := absVal(work.At(i, k)); v > pivotVal {
				pivotRow, pivotVal = i, v
			}
		}
		if pivotVal < eps {
			if errs != nil {
				errs.Push(errstack.Singular, k, "crout LU: pivot magnitude %g below threshold at column %d", pivotVal, k)
			}
			return errstack.Entry{Code: errstack.Singular, Data: k, Text: fmt.Sprintf("pivot magnitude %g below threshold at column %d", pivotVal, k)}
		}
		if pivotRow != k {
			work.SwapRows(pivotRow, k)
			perm[pivotRow], perm[k] = perm[k], perm[pivotRow]
		}

		pivot := work.At(k, k)
		for j := k + 1; j < n; j++ {
			sum := work.At(k, j)
			for p := 0; p < k; p++ {
				sum -= work.At(k, p) * work.At(p, j)
			}
			work.Set(k, j, sum/pivot)
		}
	}
	return nil
}

// Substitute solves Lx' = Pb then Ux = x' for x, reusing the stored
// factorization (used by the AC-noise solver to avoid re-factoring for
// every transimpedance right-hand side).
func (f *Factorization[T]) Substitute(rhs *Vector[T]) (*Vector[T], error) {
	n := f.n
	y := make([]T, n)
	for i := 0; i < n; i++ {
		y[i] = rhs.At(f.perm[i])
	}

	if f.crout {
		// L has unit-diagonal-free entries on/below diag (non-unit),
		// U is unit upper triangular.
		for i := 0; i < n; i++ {
			sum := y[i]
			for j := 0; j < i; j++ {
				sum -= f.lu.At(i, j) * y[j]
			}
			y[i] = sum / f.lu.At(i, i)
		}
		for i := n - 1; i >= 0; i-- {
			sum := y[i]
			for j := i + 1; j < n; j++ {
				sum -= f.lu.At(i, j) * y[j]
			}
			y[i] = sum
		}
	} else {
		// L unit lower triangular, U on/above diag.
		for i := 0; i < n; i++ {
			sum := y[i]
			for j := 0; j < i; j++ {
				sum -= f.lu.At(i, j) * y[j]
			}
			y[i] = sum
		}
		for i := n - 1; i >= 0; i-- {
			sum := y[i]
			for j := i + 1; j < n; j++ {
				sum -= f.lu.At(i, j) * y[j]
			}
			y[i] = sum / f.lu.At(i, i)
		}
	}

	return VectorFrom(y), nil
}

// TransposeFactor returns a Factorization of A^T, built by re-factoring
// the transposed original matrix. Used once by the AC-noise solver,
// which factors A^T a single time and substitutes N+M right-hand
// sides (one unit excitation per probe port) against it.
func TransposeFactor[T Scalar](a *Matrix[T], algo Algorithm, errs *errstack.Stack) (*Factorization[T], error) {
	return Factor(a.Transpose(), algo, errs)
}

// Solve runs the configured algorithm end to end: factor (or QR/SVD)
// then substitute once, returning x such that A x = z. For QR and SVD,
// the real (float64) case is delegated to gonum.org/v1/gonum/mat; the
// complex case uses the hand-rolled generic Householder/Jacobi paths
// in qr.go/svd.go (gonum's mat package is real-only).
func Solve[T Scalar](a *Matrix[T], z *Vector[T], algo Algorithm, errs *errstack.Stack) (*Vector[T], error) {
	if !a.IsFinite() || !z.IsFinite() {
		if errs != nil {
			errs.Push(errstack.NonFinite, nil, "non-finite entry in A or z before solve")
		}
		return nil, errstack.Entry{Code: errstack.NonFinite, Text: "non-finite entry in A or z before solve"}
	}

	switch algo {
	case CroutLU, DoolittleLU:
		f, err := Factor(a, algo, errs)
		if err != nil {
			return nil, err
		}
		return f.Substitute(z)
	case HouseholderQR, HouseholderLQ:
		x, err := solveQR(a, z, algo == HouseholderLQ, errs)
		if err != nil {
			return nil, err
		}
		return x, nil
	case GolubSVD:
		x, err := solveSVD(a, z, errs)
		if err != nil {
			return nil, err
		}
		return x, nil
	default:
		return nil, fmt.Errorf("linalg: unknown algorithm %d", algo)
	}
}
