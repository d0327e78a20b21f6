package linalg

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-spice/pkg/errstack"
	"gonum.org/v1/gonum/mat"
)

// svdRankThreshold is the relative singular-value threshold below
// which a mode is treated as rank-deficient and dropped from the
// pseudoinverse.
const svdRankThreshold = 1e-12

// solveSVD solves A x = z via Golub-Reinsch SVD and a threshold-based
// pseudoinverse, for rank-deficient systems. The real (float64) case
// is delegated to gonum.org/v1/gonum/mat's SVD type; the complex case
// uses a generic one-sided Jacobi SVD (jacobiSVD below), since gonum's
// mat package only supports float64.
func solveSVD[T Scalar](a *Matrix[T], z *Vector[T], errs *errstack.Stack) (*Vector[T], error) {
	if v, ok := any(a).(*Matrix[float64]); ok {
		if zr, ok2 := any(z).(*Vector[float64]); ok2 {
			x, err := svdGonum(v, zr)
			if err != nil {
				if errs != nil {
					errs.Push(errstack.Singular, nil, "golub-reinsch SVD (gonum): %v", err)
				}
				return nil, err
			}
			return any(x).(*Vector[T]), nil
		}
	}

	x, err := jacobiSVDSolve(a, z)
	if err != nil {
		if errs != nil {
			errs.Push(errstack.Singular, nil, "jacobi SVD: %v", err)
		}
		return nil, err
	}
	return x, nil
}

func svdGonum(a *Matrix[float64], z *Vector[float64]) (*Vector[float64], error) {
	rows, cols := a.Rows(), a.Cols()
	dense := mat.NewDense(rows, cols, toFlat(a))

	var svd mat.SVD
	if ok := svd.Factorize(dense, mat.SVDFull); !ok {
		return nil, fmt.Errorf("gonum SVD factorize failed")
	}

	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	threshold := svdRankThreshold
	if len(values) > 0 {
		threshold *= values[0]
	}

	// x = V * Sigma^+ * U^T * z
	uz := make([]float64, len(values))
	for j := range values {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += u.At(i, j) * z.At(i)
		}
		if values[j] > threshold {
			uz[j] = sum / values[j]
		}
	}

	out := make([]float64, cols)
	for i := 0; i < cols; i++ {
		sum := 0.0
		for j := range values {
			sum += v.At(i, j) * uz[j]
		}
		out[i] = sum
	}
	return VectorFrom(out), nil
}

// jacobiSVDSolve computes a one-sided Jacobi SVD of a (generic over
// Scalar, so it also serves the complex/AC-noise case) and applies the
// same threshold-based pseudoinverse as the gonum path.
func jacobiSVDSolve[T Scalar](a *Matrix[T], z *Vector[T]) (*Vector[T], error) {
	n := a.Cols()
	m := a.Rows()

	// Work on A^H A's implicit right-singular basis by iterating
	// Jacobi rotations directly on a copy of A (one-sided Jacobi):
	// columns are rotated pairwise until near-orthogonal.
	work := a.Clone()
	v := identity[T](n)

	const maxSweeps = 60
	for sweep := 0; sweep < maxSweeps; sweep++ {
		offDiag := 0.0
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				var alpha, beta, gamma T
				for i := 0; i < m; i++ {
					cp, cq := work.At(i, p), work.At(i, q)
					alpha += conjVal(cp) * cp
					beta += conjVal(cq) * cq
					gamma += conjVal(cp) * cq
				}
				g := absVal(gamma)
				offDiag += g * g
				if g < 1e-30 {
					continue
				}

				// Real Jacobi rotation angle (sufficient for the real
				// case; for complex columns this still converges in
				// practice because gamma's magnitude drives the
				// rotation, matching common one-sided complex Jacobi
				// treatments).
				zeta := (realPart(beta) - realPart(alpha)) / (2 * g)
				t := sign(zeta) / (absF(zeta) + sqrtF(1+zeta*zeta))
				cGiv := 1 / sqrtF(1+t*t)
				sGiv := cGiv * t
				phase := gamma / scalarFromFloat[T](g)

				for i := 0; i < m; i++ {
					cp, cq := work.At(i, p), work.At(i, q)
					newP := scalarFromFloat[T](cGiv)*cp + scalarFromFloat[T](sGiv)*conjVal(phase)*cq
					newQ := -scalarFromFloat[T](sGiv)*phase*cp + scalarFromFloat[T](cGiv)*cq
					work.Set(i, p, newP)
					work.Set(i, q, newQ)
				}
				for i := 0; i < n; i++ {
					vp, vq := v.At(i, p), v.At(i, q)
					newP := scalarFromFloat[T](cGiv)*vp + scalarFromFloat[T](sGiv)*conjVal(phase)*vq
					newQ := -scalarFromFloat[T](sGiv)*phase*vp + scalarFromFloat[T](cGiv)*vq
					v.Set(i, p, newP)
					v.Set(i, q, newQ)
				}
			}
		}
		if offDiag < 1e-28 {
			break
		}
	}

	// Singular values are the column norms of work (= U*Sigma); U's
	// columns are those columns normalized.
	sigmas := make([]float64, n)
	for j := 0; j < n; j++ {
		var sum float64
		for i := 0; i < m; i++ {
			a := absVal(work.At(i, j))
			sum += a * a
		}
		sigmas[j] = sqrtF(sum)
	}
	threshold := svdRankThreshold
	if n > 0 {
		maxS := sigmas[0]
		for _, s := range sigmas {
			if s > maxS {
				maxS = s
			}
		}
		threshold *= maxS
	}

	uz := make([]T, n)
	for j := 0; j < n; j++ {
		if sigmas[j] <= threshold {
			continue
		}
		var dot T
		for i := 0; i < m; i++ {
			dot += conjVal(work.At(i, j)) * z.At(i)
		}
		uz[j] = dot / scalarFromFloat[T](sigmas[j]*sigmas[j])
	}

	out := make([]T, n)
	for i := 0; i < n; i++ {
		var sum T
		for j := 0; j < n; j++ {
			sum += v.At(i, j) * uz[j] * scalarFromFloat[T](sigmas[j])
		}
		out[i] = sum
	}
	return VectorFrom(out), nil
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func sqrtF(x float64) float64 {
	if x < 0 {
		return 0
	}
	return math.Sqrt(x)
}
