package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/edp1096/toy-spice/pkg/errstack"
)

func TestSolveRecoversKnownSolution(t *testing.T) {
	// A * [1,2,3] = z, solved by Crout LU.
	a := NewMatrix[float64](3, 3)
	rows := [][]float64{
		{4, 1, 0},
		{1, 3, 1},
		{0, 1, 5},
	}
	for i, row := range rows {
		for j, v := range row {
			a.Set(i, j, v)
		}
	}
	want := []float64{1, 2, 3}
	z := NewVector[float64](3)
	for i, row := range rows {
		var sum float64
		for j, v := range row {
			sum += v * want[j]
		}
		z.Set(i, sum)
	}

	errs := errstack.New()
	x, err := Solve(a, z, CroutLU, errs)
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, want[i], x.At(i), 1e-9)
	}
}

func TestTransposeFactorSolvesTransposedSystem(t *testing.T) {
	a := NewMatrix[complex128](2, 2)
	a.Set(0, 0, complex(2, 1))
	a.Set(0, 1, complex(0, -1))
	a.Set(1, 0, complex(1, 0))
	a.Set(1, 1, complex(3, 2))

	errs := errstack.New()
	factor, err := TransposeFactor(a, CroutLU, errs)
	require.NoError(t, err)

	rhs := NewVector[complex128](2)
	rhs.Set(0, complex(1, 0))
	rhs.Set(1, complex(-1, 0))

	x, err := factor.Substitute(rhs)
	require.NoError(t, err)

	// Verify A^T x == rhs directly.
	at := a.Transpose()
	for i := 0; i < 2; i++ {
		var got complex128
		for j := 0; j < 2; j++ {
			got += at.At(i, j) * x.At(j)
		}
		assert.InDelta(t, real(rhs.At(i)), real(got), 1e-9)
		assert.InDelta(t, imag(rhs.At(i)), imag(got), 1e-9)
	}
}

// TestSolveDiagonallyDominant checks that Solve reproduces an
// arbitrary right-hand side for randomly generated diagonally dominant
// systems, which are guaranteed nonsingular under partial pivoting.
func TestSolveDiagonallyDominant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "n")
		a := NewMatrix[float64](n, n)
		entries := make([][]float64, n)
		for i := 0; i < n; i++ {
			entries[i] = make([]float64, n)
			rowSum := 0.0
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				v := rapid.Float64Range(-10, 10).Draw(rt, "off")
				entries[i][j] = v
				rowSum += math.Abs(v)
			}
			entries[i][i] = rowSum + rapid.Float64Range(1, 10).Draw(rt, "diag")
			for j := 0; j < n; j++ {
				a.Set(i, j, entries[i][j])
			}
		}

		want := make([]float64, n)
		for i := range want {
			want[i] = rapid.Float64Range(-5, 5).Draw(rt, "x")
		}
		z := NewVector[float64](n)
		for i := 0; i < n; i++ {
			var sum float64
			for j := 0; j < n; j++ {
				sum += entries[i][j] * want[j]
			}
			z.Set(i, sum)
		}

		errs := errstack.New()
		x, err := Solve(a, z, CroutLU, errs)
		require.NoError(rt, err)
		for i := range want {
			assert.InDelta(rt, want[i], x.At(i), 1e-6)
		}
	})
}
