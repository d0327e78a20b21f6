package linalg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// qrGonum is the real (float64) fast path for HouseholderQR/HouseholderLQ,
// delegating the reflector math to gonum.org/v1/gonum/mat's QR/LQ types.
// useLQ selects gonum's LQ decomposition (the HouseholderLQ algorithm),
// otherwise QR is used.
func qrGonum(a *Matrix[float64], z *Vector[float64], useLQ bool) (*Vector[float64], error) {
	rows, cols := a.Rows(), a.Cols()
	dense := mat.NewDense(rows, cols, toFlat(a))
	b := mat.NewVecDense(rows, append([]float64(nil), z.Data()...))
	x := mat.NewVecDense(cols, nil)

	if useLQ {
		var lq mat.LQ
		lq.Factorize(dense)
		if err := lq.SolveVecTo(x, false, b); err != nil {
			return nil, fmt.Errorf("gonum LQ solve: %w", err)
		}
	} else {
		var qr mat.QR
		qr.Factorize(dense)
		if err := qr.SolveVecTo(x, false, b); err != nil {
			return nil, fmt.Errorf("gonum QR solve: %w", err)
		}
	}

	out := make([]float64, cols)
	for i := 0; i < cols; i++ {
		out[i] = x.AtVec(i)
	}
	return VectorFrom(out), nil
}

func toFlat(a *Matrix[float64]) []float64 {
	rows, cols := a.Rows(), a.Cols()
	out := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = a.At(i, j)
		}
	}
	return out
}
