package analysis

import (
	"fmt"

	"github.com/edp1096/toy-spice/internal/consts"
	"github.com/edp1096/toy-spice/pkg/circuit"
	"github.com/edp1096/toy-spice/pkg/device"
	"github.com/edp1096/toy-spice/pkg/errstack"
	"github.com/edp1096/toy-spice/pkg/linalg"
	"github.com/edp1096/toy-spice/pkg/mna"
	"github.com/edp1096/toy-spice/pkg/nr"
)

// OperatingPoint runs a single DC solve, grounded on the teacher's
// pkg/analysis/op.go Execute (plain Newton-Raphson, falling back
// through Gmin stepping then source stepping on NO_CONVERGENCE) but
// delegating the fallback chain itself to nr.Solver instead of
// hardcoding a two-stage retry.
type OperatingPoint struct {
	baseResults

	Circuit *circuit.Circuit
	Errs    *errstack.Stack

	solver *nr.Solver
	x      *linalg.Vector[float64]
}

// NewOP builds an OperatingPoint analysis over ckt.
func NewOP(ckt *circuit.Circuit) *OperatingPoint {
	errs := errstack.New()
	asm := mna.New[float64](ckt.Topo)
	status := &device.Status{Mode: device.ModeDC, Temp: consts.RoomTempKelvin}
	return &OperatingPoint{
		baseResults: newBaseResults(),
		Circuit:     ckt,
		Errs:        errs,
		solver:      nr.NewSolver(ckt.Topo, asm, status, errs),
	}
}

// Execute runs the DC operating point and stores a single-row result.
func (op *OperatingPoint) Execute() error {
	op.Circuit.InitDC()
	x, err := op.solver.Solve(nr.HelperNone)
	if err != nil {
		return fmt.Errorf("operating point: %w", err)
	}
	op.x = x
	op.storeTime(0, op.Circuit.GetSolution(x))
	return nil
}

// Solution returns the solved MNA vector, consumed by TRAN/AC as the
// initial condition/linearization point.
func (op *OperatingPoint) Solution() *linalg.Vector[float64] { return op.x }
