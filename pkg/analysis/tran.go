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
	"github.com/edp1096/toy-spice/pkg/transient"
)

// Transient runs time-domain integration, grounded on the teacher's
// pkg/analysis/tran.go Execute loop (optional initial OP, step,
// report, repeat until TStop) but delegating stepping, order control
// and LTE-based step sizing entirely to package transient.
type Transient struct {
	baseResults

	Circuit *circuit.Circuit
	Errs    *errstack.Stack

	ctrl      *transient.Controller
	reportDt  float64
	tStart    float64
	nextReport float64
}

// NewTransient builds a Transient analysis. cfg.TStop/TStep come from
// the netlist's .tran line; tStart delays reporting (but not
// integration) until that time, matching SPICE's TSTART semantics.
func NewTransient(ckt *circuit.Circuit, cfg transient.Config, tStart float64) *Transient {
	errs := errstack.New()
	asm := mna.New[float64](ckt.Topo)
	status := &device.Status{Mode: device.ModeTransient, Temp: consts.RoomTempKelvin}
	solver := nr.NewSolver(ckt.Topo, asm, status, errs)
	ctrl := transient.New(ckt.Topo, asm, solver, errs, cfg)

	return &Transient{
		baseResults: newBaseResults(),
		Circuit:     ckt,
		Errs:        errs,
		ctrl:        ctrl,
		reportDt:    cfg.TStep,
		tStart:      tStart,
	}
}

// Execute seeds the controller from an initial operating point (unless
// the netlist requested UIC) and steps until TStop, reporting one row
// per accepted step whose time has reached tStart.
func (tr *Transient) Execute() error {
	tr.Circuit.InitDC()
	tr.Circuit.InitTR()

	if tr.ctrl.Cfg.InitialDC {
		op := NewOP(tr.Circuit)
		if err := op.Execute(); err != nil {
			return fmt.Errorf("transient: initial operating point: %w", err)
		}
		tr.ctrl.Seed(op.Solution())
		if tr.tStart <= 0 {
			tr.storeTime(0, tr.Circuit.GetSolution(op.Solution()))
		}
	} else {
		tr.ctrl.Seed(linalg.NewVector[float64](tr.Circuit.Topo.Size()))
	}

	tr.nextReport = tr.tStart

	for {
		pt, err := tr.ctrl.Step()
		if err != nil {
			return fmt.Errorf("transient: %w", err)
		}
		if pt == nil {
			continue // step rejected, controller already shrank dt
		}

		tr.Circuit.AppendHistory(pt.Time)

		if pt.Time+1e-15 >= tr.nextReport {
			tr.storeTime(pt.Time, tr.Circuit.GetSolution(pt.X))
		}

		if pt.Time >= tr.ctrl.Cfg.TStop {
			return nil
		}
	}
}
