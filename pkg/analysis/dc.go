package analysis

import (
	"fmt"

	"github.com/edp1096/toy-spice/internal/consts"
	"github.com/edp1096/toy-spice/pkg/circuit"
	"github.com/edp1096/toy-spice/pkg/device"
	"github.com/edp1096/toy-spice/pkg/errstack"
	"github.com/edp1096/toy-spice/pkg/mna"
	"github.com/edp1096/toy-spice/pkg/nr"
)

// sweepable is implemented by VoltageSource/CurrentSource, the only
// devices a DC sweep can step through a range of operating values.
type sweepable interface {
	SetDCValue(value float64)
	DCValue() float64
}

// DCSweep re-solves the operating point at each value of one or two
// swept independent sources, grounded on the teacher's
// pkg/analysis/dc.go singleSweep/nestedSweep (supports up to two
// nested sources, same as the teacher).
type DCSweep struct {
	baseResults

	Circuit *circuit.Circuit
	Errs    *errstack.Stack

	solver *nr.Solver

	sources []sweepable
	starts  []float64
	stops   []float64
	steps   []float64
	orig    []float64
}

// NewDCSweep builds a DC sweep over 1 or 2 sources (by netlist name).
func NewDCSweep(ckt *circuit.Circuit, sourceNames []string, starts, stops, increments []float64) (*DCSweep, error) {
	if len(sourceNames) == 0 || len(sourceNames) > 2 {
		return nil, fmt.Errorf("dc sweep: supports 1 or 2 sources, got %d", len(sourceNames))
	}
	if len(sourceNames) != len(starts) || len(sourceNames) != len(stops) || len(sourceNames) != len(increments) {
		return nil, fmt.Errorf("dc sweep: inconsistent parameter lengths")
	}

	sources := make([]sweepable, len(sourceNames))
	orig := make([]float64, len(sourceNames))
	for i, name := range sourceNames {
		dev, ok := ckt.Device(name)
		if !ok {
			return nil, fmt.Errorf("dc sweep: source %s not found", name)
		}
		sw, ok := dev.(sweepable)
		if !ok {
			return nil, fmt.Errorf("dc sweep: %s is not a sweepable independent source", name)
		}
		sources[i] = sw
		orig[i] = sw.DCValue()
	}

	errs := errstack.New()
	asm := mna.New[float64](ckt.Topo)
	status := &device.Status{Mode: device.ModeDC, Temp: consts.RoomTempKelvin}
	return &DCSweep{
		baseResults: newBaseResults(),
		Circuit:     ckt,
		Errs:        errs,
		solver:      nr.NewSolver(ckt.Topo, asm, status, errs),
		sources:     sources,
		starts:      starts,
		stops:       stops,
		steps:       increments,
		orig:        orig,
	}, nil
}

// Execute runs the sweep, restoring each source's original value when done.
func (dc *DCSweep) Execute() error {
	defer func() {
		for i, sw := range dc.sources {
			sw.SetDCValue(dc.orig[i])
		}
	}()

	dc.Circuit.InitDC()

	if len(dc.sources) == 1 {
		return dc.sweep1()
	}
	return dc.sweep2()
}

func (dc *DCSweep) solveAt() (map[string]float64, error) {
	x, err := dc.solver.Solve(nr.HelperNone)
	if err != nil {
		return nil, err
	}
	return dc.Circuit.GetSolution(x), nil
}

func (dc *DCSweep) sweep1() error {
	for v := dc.starts[0]; stepInRange(v, dc.starts[0], dc.stops[0]); v += dc.steps[0] {
		dc.sources[0].SetDCValue(v)
		sol, err := dc.solveAt()
		if err != nil {
			return fmt.Errorf("dc sweep at %s=%g: %w", "SWEEP1", v, err)
		}
		dc.storeSweep("SWEEP1", v, sol)
	}
	return nil
}

func (dc *DCSweep) sweep2() error {
	for v1 := dc.starts[0]; stepInRange(v1, dc.starts[0], dc.stops[0]); v1 += dc.steps[0] {
		dc.sources[0].SetDCValue(v1)
		for v2 := dc.starts[1]; stepInRange(v2, dc.starts[1], dc.stops[1]); v2 += dc.steps[1] {
			dc.sources[1].SetDCValue(v2)
			sol, err := dc.solveAt()
			if err != nil {
				return fmt.Errorf("dc sweep at SWEEP1=%g, SWEEP2=%g: %w", v1, v2, err)
			}
			dc.data["SWEEP1"] = append(dc.data["SWEEP1"], v1)
			dc.storeSweep("SWEEP2", v2, sol)
		}
	}
	return nil
}

func stepInRange(v, start, stop float64) bool {
	if stop >= start {
		return v <= stop
	}
	return v >= stop
}
