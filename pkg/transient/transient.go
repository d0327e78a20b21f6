// Package transient implements the variable-step, variable-order
// transient controller that wraps the NR driver per time step,
// deriving integrator coefficients from the Δt history and
// accepting/rejecting steps by local-truncation-error estimate.
// Grounded on the teacher's pkg/analysis/tran.go step loop, replacing
// its fixed-order Backward-Euler-only stepping with the full
// Gear/Adams/Trapezoidal family via package integrator.
package transient

import (
	"math"

	"github.com/edp1096/toy-spice/internal/consts"
	"github.com/edp1096/toy-spice/pkg/device"
	"github.com/edp1096/toy-spice/pkg/errstack"
	"github.com/edp1096/toy-spice/pkg/integrator"
	"github.com/edp1096/toy-spice/pkg/linalg"
	"github.com/edp1096/toy-spice/pkg/mna"
	"github.com/edp1096/toy-spice/pkg/nr"
	"github.com/edp1096/toy-spice/pkg/topology"
)

// Config is the user-facing transient-analysis configuration: stop
// time, reporting interval, step bounds, order cap, and LTE tolerances.
type Config struct {
	TStop       float64
	TStep       float64 // requested reporting interval
	DtMin       float64
	DtMax       float64
	MaxOrder    int // p_max in [1,6]
	Method      integrator.Method
	InitialDC   bool // run OP first to seed the ring (default true)
	RelaxTSR    bool // breakpoint-snapping relaxation
	LTEAbsTol   float64
	LTERelTol   float64
	LTEFactor   float64
}

// DefaultConfig fills in the usual transient-analysis defaults.
func DefaultConfig(tstop, tstep float64) Config {
	return Config{
		TStop:     tstop,
		TStep:     tstep,
		DtMin:     tstep / 1e9,
		DtMax:     tstep,
		MaxOrder:  consts.MaxIntegratorOrder,
		Method:    integrator.Trapezoidal,
		InitialDC: true,
		LTEAbsTol: consts.DefaultLTEAbsTol,
		LTERelTol: consts.DefaultLTERelTol,
		LTEFactor: consts.DefaultLTEFactor,
	}
}

// Point is one accepted output sample.
type Point struct {
	Time float64
	X    *linalg.Vector[float64]
}

// Controller runs the step/accept/order-control loop.
type Controller struct {
	Topo *topology.Topology
	Asm  *mna.Assembler[float64]
	NR   *nr.Solver
	Errs *errstack.Stack
	Cfg  Config

	t      float64
	dt     float64
	dtOld  float64
	dtStep float64 // pre-snap Δt remembered across a breakpoint snap

	order        int
	prevRejected bool

	xRing  [history8]*linalg.Vector[float64]
	dtRing [history8]float64

	Steps        int
	Rejected     int
	Iterations   int
	Convergences int

	breakpoints []float64
}

const history8 = 8

// New builds a Controller. status is shared with the NR solver and
// updated in place each step.
func New(topo *topology.Topology, asm *mna.Assembler[float64], nrSolver *nr.Solver, errs *errstack.Stack, cfg Config) *Controller {
	dtInit := math.Min(cfg.TStop/200, cfg.DtMax) / 10
	if dtInit < cfg.DtMin {
		dtInit = cfg.DtMin
	}
	if dtInit > cfg.DtMax {
		dtInit = cfg.DtMax
	}
	return &Controller{
		Topo:  topo,
		Asm:   asm,
		NR:    nrSolver,
		Errs:  errs,
		Cfg:   cfg,
		dt:    dtInit,
		dtOld: dtInit,
		order: 1,
	}
}

// AddBreakpoint registers a time the controller must land on exactly,
// e.g. a PWL source's corner or a pulse edge.
func (c *Controller) AddBreakpoint(t float64) { c.breakpoints = append(c.breakpoints, t) }

// Seed fills the solution ring with the initial operating point so
// the first real step has a full history to predict from.
func (c *Controller) Seed(x0 *linalg.Vector[float64]) {
	for k := 0; k < history8; k++ {
		c.xRing[k] = x0
		c.dtRing[k] = c.dt
	}
}

// nextBreakpoint returns the smallest pending breakpoint time > t, if any.
func (c *Controller) nextBreakpoint() (float64, bool) {
	best := math.Inf(1)
	found := false
	for _, bp := range c.breakpoints {
		if bp > c.t && bp < best {
			best = bp
			found = true
		}
	}
	return best, found
}

// applyBreakpointPolicy shortens dt so the step lands exactly on the
// next pending breakpoint instead of stepping over it.
func (c *Controller) applyBreakpointPolicy() {
	bp, ok := c.nextBreakpoint()
	if !ok {
		return
	}
	if !c.Cfg.RelaxTSR && c.t+c.dt > bp-c.Cfg.DtMin && c.t+c.dt < bp+c.Cfg.DtMin {
		c.dt /= 2
	}
	if c.t+c.dt > bp && bp > c.t {
		c.dtStep = c.dt
		c.dt = bp - c.t
	}
}

// Step advances one time step, returning the accepted point (or nil,
// nil if the step was rejected and the caller should call Step again).
func (c *Controller) Step() (*Point, error) {
	c.applyBreakpointPolicy()

	status := &device.Status{
		Mode:     device.ModeTransient,
		Time:     c.t + c.dt,
		TimeStep: c.dt,
		Order:    c.order,
		MaxOrder: c.Cfg.MaxOrder,
		Temp:     consts.RoomTempKelvin,
	}
	c.NR.Status = status

	dts := c.recentDts()
	corr, err := integrator.DeriveCorrector(c.Cfg.Method, c.order, dts, c.Errs)
	if err != nil {
		return nil, err
	}
	status.Coeffs = corr

	pred, err := integrator.DerivePredictor(integrator.PredictorFor(c.Cfg.Method), c.order, dts, c.Errs)
	if err != nil {
		return nil, err
	}

	xPred := c.predict(pred)
	status.IntegMode = device.PredictMode
	c.Asm.WriteBack(xPred)

	if c.prevRejected {
		for _, d := range c.Topo.Devices() {
			if d.IsNonlinear() {
				d.RestartDC()
			}
		}
	}

	status.IntegMode = device.NormalMode
	helper := nr.HelperNone

	var x *linalg.Vector[float64]
	for attempt := 0; attempt < 2; attempt++ {
		c.NR.Status = status
		x, err = c.NR.Solve(helper)
		if err == nil {
			break
		}
		c.dt = math.Max(c.dt/2, c.Cfg.DtMin)
		if c.dt == c.Cfg.DtMin {
			c.order = 1
		}
		helper = nr.HelperSteepestDescent
		c.Rejected++
		c.Convergences++
		status.TimeStep = c.dt
		status.Time = c.t + c.dt
	}
	if err != nil {
		c.Rejected++
		return nil, err
	}

	A, _ := c.Asm.Assemble()
	if !A.IsFinite() {
		return nil, errstack.Entry{Code: errstack.NonFinite, Text: "transient: non-finite jacobian"}
	}

	dtNew := clamp(c.checkDelta(x, xPred), c.Cfg.DtMin, c.Cfg.DtMax)

	accept := dtNew > 0.9*c.dt
	if accept {
		for _, d := range c.Topo.Devices() {
			d.CommitTR(status)
		}
		c.t += c.dt
		c.pushRing(x, c.dt)
		c.adjustOrder(true)
		c.dtOld = c.dt
		c.dt = clamp(dtNew, c.Cfg.DtMin, c.Cfg.DtMax)
		c.Steps++
		c.Convergences++
		return &Point{Time: c.t, X: x}, nil
	}

	c.Rejected++
	c.adjustOrder(false)
	c.dt = clamp(dtNew, c.Cfg.DtMin, c.Cfg.DtMax)
	c.prevRejected = true
	return nil, nil
}

// predict evaluates the polynomial-extrapolation predictor: coeffs
// came from integrator.DerivePredictor, whose Alphas[k] weights
// xRing[k] directly (xRing[0] is the most recently accepted sample).
func (c *Controller) predict(coeffs integrator.Coeffs) *linalg.Vector[float64] {
	n := c.xRing[0].Len()
	out := linalg.NewVector[float64](n)
	for i := 0; i < n; i++ {
		var sum float64
		for k := 0; k < len(coeffs.Alphas) && k < history8; k++ {
			xk := c.xRing[k]
			if xk == nil {
				continue
			}
			sum += coeffs.Alphas[k] * xk.At(i)
		}
		out.Set(i, sum)
	}
	return out
}

func (c *Controller) recentDts() []float64 {
	out := make([]float64, history8)
	out[0] = c.dt
	for k := 1; k < history8; k++ {
		out[k] = c.dtRing[k-1]
	}
	return out
}

func (c *Controller) pushRing(x *linalg.Vector[float64], dt float64) {
	for k := history8 - 1; k > 0; k-- {
		c.xRing[k] = c.xRing[k-1]
		c.dtRing[k] = c.dtRing[k-1]
	}
	c.xRing[0] = x
	c.dtRing[0] = dt
	c.prevRejected = false
}

// checkDelta estimates the local truncation error between the
// corrector solution and the predictor, returning the step size the
// next step should use.
func (c *Controller) checkDelta(x, xPred *linalg.Vector[float64]) float64 {
	cc, cp := integrator.ErrorConstants(c.Cfg.Method, c.order)
	n := math.Inf(1)

	numNodes := c.Topo.NumNodes()
	for r := 0; r < x.Len(); r++ {
		if r >= numNodes && c.isRealVoltageSourceRow(r-numNodes) {
			continue
		}
		diff := x.At(r) - xPred.At(r)
		if diff == 0 || math.IsNaN(diff) || math.IsInf(diff, 0) {
			continue
		}
		rel := math.Max(math.Abs(x.At(r)), math.Abs(xPred.At(r)))
		tol := c.Cfg.LTERelTol*rel + c.Cfg.LTEAbsTol
		denom := cp - cc
		if denom == 0 {
			continue
		}
		lte := c.Cfg.LTEFactor * (cc / denom) * diff
		if lte == 0 {
			continue
		}
		q := c.dt * math.Pow(math.Abs(tol/lte), 1.0/float64(c.order+1))
		if q < n {
			n = q
		}
	}
	if math.IsInf(n, 1) {
		n = c.Cfg.DtMax
	}

	newDt := c.dtOld
	if n > 1.9*c.dtOld {
		newDt = 2 * c.dtOld
	}
	if n < newDt {
		newDt = n
	}
	return newDt
}

func (c *Controller) isRealVoltageSourceRow(vsRow int) bool {
	base := 0
	for _, d := range c.Topo.Devices() {
		n := d.VSourceCount()
		if n == 0 {
			continue
		}
		if vsRow >= base && vsRow < base+n {
			return d.IsVoltageSource()
		}
		base += n
	}
	return false
}

// adjustOrder drops back to order 1 on a rejected step and otherwise
// raises the order by one, up to MaxOrder, once the previous step
// wasn't itself a rejection.
func (c *Controller) adjustOrder(accepted bool) {
	if !accepted {
		c.order = 1
		return
	}
	if c.order < c.Cfg.MaxOrder && !c.prevRejected {
		c.order++
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
