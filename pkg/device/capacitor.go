package device

import (
	"math"

	"github.com/edp1096/toy-spice/pkg/history"
	"github.com/edp1096/toy-spice/pkg/integrator"
)

// Capacitor is a 2-port, 0-vsource reactive element. DC/TR stamping
// follows the teacher's pkg/device/capacitor.go shape (gmin leak at
// OP, admittance+RHS companion at TR) but the TR companion is now
// produced by the integrator package's general multistep formula
// instead of a hardwired Backward-Euler g_eq=C/dt, and AC stamps the
// usual jωC admittance directly.
type Capacitor struct {
	Base
	Value float64

	qHist *history.Ring
	iHist *history.Ring
	lastV float64

	y complex128 // current stamp admittance (mode-dependent)
	i float64    // current stamp RHS contribution (TR only)
}

var _ Device = (*Capacitor)(nil)

func NewCapacitor(name string, value float64) *Capacitor {
	return &Capacitor{
		Base:  NewBase(name, 2, 0),
		Value: value,
		qHist: history.New(),
		iHist: history.New(),
	}
}

func (c *Capacitor) IsNonlinear() bool { return false }

func (c *Capacitor) InitDC()    {}
func (c *Capacitor) RestartDC() { c.qHist.Reset(); c.iHist.Reset() }
func (c *Capacitor) InitTR()    {}
func (c *Capacitor) InitAC()    {}

func (c *Capacitor) CalcDC(status *Status) error {
	gmin := status.Gmin
	if gmin < 1e-12 {
		gmin = 1e-12
	}
	c.y = complex(gmin, 0)
	c.i = 0
	return nil
}

func (c *Capacitor) CalcTR(status *Status) error {
	geq, ieq := integrator.CapacitorCompanion(status.Coeffs, c.Value, c.qHist, c.iHist)
	c.y = complex(geq, 0)
	c.i = ieq
	return nil
}

// CommitTR records this step's accepted charge and current into the
// companion-model history. Called exactly once per accepted time
// step by the transient controller, never from CalcTR itself, so NR
// iterations and LineSearch/SteepestDescent probes within a step
// never rotate the ring.
func (c *Capacitor) CommitTR(status *Status) {
	vd := real(c.V(0)) - real(c.V(1))
	q := c.Value * vd

	dt := status.TimeStep
	if dt <= 0 {
		dt = 1e-15
	}
	i := c.Value * (vd - c.lastV) / dt

	c.qHist.Push(q, status.Time)
	c.iHist.Push(i, status.Time)
	c.lastV = vd
}

func (c *Capacitor) CalcAC(status *Status) error {
	omega := 2 * math.Pi * status.Frequency
	c.y = complex(0, omega*c.Value)
	c.i = 0
	return nil
}

func (c *Capacitor) Y(row, col int) complex128 {
	if row == col {
		return c.y
	}
	return -c.y
}

func (c *Capacitor) I(port int) complex128 {
	if port == 0 {
		return complex(-c.i, 0)
	}
	return complex(c.i, 0)
}

func (c *Capacitor) B(int, int) complex128     { return 0 }
func (c *Capacitor) C(int, int) complex128     { return 0 }
func (c *Capacitor) D(int, int) complex128     { return 0 }
func (c *Capacitor) E(int) complex128          { return 0 }
func (c *Capacitor) N(int, int) complex128     { return 0 }
func (c *Capacitor) CalcNoiseAC(*Status) error { return nil }
func (c *Capacitor) InitNoiseAC()              {}
