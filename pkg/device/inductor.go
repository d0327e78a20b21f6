package device

import (
	"math"

	"github.com/edp1096/toy-spice/pkg/history"
	"github.com/edp1096/toy-spice/pkg/integrator"
)

// Inductor is a 2-port, 1-vsource reactive element: the branch current
// is an internal unknown, per the teacher's pkg/device/inductor.go
// branchIdx row. The TR companion is now the dual formulation of the
// capacitor's (flux/voltage instead of charge/current), produced by
// integrator.InductorCompanion instead of the teacher's hardwired
// single-order Gear call.
type Inductor struct {
	Base
	Value float64

	phiHist *history.Ring
	vHist   *history.Ring
	lastI   float64

	req float64 // companion series resistance (TR/DC) or reactance (AC, via y below)
	veq float64
	y   complex128 // AC: branch impedance jωL used directly in D
}

var _ Device = (*Inductor)(nil)

func NewInductor(name string, value float64) *Inductor {
	return &Inductor{
		Base:    NewBase(name, 2, 1),
		Value:   value,
		phiHist: history.New(),
		vHist:   history.New(),
	}
}

func (l *Inductor) IsNonlinear() bool             { return false }
func (l *Inductor) IsInternalVoltageSource() bool { return true }

func (l *Inductor) InitDC()    {}
func (l *Inductor) RestartDC() { l.phiHist.Reset(); l.vHist.Reset() }
func (l *Inductor) InitTR()    {}
func (l *Inductor) InitAC()    {}

func (l *Inductor) CalcDC(status *Status) error {
	l.req = 1e-9 // near-short, conditioned like a tiny series resistance
	l.veq = 0
	l.y = 0
	return nil
}

func (l *Inductor) CalcTR(status *Status) error {
	req, veq := integrator.InductorCompanion(status.Coeffs, l.Value, l.phiHist, l.vHist)
	l.req = req
	l.veq = veq
	l.y = 0
	return nil
}

// CommitTR records this step's accepted flux and branch voltage into
// the companion-model history. Called exactly once per accepted time
// step by the transient controller, never from CalcTR itself, so NR
// iterations and LineSearch/SteepestDescent probes within a step
// never rotate the ring.
func (l *Inductor) CommitTR(status *Status) {
	vd := real(l.V(0)) - real(l.V(1))
	i := real(l.J(0))
	phi := l.Value * i

	l.phiHist.Push(phi, status.Time)
	l.vHist.Push(vd, status.Time)
	l.lastI = i
}

func (l *Inductor) CalcAC(status *Status) error {
	omega := 2 * math.Pi * status.Frequency
	l.y = complex(0, omega*l.Value)
	l.veq = 0
	return nil
}

func (l *Inductor) B(port, vs int) complex128 {
	if port == 0 {
		return 1
	}
	return -1
}

func (l *Inductor) C(vs, port int) complex128 {
	if port == 0 {
		return 1
	}
	return -1
}

func (l *Inductor) D(vsRow, vsCol int) complex128 {
	if l.y != 0 {
		return -l.y
	}
	return complex(-l.req, 0)
}

func (l *Inductor) E(vs int) complex128 { return complex(l.veq, 0) }

func (l *Inductor) Y(int, int) complex128      { return 0 }
func (l *Inductor) I(int) complex128           { return 0 }
func (l *Inductor) N(int, int) complex128      { return 0 }
func (l *Inductor) CalcNoiseAC(*Status) error  { return nil }
func (l *Inductor) InitNoiseAC()               {}
