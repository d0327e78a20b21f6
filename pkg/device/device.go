// Package device implements a fixed stamp contract: every device is a
// black-box "stamper" exposing per-port/per-vsource admittance,
// coupling, source, and noise matrices that the assembler (package
// mna) reads, plus write-back setters the solver calls after each
// solve. Re-expressed from the teacher's back-reference style (devices
// reaching into the solver's node table) into a pure data contract:
// devices never see global row indices, only their own local
// port/vsource numbering.
package device

import (
	"github.com/edp1096/toy-spice/pkg/history"
	"github.com/edp1096/toy-spice/pkg/integrator"
)

// Mode is the analysis phase a device is being stamped for.
type Mode int

const (
	ModeDC Mode = iota
	ModeTransient
	ModeAC
	ModeNoiseAC
)

// IntegMode distinguishes a predictor write-back from a normal
// (corrector-accepted) companion-model state update.
type IntegMode int

const (
	NormalMode IntegMode = iota
	PredictMode
)

// Status is the per-invocation environment passed to every Calc*
// call: time/step for transient, frequency for AC, gmin for
// continuation, and temperature. It stands in for devices reaching
// into solver state directly.
type Status struct {
	Mode      Mode
	IntegMode IntegMode
	Time      float64
	TimeStep  float64
	Frequency float64
	Gmin      float64
	Temp      float64 // Kelvin
	Order     int
	MaxOrder  int

	// Coeffs is the corrector (or predictor, when IntegMode==PredictMode)
	// coefficient set the transient controller derived for this step,
	// consumed by reactive devices' companion-model stamps.
	Coeffs integrator.Coeffs
}

// Device is the fixed contract every component implements. All
// matrix-valued accessors are indexed by the device's own local
// port/vsource numbering (0-based) and return complex128 uniformly;
// the assembler takes the real part when assembling over T=ℝ.
type Device interface {
	Name() string
	PortCount() int
	VSourceCount() int

	IsNonlinear() bool
	IsVoltageSource() bool
	IsCurrentSource() bool
	IsInternalVoltageSource() bool
	IsProbe() bool
	HasHistory() bool

	InitDC()
	CalcDC(status *Status) error
	RestartDC()

	InitTR()
	CalcTR(status *Status) error
	CommitTR(status *Status)

	InitAC()
	CalcAC(status *Status) error
	InitNoiseAC()
	CalcNoiseAC(status *Status) error

	// Write-backs from the solver.
	SetV(port int, value complex128)
	SetJ(vsIdx int, value complex128)

	// Read by the assembler.
	Y(portRow, portCol int) complex128
	B(port, vs int) complex128
	C(vs, port int) complex128
	D(vsRow, vsCol int) complex128
	I(port int) complex128
	E(vs int) complex128
	N(row, col int) complex128 // (ports+vsources)x(ports+vsources)

	// History.
	AppendHistory(slot int, value float64, t float64)
	VAt(port int, tPast float64) (float64, bool)
	JAt(vsIdx int, tPast float64) (float64, bool)

	// V and J return the last value written back by SetV/SetJ, read by
	// the circuit orchestration layer to snapshot history after an
	// accepted step.
	V(port int) complex128
	J(vsIdx int) complex128
}

// Base provides the common bookkeeping (name, last written-back port
// voltages/branch currents, and per-port/per-vsource history rings)
// every concrete stamper embeds, mirroring the teacher's BaseDevice.
type Base struct {
	DeviceName string
	Ports      int
	VSources   int

	v []complex128 // last written-back port voltages
	j []complex128 // last written-back branch currents

	vHist []*history.Ring
	jHist []*history.Ring
}

func NewBase(name string, ports, vsources int) Base {
	b := Base{DeviceName: name, Ports: ports, VSources: vsources}
	b.v = make([]complex128, ports)
	b.j = make([]complex128, vsources)
	b.vHist = make([]*history.Ring, ports)
	b.jHist = make([]*history.Ring, vsources)
	for i := range b.vHist {
		b.vHist[i] = history.New()
	}
	for i := range b.jHist {
		b.jHist[i] = history.New()
	}
	return b
}

func (b *Base) Name() string      { return b.DeviceName }
func (b *Base) PortCount() int    { return b.Ports }
func (b *Base) VSourceCount() int { return b.VSources }
func (b *Base) HasHistory() bool  { return true }
func (b *Base) IsNonlinear() bool { return false }
func (b *Base) IsProbe() bool     { return false }

func (b *Base) IsVoltageSource() bool         { return false }
func (b *Base) IsCurrentSource() bool         { return false }
func (b *Base) IsInternalVoltageSource() bool { return false }

func (b *Base) SetV(port int, value complex128) { b.v[port] = value }
func (b *Base) SetJ(vs int, value complex128)   { b.j[vs] = value }

func (b *Base) V(port int) complex128 { return b.v[port] }
func (b *Base) J(vs int) complex128   { return b.j[vs] }

func (b *Base) AppendHistory(slot int, value float64, t float64) {
	if slot < b.Ports {
		b.vHist[slot].Push(value, t)
		return
	}
	b.jHist[slot-b.Ports].Push(value, t)
}

func (b *Base) VAt(port int, tPast float64) (float64, bool) {
	return b.vHist[port].Interpolate(tPast)
}

func (b *Base) JAt(vs int, tPast float64) (float64, bool) {
	return b.jHist[vs].Interpolate(tPast)
}

// Zero implements Y/B/C/D/I/E/N returning 0 and no-op Init/Restart
// hooks, so concrete devices only need to override what they actually
// stamp. Embedding Base separately keeps the two concerns (bookkeeping
// vs. default-zero stamps) distinguishable in each device's field list.
type Zero struct{}

func (Zero) Y(int, int) complex128 { return 0 }
func (Zero) B(int, int) complex128 { return 0 }
func (Zero) C(int, int) complex128 { return 0 }
func (Zero) D(int, int) complex128 { return 0 }
func (Zero) I(int) complex128      { return 0 }
func (Zero) E(int) complex128      { return 0 }
func (Zero) N(int, int) complex128 { return 0 }

func (Zero) InitDC()                  {}
func (Zero) RestartDC()               {}
func (Zero) InitTR()                  {}
func (Zero) CommitTR(*Status)         {}
func (Zero) InitAC()                  {}
func (Zero) InitNoiseAC()             {}
func (Zero) CalcNoiseAC(*Status) error { return nil }
