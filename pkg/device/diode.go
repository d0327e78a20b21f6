package device

import "math"

// Diode is a 2-port, 0-vsource nonlinear device, grounded on the
// teacher's pkg/device/diode.go exponential I-V model and junction
// capacitance formula. Per-iteration junction voltage limiting is
// added here since the teacher's original let vd swing unclamped
// between iterations.
type Diode struct {
	Base

	Is   float64
	Ne   float64 // emission coefficient
	Rs   float64
	Cj0  float64
	M    float64
	Vj   float64
	Bv   float64
	Gmin float64

	vd     float64
	vdIter float64 // previous Newton iterate, for voltage limiting
	id     float64
	gd     float64
	cj     float64
	y      complex128
}

var _ Device = (*Diode)(nil)

func NewDiode(name string) *Diode {
	d := &Diode{Base: NewBase(name, 2, 0)}
	d.Is = 1e-14
	d.Ne = 1.0
	d.Rs = 0.0
	d.Cj0 = 0.0
	d.M = 0.5
	d.Vj = 1.0
	d.Bv = 100.0
	d.Gmin = 1e-12
	return d
}

func (d *Diode) IsNonlinear() bool { return true }
func (d *Diode) HasHistory() bool  { return false }

func (d *Diode) InitDC()    { d.vd, d.vdIter = 0, 0 }
func (d *Diode) RestartDC() { d.vd, d.vdIter = 0, 0 }
func (d *Diode) InitTR()    {}
func (d *Diode) InitAC()    {}

func thermalVoltage(tempK float64) float64 {
	if tempK <= 0 {
		tempK = 300.15
	}
	return (0.025852) * (tempK / 300.15)
}

// limitVoltage applies the classic SPICE per-iteration junction
// voltage limiter: a large forward-bias step is compressed
// logarithmically instead of let through raw, which is what makes
// diode DC sweeps converge without source stepping in the common case.
func (d *Diode) limitVoltage(vNew, vOld, vt float64) float64 {
	vcrit := vt * math.Log(vt/(math.Sqrt2*d.Is))
	if vNew > vcrit && math.Abs(vNew-vOld) > 2*vt {
		if vOld > 0 {
			arg := 1 + (vNew-vOld)/vt
			if arg > 0 {
				return vOld + vt*math.Log(arg)
			}
			return vcrit
		}
		return vt * math.Log(vNew/vt)
	}
	return vNew
}

func (d *Diode) current(vd, vt float64) float64 {
	if vd >= -5*vt {
		expArg := vd / (d.Ne * vt)
		if expArg > 40 {
			expArg = 40
		}
		return d.Is * (math.Exp(expArg) - 1)
	}
	if vd < -d.Bv {
		return -d.Is * (1 + (vd+d.Bv)/vt)
	}
	return -d.Is
}

func (d *Diode) conductance(vd, id, vt float64) float64 {
	if vd >= -5*vt {
		return (id+d.Is)/(d.Ne*vt) + d.Gmin
	}
	if vd < -d.Bv {
		return d.Is/vt + d.Gmin
	}
	return d.Gmin
}

func (d *Diode) junctionCap(vd float64) float64 {
	if d.Cj0 == 0 {
		return 0
	}
	if vd < 0 {
		arg := 1 - vd/d.Vj
		if arg < 0.1 {
			arg = 0.1
		}
		return d.Cj0 / math.Pow(arg, d.M)
	}
	return d.Cj0 * (1 + d.M*vd/d.Vj)
}

func (d *Diode) recompute(status *Status) {
	vt := thermalVoltage(status.Temp)
	vRaw := real(d.V(0)) - real(d.V(1))
	d.vd = d.limitVoltage(vRaw, d.vdIter, vt)
	d.vdIter = d.vd

	d.id = d.current(d.vd, vt)
	d.gd = d.conductance(d.vd, d.id, vt)
	d.cj = d.junctionCap(d.vd)
	d.y = complex(d.gd, 0)
}

func (d *Diode) CalcDC(status *Status) error { d.recompute(status); return nil }
func (d *Diode) CalcTR(status *Status) error { d.recompute(status); return nil }
func (d *Diode) CommitTR(*Status)            {}

// CalcAC reuses gd/cj from the last DC/TR operating point (the
// teacher's StampAC does the same) and adds the junction capacitance's
// admittance at the sweep frequency.
func (d *Diode) CalcAC(status *Status) error {
	omega := 2 * math.Pi * status.Frequency
	d.y = complex(d.gd, omega*d.cj)
	return nil
}

func (d *Diode) Y(row, col int) complex128 {
	if row == col {
		return d.y
	}
	return -d.y
}

func (d *Diode) I(port int) complex128 {
	ieq := d.id - d.gd*d.vd
	if port == 0 {
		return complex(-ieq, 0)
	}
	return complex(ieq, 0)
}

func (d *Diode) B(int, int) complex128     { return 0 }
func (d *Diode) C(int, int) complex128     { return 0 }
func (d *Diode) D(int, int) complex128     { return 0 }
func (d *Diode) E(int) complex128          { return 0 }
func (d *Diode) N(int, int) complex128     { return 0 }
func (d *Diode) CalcNoiseAC(*Status) error { return nil }
func (d *Diode) InitNoiseAC()              {}
