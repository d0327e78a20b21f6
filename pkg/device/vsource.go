package device

import "math"

// VoltageSource is a 2-port, 1-vsource independent source: an
// internal branch-current unknown enforces v1-v2 = V(t), grounded on
// the teacher's pkg/device/vsource.go branch-row stamp. AC stamping
// uses a separate magnitude/phase excitation from the DC/TR waveform.
type VoltageSource struct {
	Base
	vtype SourceType

	dcValue float64

	amplitude float64
	freq      float64
	phase     float64

	v1, v2, delay, rise, fall, pWidth, period float64

	times  []float64
	values []float64

	acMag, acPhase float64

	scale float64
	rhs   complex128
}

var _ Device = (*VoltageSource)(nil)

func NewDCVoltageSource(name string, value float64) *VoltageSource {
	return &VoltageSource{Base: NewBase(name, 2, 1), vtype: DC, dcValue: value, scale: 1}
}

func NewSinVoltageSource(name string, offset, amplitude, freq, phase float64) *VoltageSource {
	return &VoltageSource{Base: NewBase(name, 2, 1), vtype: SIN, dcValue: offset, amplitude: amplitude, freq: freq, phase: phase, scale: 1}
}

func NewPulseVoltageSource(name string, v1, v2, delay, rise, fall, pWidth, period float64) *VoltageSource {
	return &VoltageSource{Base: NewBase(name, 2, 1), vtype: PULSE, v1: v1, v2: v2, delay: delay, rise: rise, fall: fall, pWidth: pWidth, period: period, scale: 1}
}

func NewPWLVoltageSource(name string, times, values []float64) *VoltageSource {
	return &VoltageSource{Base: NewBase(name, 2, 1), vtype: PWL, times: times, values: values, scale: 1}
}

func NewACVoltageSource(name string, dcValue, acMag, acPhase float64) *VoltageSource {
	return &VoltageSource{Base: NewBase(name, 2, 1), vtype: DC, dcValue: dcValue, acMag: acMag, acPhase: acPhase, scale: 1}
}

func (v *VoltageSource) IsVoltageSource() bool         { return true }
func (v *VoltageSource) IsInternalVoltageSource() bool { return true }

// SetScale implements nr.Scalable.
func (v *VoltageSource) SetScale(factor float64) { v.scale = factor }

// SetDCValue overrides the DC operating value, used by a DC sweep to
// step this source through a range of values between operating points.
func (v *VoltageSource) SetDCValue(value float64) { v.dcValue = value }

// DCValue returns the source's current DC operating value.
func (v *VoltageSource) DCValue() float64 { return v.dcValue }

func (v *VoltageSource) InitDC()      {}
func (v *VoltageSource) RestartDC()   {}
func (v *VoltageSource) InitTR()      {}
func (v *VoltageSource) InitAC()      {}
func (v *VoltageSource) InitNoiseAC() {}

func (v *VoltageSource) valueAt(t float64) float64 {
	switch v.vtype {
	case DC:
		return v.dcValue
	case SIN:
		phaseRad := v.phase * math.Pi / 180.0
		return v.dcValue + v.amplitude*math.Sin(2.0*math.Pi*v.freq*t+phaseRad)
	case PULSE:
		return v.pulseAt(t)
	case PWL:
		return v.pwlAt(t)
	default:
		return 0
	}
}

func (v *VoltageSource) pulseAt(t float64) float64 {
	if t < v.delay {
		return v.v1
	}
	t -= v.delay
	if v.period > 0 {
		t = math.Mod(t, v.period)
	}
	if t < v.rise {
		if v.rise == 0 {
			return v.v2
		}
		return v.v1 + (v.v2-v.v1)*t/v.rise
	}
	if t < v.rise+v.pWidth {
		return v.v2
	}
	fallStart := v.rise + v.pWidth
	if t < fallStart+v.fall {
		if v.fall == 0 {
			return v.v1
		}
		return v.v2 - (v.v2-v.v1)*(t-fallStart)/v.fall
	}
	return v.v1
}

func (v *VoltageSource) pwlAt(t float64) float64 {
	if len(v.times) == 0 {
		return 0
	}
	if t <= v.times[0] {
		return v.values[0]
	}
	last := len(v.times) - 1
	if t >= v.times[last] {
		return v.values[last]
	}
	for idx := 1; idx < len(v.times); idx++ {
		if t <= v.times[idx] {
			t1, t2 := v.times[idx-1], v.times[idx]
			v1, v2 := v.values[idx-1], v.values[idx]
			return v1 + (v2-v1)*(t-t1)/(t2-t1)
		}
	}
	return v.values[last]
}

func (v *VoltageSource) CalcDC(status *Status) error {
	v.rhs = complex(v.scale*v.dcValue, 0)
	return nil
}
func (v *VoltageSource) CalcTR(status *Status) error {
	v.rhs = complex(v.scale*v.valueAt(status.Time), 0)
	return nil
}
func (v *VoltageSource) CommitTR(*Status) {}

func (v *VoltageSource) CalcAC(status *Status) error {
	phaseRad := v.acPhase * math.Pi / 180.0
	v.rhs = complex(v.acMag*math.Cos(phaseRad), v.acMag*math.Sin(phaseRad))
	return nil
}

func (v *VoltageSource) B(port, vs int) complex128 {
	if port == 0 {
		return 1
	}
	return -1
}

func (v *VoltageSource) C(vs, port int) complex128 {
	if port == 0 {
		return 1
	}
	return -1
}

func (v *VoltageSource) E(vs int) complex128 { return v.rhs }

func (v *VoltageSource) Y(int, int) complex128     { return 0 }
func (v *VoltageSource) D(int, int) complex128     { return 0 }
func (v *VoltageSource) I(int) complex128          { return 0 }
func (v *VoltageSource) N(int, int) complex128     { return 0 }
func (v *VoltageSource) CalcNoiseAC(*Status) error { return nil }
