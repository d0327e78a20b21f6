package device

import "math"

// SourceType selects the waveform a current or voltage source plays
// back over time, grounded on the teacher's pkg/device/isource.go and
// vsource.go waveform switches (DC/SIN/PULSE/PWL).
type SourceType int

const (
	DC SourceType = iota
	SIN
	PULSE
	PWL
)

// CurrentSource is a 2-port, 0-vsource independent source stamped
// purely onto the RHS. AC stamping uses a separate magnitude/phase
// phasor excitation, independent of the DC operating value.
type CurrentSource struct {
	Base
	ctype SourceType

	dcValue float64

	amplitude float64
	freq      float64
	phase     float64

	i1, i2, delay, rise, fall, pWidth, period float64

	times  []float64
	values []float64

	acMag, acPhase float64

	scale float64
	cur   complex128
}

var _ Device = (*CurrentSource)(nil)

func NewDCCurrentSource(name string, value float64) *CurrentSource {
	return &CurrentSource{Base: NewBase(name, 2, 0), ctype: DC, dcValue: value, scale: 1}
}

func NewSinCurrentSource(name string, offset, amplitude, freq, phase float64) *CurrentSource {
	return &CurrentSource{Base: NewBase(name, 2, 0), ctype: SIN, dcValue: offset, amplitude: amplitude, freq: freq, phase: phase, scale: 1}
}

func NewPulseCurrentSource(name string, i1, i2, delay, rise, fall, pWidth, period float64) *CurrentSource {
	return &CurrentSource{Base: NewBase(name, 2, 0), ctype: PULSE, i1: i1, i2: i2, delay: delay, rise: rise, fall: fall, pWidth: pWidth, period: period, scale: 1}
}

func NewPWLCurrentSource(name string, times, values []float64) *CurrentSource {
	return &CurrentSource{Base: NewBase(name, 2, 0), ctype: PWL, times: times, values: values, scale: 1}
}

func NewACCurrentSource(name string, dcValue, acMag, acPhase float64) *CurrentSource {
	return &CurrentSource{Base: NewBase(name, 2, 0), ctype: DC, dcValue: dcValue, acMag: acMag, acPhase: acPhase, scale: 1}
}

// SetScale implements nr.Scalable, used by the SourceStepping
// convergence helper to ramp independent sources from
// 0 to their full value.
func (i *CurrentSource) SetScale(factor float64) { i.scale = factor }

// SetDCValue overrides the DC operating value, used by a DC sweep to
// step this source through a range of values between operating points.
func (i *CurrentSource) SetDCValue(value float64) { i.dcValue = value }

// DCValue returns the source's current DC operating value.
func (i *CurrentSource) DCValue() float64 { return i.dcValue }

func (i *CurrentSource) IsCurrentSource() bool { return true }
func (i *CurrentSource) HasHistory() bool      { return false }

func (i *CurrentSource) InitDC()       {}
func (i *CurrentSource) RestartDC()    {}
func (i *CurrentSource) InitTR()       {}
func (i *CurrentSource) InitAC()       {}
func (i *CurrentSource) InitNoiseAC()  {}

func (i *CurrentSource) valueAt(t float64) float64 {
	switch i.ctype {
	case DC:
		return i.dcValue
	case SIN:
		phaseRad := i.phase * math.Pi / 180.0
		return i.dcValue + i.amplitude*math.Sin(2.0*math.Pi*i.freq*t+phaseRad)
	case PULSE:
		return i.pulseAt(t)
	case PWL:
		return i.pwlAt(t)
	default:
		return 0
	}
}

func (i *CurrentSource) pulseAt(t float64) float64 {
	if t < i.delay {
		return i.i1
	}
	t -= i.delay
	if i.period > 0 {
		t = math.Mod(t, i.period)
	}
	if t < i.rise {
		if i.rise == 0 {
			return i.i2
		}
		return i.i1 + (i.i2-i.i1)*t/i.rise
	}
	if t < i.rise+i.pWidth {
		return i.i2
	}
	fallStart := i.rise + i.pWidth
	if t < fallStart+i.fall {
		if i.fall == 0 {
			return i.i1
		}
		return i.i2 - (i.i2-i.i1)*(t-fallStart)/i.fall
	}
	return i.i1
}

func (i *CurrentSource) pwlAt(t float64) float64 {
	if len(i.times) == 0 {
		return 0
	}
	if t <= i.times[0] {
		return i.values[0]
	}
	last := len(i.times) - 1
	if t >= i.times[last] {
		return i.values[last]
	}
	for idx := 1; idx < len(i.times); idx++ {
		if t <= i.times[idx] {
			t1, t2 := i.times[idx-1], i.times[idx]
			v1, v2 := i.values[idx-1], i.values[idx]
			return v1 + (v2-v1)*(t-t1)/(t2-t1)
		}
	}
	return i.values[last]
}

func (i *CurrentSource) CalcDC(status *Status) error {
	i.cur = complex(i.scale*i.dcValue, 0)
	return nil
}
func (i *CurrentSource) CalcTR(status *Status) error {
	i.cur = complex(i.scale*i.valueAt(status.Time), 0)
	return nil
}
func (i *CurrentSource) CommitTR(*Status) {}

func (i *CurrentSource) CalcAC(status *Status) error {
	phaseRad := i.acPhase * math.Pi / 180.0
	i.cur = complex(i.acMag*math.Cos(phaseRad), i.acMag*math.Sin(phaseRad))
	return nil
}

func (i *CurrentSource) I(port int) complex128 {
	if port == 0 {
		return i.cur
	}
	return -i.cur
}

func (i *CurrentSource) Y(int, int) complex128     { return 0 }
func (i *CurrentSource) B(int, int) complex128     { return 0 }
func (i *CurrentSource) C(int, int) complex128     { return 0 }
func (i *CurrentSource) D(int, int) complex128     { return 0 }
func (i *CurrentSource) E(int) complex128          { return 0 }
func (i *CurrentSource) N(int, int) complex128     { return 0 }
func (i *CurrentSource) CalcNoiseAC(*Status) error { return nil }
