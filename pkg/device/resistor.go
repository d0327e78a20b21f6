package device

import "github.com/edp1096/toy-spice/internal/consts"

// Resistor is a 2-port, 0-vsource linear conductance, grounded on the
// teacher's pkg/device/resistor.go: G = 1/R(T) with linear (Tc1) and
// quadratic (Tc2) temperature coefficients, stamped identically whatever the analysis
// mode (a resistor has no frequency or time dependence), so Y is
// computed once in CalcDC/CalcTR/CalcAC rather than switched on Mode.
type Resistor struct {
	Base
	Zero
	Value float64
	Tc1   float64
	Tc2   float64
	Tnom  float64

	g    float64
	temp float64
}

var _ Device = (*Resistor)(nil)

func NewResistor(name string, value float64) *Resistor {
	return &Resistor{
		Base:  NewBase(name, 2, 0),
		Value: value,
		Tnom:  300.15,
		temp:  consts.RoomTempKelvin,
	}
}

func (r *Resistor) temperatureAdjusted(temp float64) float64 {
	dt := temp - r.Tnom
	return r.Value * (1.0 + r.Tc1*dt + r.Tc2*dt*dt)
}

func (r *Resistor) recompute(status *Status) {
	r.g = 1.0 / r.temperatureAdjusted(status.Temp)
	r.temp = status.Temp
	if r.temp <= 0 {
		r.temp = consts.RoomTempKelvin
	}
}

// Conductance returns the last computed g = 1/R(T), read by result
// reporting to derive branch current from the solved node voltages.
func (r *Resistor) Conductance() float64 { return r.g }

func (r *Resistor) CalcDC(status *Status) error { r.recompute(status); return nil }
func (r *Resistor) CalcTR(status *Status) error { r.recompute(status); return nil }
func (r *Resistor) CalcAC(status *Status) error { r.recompute(status); return nil }

func (r *Resistor) Y(row, col int) complex128 {
	if row == col {
		return complex(r.g, 0)
	}
	return complex(-r.g, 0)
}

// N is the resistor's thermal-noise current-source correlation
// contribution: PSD = 4*k_B*T*g at the device's own last-computed
// operating temperature, so doubling Temp doubles the reported v_n^2
// and a resistor evaluated at a non-default analysis temperature
// reports noise scaled accordingly.
func (r *Resistor) N(row, col int) complex128 {
	psd := 4 * consts.BOLTZMANN * r.temp * r.g
	if row == col {
		return complex(psd, 0)
	}
	return complex(-psd, 0)
}
