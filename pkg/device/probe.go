package device

// Probe is a passive observer device: it stamps no admittance and
// exists purely so a netlist can flag a node pair for the AC-noise
// analysis to report a differential RMS voltage onto.
type Probe struct {
	Base
	Zero

	result float64
}

var _ Device = (*Probe)(nil)

func NewProbe(name string) *Probe {
	return &Probe{Base: NewBase(name, 2, 0)}
}

func (p *Probe) IsProbe() bool    { return true }
func (p *Probe) HasHistory() bool { return false }

func (p *Probe) CalcDC(*Status) error { return nil }
func (p *Probe) CalcTR(*Status) error { return nil }
func (p *Probe) CalcAC(*Status) error { return nil }

// SetResult records the measured quantity (e.g. the noise analysis's
// RMS voltage sqrt(Re(z_n^H C_y z_n)), where C_y already carries the
// k_B*T scaling), read back as the probe's operating point value.
func (p *Probe) SetResult(v float64) { p.result = v }
func (p *Probe) Result() float64     { return p.result }
