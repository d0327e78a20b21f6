// Package ac implements the frequency-domain small-signal sweep and its
// noise-analysis specialization over a built circuit.Circuit. It is kept
// separate from package analysis because the assembly and solve here run
// entirely over complex128, reusing mna.Assembler[complex128] and
// linalg.Factorization[complex128] rather than the real-valued path
// op/dc/tran share. Grounded on the teacher's pkg/analysis/ac.go
// sweep loop, re-expressed over the topology/mna split, plus the
// adjoint-transimpedance noise method carried over from the teacher's
// noise analysis.
package ac

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/edp1096/toy-spice/internal/consts"
	"github.com/edp1096/toy-spice/pkg/analysis"
	"github.com/edp1096/toy-spice/pkg/circuit"
	"github.com/edp1096/toy-spice/pkg/device"
	"github.com/edp1096/toy-spice/pkg/errstack"
	"github.com/edp1096/toy-spice/pkg/linalg"
	"github.com/edp1096/toy-spice/pkg/mna"
)

// SweepType selects how frequency points are spaced between FStart and
// FStop.
type SweepType int

const (
	Linear SweepType = iota
	Decade
	Octave
)

// AC runs a small-signal frequency sweep, linearized at the circuit's DC
// operating point, and optionally an output-referred noise computation
// at every swept frequency.
type AC struct {
	data map[string][]float64

	Circuit *circuit.Circuit
	Errs    *errstack.Stack

	asm   *mna.Assembler[complex128]
	freqs []float64
	noise bool
	temp  float64
}

// NewAC builds an AC analysis sweeping points frequencies between fStart
// and fStop according to sweep. withNoise also runs the adjoint-based
// output noise computation at each point, reporting VN(name) for every
// probe the netlist flagged. temp is the analysis temperature in
// Kelvin fed to every device's Status.Temp (and so into the resistor
// thermal-noise scaling); temp<=0 defaults to consts.RoomTempKelvin.
func NewAC(ckt *circuit.Circuit, sweep SweepType, points int, fStart, fStop float64, withNoise bool, temp float64) *AC {
	if temp <= 0 {
		temp = consts.RoomTempKelvin
	}
	return &AC{
		data:    make(map[string][]float64),
		Circuit: ckt,
		Errs:    errstack.New(),
		asm:     mna.New[complex128](ckt.Topo),
		freqs:   frequencyPoints(sweep, points, fStart, fStop),
		noise:   withNoise,
		temp:    temp,
	}
}

// Results returns the swept series, keyed FREQ plus NAME_MAG/NAME_PHASE
// per reported quantity (VN(probe) included when noise is requested).
func (ac *AC) Results() map[string][]float64 { return ac.data }

func frequencyPoints(sweep SweepType, points int, fStart, fStop float64) []float64 {
	if points <= 1 {
		return []float64{fStart}
	}

	out := make([]float64, 0, points)
	switch sweep {
	case Decade, Octave:
		base := 10.0
		if sweep == Octave {
			base = 2.0
		}
		logStart := math.Log(fStart) / math.Log(base)
		logStop := math.Log(fStop) / math.Log(base)
		step := (logStop - logStart) / float64(points-1)
		for i := 0; i < points; i++ {
			out = append(out, math.Pow(base, logStart+step*float64(i)))
		}
	default: // Linear
		step := (fStop - fStart) / float64(points-1)
		for i := 0; i < points; i++ {
			out = append(out, fStart+step*float64(i))
		}
	}
	return out
}

// Execute linearizes at the DC operating point, then for every swept
// frequency assembles and solves the complex MNA system (and the noise
// system, when requested), recording one row per frequency.
func (ac *AC) Execute() error {
	op := analysis.NewOP(ac.Circuit)
	if err := op.Execute(); err != nil {
		return fmt.Errorf("ac: operating point: %w", err)
	}

	ac.Circuit.InitAC()
	if ac.noise {
		ac.Circuit.InitNoiseAC()
	}

	status := &device.Status{Mode: device.ModeAC, Temp: ac.temp}

	for _, f := range ac.freqs {
		status.Frequency = f
		if err := ac.asm.Calc(status); err != nil {
			return fmt.Errorf("ac: f=%g: %w", f, err)
		}

		A, z := ac.asm.Assemble()
		x, err := linalg.Solve(A, z, linalg.CroutLU, ac.Errs)
		if err != nil {
			return fmt.Errorf("ac: solve at f=%g: %w", f, err)
		}

		sol := ac.Circuit.GetSolutionComplex(x)

		if ac.noise {
			noiseSol, err := ac.probeNoise(A)
			if err != nil {
				return fmt.Errorf("ac: noise at f=%g: %w", f, err)
			}
			for k, v := range noiseSol {
				sol[k] = v
			}
		}

		ac.store(f, sol)
	}

	return nil
}

func (ac *AC) store(freq float64, solution map[string]complex128) {
	ac.data["FREQ"] = append(ac.data["FREQ"], freq)
	for name, v := range solution {
		ac.data[name+"_MAG"] = append(ac.data[name+"_MAG"], cmplx.Abs(v))
		ac.data[name+"_PHASE"] = append(ac.data[name+"_PHASE"], cmplx.Phase(v)*180.0/math.Pi)
	}
}

// probeNoise computes output-referred RMS noise at every probe via the
// adjoint transimpedance method: factor A^T once, then for each probe
// substitute a unit differential excitation e_i (+1 at the probe's A
// node, -1 at its B node) against A^T z_n = -e_i, and form the Hermitian
// quadratic form z_n^H C_y z_n against the assembled noise correlation
// matrix. C_y carries each device's current-noise PSD contributions
// (only resistor thermal noise is stamped; no device stamps shot or
// flicker noise) already scaled by k_B*T at that device's own
// operating temperature, so the quadratic form is a PSD in V^2/Hz
// directly; taking the square root gives an RMS voltage at the probe.
func (ac *AC) probeNoise(A *linalg.Matrix[complex128]) (map[string]complex128, error) {
	probes := ac.Circuit.Probes()
	if len(probes) == 0 {
		return nil, nil
	}

	Cy := ac.asm.AssembleNoise()
	factor, err := linalg.TransposeFactor(A, linalg.CroutLU, ac.Errs)
	if err != nil {
		return nil, err
	}

	size := A.Rows()
	out := make(map[string]complex128, len(probes))

	for _, p := range probes {
		a, b := ac.Circuit.ProbeNodes(p)

		// A^T z_n = -e_i: build the right-hand side as the negation of
		// the probe's own +1/-1 differential excitation.
		e := linalg.NewVector[complex128](size)
		if a != 0 {
			e.Set(a-1, -1)
		}
		if b != 0 {
			e.Add(b-1, 1)
		}

		zTrans, err := factor.Substitute(e)
		if err != nil {
			return nil, err
		}

		var psd complex128
		for i := 0; i < size; i++ {
			zi := zTrans.At(i)
			if zi == 0 {
				continue
			}
			for j := 0; j < size; j++ {
				zj := zTrans.At(j)
				if zj == 0 {
					continue
				}
				if cy := Cy.At(i, j); cy != 0 {
					psd += cmplx.Conj(zi) * cy * zj
				}
			}
		}

		scaled := real(psd)
		if scaled < 0 {
			scaled = 0
		}
		vRMS := math.Sqrt(scaled)
		p.SetResult(vRMS)
		out[fmt.Sprintf("VN(%s)", p.Name())] = complex(vRMS, 0)
	}

	return out, nil
}
