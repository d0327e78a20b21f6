// Package nr implements the Newton-Raphson driver with its
// convergence test and the five convergence helpers (Attenuation,
// LineSearch, SteepestDescent, GMinStepping, SourceStepping), plus the
// automatic fallback chain. Grounded on the teacher's pkg/analysis
// op.go/dc.go iterate-until-convergence loop, generalized from a
// single damping strategy to the full helper set.
package nr

import (
	"math"

	"github.com/edp1096/toy-spice/internal/consts"
	"github.com/edp1096/toy-spice/pkg/device"
	"github.com/edp1096/toy-spice/pkg/errstack"
	"github.com/edp1096/toy-spice/pkg/linalg"
	"github.com/edp1096/toy-spice/pkg/mna"
	"github.com/edp1096/toy-spice/pkg/topology"
)

// Helper is a convergence-helper strategy.
type Helper int

const (
	HelperNone Helper = iota
	HelperAttenuation
	HelperLineSearch
	HelperSteepestDescent
	HelperGMinStepping
	HelperSourceStepping
)

// fallbackChain is the automatic order tried when the user supplies no
// explicit helper: SourceStepping -> GMinStepping -> SteepestDescent ->
// LineSearch -> Attenuation, each tried on NO_CONVERGENCE. The user's
// preferred helper, if any, is removed from its first occurrence in
// this chain so it is never retried a second time (see DESIGN.md:
// skip, don't repeat).
var fallbackChain = []Helper{
	HelperSourceStepping,
	HelperGMinStepping,
	HelperSteepestDescent,
	HelperLineSearch,
	HelperAttenuation,
}

// Scalable is implemented by independent sources that SourceStepping
// can scale toward their full value.
type Scalable interface {
	SetScale(factor float64)
}

// Solver runs Newton-Raphson over one Topology/Assembler pair.
type Solver struct {
	Topo   *topology.Topology
	Asm    *mna.Assembler[float64]
	Status *device.Status
	Errs   *errstack.Stack

	RelTol  float64
	AbsTol  float64
	VnTol   float64
	MaxIter int

	NumNodes int
}

// NewSolver builds a Solver with the default tolerances.
func NewSolver(topo *topology.Topology, asm *mna.Assembler[float64], status *device.Status, errs *errstack.Stack) *Solver {
	return &Solver{
		Topo:     topo,
		Asm:      asm,
		Status:   status,
		Errs:     errs,
		RelTol:   consts.DefaultRelTol,
		AbsTol:   consts.DefaultAbsTol,
		VnTol:    consts.DefaultVnTol,
		MaxIter:  consts.DefaultMaxIter,
		NumNodes: topo.NumNodes(),
	}
}

// Solve runs the outer algorithm with the given user-preferred helper
// (HelperNone if the user specified none), falling back through
// fallbackChain on NO_CONVERGENCE.E.
func (s *Solver) Solve(preferred Helper) (*linalg.Vector[float64], error) {
	x, err := s.iterate(preferred)
	if err == nil {
		return x, nil
	}

	chain := make([]Helper, 0, len(fallbackChain))
	skipped := false
	for _, h := range fallbackChain {
		if !skipped && h == preferred {
			skipped = true
			continue
		}
		chain = append(chain, h)
	}

	for _, h := range chain {
		x, err = s.iterate(h)
		if err == nil {
			return x, nil
		}
	}

	s.Errs.Push(errstack.NoConvergence, nil, "newton-raphson: all convergence helpers exhausted")
	return nil, err
}

// iterate dispatches to the outer-continuation helpers (GMinStepping,
// SourceStepping) or runs a single inner Newton loop otherwise.
func (s *Solver) iterate(h Helper) (*linalg.Vector[float64], error) {
	switch h {
	case HelperGMinStepping:
		return s.gminStepping()
	case HelperSourceStepping:
		return s.sourceStepping()
	default:
		return s.innerNewton(h)
	}
}

// innerNewton is the outer algorithm for one (sub)net at a
// fixed continuation parameter: calc_dc -> create_matrix -> solve ->
// write-back -> convergence test -> repeat.
func (s *Solver) innerNewton(h Helper) (*linalg.Vector[float64], error) {
	maxIter := s.MaxIter
	if h != HelperNone {
		maxIter *= 2
	}

	var x, xPrev, zPrev *linalg.Vector[float64]

	for k := 0; ; k++ {
		if k >= maxIter {
			s.Errs.Push(errstack.NoConvergence, nil, "newton-raphson: exceeded %d iterations", maxIter)
			return nil, errstack.Entry{Code: errstack.NoConvergence}
		}

		if err := s.Asm.Calc(s.Status); err != nil {
			return nil, err
		}
		A, zNew := s.Asm.Assemble()
		if s.Status.Gmin != 0 {
			s.Asm.AddGmin(A, s.Status.Gmin)
		}
		xNew, err := linalg.Solve(A, zNew, linalg.CroutLU, s.Errs)
		if err != nil {
			return nil, err
		}

		if xPrev != nil {
			switch h {
			case HelperAttenuation:
				xNew = s.attenuation(xNew, xPrev)
			case HelperLineSearch:
				xNew = s.lineSearch(xPrev, xNew)
			case HelperSteepestDescent:
				xNew = s.steepestDescent(xNew, xPrev, zPrev)
			}
		}

		s.Asm.WriteBack(xNew)

		converged := false
		if k > 0 {
			converged = s.converged(xNew, xPrev, zNew, zPrev, h)
		}

		x = xNew
		if converged {
			return x, nil
		}
		xPrev, zPrev = xNew, zNew
	}
}

// converged implements the per-row convergence test.
func (s *Solver) converged(x, xPrev, z, zPrev *linalg.Vector[float64], h Helper) bool {
	n := s.NumNodes
	for r := 0; r < n; r++ {
		if math.Abs(x.At(r)-xPrev.At(r)) >= s.VnTol+s.RelTol*math.Abs(x.At(r)) {
			return false
		}
		if h == HelperNone {
			if math.Abs(z.At(r)-zPrev.At(r)) >= s.AbsTol+s.RelTol*math.Abs(z.At(r)) {
				return false
			}
		}
	}
	for r := n; r < x.Len(); r++ {
		// vs rows: vntol/abstol roles swap (currents use abstol-like
		// absolute scale, voltages-like rows use vntol).
		if math.Abs(x.At(r)-xPrev.At(r)) >= s.AbsTol+s.RelTol*math.Abs(x.At(r)) {
			return false
		}
		if h == HelperNone {
			if math.Abs(z.At(r)-zPrev.At(r)) >= s.VnTol+s.RelTol*math.Abs(z.At(r)) {
				return false
			}
		}
	}
	return true
}

func interp(a, b *linalg.Vector[float64], alpha float64) *linalg.Vector[float64] {
	out := linalg.NewVector[float64](a.Len())
	for i := 0; i < a.Len(); i++ {
		out.Set(i, a.At(i)+alpha*(b.At(i)-a.At(i)))
	}
	return out
}

// attenuation implements the Attenuation helper.
func (s *Solver) attenuation(x, xPrev *linalg.Vector[float64]) *linalg.Vector[float64] {
	delta := x.Sub(xPrev)
	nMax := delta.NormInf()
	if nMax == 0 {
		return x
	}
	alpha := 1.0 / nMax
	if alpha < 0.1 {
		alpha = 0.1
	}
	if alpha > 0.9 {
		alpha = 0.9
	}
	out := linalg.NewVector[float64](x.Len())
	for i := 0; i < x.Len(); i++ {
		out.Set(i, xPrev.At(i)+alpha*delta.At(i))
	}
	return out
}

// residualNormAt writes x back into devices, recomputes stamps, and
// returns the resulting z's norm — used by LineSearch/SteepestDescent
// to probe trial points: each probe re-runs calc_dc and create_z at
// the trial x.
func (s *Solver) residualNormAt(x *linalg.Vector[float64]) float64 {
	s.Asm.WriteBack(x)
	if err := s.Asm.Calc(s.Status); err != nil {
		return math.Inf(1)
	}
	_, z := s.Asm.Assemble()
	return z.Norm2()
}

// lineSearch implements the LineSearch helper: bisect-with-
// direction over alpha in [0,1] starting at 0.5/step 0.5.
func (s *Solver) lineSearch(xPrev, xNew *linalg.Vector[float64]) *linalg.Vector[float64] {
	alpha := 0.5
	step := 0.5
	prevAlpha := -1.0

	clamp := func(a float64) float64 {
		if a < 0 {
			return 0
		}
		if a > 1 {
			return 1
		}
		return a
	}

	for math.Abs(alpha-prevAlpha) >= 0.005 {
		prevAlpha = alpha
		step /= 2
		left := clamp(alpha - step)
		right := clamp(alpha + step)
		nl := s.residualNormAt(interp(xPrev, xNew, left))
		nr := s.residualNormAt(interp(xPrev, xNew, right))
		if nl < nr {
			alpha = left
		} else {
			alpha = right
		}
		if step < 1e-6 {
			break
		}
	}
	return interp(xPrev, xNew, alpha)
}

// steepestDescent implements the SteepestDescent helper.
func (s *Solver) steepestDescent(xNew, xPrev, zPrev *linalg.Vector[float64]) *linalg.Vector[float64] {
	zPrevNorm := 0.0
	if zPrev != nil {
		zPrevNorm = zPrev.Norm2()
	}
	alpha := 1.0
	for alpha >= 0.001 {
		trial := interp(xPrev, xNew, alpha)
		if s.residualNormAt(trial) < zPrevNorm {
			return trial
		}
		alpha *= 0.7
	}
	return xPrev
}

// gminStepping implements the GMinStepping outer
// continuation.
func (s *Solver) gminStepping() (*linalg.Vector[float64], error) {
	gMin := 0.01
	delta := gMin / 100

	var x *linalg.Vector[float64]
	var lastErr error

	for {
		s.Status.Gmin = gMin
		xi, err := s.innerNewton(HelperNone)
		if err == nil {
			x = xi
			if gMin == 0 {
				return x, nil
			}
			gMin -= delta
			if gMin < 0 {
				gMin = 0
			}
			delta *= 2
		} else {
			lastErr = err
			delta /= 2
			if delta < 2.220446049250313e-16 {
				s.Errs.Push(errstack.NoConvergence, nil, "gmin stepping: delta underflow at gMin=%g", gMin)
				return nil, lastErr
			}
		}
	}
}

// sourceStepping implements the SourceStepping outer
// continuation. On a hard error (innerNewton fails to converge at the
// trial srcFactor), the last converged x is written back into the
// devices before retrying, and the step is cut by 0.1 rather than
// 0.5 so the next trial point backs away from the failure quickly.
func (s *Solver) sourceStepping() (*linalg.Vector[float64], error) {
	sources := s.scalableSources()

	srcFactor := 0.01
	step := 0.01
	var x *linalg.Vector[float64]
	var lastGoodFactor float64
	var lastErr error

	setScale := func(f float64) {
		for _, sc := range sources {
			sc.SetScale(f)
		}
	}

	for {
		setScale(srcFactor)
		xi, err := s.innerNewton(HelperNone)
		if err == nil {
			x = xi
			lastGoodFactor = srcFactor
			if srcFactor >= 1 {
				setScale(1)
				return x, nil
			}
			srcFactor += step
			if srcFactor > 1 {
				srcFactor = 1
			}
			step *= 1.5
		} else {
			lastErr = err
			if x != nil {
				s.Asm.WriteBack(x)
			}
			step *= 0.1
			if step < 2.220446049250313e-16 {
				setScale(1)
				s.Errs.Push(errstack.NoConvergence, nil, "source stepping: step underflow at srcFactor=%g", srcFactor)
				return nil, lastErr
			}
			srcFactor = lastGoodFactor + step
			if srcFactor > 1 {
				srcFactor = 1
			}
		}
	}
}

func (s *Solver) scalableSources() []Scalable {
	var out []Scalable
	for _, d := range s.Topo.Devices() {
		if sc, ok := d.(Scalable); ok {
			out = append(out, sc)
		}
	}
	return out
}
