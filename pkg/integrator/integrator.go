// Package integrator implements multistep corrector and predictor
// coefficient derivation, order tracking, and the capacitor/inductor
// companion-model helpers reactive devices consume when stamping.
// Grounded on the teacher's pkg/util/integrator.go (which only covered
// fixed-step Backward Euler/Trapezoidal); generalized here to the full
// BDF/Adams family over variable step via a Vandermonde-over-Δt-ratios
// derivation.
package integrator

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-spice/pkg/errstack"
	"github.com/edp1096/toy-spice/pkg/history"
	"github.com/edp1096/toy-spice/pkg/linalg"
)

// Method is a corrector family.
type Method int

const (
	BackwardEuler Method = iota
	Trapezoidal
	Gear
	AdamsMoulton
)

// Predictor is a predictor family, paired with a Method: Trapezoidal
// and Adams-Moulton pair with Adams-Bashforth, Gear pairs with
// explicit Gear, and Backward Euler pairs with Forward Euler.
type Predictor int

const (
	ForwardEuler Predictor = iota
	AdamsBashforth
	ExplicitGear
)

// PredictorFor returns the predictor paired with a corrector method.
func PredictorFor(m Method) Predictor {
	switch m {
	case BackwardEuler:
		return ForwardEuler
	case Gear:
		return ExplicitGear
	default:
		return AdamsBashforth
	}
}

// Coeffs is the derived coefficient set {beta0, alpha_1..alpha_p}:
// beta0 multiplies the unknown (n+1) sample, alphas[k-1] multiplies
// the sample k steps into the past.
type Coeffs struct {
	Method Method
	Order  int
	Beta0  float64
	Alphas []float64 // length Order
}

// gearErrorConstants are C_c for Gear orders 1..6.
var gearErrorConstants = [6]float64{-1.0 / 2, -2.0 / 9, -3.0 / 22, -12.0 / 125, -10.0 / 137, -20.0 / 343}

// moultonErrorConstants are C_c for Adams-Moulton orders 1..6.
var moultonErrorConstants = [6]float64{-1.0 / 2, -1.0 / 12, -1.0 / 24, -19.0 / 720, -3.0 / 160, -863.0 / 60480}

// trapEulerErrorConstants: Trapezoidal is fixed order 2 but uses a
// 2-entry table {-1/2, -1/12}; index 0 covers the transient
// order-1 startup step (effectively Euler), index 1 the steady order-2
// behavior.
var trapEulerErrorConstants = [2]float64{-1.0 / 2, -1.0 / 12}

const eulerErrorConstant = -1.0 / 2

// ErrorConstants returns (C_c, C_p) for a method/order, used by the
// LTE step-size formula. C_p is the constant of the paired predictor:
// for Adams-Bashforth (paired with Trapezoidal and Adams-Moulton) it is
// the Moulton constant of the same order with its sign flipped, for
// Forward Euler it is 1/2, and for explicit Gear it is -1/(p+2).
func ErrorConstants(m Method, order int) (cc, cp float64) {
	switch m {
	case BackwardEuler:
		return eulerErrorConstant, 0.5
	case Trapezoidal:
		idx := order - 1
		if idx < 0 {
			idx = 0
		}
		if idx > 1 {
			idx = 1
		}
		return trapEulerErrorConstants[idx], -trapEulerErrorConstants[idx]
	case Gear:
		idx := clampOrder(order) - 1
		cc = gearErrorConstants[idx]
		cp = -1.0 / float64(order+2)
		return cc, cp
	case AdamsMoulton:
		idx := clampOrder(order) - 1
		cc = moultonErrorConstants[idx]
		cp = -cc
		return cc, cp
	}
	return -0.5, -0.5
}

func clampOrder(order int) int {
	if order < 1 {
		return 1
	}
	if order > 6 {
		return 6
	}
	return order
}

// DeriveCorrector computes the corrector coefficients for method/order
// given the ring of past step sizes (dts[0] is the step about to be
// taken, dts[1] the previous accepted step, etc.). Trapezoidal and
// Backward Euler use closed forms directly; Gear uses the general
// variable-step Vandermonde/e1 derivation; Adams-Moulton uses the
// classical fixed-step table, treating recomputation each step as
// cheap enough to redo unconditionally rather than deriving an exact
// variable-step Adams coefficient set.
func DeriveCorrector(method Method, order int, dts []float64, errs *errstack.Stack) (Coeffs, error) {
	order = clampOrder(order)
	dt := dts[0]
	if dt <= 0 {
		return Coeffs{}, fmt.Errorf("integrator: non-positive step %g", dt)
	}

	switch method {
	case BackwardEuler:
		return Coeffs{Method: method, Order: 1, Beta0: 1 / dt, Alphas: []float64{-1 / dt}}, nil
	case Trapezoidal:
		if order <= 1 {
			return Coeffs{Method: BackwardEuler, Order: 1, Beta0: 1 / dt, Alphas: []float64{-1 / dt}}, nil
		}
		return Coeffs{Method: method, Order: 2, Beta0: 2 / dt, Alphas: []float64{-2 / dt}}, nil
	case Gear:
		return vandermondeDerivative(order, dts, errs)
	case AdamsMoulton:
		return adamsMoultonFixed(order, dt), nil
	default:
		return Coeffs{}, fmt.Errorf("integrator: unknown method %d", method)
	}
}

// DerivePredictor computes the extrapolation weights used to predict
// x(t_{n+1}) from the solution ring, paired per PredictorFor. All
// three predictor families are unified to direct polynomial
// extrapolation over the solution ring (vandermondeExtrapolate):
// Forward Euler is the order-1 case, Adams-Bashforth and explicit Gear
// the higher-order cases, which sidesteps carrying a second,
// derivative-history-based predictor representation alongside the
// corrector's companion-model one.
func DerivePredictor(pred Predictor, order int, dts []float64, errs *errstack.Stack) (Coeffs, error) {
	switch pred {
	case ForwardEuler:
		return vandermondeExtrapolate(1, dts, errs)
	case ExplicitGear, AdamsBashforth:
		return vandermondeExtrapolate(order, dts, errs)
	default:
		return Coeffs{}, fmt.Errorf("integrator: unknown predictor %d", pred)
	}
}

// vandermondeDerivative solves the "(p+1)x(p+1)
// Vandermonde-like system over the ratios of past Δt values, RHS e1"
// to get BDF coefficients {gamma_0..gamma_p} such that
// sum_k gamma_k * x(tau_k) approximates dx/dt at tau_0=0, where tau_k
// is the time of sample k steps into the past relative to t_{n+1}.
// gamma_0 becomes Beta0, gamma_{1..p} become Alphas (matching the
// capacitor-companion formula q_dot = Beta0*q_{n+1} + sum alpha_k q_{n+1-k}).
func vandermondeDerivative(order int, dts []float64, errs *errstack.Stack) (Coeffs, error) {
	p := order
	if len(dts) < p {
		p = len(dts)
		if p < 1 {
			p = 1
		}
	}

	taus := make([]float64, p+1)
	taus[0] = 0
	acc := 0.0
	for k := 1; k <= p; k++ {
		acc += dts[k-1]
		taus[k] = -acc
	}

	n := p + 1
	a := linalg.NewMatrix[float64](n, n)
	for row := 0; row < n; row++ { // row = power m
		for col := 0; col < n; col++ { // col = sample k
			a.Set(row, col, ipow(taus[col], row))
		}
	}
	z := linalg.NewVector[float64](n)
	if n > 1 {
		z.Set(1, 1)
	} else {
		z.Set(0, 0)
	}

	x, err := linalg.Solve(a, z, linalg.CroutLU, errs)
	if err != nil {
		return Coeffs{}, fmt.Errorf("integrator: deriving Gear coefficients: %w", err)
	}

	return Coeffs{Method: Gear, Order: p, Beta0: x.At(0), Alphas: x.Data()[1:]}, nil
}

// vandermondeExtrapolate derives explicit-Gear predictor weights: fit
// a degree-p polynomial through the p+1 most recent accepted samples
// and evaluate it one step beyond the newest sample. Times are
// measured in units of dts[0], so the system stays well conditioned
// however small the step is; the weights do not depend on that scale.
func vandermondeExtrapolate(order int, dts []float64, errs *errstack.Stack) (Coeffs, error) {
	p := order
	if len(dts) < p+1 {
		p = len(dts) - 1
		if p < 1 {
			p = 1
		}
	}

	taus := make([]float64, p+1)
	taus[0] = 0
	acc := 0.0
	for k := 1; k <= p; k++ {
		acc += dts[k]
		taus[k] = -acc / dts[0]
	}

	n := p + 1
	a := linalg.NewMatrix[float64](n, n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			a.Set(row, col, ipow(taus[col], row))
		}
	}
	target := 1.0
	z := linalg.NewVector[float64](n)
	for row := 0; row < n; row++ {
		z.Set(row, ipow(target, row))
	}

	x, err := linalg.Solve(a, z, linalg.CroutLU, errs)
	if err != nil {
		return Coeffs{}, fmt.Errorf("integrator: deriving explicit-Gear predictor: %w", err)
	}
	return Coeffs{Method: Method(ExplicitGear), Order: p, Beta0: 0, Alphas: x.Data()}, nil
}

func ipow(x float64, n int) float64 {
	if n == 0 {
		return 1
	}
	return math.Pow(x, float64(n))
}

// amMoultonWeights are the classical uniform-step Adams-Moulton
// integration weights b_0..b_{order-1} for x_{n+1} = x_n + dt*sum(b_k f_{n+1-k}).
var amMoultonWeights = [6][]float64{
	{1},
	{0.5, 0.5},
	{5.0 / 12, 8.0 / 12, -1.0 / 12},
	{9.0 / 24, 19.0 / 24, -5.0 / 24, 1.0 / 24},
	{251.0 / 720, 646.0 / 720, -264.0 / 720, 106.0 / 720, -19.0 / 720},
	{475.0 / 1440, 1427.0 / 1440, -798.0 / 1440, 482.0 / 1440, -173.0 / 1440, 27.0 / 1440},
}

// adamsMoultonFixed expresses x_{n+1} = x_n + dt*b0*f_{n+1} + dt*sum_{k>=1} b_k f_{n+1-k}
// as a companion-style Beta0/Alphas pair consistent with the capacitor
// formula q_dot = Beta0*q_{n+1} + sum alpha_k q_{n+1-k}: differentiate
// the integration equation to recover an equivalent backward-difference
// form at uniform step.
func adamsMoultonFixed(order int, dt float64) Coeffs {
	order = clampOrder(order)
	w := amMoultonWeights[order-1]
	beta0 := 1.0 / (w[0] * dt)
	alphas := make([]float64, order)
	alphas[0] = -1.0 / (w[0] * dt)
	for k := 1; k < order; k++ {
		alphas[k] = -w[k] / w[0] / dt
	}
	return Coeffs{Method: AdamsMoulton, Order: order, Beta0: beta0, Alphas: alphas}
}

// CapacitorCompanion implements the companion model
// for a capacitor of value C: g_eq = C*beta0, and i_eq per method
// family (Trapezoidal keeps the explicit previous-current term;
// Gear/Moulton sum weighted charge history).
func CapacitorCompanion(c Coeffs, capacitance float64, qHist, iHist *history.Ring) (geq, ieq float64) {
	geq = capacitance * c.Beta0

	switch c.Method {
	case Trapezoidal:
		qn, _ := qHist.At(0)
		in, _ := iHist.At(0)
		ieq = c.Alphas[0]*qn - in
	case BackwardEuler:
		qn, _ := qHist.At(0)
		ieq = c.Alphas[0] * qn
	default: // Gear, AdamsMoulton
		for k := 1; k <= c.Order; k++ {
			q, ok := qHist.At(k - 1)
			if !ok {
				continue
			}
			ieq += c.Alphas[k-1] * q
		}
	}
	return geq, ieq
}

// InductorCompanion is the dual formulation on (phi, v): an inductor
// of value L couples flux phi=L*i to branch voltage the same way a
// capacitor couples charge q=C*v to node current.
func InductorCompanion(c Coeffs, inductance float64, phiHist, vHist *history.Ring) (req, veq float64) {
	req = inductance * c.Beta0

	switch c.Method {
	case Trapezoidal:
		phiN, _ := phiHist.At(0)
		vN, _ := vHist.At(0)
		veq = c.Alphas[0]*phiN - vN
	case BackwardEuler:
		phiN, _ := phiHist.At(0)
		veq = c.Alphas[0] * phiN
	default:
		for k := 1; k <= c.Order; k++ {
			phi, ok := phiHist.At(k - 1)
			if !ok {
				continue
			}
			veq += c.Alphas[k-1] * phi
		}
	}
	return req, veq
}
