// Package analysis implements the real-valued top-level analyses
// (operating point, DC sweep, transient; AC small-signal and AC noise
// live in package ac) over a built circuit.Circuit, each wrapping the
// shared nr/transient/mna
// machinery and reporting results through the teacher's
// pkg/analysis/anlysis.go V(...)/I(...) naming and time-dedup
// conventions.
package analysis

import (
	"math"
	"math/cmplx"

	"github.com/edp1096/toy-spice/internal/consts"
	"github.com/edp1096/toy-spice/pkg/util"
)

// Kind identifies the analysis a netlist's control line requested.
type Kind int

const (
	OP Kind = iota
	DC
	TRAN
	AC
)

// Analysis is implemented by every concrete analysis type.
type Analysis interface {
	Execute() error
	Results() map[string][]float64
}

// baseResults is the shared result-table bookkeeping: one named
// series per reported quantity, keyed the same way across analyses so
// a downstream reporter/plotter doesn't need to special-case the kind.
type baseResults struct {
	data map[string][]float64

	maxIter int
	absTol  float64
	relTol  float64
	gMin    float64
}

func newBaseResults() baseResults {
	return baseResults{
		data:    make(map[string][]float64),
		maxIter: consts.DefaultMaxIter,
		absTol:  consts.DefaultAbsTol,
		relTol:  consts.DefaultRelTol,
		gMin:    1e-12,
	}
}

func (b *baseResults) Results() map[string][]float64 { return b.data }

// storeTime appends one (time, solution) sample, deduping an identical
// reported timestamp the way the teacher's StoreTimeResult does (two
// breakpoint-adjacent steps can otherwise land on the same rounded
// time and double the row).
func (b *baseResults) storeTime(t float64, solution map[string]float64) {
	if ts := b.data["TIME"]; len(ts) > 0 {
		last := ts[len(ts)-1]
		if t == last || util.FormatValueFactor(t, "s") == util.FormatValueFactor(last, "s") {
			return
		}
	}
	b.data["TIME"] = append(b.data["TIME"], t)
	for name, v := range solution {
		b.data[name] = append(b.data[name], v)
	}
}

// storeSweep appends one DC-sweep sample under the given independent
// variable name (SWEEP1, SWEEP2, ...).
func (b *baseResults) storeSweep(varName string, val float64, solution map[string]float64) {
	b.data[varName] = append(b.data[varName], val)
	for name, v := range solution {
		b.data[name] = append(b.data[name], v)
	}
}

// storeAC appends one frequency-domain sample, splitting each complex
// quantity into magnitude/phase series.
func (b *baseResults) storeAC(freq float64, solution map[string]complex128) {
	b.data["FREQ"] = append(b.data["FREQ"], freq)
	for name, v := range solution {
		b.data[name+"_MAG"] = append(b.data[name+"_MAG"], cmplx.Abs(v))
		b.data[name+"_PHASE"] = append(b.data[name+"_PHASE"], cmplx.Phase(v)*180.0/math.Pi)
	}
}
