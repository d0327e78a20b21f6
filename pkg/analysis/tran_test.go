package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-spice/pkg/circuit"
	"github.com/edp1096/toy-spice/pkg/netlist"
	"github.com/edp1096/toy-spice/pkg/transient"
)

// TestTransientRCStepResponse checks the charging curve of a simple RC
// low-pass against its closed-form V(t) = Vdc*(1-exp(-t/RC)).
func TestTransientRCStepResponse(t *testing.T) {
	const r, c, vdc = 1000.0, 1e-6, 5.0
	tau := r * c

	elements := []netlist.Element{
		{Type: "V", Name: "V1", Nodes: []string{"1", "0"}, Value: vdc, Params: map[string]string{"type": "dc"}},
		{Type: "R", Name: "R1", Nodes: []string{"1", "2"}, Value: r},
		{Type: "C", Name: "C1", Nodes: []string{"2", "0"}, Value: c},
	}
	ckt, err := circuit.Build("rc", elements)
	require.NoError(t, err)

	tstop := 5 * tau
	tstep := tau / 50
	cfg := transient.DefaultConfig(tstop, tstep)
	cfg.InitialDC = false // start from an uncharged capacitor

	tr := NewTransient(ckt, cfg, 0)
	require.NoError(t, tr.Execute())

	results := tr.Results()
	times := results["TIME"]
	voltages := results["V(2)"]
	require.NotEmpty(t, times)

	for i, tVal := range times {
		want := vdc * (1 - math.Exp(-tVal/tau))
		assert.InDelta(t, want, voltages[i], 0.05*vdc, "t=%g", tVal)
	}

	last := voltages[len(voltages)-1]
	assert.InDelta(t, vdc, last, 0.05*vdc, "should have settled near Vdc after 5 tau")
}
