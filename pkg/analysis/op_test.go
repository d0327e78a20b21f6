package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-spice/pkg/circuit"
	"github.com/edp1096/toy-spice/pkg/netlist"
)

func buildVoltageDivider(t *testing.T) *circuit.Circuit {
	t.Helper()
	elements := []netlist.Element{
		{Type: "V", Name: "V1", Nodes: []string{"1", "0"}, Value: 10, Params: map[string]string{"type": "dc"}},
		{Type: "R", Name: "R1", Nodes: []string{"1", "2"}, Value: 1000},
		{Type: "R", Name: "R2", Nodes: []string{"2", "0"}, Value: 1000},
	}
	ckt, err := circuit.Build("divider", elements)
	require.NoError(t, err)
	return ckt
}

func TestOperatingPointVoltageDivider(t *testing.T) {
	ckt := buildVoltageDivider(t)

	op := NewOP(ckt)
	require.NoError(t, op.Execute())

	results := op.Results()
	assert.InDelta(t, 10.0, results["V(1)"][0], 1e-9)
	assert.InDelta(t, 5.0, results["V(2)"][0], 1e-9)
	assert.InDelta(t, 0.005, math.Abs(results["I(V1)"][0]), 1e-9, "branch current magnitude follows from (V1-V2)/R1")
}
