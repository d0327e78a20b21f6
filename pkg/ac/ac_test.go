package ac

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-spice/internal/consts"
	"github.com/edp1096/toy-spice/pkg/circuit"
	"github.com/edp1096/toy-spice/pkg/netlist"
)

func TestFrequencyPointsLinearAndDecade(t *testing.T) {
	lin := frequencyPoints(Linear, 3, 10, 30)
	require.Len(t, lin, 3)
	assert.InDelta(t, 10.0, lin[0], 1e-9)
	assert.InDelta(t, 20.0, lin[1], 1e-9)
	assert.InDelta(t, 30.0, lin[2], 1e-9)

	dec := frequencyPoints(Decade, 3, 1, 100)
	require.Len(t, dec, 3)
	assert.InDelta(t, 1.0, dec[0], 1e-9)
	assert.InDelta(t, 10.0, dec[1], 1e-6)
	assert.InDelta(t, 100.0, dec[2], 1e-6)
}

func buildNoisyResistor(t *testing.T) *circuit.Circuit {
	t.Helper()
	const r = 1000.0
	elements := []netlist.Element{
		{Type: "I", Name: "I1", Nodes: []string{"1", "0"}, Value: 1e-3, Params: map[string]string{"type": "dc"}},
		{Type: "R", Name: "R1", Nodes: []string{"1", "0"}, Value: r},
		{Type: "P", Name: "PR1", Nodes: []string{"1", "0"}},
	}
	ckt, err := circuit.Build("noisy resistor", elements)
	require.NoError(t, err)
	return ckt
}

// TestResistorThermalNoiseMatchesJohnsonNyquist builds a single
// grounded resistor biased by a DC current source (infinite source
// impedance, so it doesn't short out the resistor's own noise the way
// an ideal voltage source across the same two nodes would) and checks
// the reported output noise against the closed-form v_n = sqrt(4 k_B
// T R) the adjoint computation should reduce to for this topology, at
// the analysis's configured temperature.
func TestResistorThermalNoiseMatchesJohnsonNyquist(t *testing.T) {
	const r = 1000.0
	const temp = 290.0
	ckt := buildNoisyResistor(t)

	sweep := NewAC(ckt, Linear, 1, 1000, 1000, true, temp)
	require.NoError(t, sweep.Execute())

	results := sweep.Results()
	mag := results["VN(PR1)_MAG"]
	require.Len(t, mag, 1)
	assert.False(t, math.IsNaN(mag[0]) || math.IsInf(mag[0], 0))
	assert.Greater(t, mag[0], 0.0)

	expected := math.Sqrt(4 * consts.BOLTZMANN * temp * r)
	assert.InDelta(t, expected, mag[0], expected*0.05)
}

// TestResistorThermalNoiseScalesWithTemperature checks that doubling
// the analysis temperature doubles the reported noise power (v_n^2),
// i.e. v_n scales with sqrt(T).
func TestResistorThermalNoiseScalesWithTemperature(t *testing.T) {
	ckt1 := buildNoisyResistor(t)
	sweep1 := NewAC(ckt1, Linear, 1, 1000, 1000, true, 290.0)
	require.NoError(t, sweep1.Execute())
	v1 := sweep1.Results()["VN(PR1)_MAG"][0]

	ckt2 := buildNoisyResistor(t)
	sweep2 := NewAC(ckt2, Linear, 1, 1000, 1000, true, 580.0)
	require.NoError(t, sweep2.Execute())
	v2 := sweep2.Results()["VN(PR1)_MAG"][0]

	ratio := (v2 * v2) / (v1 * v1)
	assert.InDelta(t, 2.0, ratio, 0.05)
}
