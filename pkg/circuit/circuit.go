// Package circuit builds a topology.Topology plus device list from a
// parsed netlist and reports named node-voltage/branch-current results
// back out of a solved MNA vector. Grounded on the teacher's
// pkg/circuit/circuit.go (AssignNodeBranchMaps/SetupDevices/
// GetSolution), re-expressed over the topology/mna split instead of a
// single sparse-matrix-backed struct.
package circuit

import (
	"fmt"

	"github.com/edp1096/toy-spice/pkg/device"
	"github.com/edp1096/toy-spice/pkg/linalg"
	"github.com/edp1096/toy-spice/pkg/netlist"
	"github.com/edp1096/toy-spice/pkg/topology"
)

// Circuit is a built netlist: the node/vsource layout (Topology) plus
// the devices by name, resolved node names for resistor V=IR current
// reporting, and probe devices for AC-noise reporting.
type Circuit struct {
	Name string

	Topo *topology.Topology

	byName     map[string]device.Device
	rNodes     map[string][2]int // resistor name -> (nodeA, nodeB) for V=IR
	probes     []*device.Probe
	probeNodes map[*device.Probe][2]int // probe -> (nodeA, nodeB), for the noise analysis's adjoint excitation
}

// Build constructs a Circuit from a parsed netlist, creating one
// device per element via netlist.CreateDevice and registering it with
// a fresh Topology.
func Build(name string, elements []netlist.Element) (*Circuit, error) {
	topo := topology.New()
	c := &Circuit{
		Name:       name,
		Topo:       topo,
		byName:     map[string]device.Device{},
		rNodes:     map[string][2]int{},
		probeNodes: map[*device.Probe][2]int{},
	}

	for _, elem := range elements {
		dev, nodeNames, err := netlist.CreateDevice(elem)
		if err != nil {
			return nil, fmt.Errorf("creating device %s: %w", elem.Name, err)
		}
		topo.AddDevice(dev, nodeNames)
		c.byName[elem.Name] = dev

		if elem.Type == "R" {
			a := topo.NodeID(nodeNames[0])
			b := topo.NodeID(nodeNames[1])
			c.rNodes[elem.Name] = [2]int{a, b}
		}
		if p, ok := dev.(*device.Probe); ok {
			c.probes = append(c.probes, p)
			a := topo.NodeID(nodeNames[0])
			b := topo.NodeID(nodeNames[1])
			c.probeNodes[p] = [2]int{a, b}
		}
	}

	return c, nil
}

// Devices returns every registered device in netlist order.
func (c *Circuit) Devices() []device.Device { return c.Topo.Devices() }

// Device looks up a device by its netlist name.
func (c *Circuit) Device(name string) (device.Device, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Probes returns the probe devices flagged in the netlist, used by
// the AC-noise analysis to report RMS results.
func (c *Circuit) Probes() []*device.Probe { return c.probes }

// ProbeNodes returns the (nodeA, nodeB) node IDs a probe is attached
// to, for the noise analysis's adjoint excitation vector.
func (c *Circuit) ProbeNodes(p *device.Probe) (int, int) {
	ids := c.probeNodes[p]
	return ids[0], ids[1]
}

// InitDC/InitTR/InitAC/InitNoiseAC run every device's lifecycle hook,
// mirroring the teacher's per-device Init pass before the first solve
// of each analysis type.
func (c *Circuit) InitDC() {
	for _, d := range c.Topo.Devices() {
		d.InitDC()
	}
}

func (c *Circuit) InitTR() {
	for _, d := range c.Topo.Devices() {
		d.InitTR()
	}
}

func (c *Circuit) InitAC() {
	for _, d := range c.Topo.Devices() {
		d.InitAC()
	}
}

func (c *Circuit) InitNoiseAC() {
	for _, d := range c.Topo.Devices() {
		d.InitNoiseAC()
	}
}

// AppendHistory snapshots every device's just-written-back port
// voltages and branch currents into its history rings, stamping t as
// the sample time — called once per accepted transient step so
// delay-style lookups (VAt/JAt) see consistent past data.
func (c *Circuit) AppendHistory(t float64) {
	for _, d := range c.Topo.Devices() {
		for p := 0; p < d.PortCount(); p++ {
			d.AppendHistory(p, real(d.V(p)), t)
		}
		for vs := 0; vs < d.VSourceCount(); vs++ {
			d.AppendHistory(d.PortCount()+vs, real(d.J(vs)), t)
		}
	}
}

// GetSolution reports named node voltages V(name) and device branch
// currents I(name) from a solved real vector x, following the
// teacher's V(...)/I(...) naming convention.
func (c *Circuit) GetSolution(x *linalg.Vector[float64]) map[string]float64 {
	out := make(map[string]float64)
	n := c.Topo.NumNodes()

	voltageAt := func(nodeID int) float64 {
		if nodeID == 0 {
			return 0
		}
		return x.At(nodeID - 1)
	}

	for name, id := range c.Topo.NodeNames() {
		out[fmt.Sprintf("V(%s)", name)] = voltageAt(id)
	}

	for name, dev := range c.byName {
		base := n + c.Topo.VSourceBase(dev)
		for vs := 0; vs < dev.VSourceCount(); vs++ {
			out[fmt.Sprintf("I(%s)", name)] = x.At(base + vs)
		}
	}

	for name, nodes := range c.rNodes {
		r, ok := c.byName[name].(interface{ Conductance() float64 })
		if !ok {
			continue
		}
		v1, v2 := voltageAt(nodes[0]), voltageAt(nodes[1])
		out[fmt.Sprintf("I(%s)", name)] = (v1 - v2) * r.Conductance()
	}

	return out
}

// GetSolutionComplex is GetSolution's AC counterpart, over a solved
// complex128 MNA vector.
func (c *Circuit) GetSolutionComplex(x *linalg.Vector[complex128]) map[string]complex128 {
	out := make(map[string]complex128)
	n := c.Topo.NumNodes()

	voltageAt := func(nodeID int) complex128 {
		if nodeID == 0 {
			return 0
		}
		return x.At(nodeID - 1)
	}

	for name, id := range c.Topo.NodeNames() {
		out[fmt.Sprintf("V(%s)", name)] = voltageAt(id)
	}

	for name, dev := range c.byName {
		base := n + c.Topo.VSourceBase(dev)
		for vs := 0; vs < dev.VSourceCount(); vs++ {
			out[fmt.Sprintf("I(%s)", name)] = x.At(base + vs)
		}
	}

	for name, nodes := range c.rNodes {
		r, ok := c.byName[name].(interface{ Conductance() float64 })
		if !ok {
			continue
		}
		v1, v2 := voltageAt(nodes[0]), voltageAt(nodes[1])
		out[fmt.Sprintf("I(%s)", name)] = (v1 - v2) * complex(r.Conductance(), 0)
	}

	return out
}
