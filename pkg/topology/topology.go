// Package topology assigns node indices and voltage-source rows to
// MNA positions. Grounded on the teacher's
// pkg/circuit/circuit.go node-numbering pass (AddNode/nodeMap), but
// decoupled from matrix construction so it can be shared by DC,
// transient, and AC assembly.
package topology

import "github.com/edp1096/toy-spice/pkg/device"

// Port identifies one (device, local port index) attachment to a node.
type Port struct {
	Device device.Device
	Index  int
}

// Node is a non-reference node of the circuit graph.
type Node struct {
	Index    int
	Name     string
	Internal bool
	Ports    []Port
}

// Topology holds the node table and voltage-source row assignment for
// one circuit: N non-reference nodes (1..N, 0 is ground) and M
// voltage-source rows (N..N+M-1).
type Topology struct {
	nodeIndex map[string]int
	nodes     []*Node // nodes[0] unused; nodes[i] is node i

	devices []device.Device
	vsBase  map[device.Device]int
	vsCount int
}

// New builds a Topology from devices in netlist order, each device
// declaring its ports via nodeNames (len == device.PortCount()) and
// internal nodes created fresh via InternalNode when needed.
func New() *Topology {
	return &Topology{
		nodeIndex: map[string]int{"gnd": 0},
		nodes:     []*Node{nil},
		vsBase:    map[device.Device]int{},
	}
}

// NodeID returns the index for name, allocating a new non-reference
// node if this is the first time name is seen.
func (t *Topology) NodeID(name string) int {
	if name == "" || name == "gnd" || name == "0" {
		return 0
	}
	if idx, ok := t.nodeIndex[name]; ok {
		return idx
	}
	idx := len(t.nodes)
	t.nodeIndex[name] = idx
	t.nodes = append(t.nodes, &Node{Index: idx, Name: name})
	return idx
}

// InternalNode allocates a fresh node with a generated unique name,
// for devices exposing intermediate state.
func (t *Topology) InternalNode(deviceName, suffix string) int {
	name := deviceName + "#" + suffix
	return t.NodeID(name)
}

// AddDevice registers a device's node attachments (nodeNames, one per
// port) and reserves its voltage-source rows.
func (t *Topology) AddDevice(d device.Device, nodeNames []string) {
	t.devices = append(t.devices, d)
	for portIdx, name := range nodeNames {
		id := t.NodeID(name)
		if id != 0 {
			t.nodes[id].Ports = append(t.nodes[id].Ports, Port{Device: d, Index: portIdx})
		}
	}
	if n := d.VSourceCount(); n > 0 {
		t.vsBase[d] = t.vsCount
		t.vsCount += n
	}
}

// NodeNames returns every non-reference node's name mapped to its
// index, for result reporting.
func (t *Topology) NodeNames() map[string]int {
	out := make(map[string]int, len(t.nodeIndex))
	for name, id := range t.nodeIndex {
		if id == 0 {
			continue
		}
		out[name] = id
	}
	return out
}

// NumNodes returns N, the count of non-reference nodes.
func (t *Topology) NumNodes() int { return len(t.nodes) - 1 }

// NumVSourceRows returns M, the total voltage-source-row count.
func (t *Topology) NumVSourceRows() int { return t.vsCount }

// Size is N+M, the MNA system dimension.
func (t *Topology) Size() int { return t.NumNodes() + t.NumVSourceRows() }

// VSourceBase returns the first MNA row (0-based, within the M block)
// assigned to d's voltage-source rows.
func (t *Topology) VSourceBase(d device.Device) int { return t.vsBase[d] }

// Devices returns all registered devices in netlist order.
func (t *Topology) Devices() []device.Device { return t.devices }

// DeviceNodeIDs returns the node indices a device is attached to, in
// port order — used by the assembler to translate local stamp indices
// to global MNA rows/columns.
type Attachment struct {
	Device  device.Device
	NodeIDs []int
	VSBase  int
}

// Attachments re-derives the per-device (node IDs, vsource base)
// needed by the assembler, by walking the node table's port lists.
func (t *Topology) Attachments() []Attachment {
	nodeIDs := make(map[device.Device][]int, len(t.devices))
	for _, d := range t.devices {
		nodeIDs[d] = make([]int, d.PortCount())
	}
	for nodeIdx, n := range t.nodes {
		if n == nil {
			continue
		}
		for _, p := range n.Ports {
			nodeIDs[p.Device][p.Index] = nodeIdx
		}
	}
	out := make([]Attachment, len(t.devices))
	for i, d := range t.devices {
		out[i] = Attachment{Device: d, NodeIDs: nodeIDs[d], VSBase: t.vsBase[d]}
	}
	return out
}
