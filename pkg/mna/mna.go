// Package mna builds the MNA system A = [[G,B],[C,D]], z = [i,e] (and,
// for noise analysis, the correlation matrix C_y) from device stamps,
// over a node/vsource layout fixed by package topology. Grounded on
// the teacher's pkg/matrix assembly pass, generalized to a
// Scalar-generic real/complex split — the only difference between the
// DC/TR and AC code paths is whether T is float64 or complex128.
package mna

import (
	"github.com/edp1096/toy-spice/pkg/device"
	"github.com/edp1096/toy-spice/pkg/linalg"
	"github.com/edp1096/toy-spice/pkg/topology"
)

// Assembler builds the MNA system for one Topology over scalar type T
// (float64 for DC/TR, complex128 for AC/noise).
type Assembler[T linalg.Scalar] struct {
	topo  *topology.Topology
	attch []topology.Attachment
}

func New[T linalg.Scalar](topo *topology.Topology) *Assembler[T] {
	return &Assembler[T]{topo: topo, attch: topo.Attachments()}
}

func convert[T linalg.Scalar](c complex128) T {
	var zero T
	if _, ok := any(zero).(complex128); ok {
		return any(c).(T)
	}
	return any(real(c)).(T)
}

// Calc invokes the per-device recompute hook matching status.Mode,
// refreshing each device's internal Y/B/C/D/I/E state before Assemble
// reads it.
func (a *Assembler[T]) Calc(status *device.Status) error {
	for _, at := range a.attch {
		d := at.Device
		var err error
		switch status.Mode {
		case device.ModeDC:
			err = d.CalcDC(status)
		case device.ModeTransient:
			err = d.CalcTR(status)
		case device.ModeAC:
			err = d.CalcAC(status)
		case device.ModeNoiseAC:
			err = d.CalcNoiseAC(status)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Assemble builds A and z from the devices' current Y/B/C/D/I/E
// state (call Calc first).
func (a *Assembler[T]) Assemble() (*linalg.Matrix[T], *linalg.Vector[T]) {
	n := a.topo.NumNodes()
	size := a.topo.Size()

	A := linalg.NewMatrix[T](size, size)
	z := linalg.NewVector[T](size)

	row := func(nodeID int) (int, bool) {
		if nodeID == 0 {
			return 0, false
		}
		return nodeID - 1, true
	}

	for _, at := range a.attch {
		d := at.Device
		ports := d.PortCount()
		vsrcs := d.VSourceCount()
		vsBase := n + at.VSBase

		for p1 := 0; p1 < ports; p1++ {
			r1, ok1 := row(at.NodeIDs[p1])
			if !ok1 {
				continue
			}
			for p2 := 0; p2 < ports; p2++ {
				r2, ok2 := row(at.NodeIDs[p2])
				if !ok2 {
					continue
				}
				if y := d.Y(p1, p2); y != 0 {
					A.Add(r1, r2, convert[T](y))
				}
			}
			for vs := 0; vs < vsrcs; vs++ {
				if b := d.B(p1, vs); b != 0 {
					A.Add(r1, vsBase+vs, convert[T](b))
				}
			}
			if iv := d.I(p1); iv != 0 {
				z.Add(r1, convert[T](iv))
			}
		}

		for vs1 := 0; vs1 < vsrcs; vs1++ {
			gr := vsBase + vs1
			for p2 := 0; p2 < ports; p2++ {
				r2, ok2 := row(at.NodeIDs[p2])
				if !ok2 {
					continue
				}
				if c := d.C(vs1, p2); c != 0 {
					A.Add(gr, r2, convert[T](c))
				}
			}
			for vs2 := 0; vs2 < vsrcs; vs2++ {
				if dd := d.D(vs1, vs2); dd != 0 {
					A.Add(gr, vsBase+vs2, convert[T](dd))
				}
			}
			if e := d.E(vs1); e != 0 {
				z.Add(gr, convert[T](e))
			}
		}
	}

	return A, z
}

// AddGmin adds gmin to the diagonal of A's node-to-ground block (the
// first NumNodes rows/cols), the classic GMinStepping continuation:
// every node gets an extra conductance to ground that is annealed
// toward zero as the outer loop converges. Vsource rows are left
// alone since gmin models a node-to-ground leak, not a branch
// conductance.
func (a *Assembler[T]) AddGmin(A *linalg.Matrix[T], gmin float64) {
	n := a.topo.NumNodes()
	g := convert[T](complex(gmin, 0))
	for i := 0; i < n; i++ {
		A.Add(i, i, g)
	}
}

// AssembleNoise builds the noise correlation matrix C_y, always
// complex-typed since noise is only ever evaluated at an AC operating
// point.
func (a *Assembler[T]) AssembleNoise() *linalg.Matrix[complex128] {
	n := a.topo.NumNodes()
	size := a.topo.Size()
	Cy := linalg.NewMatrix[complex128](size, size)

	row := func(nodeID int) (int, bool) {
		if nodeID == 0 {
			return 0, false
		}
		return nodeID - 1, true
	}

	for _, at := range a.attch {
		d := at.Device
		ports := d.PortCount()
		vsrcs := d.VSourceCount()
		total := ports + vsrcs
		vsBase := n + at.VSBase

		globalRow := func(local int) (int, bool) {
			if local < ports {
				return row(at.NodeIDs[local])
			}
			return vsBase + (local - ports), true
		}

		for i := 0; i < total; i++ {
			gi, oki := globalRow(i)
			if !oki {
				continue
			}
			for j := 0; j < total; j++ {
				gj, okj := globalRow(j)
				if !okj {
					continue
				}
				if v := d.N(i, j); v != 0 {
					Cy.Add(gi, gj, v)
				}
			}
		}
	}
	return Cy
}

// WriteBack pushes a solved x vector's entries back into devices'
// SetV/SetJ.
func (a *Assembler[T]) WriteBack(x *linalg.Vector[T]) {
	n := a.topo.NumNodes()
	for _, at := range a.attch {
		d := at.Device
		for p, nodeID := range at.NodeIDs {
			var v complex128
			if nodeID != 0 {
				v = complexOf(x.At(nodeID - 1))
			}
			d.SetV(p, v)
		}
		for vs := 0; vs < d.VSourceCount(); vs++ {
			d.SetJ(vs, complexOf(x.At(n+at.VSBase+vs)))
		}
	}
}

func complexOf[T linalg.Scalar](v T) complex128 {
	switch x := any(v).(type) {
	case float64:
		return complex(x, 0)
	case complex128:
		return x
	default:
		return 0
	}
}
