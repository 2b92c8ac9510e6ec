package grid

import (
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/notargets/blackoil/autodiff"
	"github.com/notargets/blackoil/utils"
)

// Topology is the face to cell connectivity of a cell centered grid. Faces on the
// boundary report -1 for the missing neighbour.
type Topology interface {
	NumCells() int
	NumFaces() int
	FaceCells(f int) (c0, c1 int)
}

// Geology carries the rock properties the finite volume discretization needs
type Geology interface {
	PoreVolume() []float64       // One per cell
	Transmissibility() []float64 // One per face, including boundary faces
}

/*
	HelperOps holds the discrete operators over internal faces:
		NGrad (nif x nc): the negative gradient, (NGrad p)_f = p[c0] - p[c1]
		Div   (nc x nif): the divergence of a face flux directed from c0 to c1, the
		                  transpose of NGrad
	A positive NGrad value means flow from c0 to c1 in the absence of gravity.
*/
type HelperOps struct {
	InternalFaces utils.Index
	NGrad         *sparse.CSR
	Div           *sparse.CSR
}

func NewHelperOps(g Topology) (ops *HelperOps) {
	var (
		nc         = g.NumCells()
		nf         = g.NumFaces()
		rows, cols utils.Index
		vals       []float64
		internal   utils.Index
	)
	for f := 0; f < nf; f++ {
		c0, c1 := g.FaceCells(f)
		if c0 < 0 || c1 < 0 {
			continue
		}
		if c0 >= nc || c1 >= nc {
			panic(fmt.Errorf("face %d connects cells (%d,%d) outside [0,%d)", f, c0, c1, nc))
		}
		fi := len(internal)
		internal = append(internal, f)
		rows = append(rows, fi, fi)
		cols = append(cols, c0, c1)
		vals = append(vals, 1, -1)
	}
	ops = &HelperOps{
		InternalFaces: internal,
		NGrad:         utils.SpFromTriplets(len(internal), nc, rows, cols, vals),
	}
	ops.Div = utils.SpTranspose(ops.NGrad)
	return
}

// NumInternalFaces is the row count of NGrad
func (ops *HelperOps) NumInternalFaces() int { return len(ops.InternalFaces) }

// UpwindSelector picks, per internal face, the donor cell value of an advected
// quantity from the sign of a face flux
type UpwindSelector struct {
	Upwind utils.Index // Donor cell per internal face
	sel    *sparse.CSR // nif x nc
}

func NewUpwindSelector(g Topology, ops *HelperOps, ifaceFlux []float64) (u *UpwindSelector) {
	var (
		nc  = g.NumCells()
		nif = ops.NumInternalFaces()
	)
	if len(ifaceFlux) != nif {
		panic(fmt.Errorf("upwind: %d fluxes for %d internal faces", len(ifaceFlux), nif))
	}
	u = &UpwindSelector{Upwind: utils.NewIndex(nif)}
	for i, f := range ops.InternalFaces {
		c0, c1 := g.FaceCells(f)
		if ifaceFlux[i] >= 0 {
			u.Upwind[i] = c0
		} else {
			u.Upwind[i] = c1
		}
	}
	u.sel = utils.SpFromTriplets(nif, nc, utils.NewRange(0, nif-1), u.Upwind, utils.ConstArray(nif, 1))
	return
}

func (u *UpwindSelector) Select(x autodiff.ADB) autodiff.ADB {
	return autodiff.MatMul(u.sel, x)
}
