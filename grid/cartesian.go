package grid

import (
	"fmt"
)

// Cartesian is a logically rectangular Nx x Ny x Nz box of uniform cells with
// no-flow outer boundaries. Cell (i,j,k) has index i + Nx*(j + Ny*k).
type Cartesian struct {
	Nx, Ny, Nz int
	Dx, Dy, Dz float64
	Perm, Poro []float64 // Isotropic permeability and porosity per cell
	faces      [][2]int
	trans      []float64
	pv         []float64
}

func NewCartesian(nx, ny, nz int, dx, dy, dz float64, perm, poro []float64) (g *Cartesian) {
	var (
		nc = nx * ny * nz
	)
	if nx < 1 || ny < 1 || nz < 1 {
		panic(fmt.Errorf("grid dimensions must be positive: %d x %d x %d", nx, ny, nz))
	}
	if len(perm) != nc || len(poro) != nc {
		panic(fmt.Errorf("need %d permeability and porosity values, have %d and %d", nc, len(perm), len(poro)))
	}
	g = &Cartesian{
		Nx: nx, Ny: ny, Nz: nz,
		Dx: dx, Dy: dy, Dz: dz,
		Perm: perm, Poro: poro,
	}
	g.pv = make([]float64, nc)
	vol := dx * dy * dz
	for c := 0; c < nc; c++ {
		g.pv[c] = vol * poro[c]
	}
	g.buildFaces()
	return
}

// NewCartesianUniform fills permeability and porosity with constants
func NewCartesianUniform(nx, ny, nz int, dx, dy, dz, perm, poro float64) *Cartesian {
	var (
		nc = nx * ny * nz
		k  = make([]float64, nc)
		ph = make([]float64, nc)
	)
	for c := 0; c < nc; c++ {
		k[c], ph[c] = perm, poro
	}
	return NewCartesian(nx, ny, nz, dx, dy, dz, k, ph)
}

func (g *Cartesian) Cell(i, j, k int) int { return i + g.Nx*(j+g.Ny*k) }

func (g *Cartesian) NumCells() int { return g.Nx * g.Ny * g.Nz }

func (g *Cartesian) NumFaces() int { return len(g.faces) }

func (g *Cartesian) FaceCells(f int) (c0, c1 int) { return g.faces[f][0], g.faces[f][1] }

func (g *Cartesian) PoreVolume() []float64 { return g.pv }

func (g *Cartesian) Transmissibility() []float64 { return g.trans }

/*
	Faces are generated direction by direction. Each face gets the two point flux
	transmissibility from the harmonic average of the half transmissibilities
		t = K * A / (d/2)
	of its neighbours. Boundary faces carry the half transmissibility of the single
	neighbour; they are not part of the internal face set.
*/
func (g *Cartesian) buildFaces() {
	var (
		nx, ny, nz = g.Nx, g.Ny, g.Nz
	)
	addFace := func(c0, c1 int, area, d float64) {
		var t0, t1 float64
		if c0 >= 0 {
			t0 = g.Perm[c0] * area / (0.5 * d)
		}
		if c1 >= 0 {
			t1 = g.Perm[c1] * area / (0.5 * d)
		}
		var T float64
		switch {
		case c0 >= 0 && c1 >= 0:
			if t0+t1 > 0 {
				T = t0 * t1 / (t0 + t1)
			}
		case c0 >= 0:
			T = t0
		default:
			T = t1
		}
		g.faces = append(g.faces, [2]int{c0, c1})
		g.trans = append(g.trans, T)
	}
	neighbour := func(i, j, k int) int {
		if i < 0 || i >= nx || j < 0 || j >= ny || k < 0 || k >= nz {
			return -1
		}
		return g.Cell(i, j, k)
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i <= nx; i++ {
				addFace(neighbour(i-1, j, k), neighbour(i, j, k), g.Dy*g.Dz, g.Dx)
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i < nx; i++ {
				addFace(neighbour(i, j-1, k), neighbour(i, j, k), g.Dx*g.Dz, g.Dy)
			}
		}
	}
	for k := 0; k <= nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				addFace(neighbour(i, j, k-1), neighbour(i, j, k), g.Dx*g.Dy, g.Dz)
			}
		}
	}
}
