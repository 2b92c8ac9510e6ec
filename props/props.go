package props

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/blackoil/autodiff"
	"github.com/notargets/blackoil/state"
	"github.com/notargets/blackoil/utils"
)

/*
	BlackoilFluid evaluates phase behaviour for a set of cells. All arrays are row-major
	with one row per evaluated cell:
		Matrix:    np x np surface volume matrix A and dA/dp per cell. A maps reservoir
		           phase volumes to surface volumes, its diagonal is the inverse formation
		           volume factor b = 1/B.
		Viscosity: np values and dmu/dp per cell, dmu may be nil
		RelPerm:   np values and np x np dkr/ds per cell, dkrds may be nil
	p has one entry per evaluated cell, z and s have np entries per evaluated cell.
*/
type BlackoilFluid interface {
	NumPhases() int
	Matrix(p, z []float64, cells utils.Index) (A, dA []float64)
	Viscosity(p, z []float64, cells utils.Index) (mu, dmu []float64)
	RelPerm(s []float64, cells utils.Index) (kr, dkrds []float64)
}

// PressureDependentFluidData caches fluid evaluations for one state and serves them
// as AD quantities against a pressure unknown in block 0
type PressureDependentFluidData struct {
	fluid      BlackoilFluid
	nc, np     int
	cells      utils.Index
	A, dA      []float64 // nc x np*np
	mu, dmu    []float64 // nc x np
	kr         []float64 // nc x np
	pressReady bool
	satReady   bool
}

func NewPressureDependentFluidData(nc int, fluid BlackoilFluid) (fd *PressureDependentFluidData) {
	var (
		np = fluid.NumPhases()
	)
	fd = &PressureDependentFluidData{
		fluid: fluid,
		nc:    nc,
		np:    np,
		cells: utils.AllCells(nc),
		A:     make([]float64, nc*np*np),
		dA:    make([]float64, nc*np*np),
		mu:    make([]float64, nc*np),
		dmu:   make([]float64, nc*np),
		kr:    make([]float64, nc*np),
	}
	return
}

func (fd *PressureDependentFluidData) NumPhases() int { return fd.np }

func (fd *PressureDependentFluidData) checkState(st *state.BlackoilState) {
	if st.NumCells() != fd.nc || st.NumPhases != fd.np {
		panic(fmt.Errorf("state has %d cells and %d phases, fluid data expects %d and %d",
			st.NumCells(), st.NumPhases, fd.nc, fd.np))
	}
}

// ComputeSatQuant refreshes relative permeabilities; their saturation derivatives are
// not used by the pressure equation and are dropped
func (fd *PressureDependentFluidData) ComputeSatQuant(st *state.BlackoilState) {
	fd.checkState(st)
	kr, _ := fd.fluid.RelPerm(st.Saturation, fd.cells)
	if len(kr) != fd.nc*fd.np {
		panic(fmt.Errorf("fluid returned %d relative permeabilities, want %d", len(kr), fd.nc*fd.np))
	}
	copy(fd.kr, kr)
	fd.satReady = true
}

// ComputePressQuant refreshes the surface volume matrix, viscosities and their
// pressure derivatives
func (fd *PressureDependentFluidData) ComputePressQuant(st *state.BlackoilState) {
	fd.checkState(st)
	A, dA := fd.fluid.Matrix(st.Pressure, st.SurfaceVol, fd.cells)
	if len(A) != fd.nc*fd.np*fd.np || len(dA) != len(A) {
		panic(fmt.Errorf("fluid returned %d matrix entries and %d derivatives, want %d",
			len(A), len(dA), fd.nc*fd.np*fd.np))
	}
	copy(fd.A, A)
	copy(fd.dA, dA)
	mu, dmu := fd.fluid.Viscosity(st.Pressure, st.SurfaceVol, fd.cells)
	if len(mu) != fd.nc*fd.np {
		panic(fmt.Errorf("fluid returned %d viscosities, want %d", len(mu), fd.nc*fd.np))
	}
	copy(fd.mu, mu)
	if dmu == nil {
		for i := range fd.dmu {
			fd.dmu[i] = 0
		}
	} else {
		copy(fd.dmu, dmu)
	}
	fd.pressReady = true
}

func (fd *PressureDependentFluidData) checkPhase(phase int) {
	if phase < 0 || phase >= fd.np {
		panic(fmt.Errorf("phase %d outside [0,%d)", phase, fd.np))
	}
}

func (fd *PressureDependentFluidData) checkPressure(p autodiff.ADB) {
	if p.Size() != fd.nc {
		panic(fmt.Errorf("pressure has %d values for %d cells", p.Size(), fd.nc))
	}
	if bp := p.BlockPattern(); len(bp) == 0 || bp[0] != fd.nc {
		panic(fmt.Errorf("pressure block pattern %v does not start with %d cells", bp, fd.nc))
	}
	if !fd.pressReady {
		panic(fmt.Errorf("pressure dependent quantities requested before ComputePressQuant"))
	}
}

// diagInjected places diag(d) against the pressure block and zeros elsewhere
func (fd *PressureDependentFluidData) diagInjected(val, d []float64, p autodiff.ADB) autodiff.ADB {
	var (
		bp  = p.BlockPattern()
		jac = make([]*sparse.CSR, len(bp))
	)
	jac[0] = autodiff.SpDiag(d)
	for b := 1; b < len(bp); b++ {
		jac[b] = utils.SpZeros(fd.nc, bp[b])
	}
	return autodiff.Function(val, jac)
}

// InverseFVF is b = 1/B for one phase, the diagonal of the surface volume matrix
func (fd *PressureDependentFluidData) InverseFVF(phase int, p autodiff.ADB) autodiff.ADB {
	fd.checkPhase(phase)
	fd.checkPressure(p)
	var (
		pp = phase*fd.np + phase
	)
	return fd.diagInjected(
		utils.VecColumn(fd.A, fd.nc, fd.np*fd.np, pp),
		utils.VecColumn(fd.dA, fd.nc, fd.np*fd.np, pp),
		p)
}

// FVF is the formation volume factor B of one phase
func (fd *PressureDependentFluidData) FVF(phase int, p autodiff.ADB) autodiff.ADB {
	return autodiff.VecDiv(utils.ConstArray(fd.nc, 1), fd.InverseFVF(phase, p))
}

func (fd *PressureDependentFluidData) PhaseViscosity(phase int, p autodiff.ADB) autodiff.ADB {
	fd.checkPhase(phase)
	fd.checkPressure(p)
	return fd.diagInjected(
		utils.VecColumn(fd.mu, fd.nc, fd.np, phase),
		utils.VecColumn(fd.dmu, fd.nc, fd.np, phase),
		p)
}

func (fd *PressureDependentFluidData) PhaseRelPerm(phase int) []float64 {
	fd.checkPhase(phase)
	if !fd.satReady {
		panic(fmt.Errorf("relative permeability requested before ComputeSatQuant"))
	}
	return utils.VecColumn(fd.kr, fd.nc, fd.np, phase)
}

// SurfaceVolumes returns z = A s per unit pore volume, the consistent composition
// for a state whose pressure and saturations are set
func SurfaceVolumes(fluid BlackoilFluid, st *state.BlackoilState) (z []float64) {
	var (
		nc    = st.NumCells()
		np    = st.NumPhases
		A, _  = fluid.Matrix(st.Pressure, st.SurfaceVol, utils.AllCells(nc))
		block = np * np
	)
	z = make([]float64, nc*np)
	for c := 0; c < nc; c++ {
		for i := 0; i < np; i++ {
			var sum float64
			for j := 0; j < np; j++ {
				sum += A[c*block+i*np+j] * st.Saturation[c*np+j]
			}
			z[c*np+i] = sum
		}
	}
	return
}

// Saturations inverts z = A s cell by cell using the surface volume matrix of the last
// ComputePressQuant
func (fd *PressureDependentFluidData) Saturations(z []float64) (s []float64) {
	var (
		np    = fd.np
		block = np * np
		Ac    = mat.NewDense(np, np, nil)
		zc    = mat.NewVecDense(np, nil)
		sc    mat.VecDense
	)
	if len(z) != fd.nc*np {
		panic(fmt.Errorf("Saturations: %d surface volumes for %d cells and %d phases", len(z), fd.nc, np))
	}
	if !fd.pressReady {
		panic(fmt.Errorf("saturations requested before ComputePressQuant"))
	}
	s = make([]float64, fd.nc*np)
	for c := 0; c < fd.nc; c++ {
		for i := 0; i < np; i++ {
			zc.SetVec(i, z[c*np+i])
			for j := 0; j < np; j++ {
				Ac.Set(i, j, fd.A[c*block+i*np+j])
			}
		}
		if err := sc.SolveVec(Ac, zc); err != nil {
			panic(fmt.Errorf("cell %d: singular surface volume matrix: %v", c, err))
		}
		for i := 0; i < np; i++ {
			s[c*np+i] = sc.AtVec(i)
		}
	}
	return
}
