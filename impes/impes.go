package impes

import (
	"errors"
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/notargets/blackoil/autodiff"
	"github.com/notargets/blackoil/grid"
	"github.com/notargets/blackoil/linsolve"
	"github.com/notargets/blackoil/props"
	"github.com/notargets/blackoil/state"
	"github.com/notargets/blackoil/utils"
)

// ErrLinearSolverFailed is fatal to an IMPES run, there is no retry
var ErrLinearSolverFailed = errors.New("impes: linear solver did not converge")

/*
	ImpesTPFAAD solves one linearized pressure equation per time step on a two point
	flux discretization. Saturations are held at their step start values. Cell
	pressures and well bottom hole pressures are the two unknown blocks:

		R_c = pv - sum_phase B * (pv*z0 + dt*(q - div(flux/B_up)))
		R_w = bhp - bhpTarget

	where flux = (kr/mu)_up * T * (p[c0] - p[c1]) on each internal face and q are the
	perforation inflows in surface volume. R_c is the combined pore volume balance,
	zero when the reservoir volume of the fluid fills the pore volume. After the
	solve, Transport advances the surface volumes explicitly with the fluxes of the
	new pressure.
*/
type ImpesTPFAAD struct {
	Verbose    bool
	LastReport linsolve.Report
	grid       grid.Topology
	geo        grid.Geology
	fluid      *props.PressureDependentFluidData
	wells      *state.Wells
	linsolver  linsolve.LinearSolver
	ops        *grid.HelperOps
	nc, np, nw int
	transInt   []float64
	wellToPerf *sparse.CSR // nperf x nw incidence, one unit entry per perforation
	wellPerfDp []float64   // Hydrostatic head from the well reference depth to each perforation
	// Results of the last assembly
	residual, wellResidual autodiff.ADB
	faceFlux               [][]float64 // Surface volume flux per phase on internal faces
	source                 [][]float64 // Surface volume well inflow per phase per cell
	perfRates              [][]float64 // Surface volume rate per phase per perforation
}

func NewImpesTPFAAD(g grid.Topology, fluid props.BlackoilFluid, geo grid.Geology,
	wells *state.Wells, ls linsolve.LinearSolver) (im *ImpesTPFAAD) {
	var (
		nc = g.NumCells()
	)
	if wells == nil {
		wells = state.NewWells()
	}
	if err := wells.Validate(nc); err != nil {
		panic(err)
	}
	if len(geo.PoreVolume()) != nc || len(geo.Transmissibility()) != g.NumFaces() {
		panic(fmt.Errorf("geology has %d pore volumes and %d transmissibilities for %d cells and %d faces",
			len(geo.PoreVolume()), len(geo.Transmissibility()), nc, g.NumFaces()))
	}
	im = &ImpesTPFAAD{
		grid:      g,
		geo:       geo,
		fluid:     props.NewPressureDependentFluidData(nc, fluid),
		wells:     wells,
		linsolver: ls,
		ops:       grid.NewHelperOps(g),
		nc:        nc,
		np:        fluid.NumPhases(),
		nw:        wells.NumWells(),
	}
	im.transInt = utils.VecSubset(geo.Transmissibility(), im.ops.InternalFaces)
	im.buildWellToPerf()
	return
}

func (im *ImpesTPFAAD) buildWellToPerf() {
	var (
		nperf = im.wells.NumPerfs()
		cols  = utils.NewIndex(nperf)
	)
	for w := 0; w < im.nw; w++ {
		for k := im.wells.WellConnPos[w]; k < im.wells.WellConnPos[w+1]; k++ {
			cols[k] = w
		}
	}
	im.wellToPerf = utils.SpFromTriplets(nperf, im.nw, utils.NewRange(0, nperf-1), cols, utils.ConstArray(nperf, 1))
	im.wellPerfDp = make([]float64, nperf)
}

func (im *ImpesTPFAAD) checkStates(st *state.BlackoilState, ws *state.WellState) {
	if st.NumCells() != im.nc || st.NumPhases != im.np {
		panic(fmt.Errorf("state has %d cells and %d phases, solver expects %d and %d",
			st.NumCells(), st.NumPhases, im.nc, im.np))
	}
	if len(ws.BHP) != im.nw || len(ws.PerfRates) != im.wells.NumPerfs()*im.np {
		panic(fmt.Errorf("well state sized for %d wells and %d rates, solver expects %d and %d",
			len(ws.BHP), len(ws.PerfRates), im.nw, im.wells.NumPerfs()*im.np))
	}
}

// Solve updates pressure and bottom hole pressure in place. A linear solver failure
// leaves both states untouched and returns ErrLinearSolverFailed.
func (im *ImpesTPFAAD) Solve(dt float64, st *state.BlackoilState, ws *state.WellState) (err error) {
	im.checkStates(st, ws)
	im.fluid.ComputeSatQuant(st)
	im.assemble(dt, st, ws)
	var (
		A   *sparse.CSR
		rhs []float64
	)
	if im.nw > 0 {
		rJac, wJac := im.residual.Derivative(), im.wellResidual.Derivative()
		A = utils.SpBlockAssemble([][]*sparse.CSR{
			{rJac[0], rJac[1]},
			{wJac[0], wJac[1]},
		})
		rhs = utils.VecConcat(im.residual.Value(), im.wellResidual.Value())
	} else {
		A = im.residual.Derivative()[0]
		rhs = im.residual.Value()
	}
	dx, rep := im.linsolver.Solve(A, rhs)
	im.LastReport = rep
	if !rep.Converged {
		err = fmt.Errorf("%w: %d iterations, relative residual %8.5e", ErrLinearSolverFailed, rep.Iterations, rep.Residual)
		return
	}
	for c := 0; c < im.nc; c++ {
		st.Pressure[c] -= dx[c]
	}
	for w := 0; w < im.nw; w++ {
		ws.BHP[w] -= dx[im.nc+w]
	}
	// Fluxes and well rates consistent with the new pressure
	im.assemble(dt, st, ws)
	for k, rates := range im.perfRates {
		for phase, q := range rates {
			ws.PerfRates[k*im.np+phase] = q
		}
	}
	if im.Verbose {
		fmt.Printf("IMPES: linear iterations %d, max pore volume error after update %8.5e\n",
			rep.Iterations, im.MaxVolumeError())
	}
	return
}

func (im *ImpesTPFAAD) assemble(dt float64, st *state.BlackoilState, ws *state.WellState) {
	var (
		pv        = im.geo.PoreVolume()
		p, bhp    autodiff.ADB
		wellCells = im.wells.WellCells
		nperf     = im.wells.NumPerfs()
	)
	im.fluid.ComputePressQuant(st)
	if im.nw > 0 {
		vars := autodiff.Variables([][]float64{st.Pressure, ws.BHP})
		p, bhp = vars[0], vars[1]
	} else {
		p = autodiff.Variables([][]float64{st.Pressure})[0]
	}
	bp := p.BlockPattern()
	nkgradp := autodiff.MatMul(im.ops.NGrad, p).MulVec(im.transInt)
	// No gravity or capillarity, so one upwind direction serves all phases
	upwind := grid.NewUpwindSelector(im.grid, im.ops, nkgradp.Value())
	var drawdown autodiff.ADB
	if im.nw > 0 {
		perfWellP := autodiff.MatMul(im.wellToPerf, bhp).AddVec(im.wellPerfDp)
		drawdown = perfWellP.Sub(p.Subset(wellCells))
	}
	im.faceFlux = make([][]float64, im.np)
	im.source = make([][]float64, im.np)
	im.perfRates = make([][]float64, nperf)
	for k := range im.perfRates {
		im.perfRates[k] = make([]float64, im.np)
	}
	residual := autodiff.Constant(pv, bp)
	for phase := 0; phase < im.np; phase++ {
		var (
			cellB = im.fluid.FVF(phase, p)
			mob   = autodiff.VecDiv(im.fluid.PhaseRelPerm(phase), im.fluid.PhaseViscosity(phase, p))
			z0    = st.PhaseSurfaceVol(phase)
			q     = autodiff.Constant(make([]float64, im.nc), bp)
		)
		if im.nw > 0 {
			perfQ := mob.Subset(wellCells).Mul(drawdown).MulVec(im.wells.WI).Div(cellB.Subset(wellCells))
			for k, rate := range perfQ.Value() {
				im.perfRates[k][phase] = rate
			}
			q = perfQ.Superset(wellCells, im.nc)
		}
		flux := upwind.Select(mob).Mul(nkgradp)
		faceB := upwind.Select(cellB)
		surfFlux := flux.Div(faceB)
		contrib := q.Sub(autodiff.MatMul(im.ops.Div, surfFlux)).Scale(dt)
		accum := make([]float64, im.nc)
		for c := range accum {
			accum[c] = pv[c] * z0[c]
		}
		contrib = contrib.AddVec(accum)
		residual = residual.Sub(cellB.Mul(contrib))
		im.faceFlux[phase] = surfFlux.Value()
		im.source[phase] = q.Value()
	}
	im.residual = residual
	if im.nw > 0 {
		im.wellResidual = bhp.SubVec(im.wells.TargetBHP)
	} else {
		im.wellResidual = autodiff.Null()
	}
}

// Transport advances the surface volumes with the fluxes and well inflows of the last
// Solve and recovers saturations from them
func (im *ImpesTPFAAD) Transport(dt float64, st *state.BlackoilState) {
	var (
		pv = im.geo.PoreVolume()
	)
	if im.faceFlux == nil {
		panic(fmt.Errorf("transport requested before a pressure solve"))
	}
	for phase := 0; phase < im.np; phase++ {
		div := utils.SpMulVec(im.ops.Div, im.faceFlux[phase])
		for c := 0; c < im.nc; c++ {
			st.SurfaceVol[c*im.np+phase] += dt / pv[c] * (im.source[phase][c] - div[c])
		}
	}
	copy(st.Saturation, im.fluid.Saturations(st.SurfaceVol))
}

// Residual is the pore volume balance of the last assembly
func (im *ImpesTPFAAD) Residual() []float64 { return im.residual.Value() }

// MaxVolumeError is the largest pore volume balance error relative to the pore volume
func (im *ImpesTPFAAD) MaxVolumeError() (e float64) {
	var (
		pv = im.geo.PoreVolume()
		r  = im.residual.Value()
	)
	rel := make([]float64, len(r))
	for c := range r {
		rel[c] = r[c] / pv[c]
	}
	return utils.VecMaxAbs(rel)
}

// FaceFlux is the surface volume flux of one phase on the internal faces
func (im *ImpesTPFAAD) FaceFlux(phase int) []float64 {
	if phase < 0 || phase >= im.np {
		panic(fmt.Errorf("phase %d outside [0,%d)", phase, im.np))
	}
	return im.faceFlux[phase]
}
