package model

import (
	"fmt"

	"github.com/james-bowman/sparse"

	"github.com/notargets/blackoil/autodiff"
	"github.com/notargets/blackoil/grid"
	"github.com/notargets/blackoil/linsolve"
	"github.com/notargets/blackoil/props"
	"github.com/notargets/blackoil/state"
	"github.com/notargets/blackoil/utils"
)

/*
	FullyImplicitPressure is a compressible single phase flow model for the Newton
	solver. Per cell, the surface volume balance over a step of length dt is

		R = pv/dt * (b(p) - b(p0)) + div(b_up * mob_up * T * ngrad(p)) - q

	with b the inverse formation volume factor, mob = kr/mu and q the perforation
	inflow b * mob * WI * (bhp - p). Each well adds bhp - bhpTarget = 0. Unknowns are
	the cell pressures followed by the bottom hole pressures.
*/
type FullyImplicitPressure struct {
	Tolerance     float64 // On max |R| * dt / pv
	WellTolerance float64 // On max |bhp - bhpTarget|
	MaxDp         float64 // Pressure change limit per iteration, 0 disables chopping
	Verbose       bool
	grid          grid.Topology
	geo           grid.Geology
	fluid         *props.PressureDependentFluidData
	rawFluid      props.BlackoilFluid
	wells         *state.Wells
	linsolver     linsolve.LinearSolver
	ops           *grid.HelperOps
	transInt      []float64
	wellToPerf    *sparse.CSR
	nc, nw        int
	st            *state.BlackoilState
	ws            *state.WellState
	// Per step
	dt     float64
	b0     []float64
	linIts int
	// Per assembly
	residual, wellResidual autodiff.ADB
	perfRates              []float64
}

func NewFullyImplicitPressure(g grid.Topology, fluid props.BlackoilFluid, geo grid.Geology,
	wells *state.Wells, ls linsolve.LinearSolver,
	st *state.BlackoilState, ws *state.WellState) (fi *FullyImplicitPressure) {
	var (
		nc = g.NumCells()
	)
	if fluid.NumPhases() != 1 {
		panic(fmt.Errorf("fully implicit pressure model is single phase, fluid has %d phases", fluid.NumPhases()))
	}
	if wells == nil {
		wells = state.NewWells()
	}
	if err := wells.Validate(nc); err != nil {
		panic(err)
	}
	if st.NumCells() != nc || st.NumPhases != 1 {
		panic(fmt.Errorf("state has %d cells and %d phases, want %d and 1", st.NumCells(), st.NumPhases, nc))
	}
	if len(ws.BHP) != wells.NumWells() || len(ws.PerfRates) != wells.NumPerfs() {
		panic(fmt.Errorf("well state does not match %d wells with %d perforations", wells.NumWells(), wells.NumPerfs()))
	}
	fi = &FullyImplicitPressure{
		Tolerance:     1.e-8,
		WellTolerance: 1.e-8,
		grid:          g,
		geo:           geo,
		fluid:         props.NewPressureDependentFluidData(nc, fluid),
		rawFluid:      fluid,
		wells:         wells,
		linsolver:     ls,
		ops:           grid.NewHelperOps(g),
		nc:            nc,
		nw:            wells.NumWells(),
		st:            st,
		ws:            ws,
	}
	fi.transInt = utils.VecSubset(geo.Transmissibility(), fi.ops.InternalFaces)
	cols := utils.NewIndex(wells.NumPerfs())
	for w := 0; w < fi.nw; w++ {
		for k := wells.WellConnPos[w]; k < wells.WellConnPos[w+1]; k++ {
			cols[k] = w
		}
	}
	nperf := wells.NumPerfs()
	fi.wellToPerf = utils.SpFromTriplets(nperf, fi.nw, utils.NewRange(0, nperf-1), cols, utils.ConstArray(nperf, 1))
	return
}

func (fi *FullyImplicitPressure) State() *state.BlackoilState { return fi.st }

func (fi *FullyImplicitPressure) WellState() *state.WellState { return fi.ws }

func (fi *FullyImplicitPressure) PrepareStep(dt float64) {
	fi.dt = dt
	fi.fluid.ComputeSatQuant(fi.st)
	fi.fluid.ComputePressQuant(fi.st)
	p0 := autodiff.Variables([][]float64{fi.st.Pressure})[0]
	fi.b0 = fi.fluid.InverseFVF(0, p0).Value()
}

func (fi *FullyImplicitPressure) Assemble(initial bool) {
	var (
		pv        = fi.geo.PoreVolume()
		wellCells = fi.wells.WellCells
		p, bhp    autodiff.ADB
	)
	fi.fluid.ComputePressQuant(fi.st)
	if fi.nw > 0 {
		vars := autodiff.Variables([][]float64{fi.st.Pressure, fi.ws.BHP})
		p, bhp = vars[0], vars[1]
	} else {
		p = autodiff.Variables([][]float64{fi.st.Pressure})[0]
	}
	var (
		b       = fi.fluid.InverseFVF(0, p)
		mob     = autodiff.VecDiv(fi.fluid.PhaseRelPerm(0), fi.fluid.PhaseViscosity(0, p))
		nkgradp = autodiff.MatMul(fi.ops.NGrad, p).MulVec(fi.transInt)
		upwind  = grid.NewUpwindSelector(fi.grid, fi.ops, nkgradp.Value())
		flux    = upwind.Select(b.Mul(mob)).Mul(nkgradp)
		pvdt    = make([]float64, fi.nc)
	)
	for c := range pvdt {
		pvdt[c] = pv[c] / fi.dt
	}
	residual := b.SubVec(fi.b0).MulVec(pvdt).Add(autodiff.MatMul(fi.ops.Div, flux))
	if fi.nw > 0 {
		drawdown := autodiff.MatMul(fi.wellToPerf, bhp).Sub(p.Subset(wellCells))
		q := b.Mul(mob).Subset(wellCells).Mul(drawdown).MulVec(fi.wells.WI)
		fi.perfRates = q.Value()
		residual = residual.Sub(q.Superset(wellCells, fi.nc))
		fi.wellResidual = bhp.SubVec(fi.wells.TargetBHP)
	} else {
		fi.perfRates = nil
		fi.wellResidual = autodiff.Null()
	}
	fi.residual = residual
	if initial && fi.Verbose {
		fmt.Printf("Fully implicit pressure: dt = %8.5f, %d cells, %d wells\n", fi.dt, fi.nc, fi.nw)
	}
}

func (fi *FullyImplicitPressure) scaledResidual() (scaled []float64) {
	var (
		pv = fi.geo.PoreVolume()
		r  = fi.residual.Value()
	)
	scaled = make([]float64, fi.nc)
	for c := range r {
		scaled[c] = r[c] * fi.dt / pv[c]
	}
	return
}

// ComputeResidualNorms returns the scaled cell balance norm and the well equation norm
func (fi *FullyImplicitPressure) ComputeResidualNorms() []float64 {
	return []float64{utils.VecMaxAbs(fi.scaledResidual()), utils.VecMaxAbs(fi.wellResidual.Value())}
}

func (fi *FullyImplicitPressure) GetConvergence(dt float64, iteration int) (converged bool) {
	norms := fi.ComputeResidualNorms()
	converged = norms[0] < fi.Tolerance && norms[1] < fi.WellTolerance
	if fi.Verbose {
		if iteration == 0 {
			fmt.Printf("Iter  Cell balance  Well control  Open cells\n")
		}
		open := utils.VecFind(fi.scaledResidual(), utils.GreaterOrEqual, fi.Tolerance, true)
		fmt.Printf("%4d  %12.4e  %12.4e  %10d\n", iteration, norms[0], norms[1], len(open))
	}
	return
}

func (fi *FullyImplicitPressure) SizeNonLinear() int { return fi.nc + fi.nw }

func (fi *FullyImplicitPressure) SolveJacobianSystem() (dx []float64, err error) {
	var (
		A   *sparse.CSR
		rhs []float64
	)
	if fi.nw > 0 {
		rJac, wJac := fi.residual.Derivative(), fi.wellResidual.Derivative()
		A = utils.SpBlockAssemble([][]*sparse.CSR{
			{rJac[0], rJac[1]},
			{wJac[0], wJac[1]},
		})
		rhs = utils.VecConcat(fi.residual.Value(), fi.wellResidual.Value())
	} else {
		A = fi.residual.Derivative()[0]
		rhs = fi.residual.Value()
	}
	dx, rep := fi.linsolver.Solve(A, rhs)
	fi.linIts = rep.Iterations
	if !rep.Converged {
		err = fmt.Errorf("linear solver stopped after %d iterations at relative residual %8.5e",
			rep.Iterations, rep.Residual)
	}
	return
}

func (fi *FullyImplicitPressure) LinearIterationsLastSolve() int { return fi.linIts }

// UpdateState subtracts dx, limiting each cell pressure change to MaxDp
func (fi *FullyImplicitPressure) UpdateState(dx []float64) {
	if len(dx) != fi.SizeNonLinear() {
		panic(fmt.Errorf("update has %d entries, want %d", len(dx), fi.SizeNonLinear()))
	}
	for c := 0; c < fi.nc; c++ {
		dp := dx[c]
		if fi.MaxDp > 0 {
			dp = utils.Clamp(dp, -fi.MaxDp, fi.MaxDp)
		}
		fi.st.Pressure[c] -= dp
	}
	for w := 0; w < fi.nw; w++ {
		fi.ws.BHP[w] -= dx[fi.nc+w]
	}
}

// AfterStep brings the surface volumes and perforation rates in line with the
// converged pressure
func (fi *FullyImplicitPressure) AfterStep(dt float64) {
	copy(fi.st.SurfaceVol, props.SurfaceVolumes(fi.rawFluid, fi.st))
	copy(fi.ws.PerfRates, fi.perfRates)
}

func (fi *FullyImplicitPressure) NumPhases() int { return 1 }

func (fi *FullyImplicitPressure) TerminalOutputEnabled() bool { return fi.Verbose }

// Residual is the cell balance of the last assembly
func (fi *FullyImplicitPressure) Residual() []float64 { return fi.residual.Value() }
