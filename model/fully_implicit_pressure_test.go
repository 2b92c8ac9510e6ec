package model

import (
	"errors"
	"math"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/blackoil/grid"
	"github.com/notargets/blackoil/linsolve"
	"github.com/notargets/blackoil/newton"
	"github.com/notargets/blackoil/props"
	"github.com/notargets/blackoil/state"
	"github.com/notargets/blackoil/utils"
)

type failingSolver struct{}

func (failingSolver) Solve(A *sparse.CSR, b []float64) (x []float64, rep linsolve.Report) {
	nr, _ := A.Dims()
	return make([]float64, nr), linsolve.Report{Converged: false, Iterations: 10, Residual: 1}
}

func newModel(nx int, c float64, wells *state.Wells, ls linsolve.LinearSolver) (fi *FullyImplicitPressure) {
	var (
		g     = grid.NewCartesianUniform(nx, 1, 1, 1, 1, 1, 1, 0.2)
		fluid = props.NewConstantCompressibility([]float64{1}, []float64{c}, []float64{1}, []int{1}, 200)
		st    = state.NewBlackoilState(nx, 1)
	)
	if wells == nil {
		wells = state.NewWells()
	}
	st.SetUniform(200, []float64{1})
	st.SurfaceVol = props.SurfaceVolumes(fluid, st)
	ws := state.NewWellState(wells, 1)
	return NewFullyImplicitPressure(g, fluid, g, wells, ls, st, ws)
}

func TestFullyImplicitInjection(t *testing.T) {
	var (
		wells = state.NewWells()
		dt    = 0.1
	)
	wells.AddWell("INJ", utils.Index{0}, []float64{1}, 300)
	fi := newModel(5, 1.e-2, wells, linsolve.DirectLU{})
	z0 := utils.VecCopy(fi.State().SurfaceVol)
	s := newton.NewSolver(newton.DefaultSolverParameters(), fi)
	lin, err := s.Step(dt)
	require.NoError(t, err)
	assert.Equal(t, s.NewtonIterationsLastStep(), lin)
	assert.Greater(t, s.NewtonIterationsLastStep(), 1)

	p := fi.State().Pressure
	assert.InDelta(t, 300., fi.WellState().BHP[0], 1.e-9)
	for c := 1; c < 5; c++ {
		assert.Greater(t, p[c-1], p[c])
	}
	assert.Greater(t, p[4], 200.)
	// Surface volume gained equals what the well injected
	var gained float64
	for c := 0; c < 5; c++ {
		gained += 0.2 * (fi.State().SurfaceVol[c] - z0[c])
		assert.InDelta(t, math.Exp(1.e-2*(p[c]-200)), fi.State().SurfaceVol[c], 1.e-12)
	}
	assert.InDelta(t, dt*fi.WellState().PerfRates[0], gained, 1.e-7)
	assert.Less(t, utils.VecMaxAbs(fi.Residual())*dt/0.2, 1.e-8)
}

func TestFullyImplicitAtRest(t *testing.T) {
	fi := newModel(3, 1.e-3, nil, linsolve.NewBiCGStab(1.e-12, 50))
	s := newton.NewSolver(newton.DefaultSolverParameters(), fi)
	_, err := s.Step(1)
	require.NoError(t, err)
	// Converged from the start, the minimum single iteration changes nothing
	assert.Equal(t, 1, s.NewtonIterationsLastStep())
	assert.InDeltaSlice(t, []float64{200, 200, 200}, fi.State().Pressure, 1.e-10)
}

func TestFullyImplicitChopping(t *testing.T) {
	wells := state.NewWells()
	wells.AddWell("P", utils.Index{1}, []float64{1}, 100)
	fi := newModel(3, 1.e-3, wells, linsolve.DirectLU{})
	fi.MaxDp = 10
	assert.Equal(t, 4, fi.SizeNonLinear())
	fi.UpdateState([]float64{100, -100, 1, 50})
	assert.Equal(t, []float64{190, 210, 199}, fi.State().Pressure)
	// Bottom hole pressures are not chopped
	assert.Equal(t, 50., fi.WellState().BHP[0])
	assert.Panics(t, func() { fi.UpdateState([]float64{1}) })
}

func TestFullyImplicitFailures(t *testing.T) {
	{
		wells := state.NewWells()
		wells.AddWell("INJ", utils.Index{0}, []float64{1}, 300)
		fi := newModel(3, 1.e-2, wells, failingSolver{})
		lin, err := newton.NewSolver(newton.DefaultSolverParameters(), fi).Step(1)
		assert.Equal(t, newton.StepFailed, lin)
		assert.True(t, errors.Is(err, newton.ErrLinearSolve))
	}
	{ // One strongly nonlinear iteration is not enough
		wells := state.NewWells()
		wells.AddWell("INJ", utils.Index{0}, []float64{1}, 400)
		fi := newModel(3, 2.e-2, wells, linsolve.DirectLU{})
		fi.Tolerance = 1.e-12
		param := newton.DefaultSolverParameters()
		param.MaxIter = 1
		lin, err := newton.NewSolver(param, fi).Step(1)
		assert.Equal(t, newton.StepFailed, lin)
		assert.True(t, errors.Is(err, newton.ErrNotConverged))
	}
	assert.Panics(t, func() {
		g := grid.NewCartesianUniform(2, 1, 1, 1, 1, 1, 1, 0.2)
		fluid := props.NewConstantCompressibility([]float64{1, 1}, []float64{0, 0}, []float64{1, 1}, []int{1, 1}, 0)
		st := state.NewBlackoilState(2, 2)
		NewFullyImplicitPressure(g, fluid, g, nil, linsolve.DirectLU{}, st, &state.WellState{})
	})
}
