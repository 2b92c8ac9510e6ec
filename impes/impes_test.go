package impes

import (
	"errors"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/blackoil/grid"
	"github.com/notargets/blackoil/linsolve"
	"github.com/notargets/blackoil/props"
	"github.com/notargets/blackoil/state"
	"github.com/notargets/blackoil/utils"
)

// Counts solves and optionally reports failure after solving
type fakeSolver struct {
	fail   bool
	solves int
}

func (fs *fakeSolver) Solve(A *sparse.CSR, b []float64) (x []float64, rep linsolve.Report) {
	fs.solves++
	x, rep = linsolve.DirectLU{}.Solve(A, b)
	if fs.fail {
		rep.Converged = false
	}
	return
}

func singlePhase(c float64) *props.ConstantCompressibility {
	return props.NewConstantCompressibility([]float64{1}, []float64{c}, []float64{1}, []int{1}, 200)
}

func newCase(nx int, fluid props.BlackoilFluid, p float64, sat []float64, wells *state.Wells,
	ls linsolve.LinearSolver) (im *ImpesTPFAAD, st *state.BlackoilState, ws *state.WellState) {
	g := grid.NewCartesianUniform(nx, 1, 1, 1, 1, 1, 1, 0.2)
	if wells == nil {
		wells = state.NewWells()
	}
	im = NewImpesTPFAAD(g, fluid, g, wells, ls)
	st = state.NewBlackoilState(nx, fluid.NumPhases())
	st.SetUniform(p, sat)
	st.SurfaceVol = props.SurfaceVolumes(fluid, st)
	ws = state.NewWellState(wells, fluid.NumPhases())
	return
}

func TestSingleCellUnchanged(t *testing.T) {
	wells := state.NewWells()
	wells.AddWell("W", utils.Index{0}, []float64{1}, 200)
	ls := &fakeSolver{}
	im, st, ws := newCase(1, singlePhase(1.e-5), 200, []float64{1}, wells, ls)
	require.NoError(t, im.Solve(1, st, ws))
	assert.Equal(t, 1, ls.solves)
	assert.InDelta(t, 200., st.Pressure[0], 1.e-10)
	assert.InDelta(t, 200., ws.BHP[0], 1.e-10)
	assert.InDelta(t, 0., ws.PerfRates[0], 1.e-12)
	assert.InDelta(t, 0., im.MaxVolumeError(), 1.e-12)
}

func TestLinearFailureIsFatal(t *testing.T) {
	wells := state.NewWells()
	wells.AddWell("INJ", utils.Index{0}, []float64{1}, 300)
	im, st, ws := newCase(3, singlePhase(1.e-4), 200, []float64{1}, wells, &fakeSolver{fail: true})
	err := im.Solve(1, st, ws)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLinearSolverFailed))
	assert.False(t, im.LastReport.Converged)
	// Nothing is updated on failure
	assert.Equal(t, []float64{200, 200, 200}, st.Pressure)
	assert.Equal(t, []float64{300}, ws.BHP)
}

func TestInjectionRaisesPressure(t *testing.T) {
	wells := state.NewWells()
	wells.AddWell("INJ", utils.Index{0}, []float64{1}, 300)
	im, st, ws := newCase(3, singlePhase(1.e-4), 200, []float64{1}, wells, linsolve.DirectLU{})
	require.NoError(t, im.Solve(1, st, ws))
	// Bottom hole pressure control is linear, so the target is met exactly
	assert.InDelta(t, 300., ws.BHP[0], 1.e-9)
	p := st.Pressure
	assert.Greater(t, p[0], p[1])
	assert.Greater(t, p[1], p[2])
	assert.Greater(t, p[2], 200.)
	assert.Less(t, p[0], 300.)
	assert.Greater(t, ws.PerfRates[0], 0.)
	// Flow runs down the pressure gradient
	for _, f := range im.FaceFlux(0) {
		assert.Greater(t, f, 0.)
	}
	assert.Less(t, im.MaxVolumeError(), 1.e-3)
	assert.Panics(t, func() { im.FaceFlux(1) })
}

func TestNoWells(t *testing.T) {
	im, st, ws := newCase(4, singlePhase(1.e-4), 150, []float64{1}, nil, linsolve.DirectLU{})
	require.NoError(t, im.Solve(10, st, ws))
	assert.InDeltaSlice(t, []float64{150, 150, 150, 150}, st.Pressure, 1.e-10)
	assert.Empty(t, ws.BHP)
}

func TestTransportConservesMass(t *testing.T) {
	var (
		fluid = props.NewConstantCompressibility(
			[]float64{1, 0.9}, []float64{1.e-5, 2.e-5}, []float64{1, 3}, []int{1, 2}, 200)
		wells = state.NewWells()
		dt    = 0.5
	)
	wells.AddWell("INJ", utils.Index{0}, []float64{2}, 250)
	wells.AddWell("PROD", utils.Index{3}, []float64{2}, 150)
	im, st, ws := newCase(4, fluid, 200, []float64{0.5, 0.5}, wells, linsolve.NewBiCGStab(1.e-10, 200))
	require.NoError(t, im.Solve(dt, st, ws))
	z0 := utils.VecCopy(st.SurfaceVol)
	im.Transport(dt, st)
	pv := 0.2
	for phase := 0; phase < 2; phase++ {
		var inflow, change float64
		for k := 0; k < wells.NumPerfs(); k++ {
			inflow += ws.PerfRates[k*2+phase]
		}
		for c := 0; c < 4; c++ {
			change += pv * (st.SurfaceVol[c*2+phase] - z0[c*2+phase])
		}
		assert.InDelta(t, dt*inflow, change, 1.e-10, "phase %d", phase)
	}
	// The saturation sum misses one by exactly the pore volume balance error
	for c := 0; c < 4; c++ {
		sum := st.Saturation[c*2] + st.Saturation[c*2+1]
		assert.InDelta(t, 1., sum, im.MaxVolumeError()+1.e-10)
	}
	// Injector perforation injects, producer produces
	assert.Greater(t, ws.PerfRates[0], 0.)
	assert.Less(t, ws.PerfRates[2], 0.)
}

func TestTransportBeforeSolvePanics(t *testing.T) {
	im, st, _ := newCase(2, singlePhase(1.e-4), 150, []float64{1}, nil, linsolve.DirectLU{})
	assert.Panics(t, func() { im.Transport(1, st) })
}
