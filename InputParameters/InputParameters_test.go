package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/blackoil/linsolve"
	"github.com/notargets/blackoil/newton"
	"github.com/notargets/blackoil/utils"
)

var deck = []byte(`
Title: "Quarter five spot"
Grid:
  Nx: 3
  Ny: 2
  Dx: 10
  Dy: 10
  Permeability: 0.5
Fluid:
  Bref: [1.0, 0.9]
  Compressibility: [1.e-5, 1.e-4]
  Viscosity: [1.0, 5.0]
  CoreyExponent: [2, 2]
  Pref: 200
Wells:
  - Name: INJ
    Perforations: [[0, 0, 0]]
    WI: [1.0]
    BHP: 300
  - Name: PROD
    Perforations: [[2, 1, 0], [1, 1, 0]]
    WI: [1.0, 0.5]
    BHP: 100
InitialPressure: 200
InitialSaturation: [0.2, 0.8]
TimeStep: 0.1
NumSteps: 5
Newton:
  RelaxType: sor
  MaxIter: 20
  MinIter: 0
LinearSolver:
  Type: bicgstab
  Tolerance: 1.e-10
  MaxIterations: 300
`)

func TestParse(t *testing.T) {
	var ip InputParametersReservoir
	require.NoError(t, ip.Parse(deck))
	assert.Equal(t, "Quarter five spot", ip.Title)
	// Unset values take defaults
	assert.Equal(t, 1, ip.Grid.Nz)
	assert.Equal(t, 1., ip.Grid.Dz)
	assert.Equal(t, 0.2, ip.Grid.Porosity)
	assert.Equal(t, 4, *ip.MaxCuts)
	require.Len(t, ip.Wells, 2)
	assert.Equal(t, [3]int{2, 1, 0}, ip.Wells[1].Perforations[0])

	sp, err := ip.NewtonParameters()
	require.NoError(t, err)
	assert.Equal(t, newton.SOR, sp.RelaxType)
	assert.Equal(t, 20, sp.MaxIter)
	assert.Equal(t, 0, sp.MinIter)
	assert.Equal(t, 0.5, sp.RelaxMax)

	ls, err := ip.NewLinearSolver()
	require.NoError(t, err)
	assert.Equal(t, 300, ls.(*linsolve.BiCGStab).MaxIter)

	g := ip.NewGrid()
	assert.Equal(t, 6, g.NumCells())
	wells := ip.NewWells(g)
	assert.Equal(t, utils.Index{0, 5, 4}, wells.WellCells)
	assert.Equal(t, []float64{300, 100}, wells.TargetBHP)

	fluid := ip.NewFluid()
	st := ip.NewState(fluid, g.NumCells())
	assert.Equal(t, 200., st.Pressure[3])
	assert.InDelta(t, 0.8*0.9, st.SurfaceVol[1], 1.e-15)
}

func TestParseErrors(t *testing.T) {
	{
		var ip InputParametersReservoir
		assert.Error(t, ip.Parse([]byte("Title: [unclosed")))
	}
	{ // No time step
		var ip InputParametersReservoir
		assert.Error(t, ip.Parse([]byte("Fluid:\n  Bref: [1]\n  Compressibility: [0]\n  Viscosity: [1]\n  CoreyExponent: [1]\n")))
	}
	{
		var ip InputParametersReservoir
		assert.Error(t, ip.Parse([]byte(`
Fluid: {Bref: [1], Compressibility: [0], Viscosity: [1], CoreyExponent: [1]}
TimeStep: 1
Newton: {RelaxType: linesearch}
`)))
	}
	{
		var ip InputParametersReservoir
		assert.Error(t, ip.Parse([]byte(`
Fluid: {Bref: [1], Compressibility: [0], Viscosity: [1], CoreyExponent: [1]}
TimeStep: 1
Wells: [{Name: W, Perforations: [[5, 0, 0]], WI: [1], BHP: 1}]
`)))
	}
	{ // Explicit zeros survive defaulting
		var ip InputParametersReservoir
		require.NoError(t, ip.Parse([]byte(`
Fluid: {Bref: [1], Compressibility: [0], Viscosity: [1], CoreyExponent: [1]}
TimeStep: 1
MaxCuts: 0
Newton: {RelaxIncrement: 0, MinIter: 0}
`)))
		assert.Equal(t, 0, *ip.MaxCuts)
		sp, err := ip.NewtonParameters()
		require.NoError(t, err)
		assert.Equal(t, 0., sp.RelaxIncrement)
		assert.Equal(t, 0, sp.MinIter)
	}
	{
		var ip InputParametersReservoir
		assert.Error(t, ip.Parse([]byte(`
Fluid: {Bref: [1], Compressibility: [0], Viscosity: [1], CoreyExponent: [1]}
TimeStep: 1
MaxCuts: -1
`)))
	}
	{ // Single phase decks default to a full saturation
		var ip InputParametersReservoir
		require.NoError(t, ip.Parse([]byte(`
Fluid: {Bref: [1], Compressibility: [0], Viscosity: [1], CoreyExponent: [1]}
TimeStep: 1
`)))
		assert.Equal(t, []float64{1}, ip.InitialSaturation)
		sp, err := ip.NewtonParameters()
		require.NoError(t, err)
		assert.Equal(t, newton.Dampen, sp.RelaxType)
		assert.Equal(t, 1, sp.MinIter)
	}
}
