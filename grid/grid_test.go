package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/blackoil/autodiff"
	"github.com/notargets/blackoil/utils"
)

func TestCartesian(t *testing.T) {
	g := NewCartesianUniform(3, 1, 1, 1, 1, 1, 1, 0.2)
	assert.Equal(t, 3, g.NumCells())
	// 4 x-faces, 6 y-faces and 6 z-faces
	require.Equal(t, 16, g.NumFaces())
	assert.InDeltaSlice(t, []float64{0.2, 0.2, 0.2}, g.PoreVolume(), 1.e-15)
	c0, c1 := g.FaceCells(0)
	assert.Equal(t, -1, c0)
	assert.Equal(t, 0, c1)
	c0, c1 = g.FaceCells(1)
	assert.Equal(t, 0, c0)
	assert.Equal(t, 1, c1)
	// Harmonic average of two half transmissibilities of 2
	assert.InDelta(t, 1., g.Transmissibility()[1], 1.e-15)
	assert.InDelta(t, 2., g.Transmissibility()[0], 1.e-15)
	{
		g2 := NewCartesian(2, 1, 1, 1, 1, 1, []float64{1, 3}, []float64{0.1, 0.1})
		// t0 = 2, t1 = 6
		assert.InDelta(t, 1.5, g2.Transmissibility()[1], 1.e-15)
	}
	assert.Panics(t, func() { NewCartesian(2, 1, 1, 1, 1, 1, []float64{1}, []float64{1, 1}) })
}

func TestHelperOps(t *testing.T) {
	g := NewCartesianUniform(3, 1, 1, 1, 1, 1, 1, 0.2)
	ops := NewHelperOps(g)
	assert.Equal(t, utils.Index{1, 2}, ops.InternalFaces)
	assert.True(t, mat.Equal(mat.NewDense(2, 3, []float64{
		1, -1, 0,
		0, 1, -1,
	}), utils.SpToDense(ops.NGrad)))
	assert.True(t, mat.Equal(mat.NewDense(3, 2, []float64{
		1, 0,
		-1, 1,
		0, -1,
	}), utils.SpToDense(ops.Div)))
	// A uniform field has no gradient
	p := autodiff.Variables([][]float64{{5, 5, 5}})[0]
	assert.Equal(t, []float64{0, 0}, autodiff.MatMul(ops.NGrad, p).Value())
}

func TestUpwindSelector(t *testing.T) {
	g := NewCartesianUniform(3, 1, 1, 1, 1, 1, 1, 0.2)
	ops := NewHelperOps(g)
	up := NewUpwindSelector(g, ops, []float64{1, -1})
	assert.Equal(t, utils.Index{0, 2}, up.Upwind)
	x := autodiff.Variables([][]float64{{10, 20, 30}})[0]
	sx := up.Select(x)
	assert.Equal(t, []float64{10, 30}, sx.Value())
	assert.Equal(t, 1., sx.Derivative()[0].At(0, 0))
	assert.Equal(t, 1., sx.Derivative()[0].At(1, 2))
	assert.Equal(t, 2, utils.SpNNZ(sx.Derivative()[0]))
	// Zero flux takes the first cell of the face
	up = NewUpwindSelector(g, ops, []float64{0, 0})
	assert.Equal(t, utils.Index{0, 1}, up.Upwind)
	assert.Panics(t, func() { NewUpwindSelector(g, ops, []float64{1}) })
}
