package autodiff

import (
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/blackoil/utils"
)

const tol = 1.e-12

func dense(J *sparse.CSR) *mat.Dense { return utils.SpToDense(J) }

func requireJacEqual(t *testing.T, want, got *sparse.CSR) {
	wr, wc := want.Dims()
	gr, gc := got.Dims()
	require.Equal(t, wr, gr)
	require.Equal(t, wc, gc)
	for i := 0; i < wr; i++ {
		for j := 0; j < wc; j++ {
			assert.InDelta(t, want.At(i, j), got.At(i, j), 1.e-10, "entry (%d,%d)", i, j)
		}
	}
}

// Two variables in a joint pattern plus derived quantities built from them
func testOperands() (p, q, a, b ADB) {
	vars := Variables([][]float64{{1, 2, 3}, {4, 5}})
	p, q = vars[0], vars[1]
	// a depends on the first block only, b on both
	a = Function([]float64{2, 3, 4}, []*sparse.CSR{
		SpDiag([]float64{0.5, -1, 2}),
		utils.SpZeros(3, 2),
	})
	b = Function([]float64{1.5, -2, 5}, []*sparse.CSR{
		utils.SpFromTriplets(3, 3, utils.Index{0, 1, 2, 2}, utils.Index{0, 2, 1, 2}, []float64{1, 2, 3, 4}),
		utils.SpFromTriplets(3, 2, utils.Index{0, 2}, utils.Index{1, 0}, []float64{-1, 0.25}),
	})
	return
}

func TestVariables(t *testing.T) {
	vars := Variables([][]float64{{1, 2, 3}, {4, 5}, {6}})
	require.Len(t, vars, 3)
	for i, v := range vars {
		assert.Equal(t, []int{3, 2, 1}, v.BlockPattern())
		n := v.Size()
		for blk, J := range v.Derivative() {
			nr, nc := J.Dims()
			assert.Equal(t, n, nr)
			if blk == i {
				requireJacEqual(t, utils.SpIdentity(n), J)
				assert.Equal(t, n, utils.SpNNZ(J))
			} else {
				assert.Equal(t, 0, utils.SpNNZ(J), "off-block %d of variable %d must be empty", blk, i)
				assert.Equal(t, vars[blk].Size(), nc)
			}
		}
	}
	assert.Equal(t, []float64{4, 5}, vars[1].Value())
}

func TestConstant(t *testing.T) {
	c := Constant([]float64{7, 8}, []int{3, 4})
	assert.Equal(t, []int{3, 4}, c.BlockPattern())
	for _, J := range c.Derivative() {
		assert.Equal(t, 0, utils.SpNNZ(J))
	}
	// Constants do not alias the input
	v := []float64{1, 2}
	c = Constant(v, []int{2})
	v[0] = 100
	assert.Equal(t, 1., c.Value()[0])
}

func TestAddSubRoundTrip(t *testing.T) {
	_, _, a, b := testOperands()
	r := a.Add(b).Sub(b)
	assert.InDeltaSlice(t, a.Value(), r.Value(), tol)
	for i := range a.Derivative() {
		requireJacEqual(t, a.Derivative()[i], r.Derivative()[i])
	}
}

func TestMulDivRoundTrip(t *testing.T) {
	_, _, a, b := testOperands()
	r := a.Mul(b).Div(b)
	assert.InDeltaSlice(t, a.Value(), r.Value(), tol)
	for i := range a.Derivative() {
		requireJacEqual(t, a.Derivative()[i], r.Derivative()[i])
	}
}

func TestProductRule(t *testing.T) {
	_, _, a, b := testOperands()
	r := a.Mul(b)
	assert.InDeltaSlice(t, []float64{3, -6, 20}, r.Value(), tol)
	for i := range r.Derivative() {
		var want mat.Dense
		var t1, t2 mat.Dense
		t1.Mul(dense(SpDiag(b.Value())), dense(a.Derivative()[i]))
		t2.Mul(dense(SpDiag(a.Value())), dense(b.Derivative()[i]))
		want.Add(&t1, &t2)
		assert.True(t, mat.EqualApprox(&want, dense(r.Derivative()[i]), 1.e-12), "block %d", i)
	}
}

func TestQuotientRule(t *testing.T) {
	_, _, a, b := testOperands()
	r := a.Div(b)
	n := a.Size()
	for i := range r.Derivative() {
		var (
			want   = mat.NewDense(n, b.BlockPattern()[i], nil)
			da, db = dense(a.Derivative()[i]), dense(b.Derivative()[i])
		)
		_, nc := want.Dims()
		for row := 0; row < n; row++ {
			av, bv := a.Value()[row], b.Value()[row]
			for col := 0; col < nc; col++ {
				want.Set(row, col, (bv*da.At(row, col)-av*db.At(row, col))/(bv*bv))
			}
		}
		assert.True(t, mat.EqualApprox(want, dense(r.Derivative()[i]), 1.e-12), "block %d", i)
	}
}

func TestVecDiv(t *testing.T) {
	_, _, _, b := testOperands()
	one := utils.ConstArray(3, 1)
	r := VecDiv(one, b)
	for i, bv := range b.Value() {
		assert.InDelta(t, 1/bv, r.Value()[i], tol)
	}
	// d(1/b) = -db/b^2
	for blk := range b.Derivative() {
		db := dense(b.Derivative()[blk])
		got := dense(r.Derivative()[blk])
		nr, nc := db.Dims()
		for i := 0; i < nr; i++ {
			bv := b.Value()[i]
			for j := 0; j < nc; j++ {
				assert.InDelta(t, -db.At(i, j)/(bv*bv), got.At(i, j), tol)
			}
		}
	}
}

func TestScaleAndVectorOps(t *testing.T) {
	p, _, _, _ := testOperands()
	{
		r := p.Scale(2)
		assert.Equal(t, []float64{2, 4, 6}, r.Value())
		requireJacEqual(t, SpDiag([]float64{2, 2, 2}), r.Derivative()[0])
	}
	{
		r := p.MulVec([]float64{1, 0, -1}).AddVec([]float64{10, 10, 10}).SubVec([]float64{1, 1, 1})
		assert.Equal(t, []float64{10, 9, 6}, r.Value())
		requireJacEqual(t, SpDiag([]float64{1, 0, -1}), r.Derivative()[0])
	}
	{ // Results own their Jacobian storage
		r := p.AddVec([]float64{1, 1, 1})
		s := p.SubVec([]float64{1, 1, 1})
		assert.NotSame(t, p.Derivative()[0], r.Derivative()[0])
		assert.NotSame(t, p.Derivative()[0], s.Derivative()[0])
		r.Derivative()[0].RawMatrix().Data[0] = 100
		s.Derivative()[0] = nil
		requireJacEqual(t, SpDiag([]float64{1, 1, 1}), p.Derivative()[0])
	}
	{
		r := p.Neg()
		assert.Equal(t, []float64{-1, -2, -3}, r.Value())
		requireJacEqual(t, SpDiag([]float64{-1, -1, -1}), r.Derivative()[0])
	}
}

func TestMatMulSubsetSuperset(t *testing.T) {
	p, q, _, _ := testOperands()
	// Two point difference operator over cells (0,1) and (1,2)
	grad := utils.SpFromTriplets(2, 3, utils.Index{0, 0, 1, 1}, utils.Index{0, 1, 1, 2}, []float64{1, -1, 1, -1})
	{
		r := MatMul(grad, p)
		assert.Equal(t, []float64{-1, -1}, r.Value())
		requireJacEqual(t, grad, r.Derivative()[0])
		assert.Equal(t, 0, utils.SpNNZ(r.Derivative()[1]))
	}
	{
		r := p.Subset(utils.Index{2, 0})
		assert.Equal(t, []float64{3, 1}, r.Value())
		assert.Equal(t, 1., r.Derivative()[0].At(0, 2))
		assert.Equal(t, 1., r.Derivative()[0].At(1, 0))
		assert.Equal(t, 2, utils.SpNNZ(r.Derivative()[0]))
	}
	{
		r := q.Superset(utils.Index{3, 1}, 4)
		assert.Equal(t, []float64{0, 5, 0, 4}, r.Value())
		assert.Equal(t, 1., r.Derivative()[1].At(3, 0))
		assert.Equal(t, 1., r.Derivative()[1].At(1, 1))
		assert.Equal(t, []int{3, 2}, r.BlockPattern())
	}
}

func TestPatternMismatchPanics(t *testing.T) {
	p, _, a, _ := testOperands()
	other := Variables([][]float64{{1, 2, 3}})[0]
	assert.Panics(t, func() { p.Add(other) })
	assert.Panics(t, func() { a.Mul(Constant([]float64{1, 2, 3}, []int{3, 3})) })
	assert.Panics(t, func() { p.Add(p.Subset(utils.Index{0})) })
	assert.Panics(t, func() { p.AddVec([]float64{1}) })
	assert.Panics(t, func() { Function([]float64{1, 2}, []*sparse.CSR{utils.SpZeros(3, 3)}) })
	assert.NotPanics(t, func() { p.Add(a) })
}
