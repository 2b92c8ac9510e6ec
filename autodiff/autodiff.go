package autodiff

import (
	"fmt"
	"strings"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/blackoil/utils"
)

/*
	ADB is a forward mode automatic differentiation value: a vector of values of
	length n and, for each group of primary unknowns, the n x m_i sparse Jacobian
	block of the values with respect to that group. The list of block column sizes
	(m_1, m_2, ...) is the block pattern; every operand of an expression must share it.

	An ADB is never modified after construction. All operators allocate new value and
	Jacobian storage, so results can be shared freely.
*/
type ADB struct {
	val []float64
	jac []*sparse.CSR
}

// Null is an empty placeholder with no values and no blocks
func Null() ADB {
	return ADB{val: []float64{}, jac: []*sparse.CSR{}}
}

// Constant has zero Jacobian blocks against every block of the pattern
func Constant(val []float64, blockPattern []int) (c ADB) {
	var (
		n = len(val)
	)
	c = ADB{
		val: utils.VecCopy(val),
		jac: make([]*sparse.CSR, len(blockPattern)),
	}
	for b, m := range blockPattern {
		c.jac[b] = utils.SpZeros(n, m)
	}
	return
}

// Variable is the index'th primary unknown within blockPattern: identity on its own
// block and zero everywhere else
func Variable(index int, val []float64, blockPattern []int) (v ADB) {
	var (
		n = len(val)
	)
	if index < 0 || index >= len(blockPattern) {
		panic(fmt.Errorf("variable index %d outside block pattern %v", index, blockPattern))
	}
	if blockPattern[index] != n {
		panic(fmt.Errorf("variable %d has %d values but its block is %d wide", index, n, blockPattern[index]))
	}
	v = ADB{
		val: utils.VecCopy(val),
		jac: make([]*sparse.CSR, len(blockPattern)),
	}
	for b, m := range blockPattern {
		if b == index {
			v.jac[b] = utils.SpIdentity(n)
		} else {
			v.jac[b] = utils.SpZeros(n, m)
		}
	}
	return
}

// Variables packs several groups of unknowns into one joint block pattern
func Variables(initialValues [][]float64) (vars []ADB) {
	var (
		blockPattern = make([]int, len(initialValues))
	)
	for i, v := range initialValues {
		blockPattern[i] = len(v)
	}
	vars = make([]ADB, len(initialValues))
	for i, v := range initialValues {
		vars[i] = Variable(i, v, blockPattern)
	}
	return
}

// Function injects a value whose derivatives were computed outside the AD algebra,
// e.g. property tables returning a value and a per row derivative
func Function(val []float64, jac []*sparse.CSR) (f ADB) {
	var (
		n = len(val)
	)
	for b, J := range jac {
		if J == nil {
			panic(fmt.Errorf("function: nil Jacobian block %d", b))
		}
		if nr, _ := J.Dims(); nr != n {
			panic(fmt.Errorf("function: Jacobian block %d has %d rows, value has %d", b, nr, n))
		}
	}
	f = ADB{
		val: utils.VecCopy(val),
		jac: make([]*sparse.CSR, len(jac)),
	}
	copy(f.jac, jac)
	return
}

// SpDiag promotes a vector to a diagonal matrix, the usual form of an injected
// per-row derivative
func SpDiag(d []float64) *sparse.CSR { return utils.SpDiag(d) }

func (a ADB) Value() []float64 { return a.val }

func (a ADB) Derivative() []*sparse.CSR { return a.jac }

func (a ADB) Size() int { return len(a.val) }

func (a ADB) NumBlocks() int { return len(a.jac) }

func (a ADB) BlockPattern() (bp []int) {
	bp = make([]int, len(a.jac))
	for b, J := range a.jac {
		_, bp[b] = J.Dims()
	}
	return
}

func (a ADB) checkCompatible(b ADB, op string) {
	if len(a.val) != len(b.val) {
		panic(fmt.Errorf("%s: size mismatch %d vs %d", op, len(a.val), len(b.val)))
	}
	a.checkPattern(b, op)
}

func (a ADB) checkPattern(b ADB, op string) {
	if len(a.jac) != len(b.jac) {
		panic(fmt.Errorf("%s: block pattern mismatch %v vs %v", op, a.BlockPattern(), b.BlockPattern()))
	}
	for i := range a.jac {
		_, ma := a.jac[i].Dims()
		_, mb := b.jac[i].Dims()
		if ma != mb {
			panic(fmt.Errorf("%s: block pattern mismatch %v vs %v", op, a.BlockPattern(), b.BlockPattern()))
		}
	}
}

func (a ADB) checkVec(v []float64, op string) {
	if len(v) != len(a.val) {
		panic(fmt.Errorf("%s: vector length %d does not match size %d", op, len(v), len(a.val)))
	}
}

func (a ADB) Add(b ADB) (r ADB) {
	a.checkCompatible(b, "Add")
	r = ADB{val: make([]float64, len(a.val)), jac: make([]*sparse.CSR, len(a.jac))}
	floats.AddTo(r.val, a.val, b.val)
	for i := range a.jac {
		r.jac[i] = utils.SpAdd(a.jac[i], b.jac[i], 1)
	}
	return
}

func (a ADB) Sub(b ADB) (r ADB) {
	a.checkCompatible(b, "Sub")
	r = ADB{val: make([]float64, len(a.val)), jac: make([]*sparse.CSR, len(a.jac))}
	floats.SubTo(r.val, a.val, b.val)
	for i := range a.jac {
		r.jac[i] = utils.SpAdd(a.jac[i], b.jac[i], -1)
	}
	return
}

// Mul is the elementwise product: d(ab) = diag(b) da + diag(a) db
func (a ADB) Mul(b ADB) (r ADB) {
	a.checkCompatible(b, "Mul")
	r = ADB{val: make([]float64, len(a.val)), jac: make([]*sparse.CSR, len(a.jac))}
	floats.MulTo(r.val, a.val, b.val)
	for i := range a.jac {
		r.jac[i] = utils.SpAdd(utils.SpScaleRows(b.val, a.jac[i]), utils.SpScaleRows(a.val, b.jac[i]), 1)
	}
	return
}

// Div is the elementwise quotient: d(a/b) = diag(1/b) da - diag(a/b^2) db
func (a ADB) Div(b ADB) (r ADB) {
	var (
		n     = len(a.val)
		inv   = make([]float64, n)
		ratio = make([]float64, n)
	)
	a.checkCompatible(b, "Div")
	r = ADB{val: make([]float64, n), jac: make([]*sparse.CSR, len(a.jac))}
	for i := 0; i < n; i++ {
		inv[i] = 1. / b.val[i]
		r.val[i] = a.val[i] * inv[i]
		ratio[i] = r.val[i] * inv[i]
	}
	for i := range a.jac {
		r.jac[i] = utils.SpAdd(utils.SpScaleRows(inv, a.jac[i]), utils.SpScaleRows(ratio, b.jac[i]), -1)
	}
	return
}

func (a ADB) Neg() ADB { return a.Scale(-1) }

func (a ADB) Scale(alpha float64) (r ADB) {
	r = ADB{val: utils.VecCopy(a.val), jac: make([]*sparse.CSR, len(a.jac))}
	floats.Scale(alpha, r.val)
	for i := range a.jac {
		r.jac[i] = utils.SpScale(alpha, a.jac[i])
	}
	return
}

func (a ADB) copyJac() (jac []*sparse.CSR) {
	jac = make([]*sparse.CSR, len(a.jac))
	for i := range a.jac {
		jac[i] = utils.SpScale(1, a.jac[i])
	}
	return
}

// AddVec adds a constant vector, leaving the Jacobian unchanged
func (a ADB) AddVec(v []float64) (r ADB) {
	a.checkVec(v, "AddVec")
	r = ADB{val: make([]float64, len(a.val)), jac: a.copyJac()}
	floats.AddTo(r.val, a.val, v)
	return
}

func (a ADB) SubVec(v []float64) (r ADB) {
	a.checkVec(v, "SubVec")
	r = ADB{val: make([]float64, len(a.val)), jac: a.copyJac()}
	floats.SubTo(r.val, a.val, v)
	return
}

// MulVec multiplies elementwise by a constant vector
func (a ADB) MulVec(v []float64) (r ADB) {
	a.checkVec(v, "MulVec")
	r = ADB{val: make([]float64, len(a.val)), jac: make([]*sparse.CSR, len(a.jac))}
	floats.MulTo(r.val, a.val, v)
	for i := range a.jac {
		r.jac[i] = utils.SpScaleRows(v, a.jac[i])
	}
	return
}

// VecDiv is the constant vector v divided elementwise by b: d(v/b) = -diag(v/b^2) db
func VecDiv(v []float64, b ADB) (r ADB) {
	var (
		n     = len(b.val)
		ratio = make([]float64, n)
	)
	b.checkVec(v, "VecDiv")
	r = ADB{val: make([]float64, n), jac: make([]*sparse.CSR, len(b.jac))}
	for i := 0; i < n; i++ {
		r.val[i] = v[i] / b.val[i]
		ratio[i] = -r.val[i] / b.val[i]
	}
	for i := range b.jac {
		r.jac[i] = utils.SpScaleRows(ratio, b.jac[i])
	}
	return
}

// MatMul applies a constant sparse operator, e.g. a discrete gradient or divergence
func MatMul(M *sparse.CSR, x ADB) (r ADB) {
	if _, nc := M.Dims(); nc != len(x.val) {
		panic(fmt.Errorf("MatMul: operator has %d columns, operand size is %d", nc, len(x.val)))
	}
	r = ADB{val: utils.SpMulVec(M, x.val), jac: make([]*sparse.CSR, len(x.jac))}
	for i := range x.jac {
		r.jac[i] = utils.SpMul(M, x.jac[i])
	}
	return
}

// Subset gathers rows I of the values and of every Jacobian block
func (a ADB) Subset(I utils.Index) (r ADB) {
	r = ADB{val: utils.VecSubset(a.val, I), jac: make([]*sparse.CSR, len(a.jac))}
	for i := range a.jac {
		r.jac[i] = utils.SpSubsetRows(a.jac[i], I)
	}
	return
}

// Superset scatters row n into row I[n] of a size N result
func (a ADB) Superset(I utils.Index, N int) (r ADB) {
	r = ADB{val: utils.VecSuperset(a.val, I, N), jac: make([]*sparse.CSR, len(a.jac))}
	for i := range a.jac {
		r.jac[i] = utils.SpSupersetRows(a.jac[i], I, N)
	}
	return
}

func (a ADB) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Value = %v\n", a.val)
	for i, J := range a.jac {
		nr, nc := J.Dims()
		if nr == 0 || nc == 0 {
			fmt.Fprintf(&b, "Jacobian[%d] = (%d x %d)\n", i, nr, nc)
			continue
		}
		fmt.Fprintf(&b, "Jacobian[%d] = \n%v\n", i, mat.Formatted(utils.SpToDense(J), mat.Squeeze()))
	}
	return b.String()
}
