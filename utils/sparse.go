package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

/*
	Sparse helpers operate on *sparse.CSR and always return freshly allocated
	matrices; no routine here changes its inputs. Column order within a row is not
	guaranteed, consumers go through At, MulVecTo or the raw arrays row by row.
*/

type DOK struct {
	M    *sparse.DOK
	name string
}

func NewDOK(nr, nc int, name ...string) (R DOK) {
	R = DOK{
		M:    sparse.NewDOK(nr, nc),
		name: "unnamed",
	}
	if len(name) != 0 {
		R.name = name[0]
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }

// Accumulate adds val into (i,j), matching triplet assembly semantics
func (m DOK) Accumulate(i, j int, val float64) {
	var (
		nr, nc = m.Dims()
	)
	if i < 0 || i >= nr || j < 0 || j >= nc {
		panic(fmt.Errorf("index (%d,%d) out of bounds for %d x %d matrix \"%s\"", i, j, nr, nc, m.name))
	}
	m.M.Set(i, j, m.M.At(i, j)+val)
}

func (m DOK) ToCSR() *sparse.CSR {
	return m.M.ToCSR()
}

func SpZeros(nr, nc int) *sparse.CSR {
	return sparse.NewCSR(nr, nc, make([]int, nr+1), []int{}, []float64{})
}

func SpIdentity(n int) *sparse.CSR {
	return SpDiag(ConstArray(n, 1))
}

// SpDiag promotes a vector to a square diagonal matrix
func SpDiag(d []float64) *sparse.CSR {
	var (
		n      = len(d)
		indptr = make([]int, n+1)
		ind    = make([]int, n)
		data   = make([]float64, n)
	)
	for i, val := range d {
		ind[i] = i
		data[i] = val
		indptr[i+1] = i + 1
	}
	return sparse.NewCSR(n, n, indptr, ind, data)
}

// SpFromTriplets sums duplicate entries
func SpFromTriplets(nr, nc int, rows, cols Index, vals []float64) *sparse.CSR {
	if len(rows) != len(cols) || len(rows) != len(vals) {
		panic(fmt.Errorf("triplet lengths differ: rows %d, cols %d, vals %d", len(rows), len(cols), len(vals)))
	}
	dok := NewDOK(nr, nc, "triplets")
	for n := range rows {
		dok.Accumulate(rows[n], cols[n], vals[n])
	}
	return dok.ToCSR()
}

func SpNNZ(a *sparse.CSR) int { return len(a.RawMatrix().Data) }

func sameDims(a, b *sparse.CSR, op string) (nr, nc int) {
	nr, nc = a.Dims()
	nrB, ncB := b.Dims()
	if nr != nrB || nc != ncB {
		panic(fmt.Errorf("%s: dimension mismatch %d x %d vs %d x %d", op, nr, nc, nrB, ncB))
	}
	return
}

// SpAdd returns a + alpha*b
func SpAdd(a, b *sparse.CSR, alpha float64) *sparse.CSR {
	var (
		c sparse.CSR
	)
	sameDims(a, b, "SpAdd")
	switch alpha {
	case 1:
		c.Add(a, b)
	case -1:
		c.Sub(a, b)
	default:
		c.Add(a, SpScale(alpha, b))
	}
	return &c
}

func SpScale(alpha float64, a *sparse.CSR) *sparse.CSR {
	var (
		nr, nc = a.Dims()
		ra     = a.RawMatrix()
		data   = make([]float64, len(ra.Data))
	)
	for k, val := range ra.Data {
		data[k] = alpha * val
	}
	return sparse.NewCSR(nr, nc, copyInts(ra.Indptr), copyInts(ra.Ind), data)
}

// SpScaleRows returns diag(d)*a
func SpScaleRows(d []float64, a *sparse.CSR) *sparse.CSR {
	var (
		nr, nc = a.Dims()
		ra     = a.RawMatrix()
		data   = make([]float64, len(ra.Data))
	)
	if len(d) != nr {
		panic(fmt.Errorf("SpScaleRows: %d scale factors for %d rows", len(d), nr))
	}
	for i := 0; i < nr; i++ {
		for k := ra.Indptr[i]; k < ra.Indptr[i+1]; k++ {
			data[k] = d[i] * ra.Data[k]
		}
	}
	return sparse.NewCSR(nr, nc, copyInts(ra.Indptr), copyInts(ra.Ind), data)
}

// SpMul returns the sparse product a*b
func SpMul(a, b *sparse.CSR) *sparse.CSR {
	var (
		nrA, ncA = a.Dims()
		nrB, ncB = b.Dims()
		c        sparse.CSR
	)
	if ncA != nrB {
		panic(fmt.Errorf("SpMul: inner dimension mismatch %d x %d * %d x %d", nrA, ncA, nrB, ncB))
	}
	c.Mul(a, b)
	return &c
}

// SpTranspose converts the transposed view, which shares storage with a, to a new CSR
func SpTranspose(a *sparse.CSR) *sparse.CSR {
	return a.T().(*sparse.CSC).ToCSR()
}

// SpSubsetRows gathers the rows listed in I, in order
func SpSubsetRows(a *sparse.CSR, I Index) *sparse.CSR {
	var (
		nr, nc = a.Dims()
		ra     = a.RawMatrix()
		indptr = make([]int, len(I)+1)
		ind    []int
		data   []float64
	)
	for n, i := range I {
		if i < 0 || i >= nr {
			panic(fmt.Errorf("SpSubsetRows: row %d out of range [0,%d)", i, nr))
		}
		ind = append(ind, ra.Ind[ra.Indptr[i]:ra.Indptr[i+1]]...)
		data = append(data, ra.Data[ra.Indptr[i]:ra.Indptr[i+1]]...)
		indptr[n+1] = len(ind)
	}
	if ind == nil {
		ind, data = []int{}, []float64{}
	}
	return sparse.NewCSR(len(I), nc, indptr, ind, data)
}

// SpSupersetRows scatters row n of a into row I[n] of an nrNew row matrix, summing repeats
func SpSupersetRows(a *sparse.CSR, I Index, nrNew int) *sparse.CSR {
	var (
		nr, nc = a.Dims()
		ra     = a.RawMatrix()
		dok    = NewDOK(nrNew, nc, "superset")
	)
	if len(I) != nr {
		panic(fmt.Errorf("SpSupersetRows: %d target rows for %d source rows", len(I), nr))
	}
	for n, i := range I {
		for k := ra.Indptr[n]; k < ra.Indptr[n+1]; k++ {
			dok.Accumulate(i, ra.Ind[k], ra.Data[k])
		}
	}
	return dok.ToCSR()
}

func SpMulVec(a *sparse.CSR, x []float64) (y []float64) {
	var (
		nr, nc = a.Dims()
	)
	if len(x) != nc {
		panic(fmt.Errorf("SpMulVec: vector length %d does not match %d columns", len(x), nc))
	}
	y = make([]float64, nr)
	a.MulVecTo(y, false, x)
	return
}

// SpBlockAssemble joins a grid of blocks into one matrix; every block in a block row
// shares its row count and every block in a block column shares its column count
func SpBlockAssemble(blocks [][]*sparse.CSR) *sparse.CSR {
	var (
		nbr     = len(blocks)
		rowOffs = make([]int, nbr+1)
		colOffs []int
	)
	if nbr == 0 {
		return SpZeros(0, 0)
	}
	nbc := len(blocks[0])
	colOffs = make([]int, nbc+1)
	for bi := 0; bi < nbr; bi++ {
		if len(blocks[bi]) != nbc {
			panic(fmt.Errorf("SpBlockAssemble: block row %d has %d blocks, want %d", bi, len(blocks[bi]), nbc))
		}
		nr, _ := blocks[bi][0].Dims()
		rowOffs[bi+1] = rowOffs[bi] + nr
	}
	for bj := 0; bj < nbc; bj++ {
		_, nc := blocks[0][bj].Dims()
		colOffs[bj+1] = colOffs[bj] + nc
	}
	dok := NewDOK(rowOffs[nbr], colOffs[nbc], "block system")
	for bi := 0; bi < nbr; bi++ {
		for bj := 0; bj < nbc; bj++ {
			var (
				b      = blocks[bi][bj]
				nr, nc = b.Dims()
				rb     = b.RawMatrix()
			)
			if nr != rowOffs[bi+1]-rowOffs[bi] || nc != colOffs[bj+1]-colOffs[bj] {
				panic(fmt.Errorf("SpBlockAssemble: block (%d,%d) is %d x %d, want %d x %d",
					bi, bj, nr, nc, rowOffs[bi+1]-rowOffs[bi], colOffs[bj+1]-colOffs[bj]))
			}
			for i := 0; i < nr; i++ {
				for k := rb.Indptr[i]; k < rb.Indptr[i+1]; k++ {
					dok.Accumulate(rowOffs[bi]+i, colOffs[bj]+rb.Ind[k], rb.Data[k])
				}
			}
		}
	}
	return dok.ToCSR()
}

func SpToDense(a *sparse.CSR) *mat.Dense {
	var (
		nr, nc = a.Dims()
		ra     = a.RawMatrix()
	)
	if nr == 0 || nc == 0 {
		panic(fmt.Errorf("SpToDense: cannot densify an empty %d x %d matrix", nr, nc))
	}
	D := mat.NewDense(nr, nc, nil)
	for i := 0; i < nr; i++ {
		for k := ra.Indptr[i]; k < ra.Indptr[i+1]; k++ {
			D.Set(i, ra.Ind[k], D.At(i, ra.Ind[k])+ra.Data[k])
		}
	}
	return D
}

func copyInts(a []int) (r []int) {
	r = make([]int, len(a))
	copy(r, a)
	return
}
