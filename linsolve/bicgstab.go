package linsolve

import (
	"fmt"

	"github.com/james-bowman/sparse"
	iterative "gonum.org/v1/exp/linsolve"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/blackoil/utils"
)

// BiCGStab is a Jacobi preconditioned stabilized bi-conjugate gradient solver
type BiCGStab struct {
	Tolerance float64 // On the relative residual
	MaxIter   int
	Verbose   bool
}

func NewBiCGStab(tol float64, maxIter int) *BiCGStab {
	if tol <= 0 || tol >= 1 {
		tol = 1.e-10
	}
	if maxIter <= 0 {
		maxIter = 1000
	}
	return &BiCGStab{Tolerance: tol, MaxIter: maxIter}
}

// csrOperator presents a compressed row matrix to the iterative methods
type csrOperator struct {
	A *sparse.CSR
}

func (op csrOperator) MulVecTo(dst *mat.VecDense, trans bool, x mat.Vector) {
	var (
		nr, nc = op.A.Dims()
	)
	if trans {
		nr, nc = nc, nr
	}
	xs := make([]float64, nc)
	for i := range xs {
		xs[i] = x.AtVec(i)
	}
	y := make([]float64, nr)
	op.A.MulVecTo(y, trans, xs)
	if dst.IsEmpty() {
		dst.ReuseAsVec(nr)
	}
	for i, val := range y {
		dst.SetVec(i, val)
	}
}

func inverseDiagonal(A *sparse.CSR, n int) (dinv *mat.VecDense) {
	var (
		ra = A.RawMatrix()
	)
	dinv = mat.NewVecDense(n, utils.ConstArray(n, 1))
	for i := 0; i < n; i++ {
		for k := ra.Indptr[i]; k < ra.Indptr[i+1]; k++ {
			if ra.Ind[k] == i && ra.Data[k] != 0 {
				dinv.SetVec(i, 1./ra.Data[k])
			}
		}
	}
	return
}

func (bs *BiCGStab) Solve(A *sparse.CSR, b []float64) (x []float64, rep Report) {
	var (
		n    = checkSystem(A, b)
		dinv *mat.VecDense
		xv   *mat.VecDense
	)
	x = make([]float64, n)
	if n == 0 || utils.VecMaxAbs(b) == 0 {
		return x, Report{Converged: true}
	}
	dinv = inverseDiagonal(A, n)
	xv = mat.NewVecDense(n, nil)
	settings := &iterative.Settings{
		Dst:           xv,
		Tolerance:     bs.Tolerance,
		MaxIterations: bs.MaxIter,
		PreconSolve: func(dst *mat.VecDense, trans bool, rhs mat.Vector) error {
			dst.MulElemVec(dinv, rhs)
			return nil
		},
	}
	res, err := iterative.Iterative(csrOperator{A: A}, mat.NewVecDense(n, utils.VecCopy(b)), &iterative.BiCGStab{}, settings)
	if res != nil {
		rep.Iterations = res.Stats.Iterations
	}
	for i := range x {
		x[i] = xv.AtVec(i)
	}
	rep.Residual = relResidual(A, x, b)
	rep.Converged = err == nil
	if bs.Verbose {
		fmt.Printf("BiCGStab: %d iterations, relative residual %8.5e, converged %v\n",
			rep.Iterations, rep.Residual, rep.Converged)
	}
	return
}
