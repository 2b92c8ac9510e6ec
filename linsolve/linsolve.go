package linsolve

import (
	"fmt"
	"math"
	"strings"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/blackoil/utils"
)

type Report struct {
	Converged  bool
	Iterations int
	Residual   float64 // Relative residual norm |b - Ax| / |b|
}

// LinearSolver solves A x = b for a square compressed row matrix
type LinearSolver interface {
	Solve(A *sparse.CSR, b []float64) (x []float64, rep Report)
}

// New selects a solver by name, "lu" or "bicgstab"
func New(name string, tol float64, maxIter int) (ls LinearSolver, err error) {
	switch strings.ToLower(name) {
	case "lu", "direct":
		ls = DirectLU{}
	case "bicgstab":
		ls = NewBiCGStab(tol, maxIter)
	default:
		err = fmt.Errorf("unknown linear solver %q, want lu or bicgstab", name)
	}
	return
}

func checkSystem(A *sparse.CSR, b []float64) (n int) {
	nr, nc := A.Dims()
	if nr != nc {
		panic(fmt.Errorf("linear system matrix is %d x %d, must be square", nr, nc))
	}
	if len(b) != nr {
		panic(fmt.Errorf("right hand side has %d entries for %d rows", len(b), nr))
	}
	return nr
}

func relResidual(A *sparse.CSR, x, b []float64) float64 {
	r := utils.SpMulVec(A, x)
	floats.Sub(r, b)
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		return floats.Norm(r, 2)
	}
	return floats.Norm(r, 2) / bnorm
}

// DirectLU densifies the matrix and factors it with partial pivoting
type DirectLU struct{}

func (DirectLU) Solve(A *sparse.CSR, b []float64) (x []float64, rep Report) {
	var (
		n  = checkSystem(A, b)
		lu mat.LU
		xv mat.VecDense
	)
	if n == 0 {
		return []float64{}, Report{Converged: true}
	}
	lu.Factorize(utils.SpToDense(A))
	if err := lu.SolveVecTo(&xv, false, mat.NewVecDense(n, utils.VecCopy(b))); err != nil {
		// Singular or badly conditioned, report the attempt as failed
		x = make([]float64, n)
		rep = Report{Converged: false, Iterations: 1, Residual: math.Inf(1)}
		return
	}
	x = make([]float64, n)
	for i := range x {
		x[i] = xv.AtVec(i)
	}
	rep = Report{Converged: true, Iterations: 1, Residual: relResidual(A, x, b)}
	return
}
