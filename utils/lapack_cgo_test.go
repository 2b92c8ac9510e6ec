//go:build cgo && netlib
// +build cgo,netlib

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
	netblas "gonum.org/v1/netlib/blas/netlib"
)

// Run with go test -tags netlib ./utils
func TestNetlibBLAS(t *testing.T) {
	assert.IsType(t, netblas.Implementation{}, blas64.Implementation())
	var (
		A  = SpToDense(SpFromTriplets(2, 2, Index{0, 0, 1}, Index{0, 1, 1}, []float64{2, 1, 4}))
		lu mat.LU
		x  mat.VecDense
	)
	lu.Factorize(A)
	assert.Nil(t, lu.SolveVecTo(&x, false, mat.NewVecDense(2, []float64{4, 8})))
	assert.InDeltaSlice(t, []float64{1, 2}, x.RawVector().Data, 1.e-12)
}
