package props

import (
	"fmt"
	"math"

	"github.com/notargets/blackoil/utils"
)

/*
	ConstantCompressibility is an immiscible fluid: each phase has
		b(p)  = Bref * exp(C * (p - Pref))   (inverse formation volume factor)
		mu    = constant
		kr(s) = s^N                          (Corey)
	so the surface volume matrix is diagonal.
*/
type ConstantCompressibility struct {
	Bref, C, Mu []float64 // One per phase
	N           []int     // Corey exponent per phase
	Pref        float64
}

func NewConstantCompressibility(bref, c, mu []float64, n []int, pref float64) (f *ConstantCompressibility) {
	var (
		np = len(bref)
	)
	if np == 0 {
		panic(fmt.Errorf("fluid needs at least one phase"))
	}
	if len(c) != np || len(mu) != np || len(n) != np {
		panic(fmt.Errorf("fluid parameters per phase differ in length: bref %d, c %d, mu %d, n %d",
			np, len(c), len(mu), len(n)))
	}
	for i := 0; i < np; i++ {
		if bref[i] <= 0 || mu[i] <= 0 {
			panic(fmt.Errorf("phase %d: reference b and viscosity must be positive", i))
		}
	}
	f = &ConstantCompressibility{Bref: bref, C: c, Mu: mu, N: n, Pref: pref}
	return
}

func (f *ConstantCompressibility) NumPhases() int { return len(f.Bref) }

func (f *ConstantCompressibility) Matrix(p, z []float64, cells utils.Index) (A, dA []float64) {
	var (
		np    = f.NumPhases()
		block = np * np
	)
	f.checkCells(len(p), cells)
	A = make([]float64, len(cells)*block)
	dA = make([]float64, len(cells)*block)
	for n := range cells {
		for i := 0; i < np; i++ {
			b := f.Bref[i] * math.Exp(f.C[i]*(p[n]-f.Pref))
			A[n*block+i*np+i] = b
			dA[n*block+i*np+i] = f.C[i] * b
		}
	}
	return
}

func (f *ConstantCompressibility) Viscosity(p, z []float64, cells utils.Index) (mu, dmu []float64) {
	var (
		np = f.NumPhases()
	)
	f.checkCells(len(p), cells)
	mu = make([]float64, len(cells)*np)
	dmu = make([]float64, len(cells)*np)
	for n := range cells {
		copy(mu[n*np:(n+1)*np], f.Mu)
	}
	return
}

func (f *ConstantCompressibility) RelPerm(s []float64, cells utils.Index) (kr, dkrds []float64) {
	var (
		np    = f.NumPhases()
		block = np * np
	)
	if len(s) != len(cells)*np {
		panic(fmt.Errorf("RelPerm: %d saturations for %d cells and %d phases", len(s), len(cells), np))
	}
	kr = make([]float64, len(cells)*np)
	dkrds = make([]float64, len(cells)*block)
	for n := range cells {
		for i := 0; i < np; i++ {
			sat := utils.Clamp(s[n*np+i], 0, 1)
			kr[n*np+i] = utils.POW(sat, f.N[i])
			if f.N[i] > 0 {
				dkrds[n*block+i*np+i] = float64(f.N[i]) * utils.POW(sat, f.N[i]-1)
			}
		}
	}
	return
}

func (f *ConstantCompressibility) checkCells(npress int, cells utils.Index) {
	if npress != len(cells) {
		panic(fmt.Errorf("%d pressures for %d cells", npress, len(cells)))
	}
}
