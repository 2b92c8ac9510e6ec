package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

func VecCopy(v []float64) (r []float64) {
	r = make([]float64, len(v))
	copy(r, v)
	return
}

// VecSubset gathers v[I[n]] into r[n]
func VecSubset(v []float64, I Index) (r []float64) {
	r = make([]float64, len(I))
	for n, i := range I {
		if i < 0 || i >= len(v) {
			panic(fmt.Errorf("VecSubset: index %d out of range [0,%d)", i, len(v)))
		}
		r[n] = v[i]
	}
	return
}

// VecSuperset scatters v[n] into r[I[n]] for a length N result, summing repeated indices
func VecSuperset(v []float64, I Index, N int) (r []float64) {
	if len(v) != len(I) {
		panic(fmt.Errorf("VecSuperset: %d values for %d indices", len(v), len(I)))
	}
	r = make([]float64, N)
	for n, i := range I {
		if i < 0 || i >= N {
			panic(fmt.Errorf("VecSuperset: index %d out of range [0,%d)", i, N))
		}
		r[i] += v[n]
	}
	return
}

func VecConcat(v1, v2 []float64) (r []float64) {
	r = make([]float64, 0, len(v1)+len(v2))
	r = append(r, v1...)
	r = append(r, v2...)
	return
}

// VecColumn extracts column j of a row-major nr x nc array
func VecColumn(data []float64, nr, nc, j int) (r []float64) {
	if len(data) != nr*nc {
		panic(fmt.Errorf("VecColumn: data length %d is not %d x %d", len(data), nr, nc))
	}
	r = make([]float64, nr)
	for i := 0; i < nr; i++ {
		r[i] = data[j+nc*i]
	}
	return
}

func VecMaxAbs(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, math.Inf(1))
}

func VecFind(v []float64, op EvalOp, target float64, abs bool) (I Index) {
	for i, val := range v {
		if abs {
			val = math.Abs(val)
		}
		var hit bool
		switch op {
		case Equal:
			hit = val == target
		case Less:
			hit = val < target
		case Greater:
			hit = val > target
		case LessOrEqual:
			hit = val <= target
		case GreaterOrEqual:
			hit = val >= target
		}
		if hit {
			I = append(I, i)
		}
	}
	return
}
