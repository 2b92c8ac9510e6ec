package utils

import (
	"fmt"
)

type Index []int

func NewIndex(N int) (I Index) {
	return make(Index, N)
}

func NewRange(rmin, rmax int) (r Index) {
	var (
		size = rmax - rmin + 1 // INCLUSIVE RANGE
	)
	if size < 0 {
		size = 0
	}
	r = make(Index, size)
	for i := range r {
		r[i] = i + rmin
	}
	return
}

// AllCells is the zero based index of N cells
func AllCells(N int) Index {
	return NewRange(0, N-1)
}

// CheckBounds returns an error for the first entry outside [0,N)
func (I Index) CheckBounds(N int) (err error) {
	for i, val := range I {
		if val < 0 || val >= N {
			err = fmt.Errorf("dimension bounds error, index[%d] = %v outside [0,%d)", i, val, N)
			return
		}
	}
	return
}
