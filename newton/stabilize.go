package newton

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Oscillation is the outcome of one oscillation check
type Oscillation struct {
	Oscillate  bool
	Stagnate   bool   // Observability only, no remedy is attached
	Flagged    []bool // Per phase
	NumFlagged int
}

/*
	DetectNewtonOscillations compares the residual norms of the last three iterates,
	F0 (current), F1 and F2, phase by phase:
		d1 = |(F0 - F2) / F0|, d2 = |(F0 - F1) / F0|
	A phase oscillates when d1 < relTol < d2: it came back to where it was two
	iterates ago after moving away on the last one. The step oscillates when more
	than one phase does. It stagnates unless some phase has |(F1 - F2) / F2| > 1e-3.
	Nothing is flagged before the third snapshot.
*/
func DetectNewtonOscillations(history [][]float64, it, numPhases int, relTol float64) (osc Oscillation) {
	osc.Flagged = make([]bool, numPhases)
	if it < 2 {
		return
	}
	if it >= len(history) {
		panic(fmt.Errorf("iteration %d has no residual history, %d snapshots stored", it, len(history)))
	}
	var (
		F0, F1, F2 = history[it], history[it-1], history[it-2]
	)
	osc.Stagnate = true
	for p := 0; p < numPhases; p++ {
		d1 := math.Abs((F0[p] - F2[p]) / F0[p])
		d2 := math.Abs((F0[p] - F1[p]) / F0[p])
		if d1 < relTol && relTol < d2 {
			osc.Flagged[p] = true
			osc.NumFlagged++
		}
		osc.Stagnate = osc.Stagnate && !(math.Abs((F1[p]-F2[p])/F2[p]) > 1.e-3)
	}
	osc.Oscillate = osc.NumFlagged > 1
	return
}

/*
	StabilizeNewton relaxes the update dx in place and stores the unrelaxed dx in
	dxOld for the next call:
		Dampen: dx = omega*dx
		SOR:    dx = omega*dx + (1-omega)*dxOld
	omega == 1 leaves dx as it is.
*/
func StabilizeNewton(dx, dxOld []float64, omega float64, rt RelaxType) {
	if len(dx) != len(dxOld) {
		panic(fmt.Errorf("update has %d entries, previous update %d", len(dx), len(dxOld)))
	}
	if rt != Dampen && rt != SOR {
		panic(fmt.Errorf("can only handle Dampen and SOR relaxation, have %s", rt.Print()))
	}
	tmp := make([]float64, len(dxOld))
	copy(tmp, dxOld)
	copy(dxOld, dx)
	if omega == 1 {
		return
	}
	switch rt {
	case Dampen:
		floats.Scale(omega, dx)
	case SOR:
		floats.Scale(omega, dx)
		floats.AddScaled(dx, 1-omega, tmp)
	}
}
