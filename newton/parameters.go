package newton

import (
	"fmt"
	"strings"
)

type RelaxType uint8

const (
	Dampen RelaxType = iota
	SOR
)

var (
	RelaxTypeNames = map[string]RelaxType{
		"dampen": Dampen,
		"sor":    SOR,
	}
	RelaxTypePrintNames = []string{"Dampen", "SOR"}
)

func (rt RelaxType) Print() (txt string) {
	if int(rt) >= len(RelaxTypePrintNames) {
		return fmt.Sprintf("Unknown RelaxType(%d)", rt)
	}
	return RelaxTypePrintNames[rt]
}

func (rt RelaxType) String() string { return rt.Print() }

// ParseRelaxType accepts "dampen" and "sor", an empty label selects Dampen
func ParseRelaxType(label string) (rt RelaxType, err error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if len(label) == 0 {
		return Dampen, nil
	}
	var ok bool
	if rt, ok = RelaxTypeNames[label]; !ok {
		err = fmt.Errorf("unknown relaxation type %q, want dampen or sor", label)
	}
	return
}

type SolverParameters struct {
	RelaxType      RelaxType
	RelaxMax       float64 // Floor of the relaxation factor
	RelaxIncrement float64 // Decrement applied each time oscillation is detected
	RelaxRelTol    float64 // Relative tolerance of the oscillation detector
	MaxIter        int
	MinIter        int
}

func DefaultSolverParameters() SolverParameters {
	return SolverParameters{
		RelaxType:      Dampen,
		RelaxMax:       0.5,
		RelaxIncrement: 0.1,
		RelaxRelTol:    0.2,
		MaxIter:        15,
		MinIter:        1,
	}
}

func (sp SolverParameters) Validate() (err error) {
	switch {
	case sp.RelaxType != Dampen && sp.RelaxType != SOR:
		err = fmt.Errorf("unsupported relaxation type %s", sp.RelaxType.Print())
	case sp.RelaxMax <= 0 || sp.RelaxMax > 1:
		err = fmt.Errorf("relaxation floor %8.5f must be in (0,1]", sp.RelaxMax)
	case sp.RelaxIncrement < 0:
		err = fmt.Errorf("relaxation increment %8.5f must not be negative", sp.RelaxIncrement)
	case sp.MaxIter < 0 || sp.MinIter < 0:
		err = fmt.Errorf("iteration limits must not be negative, have min %d, max %d", sp.MinIter, sp.MaxIter)
	}
	return
}

func (sp SolverParameters) Print() {
	fmt.Printf("[%s]\t\t= Relaxation Type\n", sp.RelaxType.Print())
	fmt.Printf("%8.5f\t\t= Relaxation Floor\n", sp.RelaxMax)
	fmt.Printf("%8.5f\t\t= Relaxation Increment\n", sp.RelaxIncrement)
	fmt.Printf("%8.5f\t\t= Oscillation Relative Tolerance\n", sp.RelaxRelTol)
	fmt.Printf("[%d, %d]\t\t= Min, Max Newton Iterations\n", sp.MinIter, sp.MaxIter)
}
