package simulator

import (
	"errors"
	"fmt"
	"time"

	"github.com/notargets/blackoil/impes"
	"github.com/notargets/blackoil/newton"
	"github.com/notargets/blackoil/state"
	"github.com/notargets/blackoil/utils"
)

var ErrTooManyCuts = errors.New("simulator: time step cut limit reached")

// StepReport summarizes one report step; Cuts counts the step halvings it needed
type StepReport struct {
	Step             int
	Time, Dt         float64
	NewtonIterations int
	LinearIterations int
	Cuts             int
	AvgPressure      float64
}

type Report struct {
	Steps            []StepReport
	NewtonIterations int
	LinearIterations int
	Cuts             int
	WallTime         time.Duration
}

func (r *Report) Print() {
	fmt.Printf("Step      Time        Dt   Newton  Linear  Cuts   Avg Pressure\n")
	for _, s := range r.Steps {
		fmt.Printf("%4d  %8.4f  %8.4f  %7d %7d %5d  %13.6f\n",
			s.Step, s.Time, s.Dt, s.NewtonIterations, s.LinearIterations, s.Cuts, s.AvgPressure)
	}
	fmt.Printf("Total: %d Newton iterations, %d linear iterations, %d cuts, %v\n",
		r.NewtonIterations, r.LinearIterations, r.Cuts, r.WallTime)
}

func avgPressure(st *state.BlackoilState) (p float64) {
	for _, pc := range st.Pressure {
		p += pc
	}
	return p / float64(len(st.Pressure))
}

// Impes advances nSteps steps of length dt. Each step solves the pressure equation
// and then transports the surface volumes. A linear solver failure ends the run.
func Impes(im *impes.ImpesTPFAAD, st *state.BlackoilState, ws *state.WellState,
	dt float64, nSteps int, verbose bool) (rep Report, err error) {
	start := time.Now()
	defer func() {
		rep.WallTime = time.Since(start)
		if verbose {
			fmt.Println(utils.GetMemUsage())
		}
	}()
	for n := 0; n < nSteps; n++ {
		if err = im.Solve(dt, st, ws); err != nil {
			err = fmt.Errorf("step %d: %w", n+1, err)
			return
		}
		im.Transport(dt, st)
		utils.IsNanPanic(st.Pressure)
		sr := StepReport{
			Step:             n + 1,
			Time:             float64(n+1) * dt,
			Dt:               dt,
			LinearIterations: im.LastReport.Iterations,
			AvgPressure:      avgPressure(st),
		}
		rep.Steps = append(rep.Steps, sr)
		rep.LinearIterations += sr.LinearIterations
		if verbose {
			fmt.Printf("Step %d, Time = %8.4f, Avg Pressure = %12.6f, Volume Error = %8.5e\n",
				sr.Step, sr.Time, sr.AvgPressure, im.MaxVolumeError())
		}
	}
	return
}

/*
	FullyImplicit advances nSteps steps of length dt with a Newton solver. A failed
	step is restored from the saved state and retried as two half steps, down to
	maxCuts halvings, after which ErrTooManyCuts is returned.
*/
func FullyImplicit(solver *newton.Solver, st *state.BlackoilState, ws *state.WellState,
	dt float64, nSteps, maxCuts int, verbose bool) (rep Report, err error) {
	start := time.Now()
	defer func() {
		rep.WallTime = time.Since(start)
		if verbose {
			fmt.Println(utils.GetMemUsage())
		}
	}()
	if verbose {
		solver.Parameters().Print()
	}
	for n := 0; n < nSteps; n++ {
		sr := StepReport{Step: n + 1, Time: float64(n+1) * dt, Dt: dt}
		newtonBefore, linearBefore := solver.NewtonIterations(), solver.LinearIterations()
		if err = advance(solver, st, ws, dt, 0, maxCuts, &sr, verbose); err != nil {
			err = fmt.Errorf("step %d: %w", n+1, err)
			return
		}
		sr.NewtonIterations = solver.NewtonIterations() - newtonBefore
		sr.LinearIterations = solver.LinearIterations() - linearBefore
		sr.AvgPressure = avgPressure(st)
		rep.Steps = append(rep.Steps, sr)
		rep.NewtonIterations += sr.NewtonIterations
		rep.LinearIterations += sr.LinearIterations
		rep.Cuts += sr.Cuts
		if verbose {
			fmt.Printf("Step %d, Time = %8.4f, Avg Pressure = %12.6f, Newton Iterations = %d\n",
				sr.Step, sr.Time, sr.AvgPressure, sr.NewtonIterations)
		}
	}
	return
}

func advance(solver *newton.Solver, st *state.BlackoilState, ws *state.WellState,
	dt float64, cuts, maxCuts int, sr *StepReport, verbose bool) (err error) {
	var (
		stSave = st.Copy()
		wsSave = ws.Copy()
	)
	lin, serr := solver.Step(dt)
	if lin != newton.StepFailed {
		return
	}
	if cuts >= maxCuts {
		return fmt.Errorf("%w after %d cuts: %w", ErrTooManyCuts, cuts, serr)
	}
	st.CopyFrom(stSave)
	ws.CopyFrom(wsSave)
	sr.Cuts++
	if verbose {
		fmt.Printf("Step failed (%v), retrying with dt = %8.5f\n", serr, 0.5*dt)
	}
	for half := 0; half < 2; half++ {
		if err = advance(solver, st, ws, 0.5*dt, cuts+1, maxCuts, sr, verbose); err != nil {
			return
		}
	}
	return
}
