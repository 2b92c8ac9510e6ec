package newton

import (
	"errors"
	"fmt"
)

// StepFailed is returned by Step when the caller has to restart the step, usually
// with a shorter time step
const StepFailed = -1

var (
	ErrNotConverged = errors.New("newton: no converged solution within the iteration limit")
	ErrLinearSolve  = errors.New("newton: linear solve failed")
)

/*
	Model is the nonlinear system a Solver drives. Assemble builds the residual and
	its Jacobian at the current state, SolveJacobianSystem returns the Newton update
	dx of length SizeNonLinear, and UpdateState applies -dx subject to any model
	specific chopping. ComputeResidualNorms returns at least NumPhases norms.
*/
type Model interface {
	PrepareStep(dt float64)
	Assemble(initial bool)
	ComputeResidualNorms() []float64
	GetConvergence(dt float64, iteration int) bool
	SizeNonLinear() int
	SolveJacobianSystem() (dx []float64, err error)
	LinearIterationsLastSolve() int
	UpdateState(dx []float64)
	AfterStep(dt float64)
	NumPhases() int
	TerminalOutputEnabled() bool
}

// Solver exclusively owns its Model; neither may be shared between goroutines
type Solver struct {
	param                    SolverParameters
	model                    Model
	newtonIterations         int
	linearIterations         int
	newtonIterationsLastStep int
	linearIterationsLastStep int
	LastOscillation          Oscillation
}

func NewSolver(param SolverParameters, model Model) (s *Solver) {
	if err := param.Validate(); err != nil {
		panic(err)
	}
	s = &Solver{param: param, model: model}
	return
}

/*
	Step advances the model over dt. On success it returns the number of linear
	iterations used. When the iteration limit is reached without convergence, or a
	linear solve fails, it returns StepFailed and the model state is left at the last
	iterate; the caller decides how to restart.
*/
func (s *Solver) Step(dt float64) (linearIterations int, err error) {
	var (
		m       = s.model
		history [][]float64
		omega   = 1.
	)
	m.PrepareStep(dt)
	m.Assemble(true)
	history = append(history, m.ComputeResidualNorms())

	iteration := 0
	converged := m.GetConvergence(dt, iteration)
	dxOld := make([]float64, m.SizeNonLinear())

	for (!converged && iteration < s.param.MaxIter) || s.param.MinIter > iteration {
		dx, lerr := m.SolveJacobianSystem()
		if lerr != nil {
			if m.TerminalOutputEnabled() {
				fmt.Printf("WARNING: Linear solve failed in Newton iteration %d: %v\n", iteration, lerr)
			}
			return StepFailed, fmt.Errorf("%w: %w", ErrLinearSolve, lerr)
		}
		if len(dx) != len(dxOld) {
			panic(fmt.Errorf("model returned an update of %d entries, its size is %d", len(dx), len(dxOld)))
		}
		linearIterations += m.LinearIterationsLastSolve()

		s.LastOscillation = DetectNewtonOscillations(history, iteration, m.NumPhases(), s.param.RelaxRelTol)
		if s.LastOscillation.Oscillate {
			omega -= s.param.RelaxIncrement
			if omega < s.param.RelaxMax {
				omega = s.param.RelaxMax
			}
			if m.TerminalOutputEnabled() {
				fmt.Printf(" Oscillating behavior detected: Relaxation set to %g\n", omega)
			}
		}
		StabilizeNewton(dx, dxOld, omega, s.param.RelaxType)

		m.UpdateState(dx)

		m.Assemble(false)
		history = append(history, m.ComputeResidualNorms())
		iteration++
		converged = m.GetConvergence(dt, iteration)
	}

	if !converged {
		if m.TerminalOutputEnabled() {
			fmt.Printf("WARNING: Failed to compute converged solution in %d iterations.\n", iteration)
		}
		return StepFailed, ErrNotConverged
	}

	s.linearIterations += linearIterations
	s.newtonIterations += iteration
	s.linearIterationsLastStep = linearIterations
	s.newtonIterationsLastStep = iteration

	m.AfterStep(dt)
	return
}

func (s *Solver) Parameters() SolverParameters { return s.param }

func (s *Solver) NewtonIterations() int { return s.newtonIterations }

func (s *Solver) LinearIterations() int { return s.linearIterations }

func (s *Solver) NewtonIterationsLastStep() int { return s.newtonIterationsLastStep }

func (s *Solver) LinearIterationsLastStep() int { return s.linearIterationsLastStep }
