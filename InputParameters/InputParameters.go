package InputParameters

import (
	"fmt"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/blackoil/grid"
	"github.com/notargets/blackoil/linsolve"
	"github.com/notargets/blackoil/newton"
	"github.com/notargets/blackoil/props"
	"github.com/notargets/blackoil/state"
	"github.com/notargets/blackoil/utils"
)

// ghodss/yaml converts the deck to JSON before decoding, so the json tags name the keys

type GridParameters struct {
	Nx           int     `json:"Nx"`
	Ny           int     `json:"Ny"`
	Nz           int     `json:"Nz"`
	Dx           float64 `json:"Dx"`
	Dy           float64 `json:"Dy"`
	Dz           float64 `json:"Dz"`
	Permeability float64 `json:"Permeability"`
	Porosity     float64 `json:"Porosity"`
}

// FluidParameters has one entry per phase in each list
type FluidParameters struct {
	Bref            []float64 `json:"Bref"`
	Compressibility []float64 `json:"Compressibility"`
	Viscosity       []float64 `json:"Viscosity"`
	CoreyExponent   []int     `json:"CoreyExponent"`
	Pref            float64   `json:"Pref"`
}

type WellParameters struct {
	Name         string    `json:"Name"`
	Perforations [][3]int  `json:"Perforations"` // (i,j,k) of each perforated cell
	WI           []float64 `json:"WI"`
	BHP          float64   `json:"BHP"`
}

// Pointer fields distinguish an explicit zero from an absent key
type NewtonDeck struct {
	RelaxType      string   `json:"RelaxType"`
	RelaxMax       float64  `json:"RelaxMax"`
	RelaxIncrement *float64 `json:"RelaxIncrement"`
	RelaxRelTol    float64  `json:"RelaxRelTol"`
	MaxIter        int      `json:"MaxIter"`
	MinIter        *int     `json:"MinIter"`
	Tolerance      float64  `json:"Tolerance"`
	MaxDp          float64  `json:"MaxDp"`
}

type LinearSolverDeck struct {
	Type          string  `json:"Type"`
	Tolerance     float64 `json:"Tolerance"`
	MaxIterations int     `json:"MaxIterations"`
}

// Parameters obtained from the YAML input file
type InputParametersReservoir struct {
	Title             string           `json:"Title"`
	Grid              GridParameters   `json:"Grid"`
	Fluid             FluidParameters  `json:"Fluid"`
	Wells             []WellParameters `json:"Wells"`
	InitialPressure   float64          `json:"InitialPressure"`
	InitialSaturation []float64        `json:"InitialSaturation"`
	TimeStep          float64          `json:"TimeStep"`
	NumSteps          int              `json:"NumSteps"`
	MaxCuts           *int             `json:"MaxCuts"`
	Newton            NewtonDeck       `json:"Newton"`
	LinearSolver      LinearSolverDeck `json:"LinearSolver"`
}

func (ip *InputParametersReservoir) Parse(data []byte) (err error) {
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	ip.setDefaults()
	return ip.Validate()
}

func (ip *InputParametersReservoir) setDefaults() {
	var (
		nd = newton.DefaultSolverParameters()
		gp = &ip.Grid
	)
	for _, n := range []*int{&gp.Nx, &gp.Ny, &gp.Nz} {
		if *n == 0 {
			*n = 1
		}
	}
	for _, d := range []*float64{&gp.Dx, &gp.Dy, &gp.Dz, &gp.Permeability} {
		if *d == 0 {
			*d = 1
		}
	}
	if gp.Porosity == 0 {
		gp.Porosity = 0.2
	}
	if ip.NumSteps == 0 {
		ip.NumSteps = 1
	}
	if ip.MaxCuts == nil {
		maxCuts := 4
		ip.MaxCuts = &maxCuts
	}
	if len(ip.InitialSaturation) == 0 && len(ip.Fluid.Bref) == 1 {
		ip.InitialSaturation = []float64{1}
	}
	nw := &ip.Newton
	if nw.RelaxMax == 0 {
		nw.RelaxMax = nd.RelaxMax
	}
	if nw.RelaxIncrement == nil {
		relaxIncrement := nd.RelaxIncrement
		nw.RelaxIncrement = &relaxIncrement
	}
	if nw.RelaxRelTol == 0 {
		nw.RelaxRelTol = nd.RelaxRelTol
	}
	if nw.MaxIter == 0 {
		nw.MaxIter = nd.MaxIter
	}
	if nw.MinIter == nil {
		minIter := nd.MinIter
		nw.MinIter = &minIter
	}
	if nw.Tolerance == 0 {
		nw.Tolerance = 1.e-8
	}
	if len(ip.LinearSolver.Type) == 0 {
		ip.LinearSolver.Type = "lu"
	}
}

func (ip *InputParametersReservoir) Validate() (err error) {
	var (
		np = len(ip.Fluid.Bref)
		gp = ip.Grid
	)
	switch {
	case gp.Nx < 1 || gp.Ny < 1 || gp.Nz < 1:
		return fmt.Errorf("grid dimensions must be positive, have %d x %d x %d", gp.Nx, gp.Ny, gp.Nz)
	case np == 0:
		return fmt.Errorf("fluid needs at least one phase in Bref")
	case len(ip.Fluid.Compressibility) != np || len(ip.Fluid.Viscosity) != np || len(ip.Fluid.CoreyExponent) != np:
		return fmt.Errorf("fluid lists must all have %d phase entries", np)
	case len(ip.InitialSaturation) != np:
		return fmt.Errorf("need %d initial saturations, have %d", np, len(ip.InitialSaturation))
	case ip.TimeStep <= 0:
		return fmt.Errorf("time step must be positive, have %8.5f", ip.TimeStep)
	case ip.MaxCuts != nil && *ip.MaxCuts < 0:
		return fmt.Errorf("time step cuts must not be negative, have %d", *ip.MaxCuts)
	}
	for _, w := range ip.Wells {
		if len(w.Perforations) == 0 || len(w.Perforations) != len(w.WI) {
			return fmt.Errorf("well %s: %d perforations and %d well indices", w.Name, len(w.Perforations), len(w.WI))
		}
		for _, pf := range w.Perforations {
			if pf[0] < 0 || pf[0] >= gp.Nx || pf[1] < 0 || pf[1] >= gp.Ny || pf[2] < 0 || pf[2] >= gp.Nz {
				return fmt.Errorf("well %s: perforation %v outside the grid", w.Name, pf)
			}
		}
	}
	if _, err = ip.NewtonParameters(); err != nil {
		return
	}
	_, err = ip.NewLinearSolver()
	return
}

func (ip *InputParametersReservoir) NewtonParameters() (sp newton.SolverParameters, err error) {
	var (
		nw = ip.Newton
	)
	sp = newton.DefaultSolverParameters()
	if sp.RelaxType, err = newton.ParseRelaxType(nw.RelaxType); err != nil {
		return
	}
	sp.RelaxMax, sp.RelaxRelTol = nw.RelaxMax, nw.RelaxRelTol
	if nw.RelaxIncrement != nil {
		sp.RelaxIncrement = *nw.RelaxIncrement
	}
	sp.MaxIter = nw.MaxIter
	if nw.MinIter != nil {
		sp.MinIter = *nw.MinIter
	}
	err = sp.Validate()
	return
}

func (ip *InputParametersReservoir) NewLinearSolver() (ls linsolve.LinearSolver, err error) {
	return linsolve.New(ip.LinearSolver.Type, ip.LinearSolver.Tolerance, ip.LinearSolver.MaxIterations)
}

func (ip *InputParametersReservoir) NewGrid() *grid.Cartesian {
	gp := ip.Grid
	return grid.NewCartesianUniform(gp.Nx, gp.Ny, gp.Nz, gp.Dx, gp.Dy, gp.Dz, gp.Permeability, gp.Porosity)
}

func (ip *InputParametersReservoir) NewFluid() *props.ConstantCompressibility {
	f := ip.Fluid
	return props.NewConstantCompressibility(f.Bref, f.Compressibility, f.Viscosity, f.CoreyExponent, f.Pref)
}

func (ip *InputParametersReservoir) NewWells(g *grid.Cartesian) (wells *state.Wells) {
	wells = state.NewWells()
	for _, w := range ip.Wells {
		cells := utils.NewIndex(len(w.Perforations))
		for n, pf := range w.Perforations {
			cells[n] = g.Cell(pf[0], pf[1], pf[2])
		}
		wells.AddWell(w.Name, cells, w.WI, w.BHP)
	}
	return
}

// NewState sets the initial pressure and saturations and the consistent surface volumes
func (ip *InputParametersReservoir) NewState(fluid props.BlackoilFluid, nc int) (st *state.BlackoilState) {
	st = state.NewBlackoilState(nc, fluid.NumPhases())
	st.SetUniform(ip.InitialPressure, ip.InitialSaturation)
	copy(st.SurfaceVol, props.SurfaceVolumes(fluid, st))
	return
}

func (ip *InputParametersReservoir) Print() {
	gp := ip.Grid
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d x %d x %d]\t\t= Grid\n", gp.Nx, gp.Ny, gp.Nz)
	fmt.Printf("[%g, %g, %g]\t\t= Cell Size\n", gp.Dx, gp.Dy, gp.Dz)
	fmt.Printf("%8.5f\t\t= Permeability\n", gp.Permeability)
	fmt.Printf("%8.5f\t\t= Porosity\n", gp.Porosity)
	fmt.Printf("[%d]\t\t\t= Phases\n", len(ip.Fluid.Bref))
	fmt.Printf("%8.5f\t\t= Initial Pressure\n", ip.InitialPressure)
	fmt.Printf("%v\t\t= Initial Saturation\n", ip.InitialSaturation)
	fmt.Printf("%8.5f\t\t= Time Step\n", ip.TimeStep)
	fmt.Printf("[%d]\t\t\t= Steps\n", ip.NumSteps)
	fmt.Printf("[%s]\t\t\t= Linear Solver\n", strings.ToLower(ip.LinearSolver.Type))
	for _, w := range ip.Wells {
		fmt.Printf("Well[%s] BHP = %8.5f, Perforations = %v\n", w.Name, w.BHP, w.Perforations)
	}
	if sp, err := ip.NewtonParameters(); err == nil {
		sp.Print()
	}
}
