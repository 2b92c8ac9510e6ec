/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/notargets/blackoil/InputParameters"
	"github.com/notargets/blackoil/impes"
	"github.com/notargets/blackoil/linsolve"
	"github.com/notargets/blackoil/model"
	"github.com/notargets/blackoil/newton"
	"github.com/notargets/blackoil/simulator"
	"github.com/notargets/blackoil/state"
)

const exampleFile = `
########################################
Title: "Test Case"
Grid:
  Nx: 10
  Ny: 1
  Dx: 10
  Dy: 10
  Permeability: 1
  Porosity: 0.2
Fluid:
  Bref: [1.0]
  Compressibility: [1.e-4]
  Viscosity: [1.0]
  CoreyExponent: [1]
  Pref: 200
Wells:
  - Name: INJ
    Perforations: [[0, 0, 0]]
    WI: [1.0]
    BHP: 300
InitialPressure: 200
TimeStep: 0.1
NumSteps: 10
Newton:
  RelaxType: dampen # Can be "sor"
  MaxIter: 15
LinearSolver:
  Type: lu # Can be "bicgstab"
########################################
`

func processInput(icFile string) (ip *InputParameters.InputParametersReservoir) {
	var (
		err  error
		data []byte
	)
	if len(icFile) == 0 {
		err = fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	if data, err = ioutil.ReadFile(icFile); err != nil {
		panic(err)
	}
	ip = &InputParameters.InputParametersReservoir{}
	if err = ip.Parse(data); err != nil {
		fmt.Printf("error: %s: %s\n", icFile, err.Error())
		os.Exit(1)
	}
	return
}

func RunImpes(ip *InputParameters.InputParametersReservoir, verbose bool) (rep simulator.Report, err error) {
	ls, err := ip.NewLinearSolver()
	if err != nil {
		return
	}
	var (
		g     = ip.NewGrid()
		fluid = ip.NewFluid()
		wells = ip.NewWells(g)
		st    = ip.NewState(fluid, g.NumCells())
		ws    = state.NewWellState(wells, fluid.NumPhases())
	)
	im := impes.NewImpesTPFAAD(g, fluid, g, wells, ls)
	im.Verbose = verbose
	return simulator.Impes(im, st, ws, ip.TimeStep, ip.NumSteps, verbose)
}

func RunFullyImplicit(ip *InputParameters.InputParametersReservoir, verbose bool) (rep simulator.Report, err error) {
	var (
		param newton.SolverParameters
		ls    linsolve.LinearSolver
	)
	if np := len(ip.Fluid.Bref); np != 1 {
		err = fmt.Errorf("the fully implicit model is single phase, deck has %d phases", np)
		return
	}
	if param, err = ip.NewtonParameters(); err != nil {
		return
	}
	if ls, err = ip.NewLinearSolver(); err != nil {
		return
	}
	var (
		g     = ip.NewGrid()
		fluid = ip.NewFluid()
		wells = ip.NewWells(g)
		st    = ip.NewState(fluid, g.NumCells())
		ws    = state.NewWellState(wells, fluid.NumPhases())
	)
	fi := model.NewFullyImplicitPressure(g, fluid, g, wells, ls, st, ws)
	fi.Tolerance = ip.Newton.Tolerance
	fi.MaxDp = ip.Newton.MaxDp
	fi.Verbose = verbose
	solver := newton.NewSolver(param, fi)
	return simulator.FullyImplicit(solver, st, ws, ip.TimeStep, ip.NumSteps, *ip.MaxCuts, verbose)
}
