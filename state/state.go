package state

import (
	"fmt"

	"github.com/notargets/blackoil/utils"
)

// BlackoilState holds the reservoir unknowns. Per phase arrays are row-major with
// one row per cell and one column per phase.
type BlackoilState struct {
	NumPhases  int
	Pressure   []float64
	Saturation []float64
	SurfaceVol []float64 // Surface volume per unit pore volume
}

func NewBlackoilState(nc, np int) *BlackoilState {
	return &BlackoilState{
		NumPhases:  np,
		Pressure:   make([]float64, nc),
		Saturation: make([]float64, nc*np),
		SurfaceVol: make([]float64, nc*np),
	}
}

func (s *BlackoilState) NumCells() int { return len(s.Pressure) }

func (s *BlackoilState) PhaseSaturation(phase int) []float64 {
	return utils.VecColumn(s.Saturation, s.NumCells(), s.NumPhases, phase)
}

func (s *BlackoilState) PhaseSurfaceVol(phase int) []float64 {
	return utils.VecColumn(s.SurfaceVol, s.NumCells(), s.NumPhases, phase)
}

// SetUniform fills every cell with the same pressure and phase saturations
func (s *BlackoilState) SetUniform(p float64, sat []float64) {
	if len(sat) != s.NumPhases {
		panic(fmt.Errorf("need %d phase saturations, have %d", s.NumPhases, len(sat)))
	}
	for c := range s.Pressure {
		s.Pressure[c] = p
		copy(s.Saturation[c*s.NumPhases:(c+1)*s.NumPhases], sat)
	}
}

func (s *BlackoilState) Copy() *BlackoilState {
	return &BlackoilState{
		NumPhases:  s.NumPhases,
		Pressure:   utils.VecCopy(s.Pressure),
		Saturation: utils.VecCopy(s.Saturation),
		SurfaceVol: utils.VecCopy(s.SurfaceVol),
	}
}

/*
	Wells uses compressed perforation storage: the perforations of well w are
	WellCells[WellConnPos[w]:WellConnPos[w+1]], with a well index WI per perforation.
	All wells are bottom hole pressure controlled.
*/
type Wells struct {
	Names       []string
	WellCells   utils.Index
	WellConnPos utils.Index
	WI          []float64
	TargetBHP   []float64
}

func NewWells() *Wells {
	return &Wells{WellConnPos: utils.Index{0}}
}

func (w *Wells) AddWell(name string, cells utils.Index, wi []float64, bhp float64) {
	if len(cells) == 0 {
		panic(fmt.Errorf("well %s has no perforations", name))
	}
	if len(cells) != len(wi) {
		panic(fmt.Errorf("well %s: %d perforations but %d well indices", name, len(cells), len(wi)))
	}
	w.Names = append(w.Names, name)
	w.WellCells = append(w.WellCells, cells...)
	w.WI = append(w.WI, wi...)
	w.WellConnPos = append(w.WellConnPos, len(w.WellCells))
	w.TargetBHP = append(w.TargetBHP, bhp)
}

func (w *Wells) NumWells() int { return len(w.TargetBHP) }

func (w *Wells) NumPerfs() int { return len(w.WellCells) }

// Validate checks perforation cells against the grid size
func (w *Wells) Validate(nc int) error {
	if err := w.WellCells.CheckBounds(nc); err != nil {
		return fmt.Errorf("well perforations: %w", err)
	}
	return nil
}

type WellState struct {
	BHP       []float64
	PerfRates []float64 // Surface volume rate per perforation (rows) and phase (columns), positive into the reservoir
}

// NewWellState starts every well at its target pressure
func NewWellState(w *Wells, np int) *WellState {
	return &WellState{
		BHP:       utils.VecCopy(w.TargetBHP),
		PerfRates: make([]float64, w.NumPerfs()*np),
	}
}

func (ws *WellState) Copy() *WellState {
	return &WellState{
		BHP:       utils.VecCopy(ws.BHP),
		PerfRates: utils.VecCopy(ws.PerfRates),
	}
}

// CopyFrom overwrites the values of s with those of src, keeping s's storage
func (s *BlackoilState) CopyFrom(src *BlackoilState) {
	if src.NumCells() != s.NumCells() || src.NumPhases != s.NumPhases {
		panic(fmt.Errorf("cannot copy a %d cell, %d phase state into a %d cell, %d phase state",
			src.NumCells(), src.NumPhases, s.NumCells(), s.NumPhases))
	}
	copy(s.Pressure, src.Pressure)
	copy(s.Saturation, src.Saturation)
	copy(s.SurfaceVol, src.SurfaceVol)
}

func (ws *WellState) CopyFrom(src *WellState) {
	if len(src.BHP) != len(ws.BHP) || len(src.PerfRates) != len(ws.PerfRates) {
		panic(fmt.Errorf("well states differ in size"))
	}
	copy(ws.BHP, src.BHP)
	copy(ws.PerfRates, src.PerfRates)
}
