package compat

import (
	"encoding/json"
	"slices"

	"github.com/matzehuels/linkcard/pkg/card"
)

// Phase is an execution phase.
type Phase string

// Execution phases.
const (
	PhaseBuild     Phase = "build"
	PhaseDev       Phase = "dev"
	PhasePrerender Phase = "prerender"
	PhaseRuntime   Phase = "runtime"
)

// Phases lists every phase in a stable order.
func Phases() []Phase {
	return []Phase{PhaseBuild, PhaseDev, PhasePrerender, PhaseRuntime}
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return slices.Contains(Phases(), p)
}

// Engine is a capability tracked by the matrix.
type Engine string

// Tracked engines.
const (
	EngineVector     Engine = "vector"
	EngineRasterizer Engine = "rasterizer"
	EngineBrowser    Engine = "browser"
	EngineEncoder    Engine = "encoder"
	// EngineFetch is outbound network access for remote fonts.
	EngineFetch Engine = "fetch"
)

// Engines lists every engine in a stable order.
func Engines() []Engine {
	return []Engine{EngineVector, EngineRasterizer, EngineBrowser, EngineEncoder, EngineFetch}
}

// Valid reports whether e is a known engine.
func (e Engine) Valid() bool {
	return slices.Contains(Engines(), e)
}

// Matrix maps phase → engine → availability. The zero value reports every
// pair unavailable. Matrix values are immutable; methods never modify the
// receiver.
type Matrix struct {
	cells map[Phase]map[Engine]bool
}

// NewMatrix builds a matrix from a phase → available engines table.
func NewMatrix(table map[Phase][]Engine) Matrix {
	m := Matrix{cells: make(map[Phase]map[Engine]bool, len(table))}
	for phase, engines := range table {
		row := make(map[Engine]bool, len(engines))
		for _, e := range engines {
			row[e] = true
		}
		m.cells[phase] = row
	}
	return m
}

// Available reports whether engine e is usable in phase p.
func (m Matrix) Available(p Phase, e Engine) bool {
	return m.cells[p][e]
}

// ModeAvailable reports whether a render strategy can produce format f in
// phase p. Vector mode needs the vector engine plus the rasterizer unless
// the output is SVG. Screenshot mode needs the browser.
func (m Matrix) ModeAvailable(p Phase, mode card.Mode, f card.Format) bool {
	switch mode {
	case card.ModeVector:
		if !m.Available(p, EngineVector) {
			return false
		}
		return f == card.FormatSVG || m.Available(p, EngineRasterizer)
	case card.ModeScreenshot:
		return m.Available(p, EngineBrowser)
	}
	return false
}

// without returns a copy of m with (p, e) marked unavailable.
func (m Matrix) without(p Phase, e Engine) Matrix {
	out := m.clone()
	if row, ok := out.cells[p]; ok {
		delete(row, e)
	}
	return out
}

func (m Matrix) clone() Matrix {
	out := Matrix{cells: make(map[Phase]map[Engine]bool, len(m.cells))}
	for p, row := range m.cells {
		cp := make(map[Engine]bool, len(row))
		for e, v := range row {
			cp[e] = v
		}
		out.cells[p] = cp
	}
	return out
}

// Table returns the full phase → engine → bool table, listing unavailable
// pairs explicitly.
func (m Matrix) Table() map[Phase]map[Engine]bool {
	out := make(map[Phase]map[Engine]bool, len(Phases()))
	for _, p := range Phases() {
		row := make(map[Engine]bool, len(Engines()))
		for _, e := range Engines() {
			row[e] = m.Available(p, e)
		}
		out[p] = row
	}
	return out
}

// MarshalJSON encodes the full table.
func (m Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Table())
}
