package engine

import (
	"fmt"
	"sort"
	"strings"
)

// MaxPlies is the deepest lookahead accepted by the evaluator.
const MaxPlies = 7

// MaxFilterPlies is the number of plies move filters are defined for.
const MaxFilterPlies = 4

// MoveFilter bounds the candidates promoted to the next ply: Accept moves
// are always kept, plus up to Extra more within Threshold of the best.
// Accept < 0 skips the ply.
type MoveFilter struct {
	Accept    int     `json:"accept" yaml:"accept"`
	Extra     int     `json:"extra" yaml:"extra"`
	Threshold float32 `json:"threshold" yaml:"threshold"`
}

// MoveFilters holds one row per search depth: row n-1 lists the filters
// applied at plies 0..n-1 of an n-ply search.
type MoveFilters [MaxFilterPlies][MaxFilterPlies]MoveFilter

var nullFilter = MoveFilter{}

func makeFilters(f0, f2 MoveFilter) MoveFilters {
	skip := MoveFilter{Accept: -1}
	return MoveFilters{
		{f0},
		{f0, skip},
		{f0, skip, f2},
		{f0, skip, f2, skip},
	}
}

// Move filter presets.
var (
	FiltersTiny   = makeFilters(MoveFilter{0, 5, 0.08}, MoveFilter{0, 2, 0.02})
	FiltersNarrow = makeFilters(MoveFilter{0, 8, 0.12}, MoveFilter{0, 2, 0.03})
	FiltersNormal = makeFilters(MoveFilter{0, 8, 0.16}, MoveFilter{0, 2, 0.04})
	FiltersLarge  = makeFilters(MoveFilter{0, 16, 0.32}, MoveFilter{0, 4, 0.08})
	FiltersHuge   = makeFilters(MoveFilter{0, 20, 0.44}, MoveFilter{0, 6, 0.11})

	DefaultFilters = FiltersNormal
)

var filterPresets = map[string]MoveFilters{
	"tiny":   FiltersTiny,
	"narrow": FiltersNarrow,
	"normal": FiltersNormal,
	"large":  FiltersLarge,
	"huge":   FiltersHuge,
}

// FilterPreset returns a named move filter preset.
func FilterPreset(name string) (MoveFilters, error) {
	f, ok := filterPresets[strings.ToLower(name)]
	if !ok {
		return MoveFilters{}, fmt.Errorf("unknown move filter %q", name)
	}
	return f, nil
}

// EvalContext controls one evaluation request. It is not modified by the
// engine.
type EvalContext struct {
	Plies         int     `json:"plies" yaml:"plies"`
	Cubeful       bool    `json:"cubeful" yaml:"cubeful"`
	Prune         bool    `json:"prune" yaml:"prune"`
	Deterministic bool    `json:"deterministic" yaml:"deterministic"`
	Noise         float32 `json:"noise" yaml:"noise"` // standard deviation

	// Filters applies to move searches started with this context. Nil
	// means DefaultFilters.
	Filters *MoveFilters `json:"filters,omitempty" yaml:"-"`
}

// DefaultEvalContext is a cubeful 0-ply evaluation.
func DefaultEvalContext() EvalContext {
	return EvalContext{Cubeful: true, Prune: true, Deterministic: true}
}

// Validate checks the evaluation context.
func (ec EvalContext) Validate() error {
	if ec.Plies < 0 || ec.Plies > MaxPlies {
		return fmt.Errorf("plies must be between 0 and %d, got %d", MaxPlies, ec.Plies)
	}
	if ec.Noise < 0 {
		return fmt.Errorf("noise must not be negative, got %g", ec.Noise)
	}
	return nil
}

func (ec EvalContext) filters() *MoveFilters {
	if ec.Filters == nil {
		return &DefaultFilters
	}
	return ec.Filters
}

// withPlies returns a copy of ec searching nPlies deep.
func (ec EvalContext) withPlies(nPlies int) EvalContext {
	ec.Plies = nPlies
	return ec
}

// EvalLevel is a named playing strength.
type EvalLevel struct {
	Name    string
	Context EvalContext
}

func level(plies int, noise float32, filters *MoveFilters) EvalContext {
	return EvalContext{
		Plies:         plies,
		Cubeful:       true,
		Prune:         true,
		Deterministic: true,
		Noise:         noise,
		Filters:       filters,
	}
}

var evalLevels = map[string]EvalContext{
	"0ply":         level(0, 0, nil),
	"1ply":         level(1, 0, nil),
	"2ply":         level(2, 0, nil),
	"3ply":         level(3, 0, nil),
	"beginner":     level(0, 0.060, nil),
	"casual":       level(0, 0.050, nil),
	"intermediate": level(0, 0.040, nil),
	"advanced":     level(0, 0.015, nil),
	"expert":       level(0, 0, nil),
	"worldclass":   level(2, 0, &FiltersNormal),
	"supremo":      level(2, 0, &FiltersLarge),
	"grandmaster":  level(3, 0, &FiltersLarge),
}

// LevelContext returns the evaluation context of a named level.
func LevelContext(name string) (EvalContext, error) {
	ec, ok := evalLevels[strings.ToLower(name)]
	if !ok {
		return EvalContext{}, fmt.Errorf("unknown evaluation level %q", name)
	}
	return ec, nil
}

// EvalLevels lists the named levels in alphabetical order.
func EvalLevels() []EvalLevel {
	levels := make([]EvalLevel, 0, len(evalLevels))
	for name, ec := range evalLevels {
		levels = append(levels, EvalLevel{Name: name, Context: ec})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Name < levels[j].Name })
	return levels
}
