package descent

import (
	"fmt"
	"sort"
)

// Preset is a named teaching function with sensible defaults.
type Preset struct {
	Name         string  `json:"name" toml:"name"`
	Title        string  `json:"title" toml:"title"`
	Expr         string  `json:"expr" toml:"expr"`
	Region       Region  `json:"region" toml:"region"`
	Start        Point   `json:"start" toml:"start"`
	LearningRate float64 `json:"learning_rate" toml:"learning_rate"`
	Steps        int     `json:"steps" toml:"steps"`
	Seeds        []Point `json:"seeds,omitempty" toml:"seeds"`
	Note         string  `json:"note,omitempty" toml:"note"`
}

// Params returns the preset's session parameters with the start clamped into
// the region.
func (p Preset) Params() Params {
	return Params{
		Start:        p.Region.Clamp(p.Start),
		LearningRate: p.LearningRate,
		Budget:       p.Steps,
	}
}

// Validate compiles the expression and checks the region and parameters.
func (p Preset) Validate() error {
	if p.Name == "" {
		return invalidParam("name", "preset name must not be empty")
	}
	if _, err := Compile(p.Expr); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	if err := p.Region.Validate(); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	if err := p.Params().Validate(); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	return nil
}

var builtinPresets = []Preset{
	{
		Name:         "convex",
		Title:        "Convex bowl",
		Expr:         "x**2 + y**2",
		Region:       Square(6),
		Start:        Pt(5, -4),
		LearningRate: 0.1,
		Steps:        25,
		Note:         "A single global minimum at the origin.",
	},
	{
		Name:         "saddle",
		Title:        "Saddle",
		Expr:         "0.3*x**2 - 0.3*y**2",
		Region:       Square(4),
		Start:        Pt(2, 1),
		LearningRate: 0.1,
		Steps:        40,
		Note:         "Curves up along x and down along y; there is no minimum.",
	},
	{
		Name:         "himmelblau",
		Title:        "Himmelblau",
		Expr:         "(x**2 + y - 11)**2 + (x + y**2 - 7)**2",
		Region:       Square(6),
		Start:        Pt(1, 1),
		LearningRate: 0.01,
		Steps:        60,
		Seeds: []Point{
			Pt(3, 2),
			Pt(-2.805, 3.131),
			Pt(-3.779, -3.283),
			Pt(3.584, -1.848),
		},
		Note: "Four local minima of equal depth; the start decides which one is found.",
	},
	{
		Name:         "rastrigin",
		Title:        "Rastrigin-like",
		Expr:         "20 + (x**2 - 10*cos(2*pi*x)) + (y**2 - 10*cos(2*pi*y))",
		Region:       Square(5),
		Start:        Pt(3.5, -2.5),
		LearningRate: 0.02,
		Steps:        70,
		Note:         "Many local minima; plain gradient descent gets trapped easily.",
	},
}

// Presets returns the built-in presets in display order.
func Presets() []Preset {
	out := make([]Preset, len(builtinPresets))
	for i, p := range builtinPresets {
		p.Seeds = append([]Point(nil), p.Seeds...)
		out[i] = p
	}
	return out
}

// LookupPreset finds a built-in preset by name.
func LookupPreset(name string) (Preset, error) {
	return LookupPresetIn(Presets(), name)
}

// LookupPresetIn finds a preset by name in list.
func LookupPresetIn(list []Preset, name string) (Preset, error) {
	for _, p := range list {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}

// MergePresets overlays extra onto base by name. Presets in extra replace
// those with the same name; new names are appended in sorted order.
func MergePresets(base, extra []Preset) []Preset {
	out := append([]Preset(nil), base...)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[p.Name] = i
	}
	var added []Preset
	addedIndex := map[string]int{}
	for _, p := range extra {
		if i, ok := index[p.Name]; ok {
			out[i] = p
			continue
		}
		if i, ok := addedIndex[p.Name]; ok {
			added[i] = p
			continue
		}
		addedIndex[p.Name] = len(added)
		added = append(added, p)
	}
	sort.SliceStable(added, func(i, j int) bool { return added[i].Name < added[j].Name })
	return append(out, added...)
}
