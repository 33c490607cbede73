package cli

import (
	"github.com/spf13/cobra"

	"github.com/njchilds90/descent"
)

// requestFlags are the flags shared by commands that describe a run.
type requestFlags struct {
	preset string
	expr   string
	x, y   float64
	alpha  float64
	steps  int
	radius float64
	noRef  bool
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.preset, "preset", "p", "", "preset name (see 'descent presets')")
	fs.StringVarP(&f.expr, "expr", "e", "", "function of x and y, e.g. 'x**2 + 3*y**2'")
	fs.Float64Var(&f.x, "x", 0, "start x")
	fs.Float64Var(&f.y, "y", 0, "start y")
	fs.Float64VarP(&f.alpha, "alpha", "a", 0, "learning rate")
	fs.IntVarP(&f.steps, "steps", "s", 0, "step budget")
	fs.Float64Var(&f.radius, "radius", 0, "search region [-r, r] x [-r, r]")
	fs.BoolVar(&f.noRef, "no-reference", false, "skip the reference minimum search")
}

// request turns the flags into a descent.Request. With neither --preset nor
// --expr, the configured default preset is used; configured default
// learning rate and steps fill what the flags leave unset.
func (f *requestFlags) request(cmd *cobra.Command, a *app) descent.Request {
	fs := cmd.Flags()
	req := descent.Request{
		Preset:        f.preset,
		Expr:          f.expr,
		LearningRate:  f.alpha,
		Steps:         f.steps,
		SkipReference: f.noRef,
		Catalog:       a.catalog.Presets(),
		Reference:     a.cfg.ReferenceOptions(),
	}
	def := a.cfg.Defaults
	if req.Preset == "" && req.Expr == "" {
		req.Preset = def.Preset
	}
	if req.LearningRate == 0 {
		req.LearningRate = def.LearningRate
	}
	if req.Steps == 0 {
		req.Steps = def.Steps
	}
	if fs.Changed("x") || fs.Changed("y") {
		start := descent.Pt(f.x, f.y)
		req.Start = &start
	}
	if fs.Changed("radius") {
		region := descent.Square(f.radius)
		req.Region = &region
	}
	return req
}

// session compiles the request into a fresh session.
func (f *requestFlags) session(cmd *cobra.Command, a *app) (*descent.Session, descent.Region, []descent.Point, error) {
	expr, region, params, seeds, err := f.request(cmd, a).Resolve()
	if err != nil {
		return nil, descent.Region{}, nil, err
	}
	fn, err := descent.Compile(expr)
	if err != nil {
		return nil, descent.Region{}, nil, err
	}
	sess, err := descent.NewSession(fn, params)
	if err != nil {
		return nil, descent.Region{}, nil, err
	}
	return sess, region, seeds, nil
}
