package descent

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// ReferenceOptions bound the per-seed simplex search.
type ReferenceOptions struct {
	// MaxIterations caps the major iterations of each run.
	MaxIterations int
	// Tolerance is the smallest decrease in f that still counts as progress.
	Tolerance float64
	// StallIterations is how many iterations without progress end a run.
	StallIterations int
}

// DefaultReferenceOptions returns 500 iterations, tolerance 1e-7 and a stall
// window of 50 iterations.
func DefaultReferenceOptions() ReferenceOptions {
	return ReferenceOptions{MaxIterations: 500, Tolerance: 1e-7, StallIterations: 50}
}

func (o ReferenceOptions) withDefaults() ReferenceOptions {
	def := DefaultReferenceOptions()
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = def.Tolerance
	}
	if o.StallIterations <= 0 {
		o.StallIterations = def.StallIterations
	}
	return o
}

// OptimizationResult is the best minimum found by FindReference.
type OptimizationResult struct {
	Point       Point   `json:"point"`
	Value       float64 `json:"value"`
	Seed        Point   `json:"seed"`
	Iterations  int     `json:"iterations"`
	Evaluations int     `json:"evaluations"`
}

// errOutsideRegion and errNonFinite mark seed runs that are discarded.
var (
	errOutsideRegion = errors.New("descent: minimum outside region")
	errNonFinite     = errors.New("descent: minimum is not finite")
)

// DefaultSeeds returns the search order used by the teaching tool: the
// start point, the origin, then any extra seeds.
func DefaultSeeds(start Point, extra ...Point) []Point {
	seeds := make([]Point, 0, 2+len(extra))
	seeds = append(seeds, start, Point{})
	return append(seeds, extra...)
}

// FindReference runs a derivative-free Nelder–Mead search from each seed
// inside region, in order, and returns the lowest finite minimum that lies
// inside region. Ties keep the earlier seed. Undefined values are treated as
// +Inf so the simplex is pushed away from them. It returns nil when no seed
// qualifies.
func FindReference(fn *CompiledFunction, region Region, seeds []Point, opts ReferenceOptions) *OptimizationResult {
	if fn == nil || region.Validate() != nil {
		return nil
	}
	opts = opts.withDefaults()

	var best *OptimizationResult
	for i, seed := range seeds {
		if !seed.Finite() || !region.Contains(seed) {
			slog.Debug("reference seed skipped", "seed", seed.String(), "reason", "outside region")
			continue
		}
		res, err := minimizeFrom(fn, region, seed, opts)
		if err != nil {
			slog.Debug("reference seed failed", "index", i, "seed", seed.String(), "error", err)
			continue
		}
		if best == nil || res.Value < best.Value {
			best = res
		}
	}
	return best
}

func minimizeFrom(fn *CompiledFunction, region Region, seed Point, opts ReferenceOptions) (*OptimizationResult, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			v := fn.Value(Point{X: x[0], Y: x[1]})
			if !isFinite(v) {
				return math.Inf(1)
			}
			return v
		},
	}
	settings := &optimize.Settings{
		MajorIterations: opts.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.Tolerance,
			Iterations: opts.StallIterations,
		},
	}
	res, err := optimize.Minimize(problem, []float64{seed.X, seed.Y}, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, err
	}
	p := Point{X: res.X[0], Y: res.X[1]}
	// Re-evaluate so the reported value goes through the same collapse as
	// every other caller.
	v := fn.Value(p)
	if !p.Finite() || !isFinite(v) {
		return nil, errNonFinite
	}
	if !region.Contains(p) {
		return nil, errOutsideRegion
	}
	return &OptimizationResult{
		Point:       p,
		Value:       v,
		Seed:        seed,
		Iterations:  res.MajorIterations,
		Evaluations: res.FuncEvaluations,
	}, nil
}

// Locate resolves req and runs FindReference on it with the default seeds
// plus any the request or preset adds. A nil result with a nil error means no
// seed found a finite minimum inside the region.
func Locate(req Request) (*OptimizationResult, error) {
	expr, region, params, seeds, err := req.Resolve()
	if err != nil {
		return nil, err
	}
	fn, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	return FindReference(fn, region, DefaultSeeds(params.Start, seeds...), req.Reference), nil
}

// Describe is the one-line summary of a reference search.
func (r *OptimizationResult) Describe() string {
	if r == nil {
		return "no finite minimum found inside the region"
	}
	return fmt.Sprintf("minimum %.4f at %v", r.Value, r.Point)
}
