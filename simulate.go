package descent

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Request describes one complete simulation. When Preset is set, any zero
// field is filled from that preset.
type Request struct {
	Preset        string   `json:"preset,omitempty"`
	Expr          string   `json:"expr,omitempty"`
	Region        *Region  `json:"region,omitempty"`
	Start         *Point   `json:"start,omitempty"`
	LearningRate  float64  `json:"learning_rate,omitempty"`
	Steps         int      `json:"steps,omitempty"`
	Seeds         []Point  `json:"seeds,omitempty"`
	SkipReference bool     `json:"skip_reference,omitempty"`
	Trace         bool     `json:"trace,omitempty"`
	Catalog       []Preset `json:"-"`
	// Reference bounds the reference search; zero fields take defaults.
	Reference ReferenceOptions `json:"-"`
}

// DefaultRegion is used when neither the request nor a preset names one.
var DefaultRegion = Square(5)

// Resolve fills unset fields from the named preset and returns the
// expression, region, parameters and extra seeds to use.
func (r Request) Resolve() (expr string, region Region, params Params, seeds []Point, err error) {
	expr, region, seeds = r.Expr, DefaultRegion, r.Seeds
	params = Params{LearningRate: r.LearningRate, Budget: r.Steps}
	if r.Preset != "" {
		catalog := r.Catalog
		if catalog == nil {
			catalog = Presets()
		}
		p, err := LookupPresetIn(catalog, r.Preset)
		if err != nil {
			return "", Region{}, Params{}, nil, err
		}
		pp := p.Params()
		if expr == "" {
			expr = p.Expr
		}
		region = p.Region
		params.Start = pp.Start
		if params.LearningRate == 0 {
			params.LearningRate = pp.LearningRate
		}
		if params.Budget == 0 {
			params.Budget = pp.Budget
		}
		if seeds == nil {
			seeds = p.Seeds
		}
	}
	if r.Region != nil {
		region = *r.Region
	}
	if r.Start != nil {
		params.Start = *r.Start
	}
	if err := region.Validate(); err != nil {
		return "", Region{}, Params{}, nil, err
	}
	if expr == "" {
		return "", Region{}, Params{}, nil, invalidParam("expr", "an expression or preset is required")
	}
	return expr, region, params, seeds, nil
}

// JSONPoint is a Point whose undefined coordinates encode as null.
type JSONPoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func jsonPoint(p Point) JSONPoint { return JSONPoint{X: jsonFloat(p.X), Y: jsonFloat(p.Y)} }

// jsonFloat returns nil for NaN and infinities, which encoding/json rejects.
func jsonFloat(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

// StepRecord is the JSON form of a StepDetail.
type StepRecord struct {
	Index      int        `json:"index"`
	Current    JSONPoint  `json:"current"`
	Value      *float64   `json:"value"`
	GradientDX *float64   `json:"grad_dx"`
	GradientDY *float64   `json:"grad_dy"`
	Next       *JSONPoint `json:"next"`
	NextValue  *float64   `json:"next_value"`
	UpdateRule string     `json:"update_rule"`
}

// NewStepRecord converts d for transport.
func NewStepRecord(d StepDetail, alpha float64) StepRecord {
	rec := StepRecord{
		Index:      d.Index,
		Current:    jsonPoint(d.Current),
		Value:      jsonFloat(d.Value),
		GradientDX: jsonFloat(d.Gradient.DX),
		GradientDY: jsonFloat(d.Gradient.DY),
		NextValue:  jsonFloat(d.NextValue),
		UpdateRule: d.UpdateRule(alpha),
	}
	if d.Next != nil {
		n := jsonPoint(*d.Next)
		rec.Next = &n
	}
	return rec
}

// ReferenceRecord is the JSON form of an OptimizationResult.
type ReferenceRecord struct {
	Point       Point   `json:"point"`
	Value       float64 `json:"value"`
	Seed        Point   `json:"seed"`
	Iterations  int     `json:"iterations"`
	Evaluations int     `json:"evaluations"`
	// Distance is how far the descent ended from this point.
	Distance *float64 `json:"distance"`
}

// Result is the JSON-safe outcome of Simulate.
type Result struct {
	Expr         string           `json:"expr"`
	Symbolic     Symbolic         `json:"symbolic"`
	Region       Region           `json:"region"`
	Params       Params           `json:"params"`
	State        string           `json:"state"`
	Verdict      Verdict          `json:"verdict"`
	Class        PointClass       `json:"class,omitempty"`
	Message      string           `json:"message"`
	Diagnostic   string           `json:"diagnostic,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	StepCount    int              `json:"step_count"`
	Path         []JSONPoint      `json:"path"`
	Values       []*float64       `json:"values"`
	Final        JSONPoint        `json:"final"`
	FinalValue   *float64         `json:"final_value"`
	GradientNorm *float64         `json:"gradient_norm"`
	PathLength   *float64         `json:"path_length"`
	Trace        []StepRecord     `json:"trace,omitempty"`
	Reference    *ReferenceRecord `json:"reference"`
}

// Simulate compiles the expression, runs a session to completion, searches
// for a reference minimum and summarizes the run. Compile and parameter
// errors are returned as is; cancellation returns ctx.Err().
func Simulate(ctx context.Context, req Request) (*Result, error) {
	expr, region, params, extra, err := req.Resolve()
	if err != nil {
		return nil, err
	}
	fn, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	sess, err := NewSession(fn, params)
	if err != nil {
		return nil, err
	}

	var trace []StepRecord
	var record func(StepDetail)
	if req.Trace {
		record = func(d StepDetail) { trace = append(trace, NewStepRecord(d, params.LearningRate)) }
	}
	if _, err := sess.RunToCompletion(ctx, record); err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	if req.Trace && sess.State() == HaltedFailure {
		if last := sess.LastStep(); last != nil {
			trace = append(trace, NewStepRecord(*last, params.LearningRate))
		}
	}

	res := NewResult(sess, region)
	res.Trace = trace
	if !req.SkipReference {
		ref := FindReference(fn, region, DefaultSeeds(sess.Params().Start, extra...), req.Reference)
		res.SetReference(ref, sess.Current())
	}
	return res, nil
}

// NewResult captures the current state of sess in its JSON-safe form.
func NewResult(sess *Session, region Region) *Result {
	rep := Summarize(sess)
	path := sess.Path()
	values := sess.Values()
	res := &Result{
		Expr:         sess.fn.Source(),
		Symbolic:     sess.fn.Symbolic(),
		Region:       region,
		Params:       sess.Params(),
		State:        rep.State.String(),
		Verdict:      rep.Verdict,
		Class:        rep.Class,
		Message:      rep.Message(),
		Diagnostic:   rep.Diagnostic,
		Warnings:     rep.Warnings,
		StepCount:    rep.Steps,
		Path:         make([]JSONPoint, len(path)),
		Values:       make([]*float64, len(values)),
		Final:        jsonPoint(rep.Final),
		FinalValue:   jsonFloat(rep.FinalValue),
		GradientNorm: jsonFloat(rep.GradientNorm),
		PathLength:   jsonFloat(PathLength(path)),
	}
	for i, p := range path {
		res.Path[i] = jsonPoint(p)
	}
	for i, v := range values {
		res.Values[i] = jsonFloat(v)
	}
	return res
}

// SetReference attaches ref, measuring its distance from final.
func (r *Result) SetReference(ref *OptimizationResult, final Point) {
	if ref == nil {
		r.Reference = nil
		return
	}
	r.Reference = &ReferenceRecord{
		Point:       ref.Point,
		Value:       ref.Value,
		Seed:        ref.Seed,
		Iterations:  ref.Iterations,
		Evaluations: ref.Evaluations,
		Distance:    jsonFloat(floats.Distance([]float64{final.X, final.Y}, []float64{ref.Point.X, ref.Point.Y}, 2)),
	}
}

// PathLength is the total Euclidean length of the polyline through path.
func PathLength(path []Point) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		total += floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)
	}
	return total
}
