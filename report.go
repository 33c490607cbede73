package descent

import (
	"fmt"
	"math"
)

// ConvergenceThreshold is the gradient norm below which a run that used its
// whole budget is reported as having reached a stationary point.
const ConvergenceThreshold = 1e-3

// Verdict summarizes how a run ended.
type Verdict string

const (
	InProgress      Verdict = "in_progress"
	Converged       Verdict = "converged"
	BudgetExhausted Verdict = "budget_exhausted"
	Diverged        Verdict = "diverged"
	Failure         Verdict = "failed"
)

// PointClass is the second-order classification of a stationary point.
type PointClass string

const (
	Unclassified PointClass = ""
	Minimum      PointClass = "minimum"
	Maximum      PointClass = "maximum"
	Saddle       PointClass = "saddle"
	Degenerate   PointClass = "degenerate"
)

// Report is the end-of-run summary shown to the learner.
type Report struct {
	Verdict      Verdict
	State        State
	Steps        int
	Final        Point
	FinalValue   float64
	GradientNorm float64
	Class        PointClass
	Diagnostic   string
	Warnings     []string
}

// Summarize inspects a session and classifies its outcome. Converged runs
// also get a Hessian-based classification of the point they stopped at.
func Summarize(s *Session) Report {
	final := s.Current()
	ev := Evaluate(s.fn, final)
	r := Report{
		State:        s.state,
		Steps:        s.steps,
		Final:        final,
		FinalValue:   ev.Value,
		GradientNorm: ev.GradientNorm(),
		Diagnostic:   s.diagnostic,
	}

	switch {
	case !s.state.Halted():
		r.Verdict = InProgress
	case !ev.ValueDefined() && s.steps > 0:
		r.Verdict = Diverged
	case s.state == HaltedFailure:
		r.Verdict = Failure
	case r.GradientNorm < ConvergenceThreshold:
		r.Verdict = Converged
		r.Class = classify(s.fn, final)
	default:
		r.Verdict = BudgetExhausted
	}

	alpha := s.params.LearningRate
	if rising(s.values) && alpha > 0.1 {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"function value keeps increasing (now %.2e); learning rate %.4f may be too large", ev.Value, alpha))
	}
	if alpha > 0.8 {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"learning rate %.4f is very large; the path is likely to overshoot or oscillate", alpha))
	}
	return r
}

// Message is the one-line human summary of r.
func (r Report) Message() string {
	switch r.Verdict {
	case InProgress:
		return fmt.Sprintf("in progress after %d steps at %v", r.Steps, r.Final)
	case Converged:
		msg := fmt.Sprintf("converged at %v, f = %.4f, |grad| = %.4f: near a stationary point",
			r.Final, r.FinalValue, r.GradientNorm)
		if r.Class != Unclassified {
			msg += " (" + string(r.Class) + ")"
		}
		return msg
	case BudgetExhausted:
		return fmt.Sprintf("budget of %d steps used at %v, f = %.4f, |grad| = %.4f: gradient is not yet small",
			r.Steps, r.Final, r.FinalValue, r.GradientNorm)
	case Diverged:
		return fmt.Sprintf("function value diverged at %v; reduce the learning rate or move the start", r.Final)
	}
	return r.Diagnostic
}

// rising reports whether the last five history entries, ignoring undefined
// ones, strictly increase and end more than 1.5 times larger in magnitude.
func rising(values []float64) bool {
	if len(values) <= 5 {
		return false
	}
	recent := make([]float64, 0, 5)
	for _, v := range values[len(values)-5:] {
		if isFinite(v) {
			recent = append(recent, v)
		}
	}
	if len(recent) < 2 {
		return false
	}
	for i := 1; i < len(recent); i++ {
		if recent[i] <= recent[i-1] {
			return false
		}
	}
	return math.Abs(recent[len(recent)-1]) > 1.5*math.Abs(recent[0])
}

// classify applies the second-derivative test at p.
func classify(fn *CompiledFunction, p Point) PointClass {
	h := fn.Hessian(p)
	fxx, fxy, fyy := h.At(0, 0), h.At(0, 1), h.At(1, 1)
	if !isFinite(fxx) || !isFinite(fxy) || !isFinite(fyy) {
		return Unclassified
	}
	det := fxx*fyy - fxy*fxy
	const eps = 1e-12
	switch {
	case det > eps && fxx > 0:
		return Minimum
	case det > eps && fxx < 0:
		return Maximum
	case det < -eps:
		return Saddle
	}
	return Degenerate
}
