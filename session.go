package descent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// MaxBudget caps the number of steps a single session may take.
const MaxBudget = 10000

// State is the lifecycle of a Session.
type State int

const (
	// Idle means the path holds only the start point.
	Idle State = iota
	// Stepping means at least one step succeeded and budget remains.
	Stepping
	// HaltedBudget means StepCount reached the budget.
	HaltedBudget
	// HaltedFailure means the value or gradient at the current point was
	// undefined.
	HaltedFailure
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Stepping:
		return "stepping"
	case HaltedBudget:
		return "halted_budget"
	case HaltedFailure:
		return "halted_failure"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Halted reports whether Step can no longer advance.
func (s State) Halted() bool { return s == HaltedBudget || s == HaltedFailure }

// Outcome is the result of a single Step call.
type Outcome int

const (
	Advanced Outcome = iota
	ReachedBudget
	Failed
	CannotProceed
)

func (o Outcome) String() string {
	switch o {
	case Advanced:
		return "advanced"
	case ReachedBudget:
		return "reached_budget"
	case Failed:
		return "failed"
	case CannotProceed:
		return "cannot_proceed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Params configures a Session.
type Params struct {
	Start        Point   `json:"start"`
	LearningRate float64 `json:"learning_rate"`
	Budget       int     `json:"budget"`
}

// Validate checks the boundary ranges: a finite start, 0 < α < ∞ and
// 1 ≤ Budget ≤ MaxBudget.
func (p Params) Validate() error {
	if !p.Start.Finite() {
		return invalidParam("start", "coordinates must be finite, got %v", p.Start)
	}
	if !isFinite(p.LearningRate) || p.LearningRate <= 0 {
		return invalidParam("learning_rate", "must be a positive finite number, got %g", p.LearningRate)
	}
	if p.Budget < 1 || p.Budget > MaxBudget {
		return invalidParam("budget", "must be between 1 and %d, got %d", MaxBudget, p.Budget)
	}
	return nil
}

// StepDetail records one attempted transition. Next is nil when the step
// failed.
type StepDetail struct {
	Index     int
	Current   Point
	Value     float64
	Gradient  Vec
	Next      *Point
	NextValue float64
}

// UpdateRule renders the update for display, one line per coordinate:
//
//	x_new = x - α·∂f/∂x = 5 - 0.1·10 = 4
func (d StepDetail) UpdateRule(alpha float64) string {
	if d.Next == nil {
		return fmt.Sprintf("step %d: no update from %v (∂f/∂x = %g, ∂f/∂y = %g)",
			d.Index, d.Current, d.Gradient.DX, d.Gradient.DY)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "x_new = x - α·∂f/∂x = %.4f - %g·%.4f = %.4f\n",
		d.Current.X, alpha, d.Gradient.DX, d.Next.X)
	fmt.Fprintf(&b, "y_new = y - α·∂f/∂y = %.4f - %g·%.4f = %.4f",
		d.Current.Y, alpha, d.Gradient.DY, d.Next.Y)
	return b.String()
}

// Session is the incremental state of one gradient-descent run: the path
// walked so far, the value history and the state machine. A Session belongs
// to a single caller and is not safe for concurrent use. Changing the
// function, start or learning rate means building a new Session.
type Session struct {
	fn     *CompiledFunction
	params Params

	state      State
	path       []Point
	values     []float64
	steps      int
	last       *StepDetail
	diagnostic string
}

// NewSession validates params and returns a session reset to params.Start.
func NewSession(fn *CompiledFunction, params Params) (*Session, error) {
	if fn == nil {
		return nil, invalidParam("function", "must not be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Session{fn: fn, params: params}
	s.Reset(params.Start)
	return s, nil
}

// Reset discards all progress and starts over from start. The value history
// starts empty when f(start) is undefined.
func (s *Session) Reset(start Point) {
	s.params.Start = start
	s.state = Idle
	s.path = []Point{start}
	s.values = s.values[:0:0]
	if v := s.fn.Value(start); isFinite(v) {
		s.values = append(s.values, v)
	}
	s.steps = 0
	s.last = nil
	s.diagnostic = ""
}

// Step advances one iteration. It is a no-op returning CannotProceed once
// the session has halted.
func (s *Session) Step() Outcome {
	if s.state.Halted() {
		return CannotProceed
	}
	cur := s.path[len(s.path)-1]
	ev := Evaluate(s.fn, cur)
	detail := &StepDetail{
		Index:     s.steps + 1,
		Current:   cur,
		Value:     ev.Value,
		Gradient:  ev.Gradient,
		NextValue: Undefined,
	}
	s.last = detail

	if !ev.ValueDefined() {
		return s.fail(fmt.Sprintf("function value at %v is undefined (NaN or infinite); stopping", cur))
	}
	if !ev.GradientDefined() {
		return s.fail(fmt.Sprintf("gradient at %v is NaN or infinite; stopping", cur))
	}

	alpha := s.params.LearningRate
	next := Point{
		X: cur.X - alpha*ev.Gradient.DX,
		Y: cur.Y - alpha*ev.Gradient.DY,
	}
	detail.Next = &next
	detail.NextValue = s.fn.Value(next)
	s.path = append(s.path, next)
	s.values = append(s.values, detail.NextValue)
	s.steps++

	if s.steps >= s.params.Budget {
		s.state = HaltedBudget
		slog.Debug("descent reached budget", "steps", s.steps, "point", next.String())
		return ReachedBudget
	}
	s.state = Stepping
	return Advanced
}

func (s *Session) fail(msg string) Outcome {
	s.state = HaltedFailure
	s.diagnostic = msg
	slog.Debug("descent halted", "step", s.steps, "reason", msg)
	return Failed
}

// RunToCompletion steps until the session halts. ctx is checked before each
// step, so cancellation takes effect at a step boundary only. between, when
// non-nil, runs after every step that advanced; callers use it to render or
// pace the animation. The session itself never sleeps.
func (s *Session) RunToCompletion(ctx context.Context, between func(StepDetail)) (Outcome, error) {
	outcome := CannotProceed
	for !s.state.Halted() {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		outcome = s.Step()
		if between != nil && s.last != nil && s.last.Next != nil {
			between(*s.last)
		}
	}
	return outcome, nil
}

// Function returns the compiled function the session descends on.
func (s *Session) Function() *CompiledFunction { return s.fn }

// Params returns the session parameters; Start reflects the last Reset.
func (s *Session) Params() Params { return s.params }

func (s *Session) State() State { return s.state }

// StepCount is the number of successful steps since the last Reset.
func (s *Session) StepCount() int { return s.steps }

// Diagnostic explains a HaltedFailure; it is empty otherwise.
func (s *Session) Diagnostic() string { return s.diagnostic }

// Path returns a copy of the visited points, starting with the start point.
func (s *Session) Path() []Point { return append([]Point(nil), s.path...) }

// Values returns a copy of the value history. Undefined entries are NaN.
func (s *Session) Values() []float64 { return append([]float64(nil), s.values...) }

// Current returns the last point of the path.
func (s *Session) Current() Point { return s.path[len(s.path)-1] }

// LastStep returns a copy of the most recent step attempt, or nil.
func (s *Session) LastStep() *StepDetail {
	if s.last == nil {
		return nil
	}
	d := *s.last
	if d.Next != nil {
		n := *d.Next
		d.Next = &n
	}
	return &d
}
