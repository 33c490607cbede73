package descent

import "math"

// Evaluation is the value and gradient of a function at one point. Any
// quantity that could not be computed holds Undefined (NaN).
type Evaluation struct {
	Point    Point
	Value    float64
	Gradient Vec
}

// Evaluate computes f and ∇f at p. It never fails: complex results beyond
// ImagTolerance and non-finite results come back as Undefined.
func Evaluate(fn *CompiledFunction, p Point) Evaluation {
	return Evaluation{
		Point:    p,
		Value:    fn.Value(p),
		Gradient: fn.Gradient(p),
	}
}

// ValueDefined reports whether Value is a finite real number.
func (e Evaluation) ValueDefined() bool { return isFinite(e.Value) }

// GradientDefined reports whether both partials are finite real numbers.
func (e Evaluation) GradientDefined() bool {
	return isFinite(e.Gradient.DX) && isFinite(e.Gradient.DY)
}

// GradientNorm returns ‖∇f‖, or Undefined when the gradient is not defined.
func (e Evaluation) GradientNorm() float64 {
	if !e.GradientDefined() {
		return math.NaN()
	}
	return e.Gradient.Norm()
}
