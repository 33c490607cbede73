package descent

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Point is a location (x, y) in the plane.
type Point struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) String() string { return fmt.Sprintf("(%.4g, %.4g)", p.X, p.Y) }

// Finite reports whether both coordinates are finite.
func (p Point) Finite() bool { return isFinite(p.X) && isFinite(p.Y) }

// Vec is a gradient (∂f/∂x, ∂f/∂y).
type Vec struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Norm is the Euclidean length of v. NaN components propagate.
func (v Vec) Norm() float64 { return floats.Norm([]float64{v.DX, v.DY}, 2) }

// Region is the axis-aligned box [XMin, XMax] × [YMin, YMax].
type Region struct {
	XMin float64 `json:"x_min" toml:"x_min"`
	XMax float64 `json:"x_max" toml:"x_max"`
	YMin float64 `json:"y_min" toml:"y_min"`
	YMax float64 `json:"y_max" toml:"y_max"`
}

// Square returns the region [-r, r] × [-r, r].
func Square(r float64) Region { return Region{XMin: -r, XMax: r, YMin: -r, YMax: r} }

// Validate requires finite bounds with XMin < XMax and YMin < YMax.
func (r Region) Validate() error {
	for _, v := range []float64{r.XMin, r.XMax, r.YMin, r.YMax} {
		if !isFinite(v) {
			return invalidParam("region", "bounds must be finite")
		}
	}
	if r.XMin >= r.XMax {
		return invalidParam("region", "x_min %g must be below x_max %g", r.XMin, r.XMax)
	}
	if r.YMin >= r.YMax {
		return invalidParam("region", "y_min %g must be below y_max %g", r.YMin, r.YMax)
	}
	return nil
}

// Contains reports whether p lies in the closed box.
func (r Region) Contains(p Point) bool {
	return r.XMin <= p.X && p.X <= r.XMax && r.YMin <= p.Y && p.Y <= r.YMax
}

// Clamp moves p to the nearest point of the box.
func (r Region) Clamp(p Point) Point {
	return Point{
		X: math.Max(r.XMin, math.Min(r.XMax, p.X)),
		Y: math.Max(r.YMin, math.Min(r.YMax, p.Y)),
	}
}

// Linspace returns n evenly spaced samples across each axis of the region,
// suitable for Grid.
func (r Region) Linspace(n int) (xs, ys []float64) {
	if n < 2 {
		n = 2
	}
	xs = floats.Span(make([]float64, n), r.XMin, r.XMax)
	ys = floats.Span(make([]float64, n), r.YMin, r.YMax)
	return xs, ys
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
