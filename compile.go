package descent

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ImagTolerance is the largest imaginary part that still collapses to the
// real part of a complex intermediate result.
const ImagTolerance = 1e-9

// Undefined is the sentinel for values that could not be evaluated.
var Undefined = math.NaN()

// Vars are the two variables every expression is differentiated in.
var Vars = [2]string{"x", "y"}

// Gradient returns the partial derivatives of expr, one per variable.
func Gradient(expr Expr, varNames []string) []Expr {
	result := make([]Expr, len(varNames))
	for i, v := range varNames {
		result[i] = Diff(expr, v)
	}
	return result
}

// Hessian returns the n×n second partial derivatives of expr.
func Hessian(expr Expr, varNames []string) [][]Expr {
	n := len(varNames)
	rows := make([][]Expr, n)
	for i, vi := range varNames {
		rows[i] = make([]Expr, n)
		di := Diff(expr, vi)
		for j, vj := range varNames {
			rows[i][j] = Diff(di, vj)
		}
	}
	return rows
}

// CompiledFunction holds f together with its first and second partials,
// each compiled into a closure over (x, y). All evaluations go through the
// same closures, so point, grid and Hessian results agree.
type CompiledFunction struct {
	source string
	expr   Expr
	grad   []Expr
	hess   [][]Expr

	f      evalFunc
	df     [2]evalFunc
	d2f    [2][2]evalFunc
	params map[string]struct{}
}

// Compile parses text and derives its gradient and Hessian. It returns a
// *ParseError for malformed text and a *DomainError when the expression
// references neither x nor y.
func Compile(text string) (*CompiledFunction, error) {
	e, err := Parse(text)
	if err != nil {
		return nil, err
	}
	syms := FreeSymbols(e)
	if len(syms) == 0 {
		return nil, &DomainError{Input: text}
	}
	c := &CompiledFunction{
		source: strings.TrimSpace(text),
		expr:   e,
		grad:   Gradient(e, Vars[:]),
		hess:   Hessian(e, Vars[:]),
		f:      e.compile(),
		params: syms,
	}
	for i := range Vars {
		c.df[i] = c.grad[i].compile()
		for j := range Vars {
			c.d2f[i][j] = c.hess[i][j].compile()
		}
	}
	return c, nil
}

// MustCompile is like Compile but panics on error. Intended for
// package-level presets and tests.
func MustCompile(text string) *CompiledFunction {
	c, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return c
}

// Source returns the trimmed text the function was compiled from.
func (c *CompiledFunction) Source() string { return c.source }

// Expr returns the simplified expression tree.
func (c *CompiledFunction) Expr() Expr { return c.expr }

// Uses reports whether the expression references the named variable.
func (c *CompiledFunction) Uses(name string) bool {
	_, ok := c.params[name]
	return ok
}

// Value returns f(p) after the complex collapse, or Undefined.
func (c *CompiledFunction) Value(p Point) float64 { return collapse(c.f(p.X, p.Y)) }

// Gradient returns (∂f/∂x, ∂f/∂y) at p. Each component is collapsed on its
// own and may be Undefined independently of the other.
func (c *CompiledFunction) Gradient(p Point) Vec {
	return Vec{
		DX: collapse(c.df[0](p.X, p.Y)),
		DY: collapse(c.df[1](p.X, p.Y)),
	}
}

// Hessian returns the 2×2 matrix of second partials at p.
func (c *CompiledFunction) Hessian(p Point) *mat.Dense {
	data := make([]float64, 0, 4)
	for i := range Vars {
		for j := range Vars {
			data = append(data, collapse(c.d2f[i][j](p.X, p.Y)))
		}
	}
	return mat.NewDense(2, 2, data)
}

// Grid evaluates f on the mesh xs × ys. Row i holds y = ys[i] and column j
// holds x = xs[j]. It returns nil when either axis is empty.
func (c *CompiledFunction) Grid(xs, ys []float64) *mat.Dense {
	return c.mesh(c.f, xs, ys)
}

// GradientGrid evaluates both partials on the same mesh layout as Grid.
func (c *CompiledFunction) GradientGrid(xs, ys []float64) (dx, dy *mat.Dense) {
	return c.mesh(c.df[0], xs, ys), c.mesh(c.df[1], xs, ys)
}

func (c *CompiledFunction) mesh(f evalFunc, xs, ys []float64) *mat.Dense {
	if len(xs) == 0 || len(ys) == 0 {
		return nil
	}
	m := mat.NewDense(len(ys), len(xs), nil)
	for i, y := range ys {
		for j, x := range xs {
			m.Set(i, j, collapse(f(x, y)))
		}
	}
	return m
}

// Symbolic is the printable form of a compiled function and its partials.
type Symbolic struct {
	Expr       string   `json:"expr"`
	DX         string   `json:"dx"`
	DY         string   `json:"dy"`
	LaTeX      string   `json:"latex"`
	DXLaTeX    string   `json:"dx_latex"`
	DYLaTeX    string   `json:"dy_latex"`
	References []string `json:"references"`
}

// Symbolic renders f, ∂f/∂x and ∂f/∂y as plain text and LaTeX.
func (c *CompiledFunction) Symbolic() Symbolic {
	refs := make([]string, 0, len(Vars))
	for _, v := range Vars {
		if c.Uses(v) {
			refs = append(refs, v)
		}
	}
	return Symbolic{
		Expr:       c.expr.String(),
		DX:         c.grad[0].String(),
		DY:         c.grad[1].String(),
		LaTeX:      c.expr.LaTeX(),
		DXLaTeX:    c.grad[0].LaTeX(),
		DYLaTeX:    c.grad[1].LaTeX(),
		References: refs,
	}
}

// collapse maps a complex result to a real value: an imaginary part below
// ImagTolerance is dropped, anything else (or any non-finite part) is
// Undefined.
func collapse(z complex128) float64 {
	re, im := real(z), imag(z)
	if !isFinite(re) || !isFinite(im) || math.Abs(im) >= ImagTolerance {
		return Undefined
	}
	return re
}
