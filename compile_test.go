package descent_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/descent"
)

func TestCompile_DomainError(t *testing.T) {
	for _, in := range []string{"3 + 4", "pi", "exp(1)*e"} {
		t.Run(in, func(t *testing.T) {
			_, err := descent.Compile(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, descent.ErrDomain)
			assert.NotErrorIs(t, err, descent.ErrParse)
			var de *descent.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, in, de.Input)
		})
	}
}

func TestCompile_OverflowingConstant(t *testing.T) {
	for _, expr := range []string{"x + exp(1000)", "exp(1000)*x", "x**2 + y**2 + exp(800)"} {
		t.Run(expr, func(t *testing.T) {
			var fn *descent.CompiledFunction
			require.NotPanics(t, func() {
				var err error
				fn, err = descent.Compile(expr)
				require.NoError(t, err)
			})
			assert.False(t, descent.Evaluate(fn, descent.Pt(1, 1)).ValueDefined())
		})
	}

	require.NotPanics(t, func() {
		resp := descent.HandleToolCall(context.Background(), descent.ToolRequest{
			Tool:   "compile",
			Params: map[string]any{"expr": "x + exp(1000)"},
		})
		assert.Empty(t, resp.Error)
	})
}

func TestCompile_UnderflowingConstantKeepsVariable(t *testing.T) {
	fn, err := descent.Compile("x * exp(-1000)")
	require.NoError(t, err)
	assert.Equal(t, "exp(-1000)*x", fn.Symbolic().Expr)
	ev := descent.Evaluate(fn, descent.Pt(2, 0))
	assert.True(t, ev.ValueDefined())
	assert.Equal(t, 0.0, ev.Value)
}

func TestCompile_CancelledQuotientIsDefined(t *testing.T) {
	fn, err := descent.Compile("x/x + y")
	require.NoError(t, err)
	ev := descent.Evaluate(fn, descent.Pt(0, 2))
	require.True(t, ev.ValueDefined())
	assert.InDelta(t, 3.0, ev.Value, 1e-12)
}

func TestCompile_SingleVariableAllowed(t *testing.T) {
	fn, err := descent.Compile("x**2")
	require.NoError(t, err)
	assert.True(t, fn.Uses("x"))
	assert.False(t, fn.Uses("y"))
	assert.Equal(t, 0.0, fn.Gradient(descent.Pt(3, 7)).DY)
}

func TestCompile_AgreesWithDirectEvaluation(t *testing.T) {
	cases := []struct {
		expr string
		f    func(x, y float64) float64
	}{
		{"x**2 + y**2", func(x, y float64) float64 { return x*x + y*y }},
		{"0.3*x**2 - 0.3*y**2", func(x, y float64) float64 { return 0.3*x*x - 0.3*y*y }},
		{"(x**2 + y - 11)**2 + (x + y**2 - 7)**2", func(x, y float64) float64 {
			return math.Pow(x*x+y-11, 2) + math.Pow(x+y*y-7, 2)
		}},
		{"20 + (x**2 - 10*cos(2*pi*x)) + (y**2 - 10*cos(2*pi*y))", func(x, y float64) float64 {
			return 20 + (x*x - 10*math.Cos(2*math.Pi*x)) + (y*y - 10*math.Cos(2*math.Pi*y))
		}},
		{"sin(x)*exp(-y**2/2) + abs(x - y)", func(x, y float64) float64 {
			return math.Sin(x)*math.Exp(-y*y/2) + math.Abs(x-y)
		}},
		{"x/(1 + y**2) - sign(x)", func(x, y float64) float64 {
			s := 0.0
			if x > 0 {
				s = 1
			} else if x < 0 {
				s = -1
			}
			return x/(1+y*y) - s
		}},
	}
	points := []descent.Point{descent.Pt(0.5, -1.25), descent.Pt(-2, 3), descent.Pt(3.5, -2.5), descent.Pt(1, 1)}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			fn, err := descent.Compile(tc.expr)
			require.NoError(t, err)
			for _, p := range points {
				assert.InDelta(t, tc.f(p.X, p.Y), fn.Value(p), 1e-9, "at %v", p)
			}
		})
	}
}

func TestCompile_GradientMatchesFiniteDifferences(t *testing.T) {
	exprs := []string{
		"x**2 + y**2",
		"(x**2 + y - 11)**2 + (x + y**2 - 7)**2",
		"20 + (x**2 - 10*cos(2*pi*x)) + (y**2 - 10*cos(2*pi*y))",
		"sin(x)*cos(y) + exp(0.1*x*y)",
		"sqrt(x**2 + y**2 + 1)",
		"x*y/(1 + x**2)",
		"x**y",
		"2**(x + y)",
	}
	points := []descent.Point{descent.Pt(0.7, 0.3), descent.Pt(1.5, 2.25), descent.Pt(2.1, -0.4)}
	settings := &fd.Settings{Formula: fd.Central}
	for _, src := range exprs {
		t.Run(src, func(t *testing.T) {
			fn := descent.MustCompile(src)
			f := func(v []float64) float64 { return fn.Value(descent.Pt(v[0], v[1])) }
			for _, p := range points {
				want := fd.Gradient(nil, f, []float64{p.X, p.Y}, settings)
				got := fn.Gradient(p)
				tol := 1e-5 * math.Max(1, math.Abs(want[0])+math.Abs(want[1]))
				assert.InDelta(t, want[0], got.DX, tol, "d/dx at %v", p)
				assert.InDelta(t, want[1], got.DY, tol, "d/dy at %v", p)
			}
		})
	}
}

func TestCompile_HessianMatchesFiniteDifferences(t *testing.T) {
	fn := descent.MustCompile("(x**2 + y - 11)**2 + (x + y**2 - 7)**2")
	f := func(v []float64) float64 { return fn.Value(descent.Pt(v[0], v[1])) }
	p := descent.Pt(1.2, -0.8)
	want := mat.NewSymDense(2, nil)
	fd.Hessian(want, f, []float64{p.X, p.Y}, &fd.Settings{Formula: fd.Central})
	got := fn.Hessian(p)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, want.At(i, j), got.At(i, j), 1e-2, "H[%d][%d]", i, j)
		}
	}
}

func TestCompile_ComplexCollapse(t *testing.T) {
	t.Run("negative base fractional power is undefined", func(t *testing.T) {
		fn := descent.MustCompile("sqrt(x) + y")
		assert.True(t, math.IsNaN(fn.Value(descent.Pt(-4, 0))))
		assert.InDelta(t, 2.0, fn.Value(descent.Pt(4, 0)), 1e-12)
	})
	t.Run("negligible imaginary part collapses to real", func(t *testing.T) {
		fn := descent.MustCompile("sqrt(x)**2 + y")
		assert.InDelta(t, -4.0, fn.Value(descent.Pt(-4, 0)), 1e-9)
	})
	t.Run("integer power of negative base stays exact", func(t *testing.T) {
		fn := descent.MustCompile("x**3 + y")
		assert.Equal(t, -8.0, fn.Value(descent.Pt(-2, 0)))
	})
	t.Run("sqrt of square is absolute value", func(t *testing.T) {
		fn := descent.MustCompile("(x**2)**0.5 + y")
		assert.InDelta(t, 3.0, fn.Value(descent.Pt(-3, 0)), 1e-12)
	})
	t.Run("singularity is undefined", func(t *testing.T) {
		fn := descent.MustCompile("1/(x**2 + y**2)")
		assert.True(t, math.IsNaN(fn.Value(descent.Pt(0, 0))))
		g := fn.Gradient(descent.Pt(0, 0))
		assert.True(t, math.IsNaN(g.DX))
		assert.True(t, math.IsNaN(g.DY))
	})
	t.Run("overflow is undefined", func(t *testing.T) {
		fn := descent.MustCompile("exp(x*y)")
		assert.True(t, math.IsNaN(fn.Value(descent.Pt(100, 100))))
	})
}

func TestCompile_GridUsesSameFormula(t *testing.T) {
	fn := descent.MustCompile("(x**2 + y - 11)**2 + (x + y**2 - 7)**2")
	xs, ys := descent.Square(6).Linspace(7)
	grid := fn.Grid(xs, ys)
	require.NotNil(t, grid)
	r, c := grid.Dims()
	assert.Equal(t, len(ys), r)
	assert.Equal(t, len(xs), c)
	for i, yv := range ys {
		for j, xv := range xs {
			assert.Equal(t, fn.Value(descent.Pt(xv, yv)), grid.At(i, j))
		}
	}

	dx, dy := fn.GradientGrid(xs, ys)
	g := fn.Gradient(descent.Pt(xs[2], ys[5]))
	assert.Equal(t, g.DX, dx.At(5, 2))
	assert.Equal(t, g.DY, dy.At(5, 2))

	assert.Nil(t, fn.Grid(nil, ys))
}

func TestCompile_Symbolic(t *testing.T) {
	sym := descent.MustCompile("0.3*x**2 - 0.3*y**2").Symbolic()
	assert.Equal(t, "0.3*x^2 - 0.3*y^2", sym.Expr)
	assert.Equal(t, "0.6*x", sym.DX)
	assert.Equal(t, "-0.6*y", sym.DY)
	assert.Equal(t, []string{"x", "y"}, sym.References)
	assert.Equal(t, `\frac{3}{10} x^{2} - \frac{3}{10} y^{2}`, sym.LaTeX)
}
