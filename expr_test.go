package descent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/njchilds90/descent"
)

var (
	x = descent.S("x")
	y = descent.S("y")
)

// ============================================================
// Num tests
// ============================================================

func TestNum_Integer(t *testing.T) {
	assert.Equal(t, "42", descent.N(42).String())
}

func TestNum_Fraction(t *testing.T) {
	assert.Equal(t, "0.25", descent.F(1, 4).String())
	assert.Equal(t, `\frac{2}{5}`, descent.F(2, 5).LaTeX())
	assert.Equal(t, `-\frac{1}{3}`, descent.F(-1, 3).LaTeX())
}

func TestNum_Diff_IsZero(t *testing.T) {
	assert.Equal(t, "0", descent.Diff(descent.N(5), "x").String())
}

// ============================================================
// Sym tests
// ============================================================

func TestSym_Diff(t *testing.T) {
	assert.Equal(t, "1", descent.Diff(x, "x").String())
	assert.Equal(t, "0", descent.Diff(x, "y").String())
}

// ============================================================
// Add tests
// ============================================================

func TestAdd_LikeTerms(t *testing.T) {
	assert.Equal(t, "2*x", descent.AddOf(x, x).String())
}

func TestAdd_CollapseToZero(t *testing.T) {
	assert.Equal(t, "0", descent.AddOf(x, descent.MulOf(descent.N(-1), x)).String())
}

func TestAdd_PrintsSubtraction(t *testing.T) {
	e := descent.AddOf(x, descent.MulOf(descent.N(-3), y), descent.N(-1))
	assert.Equal(t, "x - 3*y - 1", e.String())
	assert.Equal(t, "x - 3 y - 1", e.LaTeX())
}

func TestAdd_SingleTerm(t *testing.T) {
	assert.True(t, descent.AddOf(x).Equal(x))
}

// ============================================================
// Mul tests
// ============================================================

func TestMul_ZeroCollapse(t *testing.T) {
	assert.Equal(t, "0", descent.MulOf(descent.N(0), x).String())
}

func TestMul_OneElide(t *testing.T) {
	assert.Equal(t, "x", descent.MulOf(descent.N(1), x).String())
}

func TestMul_Negation(t *testing.T) {
	assert.Equal(t, "-x", descent.MulOf(descent.N(-1), x).String())
}

func TestMul_ProductRule(t *testing.T) {
	e := descent.MulOf(x, descent.SinOf(x))
	assert.Equal(t, "cos(x)*x + sin(x)", descent.Diff(e, "x").String())
	assert.Equal(t, "y", descent.Diff(descent.MulOf(x, y), "x").String())
}

func TestMul_Quotient(t *testing.T) {
	e := descent.MulOf(x, descent.PowOf(y, descent.N(-1)))
	assert.Equal(t, "x/y", e.String())
	assert.Equal(t, `\frac{x}{y}`, e.LaTeX())
}

func TestMul_CombinesPowers(t *testing.T) {
	assert.Equal(t, "6*x^2", descent.MulOf(descent.N(2), x, descent.N(3), x).String())
	assert.Equal(t, "1", descent.MulOf(x, descent.PowOf(x, descent.N(-1))).String())
	assert.Equal(t, "x^5*y", descent.MulOf(descent.PowOf(x, descent.N(2)), y, descent.PowOf(x, descent.N(3))).String())
	assert.Equal(t, "x^(y + 1)", descent.MulOf(x, descent.PowOf(x, y)).String())
}

// ============================================================
// Pow tests
// ============================================================

func TestPow_Simple(t *testing.T) {
	assert.Equal(t, "x^2", descent.PowOf(x, descent.N(2)).String())
	assert.Equal(t, "x^{2}", descent.PowOf(x, descent.N(2)).LaTeX())
}

func TestPow_ZeroAndOneExp(t *testing.T) {
	assert.Equal(t, "1", descent.PowOf(x, descent.N(0)).String())
	assert.Equal(t, "x", descent.PowOf(x, descent.N(1)).String())
}

func TestPow_NumericFold(t *testing.T) {
	assert.Equal(t, "8", descent.PowOf(descent.N(2), descent.N(3)).String())
	assert.Equal(t, "0.25", descent.PowOf(descent.N(2), descent.N(-2)).String())
}

func TestPow_Diff_PowerRule(t *testing.T) {
	assert.Equal(t, "3*x^2", descent.Diff(descent.PowOf(x, descent.N(3)), "x").String())
	assert.Equal(t, "0", descent.Diff(descent.PowOf(x, descent.N(3)), "y").String())
}

func TestPow_NestedFractionalNotCollapsed(t *testing.T) {
	// sqrt(x^2) is |x|, not x.
	e := descent.PowOf(descent.PowOf(x, descent.N(2)), descent.F(1, 2))
	assert.Equal(t, "sqrt(x^2)", e.String())
}

func TestPow_NestedIntegerCollapsed(t *testing.T) {
	e := descent.PowOf(descent.PowOf(x, descent.N(2)), descent.N(3))
	assert.Equal(t, "x^6", e.String())
}

func TestSqrt_Diff(t *testing.T) {
	assert.Equal(t, "sqrt(x)", descent.SqrtOf(x).String())
	assert.Equal(t, `\sqrt{x}`, descent.SqrtOf(x).LaTeX())
	assert.Equal(t, "0.5/sqrt(x)", descent.Diff(descent.SqrtOf(x), "x").String())
}

// ============================================================
// Func tests
// ============================================================

func TestFunc_Diff(t *testing.T) {
	cases := []struct {
		name string
		e    descent.Expr
		want string
	}{
		{"sin", descent.SinOf(x), "cos(x)"},
		{"cos", descent.CosOf(x), "-sin(x)"},
		{"exp", descent.ExpOf(x), "exp(x)"},
		{"ln", descent.LnOf(x), "x^(-1)"},
		{"abs", descent.AbsOf(x), "sign(x)"},
		{"sign", descent.SignOf(x), "0"},
		{"chain", descent.SinOf(descent.MulOf(descent.N(2), x)), "2*cos(2*x)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, descent.Diff(tc.e, "x").String())
		})
	}
}

func TestFunc_NumericFold(t *testing.T) {
	assert.Equal(t, "0", descent.SinOf(descent.N(0)).String())
	assert.Equal(t, "1", descent.CosOf(descent.N(0)).String())
	assert.Equal(t, "3", descent.AbsOf(descent.N(-3)).String())
	assert.Equal(t, "-1", descent.SignOf(descent.N(-3)).String())
	assert.Equal(t, "1", descent.LnOf(descent.Euler).String())
	assert.Equal(t, "1", descent.ExpOf(descent.N(0)).String())
}

func TestFunc_NumericFoldKeepsOutOfRangeSymbolic(t *testing.T) {
	assert.Equal(t, "exp(1000)", descent.ExpOf(descent.N(1000)).String())
	assert.Equal(t, "exp(-1000)", descent.ExpOf(descent.N(-1000)).String())
	assert.Equal(t, "exp(-1000)*x", descent.MulOf(x, descent.ExpOf(descent.N(-1000))).String())
}

func TestFunc_LaTeX(t *testing.T) {
	assert.Equal(t, `\sin\left(x\right)`, descent.SinOf(x).LaTeX())
	assert.Equal(t, `\left|x\right|`, descent.AbsOf(x).LaTeX())
	assert.Equal(t, `\operatorname{sign}\left(x\right)`, descent.SignOf(x).LaTeX())
}

// ============================================================
// Free symbols
// ============================================================

func TestFreeSymbols(t *testing.T) {
	e := descent.AddOf(descent.MulOf(x, descent.Pi), descent.SinOf(y))
	syms := descent.FreeSymbols(e)
	assert.Len(t, syms, 2)
	assert.Contains(t, syms, "x")
	assert.Contains(t, syms, "y")
}

func TestFreeSymbols_Constant(t *testing.T) {
	assert.Empty(t, descent.FreeSymbols(descent.MulOf(descent.N(2), descent.Pi)))
}
