package descent

import (
	"fmt"
	"math"
	"math/big"
	"math/cmplx"
	"sort"
	"strconv"
	"strings"
)

// ============================================================
// Core Interface
// ============================================================

// Expr is an immutable node of a parsed f(x, y). Trees are only ever
// replaced, never mutated in place.
type Expr interface {
	Simplify() Expr
	String() string
	LaTeX() string
	Diff(varName string) Expr
	Equal(other Expr) bool
	compile() evalFunc
	toJSON() map[string]any
}

// evalFunc evaluates a compiled node at (x, y). Results stay in complex128
// until the caller collapses them.
type evalFunc func(x, y float64) complex128

// ============================================================
// Num: exact rational number
// ============================================================

type Num struct{ val *big.Rat }

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }
func F(p, q int64) *Num {
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}
func NFloat(f float64) *Num { return &Num{val: new(big.Rat).SetFloat64(f)} }

func (n *Num) Simplify() Expr        { return n }
func (n *Num) Diff(string) Expr      { return N(0) }
func (n *Num) Equal(other Expr) bool { o, ok := other.(*Num); return ok && n.val.Cmp(o.val) == 0 }
func (n *Num) Float64() float64      { f, _ := n.val.Float64(); return f }
func (n *Num) IsZero() bool          { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool           { return n.val.Cmp(big.NewRat(1, 1)) == 0 }
func (n *Num) IsNegOne() bool        { return n.val.Cmp(big.NewRat(-1, 1)) == 0 }
func (n *Num) IsInteger() bool       { return n.val.IsInt() }
func (n *Num) IsNegative() bool      { return n.val.Sign() < 0 }

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return strconv.FormatFloat(n.Float64(), 'g', -1, 64)
}

func (n *Num) LaTeX() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	if n.val.Denom().Cmp(big.NewInt(1000)) > 0 {
		return n.String()
	}
	sign := ""
	v := new(big.Rat).Set(n.val)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	return fmt.Sprintf("%s\\frac{%s}{%s}", sign, v.Num().String(), v.Denom().String())
}

func (n *Num) compile() evalFunc {
	c := complex(n.Float64(), 0)
	return func(float64, float64) complex128 { return c }
}

func (n *Num) toJSON() map[string]any {
	return map[string]any{"type": "num", "value": n.val.RatString()}
}

func numAdd(a, b *Num) *Num { return &Num{val: new(big.Rat).Add(a.val, b.val)} }
func numMul(a, b *Num) *Num { return &Num{val: new(big.Rat).Mul(a.val, b.val)} }
func numNeg(a *Num) *Num    { return &Num{val: new(big.Rat).Neg(a.val)} }

// ============================================================
// Sym: the variables x and y
// ============================================================

type Sym struct{ name string }

func S(name string) *Sym              { return &Sym{name: name} }
func (s *Sym) Simplify() Expr         { return s }
func (s *Sym) String() string         { return s.name }
func (s *Sym) LaTeX() string          { return s.name }
func (s *Sym) Equal(other Expr) bool  { o, ok := other.(*Sym); return ok && s.name == o.name }
func (s *Sym) Name() string           { return s.name }
func (s *Sym) toJSON() map[string]any { return map[string]any{"type": "sym", "name": s.name} }

func (s *Sym) Diff(varName string) Expr {
	if s.name == varName {
		return N(1)
	}
	return N(0)
}

func (s *Sym) compile() evalFunc {
	switch s.name {
	case "x":
		return func(x, _ float64) complex128 { return complex(x, 0) }
	case "y":
		return func(_, y float64) complex128 { return complex(y, 0) }
	}
	nan := complex(math.NaN(), 0)
	return func(float64, float64) complex128 { return nan }
}

// ============================================================
// Const: named irrational constants (pi, e)
// ============================================================

type Const struct {
	name string
	val  float64
}

var (
	Pi    = &Const{name: "pi", val: math.Pi}
	Euler = &Const{name: "e", val: math.E}
)

func (c *Const) Simplify() Expr         { return c }
func (c *Const) String() string         { return c.name }
func (c *Const) Diff(string) Expr       { return N(0) }
func (c *Const) Equal(other Expr) bool  { o, ok := other.(*Const); return ok && c.name == o.name }
func (c *Const) toJSON() map[string]any { return map[string]any{"type": "const", "name": c.name} }

func (c *Const) LaTeX() string {
	if c.name == "pi" {
		return "\\pi"
	}
	return c.name
}

func (c *Const) compile() evalFunc {
	v := complex(c.val, 0)
	return func(float64, float64) complex128 { return v }
}

// ============================================================
// Add: sum of terms
// ============================================================

type Add struct{ terms []Expr }

func AddOf(terms ...Expr) Expr { return (&Add{terms: terms}).Simplify() }

// Simplify flattens nested sums, folds numbers and merges like terms by
// their non-numeric part. Terms keep first-appearance order with the numeric
// constant last.
func (a *Add) Simplify() Expr {
	flat := make([]Expr, 0, len(a.terms))
	for _, t := range a.terms {
		s := t.Simplify()
		if inner, ok := s.(*Add); ok {
			flat = append(flat, inner.terms...)
		} else {
			flat = append(flat, s)
		}
	}
	numAccum := N(0)
	coeffs := map[string]*Num{}
	rests := map[string]Expr{}
	order := []string{}
	for _, t := range flat {
		if v, ok := t.(*Num); ok {
			numAccum = numAdd(numAccum, v)
			continue
		}
		coeff, rest := splitCoeff(t)
		key := rest.String()
		if _, seen := coeffs[key]; !seen {
			order = append(order, key)
			coeffs[key] = N(0)
			rests[key] = rest
		}
		coeffs[key] = numAdd(coeffs[key], coeff)
	}
	result := []Expr{}
	for _, key := range order {
		coeff := coeffs[key]
		switch {
		case coeff.IsZero():
		case coeff.IsOne():
			result = append(result, rests[key])
		default:
			result = append(result, MulOf(coeff, rests[key]))
		}
	}
	if !numAccum.IsZero() {
		result = append(result, numAccum)
	}
	if len(result) == 0 {
		return N(0)
	}
	if len(result) == 1 {
		return result[0]
	}
	return &Add{terms: result}
}

// splitCoeff separates a simplified term into its numeric coefficient and
// the remaining factor.
func splitCoeff(e Expr) (*Num, Expr) {
	m, ok := e.(*Mul)
	if !ok || len(m.factors) < 2 {
		return N(1), e
	}
	c, ok := m.factors[0].(*Num)
	if !ok {
		return N(1), e
	}
	if len(m.factors) == 2 {
		return c, m.factors[1]
	}
	return c, &Mul{factors: m.factors[1:]}
}

// negated reports -e when e carries a negative leading coefficient, so sums
// can print "a - b" instead of "a + -1*b".
func negated(e Expr) (Expr, bool) {
	switch v := e.(type) {
	case *Num:
		if v.IsNegative() {
			return numNeg(v), true
		}
	case *Mul:
		if c, ok := v.factors[0].(*Num); ok && c.IsNegative() {
			return MulOf(append([]Expr{numNeg(c)}, v.factors[1:]...)...), true
		}
	}
	return e, false
}

func (a *Add) String() string {
	if len(a.terms) == 0 {
		return "0"
	}
	var b strings.Builder
	for i, t := range a.terms {
		pos, neg := negated(t)
		switch {
		case i == 0:
			b.WriteString(t.String())
		case neg:
			b.WriteString(" - " + pos.String())
		default:
			b.WriteString(" + " + t.String())
		}
	}
	return b.String()
}

func (a *Add) LaTeX() string {
	var b strings.Builder
	for i, t := range a.terms {
		pos, neg := negated(t)
		switch {
		case i == 0:
			b.WriteString(t.LaTeX())
		case neg:
			b.WriteString(" - " + pos.LaTeX())
		default:
			b.WriteString(" + " + t.LaTeX())
		}
	}
	return b.String()
}

func (a *Add) Diff(varName string) Expr {
	dTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		dTerms[i] = t.Diff(varName)
	}
	return AddOf(dTerms...)
}

func (a *Add) Equal(other Expr) bool {
	o, ok := other.(*Add)
	if !ok || len(a.terms) != len(o.terms) {
		return false
	}
	for i := range a.terms {
		if !a.terms[i].Equal(o.terms[i]) {
			return false
		}
	}
	return true
}

func (a *Add) compile() evalFunc {
	fs := make([]evalFunc, len(a.terms))
	for i, t := range a.terms {
		fs[i] = t.compile()
	}
	return func(x, y float64) complex128 {
		var acc complex128
		for _, f := range fs {
			acc += f(x, y)
		}
		return acc
	}
}

func (a *Add) toJSON() map[string]any {
	ts := make([]map[string]any, len(a.terms))
	for i, t := range a.terms {
		ts[i] = t.toJSON()
	}
	return map[string]any{"type": "add", "terms": ts}
}

// ============================================================
// Mul: product of factors
// ============================================================

type Mul struct{ factors []Expr }

func MulOf(factors ...Expr) Expr { return (&Mul{factors: factors}).Simplify() }

func (m *Mul) Simplify() Expr {
	flat := make([]Expr, 0, len(m.factors))
	for _, f := range m.factors {
		s := f.Simplify()
		if inner, ok := s.(*Mul); ok {
			flat = append(flat, inner.factors...)
		} else {
			flat = append(flat, s)
		}
	}
	flat = combinePowers(flat)
	coeff := N(1)
	others := []Expr{}
	for _, f := range flat {
		if v, ok := f.(*Num); ok {
			coeff = numMul(coeff, v)
		} else {
			others = append(others, f)
		}
	}
	if coeff.IsZero() {
		return N(0)
	}
	if len(others) == 0 {
		return coeff
	}

	// Precompute sort keys to avoid repeated String() calls in comparator.
	type keyed struct {
		e   Expr
		key string
	}
	ks := make([]keyed, len(others))
	for i, e := range others {
		ks[i] = keyed{e: e, key: e.String()}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key < ks[j].key })
	for i := range ks {
		others[i] = ks[i].e
	}

	if coeff.IsOne() {
		if len(others) == 1 {
			return others[0]
		}
		return &Mul{factors: others}
	}
	return &Mul{factors: append([]Expr{coeff}, others...)}
}

// combinePowers merges factors sharing a base by adding their exponents, so
// x*x becomes x^2 and x/x becomes 1. Numbers are left for the coefficient.
func combinePowers(factors []Expr) []Expr {
	type group struct {
		base Expr
		exps []Expr
	}
	var order []string
	groups := map[string]*group{}
	var nums []Expr
	for _, f := range factors {
		if _, ok := f.(*Num); ok {
			nums = append(nums, f)
			continue
		}
		base, exp := f, Expr(N(1))
		if p, ok := f.(*Pow); ok {
			base, exp = p.base, p.exp
		}
		key := base.String()
		g, ok := groups[key]
		if !ok {
			g = &group{base: base}
			groups[key] = g
			order = append(order, key)
		}
		g.exps = append(g.exps, exp)
	}
	if len(order) == len(factors)-len(nums) {
		return factors
	}
	out := nums
	for _, key := range order {
		g := groups[key]
		exp := g.exps[0]
		if len(g.exps) > 1 {
			exp = AddOf(g.exps...)
		}
		// (u*v)^1 comes back as a product.
		switch r := PowOf(g.base, exp).(type) {
		case *Mul:
			out = append(out, r.factors...)
		default:
			out = append(out, r)
		}
	}
	return out
}

// reciprocal reports the positive-power form of a factor with a negative
// numeric exponent, used to render quotients.
func reciprocal(e Expr) (Expr, bool) {
	p, ok := e.(*Pow)
	if !ok {
		return nil, false
	}
	n, ok := p.exp.(*Num)
	if !ok || !n.IsNegative() {
		return nil, false
	}
	return PowOf(p.base, numNeg(n)), true
}

func (m *Mul) split() (num, den []Expr) {
	for _, f := range m.factors {
		if r, ok := reciprocal(f); ok {
			den = append(den, r)
		} else {
			num = append(num, f)
		}
	}
	return num, den
}

func mulFactorString(f Expr) string {
	if _, isAdd := f.(*Add); isAdd {
		return "(" + f.String() + ")"
	}
	return f.String()
}

func (m *Mul) String() string {
	if len(m.factors) == 0 {
		return "1"
	}
	num, den := m.split()
	prefix := ""
	if len(num) > 1 && num[0].Equal(N(-1)) {
		prefix, num = "-", num[1:]
	}
	parts := make([]string, len(num))
	for i, f := range num {
		parts[i] = mulFactorString(f)
	}
	s := prefix + strings.Join(parts, "*")
	if len(num) == 0 {
		s = prefix + "1"
	}
	if len(den) == 0 {
		return s
	}
	dparts := make([]string, len(den))
	for i, f := range den {
		dparts[i] = mulFactorString(f)
	}
	d := strings.Join(dparts, "*")
	if len(den) > 1 {
		d = "(" + d + ")"
	}
	return s + "/" + d
}

func mulFactorLaTeX(f Expr) string {
	if _, isAdd := f.(*Add); isAdd {
		return "\\left(" + f.LaTeX() + "\\right)"
	}
	return f.LaTeX()
}

func (m *Mul) LaTeX() string {
	num, den := m.split()
	prefix := ""
	if len(num) > 1 && num[0].Equal(N(-1)) {
		prefix, num = "-", num[1:]
	}
	parts := make([]string, len(num))
	for i, f := range num {
		parts[i] = mulFactorLaTeX(f)
	}
	s := strings.Join(parts, " ")
	if len(num) == 0 {
		s = "1"
	}
	if len(den) == 0 {
		return prefix + s
	}
	dparts := make([]string, len(den))
	for i, f := range den {
		dparts[i] = mulFactorLaTeX(f)
	}
	return prefix + "\\frac{" + s + "}{" + strings.Join(dparts, " ") + "}"
}

func (m *Mul) Diff(varName string) Expr {
	terms := make([]Expr, len(m.factors))
	for i, fi := range m.factors {
		dfi := fi.Diff(varName)
		others := make([]Expr, 0, len(m.factors)-1)
		for j, fj := range m.factors {
			if j != i {
				others = append(others, fj)
			}
		}
		terms[i] = MulOf(append([]Expr{dfi}, others...)...)
	}
	return AddOf(terms...)
}

func (m *Mul) Equal(other Expr) bool {
	o, ok := other.(*Mul)
	if !ok || len(m.factors) != len(o.factors) {
		return false
	}
	for i := range m.factors {
		if !m.factors[i].Equal(o.factors[i]) {
			return false
		}
	}
	return true
}

func (m *Mul) compile() evalFunc {
	fs := make([]evalFunc, len(m.factors))
	for i, f := range m.factors {
		fs[i] = f.compile()
	}
	return func(x, y float64) complex128 {
		acc := complex(1, 0)
		for _, f := range fs {
			v := f(x, y)
			if imag(acc) == 0 && imag(v) == 0 {
				acc = complex(real(acc)*real(v), 0)
				continue
			}
			acc *= v
		}
		return acc
	}
}

func (m *Mul) toJSON() map[string]any {
	fs := make([]map[string]any, len(m.factors))
	for i, f := range m.factors {
		fs[i] = f.toJSON()
	}
	return map[string]any{"type": "mul", "factors": fs}
}

// ============================================================
// Pow: base^exponent
// ============================================================

type Pow struct{ base, exp Expr }

func PowOf(base, exp Expr) Expr { return (&Pow{base: base, exp: exp}).Simplify() }

func (p *Pow) Simplify() Expr {
	base := p.base.Simplify()
	exp := p.exp.Simplify()

	if en, ok := exp.(*Num); ok && en.IsZero() {
		return N(1)
	}
	if en, ok := exp.(*Num); ok && en.IsOne() {
		return base
	}

	// 0^0 and 0^negative stay symbolic and evaluate as undefined.
	if bn, ok := base.(*Num); ok && bn.IsZero() {
		if en, ok2 := exp.(*Num); ok2 && en.IsNegative() {
			return &Pow{base: base, exp: exp}
		}
		if _, ok2 := exp.(*Num); ok2 {
			return N(0)
		}
	}

	if bn, ok := base.(*Num); ok && bn.IsOne() {
		return N(1)
	}
	if bn, ok := base.(*Num); ok {
		if en, ok2 := exp.(*Num); ok2 && en.IsInteger() {
			e := en.val.Num().Int64()
			if e >= -20 && e <= 20 {
				posE := e
				if posE < 0 {
					posE = -posE
				}
				result := N(1)
				for i := int64(0); i < posE; i++ {
					result = numMul(result, bn)
				}
				if e < 0 {
					return &Num{val: new(big.Rat).Inv(result.val)}
				}
				return result
			}
		}
	}
	// (u^a)^b = u^(ab) only holds for integer exponents.
	if inner, ok := base.(*Pow); ok {
		ia, ok1 := inner.exp.(*Num)
		ob, ok2 := exp.(*Num)
		if ok1 && ok2 && ia.IsInteger() && ob.IsInteger() {
			return PowOf(inner.base, numMul(ia, ob))
		}
	}
	return &Pow{base: base, exp: exp}
}

func (p *Pow) isSqrt() bool {
	n, ok := p.exp.(*Num)
	return ok && n.val.Cmp(big.NewRat(1, 2)) == 0
}

func powBaseNeedsParens(e Expr) bool {
	switch v := e.(type) {
	case *Add, *Mul, *Pow:
		return true
	case *Num:
		return v.IsNegative() || !v.IsInteger()
	}
	return false
}

func powExpNeedsParens(e Expr) bool {
	switch v := e.(type) {
	case *Sym, *Const, *Func:
		return false
	case *Num:
		return v.IsNegative() || !v.IsInteger()
	}
	return true
}

func (p *Pow) String() string {
	if p.isSqrt() {
		return "sqrt(" + p.base.String() + ")"
	}
	baseStr := p.base.String()
	expStr := p.exp.String()
	if powBaseNeedsParens(p.base) {
		baseStr = "(" + baseStr + ")"
	}
	if powExpNeedsParens(p.exp) {
		expStr = "(" + expStr + ")"
	}
	return baseStr + "^" + expStr
}

func (p *Pow) LaTeX() string {
	if p.isSqrt() {
		return "\\sqrt{" + p.base.LaTeX() + "}"
	}
	baseStr := p.base.LaTeX()
	if powBaseNeedsParens(p.base) {
		baseStr = "\\left(" + baseStr + "\\right)"
	}
	return baseStr + "^{" + p.exp.LaTeX() + "}"
}

func (p *Pow) Diff(varName string) Expr {
	du := p.base.Diff(varName)
	dv := p.exp.Diff(varName)
	if !dependsOn(p.exp, varName) {
		newExp := AddOf(p.exp, N(-1))
		return MulOf(p.exp, PowOf(p.base, newExp), du)
	}
	if !dependsOn(p.base, varName) {
		return MulOf(PowOf(p.base, p.exp), LnOf(p.base), dv)
	}
	logTerm := MulOf(dv, LnOf(p.base))
	divTerm := MulOf(p.exp, du, PowOf(p.base, N(-1)))
	return MulOf(PowOf(p.base, p.exp), AddOf(logTerm, divTerm))
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

func (p *Pow) compile() evalFunc {
	base := p.base.compile()
	if n, ok := p.exp.(*Num); ok && n.IsInteger() {
		k := n.Float64()
		ck := complex(k, 0)
		return func(x, y float64) complex128 {
			b := base(x, y)
			if imag(b) == 0 {
				return complex(math.Pow(real(b), k), 0)
			}
			return cmplx.Pow(b, ck)
		}
	}
	exp := p.exp.compile()
	return func(x, y float64) complex128 {
		b, e := base(x, y), exp(x, y)
		if imag(b) == 0 && imag(e) == 0 {
			rb, re := real(b), real(e)
			if rb >= 0 || re == math.Trunc(re) {
				return complex(math.Pow(rb, re), 0)
			}
		}
		return cmplx.Pow(b, e)
	}
}

func (p *Pow) toJSON() map[string]any {
	return map[string]any{"type": "pow", "base": p.base.toJSON(), "exp": p.exp.toJSON()}
}

// ============================================================
// Func: named function applications
// ============================================================

type Func struct {
	name string
	arg  Expr
}

func funcOf(name string, arg Expr) *Func { return &Func{name: name, arg: arg} }

func SinOf(arg Expr) Expr  { return funcOf("sin", arg).Simplify() }
func CosOf(arg Expr) Expr  { return funcOf("cos", arg).Simplify() }
func ExpOf(arg Expr) Expr  { return funcOf("exp", arg).Simplify() }
func LnOf(arg Expr) Expr   { return funcOf("ln", arg).Simplify() }
func SqrtOf(arg Expr) Expr { return PowOf(arg, F(1, 2)) }
func AbsOf(arg Expr) Expr  { return funcOf("abs", arg).Simplify() }
func SignOf(arg Expr) Expr { return funcOf("sign", arg).Simplify() }

func (f *Func) Simplify() Expr {
	arg := f.arg.Simplify()
	if n, ok := arg.(*Num); ok {
		v := n.Float64()
		switch f.name {
		case "sin":
			if r, ok := foldFloat(math.Sin(v)); ok {
				return r
			}
		case "cos":
			if r, ok := foldFloat(math.Cos(v)); ok {
				return r
			}
		case "exp":
			if r, ok := foldFloat(math.Exp(v)); ok {
				return r
			}
		case "ln":
			if v > 0 {
				if r, ok := foldFloat(math.Log(v)); ok {
					return r
				}
			}
		case "abs":
			return &Num{val: new(big.Rat).Abs(n.val)}
		case "sign":
			return N(int64(n.val.Sign()))
		}
	}
	switch f.name {
	case "sin":
		if isNumEqual(arg, 0) {
			return N(0)
		}
	case "cos":
		if isNumEqual(arg, 0) {
			return N(1)
		}
	case "ln":
		if n2, ok := arg.(*Num); ok && n2.IsOne() {
			return N(0)
		}
		if c, ok := arg.(*Const); ok && c.name == "e" {
			return N(1)
		}
		if inner, ok := arg.(*Func); ok && inner.name == "exp" {
			return inner.arg
		}
	case "exp":
		if inner, ok := arg.(*Func); ok && inner.name == "ln" {
			return inner.arg
		}
	case "abs":
		if m, ok := arg.(*Mul); ok {
			if coeff, ok2 := m.factors[0].(*Num); ok2 && coeff.IsNegOne() {
				return AbsOf(MulOf(m.factors[1:]...))
			}
		}
	}
	return &Func{name: f.name, arg: arg}
}

// foldFloat turns a transcendental of a numeric argument into a Num. Results
// that overflow or underflow to zero stay symbolic; exact zeros such as
// sin(0) are folded by the identities in Simplify.
func foldFloat(v float64) (*Num, bool) {
	if v == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, false
	}
	return NFloat(v), true
}

func (f *Func) String() string { return f.name + "(" + f.arg.String() + ")" }

func (f *Func) LaTeX() string {
	switch f.name {
	case "sin", "cos", "exp", "ln":
		return "\\" + f.name + "\\left(" + f.arg.LaTeX() + "\\right)"
	case "abs":
		return "\\left|" + f.arg.LaTeX() + "\\right|"
	}
	return "\\operatorname{" + f.name + "}\\left(" + f.arg.LaTeX() + "\\right)"
}

func (f *Func) Diff(varName string) Expr {
	du := f.arg.Diff(varName)
	var outer Expr
	switch f.name {
	case "sin":
		outer = CosOf(f.arg)
	case "cos":
		outer = MulOf(N(-1), SinOf(f.arg))
	case "exp":
		outer = ExpOf(f.arg)
	case "ln":
		outer = PowOf(f.arg, N(-1))
	case "abs":
		outer = SignOf(f.arg)
	default:
		// sign is piecewise constant.
		return N(0)
	}
	return MulOf(outer, du)
}

func (f *Func) Equal(other Expr) bool {
	o, ok := other.(*Func)
	return ok && f.name == o.name && f.arg.Equal(o.arg)
}

func (f *Func) compile() evalFunc {
	arg := f.arg.compile()
	var rf func(float64) float64
	var cf func(complex128) complex128
	switch f.name {
	case "sin":
		rf, cf = math.Sin, cmplx.Sin
	case "cos":
		rf, cf = math.Cos, cmplx.Cos
	case "exp":
		rf, cf = math.Exp, cmplx.Exp
	case "ln":
		rf, cf = math.Log, cmplx.Log
	case "abs":
		rf, cf = math.Abs, func(z complex128) complex128 { return complex(cmplx.Abs(z), 0) }
	case "sign":
		rf, cf = signum, func(z complex128) complex128 {
			if z == 0 {
				return 0
			}
			return z / complex(cmplx.Abs(z), 0)
		}
	default:
		nan := complex(math.NaN(), 0)
		return func(float64, float64) complex128 { return nan }
	}
	return func(x, y float64) complex128 {
		v := arg(x, y)
		// ln of a negative real leaves the real line.
		if imag(v) == 0 && (f.name != "ln" || real(v) >= 0) {
			return complex(rf(real(v)), 0)
		}
		return cf(v)
	}
}

func (f *Func) toJSON() map[string]any {
	return map[string]any{"type": "func", "name": f.name, "arg": f.arg.toJSON()}
}

func signum(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	case v == 0:
		return 0
	}
	return math.NaN()
}

func isNumEqual(e Expr, v int64) bool {
	n, ok := e.(*Num)
	return ok && n.Equal(N(v))
}

// ============================================================
// Free Symbols
// ============================================================

// FreeSymbols returns the set of variable names referenced by e.
func FreeSymbols(e Expr) map[string]struct{} {
	result := map[string]struct{}{}
	collectSymbols(e, result)
	return result
}

func collectSymbols(e Expr, out map[string]struct{}) {
	switch v := e.(type) {
	case *Sym:
		out[v.name] = struct{}{}
	case *Add:
		for _, t := range v.terms {
			collectSymbols(t, out)
		}
	case *Mul:
		for _, f := range v.factors {
			collectSymbols(f, out)
		}
	case *Pow:
		collectSymbols(v.base, out)
		collectSymbols(v.exp, out)
	case *Func:
		collectSymbols(v.arg, out)
	}
}

func dependsOn(e Expr, varName string) bool {
	_, ok := FreeSymbols(e)[varName]
	return ok
}

// Diff returns the simplified partial derivative of expr.
func Diff(expr Expr, varName string) Expr {
	return expr.Diff(varName).Simplify()
}
