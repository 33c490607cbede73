package descent

import (
	"fmt"
	"math/big"
	"strings"
)

// maxNesting bounds parenthesis and unary-operator depth so hostile input
// cannot exhaust the stack.
const maxNesting = 256

// Parse reads a restricted arithmetic expression in x and y.
//
// Precedence (low to high):
//  1. + - (additive, left-associative)
//  2. * / (multiplicative, left-associative)
//  3. unary + -
//  4. ** ^ (right-associative; -x**2 is -(x**2))
//  5. primaries: numbers, x, y, pi, e, f(...), (...)
//
// Only cos, sin, exp, sqrt, abs (or Abs) and sign may be called. Implicit
// multiplication such as "2x" is rejected.
func Parse(text string) (Expr, error) {
	p := &exprParser{src: text}
	p.skipSpaces()
	if p.pos >= len(p.src) {
		return nil, p.errorf("empty expression")
	}
	node, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.remaining())
	}
	return node.Simplify(), nil
}

type exprParser struct {
	src   string
	pos   int
	depth int
}

func (p *exprParser) errorf(format string, args ...any) *ParseError {
	return &ParseError{Input: p.src, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) hasPrefix(s string) bool { return strings.HasPrefix(p.src[p.pos:], s) }

func (p *exprParser) remaining() string {
	got := p.src[p.pos:]
	if len(got) > 20 {
		got = got[:20] + "..."
	}
	return got
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *exprParser) enter() error {
	p.depth++
	if p.depth > maxNesting {
		return p.errorf("expression nested deeper than %d levels", maxNesting)
	}
	return nil
}

func (p *exprParser) leave() { p.depth-- }

// parseAddSub handles infix + and - (lowest precedence).
func (p *exprParser) parseAddSub() (Expr, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpaces()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		if op == '-' {
			right = &Mul{factors: []Expr{N(-1), right}}
		}
		left = &Add{terms: []Expr{left, right}}
	}
}

// parseMulDiv handles explicit * and /. A '*' followed by another '*' is a
// power operator and belongs to parsePower.
func (p *exprParser) parseMulDiv() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.hasPrefix("**"):
			return nil, p.errorf("unexpected power operator")
		case p.peek() == '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &Mul{factors: []Expr{left, right}}
		case p.peek() == '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = &Mul{factors: []Expr{left, &Pow{base: right, exp: N(-1)}}}
		default:
			return left, nil
		}
	}
}

// parseUnary handles prefix + and -, which bind looser than powers.
func (p *exprParser) parseUnary() (Expr, error) {
	p.skipSpaces()
	op := p.peek()
	if op != '+' && op != '-' {
		return p.parsePower()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.pos++
	child, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if op == '-' {
		return &Mul{factors: []Expr{N(-1), child}}, nil
	}
	return child, nil
}

// parsePower handles ** and ^. The exponent is parsed as a unary expression,
// which makes the operator right-associative and admits x**-2.
func (p *exprParser) parsePower() (Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	switch {
	case p.hasPrefix("**"):
		p.pos += 2
	case p.peek() == '^':
		p.pos++
	default:
		return base, nil
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &Pow{base: base, exp: exp}, nil
}

func (p *exprParser) parsePrimary() (Expr, error) {
	p.skipSpaces()
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '(':
		return p.parseGroup()
	case isDigit(c) || c == '.':
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseIdent()
	}
	return nil, p.errorf("unexpected token %q", string(c))
}

func (p *exprParser) parseGroup() (Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.pos++ // (
	inner, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.peek() != ')' {
		return nil, p.errorf("expected %q", ")")
	}
	p.pos++
	return inner, nil
}

// parseNumber reads a decimal literal with an optional exponent, keeping the
// value exact.
func (p *exprParser) parseNumber() (Expr, error) {
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	if p.peek() == '.' {
		p.pos++
		for isDigit(p.peek()) {
			p.pos++
		}
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		// Only an exponent when digits follow; otherwise "e" is left for the
		// caller to reject as implicit multiplication.
		q := p.pos + 1
		if q < len(p.src) && (p.src[q] == '+' || p.src[q] == '-') {
			q++
		}
		if q < len(p.src) && isDigit(p.src[q]) {
			p.pos = q
			for isDigit(p.peek()) {
				p.pos++
			}
		}
	}
	lit := p.src[start:p.pos]
	if !strings.ContainsAny(lit, "0123456789") {
		p.pos = start
		return nil, p.errorf("malformed number %q", lit)
	}
	if strings.HasPrefix(lit, ".") {
		lit = "0" + lit
	}
	r, ok := new(big.Rat).SetString(lit)
	if !ok {
		p.pos = start
		return nil, p.errorf("malformed number %q", lit)
	}
	return &Num{val: r}, nil
}

var functions = map[string]func(Expr) Expr{
	"cos":  func(e Expr) Expr { return funcOf("cos", e) },
	"sin":  func(e Expr) Expr { return funcOf("sin", e) },
	"exp":  func(e Expr) Expr { return funcOf("exp", e) },
	"sqrt": func(e Expr) Expr { return &Pow{base: e, exp: F(1, 2)} },
	"abs":  func(e Expr) Expr { return funcOf("abs", e) },
	"Abs":  func(e Expr) Expr { return funcOf("abs", e) },
	"sign": func(e Expr) Expr { return funcOf("sign", e) },
}

func (p *exprParser) parseIdent() (Expr, error) {
	start := p.pos
	for isIdentPart(p.peek()) {
		p.pos++
	}
	name := p.src[start:p.pos]
	if build, ok := functions[name]; ok {
		p.skipSpaces()
		if p.peek() != '(' {
			return nil, p.errorf("expected %q after function %s", "(", name)
		}
		arg, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return build(arg), nil
	}
	switch name {
	case "x", "y":
		return S(name), nil
	case "pi":
		return Pi, nil
	case "e":
		return Euler, nil
	}
	p.pos = start
	return nil, p.errorf("unknown identifier %q", name)
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c|0x20) >= 'a' && (c|0x20) <= 'z' }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }
