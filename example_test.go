package descent_test

import (
	"context"
	"fmt"

	"github.com/njchilds90/descent"
)

func ExampleCompile() {
	fn := descent.MustCompile("x**2 + y**2")
	sym := fn.Symbolic()
	fmt.Println(sym.Expr)
	fmt.Println(sym.DX, sym.DY)
	fmt.Println(fn.Value(descent.Pt(1, 2)))
	// Output:
	// x^2 + y^2
	// 2*x 2*y
	// 5
}

func ExampleSession_Step() {
	s, err := descent.NewSession(descent.MustCompile("x**2 + y**2"), descent.Params{
		Start:        descent.Pt(5, -4),
		LearningRate: 0.1,
		Budget:       25,
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(s.Step())
	fmt.Println(s.LastStep().UpdateRule(0.1))
	// Output:
	// advanced
	// x_new = x - α·∂f/∂x = 5.0000 - 0.1·10.0000 = 4.0000
	// y_new = y - α·∂f/∂y = -4.0000 - 0.1·-8.0000 = -3.2000
}

func ExampleSimulate() {
	res, err := descent.Simulate(context.Background(), descent.Request{Preset: "convex", Steps: 100, SkipReference: true})
	if err != nil {
		panic(err)
	}
	fmt.Println(res.Verdict, res.Class, res.StepCount)
	// Output:
	// converged minimum 100
}
