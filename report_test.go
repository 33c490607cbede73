package descent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/descent"
)

func run(t *testing.T, expr string, start descent.Point, alpha float64, budget int) descent.Report {
	t.Helper()
	s := newSession(t, expr, start, alpha, budget)
	_, err := s.RunToCompletion(context.Background(), nil)
	require.NoError(t, err)
	return descent.Summarize(s)
}

func TestSummarize_InProgress(t *testing.T) {
	s := newSession(t, "x**2 + y**2", descent.Pt(5, -4), 0.1, 10)
	s.Step()
	r := descent.Summarize(s)
	assert.Equal(t, descent.InProgress, r.Verdict)
	assert.Equal(t, 1, r.Steps)
	assert.Contains(t, r.Message(), "in progress")
}

func TestSummarize_Converged(t *testing.T) {
	cases := []struct {
		name  string
		expr  string
		start descent.Point
		class descent.PointClass
	}{
		{"bowl", "x**2 + y**2", descent.Pt(5, -4), descent.Minimum},
		{"cap", "-(x**2 + y**2)", descent.Pt(0, 0), descent.Maximum},
		{"saddle ridge", "0.3*x**2 - 0.3*y**2", descent.Pt(2, 0), descent.Saddle},
		{"flat", "x**4 + y**4", descent.Pt(0, 0), descent.Degenerate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := run(t, tc.expr, tc.start, 0.1, 200)
			assert.Equal(t, descent.Converged, r.Verdict)
			assert.Less(t, r.GradientNorm, descent.ConvergenceThreshold)
			assert.Equal(t, tc.class, r.Class)
			assert.Contains(t, r.Message(), string(tc.class))
		})
	}
}

func TestReport_MessageWithoutClass(t *testing.T) {
	r := descent.Report{Verdict: descent.Converged, Final: descent.Pt(1, 2)}
	assert.Contains(t, r.Message(), "near a stationary point")
	assert.True(t, strings.HasSuffix(r.Message(), "stationary point"), r.Message())
	assert.NotContains(t, r.Message(), "()")

	r.Class = descent.Minimum
	assert.Contains(t, r.Message(), "stationary point (minimum)")
}

func TestSummarize_BudgetExhausted(t *testing.T) {
	p, err := descent.LookupPreset("saddle")
	require.NoError(t, err)
	pp := p.Params()
	r := run(t, p.Expr, pp.Start, pp.LearningRate, pp.Budget)
	assert.Equal(t, descent.BudgetExhausted, r.Verdict)
	assert.Equal(t, descent.Unclassified, r.Class)
	assert.Equal(t, pp.Budget, r.Steps)
	assert.Empty(t, r.Warnings)
}

func TestSummarize_Diverged(t *testing.T) {
	r := run(t, "x**2 + y**2", descent.Pt(1, 1), 1.5, 2000)
	assert.Equal(t, descent.Diverged, r.Verdict)
	assert.Equal(t, descent.HaltedFailure, r.State)
	assert.NotEmpty(t, r.Diagnostic)
	assert.Contains(t, r.Message(), "diverged")
	require.Len(t, r.Warnings, 2)
	assert.Contains(t, r.Warnings[0], "keeps increasing")
	assert.Contains(t, r.Warnings[1], "very large")
}

func TestSummarize_FailureAtStart(t *testing.T) {
	r := run(t, "sqrt(x) + y", descent.Pt(-4, 0), 0.1, 10)
	assert.Equal(t, descent.Failure, r.Verdict)
	assert.Zero(t, r.Steps)
	assert.Equal(t, r.Diagnostic, r.Message())
}

func TestSummarize_RisingNeedsLargeRate(t *testing.T) {
	// Both runs overshoot by a factor of -2 per step.
	r := run(t, "15*(x**2 + y**2)", descent.Pt(1, 1), 0.1, 20)
	assert.Equal(t, descent.BudgetExhausted, r.Verdict)
	assert.Empty(t, r.Warnings)

	r = run(t, "5*(x**2 + y**2)", descent.Pt(1, 1), 0.3, 20)
	assert.Equal(t, descent.BudgetExhausted, r.Verdict)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "keeps increasing")
}
