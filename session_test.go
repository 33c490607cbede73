package descent_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/descent"
)

func newSession(t *testing.T, expr string, start descent.Point, alpha float64, budget int) *descent.Session {
	t.Helper()
	s, err := descent.NewSession(descent.MustCompile(expr), descent.Params{Start: start, LearningRate: alpha, Budget: budget})
	require.NoError(t, err)
	return s
}

func TestParams_Validate(t *testing.T) {
	ok := descent.Params{Start: descent.Pt(1, 1), LearningRate: 0.1, Budget: 10}
	require.NoError(t, ok.Validate())

	cases := map[string]descent.Params{
		"nan start":      {Start: descent.Pt(math.NaN(), 0), LearningRate: 0.1, Budget: 10},
		"inf start":      {Start: descent.Pt(0, math.Inf(-1)), LearningRate: 0.1, Budget: 10},
		"zero rate":      {Start: descent.Pt(1, 1), LearningRate: 0, Budget: 10},
		"negative rate":  {Start: descent.Pt(1, 1), LearningRate: -0.1, Budget: 10},
		"infinite rate":  {Start: descent.Pt(1, 1), LearningRate: math.Inf(1), Budget: 10},
		"zero budget":    {Start: descent.Pt(1, 1), LearningRate: 0.1, Budget: 0},
		"budget too big": {Start: descent.Pt(1, 1), LearningRate: 0.1, Budget: descent.MaxBudget + 1},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, p.Validate(), descent.ErrInvalidParams)
		})
	}
}

func TestNewSession_RejectsNilFunction(t *testing.T) {
	_, err := descent.NewSession(nil, descent.Params{LearningRate: 0.1, Budget: 1})
	assert.ErrorIs(t, err, descent.ErrInvalidParams)
}

func TestSession_ResetState(t *testing.T) {
	s := newSession(t, "x**2 + y**2", descent.Pt(5, -4), 0.1, 25)
	assert.Equal(t, descent.Idle, s.State())
	assert.Equal(t, []descent.Point{descent.Pt(5, -4)}, s.Path())
	assert.Equal(t, []float64{41}, s.Values())
	assert.Zero(t, s.StepCount())
	assert.Nil(t, s.LastStep())

	s.Step()
	s.Step()
	s.Reset(descent.Pt(1, 2))
	assert.Equal(t, descent.Idle, s.State())
	assert.Equal(t, []descent.Point{descent.Pt(1, 2)}, s.Path())
	assert.Equal(t, []float64{5}, s.Values())
	assert.Equal(t, descent.Pt(1, 2), s.Params().Start)
	assert.Empty(t, s.Diagnostic())
}

func TestSession_FirstStep(t *testing.T) {
	s := newSession(t, "x**2 + y**2", descent.Pt(5, -4), 0.1, 25)
	assert.Equal(t, descent.Advanced, s.Step())
	assert.Equal(t, descent.Stepping, s.State())

	cur := s.Current()
	assert.InDelta(t, 4.0, cur.X, 1e-12)
	assert.InDelta(t, -3.2, cur.Y, 1e-12)

	last := s.LastStep()
	require.NotNil(t, last)
	assert.Equal(t, 1, last.Index)
	assert.Equal(t, descent.Pt(5, -4), last.Current)
	assert.InDelta(t, 41.0, last.Value, 1e-12)
	assert.InDelta(t, 10.0, last.Gradient.DX, 1e-12)
	assert.InDelta(t, -8.0, last.Gradient.DY, 1e-12)
	assert.InDelta(t, 26.24, last.NextValue, 1e-9)
	assert.Contains(t, last.UpdateRule(0.1), "x_new = x - α·∂f/∂x = 5.0000 - 0.1·10.0000 = 4.0000")
	assert.Contains(t, last.UpdateRule(0.1), "y_new = y - α·∂f/∂y = -4.0000 - 0.1·-8.0000 = -3.2000")
}

func TestSession_PathAndValuesStayAligned(t *testing.T) {
	s := newSession(t, "x**2 + y**2", descent.Pt(5, -4), 0.1, 25)
	out, err := s.RunToCompletion(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, descent.ReachedBudget, out)
	assert.Equal(t, descent.HaltedBudget, s.State())
	assert.Equal(t, 25, s.StepCount())

	path, values := s.Path(), s.Values()
	require.Len(t, path, 26)
	require.Len(t, values, 26)
	for i := 1; i < len(values); i++ {
		assert.Less(t, values[i], values[i-1], "value must decrease at step %d", i)
	}
}

func TestSession_HaltedStepIsNoOp(t *testing.T) {
	s := newSession(t, "x**2 + y**2", descent.Pt(1, 1), 0.1, 1)
	assert.Equal(t, descent.ReachedBudget, s.Step())
	path := s.Path()
	assert.Equal(t, descent.CannotProceed, s.Step())
	assert.Equal(t, path, s.Path())
	assert.Equal(t, 1, s.StepCount())
}

func TestSession_UndefinedStart(t *testing.T) {
	s := newSession(t, "sqrt(x) + y", descent.Pt(-4, 0), 0.1, 10)
	assert.Empty(t, s.Values())

	assert.Equal(t, descent.Failed, s.Step())
	assert.Equal(t, descent.HaltedFailure, s.State())
	assert.Len(t, s.Path(), 1)
	assert.Zero(t, s.StepCount())
	assert.Contains(t, s.Diagnostic(), "undefined")

	last := s.LastStep()
	require.NotNil(t, last)
	assert.Nil(t, last.Next)
	assert.Contains(t, last.UpdateRule(0.1), "no update")
}

func TestSession_UndefinedGradient(t *testing.T) {
	// sqrt(y^2) is defined at y = 0 but its derivative is not.
	s := newSession(t, "x**2 + sqrt(y**2)", descent.Pt(1, 0), 0.1, 10)
	assert.Equal(t, []float64{1}, s.Values())
	assert.Equal(t, descent.Failed, s.Step())
	assert.Equal(t, descent.HaltedFailure, s.State())
	assert.Contains(t, s.Diagnostic(), "gradient")
}

func TestSession_RunToCompletion_Between(t *testing.T) {
	s := newSession(t, "x**2 + y**2", descent.Pt(5, -4), 0.1, 5)
	var seen []int
	_, err := s.RunToCompletion(context.Background(), func(d descent.StepDetail) {
		require.NotNil(t, d.Next)
		seen = append(seen, d.Index)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestSession_RunToCompletion_Canceled(t *testing.T) {
	s := newSession(t, "x**2 + y**2", descent.Pt(5, -4), 0.1, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RunToCompletion(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.StepCount())
	assert.Equal(t, descent.Idle, s.State())
}

func TestSession_Copies(t *testing.T) {
	s := newSession(t, "x**2 + y**2", descent.Pt(5, -4), 0.1, 5)
	s.Step()
	p := s.Path()
	p[0] = descent.Pt(99, 99)
	assert.Equal(t, descent.Pt(5, -4), s.Path()[0])

	last := s.LastStep()
	last.Next.X = 99
	assert.NotEqual(t, 99.0, s.LastStep().Next.X)
}
