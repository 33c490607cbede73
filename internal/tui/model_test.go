package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/descent"
)

func newModel(t *testing.T, budget int, opts Options) *Model {
	t.Helper()
	fn, err := descent.Compile("x**2 + y**2")
	require.NoError(t, err)
	sess, err := descent.NewSession(fn, descent.Params{Start: descent.Pt(5, -4), LearningRate: 0.1, Budget: budget})
	require.NoError(t, err)
	if opts.Region == (descent.Region{}) {
		opts.Region = descent.Square(6)
	}
	return New(sess, opts)
}

func press(m *Model, s string) tea.Cmd {
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	if s == " " {
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(s)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func TestModel_Step(t *testing.T) {
	m := newModel(t, 10, Options{})

	assert.Nil(t, press(m, "n"))
	assert.Equal(t, 1, m.Session().StepCount())
	assert.InDelta(t, 4, m.Session().Current().X, 1e-12)
	assert.InDelta(t, -3.2, m.Session().Current().Y, 1e-12)
	assert.Contains(t, m.View(), "x_new = x - α·∂f/∂x")
}

func TestModel_PlayPause(t *testing.T) {
	m := newModel(t, 10, Options{})

	require.NotNil(t, press(m, " "))
	assert.True(t, m.Playing())
	assert.Contains(t, m.View(), "playing every 250ms")

	_, cmd := m.Update(tickMsg{gen: m.gen})
	assert.NotNil(t, cmd)
	assert.Equal(t, 1, m.Session().StepCount())

	stale := m.gen
	assert.Nil(t, press(m, " "))
	assert.False(t, m.Playing())
	_, cmd = m.Update(tickMsg{gen: stale})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, m.Session().StepCount())
}

func TestModel_HaltRunsReference(t *testing.T) {
	m := newModel(t, 2, Options{})

	press(m, "n")
	cmd := press(m, "n")
	require.True(t, m.Session().State().Halted())
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "searching for a reference minimum")

	m.Update(cmd())
	ref := m.Reference()
	require.NotNil(t, ref)
	assert.InDelta(t, 0, ref.Point.X, 1e-3)
	assert.InDelta(t, 0, ref.Point.Y, 1e-3)
	assert.Contains(t, m.View(), "budget of 2 steps used")

	// Halted sessions cannot be played.
	assert.Nil(t, press(m, " "))
	assert.False(t, m.Playing())
}

func TestModel_ResetDropsStaleReference(t *testing.T) {
	m := newModel(t, 1, Options{})

	cmd := press(m, "n")
	require.NotNil(t, cmd)
	msg := cmd()

	press(m, "r")
	assert.Equal(t, 0, m.Session().StepCount())
	assert.Equal(t, descent.Idle, m.Session().State())

	m.Update(msg)
	assert.Nil(t, m.Reference())
}

func TestModel_SkipReference(t *testing.T) {
	m := newModel(t, 1, Options{SkipReference: true})
	assert.Nil(t, press(m, "n"))
	assert.NotContains(t, m.View(), "reference")
}

func TestModel_Quit(t *testing.T) {
	m := newModel(t, 1, Options{})
	cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestKeyMap_Help(t *testing.T) {
	k := DefaultKeyMap()
	assert.Len(t, k.ShortHelp(), 4)
	for _, row := range k.FullHelp() {
		for _, b := range row {
			assert.NotEmpty(t, b.Help().Key)
		}
	}
}
