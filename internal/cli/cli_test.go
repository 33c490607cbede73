package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/descent"
	"github.com/njchilds90/descent/internal/store"
)

// execute runs the command tree with args against a throwaway database.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DESCENT_CONFIG", "")
	t.Setenv("DESCENT_DB_PATH", filepath.Join(t.TempDir(), "descent.db"))
	return executeRaw(t, args...)
}

func executeRaw(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	root := NewRootCmd()
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "step", "reference", "presets", "serve", "mcp", "tui", "history", "version"})

	for _, name := range []string{"config", "log-level", "db", "presets"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "descent version dev\n", out)
}

func TestRunCmd_Table(t *testing.T) {
	out, err := execute(t, "run", "--preset", "convex", "--steps", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "∂f/∂x     = 2*x")
	assert.Contains(t, out, "verdict   converged")
	assert.Contains(t, out, "reference minimum")
}

func TestRunCmd_JSON(t *testing.T) {
	out, err := execute(t, "run", "-e", "x**2 + y**2", "--x", "1", "--y", "1", "-a", "1.5", "-s", "2000", "--json", "--no-reference")
	require.NoError(t, err)

	var res descent.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, descent.Diverged, res.Verdict)
	assert.Nil(t, res.FinalValue)
	assert.Nil(t, res.Reference)
	assert.Len(t, res.Warnings, 2)
}

func TestRunCmd_Errors(t *testing.T) {
	_, err := execute(t, "run", "--preset", "nope")
	require.ErrorIs(t, err, descent.ErrUnknownPreset)

	_, err = execute(t, "run", "-e", "x +", "-a", "0.1", "-s", "5")
	require.ErrorIs(t, err, descent.ErrParse)

	_, err = execute(t, "run", "extra")
	require.Error(t, err)
}

func TestStepCmd(t *testing.T) {
	out, err := execute(t, "step", "-e", "x**2 + y**2", "--x", "5", "--y", "-4", "-a", "0.1", "-s", "10", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "step 1 at (5, -4): f = 41")
	assert.Contains(t, out, "x_new = x - α·∂f/∂x = 5.0000 - 0.1·10.0000 = 4.0000")
	assert.Contains(t, out, "f(next) = 26.24")
	assert.Contains(t, out, "step 2 at")
	assert.NotContains(t, out, "step 3 at")
	assert.Contains(t, out, "in progress after 2 steps")
}

func TestStepCmd_StopsOnFailure(t *testing.T) {
	out, err := execute(t, "step", "-e", "sqrt(x) + y", "--x", "-4", "-a", "0.1", "-s", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "no update from")
	assert.Contains(t, out, "undefined")
}

func TestReferenceCmd(t *testing.T) {
	out, err := execute(t, "reference", "-e", "(x - 1)**2 + (y + 2)**2")
	require.NoError(t, err)
	assert.Contains(t, out, "minimum 0.0000")
	assert.Contains(t, out, "evaluations")

	out, err = execute(t, "reference", "-e", "x + y", "--json")
	require.NoError(t, err)
	var body struct {
		Reference *descent.OptimizationResult `json:"reference"`
		Message   string                      `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Nil(t, body.Reference)
	assert.Contains(t, body.Message, "no finite minimum")
}

func TestPresetsCmd(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)
	for _, name := range []string{"convex", "saddle", "himmelblau", "rastrigin"} {
		assert.Contains(t, out, name)
	}

	file := filepath.Join(t.TempDir(), "presets.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
[[preset]]
name = "ridge"
title = "Narrow ridge"
expr = "x**2 + 10*y**2"
learning_rate = 0.04
steps = 50
region = { x_min = -3.0, x_max = 3.0, y_min = -3.0, y_max = 3.0 }
start = { x = 2.5, y = 1.0 }
`), 0o600))

	out, err = execute(t, "presets", "--presets", file, "--json")
	require.NoError(t, err)
	var list []descent.Preset
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 5)
	assert.Equal(t, "ridge", list[4].Name)
}

func TestConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "descent.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
[defaults]
preset = "saddle"
`), 0o600))

	out, err := execute(t, "--config", cfg, "run", "--no-reference")
	require.NoError(t, err)
	assert.Contains(t, out, "budget of 40 steps used")
}

func TestHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "--db", db, "run", "--preset", "convex", "--no-reference", "--save")
	require.NoError(t, err)
	m := regexp.MustCompile(`saved as ([0-9a-f-]{36})`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	out, err = execute(t, "--db", db, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "convex")

	out, err = execute(t, "--db", db, "history", "note", id, "try", "a", "smaller", "step")
	require.NoError(t, err)
	assert.Contains(t, out, "noted "+id)

	out, err = execute(t, "--db", db, "history", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "note: try a smaller step")
	assert.Contains(t, out, "verdict   budget_exhausted")

	_, err = execute(t, "--db", db, "history", "show", "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	out, err = execute(t, "--db", filepath.Join(t.TempDir(), "empty.db"), "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved runs.")
}

func TestExecute_ExitCode(t *testing.T) {
	t.Setenv("DESCENT_CONFIG", "")
	assert.Equal(t, 0, Execute(context.Background(), []string{"--log-level", "error", "version"}))
	assert.Equal(t, 1, Execute(context.Background(), []string{"--log-level", "error", "run", "--preset", "nope"}))
}

func TestTUICmd_NeedsTerminal(t *testing.T) {
	t.Setenv("DESCENT_CONFIG", "")
	root := NewRootCmd()
	root.SetIn(new(bytes.Buffer))
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"--log-level", "error", "tui", "--preset", "convex"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive terminal")
}
