// Package tui is a terminal view that animates one descent session step by
// step.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/njchilds90/descent"
)

// DefaultDelay is the pause between animated steps.
const DefaultDelay = 250 * time.Millisecond

// historyLines is how many recent values the view lists.
const historyLines = 8

// Options configure the view.
type Options struct {
	// Title names the function, usually the preset title.
	Title string
	// Delay between steps while playing; zero means DefaultDelay.
	Delay time.Duration
	// Region bounds the reference search run when the session halts.
	Region descent.Region
	// Seeds are tried after the start and the origin.
	Seeds     []descent.Point
	Reference descent.ReferenceOptions
	// SkipReference disables the search.
	SkipReference bool
}

type tickMsg struct{ gen int }

type referenceMsg struct {
	run int
	ref *descent.OptimizationResult
}

// Model is the bubbletea model of the stepping view.
type Model struct {
	sess   *descent.Session
	opts   Options
	keys   KeyMap
	styles Styles
	help   help.Model

	playing bool
	// gen invalidates ticks scheduled before the last pause or reset.
	gen int
	// run invalidates reference searches started before the last reset.
	run       int
	reference *descent.OptimizationResult
	searched  bool
	width     int
}

// Ensure Model implements tea.Model.
var _ tea.Model = (*Model)(nil)

// New returns a paused view of sess.
func New(sess *descent.Session, opts Options) *Model {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	return &Model{
		sess:   sess,
		opts:   opts,
		keys:   DefaultKeyMap(),
		styles: DefaultStyles(),
		help:   help.New(),
	}
}

// Run starts the program and blocks until the user quits or ctx is done.
func Run(ctx context.Context, m *Model) error {
	_, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

// Session returns the session being animated.
func (m *Model) Session() *descent.Session { return m.sess }

// Playing reports whether the view is stepping automatically.
func (m *Model) Playing() bool { return m.playing }

// Reference returns the reference minimum once the session has halted and
// the search has finished.
func (m *Model) Reference() *descent.OptimizationResult { return m.reference }

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.SetWindowTitle("descent")
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tickMsg:
		if msg.gen != m.gen || !m.playing {
			return m, nil
		}
		cmd := m.step()
		if m.playing {
			return m, tea.Batch(cmd, m.tick())
		}
		return m, cmd

	case referenceMsg:
		if msg.run == m.run {
			m.reference = msg.ref
			m.searched = true
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.Play):
		if m.sess.State().Halted() {
			return nil
		}
		m.playing = !m.playing
		m.gen++
		if m.playing {
			return m.tick()
		}
		return nil

	case key.Matches(msg, m.keys.Step):
		m.playing = false
		m.gen++
		return m.step()

	case key.Matches(msg, m.keys.Reset):
		m.sess.Reset(m.sess.Params().Start)
		m.playing = false
		m.gen++
		m.run++
		m.reference, m.searched = nil, false
		return nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return nil
}

func (m *Model) tick() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.opts.Delay, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

// step advances the session once. Halting stops playback and starts the
// reference search.
func (m *Model) step() tea.Cmd {
	if m.sess.Step() == descent.CannotProceed {
		m.playing = false
		return nil
	}
	if !m.sess.State().Halted() {
		return nil
	}
	m.playing = false
	if m.opts.SkipReference {
		return nil
	}
	run, fn := m.run, m.sess.Function()
	region, opts := m.opts.Region, m.opts.Reference
	seeds := descent.DefaultSeeds(m.sess.Params().Start, m.opts.Seeds...)
	return func() tea.Msg {
		return referenceMsg{run: run, ref: descent.FindReference(fn, region, seeds, opts)}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	params := m.sess.Params()
	fn := m.sess.Function()

	title := "descent"
	if m.opts.Title != "" {
		title += " · " + m.opts.Title
	}
	b.WriteString(m.styles.Title.Render(title) + "\n")
	b.WriteString(m.styles.Normal.Render("f(x, y) = "+fn.Expr().String()) + "\n")
	sym := fn.Symbolic()
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("∂f/∂x = %s   ∂f/∂y = %s", sym.DX, sym.DY)) + "\n")
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("α = %g   budget = %d   start = %v",
		params.LearningRate, params.Budget, params.Start)) + "\n\n")

	ev := descent.Evaluate(fn, m.sess.Current())
	b.WriteString(m.field("step", fmt.Sprintf("%d / %d", m.sess.StepCount(), params.Budget)))
	b.WriteString(m.field("point", m.sess.Current().String()))
	b.WriteString(m.field("f", number(ev.Value)))
	b.WriteString(m.field("|grad|", number(ev.GradientNorm())))
	b.WriteString(m.field("state", m.sess.State().String()))

	if last := m.sess.LastStep(); last != nil {
		b.WriteString("\n" + m.styles.Rule.Render(last.UpdateRule(params.LearningRate)) + "\n")
	}

	values := m.sess.Values()
	if len(values) > 0 {
		from := max(0, len(values)-historyLines)
		parts := make([]string, 0, len(values)-from)
		for _, v := range values[from:] {
			parts = append(parts, number(v))
		}
		b.WriteString("\n" + m.styles.Label.Render("values ") + m.styles.Muted.Render(strings.Join(parts, " → ")) + "\n")
	}

	if m.sess.State().Halted() {
		b.WriteString("\n" + m.report())
	}

	status := "paused"
	if m.playing {
		status = fmt.Sprintf("playing every %v", m.opts.Delay)
	}
	b.WriteString("\n" + m.styles.Status.Render(status) + "\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) field(label, value string) string {
	return m.styles.Label.Render(fmt.Sprintf("%-7s", label)) + " " + m.styles.Normal.Render(value) + "\n"
}

func (m *Model) report() string {
	rep := descent.Summarize(m.sess)
	style := m.styles.Warning
	switch rep.Verdict {
	case descent.Converged:
		style = m.styles.Success
	case descent.Diverged, descent.Failure:
		style = m.styles.Error
	}

	lines := []string{style.Render(rep.Message())}
	for _, w := range rep.Warnings {
		lines = append(lines, m.styles.Warning.Render("! "+w))
	}
	switch {
	case m.opts.SkipReference:
	case !m.searched:
		lines = append(lines, m.styles.Muted.Render("searching for a reference minimum..."))
	case m.reference == nil:
		lines = append(lines, m.styles.Muted.Render(m.reference.Describe()))
	default:
		d := descent.PathLength([]descent.Point{m.sess.Current(), m.reference.Point})
		lines = append(lines, m.styles.Normal.Render(fmt.Sprintf("reference %s, %.4f away", m.reference.Describe(), d)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

func number(v float64) string {
	if math.IsNaN(v) {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", v)
}
