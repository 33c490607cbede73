package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles of the stepping view.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Normal  lipgloss.Style
	Muted   lipgloss.Style
	Rule    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Status  lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4")),
		Normal:  lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Rule: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#45475A")).
			Padding(0, 1),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086")).
			Background(lipgloss.Color("#181825")).
			Padding(0, 1),
	}
}
