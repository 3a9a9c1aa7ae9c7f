package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles are the lipgloss styles of a renderer. Without a terminal every
// style renders plain text.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	ModelPath lipgloss.Style
	Code      lipgloss.Style
	Key       lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusSkipped lipgloss.Style
}

func newStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:      lr.NewStyle().Bold(true),
		Muted:     lr.NewStyle().Foreground(lipgloss.Color("8")),
		Success:   lr.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:   lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:     lr.NewStyle().Foreground(lipgloss.Color("9")),
		ModelPath: lr.NewStyle().Foreground(lipgloss.Color("13")),
		Code:      lr.NewStyle().Foreground(lipgloss.Color("6")),
		Key:       lr.NewStyle().Bold(true),

		StatusSuccess: lr.NewStyle().Foreground(lipgloss.Color("10")).SetString("✓"),
		StatusFailed:  lr.NewStyle().Foreground(lipgloss.Color("9")).SetString("✗"),
		StatusSkipped: lr.NewStyle().Foreground(lipgloss.Color("8")).SetString("-"),
	}
}
