package tui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette shared by the progress view and the run report.
var (
	accent  = lipgloss.Color("39")
	subtle  = lipgloss.Color("245")
	faint   = lipgloss.Color("240")
	healthy = lipgloss.Color("34")
	caution = lipgloss.Color("214")
	broken  = lipgloss.Color("196")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	BoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(subtle).Padding(0, 1)
	LabelStyle   = lipgloss.NewStyle().Foreground(subtle)
	ValueStyle   = lipgloss.NewStyle().Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(healthy)
	WarningStyle = lipgloss.NewStyle().Foreground(caution)
	ErrorStyle   = lipgloss.NewStyle().Foreground(broken)
	HelpStyle    = lipgloss.NewStyle().Foreground(faint)
	SpinnerStyle = lipgloss.NewStyle().Foreground(accent)
)

const (
	SymbolCheck = "✓"
	SymbolCross = "✗"
	SymbolWarn  = "!"
)
