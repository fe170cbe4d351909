package cmd

import "github.com/charmbracelet/lipgloss"

// Colors degrade to plain text when stdout is not a color terminal.
var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	titleStyle = lipgloss.NewStyle().Bold(true)
	codeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#38bdf8"))
)
