package cmd

import (
	"github.com/charmbracelet/lipgloss"
)

// Define styles using lipgloss.
var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6495ED"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

func successLine(msg string) string {
	return successStyle.Render("✔ " + msg)
}

func errorLine(msg string) string {
	return errorStyle.Render("✘ " + msg)
}
