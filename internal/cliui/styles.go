// Package cliui holds the shared lipgloss style palette for the envelope
// demo CLI and smoke driver.
package cliui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D4AA"))

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D4AA"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444"))

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)
