// Package tui renders terminal UI for long-running commands. The progress
// view polls graph state while an ingestion pass runs.
package tui

import "github.com/charmbracelet/lipgloss"

// ANSI colors for broad terminal compatibility.
var (
	primary = lipgloss.Color("4")   // blue
	muted   = lipgloss.Color("245") // light gray
	success = lipgloss.Color("2")   // green
	failure = lipgloss.Color("1")   // red
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(muted)

	countStyle = lipgloss.NewStyle().
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(success)

	errorStyle = lipgloss.NewStyle().
			Foreground(failure).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(primary)
)
