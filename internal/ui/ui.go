// Package ui holds the lipgloss styles for CLI output.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

// RenderAccent styles a highlighted fragment.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderSuccess styles a success message.
func RenderSuccess(s string) string { return successStyle.Render(s) }

// RenderError styles an error message.
func RenderError(s string) string { return errorStyle.Render(s) }

// RenderWarn styles a warning.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderMuted styles secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderHeader styles a table or section header.
func RenderHeader(s string) string { return headerStyle.Render(s) }
