package main

import "github.com/charmbracelet/lipgloss"

// theme holds the transcript styles for one background
type theme struct {
	prompt    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	info      lipgloss.Style
	warning   lipgloss.Style
	err       lipgloss.Style
	accent    lipgloss.Style
}

func newTheme(dark bool) theme {
	fg := func(light, darkColor string) lipgloss.Color {
		if dark {
			return lipgloss.Color(darkColor)
		}
		return lipgloss.Color(light)
	}

	return theme{
		prompt:    lipgloss.NewStyle().Foreground(fg("#0E7490", "#22D3EE")).Bold(true),
		user:      lipgloss.NewStyle().Foreground(fg("#1D4ED8", "#93C5FD")).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(fg("#047857", "#6EE7B7")).Bold(true),
		info:      lipgloss.NewStyle().Foreground(fg("#4B5563", "#9CA3AF")),
		warning:   lipgloss.NewStyle().Foreground(fg("#B45309", "#FCD34D")),
		err:       lipgloss.NewStyle().Foreground(fg("#B91C1C", "#FCA5A5")).Bold(true),
		accent:    lipgloss.NewStyle().Foreground(fg("#7C3AED", "#C4B5FD")),
	}
}
