package ui

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

var (
	highlightColor = lipgloss.Color("#9B59B6")
	dimColor       = lipgloss.Color("240") // gray

	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)

	daySeparatorStyle = lipgloss.NewStyle().Foreground(dimColor)
	timeStyle         = lipgloss.NewStyle().Foreground(dimColor)
	outNameStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	inNameStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)

	ordinalStyle = lipgloss.NewStyle().Foreground(dimColor).Width(4).Align(lipgloss.Right)
	unreadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(highlightColor).Bold(true)

	// Rainbow gradient for the banner border (wraps back to start).
	rainbowBlend = []color.Color{
		lipgloss.Color("#FF6B9D"), // pink
		lipgloss.Color("#9B59B6"), // purple
		lipgloss.Color("#3498DB"), // blue
		lipgloss.Color("#2ECC71"), // green
		lipgloss.Color("#FF6B9D"), // pink (wrap)
	}
)
