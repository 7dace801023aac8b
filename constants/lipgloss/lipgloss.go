// Package lipgloss holds the terminal styles shared by the commands.
package lipgloss

import "github.com/charmbracelet/lipgloss"

var (
	Red     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	Green   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
	Yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD75F"))
	BlueSky = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FAFFF"))
	Gray    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	Info    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87D7FF"))

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)
