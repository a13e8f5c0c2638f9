package output

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorMuted   = lipgloss.Color("#626262")
	colorDanger  = lipgloss.Color("#FF5F87")
	colorWarning = lipgloss.Color("#FFB86C")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(colorPrimary)

	sectionStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted).Width(22)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	lossStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorDanger)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
)
