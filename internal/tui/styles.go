package tui

import "github.com/charmbracelet/lipgloss"

// Colors, mirroring the sober VSCode-style palette used elsewhere in this
// corpus's terminal tools.
const (
	fgDim      = "#808080"
	fgBright   = "#ffffff"
	colorInfo  = "#4fc1ff"
	colorWarn  = "#dcdcaa"
	colorError = "#f48771"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorInfo))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(fgBright))

	containerNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(fgDim))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorInfo))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarn))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError)).
			Bold(true)
)

func styleForLevel(level string) lipgloss.Style {
	switch level {
	case "warn":
		return warnStyle
	case "error":
		return errorStyle
	default:
		return infoStyle
	}
}
