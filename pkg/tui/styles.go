package tui

import "github.com/charmbracelet/lipgloss"

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	boldStyle   = lipgloss.NewStyle().Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	// Severity colors
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // Orange
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // Blue
	healthyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // Green

	// Graph element colors by structural type
	typeStyles = map[string]lipgloss.Style{
		"file":      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		"directory": lipgloss.NewStyle().Foreground(lipgloss.Color("111")),
		"function":  lipgloss.NewStyle().Foreground(lipgloss.Color("150")),
		"class":     lipgloss.NewStyle().Foreground(lipgloss.Color("183")),
		"package":   lipgloss.NewStyle().Foreground(lipgloss.Color("222")),
		"endpoint":  lipgloss.NewStyle().Foreground(lipgloss.Color("87")),
	}

	selectedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	emphasizedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))

	gradeStyles = map[string]lipgloss.Style{
		"A": healthyStyle.Bold(true),
		"B": healthyStyle.Bold(true),
		"C": warningStyle.Bold(true),
		"D": warningStyle.Bold(true),
		"F": criticalStyle.Bold(true),
	}
)

func severityStyle(sev string) lipgloss.Style {
	switch sev {
	case "critical":
		return criticalStyle
	case "warning":
		return warningStyle
	case "info":
		return infoStyle
	default:
		return subtleStyle
	}
}

func fillStyle(class string) lipgloss.Style {
	switch class {
	case "critical":
		return criticalStyle
	case "warning":
		return warningStyle
	case "healthy":
		return healthyStyle
	}
	if st, ok := typeStyles[class]; ok {
		return st
	}
	return subtleStyle
}
