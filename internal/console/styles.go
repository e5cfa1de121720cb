package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/modbusreader/internal/ui"
	"github.com/muurk/modbusreader/internal/version"
)

var (
	BorderColor = ui.MutedColor

	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Width(34)
)

// defaultWidth is used before the first WindowSizeMsg arrives.
const defaultWidth = 80

// renderTabs renders the section tab bar with the active tab highlighted.
func renderTabs(names []string, active int) string {
	tabs := make([]string, len(names))
	for i, name := range names {
		if i == active {
			tabs[i] = ui.TabActiveStyle.Render(name)
		} else {
			tabs[i] = ui.TabInactiveStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderContainer wraps content with the application header and a footer
// carrying the status line and key help.
func renderContainer(content, status, helpText string, width, height int) string {
	if width == 0 {
		width = defaultWidth
	}

	header := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1).
		Render(TitleStyle.Render("modbusreader console") + "  " + SubtitleStyle.Render(version.Version))

	footerLines := []string{}
	if status != "" {
		footerLines = append(footerLines, status)
	}
	footerLines = append(footerLines, helpText)
	footer := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(width-4).
		Padding(0, 1).
		Render(strings.Join(footerLines, "\n"))

	body := lipgloss.NewStyle().Width(width - 4).Render(content)

	inner := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)

	outer := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(width - 2)
	if height > 2 {
		outer = outer.Height(height - 2).AlignVertical(lipgloss.Top)
	}
	return outer.Render(inner)
}
