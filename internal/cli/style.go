package cli

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/JonMunkholm/joyeria/internal/core"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow, color.Bold)
	errorColor = color.New(color.FgRed, color.Bold)
	infoColor  = color.New(color.FgCyan)
)

// toneColors maps badge tones to ANSI colors.
var toneColors = map[core.Tone]lipgloss.Color{
	core.ToneSuccess: lipgloss.Color("2"),
	core.ToneWarning: lipgloss.Color("3"),
	core.ToneDanger:  lipgloss.Color("1"),
	core.ToneInfo:    lipgloss.Color("4"),
	core.ToneAccent:  lipgloss.Color("5"),
	core.ToneOrange:  lipgloss.Color("208"),
	core.ToneNeutral: lipgloss.Color("8"),
}

// cellText renders a display value for the terminal. Badges keep their
// tone as a foreground color.
func cellText(d core.DisplayValue) string {
	switch d.Kind {
	case core.KindBadge:
		if c, ok := toneColors[d.Tone]; ok {
			return lipgloss.NewStyle().Foreground(c).Render(d.Text)
		}
		return d.Text
	case core.KindBadgeRow:
		out := ""
		for i, item := range d.Items {
			if i > 0 {
				out += " "
			}
			out += cellText(item)
		}
		if d.Overflow > 0 {
			out += dimStyle.Render(" +" + strconv.Itoa(d.Overflow))
		}
		return out
	case core.KindPlaceholder:
		return dimStyle.Render(d.String())
	default:
		return d.String()
	}
}

// renderTable lays out headers and rows with a normal border.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}
