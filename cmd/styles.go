package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	accentFg  = lipgloss.Color("#7C3AED")
	dimFg     = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	borderCol = lipgloss.Color("#243141")

	titleStyle  = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(dimFg)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// renderTable draws rows under headers with a rounded border.
func renderTable(headers []string, rows [][]string) string {
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderCol)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}
