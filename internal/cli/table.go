package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"kgquery/internal/query"
	"kgquery/internal/rdf"
)

// maxCellWidth truncates long values in the results table
const maxCellWidth = 48

// RenderTable draws a result table. IRIs are shortened to their local name;
// unbound cells are left empty.
func RenderTable(res *query.Success) string {
	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := make([]string, len(res.Vars))
		for i, v := range res.Vars {
			cells[i] = truncate(displayValue(row[v]), maxCellWidth)
		}
		rows = append(rows, cells)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(DimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(res.Vars...).
		Rows(rows...)
	return t.String()
}

func displayValue(c query.Cell) string {
	if !c.Bound {
		return ""
	}
	if isIRI(c.Value) {
		return rdf.ShortName(c.Value)
	}
	return c.Value
}

func isIRI(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "urn:")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
