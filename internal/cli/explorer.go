package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"kgquery/internal/query"
	"kgquery/internal/rdf"
)

// rowItem is one result row in the explorer
type rowItem struct {
	index  int
	title  string
	fields []string
}

func (i rowItem) Title() string       { return i.title }
func (i rowItem) Description() string { return strings.Join(i.fields, "  ") }
func (i rowItem) FilterValue() string { return i.title + " " + i.Description() }

// explorerModel browses the rows of a result
type explorerModel struct {
	list     list.Model
	vars     []string
	rows     []query.Row
	detail   int
	quitting bool
}

type explorerKeyMap struct {
	detail key.Binding
	quit   key.Binding
}

func newExplorerKeyMap() *explorerKeyMap {
	return &explorerKeyMap{
		detail: key.NewBinding(
			key.WithKeys("enter", "d"),
			key.WithHelp("enter/d", "details"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q/esc", "quit"),
		),
	}
}

func newExplorerModel(res *query.Success) explorerModel {
	items := make([]list.Item, len(res.Rows))
	for i, row := range res.Rows {
		items[i] = newRowItem(i, res.Vars, row)
	}

	const defaultHeight = 20
	l := list.New(items, list.NewDefaultDelegate(), 0, defaultHeight)
	l.Title = fmt.Sprintf("Results (%d rows)", len(res.Rows))
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.SetStatusBarItemName("row", "rows")

	return explorerModel{list: l, vars: res.Vars, rows: res.Rows, detail: -1}
}

func newRowItem(i int, vars []string, row query.Row) rowItem {
	item := rowItem{index: i, title: fmt.Sprintf("#%d", i+1)}
	for j, v := range vars {
		val := displayValue(row[v])
		if j == 0 && val != "" {
			item.title = val
		}
		if !row[v].Bound {
			val = DimStyle.Render("unbound")
		}
		item.fields = append(item.fields, v+"="+val)
	}
	return item
}

func (m explorerModel) Init() tea.Cmd {
	return nil
}

func (m explorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Let the list own keys while the filter prompt is open
		if m.list.FilterState() == list.Filtering {
			break
		}
		keys := newExplorerKeyMap()

		switch {
		case key.Matches(msg, keys.quit):
			if m.detail >= 0 {
				m.detail = -1
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.detail):
			if item, ok := m.list.SelectedItem().(rowItem); ok {
				m.detail = item.index
			}
			return m, nil

		case msg.String() == "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-4)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m explorerModel) View() string {
	if m.quitting {
		return ""
	}
	if m.detail >= 0 {
		return m.detailView()
	}
	help := helpStyle.Render("\n[enter] details • [/] filter • [q] quit")
	return m.list.View() + help
}

// detailView shows every variable of one row with full IRIs
func (m explorerModel) detailView() string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("Row %d", m.detail+1)))
	b.WriteString("\n\n")
	row := m.rows[m.detail]
	for _, v := range m.vars {
		c := row[v]
		val := c.Value
		if !c.Bound {
			val = DimStyle.Render("(unbound)")
		} else if isIRI(val) {
			val = fmt.Sprintf("%s %s", CodeStyle.Render(rdf.ShortName(val)), DimStyle.Render("<"+val+">"))
		}
		fmt.Fprintf(&b, "  %s: %s\n", InfoStyle.Render(v), val)
	}
	b.WriteString(helpStyle.Render("\n[esc] back"))
	return b.String()
}

// ExploreResult opens an interactive browser over a result's rows
func (c *CLI) ExploreResult(res *query.Success) error {
	if len(res.Rows) == 0 {
		fmt.Fprintln(c.out, DimStyle.Render("No rows to explore."))
		return nil
	}

	p := tea.NewProgram(newExplorerModel(res), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
