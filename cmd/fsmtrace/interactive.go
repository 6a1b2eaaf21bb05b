package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	fsmtrace "github.com/wippyai/fsm-trace"
	"github.com/wippyai/fsm-trace/diag"
	"github.com/wippyai/fsm-trace/policy"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	advisoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD166"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// chromeLines is the number of view lines that are not record rows.
const chromeLines = 8

type row struct {
	index  int
	record fsmtrace.RawRecord
	state  string
}

func (r row) matches(filter string) bool {
	if filter == "" {
		return true
	}
	filter = strings.ToLower(filter)
	return strings.Contains(strings.ToLower(r.state), filter) ||
		strings.Contains(r.record.Tag.String(), filter) ||
		strings.Contains(strconv.FormatUint(uint64(r.record.Tag), 10), filter)
}

type inspectModel struct {
	filter   textinput.Model
	path     string
	rows     []row
	visible  []int
	diags    []diag.Diagnostic
	selected int
	offset   int
	height   int
}

func stateName(pol *policy.Policy, tag fsmtrace.StateTag) string {
	if tag.IsSentinel() {
		return "(sentinel)"
	}
	if pol == nil {
		return "-"
	}
	if s, ok := pol.Lookup(tag); ok {
		return s.Name
	}
	return "?"
}

func newInspectModel(tr *trace, pol *policy.Policy) *inspectModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter by tag or state"
	ti.Width = 40

	m := &inspectModel{
		filter: ti,
		path:   tr.path,
		diags:  tr.report.All(),
		height: 20,
	}
	for i, r := range tr.records {
		m.rows = append(m.rows, row{index: i, record: r, state: stateName(pol, r.Tag)})
	}
	m.applyFilter()
	return m
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) applyFilter() {
	m.visible = m.visible[:0]
	for i, r := range m.rows {
		if r.matches(m.filter.Value()) {
			m.visible = append(m.visible, i)
		}
	}
	m.selected = 0
	m.offset = 0
}

func (m *inspectModel) pageSize() int {
	n := m.height - chromeLines - len(m.diags)
	if n < 1 {
		return 1
	}
	return n
}

func (m *inspectModel) move(delta int) {
	m.selected += delta
	if m.selected >= len(m.visible) {
		m.selected = len(m.visible) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if page := m.pageSize(); m.selected >= m.offset+page {
		m.offset = m.selected - page + 1
	}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.move(0)
		return m, nil

	case tea.KeyMsg:
		if m.filter.Focused() {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "enter", "esc":
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "pgup":
			m.move(-m.pageSize())
		case "pgdown":
			m.move(m.pageSize())
		case "home", "g":
			m.move(-len(m.visible))
		case "end", "G":
			m.move(len(m.visible))
		case "/":
			return m, m.filter.Focus()
		case "esc":
			m.filter.SetValue("")
			m.applyFilter()
		}
	}
	return m, nil
}

func (m *inspectModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("FSM Trace"))
	b.WriteString(" ")
	b.WriteString(m.path)
	b.WriteString(fmt.Sprintf("  %d/%d records\n\n", len(m.visible), len(m.rows)))

	for _, d := range m.diags {
		style := advisoryStyle
		if d.Severity() == diag.Fatal {
			style = errorStyle
		}
		b.WriteString(style.Render(d.String()))
		b.WriteString("\n")
	}
	if len(m.diags) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("  %5s  %8s  %-10s  %10s  %s\n", "INDEX", "OFFSET", "TAG", "DECIMAL", "STATE"))
	if len(m.visible) == 0 {
		b.WriteString(helpStyle.Render("  no matching records"))
		b.WriteString("\n")
	}
	end := min(m.offset+m.pageSize(), len(m.visible))
	for i := m.offset; i < end; i++ {
		r := m.rows[m.visible[i]]
		if i == m.selected {
			line := fmt.Sprintf("> %5d  %8d  %-10s  %10d  %s", r.index, r.record.Offset, r.record.Tag, uint32(r.record.Tag), r.state)
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(fmt.Sprintf("  %5d  %8d  %s  %10d  %s", r.index, r.record.Offset,
				tagStyle.Render(fmt.Sprintf("%-10s", r.record.Tag)), uint32(r.record.Tag), stateStyle.Render(r.state)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.filter.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move • / filter • esc clear • q quit"))
	return b.String()
}

func runInteractive(tr *trace, pol *policy.Policy) error {
	p := tea.NewProgram(newInspectModel(tr, pol), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
