package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/brine/inspect"
)

// keys are the TUI key bindings.
var keys = struct {
	Quit key.Binding
}{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// InspectModel is a Bubble Tea model for the stream summary view.
type InspectModel struct {
	summary  *inspect.Summary
	table    table.Model
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model from a scan summary.
func NewInspectModel(summary *inspect.Summary) InspectModel {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Kind", Width: 10},
		{Title: "Values", Width: 8},
		{Title: "Terminal", Width: 12},
		{Title: "First Line", Width: 10},
	}

	rows := make([]table.Row, 0, len(summary.Chunks))
	for _, chunk := range summary.Chunks {
		kind := "?"
		if chunk.KindKnown {
			kind = chunk.Kind.String()
		}
		terminal := chunk.Terminal
		if terminal == "" {
			terminal = "outstanding"
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", chunk.ID),
			kind,
			fmt.Sprintf("%d", chunk.Values),
			terminal,
			fmt.Sprintf("%d", chunk.FirstLine),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 12)),
	)

	return InspectModel{summary: summary, table: t}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Stream Summary"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Lines", m.summary.Lines, highlightColor),
		m.renderStatBox("Chunk IDs", int64(len(m.summary.Chunks)), primaryColor),
		m.renderStatBox("Dangling", int64(len(m.summary.Dangling)), warningColor),
		m.renderStatBox("Anomalies", int64(len(m.summary.Anomalies)), errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	if len(m.summary.Chunks) > 0 {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	if len(m.summary.Anomalies) > 0 {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Anomalies"))
		b.WriteString("\n")
		for _, anomaly := range m.summary.Anomalies {
			b.WriteString("  " + anomaly + "\n")
		}
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + help
}

func (m InspectModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunInspectTUI runs the inspect TUI over a scan summary.
func RunInspectTUI(summary *inspect.Summary) error {
	model := NewInspectModel(summary)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders the summary without a full TUI (for fallback).
func RenderInspectStatic(summary *inspect.Summary) string {
	model := NewInspectModel(summary)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
