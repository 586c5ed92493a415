package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattjoyce/hookbox/internal/logstore"
)

// --- Styles ---

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)
)

// MaxRows bounds how many entries the viewer keeps in memory.
const MaxRows = 200

const previewWidth = 60

// --- Types ---

type Model struct {
	endpoint string
	fetch    Fetcher
	interval time.Duration

	width  int
	height int

	entries  []logstore.Entry
	seen     map[int64]struct{}
	lastPoll time.Time
	lastErr  error

	table table.Model
}

type logsMsg struct {
	entries []logstore.Entry
	at      time.Time
}

type errMsg struct {
	err error
	at  time.Time
}

type tickMsg time.Time

// NewMonitor builds a viewer for one endpoint that polls fetch every interval.
func NewMonitor(endpoint string, fetch Fetcher, interval time.Duration) *Model {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Time", Width: 8},
			{Title: "Method", Width: 7},
			{Title: "Source", Width: 21},
			{Title: "Agent", Width: 20},
			{Title: "Body", Width: previewWidth},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		endpoint: endpoint,
		fetch:    fetch,
		interval: interval,
		seen:     make(map[int64]struct{}),
		table:    t,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.poll(), tea.EnterAltScreen)
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.poll()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(m.width - 6)
		if h := m.height - 12; h > 3 {
			m.table.SetHeight(h)
		}

	case logsMsg:
		m.merge(msg.entries)
		m.lastPoll = msg.at
		m.lastErr = nil
		m.updateTable()
		return m, m.schedule()

	case errMsg:
		m.lastPoll = msg.at
		m.lastErr = msg.err
		return m, m.schedule()

	case tickMsg:
		return m, m.poll()
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// merge adds entries not seen before and keeps the list newest first.
func (m *Model) merge(batch []logstore.Entry) {
	var fresh []logstore.Entry
	for _, e := range batch {
		if _, ok := m.seen[e.ID]; ok {
			continue
		}
		m.seen[e.ID] = struct{}{}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return
	}

	m.entries = append(fresh, m.entries...)
	sortNewestFirst(m.entries)

	if len(m.entries) > MaxRows {
		for _, e := range m.entries[MaxRows:] {
			delete(m.seen, e.ID)
		}
		m.entries = m.entries[:MaxRows]
	}
}

func sortNewestFirst(entries []logstore.Entry) {
	// insertion sort; batches arrive mostly ordered
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && newer(entries[j], entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func newer(a, b logstore.Entry) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

func (m *Model) updateTable() {
	rows := make([]table.Row, 0, len(m.entries))
	for _, e := range m.entries {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", e.ID),
			e.Timestamp.Local().Format("15:04:05"),
			e.Method,
			e.SourceAddress,
			e.ClientAgent,
			preview(e.Body, previewWidth),
		})
	}
	m.table.SetRows(rows)
}

// preview flattens body onto one line and truncates it to width runes.
func preview(body string, width int) string {
	flat := strings.Join(strings.Fields(body), " ")
	r := []rune(flat)
	if len(r) <= width {
		return flat
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

// --- View ---

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	logsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Requests"),
			m.table.View(),
		),
	)

	help := mutedStyle.Render(" [q] Quit • [r] Refresh • [↑/↓] Scroll")

	return docStyle.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderHeader(),
			logsView,
			m.renderDetail(),
			help,
		),
	)
}

func (m Model) renderHeader() string {
	status := statusOK.Render("CONNECTED")
	if m.lastErr != nil {
		status = statusFailed.Render("ERROR")
	} else if m.lastPoll.IsZero() {
		status = mutedStyle.Render("WAITING")
	}

	polled := "-"
	if !m.lastPoll.IsZero() {
		polled = m.lastPoll.Local().Format("15:04:05")
	}

	items := []string{
		fmt.Sprintf("Endpoint: %s", m.endpoint),
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Entries: %d", len(m.entries)),
		fmt.Sprintf("Polled: %s", polled),
	}

	cell := lipgloss.NewStyle().Width((m.width - 4) / len(items))
	cols := make([]string, 0, len(items))
	for _, it := range items {
		cols = append(cols, cell.Render(it))
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	if m.lastErr != nil {
		header = lipgloss.JoinVertical(lipgloss.Left, header, statusFailed.Render(m.lastErr.Error()))
	}
	return borderStyle.Width(m.width - 4).Render(header)
}

// renderDetail shows headers and body of the selected row.
func (m Model) renderDetail() string {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.entries) {
		return borderStyle.Width(m.width - 4).Render(mutedStyle.Render("  No requests yet..."))
	}
	e := m.entries[idx]

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s from %s\n", e.Method, e.Timestamp.Local().Format(time.RFC3339), e.SourceAddress)
	for _, h := range e.Headers {
		fmt.Fprintf(&b, "%s: %s\n", h.Name, h.Value)
	}
	b.WriteString("\n")
	b.WriteString(e.Body)

	return borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Detail"),
			lipgloss.NewStyle().Padding(0, 1).MaxHeight(12).Render(b.String()),
		),
	)
}

// --- Commands ---

func (m Model) poll() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entries, err := fetch(ctx)
		if err != nil {
			return errMsg{err: err, at: time.Now()}
		}
		return logsMsg{entries: entries, at: time.Now()}
	}
}

func (m Model) schedule() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
