// Package app is the compact terminal panel: the aggregated feed
// rendered as pinned / repository / recent / upcoming sections.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workfeed/internal/aggregate"
	"github.com/nhle/workfeed/internal/keys"
	"github.com/nhle/workfeed/internal/model"
	"github.com/nhle/workfeed/internal/theme"
)

// snapshotMsg carries a fresh aggregator snapshot into the UI loop.
type snapshotMsg aggregate.Snapshot

// refreshDoneMsg signals that a manually triggered round finished.
type refreshDoneMsg struct{}

// Model is the root Bubble Tea model for the panel.
type Model struct {
	agg  *aggregate.Aggregator
	keys *keys.KeyMap

	snapshot aggregate.Snapshot
	cursor   int
	width    int
	height   int
	ready    bool

	spinner spinner.Model
	help    help.Model
}

// New creates the panel model over a configured aggregator.
func New(agg *aggregate.Aggregator) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		agg:     agg,
		keys:    keys.DefaultKeyMap(),
		spinner: sp,
		help:    help.New(),
	}
}

// Init kicks off the first refresh and subscribes to snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.refreshCmd(),
		m.waitForSnapshot(),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case snapshotMsg:
		m.snapshot = aggregate.Snapshot(msg)
		m.clampCursor()
		return m, m.waitForSnapshot()

	case refreshDoneMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.agg.StopPolling()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.selectable())-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.Pin):
		if n, ok := m.selected(); ok {
			id := n.ID
			return m, func() tea.Msg {
				m.agg.TogglePin(context.Background(), id)
				return nil
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.DismissError):
		for svc := range m.snapshot.Errors {
			m.agg.ClearError(svc)
			break
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if n, ok := m.selected(); ok && n.URL != "" {
			url := n.URL
			return m, func() tea.Msg {
				openBrowser(url)
				return nil
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		m.agg.RefreshAll(context.Background())
		return refreshDoneMsg{}
	}
}

// waitForSnapshot blocks on the aggregator's snapshot stream.
func (m Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-m.agg.Snapshots())
	}
}

// selectable flattens the sections in display order for cursor
// navigation.
func (m Model) selectable() []model.Notification {
	var items []model.Notification
	items = append(items, m.snapshot.Pinned...)
	for _, g := range m.snapshot.Groups {
		items = append(items, g.Items...)
	}
	items = append(items, m.snapshot.Recent...)
	items = append(items, m.snapshot.Upcoming...)
	return items
}

func (m Model) selected() (model.Notification, bool) {
	items := m.selectable()
	if m.cursor < 0 || m.cursor >= len(items) {
		return model.Notification{}, false
	}
	return items[m.cursor], true
}

func (m *Model) clampCursor() {
	if n := len(m.selectable()); m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

// View renders the panel.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder

	title := "workfeed"
	if m.snapshot.IsRefreshing {
		title = m.spinner.View() + " refreshing"
	}
	b.WriteString(theme.SectionHeaderStyle.Render(title))
	b.WriteString("\n")

	if m.snapshot.ShowingSampleData {
		b.WriteString(theme.SampleBannerStyle.Render("sample data - no services connected"))
		b.WriteString("\n")
	}
	for svc, msg := range m.snapshot.Errors {
		b.WriteString(theme.ErrorStyle.Render(fmt.Sprintf("! %s: %s", svc.DisplayName(), msg)))
		b.WriteString("\n")
	}

	index := 0
	renderSection := func(header string, items []model.Notification) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n")
		b.WriteString(theme.SectionHeaderStyle.Render(header))
		b.WriteString("\n")
		for _, n := range items {
			b.WriteString(m.renderItem(n, index == m.cursor))
			b.WriteString("\n")
			index++
		}
	}

	renderSection("Pinned", m.snapshot.Pinned)

	if len(m.snapshot.Groups) > 0 {
		b.WriteString("\n")
		b.WriteString(theme.SectionHeaderStyle.Render("Repositories"))
		b.WriteString("\n")
		for _, g := range m.snapshot.Groups {
			b.WriteString(theme.SubtitleStyle.Render(g.Key))
			b.WriteString("\n")
			for _, n := range g.Items {
				b.WriteString(m.renderItem(n, index == m.cursor))
				b.WriteString("\n")
				index++
			}
		}
	}

	renderSection("Recent", m.snapshot.Recent)
	renderSection("Upcoming", m.snapshot.Upcoming)

	if len(m.snapshot.Pinned)+len(m.snapshot.Recent)+len(m.snapshot.Upcoming) == 0 && !m.snapshot.IsRefreshing {
		b.WriteString("\n")
		b.WriteString(theme.SubtitleStyle.Render("nothing to show"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if !m.snapshot.LastRefreshAt.IsZero() {
		b.WriteString(theme.StatusBarStyle.Render("last refresh " + m.snapshot.LastRefreshAt.Format("15:04:05")))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderItem(n model.Notification, selected bool) string {
	marker := " "
	if n.IsPinned {
		marker = theme.PinMarkerStyle.Render("*")
	}

	line := fmt.Sprintf("%s%s %s",
		marker,
		theme.ServiceStyle(n.Service).Render(n.Service.DisplayName()),
		theme.PriorityStyle(n.Priority).Render(n.Title),
	)
	if n.Subtitle != "" {
		line += " " + theme.SubtitleStyle.Render(n.Subtitle)
	}

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}
