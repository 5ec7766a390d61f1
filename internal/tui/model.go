// Package tui is a terminal log viewer built on bubbletea/lipgloss,
// grounded on the docker-tui example's permanent-streaming model: a bounded
// scrollback fed by a channel, rendered on every arrival and resize.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/containerlogs/follower/internal/follower"
)

type entryMsg follower.LogEntry

// Model is a bubbletea model that renders a bounded scrollback of log
// entries arriving on a channel.
type Model struct {
	entries <-chan follower.LogEntry

	buffer   []follower.LogEntry
	maxLines int

	width, height int
	scroll        int
	follow        bool

	nameWidth int
}

// New creates a Model that reads entries from ch, keeping at most maxLines
// of scrollback.
func New(ch <-chan follower.LogEntry, maxLines int) Model {
	return Model{
		entries:  ch,
		maxLines: maxLines,
		follow:   true,
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForEntry()
}

func (m Model) waitForEntry() tea.Cmd {
	ch := m.entries
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return entryMsg(e)
	}
}

func levelName(l follower.Level) string {
	switch l {
	case follower.LevelWarn:
		return "warn"
	case follower.LevelError:
		return "error"
	default:
		return "info"
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case entryMsg:
		entry := follower.LogEntry(msg)
		if len(entry.ContainerName) > m.nameWidth {
			m.nameWidth = len(entry.ContainerName)
		}

		m.buffer = append(m.buffer, entry)
		if len(m.buffer) > m.maxLines {
			m.buffer = m.buffer[len(m.buffer)-m.maxLines:]
		}
		if m.follow {
			m.scroll = max(0, len(m.buffer)-m.visibleLines())
		}
		return m, m.waitForEntry()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			m.follow = false
			m.scroll = max(0, m.scroll-1)
		case "down", "j":
			m.scroll = min(max(0, len(m.buffer)-m.visibleLines()), m.scroll+1)
			if m.scroll >= len(m.buffer)-m.visibleLines() {
				m.follow = true
			}
		case "G":
			m.follow = true
			m.scroll = max(0, len(m.buffer)-m.visibleLines())
		}
		return m, nil
	}

	return m, nil
}

func (m Model) visibleLines() int {
	if m.height <= 2 {
		return 1
	}
	return m.height - 2
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("container log follower"))
	b.WriteString("\n")

	visible := m.visibleLines()
	start := m.scroll
	end := min(len(m.buffer), start+visible)
	if start > end {
		start = end
	}

	for _, entry := range m.buffer[start:end] {
		ts := entry.Timestamp.Format("15:04:05")
		name := containerNameStyle.Render(fmt.Sprintf("%-*s", m.nameWidth, entry.ContainerName))
		line := styleForLevel(levelName(entry.Level)).Render(entry.Message)
		b.WriteString(fmt.Sprintf("%s %s | %s\n", ts, name, line))
	}

	status := fmt.Sprintf("%d lines buffered | follow=%v | q to quit", len(m.buffer), m.follow)
	b.WriteString(statusBarStyle.Render(status))

	return b.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
