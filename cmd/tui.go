// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// changeHighlight is how long a changed field stays highlighted
const changeHighlight = 2 * time.Second

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// sessionSource is the part of the manager the monitor polls
type sessionSource interface {
	URL() string
	State() connection.State
	Stats() webasto.Statistics
}

// Monitor TUI model
type model struct {
	source        sessionSource
	snapshot      webasto.Snapshot
	changedAt     map[string]time.Time
	stats         webasto.Statistics
	state         connection.State
	connectedAt   time.Time
	errorLog      []errorLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type snapshotMsg struct {
	snapshot webasto.Snapshot
}
type frameMsg struct {
	raw       string
	decodeErr error
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	seconds := int64(d / time.Second)
	if seconds <= 0 {
		return "0 seconds"
	}

	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	for _, p := range []struct {
		n    int64
		unit string
	}{{days, "day"}, {hours, "hour"}, {minutes, "minute"}, {seconds, "second"}} {
		switch {
		case p.n == 1:
			parts = append(parts, "1 "+p.unit)
		case p.n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", p.n, p.unit))
		}
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func initialModel(source sessionSource) model {
	return model{
		source:        source,
		snapshot:      webasto.NewSnapshot(),
		changedAt:     make(map[string]time.Time),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.pollSession()
		return m, tickCmd()

	case snapshotMsg:
		m.applySnapshot(msg.snapshot)

	case frameMsg:
		if msg.decodeErr != nil {
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		}
	}

	return m, nil
}

// pollSession refreshes statistics and logs state transitions
func (m *model) pollSession() {
	m.stats = m.source.Stats()

	state := m.source.State()
	if state == m.state {
		return
	}
	if state == connection.StateConnected {
		m.connectedAt = time.Now()
	}
	m.addLogEntry(fmt.Sprintf("Session %s -> %s", m.state, state), state != connection.StateConnected)
	m.state = state
}

// applySnapshot records which fields changed since the previous snapshot
func (m *model) applySnapshot(s webasto.Snapshot) {
	now := time.Now()
	for k, v := range s.All() {
		old, ok := m.snapshot.Get(k)
		if !ok || !old.Equal(v) {
			m.changedAt[k] = now
		}
	}
	m.snapshot = s
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	changedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("WEBASTOSTAT - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Controller: %s | Press 'q' to quit", m.source.URL())))
	s.WriteString("\n\n")

	// Session status
	if m.state == connection.StateConnected {
		s.WriteString(statsValueStyle.Render("✓ Connected"))
		s.WriteString(headerStyle.Render(" for " + formatUptime(time.Since(m.connectedAt))))
	} else {
		s.WriteString(warningStyle.Render("⏳ " + strings.ToUpper(m.state.String()[:1]) + m.state.String()[1:] + "..."))
	}
	s.WriteString("\n\n")

	// Statistics
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("JSON/Legacy:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", m.stats.JSONFrames, m.stats.LegacyFrames)),
		statsLabelStyle.Render("Errors:"), func() string {
			if m.stats.DecodeErrors > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors))
			}
			return statsValueStyle.Render("0")
		}(),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Reconnects:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.ReconnectAttempts)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Snapshot
	s.WriteString(statsLabelStyle.Render("Device State:"))
	s.WriteString("\n")
	snapContent := strings.Builder{}
	if m.snapshot.Len() == 0 {
		snapContent.WriteString(headerStyle.Render("(no data yet)"))
	} else {
		width := 0
		for _, k := range m.snapshot.Keys() {
			width = max(width, len(k))
		}
		for k, v := range m.snapshot.All() {
			value := statsValueStyle.Render(webasto.FormatValue(v))
			if time.Since(m.changedAt[k]) < changeHighlight {
				value = changedStyle.Render(webasto.FormatValue(v))
			}
			snapContent.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render(fmt.Sprintf("%-*s", width, k)), value))
		}
	}
	s.WriteString(boxStyle.Render(strings.TrimRight(snapContent.String(), "\n")))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := max(m.height-m.snapshot.Len()-16, 3)
	startIdx := max(len(m.errorLog)-logHeight, 0)

	logContent := strings.Builder{}
	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(logContent.String()))

	return s.String()
}
