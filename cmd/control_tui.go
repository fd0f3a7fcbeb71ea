// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/webastostat/pkg/connection"
	"github.com/Thermoquad/webastostat/pkg/entities"
	"github.com/Thermoquad/webastostat/pkg/webasto"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusSettingsList = iota
	focusValueInput
)

// hotKey binds a key to a catalogue button
type hotKey struct {
	key     string
	button  string
	confirm bool // destructive; requires 'y' to proceed
}

var hotKeys = []hotKey{
	{key: "b", button: "toggle_burn"},
	{key: "+", button: "up_mode"},
	{key: "-", button: "down_mode"},
	{key: "p", button: "fuel_pump"},
	{key: "c", button: "clear_fail"},
	{key: "s", button: entities.KeySaveSettings},
	{key: "g", button: "load_settings"},
	{key: "l", button: "enable_logging"},
	{key: "L", button: "disable_logging"},
	{key: "F", button: "reset_fuel_consumption", confirm: true},
	{key: "Z", button: "reset_settings", confirm: true},
	{key: "W", button: "reset_wifi", confirm: true},
	{key: "R", button: "reboot_esp", confirm: true},
}

func lookupHotKey(key string) (hotKey, bool) {
	for _, hk := range hotKeys {
		if hk.key == key {
			return hk, true
		}
	}
	return hotKey{}, false
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// settingItem is one editable setting in the list
type settingItem struct {
	entity  entities.Entity
	current string
	pending string
}

// Implement list.Item interface
func (s settingItem) Title() string { return s.entity.Name }
func (s settingItem) Description() string {
	desc := fmt.Sprintf("%s = %s", s.entity.Key, s.current)
	if s.pending != "" {
		desc += " → " + s.pending
	}
	return desc
}
func (s settingItem) FilterValue() string { return s.entity.Key }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	ctl   controller
	draft *entities.Draft

	// Device state
	snapshot webasto.Snapshot
	state    connection.State
	stats    webasto.Statistics

	// Settings editing
	settingsList list.Model
	valueInput   textinput.Model
	focusedField int

	// Pending destructive button awaiting 'y'
	confirm *hotKey

	// Event log (reused from tui.go patterns)
	errorLog      []errorLogEntry
	maxLogEntries int

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(ctl controller, draft *entities.Draft) controlModel {
	// Initialize text input for setting values
	ti := textinput.New()
	ti.CharLimit = 6
	ti.Width = 10

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	settingsList := list.New([]list.Item{}, delegate, 40, 12)
	settingsList.Title = "Settings"
	settingsList.SetShowStatusBar(false)
	settingsList.SetShowHelp(false)
	settingsList.SetFilteringEnabled(false)

	m := controlModel{
		ctl:           ctl,
		draft:         draft,
		snapshot:      webasto.NewSnapshot(),
		settingsList:  settingsList,
		valueInput:    ti,
		focusedField:  focusSettingsList,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.updateSettingsList()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.settingsList, cmd = m.settingsList.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.pollSession()
		return m, controlTickCmd()

	case snapshotMsg:
		m.snapshot = msg.snapshot
		m.updateSettingsList()

	case frameMsg:
		if msg.decodeErr != nil {
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		}
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// Confirmation prompt swallows the next key
	if m.confirm != nil {
		hk := *m.confirm
		m.confirm = nil
		if key == "y" || key == "Y" {
			m.press(hk.button)
		} else {
			m.addLogEntry("Cancelled", false)
		}
		return m, nil
	}

	if m.focusedField == focusValueInput {
		switch key {
		case "enter":
			m.applyInput()
			return m, nil
		case "esc", "tab", "shift+tab":
			m.blurInput()
			return m, nil
		}
		var cmd tea.Cmd
		m.valueInput, cmd = m.valueInput.Update(msg)
		return m, cmd
	}

	switch key {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "enter", "tab", "e":
		return m, m.focusInput()

	case "x":
		if m.draft.Len() > 0 {
			m.draft.Clear()
			m.updateSettingsList()
			m.addLogEntry("Discarded pending settings", false)
		}
		return m, nil
	}

	if hk, ok := lookupHotKey(key); ok {
		if hk.confirm {
			m.confirm = &hk
			return m, nil
		}
		m.press(hk.button)
		return m, nil
	}

	var cmd tea.Cmd
	m.settingsList, cmd = m.settingsList.Update(msg)
	return m, cmd
}

//////////////////////////////////////////////////////////////
// Rendering
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
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

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("WEBASTOSTAT - CONTROL"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Controller: %s | ", m.ctl.URL())))
	if m.state == connection.StateConnected {
		s.WriteString(statsValueStyle.Render("● connected"))
	} else {
		s.WriteString(errorStyle.Render("○ " + m.state.String()))
	}
	s.WriteString("\n\n")

	// Status and settings side by side
	leftWidth := max(m.width/2-2, 36)
	rightWidth := max(m.width-leftWidth-6, 36)

	statusPanel := boxStyle.Width(leftWidth).Render(m.renderStatus(statsLabelStyle, statsValueStyle, errorStyle, headerStyle))

	settingsBox := boxStyle
	if m.focusedField == focusSettingsList {
		settingsBox = focusedBoxStyle
	}
	settingsPanel := settingsBox.Width(rightWidth).Render(m.renderSettings(statsLabelStyle, headerStyle, warningStyle, focusedBoxStyle, boxStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, statusPanel, " ", settingsPanel))
	s.WriteString("\n")

	// Key help or confirmation prompt
	if m.confirm != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Really %s? (y/N)", m.buttonName(m.confirm.button))))
	} else {
		s.WriteString(headerStyle.Render(m.renderHelp()))
	}
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, errorStyle, headerStyle, boxStyle))

	return s.String()
}

func (m controlModel) renderStatus(labelStyle, valueStyle, errorStyle, headerStyle lipgloss.Style) string {
	var b strings.Builder
	states := entities.States(m.snapshot)

	b.WriteString(labelStyle.Render("Status"))
	b.WriteString("\n")
	for _, kind := range []entities.Kind{entities.KindSensor, entities.KindBinarySensor} {
		for _, e := range entities.OfKind(kind) {
			if e.Category == entities.CategoryDiagnostic {
				continue
			}
			b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(e.Name+":"), m.renderState(e, states[e.Key], valueStyle, errorStyle, headerStyle)))
		}
	}

	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Diagnostics"))
	b.WriteString("\n")
	for _, e := range entities.All() {
		if e.Category != entities.CategoryDiagnostic {
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(e.Name+":"), m.renderState(e, states[e.Key], valueStyle, errorStyle, headerStyle)))
	}
	b.WriteString(fmt.Sprintf("%s %s",
		labelStyle.Render("Frames:"),
		valueStyle.Render(fmt.Sprintf("%d (%.1f/s), %d errors", m.stats.TotalFrames, m.stats.FrameRate, m.stats.DecodeErrors)),
	))
	return b.String()
}

func (m controlModel) renderState(e entities.Entity, v any, valueStyle, errorStyle, headerStyle lipgloss.Style) string {
	switch v := v.(type) {
	case nil:
		return headerStyle.Render("unknown")
	case bool:
		if v && e.DeviceClass == "problem" {
			return errorStyle.Render("YES")
		}
		if v {
			return valueStyle.Render("on")
		}
		return headerStyle.Render("off")
	default:
		text := fmt.Sprint(v)
		if e.Unit != "" {
			text += " " + e.Unit
		}
		return valueStyle.Render(text)
	}
}

func (m controlModel) renderSettings(labelStyle, headerStyle, warningStyle, focusedBoxStyle, boxStyle lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(m.settingsList.View())
	b.WriteString("\n")

	inputBox := boxStyle
	if m.focusedField == focusValueInput {
		inputBox = focusedBoxStyle
	}
	label := "Value:"
	if item, ok := m.settingsList.SelectedItem().(settingItem); ok {
		label = fmt.Sprintf("%s (%g-%g):", item.entity.Key, item.entity.Min, item.entity.Max)
	}
	b.WriteString(labelStyle.Render(label))
	b.WriteString(" ")
	b.WriteString(inputBox.Render(m.valueInput.View()))
	b.WriteString("\n")

	if n := m.draft.Len(); n > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("%d unsaved change(s): 's' to save, 'x' to discard", n)))
	} else {
		b.WriteString(headerStyle.Render("No unsaved changes"))
	}
	return b.String()
}

func (m controlModel) renderHelp() string {
	parts := []string{"q quit", "enter edit"}
	for _, hk := range hotKeys {
		parts = append(parts, hk.key+" "+m.buttonName(hk.button))
	}
	return strings.Join(parts, " • ")
}

func (m controlModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Recent Events:"))
	b.WriteString("\n")

	logHeight := max(m.height-32, 3)
	startIdx := max(len(m.errorLog)-logHeight, 0)

	logContent := strings.Builder{}
	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i := startIdx; i < len(m.errorLog); i++ {
		entry := m.errorLog[i]
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
		}
	}

	b.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(strings.TrimRight(logContent.String(), "\n")))
	return b.String()
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// press runs a catalogue button and logs the outcome
func (m *controlModel) press(button string) {
	if !m.ctl.IsConnected() {
		m.addLogEntry("Cannot send command: not connected", true)
		return
	}

	cmd, err := entities.Press(m.ctl, button, m.draft, m.snapshot)
	switch {
	case errors.Is(err, entities.ErrMissingSetting):
		m.addLogEntry(fmt.Sprintf("Cannot save: %v (press 'g' to load settings)", err), true)
	case err != nil:
		m.addLogEntry(fmt.Sprintf("%s failed: %v", m.buttonName(button), err), true)
	default:
		m.addLogEntry(fmt.Sprintf("%s: sent %s", m.buttonName(button), webasto.Abbreviate(cmd, 60)), false)
	}
	m.updateSettingsList()
}

// applyInput stores the typed value as a pending setting
func (m *controlModel) applyInput() {
	item, ok := m.settingsList.SelectedItem().(settingItem)
	if !ok {
		m.blurInput()
		return
	}

	raw := strings.TrimSpace(m.valueInput.Value())
	if raw == "" {
		m.blurInput()
		return
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid value: %s", raw), true)
		return
	}
	if err := m.draft.Set(item.entity.Key, value); err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}

	m.addLogEntry(fmt.Sprintf("%s set to %d (unsaved)", item.entity.Key, int64(value)), false)
	m.blurInput()
	m.updateSettingsList()
}

func (m *controlModel) focusInput() tea.Cmd {
	item, ok := m.settingsList.SelectedItem().(settingItem)
	if !ok {
		return nil
	}
	m.focusedField = focusValueInput
	m.valueInput.SetValue("")
	m.valueInput.Placeholder = item.current
	return m.valueInput.Focus()
}

func (m *controlModel) blurInput() {
	m.focusedField = focusSettingsList
	m.valueInput.Blur()
	m.valueInput.SetValue("")
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) pollSession() {
	m.stats = m.ctl.Stats()

	state := m.ctl.State()
	if state == m.state {
		return
	}
	switch state {
	case connection.StateConnected:
		m.addLogEntry("Connected", false)
	case connection.StateReconnecting:
		m.addLogEntry("Connection lost - reconnecting...", true)
	case connection.StateDisconnected:
		m.addLogEntry("Disconnected - giving up after retries", true)
	}
	m.state = state
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m controlModel) buttonName(key string) string {
	if e, ok := entities.Lookup(entities.KindButton, key); ok {
		return strings.ToLower(e.Name)
	}
	return key
}

// updateSettingsList refreshes list items from the snapshot and draft
func (m *controlModel) updateSettingsList() {
	pending := m.draft.Values()
	numbers := entities.OfKind(entities.KindNumber)
	items := make([]list.Item, 0, len(numbers))

	for _, e := range numbers {
		item := settingItem{entity: e, current: "?"}
		if raw, ok := m.snapshot.Get(e.Field); ok {
			if v, ok := e.NumberValue(raw); ok {
				item.current = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if v, ok := pending[e.Key]; ok {
			item.pending = strconv.FormatInt(v, 10)
		}
		items = append(items, item)
	}
	m.settingsList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	rightWidth := max(m.width-max(m.width/2-2, 36)-10, 30)
	m.settingsList.SetSize(rightWidth, max(m.height-22, 6))
}
