package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/timely/internal/model"
)

// Source supplies alarms to the watch view.
type Source interface {
	List(ctx context.Context) ([]model.Alarm, error)
	Sync(ctx context.Context) ([]model.Alarm, error)
}

// tickMsg is sent when the clock ticks.
type tickMsg time.Time

// snapshotMsg carries a fresh alarm list.
type snapshotMsg struct {
	alarms []model.Alarm
	synced bool
}

// errMsg is sent when an error occurs.
type errMsg struct {
	err error
}

// WatchConfig holds configuration for the watch view.
type WatchConfig struct {
	Source Source
	// Updates, when set, pushes store snapshots without waiting for a poll.
	Updates      <-chan []model.Alarm
	PollInterval time.Duration
	MaxAlarms    int
	Now          func() time.Time
}

// WatchModel is the bubbletea model behind 'timely watch'.
type WatchModel struct {
	alarms []model.Alarm
	source Source
	// updates is nil once the channel closes.
	updates <-chan []model.Alarm

	width      int
	height     int
	err        error
	message    string
	messageExp time.Time
	syncing    bool

	pollInterval time.Duration
	maxAlarms    int
	now          func() time.Time
	lastPoll     time.Time
}

// NewWatchModel creates a new watch model.
func NewWatchModel(cfg WatchConfig) *WatchModel {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxAlarms == 0 {
		cfg.MaxAlarms = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &WatchModel{
		source:       cfg.Source,
		updates:      cfg.Updates,
		pollInterval: cfg.PollInterval,
		maxAlarms:    cfg.MaxAlarms,
		now:          cfg.Now,
	}
}

// Init initializes the model.
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.listCmd(), m.waitCmd())
}

// Update handles messages and updates the model.
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		now := time.Time(msg)
		if !m.messageExp.IsZero() && now.After(m.messageExp) {
			m.message = ""
			m.messageExp = time.Time{}
		}
		cmds := []tea.Cmd{m.tickCmd()}
		if m.updates == nil && now.Sub(m.lastPoll) >= m.pollInterval {
			m.lastPoll = now
			cmds = append(cmds, m.listCmd())
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.alarms = msg.alarms
		m.err = nil
		if msg.synced {
			m.syncing = false
			m.setMessage(fmt.Sprintf("Synced %d alarm(s)", len(msg.alarms)), 2*time.Second)
		}
		return m, nil

	case updateMsg:
		if !msg.ok {
			m.updates = nil
			return m, nil
		}
		m.alarms = msg.alarms
		return m, m.waitCmd()

	case errMsg:
		m.err = msg.err
		m.syncing = false
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input.
func (m *WatchModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "r":
		m.setMessage("Reloading", time.Second)
		return m, m.listCmd()

	case "s":
		if m.syncing {
			return m, nil
		}
		m.syncing = true
		m.setMessage("Syncing with server", 5*time.Second)
		return m, m.syncCmd()
	}

	return m, nil
}

// View renders the watch view.
func (m *WatchModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	now := m.now()
	sections := []string{m.renderHeader(now)}

	if m.err != nil {
		sections = append(sections, StyleError.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	if m.message != "" {
		sections = append(sections, StyleWarning.Render(m.message))
	}

	sections = append(sections,
		NewNextComponent(m.alarms, now, m.width).View(),
		NewAlarmsComponent(m.alarms, now, m.width, m.maxAlarms).View(),
		HelpBar(),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *WatchModel) renderHeader(now time.Time) string {
	title := StyleTitle.Render("timely")
	clock := StyleSubtitle.Render(now.Format("Mon Jan 2, 15:04:05"))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", clock) + "\n"
}

// setMessage sets a temporary message.
func (m *WatchModel) setMessage(msg string, d time.Duration) {
	m.message = msg
	m.messageExp = m.now().Add(d)
}

func (m *WatchModel) tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *WatchModel) listCmd() tea.Cmd {
	src := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		alarms, err := src.List(ctx)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{alarms: alarms}
	}
}

func (m *WatchModel) syncCmd() tea.Cmd {
	src := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		alarms, err := src.Sync(ctx)
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{alarms: alarms, synced: true}
	}
}

// updateMsg is one value read from the updates channel.
type updateMsg struct {
	alarms []model.Alarm
	ok     bool
}

func (m *WatchModel) waitCmd() tea.Cmd {
	ch := m.updates
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		alarms, ok := <-ch
		return updateMsg{alarms: alarms, ok: ok}
	}
}

// Run starts the watch TUI.
func Run(cfg WatchConfig) error {
	p := tea.NewProgram(NewWatchModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
