package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tuftsceeo/smartmotor/internal/agent"
	"github.com/tuftsceeo/smartmotor/internal/config"
	"github.com/tuftsceeo/smartmotor/internal/peersync"
	"github.com/tuftsceeo/smartmotor/internal/version"
)

// snapshotInterval is how often the panel polls the supervisor
const snapshotInterval = 100 * time.Millisecond

// tickMsg drives the snapshot poll
type tickMsg time.Time

// panelKeyMap defines the front panel key bindings
type panelKeyMap struct {
	Resync key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k panelKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Resync, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k panelKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Resync, k.Quit},
	}
}

// Model is the front panel dashboard
type Model struct {
	settings   *config.Settings
	supervisor *agent.Supervisor

	status  agent.Status
	spinner spinner.Model
	gauge   progress.Model
	help    help.Model
	keys    panelKeyMap

	width    int
	quitting bool
}

// New creates a front panel watching the given supervisor
func New(settings *config.Settings, supervisor *agent.Supervisor) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(WarningColor)

	gauge := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(gaugeWidth),
		progress.WithoutPercentage(),
	)

	keys := panelKeyMap{
		Resync: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "resync"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return Model{
		settings:   settings,
		supervisor: supervisor,
		status:     supervisor.Snapshot(),
		spinner:    sp,
		gauge:      gauge,
		help:       help.New(),
		keys:       keys,
		width:      MinPanelWidth,
	}
}

func tick() tea.Cmd {
	return tea.Tick(snapshotInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the spinner and the snapshot poll
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// Update handles panel messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.width > MaxPanelWidth {
			m.width = MaxPanelWidth
		}
		if m.width < MinPanelWidth {
			m.width = MinPanelWidth
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Resync):
			m.supervisor.RequestResync()
			return m, nil
		}
		return m, nil

	case tickMsg:
		m.status = m.supervisor.Snapshot()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the panel
func (m Model) View() string {
	if m.quitting {
		return "Parking at center and disconnecting...\n"
	}

	var b strings.Builder

	title := fmt.Sprintf("SMARTMOTOR %s", strings.ToUpper(string(m.settings.Device.Role)))
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("  ")
	b.WriteString(SubtitleStyle.Render("v" + version.Version))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render(m.relayURL()))
	b.WriteString("\n\n")

	b.WriteString(m.linkRow())
	b.WriteString("\n")
	b.WriteString(m.syncRow())
	b.WriteString("\n")
	b.WriteString(m.partnerRow())
	b.WriteString("\n\n")

	b.WriteString(m.valueGauge())
	b.WriteString("\n\n")

	b.WriteString(m.countersRow())
	b.WriteString("\n")

	if m.status.LastError != "" && m.status.Conn != agent.StateConnected {
		b.WriteString(LabelStyle.Render("Error:"))
		b.WriteString(ErrorStyle.Render(m.status.LastError))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return PanelBorderStyle.Width(m.width - 2).Render(b.String()) + "\n"
}

func (m Model) relayURL() string {
	scheme := "ws"
	if m.settings.Relay.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, m.settings.Relay.Host, m.settings.Relay.Port, m.settings.Relay.Path)
}

func (m Model) linkRow() string {
	label := LabelStyle.Render("Link:")
	switch m.status.Conn {
	case agent.StateConnected:
		id := m.status.ClientID
		if id == "" {
			id = "awaiting welcome"
		}
		return label + ConnectedStyle.Render("connected") + ValueStyle.Render("  "+id)
	case agent.StateConnecting:
		attempt := ""
		if m.status.DialAttempt > 1 {
			attempt = fmt.Sprintf("  attempt %d/%d", m.status.DialAttempt, m.settings.Sync.MaxReconnectAttempts)
		}
		return label + m.spinner.View() + PendingStyle.Render("connecting"+attempt)
	default:
		return label + DownStyle.Render("disconnected")
	}
}

func (m Model) syncRow() string {
	label := LabelStyle.Render("Sync:")
	switch m.status.Sync {
	case peersync.StateSynced:
		return label + ConnectedStyle.Render("synced")
	case peersync.StateAwaitingResync:
		return label + PendingStyle.Render("awaiting resync")
	default:
		return label + ValueStyle.Render("idle")
	}
}

func (m Model) partnerRow() string {
	label := LabelStyle.Render("Partner:")
	if m.status.PartnerAlive {
		return label + ConnectedStyle.Render(MarkerAlive+" alive")
	}
	return label + DownStyle.Render(MarkerStale+" not heard from")
}

// valueGauge shows where the current value sits inside the device range.
// The controller shows what it last published; the receiver shows what it
// last applied.
func (m Model) valueGauge() string {
	var value float64
	var have bool
	var caption string

	if m.settings.Device.Role == config.RoleReceiver {
		value, have = m.status.LastApplied, m.status.HaveApplied
		caption = "applied"
	} else {
		value, have = m.status.LastSent, m.status.HaveSent
		caption = "published"
	}

	min, max := m.settings.Device.ValueMin, m.settings.Device.ValueMax
	percent := 0.0
	display := "--"
	if have {
		percent = (value - min) / (max - min)
		display = fmt.Sprintf("%.0f°", value)
	}

	row := LabelStyle.Render("Value:") + m.gauge.ViewAs(percent) + ValueStyle.Render("  "+display)
	note := LabelStyle.Render("") + SubtitleStyle.Render(
		fmt.Sprintf("last %s · range %.0f–%.0f", caption, min, max))
	return row + "\n" + note
}

func (m Model) countersRow() string {
	used, capacity := m.status.RateUsed, m.status.RateCapacity
	rate := "unlimited"
	if capacity > 0 {
		rate = fmt.Sprintf("%d/%d per window", used, capacity)
	}
	return LabelStyle.Render("Counters:") + ValueStyle.Render(
		fmt.Sprintf("sent seq %d · recv seq %d · rate %s", m.status.LocalSeq, m.status.RemoteSeq, rate))
}

// Run blocks in the panel until the user quits
func Run(settings *config.Settings, supervisor *agent.Supervisor) error {
	program := tea.NewProgram(New(settings, supervisor))
	_, err := program.Run()
	return err
}
