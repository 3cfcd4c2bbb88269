package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookbox/internal/events"
	"github.com/mattjoyce/hookbox/internal/message"
)

const (
	maxEventLog  = 50
	pollInterval = 5 * time.Second
	retryDelay   = 3 * time.Second
)

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	client *Client

	width  int
	height int

	health   HealthState
	stats    message.Stats
	eventLog []events.Event
	lastID   int64
	counts   map[string]int

	ticker  Ticker
	pulse   Pulse
	theme   Theme
	senders table.Model

	hubEvents chan events.Event

	// pollGen identifies the live stats/ready polling chains; a manual
	// refresh bumps it and the older chains stop at their next result.
	pollGen   int
	pollEvery time.Duration

	lastError string
	now       func() time.Time
}

// New creates a new watch TUI model.
func New(client *Client) Model {
	theme := NewDefaultTheme()
	return Model{
		client:    client,
		eventLog:  make([]events.Event, 0),
		counts:    make(map[string]int),
		ticker:    NewTicker(),
		theme:     theme,
		senders:   newSenderTable(theme),
		hubEvents: make(chan events.Event, 100),
		pollEvery: pollInterval,
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.client, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		fetchReady(m.client, m.pollGen),
		fetchStats(m.client, m.pollGen),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.pollGen++
			return m, tea.Batch(fetchReady(m.client, m.pollGen), fetchStats(m.client, m.pollGen))
		}
		var cmd tea.Cmd
		m.senders, cmd = m.senders.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.ticker.Tick()
		m.pulse.Decay(time.Time(msg))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)

		// Newest first.
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}
		if e.ID > m.lastID {
			m.lastID = e.ID
		}
		m.counts[e.Type]++
		m.pulse.OnEvent(m.now())
		m.health.Connected = true
		m.lastError = ""

		return m, receiveNextEvent(m.hubEvents)

	case statsMsg:
		m.stats = msg.stats
		m.senders.SetRows(senderRows(m.stats))
		m.lastError = ""
		return m, m.nextPoll(pollStats, msg.gen)

	case readyMsg:
		m.health.Ready = msg.Ready
		m.health.Reason = msg.Reason
		m.health.Connected = true
		m.health.LastCheck = m.now()
		return m, m.nextPoll(pollReady, msg.gen)

	case sseDisconnectedMsg:
		m.health.Connected = false
		if msg.lastID > m.lastID {
			m.lastID = msg.lastID
		}
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(retryDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.client, m.lastID, m.hubEvents)

	case pollErrMsg:
		m.lastError = msg.err.Error()
		return m, m.nextPoll(msg.kind, msg.gen)
	}

	return m, nil
}

// nextPoll continues the chain that produced a result. Results from a
// superseded generation end their chain.
func (m Model) nextPoll(kind pollKind, gen int) tea.Cmd {
	if gen != m.pollGen {
		return nil
	}
	fetch := fetchStats
	if kind == pollReady {
		fetch = fetchReady
	}
	client := m.client
	return tea.Tick(m.pollEvery, func(time.Time) tea.Msg { return fetch(client, gen)() })
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to hookbox..."
	}

	header := renderHeader(m.health, m.stats, m.ticker, m.pulse, m.theme, m.width, m.now())
	senders := renderSenders(m.senders, m.theme, m.width)
	totals := m.theme.Dim.Render(fmt.Sprintf(" session: %d created  %d duplicate  %d conflict  %d rejected",
		m.counts["message.created"], m.counts["message.duplicate"],
		m.counts["message.conflict"], m.counts["webhook.rejected"]))
	stream := renderEventStream(m.eventLog, m.theme, m.width)

	parts := []string{header, senders, totals, stream}
	if m.lastError != "" {
		parts = append(parts, m.theme.Rejected.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [r] Refresh • [↑/↓] Senders"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

// Run starts the dashboard against baseURL and blocks until the user quits.
func Run(baseURL, token string) error {
	p := tea.NewProgram(New(NewClient(baseURL, token)), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
