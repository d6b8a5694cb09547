// Package tui renders a live session store as a terminal dashboard. The model
// is a pure projection: every keypress mutates the store, and every store
// change notification re-reads the slices it renders. Nothing here talks to
// the network.
package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/repopulse/repopulse/pkg/api"
	"github.com/repopulse/repopulse/pkg/graphview"
	"github.com/repopulse/repopulse/pkg/session"
)

const (
	feedHeight  = 8
	graphHeight = 14
)

// storeChangedMsg is delivered whenever the session store notifies.
type storeChangedMsg struct{}

// Model is the bubbletea model over one session store.
type Model struct {
	store   *session.Store
	builder *graphview.Builder
	panel   *graphPanel

	changes     chan struct{}
	unsubscribe func()

	spinner spinner.Model
	bar     progress.Model
	feed    viewport.Model

	width  int
	height int
	ready  bool

	lastAnalysisID string

	findingCursor int
	chainCursor   int
	searching     bool
	searchBuf     string
}

// New builds a model bound to the store. The subscription is coalescing:
// bursts of store changes collapse into one redraw.
func New(store *session.Store) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 24

	vp := viewport.New(100, feedHeight)

	panel := newGraphPanel()

	changes := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	return Model{
		store:       store,
		builder:     graphview.NewBuilder(panel),
		panel:       panel,
		changes:     changes,
		unsubscribe: unsubscribe,
		spinner:     s,
		bar:         bar,
		feed:        vp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.changes))
}

func waitForChange(changes chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return storeChangedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case storeChangedMsg:
		m.refresh()
		cmds = append(cmds, waitForChange(m.changes))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.feed.Width = msg.Width - 4
		m.feed.Height = feedHeight
		m.ready = true
		m.refresh()
	}

	return m, tea.Batch(cmds...)
}

// refresh re-reads the store and reconciles the graph panel. Sync inserts
// what is new; Restyle is always cheap and always re-run. A new analysis id
// means the store was hard-reset, so the panel and its mirror reset with it.
func (m *Model) refresh() {
	if id := m.store.AnalysisID(); id != m.lastAnalysisID {
		m.lastAnalysisID = id
		m.builder.Reset()
		m.panel.clear()
	}

	g := m.store.Graph()
	mode := m.store.ViewMode()
	m.builder.Sync(g, mode)
	m.builder.Restyle(g, mode, m.store.Selection())
	m.updateFeed()
	m.clampCursors()
}

func (m *Model) clampCursors() {
	if n := len(m.store.Findings()); m.findingCursor >= n {
		m.findingCursor = n - 1
	}
	if m.findingCursor < 0 {
		m.findingCursor = 0
	}
	if n := len(m.store.Chains()); m.chainCursor >= n {
		m.chainCursor = n - 1
	}
	if m.chainCursor < 0 {
		m.chainCursor = 0
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.unsubscribe()
		return m, tea.Quit

	case "v":
		m.store.SetGraphView(nextViewMode(m.store.ViewMode()))

	case "s":
		m.store.SetSeverityFilter(nextSeverity(m.store.Selection().SeverityFilter))
		m.findingCursor = 0
		m.syncFindingSelection()

	case "j", "down":
		m.findingCursor++
		m.clampCursors()
		m.syncFindingSelection()

	case "k", "up":
		m.findingCursor--
		m.clampCursors()
		m.syncFindingSelection()

	case "n":
		m.cycleNode(1)

	case "p":
		m.cycleNode(-1)

	case "c":
		chains := m.store.Chains()
		if len(chains) > 0 {
			if m.store.Selection().ChainID != "" {
				m.chainCursor = (m.chainCursor + 1) % len(chains)
			}
			m.store.HighlightChain(chains[m.chainCursor].ID)
		}

	case "/":
		m.searching = true
		m.searchBuf = m.store.Selection().Search

	case "esc":
		m.store.HighlightChain("")
		m.store.SelectNode("")
		m.store.SetSearch("")

	default:
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.store.SetSearch(m.searchBuf)
	case "esc":
		m.searching = false
		m.searchBuf = ""
		m.store.SetSearch("")
	case "backspace":
		if len(m.searchBuf) > 0 {
			m.searchBuf = m.searchBuf[:len(m.searchBuf)-1]
		}
	default:
		if msg.Type == tea.KeyRunes {
			m.searchBuf += string(msg.Runes)
		}
	}
	return m, nil
}

// syncFindingSelection mirrors the cursor into the store so other panes
// (and any future render targets) see the same selection.
func (m *Model) syncFindingSelection() {
	findings := m.store.Findings()
	if len(findings) == 0 {
		m.store.SelectFinding("")
		return
	}
	m.store.SelectFinding(findings[m.findingCursor].ID)
}

func (m *Model) cycleNode(step int) {
	g := m.store.Graph()
	if len(g.Nodes) == 0 {
		return
	}
	cur := m.store.Selection().NodeID
	idx := -1
	for i, n := range g.Nodes {
		if n.ID == cur {
			idx = i
			break
		}
	}
	idx += step
	if idx < 0 {
		idx = len(g.Nodes) - 1
	}
	if idx >= len(g.Nodes) {
		idx = 0
	}
	m.store.SelectNode(g.Nodes[idx].ID)
}

func nextViewMode(mode session.ViewMode) session.ViewMode {
	switch mode {
	case session.ViewVulnerabilities:
		return session.ViewStructure
	case session.ViewStructure:
		return session.ViewDependencies
	default:
		return session.ViewVulnerabilities
	}
}

func nextSeverity(sev api.Severity) api.Severity {
	switch sev {
	case "":
		return api.SeverityCritical
	case api.SeverityCritical:
		return api.SeverityWarning
	case api.SeverityWarning:
		return api.SeverityInfo
	default:
		return ""
	}
}
