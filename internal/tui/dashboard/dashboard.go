// Package dashboard is the monitor's interactive terminal UI. It turns key,
// mouse and resize input into navigation commands, and store notifications
// and ticks into frames.
package dashboard

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/nav"
	"github.com/Dicklesworthstone/edgemon/internal/source/hostnet"
	"github.com/Dicklesworthstone/edgemon/internal/store"
	"github.com/Dicklesworthstone/edgemon/internal/tui/icons"
	"github.com/Dicklesworthstone/edgemon/internal/tui/theme"
	"github.com/Dicklesworthstone/edgemon/internal/tui/widgets"
)

// ChangeMsg reports a store commit. The version is informational: the
// model always renders the latest snapshot.
type ChangeMsg struct {
	Version uint64
}

// TickMsg refreshes time-relative text.
type TickMsg time.Time

// Snapshotter is the read side of the state store.
type Snapshotter interface {
	Snapshot() *store.Snapshot
}

// Options configures the dashboard.
type Options struct {
	TickInterval time.Duration
	Theme        theme.Theme
	Icons        icons.IconSet
	Host         hostnet.Summary
	Version      string
	Width        int
	Height       int
}

// DefaultTickInterval refreshes relative times twice a second.
const DefaultTickInterval = 500 * time.Millisecond

// Model is the bubbletea model of the monitor.
type Model struct {
	store   Snapshotter
	changes <-chan uint64
	opts    Options
	keys    KeyMap

	nav     nav.State
	snap    *store.Snapshot
	tree    widgets.Tree
	painter *widgets.Painter
	zones   *zone.Manager
	frame   string

	helpStyle string
	now       func() time.Time

	// painted counts regions repainted since start.
	painted int
}

// New creates the dashboard over a store and its change subscription.
func New(st Snapshotter, changes <-chan uint64, opts Options) Model {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 80, 24
	}
	zones := zone.New()
	m := Model{
		store:     st,
		changes:   changes,
		opts:      opts,
		keys:      DefaultKeyMap,
		nav:       nav.New(opts.Width, opts.Height),
		painter:   widgets.NewPainter(theme.NewStyles(opts.Theme)),
		zones:     zones,
		helpStyle: helpStyle(opts.Theme),
		now:       time.Now,
	}
	m.painter.SetMarker(func(id widgets.RegionID, s string) string {
		return zones.Mark(string(id), s)
	})
	m.render()
	return m
}

func helpStyle(t theme.Theme) string {
	switch t {
	case theme.Plain:
		return "notty"
	case theme.CatppuccinLatte:
		return "light"
	default:
		return "dark"
	}
}

// Close releases the mouse zone tracker.
func (m Model) Close() {
	m.zones.Close()
}

// Nav returns the navigation state.
func (m Model) Nav() nav.State { return m.nav }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), m.tick())
}

// waitForChange blocks until the store commits. It stops re-arming once the
// subscription is closed.
func waitForChange(sub <-chan uint64) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-sub
		if !ok {
			return nil
		}
		return ChangeMsg{Version: v}
	}
}

func (m Model) tick() tea.Cmd {
	interval := m.opts.TickInterval
	if interval <= 0 {
		return nil
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.nav = nav.Apply(m.nav, nav.Resize(msg.Width, msg.Height))
		m.render()
		return m, nil

	case ChangeMsg:
		m.render()
		return m, waitForChange(m.changes)

	case TickMsg:
		m.render()
		return m, m.tick()

	case tea.KeyMsg:
		cmd, ok := m.command(msg)
		if !ok {
			return m, nil
		}
		return m.apply(cmd)

	case tea.MouseMsg:
		cmd, ok := m.mouse(msg)
		if !ok {
			return m, nil
		}
		return m.apply(cmd)
	}
	return m, nil
}

func (m Model) apply(cmd nav.Command) (tea.Model, tea.Cmd) {
	m.nav = nav.Apply(m.nav, cmd)
	if m.nav.Mode() == nav.ModeExiting {
		m.frame = ""
		return m, tea.Quit
	}
	m.render()
	return m, nil
}

// render rebuilds the widget tree from the latest snapshot and repaints the
// regions that changed.
func (m *Model) render() {
	m.snap = m.store.Snapshot()
	tree := widgets.Build(widgets.Input{
		Snapshot:  m.snap,
		Nav:       m.nav,
		Width:     m.nav.Width,
		Height:    m.nav.Height,
		Now:       m.now(),
		Host:      m.opts.Host,
		Version:   m.opts.Version,
		HelpStyle: m.helpStyle,
		Icons:     m.opts.Icons,
	})
	m.nav = tree.Nav
	m.painted += m.painter.Paint(tree, widgets.Diff(m.tree, tree))
	m.tree = tree
	m.frame = m.painter.Compose(tree)
}

// selected is the entity under the focused pane's cursor in the snapshot
// on screen.
func (m Model) selected() (model.Ref, bool) {
	return widgets.RowRef(m.snap, m.nav.Focus, m.nav.Cursor().Row)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.nav.Mode() == nav.ModeExiting {
		return ""
	}
	return m.zones.Scan(m.frame)
}
