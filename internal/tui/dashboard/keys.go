package dashboard

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/edgemon/internal/nav"
)

// KeyMap defines the monitor's keybindings.
type KeyMap struct {
	NextPane  key.Binding
	PrevPane  key.Binding
	Pane1     key.Binding
	Pane2     key.Binding
	Pane3     key.Binding
	Pane4     key.Binding
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Top       key.Binding
	Bottom    key.Binding
	Enter     key.Binding
	Confirm   key.Binding
	Help      key.Binding
	Back      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap is the key map used by New.
var DefaultKeyMap = KeyMap{
	NextPane:  key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next pane")),
	PrevPane:  key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "previous pane")),
	Pane1:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "interfaces")),
	Pane2:     key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "workloads")),
	Pane3:     key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "certificates")),
	Pane4:     key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "diagnostics")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PageUp:    key.NewBinding(key.WithKeys("pgup", "ctrl+b"), key.WithHelp("pgup", "page up")),
	PageDown:  key.NewBinding(key.WithKeys("pgdown", "ctrl+f", " "), key.WithHelp("pgdn", "page down")),
	Top:       key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first row")),
	Bottom:    key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last row")),
	Enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Confirm:   key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Back:      key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
	Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit now")),
}

// command maps a key to a navigation command. Enter depends on the state:
// it opens the selected row in normal mode and confirms a quit prompt.
func (m Model) command(msg tea.KeyMsg) (nav.Command, bool) {
	k := m.keys
	switch {
	case key.Matches(msg, k.ForceQuit):
		return nav.Simple(nav.OpForceQuit), true
	case key.Matches(msg, k.Quit):
		return nav.Simple(nav.OpQuit), true
	case key.Matches(msg, k.Help):
		return nav.Simple(nav.OpHelp), true
	case key.Matches(msg, k.Back):
		return nav.Simple(nav.OpBack), true
	case key.Matches(msg, k.Confirm):
		return nav.Simple(nav.OpConfirm), true
	case key.Matches(msg, k.Enter):
		if top, ok := m.nav.Top(); ok {
			if top.Kind == nav.ModalConfirmQuit {
				return nav.Simple(nav.OpConfirm), true
			}
			return nav.Command{}, false
		}
		ref, ok := m.selected()
		if !ok {
			return nav.Command{}, false
		}
		return nav.Activate(ref), true
	case key.Matches(msg, k.NextPane):
		return nav.Simple(nav.OpNextPane), true
	case key.Matches(msg, k.PrevPane):
		return nav.Simple(nav.OpPrevPane), true
	case key.Matches(msg, k.Pane1):
		return nav.FocusPane(nav.PaneInterfaces), true
	case key.Matches(msg, k.Pane2):
		return nav.FocusPane(nav.PaneWorkloads), true
	case key.Matches(msg, k.Pane3):
		return nav.FocusPane(nav.PaneCertificates), true
	case key.Matches(msg, k.Pane4):
		return nav.FocusPane(nav.PaneDiagnostics), true
	case key.Matches(msg, k.Up):
		return nav.Simple(nav.OpUp), true
	case key.Matches(msg, k.Down):
		return nav.Simple(nav.OpDown), true
	case key.Matches(msg, k.PageUp):
		return nav.Simple(nav.OpPageUp), true
	case key.Matches(msg, k.PageDown):
		return nav.Simple(nav.OpPageDown), true
	case key.Matches(msg, k.Top):
		return nav.Simple(nav.OpTop), true
	case key.Matches(msg, k.Bottom):
		return nav.Simple(nav.OpBottom), true
	}
	return nav.Command{}, false
}
