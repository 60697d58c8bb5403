package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/edgemon/internal/nav"
	"github.com/Dicklesworthstone/edgemon/internal/tui/widgets"
)

// wheelStep is the number of rows one wheel notch scrolls.
const wheelStep = 3

// rowsTop is the offset of the first entity row inside a pane: border,
// title and column headings.
const rowsTop = 3

// mouse maps a mouse event to a command. The wheel scrolls the pane under
// the pointer (or the open overlay); a left click focuses the pane and
// selects the row under the pointer.
func (m Model) mouse(msg tea.MouseMsg) (nav.Command, bool) {
	wheel := 0
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		wheel = -wheelStep
	case tea.MouseButtonWheelDown:
		wheel = wheelStep
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionPress {
			return nav.Command{}, false
		}
	default:
		return nav.Command{}, false
	}

	if _, modal := m.nav.Top(); modal {
		if wheel == 0 {
			return nav.Command{}, false
		}
		return nav.Scroll(m.nav.Focus, wheel), true
	}

	p, y, ok := m.paneAt(msg)
	if !ok {
		return nav.Command{}, false
	}
	if wheel != 0 {
		return nav.Scroll(p, wheel), true
	}
	if y < rowsTop {
		return nav.FocusPane(p), true
	}
	row := m.nav.Cursors[p].Offset + y - rowsTop
	if row >= m.nav.Rows[p] {
		return nav.FocusPane(p), true
	}
	return nav.Select(p, row), true
}

// paneAt finds the pane under the pointer and the pointer's row inside it.
// Mouse zones are used once the frame carrying them has been scanned; until
// then the layout of the last tree answers.
func (m Model) paneAt(msg tea.MouseMsg) (nav.Pane, int, bool) {
	for _, p := range nav.Panes {
		if !m.tree.Frame.Visible(p) {
			continue
		}
		z := m.zones.Get(string(widgets.PaneRegion(p)))
		if z == nil || z.IsZero() || !z.InBounds(msg) {
			continue
		}
		_, y := z.Pos(msg)
		return p, y, true
	}
	p, ok := m.tree.Frame.PaneAt(msg.X, msg.Y)
	if !ok {
		return 0, 0, false
	}
	return p, msg.Y - m.tree.Frame.Panes[p].Y, true
}
