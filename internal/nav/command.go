package nav

import (
	"fmt"

	"github.com/Dicklesworthstone/edgemon/internal/model"
)

// Op is a command verb.
type Op int

const (
	OpNextPane Op = iota
	OpPrevPane
	OpFocusPane
	OpUp
	OpDown
	OpPageUp
	OpPageDown
	OpTop
	OpBottom
	OpSelect
	OpScroll
	OpActivate
	OpHelp
	OpBack
	OpQuit
	OpConfirm
	OpForceQuit
	OpResize
)

var opNames = [...]string{
	"next-pane", "prev-pane", "focus-pane", "up", "down", "page-up", "page-down",
	"top", "bottom", "select", "scroll", "activate", "help", "back", "quit",
	"confirm", "force-quit", "resize",
}

func (o Op) String() string {
	if o >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Command is one input intent.
type Command struct {
	Op     Op
	N      int       // pane for FocusPane, row for Select, delta for Scroll
	Pane   Pane      // pane for Select and Scroll
	Ref    model.Ref // entity for Activate
	Width  int
	Height int
}

// FocusPane focuses p.
func FocusPane(p Pane) Command { return Command{Op: OpFocusPane, N: int(p)} }

// Select focuses p and selects row.
func Select(p Pane, row int) Command { return Command{Op: OpSelect, Pane: p, N: row} }

// Scroll moves the window of p by delta rows.
func Scroll(p Pane, delta int) Command { return Command{Op: OpScroll, Pane: p, N: delta} }

// Activate opens the detail overlay for ref.
func Activate(ref model.Ref) Command { return Command{Op: OpActivate, Ref: ref} }

// Resize records the terminal size.
func Resize(width, height int) Command { return Command{Op: OpResize, Width: width, Height: height} }

// Simple builds a command without arguments.
func Simple(op Op) Command { return Command{Op: op} }

// Apply returns the state after c. Exiting is terminal: once reached every
// command is ignored.
func Apply(s State, c Command) State {
	if s.exiting {
		return s
	}

	// Commands valid in every mode.
	switch c.Op {
	case OpForceQuit:
		s.exiting = true
		return s
	case OpResize:
		s.Width, s.Height = max(c.Width, 0), max(c.Height, 0)
		for _, p := range Panes {
			s.Cursors[p] = s.clamp(p, s.Cursors[p])
		}
		return s
	case OpHelp:
		if top, ok := s.Top(); ok && top.Kind == ModalHelp {
			return s.pop()
		}
		return s.push(Modal{Kind: ModalHelp})
	case OpQuit:
		return s.push(Modal{Kind: ModalConfirmQuit})
	case OpBack:
		if len(s.Stack) == 0 {
			return s.push(Modal{Kind: ModalConfirmQuit})
		}
		return s.pop()
	case OpConfirm:
		if top, ok := s.Top(); ok && top.Kind == ModalConfirmQuit {
			s.exiting = true
		}
		return s
	case OpActivate:
		return s.push(Modal{Kind: ModalDetail, Ref: c.Ref})
	}

	if len(s.Stack) > 0 {
		return applyModal(s, c)
	}
	return applyNormal(s, c)
}

// applyModal handles movement while an overlay is open: it scrolls the
// overlay and leaves the panes alone.
func applyModal(s State, c Command) State {
	page := max(s.Height-4, 1)
	switch c.Op {
	case OpUp:
		return s.scrollTop(-1)
	case OpDown:
		return s.scrollTop(1)
	case OpPageUp:
		return s.scrollTop(-page)
	case OpPageDown:
		return s.scrollTop(page)
	case OpScroll:
		return s.scrollTop(c.N)
	case OpTop:
		return s.scrollTop(-1 << 30)
	}
	return s
}

func applyNormal(s State, c Command) State {
	switch c.Op {
	case OpNextPane:
		s.Focus = Pane((int(s.Focus) + 1) % NumPanes)
	case OpPrevPane:
		s.Focus = Pane((int(s.Focus) + NumPanes - 1) % NumPanes)
	case OpFocusPane:
		if c.N >= 0 && c.N < NumPanes {
			s.Focus = Pane(c.N)
		}
	case OpUp:
		s = s.move(s.Focus, -1)
	case OpDown:
		s = s.move(s.Focus, 1)
	case OpPageUp:
		s = s.move(s.Focus, -max(s.Visible[s.Focus], 1))
	case OpPageDown:
		s = s.move(s.Focus, max(s.Visible[s.Focus], 1))
	case OpTop:
		s.Cursors[s.Focus] = s.clamp(s.Focus, Cursor{})
	case OpBottom:
		s.Cursors[s.Focus] = s.clamp(s.Focus, Cursor{Row: s.Rows[s.Focus] - 1, Offset: s.Cursors[s.Focus].Offset})
	case OpSelect:
		if c.Pane < 0 || int(c.Pane) >= NumPanes {
			return s
		}
		s.Focus = c.Pane
		cur := s.Cursors[c.Pane]
		cur.Row = c.N
		s.Cursors[c.Pane] = s.clamp(c.Pane, cur)
	case OpScroll:
		if c.Pane < 0 || int(c.Pane) >= NumPanes {
			return s
		}
		s = s.scroll(c.Pane, c.N)
	}
	return s
}

// move shifts the selection, dragging the window along.
func (s State) move(p Pane, delta int) State {
	cur := s.Cursors[p]
	cur.Row += delta
	s.Cursors[p] = s.clamp(p, cur)
	return s
}

// scroll shifts the window, dragging the selection along when it would
// leave the visible rows.
func (s State) scroll(p Pane, delta int) State {
	rows, visible := s.Rows[p], max(s.Visible[p], 1)
	cur := s.Cursors[p]
	cur.Offset = min(max(cur.Offset+delta, 0), max(rows-visible, 0))
	cur.Row = min(max(cur.Row, cur.Offset), cur.Offset+visible-1)
	s.Cursors[p] = s.clamp(p, cur)
	return s
}
