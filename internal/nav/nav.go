// Package nav holds the navigation state of the monitor UI and the pure
// transition function that applies input commands to it.
package nav

import (
	"fmt"

	"github.com/Dicklesworthstone/edgemon/internal/model"
)

// Mode is the top-level input mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeModal
	ModeExiting
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeModal:
		return "modal"
	case ModeExiting:
		return "exiting"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Pane is a body pane, in cycle order.
type Pane int

const (
	PaneInterfaces Pane = iota
	PaneWorkloads
	PaneCertificates
	PaneDiagnostics

	// NumPanes is the number of panes.
	NumPanes = int(PaneDiagnostics) + 1
)

// Panes lists every pane in cycle order.
var Panes = [NumPanes]Pane{PaneInterfaces, PaneWorkloads, PaneCertificates, PaneDiagnostics}

func (p Pane) String() string {
	switch p {
	case PaneInterfaces:
		return "Interfaces"
	case PaneWorkloads:
		return "Workloads"
	case PaneCertificates:
		return "Certificates"
	case PaneDiagnostics:
		return "Diagnostics"
	default:
		return fmt.Sprintf("pane(%d)", int(p))
	}
}

// Kind is the entity kind listed in the pane.
func (p Pane) Kind() model.Kind {
	switch p {
	case PaneWorkloads:
		return model.KindWorkload
	case PaneCertificates:
		return model.KindCertificate
	case PaneDiagnostics:
		return model.KindDiagnostic
	default:
		return model.KindInterface
	}
}

// ModalKind identifies an overlay.
type ModalKind int

const (
	ModalDetail ModalKind = iota
	ModalHelp
	ModalConfirmQuit
)

func (k ModalKind) String() string {
	switch k {
	case ModalDetail:
		return "detail"
	case ModalHelp:
		return "help"
	case ModalConfirmQuit:
		return "confirm-quit"
	default:
		return fmt.Sprintf("modal(%d)", int(k))
	}
}

// MaxModalDepth bounds the modal stack. Pushes beyond it are ignored.
const MaxModalDepth = 4

// Modal is one entry of the modal stack.
type Modal struct {
	Kind   ModalKind
	Ref    model.Ref // entity shown by a detail overlay
	Scroll int
}

// Cursor is the selection and scroll position of one pane.
type Cursor struct {
	Row    int // selected row
	Offset int // first visible row
}

// State is the complete navigation state. It is a value: Apply returns a
// new State and never modifies its argument.
type State struct {
	Focus   Pane
	Cursors [NumPanes]Cursor
	// Rows and Visible are the row count and visible height of each pane,
	// supplied by the view after each rebuild.
	Rows    [NumPanes]int
	Visible [NumPanes]int
	Stack   []Modal
	Width   int
	Height  int
	exiting bool
}

// New returns the initial state.
func New(width, height int) State {
	return State{Width: width, Height: height}
}

// Mode derives the input mode.
func (s State) Mode() Mode {
	switch {
	case s.exiting:
		return ModeExiting
	case len(s.Stack) > 0:
		return ModeModal
	default:
		return ModeNormal
	}
}

// Top returns the topmost modal.
func (s State) Top() (Modal, bool) {
	if len(s.Stack) == 0 {
		return Modal{}, false
	}
	return s.Stack[len(s.Stack)-1], true
}

// Cursor returns the focused pane's cursor.
func (s State) Cursor() Cursor {
	return s.Cursors[s.Focus]
}

// WithRows records the row count and visible height of a pane and clamps
// its cursor.
func (s State) WithRows(p Pane, rows, visible int) State {
	if p < 0 || int(p) >= NumPanes {
		return s
	}
	s.Rows[p] = max(rows, 0)
	s.Visible[p] = max(visible, 1)
	s.Cursors[p] = s.clamp(p, s.Cursors[p])
	return s
}

// clamp keeps the cursor on an existing row and inside the visible window.
func (s State) clamp(p Pane, c Cursor) Cursor {
	rows, visible := s.Rows[p], max(s.Visible[p], 1)
	c.Row = min(max(c.Row, 0), max(rows-1, 0))
	if c.Row < c.Offset {
		c.Offset = c.Row
	}
	if c.Row >= c.Offset+visible {
		c.Offset = c.Row - visible + 1
	}
	c.Offset = min(max(c.Offset, 0), max(rows-visible, 0))
	return c
}

func (s State) push(m Modal) State {
	if len(s.Stack) >= MaxModalDepth {
		return s
	}
	if top, ok := s.Top(); ok && top.Kind == m.Kind && top.Ref == m.Ref {
		return s
	}
	stack := make([]Modal, len(s.Stack), len(s.Stack)+1)
	copy(stack, s.Stack)
	s.Stack = append(stack, m)
	return s
}

func (s State) pop() State {
	if len(s.Stack) == 0 {
		return s
	}
	s.Stack = append([]Modal(nil), s.Stack[:len(s.Stack)-1]...)
	return s
}

func (s State) scrollTop(delta int) State {
	stack := append([]Modal(nil), s.Stack...)
	top := &stack[len(stack)-1]
	top.Scroll = max(top.Scroll+delta, 0)
	s.Stack = stack
	return s
}
