// Package widgets derives the monitor's widget tree from a store snapshot and
// the navigation state, finds the regions that changed between two trees and
// paints them.
//
// The tree is plain data: every region is a rectangle plus lines of text
// tagged with a semantic role. Styling happens only in the Painter, so a
// region's fingerprint changes exactly when what it shows changes.
package widgets

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/Dicklesworthstone/edgemon/internal/nav"
	"github.com/Dicklesworthstone/edgemon/internal/source/hostnet"
	"github.com/Dicklesworthstone/edgemon/internal/store"
	"github.com/Dicklesworthstone/edgemon/internal/tui/icons"
	"github.com/Dicklesworthstone/edgemon/internal/tui/layout"
)

// RegionID names a region of the screen.
type RegionID string

const (
	RegionHeader  RegionID = "header"
	RegionTabs    RegionID = "tabs"
	RegionOverlay RegionID = "overlay"
	RegionFooter  RegionID = "footer"
)

// PaneRegion is the region of a body pane.
func PaneRegion(p nav.Pane) RegionID {
	return RegionID("pane/" + strings.ToLower(p.String()))
}

// Role is the semantic style of a span.
type Role uint8

const (
	RoleNormal Role = iota
	RoleDim
	RoleTitle
	RoleHighlight
	RoleSuccess
	RoleWarning
	RoleError
	RoleInfo
	RoleTab
	RoleTabActive
	RoleInsert
	RoleDelete
	RoleText     // overlay body
	RoleHelp     // key hints
	RoleUnparsed // raw text in no known format
	RoleRaw      // pre-styled text, painted as is
)

// Span is a run of text in one role.
type Span struct {
	Text string
	Role Role
}

// Line is one row of a region.
type Line struct {
	Spans    []Span
	Selected bool
}

// Text returns the line without styling.
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l.Spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

func line(role Role, text string) Line {
	return Line{Spans: []Span{{Text: text, Role: role}}}
}

// Region is one independently painted part of the screen.
type Region struct {
	ID          RegionID
	Rect        layout.Rect
	Title       string
	Focused     bool
	Lines       []Line
	Fingerprint uint64
}

// Tree is the full widget tree for one frame.
type Tree struct {
	Frame   layout.Frame
	Regions []Region
	// Nav is the navigation state with row counts and cursors clamped to
	// this tree. Callers adopt it so the next command sees the same rows.
	Nav nav.State
}

// Region returns the region with the given ID.
func (t Tree) Region(id RegionID) (Region, bool) {
	for _, r := range t.Regions {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}

// Input is everything a tree is derived from.
type Input struct {
	Snapshot *store.Snapshot
	Nav      nav.State
	Width    int
	Height   int
	Now      time.Time
	Host     hostnet.Summary
	Version  string
	// HelpStyle is the glamour standard style for the help overlay
	// ("dark", "light" or "notty").
	HelpStyle string
	// Icons defaults to icons.Unicode.
	Icons icons.IconSet
}

// Build derives the widget tree. It is a pure function of its input apart
// from the help text cache.
func Build(in Input) Tree {
	st := in.Nav
	frame := layout.Compute(in.Width, in.Height, st.Focus)

	lists := make([]paneRows, nav.NumPanes)
	for _, p := range nav.Panes {
		lists[p] = listPane(in.Snapshot, p)
		r := frame.Panes[p]
		if !frame.Visible(p) {
			// Hidden panes keep their cursor but page by the focused
			// pane's height.
			r = frame.Body
		}
		st = st.WithRows(p, len(lists[p].rows), visibleRows(r))
	}

	t := Tree{Frame: frame, Nav: st}
	t.add(headerRegion(frame.Header, in))
	if !frame.Tabs.Empty() {
		t.add(tabsRegion(frame.Tabs, st.Focus))
	}
	for _, p := range nav.Panes {
		if frame.Visible(p) {
			t.add(paneRegion(frame.Panes[p], p, lists[p], st, in.Now))
		}
	}
	if top, ok := st.Top(); ok {
		t.add(overlayRegion(frame.Body, top, in))
	}
	t.add(footerRegion(frame.Footer, st, in.Version, in.Icons.OrDefault()))
	return t
}

func (t *Tree) add(r Region) {
	if r.Rect.Empty() {
		return
	}
	r.Fingerprint = fingerprint(r)
	t.Regions = append(t.Regions, r)
}

// visibleRows is the number of entity rows a pane rect can show: the border
// takes two rows, the title and column headings one each.
func visibleRows(r layout.Rect) int {
	return max(r.H-4, 1)
}

// Diff returns the regions of next that are new or whose fingerprint
// differs from prev, in tree order.
func Diff(prev, next Tree) []RegionID {
	old := make(map[RegionID]uint64, len(prev.Regions))
	for _, r := range prev.Regions {
		old[r.ID] = r.Fingerprint
	}
	var dirty []RegionID
	for _, r := range next.Regions {
		if fp, ok := old[r.ID]; !ok || fp != r.Fingerprint {
			dirty = append(dirty, r.ID)
		}
	}
	return dirty
}

func fingerprint(r Region) uint64 {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.ID...)
	buf = append(buf, 0)
	for _, n := range []int{r.Rect.X, r.Rect.Y, r.Rect.W, r.Rect.H} {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(n))
	}
	buf = append(buf, r.Title...)
	buf = append(buf, 0)
	if r.Focused {
		buf = append(buf, 1)
	}
	for _, l := range r.Lines {
		buf = append(buf, '\n')
		if l.Selected {
			buf = append(buf, 1)
		}
		for _, s := range l.Spans {
			buf = append(buf, byte(s.Role))
			buf = append(buf, s.Text...)
			buf = append(buf, 0)
		}
	}
	return xxh3.Hash(buf)
}

func tabsRegion(r layout.Rect, focus nav.Pane) Region {
	var l Line
	for _, p := range nav.Panes {
		role := RoleTab
		if p == focus {
			role = RoleTabActive
		}
		l.Spans = append(l.Spans, Span{Text: fmt.Sprintf(" %d %s ", int(p)+1, p), Role: role})
	}
	return Region{ID: RegionTabs, Rect: r, Lines: []Line{l}}
}

func footerRegion(r layout.Rect, st nav.State, version string, ic icons.IconSet) Region {
	var hints string
	arrows := ic.ArrowUp + "/" + ic.ArrowDown
	top, modal := st.Top()
	switch {
	case !modal:
		hints = "tab pane  " + arrows + " move  enter details  ? help  q quit"
	case top.Kind == nav.ModalConfirmQuit:
		hints = "enter confirm  esc cancel"
	default:
		hints = arrows + " scroll  esc back  ? help  ctrl+c quit"
	}
	l := Line{Spans: []Span{{Text: hints, Role: RoleHelp}}}
	if version != "" {
		pad := r.W - cellWidth(hints) - cellWidth("edgemon "+version)
		if pad > 0 {
			l.Spans = append(l.Spans,
				Span{Text: strings.Repeat(" ", pad), Role: RoleNormal},
				Span{Text: "edgemon " + version, Role: RoleDim})
		}
	}
	return Region{ID: RegionFooter, Rect: r, Lines: []Line{l}}
}
