// Package layout splits the terminal into the header, pane, and footer
// rectangles. Width tiers decide how many panes are visible at once.
package layout

import (
	"github.com/mattn/go-runewidth"

	"github.com/Dicklesworthstone/edgemon/internal/nav"
)

// Width tiers:
//   - Narrow (<100 cols or <20 rows): one pane at a time behind a tab bar.
//   - Split (100-199): all four panes in a 2x2 grid.
//   - Wide (>=200): three panes across the top, diagnostics full width below.
const (
	SplitViewThreshold = 100
	WideViewThreshold  = 200
	MinGridHeight      = 20
)

// Tier describes the current width bucket.
type Tier int

const (
	TierNarrow Tier = iota
	TierSplit
	TierWide
)

func (t Tier) String() string {
	switch t {
	case TierSplit:
		return "split"
	case TierWide:
		return "wide"
	default:
		return "narrow"
	}
}

// TierFor maps a terminal size to a tier.
func TierFor(width, height int) Tier {
	switch {
	case height < MinGridHeight || width < SplitViewThreshold:
		return TierNarrow
	case width >= WideViewThreshold:
		return TierWide
	default:
		return TierSplit
	}
}

// Rect is a cell rectangle.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rectangle has no cells.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Contains reports whether the cell (x, y) is inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Frame is the computed screen layout.
type Frame struct {
	Tier   Tier
	Header Rect
	Tabs   Rect // narrow tier only
	Body   Rect
	Panes  [nav.NumPanes]Rect
	Footer Rect
}

// Visible reports whether a pane is on screen.
func (f Frame) Visible(p nav.Pane) bool {
	return !f.Panes[p].Empty()
}

// HeaderHeight and FooterHeight are fixed.
const (
	HeaderHeight = 2
	FooterHeight = 1
)

// Compute lays out a width x height screen with focus as the pane shown in
// the narrow tier.
func Compute(width, height int, focus nav.Pane) Frame {
	width, height = max(width, 0), max(height, 0)
	f := Frame{Tier: TierFor(width, height)}

	headerH := min(HeaderHeight, height)
	footerH := min(FooterHeight, height-headerH)
	f.Header = Rect{0, 0, width, headerH}
	f.Footer = Rect{0, height - footerH, width, footerH}
	body := Rect{0, headerH, width, height - headerH - footerH}

	switch f.Tier {
	case TierNarrow:
		if body.H > 1 {
			f.Tabs = Rect{0, body.Y, width, 1}
			body.Y++
			body.H--
		}
		f.Panes[focus] = body
	case TierSplit:
		leftW := width / 2
		topH := body.H / 2
		f.Panes[nav.PaneInterfaces] = Rect{0, body.Y, leftW, topH}
		f.Panes[nav.PaneWorkloads] = Rect{leftW, body.Y, width - leftW, topH}
		f.Panes[nav.PaneCertificates] = Rect{0, body.Y + topH, leftW, body.H - topH}
		f.Panes[nav.PaneDiagnostics] = Rect{leftW, body.Y + topH, width - leftW, body.H - topH}
	case TierWide:
		topH := body.H / 2
		colW := width / 3
		f.Panes[nav.PaneInterfaces] = Rect{0, body.Y, colW, topH}
		f.Panes[nav.PaneWorkloads] = Rect{colW, body.Y, colW, topH}
		f.Panes[nav.PaneCertificates] = Rect{2 * colW, body.Y, width - 2*colW, topH}
		f.Panes[nav.PaneDiagnostics] = Rect{0, body.Y + topH, width, body.H - topH}
	}
	f.Body = body
	return f
}

// PaneAt returns the visible pane containing the cell (x, y).
func (f Frame) PaneAt(x, y int) (nav.Pane, bool) {
	for _, p := range nav.Panes {
		if f.Panes[p].Contains(x, y) {
			return p, true
		}
	}
	return 0, false
}

// Truncate cuts s to at most width terminal cells, ending in "…" when cut.
// It measures cells, not runes, so wide glyphs never overflow.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// Fit truncates s and pads it with spaces to exactly width cells.
func Fit(s string, width int) string {
	return runewidth.FillRight(Truncate(s, width), width)
}
