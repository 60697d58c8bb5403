package widgets

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/Dicklesworthstone/edgemon/internal/tui/layout"
	"github.com/Dicklesworthstone/edgemon/internal/tui/theme"
)

type painted struct {
	fingerprint uint64
	out         string
}

// Painter turns regions into styled strings and keeps the last painted
// string of every region, so a frame only repaints what changed.
type Painter struct {
	styles theme.Styles
	roles  map[Role]lipgloss.Style
	cache  map[RegionID]painted
	mark   func(id RegionID, s string) string
}

// NewPainter creates a painter for a set of styles.
func NewPainter(styles theme.Styles) *Painter {
	p := &Painter{cache: make(map[RegionID]painted)}
	p.SetStyles(styles)
	return p
}

// SetStyles switches styles and drops every cached region.
func (p *Painter) SetStyles(styles theme.Styles) {
	p.styles = styles
	p.roles = map[Role]lipgloss.Style{
		RoleNormal:    styles.Normal,
		RoleDim:       styles.Dim,
		RoleTitle:     styles.PaneTitle,
		RoleHighlight: styles.Highlight,
		RoleSuccess:   styles.Success,
		RoleWarning:   styles.Warning,
		RoleError:     styles.Error,
		RoleInfo:      styles.Info,
		RoleTab:       styles.Tab.Padding(0),
		RoleTabActive: styles.TabActive.Padding(0),
		RoleInsert:    styles.DiffInsert,
		RoleDelete:    styles.DiffDelete,
		RoleText:      styles.OverlayText,
		RoleHelp:      styles.Help,
		RoleUnparsed:  styles.Unparsed,
	}
	clear(p.cache)
}

// SetMarker installs a function that wraps every painted pane when the
// frame is composed. The dashboard uses it for mouse zones.
func (p *Painter) SetMarker(mark func(id RegionID, s string) string) {
	p.mark = mark
}

// Paint repaints the dirty regions of t and forgets regions that are no
// longer in the tree. It returns the number of regions painted.
func (p *Painter) Paint(t Tree, dirty []RegionID) int {
	live := make(map[RegionID]bool, len(t.Regions))
	for _, r := range t.Regions {
		live[r.ID] = true
	}
	for id := range p.cache {
		if !live[id] {
			delete(p.cache, id)
		}
	}

	n := 0
	for _, id := range dirty {
		r, ok := t.Region(id)
		if !ok {
			continue
		}
		p.cache[id] = painted{fingerprint: r.Fingerprint, out: p.paint(r)}
		n++
	}
	return n
}

// Painted returns the cached string of a region.
func (p *Painter) Painted(id RegionID) (string, bool) {
	c, ok := p.cache[id]
	return c.out, ok
}

func (p *Painter) region(r Region) string {
	c, ok := p.cache[r.ID]
	if !ok || c.fingerprint != r.Fingerprint {
		c = painted{fingerprint: r.Fingerprint, out: p.paint(r)}
		p.cache[r.ID] = c
	}
	return c.out
}

// Compose joins the painted regions of t into one frame. Regions missing
// from the cache are painted on the way.
func (p *Painter) Compose(t Tree) string {
	var (
		parts   []string
		panes   []Region
		overlay *Region
	)
	frame := t.Frame
	for i := range t.Regions {
		r := t.Regions[i]
		switch {
		case r.ID == RegionOverlay:
			overlay = &t.Regions[i]
		case r.ID == RegionHeader || r.ID == RegionTabs || r.ID == RegionFooter:
		default:
			panes = append(panes, r)
		}
	}

	if r, ok := t.Region(RegionHeader); ok {
		parts = append(parts, p.region(r))
	}
	if r, ok := t.Region(RegionTabs); ok {
		parts = append(parts, p.region(r))
	}

	var body string
	if overlay != nil {
		body = lipgloss.Place(frame.Body.W, frame.Body.H, lipgloss.Center, lipgloss.Center, p.region(*overlay))
	} else {
		body = p.body(panes)
	}
	if !frame.Body.Empty() {
		parts = append(parts, body)
	}

	if r, ok := t.Region(RegionFooter); ok {
		parts = append(parts, p.region(r))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// body tiles panes: panes sharing a top edge form a row.
func (p *Painter) body(panes []Region) string {
	sort.SliceStable(panes, func(i, j int) bool {
		a, b := panes[i].Rect, panes[j].Rect
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	var rows []string
	for i := 0; i < len(panes); {
		j := i
		var cells []string
		for ; j < len(panes) && panes[j].Rect.Y == panes[i].Rect.Y; j++ {
			s := p.region(panes[j])
			if p.mark != nil {
				s = p.mark(panes[j].ID, s)
			}
			cells = append(cells, s)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		i = j
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (p *Painter) paint(r Region) string {
	switch {
	case r.ID == RegionOverlay:
		return p.boxed(r, p.styles.Overlay, overlayChromeW)
	case r.ID == RegionHeader || r.ID == RegionTabs || r.ID == RegionFooter:
		return p.block(r.Lines, r.Rect.W, r.Rect.H)
	default:
		style := p.styles.Pane
		if r.Focused {
			style = p.styles.PaneFocused
		}
		return p.boxed(r, style, 2)
	}
}

// boxed paints lines inside a bordered style whose horizontal chrome is
// chromeW cells.
func (p *Painter) boxed(r Region, style lipgloss.Style, chromeW int) string {
	if r.Rect.W <= chromeW || r.Rect.H <= 2 {
		return p.block(nil, r.Rect.W, r.Rect.H)
	}
	return style.Render(p.block(r.Lines, r.Rect.W-chromeW, r.Rect.H-2))
}

// block paints exactly height lines of exactly width cells.
func (p *Painter) block(lines []Line, width, height int) string {
	out := make([]string, height)
	blank := strings.Repeat(" ", max(width, 0))
	for i := range out {
		if i < len(lines) {
			out[i] = p.line(lines[i], width)
		} else {
			out[i] = blank
		}
	}
	return strings.Join(out, "\n")
}

func (p *Painter) line(l Line, width int) string {
	if l.Selected {
		return p.styles.RowSelected.Render(layout.Fit(l.Text(), width))
	}
	var b strings.Builder
	remaining := width
	for _, s := range l.Spans {
		if remaining <= 0 {
			break
		}
		if s.Role == RoleRaw {
			t := truncate.String(s.Text, uint(remaining))
			b.WriteString(t)
			remaining -= lipgloss.Width(t)
			continue
		}
		t := layout.Truncate(s.Text, remaining)
		b.WriteString(p.roles[s.Role].Render(t))
		remaining -= cellWidth(t)
	}
	if remaining > 0 {
		b.WriteString(strings.Repeat(" ", remaining))
	}
	return b.String()
}
