package widgets

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/nav"
	"github.com/Dicklesworthstone/edgemon/internal/store"
	"github.com/Dicklesworthstone/edgemon/internal/tui/layout"
)

// column is one table column. A zero width column takes the remaining space.
type column struct {
	title string
	width int
}

var paneColumns = [nav.NumPanes][]column{
	nav.PaneInterfaces:   {{"NAME", 10}, {"LINK", 8}, {"MEDIUM", 9}, {"ADDRESS", 0}},
	nav.PaneWorkloads:    {{"NAME", 16}, {"STATE", 14}, {"HEALTH", 9}, {"SINCE", 0}},
	nav.PaneCertificates: {{"SUBJECT", 24}, {"EXPIRES", 0}},
	nav.PaneDiagnostics:  {{"TIME", 13}, {"LEVEL", 9}, {"MESSAGE", 0}},
}

type paneRows struct {
	rows []model.Entity
}

// listPane returns the entities shown in a pane, in display order.
// Interfaces and workloads sort by key, certificates by expiry, and
// diagnostics newest first.
func listPane(snap *store.Snapshot, p nav.Pane) paneRows {
	if snap == nil {
		return paneRows{}
	}
	switch p {
	case nav.PaneCertificates:
		rows := snap.List(model.KindCertificate)
		sort.SliceStable(rows, func(i, j int) bool {
			a, _ := rows[i].Payload.(model.Certificate)
			b, _ := rows[j].Payload.(model.Certificate)
			return a.NotAfter.Before(b.NotAfter)
		})
		return paneRows{rows: rows}
	case nav.PaneDiagnostics:
		diags := snap.Diagnostics()
		rows := make([]model.Entity, len(diags))
		for i, d := range diags {
			rows[len(diags)-1-i] = diagnosticEntity(d)
		}
		return paneRows{rows: rows}
	default:
		return paneRows{rows: snap.List(p.Kind())}
	}
}

func diagnosticEntity(d model.Diagnostic) model.Entity {
	return model.Entity{
		Kind:     model.KindDiagnostic,
		Key:      d.Key(),
		Source:   string(d.Origin),
		Payload:  d,
		Revision: 1,
		Updated:  d.Time,
	}
}

// RowRef returns the entity shown at row of pane p.
func RowRef(snap *store.Snapshot, p nav.Pane, row int) (model.Ref, bool) {
	rows := listPane(snap, p).rows
	if row < 0 || row >= len(rows) {
		return model.Ref{}, false
	}
	return rows[row].Ref(), true
}

// Lookup finds an entity by reference. Diagnostics are searched in the
// history ring.
func Lookup(snap *store.Snapshot, ref model.Ref) (model.Entity, bool) {
	if snap == nil {
		return model.Entity{}, false
	}
	if ref.Kind != model.KindDiagnostic {
		return snap.Get(ref)
	}
	for _, d := range snap.Diagnostics() {
		if d.Key() == ref.Key {
			return diagnosticEntity(d), true
		}
	}
	return model.Entity{}, false
}

// row is a table row before layout.
type row struct {
	cells []string
	role  Role
}

// buildRow dispatches on the payload kind.
func buildRow(e model.Entity, now time.Time) row {
	switch p := e.Payload.(type) {
	case model.Interface:
		return interfaceRow(e.Key, p)
	case model.Workload:
		return workloadRow(p, now)
	case model.Certificate:
		return certificateRow(p, now)
	case model.Diagnostic:
		return diagnosticRow(p)
	default:
		return row{cells: []string{e.Key}, role: RoleDim}
	}
}

// interfaceRow names the row by its store key so host-polled interfaces
// read "host/eth0" next to the device's own "eth0".
func interfaceRow(key string, i model.Interface) row {
	if key == "" {
		key = i.Name
	}
	addrs := make([]string, len(i.Addresses))
	for n, a := range i.Addresses {
		addrs[n] = a.String()
	}
	r := row{cells: []string{key, string(i.Link), string(i.Medium), strings.Join(addrs, " ")}}
	switch i.Link {
	case model.LinkUp:
		r.role = RoleNormal
	case model.LinkDown:
		r.role = RoleWarning
	default:
		r.role = RoleDim
	}
	return r
}

func workloadRow(w model.Workload, now time.Time) row {
	name := w.Name
	if name == "" {
		name = w.ID
	}
	since := ""
	if !w.Since.IsZero() {
		since = relTime(w.Since, now)
	}
	if w.Error != "" {
		since = w.Error
	}
	r := row{cells: []string{name, string(w.State), string(w.Health), since}, role: severityRole(w.State.Severity())}
	switch w.Health {
	case model.HealthError:
		r.role = RoleError
	case model.HealthDegraded:
		if r.role != RoleError {
			r.role = RoleWarning
		}
	}
	return r
}

// certificateWarning is how close to expiry a certificate is flagged.
const certificateWarning = 30 * 24 * time.Hour

func certificateRow(c model.Certificate, now time.Time) row {
	subject := c.Subject
	if subject == "" {
		subject = c.Fingerprint
	}
	r := row{role: RoleNormal}
	switch {
	case c.Expired(now):
		r.role = RoleError
		r.cells = []string{subject, "expired " + relTime(c.NotAfter, now)}
	default:
		if c.NotAfter.Sub(now) < certificateWarning {
			r.role = RoleWarning
		}
		r.cells = []string{subject, relTime(c.NotAfter, now)}
	}
	return r
}

func diagnosticRow(d model.Diagnostic) row {
	ts := d.Time.Format("15:04:05.000")
	if d.Time.IsZero() {
		ts = formatMonotonic(d.Timestamp)
	}
	if d.Unparsed {
		return row{cells: []string{ts, "unparsed", d.Message}, role: RoleUnparsed}
	}
	msg := d.Message
	if d.Origin == model.OriginMonitor {
		msg = "edgemon: " + msg
	}
	return row{cells: []string{ts, d.Severity.String(), msg}, role: severityRole(d.Severity)}
}

func formatMonotonic(d time.Duration) string {
	return fmt.Sprintf("%.6f", d.Seconds())
}

func severityRole(s model.Severity) Role {
	switch {
	case s <= model.SevErr:
		return RoleError
	case s == model.SevWarning:
		return RoleWarning
	case s == model.SevNotice:
		return RoleInfo
	case s == model.SevDebug:
		return RoleDim
	default:
		return RoleNormal
	}
}

func relTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// formatCells lays cells out in columns inside width cells.
func formatCells(cols []column, cells []string, width int) string {
	var b strings.Builder
	used := 0
	for i, c := range cols {
		if used >= width {
			break
		}
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		w := c.width
		if w == 0 || i == len(cols)-1 || used+w > width {
			w = width - used
		}
		if i < len(cols)-1 && w > 1 {
			b.WriteString(layout.Fit(cell, w-1))
			b.WriteByte(' ')
		} else {
			b.WriteString(layout.Fit(cell, w))
		}
		used += w
	}
	return b.String()
}

func paneRegion(r layout.Rect, p nav.Pane, list paneRows, st nav.State, now time.Time) Region {
	cols := paneColumns[p]
	inner := max(r.W-2, 0)
	cur := st.Cursors[p]
	total := len(list.rows)

	title := p.String()
	if total > 0 {
		title = fmt.Sprintf("%s (%s)", p, humanize.Comma(int64(total)))
	}

	reg := Region{
		ID:      PaneRegion(p),
		Rect:    r,
		Title:   title,
		Focused: st.Focus == p,
	}
	reg.Lines = append(reg.Lines, line(RoleTitle, layout.Fit(title, inner)))

	headings := make([]string, len(cols))
	for i, c := range cols {
		headings[i] = c.title
	}
	reg.Lines = append(reg.Lines, line(RoleDim, formatCells(cols, headings, inner)))

	if total == 0 {
		reg.Lines = append(reg.Lines, line(RoleDim, layout.Fit(emptyText(p), inner)))
		return reg
	}
	end := min(cur.Offset+visibleRows(r), total)
	for i := cur.Offset; i < end; i++ {
		rw := buildRow(list.rows[i], now)
		l := line(rw.role, formatCells(cols, rw.cells, inner))
		l.Selected = i == cur.Row && st.Focus == p
		reg.Lines = append(reg.Lines, l)
	}
	return reg
}

func emptyText(p nav.Pane) string {
	switch p {
	case nav.PaneInterfaces:
		return "no interfaces reported"
	case nav.PaneWorkloads:
		return "no workloads reported"
	case nav.PaneCertificates:
		return "no certificates found"
	default:
		return "no diagnostics yet"
	}
}

// cellWidth is the display width of s.
func cellWidth(s string) int {
	return runewidth.StringWidth(s)
}
