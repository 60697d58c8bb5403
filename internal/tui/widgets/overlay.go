package widgets

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/nav"
	"github.com/Dicklesworthstone/edgemon/internal/tui/layout"
)

// Overlay boxes have a border and one column of padding on each side.
const (
	overlayChromeW = 4
	overlayChromeH = 2
	overlayMaxW    = 96
)

// overlayRect centres a box of at most w x h cells in body.
func overlayRect(body layout.Rect, w, h int) layout.Rect {
	w, h = min(w, body.W), min(h, body.H)
	return layout.Rect{
		X: body.X + (body.W-w)/2,
		Y: body.Y + (body.H-h)/2,
		W: w,
		H: h,
	}
}

func overlayRegion(body layout.Rect, top nav.Modal, in Input) Region {
	var (
		rect  layout.Rect
		title string
		lines []Line
	)
	switch top.Kind {
	case nav.ModalConfirmQuit:
		rect = overlayRect(body, 44, 6)
		title = "Quit edgemon?"
		lines = []Line{
			line(RoleText, ""),
			line(RoleText, "enter to quit, esc to keep monitoring"),
		}
	case nav.ModalHelp:
		rect = overlayRect(body, overlayMaxW, body.H-2)
		title = "Help"
		for _, l := range helpLines(in.HelpStyle, max(rect.W-overlayChromeW, 10)) {
			lines = append(lines, line(RoleRaw, l))
		}
	default:
		rect = overlayRect(body, overlayMaxW, body.H-2)
		e, ok := Lookup(in.Snapshot, top.Ref)
		if !ok {
			title = top.Ref.String()
			lines = []Line{line(RoleWarning, "no longer present")}
			break
		}
		title = detailTitle(e)
		lines = detailLines(e, in.Now, max(rect.W-overlayChromeW, 10))
	}

	visible := max(rect.H-overlayChromeH-1, 1)
	offset := min(top.Scroll, max(len(lines)-visible, 0))
	end := min(offset+visible, len(lines))

	reg := Region{ID: RegionOverlay, Rect: rect, Title: title}
	reg.Lines = append(reg.Lines, line(RoleTitle, title))
	reg.Lines = append(reg.Lines, lines[offset:end]...)
	return reg
}

func detailTitle(e model.Entity) string {
	switch p := e.Payload.(type) {
	case model.Workload:
		if p.Name != "" {
			return fmt.Sprintf("workload %s (%s)", p.Name, p.ID)
		}
		return "workload " + p.ID
	case model.Certificate:
		return "certificate " + p.Subject
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Key)
	}
}

// detailLines lists the payload fields, then the change since the
// previous revision.
func detailLines(e model.Entity, now time.Time, width int) []Line {
	var out []Line
	for _, f := range fields(e.Payload, now) {
		for _, l := range strings.Split(wordwrap.String(f, width), "\n") {
			out = append(out, line(RoleText, l))
		}
	}
	meta := fmt.Sprintf("source %s, revision %d", e.Source, e.Revision)
	if !e.Updated.IsZero() {
		meta += ", updated " + relTime(e.Updated, now)
	}
	out = append(out, line(RoleDim, ""), line(RoleDim, meta))
	if e.Previous == nil {
		return out
	}
	out = append(out, line(RoleText, ""), line(RoleHighlight, "Changes"))
	return append(out, changeLines(e.Previous, e.Payload, now)...)
}

// changeLines is a line diff between two payloads rendered as field lists.
func changeLines(prev, cur model.Payload, now time.Time) []Line {
	a := strings.Join(fields(prev, now), "\n") + "\n"
	b := strings.Join(fields(cur, now), "\n") + "\n"

	dmp := diffmatchpatch.New()
	ca, cb, table := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), table)

	var out []Line
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		for _, l := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				out = append(out, line(RoleInsert, "+ "+l))
			case diffmatchpatch.DiffDelete:
				out = append(out, line(RoleDelete, "- "+l))
			default:
				out = append(out, line(RoleDim, "  "+l))
			}
		}
	}
	return out
}

// fields renders a payload as "name: value" lines.
func fields(p model.Payload, now time.Time) []string {
	var f []string
	add := func(name, value string) {
		if value != "" {
			f = append(f, name+": "+value)
		}
	}
	switch p := p.(type) {
	case model.Interface:
		add("name", p.Name)
		add("link", string(p.Link))
		add("medium", string(p.Medium))
		add("mac", p.MAC)
		if p.MTU > 0 {
			add("mtu", strconv.Itoa(p.MTU))
		}
		for _, a := range p.Addresses {
			add("address", a.String())
		}
		add("flags", strings.Join(p.Flags, ","))
	case model.Workload:
		add("id", p.ID)
		add("name", p.Name)
		add("state", string(p.State))
		add("health", string(p.Health))
		add("version", p.Version)
		add("error", p.Error)
		if !p.Since.IsZero() {
			add("since", p.Since.Format(time.RFC3339))
		}
	case model.Certificate:
		add("subject", p.Subject)
		add("issuer", p.Issuer)
		add("serial", p.Serial)
		add("fingerprint", p.Fingerprint)
		add("path", p.Path)
		add("not before", p.NotBefore.Format(time.RFC3339))
		add("not after", fmt.Sprintf("%s (%s)", p.NotAfter.Format(time.RFC3339), relTime(p.NotAfter, now)))
		add("dns names", strings.Join(p.DNSNames, ", "))
		if p.IsCA {
			add("ca", "yes")
		}
	case model.Diagnostic:
		add("origin", string(p.Origin))
		add("severity", p.Severity.String())
		if p.Origin == model.OriginKernel {
			add("facility", strconv.Itoa(int(p.Facility)))
			add("sequence", humanize.Comma(int64(p.Seq)))
		}
		if p.Timestamp > 0 {
			add("kernel time", formatMonotonic(p.Timestamp))
		}
		if !p.Time.IsZero() {
			add("received", p.Time.Format(time.RFC3339))
		}
		if p.Unparsed {
			add("format", "unparsed")
		}
		add("message", p.Message)
	case model.SourceHealth:
		add("source", p.Name)
		add("state", string(p.State))
		add("attempts", strconv.Itoa(p.Attempts))
		add("last error", p.LastError)
	}
	return f
}

const helpMarkdown = `# edgemon

Live view of the device's interfaces, workloads, certificates and kernel log.

## Navigation

- **tab** / **shift+tab**: next or previous pane
- **1** to **4**: jump to a pane
- **↑** **↓** or **k** **j**: move the selection
- **pgup** **pgdn**: move a page
- **home** **end** or **g** **G**: first or last row
- **enter**: open the selected entity
- mouse wheel scrolls, click selects

## Overlays

- **esc**: close the overlay
- **?**: toggle this help
- **q**: quit (asks first), **ctrl+c** quits at once
`

type helpKey struct {
	style string
	width int
}

var help struct {
	sync.Mutex
	cache map[helpKey][]string
}

// helpLines renders the help text for a width, once per style and width.
func helpLines(style string, width int) []string {
	if style == "" {
		style = "dark"
	}
	k := helpKey{style, width}

	help.Lock()
	defer help.Unlock()
	if lines, ok := help.cache[k]; ok {
		return lines
	}

	lines := strings.Split(strings.TrimSpace(helpMarkdown), "\n")
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		if out, err := r.Render(helpMarkdown); err == nil {
			lines = strings.Split(strings.Trim(out, "\n"), "\n")
		}
	}
	if help.cache == nil {
		help.cache = make(map[helpKey][]string)
	}
	help.cache[k] = lines
	return lines
}
