package widgets

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/tui/icons"
	"github.com/Dicklesworthstone/edgemon/internal/tui/layout"
)

func headerRegion(r layout.Rect, in Input) Region {
	host := in.Host
	first := Line{Spans: []Span{{Text: "edgemon", Role: RoleTitle}}}
	if host.Hostname != "" {
		first.Spans = append(first.Spans, Span{Text: "  " + host.Hostname, Role: RoleHighlight})
	}
	var sys []string
	for _, s := range []string{host.Platform, host.Kernel, host.Arch} {
		if s != "" {
			sys = append(sys, s)
		}
	}
	if len(sys) > 0 {
		first.Spans = append(first.Spans, Span{Text: "  " + strings.Join(sys, " "), Role: RoleDim})
	}
	if up := host.Uptime(in.Now); up > 0 {
		text := strings.TrimSpace(humanize.RelTime(host.BootTime, in.Now, "", ""))
		first.Spans = append(first.Spans, Span{Text: "  up " + text, Role: RoleDim})
	}

	second := Line{}
	ic := in.Icons.OrDefault()
	if in.Snapshot != nil {
		for i, h := range in.Snapshot.Sources() {
			if i > 0 {
				second.Spans = append(second.Spans, Span{Text: "  ", Role: RoleNormal})
			}
			second.Spans = append(second.Spans, Span{Text: sourceBadge(h, ic), Role: sourceRole(h.State)})
		}
		if total := in.Snapshot.DiagnosticTotal(); total > 0 {
			second.Spans = append(second.Spans, Span{
				Text: fmt.Sprintf("  %s diagnostics", humanize.Comma(int64(total))),
				Role: RoleDim,
			})
		}
	}
	if len(second.Spans) == 0 {
		second = line(RoleDim, "waiting for sources")
	}
	return Region{ID: RegionHeader, Rect: r, Lines: []Line{first, second}}
}

func sourceBadge(h model.SourceHealth, ic icons.IconSet) string {
	switch h.State {
	case model.SourceRetrying:
		return fmt.Sprintf("%s %s retrying (%d)", ic.Warning, h.Name, h.Attempts)
	case model.SourceDegraded:
		return fmt.Sprintf("%s %s degraded", ic.Cross, h.Name)
	default:
		return fmt.Sprintf("%s %s %s", ic.Dot, h.Name, h.State)
	}
}

func sourceRole(s model.SourceState) Role {
	switch s {
	case model.SourceOK:
		return RoleSuccess
	case model.SourceDegraded:
		return RoleError
	case model.SourceStopped:
		return RoleDim
	default:
		return RoleWarning
	}
}
