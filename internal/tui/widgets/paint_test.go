package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/nav"
	"github.com/Dicklesworthstone/edgemon/internal/tui/theme"
)

func newTestPainter() *Painter {
	return NewPainter(theme.NewStyles(theme.Plain))
}

func TestPaintRepaintsOnlyDirtyRegions(t *testing.T) {
	s := seeded(t)
	st := nav.New(120, 30)
	p := newTestPainter()

	first := Build(input(s.Snapshot(), st, 120, 30))
	if n := p.Paint(first, Diff(Tree{}, first)); n != len(first.Regions) {
		t.Errorf("first Paint() = %d, want %d", n, len(first.Regions))
	}
	before, _ := p.Painted(PaneRegion(nav.PaneInterfaces))

	if _, err := s.Apply(model.Upsert("status", "app-1", model.Workload{ID: "app-1", State: model.StateFailed, Health: model.HealthError}, now)); err != nil {
		t.Fatal(err)
	}
	second := Build(input(s.Snapshot(), st, 120, 30))
	if n := p.Paint(second, Diff(first, second)); n != 1 {
		t.Errorf("second Paint() = %d, want 1", n)
	}
	after, _ := p.Painted(PaneRegion(nav.PaneInterfaces))
	if before != after {
		t.Error("unchanged region was repainted differently")
	}
	w, _ := p.Painted(PaneRegion(nav.PaneWorkloads))
	if !strings.Contains(w, "failed") {
		t.Errorf("workloads pane not repainted:\n%s", w)
	}
}

func TestPainterStylesEveryRole(t *testing.T) {
	p := newTestPainter()
	for r := RoleNormal; r < RoleRaw; r++ {
		if _, ok := p.roles[r]; !ok {
			t.Errorf("role %d has no style", r)
		}
	}
}

func TestPaintForgetsRemovedRegions(t *testing.T) {
	snap := seeded(t).Snapshot()
	p := newTestPainter()

	withOverlay := Build(input(snap, nav.Apply(nav.New(80, 24), nav.Simple(nav.OpQuit)), 80, 24))
	p.Paint(withOverlay, Diff(Tree{}, withOverlay))
	if _, ok := p.Painted(RegionOverlay); !ok {
		t.Fatal("overlay not painted")
	}

	plain := Build(input(snap, nav.New(80, 24), 80, 24))
	p.Paint(plain, Diff(withOverlay, plain))
	if _, ok := p.Painted(RegionOverlay); ok {
		t.Error("closed overlay is still cached")
	}
}

func TestComposeFillsScreen(t *testing.T) {
	snap := seeded(t).Snapshot()
	tests := []struct {
		name string
		w, h int
		st   nav.State
	}{
		{"narrow", 80, 24, nav.New(80, 24)},
		{"split", 120, 30, nav.New(120, 30)},
		{"wide", 220, 50, nav.New(220, 50)},
		{"overlay", 120, 30, nav.Apply(nav.New(120, 30), nav.Simple(nav.OpQuit))},
		{"odd sizes", 101, 21, nav.New(101, 21)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPainter()
			tree := Build(input(snap, tt.st, tt.w, tt.h))
			p.Paint(tree, Diff(Tree{}, tree))

			lines := strings.Split(p.Compose(tree), "\n")
			if len(lines) != tt.h {
				t.Fatalf("frame has %d lines, want %d", len(lines), tt.h)
			}
			for i, l := range lines {
				if w := lipgloss.Width(l); w != tt.w {
					t.Errorf("line %d is %d cells, want %d: %q", i, w, tt.w, l)
				}
			}
		})
	}
}

func TestComposePaintsMissingRegions(t *testing.T) {
	tree := Build(input(seeded(t).Snapshot(), nav.New(80, 24), 80, 24))
	p := newTestPainter()
	out := p.Compose(tree)
	if !strings.Contains(out, "eth0") {
		t.Errorf("frame without explicit Paint is missing content:\n%s", out)
	}
}

func TestComposeMarksPanes(t *testing.T) {
	tree := Build(input(seeded(t).Snapshot(), nav.New(120, 30), 120, 30))
	p := newTestPainter()
	var marked []RegionID
	p.SetMarker(func(id RegionID, s string) string {
		marked = append(marked, id)
		return s
	})
	p.Compose(tree)
	if len(marked) != nav.NumPanes {
		t.Errorf("marked %v, want every pane", marked)
	}
}

func TestPaintLineTruncatesToWidth(t *testing.T) {
	p := newTestPainter()
	l := Line{Spans: []Span{{Text: "hello ", Role: RoleNormal}, {Text: "wide 世界 text", Role: RoleWarning}}}
	for _, width := range []int{0, 3, 8, 12, 30} {
		if got := lipgloss.Width(p.line(l, width)); got != width {
			t.Errorf("line(%d) width = %d", width, got)
		}
	}
	sel := Line{Spans: l.Spans, Selected: true}
	if got := lipgloss.Width(p.line(sel, 9)); got != 9 {
		t.Errorf("selected line width = %d, want 9", got)
	}
}
