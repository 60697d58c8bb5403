package widgets

import (
	"net/netip"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/nav"
	"github.com/Dicklesworthstone/edgemon/internal/store"
	"github.com/Dicklesworthstone/edgemon/internal/tui/icons"
	"github.com/Dicklesworthstone/edgemon/internal/tui/layout"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(16, store.WithClock(func() time.Time { return now }))
	deltas := []model.Delta{
		model.Upsert("status", "eth0", model.Interface{Name: "eth0", Link: model.LinkUp, Medium: model.MediumEthernet,
			Addresses: []netip.Prefix{netip.MustParsePrefix("10.0.0.5/24")}}, now),
		model.Upsert("status", "wlan0", model.Interface{Name: "wlan0", Link: model.LinkDown, Medium: model.MediumWiFi}, now),
		model.Upsert("status", "wwan0", model.Interface{Name: "wwan0", Link: model.LinkUp, Medium: model.MediumCellular}, now),
		model.Upsert("status", "app-1", model.Workload{ID: "app-1", Name: "nginx", State: model.StateRunning, Health: model.HealthOK}, now),
		model.Upsert("status", "late", model.Certificate{Fingerprint: "late", Subject: "CN=late", NotAfter: now.Add(365 * 24 * time.Hour)}, now),
		model.Upsert("status", "soon", model.Certificate{Fingerprint: "soon", Subject: "CN=soon", NotAfter: now.Add(24 * time.Hour)}, now),
		diag(1, model.SevInfo, "first"),
		diag(2, model.SevErr, "second"),
	}
	if _, err := st.Commit(deltas); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return st
}

func diag(seq uint64, sev model.Severity, msg string) model.Delta {
	d := model.Diagnostic{Seq: seq, Origin: model.OriginKernel, Severity: sev, Time: now, Message: msg}
	return model.Upsert("kernel", d.Key(), d, now)
}

func input(snap *store.Snapshot, st nav.State, w, h int) Input {
	return Input{Snapshot: snap, Nav: st, Width: w, Height: h, Now: now, Version: "1.0.0", HelpStyle: "notty"}
}

func ids(t Tree) []RegionID {
	out := make([]RegionID, len(t.Regions))
	for i, r := range t.Regions {
		out[i] = r.ID
	}
	return out
}

func TestBuildRegionsPerTier(t *testing.T) {
	snap := seeded(t).Snapshot()

	tests := []struct {
		name string
		w, h int
		want []RegionID
	}{
		{"narrow", 80, 24, []RegionID{RegionHeader, RegionTabs, PaneRegion(nav.PaneInterfaces), RegionFooter}},
		{"split", 120, 30, []RegionID{
			RegionHeader,
			PaneRegion(nav.PaneInterfaces), PaneRegion(nav.PaneWorkloads),
			PaneRegion(nav.PaneCertificates), PaneRegion(nav.PaneDiagnostics),
			RegionFooter,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := Build(input(snap, nav.New(tt.w, tt.h), tt.w, tt.h))
			if got := ids(tree); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("regions = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildRecordsRowsAndClampsCursor(t *testing.T) {
	snap := seeded(t).Snapshot()
	st := nav.New(80, 24)
	st.Cursors[nav.PaneInterfaces] = nav.Cursor{Row: 10}

	tree := Build(input(snap, st, 80, 24))

	if got := tree.Nav.Rows[nav.PaneInterfaces]; got != 3 {
		t.Errorf("Rows[interfaces] = %d, want 3", got)
	}
	if got := tree.Nav.Rows[nav.PaneDiagnostics]; got != 2 {
		t.Errorf("Rows[diagnostics] = %d, want 2", got)
	}
	if got := tree.Nav.Cursors[nav.PaneInterfaces].Row; got != 2 {
		t.Errorf("cursor row = %d, want 2", got)
	}
	if st.Cursors[nav.PaneInterfaces].Row != 10 {
		t.Error("Build modified its input state")
	}
}

func TestBuildMarksSelectedRow(t *testing.T) {
	snap := seeded(t).Snapshot()
	st := nav.New(120, 30)
	st.Cursors[nav.PaneInterfaces] = nav.Cursor{Row: 1}
	tree := Build(input(snap, st, 120, 30))

	r, _ := tree.Region(PaneRegion(nav.PaneInterfaces))
	var selected []string
	for _, l := range r.Lines {
		if l.Selected {
			selected = append(selected, strings.Fields(l.Text())[0])
		}
	}
	if !reflect.DeepEqual(selected, []string{"wlan0"}) {
		t.Errorf("selected rows = %v, want [wlan0]", selected)
	}

	other, _ := tree.Region(PaneRegion(nav.PaneWorkloads))
	for _, l := range other.Lines {
		if l.Selected {
			t.Error("unfocused pane shows a selection")
		}
	}
}

func TestRowRefOrder(t *testing.T) {
	snap := seeded(t).Snapshot()

	tests := []struct {
		pane nav.Pane
		row  int
		want string
	}{
		{nav.PaneInterfaces, 0, "eth0"},
		{nav.PaneInterfaces, 2, "wwan0"},
		{nav.PaneCertificates, 0, "soon"},
		{nav.PaneCertificates, 1, "late"},
		{nav.PaneDiagnostics, 0, model.Diagnostic{Origin: model.OriginKernel, Seq: 2}.Key()},
	}
	for _, tt := range tests {
		ref, ok := RowRef(snap, tt.pane, tt.row)
		if !ok || ref.Key != tt.want {
			t.Errorf("RowRef(%s, %d) = %v, %v; want %s", tt.pane, tt.row, ref, ok, tt.want)
		}
	}
	if _, ok := RowRef(snap, nav.PaneWorkloads, 5); ok {
		t.Error("RowRef past the end should fail")
	}
}

func TestDiffReportsOnlyChangedRegions(t *testing.T) {
	s := seeded(t)
	st := nav.New(120, 30)
	before := Build(input(s.Snapshot(), st, 120, 30))

	if got := Diff(before, Build(input(s.Snapshot(), st, 120, 30))); len(got) != 0 {
		t.Errorf("Diff of identical trees = %v, want none", got)
	}

	if _, err := s.Apply(model.Upsert("status", "app-1", model.Workload{ID: "app-1", Name: "nginx", State: model.StateHalted, Health: model.HealthOK}, now)); err != nil {
		t.Fatal(err)
	}
	after := Build(input(s.Snapshot(), st, 120, 30))

	want := []RegionID{PaneRegion(nav.PaneWorkloads)}
	if got := Diff(before, after); !reflect.DeepEqual(got, want) {
		t.Errorf("Diff() = %v, want %v", got, want)
	}
}

func TestDiffFromEmptyTreeReportsEverything(t *testing.T) {
	tree := Build(input(seeded(t).Snapshot(), nav.New(80, 24), 80, 24))
	if got := Diff(Tree{}, tree); !reflect.DeepEqual(got, ids(tree)) {
		t.Errorf("Diff(empty) = %v, want %v", got, ids(tree))
	}
}

func TestDetailOverlayShowsChanges(t *testing.T) {
	s := seeded(t)
	if _, err := s.Apply(model.Upsert("status", "app-1", model.Workload{ID: "app-1", Name: "nginx", State: model.StateHalted, Health: model.HealthOK}, now)); err != nil {
		t.Fatal(err)
	}
	st := nav.Apply(nav.New(120, 40), nav.Activate(model.Ref{Kind: model.KindWorkload, Key: "app-1"}))

	tree := Build(input(s.Snapshot(), st, 120, 40))
	r, ok := tree.Region(RegionOverlay)
	if !ok {
		t.Fatal("overlay region missing")
	}
	if r.Title != "workload nginx (app-1)" {
		t.Errorf("Title = %q", r.Title)
	}

	var inserted, deleted []string
	for _, l := range r.Lines {
		switch l.Spans[0].Role {
		case RoleInsert:
			inserted = append(inserted, l.Text())
		case RoleDelete:
			deleted = append(deleted, l.Text())
		}
	}
	if !reflect.DeepEqual(inserted, []string{"+ state: halted"}) {
		t.Errorf("inserted = %q", inserted)
	}
	if !reflect.DeepEqual(deleted, []string{"- state: running"}) {
		t.Errorf("deleted = %q", deleted)
	}
}

func TestDetailOverlayForDiagnostic(t *testing.T) {
	snap := seeded(t).Snapshot()
	ref, _ := RowRef(snap, nav.PaneDiagnostics, 0)
	st := nav.Apply(nav.New(80, 24), nav.Activate(ref))

	r, _ := Build(input(snap, st, 80, 24)).Region(RegionOverlay)
	found := false
	for _, l := range r.Lines {
		if l.Text() == "message: second" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostic detail lines = %v", r.Lines)
	}
}

func TestDetailOverlayMissingEntity(t *testing.T) {
	st := nav.Apply(nav.New(80, 24), nav.Activate(model.Ref{Kind: model.KindInterface, Key: "gone0"}))
	r, ok := Build(input(seeded(t).Snapshot(), st, 80, 24)).Region(RegionOverlay)
	if !ok {
		t.Fatal("overlay region missing")
	}
	if got := r.Lines[len(r.Lines)-1].Text(); got != "no longer present" {
		t.Errorf("last line = %q", got)
	}
}

func TestOverlayScrollIsClamped(t *testing.T) {
	st := nav.Apply(nav.New(80, 24), nav.Simple(nav.OpHelp))
	for range 500 {
		st = nav.Apply(st, nav.Simple(nav.OpDown))
	}
	r, ok := Build(input(seeded(t).Snapshot(), st, 80, 24)).Region(RegionOverlay)
	if !ok {
		t.Fatal("help overlay missing")
	}
	if len(r.Lines) < 2 {
		t.Errorf("scrolled help shows %d lines, want the last page", len(r.Lines))
	}
}

func TestHelpLinesCachedPerWidth(t *testing.T) {
	a := helpLines("notty", 60)
	b := helpLines("notty", 60)
	if len(a) == 0 || &a[0] != &b[0] {
		t.Error("help text was rendered twice for the same width")
	}
	if !strings.Contains(strings.Join(a, "\n"), "Navigation") {
		t.Errorf("help text = %q", a)
	}
	if c := helpLines("notty", 40); len(c) > 0 && &c[0] == &a[0] {
		t.Error("different widths share a rendering")
	}
}

func TestConfirmOverlay(t *testing.T) {
	st := nav.Apply(nav.New(80, 24), nav.Simple(nav.OpQuit))
	tree := Build(input(seeded(t).Snapshot(), st, 80, 24))
	r, ok := tree.Region(RegionOverlay)
	if !ok || r.Title != "Quit edgemon?" {
		t.Fatalf("overlay = %+v", r)
	}
	if r.Rect.W != 44 || r.Rect.H != 6 {
		t.Errorf("confirm rect = %+v", r.Rect)
	}
	f, _ := tree.Region(RegionFooter)
	if !strings.HasPrefix(f.Lines[0].Text(), "enter confirm") {
		t.Errorf("footer = %q", f.Lines[0].Text())
	}
}

func TestHeaderShowsSources(t *testing.T) {
	s := seeded(t)
	_, err := s.Commit([]model.Delta{
		model.Upsert("monitor", "kernel", model.SourceHealth{Name: "kernel", State: model.SourceDegraded}, now),
		model.Upsert("monitor", "status", model.SourceHealth{Name: "status", State: model.SourceOK}, now),
	})
	if err != nil {
		t.Fatal(err)
	}
	r, _ := Build(input(s.Snapshot(), nav.New(120, 30), 120, 30)).Region(RegionHeader)

	second := r.Lines[1]
	if second.Spans[0].Text != "✗ kernel degraded" || second.Spans[0].Role != RoleError {
		t.Errorf("first badge = %+v", second.Spans[0])
	}
	if !strings.Contains(second.Text(), "● status ok") {
		t.Errorf("header = %q", second.Text())
	}
	if !strings.Contains(second.Text(), "2 diagnostics") {
		t.Errorf("header = %q", second.Text())
	}
}

func TestASCIIIcons(t *testing.T) {
	s := seeded(t)
	if _, err := s.Apply(model.Upsert("monitor", "kernel", model.SourceHealth{Name: "kernel", State: model.SourceDegraded}, now)); err != nil {
		t.Fatal(err)
	}
	in := input(s.Snapshot(), nav.New(120, 30), 120, 30)
	in.Icons = icons.ASCII
	tree := Build(in)

	header, _ := tree.Region(RegionHeader)
	if got := header.Lines[1].Spans[0].Text; got != "x kernel degraded" {
		t.Errorf("badge = %q", got)
	}
	footer, _ := tree.Region(RegionFooter)
	if !strings.Contains(footer.Lines[0].Text(), "^/v move") {
		t.Errorf("footer = %q", footer.Lines[0].Text())
	}
}

func TestRowBuilders(t *testing.T) {
	tests := []struct {
		name     string
		entity   model.Entity
		wantRole Role
		wantCell string
	}{
		{"interface down", model.Entity{Payload: model.Interface{Name: "eth1", Link: model.LinkDown}}, RoleWarning, "down"},
		{"workload broken", model.Entity{Payload: model.Workload{ID: "x", State: model.StateBroken, Error: "exit 1"}}, RoleError, "exit 1"},
		{"workload degraded", model.Entity{Payload: model.Workload{ID: "x", State: model.StateRunning, Health: model.HealthDegraded}}, RoleWarning, "degraded"},
		{"certificate expired", model.Entity{Payload: model.Certificate{Subject: "CN=a", NotAfter: now.Add(-48 * time.Hour)}}, RoleError, "expired 2 days ago"},
		{"certificate expiring", model.Entity{Payload: model.Certificate{Subject: "CN=a", NotAfter: now.Add(72 * time.Hour)}}, RoleWarning, "CN=a"},
		{"diagnostic warning", model.Entity{Payload: model.Diagnostic{Origin: model.OriginKernel, Severity: model.SevWarning, Message: "low memory"}}, RoleWarning, "low memory"},
		{"monitor diagnostic", model.Entity{Payload: model.Diagnostic{Origin: model.OriginMonitor, Severity: model.SevErr, Message: "bad file"}}, RoleError, "edgemon: bad file"},
		{"unparsed diagnostic", model.Entity{Payload: model.Diagnostic{Origin: model.OriginKernel, Message: "%%garbage%%", Unparsed: true}}, RoleUnparsed, "unparsed"},
		{"host interface", model.Entity{Key: "host/eth0", Payload: model.Interface{Name: "eth0", Link: model.LinkUp}}, RoleNormal, "host/eth0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := buildRow(tt.entity, now)
			if r.role != tt.wantRole {
				t.Errorf("role = %v, want %v", r.role, tt.wantRole)
			}
			found := false
			for _, c := range r.cells {
				if c == tt.wantCell {
					found = true
				}
			}
			if !found {
				t.Errorf("cells = %q, want one equal to %q", r.cells, tt.wantCell)
			}
		})
	}
}

func TestDiagnosticsPaneTagsUnparsed(t *testing.T) {
	s := seeded(t)
	raw := model.Diagnostic{Origin: model.OriginKernel, Time: now, Message: "%%garbage%%", Unparsed: true}
	if _, err := s.Apply(model.Upsert("kernel", raw.Key(), raw, now)); err != nil {
		t.Fatal(err)
	}
	r, ok := Build(input(s.Snapshot(), nav.New(120, 30), 120, 30)).Region(PaneRegion(nav.PaneDiagnostics))
	if !ok {
		t.Fatal("diagnostics pane missing")
	}

	tests := []struct {
		message  string
		wantRole Role
		wantText []string
	}{
		{"%%garbage%%", RoleUnparsed, []string{"12:00:00.000 ", "unparsed", "%%garbage%%"}},
		{"second", RoleError, []string{"12:00:00.000 ", "err", "second"}},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			var found *Line
			for i := range r.Lines {
				if strings.Contains(r.Lines[i].Text(), tt.message) {
					found = &r.Lines[i]
				}
			}
			if found == nil {
				t.Fatalf("no row for %q in %v", tt.message, r.Lines)
			}
			if found.Spans[0].Role != tt.wantRole {
				t.Errorf("role = %v, want %v", found.Spans[0].Role, tt.wantRole)
			}
			for _, want := range tt.wantText {
				if !strings.Contains(found.Text(), want) {
					t.Errorf("row = %q, want it to contain %q", found.Text(), want)
				}
			}
		})
	}
}

func TestFormatCells(t *testing.T) {
	cols := []column{{"A", 4}, {"B", 0}}
	tests := []struct {
		cells []string
		width int
		want  string
	}{
		{[]string{"ab", "cd"}, 10, "ab  cd    "},
		{[]string{"abcdef", "x"}, 6, "ab… x "},
		{[]string{"ab", "long value"}, 8, "ab  lon…"},
		{[]string{"ab"}, 2, "… "},
	}
	for _, tt := range tests {
		if got := formatCells(cols, tt.cells, tt.width); got != tt.want {
			t.Errorf("formatCells(%q, %d) = %q, want %q", tt.cells, tt.width, got, tt.want)
		}
		if got := cellWidth(formatCells(cols, tt.cells, tt.width)); got != tt.width {
			t.Errorf("width = %d, want %d", got, tt.width)
		}
	}
}

func TestVisibleRows(t *testing.T) {
	if got := visibleRows(layout.Rect{H: 10}); got != 6 {
		t.Errorf("visibleRows(10) = %d, want 6", got)
	}
	if got := visibleRows(layout.Rect{H: 2}); got != 1 {
		t.Errorf("visibleRows(2) = %d, want 1", got)
	}
}
