package tui

import (
	"strings"
	"testing"

	"github.com/repopulse/repopulse/pkg/api"
	"github.com/repopulse/repopulse/pkg/graphview"
	"github.com/repopulse/repopulse/pkg/session"
)

func TestGraphPanel_HierarchicalLayoutNestsContains(t *testing.T) {
	p := newGraphPanel()
	p.AddElements(
		[]api.GraphNode{
			{ID: "dir", Type: "directory", Label: "src"},
			{ID: "file", Type: "file", Label: "main.go"},
		},
		[]api.GraphEdge{
			{ID: "e1", Source: "dir", Target: "file", Type: "contains"},
		},
	)

	p.RunLayout(session.ViewStructure)

	if len(p.rows) != 2 {
		t.Fatalf("rows = %d; want 2", len(p.rows))
	}
	if p.rows[0] != "dir" || p.rows[1] != "file" {
		t.Errorf("rows = %v; want parent before child", p.rows)
	}
	if p.depths["dir"] != 0 || p.depths["file"] != 1 {
		t.Errorf("depths = %v; want child indented", p.depths)
	}
}

func TestGraphPanel_ForceLayoutKeepsArrivalOrder(t *testing.T) {
	p := newGraphPanel()
	p.AddElements(
		[]api.GraphNode{{ID: "b"}, {ID: "a"}, {ID: "c"}},
		nil,
	)

	p.RunLayout(session.ViewDependencies)

	want := []string{"b", "a", "c"}
	for i, id := range want {
		if p.rows[i] != id {
			t.Errorf("rows[%d] = %s; want %s", i, p.rows[i], id)
		}
	}
}

func TestGraphPanel_EveryNodeGetsARow(t *testing.T) {
	// A node with a containment parent that never materialized must still render.
	p := newGraphPanel()
	p.AddElements(
		[]api.GraphNode{{ID: "orphan", Label: "dangling.go"}},
		[]api.GraphEdge{{ID: "e1", Source: "ghost", Target: "orphan", Type: "contains"}},
	)

	p.RunLayout(session.ViewStructure)

	if len(p.rows) != 1 || p.rows[0] != "orphan" {
		t.Errorf("rows = %v; want the orphan present", p.rows)
	}
}

func TestGraphPanel_ViewMarksSelection(t *testing.T) {
	p := newGraphPanel()
	p.AddElements([]api.GraphNode{{ID: "f1", Label: "main.go"}}, nil)
	p.RunLayout(session.ViewVulnerabilities)
	p.Select("f1")

	out := p.View(80, 10)
	if !strings.Contains(out, "▶") {
		t.Errorf("selected node not marked:\n%s", out)
	}
	if !strings.Contains(out, "main.go") {
		t.Errorf("label missing:\n%s", out)
	}
}

func TestGraphPanel_StyleClassesTracked(t *testing.T) {
	p := newGraphPanel()
	p.AddElements([]api.GraphNode{{ID: "f1"}, {ID: "f2"}}, nil)
	p.ApplyStyleClass([]string{"f1"}, graphview.ClassDimmed)

	if !p.has("f1", graphview.ClassDimmed) {
		t.Error("style class not recorded")
	}
	p.ResetStyles()
	if p.has("f1", graphview.ClassDimmed) {
		t.Error("style class survived reset")
	}
}

func TestGraphPanel_EmptyView(t *testing.T) {
	p := newGraphPanel()
	p.RunLayout(session.ViewVulnerabilities)
	if out := p.View(80, 10); out == "" {
		t.Error("empty panel should render a placeholder")
	}
}

func TestModel_NewAnalysisClearsGraphPanel(t *testing.T) {
	store := session.NewStore()
	m := New(store)

	store.StartAnalysis("one")
	store.AddGraphNode(api.GraphNode{ID: "f1", Label: "main.go"})
	m.refresh()
	if len(m.panel.nodeOrder) != 1 {
		t.Fatalf("panel nodes = %d; want 1 after first sync", len(m.panel.nodeOrder))
	}

	// A new session hard-resets the store; the panel must not keep stale rows.
	store.StartAnalysis("two")
	m.refresh()
	if len(m.panel.nodeOrder) != 0 || len(m.panel.rows) != 0 {
		t.Errorf("panel not cleared: %d nodes, %d rows", len(m.panel.nodeOrder), len(m.panel.rows))
	}

	store.AddGraphNode(api.GraphNode{ID: "g1", Label: "app.go"})
	m.refresh()
	if len(m.panel.nodeOrder) != 1 || m.panel.nodeOrder[0] != "g1" {
		t.Errorf("panel nodes = %v; want the new session's node only", m.panel.nodeOrder)
	}
}

func TestGraphPanel_Clear(t *testing.T) {
	p := newGraphPanel()
	p.AddElements(
		[]api.GraphNode{{ID: "f1"}},
		[]api.GraphEdge{{ID: "e1", Source: "f1", Target: "f1"}},
	)
	p.RunLayout(session.ViewStructure)
	p.ApplyStyleClass([]string{"f1"}, graphview.ClassDimmed)
	p.Select("f1")
	p.FitTo("f1")

	p.clear()

	if len(p.nodeOrder) != 0 || len(p.edgeOrder) != 0 || len(p.rows) != 0 {
		t.Errorf("elements survived clear: %d nodes, %d edges, %d rows",
			len(p.nodeOrder), len(p.edgeOrder), len(p.rows))
	}
	if p.selected != "" || p.focused != "" || p.has("f1", graphview.ClassDimmed) {
		t.Error("selection or styles survived clear")
	}
}

func TestNextViewMode_CyclesAllThree(t *testing.T) {
	mode := session.ViewVulnerabilities
	seen := map[session.ViewMode]bool{}
	for i := 0; i < 3; i++ {
		seen[mode] = true
		mode = nextViewMode(mode)
	}
	if len(seen) != 3 || mode != session.ViewVulnerabilities {
		t.Errorf("cycle = %v, back to %s", seen, mode)
	}
}

func TestNextSeverity_CyclesThroughClear(t *testing.T) {
	sev := api.Severity("")
	order := []api.Severity{api.SeverityCritical, api.SeverityWarning, api.SeverityInfo, ""}
	for i, want := range order {
		sev = nextSeverity(sev)
		if sev != want {
			t.Errorf("step %d = %s; want %s", i, sev, want)
		}
	}
}
