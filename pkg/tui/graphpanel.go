package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/repopulse/repopulse/pkg/api"
	"github.com/repopulse/repopulse/pkg/graphview"
	"github.com/repopulse/repopulse/pkg/session"
)

// sizeGlyphs index by graphview.SizeTier.
var sizeGlyphs = [3]string{"·", "●", "⬤"}

// graphPanel renders the materialized graph as an indented text tree. It is
// the terminal stand-in for a canvas: the builder drives it exclusively
// through the RenderTarget methods, so it never reads the session store.
type graphPanel struct {
	nodes     map[string]api.GraphNode
	edges     map[string]api.GraphEdge
	nodeOrder []string
	edgeOrder []string

	classes  map[string]map[string]struct{}
	selected string
	focused  string

	// rows and depths are the display plan computed by the last RunLayout.
	rows   []string
	depths map[string]int

	offset int // first visible row
}

func newGraphPanel() *graphPanel {
	return &graphPanel{
		nodes:   make(map[string]api.GraphNode),
		edges:   make(map[string]api.GraphEdge),
		classes: make(map[string]map[string]struct{}),
		depths:  make(map[string]int),
	}
}

func (p *graphPanel) AddElements(nodes []api.GraphNode, edges []api.GraphEdge) {
	for _, n := range nodes {
		p.nodes[n.ID] = n
		p.nodeOrder = append(p.nodeOrder, n.ID)
	}
	for _, e := range edges {
		p.edges[e.ID] = e
		p.edgeOrder = append(p.edgeOrder, e.ID)
	}
}

// RunLayout recomputes row order. Structure mode nests children under their
// container following "contains" edges; the other modes keep arrival order,
// which is the closest a line-oriented panel gets to a force layout.
func (p *graphPanel) RunLayout(mode session.ViewMode) {
	p.rows = p.rows[:0]
	p.depths = make(map[string]int)

	if mode != session.ViewStructure {
		p.rows = append(p.rows, p.nodeOrder...)
		return
	}

	children := make(map[string][]string)
	hasParent := make(map[string]bool)
	for _, id := range p.edgeOrder {
		e := p.edges[id]
		if e.Type != "contains" {
			continue
		}
		children[e.Source] = append(children[e.Source], e.Target)
		hasParent[e.Target] = true
	}

	var walk func(id string, depth int)
	seen := make(map[string]bool)
	walk = func(id string, depth int) {
		if seen[id] {
			return
		}
		seen[id] = true
		p.rows = append(p.rows, id)
		p.depths[id] = depth
		for _, child := range children[id] {
			walk(child, depth+1)
		}
	}
	for _, id := range p.nodeOrder {
		if !hasParent[id] {
			walk(id, 0)
		}
	}
	// Containment cycles shouldn't happen, but a row must never vanish.
	for _, id := range p.nodeOrder {
		if !seen[id] {
			walk(id, 0)
		}
	}
}

func (p *graphPanel) ApplyStyleClass(ids []string, class string) {
	for _, id := range ids {
		set, ok := p.classes[id]
		if !ok {
			set = make(map[string]struct{})
			p.classes[id] = set
		}
		set[class] = struct{}{}
	}
}

func (p *graphPanel) ResetStyles() {
	p.classes = make(map[string]map[string]struct{})
}

func (p *graphPanel) Select(id string) {
	p.selected = id
}

// FitTo scrolls the focused node into the visible window on the next render.
func (p *graphPanel) FitTo(id string) {
	p.focused = id
}

func (p *graphPanel) clear() {
	p.nodes = make(map[string]api.GraphNode)
	p.edges = make(map[string]api.GraphEdge)
	p.nodeOrder = nil
	p.edgeOrder = nil
	p.classes = make(map[string]map[string]struct{})
	p.selected = ""
	p.focused = ""
	p.rows = nil
	p.depths = make(map[string]int)
	p.offset = 0
}

func (p *graphPanel) has(id, class string) bool {
	set, ok := p.classes[id]
	if !ok {
		return false
	}
	_, ok = set[class]
	return ok
}

func (p *graphPanel) outDegree() map[string]int {
	deg := make(map[string]int, len(p.nodes))
	for _, id := range p.edgeOrder {
		e := p.edges[id]
		deg[e.Source]++
		deg[e.Target]++
	}
	return deg
}

// View renders at most height node rows plus a footer summarizing edges.
func (p *graphPanel) View(width, height int) string {
	if len(p.rows) == 0 {
		return subtleStyle.Render("waiting for graph data...")
	}
	if height < 2 {
		height = 2
	}
	visible := height - 1 // last line is the edge summary

	// Keep the focused row inside the window.
	if p.focused != "" {
		for i, id := range p.rows {
			if id != p.focused {
				continue
			}
			if i < p.offset {
				p.offset = i
			} else if i >= p.offset+visible {
				p.offset = i - visible + 1
			}
			break
		}
	}
	if p.offset > len(p.rows)-1 {
		p.offset = len(p.rows) - 1
	}
	if p.offset < 0 {
		p.offset = 0
	}

	deg := p.outDegree()
	var b strings.Builder
	end := p.offset + visible
	if end > len(p.rows) {
		end = len(p.rows)
	}
	for _, id := range p.rows[p.offset:end] {
		n := p.nodes[id]
		line := p.renderNode(n, p.depths[id], deg[id], width)
		b.WriteString(line)
		b.WriteString("\n")
	}

	emphasized := 0
	for _, id := range p.edgeOrder {
		if p.has(id, graphview.ClassEmphasized) {
			emphasized++
		}
	}
	summary := fmt.Sprintf("%d nodes · %d edges", len(p.nodeOrder), len(p.edgeOrder))
	if emphasized > 0 {
		summary += fmt.Sprintf(" · %d on chains", emphasized)
	}
	b.WriteString(subtleStyle.Render(summary))
	return b.String()
}

func (p *graphPanel) renderNode(n api.GraphNode, depth, degree, width int) string {
	glyph := sizeGlyphs[graphview.SizeTier(n.FindingCount)]
	label := n.Label
	if label == "" {
		label = n.ID
	}

	prefix := "  "
	if n.ID == p.selected {
		prefix = "▶ "
	}
	indent := strings.Repeat("  ", depth)

	text := fmt.Sprintf("%s%s%s %s", prefix, indent, glyph, label)
	if n.FindingCount > 0 {
		text += fmt.Sprintf(" (%d)", n.FindingCount)
	}
	if degree > 0 {
		text += fmt.Sprintf(" ~%d", degree)
	}
	if width > 4 {
		text = lipgloss.NewStyle().MaxWidth(width).Render(text)
	}

	switch {
	case n.ID == p.selected:
		return selectedStyle.Render(text)
	case p.has(n.ID, graphview.ClassDimmed):
		return dimStyle.Render(text)
	case p.has(n.ID, graphview.ClassEmphasized):
		return emphasizedStyle.Render(text)
	default:
		return fillStyle(graphview.FillClass(n)).Render(text)
	}
}
