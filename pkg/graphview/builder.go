// Package graphview reconciles the authoritative session graph against a
// live render target. The builder owns nothing but an id mirror of what the
// target already materialized; domain truth stays in the session store.
package graphview

import (
	"strings"

	"github.com/repopulse/repopulse/pkg/api"
	"github.com/repopulse/repopulse/pkg/session"
)

// layoutKind groups the view modes by the layout they require, so switching
// between two force-directed views never recomputes positions.
func layoutKind(mode session.ViewMode) string {
	if mode == session.ViewStructure {
		return "hierarchical"
	}
	return "force"
}

// Builder performs idempotent incremental insertion into a render target and
// translates selection/highlight/filter state into pure style passes.
type Builder struct {
	target RenderTarget

	nodes map[string]struct{} // ids materialized in the target
	edges map[string]struct{}

	pending    int
	lastLayout string
}

// NewBuilder creates a builder over an empty render target.
func NewBuilder(target RenderTarget) *Builder {
	return &Builder{
		target: target,
		nodes:  make(map[string]struct{}),
		edges:  make(map[string]struct{}),
	}
}

// Reset forgets the mirror. Call when the session is reset; the render target
// is expected to have been cleared by its owner.
func (b *Builder) Reset() {
	b.nodes = make(map[string]struct{})
	b.edges = make(map[string]struct{})
	b.pending = 0
	b.lastLayout = ""
}

// Pending reports how many authoritative edges are still waiting for an
// endpoint to arrive. Purely a data-quality signal.
func (b *Builder) Pending() int {
	return b.pending
}

// Sync diffs the authoritative graph slice against the mirror and inserts
// the strictly-new elements. Re-processing an already-added id is a no-op.
// Edges whose endpoints are not both materialized are deferred, never
// dropped and never an error: the authoritative list still holds them and
// every Sync pass re-attempts the filter.
//
// Layout runs only when elements were actually added, or when the view mode
// demands a different layout algorithm than the last one applied. Returns
// whether a layout ran.
func (b *Builder) Sync(g session.GraphSlice, mode session.ViewMode) bool {
	var newNodes []api.GraphNode
	for _, n := range g.Nodes {
		if _, ok := b.nodes[n.ID]; ok {
			continue
		}
		b.nodes[n.ID] = struct{}{}
		newNodes = append(newNodes, n)
	}

	var newEdges []api.GraphEdge
	b.pending = 0
	for _, e := range g.Edges {
		if _, ok := b.edges[e.ID]; ok {
			continue
		}
		if _, ok := b.nodes[e.Source]; !ok {
			b.pending++
			continue
		}
		if _, ok := b.nodes[e.Target]; !ok {
			b.pending++
			continue
		}
		b.edges[e.ID] = struct{}{}
		newEdges = append(newEdges, e)
	}

	if len(newNodes) > 0 || len(newEdges) > 0 {
		b.target.AddElements(newNodes, newEdges)
	}

	kind := layoutKind(mode)
	if len(newNodes) == 0 && len(newEdges) == 0 && kind == b.lastLayout {
		return false
	}
	b.target.RunLayout(mode)
	b.lastLayout = kind
	return true
}

// Restyle translates view mode, selection, chain highlight and label search
// into style classes on the materialized elements. It is a pure style pass:
// no insertion, no layout. The viewport recenters only on an explicit
// single-node selection.
func (b *Builder) Restyle(g session.GraphSlice, mode session.ViewMode, sel session.Selection) {
	b.target.ResetStyles()

	switch {
	case sel.ChainID != "":
		b.styleChainHighlight(g, sel.ChainID)
	case mode == session.ViewVulnerabilities:
		b.styleVulnerabilityPartition(g)
	}

	if q := strings.TrimSpace(sel.Search); q != "" {
		b.styleSearch(g, q)
	}

	b.target.Select(sel.NodeID)
	if sel.NodeID != "" {
		b.target.FitTo(sel.NodeID)
	}
}

// styleVulnerabilityPartition dims everything that is not part of any
// vulnerability chain and emphasizes chain edges.
func (b *Builder) styleVulnerabilityPartition(g session.GraphSlice) {
	chainNodes := make(map[string]struct{})
	var chainEdges []string
	for _, e := range g.Edges {
		if !e.IsVulnerabilityChain {
			continue
		}
		if _, ok := b.edges[e.ID]; !ok {
			continue
		}
		chainEdges = append(chainEdges, e.ID)
		chainNodes[e.Source] = struct{}{}
		chainNodes[e.Target] = struct{}{}
	}
	if len(chainEdges) == 0 {
		// No chain data yet: leave the base view undimmed.
		return
	}

	var dimmed []string
	for _, n := range g.Nodes {
		if _, ok := b.nodes[n.ID]; !ok {
			continue
		}
		if _, ok := chainNodes[n.ID]; !ok {
			dimmed = append(dimmed, n.ID)
		}
	}
	for _, e := range g.Edges {
		if _, ok := b.edges[e.ID]; !ok {
			continue
		}
		if !e.IsVulnerabilityChain {
			dimmed = append(dimmed, e.ID)
		}
	}

	b.target.ApplyStyleClass(chainEdges, ClassEmphasized)
	b.target.ApplyStyleClass(dimmed, ClassDimmed)
}

// styleChainHighlight emphasizes the edges tagged with chainID plus their
// connected nodes and dims everything else. No recentering.
func (b *Builder) styleChainHighlight(g session.GraphSlice, chainID string) {
	member := make(map[string]struct{})
	var emphasized []string
	for _, e := range g.Edges {
		if e.ChainID != chainID {
			continue
		}
		if _, ok := b.edges[e.ID]; !ok {
			continue
		}
		member[e.ID] = struct{}{}
		member[e.Source] = struct{}{}
		member[e.Target] = struct{}{}
		emphasized = append(emphasized, e.ID)
	}

	var dimmed []string
	for _, n := range g.Nodes {
		if _, ok := b.nodes[n.ID]; !ok {
			continue
		}
		if _, ok := member[n.ID]; !ok {
			dimmed = append(dimmed, n.ID)
		}
	}
	for _, e := range g.Edges {
		if _, ok := b.edges[e.ID]; !ok {
			continue
		}
		if _, ok := member[e.ID]; !ok {
			dimmed = append(dimmed, e.ID)
		}
	}

	b.target.ApplyStyleClass(emphasized, ClassEmphasized)
	b.target.ApplyStyleClass(dimmed, ClassDimmed)
}

// styleSearch dims nodes whose label does not match the query.
// Elements are never removed from the target by a search.
func (b *Builder) styleSearch(g session.GraphSlice, query string) {
	q := strings.ToLower(query)
	var dimmed []string
	for _, n := range g.Nodes {
		if _, ok := b.nodes[n.ID]; !ok {
			continue
		}
		if !strings.Contains(strings.ToLower(n.Label), q) {
			dimmed = append(dimmed, n.ID)
		}
	}
	b.target.ApplyStyleClass(dimmed, ClassDimmed)
}
