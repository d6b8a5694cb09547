package graphview

import (
	"github.com/repopulse/repopulse/pkg/api"
	"github.com/repopulse/repopulse/pkg/session"
)

// Style classes the builder applies. Render targets decide what they mean
// visually; the builder only decides which elements carry them.
const (
	ClassDimmed     = "dimmed"
	ClassEmphasized = "emphasized"
)

// RenderTarget is the narrow interface over a stateful graph-drawing surface.
// Any force-directed/hierarchical graph implementation satisfying it is
// substitutable; the TUI graph panel and the test fakes both do.
type RenderTarget interface {
	// AddElements inserts new nodes and edges. Elements passed here are
	// guaranteed new and edge endpoints are guaranteed present.
	AddElements(nodes []api.GraphNode, edges []api.GraphEdge)
	// RunLayout recomputes positions for the given view mode.
	RunLayout(mode session.ViewMode)
	// ApplyStyleClass adds a style class to the given element ids.
	ApplyStyleClass(ids []string, class string)
	// ResetStyles clears all style classes.
	ResetStyles()
	// Select marks a single node as selected (empty id clears).
	Select(id string)
	// FitTo smoothly focuses the viewport on one node.
	FitTo(id string)
}
