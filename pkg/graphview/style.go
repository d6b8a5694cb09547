package graphview

import "github.com/repopulse/repopulse/pkg/api"

// FillClass maps a node to its fill style. Severity wins over structural
// type: a critical file renders critical, not file-colored.
func FillClass(n api.GraphNode) string {
	switch n.Severity {
	case api.SeverityCritical:
		return "critical"
	case api.SeverityWarning:
		return "warning"
	case api.SeverityInfo:
		return "healthy"
	}
	if n.Type == "" {
		return "file"
	}
	return n.Type
}

// SizeTier buckets a node's finding count into the three render sizes:
// 0 → smallest, 1–2 → medium, ≥3 → largest.
func SizeTier(findingCount int) int {
	switch {
	case findingCount <= 0:
		return 0
	case findingCount <= 2:
		return 1
	default:
		return 2
	}
}
