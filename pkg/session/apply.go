package session

import (
	"github.com/repopulse/repopulse/pkg/stream"
)

// ApplyEvent translates one decoded stream event into a store transition.
// This is the single dispatch point between the wire and the store; the
// switch is exhaustive over the closed event-kind set, and heartbeats carry
// no state. Events for a terminal session are discarded inside the
// individual transitions.
func (s *Store) ApplyEvent(e stream.Event) {
	switch ev := e.(type) {
	case stream.AgentStatusEvent:
		s.UpdateAgentStatus(AgentStatus{
			Name:          ev.Agent,
			State:         AgentState(ev.Status),
			Progress:      clamp01(ev.Progress),
			Message:       ev.Message,
			Provider:      ev.Provider,
			Duration:      ev.Duration,
			FindingsCount: ev.FindingsCount,
		})
	case stream.GraphNodeEvent:
		s.AddGraphNode(ev.Node)
	case stream.GraphEdgeEvent:
		s.AddGraphEdge(ev.Edge)
	case stream.FindingLiveEvent:
		s.AddLiveFinding(LiveFinding{
			ID:       ev.ID,
			Severity: ev.Severity,
			Title:    ev.Title,
			Agent:    ev.Agent,
		})
	case stream.InsightEvent:
		s.AddInsight(ev.Message)
	case stream.CompleteEvent:
		s.SetComplete(ev.HealthScore, ev.FindingsSummary, ev.Duration)
	case stream.FailedEvent:
		s.SetFailed(ev.Message)
	case stream.HeartbeatEvent:
		// Keepalive only.
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
