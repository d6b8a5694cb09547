package session

import (
	"testing"

	"github.com/repopulse/repopulse/pkg/api"
	"github.com/repopulse/repopulse/pkg/stream"
)

// TestApplyEvent_HappyPath replays a full analysis stream in arrival order and
// checks the resulting projection.
func TestApplyEvent_HappyPath(t *testing.T) {
	s := NewStore()
	s.StartAnalysis("abc123")

	events := []stream.Event{
		stream.AgentStatusEvent{Agent: "mapper", Status: "running", Progress: 0.4, Message: "mapping src/"},
		stream.GraphNodeEvent{Node: api.GraphNode{ID: "f1", Type: "file", Label: "main.go"}},
		stream.GraphNodeEvent{Node: api.GraphNode{ID: "f2", Type: "file", Label: "db.go"}},
		stream.GraphEdgeEvent{Edge: api.GraphEdge{ID: "e1", Source: "f1", Target: "f2", Type: "imports"}},
		stream.FindingLiveEvent{ID: "fnd-1", Severity: api.SeverityCritical, Title: "SQL injection", Agent: "security"},
		stream.InsightEvent{Agent: "pattern", Message: "repository uses layered architecture"},
		stream.HeartbeatEvent{},
		stream.CompleteEvent{
			HealthScore:     api.HealthScore{Overall: 82, LetterGrade: "B"},
			FindingsSummary: api.FindingsSummary{Critical: 1, Total: 1},
			Duration:        154,
		},
	}
	for _, e := range events {
		s.ApplyEvent(e)
	}

	if s.Status() != api.StatusCompleted {
		t.Errorf("status = %s; want completed", s.Status())
	}
	if s.Mode() != ModeCompleted {
		t.Errorf("mode = %s; want completed", s.Mode())
	}

	g := s.Graph()
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph = %d nodes, %d edges; want 2/1", len(g.Nodes), len(g.Edges))
	}

	var mapper AgentStatus
	for _, a := range s.AgentStatuses() {
		if a.Name == "mapper" {
			mapper = a
		}
	}
	if mapper.State != AgentRunning || mapper.Progress != 0.4 {
		t.Errorf("mapper = %+v; want running at 0.4", mapper)
	}

	live := s.LiveFindings()
	if len(live) != 1 || live[0].Title != "SQL injection" {
		t.Errorf("live feed = %+v", live)
	}
	if insights := s.Insights(); len(insights) != 1 {
		t.Errorf("insights = %+v", insights)
	}

	r := s.Result()
	if r == nil || r.HealthScore == nil || r.HealthScore.Overall != 82 {
		t.Fatalf("result = %+v; want overall 82", r)
	}
}

func TestApplyEvent_FailedStream(t *testing.T) {
	s := NewStore()
	s.StartAnalysis("abc123")

	s.ApplyEvent(stream.FailedEvent{Agent: "orchestrator", Message: "clone timed out"})

	if s.Mode() != ModeFailed {
		t.Errorf("mode = %s; want failed", s.Mode())
	}
	if s.ErrorMessage() != "clone timed out" {
		t.Errorf("error = %q", s.ErrorMessage())
	}

	// Everything after the terminal event is discarded.
	s.ApplyEvent(stream.GraphNodeEvent{Node: api.GraphNode{ID: "f1"}})
	if len(s.Graph().Nodes) != 0 {
		t.Error("graph mutated after failed event")
	}
}

func TestApplyEvent_ProgressClamped(t *testing.T) {
	s := NewStore()
	s.StartAnalysis("abc123")

	s.ApplyEvent(stream.AgentStatusEvent{Agent: "quality", Status: "running", Progress: 1.7})
	s.ApplyEvent(stream.AgentStatusEvent{Agent: "doctor", Status: "running", Progress: -0.3})

	for _, a := range s.AgentStatuses() {
		switch a.Name {
		case "quality":
			if a.Progress != 1 {
				t.Errorf("quality progress = %v; want clamped to 1", a.Progress)
			}
		case "doctor":
			if a.Progress != 0 {
				t.Errorf("doctor progress = %v; want clamped to 0", a.Progress)
			}
		}
	}
}
