package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/repopulse/repopulse/pkg/api"
)

// Kind tags an inbound stream message. The set is closed: the decoder matches
// it exhaustively and anything else falls through the forward-compatibility arm.
type Kind string

const (
	KindAgentStatus Kind = "agent_status"
	KindGraphNode   Kind = "graph_node"
	KindGraphEdge   Kind = "graph_edge"
	KindFindingLive Kind = "finding_live"
	KindInsight     Kind = "insight"
	KindComplete    Kind = "complete"
	KindFailed      Kind = "failed"
	KindHeartbeat   Kind = "heartbeat"
)

// ErrUnknownKind marks a message of a kind this client does not model.
// Callers drop these silently; they are not decode failures.
var ErrUnknownKind = errors.New("unknown event kind")

// Event is one decoded stream message.
type Event interface {
	Kind() Kind
}

// AgentStatusEvent reports progress of one named pipeline agent.
type AgentStatusEvent struct {
	Agent         string  `json:"agent"`
	Status        string  `json:"status"` // pending|running|complete|error
	Progress      float64 `json:"progress"`
	Message       string  `json:"message"`
	Provider      string  `json:"provider,omitempty"`
	Duration      float64 `json:"duration,omitempty"`
	FindingsCount int     `json:"findingsCount,omitempty"`
}

func (AgentStatusEvent) Kind() Kind { return KindAgentStatus }

// GraphNodeEvent announces a discovered graph node.
type GraphNodeEvent struct {
	Node api.GraphNode `json:"node"`
}

func (GraphNodeEvent) Kind() Kind { return KindGraphNode }

// GraphEdgeEvent announces a discovered graph edge. Its endpoints may not have
// arrived yet; consumers must tolerate that.
type GraphEdgeEvent struct {
	Edge api.GraphEdge `json:"edge"`
}

func (GraphEdgeEvent) Kind() Kind { return KindGraphEdge }

// FindingLiveEvent is an advisory feed entry, superseded by the authoritative
// findings fetched after completion.
type FindingLiveEvent struct {
	ID       string       `json:"id"`
	Severity api.Severity `json:"severity"`
	Title    string       `json:"title"`
	Agent    string       `json:"agent"`
}

func (FindingLiveEvent) Kind() Kind { return KindFindingLive }

// InsightEvent carries a free-form observation from an agent.
type InsightEvent struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

func (InsightEvent) Kind() Kind { return KindInsight }

// CompleteEvent is the terminal success message.
type CompleteEvent struct {
	HealthScore     api.HealthScore     `json:"healthScore"`
	FindingsSummary api.FindingsSummary `json:"findingsSummary"`
	Duration        int                 `json:"duration"` // seconds
}

func (CompleteEvent) Kind() Kind { return KindComplete }

// FailedEvent is the terminal failure message.
type FailedEvent struct {
	Agent       string `json:"agent,omitempty"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

func (FailedEvent) Kind() Kind { return KindFailed }

// HeartbeatEvent keeps the connection warm; it carries no state.
type HeartbeatEvent struct{}

func (HeartbeatEvent) Kind() Kind { return KindHeartbeat }

// envelope extracts the type tag before the payload is decoded.
type envelope struct {
	Type Kind `json:"type"`
}

// Decode parses one raw message into a typed event.
// Unknown kinds return ErrUnknownKind; malformed payloads return a decode error.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch env.Type {
	case KindAgentStatus:
		var e AgentStatusEvent
		return e, decodePayload(data, &e)
	case KindGraphNode:
		var e GraphNodeEvent
		if err := decodePayload(data, &e); err != nil {
			return nil, err
		}
		if e.Node.ID == "" {
			return nil, fmt.Errorf("graph_node event missing node id")
		}
		return e, nil
	case KindGraphEdge:
		var e GraphEdgeEvent
		if err := decodePayload(data, &e); err != nil {
			return nil, err
		}
		if e.Edge.ID == "" || e.Edge.Source == "" || e.Edge.Target == "" {
			return nil, fmt.Errorf("graph_edge event missing id or endpoints")
		}
		return e, nil
	case KindFindingLive:
		var e FindingLiveEvent
		return e, decodePayload(data, &e)
	case KindInsight:
		var e InsightEvent
		return e, decodePayload(data, &e)
	case KindComplete:
		var e CompleteEvent
		return e, decodePayload(data, &e)
	case KindFailed:
		var e FailedEvent
		return e, decodePayload(data, &e)
	case KindHeartbeat:
		return HeartbeatEvent{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

func decodePayload(data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}
