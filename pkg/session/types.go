package session

import "github.com/repopulse/repopulse/pkg/api"

// KnownAgents is the fixed set of pipeline stages, in display order.
// The store holds exactly one status per name at all times.
var KnownAgents = []string{
	"orchestrator",
	"mapper",
	"quality",
	"pattern",
	"security",
	"doctor",
	"cross-repo-intelligence",
}

// AgentState is the lifecycle state of one pipeline agent.
type AgentState string

const (
	AgentPending  AgentState = "pending"
	AgentRunning  AgentState = "running"
	AgentComplete AgentState = "complete"
	AgentError    AgentState = "error"
)

// AgentStatus is the read-model for one pipeline agent.
type AgentStatus struct {
	Name          string
	State         AgentState
	Progress      float64 // [0,1]
	Message       string
	Provider      string
	Duration      float64 // seconds, optional
	FindingsCount int
}

// LiveFinding is a transient feed entry. The full Finding list fetched after
// completion supersedes it; duplicates by id are allowed here.
type LiveFinding struct {
	ID       string
	Severity api.Severity
	Title    string
	Agent    string
}

// liveFeedLimit bounds the advisory feeds; oldest entries are evicted first.
const liveFeedLimit = 20

// ViewMode selects the graph presentation.
type ViewMode string

const (
	ViewStructure       ViewMode = "structure"
	ViewDependencies    ViewMode = "dependencies"
	ViewVulnerabilities ViewMode = "vulnerabilities"
)

// Mode is the top-level presentation state, derived solely from session status.
type Mode string

const (
	ModeScanning  Mode = "scanning"
	ModeCompleted Mode = "completed"
	ModeFailed    Mode = "failed"
)

// Selection is a snapshot of the UI-state slice of the store. The fields are
// mutually independent; empty string means nothing selected.
type Selection struct {
	NodeID         string
	FindingID      string
	ChainID        string
	SeverityFilter api.Severity
	CategoryFilter string
	Search         string
}

// GraphSlice is the authoritative graph state handed to the builder.
type GraphSlice struct {
	Nodes []api.GraphNode
	Edges []api.GraphEdge
}
