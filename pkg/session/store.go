// Package session holds the client-side source of truth for one analysis.
//
// The Store is mutated only through named transitions; everything else reads
// derived snapshots. Subscribers are notified after every completed transition,
// so a rendering layer can re-read the slices it cares about without the store
// knowing anything about rendering.
package session

import (
	"log"
	"sync"

	"github.com/repopulse/repopulse/pkg/api"
)

// Store is the single source of truth for one analysis session.
type Store struct {
	mu sync.RWMutex

	analysisID string
	status     api.Status
	result     *api.AnalysisResult
	errMsg     string

	agents     map[string]AgentStatus
	agentOrder []string // KnownAgents plus any late arrivals, in first-seen order

	nodes   []api.GraphNode
	nodeIDs map[string]struct{}
	edges   []api.GraphEdge
	edgeIDs map[string]struct{}

	live     []LiveFinding
	insights []string

	findings []api.Finding
	fixes    []api.Fix
	fixSum   api.FixSummary
	chains   []api.VulnerabilityChain

	sel      Selection
	viewMode ViewMode

	listeners map[int]func()
	nextSub   int
}

// NewStore creates an empty store, pre-populated with all known agents.
func NewStore() *Store {
	s := &Store{
		listeners: make(map[int]func()),
	}
	s.resetLocked("")
	return s
}

// Subscribe registers a change listener and returns its unsubscribe func.
// Listeners run synchronously after each completed transition, in no
// particular order; they must not call back into mutating transitions.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// resetLocked restores the initial state for a new session.
// Must be called with s.mu held.
func (s *Store) resetLocked(id string) {
	s.analysisID = id
	s.status = api.StatusQueued
	s.result = nil
	s.errMsg = ""

	s.agents = make(map[string]AgentStatus, len(KnownAgents))
	s.agentOrder = append([]string(nil), KnownAgents...)
	for _, name := range KnownAgents {
		s.agents[name] = AgentStatus{Name: name, State: AgentPending}
	}

	s.nodes = nil
	s.nodeIDs = make(map[string]struct{})
	s.edges = nil
	s.edgeIDs = make(map[string]struct{})

	s.live = nil
	s.insights = nil
	s.findings = nil
	s.fixes = nil
	s.fixSum = api.FixSummary{}
	s.chains = nil

	s.sel = Selection{}
	s.viewMode = ViewVulnerabilities
}

func (s *Store) terminalLocked() bool {
	return s.status.Terminal()
}

// --- Transitions ---

// StartAnalysis hard-resets all state and begins tracking id as queued.
// Always safe to call; callers that already track id may skip re-seeding
// (see Tracks).
func (s *Store) StartAnalysis(id string) {
	s.mu.Lock()
	s.resetLocked(id)
	s.mu.Unlock()
	s.notify()
}

// Tracks reports whether the store currently follows this analysis id.
func (s *Store) Tracks(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analysisID != "" && s.analysisID == id
}

// UpdateAgentStatus replaces the status of one agent, leaving the rest alone.
// Agents outside the known set are initialized lazily.
func (s *Store) UpdateAgentStatus(st AgentStatus) {
	s.mu.Lock()
	if s.terminalLocked() || st.Name == "" {
		s.mu.Unlock()
		return
	}
	if _, known := s.agents[st.Name]; !known {
		s.agentOrder = append(s.agentOrder, st.Name)
	}
	s.agents[st.Name] = st
	s.mu.Unlock()
	s.notify()
}

// AddGraphNode appends a node unless its id is already present. Idempotent.
func (s *Store) AddGraphNode(n api.GraphNode) {
	s.mu.Lock()
	if s.terminalLocked() || n.ID == "" {
		s.mu.Unlock()
		return
	}
	if _, dup := s.nodeIDs[n.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.nodeIDs[n.ID] = struct{}{}
	s.nodes = append(s.nodes, n)
	s.mu.Unlock()
	s.notify()
}

// AddGraphEdge appends an edge unless its id is already present. The edge is
// stored even when its endpoints have not arrived yet; materialization in the
// render target is the builder's concern.
func (s *Store) AddGraphEdge(e api.GraphEdge) {
	s.mu.Lock()
	if s.terminalLocked() || e.ID == "" {
		s.mu.Unlock()
		return
	}
	if _, dup := s.edgeIDs[e.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.edgeIDs[e.ID] = struct{}{}
	s.edges = append(s.edges, e)
	s.mu.Unlock()
	s.notify()
}

// AddLiveFinding appends to the advisory feed, evicting the oldest past the
// bound. Duplicate ids are allowed; this feed is not authoritative.
func (s *Store) AddLiveFinding(f LiveFinding) {
	s.mu.Lock()
	if s.terminalLocked() {
		s.mu.Unlock()
		return
	}
	s.live = append(s.live, f)
	if len(s.live) > liveFeedLimit {
		s.live = s.live[len(s.live)-liveFeedLimit:]
	}
	s.mu.Unlock()
	s.notify()
}

// AddInsight appends a free-form agent observation to its bounded feed.
func (s *Store) AddInsight(msg string) {
	s.mu.Lock()
	if s.terminalLocked() || msg == "" {
		s.mu.Unlock()
		return
	}
	s.insights = append(s.insights, msg)
	if len(s.insights) > liveFeedLimit {
		s.insights = s.insights[len(s.insights)-liveFeedLimit:]
	}
	s.mu.Unlock()
	s.notify()
}

// SetComplete merges the final score and summary into the result and marks the
// session completed. A complete event racing an in-flight seed can arrive with
// no result present; rather than corrupting the store, a minimal result is
// synthesized.
func (s *Store) SetComplete(score api.HealthScore, summary api.FindingsSummary, durationSec int) {
	s.mu.Lock()
	if s.terminalLocked() {
		s.mu.Unlock()
		return
	}
	if s.result == nil {
		log.Printf("session: complete observed before snapshot seed for %s, synthesizing result", s.analysisID)
		s.result = &api.AnalysisResult{AnalysisID: s.analysisID}
	}
	s.result.HealthScore = &score
	s.result.Findings = summary
	s.result.Timestamps.Duration = durationSec
	s.result.Status = api.StatusCompleted
	s.status = api.StatusCompleted
	s.mu.Unlock()
	s.notify()
}

// SetFailed marks the session terminally failed. Later stream events for this
// session are discarded. A session that already reached a terminal state keeps
// it: completed never degrades to failed.
func (s *Store) SetFailed(message string) {
	s.mu.Lock()
	if s.terminalLocked() {
		s.mu.Unlock()
		return
	}
	s.status = api.StatusFailed
	s.errMsg = message
	if s.result != nil {
		s.result.Status = api.StatusFailed
	}
	s.mu.Unlock()
	s.notify()
}

// SetResult replaces the result wholesale from a snapshot fetch. This is the
// only transition that takes its status from outside the stream.
func (s *Store) SetResult(result api.AnalysisResult) {
	s.mu.Lock()
	r := result
	s.result = &r
	s.status = result.Status
	if result.AnalysisID != "" {
		s.analysisID = result.AnalysisID
	}
	s.mu.Unlock()
	s.notify()
}

// SeedGraph bulk-loads graph state fetched from the service, bypassing the
// terminal-session guard: a backfill after attaching to a completed analysis
// is the one legitimate graph write into a terminal session. Per-id
// idempotence still applies.
func (s *Store) SeedGraph(nodes []api.GraphNode, edges []api.GraphEdge) {
	s.mu.Lock()
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		if _, dup := s.nodeIDs[n.ID]; dup {
			continue
		}
		s.nodeIDs[n.ID] = struct{}{}
		s.nodes = append(s.nodes, n)
	}
	for _, e := range edges {
		if e.ID == "" {
			continue
		}
		if _, dup := s.edgeIDs[e.ID]; dup {
			continue
		}
		s.edgeIDs[e.ID] = struct{}{}
		s.edges = append(s.edges, e)
	}
	s.mu.Unlock()
	s.notify()
}

// SetFindings bulk-replaces the authoritative findings list.
func (s *Store) SetFindings(findings []api.Finding) {
	s.mu.Lock()
	s.findings = append([]api.Finding(nil), findings...)
	s.mu.Unlock()
	s.notify()
}

// SetFixes bulk-replaces the fixes and their summary.
func (s *Store) SetFixes(fixes []api.Fix, summary api.FixSummary) {
	s.mu.Lock()
	s.fixes = append([]api.Fix(nil), fixes...)
	s.fixSum = summary
	s.mu.Unlock()
	s.notify()
}

// SetChains bulk-replaces the vulnerability chains.
func (s *Store) SetChains(chains []api.VulnerabilityChain) {
	s.mu.Lock()
	s.chains = append([]api.VulnerabilityChain(nil), chains...)
	s.mu.Unlock()
	s.notify()
}

// SelectNode sets the selected graph node. Selecting a node clears any active
// chain highlight so the viewport focus is unambiguous; the finding selection
// is left untouched.
func (s *Store) SelectNode(id string) {
	s.mu.Lock()
	s.sel.NodeID = id
	if id != "" {
		s.sel.ChainID = ""
	}
	s.mu.Unlock()
	s.notify()
}

// SelectFinding sets the selected finding id.
func (s *Store) SelectFinding(id string) {
	s.mu.Lock()
	s.sel.FindingID = id
	s.mu.Unlock()
	s.notify()
}

// HighlightChain sets the highlighted chain id.
func (s *Store) HighlightChain(id string) {
	s.mu.Lock()
	s.sel.ChainID = id
	s.mu.Unlock()
	s.notify()
}

// SetGraphView switches the graph presentation mode.
func (s *Store) SetGraphView(mode ViewMode) {
	s.mu.Lock()
	s.viewMode = mode
	s.mu.Unlock()
	s.notify()
}

// SetSeverityFilter filters the findings view by severity; empty clears it.
func (s *Store) SetSeverityFilter(sev api.Severity) {
	s.mu.Lock()
	s.sel.SeverityFilter = sev
	s.mu.Unlock()
	s.notify()
}

// SetCategoryFilter filters the findings view by category; empty clears it.
func (s *Store) SetCategoryFilter(cat string) {
	s.mu.Lock()
	s.sel.CategoryFilter = cat
	s.mu.Unlock()
	s.notify()
}

// SetSearch sets the graph label search query; empty clears it.
func (s *Store) SetSearch(q string) {
	s.mu.Lock()
	s.sel.Search = q
	s.mu.Unlock()
	s.notify()
}

// --- Derived views ---

// AnalysisID returns the tracked analysis id.
func (s *Store) AnalysisID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analysisID
}

// Status returns the session lifecycle status.
func (s *Store) Status() api.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Mode derives the presentation mode. Status is the sole source of truth:
// all agents reporting complete does not flip the view until the session
// status itself is completed.
func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.status {
	case api.StatusCompleted:
		return ModeCompleted
	case api.StatusFailed:
		return ModeFailed
	default:
		return ModeScanning
	}
}

// ErrorMessage returns the terminal failure message, if any.
func (s *Store) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Result returns a copy of the current result, or nil before seeding.
func (s *Store) Result() *api.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

// AgentStatuses returns agent statuses in stable display order.
func (s *Store) AgentStatuses() []AgentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AgentStatus, 0, len(s.agentOrder))
	for _, name := range s.agentOrder {
		out = append(out, s.agents[name])
	}
	return out
}

// Graph returns a copy of the authoritative graph slice in arrival order.
func (s *Store) Graph() GraphSlice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return GraphSlice{
		Nodes: append([]api.GraphNode(nil), s.nodes...),
		Edges: append([]api.GraphEdge(nil), s.edges...),
	}
}

// LiveFindings returns the advisory feed, oldest first.
func (s *Store) LiveFindings() []LiveFinding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LiveFinding(nil), s.live...)
}

// Insights returns the bounded insight feed, oldest first.
func (s *Store) Insights() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.insights...)
}

// Findings returns the authoritative findings filtered by the active
// severity and category filters.
func (s *Store) Findings() []api.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Finding, 0, len(s.findings))
	for _, f := range s.findings {
		if s.sel.SeverityFilter != "" && f.Severity != s.sel.SeverityFilter {
			continue
		}
		if s.sel.CategoryFilter != "" && f.Type != s.sel.CategoryFilter {
			continue
		}
		out = append(out, f)
	}
	return out
}

// AllFindings returns the unfiltered authoritative findings.
func (s *Store) AllFindings() []api.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Finding(nil), s.findings...)
}

// Fixes returns the generated fixes and their summary.
func (s *Store) Fixes() ([]api.Fix, api.FixSummary) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.Fix(nil), s.fixes...), s.fixSum
}

// Chains returns the vulnerability chains.
func (s *Store) Chains() []api.VulnerabilityChain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.VulnerabilityChain(nil), s.chains...)
}

// Selection returns the UI-state snapshot.
func (s *Store) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// ViewMode returns the active graph view mode.
func (s *Store) ViewMode() ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewMode
}
