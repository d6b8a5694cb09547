package api

import "time"

// Status represents the lifecycle state of an analysis session.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusCloning    Status = "cloning"
	StatusMapping    Status = "mapping"
	StatusAnalyzing  Status = "analyzing"
	StatusCompleting Status = "completing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Severity classifies a finding or a graph node.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// AnalyzeRequest is the submission payload for a new analysis.
type AnalyzeRequest struct {
	RepoURL                  string `json:"repoUrl"`
	Branch                   string `json:"branch,omitempty"`
	Scope                    string `json:"scope,omitempty"`
	MaxFiles                 int    `json:"maxFiles,omitempty"`
	UseCrossRepoIntelligence bool   `json:"useCrossRepoIntelligence"`
}

// AnalyzeResponse acknowledges a submission.
type AnalyzeResponse struct {
	AnalysisID        string `json:"analysisId"`
	Status            Status `json:"status"`
	RepoName          string `json:"repoName"`
	EstimatedDuration int    `json:"estimatedDuration"`
	WebsocketURL      string `json:"websocketUrl"`
}

// CategoryScore is one axis of the health score breakdown.
type CategoryScore struct {
	Score  int    `json:"score"`
	Max    int    `json:"max"`
	Status string `json:"status"`
}

// HealthScore is the aggregate repository grade computed on completion.
type HealthScore struct {
	Overall     int                      `json:"overall"`
	LetterGrade string                   `json:"letterGrade"`
	Breakdown   map[string]CategoryScore `json:"breakdown,omitempty"`
	Confidence  float64                  `json:"confidence,omitempty"`
}

// FindingsSummary counts findings by severity.
type FindingsSummary struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Timestamps carries the lifecycle timing of an analysis.
type Timestamps struct {
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Duration    int        `json:"duration,omitempty"` // seconds
}

// DetectedStack describes the languages and tooling found in the repo.
type DetectedStack struct {
	Languages      []string `json:"languages,omitempty"`
	Frameworks     []string `json:"frameworks,omitempty"`
	PackageManager string   `json:"packageManager,omitempty"`
	BuildSystem    string   `json:"buildSystem,omitempty"`
}

// RepoStats are the raw counts gathered during mapping.
type RepoStats struct {
	TotalFiles        int `json:"totalFiles"`
	TotalLines        int `json:"totalLines"`
	TotalDependencies int `json:"totalDependencies"`
	TotalFunctions    int `json:"totalFunctions"`
	TotalEndpoints    int `json:"totalEndpoints"`
}

// AnalysisResult is the snapshot of an analysis as the service knows it.
// HealthScore stays nil until the analysis completes.
type AnalysisResult struct {
	AnalysisID          string          `json:"analysisId"`
	Status              Status          `json:"status"`
	RepoURL             string          `json:"repoUrl"`
	RepoName            string          `json:"repoName"`
	Branch              string          `json:"branch"`
	DetectedStack       *DetectedStack  `json:"detectedStack,omitempty"`
	Stats               *RepoStats      `json:"stats,omitempty"`
	HealthScore         *HealthScore    `json:"healthScore,omitempty"`
	Findings            FindingsSummary `json:"findings"`
	VulnerabilityChains int             `json:"vulnerabilityChains"`
	FixesGenerated      int             `json:"fixesGenerated"`
	Timestamps          Timestamps      `json:"timestamps"`
}

// FindingLocation pins a finding to source files.
type FindingLocation struct {
	Files       []string `json:"files,omitempty"`
	PrimaryFile string   `json:"primaryFile,omitempty"`
	StartLine   int      `json:"startLine,omitempty"`
	EndLine     int      `json:"endLine,omitempty"`
}

// BlastRadius summarizes the reach of a finding or chain.
type BlastRadius struct {
	FilesAffected     int `json:"filesAffected"`
	FunctionsAffected int `json:"functionsAffected"`
	EndpointsAffected int `json:"endpointsAffected"`
}

// CVEInfo links a finding to a published vulnerability.
type CVEInfo struct {
	ID               string  `json:"id"`
	CVSSScore        float64 `json:"cvssScore,omitempty"`
	ExploitAvailable bool    `json:"exploitAvailable,omitempty"`
	FixedVersion     string  `json:"fixedVersion,omitempty"`
}

// Finding is an authoritative analysis result, immutable for the session.
type Finding struct {
	ID               string          `json:"id"`
	Type             string          `json:"type"`
	Severity         Severity        `json:"severity"`
	Agent            string          `json:"agent"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	PlainDescription string          `json:"plainDescription,omitempty"`
	Location         FindingLocation `json:"location"`
	BlastRadius      BlastRadius     `json:"blastRadius"`
	CVE              *CVEInfo        `json:"cve,omitempty"`
	ChainIDs         []string        `json:"chainIds,omitempty"`
	FixID            string          `json:"fixId,omitempty"`
	Confidence       float64         `json:"confidence,omitempty"`
}

// FindingsPage is one page of the findings listing.
type FindingsPage struct {
	Items  []Finding `json:"items"`
	Total  int       `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

// ChainStep is one hop of an attack path: entry, flow, vulnerability or impact.
type ChainStep struct {
	Type        string `json:"type"`
	Node        string `json:"node"`
	File        string `json:"file,omitempty"`
	CVE         string `json:"cve,omitempty"`
	Description string `json:"description"`
}

// VulnerabilityChain is an ordered attack path with its blast radius.
type VulnerabilityChain struct {
	ID          string         `json:"id"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Steps       []ChainStep    `json:"steps,omitempty"`
	BlastRadius map[string]int `json:"blastRadius,omitempty"`
	KeystoneFix string         `json:"keystoneFix,omitempty"`
	FindingIDs  []string       `json:"findingIds,omitempty"`
}

// ChainsResponse is the chains listing.
type ChainsResponse struct {
	Chains []VulnerabilityChain `json:"chains"`
	Total  int                  `json:"total"`
}

// AffectedCode is a snippet reference inside fix documentation.
type AffectedCode struct {
	File    string `json:"file"`
	Lines   string `json:"lines"`
	Context string `json:"context"`
}

// FixDocumentation is the human-readable remediation guide for a fix.
type FixDocumentation struct {
	WhatsWrong   string         `json:"whatsWrong,omitempty"`
	AffectedCode []AffectedCode `json:"affectedCode,omitempty"`
	Steps        []string       `json:"steps,omitempty"`
	BeforeCode   string         `json:"beforeCode,omitempty"`
	AfterCode    string         `json:"afterCode,omitempty"`
}

// Fix is a generated remediation, ordered by priority.
type Fix struct {
	ID               string           `json:"id"`
	Priority         int              `json:"priority"`
	Title            string           `json:"title"`
	Severity         Severity         `json:"severity"`
	Type             string           `json:"type"`
	EstimatedEffort  string           `json:"estimatedEffort,omitempty"`
	ChainsResolved   int              `json:"chainsResolved"`
	FindingsResolved []string         `json:"findingsResolved,omitempty"`
	Documentation    FixDocumentation `json:"documentation"`
}

// FixSummary rolls up the fix list. Keystone fixes resolve more than one chain.
type FixSummary struct {
	TotalFixes                  int    `json:"totalFixes"`
	CriticalFixes               int    `json:"criticalFixes"`
	EstimatedTotalEffort        string `json:"estimatedTotalEffort"`
	KeystoneFixes               int    `json:"keystoneFixes"`
	ChainsEliminatedByKeystones int    `json:"chainsEliminatedByKeystones"`
}

// FixesResponse is the fixes listing plus its summary.
type FixesResponse struct {
	Fixes   []Fix      `json:"fixes"`
	Summary FixSummary `json:"summary"`
}

// GraphNode is one vertex of the repository graph.
type GraphNode struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"` // file|directory|function|class|package|endpoint
	Label        string   `json:"label"`
	Path         string   `json:"path,omitempty"`
	Category     string   `json:"category,omitempty"`
	Severity     Severity `json:"severity,omitempty"`
	FindingCount int      `json:"findingCount"`
}

// GraphEdge is one directed relation of the repository graph.
type GraphEdge struct {
	ID                   string `json:"id"`
	Source               string `json:"source"`
	Target               string `json:"target"`
	Type                 string `json:"type"` // contains|imports|depends_on|calls|handles
	IsVulnerabilityChain bool   `json:"isVulnerabilityChain,omitempty"`
	ChainID              string `json:"chainId,omitempty"`
}

// GraphResponse is the full graph for one view mode.
type GraphResponse struct {
	Nodes  []GraphNode       `json:"nodes"`
	Edges  []GraphEdge       `json:"edges"`
	Layout map[string]string `json:"layout,omitempty"`
}

// FindingsOptions filters the findings listing.
type FindingsOptions struct {
	Severity Severity
	Agent    string
	Limit    int
	Offset   int
}
