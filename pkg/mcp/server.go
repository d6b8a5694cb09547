// Package mcp exposes the analysis service to Model Context Protocol clients,
// so coding agents can submit repositories and read back findings without
// driving the TUI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/repopulse/repopulse/pkg/api"
)

// Server adapts the analysis API to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *api.Client
}

// NewServer creates a new MCP server instance over the given API endpoint.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"repopulse",
			"1.0.0",
		),
		apiClient: api.NewClient(apiURL),
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"start_analysis",
		mcp.WithDescription("Submit a repository URL for analysis. Returns the analysis id to poll."),
		mcp.WithString("repo_url", mcp.Required(), mcp.Description("Public repository URL (e.g., https://github.com/owner/name)")),
		mcp.WithString("branch", mcp.Description("Branch to analyze (default: repository default branch)")),
		mcp.WithNumber("max_files", mcp.Description("Cap on the number of files to analyze")),
	), s.handleStartAnalysis)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_analysis",
		mcp.WithDescription("Fetch the current snapshot of an analysis: status, health score, finding counts."),
		mcp.WithString("analysis_id", mcp.Required(), mcp.Description("The analysis id returned by start_analysis")),
	), s.handleGetAnalysis)

	s.mcpServer.AddTool(mcp.NewTool(
		"list_findings",
		mcp.WithDescription("List findings for a completed analysis, optionally filtered by severity or agent."),
		mcp.WithString("analysis_id", mcp.Required(), mcp.Description("The analysis id")),
		mcp.WithString("severity", mcp.Description("Filter: critical, warning or info")),
		mcp.WithString("agent", mcp.Description("Filter by originating agent (e.g., 'security')")),
		mcp.WithNumber("limit", mcp.Description("Max findings to return (default 50)")),
	), s.handleListFindings)

	s.mcpServer.AddTool(mcp.NewTool(
		"list_fixes",
		mcp.WithDescription("List generated fixes for a completed analysis, highest priority first."),
		mcp.WithString("analysis_id", mcp.Required(), mcp.Description("The analysis id")),
	), s.handleListFixes)

	s.mcpServer.AddTool(mcp.NewTool(
		"list_chains",
		mcp.WithDescription("List detected vulnerability chains (multi-step attack paths)."),
		mcp.WithString("analysis_id", mcp.Required(), mcp.Description("The analysis id")),
	), s.handleListChains)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"repopulse-aware",
		mcp.WithPromptDescription("Provides context about repopulse concepts (analyses, findings, chains, fixes)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleStartAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoURL := mcp.ParseString(request, "repo_url", "")
	branch := mcp.ParseString(request, "branch", "")
	maxFiles := mcp.ParseFloat64(request, "max_files", 0)

	if repoURL == "" {
		return mcp.NewToolResultError("repo_url is required"), nil
	}

	resp, err := s.apiClient.Analyze(ctx, api.AnalyzeRequest{
		RepoURL:  repoURL,
		Branch:   branch,
		MaxFiles: int(maxFiles),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	msg := fmt.Sprintf("Analysis started.\nID: %s\nRepo: %s\nStatus: %s\nEstimated duration: %ds",
		resp.AnalysisID, resp.RepoName, resp.Status, resp.EstimatedDuration)
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleGetAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "analysis_id", "")
	if id == "" {
		return mcp.NewToolResultError("analysis_id is required"), nil
	}

	result, err := s.apiClient.GetAnalysis(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	return jsonResult(result)
}

func (s *Server) handleListFindings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "analysis_id", "")
	if id == "" {
		return mcp.NewToolResultError("analysis_id is required"), nil
	}

	opts := api.FindingsOptions{
		Severity: api.Severity(mcp.ParseString(request, "severity", "")),
		Agent:    mcp.ParseString(request, "agent", ""),
		Limit:    int(mcp.ParseFloat64(request, "limit", 50)),
	}

	page, err := s.apiClient.GetFindings(ctx, id, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	return jsonResult(page)
}

func (s *Server) handleListFixes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "analysis_id", "")
	if id == "" {
		return mcp.NewToolResultError("analysis_id is required"), nil
	}

	fixes, err := s.apiClient.GetFixes(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	return jsonResult(fixes)
}

func (s *Server) handleListChains(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "analysis_id", "")
	if id == "" {
		return mcp.NewToolResultError("analysis_id is required"), nil
	}

	chains, err := s.apiClient.GetChains(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	return jsonResult(chains)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "repopulse-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with repopulse, a repository analysis service.

Concepts:
- Analysis: One asynchronous run over a repository. Submit with 'start_analysis',
  then poll 'get_analysis' until status is 'completed' or 'failed'.
- Finding: One issue discovered by a pipeline agent (security, quality, pattern, doctor).
- Vulnerability Chain: An ordered attack path connecting multiple findings.
- Fix: A generated remediation. Keystone fixes resolve more than one chain.

Analyses take a few minutes. Do not poll more than once every ten seconds.
When status is 'failed', report the failure; do not resubmit automatically.
`

	return mcp.NewGetPromptResult(
		"repopulse-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
