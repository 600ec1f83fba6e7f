package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/pipeline"
	"github.com/joescharf/triage/internal/provider"
	"github.com/joescharf/triage/internal/store"
)

// Server wraps the triage data layer and exposes it as MCP tools.
type Server struct {
	store    store.Store
	orch     *pipeline.Orchestrator
	registry *provider.Registry
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, orch *pipeline.Orchestrator, registry *provider.Registry) *Server {
	return &Server{
		store:    s,
		orch:     orch,
		registry: registry,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("triage", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.issueDetailTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.listFeedbackTool())
	srv.AddTool(s.runPipelineTool())
	srv.AddTool(s.providerStatusTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

type issueOut struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Category        string  `json:"category"`
	Status          string  `json:"status"`
	Priority        string  `json:"priority"`
	BaseSeverity    float64 `json:"base_severity"`
	CurrentSeverity float64 `json:"current_severity"`
	Sentiment       string  `json:"sentiment"`
	FeedbackCount   int     `json:"feedback_count"`
	AssignedTo      string  `json:"assigned_to,omitempty"`
	FirstReportedAt string  `json:"first_reported_at"`
	LastFeedbackAt  string  `json:"last_feedback_at"`
}

func issueToOut(issue *models.Issue) issueOut {
	return issueOut{
		ID:              issue.ID,
		Title:           issue.Title,
		Category:        string(issue.Category),
		Status:          string(issue.Status),
		Priority:        string(issue.Priority),
		BaseSeverity:    issue.BaseSeverity,
		CurrentSeverity: issue.CurrentSeverity,
		Sentiment:       string(issue.Sentiment),
		FeedbackCount:   issue.FeedbackCount,
		AssignedTo:      issue.AssignedTo,
		FirstReportedAt: issue.FirstReportedAt.Format(time.RFC3339),
		LastFeedbackAt:  issue.LastFeedbackAt.Format(time.RFC3339),
	}
}

// triage_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_list_issues",
		mcp.WithDescription("List triaged issues sorted by current severity. Each issue is a cluster of related feedback with a 0-10 severity score and a priority tier."),
		mcp.WithString("status", mcp.Description("Status filter: new, triaged, in_progress, resolved, closed, wont_fix")),
		mcp.WithString("priority", mcp.Description("Priority filter: critical, high, medium, low")),
		mcp.WithString("category", mcp.Description("Category filter: bug, feature_request, complaint, question, praise, other")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.IssueListFilter{
		Status:   models.IssueStatus(request.GetString("status", "")),
		Priority: models.Priority(request.GetString("priority", "")),
		Category: models.Category(request.GetString("category", "")),
	}

	issues, err := s.store.ListIssues(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list issues: %v", err)), nil
	}

	out := make([]issueOut, len(issues))
	for i, issue := range issues {
		out[i] = issueToOut(issue)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// triage_issue_detail
func (s *Server) issueDetailTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_issue_detail",
		mcp.WithDescription("Get one issue with its linked feedback items and action history. Accepts a full ULID or a unique prefix."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
	)
	return tool, s.handleIssueDetail
}

func (s *Server) handleIssueDetail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("issue not found: %s", issueID)), nil
	}

	links, _ := s.store.ListIssueFeedback(ctx, issue.ID)
	feedback := make([]map[string]any, 0, len(links))
	for _, link := range links {
		item, err := s.store.GetFeedbackItem(ctx, link.FeedbackID)
		if err != nil {
			continue
		}
		feedback = append(feedback, map[string]any{
			"id":               item.ID,
			"provider_id":      item.ProviderID,
			"author":           item.AuthorName,
			"title":            item.Title,
			"summary":          item.Summary,
			"sentiment":        string(item.Sentiment),
			"similarity_score": link.SimilarityScore,
			"source_url":       item.SourceURL,
		})
	}

	actions, _ := s.store.ListActions(ctx, issue.ID)
	actionsOut := make([]map[string]any, len(actions))
	for i, a := range actions {
		actionsOut[i] = map[string]any{
			"id":           a.ID,
			"type":         string(a.Type),
			"status":       string(a.Status),
			"performed_by": a.PerformedBy,
			"created_at":   a.CreatedAt.Format(time.RFC3339),
		}
	}

	result := map[string]any{
		"issue":      issueToOut(issue),
		"summary":    issue.Summary,
		"resolution": issue.Resolution,
		"feedback":   feedback,
		"actions":    actionsOut,
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// triage_update_issue
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_update_issue",
		mcp.WithDescription("Update an issue's status, assignee, or resolution. Records an action for every change. Provide at least one field."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue ID (full ULID or unique prefix)")),
		mcp.WithString("status", mcp.Description("New status: new, triaged, in_progress, resolved, closed, wont_fix")),
		mcp.WithString("assigned_to", mcp.Description("Assignee email or id")),
		mcp.WithString("resolution", mcp.Description("Resolution text (implies status=resolved unless status is also given)")),
	)
	return tool, s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	issue, err := s.findIssue(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("issue not found: %s", issueID)), nil
	}

	status := request.GetString("status", "")
	assignee := request.GetString("assigned_to", "")
	resolution := request.GetString("resolution", "")
	if status == "" && assignee == "" && resolution == "" {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: status, assigned_to, resolution"), nil
	}

	if resolution != "" && status == "" {
		status = string(models.IssueStatusResolved)
	}

	var actions []*models.Action
	if status != "" {
		newStatus := models.IssueStatus(status)
		switch newStatus {
		case models.IssueStatusNew, models.IssueStatusTriaged, models.IssueStatusInProgress,
			models.IssueStatusResolved, models.IssueStatusClosed, models.IssueStatusWontFix:
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", status)), nil
		}
		actions = append(actions, &models.Action{
			IssueID: issue.ID,
			Type:    models.ActionTypeStatusChange,
			Payload: map[string]string{"from": string(issue.Status), "to": status},
			Status:  models.ActionStatusCompleted,
		})
		issue.Status = newStatus
		if newStatus.Terminal() && issue.ResolvedAt == nil {
			now := time.Now().UTC()
			issue.ResolvedAt = &now
		}
	}
	if assignee != "" {
		actions = append(actions, &models.Action{
			IssueID: issue.ID,
			Type:    models.ActionTypeAssignment,
			Payload: map[string]string{"assigned_to": assignee},
			Status:  models.ActionStatusCompleted,
		})
		issue.AssignedTo = assignee
	}
	if resolution != "" {
		actions = append(actions, &models.Action{
			IssueID: issue.ID,
			Type:    models.ActionTypeResolution,
			Payload: map[string]string{"resolution": resolution},
			Status:  models.ActionStatusCompleted,
		})
		issue.Resolution = resolution
	}

	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update issue: %v", err)), nil
	}
	for _, a := range actions {
		_ = s.store.CreateAction(ctx, a)
	}

	data, err := json.Marshal(issueToOut(issue))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issue: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// triage_list_feedback
func (s *Server) listFeedbackTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_list_feedback",
		mcp.WithDescription("List raw feedback items, optionally filtered by provider and processed state."),
		mcp.WithString("provider", mcp.Description("Provider id to filter by (e.g. discord, github)")),
		mcp.WithString("processed", mcp.Description("Filter: 'true' for classified items, 'false' for backlog")),
	)
	return tool, s.handleListFeedback
}

func (s *Server) handleListFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.FeedbackListFilter{
		ProviderID: request.GetString("provider", ""),
	}
	switch request.GetString("processed", "") {
	case "true":
		v := true
		filter.Processed = &v
	case "false":
		v := false
		filter.Processed = &v
	}

	items, err := s.store.ListFeedback(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list feedback: %v", err)), nil
	}

	out := make([]map[string]any, len(items))
	for i, item := range items {
		out[i] = map[string]any{
			"id":                item.ID,
			"provider_id":       item.ProviderID,
			"external_id":       item.ExternalID,
			"author":            item.AuthorName,
			"title":             item.Title,
			"content":           item.Content,
			"processed":         item.Processed,
			"summary":           item.Summary,
			"category":          string(item.Category),
			"sentiment":         string(item.Sentiment),
			"source_created_at": item.SourceCreatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal feedback: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// triage_run_pipeline
func (s *Server) runPipelineTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_run_pipeline",
		mcp.WithDescription("Run the full triage pipeline: fetch from all providers, classify and group new feedback into issues, then re-age severity for open issues. Returns run counts."),
		mcp.WithString("provider", mcp.Description("Run ingestion for a single provider id only, skipping classification")),
	)
	return tool, s.handleRunPipeline
}

func (s *Server) handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if providerID := request.GetString("provider", ""); providerID != "" {
		n, err := s.orch.IngestFromProvider(ctx, providerID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, _ := json.Marshal(map[string]any{"provider": providerID, "ingested": n})
		return mcp.NewToolResultText(string(data)), nil
	}

	res, err := s.orch.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pipeline run failed: %v", err)), nil
	}

	providerErrs := make(map[string]string, len(res.ProviderErrors))
	for id, err := range res.ProviderErrors {
		providerErrs[id] = err.Error()
	}

	data, _ := json.Marshal(map[string]any{
		"ingested":        res.Ingested,
		"duplicates":      res.Duplicates,
		"processed":       res.Processed,
		"failed":          res.Failed,
		"fallbacks":       res.Fallbacks,
		"issues_created":  res.IssuesCreated,
		"recalculated":    res.Recalculated,
		"provider_errors": providerErrs,
	})
	return mcp.NewToolResultText(string(data)), nil
}

// triage_provider_status
func (s *Server) providerStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("triage_provider_status",
		mcp.WithDescription("Show every registered feedback provider with its health and last sync time."),
	)
	return tool, s.handleProviderStatus
}

func (s *Server) handleProviderStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := []map[string]any{}
	for _, src := range s.registry.All() {
		status := src.Status()
		entry := map[string]any{
			"id":      src.ID(),
			"name":    src.Name(),
			"type":    string(src.Type()),
			"healthy": status.Healthy,
		}
		if status.LastSync != nil {
			entry["last_sync"] = status.LastSync.Format(time.RFC3339)
		}
		if p, err := s.store.GetProvider(ctx, src.ID()); err == nil {
			entry["status"] = string(p.Status)
			if p.LastSyncAt != nil {
				entry["last_sync"] = p.LastSyncAt.Format(time.RFC3339)
			}
		}
		out = append(out, entry)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal providers: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// findIssue finds an issue by full ID or unique prefix.
func (s *Server) findIssue(ctx context.Context, id string) (*models.Issue, error) {
	if issue, err := s.store.GetIssue(ctx, id); err == nil {
		return issue, nil
	}

	upper := strings.ToUpper(id)
	issues, err := s.store.ListIssues(ctx, store.IssueListFilter{})
	if err != nil {
		return nil, err
	}

	var matches []*models.Issue
	for _, issue := range issues {
		if strings.HasPrefix(issue.ID, upper) {
			matches = append(matches, issue)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("issue not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous issue ID %s: matches %d issues", id, len(matches))
	}
}
