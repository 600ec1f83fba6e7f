package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/output"
	"github.com/joescharf/triage/internal/store"
)

var (
	issueStatus   string
	issuePriority string
	issueCategory string
	issueLimit    int
	issueResolve  string
	issueAssignee string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Inspect and manage triaged issues",
	Long:  "Issues are clusters of related feedback, ranked by current severity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details with linked feedback and action history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(cmd.Context(), args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update an issue's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(cmd.Context(), args[0])
	},
}

var issueResolveCmd = &cobra.Command{
	Use:   "resolve <issue-id>",
	Short: "Mark an issue resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueResolveRun(cmd.Context(), args[0])
	},
}

var issueAssignCmd = &cobra.Command{
	Use:   "assign <issue-id>",
	Short: "Assign an issue to a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAssignRun(cmd.Context(), args[0])
	},
}

func init() {
	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status: new, triaged, in_progress, resolved, closed, wont_fix")
	issueListCmd.Flags().StringVar(&issuePriority, "priority", "", "Filter by priority: critical, high, medium, low")
	issueListCmd.Flags().StringVar(&issueCategory, "category", "", "Filter by category: bug, feature_request, complaint, question, praise, other")
	issueListCmd.Flags().IntVar(&issueLimit, "limit", 0, "Limit number of issues shown")

	issueUpdateCmd.Flags().StringVar(&issueStatus, "status", "", "New status (required)")
	_ = issueUpdateCmd.MarkFlagRequired("status")

	issueResolveCmd.Flags().StringVar(&issueResolve, "resolution", "", "Resolution text")

	issueAssignCmd.Flags().StringVar(&issueAssignee, "to", "", "Assignee email or name; must be a known user (required)")
	_ = issueAssignCmd.MarkFlagRequired("to")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueResolveCmd)
	issueCmd.AddCommand(issueAssignCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	issues, err := s.ListIssues(ctx, store.IssueListFilter{
		Status:   models.IssueStatus(issueStatus),
		Priority: models.Priority(issuePriority),
		Category: models.Category(issueCategory),
		Limit:    issueLimit,
	})
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		ui.Info("No issues found")
		return nil
	}

	table := ui.Table([]string{"ID", "Severity", "Priority", "Status", "Category", "Count", "Title"})
	for _, issue := range issues {
		table.Append([]string{
			shortID(issue.ID),
			output.SeverityColor(issue.CurrentSeverity),
			output.PriorityColor(string(issue.Priority)),
			output.StatusColor(string(issue.Status)),
			string(issue.Category),
			fmt.Sprintf("%d", issue.FeedbackCount),
			issue.Title,
		})
	}
	return table.Render()
}

func issueShowRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	issue, err := findIssue(ctx, s, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(issue.ID), issue.Title)
	fmt.Fprintf(ui.Out, "  Status:    %s\n", output.StatusColor(string(issue.Status)))
	fmt.Fprintf(ui.Out, "  Priority:  %s\n", output.PriorityColor(string(issue.Priority)))
	fmt.Fprintf(ui.Out, "  Severity:  %s (base %.2f)\n", output.SeverityColor(issue.CurrentSeverity), issue.BaseSeverity)
	fmt.Fprintf(ui.Out, "  Category:  %s\n", issue.Category)
	fmt.Fprintf(ui.Out, "  Sentiment: %s (%.2f)\n", issue.Sentiment, issue.SentimentScore)
	fmt.Fprintf(ui.Out, "  Reports:   %d (first %s, last %s)\n",
		issue.FeedbackCount,
		issue.FirstReportedAt.Format("2006-01-02"),
		issue.LastFeedbackAt.Format("2006-01-02"))
	if issue.AssignedTo != "" {
		fmt.Fprintf(ui.Out, "  Assignee:  %s\n", issue.AssignedTo)
	}
	if issue.Resolution != "" {
		fmt.Fprintf(ui.Out, "  Resolution: %s\n", issue.Resolution)
	}
	if issue.Summary != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", issue.Summary)
	}

	links, err := s.ListIssueFeedback(ctx, issue.ID)
	if err != nil {
		return err
	}
	if len(links) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Feedback", "Provider", "Author", "Score", "Summary"})
		for _, link := range links {
			item, err := s.GetFeedbackItem(ctx, link.FeedbackID)
			if err != nil {
				continue
			}
			summary := item.Summary
			if summary == "" {
				summary = item.Content
			}
			if len(summary) > 60 {
				summary = summary[:60] + "..."
			}
			table.Append([]string{
				shortID(item.ID),
				item.ProviderID,
				item.AuthorName,
				fmt.Sprintf("%.2f", link.SimilarityScore),
				summary,
			})
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	actions, err := s.ListActions(ctx, issue.ID)
	if err != nil {
		return err
	}
	if len(actions) > 0 {
		fmt.Fprintln(ui.Out)
		for _, a := range actions {
			fmt.Fprintf(ui.Out, "  %s  %-14s %s  %s\n",
				a.CreatedAt.Format("2006-01-02 15:04"),
				a.Type, a.Status, a.PerformedBy)
		}
	}
	return nil
}

func issueUpdateRun(ctx context.Context, id string) error {
	newStatus := models.IssueStatus(issueStatus)
	switch newStatus {
	case models.IssueStatusNew, models.IssueStatusTriaged, models.IssueStatusInProgress,
		models.IssueStatusResolved, models.IssueStatusClosed, models.IssueStatusWontFix:
	default:
		return fmt.Errorf("invalid status: %s", issueStatus)
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	issue, err := findIssue(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would change issue %s status %s -> %s", shortID(issue.ID), issue.Status, newStatus)
		return nil
	}

	prev := issue.Status
	issue.Status = newStatus
	if newStatus.Terminal() && issue.ResolvedAt == nil {
		now := time.Now().UTC()
		issue.ResolvedAt = &now
	}
	if err := s.UpdateIssue(ctx, issue); err != nil {
		return err
	}
	_ = s.CreateAction(ctx, &models.Action{
		IssueID: issue.ID,
		Type:    models.ActionTypeStatusChange,
		Payload: map[string]string{"from": string(prev), "to": string(newStatus)},
		Status:  models.ActionStatusCompleted,
	})

	ui.Success("Issue %s: %s -> %s", shortID(issue.ID), prev, newStatus)
	return nil
}

func issueResolveRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	issue, err := findIssue(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would resolve issue %s", shortID(issue.ID))
		return nil
	}

	now := time.Now().UTC()
	issue.Status = models.IssueStatusResolved
	issue.Resolution = issueResolve
	issue.ResolvedAt = &now
	if err := s.UpdateIssue(ctx, issue); err != nil {
		return err
	}
	_ = s.CreateAction(ctx, &models.Action{
		IssueID: issue.ID,
		Type:    models.ActionTypeResolution,
		Payload: map[string]string{"resolution": issueResolve},
		Status:  models.ActionStatusCompleted,
	})

	ui.Success("Issue %s resolved", shortID(issue.ID))
	return nil
}

func issueAssignRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	issue, err := findIssue(ctx, s, id)
	if err != nil {
		return err
	}

	assignee, err := findUser(ctx, s, issueAssignee)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would assign issue %s to %s", shortID(issue.ID), assignee.Email)
		return nil
	}

	issue.AssignedTo = assignee.Email
	if issue.Status == models.IssueStatusNew {
		issue.Status = models.IssueStatusTriaged
	}
	if err := s.UpdateIssue(ctx, issue); err != nil {
		return err
	}
	_ = s.CreateAction(ctx, &models.Action{
		IssueID: issue.ID,
		Type:    models.ActionTypeAssignment,
		Payload: map[string]string{"assigned_to": assignee.Email},
		Status:  models.ActionStatusCompleted,
	})

	ui.Success("Issue %s assigned to %s", shortID(issue.ID), assignee.Email)
	return nil
}

// findIssue resolves an issue by full ULID or unique prefix.
func findIssue(ctx context.Context, s store.Store, id string) (*models.Issue, error) {
	if issue, err := s.GetIssue(ctx, id); err == nil {
		return issue, nil
	}

	upper := strings.ToUpper(id)
	issues, err := s.ListIssues(ctx, store.IssueListFilter{})
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

// shortID truncates a ULID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
