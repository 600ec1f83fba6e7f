package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/output"
	"github.com/joescharf/triage/internal/store"
)

var (
	feedbackProvider    string
	feedbackUnprocessed bool
	feedbackLimit       int
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Inspect raw feedback items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return feedbackListRun(cmd.Context())
	},
}

var feedbackListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List feedback items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return feedbackListRun(cmd.Context())
	},
}

var feedbackShowCmd = &cobra.Command{
	Use:   "show <feedback-id>",
	Short: "Show one feedback item with its classification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return feedbackShowRun(cmd.Context(), args[0])
	},
}

func init() {
	feedbackListCmd.Flags().StringVar(&feedbackProvider, "provider", "", "Filter by provider id")
	feedbackListCmd.Flags().BoolVar(&feedbackUnprocessed, "unprocessed", false, "Show only the unclassified backlog")
	feedbackListCmd.Flags().IntVar(&feedbackLimit, "limit", 50, "Limit number of items shown")

	feedbackCmd.AddCommand(feedbackListCmd)
	feedbackCmd.AddCommand(feedbackShowCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func feedbackListRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	filter := store.FeedbackListFilter{
		ProviderID: feedbackProvider,
		Limit:      feedbackLimit,
	}
	if feedbackUnprocessed {
		v := false
		filter.Processed = &v
	}

	items, err := s.ListFeedback(ctx, filter)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		ui.Info("No feedback found")
		return nil
	}

	table := ui.Table([]string{"ID", "Provider", "Author", "Category", "Processed", "Title/Content"})
	for _, item := range items {
		label := item.Title
		if label == "" {
			label = item.Content
		}
		if len(label) > 60 {
			label = label[:60] + "..."
		}
		processed := "no"
		if item.Processed {
			processed = "yes"
		}
		table.Append([]string{
			shortID(item.ID),
			item.ProviderID,
			item.AuthorName,
			string(item.Category),
			processed,
			label,
		})
	}
	return table.Render()
}

func feedbackShowRun(ctx context.Context, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	item, err := findFeedback(ctx, s, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s/%s\n", output.Cyan(item.ID), item.ProviderID, item.ExternalID)
	if item.Title != "" {
		fmt.Fprintf(ui.Out, "  Title:     %s\n", item.Title)
	}
	fmt.Fprintf(ui.Out, "  Author:    %s\n", item.AuthorName)
	fmt.Fprintf(ui.Out, "  Created:   %s\n", item.SourceCreatedAt.Format("2006-01-02 15:04"))
	if item.SourceURL != "" {
		fmt.Fprintf(ui.Out, "  URL:       %s\n", item.SourceURL)
	}
	if item.Processed {
		fmt.Fprintf(ui.Out, "  Category:  %s\n", item.Category)
		fmt.Fprintf(ui.Out, "  Sentiment: %s (%.2f)\n", item.Sentiment, item.SentimentScore)
		if len(item.Keywords) > 0 {
			fmt.Fprintf(ui.Out, "  Keywords:  %s\n", strings.Join(item.Keywords, ", "))
		}
		if item.Summary != "" {
			fmt.Fprintf(ui.Out, "  Summary:   %s\n", item.Summary)
		}
	} else {
		fmt.Fprintf(ui.Out, "  Processed: %s\n", output.Yellow("pending"))
	}
	fmt.Fprintf(ui.Out, "\n%s\n", item.Content)
	return nil
}

// findFeedback resolves a feedback item by full ULID or unique prefix.
func findFeedback(ctx context.Context, s store.Store, id string) (*models.FeedbackItem, error) {
	if item, err := s.GetFeedbackItem(ctx, id); err == nil {
		return item, nil
	}

	upper := strings.ToUpper(id)
	items, err := s.ListFeedback(ctx, store.FeedbackListFilter{})
	if err != nil {
		return nil, err
	}

	var matches []*models.FeedbackItem
	for _, item := range items {
		if strings.HasPrefix(item.ID, upper) {
			matches = append(matches, item)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("feedback not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous feedback ID %s: matches %d items", id, len(matches))
	}
}
