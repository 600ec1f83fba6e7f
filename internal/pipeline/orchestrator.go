// Package pipeline sequences ingestion, classification, semantic grouping,
// and severity recompute over one batch run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/triage/internal/analyze"
	"github.com/joescharf/triage/internal/ingest"
	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/provider"
	"github.com/joescharf/triage/internal/severity"
	"github.com/joescharf/triage/internal/store"
	"github.com/joescharf/triage/internal/vectorindex"
)

const (
	// similarityThreshold is the minimum vector similarity required to merge
	// new feedback into an existing issue instead of creating a new one.
	similarityThreshold = 0.75

	// defaultBatchSize bounds how many unprocessed items one run classifies.
	defaultBatchSize = 100

	maxTitleLen = 100
)

// errStaleIndexEntry marks a vector match whose issue no longer exists in
// the store. It is the only link failure that may degrade to issue creation:
// it is detected before any row is written.
var errStaleIndexEntry = errors.New("stale index entry")

// Config wires the orchestrator's collaborators. Index may be nil, in which
// case every item creates a new issue (grouping degrades to "no match").
type Config struct {
	Store     store.Store
	Registry  *provider.Registry
	Analyzer  analyze.Analyzer
	Embed     analyze.EmbedFunc
	Index     vectorindex.Index
	BatchSize int
	Now       func() time.Time
}

// Orchestrator owns the create-or-link decision and every issue mutation
// the pipeline makes. Runs are serialized: the grouping step is a
// read-then-write sequence that is not safe under concurrent execution
// against the same candidate issue.
type Orchestrator struct {
	mu        sync.Mutex
	store     store.Store
	registry  *provider.Registry
	ingestion *ingest.Service
	analyzer  analyze.Analyzer
	embed     analyze.EmbedFunc
	index     vectorindex.Index
	batchSize int
	now       func() time.Time
}

func New(cfg Config) *Orchestrator {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		store:     cfg.Store,
		registry:  cfg.Registry,
		ingestion: ingest.NewService(cfg.Store),
		analyzer:  cfg.Analyzer,
		embed:     cfg.Embed,
		index:     cfg.Index,
		batchSize: batch,
		now:       now,
	}
}

// RunResult summarizes one full pipeline run. Per-item failures are
// aggregated into counts; provider fetch failures are reported by id.
type RunResult struct {
	Ingested       int
	Duplicates     int
	Processed      int
	Failed         int
	Fallbacks      int
	IssuesCreated  int
	Recalculated   int
	ProviderErrors map[string]error
}

// Run executes the three pipeline phases in order: ingest from every
// registered provider, classify and group a bounded batch of unprocessed
// feedback, then re-age severity for all open issues. Failure in one item
// or one provider never aborts its phase.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	res := &RunResult{}

	if err := o.runIngest(ctx, res); err != nil {
		return res, err
	}
	if err := o.runClassify(ctx, res); err != nil {
		return res, err
	}
	if err := o.runRecalculate(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// runIngest fans out to every registered provider. Sources are re-fetched
// from the beginning each run; ingest dedup makes that idempotent.
func (o *Orchestrator) runIngest(ctx context.Context, res *RunResult) error {
	results, errs := o.registry.FetchAll(ctx, nil)
	res.ProviderErrors = errs

	for _, fr := range results {
		src, err := o.registry.Get(fr.ProviderID)
		if err != nil {
			return err
		}
		ir, err := o.ingestion.Ingest(ctx, src, fr.Feedback)
		if err != nil {
			return fmt.Errorf("ingesting from %s: %w", fr.ProviderID, err)
		}
		res.Ingested += ir.New
		res.Duplicates += ir.Duplicates
	}
	return nil
}

// runClassify processes the unprocessed backlog oldest first, one item at a
// time. Classification failures degrade to the heuristic fallback; any other
// per-item failure is counted and skipped.
func (o *Orchestrator) runClassify(ctx context.Context, res *RunResult) error {
	items, err := o.store.UnprocessedFeedback(ctx, o.batchSize)
	if err != nil {
		return fmt.Errorf("loading unprocessed backlog: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		created, err := o.processItem(ctx, item, res)
		if err != nil {
			res.Failed++
			continue
		}
		res.Processed++
		if created {
			res.IssuesCreated++
		}
	}
	return nil
}

func (o *Orchestrator) processItem(ctx context.Context, item *models.FeedbackItem, res *RunResult) (createdIssue bool, err error) {
	analysis, err := o.analyzer.ProcessFeedback(ctx, item.Content, item.Title)
	if err != nil {
		analysis = analyze.Fallback(item.Content, item.Title)
		res.Fallbacks++
	}

	if err := o.store.MarkFeedbackProcessed(ctx, item.ID, analysis); err != nil {
		return false, fmt.Errorf("marking %s processed: %w", item.ID, err)
	}

	// Embedding failure yields an empty vector: the item still completes,
	// but without semantic grouping (new issue, not indexed).
	var vector []float32
	if o.embed != nil {
		text := analysis.Summary + " " + strings.Join(analysis.Keywords, " ")
		if v, err := o.embed(ctx, text); err == nil {
			vector = v
		}
	}

	if match, ok := o.findSimilarIssue(ctx, vector); ok {
		switch err := o.linkToIssue(ctx, match, item.ID, analysis); {
		case err == nil:
			return false, nil
		case errors.Is(err, errStaleIndexEntry):
			// The matched issue is gone; fall through to a new issue.
		default:
			// Once the link row may exist, creating instead would leave
			// feedback_count out of step with the link rows.
			return false, err
		}
	}

	if err := o.createIssue(ctx, item.ID, analysis, vector); err != nil {
		return false, err
	}
	return true, nil
}

// findSimilarIssue queries the top-1 nearest issue. A nil index, empty
// vector, or query error is treated identically to "no match".
func (o *Orchestrator) findSimilarIssue(ctx context.Context, vector []float32) (vectorindex.Match, bool) {
	if o.index == nil || len(vector) == 0 {
		return vectorindex.Match{}, false
	}
	matches, err := o.index.Query(ctx, vector, 1)
	if err != nil || len(matches) == 0 {
		return vectorindex.Match{}, false
	}
	if matches[0].Score < similarityThreshold {
		return vectorindex.Match{}, false
	}
	return matches[0], true
}

// linkToIssue attaches feedback to an existing issue and refreshes its
// severity with the higher feedback count. Base severity never decreases.
func (o *Orchestrator) linkToIssue(ctx context.Context, match vectorindex.Match, feedbackID string, analysis models.Analysis) error {
	issue, err := o.store.GetIssue(ctx, match.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("index entry %s has no issue: %w", match.ID, errStaleIndexEntry)
		}
		return err
	}

	now := o.now()
	if err := o.store.LinkFeedback(ctx, &models.IssueFeedbackLink{
		IssueID:         issue.ID,
		FeedbackID:      feedbackID,
		SimilarityScore: match.Score,
	}); err != nil {
		return fmt.Errorf("linking %s to issue %s: %w", feedbackID, issue.ID, err)
	}

	newCount := issue.FeedbackCount + 1
	sev := severity.Calculate(severity.Factors{
		SentimentScore:  analysis.SentimentScore,
		Urgency:         analysis.Urgency,
		FeedbackCount:   newCount,
		AffectedUsers:   newCount,
		Category:        analysis.Category,
		FirstReportedAt: issue.FirstReportedAt,
		LastFeedbackAt:  now,
	}, now)

	issue.FeedbackCount = newCount
	issue.BaseSeverity = math.Max(issue.BaseSeverity, sev.BaseSeverity)
	issue.CurrentSeverity = sev.CurrentSeverity
	issue.Priority = sev.Priority
	issue.LastFeedbackAt = now

	if err := o.store.UpdateIssue(ctx, issue); err != nil {
		return fmt.Errorf("updating issue %s: %w", issue.ID, err)
	}
	return nil
}

// createIssue allocates a new issue seeded from a single item's analysis
// and indexes its embedding. Index failures are swallowed: the issue exists
// either way and can still accrue feedback on later runs.
func (o *Orchestrator) createIssue(ctx context.Context, feedbackID string, analysis models.Analysis, vector []float32) error {
	now := o.now()
	sev := severity.Calculate(severity.Factors{
		SentimentScore:  analysis.SentimentScore,
		Urgency:         analysis.Urgency,
		FeedbackCount:   1,
		AffectedUsers:   1,
		Category:        analysis.Category,
		FirstReportedAt: now,
		LastFeedbackAt:  now,
	}, now)

	issue := &models.Issue{
		Title:           truncate(analysis.Summary, maxTitleLen),
		Description:     analysis.Summary,
		Summary:         analysis.Summary,
		Category:        analysis.Category,
		BaseSeverity:    sev.BaseSeverity,
		CurrentSeverity: sev.CurrentSeverity,
		Priority:        sev.Priority,
		Sentiment:       analysis.Sentiment,
		SentimentScore:  analysis.SentimentScore,
		FeedbackCount:   1,
		Status:          models.IssueStatusNew,
		FirstReportedAt: now,
		LastFeedbackAt:  now,
	}
	if err := o.store.CreateIssue(ctx, issue); err != nil {
		return fmt.Errorf("creating issue for %s: %w", feedbackID, err)
	}

	if err := o.store.LinkFeedback(ctx, &models.IssueFeedbackLink{
		IssueID:         issue.ID,
		FeedbackID:      feedbackID,
		SimilarityScore: 1.0,
	}); err != nil {
		return fmt.Errorf("linking founding feedback %s: %w", feedbackID, err)
	}

	if o.index != nil && len(vector) > 0 {
		_ = o.index.Upsert(ctx, issue.ID, vector, map[string]string{
			"title":    issue.Title,
			"category": string(issue.Category),
			"keywords": strings.Join(analysis.Keywords, ","),
		})
	}
	return nil
}

// runRecalculate re-ages current severity for every non-terminal issue from
// its stored base severity, so unresolved issues keep rising even on runs
// that ingest nothing new.
func (o *Orchestrator) runRecalculate(ctx context.Context, res *RunResult) error {
	issues, err := o.store.ListOpenIssues(ctx)
	if err != nil {
		return fmt.Errorf("listing open issues: %w", err)
	}

	now := o.now()
	for _, issue := range issues {
		cur := severity.RecalculateWithTime(issue.BaseSeverity, issue.FirstReportedAt, now)
		if cur == issue.CurrentSeverity {
			continue
		}
		issue.CurrentSeverity = cur
		issue.Priority = severity.PriorityFor(cur)
		if err := o.store.UpdateIssue(ctx, issue); err != nil {
			return fmt.Errorf("re-aging issue %s: %w", issue.ID, err)
		}
		res.Recalculated++
	}
	return nil
}

// IngestFromProvider runs the ingest phase for a single provider and
// returns how many new items were stored. Unknown ids return an error.
func (o *Orchestrator) IngestFromProvider(ctx context.Context, providerID string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	src, err := o.registry.Get(providerID)
	if err != nil {
		return 0, err
	}
	feedback, err := src.Fetch(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("fetching from %s: %w", providerID, err)
	}
	ir, err := o.ingestion.Ingest(ctx, src, feedback)
	if err != nil {
		return 0, err
	}
	return ir.New, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
