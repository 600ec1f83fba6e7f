package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/triage/internal/analyze"
	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/provider"
	"github.com/joescharf/triage/internal/store"
	"github.com/joescharf/triage/internal/vectorindex"
)

// stubAnalyzer returns a canned analysis per content string and can be told
// to fail for specific content.
type stubAnalyzer struct {
	analyses map[string]models.Analysis
	failFor  map[string]bool
	calls    int
}

func (s *stubAnalyzer) ProcessFeedback(_ context.Context, content, _ string) (models.Analysis, error) {
	s.calls++
	if s.failFor[content] {
		return models.Analysis{}, errors.New("model unavailable")
	}
	if a, ok := s.analyses[content]; ok {
		return a, nil
	}
	return models.Analysis{
		Summary:        "summary of: " + content,
		Category:       models.CategoryBug,
		Sentiment:      models.SentimentNegative,
		SentimentScore: -0.5,
		Keywords:       []string{"stub"},
		Urgency:        models.UrgencyMedium,
	}, nil
}

// stubIndex returns a fixed score for every query.
type stubIndex struct {
	matchID    string
	matchScore float64
	queryErr   error
	upserts    map[string][]float32
}

func newStubIndex(id string, score float64) *stubIndex {
	return &stubIndex{matchID: id, matchScore: score, upserts: make(map[string][]float32)}
}

func (s *stubIndex) Upsert(_ context.Context, id string, vector []float32, _ map[string]string) error {
	s.upserts[id] = vector
	return nil
}

func (s *stubIndex) Query(_ context.Context, _ []float32, _ int) ([]vectorindex.Match, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if s.matchID == "" {
		return nil, nil
	}
	return []vectorindex.Match{{ID: s.matchID, Score: s.matchScore}}, nil
}

func (s *stubIndex) Delete(_ context.Context, _ string) error { return nil }

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "triage.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func registryWith(items ...provider.RawFeedback) *provider.Registry {
	r := provider.NewRegistry()
	r.Register(provider.NewFixtureSource("discord", "Discord", models.ProviderTypeDiscord, items))
	return r
}

func rawItem(externalID, content string) provider.RawFeedback {
	return provider.RawFeedback{
		ExternalID:      externalID,
		Content:         content,
		SourceCreatedAt: time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestRun_FullPipeline(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	orch := New(Config{
		Store:    st,
		Registry: registryWith(rawItem("m1", "the export crashes"), rawItem("m2", "please add dark mode")),
		Analyzer: &stubAnalyzer{},
		Embed:    analyze.NewHashEmbedder(),
		Index:    newStubIndex("", 0),
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Ingested)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Fallbacks)
	assert.Equal(t, 2, res.IssuesCreated)
	assert.Empty(t, res.ProviderErrors)

	issues, err := st.ListIssues(ctx, store.IssueListFilter{})
	require.NoError(t, err)
	assert.Len(t, issues, 2)
	for _, issue := range issues {
		assert.Equal(t, models.IssueStatusNew, issue.Status)
		assert.Equal(t, 1, issue.FeedbackCount)
		assert.GreaterOrEqual(t, issue.CurrentSeverity, 0.0)
		assert.LessOrEqual(t, issue.CurrentSeverity, 10.0)
	}
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	orch := New(Config{
		Store:    st,
		Registry: registryWith(rawItem("m1", "the export crashes")),
		Analyzer: &stubAnalyzer{},
		Embed:    analyze.NewHashEmbedder(),
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested)
	assert.Equal(t, 1, res.IssuesCreated)

	res, err = orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Ingested)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.Processed, "backlog already drained")
	assert.Equal(t, 0, res.IssuesCreated)
}

func TestRun_SimilarityAboveThresholdLinks(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seed := seedIssue(t, st, 4.0)
	idx := newStubIndex(seed.ID, 0.80)

	orch := New(Config{
		Store:    st,
		Registry: registryWith(rawItem("m1", "export crashes again")),
		Analyzer: &stubAnalyzer{},
		Embed:    analyze.NewHashEmbedder(),
		Index:    idx,
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.IssuesCreated, "0.80 >= threshold links instead of creating")

	updated, err := st.GetIssue(ctx, seed.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.FeedbackCount)
	assert.GreaterOrEqual(t, updated.BaseSeverity, 4.0, "base severity never decreases")

	links, err := st.ListIssueFeedback(ctx, seed.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.FeedbackCount, len(links)+1, "seeded issue has no founding link")

	var scores []float64
	for _, l := range links {
		scores = append(scores, l.SimilarityScore)
	}
	assert.Contains(t, scores, 0.80)
}

func TestRun_SimilarityBelowThresholdCreates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seed := seedIssue(t, st, 4.0)
	idx := newStubIndex(seed.ID, 0.70)

	orch := New(Config{
		Store:    st,
		Registry: registryWith(rawItem("m1", "completely unrelated feedback")),
		Analyzer: &stubAnalyzer{},
		Embed:    analyze.NewHashEmbedder(),
		Index:    idx,
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.IssuesCreated, "0.70 < threshold creates a new issue")

	updated, err := st.GetIssue(ctx, seed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.FeedbackCount, "existing issue untouched")

	issues, err := st.ListIssues(ctx, store.IssueListFilter{})
	require.NoError(t, err)
	assert.Len(t, issues, 2)
}

func TestRun_ClassificationFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	items := make([]provider.RawFeedback, 10)
	for i := range items {
		items[i] = rawItem(fmt.Sprintf("m%d", i), fmt.Sprintf("feedback item %d is broken", i))
	}

	orch := New(Config{
		Store:    st,
		Registry: registryWith(items...),
		Analyzer: &stubAnalyzer{failFor: map[string]bool{"feedback item 4 is broken": true}},
		Embed:    analyze.NewHashEmbedder(),
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Processed, "one bad classification must not block the batch")
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 1, res.Fallbacks)

	backlog, err := st.UnprocessedFeedback(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, backlog)
}

func TestRun_StaleIndexEntryCreatesInstead(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	// Index points at an issue id that does not exist in the store.
	idx := newStubIndex("GHOST", 0.95)

	orch := New(Config{
		Store:    st,
		Registry: registryWith(rawItem("m1", "the export crashes")),
		Analyzer: &stubAnalyzer{},
		Embed:    analyze.NewHashEmbedder(),
		Index:    idx,
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.IssuesCreated)
}

// failingUpdateStore wraps a real store and fails UpdateIssue a set number
// of times before recovering.
type failingUpdateStore struct {
	store.Store
	failures int
}

func (s *failingUpdateStore) UpdateIssue(ctx context.Context, issue *models.Issue) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("disk I/O error")
	}
	return s.Store.UpdateIssue(ctx, issue)
}

func TestRun_LinkWriteFailureDoesNotCreateOrphan(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seed := seedIssue(t, st, 4.0)
	idx := newStubIndex(seed.ID, 0.90)

	orch := New(Config{
		Store:    &failingUpdateStore{Store: st, failures: 1},
		Registry: registryWith(rawItem("m1", "export crashes again")),
		Analyzer: &stubAnalyzer{},
		Embed:    analyze.NewHashEmbedder(),
		Index:    idx,
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed, "a failed issue update fails the item")
	assert.Equal(t, 0, res.IssuesCreated, "no second issue from a failed link")

	issues, err := st.ListIssues(ctx, store.IssueListFilter{})
	require.NoError(t, err)
	require.Len(t, issues, 1)

	links, err := st.ListIssueFeedback(ctx, seed.ID)
	require.NoError(t, err)
	assert.Equal(t, issues[0].FeedbackCount, len(links), "count stays consistent with link rows")
}

func TestRun_QueryErrorDegradesToCreate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	idx := newStubIndex("anything", 0.99)
	idx.queryErr = errors.New("index offline")

	orch := New(Config{
		Store:    st,
		Registry: registryWith(rawItem("m1", "the export crashes")),
		Analyzer: &stubAnalyzer{},
		Embed:    analyze.NewHashEmbedder(),
		Index:    idx,
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.IssuesCreated)
}

func TestRun_NewIssueIsIndexed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	idx := newStubIndex("", 0)

	orch := New(Config{
		Store:    st,
		Registry: registryWith(rawItem("m1", "the export crashes")),
		Analyzer: &stubAnalyzer{},
		Embed:    analyze.NewHashEmbedder(),
		Index:    idx,
	})

	_, err := orch.Run(ctx)
	require.NoError(t, err)

	issues, err := st.ListIssues(ctx, store.IssueListFilter{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Contains(t, idx.upserts, issues[0].ID)
}

func TestRun_TitleTruncatedFromSummary(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	long := ""
	for i := 0; i < 30; i++ {
		long += "verylongword "
	}
	orch := New(Config{
		Store:    st,
		Registry: registryWith(rawItem("m1", "content")),
		Analyzer: &stubAnalyzer{analyses: map[string]models.Analysis{
			"content": {
				Summary:        long,
				Category:       models.CategoryBug,
				Sentiment:      models.SentimentNegative,
				SentimentScore: -0.4,
				Urgency:        models.UrgencyMedium,
			},
		}},
		Embed: analyze.NewHashEmbedder(),
	})

	_, err := orch.Run(ctx)
	require.NoError(t, err)

	issues, err := st.ListIssues(ctx, store.IssueListFilter{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Len(t, issues[0].Title, 100)
	assert.Equal(t, long, issues[0].Summary)
}

func TestRun_RecalculateAgesOpenIssues(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	issue := &models.Issue{
		Title:           "old unresolved issue",
		Category:        models.CategoryBug,
		BaseSeverity:    5.0,
		CurrentSeverity: 5.0,
		Priority:        models.PriorityMedium,
		Status:          models.IssueStatusTriaged,
		FeedbackCount:   1,
		FirstReportedAt: base,
		LastFeedbackAt:  base,
	}
	require.NoError(t, st.CreateIssue(ctx, issue))

	resolved := &models.Issue{
		Title:           "already resolved",
		Category:        models.CategoryBug,
		BaseSeverity:    5.0,
		CurrentSeverity: 5.0,
		Priority:        models.PriorityMedium,
		Status:          models.IssueStatusResolved,
		FeedbackCount:   1,
		FirstReportedAt: base,
		LastFeedbackAt:  base,
	}
	require.NoError(t, st.CreateIssue(ctx, resolved))

	// Ten days later: multiplier 1.5, so 5.0 -> 7.5 and priority high.
	now := base.Add(10 * 24 * time.Hour)
	orch := New(Config{
		Store:    st,
		Registry: provider.NewRegistry(),
		Analyzer: &stubAnalyzer{},
		Now:      func() time.Time { return now },
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Recalculated)

	aged, err := st.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, aged.CurrentSeverity, 0.001)
	assert.Equal(t, models.PriorityHigh, aged.Priority)
	assert.Equal(t, 5.0, aged.BaseSeverity, "aging never touches base severity")

	untouched, err := st.GetIssue(ctx, resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, untouched.CurrentSeverity)
}

func TestRun_ProviderFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	r := provider.NewRegistry()
	r.Register(provider.NewFixtureSource("discord", "Discord", models.ProviderTypeDiscord,
		[]provider.RawFeedback{rawItem("m1", "the export crashes")}))
	r.Register(&failingSource{id: "github"})

	orch := New(Config{
		Store:    st,
		Registry: r,
		Analyzer: &stubAnalyzer{},
		Embed:    analyze.NewHashEmbedder(),
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested, "healthy provider still contributes")
	require.Contains(t, res.ProviderErrors, "github")
}

func TestIngestFromProvider(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	orch := New(Config{
		Store:    st,
		Registry: registryWith(rawItem("m1", "a"), rawItem("m2", "b")),
		Analyzer: &stubAnalyzer{},
	})

	n, err := orch.IngestFromProvider(ctx, "discord")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-sync dedups.
	n, err = orch.IngestFromProvider(ctx, "discord")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = orch.IngestFromProvider(ctx, "nope")
	assert.Error(t, err)
}

func TestRun_BatchSizeBoundsClassification(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	items := make([]provider.RawFeedback, 5)
	for i := range items {
		items[i] = rawItem(fmt.Sprintf("m%d", i), fmt.Sprintf("item %d", i))
	}

	orch := New(Config{
		Store:     st,
		Registry:  registryWith(items...),
		Analyzer:  &stubAnalyzer{},
		Embed:     analyze.NewHashEmbedder(),
		BatchSize: 3,
	})

	res, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Ingested)
	assert.Equal(t, 3, res.Processed)

	backlog, err := st.UnprocessedFeedback(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, backlog, 2)
}

// seedIssue inserts an open issue directly, bypassing the pipeline.
func seedIssue(t *testing.T, st store.Store, baseSeverity float64) *models.Issue {
	t.Helper()
	now := time.Now().UTC()
	issue := &models.Issue{
		Title:           "seeded issue",
		Category:        models.CategoryBug,
		BaseSeverity:    baseSeverity,
		CurrentSeverity: baseSeverity,
		Priority:        models.PriorityMedium,
		Status:          models.IssueStatusNew,
		FeedbackCount:   1,
		FirstReportedAt: now,
		LastFeedbackAt:  now,
	}
	require.NoError(t, st.CreateIssue(context.Background(), issue))
	return issue
}

type failingSource struct {
	id string
}

func (f *failingSource) ID() string                  { return f.id }
func (f *failingSource) Name() string                { return f.id }
func (f *failingSource) Type() models.ProviderType   { return models.ProviderTypeCustom }
func (f *failingSource) TestConnection(context.Context) bool { return false }
func (f *failingSource) Status() provider.Status     { return provider.Status{} }

func (f *failingSource) Fetch(context.Context, *time.Time) ([]provider.RawFeedback, error) {
	return nil, errors.New("rate limited")
}
