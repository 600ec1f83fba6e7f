// Package ingest normalizes and persists raw feedback from providers.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joescharf/triage/internal/models"
	"github.com/joescharf/triage/internal/provider"
	"github.com/joescharf/triage/internal/store"
)

// Service writes fetched feedback into the store, deduplicating on
// (provider id, external id).
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Result summarizes one provider's ingest.
type Result struct {
	ProviderID string
	New        int
	Duplicates int
	Skipped    int
}

// Ingest upserts the provider record, persists each new raw record as an
// unprocessed feedback item, and stamps the provider's sync time. Records
// whose external id already exists are counted as duplicates and left
// untouched. Records missing an external id or creation time are skipped.
func (s *Service) Ingest(ctx context.Context, src provider.Source, items []provider.RawFeedback) (Result, error) {
	res := Result{ProviderID: src.ID()}

	now := time.Now().UTC()
	p := &models.Provider{
		ID:     src.ID(),
		Name:   src.Name(),
		Type:   src.Type(),
		Status: models.ProviderStatusActive,
	}
	if err := s.store.UpsertProvider(ctx, p); err != nil {
		return res, fmt.Errorf("upserting provider %s: %w", src.ID(), err)
	}

	for _, raw := range items {
		if raw.ExternalID == "" || raw.SourceCreatedAt.IsZero() {
			res.Skipped++
			continue
		}

		_, err := s.store.FindFeedbackByExternalID(ctx, src.ID(), raw.ExternalID)
		switch {
		case err == nil:
			res.Duplicates++
			continue
		case !errors.Is(err, store.ErrNotFound):
			return res, fmt.Errorf("checking for existing feedback %s/%s: %w", src.ID(), raw.ExternalID, err)
		}

		item := &models.FeedbackItem{
			ProviderID:      src.ID(),
			ExternalID:      raw.ExternalID,
			SourceURL:       raw.SourceURL,
			AuthorID:        raw.AuthorID,
			AuthorName:      raw.AuthorName,
			AuthorEmail:     raw.AuthorEmail,
			AuthorAvatar:    raw.AuthorAvatar,
			Title:           raw.Title,
			Content:         raw.Content,
			ContentType:     contentType(raw.ContentType),
			Metadata:        raw.Metadata,
			SourceCreatedAt: raw.SourceCreatedAt,
		}
		if err := s.store.CreateFeedbackItem(ctx, item); err != nil {
			return res, fmt.Errorf("creating feedback item %s/%s: %w", src.ID(), raw.ExternalID, err)
		}
		res.New++
	}

	if err := s.store.TouchProviderSync(ctx, src.ID(), now); err != nil {
		return res, fmt.Errorf("recording sync time for %s: %w", src.ID(), err)
	}
	return res, nil
}

// Unprocessed returns up to limit unclassified feedback items, oldest first.
func (s *Service) Unprocessed(ctx context.Context, limit int) ([]*models.FeedbackItem, error) {
	return s.store.UnprocessedFeedback(ctx, limit)
}

func contentType(raw string) models.ContentType {
	switch ct := models.ContentType(raw); ct {
	case models.ContentTypeText, models.ContentTypeMarkdown, models.ContentTypeHTML:
		return ct
	}
	return models.ContentTypeText
}
