// Package provider defines the feedback source capability and its registry.
package provider

import (
	"context"
	"time"

	"github.com/joescharf/triage/internal/models"
)

// RawFeedback is one unnormalized record fetched from a source. ExternalID
// is required and drives ingest dedup; SourceCreatedAt is required and feeds
// decay and trend math.
type RawFeedback struct {
	ExternalID      string            `yaml:"external_id"`
	SourceURL       string            `yaml:"source_url"`
	AuthorID        string            `yaml:"author_id"`
	AuthorName      string            `yaml:"author_name"`
	AuthorEmail     string            `yaml:"author_email"`
	AuthorAvatar    string            `yaml:"author_avatar"`
	Title           string            `yaml:"title"`
	Content         string            `yaml:"content"`
	ContentType     string            `yaml:"content_type"`
	Metadata        map[string]string `yaml:"metadata"`
	SourceCreatedAt time.Time         `yaml:"source_created_at"`
}

// Status reports the health of a source.
type Status struct {
	Healthy  bool
	LastSync *time.Time
}

// Source is the uniform capability exposed by every feedback source.
// Implementations must be safe for repeated Fetch calls: the ingestion
// layer dedups on external id, so re-fetching the same records is cheap.
type Source interface {
	ID() string
	Name() string
	Type() models.ProviderType

	// Fetch returns raw records, optionally limited to those created after
	// since. Implementations should respect ctx cancellation.
	Fetch(ctx context.Context, since *time.Time) ([]RawFeedback, error)

	// TestConnection attempts a bounded fetch and reports whether it
	// succeeded. It never returns an error.
	TestConnection(ctx context.Context) bool

	Status() Status
}
