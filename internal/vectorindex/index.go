// Package vectorindex stores issue embeddings and answers nearest-neighbor
// queries for semantic grouping.
package vectorindex

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

const collectionName = "issues"

// Match is one nearest-neighbor result.
type Match struct {
	ID       string
	Score    float64 // cosine similarity in [0, 1] for normalized vectors
	Metadata map[string]string
}

// Index answers similarity queries over issue embeddings.
type Index interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Delete(ctx context.Context, id string) error
}

// ChromemIndex is a chromem-go backed Index. Pass an empty path to
// NewChromemIndex for an in-memory index.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemIndex opens (or creates) a persistent index at path. An empty
// path yields an in-memory index, used in tests.
func NewChromemIndex(path string) (*ChromemIndex, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("opening vector index at %s: %w", path, err)
		}
	}

	// Embeddings are always supplied by the caller, so the collection's own
	// embedding func must never run.
	collection, err := db.GetOrCreateCollection(collectionName, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", collectionName, err)
	}

	return &ChromemIndex{db: db, collection: collection}, nil
}

func rejectEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("index requires precomputed embeddings")
}

// Upsert stores or replaces the embedding for an issue.
func (x *ChromemIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	doc := chromem.Document{
		ID:        id,
		Content:   id,
		Metadata:  metadata,
		Embedding: vector,
	}
	if err := x.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("upserting vector %s: %w", id, err)
	}
	return nil
}

// Query returns up to topK nearest issues by cosine similarity, best first.
// An empty index returns no matches.
func (x *ChromemIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	// chromem rejects nResults greater than the document count.
	count := x.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := x.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:       r.ID,
			Score:    float64(r.Similarity),
			Metadata: r.Metadata,
		}
	}
	return matches, nil
}

// Delete removes an issue's embedding. Deleting an unknown id is a no-op.
func (x *ChromemIndex) Delete(ctx context.Context, id string) error {
	if err := x.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("deleting vector %s: %w", id, err)
	}
	return nil
}
