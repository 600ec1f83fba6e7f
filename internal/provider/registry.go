package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// FetchResult pairs a source id with the records it returned during a
// registry-wide fetch.
type FetchResult struct {
	ProviderID string
	Feedback   []RawFeedback
}

// Registry holds the registered feedback sources. It is an explicit value
// constructed at startup and passed by dependency injection; there is no
// package-level registry.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source, replacing any existing source with the same id.
func (r *Registry) Register(s Source) {
	r.sources[s.ID()] = s
}

// Get returns the source with the given id.
func (r *Registry) Get(id string) (Source, error) {
	s, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", id)
	}
	return s, nil
}

// All returns every registered source, ordered by id for deterministic runs.
func (r *Registry) All() []Source {
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Source, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.sources[id])
	}
	return out
}

// FetchAll fetches from every source concurrently. Sources are independent
// and fetches are idempotent, so failures are isolated: a source that errors
// is skipped and reported in the errs map, and the remaining sources still
// contribute to the result. Results are ordered by source id.
func (r *Registry) FetchAll(ctx context.Context, since *time.Time) ([]FetchResult, map[string]error) {
	sources := r.All()
	results := make([]FetchResult, len(sources))
	ok := make([]bool, len(sources))
	errs := make(map[string]error)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range sources {
		g.Go(func() error {
			feedback, err := s.Fetch(ctx, since)
			if err != nil {
				mu.Lock()
				errs[s.ID()] = err
				mu.Unlock()
				return nil
			}
			results[i] = FetchResult{ProviderID: s.ID(), Feedback: feedback}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]FetchResult, 0, len(sources))
	for i := range sources {
		if ok[i] {
			out = append(out, results[i])
		}
	}
	return out, errs
}
