package provider

import (
	"context"
	"embed"
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/triage/internal/models"
)

//go:embed fixtures/*.yaml
var fixturesFS embed.FS

// fixtureFile is the on-disk shape of an embedded fixture definition.
type fixtureFile struct {
	ID    string        `yaml:"id"`
	Name  string        `yaml:"name"`
	Type  string        `yaml:"type"`
	Items []RawFeedback `yaml:"items"`
}

// FixtureSource is a Source backed by a static record set. It stands in for
// real provider APIs, which are out of scope; the pipeline treats it exactly
// like a live source.
type FixtureSource struct {
	id    string
	name  string
	ptype models.ProviderType
	items []RawFeedback

	mu       sync.Mutex
	lastSync *time.Time
}

// NewFixtureSource creates a source serving the given records.
func NewFixtureSource(id, name string, ptype models.ProviderType, items []RawFeedback) *FixtureSource {
	return &FixtureSource{id: id, name: name, ptype: ptype, items: items}
}

func (f *FixtureSource) ID() string                { return f.id }
func (f *FixtureSource) Name() string              { return f.name }
func (f *FixtureSource) Type() models.ProviderType { return f.ptype }

// Fetch returns the fixture records created after since (all of them when
// since is nil).
func (f *FixtureSource) Fetch(ctx context.Context, since *time.Time) ([]RawFeedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []RawFeedback
	for _, item := range f.items {
		if since != nil && !item.SourceCreatedAt.After(*since) {
			continue
		}
		out = append(out, item)
	}

	now := time.Now().UTC()
	f.mu.Lock()
	f.lastSync = &now
	f.mu.Unlock()
	return out, nil
}

// TestConnection attempts a bounded fetch. Failures are reported as false,
// never propagated.
func (f *FixtureSource) TestConnection(ctx context.Context) bool {
	now := time.Now().UTC()
	_, err := f.Fetch(ctx, &now)
	return err == nil
}

func (f *FixtureSource) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{Healthy: true, LastSync: f.lastSync}
}

// LoadFixtureSources parses every embedded fixture file into a source.
func LoadFixtureSources() ([]*FixtureSource, error) {
	entries, err := fixturesFS.ReadDir("fixtures")
	if err != nil {
		return nil, fmt.Errorf("read fixtures dir: %w", err)
	}

	var sources []*FixtureSource
	for _, entry := range entries {
		data, err := fixturesFS.ReadFile("fixtures/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", entry.Name(), err)
		}

		var def fixtureFile
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse fixture %s: %w", entry.Name(), err)
		}
		if def.ID == "" {
			return nil, fmt.Errorf("fixture %s: missing id", entry.Name())
		}

		sources = append(sources, NewFixtureSource(def.ID, def.Name, models.ProviderType(def.Type), def.Items))
	}
	return sources, nil
}

// DefaultRegistry builds a registry with every embedded fixture source
// registered.
func DefaultRegistry() (*Registry, error) {
	sources, err := LoadFixtureSources()
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	for _, s := range sources {
		r.Register(s)
	}
	return r, nil
}
