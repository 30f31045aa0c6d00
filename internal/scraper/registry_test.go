package scraper_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"jobradar/ingest-service/internal/model"
	"jobradar/ingest-service/internal/scraper"
)

type stubScraper struct{ source model.Source }

func (s *stubScraper) Source() model.Source { return s.source }

func (s *stubScraper) Search(ctx context.Context, keywords, location string, opts scraper.SearchOptions) ([]model.JobPosting, error) {
	return nil, nil
}

func (s *stubScraper) FetchDetail(ctx context.Context, url string) (scraper.Detail, error) {
	return scraper.Detail{}, nil
}

func (s *stubScraper) CheckLiveness(ctx context.Context, url string) (bool, error) {
	return true, nil
}

func newTestRegistry() *scraper.Registry {
	return scraper.NewRegistry(zap.NewNop(),
		&stubScraper{source: model.SourceJSearch},
		&stubScraper{source: model.SourceArbeitnow},
		&stubScraper{source: model.SourceIndeed},
	)
}

// ── Select ─────────────────────────────────────────────────────────────────

func TestSelect_EmptyRequestReturnsAllInRegistrationOrder(t *testing.T) {
	selected := newTestRegistry().Select(nil)
	if len(selected) != 3 {
		t.Fatalf("got %d scrapers, want all 3", len(selected))
	}
	want := []model.Source{model.SourceJSearch, model.SourceArbeitnow, model.SourceIndeed}
	for i, sc := range selected {
		if sc.Source() != want[i] {
			t.Errorf("position %d = %s, want %s (registration order)", i, sc.Source(), want[i])
		}
	}
}

func TestSelect_SubsetKeepsRegistrationOrder(t *testing.T) {
	selected := newTestRegistry().Select([]model.Source{model.SourceIndeed, model.SourceJSearch})
	if len(selected) != 2 {
		t.Fatalf("got %d scrapers, want 2", len(selected))
	}
	if selected[0].Source() != model.SourceJSearch || selected[1].Source() != model.SourceIndeed {
		t.Errorf("order = [%s %s], want registration order regardless of request order",
			selected[0].Source(), selected[1].Source())
	}
}

func TestSelect_UnknownSourcesAreSkipped(t *testing.T) {
	selected := newTestRegistry().Select([]model.Source{model.SourceGlassdoor, model.SourceArbeitnow})
	if len(selected) != 1 || selected[0].Source() != model.SourceArbeitnow {
		t.Errorf("got %d scrapers, want only the registered one", len(selected))
	}
}

func TestSelect_AllUnknownReturnsEmpty(t *testing.T) {
	if selected := newTestRegistry().Select([]model.Source{model.SourceGlassdoor}); len(selected) != 0 {
		t.Errorf("got %d scrapers, want none", len(selected))
	}
}

// ── Lookup ─────────────────────────────────────────────────────────────────

func TestLookup(t *testing.T) {
	r := newTestRegistry()
	if sc, ok := r.Lookup(model.SourceArbeitnow); !ok || sc.Source() != model.SourceArbeitnow {
		t.Error("Lookup(arbeitnow) should find the registered scraper")
	}
	if _, ok := r.Lookup(model.SourceGlassdoor); ok {
		t.Error("Lookup(glassdoor) should report absence")
	}
}
