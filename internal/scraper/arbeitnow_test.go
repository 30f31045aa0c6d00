package scraper_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"jobradar/ingest-service/internal/scraper"
)

func arbeitnowBoard(t *testing.T, items []map[string]any) *scraper.ArbeitnowScraper {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": items})
	}))
	t.Cleanup(srv.Close)
	s := scraper.NewArbeitnowScraper(zap.NewNop())
	s.BaseURL = srv.URL
	return s
}

func boardItem(slug, title, location, description string, tags []string) map[string]any {
	return map[string]any{
		"slug":         slug,
		"title":        title,
		"company_name": "Acme GmbH",
		"location":     location,
		"url":          "https://www.arbeitnow.com/view/" + slug,
		"description":  description,
		"tags":         tags,
		"remote":       false,
		"created_at":   1756300000,
	}
}

// ── Search — client-side filtering ─────────────────────────────────────────

func TestArbeitnow_FiltersByKeywordAcrossFields(t *testing.T) {
	s := arbeitnowBoard(t, []map[string]any{
		boardItem("a", "Backend Engineer", "Berlin", "<p>Go services</p>", nil),
		boardItem("b", "Accountant", "Berlin", "<p>Monthly closing</p>", nil),
		boardItem("c", "Platform Lead", "Berlin", "<p>Own the platform</p>", []string{"engineer", "golang"}),
	})

	jobs, err := s.Search(context.Background(), "engineer", "", scraper.SearchOptions{PageBudget: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2 (title match and tag match)", len(jobs))
	}
	if jobs[0].JobID != "arbeitnow_a" || jobs[1].JobID != "arbeitnow_c" {
		t.Errorf("matched %q and %q, want arbeitnow_a and arbeitnow_c", jobs[0].JobID, jobs[1].JobID)
	}
}

func TestArbeitnow_RequiresEveryKeywordPart(t *testing.T) {
	s := arbeitnowBoard(t, []map[string]any{
		boardItem("a", "Backend Engineer", "Berlin", "<p>Go services</p>", nil),
		boardItem("b", "Frontend Engineer", "Berlin", "<p>React</p>", nil),
	})

	jobs, err := s.Search(context.Background(), "backend engineer", "", scraper.SearchOptions{PageBudget: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobID != "arbeitnow_a" {
		t.Errorf("got %d jobs, want only the posting matching both parts", len(jobs))
	}
}

func TestArbeitnow_FiltersByLocation(t *testing.T) {
	s := arbeitnowBoard(t, []map[string]any{
		boardItem("a", "Backend Engineer", "Berlin, Germany", "<p>Go</p>", nil),
		boardItem("b", "Backend Engineer", "Munich, Germany", "<p>Go</p>", nil),
	})

	jobs, err := s.Search(context.Background(), "engineer", "berlin", scraper.SearchOptions{PageBudget: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Location != "Berlin, Germany" {
		t.Fatalf("got %d jobs, want only the Berlin posting", len(jobs))
	}
}

func TestArbeitnow_CapsResultsAtBudget(t *testing.T) {
	items := make([]map[string]any, 5)
	for i, slug := range []string{"a", "b", "c", "d", "e"} {
		items[i] = boardItem(slug, "Engineer", "Berlin", "<p>Go</p>", nil)
	}
	s := arbeitnowBoard(t, items)

	jobs, err := s.Search(context.Background(), "engineer", "", scraper.SearchOptions{PageBudget: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("got %d jobs, want budget cap of 3", len(jobs))
	}
}

// ── Search — normalization ─────────────────────────────────────────────────

func TestArbeitnow_StripsMarkupFromDescription(t *testing.T) {
	s := arbeitnowBoard(t, []map[string]any{
		boardItem("a", "Engineer", "Berlin", "<p>Build <strong>Go</strong> services.</p><script>x()</script>", nil),
	})

	jobs, err := s.Search(context.Background(), "engineer", "", scraper.SearchOptions{PageBudget: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	if got := jobs[0].Description; got != "Build Go services." {
		t.Errorf("Description = %q, want markup stripped", got)
	}
	if jobs[0].JobType != "On-site" {
		t.Errorf("JobType = %q, want On-site for non-remote posting", jobs[0].JobType)
	}
	if jobs[0].PostedDate == nil || jobs[0].PostedDate.IsZero() {
		t.Error("PostedDate should come from created_at")
	}
}
