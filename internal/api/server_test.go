package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"jobradar/ingest-service/internal/api"
	"jobradar/ingest-service/internal/ingest"
	"jobradar/ingest-service/internal/model"
	"jobradar/ingest-service/internal/scraper"
	"jobradar/ingest-service/internal/store/storetest"
	"jobradar/ingest-service/internal/verify"
)

type serverFixture struct {
	mux      *http.ServeMux
	jobs     *storetest.JobStore
	sessions *storetest.SessionStore
}

func newServer(t *testing.T) serverFixture {
	t.Helper()
	logger := zap.NewNop()
	jobs := storetest.NewJobStore()
	sessions := storetest.NewSessionStore()
	offsets := storetest.NewOffsetStore()
	registry := scraper.NewRegistry(logger)
	merge := ingest.NewMergeEngine(jobs, logger)
	orch := ingest.NewOrchestrator(registry, merge, sessions, offsets, nil, logger)
	sweep := verify.NewSweep(jobs, registry, logger)
	srv := api.NewServer(orch, sweep, jobs, sessions, logger)
	return serverFixture{mux: srv.Routes(), jobs: jobs, sessions: sessions}
}

func doRequest(fx serverFixture, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, req)
	return rec
}

// ── GET /health ────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	rec := doRequest(newServer(t), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

// ── POST /api/scrape ───────────────────────────────────────────────────────

func TestScrape_RejectsInvalidJSON(t *testing.T) {
	rec := doRequest(newServer(t), http.MethodPost, "/api/scrape", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestScrape_RequiresRole(t *testing.T) {
	rec := doRequest(newServer(t), http.MethodPost, "/api/scrape", `{"location":"Berlin"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestScrape_AcceptsValidRequest(t *testing.T) {
	rec := doRequest(newServer(t), http.MethodPost, "/api/scrape", `{"role":"Backend Engineer","max_jobs":20}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202 (run continues in background)", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["role"] != "Backend Engineer" {
		t.Errorf("echoed role = %q, want the requested role", body["role"])
	}
}

// ── POST /api/verify ───────────────────────────────────────────────────────

func TestVerify_Accepts(t *testing.T) {
	rec := doRequest(newServer(t), http.MethodPost, "/api/verify", "")
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

// ── GET /api/scrape-sessions ───────────────────────────────────────────────

func TestSessions_ListsMostRecentFirst(t *testing.T) {
	fx := newServer(t)
	for _, id := range []string{"s1", "s2", "s3"} {
		err := fx.sessions.Create(context.Background(), &model.ScrapeSession{
			SessionID:   id,
			SearchQuery: "engineer",
			ScrapedAt:   time.Now().UTC(),
			Status:      model.StatusCompleted,
		})
		if err != nil {
			t.Fatalf("seed session %s: %v", id, err)
		}
	}

	rec := doRequest(fx, http.MethodGet, "/api/scrape-sessions?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Count    int                   `json:"count"`
		Sessions []model.ScrapeSession `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
	if body.Sessions[0].SessionID != "s3" || body.Sessions[1].SessionID != "s2" {
		t.Errorf("order = [%s %s], want newest first", body.Sessions[0].SessionID, body.Sessions[1].SessionID)
	}
}

func TestSessions_RejectsBadLimit(t *testing.T) {
	for _, limit := range []string{"0", "-1", "500", "abc"} {
		rec := doRequest(newServer(t), http.MethodGet, "/api/scrape-sessions?limit="+limit, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, rec.Code)
		}
	}
}

// ── GET /api/scrape-sessions/{id}/jobs ─────────────────────────────────────

func TestSessionJobs(t *testing.T) {
	fx := newServer(t)
	seed := func(id, sessionID string) {
		err := fx.jobs.Insert(context.Background(), &model.JobPosting{
			JobID:           id,
			Title:           "Engineer",
			Company:         "Acme",
			URL:             "https://example.com/" + id,
			Source:          model.SourceArbeitnow,
			ScrapeSessionID: sessionID,
			IsActive:        true,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("arbeitnow_1", "sess-a")
	seed("arbeitnow_2", "sess-a")
	seed("arbeitnow_3", "sess-b")

	rec := doRequest(fx, http.MethodGet, "/api/scrape-sessions/sess-a/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		SessionID string             `json:"session_id"`
		Count     int                `json:"count"`
		Jobs      []model.JobPosting `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want the 2 jobs from sess-a", body.Count)
	}
	for _, job := range body.Jobs {
		if job.ScrapeSessionID != "sess-a" {
			t.Errorf("job %s belongs to session %q, want sess-a", job.JobID, job.ScrapeSessionID)
		}
	}
}

// ── GET /api/jobs ──────────────────────────────────────────────────────────

func seedBrowseJob(t *testing.T, fx serverFixture, id, category, description string, active bool, createdAt time.Time) {
	t.Helper()
	err := fx.jobs.Insert(context.Background(), &model.JobPosting{
		JobID:          id,
		Title:          "Engineer",
		Company:        "Acme",
		URL:            "https://example.com/" + id,
		Source:         model.SourceArbeitnow,
		Description:    description,
		SearchCategory: category,
		IsActive:       active,
		CreatedAt:      createdAt,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestJobs_ListsActiveDescribedPostings(t *testing.T) {
	fx := newServer(t)
	now := time.Now().UTC()
	seedBrowseJob(t, fx, "arbeitnow_1", "Backend Engineer", "Build Go services.", true, now)
	seedBrowseJob(t, fx, "arbeitnow_2", "Backend Engineer", "", true, now)
	seedBrowseJob(t, fx, "arbeitnow_3", "Backend Engineer", "Build Go services.", false, now)

	rec := doRequest(fx, http.MethodGet, "/api/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Jobs         []model.JobPosting `json:"jobs"`
		Total        int64              `json:"total"`
		NewJobsCount int                `json:"new_jobs_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != 1 {
		t.Errorf("total = %d, want 1 (undescribed and inactive postings excluded)", body.Total)
	}
	if len(body.Jobs) != 1 || body.Jobs[0].JobID != "arbeitnow_1" {
		t.Fatalf("jobs = %v, want only arbeitnow_1", body.Jobs)
	}
	if body.NewJobsCount != 1 {
		t.Errorf("new_jobs_count = %d, want 1 (scraped within 24h)", body.NewJobsCount)
	}
}

func TestJobs_WeekFilterExcludesOlderPostings(t *testing.T) {
	fx := newServer(t)
	now := time.Now().UTC()
	seedBrowseJob(t, fx, "arbeitnow_new", "Backend Engineer", "Build Go services.", true, now)
	seedBrowseJob(t, fx, "arbeitnow_old", "Backend Engineer", "Build Go services.", true, now.AddDate(0, 0, -10))

	rec := doRequest(fx, http.MethodGet, "/api/jobs?date_filter=week", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Jobs  []model.JobPosting `json:"jobs"`
		Total int64              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Total != 1 || len(body.Jobs) != 1 || body.Jobs[0].JobID != "arbeitnow_new" {
		t.Errorf("got total %d jobs %v, want only arbeitnow_new", body.Total, body.Jobs)
	}
}

func TestJobs_RejectsBadParams(t *testing.T) {
	fx := newServer(t)
	for _, path := range []string{
		"/api/jobs?date_filter=fortnight",
		"/api/jobs?limit=0",
		"/api/jobs?limit=501",
		"/api/jobs?skip=-1",
	} {
		if rec := doRequest(fx, http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, rec.Code)
		}
	}
}

// ── GET /api/jobs/detail/{job_id} ──────────────────────────────────────────

func TestJobDetail(t *testing.T) {
	fx := newServer(t)
	seedBrowseJob(t, fx, "arbeitnow_1", "Backend Engineer", "Build Go services.", true, time.Now().UTC())

	rec := doRequest(fx, http.MethodGet, "/api/jobs/detail/arbeitnow_1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var job model.JobPosting
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.JobID != "arbeitnow_1" || job.Description != "Build Go services." {
		t.Errorf("got %s/%q, want arbeitnow_1 with its description", job.JobID, job.Description)
	}

	if rec := doRequest(fx, http.MethodGet, "/api/jobs/detail/arbeitnow_missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}
}

// ── GET /api/categories ────────────────────────────────────────────────────

func TestCategories_DistinctSortedActive(t *testing.T) {
	fx := newServer(t)
	now := time.Now().UTC()
	seedBrowseJob(t, fx, "arbeitnow_1", "Data Scientist", "Build Go services.", true, now)
	seedBrowseJob(t, fx, "arbeitnow_2", "Backend Engineer", "Build Go services.", true, now)
	seedBrowseJob(t, fx, "arbeitnow_3", "Backend Engineer", "Build Go services.", true, now)
	seedBrowseJob(t, fx, "arbeitnow_4", "Platform Engineer", "Build Go services.", false, now)

	rec := doRequest(fx, http.MethodGet, "/api/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []string{"Backend Engineer", "Data Scientist"}
	if len(body.Categories) != len(want) {
		t.Fatalf("categories = %v, want %v", body.Categories, want)
	}
	for i := range want {
		if body.Categories[i] != want[i] {
			t.Errorf("categories[%d] = %q, want %q", i, body.Categories[i], want[i])
		}
	}
}

// ── DELETE /api/categories/{category} ──────────────────────────────────────

func TestDeleteCategory(t *testing.T) {
	fx := newServer(t)
	seed := func(id, category string) {
		err := fx.jobs.Insert(context.Background(), &model.JobPosting{
			JobID:          id,
			Title:          "Engineer",
			Company:        "Acme",
			URL:            "https://example.com/" + id,
			Source:         model.SourceArbeitnow,
			SearchCategory: category,
			IsActive:       true,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("arbeitnow_1", "Backend Engineer")
	seed("arbeitnow_2", "Backend Engineer")
	seed("arbeitnow_3", "Data Scientist")

	rec := doRequest(fx, http.MethodDelete, "/api/categories/Backend%20Engineer", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Category string `json:"category"`
		Deleted  int64  `json:"deleted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", body.Deleted)
	}
	if fx.jobs.Len() != 1 {
		t.Errorf("store holds %d records, want only the other category", fx.jobs.Len())
	}
}
