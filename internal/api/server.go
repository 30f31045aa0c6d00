// Package api exposes the service's HTTP surface: health, on-demand scrape
// and verify triggers, job browsing, session history, and category cleanup.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobradar/ingest-service/internal/ingest"
	"jobradar/ingest-service/internal/model"
	"jobradar/ingest-service/internal/store"
	"jobradar/ingest-service/internal/verify"
)

// Server holds the HTTP handlers. Scrape and verify triggers return 202 and
// run in the background; results land in the session store and logs.
type Server struct {
	orch     *ingest.Orchestrator
	sweep    *verify.Sweep
	jobs     store.JobStore
	sessions store.SessionStore
	logger   *zap.Logger
}

func NewServer(orch *ingest.Orchestrator, sweep *verify.Sweep, jobs store.JobStore, sessions store.SessionStore, logger *zap.Logger) *Server {
	return &Server{
		orch:     orch,
		sweep:    sweep,
		jobs:     jobs,
		sessions: sessions,
		logger:   logger.Named("api"),
	}
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/scrape", s.handleScrape)
	mux.HandleFunc("POST /api/verify", s.handleVerify)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/jobs/detail/{job_id}", s.handleJobDetail)
	mux.HandleFunc("GET /api/scrape-sessions", s.handleSessions)
	mux.HandleFunc("GET /api/scrape-sessions/{id}/jobs", s.handleSessionJobs)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("DELETE /api/categories/{category}", s.handleDeleteCategory)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScrape validates the request and kicks off an ingestion run in the
// background, detached from the request context.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req model.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Keywords) == "" {
		writeError(w, http.StatusBadRequest, "role is required")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.orch.Run(ctx, req); err != nil {
			s.logger.Error("background ingestion failed",
				zap.String("role", req.Keywords), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"role":   req.Keywords,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if _, err := s.sweep.Run(ctx); err != nil {
			s.logger.Error("background verification failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleJobs lists active postings with descriptions, newest first, with an
// optional created_at window and skip/limit paging.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	skip := 0
	if raw := q.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "skip must be a non-negative integer")
			return
		}
		skip = n
	}
	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1-500")
			return
		}
		limit = n
	}
	now := time.Now().UTC()
	since, until, ok := dateWindow(q.Get("date_filter"), now)
	if !ok {
		writeError(w, http.StatusBadRequest, "date_filter must be one of today, yesterday, week, all")
		return
	}

	jobs, total, err := s.jobs.ListDescribed(r.Context(), since, until, skip, limit)
	if err != nil {
		s.logger.Error("job listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load jobs")
		return
	}
	if jobs == nil {
		jobs = []model.JobPosting{}
	}

	newThreshold := now.Add(-24 * time.Hour)
	newCount := 0
	for _, j := range jobs {
		if j.CreatedAt.After(newThreshold) {
			newCount++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":           jobs,
		"total":          total,
		"new_jobs_count": newCount,
	})
}

// dateWindow maps a filter name onto a half-open created_at range. Zero
// bounds leave that side open; day boundaries are midnight UTC.
func dateWindow(filter string, now time.Time) (since, until time.Time, ok bool) {
	midnight := now.Truncate(24 * time.Hour)
	switch filter {
	case "", "all":
		return time.Time{}, time.Time{}, true
	case "today":
		return midnight, time.Time{}, true
	case "yesterday":
		return midnight.AddDate(0, 0, -1), midnight, true
	case "week":
		return now.AddDate(0, 0, -7), time.Time{}, true
	}
	return time.Time{}, time.Time{}, false
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	job, err := s.jobs.FindByID(r.Context(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("job lookup failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.jobs.ListCategories(r.Context())
	if err != nil {
		s.logger.Error("category listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load categories")
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be 1-100")
			return
		}
		limit = n
	}

	sessions, err := s.sessions.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("session listing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) handleSessionJobs(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	jobs, err := s.jobs.ListBySession(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("session job listing failed",
			zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"count":      len(jobs),
		"jobs":       jobs,
	})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.PathValue("category"))
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}

	deleted, err := s.jobs.DeleteCategory(r.Context(), category)
	if err != nil {
		s.logger.Error("category delete failed",
			zap.String("category", category), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"deleted":  deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
