// Package ingest coordinates scraping runs: candidate batches flow from the
// source scrapers through the merge engine into the job store, tracked by a
// scrape session.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"jobradar/ingest-service/internal/model"
	"jobradar/ingest-service/internal/store"
)

// MinDescriptionLen is the acceptance gate, measured in characters:
// candidates whose trimmed description is shorter never reach the store, and
// duplicates carrying a short description cannot overwrite a longer stored
// one.
const MinDescriptionLen = 50

// descriptionLongEnough counts runes, not bytes, so non-ASCII postings are
// gated the same as ASCII ones.
func descriptionLongEnough(description string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(description)) >= MinDescriptionLen
}

// Result summarizes one merged batch.
type Result struct {
	Total      int
	Inserted   int
	Duplicates int
	Rejected   int
}

// MergeEngine dedupes candidate postings against the job store. Merging is
// enrichment-only: an existing record's populated fields are never replaced,
// so re-running the same batch is a no-op beyond freshness stamps.
type MergeEngine struct {
	jobs   store.JobStore
	logger *zap.Logger
	now    func() time.Time
}

func NewMergeEngine(jobs store.JobStore, logger *zap.Logger) *MergeEngine {
	return &MergeEngine{
		jobs:   jobs,
		logger: logger.Named("merge"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// MergeBatch applies the acceptance gate and upserts each surviving
// candidate. New records are stamped with the session's category and id;
// existing records only gain fields they were missing plus a refreshed
// last_verified. Store failures abort the batch.
func (m *MergeEngine) MergeBatch(ctx context.Context, candidates []model.JobPosting, category, sessionID string) (Result, error) {
	res := Result{Total: len(candidates)}

	for _, candidate := range candidates {
		if !descriptionLongEnough(candidate.Description) {
			res.Rejected++
			continue
		}

		existing, err := m.jobs.FindByID(ctx, candidate.JobID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if err := m.insert(ctx, candidate, category, sessionID); err != nil {
				return res, err
			}
			res.Inserted++
		case err != nil:
			return res, fmt.Errorf("lookup %s: %w", candidate.JobID, err)
		default:
			if err := m.enrich(ctx, *existing, candidate, category, sessionID); err != nil {
				return res, err
			}
			res.Duplicates++
		}
	}

	m.logger.Info("batch merged",
		zap.String("category", category),
		zap.Int("total", res.Total),
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("rejected", res.Rejected))
	return res, nil
}

func (m *MergeEngine) insert(ctx context.Context, job model.JobPosting, category, sessionID string) error {
	now := m.now()

	job.SearchCategory = category
	job.ScrapeSessionID = sessionID
	job.IsActive = true
	job.LastVerified = now
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.PostedDate == nil {
		posted := now
		job.PostedDate = &posted
	}

	if err := m.jobs.Insert(ctx, &job); err != nil {
		return fmt.Errorf("insert %s: %w", job.JobID, err)
	}
	return nil
}

// enrich fills only the gaps on the stored record. The first session to
// categorize a job keeps that category.
func (m *MergeEngine) enrich(ctx context.Context, existing model.JobPosting, candidate model.JobPosting, category, sessionID string) error {
	fields := map[string]any{
		"last_verified": m.now(),
	}
	if existing.SearchCategory == "" && category != "" {
		fields["search_category"] = category
	}
	if existing.Description == "" && candidate.Description != "" {
		fields["description"] = candidate.Description
	}
	if existing.Salary == "" && candidate.Salary != "" {
		fields["salary"] = candidate.Salary
	}
	if existing.JobType == "" && candidate.JobType != "" {
		fields["job_type"] = candidate.JobType
	}
	if existing.ScrapeSessionID == "" && sessionID != "" {
		fields["scrape_session_id"] = sessionID
	}

	if err := m.jobs.SetFields(ctx, existing.JobID, fields); err != nil {
		return fmt.Errorf("enrich %s: %w", existing.JobID, err)
	}
	return nil
}
