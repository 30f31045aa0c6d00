// Package store persists job records, scrape sessions and search offsets.
//
// The three stores model a generic document collection each: lookups by
// stable identifier, whole-record inserts, and set-only partial updates.
// Every mutation touches a single row, so concurrent ingestion and
// verification need no external locking.
package store

import (
	"context"
	"errors"
	"time"

	"jobradar/ingest-service/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// JobStore persists canonical job postings.
type JobStore interface {
	FindByID(ctx context.Context, jobID string) (*model.JobPosting, error)
	Insert(ctx context.Context, job *model.JobPosting) error
	// SetFields applies a set-only partial update. Keys are column names from
	// a fixed whitelist; unknown keys are an error. Fields absent from the
	// map are left untouched, which is what makes enrichment-only merging
	// safe under concurrent writers.
	SetFields(ctx context.Context, jobID string, fields map[string]any) error
	ListActive(ctx context.Context) ([]model.JobPosting, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.JobPosting, error)
	// ListDescribed pages through active postings that carry a description,
	// newest first by scrape time. Zero bounds leave that side of the
	// created_at window open. total counts all matches, not just the page.
	ListDescribed(ctx context.Context, since, until time.Time, skip, limit int) (jobs []model.JobPosting, total int64, err error)
	// ListCategories returns the distinct non-empty categories of active
	// postings, sorted.
	ListCategories(ctx context.Context) ([]string, error)
	// DeleteCategory removes every record in a search category. This is the
	// only hard-delete path in the system.
	DeleteCategory(ctx context.Context, category string) (int64, error)
}

// SessionStore persists scrape session audit records.
type SessionStore interface {
	Create(ctx context.Context, s *model.ScrapeSession) error
	// Finalize performs the single terminal status transition of a session.
	Finalize(ctx context.Context, sessionID string, status model.SessionStatus, total, newJobs, duplicates int, errMsg string) error
	ListRecent(ctx context.Context, limit int) ([]model.ScrapeSession, error)
}

// OffsetStore persists resumable-pagination bookmarks, keyed by the
// normalized (keywords, location) search key.
type OffsetStore interface {
	Find(ctx context.Context, searchKey string) (*model.SearchOffset, error)
	Upsert(ctx context.Context, off *model.SearchOffset) error
}
