// Package storetest provides in-memory store implementations for tests.
// They mirror the postgres stores' semantics, including the set-only field
// whitelist and terminal-once session finalization.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"jobradar/ingest-service/internal/model"
	"jobradar/ingest-service/internal/store"
)

// JobStore is an in-memory store.JobStore.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]model.JobPosting

	// FailNext makes the next call return this error, then resets.
	FailNext error
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]model.JobPosting)}
}

func (s *JobStore) takeErr() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *JobStore) FindByID(ctx context.Context, jobID string) (*model.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return nil, err
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &job, nil
}

func (s *JobStore) Insert(ctx context.Context, job *model.JobPosting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return err
	}
	if _, exists := s.jobs[job.JobID]; exists {
		return fmt.Errorf("duplicate job_id %s", job.JobID)
	}
	s.jobs[job.JobID] = *job
	return nil
}

func (s *JobStore) SetFields(ctx context.Context, jobID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return err
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrNotFound
	}
	for col, val := range fields {
		switch col {
		case "description":
			job.Description = val.(string)
		case "salary":
			job.Salary = val.(string)
		case "job_type":
			job.JobType = val.(string)
		case "search_category":
			job.SearchCategory = val.(string)
		case "scrape_session_id":
			job.ScrapeSessionID = val.(string)
		case "last_verified":
			job.LastVerified = val.(time.Time)
		case "is_active":
			job.IsActive = val.(bool)
		case "expired_date":
			t := val.(time.Time)
			job.ExpiredDate = &t
		default:
			return fmt.Errorf("column %q not updatable", col)
		}
	}
	s.jobs[jobID] = job
	return nil
}

func (s *JobStore) ListActive(ctx context.Context) ([]model.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return nil, err
	}
	var out []model.JobPosting
	for _, job := range s.jobs {
		if job.IsActive {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}

func (s *JobStore) ListBySession(ctx context.Context, sessionID string) ([]model.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return nil, err
	}
	var out []model.JobPosting
	for _, job := range s.jobs {
		if job.ScrapeSessionID == sessionID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}

func (s *JobStore) ListDescribed(ctx context.Context, since, until time.Time, skip, limit int) ([]model.JobPosting, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return nil, 0, err
	}
	var matched []model.JobPosting
	for _, job := range s.jobs {
		if !job.IsActive || job.Description == "" {
			continue
		}
		if !since.IsZero() && job.CreatedAt.Before(since) {
			continue
		}
		if !until.IsZero() && !job.CreatedAt.Before(until) {
			continue
		}
		matched = append(matched, job)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if skip >= len(matched) {
		return nil, total, nil
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *JobStore) ListCategories(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, job := range s.jobs {
		if job.IsActive && job.SearchCategory != "" {
			seen[job.SearchCategory] = true
		}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *JobStore) DeleteCategory(ctx context.Context, category string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return 0, err
	}
	var deleted int64
	for id, job := range s.jobs {
		if job.SearchCategory == category {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

// Get returns a stored job by id for assertions.
func (s *JobStore) Get(jobID string) (model.JobPosting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

// Len reports the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// SessionStore is an in-memory store.SessionStore.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.ScrapeSession
	order    []string

	FailCreate   error
	FailFinalize error
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]model.ScrapeSession)}
}

func (s *SessionStore) Create(ctx context.Context, sess *model.ScrapeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	s.sessions[sess.SessionID] = *sess
	s.order = append(s.order, sess.SessionID)
	return nil
}

func (s *SessionStore) Finalize(ctx context.Context, sessionID string, status model.SessionStatus, total, newJobs, duplicates int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFinalize != nil {
		return s.FailFinalize
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	if sess.Status != model.StatusInProgress {
		return nil // already terminal
	}
	sess.Status = status
	sess.TotalJobs = total
	sess.NewJobs = newJobs
	sess.DuplicateJobs = duplicates
	sess.ErrorMessage = errMsg
	s.sessions[sessionID] = sess
	return nil
}

func (s *SessionStore) ListRecent(ctx context.Context, limit int) ([]model.ScrapeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScrapeSession, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.sessions[s.order[i]])
	}
	return out, nil
}

// Get returns a stored session by id for assertions.
func (s *SessionStore) Get(sessionID string) (model.ScrapeSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	return sess, ok
}

// OffsetStore is an in-memory store.OffsetStore.
type OffsetStore struct {
	mu      sync.Mutex
	offsets map[string]model.SearchOffset

	FailUpsert error
}

func NewOffsetStore() *OffsetStore {
	return &OffsetStore{offsets: make(map[string]model.SearchOffset)}
}

func (s *OffsetStore) Find(ctx context.Context, searchKey string) (*model.SearchOffset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	off, ok := s.offsets[searchKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &off, nil
}

func (s *OffsetStore) Upsert(ctx context.Context, off *model.SearchOffset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpsert != nil {
		return s.FailUpsert
	}
	s.offsets[off.SearchKey] = *off
	return nil
}

// Get returns a stored offset by key for assertions.
func (s *OffsetStore) Get(searchKey string) (model.SearchOffset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	off, ok := s.offsets[searchKey]
	return off, ok
}
