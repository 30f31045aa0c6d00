package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobradar/ingest-service/internal/model"
)

// ─── Jobs ────────────────────────────────────────────────────────────────────

// updatableJobColumns is the whitelist for JobStore.SetFields. job_id, title,
// company, url, source and created_at are immutable after insert.
var updatableJobColumns = map[string]bool{
	"description":       true,
	"salary":            true,
	"job_type":          true,
	"search_category":   true,
	"scrape_session_id": true,
	"last_verified":     true,
	"is_active":         true,
	"expired_date":      true,
}

const jobColumns = `job_id, title, company, location, url, source, description,
	salary, job_type, posted_date, is_active, last_verified, expired_date,
	created_at, search_category, scrape_session_id`

// PGJobStore is the PostgreSQL-backed JobStore.
type PGJobStore struct {
	pool *pgxpool.Pool
}

// NewPGJobStore returns a JobStore backed by the given pool.
func NewPGJobStore(pool *pgxpool.Pool) *PGJobStore {
	return &PGJobStore{pool: pool}
}

func (s *PGJobStore) FindByID(ctx context.Context, jobID string) (*model.JobPosting, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *PGJobStore) Insert(ctx context.Context, job *model.JobPosting) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		job.JobID, job.Title, job.Company, job.Location, job.URL, string(job.Source),
		job.Description, job.Salary, job.JobType, job.PostedDate, job.IsActive,
		job.LastVerified, job.ExpiredDate, job.CreatedAt, job.SearchCategory,
		job.ScrapeSessionID,
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	return nil
}

func (s *PGJobStore) SetFields(ctx context.Context, jobID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	// Deterministic column order keeps the generated SQL stable.
	cols := make([]string, 0, len(fields))
	for c := range fields {
		if !updatableJobColumns[c] {
			return fmt.Errorf("set fields on job %s: column %q is not updatable", jobID, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	set := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	args = append(args, jobID)
	for i, c := range cols {
		set = append(set, fmt.Sprintf("%s = $%d", c, i+2))
		args = append(args, fields[c])
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET `+strings.Join(set, ", ")+` WHERE job_id = $1`, args...)
	if err != nil {
		return fmt.Errorf("set fields on job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGJobStore) ListActive(ctx context.Context) ([]model.JobPosting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE is_active = TRUE ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.JobPosting
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list active jobs scan: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *PGJobStore) ListBySession(ctx context.Context, sessionID string) ([]model.JobPosting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE scrape_session_id = $1 ORDER BY created_at DESC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session %s jobs: %w", sessionID, err)
	}
	defer rows.Close()

	var jobs []model.JobPosting
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list session %s jobs scan: %w", sessionID, err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *PGJobStore) ListDescribed(ctx context.Context, since, until time.Time, skip, limit int) ([]model.JobPosting, int64, error) {
	where := `is_active = TRUE AND description <> ''`
	args := []any{}
	if !since.IsZero() {
		args = append(args, since)
		where += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !until.IsZero() {
		args = append(args, until)
		where += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}

	var total int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count described jobs: %w", err)
	}

	args = append(args, skip, limit)
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT `+jobColumns+` FROM jobs WHERE `+where+
			` ORDER BY created_at DESC OFFSET $%d LIMIT $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list described jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.JobPosting
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("list described jobs scan: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, total, rows.Err()
}

func (s *PGJobStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT search_category FROM jobs
		 WHERE is_active = TRUE AND search_category <> ''
		 ORDER BY search_category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("list categories scan: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *PGJobStore) DeleteCategory(ctx context.Context, category string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE search_category = $1`, category)
	if err != nil {
		return 0, fmt.Errorf("delete category %q: %w", category, err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*model.JobPosting, error) {
	var j model.JobPosting
	var source string
	if err := row.Scan(
		&j.JobID, &j.Title, &j.Company, &j.Location, &j.URL, &source,
		&j.Description, &j.Salary, &j.JobType, &j.PostedDate, &j.IsActive,
		&j.LastVerified, &j.ExpiredDate, &j.CreatedAt, &j.SearchCategory,
		&j.ScrapeSessionID,
	); err != nil {
		return nil, err
	}
	j.Source = model.Source(source)
	return &j, nil
}

// ─── Scrape sessions ─────────────────────────────────────────────────────────

// PGSessionStore is the PostgreSQL-backed SessionStore.
type PGSessionStore struct {
	pool *pgxpool.Pool
}

// NewPGSessionStore returns a SessionStore backed by the given pool.
func NewPGSessionStore(pool *pgxpool.Pool) *PGSessionStore {
	return &PGSessionStore{pool: pool}
}

func (s *PGSessionStore) Create(ctx context.Context, sess *model.ScrapeSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_sessions
		   (session_id, search_query, search_location, platforms,
		    total_jobs, new_jobs, duplicate_jobs, scraped_at, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sess.SessionID, sess.SearchQuery, sess.SearchLocation, sess.Platforms,
		sess.TotalJobs, sess.NewJobs, sess.DuplicateJobs, sess.ScrapedAt,
		string(sess.Status), sess.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.SessionID, err)
	}
	return nil
}

func (s *PGSessionStore) Finalize(ctx context.Context, sessionID string, status model.SessionStatus, total, newJobs, duplicates int, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scrape_sessions
		 SET status = $2, total_jobs = $3, new_jobs = $4, duplicate_jobs = $5, error_message = $6
		 WHERE session_id = $1 AND status = 'in_progress'`,
		sessionID, string(status), total, newJobs, duplicates, errMsg,
	)
	if err != nil {
		return fmt.Errorf("finalize session %s: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGSessionStore) ListRecent(ctx context.Context, limit int) ([]model.ScrapeSession, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, search_query, search_location, platforms,
		        total_jobs, new_jobs, duplicate_jobs, scraped_at, status, error_message
		 FROM scrape_sessions ORDER BY scraped_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.ScrapeSession
	for rows.Next() {
		var sess model.ScrapeSession
		var status string
		if err := rows.Scan(
			&sess.SessionID, &sess.SearchQuery, &sess.SearchLocation, &sess.Platforms,
			&sess.TotalJobs, &sess.NewJobs, &sess.DuplicateJobs, &sess.ScrapedAt,
			&status, &sess.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("list sessions scan: %w", err)
		}
		sess.Status = model.SessionStatus(status)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ─── Search offsets ──────────────────────────────────────────────────────────

// PGOffsetStore is the PostgreSQL-backed OffsetStore.
type PGOffsetStore struct {
	pool *pgxpool.Pool
}

// NewPGOffsetStore returns an OffsetStore backed by the given pool.
func NewPGOffsetStore(pool *pgxpool.Pool) *PGOffsetStore {
	return &PGOffsetStore{pool: pool}
}

func (s *PGOffsetStore) Find(ctx context.Context, searchKey string) (*model.SearchOffset, error) {
	var off model.SearchOffset
	err := s.pool.QueryRow(ctx,
		`SELECT search_key, keywords, location, current_offset, platforms, updated_at
		 FROM search_offsets WHERE search_key = $1`, searchKey,
	).Scan(&off.SearchKey, &off.Keywords, &off.Location, &off.CurrentOffset,
		&off.Platforms, &off.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find offset %q: %w", searchKey, err)
	}
	return &off, nil
}

func (s *PGOffsetStore) Upsert(ctx context.Context, off *model.SearchOffset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO search_offsets (search_key, keywords, location, current_offset, platforms, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (search_key) DO UPDATE
		 SET current_offset = EXCLUDED.current_offset,
		     platforms      = EXCLUDED.platforms,
		     updated_at     = EXCLUDED.updated_at`,
		off.SearchKey, off.Keywords, off.Location, off.CurrentOffset,
		off.Platforms, off.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert offset %q: %w", off.SearchKey, err)
	}
	return nil
}
