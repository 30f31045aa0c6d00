package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    job_id            TEXT PRIMARY KEY,
    title             TEXT NOT NULL,
    company           TEXT NOT NULL,
    location          TEXT NOT NULL,
    url               TEXT NOT NULL,
    source            TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    salary            TEXT NOT NULL DEFAULT '',
    job_type          TEXT NOT NULL DEFAULT '',
    posted_date       TIMESTAMPTZ,
    is_active         BOOLEAN NOT NULL DEFAULT TRUE,
    last_verified     TIMESTAMPTZ NOT NULL,
    expired_date      TIMESTAMPTZ,
    created_at        TIMESTAMPTZ NOT NULL,
    search_category   TEXT NOT NULL DEFAULT '',
    scrape_session_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_jobs_active   ON jobs (is_active, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_category ON jobs (search_category);
CREATE INDEX IF NOT EXISTS idx_jobs_session  ON jobs (scrape_session_id);

CREATE TABLE IF NOT EXISTS scrape_sessions (
    session_id      TEXT PRIMARY KEY,
    search_query    TEXT NOT NULL,
    search_location TEXT NOT NULL DEFAULT '',
    platforms       TEXT[] NOT NULL DEFAULT '{}',
    total_jobs      INT NOT NULL DEFAULT 0,
    new_jobs        INT NOT NULL DEFAULT 0,
    duplicate_jobs  INT NOT NULL DEFAULT 0,
    scraped_at      TIMESTAMPTZ NOT NULL,
    status          TEXT NOT NULL,
    error_message   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_scraped_at ON scrape_sessions (scraped_at DESC);

CREATE TABLE IF NOT EXISTS search_offsets (
    search_key     TEXT PRIMARY KEY,
    keywords       TEXT NOT NULL,
    location       TEXT NOT NULL DEFAULT '',
    current_offset INT NOT NULL DEFAULT 0,
    platforms      TEXT[] NOT NULL DEFAULT '{}',
    updated_at     TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the three collections if they do not exist yet.
// Called once at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
