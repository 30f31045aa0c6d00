// Package model defines shared data structures for the ingest service.
package model

import (
	"strings"
	"time"
	"unicode"
)

// Source identifies the job board a posting was scraped from.
type Source string

const (
	SourceJSearch   Source = "jsearch"
	SourceArbeitnow Source = "arbeitnow"
	SourceLinkedIn  Source = "linkedin"
	SourceIndeed    Source = "indeed"
	SourceGlassdoor Source = "glassdoor" // appears via the JSearch publisher mapping only
)

// JobPosting is the canonical, source-agnostic representation of one job
// posting. JobID is "<source>_<native id>" and globally unique across all time.
// Optional string fields use "" for "unset"; the merge engine only ever fills
// unset fields, never overwrites populated ones.
type JobPosting struct {
	JobID           string     `json:"job_id"`
	Title           string     `json:"title"`
	Company         string     `json:"company"`
	Location        string     `json:"location"`
	URL             string     `json:"url"`
	Source          Source     `json:"source"`
	Description     string     `json:"description,omitempty"`
	Salary          string     `json:"salary,omitempty"`
	JobType         string     `json:"job_type,omitempty"`
	PostedDate      *time.Time `json:"posted_date,omitempty"`
	IsActive        bool       `json:"is_active"`
	LastVerified    time.Time  `json:"last_verified"`
	ExpiredDate     *time.Time `json:"expired_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	SearchCategory  string     `json:"search_category,omitempty"`
	ScrapeSessionID string     `json:"scrape_session_id,omitempty"`
}

// SessionStatus is the lifecycle state of a scrape session.
// in_progress transitions exactly once to completed or failed.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// ScrapeSession is the audit record of one orchestrator invocation.
type ScrapeSession struct {
	SessionID      string        `json:"session_id"`
	SearchQuery    string        `json:"search_query"`
	SearchLocation string        `json:"search_location"`
	Platforms      []string      `json:"platforms"`
	TotalJobs      int           `json:"total_jobs"`
	NewJobs        int           `json:"new_jobs"`
	DuplicateJobs  int           `json:"duplicate_jobs"`
	ScrapedAt      time.Time     `json:"scraped_at"`
	Status         SessionStatus `json:"status"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// SearchOffset is the resumable-pagination bookmark for one (keywords,
// location) composite key. It is upserted after every invocation.
type SearchOffset struct {
	SearchKey     string    `json:"search_key"`
	Keywords      string    `json:"keywords"`
	Location      string    `json:"location"`
	CurrentOffset int       `json:"current_offset"`
	Platforms     []string  `json:"platforms"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SearchRequest is the input to one orchestrator invocation. The JSON tags
// mirror the public API body.
type SearchRequest struct {
	Keywords         string   `json:"role"`
	Location         string   `json:"location"`
	Sources          []Source `json:"platforms"`
	MaxJobs          int      `json:"max_jobs"`
	ContinueFromLast bool     `json:"continue_from_last"`
}

// ScrapeSummary is returned to callers of an ingestion run, even on partial
// failure.
type ScrapeSummary struct {
	SessionID     string        `json:"session_id"`
	TotalJobs     int           `json:"total_jobs"`
	NewJobs       int           `json:"new_jobs"`
	DuplicateJobs int           `json:"duplicate_jobs"`
	RejectedJobs  int           `json:"rejected_jobs"`
	Status        SessionStatus `json:"status"`
}

// VerifySummary is returned by a verification sweep.
type VerifySummary struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
}

// SearchKey builds the normalized composite key for SearchOffset lookup:
// lowercase, whitespace-trimmed "keywords|location".
func SearchKey(keywords, location string) string {
	k := strings.ToLower(strings.TrimSpace(keywords))
	l := strings.ToLower(strings.TrimSpace(location))
	return k + "|" + l
}

// NormalizeCategory turns raw query keywords into a title-cased search
// category, e.g. "spring boot developer" -> "Spring Boot Developer".
func NormalizeCategory(keywords string) string {
	fields := strings.Fields(strings.ToLower(keywords))
	for i, f := range fields {
		r := []rune(f)
		r[0] = unicode.ToUpper(r[0])
		fields[i] = string(r)
	}
	return strings.Join(fields, " ")
}
