package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobradar/ingest-service/internal/model"
)

const (
	jsearchBaseURL  = "https://jsearch.p.rapidapi.com/search"
	jsearchPageSize = 10
	jsearchMaxPages = 10 // API hard limit
	httpTimeout     = 15 * time.Second
)

// JSearchScraper fetches job postings from the JSearch aggregation API
// (RapidAPI). If APIKey is empty, Search returns (nil, nil) gracefully with
// a configuration warning — the orchestrator simply proceeds with the other
// sources.
type JSearchScraper struct {
	APIKey  string
	BaseURL string
	Pacing  Pacing
	client  *http.Client
	logger  *zap.Logger
}

// NewJSearchScraper constructs a fetcher with a shared HTTP client.
func NewJSearchScraper(apiKey string, logger *zap.Logger) *JSearchScraper {
	return &JSearchScraper{
		APIKey:  apiKey,
		BaseURL: jsearchBaseURL,
		Pacing:  Pacing{Min: 500 * time.Millisecond, Max: time.Second},
		client:  &http.Client{Timeout: httpTimeout},
		logger:  logger.Named("jsearch"),
	}
}

func (s *JSearchScraper) Source() model.Source { return model.SourceJSearch }

// jsearchResponse mirrors the top-level JSearch JSON response.
type jsearchResponse struct {
	Data []jsearchResult `json:"data"`
}

// jsearchResult mirrors a single JSearch listing.
type jsearchResult struct {
	JobID          string  `json:"job_id"`
	Title          string  `json:"job_title"`
	Employer       string  `json:"employer_name"`
	Publisher      string  `json:"job_publisher"`
	City           string  `json:"job_city"`
	State          string  `json:"job_state"`
	Country        string  `json:"job_country"`
	IsRemote       bool    `json:"job_is_remote"`
	ApplyLink      string  `json:"job_apply_link"`
	Description    string  `json:"job_description"`
	EmploymentType string  `json:"job_employment_type"`
	SalaryMin      float64 `json:"job_min_salary"`
	SalaryMax      float64 `json:"job_max_salary"`
	SalaryPeriod   string  `json:"job_salary_period"`
	PostedAt       string  `json:"job_posted_at_datetime_utc"`
}

// Search iterates numbered result pages until the page budget is exhausted,
// the source returns zero items, or a rate-limit signal is received — in
// which case pagination stops early and already-collected results are
// returned without error.
func (s *JSearchScraper) Search(ctx context.Context, keywords, location string, opts SearchOptions) ([]model.JobPosting, error) {
	if s.APIKey == "" {
		s.logger.Warn("RAPIDAPI_KEY not configured — skipping source")
		return nil, nil
	}

	pages := opts.PageBudget / jsearchPageSize
	if pages < 1 {
		pages = 1
	}
	if pages > jsearchMaxPages {
		pages = jsearchMaxPages
	}

	var results []model.JobPosting

	for page := 1; page <= pages; page++ {
		batch, err := s.fetchPage(ctx, keywords, location, page)
		if errors.Is(err, ErrRateLimited) {
			s.logger.Warn("rate limit reached — stopping pagination",
				zap.Int("page", page), zap.Int("collected", len(results)))
			break
		}
		if err != nil {
			return results, fmt.Errorf("page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break // no more results
		}
		results = append(results, batch...)
		if len(results) >= opts.PageBudget && opts.PageBudget > 0 {
			results = results[:opts.PageBudget]
			break
		}
		if page < pages {
			if err := s.Pacing.Wait(ctx); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

func (s *JSearchScraper) fetchPage(ctx context.Context, keywords, location string, page int) ([]model.JobPosting, error) {
	query := keywords
	if location != "" {
		query += " in " + location
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("num_pages", "1")
	params.Set("date_posted", "month")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", s.APIKey)
	req.Header.Set("X-RapidAPI-Host", "jsearch.p.rapidapi.com")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jsearch returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp jsearchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	results := make([]model.JobPosting, 0, len(apiResp.Data))
	dropped := 0
	for _, r := range apiResp.Data {
		job, ok := s.normalize(r)
		if !ok {
			dropped++
			continue
		}
		results = append(results, job)
	}
	if dropped > 0 {
		s.logger.Debug("dropped unparseable items", zap.Int("count", dropped), zap.Int("page", page))
	}
	return results, nil
}

// normalize shapes one raw JSearch item into a canonical candidate. The
// publisher decides the source tag so identifiers line up with records
// scraped from the boards directly.
func (s *JSearchScraper) normalize(r jsearchResult) (model.JobPosting, bool) {
	if r.JobID == "" || r.Title == "" || r.ApplyLink == "" {
		return model.JobPosting{}, false
	}

	source := publisherSource(r.Publisher)

	location := "Remote"
	if !r.IsRemote {
		parts := make([]string, 0, 3)
		if r.City != "" {
			parts = append(parts, r.City)
		}
		if r.State != "" {
			parts = append(parts, r.State)
		}
		if r.Country != "" && r.Country != "US" {
			parts = append(parts, r.Country)
		}
		if len(parts) > 0 {
			location = strings.Join(parts, ", ")
		}
	}

	company := r.Employer
	if company == "" {
		company = "Not specified"
	}

	now := time.Now().UTC()
	posted := parseISODate(r.PostedAt, now)

	return model.JobPosting{
		JobID:        fmt.Sprintf("%s_%s", source, r.JobID),
		Title:        r.Title,
		Company:      company,
		Location:     location,
		URL:          r.ApplyLink,
		Source:       source,
		Description:  r.Description,
		Salary:       formatSalary(r.SalaryMin, r.SalaryMax, r.SalaryPeriod),
		JobType:      employmentType(r.EmploymentType),
		PostedDate:   &posted,
		IsActive:     true,
		LastVerified: now,
		CreatedAt:    now,
	}, true
}

// FetchDetail is a no-op: JSearch delivers full descriptions inline.
func (s *JSearchScraper) FetchDetail(ctx context.Context, url string) (Detail, error) {
	return Detail{}, nil
}

// CheckLiveness probes the apply link for reachability.
func (s *JSearchScraper) CheckLiveness(ctx context.Context, url string) (bool, error) {
	return probeReachable(ctx, s.client, url), nil
}

func publisherSource(publisher string) model.Source {
	p := strings.ToLower(publisher)
	switch {
	case strings.Contains(p, "indeed"):
		return model.SourceIndeed
	case strings.Contains(p, "linkedin"):
		return model.SourceLinkedIn
	case strings.Contains(p, "glassdoor"):
		return model.SourceGlassdoor
	default:
		return model.SourceJSearch
	}
}

func formatSalary(min, max float64, period string) string {
	if min <= 0 || max <= 0 {
		return ""
	}
	switch period {
	case "YEAR":
		return fmt.Sprintf("$%.0f - $%.0f/year", min, max)
	case "MONTH":
		return fmt.Sprintf("$%.0f - $%.0f/month", min, max)
	case "HOUR":
		return fmt.Sprintf("$%.2f - $%.2f/hour", min, max)
	default:
		return fmt.Sprintf("$%.0f - $%.0f", min, max)
	}
}

func employmentType(apiType string) string {
	switch apiType {
	case "FULLTIME":
		return "Full-time"
	case "PARTTIME":
		return "Part-time"
	case "CONTRACTOR":
		return "Contract"
	case "INTERN":
		return "Internship"
	default:
		return ""
	}
}
