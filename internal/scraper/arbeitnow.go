package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"jobradar/ingest-service/internal/model"
)

const arbeitnowBaseURL = "https://www.arbeitnow.com/api/job-board-api"

// ArbeitnowScraper fetches from the Arbeitnow public job board API. The API
// takes no query parameters, so keyword and location filtering happens
// client-side against the returned batch.
type ArbeitnowScraper struct {
	BaseURL string
	Pacing  Pacing
	client  *http.Client
	logger  *zap.Logger
}

func NewArbeitnowScraper(logger *zap.Logger) *ArbeitnowScraper {
	return &ArbeitnowScraper{
		BaseURL: arbeitnowBaseURL,
		Pacing:  Pacing{Min: 500 * time.Millisecond, Max: time.Second},
		client:  &http.Client{Timeout: httpTimeout},
		logger:  logger.Named("arbeitnow"),
	}
}

func (s *ArbeitnowScraper) Source() model.Source { return model.SourceArbeitnow }

type arbeitnowResponse struct {
	Data []arbeitnowResult `json:"data"`
}

type arbeitnowResult struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	CompanyName string   `json:"company_name"`
	Location    string   `json:"location"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Remote      bool     `json:"remote"`
	CreatedAt   int64    `json:"created_at"`
}

// Search pulls the current board and keeps postings whose title, description
// or tags contain every keyword part, optionally narrowed by location.
func (s *ArbeitnowScraper) Search(ctx context.Context, keywords, location string, opts SearchOptions) ([]model.JobPosting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arbeitnow returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var apiResp arbeitnowResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	results := make([]model.JobPosting, 0, len(apiResp.Data))
	for _, r := range apiResp.Data {
		if !matchesKeywords(r, keywords) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(r.Location), strings.ToLower(location)) {
			continue
		}
		results = append(results, s.normalize(r))
		if opts.PageBudget > 0 && len(results) >= opts.PageBudget {
			break
		}
	}

	s.logger.Debug("board scan complete",
		zap.Int("fetched", len(apiResp.Data)), zap.Int("matched", len(results)))
	return results, nil
}

// matchesKeywords requires every whitespace-separated keyword part to appear
// in at least one of the posting's searchable fields.
func matchesKeywords(r arbeitnowResult, keywords string) bool {
	parts := strings.Fields(strings.ToLower(keywords))
	if len(parts) == 0 {
		return true
	}
	haystack := strings.ToLower(r.Title + " " + r.Description + " " + strings.Join(r.Tags, " "))
	for _, part := range parts {
		if !strings.Contains(haystack, part) {
			return false
		}
	}
	return true
}

func (s *ArbeitnowScraper) normalize(r arbeitnowResult) model.JobPosting {
	now := time.Now().UTC()

	posted := now
	if r.CreatedAt > 0 {
		posted = time.Unix(r.CreatedAt, 0).UTC()
	}

	location := r.Location
	if location == "" {
		location = "Remote"
	}

	jobType := "On-site"
	if r.Remote {
		jobType = "Remote"
	}

	return model.JobPosting{
		JobID:        fmt.Sprintf("%s_%s", model.SourceArbeitnow, r.Slug),
		Title:        r.Title,
		Company:      r.CompanyName,
		Location:     location,
		URL:          r.URL,
		Source:       model.SourceArbeitnow,
		Description:  htmlToText(r.Description),
		JobType:      jobType,
		PostedDate:   &posted,
		IsActive:     true,
		LastVerified: now,
		CreatedAt:    now,
	}
}

// FetchDetail loads the posting page and extracts the long-form description.
// Best effort: any failure returns an empty detail so the inline description
// stands.
func (s *ArbeitnowScraper) FetchDetail(ctx context.Context, jobURL string) (Detail, error) {
	if _, err := url.Parse(jobURL); err != nil {
		return Detail{}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURL, nil)
	if err != nil {
		return Detail{}, nil
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Detail{}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Detail{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Detail{}, nil
	}
	sel := doc.Find("div.job-description, article, main").First()
	if sel.Length() == 0 {
		return Detail{}, nil
	}
	return Detail{Description: cleanDescription(sel)}, nil
}

func (s *ArbeitnowScraper) CheckLiveness(ctx context.Context, url string) (bool, error) {
	return probeReachable(ctx, s.client, url), nil
}
