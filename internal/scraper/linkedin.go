package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"jobradar/ingest-service/internal/model"
)

const (
	linkedinSearchURL = "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search"
	linkedinPageSize  = 25
)

// LinkedInScraper fetches from LinkedIn's unauthenticated guest search
// endpoint, which returns HTML card fragments paginated by a start offset.
type LinkedInScraper struct {
	SearchURL string
	Pacing    Pacing
	client    *http.Client
	logger    *zap.Logger
}

func NewLinkedInScraper(logger *zap.Logger) *LinkedInScraper {
	return &LinkedInScraper{
		SearchURL: linkedinSearchURL,
		Pacing:    Pacing{Min: time.Second, Max: 3 * time.Second},
		client:    &http.Client{Timeout: httpTimeout},
		logger:    logger.Named("linkedin"),
	}
}

func (s *LinkedInScraper) Source() model.Source { return model.SourceLinkedIn }

// Search walks offset pages of 25 cards until the budget is met or a page
// comes back empty. Partial results with a wrapped error are returned when a
// mid-pagination request fails.
func (s *LinkedInScraper) Search(ctx context.Context, keywords, location string, opts SearchOptions) ([]model.JobPosting, error) {
	pages := opts.PageBudget / linkedinPageSize
	if pages < 1 {
		pages = 1
	}

	var results []model.JobPosting

	for page := 0; page < pages; page++ {
		start := opts.Offset + page*linkedinPageSize

		html, err := s.fetchFragment(ctx, keywords, location, start)
		if err != nil {
			return results, fmt.Errorf("start %d: %w", start, err)
		}

		batch, err := parseLinkedInCards(html)
		if err != nil {
			return results, fmt.Errorf("parse start %d: %w", start, err)
		}
		if len(batch) == 0 {
			break // exhausted
		}
		results = append(results, batch...)
		if opts.PageBudget > 0 && len(results) >= opts.PageBudget {
			results = results[:opts.PageBudget]
			break
		}
		if page < pages-1 {
			if err := s.Pacing.Wait(ctx); err != nil {
				return results, err
			}
		}
	}

	s.logger.Debug("guest search complete", zap.Int("collected", len(results)))
	return results, nil
}

func (s *LinkedInScraper) fetchFragment(ctx context.Context, keywords, location string, start int) (string, error) {
	params := url.Values{}
	params.Set("keywords", keywords)
	if location != "" {
		params.Set("location", location)
	}
	params.Set("start", strconv.Itoa(start))
	params.Set("f_TPR", "r2592000") // past 30 days

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.SearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("linkedin returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}
	html, err := doc.Html()
	if err != nil {
		return "", err
	}
	return html, nil
}

// parseLinkedInCards extracts postings from a guest search HTML fragment.
func parseLinkedInCards(html string) ([]model.JobPosting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var results []model.JobPosting

	doc.Find("div.base-card, li").Each(func(_ int, card *goquery.Selection) {
		link, ok := card.Find("a.base-card__full-link").First().Attr("href")
		if !ok {
			return
		}
		jobURL := strings.SplitN(link, "?", 2)[0]
		nativeID := linkedinNativeID(jobURL)
		if nativeID == "" {
			return
		}

		title := strings.TrimSpace(card.Find("h3.base-search-card__title").First().Text())
		company := strings.TrimSpace(card.Find("h4.base-search-card__subtitle").First().Text())
		if title == "" {
			return
		}
		if company == "" {
			company = "Not specified"
		}

		location := strings.TrimSpace(card.Find("span.job-search-card__location").First().Text())
		salary := strings.TrimSpace(card.Find("span.job-search-card__salary-info").First().Text())
		salary = collapseWhitespace(salary)

		posted := now
		if dt, ok := card.Find("time").First().Attr("datetime"); ok {
			posted = parseISODate(dt, now)
		}

		results = append(results, model.JobPosting{
			JobID:        fmt.Sprintf("%s_%s", model.SourceLinkedIn, nativeID),
			Title:        title,
			Company:      company,
			Location:     location,
			URL:          jobURL,
			Source:       model.SourceLinkedIn,
			Salary:       salary,
			PostedDate:   &posted,
			IsActive:     true,
			LastVerified: now,
			CreatedAt:    now,
		})
	})

	return results, nil
}

// linkedinNativeID pulls the numeric posting id off the canonical job URL,
// which ends in a hyphen-separated slug ("...-at-acme-4012345678").
func linkedinNativeID(jobURL string) string {
	trimmed := strings.TrimRight(jobURL, "/")
	idx := strings.LastIndex(trimmed, "-")
	if idx < 0 || idx == len(trimmed)-1 {
		return ""
	}
	id := trimmed[idx+1:]
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id
}

// FetchDetail loads the public posting page and extracts the expanded
// description plus the employment type criteria row.
func (s *LinkedInScraper) FetchDetail(ctx context.Context, jobURL string) (Detail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURL, nil)
	if err != nil {
		return Detail{}, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return Detail{}, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Detail{}, fmt.Errorf("linkedin returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Detail{}, fmt.Errorf("parse detail: %w", err)
	}

	var detail Detail
	if sel := doc.Find("div.show-more-less-html__markup").First(); sel.Length() > 0 {
		detail.Description = cleanDescription(sel)
	}
	doc.Find("li.description__job-criteria-item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		header := strings.TrimSpace(item.Find("h3").First().Text())
		if strings.Contains(strings.ToLower(header), "employment type") {
			detail.JobType = strings.TrimSpace(item.Find("span").First().Text())
			return false
		}
		return true
	})

	return detail, nil
}

func (s *LinkedInScraper) CheckLiveness(ctx context.Context, url string) (bool, error) {
	return probeReachable(ctx, s.client, url), nil
}
