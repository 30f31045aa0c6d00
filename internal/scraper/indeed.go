package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"jobradar/ingest-service/internal/model"
)

const (
	indeedBaseURL      = "https://www.indeed.com"
	indeedCardsPerPage = 15
	indeedMaxPages     = 3

	challengeTimeout = 60 * time.Second
	challengePoll    = time.Second
)

// listingSelectors is the cascade tried against each results page. Indeed
// rotates its markup between experiments, so the first selector yielding
// cards wins.
var listingSelectors = []string{
	"div.job_seen_beacon",
	"div.jobsearch-ResultsList > div",
	"ul.jobsearch-ResultsList > li",
	"[data-testid=jobListing]",
	"div.mosaic-provider-jobcards > div",
	"a[data-jk]",
}

// expiredPhrases mark a posting page as closed.
var expiredPhrases = []string{
	"job has expired",
	"no longer available",
	"no longer accepting applications",
}

// IndeedScraper drives a real Chrome session against Indeed's search pages.
// Anti-bot interstitials are waited out rather than bypassed; when a
// challenge does not clear within the allotted window the scraper returns
// whatever it collected so far.
type IndeedScraper struct {
	BaseURL string
	Pacing  Pacing
	driver  *browserDriver
	logger  *zap.Logger
}

func NewIndeedScraper(profileDir, cookiesFile string, headless bool, logger *zap.Logger) *IndeedScraper {
	return &IndeedScraper{
		BaseURL: indeedBaseURL,
		Pacing:  Pacing{Min: 2 * time.Second, Max: 5 * time.Second},
		driver:  newBrowserDriver(profileDir, cookiesFile, headless, logger),
		logger:  logger.Named("indeed"),
	}
}

func (s *IndeedScraper) Source() model.Source { return model.SourceIndeed }

// Search paginates search result pages through the browser session. The
// first page may hit an anti-bot challenge; a challenge that clears saves
// the resulting cookies, one that does not ends the search with partial
// results and no error.
func (s *IndeedScraper) Search(ctx context.Context, keywords, location string, opts SearchOptions) ([]model.JobPosting, error) {
	if err := s.driver.ensure(ctx); err != nil {
		return nil, err
	}

	pages := opts.PageBudget / indeedCardsPerPage
	if pages < 1 {
		pages = 1
	}
	if pages > indeedMaxPages {
		pages = indeedMaxPages
	}

	var results []model.JobPosting

	for page := 0; page < pages; page++ {
		start := opts.Offset + page*10
		searchURL := s.searchURL(keywords, location, start)

		title, html, err := s.driver.page(ctx, searchURL, 3*time.Second)
		if err != nil {
			return results, fmt.Errorf("page %d: %w", page, err)
		}

		if isChallenge(title, html) {
			cleared, cTitle, cHTML := s.awaitChallenge(ctx)
			if !cleared {
				s.logger.Warn("challenge did not clear — returning partial results",
					zap.Int("collected", len(results)))
				return results, nil
			}
			title, html = cTitle, cHTML
			if err := s.driver.saveCookies(); err != nil {
				s.logger.Debug("cookie save failed", zap.Error(err))
			}
		}

		batch := parseIndeedListing(html, s.BaseURL)
		if len(batch) == 0 {
			s.logger.Debug("no cards on page", zap.Int("page", page), zap.String("title", title))
			break
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

	return results, nil
}

func (s *IndeedScraper) searchURL(keywords, location string, start int) string {
	params := url.Values{}
	params.Set("q", keywords)
	if location != "" {
		params.Set("l", location)
	}
	params.Set("start", strconv.Itoa(start))
	params.Set("fromage", "30")
	return s.BaseURL + "/jobs?" + params.Encode()
}

// awaitChallenge polls the live page until the interstitial clears or the
// window expires. Returns the cleared page snapshot on success.
func (s *IndeedScraper) awaitChallenge(ctx context.Context) (bool, string, string) {
	s.driver.setState(stateChallengePending)
	defer s.driver.setState(stateReady)

	s.logger.Info("anti-bot challenge detected — waiting for clearance",
		zap.Duration("timeout", challengeTimeout))

	deadline := time.Now().Add(challengeTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false, "", ""
		case <-time.After(challengePoll):
		}

		title, html, err := s.driver.snapshot(ctx)
		if err != nil {
			continue
		}
		if challengeCleared(title, html) {
			s.logger.Info("challenge cleared")
			return true, title, html
		}
	}
	return false, "", ""
}

// isChallenge recognizes Cloudflare interstitials and captcha walls.
func isChallenge(title, html string) bool {
	t := strings.ToLower(title)
	h := strings.ToLower(html)

	if strings.Contains(t, "just a moment") || strings.Contains(t, "checking your browser") {
		return true
	}
	if strings.Contains(h, "hcaptcha") && strings.Contains(h, "challenge") {
		return true
	}
	if strings.Contains(h, "recaptcha") && strings.Contains(h, "challenge") {
		return true
	}
	if strings.Contains(h, "unusual traffic") || strings.Contains(h, "verify you are human") {
		return true
	}
	return false
}

// challengeCleared checks that the interstitial is gone and real search
// content is present.
func challengeCleared(title, html string) bool {
	if isChallenge(title, html) {
		return false
	}
	t := strings.ToLower(title)
	h := strings.ToLower(html)
	if strings.Contains(t, "indeed") {
		return true
	}
	return strings.Contains(h, "job_seen_beacon") || strings.Contains(h, "jobsearch-resultslist")
}

// parseIndeedListing extracts job cards from a serialized results page using
// the selector cascade.
func parseIndeedListing(html, baseURL string) []model.JobPosting {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var cards *goquery.Selection
	for _, selector := range listingSelectors {
		if found := doc.Find(selector); found.Length() > 0 {
			cards = found
			break
		}
	}
	if cards == nil {
		return nil
	}

	now := time.Now().UTC()
	var results []model.JobPosting

	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		jk := cardAttr(card, "data-jk")
		if jk == "" {
			return true
		}

		title := firstText(card, "h2.jobTitle span", "h2.jobTitle", "a[data-jk] span", "h2")
		if title == "" {
			return true
		}

		company := firstText(card, "[data-testid=company-name]", "span.companyName", "span.company")
		if company == "" {
			company = "Not specified"
		}
		location := firstText(card, "[data-testid=text-location]", "div.companyLocation", "span.location")
		salary := firstText(card, "[data-testid=attribute_snippet_testid]", "div.salary-snippet-container", "span.salaryText")

		posted := now
		if dateText := firstText(card, "span.date", "[data-testid=myJobsStateDate]"); dateText != "" {
			posted = parseRelativeDate(dateText, now)
		}

		results = append(results, model.JobPosting{
			JobID:        fmt.Sprintf("%s_%s", model.SourceIndeed, jk),
			Title:        title,
			Company:      company,
			Location:     location,
			URL:          baseURL + "/viewjob?jk=" + jk,
			Source:       model.SourceIndeed,
			Salary:       collapseWhitespace(salary),
			PostedDate:   &posted,
			IsActive:     true,
			LastVerified: now,
			CreatedAt:    now,
		})
		return len(results) < indeedCardsPerPage
	})

	return results
}

// cardAttr reads attr off the card itself or the first descendant carrying
// it.
func cardAttr(card *goquery.Selection, attr string) string {
	if v, ok := card.Attr(attr); ok {
		return v
	}
	if v, ok := card.Find("[" + attr + "]").First().Attr(attr); ok {
		return v
	}
	return ""
}

// firstText returns the trimmed text of the first selector that matches.
func firstText(card *goquery.Selection, selectors ...string) string {
	for _, selector := range selectors {
		if sel := card.Find(selector).First(); sel.Length() > 0 {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// FetchDetail loads a posting page in the browser and extracts the full
// description and job type. A challenge on a detail page is not waited out;
// the fetch fails and the candidate keeps its snippet.
func (s *IndeedScraper) FetchDetail(ctx context.Context, jobURL string) (Detail, error) {
	if err := s.driver.ensure(ctx); err != nil {
		return Detail{}, err
	}
	title, html, err := s.driver.page(ctx, jobURL, 2*time.Second)
	if err != nil {
		return Detail{}, err
	}
	if isChallenge(title, html) {
		return Detail{}, ErrChallengeNotCleared
	}
	return parseIndeedDetail(html), nil
}

func parseIndeedDetail(html string) Detail {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Detail{}
	}

	var detail Detail
	for _, selector := range []string{"#jobDescriptionText", "div.jobsearch-jobDescriptionText", "div.job-description"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			detail.Description = cleanDescription(sel)
			break
		}
	}

	if sel := doc.Find("#jobDetailsSection").First(); sel.Length() > 0 {
		text := strings.ToLower(sel.Text())
		switch {
		case strings.Contains(text, "full-time"):
			detail.JobType = "Full-time"
		case strings.Contains(text, "part-time"):
			detail.JobType = "Part-time"
		case strings.Contains(text, "contract"):
			detail.JobType = "Contract"
		case strings.Contains(text, "internship"):
			detail.JobType = "Internship"
		}
	}
	return detail
}

// CheckLiveness navigates to the posting and classifies the page. Navigation
// failures count as inactive so a flaky session never resurrects dead
// postings.
func (s *IndeedScraper) CheckLiveness(ctx context.Context, jobURL string) (bool, error) {
	if err := s.driver.ensure(ctx); err != nil {
		return false, err
	}
	title, html, err := s.driver.page(ctx, jobURL, time.Second)
	if err != nil {
		return false, nil
	}
	// A challenge wall hides the posting without saying anything about its
	// state. Report alive so one interstitial cannot mass-expire the source.
	if isChallenge(title, html) {
		return true, nil
	}
	return !isExpiredPage(html), nil
}

func isExpiredPage(html string) bool {
	h := strings.ToLower(html)
	for _, phrase := range expiredPhrases {
		if strings.Contains(h, phrase) {
			return true
		}
	}
	return false
}

// Close shuts down the underlying browser session.
func (s *IndeedScraper) Close() {
	s.driver.close()
}
