package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobradar/ingest-service/internal/model"
	"jobradar/ingest-service/internal/scraper"
	"jobradar/ingest-service/internal/store"
)

const (
	// DefaultJobBudget caps a run when the request does not say otherwise.
	DefaultJobBudget = 100

	// detailFetchLimit caps per-source detail page loads per run. Detail
	// pages are the expensive part of a run and the main anti-bot exposure.
	detailFetchLimit = 10
)

// EventPublisher announces completed runs to downstream consumers. A nil
// publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Orchestrator runs one ingestion cycle end to end: source selection, quota
// split, scraping, detail enrichment, merge, offset bookkeeping and session
// finalization.
type Orchestrator struct {
	registry *scraper.Registry
	merge    *MergeEngine
	sessions store.SessionStore
	offsets  store.OffsetStore
	events   EventPublisher
	logger   *zap.Logger

	// DetailPacing spaces out detail page loads toward one source. Zero
	// disables the delay.
	DetailPacing scraper.Pacing

	now func() time.Time
}

func NewOrchestrator(registry *scraper.Registry, merge *MergeEngine, sessions store.SessionStore, offsets store.OffsetStore, events EventPublisher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		registry:     registry,
		merge:        merge,
		sessions:     sessions,
		offsets:      offsets,
		events:       events,
		logger:       logger.Named("orchestrator"),
		DetailPacing: scraper.Pacing{Min: time.Second, Max: 3 * time.Second},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one ingestion request. A single source failing keeps the run
// alive with that source's partial results; a merge or bookkeeping failure
// marks the session failed and surfaces the error.
func (o *Orchestrator) Run(ctx context.Context, req model.SearchRequest) (model.ScrapeSummary, error) {
	if strings.TrimSpace(req.Keywords) == "" {
		return model.ScrapeSummary{}, errors.New("keywords are required")
	}

	budget := req.MaxJobs
	if budget <= 0 {
		budget = DefaultJobBudget
	}

	selected := o.registry.Select(req.Sources)
	if len(selected) == 0 {
		return model.ScrapeSummary{}, errors.New("no sources available")
	}

	category := model.NormalizeCategory(req.Keywords)
	sessionID := uuid.NewString()

	platforms := make([]string, len(selected))
	for i, sc := range selected {
		platforms[i] = string(sc.Source())
	}

	session := &model.ScrapeSession{
		SessionID:      sessionID,
		SearchQuery:    req.Keywords,
		SearchLocation: req.Location,
		Platforms:      platforms,
		ScrapedAt:      o.now(),
		Status:         model.StatusInProgress,
	}
	if err := o.sessions.Create(ctx, session); err != nil {
		return model.ScrapeSummary{}, fmt.Errorf("create session: %w", err)
	}

	searchKey := model.SearchKey(req.Keywords, req.Location)
	resumeOffset := 0
	if req.ContinueFromLast {
		off, err := o.offsets.Find(ctx, searchKey)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// first run for this key
		case err != nil:
			return o.failSession(ctx, sessionID, fmt.Errorf("load offset: %w", err))
		default:
			resumeOffset = off.CurrentOffset
			o.logger.Info("resuming search",
				zap.String("search_key", searchKey), zap.Int("offset", resumeOffset))
		}
	}

	quota := budget / len(selected)
	if quota < 1 {
		quota = 1
	}

	var combined []model.JobPosting
	for _, sc := range selected {
		opts := scraper.SearchOptions{PageBudget: quota, Offset: resumeOffset}
		batch, err := sc.Search(ctx, req.Keywords, req.Location, opts)
		if err != nil {
			o.logger.Warn("source failed — keeping partial results",
				zap.String("source", string(sc.Source())),
				zap.Int("partial", len(batch)),
				zap.Error(err))
		}
		if len(batch) == 0 {
			continue
		}
		o.enrichDetails(ctx, sc, batch)
		combined = append(combined, batch...)
	}

	if len(combined) > budget {
		combined = combined[:budget]
	}

	res, err := o.merge.MergeBatch(ctx, combined, category, sessionID)
	if err != nil {
		return o.failSession(ctx, sessionID, fmt.Errorf("merge: %w", err))
	}

	if err := o.offsets.Upsert(ctx, &model.SearchOffset{
		SearchKey:     searchKey,
		Keywords:      req.Keywords,
		Location:      req.Location,
		CurrentOffset: resumeOffset + len(combined),
		Platforms:     platforms,
		UpdatedAt:     o.now(),
	}); err != nil {
		return o.failSession(ctx, sessionID, fmt.Errorf("save offset: %w", err))
	}

	if err := o.sessions.Finalize(ctx, sessionID, model.StatusCompleted, res.Total, res.Inserted, res.Duplicates, ""); err != nil {
		return o.failSession(ctx, sessionID, fmt.Errorf("finalize session: %w", err))
	}

	summary := model.ScrapeSummary{
		SessionID:     sessionID,
		TotalJobs:     res.Total,
		NewJobs:       res.Inserted,
		DuplicateJobs: res.Duplicates,
		RejectedJobs:  res.Rejected,
		Status:        model.StatusCompleted,
	}

	o.publishCompleted(ctx, summary, category)
	return summary, nil
}

// enrichDetails fetches detail pages for candidates that arrived without an
// acceptable description, up to the per-source cap. Detail failures leave
// the candidate as-is; the merge gate decides its fate.
func (o *Orchestrator) enrichDetails(ctx context.Context, sc scraper.Scraper, batch []model.JobPosting) {
	fetched := 0
	for i := range batch {
		if fetched >= detailFetchLimit {
			break
		}
		if descriptionLongEnough(batch[i].Description) {
			continue
		}

		if fetched > 0 {
			if err := o.DetailPacing.Wait(ctx); err != nil {
				return
			}
		}
		detail, err := sc.FetchDetail(ctx, batch[i].URL)
		fetched++
		if err != nil {
			o.logger.Debug("detail fetch failed",
				zap.String("job_id", batch[i].JobID), zap.Error(err))
			continue
		}
		if detail.Description != "" {
			batch[i].Description = detail.Description
		}
		if batch[i].JobType == "" && detail.JobType != "" {
			batch[i].JobType = detail.JobType
		}
	}
	if fetched > 0 {
		o.logger.Debug("detail enrichment done",
			zap.String("source", string(sc.Source())), zap.Int("fetched", fetched))
	}
}

// failSession records the terminal failed state. The write uses a context
// detached from cancellation so an aborted run still leaves an audit trail.
func (o *Orchestrator) failSession(ctx context.Context, sessionID string, cause error) (model.ScrapeSummary, error) {
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := o.sessions.Finalize(finalizeCtx, sessionID, model.StatusFailed, 0, 0, 0, cause.Error()); err != nil {
		o.logger.Error("failed to mark session failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	return model.ScrapeSummary{SessionID: sessionID, Status: model.StatusFailed}, cause
}

func (o *Orchestrator) publishCompleted(ctx context.Context, summary model.ScrapeSummary, category string) {
	if o.events == nil {
		return
	}
	payload := map[string]any{
		"session_id": summary.SessionID,
		"category":   category,
		"total_jobs": summary.TotalJobs,
		"new_jobs":   summary.NewJobs,
	}
	if err := o.events.Publish(ctx, "EVENT_SCRAPE_COMPLETED", payload); err != nil {
		o.logger.Warn("event publish failed", zap.Error(err))
	}
}
