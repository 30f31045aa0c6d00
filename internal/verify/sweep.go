// Package verify periodically checks stored postings against their source
// boards and retires the ones that have gone dark.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"jobradar/ingest-service/internal/model"
	"jobradar/ingest-service/internal/scraper"
	"jobradar/ingest-service/internal/store"
)

// Sweep walks every active posting and asks the posting's own source adapter
// whether it is still live. Sources without an adapter fall back to a plain
// reachability probe. A failed check counts as inactive, so the sweep can
// only ever retire postings, never resurrect them — except when the check
// fails because the adapter's driver is down, which says nothing about the
// posting: those records are skipped untouched.
type Sweep struct {
	jobs     store.JobStore
	registry *scraper.Registry
	client   *http.Client
	Pacing   scraper.Pacing
	logger   *zap.Logger
	now      func() time.Time
}

func NewSweep(jobs store.JobStore, registry *scraper.Registry, logger *zap.Logger) *Sweep {
	return &Sweep{
		jobs:     jobs,
		registry: registry,
		client:   &http.Client{Timeout: 15 * time.Second},
		Pacing:   scraper.Pacing{Min: time.Second, Max: 2 * time.Second},
		logger:   logger.Named("verify"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run checks all active postings. Store write failures abort the sweep;
// liveness check failures mark the posting inactive unless the adapter's
// driver is down, in which case the posting is skipped untouched.
func (s *Sweep) Run(ctx context.Context) (model.VerifySummary, error) {
	active, err := s.jobs.ListActive(ctx)
	if err != nil {
		return model.VerifySummary{}, fmt.Errorf("list active: %w", err)
	}

	summary := model.VerifySummary{}
	for i, job := range active {
		if i > 0 {
			if err := s.Pacing.Wait(ctx); err != nil {
				return summary, err
			}
		}

		alive, skip := s.checkOne(ctx, job)
		if skip {
			summary.Skipped++
			continue
		}
		summary.Checked++

		now := s.now()
		var fields map[string]any
		if alive {
			fields = map[string]any{"last_verified": now}
		} else {
			fields = map[string]any{"is_active": false, "expired_date": now}
			summary.Expired++
		}
		if err := s.jobs.SetFields(ctx, job.JobID, fields); err != nil {
			return summary, fmt.Errorf("update %s: %w", job.JobID, err)
		}
	}

	s.logger.Info("verification sweep done",
		zap.Int("checked", summary.Checked), zap.Int("expired", summary.Expired),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

// checkOne reports whether the posting is still live. skip means the verdict
// is unknowable right now (driver down) and the record must be left alone.
func (s *Sweep) checkOne(ctx context.Context, job model.JobPosting) (alive, skip bool) {
	if sc, ok := s.registry.Lookup(job.Source); ok {
		alive, err := sc.CheckLiveness(ctx, job.URL)
		if errors.Is(err, scraper.ErrDriverUnavailable) {
			s.logger.Warn("driver unavailable — leaving posting untouched",
				zap.String("job_id", job.JobID), zap.Error(err))
			return false, true
		}
		if err != nil {
			s.logger.Debug("liveness check failed — treating as inactive",
				zap.String("job_id", job.JobID), zap.Error(err))
			return false, false
		}
		return alive, false
	}
	return s.probe(ctx, job.URL), false
}

// probe is the adapterless fallback: a HEAD request, 200 means alive.
func (s *Sweep) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
