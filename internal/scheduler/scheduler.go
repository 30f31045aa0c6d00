// Package scheduler wires up the cron jobs that periodically trigger
// ingestion runs for the configured search terms and verification sweeps
// over the stored postings.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobradar/ingest-service/internal/config"
	"jobradar/ingest-service/internal/ingest"
	"jobradar/ingest-service/internal/model"
	"jobradar/ingest-service/internal/verify"
)

const scrapeLockKey = "ingest:scrape_lock"

// Scheduler wraps robfig/cron and manages the scrape and verify loops. A
// redis lock keeps overlapping scrape cycles from running concurrently when
// a cycle outlasts its interval.
type Scheduler struct {
	cron    *cron.Cron
	rdb     *redis.Client
	orch    *ingest.Orchestrator
	sweep   *verify.Sweep
	cfg     *config.Config
	logger  *zap.Logger
	lockTTL time.Duration
}

func New(rdb *redis.Client, orch *ingest.Orchestrator, sweep *verify.Sweep, cfg *config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		rdb:     rdb,
		orch:    orch,
		sweep:   sweep,
		cfg:     cfg,
		logger:  logger.Named("scheduler"),
		lockTTL: cfg.ScrapeLockTTL,
	}
}

// Start registers both jobs and starts the scheduler. One scrape cycle runs
// immediately so the store is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	scrapeSpec := fmt.Sprintf("@every %dh", s.cfg.ScrapeIntervalHours)
	verifySpec := fmt.Sprintf("@every %dh", s.cfg.VerifyIntervalHours)

	if _, err := s.cron.AddFunc(scrapeSpec, func() { s.runScrapeCycle(ctx) }); err != nil {
		return fmt.Errorf("register scrape job: %w", err)
	}
	if _, err := s.cron.AddFunc(verifySpec, func() { s.runVerifyCycle(ctx) }); err != nil {
		return fmt.Errorf("register verify job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("cron started",
		zap.String("scrape_spec", scrapeSpec), zap.String("verify_spec", verifySpec))

	go s.runScrapeCycle(ctx)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("cron stopped")
}

// runScrapeCycle runs one ingestion per configured search term, guarded by
// the redis lock. A redis outage degrades to lockless operation rather than
// halting ingestion.
func (s *Scheduler) runScrapeCycle(ctx context.Context) {
	ok, err := s.rdb.SetNX(ctx, scrapeLockKey, "1", s.lockTTL).Result()
	if err != nil {
		s.logger.Warn("scrape lock unavailable — proceeding without it", zap.Error(err))
	} else if !ok {
		s.logger.Info("previous scrape cycle still running — skipping")
		return
	} else {
		defer s.rdb.Del(context.WithoutCancel(ctx), scrapeLockKey)
	}

	s.logger.Info("scrape cycle started", zap.Strings("terms", s.cfg.SearchTerms))
	for _, term := range s.cfg.SearchTerms {
		summary, err := s.orch.Run(ctx, model.SearchRequest{
			Keywords:         term,
			ContinueFromLast: true,
		})
		if err != nil {
			s.logger.Error("ingestion run failed",
				zap.String("term", term), zap.Error(err))
			continue
		}
		s.logger.Info("ingestion run done",
			zap.String("term", term),
			zap.String("session_id", summary.SessionID),
			zap.Int("new_jobs", summary.NewJobs))
	}
	s.logger.Info("scrape cycle complete")
}

func (s *Scheduler) runVerifyCycle(ctx context.Context) {
	s.logger.Info("verify cycle started")
	summary, err := s.sweep.Run(ctx)
	if err != nil {
		s.logger.Error("verification sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("verify cycle complete",
		zap.Int("checked", summary.Checked), zap.Int("expired", summary.Expired),
		zap.Int("skipped", summary.Skipped))
}
