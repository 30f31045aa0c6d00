package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"jobradar/ingest-service/internal/api"
	"jobradar/ingest-service/internal/config"
	"jobradar/ingest-service/internal/db"
	"jobradar/ingest-service/internal/ingest"
	"jobradar/ingest-service/internal/scheduler"
	"jobradar/ingest-service/internal/scraper"
	"jobradar/ingest-service/internal/store"
	"jobradar/ingest-service/internal/verify"
)

const eventsChannel = "ingest:events"

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer rdb.Close()

	if err := store.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}

	jobs := store.NewPGJobStore(pool)
	sessions := store.NewPGSessionStore(pool)
	offsets := store.NewPGOffsetStore(pool)

	scrapers := []scraper.Scraper{
		scraper.NewJSearchScraper(cfg.RapidAPIKey, logger),
		scraper.NewArbeitnowScraper(logger),
		scraper.NewLinkedInScraper(logger),
	}
	var indeed *scraper.IndeedScraper
	if cfg.BrowserEnabled {
		indeed = scraper.NewIndeedScraper(cfg.ChromeProfileDir, cfg.CookiesFile, cfg.BrowserHeadless, logger)
		scrapers = append(scrapers, indeed)
	}
	registry := scraper.NewRegistry(logger, scrapers...)

	merge := ingest.NewMergeEngine(jobs, logger)
	events := db.NewRedisPublisher(rdb, eventsChannel)
	orch := ingest.NewOrchestrator(registry, merge, sessions, offsets, events, logger)
	sweep := verify.NewSweep(jobs, registry, logger)

	sched := scheduler.New(rdb, orch, sweep, cfg, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}

	server := api.NewServer(orch, sweep, jobs, sessions, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Routes(),
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if indeed != nil {
		indeed.Close()
	}
}
