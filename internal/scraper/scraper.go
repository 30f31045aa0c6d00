// Package scraper implements job posting retrieval from external sources.
//
// Every source satisfies the same capability set (Scraper); the three
// families are a stateless query API (arbeitnow), key-authenticated paged
// APIs (jsearch), and a browser-automated site behind anti-bot challenges
// (indeed). Adapters normalize raw items into model.JobPosting candidates;
// unparseable items are dropped and counted, never fatal to a batch.
package scraper

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"jobradar/ingest-service/internal/model"
)

// Sentinel errors for adapter-internal branching. Both conditions surface to
// the orchestrator as partial results, not failures.
var (
	// ErrRateLimited signals an HTTP 429-equivalent; pagination stops early
	// and already-collected results are returned.
	ErrRateLimited = errors.New("source rate limited")
	// ErrDriverUnavailable signals that the browser driver could not be
	// (re)initialized; the source is skipped for this invocation.
	ErrDriverUnavailable = errors.New("browser driver unavailable")
	// ErrChallengeNotCleared signals that an anti-bot interstitial blocked a
	// page and did not clear within the wait window.
	ErrChallengeNotCleared = errors.New("anti-bot challenge not cleared")
)

// Detail is the result of fetching a posting's detail page.
type Detail struct {
	Description string
	JobType     string
}

// SearchOptions bounds one search invocation.
type SearchOptions struct {
	// PageBudget caps how many candidates this source should return.
	PageBudget int
	// Offset is the resume position recorded by a previous invocation.
	// Sources without stable offset pagination ignore it and start fresh.
	Offset int
}

// Scraper is the capability set every source adapter implements.
type Scraper interface {
	Source() model.Source
	Search(ctx context.Context, keywords, location string, opts SearchOptions) ([]model.JobPosting, error)
	FetchDetail(ctx context.Context, url string) (Detail, error)
	CheckLiveness(ctx context.Context, url string) (bool, error)
}

// ─── Registry ────────────────────────────────────────────────────────────────

// Registry holds the configured adapters in priority order (API-backed
// sources before browser-automation sources). It is built once at startup
// and passed by reference; there are no package-level scraper singletons.
type Registry struct {
	order    []model.Source
	bySource map[model.Source]Scraper
	logger   *zap.Logger
}

// NewRegistry builds a registry; argument order is priority order.
func NewRegistry(logger *zap.Logger, scrapers ...Scraper) *Registry {
	r := &Registry{
		bySource: make(map[model.Source]Scraper, len(scrapers)),
		logger:   logger.Named("registry"),
	}
	for _, s := range scrapers {
		if s == nil {
			continue
		}
		if _, dup := r.bySource[s.Source()]; dup {
			r.logger.Warn("duplicate scraper registration ignored",
				zap.String("source", string(s.Source())))
			continue
		}
		r.order = append(r.order, s.Source())
		r.bySource[s.Source()] = s
	}
	return r
}

// Lookup returns the adapter for a source, if one is registered.
func (r *Registry) Lookup(s model.Source) (Scraper, bool) {
	sc, ok := r.bySource[s]
	return sc, ok
}

// Sources returns all registered sources in priority order.
func (r *Registry) Sources() []model.Source {
	out := make([]model.Source, len(r.order))
	copy(out, r.order)
	return out
}

// Select returns the adapters for the requested sources in priority order.
// An empty request selects every registered source. Unknown sources are
// skipped with a warning.
func (r *Registry) Select(requested []model.Source) []Scraper {
	if len(requested) == 0 {
		out := make([]Scraper, 0, len(r.order))
		for _, s := range r.order {
			out = append(out, r.bySource[s])
		}
		return out
	}

	want := make(map[model.Source]bool, len(requested))
	for _, s := range requested {
		if _, ok := r.bySource[s]; !ok {
			r.logger.Warn("requested source not configured — skipping",
				zap.String("source", string(s)))
			continue
		}
		want[s] = true
	}

	out := make([]Scraper, 0, len(want))
	for _, s := range r.order {
		if want[s] {
			out = append(out, r.bySource[s])
		}
	}
	return out
}

// ─── Pacing ──────────────────────────────────────────────────────────────────

// Pacing is the per-source minimum inter-call interval, with optional jitter
// up to Max. This is rate-limiting discipline toward the sources, not a
// performance knob.
type Pacing struct {
	Min time.Duration
	Max time.Duration
}

// Wait sleeps for a random duration in [Min, Max], honouring ctx.
func (p Pacing) Wait(ctx context.Context) error {
	d := p.Min
	if p.Max > p.Min {
		d += time.Duration(rand.Int63n(int64(p.Max - p.Min)))
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
