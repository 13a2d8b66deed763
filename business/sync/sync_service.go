// Package sync runs one full competitor price synchronization: fan out over
// the configured source adapters, match their offers against the internal
// catalog, aggregate per (variant, competitor) and persist the run's output
// under a tracked execution record.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"gorm.io/datatypes"

	"priceradar/business/match"
	"priceradar/domain"
	"priceradar/internal/source"
	"priceradar/pkg/logger"
	"priceradar/pkg/metrics"
)

// KeyProvider supplies the deduplicated fetch keys for one competitor: the
// catalog's variant SKUs plus curated mapping SKUs, or product handles for the
// competitors crawled by handle.
type KeyProvider interface {
	QueryKeys(ctx context.Context, competitor string) ([]string, error)
}

// PriceWriter persists a run's output. Both writes are append-only and keyed
// by execution id, so re-running a failed execution never overwrites history.
type PriceWriter interface {
	AppendScrapedOffers(ctx context.Context, executionID string, results []domain.MatchResult) error
	AppendPriceHistory(ctx context.Context, executionID string, records []domain.AggregatedPriceRecord) error
}

// RunSummary is what a finished (or partial) run reports back to its caller.
type RunSummary struct {
	ExecutionID string
	Status      domain.ExecutionStatus
	Runs        []domain.CompetitorRun
	Offers      int
	Matched     int
	Records     int
	Duration    time.Duration
}

// Failed reports whether any part of the run fell over.
func (s *RunSummary) Failed() bool {
	return s.Status != domain.StatusCompleted
}

type Service struct {
	adapters []source.Adapter
	keys     KeyProvider
	matcher  *match.Matcher
	execRepo ExecutionRepository
	writer   PriceWriter
}

func NewService(adapters []source.Adapter, keys KeyProvider, matcher *match.Matcher, execRepo ExecutionRepository, writer PriceWriter) *Service {
	return &Service{
		adapters: adapters,
		keys:     keys,
		matcher:  matcher,
		execRepo: execRepo,
		writer:   writer,
	}
}

// Run executes one synchronization across every configured competitor.
func (s *Service) Run(ctx context.Context, trigger string) (*RunSummary, error) {
	return s.run(ctx, trigger, s.adapters)
}

// RunCompetitors executes one synchronization restricted to the named
// competitors. Unknown names are an error before anything is recorded.
func (s *Service) RunCompetitors(ctx context.Context, trigger string, names []string) (*RunSummary, error) {
	if len(names) == 0 {
		return s.run(ctx, trigger, s.adapters)
	}

	byName := make(map[string]source.Adapter, len(s.adapters))
	for _, a := range s.adapters {
		byName[a.Name()] = a
	}

	selected := make([]source.Adapter, 0, len(names))
	for _, name := range names {
		a, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown competitor %q", name)
		}
		selected = append(selected, a)
	}

	return s.run(ctx, trigger, selected)
}

func (s *Service) run(ctx context.Context, trigger string, adapters []source.Adapter) (*RunSummary, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no competitors configured")
	}

	started := time.Now()
	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}

	tracker := NewTracker(s.execRepo)
	execID, err := tracker.Begin(ctx, trigger, names)
	if err != nil {
		return nil, fmt.Errorf("failed to begin execution: %w", err)
	}
	logger.Info("sync run started", "execution_id", execID, "trigger", trigger, "competitors", names)

	// Competitors scrape in parallel; one failing source never takes down
	// the others. Offers only reach matching after every run is terminal.
	var (
		wg     gosync.WaitGroup
		mu     gosync.Mutex
		offers []domain.Offer
	)
	for _, adapter := range adapters {
		wg.Add(1)
		go func(adapter source.Adapter) {
			defer wg.Done()
			result, ok := s.runCompetitor(ctx, tracker, adapter)
			if !ok {
				return
			}
			mu.Lock()
			offers = append(offers, result.Offers...)
			mu.Unlock()
		}(adapter)
	}
	wg.Wait()

	results, matchedCount, err := s.matchOffers(ctx, offers)
	if err != nil {
		return s.abort(ctx, tracker, execID, started, fmt.Errorf("failed to match offers: %w", err))
	}

	records := Aggregate(results, time.Now().UTC())

	if err := s.writer.AppendScrapedOffers(ctx, execID, results); err != nil {
		return s.abort(ctx, tracker, execID, started, fmt.Errorf("failed to persist scraped offers: %w", err))
	}
	if err := s.writer.AppendPriceHistory(ctx, execID, records); err != nil {
		return s.abort(ctx, tracker, execID, started, fmt.Errorf("failed to persist price history: %w", err))
	}

	status, err := tracker.Finish(ctx)
	if err != nil {
		return s.abort(ctx, tracker, execID, started, fmt.Errorf("failed to finish execution: %w", err))
	}

	elapsed := time.Since(started)
	metrics.SyncRunsTotal.WithLabelValues(string(status)).Inc()
	metrics.RunDuration.Observe(elapsed.Seconds())

	summary := &RunSummary{
		ExecutionID: execID,
		Status:      status,
		Runs:        tracker.Runs(),
		Offers:      len(offers),
		Matched:     matchedCount,
		Records:     len(records),
		Duration:    elapsed,
	}
	logger.Info("sync run finished",
		"execution_id", execID,
		"status", status,
		"offers", summary.Offers,
		"matched", summary.Matched,
		"records", summary.Records,
		"duration", elapsed.String(),
	)

	return summary, nil
}

// runCompetitor drives one adapter end to end and records the outcome on its
// competitor run. Returns false when the competitor produced nothing usable.
func (s *Service) runCompetitor(ctx context.Context, tracker *Tracker, adapter source.Adapter) (source.Result, bool) {
	name := adapter.Name()

	keys, err := s.keys.QueryKeys(ctx, name)
	if err != nil {
		logger.Error("failed to load query keys", "competitor", name, "error", err)
		s.failCompetitor(ctx, tracker, name, fmt.Errorf("failed to load query keys: %w", err))
		return source.Result{}, false
	}
	if len(keys) == 0 {
		logger.Warn("no query keys registered for competitor", "competitor", name)
	}

	if err := tracker.StartCompetitor(ctx, name); err != nil {
		logger.Error("failed to start competitor run", "competitor", name, "error", err)
		// the run must still reach a terminal state or Finish refuses to
		// close the execution
		s.failCompetitor(ctx, tracker, name, fmt.Errorf("failed to record run start: %w", err))
		return source.Result{}, false
	}

	result, err := adapter.FetchOffers(ctx, keys)
	if err != nil {
		logger.Error("competitor fetch failed", "competitor", name, "error", err)
		s.failCompetitor(ctx, tracker, name, err)
		return source.Result{}, false
	}

	metrics.OffersScrapedTotal.WithLabelValues(name).Add(float64(len(result.Offers)))
	metrics.SourceErrorsTotal.WithLabelValues(name).Add(float64(len(result.KeyErrors)))

	stats := RunStats{
		ProcessedKeys: result.Processed,
		SucceededKeys: result.Succeeded,
		OfferCount:    len(result.Offers),
		KeyErrors:     keyErrorPayloads(result.KeyErrors),
	}
	if err := tracker.CompleteCompetitor(ctx, name, stats); err != nil {
		logger.Error("failed to complete competitor run", "competitor", name, "error", err)
		s.failCompetitor(ctx, tracker, name, fmt.Errorf("failed to record run completion: %w", err))
		return source.Result{}, false
	}

	logger.Info("competitor run completed",
		"competitor", name,
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"offers", len(result.Offers),
		"key_errors", len(result.KeyErrors),
	)

	return result, true
}

func (s *Service) matchOffers(ctx context.Context, offers []domain.Offer) ([]domain.MatchResult, int, error) {
	results := make([]domain.MatchResult, 0, len(offers))
	matched := 0
	for _, offer := range offers {
		res, err := s.matcher.Match(ctx, offer)
		if err != nil {
			return nil, 0, err
		}
		if res.Matched() {
			matched++
		}
		results = append(results, res)
	}

	return results, matched, nil
}

func (s *Service) failCompetitor(ctx context.Context, tracker *Tracker, name string, cause error) {
	if err := tracker.FailCompetitor(ctx, name, cause); err != nil {
		logger.Error("failed to record competitor failure", "competitor", name, "error", err)
	}
}

func (s *Service) abort(ctx context.Context, tracker *Tracker, execID string, started time.Time, cause error) (*RunSummary, error) {
	logger.Error("sync run aborted", "execution_id", execID, "error", cause)
	if err := tracker.Abort(ctx, cause); err != nil {
		logger.Error("failed to record aborted execution", "execution_id", execID, "error", err)
	}
	metrics.SyncRunsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())

	return nil, cause
}

func keyErrorPayloads(errs []source.KeyError) []datatypes.JSONMap {
	if len(errs) == 0 {
		return nil
	}
	out := make([]datatypes.JSONMap, 0, len(errs))
	for _, e := range errs {
		out = append(out, datatypes.JSONMap{"key": e.Key, "error": e.Err})
	}

	return out
}
