package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"priceradar/business/match"
	"priceradar/domain"
	"priceradar/internal/source"
)

type fakeAdapter struct {
	name   string
	result source.Result
	err    error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) FetchOffers(_ context.Context, keys []string) (source.Result, error) {
	if f.err != nil {
		return source.Result{}, f.err
	}
	res := f.result
	if res.Processed == 0 {
		res.Processed = len(keys)
		res.Succeeded = len(keys)
	}
	return res, nil
}

type fakeKeys struct {
	keys map[string][]string
	err  error
}

func (f *fakeKeys) QueryKeys(_ context.Context, competitor string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.keys[competitor], nil
}

type fakeCatalogReader struct {
	variants map[uint64]domain.CatalogVariant
}

func (f *fakeCatalogReader) VariantByID(_ context.Context, id uint64) (*domain.CatalogVariant, error) {
	if v, ok := f.variants[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (f *fakeCatalogReader) VariantsBySKU(_ context.Context, _ string) ([]domain.CatalogVariant, error) {
	return nil, nil
}

func (f *fakeCatalogReader) VariantsByTitlePrefix(_ context.Context, _ string) ([]domain.CatalogVariant, error) {
	return nil, nil
}

type fakeMappingReader struct {
	mappings map[string]domain.VariantMapping // keyed by competitor + "|" + sourceSKU
}

func (f *fakeMappingReader) Lookup(_ context.Context, competitor, sourceSKU string) (*domain.VariantMapping, error) {
	if m, ok := f.mappings[competitor+"|"+sourceSKU]; ok {
		return &m, nil
	}
	return nil, nil
}

type fakeWriter struct {
	offers    []domain.MatchResult
	records   []domain.AggregatedPriceRecord
	offersErr error
}

func (f *fakeWriter) AppendScrapedOffers(_ context.Context, _ string, results []domain.MatchResult) error {
	if f.offersErr != nil {
		return f.offersErr
	}
	f.offers = append(f.offers, results...)
	return nil
}

func (f *fakeWriter) AppendPriceHistory(_ context.Context, _ string, records []domain.AggregatedPriceRecord) error {
	f.records = append(f.records, records...)
	return nil
}

func offerFor(competitor, sku string, price float64, stock int) domain.Offer {
	return domain.Offer{
		Competitor: competitor,
		SourceSKU:  sku,
		Title:      "iPhone 13 Pro 256GB Blue Good",
		Price:      price,
		Currency:   "AUD",
		Stock:      stock,
		FetchedAt:  time.Now().UTC(),
	}
}

func newTestService(adapters []source.Adapter, keys *fakeKeys, writer *fakeWriter) *Service {
	catalog := &fakeCatalogReader{variants: map[uint64]domain.CatalogVariant{
		42: {VariantID: 42, ProductID: 7, SKU: "IP13P-256-BL", Title: "iPhone 13 Pro"},
	}}
	mappings := &fakeMappingReader{mappings: map[string]domain.VariantMapping{
		"reebelo|S1": {Competitor: "reebelo", SourceSKU: "S1", VariantID: 42},
	}}

	return NewService(adapters, keys, match.NewMatcher(catalog, mappings), newFakeExecutionRepo(), writer)
}

func TestServiceRunAggregatesBestPrice(t *testing.T) {
	adapter := &fakeAdapter{
		name: "reebelo",
		result: source.Result{
			Offers: []domain.Offer{
				offerFor("reebelo", "S1", 120.00, 2),
				offerFor("reebelo", "S1", 115.50, 1),
			},
		},
	}
	keys := &fakeKeys{keys: map[string][]string{"reebelo": {"S1"}}}
	writer := &fakeWriter{}
	svc := newTestService([]source.Adapter{adapter}, keys, writer)

	summary, err := svc.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", summary.Status)
	}
	if summary.Offers != 2 || summary.Matched != 2 {
		t.Fatalf("expected 2 offers all matched, got offers=%d matched=%d", summary.Offers, summary.Matched)
	}

	if len(writer.records) != 1 {
		t.Fatalf("expected one aggregated record, got %d", len(writer.records))
	}
	rec := writer.records[0]
	if rec.VariantID != 42 || rec.Price != 115.50 || rec.Stock != 3 {
		t.Fatalf("unexpected aggregate: %+v", rec)
	}
	if len(writer.offers) != 2 {
		t.Fatalf("expected both scraped offers persisted, got %d", len(writer.offers))
	}
}

func TestServicePartialFailureKeepsHealthyCompetitor(t *testing.T) {
	healthy := &fakeAdapter{
		name: "reebelo",
		result: source.Result{
			Offers: []domain.Offer{offerFor("reebelo", "S1", 99.00, 1)},
		},
	}
	broken := &fakeAdapter{name: "green-gadgets", err: errors.New("site down")}
	keys := &fakeKeys{keys: map[string][]string{"reebelo": {"S1"}, "green-gadgets": {"h1"}}}
	writer := &fakeWriter{}
	svc := newTestService([]source.Adapter{healthy, broken}, keys, writer)

	summary, err := svc.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != domain.StatusFailed {
		t.Fatalf("expected failed overall status, got %s", summary.Status)
	}

	// the healthy competitor's data still lands
	if len(writer.records) != 1 {
		t.Fatalf("expected healthy competitor's aggregate persisted, got %d records", len(writer.records))
	}
	for _, run := range summary.Runs {
		switch run.Competitor {
		case "reebelo":
			if run.Status != domain.StatusCompleted {
				t.Fatalf("reebelo run should complete, got %s", run.Status)
			}
		case "green-gadgets":
			if run.Status != domain.StatusFailed {
				t.Fatalf("green-gadgets run should fail, got %s", run.Status)
			}
		}
	}
}

func TestServiceEmptySourceCompletesWithZeroRecords(t *testing.T) {
	adapter := &fakeAdapter{name: "green-gadgets", result: source.Result{Processed: 1, Succeeded: 1}}
	keys := &fakeKeys{keys: map[string][]string{"green-gadgets": {"discontinued-handle"}}}
	writer := &fakeWriter{}
	svc := newTestService([]source.Adapter{adapter}, keys, writer)

	summary, err := svc.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != domain.StatusCompleted {
		t.Fatalf("a source with nothing listed is still a completed run, got %s", summary.Status)
	}
	if summary.Offers != 0 || len(writer.records) != 0 {
		t.Fatalf("expected no offers and no records, got offers=%d records=%d", summary.Offers, len(writer.records))
	}
}

func TestServicePersistenceFailureAbortsExecution(t *testing.T) {
	adapter := &fakeAdapter{
		name: "reebelo",
		result: source.Result{
			Offers: []domain.Offer{offerFor("reebelo", "S1", 99.00, 1)},
		},
	}
	keys := &fakeKeys{keys: map[string][]string{"reebelo": {"S1"}}}
	writer := &fakeWriter{offersErr: errors.New("connection reset")}
	svc := newTestService([]source.Adapter{adapter}, keys, writer)

	if _, err := svc.Run(context.Background(), "test"); err == nil {
		t.Fatal("expected persistence failure to surface")
	}
}

// completeRejectingRepo drops the persist of the completed transition, as a
// database hiccup at the end of a competitor run would.
type completeRejectingRepo struct {
	*fakeExecutionRepo
}

func (r *completeRejectingRepo) UpdateCompetitorRun(ctx context.Context, run *domain.CompetitorRun) error {
	if run.Status == domain.StatusCompleted {
		return errors.New("connection reset")
	}
	return r.fakeExecutionRepo.UpdateCompetitorRun(ctx, run)
}

func TestServiceRunReachesTerminalStateWhenCompletionPersistFails(t *testing.T) {
	adapter := &fakeAdapter{
		name: "reebelo",
		result: source.Result{
			Offers: []domain.Offer{offerFor("reebelo", "S1", 99.00, 1)},
		},
	}
	keys := &fakeKeys{keys: map[string][]string{"reebelo": {"S1"}}}
	writer := &fakeWriter{}
	repo := &completeRejectingRepo{fakeExecutionRepo: newFakeExecutionRepo()}

	catalog := &fakeCatalogReader{variants: map[uint64]domain.CatalogVariant{
		42: {VariantID: 42, ProductID: 7, SKU: "IP13P-256-BL", Title: "iPhone 13 Pro"},
	}}
	mappings := &fakeMappingReader{mappings: map[string]domain.VariantMapping{
		"reebelo|S1": {Competitor: "reebelo", SourceSKU: "S1", VariantID: 42},
	}}
	svc := NewService([]source.Adapter{adapter}, keys, match.NewMatcher(catalog, mappings), repo, writer)

	summary, err := svc.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != domain.StatusFailed {
		t.Fatalf("expected the run to close as failed, got %s", summary.Status)
	}

	// the run record must not be stranded mid-flight
	runStates := repo.runStatuses["reebelo"]
	if len(runStates) == 0 || runStates[len(runStates)-1] != domain.StatusFailed {
		t.Fatalf("expected the competitor run persisted as failed, got %v", runStates)
	}
	execStates := repo.execStatuses
	if len(execStates) == 0 || execStates[len(execStates)-1] != domain.StatusFailed {
		t.Fatalf("expected the execution persisted as failed, got %v", execStates)
	}
}

func TestServiceRejectsUnknownCompetitor(t *testing.T) {
	adapter := &fakeAdapter{name: "reebelo"}
	svc := newTestService([]source.Adapter{adapter}, &fakeKeys{}, &fakeWriter{})

	if _, err := svc.RunCompetitors(context.Background(), "test", []string{"bogus"}); err == nil {
		t.Fatal("expected unknown competitor to be rejected")
	}
}
