package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"priceradar/domain"
	"priceradar/pkg/metrics"
	"priceradar/pkg/retry"
)

// PriceRepository owns the two append-only run outputs: scraped_offers (every
// normalized offer, matched or not) and price_history (one aggregated row
// per execution per variant per competitor).
type PriceRepository struct {
	DB        *gorm.DB
	batchSize int
	policy    retry.Policy
}

func NewPriceRepository(db *gorm.DB, batchSize int) *PriceRepository {
	if batchSize <= 0 {
		batchSize = 500
	}

	return &PriceRepository{
		DB:        db,
		batchSize: batchSize,
		policy:    retry.DefaultPolicy(),
	}
}

func (r *PriceRepository) AppendScrapedOffers(ctx context.Context, executionID string, results []domain.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	rows := make([]domain.ScrapedOffer, 0, len(results))
	for _, res := range results {
		row := domain.ScrapedOffer{
			ID:          uuid.NewString(),
			ExecutionID: executionID,
			Competitor:  res.Offer.Competitor,
			SourceSKU:   res.Offer.SourceSKU,
			Price:       res.Offer.Price,
			Stock:       res.Offer.Stock,
			SourceURL:   res.Offer.SourceURL,
			Raw:         res.Offer.Raw,
		}
		if res.Variant != nil {
			variantID := res.Variant.VariantID
			productID := res.Variant.ProductID
			row.VariantID = &variantID
			row.ProductID = &productID
		}
		rows = append(rows, row)
	}

	// committed batches stay committed; a failure names the first batch
	// that did not land so the run can be replayed from there
	for i, batch := range chunkScrapedOffers(rows, r.batchSize) {
		batch := batch
		err := retry.Do(ctx, r.policy, r.retryable, func() error {
			return r.DB.WithContext(ctx).Create(&batch).Error
		})
		if err != nil {
			return fmt.Errorf("failed to append scraped offers (execution %s, batch %d): %w", executionID, i, err)
		}
		metrics.RowsWrittenTotal.WithLabelValues("scraped_offers").Add(float64(len(batch)))
	}

	return nil
}

func (r *PriceRepository) AppendPriceHistory(ctx context.Context, executionID string, records []domain.AggregatedPriceRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	rows := make([]domain.PriceHistory, 0, len(records))
	for _, rec := range records {
		rows = append(rows, domain.PriceHistory{
			ID:          uuid.NewString(),
			ExecutionID: executionID,
			VariantID:   rec.VariantID,
			ProductID:   rec.ProductID,
			Competitor:  rec.Competitor,
			Price:       rec.Price,
			Stock:       rec.Stock,
			ObservedAt:  rec.ObservedAt,
		})
	}

	for i, batch := range chunkPriceHistory(rows, r.batchSize) {
		batch := batch
		err := retry.Do(ctx, r.policy, r.retryable, func() error {
			return r.DB.WithContext(ctx).Create(&batch).Error
		})
		if err != nil {
			return fmt.Errorf("failed to append price history (execution %s, batch %d): %w", executionID, i, err)
		}
		metrics.RowsWrittenTotal.WithLabelValues("price_history").Add(float64(len(batch)))
	}

	return nil
}

// LatestPrices returns the most recent price_history row per
// (variant, competitor), the read model behind the dashboard's price table.
func (r *PriceRepository) LatestPrices(ctx context.Context) ([]domain.LatestPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var prices []domain.LatestPrice
	err := r.DB.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (variant_id, competitor)
			variant_id, product_id, competitor, price, stock, observed_at
		FROM price_history
		ORDER BY variant_id, competitor, observed_at DESC
	`).Scan(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest prices: %w", err)
	}

	return prices, nil
}

// UnmatchedOffers returns one row per distinct (competitor, source_sku) that
// produced offers without a catalog match since the cutoff, with the number
// of times it was seen. This backs the reconciliation report the operators
// work through to extend mappings.
type UnmatchedOffer struct {
	Competitor string    `json:"competitor"`
	SourceSKU  string    `json:"source_sku"`
	Seen       int       `json:"seen"`
	LastPrice  float64   `json:"last_price"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func (r *PriceRepository) UnmatchedOffers(ctx context.Context, since time.Time) ([]UnmatchedOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var offers []UnmatchedOffer
	err := r.DB.WithContext(ctx).Raw(`
		SELECT competitor, source_sku,
			COUNT(*)                      AS seen,
			(ARRAY_AGG(price ORDER BY created_at DESC))[1] AS last_price,
			MAX(created_at)               AS last_seen_at
		FROM scraped_offers
		WHERE variant_id IS NULL AND created_at >= ?
		GROUP BY competitor, source_sku
		ORDER BY competitor, source_sku
	`, since).Scan(&offers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query unmatched offers: %w", err)
	}

	return offers, nil
}

func (r *PriceRepository) retryable(err error) bool {
	if retry.TransientSchema(err) {
		metrics.BatchRetriesTotal.Inc()
		return true
	}

	return false
}

func chunkScrapedOffers(rows []domain.ScrapedOffer, size int) [][]domain.ScrapedOffer {
	var out [][]domain.ScrapedOffer
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}

	return out
}

func chunkPriceHistory(rows []domain.PriceHistory, size int) [][]domain.PriceHistory {
	var out [][]domain.PriceHistory
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}

	return out
}
