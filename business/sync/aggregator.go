package sync

import (
	"sort"
	"time"

	"priceradar/domain"
)

type groupKey struct {
	variantID  uint64
	competitor string
}

// Aggregate collapses one run's matched offers into a single record per
// (variant, competitor): the minimum price across the group's offers and the
// sum of their stock signals. Unmatched offers are excluded. The function is
// pure and its output order is deterministic, so re-running it on the same
// input reproduces identical records.
//
// Minimum price assumes all listings under one SKU are fungible; if a source
// ever distinguishes refurbished grades within one SKU, condition would have
// to join the group key.
func Aggregate(results []domain.MatchResult, observedAt time.Time) []domain.AggregatedPriceRecord {
	groups := make(map[groupKey]*domain.AggregatedPriceRecord)

	for _, r := range results {
		if !r.Matched() {
			continue
		}

		key := groupKey{variantID: r.Variant.VariantID, competitor: r.Offer.Competitor}
		rec, ok := groups[key]
		if !ok {
			groups[key] = &domain.AggregatedPriceRecord{
				VariantID:  r.Variant.VariantID,
				ProductID:  r.Variant.ProductID,
				Competitor: r.Offer.Competitor,
				Price:      r.Offer.Price,
				Stock:      r.Offer.Stock,
				ObservedAt: observedAt,
			}
			continue
		}

		if r.Offer.Price < rec.Price {
			rec.Price = r.Offer.Price
		}
		rec.Stock += r.Offer.Stock
	}

	out := make([]domain.AggregatedPriceRecord, 0, len(groups))
	for _, rec := range groups {
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].VariantID != out[j].VariantID {
			return out[i].VariantID < out[j].VariantID
		}
		return out[i].Competitor < out[j].Competitor
	})

	return out
}
