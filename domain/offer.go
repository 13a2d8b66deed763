package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Offer is one normalized price/stock observation from one competitor for one
// listing. Produced by the per-source normalizers, consumed by the matcher;
// never persisted directly (ScrapedOffer is its durable counterpart).
type Offer struct {
	Competitor string
	SourceSKU  string // competitor SKU or product handle
	Title      string // competitor product title, when the source provides one

	Price    float64
	Currency string
	Stock    int

	// Attribute hints; empty string means the source did not provide the
	// attribute and no vocabulary keyword matched.
	Storage   string
	Color     string
	Condition string

	SourceURL string
	FetchedAt time.Time

	// Opaque source payload, retained for audit.
	Raw datatypes.JSONMap
}

// VariantRef identifies one internal catalog variant.
type VariantRef struct {
	ProductID uint64
	VariantID uint64
}

// MatchResult annotates an offer with its resolved internal variant. Offers
// that fail to match keep a nil Variant and stay visible for reconciliation.
type MatchResult struct {
	Offer   Offer
	Variant *VariantRef
}

func (r MatchResult) Matched() bool {
	return r.Variant != nil
}

// AggregatedPriceRecord is one run's best-price summary for a
// (variant, competitor) pair: the minimum price across the run's matched
// offers and the summed stock of all its listings.
type AggregatedPriceRecord struct {
	VariantID  uint64
	ProductID  uint64
	Competitor string
	Price      float64
	Stock      int
	ObservedAt time.Time
}
