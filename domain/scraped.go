package domain

import (
	"time"

	"gorm.io/datatypes"
)

// CREATE TABLE public.scraped_offers (
//     id           UUID PRIMARY KEY,
//     execution_id UUID NOT NULL REFERENCES executions(id),
//     competitor   TEXT NOT NULL,
//     source_sku   TEXT,
//     variant_id   BIGINT,
//     product_id   BIGINT,
//     price        NUMERIC NOT NULL,
//     stock        INTEGER NOT NULL,
//     source_url   TEXT,
//     raw          JSONB,
//     created_at   TIMESTAMPTZ DEFAULT NOW()
// );

// ScrapedOffer is the append-only audit row for one normalized offer.
// Unmatched offers are kept with null variant/product for reconciliation.
// Rows are never updated or deleted by this pipeline.
type ScrapedOffer struct {
	ID          string            `gorm:"primaryKey;type:uuid" json:"id"`
	ExecutionID string            `gorm:"column:execution_id;type:uuid;not null" json:"execution_id"`
	Competitor  string            `gorm:"column:competitor;not null" json:"competitor"`
	SourceSKU   string            `gorm:"column:source_sku" json:"source_sku"`
	VariantID   *uint64           `gorm:"column:variant_id" json:"variant_id,omitempty"`
	ProductID   *uint64           `gorm:"column:product_id" json:"product_id,omitempty"`
	Price       float64           `gorm:"column:price;type:numeric" json:"price"`
	Stock       int               `gorm:"column:stock" json:"stock"`
	SourceURL   string            `gorm:"column:source_url;type:text" json:"source_url,omitempty"`
	Raw         datatypes.JSONMap `gorm:"column:raw;type:jsonb" json:"raw,omitempty"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ScrapedOffer) TableName() string {
	return "scraped_offers"
}

// CREATE TABLE public.price_history (
//     id           UUID PRIMARY KEY,
//     execution_id UUID NOT NULL REFERENCES executions(id),
//     variant_id   BIGINT NOT NULL,
//     product_id   BIGINT,
//     competitor   TEXT NOT NULL,
//     price        NUMERIC NOT NULL,
//     stock        INTEGER NOT NULL,
//     observed_at  TIMESTAMPTZ NOT NULL,
//     created_at   TIMESTAMPTZ DEFAULT NOW()
// );

// PriceHistory is the durable counterpart of AggregatedPriceRecord: one row
// per execution per (variant, competitor). The dashboard derives its "latest
// price" view from the most recent row per pair.
type PriceHistory struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExecutionID string    `gorm:"column:execution_id;type:uuid;not null" json:"execution_id"`
	VariantID   uint64    `gorm:"column:variant_id;not null" json:"variant_id"`
	ProductID   uint64    `gorm:"column:product_id" json:"product_id"`
	Competitor  string    `gorm:"column:competitor;not null" json:"competitor"`
	Price       float64   `gorm:"column:price;type:numeric" json:"price"`
	Stock       int       `gorm:"column:stock" json:"stock"`
	ObservedAt  time.Time `gorm:"column:observed_at;not null" json:"observed_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (PriceHistory) TableName() string {
	return "price_history"
}
