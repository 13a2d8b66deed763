package domain

import "time"

// Competitor identifiers, shared by the scrape adapters, the key sourcing
// queries and the persisted rows.
const (
	CompetitorReebelo      = "reebelo"
	CompetitorGreenGadgets = "green-gadgets"
)

// CREATE TABLE public.catalog_products (
//     id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//     product_id   BIGINT NOT NULL UNIQUE,  -- external (merchant store) id
//     handle       TEXT NOT NULL,
//     title        TEXT NOT NULL,
//     vendor       TEXT,
//     product_type TEXT,
//     created_at   TIMESTAMPTZ DEFAULT NOW(),
//     updated_at   TIMESTAMPTZ DEFAULT NOW()
// );

// CatalogProduct mirrors one merchant product. Written by the catalog mirror,
// read-only to the sync pipeline.
type CatalogProduct struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   uint64    `gorm:"column:product_id;uniqueIndex" json:"product_id"`
	Handle      string    `gorm:"column:handle;type:text;not null" json:"handle"`
	Title       string    `gorm:"column:title;type:text;not null" json:"title"`
	Vendor      string    `gorm:"column:vendor;type:text" json:"vendor,omitempty"`
	ProductType string    `gorm:"column:product_type;type:text" json:"product_type,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CatalogProduct) TableName() string {
	return "catalog_products"
}

// CREATE TABLE public.catalog_variants (
//     id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//     variant_id BIGINT NOT NULL UNIQUE,  -- external (merchant store) id
//     product_id BIGINT NOT NULL,
//     sku        TEXT,
//     title      TEXT,
//     storage    TEXT,
//     color      TEXT,
//     condition  TEXT,
//     created_at TIMESTAMPTZ DEFAULT NOW(),
//     updated_at TIMESTAMPTZ DEFAULT NOW()
// );

type CatalogVariant struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	VariantID uint64    `gorm:"column:variant_id;uniqueIndex" json:"variant_id"`
	ProductID uint64    `gorm:"column:product_id;not null" json:"product_id"`
	SKU       string    `gorm:"column:sku" json:"sku,omitempty"`
	Title     string    `gorm:"column:title;type:text" json:"title,omitempty"`
	Storage   string    `gorm:"column:storage" json:"storage,omitempty"`
	Color     string    `gorm:"column:color" json:"color,omitempty"`
	Condition string    `gorm:"column:condition" json:"condition,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CatalogVariant) TableName() string {
	return "catalog_variants"
}

// CREATE TABLE public.variant_mappings (
//     id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//     competitor TEXT NOT NULL,
//     source_sku TEXT NOT NULL,
//     variant_id BIGINT NOT NULL,
//     created_at TIMESTAMPTZ DEFAULT NOW(),
//     UNIQUE (competitor, source_sku)
// );

// VariantMapping is an operator-curated link between an internal variant and
// one competitor SKU (or handle). Curated outside this pipeline; read-only here.
type VariantMapping struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Competitor string    `gorm:"column:competitor;not null" json:"competitor"`
	SourceSKU  string    `gorm:"column:source_sku;not null" json:"source_sku"`
	VariantID  uint64    `gorm:"column:variant_id;not null" json:"variant_id"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (VariantMapping) TableName() string {
	return "variant_mappings"
}

// LatestPrice is the read model behind the dashboard's price table: the most
// recent price_history row per (variant, competitor).
type LatestPrice struct {
	VariantID  uint64    `json:"variant_id"`
	ProductID  uint64    `json:"product_id"`
	Competitor string    `json:"competitor"`
	Price      float64   `json:"price"`
	Stock      int       `json:"stock"`
	ObservedAt time.Time `json:"observed_at"`
}
