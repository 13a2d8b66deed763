package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"priceradar/domain"
)

// CatalogRepository reads the mirrored merchant catalog and the
// operator-curated variant mappings. The sync pipeline never writes through
// this repository; the mirror importer owns the write path.
type CatalogRepository struct {
	DB *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

func (r *CatalogRepository) VariantByID(ctx context.Context, variantID uint64) (*domain.CatalogVariant, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var v domain.CatalogVariant
	err := r.DB.WithContext(ctx).First(&v, "variant_id = ?", variantID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog variant: %w", err)
	}

	return &v, nil
}

func (r *CatalogRepository) VariantsBySKU(ctx context.Context, sku string) ([]domain.CatalogVariant, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if sku == "" {
		return nil, nil
	}

	var variants []domain.CatalogVariant
	err := r.DB.WithContext(ctx).Where("sku = ?", sku).Find(&variants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query variants by sku: %w", err)
	}

	return variants, nil
}

func (r *CatalogRepository) VariantsByTitlePrefix(ctx context.Context, prefix string) ([]domain.CatalogVariant, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if prefix == "" {
		return nil, nil
	}

	var variants []domain.CatalogVariant
	err := r.DB.WithContext(ctx).
		Joins("JOIN catalog_products p ON p.product_id = catalog_variants.product_id").
		Where("p.title ILIKE ?", prefix+"%").
		Find(&variants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query variants by title prefix: %w", err)
	}

	return variants, nil
}

func (r *CatalogRepository) Lookup(ctx context.Context, competitor, sourceSKU string) (*domain.VariantMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var m domain.VariantMapping
	err := r.DB.WithContext(ctx).
		Where("competitor = ? AND source_sku = ?", competitor, sourceSKU).
		First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query variant mapping: %w", err)
	}

	return &m, nil
}

// QueryKeys returns the deduplicated fetch keys for one competitor. Green
// Gadgets is crawled by product handle, so its keys come from the mirrored
// catalog products; every other competitor is queried by SKU, sourced from the
// catalog variants plus whatever the operators mapped by hand. An empty result
// is valid: the mirror has not been imported yet.
func (r *CatalogRepository) QueryKeys(ctx context.Context, competitor string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	if competitor == domain.CompetitorGreenGadgets {
		return r.productHandles(ctx)
	}
	return r.competitorSKUs(ctx, competitor)
}

func (r *CatalogRepository) productHandles(ctx context.Context) ([]string, error) {
	var handles []string
	err := r.DB.WithContext(ctx).
		Model(&domain.CatalogProduct{}).
		Where("handle <> ''").
		Distinct().
		Order("handle").
		Pluck("handle", &handles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query product handles: %w", err)
	}

	return handles, nil
}

func (r *CatalogRepository) competitorSKUs(ctx context.Context, competitor string) ([]string, error) {
	var keys []string
	err := r.DB.WithContext(ctx).Raw(`
		SELECT sku FROM catalog_variants WHERE sku <> ''
		UNION
		SELECT source_sku FROM variant_mappings WHERE competitor = ?
		ORDER BY 1`, competitor).
		Scan(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query competitor skus: %w", err)
	}

	return keys, nil
}
