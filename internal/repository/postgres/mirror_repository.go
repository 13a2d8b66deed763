package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"priceradar/domain"
	"priceradar/pkg/logger"
)

// MirrorRepository is the catalog importer's write path. Upserts key on the
// external product/variant ids, so re-importing the same catalog is a no-op
// update rather than duplicate rows.
//
// Bulk ON CONFLICT upserts need the unique constraints on product_id and
// variant_id to exist; some managed environments ship the tables without
// them. EnsureBulkUpsert probes for the constraints once at startup and the
// repository degrades to per-row upserts when they are missing.
type MirrorRepository struct {
	DB *gorm.DB

	bulk bool
}

func NewMirrorRepository(db *gorm.DB) *MirrorRepository {
	return &MirrorRepository{DB: db}
}

// EnsureBulkUpsert checks whether the unique indexes behind the bulk upsert
// strategy exist and picks the write strategy for this process's lifetime.
func (r *MirrorRepository) EnsureBulkUpsert(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	for _, probe := range []struct {
		table  string
		column string
	}{
		{"catalog_products", "product_id"},
		{"catalog_variants", "variant_id"},
	} {
		ok, err := r.hasUniqueConstraint(ctx, probe.table, probe.column)
		if err != nil {
			return err
		}
		if !ok {
			logger.Warn("unique constraint missing, falling back to per-row upserts",
				"table", probe.table, "column", probe.column)
			r.bulk = false
			return nil
		}
	}

	r.bulk = true
	return nil
}

func (r *MirrorRepository) hasUniqueConstraint(ctx context.Context, table, column string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Raw(`
		SELECT COUNT(*)
		FROM information_schema.table_constraints tc
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.table_schema = 'public'
			AND tc.constraint_type = 'UNIQUE'
			AND tc.table_name = ?
			AND ccu.column_name = ?
	`, table, column).Scan(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to probe unique constraint on %s.%s: %w", table, column, err)
	}

	return count > 0, nil
}

func (r *MirrorRepository) UpsertProducts(ctx context.Context, products []domain.CatalogProduct) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(products) == 0 {
		return nil
	}

	if r.bulk {
		err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"handle", "title", "vendor", "product_type", "updated_at"}),
		}).Create(&products).Error
		if err != nil {
			return fmt.Errorf("failed to bulk upsert products: %w", err)
		}
		return nil
	}

	for i := range products {
		if err := r.upsertProductRow(ctx, &products[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *MirrorRepository) upsertProductRow(ctx context.Context, p *domain.CatalogProduct) error {
	row := r.DB.WithContext(ctx).Model(&domain.CatalogProduct{}).
		Where("product_id = ?", p.ProductID).
		Updates(map[string]interface{}{
			"handle":       p.Handle,
			"title":        p.Title,
			"vendor":       p.Vendor,
			"product_type": p.ProductType,
		})
	if err := row.Error; err != nil {
		return fmt.Errorf("failed to update product %d: %w", p.ProductID, err)
	}
	if row.RowsAffected > 0 {
		return nil
	}

	if err := r.DB.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to insert product %d: %w", p.ProductID, err)
	}

	return nil
}

func (r *MirrorRepository) UpsertVariants(ctx context.Context, variants []domain.CatalogVariant) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(variants) == 0 {
		return nil
	}

	if r.bulk {
		err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "variant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"product_id", "sku", "title", "storage", "color", "condition", "updated_at"}),
		}).Create(&variants).Error
		if err != nil {
			return fmt.Errorf("failed to bulk upsert variants: %w", err)
		}
		return nil
	}

	for i := range variants {
		if err := r.upsertVariantRow(ctx, &variants[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *MirrorRepository) upsertVariantRow(ctx context.Context, v *domain.CatalogVariant) error {
	row := r.DB.WithContext(ctx).Model(&domain.CatalogVariant{}).
		Where("variant_id = ?", v.VariantID).
		Updates(map[string]interface{}{
			"product_id": v.ProductID,
			"sku":        v.SKU,
			"title":      v.Title,
			"storage":    v.Storage,
			"color":      v.Color,
			"condition":  v.Condition,
		})
	if err := row.Error; err != nil {
		return fmt.Errorf("failed to update variant %d: %w", v.VariantID, err)
	}
	if row.RowsAffected > 0 {
		return nil
	}

	if err := r.DB.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("failed to insert variant %d: %w", v.VariantID, err)
	}

	return nil
}
