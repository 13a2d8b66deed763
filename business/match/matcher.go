// Package match resolves normalized offers to internal catalog variants.
package match

import (
	"context"
	"fmt"
	"strings"

	"priceradar/domain"
	"priceradar/pkg/logger"
)

// ---- collaborator interfaces ----

// CatalogReader exposes the read-only slice of the catalog mirror the matcher
// needs. The mirror itself is maintained by a separate ETL.
type CatalogReader interface {
	VariantByID(ctx context.Context, variantID uint64) (*domain.CatalogVariant, error)
	VariantsBySKU(ctx context.Context, sku string) ([]domain.CatalogVariant, error)
	VariantsByTitlePrefix(ctx context.Context, prefix string) ([]domain.CatalogVariant, error)
}

// MappingReader looks up operator-curated competitor SKU mappings.
// A missing mapping is (nil, nil), not an error.
type MappingReader interface {
	Lookup(ctx context.Context, competitor, sourceSKU string) (*domain.VariantMapping, error)
}

type Matcher struct {
	catalog  CatalogReader
	mappings MappingReader
}

func NewMatcher(catalog CatalogReader, mappings MappingReader) *Matcher {
	return &Matcher{
		catalog:  catalog,
		mappings: mappings,
	}
}

// Match resolves an offer in priority order: explicit mapping, exact SKU
// equality, then attribute matching over title-prefix candidates. Ambiguity
// (more than one surviving candidate) yields no match rather than a guess.
// The returned error is reserved for backend failures; "no match" is a nil
// Variant with nil error.
func (m *Matcher) Match(ctx context.Context, offer domain.Offer) (domain.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.MatchResult{}, fmt.Errorf("context error: %w", err)
	}

	result := domain.MatchResult{Offer: offer}

	// 1) explicit mapping, highest confidence
	if offer.SourceSKU != "" {
		mapping, err := m.mappings.Lookup(ctx, offer.Competitor, offer.SourceSKU)
		if err != nil {
			return result, fmt.Errorf("failed to look up mapping: %w", err)
		}
		if mapping != nil {
			// a mapped offer stays matched even when the product lookup
			// fails; the record just lacks its product id
			ref := domain.VariantRef{VariantID: mapping.VariantID}
			variant, err := m.catalog.VariantByID(ctx, mapping.VariantID)
			if err != nil {
				logger.Warn("failed to resolve mapped variant's product",
					"competitor", offer.Competitor,
					"source_sku", offer.SourceSKU,
					"variant_id", mapping.VariantID,
					"error", err,
				)
			} else if variant != nil {
				ref.ProductID = variant.ProductID
			}
			result.Variant = &ref
			return result, nil
		}
	}

	// 2) candidate set: exact SKU equality, falling back to title-prefix
	candidates, err := m.candidates(ctx, offer)
	if err != nil {
		return result, err
	}
	if len(candidates) == 0 {
		return result, nil
	}

	// 3) attribute matching among candidates
	var survivors []domain.CatalogVariant
	for _, v := range candidates {
		if attributesCompatible(offer, v) {
			survivors = append(survivors, v)
		}
	}

	switch len(survivors) {
	case 1:
		result.Variant = &domain.VariantRef{
			ProductID: survivors[0].ProductID,
			VariantID: survivors[0].VariantID,
		}
	case 0:
		// no compatible variant; offer stays unmatched
	default:
		logger.Debug("match: ambiguous candidates, leaving unmatched",
			"competitor", offer.Competitor,
			"source_sku", offer.SourceSKU,
			"candidates", len(survivors),
		)
	}

	return result, nil
}

func (m *Matcher) candidates(ctx context.Context, offer domain.Offer) ([]domain.CatalogVariant, error) {
	if offer.SourceSKU != "" {
		variants, err := m.catalog.VariantsBySKU(ctx, offer.SourceSKU)
		if err != nil {
			return nil, fmt.Errorf("failed to query variants by sku: %w", err)
		}
		if len(variants) > 0 {
			return variants, nil
		}
	}

	if prefix := TitlePrefix(offer.Title); prefix != "" {
		variants, err := m.catalog.VariantsByTitlePrefix(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to query variants by title: %w", err)
		}
		return variants, nil
	}

	return nil, nil
}

// TitlePrefix narrows the candidate set for sources that only expose product
// titles: the first three whitespace-delimited words.
func TitlePrefix(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	if len(fields) > 3 {
		fields = fields[:3]
	}

	return strings.Join(fields, " ")
}

// attributesCompatible checks storage, color and condition: each attribute is
// compatible when either side is absent or when either value contains the
// other, case-insensitively.
func attributesCompatible(offer domain.Offer, v domain.CatalogVariant) bool {
	return attrCompatible(offer.Storage, v.Storage) &&
		attrCompatible(offer.Color, v.Color) &&
		attrCompatible(offer.Condition, v.Condition)
}

func attrCompatible(offerVal, variantVal string) bool {
	if offerVal == "" || variantVal == "" {
		return true
	}

	o := strings.ToLower(offerVal)
	c := strings.ToLower(variantVal)

	return strings.Contains(c, o) || strings.Contains(o, c)
}
