// Package mirror imports the merchant's own product catalog into the local
// mirror tables. The matcher only ever reads the mirror, so price sync runs
// stay decoupled from the merchant store's availability.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"priceradar/business/normalize"
	"priceradar/domain"
	"priceradar/pkg/config"
	"priceradar/pkg/logger"
)

// Writer is the mirror tables' write path.
type Writer interface {
	EnsureBulkUpsert(ctx context.Context) error
	UpsertProducts(ctx context.Context, products []domain.CatalogProduct) error
	UpsertVariants(ctx context.Context, variants []domain.CatalogVariant) error
}

// CacheDropper invalidates catalog read caches once an import has rewritten
// the mirror tables.
type CacheDropper interface {
	Invalidate(ctx context.Context) error
}

type Importer struct {
	cfg    config.MirrorConfig
	http   *http.Client
	writer Writer
	vocab  normalize.Vocabulary
	cache  CacheDropper
}

// NewImporter builds an importer; cache may be nil when no cache layer is
// deployed.
func NewImporter(cfg config.MirrorConfig, writer Writer, vocab normalize.Vocabulary, cache CacheDropper) (*Importer, error) {
	if cfg.ShopURL == "" {
		return nil, fmt.Errorf("mirror shop URL is not configured")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("mirror access token is not configured")
	}

	return &Importer{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		writer: writer,
		vocab:  vocab,
		cache:  cache,
	}, nil
}

// Summary reports one completed import.
type Summary struct {
	Products int
	Variants int
	Pages    int
}

// Run walks the store's paginated products endpoint and upserts every product
// and variant into the mirror tables.
func (im *Importer) Run(ctx context.Context) (*Summary, error) {
	if err := im.writer.EnsureBulkUpsert(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare mirror writer: %w", err)
	}

	summary := &Summary{}
	pageURL := im.firstPageURL()
	for pageURL != "" {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context error: %w", err)
		}

		page, next, err := im.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		summary.Pages++

		products, variants := im.convert(page)
		if err := im.writer.UpsertProducts(ctx, products); err != nil {
			return nil, err
		}
		if err := im.writer.UpsertVariants(ctx, variants); err != nil {
			return nil, err
		}
		summary.Products += len(products)
		summary.Variants += len(variants)

		pageURL = next
	}

	// cached lookups may still serve pre-import rows; dropping them here
	// instead of failing keeps the import usable when redis is down, the
	// TTL bounds the staleness
	if im.cache != nil {
		if err := im.cache.Invalidate(ctx); err != nil {
			logger.Warn("failed to drop catalog cache after import", "error", err)
		}
	}

	logger.Info("catalog mirror import finished",
		"products", summary.Products,
		"variants", summary.Variants,
		"pages", summary.Pages,
	)

	return summary, nil
}

func (im *Importer) firstPageURL() string {
	return fmt.Sprintf("%s/admin/api/%s/products.json?limit=%d",
		strings.TrimRight(im.cfg.ShopURL, "/"), im.cfg.APIVersion, im.cfg.PageSize)
}

func (im *Importer) fetchPage(ctx context.Context, pageURL string) ([]storeProduct, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", im.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := im.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch catalog page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("catalog page returned status %d", resp.StatusCode)
	}

	var body struct {
		Products []storeProduct `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, "", fmt.Errorf("failed to decode catalog page: %w", err)
	}

	return body.Products, nextPageURL(resp.Header.Get("Link")), nil
}

type storeProduct struct {
	ID          uint64         `json:"id"`
	Handle      string         `json:"handle"`
	Title       string         `json:"title"`
	Vendor      string         `json:"vendor"`
	ProductType string         `json:"product_type"`
	Variants    []storeVariant `json:"variants"`
}

type storeVariant struct {
	ID      uint64 `json:"id"`
	SKU     string `json:"sku"`
	Title   string `json:"title"`
	Option1 string `json:"option1"`
	Option2 string `json:"option2"`
	Option3 string `json:"option3"`
}

func (im *Importer) convert(products []storeProduct) ([]domain.CatalogProduct, []domain.CatalogVariant) {
	outProducts := make([]domain.CatalogProduct, 0, len(products))
	var outVariants []domain.CatalogVariant

	for _, p := range products {
		outProducts = append(outProducts, domain.CatalogProduct{
			ProductID:   p.ID,
			Handle:      p.Handle,
			Title:       p.Title,
			Vendor:      p.Vendor,
			ProductType: p.ProductType,
		})

		for _, v := range p.Variants {
			cv := domain.CatalogVariant{
				VariantID: v.ID,
				ProductID: p.ID,
				SKU:       v.SKU,
				Title:     v.Title,
				Storage:   v.Option1,
				Color:     v.Option2,
				Condition: v.Option3,
			}
			// stores that don't fill the option slots still carry the
			// attributes in the variant title
			if cv.Storage == "" {
				cv.Storage = normalize.ExtractStorage(v.Title)
			}
			if cv.Color == "" {
				cv.Color = im.vocab.ExtractColor(v.Title)
			}
			if cv.Condition == "" {
				cv.Condition = im.vocab.ExtractCondition(v.Title)
			}
			outVariants = append(outVariants, cv)
		}
	}

	return outProducts, outVariants
}

// nextPageURL parses the RFC 5988 Link header the store paginates with and
// returns the rel="next" URL, or "" on the last page.
func nextPageURL(header string) string {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		if !strings.Contains(section[1], `rel="next"`) {
			continue
		}

		raw := strings.Trim(strings.TrimSpace(section[0]), "<>")
		if _, err := url.Parse(raw); err != nil {
			return ""
		}
		return raw
	}

	return ""
}
