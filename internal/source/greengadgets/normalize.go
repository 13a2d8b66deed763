package greengadgets

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"priceradar/business/normalize"
	"priceradar/domain"

	"gorm.io/datatypes"
)

type productDocument struct {
	ID       uint64           `json:"id"`
	Title    string           `json:"title"`
	Handle   string           `json:"handle"`
	Vendor   string           `json:"vendor"`
	Type     string           `json:"product_type"`
	Variants []productVariant `json:"variants"`
}

type productVariant struct {
	ID             uint64  `json:"id"`
	Title          string  `json:"title"`
	Price          string  `json:"price"`
	SKU            string  `json:"sku"`
	Option1        string  `json:"option1"` // storage
	Option2        string  `json:"option2"` // color
	Option3        string  `json:"option3"` // condition
	CompareAtPrice *string `json:"compare_at_price"`
	Available      bool    `json:"available"`
}

func parseProductDocument(body []byte) (productDocument, error) {
	var wrapper struct {
		Product *productDocument `json:"product"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return productDocument{}, fmt.Errorf("failed to decode product document: %w", err)
	}
	if wrapper.Product == nil || wrapper.Product.Variants == nil {
		return productDocument{}, fmt.Errorf("invalid product JSON structure")
	}

	return *wrapper.Product, nil
}

// normalizeProduct flattens a product document into one offer per available
// variant. Storage/color/condition come from the structured option fields;
// when an option is blank they are recovered from the variant title via the
// closed vocabularies. Availability is the only stock signal this storefront
// exposes, so it maps to 0/1.
func normalizeProduct(product productDocument, sourceURL string, vocab normalize.Vocabulary) []domain.Offer {
	now := time.Now().UTC()

	offers := make([]domain.Offer, 0, len(product.Variants))
	for _, v := range product.Variants {
		if !v.Available {
			continue
		}

		price, err := strconv.ParseFloat(v.Price, 64)
		if err != nil || price < 0 {
			continue
		}

		storage := v.Option1
		if storage == "" {
			storage = normalize.ExtractStorage(v.Title)
		}
		color := v.Option2
		if color == "" {
			color = vocab.ExtractColor(v.Title)
		}
		condition := v.Option3
		if condition == "" {
			condition = vocab.ExtractCondition(v.Title)
		}

		sourceSKU := v.SKU
		if sourceSKU == "" {
			sourceSKU = product.Handle
		}

		offers = append(offers, domain.Offer{
			Competitor: CompetitorName,
			SourceSKU:  sourceSKU,
			Title:      product.Title,
			Price:      price,
			Currency:   "AUD",
			Stock:      1,
			Storage:    storage,
			Color:      color,
			Condition:  condition,
			SourceURL:  sourceURL,
			FetchedAt:  now,
			Raw: datatypes.JSONMap{
				"product_handle": product.Handle,
				"product_title":  product.Title,
				"variant": map[string]any{
					"id":        v.ID,
					"title":     v.Title,
					"sku":       v.SKU,
					"price":     v.Price,
					"option1":   v.Option1,
					"option2":   v.Option2,
					"option3":   v.Option3,
					"available": v.Available,
				},
			},
		})
	}

	return offers
}
