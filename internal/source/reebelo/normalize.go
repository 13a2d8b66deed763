package reebelo

import (
	"encoding/json"
	"time"

	"priceradar/domain"

	"gorm.io/datatypes"
)

type apiResponse struct {
	PublishedOffers []json.RawMessage `json:"publishedOffers"`
	HasNextPage     bool              `json:"hasNextPage"`
}

type apiOffer struct {
	Price        float64 `json:"price"`
	ReebeloOffer struct {
		Attributes struct {
			Condition  string `json:"condition"`
			Storage    string `json:"storage"`
			Color      string `json:"color"`
			IsBest     bool   `json:"isBest"`
			IsCheapest bool   `json:"isCheapest"`
		} `json:"attributes"`
		Stock int    `json:"stock"`
		URL   string `json:"url"`
	} `json:"reebeloOffer"`
}

// normalizeOffer maps one raw published offer to the canonical shape. The
// source already structures storage/condition/color, so attributes pass
// through as-is. Offers with a negative or unparseable price are dropped.
func normalizeOffer(raw json.RawMessage, sku, currency string) (domain.Offer, bool) {
	var o apiOffer
	if err := json.Unmarshal(raw, &o); err != nil {
		return domain.Offer{}, false
	}
	if o.Price < 0 {
		return domain.Offer{}, false
	}

	stock := o.ReebeloOffer.Stock
	if stock < 0 {
		stock = 0
	}

	// keep the untouched payload for audit
	var payload map[string]any
	_ = json.Unmarshal(raw, &payload)

	return domain.Offer{
		Competitor: CompetitorName,
		SourceSKU:  sku,
		Price:      o.Price,
		Currency:   currency,
		Stock:      stock,
		Storage:    o.ReebeloOffer.Attributes.Storage,
		Color:      o.ReebeloOffer.Attributes.Color,
		Condition:  o.ReebeloOffer.Attributes.Condition,
		SourceURL:  o.ReebeloOffer.URL,
		FetchedAt:  time.Now().UTC(),
		Raw: datatypes.JSONMap{
			"offer": payload,
			"sku":   sku,
		},
	}, true
}
