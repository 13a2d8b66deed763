// Package source defines the contract between the sync orchestrator and the
// per-competitor adapters. An adapter knows how to call one external source
// and turn its responses into normalized offers; it never touches the
// database.
package source

import (
	"context"

	"priceradar/domain"
)

// KeyError records a query key the adapter had to skip. A skipped key is not
// a competitor failure; the orchestrator reports it on the competitor run and
// moves on.
type KeyError struct {
	Key string `json:"key"`
	Err string `json:"error"`
}

// Result is everything one adapter produced for one run.
type Result struct {
	Offers    []domain.Offer
	KeyErrors []KeyError
	Processed int
	Succeeded int
}

// Adapter fetches offers for a deduplicated set of query keys (SKUs or
// product handles, depending on the competitor). A returned error means the
// whole competitor failed (configuration, total outage); per-key problems go
// into Result.KeyErrors instead.
type Adapter interface {
	Name() string
	FetchOffers(ctx context.Context, keys []string) (Result, error)
}
