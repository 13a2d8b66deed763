package postgres

import (
	"testing"

	"priceradar/domain"
)

func TestChunkScrapedOffers(t *testing.T) {
	rows := make([]domain.ScrapedOffer, 1201)

	chunks := chunkScrapedOffers(rows, 500)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 500 || len(chunks[1]) != 500 || len(chunks[2]) != 201 {
		t.Fatalf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total != len(rows) {
		t.Fatalf("chunks lost rows: %d != %d", total, len(rows))
	}
}

func TestChunkScrapedOffersEmpty(t *testing.T) {
	if chunks := chunkScrapedOffers(nil, 500); len(chunks) != 0 {
		t.Fatalf("expected no chunks for no rows, got %d", len(chunks))
	}
}

func TestChunkPriceHistoryExactMultiple(t *testing.T) {
	rows := make([]domain.PriceHistory, 1000)

	chunks := chunkPriceHistory(rows, 500)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) != 500 {
			t.Fatalf("chunk %d: expected 500 rows, got %d", i, len(c))
		}
	}
}
