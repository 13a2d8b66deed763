package reebelo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"priceradar/domain"
	"priceradar/internal/source"
	"priceradar/pkg/config"
	"priceradar/pkg/logger"

	"golang.org/x/time/rate"
)

const CompetitorName = domain.CompetitorReebelo

var ErrRateLimited = errors.New("rate limited")

// Client scrapes the Reebelo offer search API. The API is paginated per SKU:
// each page returns a hasNextPage flag, and pages for one SKU must be walked
// sequentially. Different SKUs may be fetched in parallel up to Concurrency.
type Client struct {
	cfg     config.ReebeloConfig
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg config.ReebeloConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("reebelo api key is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	interval := cfg.PageInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
		// paces page requests across all workers
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

func (c *Client) Name() string {
	return CompetitorName
}

// FetchOffers walks every SKU's pages and returns the normalized offers. A
// SKU whose fetch fails is skipped and recorded; it never aborts the batch.
func (c *Client) FetchOffers(ctx context.Context, keys []string) (source.Result, error) {
	var (
		mu     sync.Mutex
		result source.Result
	)

	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, sku := range keys {
		if err := ctx.Err(); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(sku string) {
			defer wg.Done()
			defer func() { <-sem }()

			offers, err := c.fetchSKU(ctx, sku)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				logger.Warn("reebelo: skipping sku", "sku", sku, "error", err)
				result.KeyErrors = append(result.KeyErrors, source.KeyError{Key: sku, Err: err.Error()})
				return
			}
			result.Succeeded++
			result.Offers = append(result.Offers, offers...)
		}(sku)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("context error: %w", err)
	}

	return result, nil
}

// fetchSKU accumulates all pages for one SKU. Pagination is strictly
// sequential; a 429 backs off and retries the same page instead of skipping it.
func (c *Client) fetchSKU(ctx context.Context, sku string) ([]domain.Offer, error) {
	page := 1
	attempts := 0
	var all []domain.Offer

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("context error: %w", err)
		}

		resp, err := c.fetchPage(ctx, sku, page)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				attempts++
				if attempts > c.cfg.MaxRetries {
					return nil, fmt.Errorf("rate limit retries exhausted on page %d: %w", page, err)
				}
				logger.Info("reebelo: rate limited, backing off", "sku", sku, "page", page, "delay", c.cfg.RateLimitDelay)
				if err := sleep(ctx, c.cfg.RateLimitDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		attempts = 0
		all = append(all, resp.offers...)

		if !resp.hasNextPage {
			return all, nil
		}
		page++
	}
}

type pageResult struct {
	offers      []domain.Offer
	hasNextPage bool
}

func (c *Client) fetchPage(ctx context.Context, sku string, page int) (pageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return pageResult{}, fmt.Errorf("failed to build request: %w", err)
	}

	q := url.Values{}
	q.Set("search", sku)
	q.Set("page", strconv.Itoa(page))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)

	res, err := c.http.Do(req)
	if err != nil {
		return pageResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, res.Body)
		return pageResult{}, ErrRateLimited
	case res.StatusCode != http.StatusOK:
		io.Copy(io.Discard, res.Body)
		return pageResult{}, fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return pageResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	offers := make([]domain.Offer, 0, len(body.PublishedOffers))
	for _, raw := range body.PublishedOffers {
		offer, ok := normalizeOffer(raw, sku, c.cfg.Currency)
		if !ok {
			continue
		}
		offers = append(offers, offer)
	}

	return pageResult{offers: offers, hasNextPage: body.HasNextPage}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("context error: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
