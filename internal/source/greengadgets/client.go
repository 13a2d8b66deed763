package greengadgets

import (
	"context"
	"fmt"
	"net/http"

	"priceradar/business/normalize"
	"priceradar/domain"
	"priceradar/internal/source"
	"priceradar/pkg/config"
	"priceradar/pkg/logger"

	"github.com/gocolly/colly/v2"
)

const CompetitorName = domain.CompetitorGreenGadgets

const outcomeKey = "outcome"

// Client scrapes the Green Gadgets storefront. Each product handle maps to a
// single JSON document at /products/<handle>.json that lists every variant of
// the product; there is no pagination and no auth.
type Client struct {
	cfg       config.GreenGadgetsConfig
	vocab     normalize.Vocabulary
	collector *colly.Collector
}

type fetchOutcome struct {
	body       []byte
	statusCode int
	err        error
}

func NewClient(cfg config.GreenGadgetsConfig, vocab normalize.Vocabulary) (*Client, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.RequestTimeout)

	// throttles consecutive document fetches; other competitors' workers are
	// unaffected since each client owns its collector
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      cfg.FetchDelay,
	}); err != nil {
		return nil, fmt.Errorf("failed to set rate limit: %w", err)
	}

	collector.OnResponse(func(r *colly.Response) {
		out := r.Ctx.GetAny(outcomeKey).(*fetchOutcome)
		out.statusCode = r.StatusCode
		out.body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		out := r.Request.Ctx.GetAny(outcomeKey).(*fetchOutcome)
		out.statusCode = r.StatusCode
		out.err = err
	})

	return &Client{cfg: cfg, vocab: vocab, collector: collector}, nil
}

func (c *Client) Name() string {
	return CompetitorName
}

// FetchOffers fetches each handle's product document. A 404 means the
// competitor does not carry the product and yields zero offers without an
// error; any other failure skips just that handle.
func (c *Client) FetchOffers(ctx context.Context, keys []string) (source.Result, error) {
	var result source.Result

	for _, handle := range keys {
		// cancellation is only honored between documents; an in-flight
		// request is allowed to finish
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("context error: %w", err)
		}

		result.Processed++

		product, found, err := c.fetchProduct(handle)
		if err != nil {
			logger.Warn("green-gadgets: skipping handle", "handle", handle, "error", err)
			result.KeyErrors = append(result.KeyErrors, source.KeyError{Key: handle, Err: err.Error()})
			continue
		}

		result.Succeeded++
		if !found {
			logger.Debug("green-gadgets: product not carried", "handle", handle)
			continue
		}

		result.Offers = append(result.Offers, normalizeProduct(product, c.productURL(handle), c.vocab)...)
	}

	return result, nil
}

// fetchProduct returns (product, found, error); a 404 is (zero, false, nil).
func (c *Client) fetchProduct(handle string) (productDocument, bool, error) {
	out := &fetchOutcome{}
	cctx := colly.NewContext()
	cctx.Put(outcomeKey, out)

	url := c.productURL(handle)
	reqErr := c.collector.Request(http.MethodGet, url, nil, cctx, nil)
	c.collector.Wait()

	// the collector reports every non-2xx status as an error, so the
	// not-carried check has to come before the error checks
	if out.statusCode == http.StatusNotFound {
		return productDocument{}, false, nil
	}
	if reqErr != nil {
		return productDocument{}, false, fmt.Errorf("request failed: %w", reqErr)
	}
	if out.err != nil {
		return productDocument{}, false, fmt.Errorf("fetch failed (status %d): %w", out.statusCode, out.err)
	}

	product, err := parseProductDocument(out.body)
	if err != nil {
		return productDocument{}, false, err
	}

	return product, true, nil
}

func (c *Client) productURL(handle string) string {
	return fmt.Sprintf("%s/products/%s.json", c.cfg.BaseURL, handle)
}
