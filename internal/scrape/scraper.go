// Package scrape orchestrates menu acquisition from restaurant websites.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

// Scraper fetches a restaurant URL and returns its menu content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*model.ScrapeResult, error)
	Name() string
}

// Chain tries scrapers in priority order, returning the first success.
// In the default wiring the browser scraper runs first with the static
// HTTP scraper as the no-Chrome fallback.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain. Scrapers are tried in order.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// Scrape tries each scraper in order for a single URL.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*model.ScrapeResult, error) {
	var lastErr error
	for _, s := range c.scrapers {
		result, err := s.Scrape(ctx, targetURL)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no scraper produced content for %s", targetURL)
}

// Name implements Scraper so a Chain can nest.
func (c *Chain) Name() string { return "chain" }
