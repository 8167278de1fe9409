package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/browser"
	"github.com/mirchapp/menu-pipeline/internal/classify"
	"github.com/mirchapp/menu-pipeline/internal/extract"
	"github.com/mirchapp/menu-pipeline/internal/pipeline"
	"github.com/mirchapp/menu-pipeline/internal/scrape"
	"github.com/mirchapp/menu-pipeline/internal/store"
	anthropicpkg "github.com/mirchapp/menu-pipeline/pkg/anthropic"
	"github.com/mirchapp/menu-pipeline/pkg/places"
)

// appEnv holds the initialized store, clients, and pipeline shared by the
// serve/scrape commands.
type appEnv struct {
	Store     store.Store
	Pipeline  *pipeline.Pipeline
	Scraper   scrape.Scraper
	Extractor *extract.Extractor
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initApp sets up the store, API clients, scraper chain, and pipeline.
// Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("MENU_ANTHROPIC_KEY is required")
	}

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	var placesClient places.Client
	if cfg.Places.Key != "" {
		placesClient = places.NewClient(cfg.Places.Key)
	} else {
		zap.L().Warn("MENU_PLACES_KEY not set, place lookups will fail")
		placesClient = places.NewClient("")
	}

	classifier := classify.New(anthropicClient, cfg.Anthropic.HaikuModel, cfg.Classify)
	brander := browser.NewBrander(anthropicClient, cfg.Anthropic.VisionModel)
	extractor := extract.NewExtractor(anthropicClient, cfg.Anthropic.SonnetModel)

	// Browser scraper primary, static HTTP fallback for environments
	// without Chrome.
	chain := scrape.NewChain(
		scrape.NewBrowserScraper(classifier, brander, cfg.Scrape),
		scrape.NewStaticScraper(cfg.Scrape.UserAgent),
	)

	p := pipeline.New(st, placesClient, chain, extractor)

	return &appEnv{
		Store:     st,
		Pipeline:  p,
		Scraper:   chain,
		Extractor: extractor,
	}, nil
}
