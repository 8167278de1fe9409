// Package pipeline drives the scrape-and-save flow: resolve the place,
// scrape its website, stream-extract the menu, and persist the result.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/extract"
	"github.com/mirchapp/menu-pipeline/internal/jobs"
	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/internal/scrape"
	"github.com/mirchapp/menu-pipeline/internal/store"
	"github.com/mirchapp/menu-pipeline/pkg/places"
)

var (
	// ErrNoWebsite means the place resolved but has no website to scrape.
	ErrNoWebsite = eris.New("pipeline: place has no website")
	// ErrMenuNotFound means scraping finished without usable menu content.
	ErrMenuNotFound = eris.New("pipeline: no menu content found")
)

// Request identifies the restaurant to acquire. Optional fields override
// the values resolved from the place lookup.
type Request struct {
	PlaceID   string   `json:"placeId"`
	Address   *string  `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Phone     *string  `json:"phone,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
}

// Outcome summarizes one completed scrape-and-save.
type Outcome struct {
	RestaurantID    string
	Slug            string
	TotalCategories int
	TotalItems      int
	AlreadyExists   bool
}

// Pipeline wires the place resolver, scraper chain, extractor and store.
type Pipeline struct {
	store     store.Store
	places    places.Client
	scraper   scrape.Scraper
	extractor *extract.Extractor
	inflight  *jobs.Tracker[*Outcome]
}

// New creates a Pipeline.
func New(st store.Store, pl places.Client, sc scrape.Scraper, ex *extract.Extractor) *Pipeline {
	return &Pipeline{
		store:     st,
		places:    pl,
		scraper:   sc,
		extractor: ex,
		inflight:  jobs.NewTracker[*Outcome](),
	}
}

// Run executes the scrape-and-save flow for one place. Concurrent calls for
// the same place ID share a single execution; followers receive the owner's
// result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.PlaceID == "" {
		return nil, eris.New("pipeline: placeId is required")
	}

	job, owner := p.inflight.Begin(req.PlaceID)
	if !owner {
		zap.L().Info("pipeline: scrape already in flight, waiting",
			zap.String("place_id", req.PlaceID))
		return job.Wait(ctx)
	}

	outcome, err := p.run(ctx, req)
	p.inflight.Complete(req.PlaceID, job, outcome, err)
	return outcome, err
}

func (p *Pipeline) run(ctx context.Context, req Request) (*Outcome, error) {
	// Existence check keeps the flow idempotent across process restarts.
	existing, err := p.store.GetRestaurantByPlaceID(ctx, req.PlaceID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: check existing restaurant")
	}
	if existing != nil {
		return p.existingOutcome(ctx, existing)
	}

	place, err := p.places.GetPlace(ctx, req.PlaceID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve place")
	}
	if place.WebsiteURI == "" {
		return nil, ErrNoWebsite
	}

	zap.L().Info("pipeline: scraping restaurant",
		zap.String("place_id", req.PlaceID),
		zap.String("name", place.DisplayName.Text),
		zap.String("website", place.WebsiteURI),
	)

	result, err := p.scraper.Scrape(ctx, place.WebsiteURI)
	if err != nil {
		zap.L().Warn("pipeline: scrape failed",
			zap.String("place_id", req.PlaceID), zap.Error(err))
		return nil, ErrMenuNotFound
	}
	if result == nil || result.Text == "" {
		return nil, ErrMenuNotFound
	}

	restaurant, err := p.createRestaurant(ctx, req, place)
	if err != nil {
		return nil, err
	}

	saver := newMenuSaver(ctx, p.store, restaurant.ID)
	streamErr := p.extractor.StreamExtract(ctx, result.Text, restaurant.Name, true, saver.handle)
	saver.finish(ctx)
	if streamErr != nil {
		if saver.totalItems == 0 {
			return nil, eris.Wrap(streamErr, "pipeline: stream extract")
		}
		// Partial menus are still worth keeping; report what landed.
		zap.L().Warn("pipeline: stream extract failed after partial save",
			zap.String("restaurant_id", restaurant.ID),
			zap.Int("items_saved", saver.totalItems),
			zap.Error(streamErr),
		)
	}

	meta := saver.meta()
	meta.Website = &place.WebsiteURI
	if result.LogoURL != "" {
		meta.LogoURL = &result.LogoURL
	}
	meta.Colors = result.Colors
	if err := p.store.UpdateRestaurantMeta(ctx, restaurant.ID, meta); err != nil {
		zap.L().Warn("pipeline: update restaurant meta failed",
			zap.String("restaurant_id", restaurant.ID), zap.Error(err))
	}

	zap.L().Info("pipeline: scrape-and-save complete",
		zap.String("restaurant_id", restaurant.ID),
		zap.String("slug", restaurant.Slug),
		zap.Int("categories", saver.totalCategories),
		zap.Int("items", saver.totalItems),
	)

	return &Outcome{
		RestaurantID:    restaurant.ID,
		Slug:            restaurant.Slug,
		TotalCategories: saver.totalCategories,
		TotalItems:      saver.totalItems,
	}, nil
}

func (p *Pipeline) existingOutcome(ctx context.Context, r *model.Restaurant) (*Outcome, error) {
	cats, err := p.store.ListCategories(ctx, r.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list categories")
	}
	items, err := p.store.ListItems(ctx, r.ID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list items")
	}
	return &Outcome{
		RestaurantID:    r.ID,
		Slug:            r.Slug,
		TotalCategories: len(cats),
		TotalItems:      len(items),
		AlreadyExists:   true,
	}, nil
}

func (p *Pipeline) createRestaurant(ctx context.Context, req Request, place *places.Place) (*model.Restaurant, error) {
	slug, err := p.uniqueSlug(ctx, place.DisplayName.Text)
	if err != nil {
		return nil, err
	}

	r := &model.Restaurant{
		PlaceID: req.PlaceID,
		Name:    place.DisplayName.Text,
		Slug:    slug,
	}

	// Caller-supplied details win over resolved place details.
	r.Address = req.Address
	if r.Address == nil && place.FormattedAddress != "" {
		r.Address = &place.FormattedAddress
	}
	r.Latitude, r.Longitude = req.Latitude, req.Longitude
	if r.Latitude == nil && place.Location != nil {
		r.Latitude = &place.Location.Latitude
		r.Longitude = &place.Location.Longitude
	}
	r.Phone = req.Phone
	if r.Phone == nil && place.NationalPhoneNumber != "" {
		r.Phone = &place.NationalPhoneNumber
	}
	r.Rating = req.Rating
	if r.Rating == nil && place.Rating > 0 {
		r.Rating = &place.Rating
	}

	if err := p.store.CreateRestaurant(ctx, r); err != nil {
		return nil, eris.Wrap(err, "pipeline: create restaurant")
	}
	return r, nil
}

// uniqueSlug derives a URL slug from name, suffixing a counter on collision.
func (p *Pipeline) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := model.Slugify(name)
	if base == "" {
		base = "restaurant"
	}

	slug := base
	for i := 2; ; i++ {
		exists, err := p.store.SlugExists(ctx, slug)
		if err != nil {
			return "", eris.Wrap(err, "pipeline: slug lookup")
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
