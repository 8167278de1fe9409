// Package store provides persistence for restaurants and their menus,
// backed by either SQLite or Postgres.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mirchapp/menu-pipeline/internal/config"
	"github.com/mirchapp/menu-pipeline/internal/model"
)

// MetaUpdate carries the presentation fields filled in after a scrape.
// Nil pointers and empty slices leave the stored value untouched.
type MetaUpdate struct {
	Description *string
	Cuisine     *string
	Tags        []string
	Website     *string
	LogoURL     *string
	Colors      *model.ColorPalette
}

// Stats holds row counts across the three record kinds.
type Stats struct {
	Restaurants int `json:"restaurants"`
	Categories  int `json:"categories"`
	Items       int `json:"items"`
}

// Store defines the persistence interface for the menu pipeline.
type Store interface {
	// Restaurants
	CreateRestaurant(ctx context.Context, r *model.Restaurant) error
	GetRestaurantByPlaceID(ctx context.Context, placeID string) (*model.Restaurant, error)
	GetRestaurantBySlug(ctx context.Context, slug string) (*model.Restaurant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	UpdateRestaurantMeta(ctx context.Context, restaurantID string, meta MetaUpdate) error

	// Menu
	CreateCategory(ctx context.Context, c *model.MenuCategory) error
	CreateItem(ctx context.Context, item *model.MenuItemRecord) error
	ListCategories(ctx context.Context, restaurantID string) ([]model.MenuCategory, error)
	ListItems(ctx context.Context, restaurantID string) ([]model.MenuItemRecord, error)

	// Monitoring
	Stats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres", "postgresql":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
