// Package monitoring reports point-in-time pipeline health.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mirchapp/menu-pipeline/internal/store"
)

// Snapshot holds a point-in-time view of the pipeline's stored output.
type Snapshot struct {
	TotalRestaurants int       `json:"total_restaurants"`
	TotalCategories  int       `json:"total_categories"`
	TotalItems       int       `json:"total_items"`
	CollectedAt      time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a Collector over the given store.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect queries current row counts.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: collect stats")
	}
	return &Snapshot{
		TotalRestaurants: stats.Restaurants,
		TotalCategories:  stats.Categories,
		TotalItems:       stats.Items,
		CollectedAt:      time.Now().UTC(),
	}, nil
}
