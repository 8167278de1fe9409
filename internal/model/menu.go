// Package model defines the domain types shared across the menu pipeline.
package model

import (
	"strings"
	"time"
)

// MenuItem is a single dish as extracted from a menu. Name is the only
// required field; everything else is best-effort.
type MenuItem struct {
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Price       *string  `json:"price,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ParsedMenu is the batch equivalent of the chunk stream, produced by the
// synchronous and vision-based parsers.
type ParsedMenu struct {
	Items       []MenuItem `json:"items"`
	Categories  []string   `json:"categories,omitempty"`
	Description *string    `json:"description,omitempty"`
}

// ChunkType tags a MenuChunk event.
type ChunkType string

const (
	ChunkDescription ChunkType = "description"
	ChunkCuisine     ChunkType = "cuisine"
	ChunkTags        ChunkType = "tags"
	ChunkCategory    ChunkType = "category"
	ChunkItem        ChunkType = "item"
)

// MenuChunk is one NDJSON event emitted by the streaming extractor. Exactly
// one field of Data is populated, selected by Type.
type MenuChunk struct {
	Type ChunkType `json:"type"`
	Data ChunkData `json:"data"`
}

// ChunkData is the payload union for MenuChunk.
type ChunkData struct {
	Description  string    `json:"description,omitempty"`
	Cuisine      string    `json:"cuisine,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	CategoryName string    `json:"categoryName,omitempty"`
	Item         *MenuItem `json:"item,omitempty"`
}

// Restaurant is the persisted restaurant record, keyed by an external place
// identifier (unique per restaurant).
type Restaurant struct {
	ID          string        `json:"id"`
	PlaceID     string        `json:"place_id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description *string       `json:"description,omitempty"`
	Cuisine     *string       `json:"cuisine,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Address     *string       `json:"address,omitempty"`
	Latitude    *float64      `json:"latitude,omitempty"`
	Longitude   *float64      `json:"longitude,omitempty"`
	Phone       *string       `json:"phone,omitempty"`
	Rating      *float64      `json:"rating,omitempty"`
	Website     *string       `json:"website,omitempty"`
	LogoURL     *string       `json:"logo_url,omitempty"`
	Colors      *ColorPalette `json:"colors,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// MenuCategory groups items within one restaurant's menu, ordered by
// DisplayOrder.
type MenuCategory struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
}

// MenuItemRecord is the persisted form of a MenuItem, attached to one
// restaurant and one category.
type MenuItemRecord struct {
	ID           string  `json:"id"`
	RestaurantID string  `json:"restaurant_id"`
	CategoryID   string  `json:"category_id"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	Price        *string `json:"price,omitempty"`
}

// Slugify turns a restaurant name into a URL-safe slug. Non-alphanumeric
// runs collapse to single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
