package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/internal/store"
)

// fallbackCategoryName collects items whose category never resolved.
const fallbackCategoryName = "Menu"

// menuSaver persists extractor chunk events as they arrive. Insert failures
// on individual rows are logged and skipped so sibling rows still land.
type menuSaver struct {
	ctx          context.Context
	store        store.Store
	restaurantID string

	categoryIDs map[string]string // normalized name -> id
	nextOrder   int

	// Items without a resolvable category are buffered until the stream
	// ends, when it is known whether the fallback bucket is the whole
	// menu (display order 0) or a leftovers bucket (999).
	uncategorized []model.MenuItem

	description string
	cuisine     *string
	tags        []string

	totalCategories int
	totalItems      int
}

func newMenuSaver(ctx context.Context, st store.Store, restaurantID string) *menuSaver {
	return &menuSaver{
		ctx:          ctx,
		store:        st,
		restaurantID: restaurantID,
		categoryIDs:  make(map[string]string),
	}
}

// handle consumes one deduplicated chunk. The extractor guarantees a
// category event precedes its items, so unresolved categories here mean a
// failed category insert, and the item falls back.
func (s *menuSaver) handle(chunk model.MenuChunk) {
	ctx := s.ctx

	switch chunk.Type {
	case model.ChunkDescription:
		s.description = chunk.Data.Description
	case model.ChunkCuisine:
		c := chunk.Data.Cuisine
		s.cuisine = &c
	case model.ChunkTags:
		s.tags = chunk.Data.Tags
	case model.ChunkCategory:
		s.saveCategory(ctx, chunk.Data.CategoryName)
	case model.ChunkItem:
		if chunk.Data.Item != nil {
			s.saveItem(ctx, *chunk.Data.Item)
		}
	}
}

func (s *menuSaver) saveCategory(ctx context.Context, name string) {
	key := strings.ToLower(name)
	if _, ok := s.categoryIDs[key]; ok {
		return
	}

	cat := &model.MenuCategory{
		RestaurantID: s.restaurantID,
		Name:         name,
		DisplayOrder: s.nextOrder,
	}
	if err := s.store.CreateCategory(ctx, cat); err != nil {
		zap.L().Warn("pipeline: category insert failed, items will fall back",
			zap.String("category", name), zap.Error(err))
		return
	}
	s.categoryIDs[key] = cat.ID
	s.nextOrder++
	s.totalCategories++
}

func (s *menuSaver) saveItem(ctx context.Context, item model.MenuItem) {
	var categoryID string
	if item.Category != nil {
		categoryID = s.categoryIDs[strings.ToLower(*item.Category)]
	}
	if categoryID == "" {
		s.uncategorized = append(s.uncategorized, item)
		return
	}
	s.insertItem(ctx, categoryID, item)
}

func (s *menuSaver) insertItem(ctx context.Context, categoryID string, item model.MenuItem) {
	rec := &model.MenuItemRecord{
		RestaurantID: s.restaurantID,
		CategoryID:   categoryID,
		Name:         item.Name,
		Description:  item.Description,
		Price:        item.Price,
	}
	if err := s.store.CreateItem(ctx, rec); err != nil {
		zap.L().Warn("pipeline: item insert failed, skipping",
			zap.String("item", item.Name), zap.Error(err))
		return
	}
	s.totalItems++
}

// finish flushes buffered uncategorized items into the fallback category.
// An all-flat menu gets display order 0; leftovers trail real categories
// at 999.
func (s *menuSaver) finish(ctx context.Context) {
	if len(s.uncategorized) == 0 {
		return
	}

	order := 999
	if s.totalCategories == 0 {
		order = 0
	}
	cat := &model.MenuCategory{
		RestaurantID: s.restaurantID,
		Name:         fallbackCategoryName,
		DisplayOrder: order,
	}
	if err := s.store.CreateCategory(ctx, cat); err != nil {
		zap.L().Warn("pipeline: fallback category insert failed",
			zap.Int("dropped_items", len(s.uncategorized)), zap.Error(err))
		return
	}
	s.totalCategories++

	for _, item := range s.uncategorized {
		s.insertItem(ctx, cat.ID, item)
	}
	s.uncategorized = nil
}

// meta assembles the restaurant-level fields collected from the stream.
func (s *menuSaver) meta() store.MetaUpdate {
	var meta store.MetaUpdate
	if s.description != "" {
		meta.Description = &s.description
	}
	meta.Cuisine = s.cuisine
	meta.Tags = s.tags
	return meta
}

// SaveParsedMenu persists a batch-parsed menu through the same saver logic,
// so the fallback categorization rules match the streaming path.
func SaveParsedMenu(ctx context.Context, st store.Store, restaurantID string, menu *model.ParsedMenu) (categories, items int) {
	saver := newMenuSaver(ctx, st, restaurantID)
	for _, name := range menu.Categories {
		saver.saveCategory(ctx, name)
	}
	for _, item := range menu.Items {
		saver.saveItem(ctx, item)
	}
	saver.finish(ctx)
	return saver.totalCategories, saver.totalItems
}
