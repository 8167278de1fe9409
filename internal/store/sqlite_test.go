package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func strPtr(s string) *string { return &s }

func TestSQLiteStore_RestaurantRoundtrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	lat, lon := 43.65, -79.38
	r := &model.Restaurant{
		PlaceID:   "place-1",
		Name:      "Thai Garden",
		Slug:      "thai-garden",
		Address:   strPtr("1 Main St"),
		Latitude:  &lat,
		Longitude: &lon,
		Tags:      []string{"vegan", "gluten-free"},
		Colors:    &model.ColorPalette{Primary: "#e63946", Text: "#111111"},
	}
	require.NoError(t, s.CreateRestaurant(ctx, r))
	assert.NotEmpty(t, r.ID)

	got, err := s.GetRestaurantByPlaceID(ctx, "place-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "Thai Garden", got.Name)
	require.NotNil(t, got.Address)
	assert.Equal(t, "1 Main St", *got.Address)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 43.65, *got.Latitude, 1e-9)
	assert.Equal(t, []string{"vegan", "gluten-free"}, got.Tags)
	require.NotNil(t, got.Colors)
	assert.Equal(t, "#e63946", got.Colors.Primary)
	assert.Equal(t, "#111111", got.Colors.Text)

	bySlug, err := s.GetRestaurantBySlug(ctx, "thai-garden")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, r.ID, bySlug.ID)
}

func TestSQLiteStore_GetRestaurant_Missing(t *testing.T) {
	s := newTestSQLiteStore(t)

	r, err := s.GetRestaurantByPlaceID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = s.GetRestaurantBySlug(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestSQLiteStore_SlugExists(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	exists, err := s.SlugExists(ctx, "thai-garden")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.CreateRestaurant(ctx, &model.Restaurant{
		PlaceID: "place-1", Name: "Thai Garden", Slug: "thai-garden",
	}))

	exists, err = s.SlugExists(ctx, "thai-garden")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLiteStore_DuplicatePlaceIDRejected(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRestaurant(ctx, &model.Restaurant{
		PlaceID: "place-1", Name: "A", Slug: "a",
	}))
	err := s.CreateRestaurant(ctx, &model.Restaurant{
		PlaceID: "place-1", Name: "B", Slug: "b",
	})
	require.Error(t, err)
}

func TestSQLiteStore_UpdateRestaurantMeta(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	r := &model.Restaurant{PlaceID: "place-1", Name: "Thai Garden", Slug: "thai-garden"}
	require.NoError(t, s.CreateRestaurant(ctx, r))

	err := s.UpdateRestaurantMeta(ctx, r.ID, MetaUpdate{
		Description: strPtr("Family-run Thai kitchen."),
		Cuisine:     strPtr("thai"),
		Tags:        []string{"vegan"},
		Website:     strPtr("https://thaigarden.test"),
		LogoURL:     strPtr("https://thaigarden.test/logo.png"),
		Colors:      &model.ColorPalette{Primary: "#e63946"},
	})
	require.NoError(t, err)

	got, err := s.GetRestaurantByPlaceID(ctx, "place-1")
	require.NoError(t, err)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Family-run Thai kitchen.", *got.Description)
	require.NotNil(t, got.Cuisine)
	assert.Equal(t, "thai", *got.Cuisine)
	assert.Equal(t, []string{"vegan"}, got.Tags)
	require.NotNil(t, got.Website)
	assert.Equal(t, "https://thaigarden.test", *got.Website)
	require.NotNil(t, got.Colors)
	assert.Equal(t, "#e63946", got.Colors.Primary)

	// An empty update is a no-op, not an error.
	require.NoError(t, s.UpdateRestaurantMeta(ctx, r.ID, MetaUpdate{}))

	err = s.UpdateRestaurantMeta(ctx, "ghost", MetaUpdate{Description: strPtr("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteStore_MenuRoundtrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	r := &model.Restaurant{PlaceID: "place-1", Name: "Thai Garden", Slug: "thai-garden"}
	require.NoError(t, s.CreateRestaurant(ctx, r))

	noodles := &model.MenuCategory{RestaurantID: r.ID, Name: "Noodles", DisplayOrder: 1}
	starters := &model.MenuCategory{RestaurantID: r.ID, Name: "Starters", DisplayOrder: 0}
	require.NoError(t, s.CreateCategory(ctx, noodles))
	require.NoError(t, s.CreateCategory(ctx, starters))

	require.NoError(t, s.CreateItem(ctx, &model.MenuItemRecord{
		RestaurantID: r.ID, CategoryID: noodles.ID, Name: "Pad Thai",
		Description: strPtr("Rice noodles with tamarind."), Price: strPtr("14.50"),
	}))
	require.NoError(t, s.CreateItem(ctx, &model.MenuItemRecord{
		RestaurantID: r.ID, CategoryID: starters.ID, Name: "Spring Roll", Price: strPtr("6.50"),
	}))

	cats, err := s.ListCategories(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	// Ordered by display_order.
	assert.Equal(t, "Starters", cats[0].Name)
	assert.Equal(t, "Noodles", cats[1].Name)

	items, err := s.ListItems(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Ordered by name.
	assert.Equal(t, "Pad Thai", items[0].Name)
	require.NotNil(t, items[0].Description)
	assert.Equal(t, "Spring Roll", items[1].Name)

	// Listing a different restaurant returns nothing.
	other, err := s.ListItems(ctx, "other-rest")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteStore_Stats(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, st)

	r := &model.Restaurant{PlaceID: "place-1", Name: "Thai Garden", Slug: "thai-garden"}
	require.NoError(t, s.CreateRestaurant(ctx, r))
	cat := &model.MenuCategory{RestaurantID: r.ID, Name: "Noodles"}
	require.NoError(t, s.CreateCategory(ctx, cat))
	require.NoError(t, s.CreateItem(ctx, &model.MenuItemRecord{
		RestaurantID: r.ID, CategoryID: cat.ID, Name: "Pad Thai",
	}))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Restaurants: 1, Categories: 1, Items: 1}, st)
}
