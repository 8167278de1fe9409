package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/internal/store"
)

// memStore is an in-memory store.Store for pipeline tests. failItems and
// failCategories trigger insert errors by name.
type memStore struct {
	restaurants []*model.Restaurant
	categories  []model.MenuCategory
	items       []model.MenuItemRecord
	metaUpdates map[string]store.MetaUpdate

	failItems      map[string]bool
	failCategories map[string]bool

	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		metaUpdates:    make(map[string]store.MetaUpdate),
		failItems:      make(map[string]bool),
		failCategories: make(map[string]bool),
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%03d", prefix, m.nextID)
}

func (m *memStore) CreateRestaurant(_ context.Context, r *model.Restaurant) error {
	if r.ID == "" {
		r.ID = m.id("rest")
	}
	m.restaurants = append(m.restaurants, r)
	return nil
}

func (m *memStore) GetRestaurantByPlaceID(_ context.Context, placeID string) (*model.Restaurant, error) {
	for _, r := range m.restaurants {
		if r.PlaceID == placeID {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetRestaurantBySlug(_ context.Context, slug string) (*model.Restaurant, error) {
	for _, r := range m.restaurants {
		if r.Slug == slug {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	r, err := m.GetRestaurantBySlug(ctx, slug)
	return r != nil, err
}

func (m *memStore) UpdateRestaurantMeta(_ context.Context, restaurantID string, meta store.MetaUpdate) error {
	m.metaUpdates[restaurantID] = meta
	return nil
}

func (m *memStore) CreateCategory(_ context.Context, c *model.MenuCategory) error {
	if m.failCategories[c.Name] {
		return eris.New("category insert failed")
	}
	if c.ID == "" {
		c.ID = m.id("cat")
	}
	m.categories = append(m.categories, *c)
	return nil
}

func (m *memStore) CreateItem(_ context.Context, item *model.MenuItemRecord) error {
	if m.failItems[item.Name] {
		return eris.New("item insert failed")
	}
	if item.ID == "" {
		item.ID = m.id("item")
	}
	m.items = append(m.items, *item)
	return nil
}

func (m *memStore) ListCategories(_ context.Context, restaurantID string) ([]model.MenuCategory, error) {
	var out []model.MenuCategory
	for _, c := range m.categories {
		if c.RestaurantID == restaurantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListItems(_ context.Context, restaurantID string) ([]model.MenuItemRecord, error) {
	var out []model.MenuItemRecord
	for _, i := range m.items {
		if i.RestaurantID == restaurantID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memStore) Stats(_ context.Context) (*store.Stats, error) {
	return &store.Stats{
		Restaurants: len(m.restaurants),
		Categories:  len(m.categories),
		Items:       len(m.items),
	}, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func (m *memStore) categoryByName(name string) *model.MenuCategory {
	for i := range m.categories {
		if m.categories[i].Name == name {
			return &m.categories[i]
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

func chunkCategory(name string) model.MenuChunk {
	return model.MenuChunk{Type: model.ChunkCategory, Data: model.ChunkData{CategoryName: name}}
}

func chunkItem(name string, price, category *string) model.MenuChunk {
	return model.MenuChunk{Type: model.ChunkItem, Data: model.ChunkData{
		Item: &model.MenuItem{Name: name, Price: price, Category: category},
	}}
}

func TestMenuSaver_CategorizedFlow(t *testing.T) {
	st := newMemStore()
	saver := newMenuSaver(context.Background(), st, "rest-1")

	saver.handle(chunkCategory("Starters"))
	saver.handle(chunkItem("Spring Roll", strPtr("6.50"), strPtr("Starters")))
	saver.handle(chunkCategory("Noodles"))
	saver.handle(chunkItem("Pad Thai", strPtr("14.50"), strPtr("Noodles")))
	saver.finish(context.Background())

	assert.Equal(t, 2, saver.totalCategories)
	assert.Equal(t, 2, saver.totalItems)

	starters := st.categoryByName("Starters")
	require.NotNil(t, starters)
	assert.Equal(t, 0, starters.DisplayOrder)
	noodles := st.categoryByName("Noodles")
	require.NotNil(t, noodles)
	assert.Equal(t, 1, noodles.DisplayOrder)

	require.Len(t, st.items, 2)
	assert.Equal(t, starters.ID, st.items[0].CategoryID)
	assert.Equal(t, noodles.ID, st.items[1].CategoryID)
}

func TestMenuSaver_AllFlatFallbackOrderZero(t *testing.T) {
	st := newMemStore()
	saver := newMenuSaver(context.Background(), st, "rest-1")

	saver.handle(chunkItem("Pad Thai", strPtr("14.50"), nil))
	saver.handle(chunkItem("Green Curry", strPtr("15.00"), nil))

	// Nothing lands until the stream ends.
	assert.Empty(t, st.items)

	saver.finish(context.Background())
	assert.Equal(t, 1, saver.totalCategories)
	assert.Equal(t, 2, saver.totalItems)

	fallback := st.categoryByName("Menu")
	require.NotNil(t, fallback)
	assert.Equal(t, 0, fallback.DisplayOrder)
}

func TestMenuSaver_MixedFallbackOrder999(t *testing.T) {
	st := newMemStore()
	saver := newMenuSaver(context.Background(), st, "rest-1")

	saver.handle(chunkCategory("Starters"))
	saver.handle(chunkItem("Spring Roll", strPtr("6.50"), strPtr("Starters")))
	saver.handle(chunkItem("Mystery Special", strPtr("9.99"), nil))
	saver.finish(context.Background())

	fallback := st.categoryByName("Menu")
	require.NotNil(t, fallback)
	assert.Equal(t, 999, fallback.DisplayOrder)
	assert.Equal(t, 2, saver.totalCategories)
	assert.Equal(t, 2, saver.totalItems)
}

func TestMenuSaver_CategoryInsertFailureFallsBack(t *testing.T) {
	st := newMemStore()
	st.failCategories["Starters"] = true
	saver := newMenuSaver(context.Background(), st, "rest-1")

	saver.handle(chunkCategory("Starters"))
	saver.handle(chunkItem("Spring Roll", strPtr("6.50"), strPtr("Starters")))
	saver.finish(context.Background())

	// The item survives in the fallback bucket, which is the only
	// category, so it takes display order 0.
	assert.Equal(t, 1, saver.totalCategories)
	assert.Equal(t, 1, saver.totalItems)
	fallback := st.categoryByName("Menu")
	require.NotNil(t, fallback)
	assert.Equal(t, 0, fallback.DisplayOrder)
}

func TestMenuSaver_ItemInsertFailureSkipped(t *testing.T) {
	st := newMemStore()
	st.failItems["Pad Thai"] = true
	saver := newMenuSaver(context.Background(), st, "rest-1")

	saver.handle(chunkCategory("Noodles"))
	saver.handle(chunkItem("Pad Thai", strPtr("14.50"), strPtr("Noodles")))
	saver.handle(chunkItem("Drunken Noodles", strPtr("15.00"), strPtr("Noodles")))
	saver.finish(context.Background())

	assert.Equal(t, 1, saver.totalItems)
	require.Len(t, st.items, 1)
	assert.Equal(t, "Drunken Noodles", st.items[0].Name)
}

func TestMenuSaver_Meta(t *testing.T) {
	st := newMemStore()
	saver := newMenuSaver(context.Background(), st, "rest-1")

	saver.handle(model.MenuChunk{Type: model.ChunkDescription, Data: model.ChunkData{Description: "Cozy Thai kitchen."}})
	saver.handle(model.MenuChunk{Type: model.ChunkCuisine, Data: model.ChunkData{Cuisine: "thai"}})
	saver.handle(model.MenuChunk{Type: model.ChunkTags, Data: model.ChunkData{Tags: []string{"vegan", "gluten-free"}}})

	meta := saver.meta()
	require.NotNil(t, meta.Description)
	assert.Equal(t, "Cozy Thai kitchen.", *meta.Description)
	require.NotNil(t, meta.Cuisine)
	assert.Equal(t, "thai", *meta.Cuisine)
	assert.Equal(t, []string{"vegan", "gluten-free"}, meta.Tags)
}

func TestSaveParsedMenu(t *testing.T) {
	st := newMemStore()
	menu := &model.ParsedMenu{
		Categories: []string{"Starters", "Noodles"},
		Items: []model.MenuItem{
			{Name: "Spring Roll", Price: strPtr("6.50"), Category: strPtr("Starters")},
			{Name: "Pad Thai", Price: strPtr("14.50"), Category: strPtr("Noodles")},
			{Name: "Chef Special", Price: strPtr("19.00")},
		},
	}

	cats, items := SaveParsedMenu(context.Background(), st, "rest-1", menu)
	assert.Equal(t, 3, cats) // two real plus the fallback
	assert.Equal(t, 3, items)

	fallback := st.categoryByName("Menu")
	require.NotNil(t, fallback)
	assert.Equal(t, 999, fallback.DisplayOrder)
}
