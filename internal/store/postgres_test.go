package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func restaurantRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "place_id", "name", "slug", "description", "cuisine", "tags",
		"address", "latitude", "longitude", "phone", "rating", "website",
		"logo_url", "colors", "created_at",
	})
}

func TestPostgresStore_GetRestaurantByPlaceID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .+ FROM restaurants WHERE place_id = \$1`).
		WithArgs("place-1").
		WillReturnRows(restaurantRows().AddRow(
			"rest-1", "place-1", "Thai Garden", "thai-garden", nil, nil,
			[]byte(`["vegan"]`), nil, nil, nil, nil, nil, nil, nil,
			[]byte(`{"primary":"#e63946"}`), created,
		))

	r, err := s.GetRestaurantByPlaceID(context.Background(), "place-1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "rest-1", r.ID)
	assert.Equal(t, "thai-garden", r.Slug)
	assert.Equal(t, []string{"vegan"}, r.Tags)
	require.NotNil(t, r.Colors)
	assert.Equal(t, "#e63946", r.Colors.Primary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRestaurantByPlaceID_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM restaurants WHERE place_id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	r, err := s.GetRestaurantByPlaceID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRestaurantBySlug_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM restaurants WHERE slug = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	r, err := s.GetRestaurantBySlug(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRestaurant(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO restaurants`).
		WithArgs(pgxmock.AnyArg(), "place-1", "Thai Garden", "thai-garden",
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			(*float64)(nil), (*float64)(nil), (*string)(nil), (*float64)(nil),
			(*string)(nil), (*string)(nil), (*string)(nil), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &model.Restaurant{PlaceID: "place-1", Name: "Thai Garden", Slug: "thai-garden"}
	require.NoError(t, s.CreateRestaurant(context.Background(), r))
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SlugExists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM restaurants WHERE slug = \$1`).
		WithArgs("thai-garden").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := s.SlugExists(context.Background(), "thai-garden")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRestaurantMeta(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	desc := "Family-run Thai kitchen."
	website := "https://thaigarden.test"

	mock.ExpectExec(`UPDATE restaurants SET .+ WHERE id = \$\d`).
		WithArgs(desc, website, "rest-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateRestaurantMeta(context.Background(), "rest-1", MetaUpdate{
		Description: &desc,
		Website:     &website,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRestaurantMeta_NoFields(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Nothing to set means no round trip at all.
	require.NoError(t, s.UpdateRestaurantMeta(context.Background(), "rest-1", MetaUpdate{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRestaurantMeta_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	desc := "x"
	mock.ExpectExec(`UPDATE restaurants SET`).
		WithArgs(desc, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRestaurantMeta(context.Background(), "ghost", MetaUpdate{Description: &desc})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCategory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO menu_categories`).
		WithArgs(pgxmock.AnyArg(), "rest-1", "Noodles", 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	c := &model.MenuCategory{RestaurantID: "rest-1", Name: "Noodles"}
	require.NoError(t, s.CreateCategory(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCategories(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, restaurant_id, name, display_order FROM menu_categories`).
		WithArgs("rest-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "restaurant_id", "name", "display_order"}).
			AddRow("cat-1", "rest-1", "Starters", 0).
			AddRow("cat-2", "rest-1", "Noodles", 1))

	cats, err := s.ListCategories(context.Background(), "rest-1")
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Starters", cats[0].Name)
	assert.Equal(t, 1, cats[1].DisplayOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListItems(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	price := "14.50"
	mock.ExpectQuery(`SELECT id, restaurant_id, category_id, name, description, price FROM menu_items`).
		WithArgs("rest-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "restaurant_id", "category_id", "name", "description", "price"}).
			AddRow("item-1", "rest-1", "cat-1", "Pad Thai", nil, &price))

	items, err := s.ListItems(context.Background(), "rest-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Pad Thai", items[0].Name)
	require.NotNil(t, items[0].Price)
	assert.Equal(t, "14.50", *items[0].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Stats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(pgxmock.NewRows([]string{"r", "c", "i"}).AddRow(3, 12, 140))

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Stats{Restaurants: 3, Categories: 12, Items: 140}, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS restaurants`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
