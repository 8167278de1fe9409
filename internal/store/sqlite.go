package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS restaurants (
	id          TEXT PRIMARY KEY,
	place_id    TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	slug        TEXT NOT NULL UNIQUE,
	description TEXT,
	cuisine     TEXT,
	tags        TEXT,
	address     TEXT,
	latitude    REAL,
	longitude   REAL,
	phone       TEXT,
	rating      REAL,
	website     TEXT,
	logo_url    TEXT,
	colors      TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS menu_categories (
	id            TEXT PRIMARY KEY,
	restaurant_id TEXT NOT NULL REFERENCES restaurants(id),
	name          TEXT NOT NULL,
	display_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS menu_items (
	id            TEXT PRIMARY KEY,
	restaurant_id TEXT NOT NULL REFERENCES restaurants(id),
	category_id   TEXT NOT NULL REFERENCES menu_categories(id),
	name          TEXT NOT NULL,
	description   TEXT,
	price         TEXT
);

CREATE INDEX IF NOT EXISTS idx_restaurants_place_id ON restaurants(place_id);
CREATE INDEX IF NOT EXISTS idx_restaurants_slug ON restaurants(slug);
CREATE INDEX IF NOT EXISTS idx_menu_categories_restaurant ON menu_categories(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_menu_items_restaurant ON menu_items(restaurant_id);
CREATE INDEX IF NOT EXISTS idx_menu_items_category ON menu_items(category_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRestaurant(ctx context.Context, r *model.Restaurant) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tagsJSON, colorsJSON, err := marshalRestaurantJSON(r)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal restaurant")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO restaurants
		 (id, place_id, name, slug, description, cuisine, tags, address, latitude, longitude, phone, rating, website, logo_url, colors, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PlaceID, r.Name, r.Slug, r.Description, r.Cuisine, tagsJSON,
		r.Address, r.Latitude, r.Longitude, r.Phone, r.Rating, r.Website,
		r.LogoURL, colorsJSON, r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert restaurant")
}

func (s *SQLiteStore) GetRestaurantByPlaceID(ctx context.Context, placeID string) (*model.Restaurant, error) {
	row := s.db.QueryRowContext(ctx,
		restaurantColumns+` FROM restaurants WHERE place_id = ?`, placeID)
	return scanRestaurant(row, "sqlite")
}

func (s *SQLiteStore) GetRestaurantBySlug(ctx context.Context, slug string) (*model.Restaurant, error) {
	row := s.db.QueryRowContext(ctx,
		restaurantColumns+` FROM restaurants WHERE slug = ?`, slug)
	return scanRestaurant(row, "sqlite")
}

func (s *SQLiteStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM restaurants WHERE slug = ?`, slug).Scan(&n)
	return n > 0, eris.Wrap(err, "sqlite: slug exists")
}

func (s *SQLiteStore) UpdateRestaurantMeta(ctx context.Context, restaurantID string, meta MetaUpdate) error {
	query, args := buildMetaUpdate(meta, sqlitePlaceholders)
	if query == "" {
		return nil
	}
	args = append(args, restaurantID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE restaurants SET `+query+` WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update restaurant meta %s", restaurantID)
	}
	return checkRowsAffected(res, "restaurant", restaurantID)
}

func (s *SQLiteStore) CreateCategory(ctx context.Context, c *model.MenuCategory) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO menu_categories (id, restaurant_id, name, display_order) VALUES (?, ?, ?, ?)`,
		c.ID, c.RestaurantID, c.Name, c.DisplayOrder,
	)
	return eris.Wrapf(err, "sqlite: insert category %q", c.Name)
}

func (s *SQLiteStore) CreateItem(ctx context.Context, item *model.MenuItemRecord) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO menu_items (id, restaurant_id, category_id, name, description, price) VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.RestaurantID, item.CategoryID, item.Name, item.Description, item.Price,
	)
	return eris.Wrapf(err, "sqlite: insert item %q", item.Name)
}

func (s *SQLiteStore) ListCategories(ctx context.Context, restaurantID string) ([]model.MenuCategory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, restaurant_id, name, display_order FROM menu_categories
		 WHERE restaurant_id = ? ORDER BY display_order, name`,
		restaurantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list categories")
	}
	defer rows.Close()

	var cats []model.MenuCategory
	for rows.Next() {
		var c model.MenuCategory
		if err := rows.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.DisplayOrder); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category")
		}
		cats = append(cats, c)
	}
	return cats, eris.Wrap(rows.Err(), "sqlite: list categories iterate")
}

func (s *SQLiteStore) ListItems(ctx context.Context, restaurantID string) ([]model.MenuItemRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, restaurant_id, category_id, name, description, price FROM menu_items
		 WHERE restaurant_id = ? ORDER BY name`,
		restaurantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list items")
	}
	defer rows.Close()

	var items []model.MenuItemRecord
	for rows.Next() {
		var it model.MenuItemRecord
		if err := rows.Scan(&it.ID, &it.RestaurantID, &it.CategoryID, &it.Name, &it.Description, &it.Price); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list items iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx,
		`SELECT
		 (SELECT COUNT(*) FROM restaurants),
		 (SELECT COUNT(*) FROM menu_categories),
		 (SELECT COUNT(*) FROM menu_items)`)
	if err := row.Scan(&st.Restaurants, &st.Categories, &st.Items); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	return &st, nil
}

// helpers

const restaurantColumns = `SELECT id, place_id, name, slug, description, cuisine, tags, address, latitude, longitude, phone, rating, website, logo_url, colors, created_at`

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func marshalRestaurantJSON(r *model.Restaurant) (tags, colors *string, err error) {
	if len(r.Tags) > 0 {
		b, err := json.Marshal(r.Tags)
		if err != nil {
			return nil, nil, err
		}
		s := string(b)
		tags = &s
	}
	if r.Colors != nil {
		b, err := json.Marshal(r.Colors)
		if err != nil {
			return nil, nil, err
		}
		s := string(b)
		colors = &s
	}
	return tags, colors, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRestaurant(row scannable, backend string) (*model.Restaurant, error) {
	var r model.Restaurant
	var tagsJSON, colorsJSON sql.NullString

	err := row.Scan(&r.ID, &r.PlaceID, &r.Name, &r.Slug, &r.Description, &r.Cuisine,
		&tagsJSON, &r.Address, &r.Latitude, &r.Longitude, &r.Phone, &r.Rating,
		&r.Website, &r.LogoURL, &colorsJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: scan restaurant", backend)
	}

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &r.Tags); err != nil {
			return nil, eris.Wrapf(err, "%s: unmarshal tags", backend)
		}
	}
	if colorsJSON.Valid && colorsJSON.String != "" {
		r.Colors = &model.ColorPalette{}
		if err := json.Unmarshal([]byte(colorsJSON.String), r.Colors); err != nil {
			return nil, eris.Wrapf(err, "%s: unmarshal colors", backend)
		}
	}
	return &r, nil
}

// placeholderFunc renders the i-th (1-based) bind parameter for a backend.
type placeholderFunc func(i int) string

func sqlitePlaceholders(int) string { return "?" }

// buildMetaUpdate assembles the SET clause for UpdateRestaurantMeta. Returns
// an empty clause when the update carries nothing.
func buildMetaUpdate(meta MetaUpdate, ph placeholderFunc) (string, []any) {
	var sets []string
	var args []any
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, col+" = "+ph(len(args)))
	}

	if meta.Description != nil {
		add("description", *meta.Description)
	}
	if meta.Cuisine != nil {
		add("cuisine", *meta.Cuisine)
	}
	if len(meta.Tags) > 0 {
		b, err := json.Marshal(meta.Tags)
		if err == nil {
			add("tags", string(b))
		}
	}
	if meta.Website != nil {
		add("website", *meta.Website)
	}
	if meta.LogoURL != nil {
		add("logo_url", *meta.LogoURL)
	}
	if meta.Colors != nil && !meta.Colors.Empty() {
		b, err := json.Marshal(meta.Colors)
		if err == nil {
			add("colors", string(b))
		}
	}
	if len(sets) == 0 {
		return "", nil
	}
	return strings.Join(sets, ", "), args
}
