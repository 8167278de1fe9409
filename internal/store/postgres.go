package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock's pool
// implements it, which keeps the Postgres store unit-testable.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"get_restaurant_by_place": restaurantColumns + ` FROM restaurants WHERE place_id = $1`,
	"get_restaurant_by_slug":  restaurantColumns + ` FROM restaurants WHERE slug = $1`,
	"slug_exists":             `SELECT COUNT(*) FROM restaurants WHERE slug = $1`,
	"insert_category":         `INSERT INTO menu_categories (id, restaurant_id, name, display_order) VALUES ($1, $2, $3, $4)`,
	"insert_item":             `INSERT INTO menu_items (id, restaurant_id, category_id, name, description, price) VALUES ($1, $2, $3, $4, $5, $6)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS restaurants (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	place_id    TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	slug        TEXT NOT NULL UNIQUE,
	description TEXT,
	cuisine     TEXT,
	tags        JSONB,
	address     TEXT,
	latitude    DOUBLE PRECISION,
	longitude   DOUBLE PRECISION,
	phone       TEXT,
	rating      DOUBLE PRECISION,
	website     TEXT,
	logo_url    TEXT,
	colors      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS menu_categories (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	restaurant_id TEXT NOT NULL REFERENCES restaurants(id),
	name          TEXT NOT NULL,
	display_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS menu_items (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) CreateRestaurant(ctx context.Context, r *model.Restaurant) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tagsJSON, colorsJSON, err := marshalRestaurantJSON(r)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal restaurant")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO restaurants
		 (id, place_id, name, slug, description, cuisine, tags, address, latitude, longitude, phone, rating, website, logo_url, colors, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.PlaceID, r.Name, r.Slug, r.Description, r.Cuisine, tagsJSON,
		r.Address, r.Latitude, r.Longitude, r.Phone, r.Rating, r.Website,
		r.LogoURL, colorsJSON, r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert restaurant")
}

func (s *PostgresStore) GetRestaurantByPlaceID(ctx context.Context, placeID string) (*model.Restaurant, error) {
	row := s.pool.QueryRow(ctx,
		restaurantColumns+` FROM restaurants WHERE place_id = $1`, placeID)
	return scanRestaurantPG(row)
}

func (s *PostgresStore) GetRestaurantBySlug(ctx context.Context, slug string) (*model.Restaurant, error) {
	row := s.pool.QueryRow(ctx,
		restaurantColumns+` FROM restaurants WHERE slug = $1`, slug)
	return scanRestaurantPG(row)
}

func (s *PostgresStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM restaurants WHERE slug = $1`, slug).Scan(&n)
	return n > 0, eris.Wrap(err, "postgres: slug exists")
}

func (s *PostgresStore) UpdateRestaurantMeta(ctx context.Context, restaurantID string, meta MetaUpdate) error {
	setClause, args := buildMetaUpdate(meta, func(i int) string { return fmt.Sprintf("$%d", i) })
	if setClause == "" {
		return nil
	}
	args = append(args, restaurantID)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE restaurants SET %s WHERE id = $%d`, setClause, len(args)),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update restaurant meta %s", restaurantID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("restaurant not found: %s", restaurantID)
	}
	return nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, c *model.MenuCategory) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO menu_categories (id, restaurant_id, name, display_order) VALUES ($1, $2, $3, $4)`,
		c.ID, c.RestaurantID, c.Name, c.DisplayOrder,
	)
	return eris.Wrapf(err, "postgres: insert category %q", c.Name)
}

func (s *PostgresStore) CreateItem(ctx context.Context, item *model.MenuItemRecord) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO menu_items (id, restaurant_id, category_id, name, description, price) VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.RestaurantID, item.CategoryID, item.Name, item.Description, item.Price,
	)
	return eris.Wrapf(err, "postgres: insert item %q", item.Name)
}

func (s *PostgresStore) ListCategories(ctx context.Context, restaurantID string) ([]model.MenuCategory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, restaurant_id, name, display_order FROM menu_categories
		 WHERE restaurant_id = $1 ORDER BY display_order, name`,
		restaurantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list categories")
	}
	defer rows.Close()

	var cats []model.MenuCategory
	for rows.Next() {
		var c model.MenuCategory
		if err := rows.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.DisplayOrder); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category")
		}
		cats = append(cats, c)
	}
	return cats, eris.Wrap(rows.Err(), "postgres: list categories iterate")
}

func (s *PostgresStore) ListItems(ctx context.Context, restaurantID string) ([]model.MenuItemRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, restaurant_id, category_id, name, description, price FROM menu_items
		 WHERE restaurant_id = $1 ORDER BY name`,
		restaurantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list items")
	}
	defer rows.Close()

	var items []model.MenuItemRecord
	for rows.Next() {
		var it model.MenuItemRecord
		if err := rows.Scan(&it.ID, &it.RestaurantID, &it.CategoryID, &it.Name, &it.Description, &it.Price); err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list items iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT
		 (SELECT COUNT(*) FROM restaurants),
		 (SELECT COUNT(*) FROM menu_categories),
		 (SELECT COUNT(*) FROM menu_items)`).Scan(&st.Restaurants, &st.Categories, &st.Items)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &st, nil
}

func scanRestaurantPG(row pgx.Row) (*model.Restaurant, error) {
	var r model.Restaurant
	var tagsJSON, colorsJSON []byte

	err := row.Scan(&r.ID, &r.PlaceID, &r.Name, &r.Slug, &r.Description, &r.Cuisine,
		&tagsJSON, &r.Address, &r.Latitude, &r.Longitude, &r.Phone, &r.Rating,
		&r.Website, &r.LogoURL, &colorsJSON, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: scan restaurant")
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &r.Tags); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal tags")
		}
	}
	if len(colorsJSON) > 0 {
		r.Colors = &model.ColorPalette{}
		if err := json.Unmarshal(colorsJSON, r.Colors); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal colors")
		}
	}
	return &r, nil
}
