package providers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/alex-user-go/hotelsearch/internal/search/types"
)

//go:generate mockgen -package=providers_test -destination=mock_catalog_store_test.go -source=catalog.go CatalogStore

// CatalogStore looks up first-party catalog hotels by location.
type CatalogStore interface {
	FindByLocation(ctx context.Context, location string) ([]types.Hotel, error)
}

// CatalogProvider exposes a CatalogStore as a Provider.
type CatalogProvider struct {
	name  string
	store CatalogStore
}

// NewCatalogProvider creates a new CatalogProvider.
func NewCatalogProvider(name string, store CatalogStore) *CatalogProvider {
	return &CatalogProvider{name: name, store: store}
}

// Name returns the provider name.
func (p *CatalogProvider) Name() string {
	return p.name
}

// Search returns the catalog hotels for the query location.
func (p *CatalogProvider) Search(ctx context.Context, query types.SearchQuery) ([]types.Hotel, error) {
	hotels, err := p.store.FindByLocation(ctx, query.Location)
	if err != nil {
		return nil, NewProviderError(p.name, err)
	}
	for i := range hotels {
		hotels[i].Provider = p.name
	}
	if err := ValidateHotels(hotels); err != nil {
		return nil, NewProviderError(p.name, err)
	}
	return hotels, nil
}

const catalogSchemaSQL = `
CREATE TABLE IF NOT EXISTS hotels (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	lat       DOUBLE PRECISION NOT NULL,
	lng       DOUBLE PRECISION NOT NULL,
	price     DOUBLE PRECISION NOT NULL,
	currency  TEXT NOT NULL DEFAULT 'EUR',
	rating    DOUBLE PRECISION,
	address   TEXT,
	city      TEXT,
	country   TEXT,
	amenities TEXT[] NOT NULL DEFAULT '{}',
	images    TEXT[] NOT NULL DEFAULT '{}',
	url       TEXT
);
CREATE INDEX IF NOT EXISTS hotels_city_idx ON hotels (lower(city));
CREATE INDEX IF NOT EXISTS hotels_country_idx ON hotels (lower(country));`

const findByLocationSQL = `
SELECT id, name, lat, lng, price, currency, rating, address, city, country, amenities, images, url
FROM hotels
WHERE lower(city) = lower($1) OR lower(country) = lower($1)
ORDER BY id`

// PostgresStore is a CatalogStore backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool for the given DSN.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureCatalogSchema creates the hotels table and its lookup indexes if missing.
func EnsureCatalogSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, catalogSchemaSQL); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}
	return nil
}

// NewPostgresStore creates a PostgresStore over an open pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindByLocation queries hotels by city or country, case-insensitively.
func (s *PostgresStore) FindByLocation(ctx context.Context, location string) ([]types.Hotel, error) {
	rows, err := s.db.QueryContext(ctx, findByLocationSQL, location)
	if err != nil {
		return nil, fmt.Errorf("query hotels: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var hotels []types.Hotel
	for rows.Next() {
		var (
			h                      types.Hotel
			rating                 sql.NullFloat64
			address, city, country sql.NullString
			url                    sql.NullString
		)
		if err := rows.Scan(
			&h.ID,
			&h.Name,
			&h.Coordinates.Lat,
			&h.Coordinates.Lng,
			&h.Price.Amount,
			&h.Price.Currency,
			&rating,
			&address,
			&city,
			&country,
			pq.Array(&h.Amenities),
			pq.Array(&h.Images),
			&url,
		); err != nil {
			return nil, fmt.Errorf("scan hotel: %w", err)
		}
		if rating.Valid {
			r := rating.Float64
			h.Rating = &r
		}
		h.Address = address.String
		h.City = city.String
		h.Country = country.String
		h.URL = url.String
		hotels = append(hotels, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hotels: %w", err)
	}
	return hotels, nil
}
