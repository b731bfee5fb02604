package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

// ShipmentRepository reads shipment master data: shipments, the product
// catalog and trading parties. The compliance core never writes these.
type ShipmentRepository struct {
	db *sql.DB
}

func NewShipmentRepository(db *sql.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ShipmentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS shipments (
	id TEXT PRIMARY KEY,
	reference TEXT NOT NULL,
	origin_country TEXT NOT NULL,
	origin_city TEXT,
	destination_country TEXT NOT NULL,
	destination_city TEXT,
	mode TEXT NOT NULL,
	incoterm TEXT,
	buyer_party_id TEXT,
	items JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	hs_code TEXT NOT NULL,
	unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit_weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS parties (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	country TEXT NOT NULL,
	address TEXT,
	tax_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_products_hs_code ON products(hs_code);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ShipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, reference, origin_country, origin_city, destination_country, destination_city,
	mode, incoterm, buyer_party_id, items, created_at, updated_at
FROM shipments
WHERE id = $1
`, id)

	var s domain.Shipment
	var originCity, destCity, incoterm, buyer sql.NullString
	var itemsRaw []byte
	var mode string

	err := row.Scan(
		&s.ID, &s.Reference, &s.Origin.Country, &originCity, &s.Destination.Country, &destCity,
		&mode, &incoterm, &buyer, &itemsRaw, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.WrapError(domain.ErrShipmentNotFound, "get shipment", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan shipment: %w", err)
	}

	s.Origin.City = originCity.String
	s.Destination.City = destCity.String
	s.Incoterm = incoterm.String
	s.BuyerPartyID = buyer.String
	s.Mode = domain.TransportMode(mode)
	if err := json.Unmarshal(itemsRaw, &s.Items); err != nil {
		return nil, fmt.Errorf("unmarshal shipment items: %w", err)
	}
	return &s, nil
}

func (r *ShipmentRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, hs_code, unit_price, unit_weight_kg
FROM products
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.HSCode, &p.UnitPrice, &p.UnitWeightKG); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// ProductCatalogVersion derives a version token from the catalog's row count
// and newest update, so any catalog write invalidates memoized requirement
// sets.
func (r *ShipmentRepository) ProductCatalogVersion(ctx context.Context) (string, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(MAX(updated_at), to_timestamp(0))
FROM products
`)
	var count int64
	var newest time.Time
	if err := row.Scan(&count, &newest); err != nil {
		return "", fmt.Errorf("scan catalog version: %w", err)
	}
	return fmt.Sprintf("%d@%s", count, newest.UTC().Format(time.RFC3339Nano)), nil
}

func (r *ShipmentRepository) GetParty(ctx context.Context, id string) (*domain.Party, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, country, address, tax_id
FROM parties
WHERE id = $1
`, id)

	var p domain.Party
	var address, taxID sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Country, &address, &taxID); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.WrapError(domain.ErrPartyNotFound, "get party", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan party: %w", err)
	}
	p.Address = address.String
	p.TaxID = taxID.String
	return &p, nil
}
