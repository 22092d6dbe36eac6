package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/mila/internal/model"
)

// ShopStore reads the stores reference table.
type ShopStore struct {
	db *sql.DB
}

func NewShopStore(db *sql.DB) *ShopStore {
	return &ShopStore{db: db}
}

func scanShop(scanner interface{ Scan(...any) error }) (*model.Store, error) {
	var st model.Store
	var lat, lon sql.NullFloat64
	err := scanner.Scan(
		&st.ID, &st.Name, &st.Chain, &st.Address, &st.City, &st.PostalCode,
		&lat, &lon, &st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		st.Latitude = &lat.Float64
	}
	if lon.Valid {
		st.Longitude = &lon.Float64
	}
	return &st, nil
}

const shopCols = `id, name, chain, address, city, postal_code, latitude, longitude, created_at`

// List returns every store ordered by name.
func (s *ShopStore) List(ctx context.Context) ([]model.Store, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+shopCols+` FROM stores ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	stores := []model.Store{}
	for rows.Next() {
		st, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, *st)
	}
	return stores, rows.Err()
}

func (s *ShopStore) GetByID(ctx context.Context, id string) (*model.Store, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+shopCols+` FROM stores WHERE id = ?`, id)
	st, err := scanShop(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get store: %w", err)
	}
	return st, nil
}
