package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/mila/internal/model"
	"github.com/google/uuid"
)

type ListStore struct {
	db *sql.DB
}

func NewListStore(db *sql.DB) *ListStore {
	return &ListStore{db: db}
}

// ListUpdate carries the fields of a partial list update. Nil fields are left
// untouched. An empty StoreID detaches the list from its store.
type ListUpdate struct {
	Name     *string
	StoreID  *string
	IsActive *bool
}

func (u ListUpdate) empty() bool {
	return u.Name == nil && u.StoreID == nil && u.IsActive == nil
}

const listSelect = `SELECT l.id, l.user_id, l.name, l.store_id, l.is_active, l.completed_at, l.created_at, l.updated_at,
	s.id, s.name, s.chain, s.address, s.city, s.postal_code, s.latitude, s.longitude, s.created_at
	FROM shopping_lists l
	LEFT JOIN stores s ON s.id = l.store_id`

func scanList(scanner interface{ Scan(...any) error }) (*model.ShoppingList, error) {
	var l model.ShoppingList
	var storeID sql.NullString
	var isActive int
	var completedAt sql.NullTime

	var sID, sName, sChain, sAddress, sCity, sPostal sql.NullString
	var sLat, sLon sql.NullFloat64
	var sCreated sql.NullTime

	err := scanner.Scan(
		&l.ID, &l.UserID, &l.Name, &storeID, &isActive, &completedAt, &l.CreatedAt, &l.UpdatedAt,
		&sID, &sName, &sChain, &sAddress, &sCity, &sPostal, &sLat, &sLon, &sCreated,
	)
	if err != nil {
		return nil, err
	}

	l.IsActive = isActive != 0
	if storeID.Valid {
		l.StoreID = &storeID.String
	}
	if completedAt.Valid {
		l.CompletedAt = &completedAt.Time
	}
	if sID.Valid {
		st := &model.Store{
			ID:         sID.String,
			Name:       sName.String,
			Chain:      sChain.String,
			Address:    sAddress.String,
			City:       sCity.String,
			PostalCode: sPostal.String,
			CreatedAt:  sCreated.Time,
		}
		if sLat.Valid {
			st.Latitude = &sLat.Float64
		}
		if sLon.Valid {
			st.Longitude = &sLon.Float64
		}
		l.Store = st
	}
	l.Items = []model.ShoppingItem{}
	return &l, nil
}

// ListByUser returns the user's lists, newest first, each with its store and
// items in display order.
func (s *ListStore) ListByUser(ctx context.Context, userID string) ([]model.ShoppingList, error) {
	rows, err := s.db.QueryContext(ctx,
		listSelect+` WHERE l.user_id = ? ORDER BY l.created_at DESC, l.rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	lists := []model.ShoppingList{}
	index := make(map[string]int)
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		index[l.ID] = len(lists)
		lists = append(lists, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return lists, nil
	}

	itemRows, err := s.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM shopping_items
		 WHERE list_id IN (SELECT id FROM shopping_lists WHERE user_id = ?)
		 `+itemOrder,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items for user: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if i, ok := index[item.ListID]; ok {
			lists[i].Items = append(lists[i].Items, *item)
		}
	}
	return lists, itemRows.Err()
}

// GetForUser returns the list with its store and items, or nil if it does not
// exist or belongs to someone else.
func (s *ListStore) GetForUser(ctx context.Context, id, userID string) (*model.ShoppingList, error) {
	row := s.db.QueryRowContext(ctx, listSelect+` WHERE l.id = ? AND l.user_id = ?`, id, userID)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}

	items, err := listItems(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	l.Items = items
	return l, nil
}

// IsOwner reports whether the list exists and belongs to userID.
func (s *ListStore) IsOwner(ctx context.Context, id, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shopping_lists WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check list owner: %w", err)
	}
	return n > 0, nil
}

func (s *ListStore) Create(ctx context.Context, userID, name string, storeID *string) (*model.ShoppingList, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shopping_lists (id, user_id, name, store_id, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, 1, ?, ?)`,
		id, userID, name, nullString(storeID), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	return s.GetForUser(ctx, id, userID)
}

// Update applies the non-nil fields of u and stamps updated_at. It returns
// false if no list with that id belongs to the user.
func (s *ListStore) Update(ctx context.Context, id, userID string, u ListUpdate) (bool, error) {
	now := time.Now().UTC()
	sets := []string{"updated_at = ?"}
	args := []any{now}

	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.StoreID != nil {
		sets = append(sets, "store_id = ?")
		args = append(args, nullString(u.StoreID))
	}
	if u.IsActive != nil {
		sets = append(sets, "is_active = ?", "completed_at = ?")
		if *u.IsActive {
			args = append(args, 1, nil)
		} else {
			args = append(args, 0, now)
		}
	}

	args = append(args, id, userID)
	result, err := s.db.ExecContext(ctx,
		`UPDATE shopping_lists SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("update list: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete removes the list and all of its items in one transaction. It returns
// the ids of the removed items and false if the user owns no such list.
func (s *ListStore) Delete(ctx context.Context, id, userID string) ([]string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var owned int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shopping_lists WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&owned)
	if err != nil {
		return nil, false, fmt.Errorf("check list owner: %w", err)
	}
	if owned == 0 {
		return nil, false, nil
	}

	itemIDs, err := deleteItemsWhere(ctx, tx, `list_id = ?`, id)
	if err != nil {
		return nil, false, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM shopping_lists WHERE id = ? AND user_id = ?`,
		id, userID,
	); err != nil {
		return nil, false, fmt.Errorf("delete list: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return itemIDs, true, nil
}

func nullString(p *string) sql.NullString {
	if p == nil || *p == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
