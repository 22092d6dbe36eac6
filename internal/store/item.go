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

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

// NewItem holds the values for an item insert. Quantity 0 is stored as 1.
type NewItem struct {
	Name     string
	Quantity float64
	Unit     string
	Category string
	Notes    string
}

// ItemUpdate carries the fields of a partial item update. Nil fields are left
// untouched.
type ItemUpdate struct {
	Name     *string
	Quantity *float64
	Unit     *string
	Category *string
	Notes    *string
	Price    *float64
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	var price sql.NullFloat64
	var checkedAt sql.NullTime
	var checked int

	err := scanner.Scan(
		&item.ID, &item.ListID, &item.Name, &item.Quantity, &item.Unit,
		&item.Category, &item.Notes, &price, &checked, &checkedAt,
		&item.Position, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.IsChecked = checked != 0
	if price.Valid {
		item.Price = &price.Float64
	}
	if checkedAt.Valid {
		item.CheckedAt = &checkedAt.Time
	}
	return &item, nil
}

const itemCols = `id, list_id, name, quantity, unit, category, notes, price, is_checked, checked_at, position, created_at, updated_at`

// itemOrder is the display order: unchecked first, then by position.
const itemOrder = `ORDER BY is_checked ASC, position ASC, created_at ASC, rowid ASC`

// ownedBy restricts an item query to items whose list belongs to a user.
const ownedBy = `list_id IN (SELECT id FROM shopping_lists WHERE user_id = ?)`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listItems(ctx context.Context, q queryer, listID string) ([]model.ShoppingItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemCols+` FROM shopping_items WHERE list_id = ? `+itemOrder,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.ShoppingItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// deleteItemsWhere deletes the items matching where and returns their ids.
func deleteItemsWhere(ctx context.Context, tx *sql.Tx, where string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM shopping_items WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM shopping_items WHERE `+where, args...); err != nil {
		return nil, fmt.Errorf("delete items: %w", err)
	}
	return ids, nil
}

func (s *ItemStore) ListByList(ctx context.Context, listID string) ([]model.ShoppingItem, error) {
	return listItems(ctx, s.db, listID)
}

func (s *ItemStore) GetByID(ctx context.Context, id string) (*model.ShoppingItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemCols+` FROM shopping_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetForUser returns the item only if its list belongs to userID.
func (s *ItemStore) GetForUser(ctx context.Context, id, userID string) (*model.ShoppingItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemCols+` FROM shopping_items WHERE id = ? AND `+ownedBy,
		id, userID,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Create inserts an unchecked item at the end of the list. The position is
// computed inside the insert so concurrent adds never share a position.
func (s *ItemStore) Create(ctx context.Context, listID string, n NewItem) (*model.ShoppingItem, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	if n.Quantity == 0 {
		n.Quantity = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shopping_items (id, list_id, name, quantity, unit, category, notes, is_checked, position, created_at, updated_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, 0, COALESCE(MAX(position), 0) + 1, ?, ?
		 FROM shopping_items WHERE list_id = ?`,
		id, listID, n.Name, n.Quantity, n.Unit, n.Category, n.Notes, now, now, listID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Update applies the non-nil fields of u to an item owned by userID and
// returns the result, or nil if no such item exists.
func (s *ItemStore) Update(ctx context.Context, id, userID string, u ItemUpdate) (*model.ShoppingItem, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *u.Quantity)
	}
	if u.Unit != nil {
		sets = append(sets, "unit = ?")
		args = append(args, *u.Unit)
	}
	if u.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *u.Category)
	}
	if u.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *u.Notes)
	}
	if u.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *u.Price)
	}

	args = append(args, id, userID)
	result, err := s.db.ExecContext(ctx,
		`UPDATE shopping_items SET `+strings.Join(sets, ", ")+` WHERE id = ? AND `+ownedBy,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// Toggle flips is_checked in a single statement, stamping checked_at on the
// way to checked and clearing it on the way back.
func (s *ItemStore) Toggle(ctx context.Context, id, userID string) (*model.ShoppingItem, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE shopping_items
		 SET is_checked = 1 - is_checked,
		     checked_at = CASE WHEN is_checked = 0 THEN ? ELSE NULL END,
		     updated_at = ?
		 WHERE id = ? AND `+ownedBy,
		now, now, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// Delete removes an item owned by userID. It returns false if there was none.
func (s *ItemStore) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM shopping_items WHERE id = ? AND `+ownedBy,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearChecked deletes all checked items of a list and returns their ids.
func (s *ItemStore) ClearChecked(ctx context.Context, listID string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ids, err := deleteItemsWhere(ctx, tx, `list_id = ? AND is_checked = 1`, listID)
	if err != nil {
		return nil, fmt.Errorf("clear checked: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}
