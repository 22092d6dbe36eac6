package model

import "time"

type ShoppingList struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Name        string         `json:"name"`
	StoreID     *string        `json:"store_id"`
	Store       *Store         `json:"store"`
	IsActive    bool           `json:"is_active"`
	CompletedAt *time.Time     `json:"completed_at"`
	Items       []ShoppingItem `json:"items"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ItemCounts summarises a list for overview screens.
type ItemCounts struct {
	Total     int `json:"total"`
	Checked   int `json:"checked"`
	Unchecked int `json:"unchecked"`
}

// Counts tallies the list's items by checked state.
func (l *ShoppingList) Counts() ItemCounts {
	var c ItemCounts
	for _, item := range l.Items {
		if item.IsChecked {
			c.Checked++
		} else {
			c.Unchecked++
		}
	}
	c.Total = c.Checked + c.Unchecked
	return c
}

type ShoppingItem struct {
	ID        string     `json:"id"`
	ListID    string     `json:"list_id"`
	Name      string     `json:"name"`
	Quantity  float64    `json:"quantity"`
	Unit      string     `json:"unit"`
	Category  string     `json:"category"`
	Notes     string     `json:"notes"`
	Price     *float64   `json:"price"`
	IsChecked bool       `json:"is_checked"`
	CheckedAt *time.Time `json:"checked_at"`
	Position  int        `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
