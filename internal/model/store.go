package model

import "time"

// Store is read-only reference data for supermarkets a list can be tied to.
type Store struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Chain      string    `json:"chain,omitempty"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProductSuggestion struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	TypicalQuantity *float64 `json:"typical_quantity"`
	TypicalUnit     string   `json:"typical_unit"`
}
