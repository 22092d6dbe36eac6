package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/mila/internal/model"
)

type SuggestionStore struct {
	db *sql.DB
}

func NewSuggestionStore(db *sql.DB) *SuggestionStore {
	return &SuggestionStore{db: db}
}

// Search returns suggestions whose name starts with prefix, case-insensitive.
func (s *SuggestionStore) Search(ctx context.Context, prefix string, limit int) ([]model.ProductSuggestion, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := escapeLike(strings.TrimSpace(prefix)) + "%"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, typical_quantity, typical_unit FROM product_suggestions
		 WHERE name LIKE ? ESCAPE '\' ORDER BY name ASC LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := []model.ProductSuggestion{}
	for rows.Next() {
		var p model.ProductSuggestion
		var qty sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &qty, &p.TypicalUnit); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		if qty.Valid {
			p.TypicalQuantity = &qty.Float64
		}
		suggestions = append(suggestions, p)
	}
	return suggestions, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
