package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/mila/internal/database"
	"github.com/dukerupert/mila/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, email string) *model.User {
	t.Helper()
	u, err := NewUserStore(db).Create(context.Background(), email, "hash", "", time.Now().Add(model.TrialPeriod))
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func ptr[T any](v T) *T { return &v }
