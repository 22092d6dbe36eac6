package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/database"
	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/store"
)

func TestProfileGetAndUpdate(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	u, err := store.NewUserStore(db).Create(context.Background(), "anna@example.com", "hash", "Anna", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	h := NewProfileHandler(store.NewProfileStore(db), slog.Default())
	ac := auth.AuthContext{UserID: u.ID}

	req := httptest.NewRequest("GET", "/rest/v1/profile", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req.WithContext(auth.WithAuth(req.Context(), ac)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got profileResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.IsPremium {
		t.Error("expired trial should not be premium")
	}

	req = jsonRequest("PATCH", "/rest/v1/profile", map[string]string{"full_name": " Anna de Vries "})
	rec = httptest.NewRecorder()
	h.Update(rec, req.WithContext(auth.WithAuth(req.Context(), ac)))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	got = profileResponse{}
	json.NewDecoder(rec.Body).Decode(&got)
	if got.UserProfile == nil || got.FullName != "Anna de Vries" {
		t.Errorf("profile = %+v", got.UserProfile)
	}
}

func TestSuggestionSearch(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	h := NewSuggestionHandler(store.NewSuggestionStore(db), slog.Default())

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest("GET", "/rest/v1/suggestions?q=k&limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []model.ProductSuggestion
	json.NewDecoder(rec.Body).Decode(&got)
	if len(got) != 2 {
		t.Fatalf("got %d suggestions, want 2", len(got))
	}
	if got[0].Name != "Kaas" {
		t.Errorf("first = %q, want Kaas", got[0].Name)
	}

	rec = httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest("GET", "/rest/v1/suggestions?q=k&limit=nul", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d, want 400", rec.Code)
	}
}
