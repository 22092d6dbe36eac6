package store

import (
	"context"
	"testing"
)

func TestShopListSeeded(t *testing.T) {
	db := setupTestDB(t)
	ss := NewShopStore(db)

	shops, err := ss.List(context.Background())
	if err != nil {
		t.Fatalf("list stores: %v", err)
	}
	want := []string{"Albert Heijn Centrum", "Jumbo Noord", "Lidl Overvecht", "PLUS Lombok"}
	if len(shops) != len(want) {
		t.Fatalf("stores = %d, want %d", len(shops), len(want))
	}
	for i, name := range want {
		if shops[i].Name != name {
			t.Errorf("store[%d] = %q, want %q", i, shops[i].Name, name)
		}
	}
	if shops[0].Latitude == nil {
		t.Error("expected coordinates on seeded store")
	}
}

func TestShopGetByID(t *testing.T) {
	db := setupTestDB(t)
	ss := NewShopStore(db)
	ctx := context.Background()

	s, err := ss.GetByID(ctx, "lidl-overvecht")
	if err != nil {
		t.Fatalf("get store: %v", err)
	}
	if s == nil || s.Chain != "Lidl" {
		t.Fatalf("store = %+v, want Lidl", s)
	}

	s, err = ss.GetByID(ctx, "nope")
	if err != nil {
		t.Fatalf("get store: %v", err)
	}
	if s != nil {
		t.Error("expected nil for unknown store")
	}
}

func TestSuggestionSearch(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSuggestionStore(db)
	ctx := context.Background()

	got, err := ss.Search(ctx, "k", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	want := []string{"Kaas", "Kipfilet", "Koffie"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	got, _ = ss.Search(ctx, "%", 0)
	if len(got) != 0 {
		t.Errorf("wildcard search returned %d, want 0", len(got))
	}

	got, _ = ss.Search(ctx, "", 3)
	if len(got) != 3 {
		t.Errorf("limit 3 returned %d", len(got))
	}
}
