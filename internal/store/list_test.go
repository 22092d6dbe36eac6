package store

import (
	"context"
	"testing"
)

func TestListCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "anna@example.com")

	l, err := ls.Create(ctx, u.ID, "Weekend", ptr("jumbo-noord"))
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	if l.ID == "" {
		t.Fatal("expected id")
	}
	if !l.IsActive {
		t.Error("new list should be active")
	}
	if l.Store == nil || l.Store.Name != "Jumbo Noord" {
		t.Errorf("store = %+v, want Jumbo Noord", l.Store)
	}
	if l.Items == nil || len(l.Items) != 0 {
		t.Errorf("items = %v, want empty slice", l.Items)
	}

	got, err := ls.GetForUser(ctx, l.ID, u.ID)
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if got == nil || got.Name != "Weekend" {
		t.Fatalf("got %+v, want Weekend", got)
	}
}

func TestListCreateWithoutStore(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	u := createTestUser(t, db, "anna@example.com")

	l, err := ls.Create(context.Background(), u.ID, "Boodschappen", nil)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	if l.StoreID != nil || l.Store != nil {
		t.Errorf("expected no store, got %v / %+v", l.StoreID, l.Store)
	}
}

func TestListGetForOtherUser(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	anna := createTestUser(t, db, "anna@example.com")
	bram := createTestUser(t, db, "bram@example.com")

	l, _ := ls.Create(ctx, anna.ID, "Anna's list", nil)

	got, err := ls.GetForUser(ctx, l.ID, bram.ID)
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if got != nil {
		t.Error("expected nil for another user's list")
	}
}

func TestListByUserNewestFirstWithItems(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	is := NewItemStore(db)
	ctx := context.Background()
	anna := createTestUser(t, db, "anna@example.com")
	bram := createTestUser(t, db, "bram@example.com")

	first, _ := ls.Create(ctx, anna.ID, "First", nil)
	second, _ := ls.Create(ctx, anna.ID, "Second", nil)
	ls.Create(ctx, bram.ID, "Bram", nil)

	is.Create(ctx, first.ID, NewItem{Name: "Melk"})
	is.Create(ctx, first.ID, NewItem{Name: "Brood"})

	lists, err := ls.ListByUser(ctx, anna.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(lists) != 2 {
		t.Fatalf("expected 2 lists, got %d", len(lists))
	}
	if lists[0].ID != second.ID || lists[1].ID != first.ID {
		t.Errorf("order = [%s %s], want newest first", lists[0].Name, lists[1].Name)
	}
	if len(lists[0].Items) != 0 {
		t.Errorf("second list items = %d, want 0", len(lists[0].Items))
	}
	if len(lists[1].Items) != 2 {
		t.Fatalf("first list items = %d, want 2", len(lists[1].Items))
	}
	if lists[1].Items[0].Name != "Melk" {
		t.Errorf("first item = %q, want Melk", lists[1].Items[0].Name)
	}
}

func TestListByUserEmpty(t *testing.T) {
	db := setupTestDB(t)
	u := createTestUser(t, db, "anna@example.com")

	lists, err := NewListStore(db).ListByUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if lists == nil || len(lists) != 0 {
		t.Errorf("lists = %v, want empty slice", lists)
	}
}

func TestListUpdate(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "anna@example.com")
	l, _ := ls.Create(ctx, u.ID, "Old", ptr("jumbo-noord"))

	ok, err := ls.Update(ctx, l.ID, u.ID, ListUpdate{Name: ptr("New"), StoreID: ptr("")})
	if err != nil {
		t.Fatalf("update list: %v", err)
	}
	if !ok {
		t.Fatal("expected update to match")
	}

	got, _ := ls.GetForUser(ctx, l.ID, u.ID)
	if got.Name != "New" {
		t.Errorf("name = %q, want New", got.Name)
	}
	if got.StoreID != nil {
		t.Errorf("store_id = %v, want nil", *got.StoreID)
	}
	if !got.UpdatedAt.After(l.UpdatedAt) && !got.UpdatedAt.Equal(l.UpdatedAt) {
		t.Error("updated_at went backwards")
	}
}

func TestListUpdateActiveStampsCompletedAt(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "anna@example.com")
	l, _ := ls.Create(ctx, u.ID, "Week", nil)

	ls.Update(ctx, l.ID, u.ID, ListUpdate{IsActive: ptr(false)})
	got, _ := ls.GetForUser(ctx, l.ID, u.ID)
	if got.IsActive {
		t.Error("expected inactive")
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	ls.Update(ctx, l.ID, u.ID, ListUpdate{IsActive: ptr(true)})
	got, _ = ls.GetForUser(ctx, l.ID, u.ID)
	if !got.IsActive || got.CompletedAt != nil {
		t.Errorf("reactivated list: active=%v completed_at=%v", got.IsActive, got.CompletedAt)
	}
}

func TestListUpdateNotOwned(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	anna := createTestUser(t, db, "anna@example.com")
	bram := createTestUser(t, db, "bram@example.com")
	l, _ := ls.Create(ctx, anna.ID, "Anna", nil)

	ok, err := ls.Update(ctx, l.ID, bram.ID, ListUpdate{Name: ptr("Hijacked")})
	if err != nil {
		t.Fatalf("update list: %v", err)
	}
	if ok {
		t.Error("expected no match for another user")
	}
	got, _ := ls.GetForUser(ctx, l.ID, anna.ID)
	if got.Name != "Anna" {
		t.Errorf("name = %q, want unchanged", got.Name)
	}
}

func TestListDeleteRemovesItems(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	is := NewItemStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "anna@example.com")
	l, _ := ls.Create(ctx, u.ID, "Week", nil)
	a, _ := is.Create(ctx, l.ID, NewItem{Name: "Melk"})
	b, _ := is.Create(ctx, l.ID, NewItem{Name: "Kaas"})

	ids, ok, err := ls.Delete(ctx, l.ID, u.ID)
	if err != nil {
		t.Fatalf("delete list: %v", err)
	}
	if !ok {
		t.Fatal("expected delete to match")
	}
	if len(ids) != 2 {
		t.Errorf("deleted item ids = %v, want 2", ids)
	}

	for _, id := range []string{a.ID, b.ID} {
		item, _ := is.GetByID(ctx, id)
		if item != nil {
			t.Errorf("item %s still exists", id)
		}
	}
	got, _ := ls.GetForUser(ctx, l.ID, u.ID)
	if got != nil {
		t.Error("list still exists")
	}
}

func TestListDeleteNotOwned(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	is := NewItemStore(db)
	ctx := context.Background()
	anna := createTestUser(t, db, "anna@example.com")
	bram := createTestUser(t, db, "bram@example.com")
	l, _ := ls.Create(ctx, anna.ID, "Anna", nil)
	is.Create(ctx, l.ID, NewItem{Name: "Melk"})

	_, ok, err := ls.Delete(ctx, l.ID, bram.ID)
	if err != nil {
		t.Fatalf("delete list: %v", err)
	}
	if ok {
		t.Error("expected no match for another user")
	}
	items, _ := is.ListByList(ctx, l.ID)
	if len(items) != 1 {
		t.Errorf("items = %d, want 1 left intact", len(items))
	}
}

func TestListIsOwner(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	anna := createTestUser(t, db, "anna@example.com")
	bram := createTestUser(t, db, "bram@example.com")
	l, _ := ls.Create(ctx, anna.ID, "Anna", nil)

	if ok, err := ls.IsOwner(ctx, l.ID, anna.ID); err != nil || !ok {
		t.Errorf("owner check for anna = %v, %v; want true", ok, err)
	}
	if ok, _ := ls.IsOwner(ctx, l.ID, bram.ID); ok {
		t.Error("bram should not own anna's list")
	}
	if ok, _ := ls.IsOwner(ctx, "missing", anna.ID); ok {
		t.Error("missing list should not be owned")
	}
}
