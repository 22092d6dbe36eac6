package shopping

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/grocery"
	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/store"
	"github.com/dukerupert/mila/internal/websocket"
)

// Service is the list synchronization layer: list and item CRUD scoped to the
// caller, plus per-list change streams.
type Service struct {
	lists  *store.ListStore
	items  *store.ItemStore
	shops  *store.ShopStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewService(lists *store.ListStore, items *store.ItemStore, shops *store.ShopStore, hub *websocket.Hub, logger *slog.Logger) *Service {
	return &Service{
		lists:  lists,
		items:  items,
		shops:  shops,
		hub:    hub,
		logger: logger.With("component", "shopping"),
	}
}

type CreateListInput struct {
	Name    string
	StoreID *string
}

// UpdateListInput holds a partial list update. Nil fields are left alone; a
// StoreID pointing at "" detaches the store.
type UpdateListInput struct {
	Name     *string
	StoreID  *string
	IsActive *bool
}

type CreateItemInput struct {
	Name     string
	Quantity *float64
	Unit     string
	Category string
	Notes    string
}

// UpdateItemInput holds a partial item update. Nil fields are left alone.
type UpdateItemInput struct {
	Name     *string
	Quantity *float64
	Unit     *string
	Category *string
	Notes    *string
	Price    *float64
}

func (s *Service) GetUserLists(ctx context.Context, ac auth.AuthContext) ([]model.ShoppingList, error) {
	if !ac.Authenticated() {
		return nil, ErrUnauthenticated
	}
	lists, err := s.lists.ListByUser(ctx, ac.UserID)
	if err != nil {
		return nil, transport("get user lists", err)
	}
	return lists, nil
}

func (s *Service) GetList(ctx context.Context, ac auth.AuthContext, listID string) (*model.ShoppingList, error) {
	if !ac.Authenticated() {
		return nil, ErrUnauthenticated
	}
	l, err := s.lists.GetForUser(ctx, listID, ac.UserID)
	if err != nil {
		return nil, transport("get list", err)
	}
	if l == nil {
		return nil, ErrNotFound
	}
	return l, nil
}

func (s *Service) CreateList(ctx context.Context, ac auth.AuthContext, in CreateListInput) (*model.ShoppingList, error) {
	if !ac.Authenticated() {
		return nil, ErrUnauthenticated
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}
	if err := s.checkStore(ctx, in.StoreID); err != nil {
		return nil, err
	}

	l, err := s.lists.Create(ctx, ac.UserID, name, in.StoreID)
	if err != nil {
		return nil, transport("create list", err)
	}
	s.logger.Info("list created", "list_id", l.ID, "user_id", ac.UserID)
	return l, nil
}

func (s *Service) UpdateList(ctx context.Context, ac auth.AuthContext, listID string, in UpdateListInput) (*model.ShoppingList, error) {
	if !ac.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name", "name must not be empty")
		}
		in.Name = &name
	}
	if err := s.checkStore(ctx, in.StoreID); err != nil {
		return nil, err
	}

	ok, err := s.lists.Update(ctx, listID, ac.UserID, store.ListUpdate{
		Name:     in.Name,
		StoreID:  in.StoreID,
		IsActive: in.IsActive,
	})
	if err != nil {
		return nil, transport("update list", err)
	}
	if !ok {
		return nil, ErrNotFound
	}

	l, err := s.GetList(ctx, ac, listID)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(websocket.NewEvent(websocket.EntityList, websocket.ActionUpdate, listID, listID, nil))
	return l, nil
}

// DeleteList removes the list and its items atomically, tells subscribers,
// then ends their subscriptions.
func (s *Service) DeleteList(ctx context.Context, ac auth.AuthContext, listID string) error {
	if !ac.Authenticated() {
		return ErrUnauthenticated
	}
	itemIDs, ok, err := s.lists.Delete(ctx, listID, ac.UserID)
	if err != nil {
		return transport("delete list", err)
	}
	if !ok {
		return ErrNotFound
	}

	for _, id := range itemIDs {
		s.hub.Publish(websocket.NewEvent(websocket.EntityItem, websocket.ActionDelete, listID, id, nil))
	}
	s.hub.Publish(websocket.NewEvent(websocket.EntityList, websocket.ActionDelete, listID, listID, nil))
	s.hub.CloseTopic(listID)

	s.logger.Info("list deleted", "list_id", listID, "items", len(itemIDs), "user_id", ac.UserID)
	return nil
}

// AddItem appends an unchecked item to an owned list. A missing category is
// filled in from the item name.
func (s *Service) AddItem(ctx context.Context, ac auth.AuthContext, listID string, in CreateItemInput) (*model.ShoppingItem, error) {
	if !ac.Authenticated() {
		return nil, ErrUnauthenticated
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}
	var qty float64
	if in.Quantity != nil {
		if *in.Quantity <= 0 {
			return nil, invalid("quantity", "quantity must be positive")
		}
		qty = *in.Quantity
	}
	if err := s.requireOwner(ctx, ac, listID); err != nil {
		return nil, err
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = grocery.Categorize(name)
	}

	item, err := s.items.Create(ctx, listID, store.NewItem{
		Name:     name,
		Quantity: qty,
		Unit:     strings.TrimSpace(in.Unit),
		Category: category,
		Notes:    strings.TrimSpace(in.Notes),
	})
	if err != nil {
		return nil, transport("add item", err)
	}

	s.hub.Publish(websocket.NewEvent(websocket.EntityItem, websocket.ActionInsert, listID, item.ID, item))
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, ac auth.AuthContext, itemID string, in UpdateItemInput) (*model.ShoppingItem, error) {
	if !ac.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("name", "name must not be empty")
		}
		in.Name = &name
	}
	if in.Quantity != nil && *in.Quantity <= 0 {
		return nil, invalid("quantity", "quantity must be positive")
	}
	if in.Price != nil && *in.Price < 0 {
		return nil, invalid("price", "price must not be negative")
	}

	item, err := s.items.Update(ctx, itemID, ac.UserID, store.ItemUpdate{
		Name:     in.Name,
		Quantity: in.Quantity,
		Unit:     in.Unit,
		Category: in.Category,
		Notes:    in.Notes,
		Price:    in.Price,
	})
	if err != nil {
		return nil, transport("update item", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}

	s.hub.Publish(websocket.NewEvent(websocket.EntityItem, websocket.ActionUpdate, item.ListID, item.ID, item))
	return item, nil
}

// ToggleItem flips the checked state of an item on an owned list.
func (s *Service) ToggleItem(ctx context.Context, ac auth.AuthContext, itemID string) (*model.ShoppingItem, error) {
	if !ac.Authenticated() {
		return nil, ErrUnauthenticated
	}
	item, err := s.items.Toggle(ctx, itemID, ac.UserID)
	if err != nil {
		return nil, transport("toggle item", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}

	s.hub.Publish(websocket.NewEvent(websocket.EntityItem, websocket.ActionUpdate, item.ListID, item.ID, item))
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, ac auth.AuthContext, itemID string) error {
	if !ac.Authenticated() {
		return ErrUnauthenticated
	}
	item, err := s.items.GetForUser(ctx, itemID, ac.UserID)
	if err != nil {
		return transport("delete item", err)
	}
	if item == nil {
		return ErrNotFound
	}

	ok, err := s.items.Delete(ctx, itemID, ac.UserID)
	if err != nil {
		return transport("delete item", err)
	}
	if !ok {
		return ErrNotFound
	}

	s.hub.Publish(websocket.NewEvent(websocket.EntityItem, websocket.ActionDelete, item.ListID, itemID, nil))
	return nil
}

// ClearChecked deletes every checked item on an owned list and returns how
// many were removed.
func (s *Service) ClearChecked(ctx context.Context, ac auth.AuthContext, listID string) (int, error) {
	if !ac.Authenticated() {
		return 0, ErrUnauthenticated
	}
	if err := s.requireOwner(ctx, ac, listID); err != nil {
		return 0, err
	}

	ids, err := s.items.ClearChecked(ctx, listID)
	if err != nil {
		return 0, transport("clear checked", err)
	}
	for _, id := range ids {
		s.hub.Publish(websocket.NewEvent(websocket.EntityItem, websocket.ActionDelete, listID, id, nil))
	}
	return len(ids), nil
}

// GetStores returns all stores by name. It needs no session.
func (s *Service) GetStores(ctx context.Context) ([]model.Store, error) {
	stores, err := s.shops.List(ctx)
	if err != nil {
		return nil, transport("get stores", err)
	}
	return stores, nil
}

// SubscribeToList opens a change stream for an owned list. The stream ends
// when it is closed, when ctx is done, or when the list is deleted. Events
// are not replayed: fetch the list after subscribing for a starting snapshot.
func (s *Service) SubscribeToList(ctx context.Context, ac auth.AuthContext, listID string) (*websocket.Subscription, error) {
	if !ac.Authenticated() {
		return nil, ErrUnauthenticated
	}

	// Register before checking ownership. A delete that commits after the
	// check closes the topic and with it this subscription; one that
	// committed before it fails the check.
	sub := s.hub.Subscribe(listID)
	if err := s.requireOwner(ctx, ac, listID); err != nil {
		sub.Close()
		return nil, err
	}
	context.AfterFunc(ctx, sub.Close)
	return sub, nil
}

func (s *Service) requireOwner(ctx context.Context, ac auth.AuthContext, listID string) error {
	ok, err := s.lists.IsOwner(ctx, listID, ac.UserID)
	if err != nil {
		return transport("check list owner", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// checkStore rejects a store id that does not exist. Nil and "" pass.
func (s *Service) checkStore(ctx context.Context, storeID *string) error {
	if storeID == nil || *storeID == "" {
		return nil
	}
	st, err := s.shops.GetByID(ctx, *storeID)
	if err != nil {
		return transport("get store", err)
	}
	if st == nil {
		return invalid("store_id", "unknown store")
	}
	return nil
}
