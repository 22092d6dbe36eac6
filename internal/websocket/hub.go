package websocket

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukerupert/mila/internal/model"
)

const (
	EntityItem = "shopping_item"
	EntityList = "shopping_list"

	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is a change notification for one list. Record carries the item as it
// is after the change; it is nil for deletes.
type Event struct {
	Type   string              `json:"type"`
	Entity string              `json:"entity"`
	Action string              `json:"action"`
	ListID string              `json:"list_id"`
	ID     string              `json:"id"`
	Record *model.ShoppingItem `json:"record,omitempty"`
	At     time.Time           `json:"at"`
}

// NewEvent creates an Event with the Type field derived from entity and action.
func NewEvent(entity, action, listID, id string, record *model.ShoppingItem) Event {
	return Event{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ListID: listID,
		ID:     id,
		Record: record,
		At:     time.Now().UTC(),
	}
}

// Hub fans change events out to subscribers, keyed by list id.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	logger *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscription for the list. The caller owns it and
// must Close it.
func (h *Hub) Subscribe(listID string) *Subscription {
	sub := &Subscription{
		hub:    h,
		listID: listID,
		events: make(chan Event, sendBufferSize),
	}

	h.mu.Lock()
	subs, ok := h.topics[listID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[listID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// remove drops sub from its topic and closes its channel. Safe to call more
// than once.
func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[sub.listID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.topics, sub.listID)
	}
}

// Publish delivers ev to every subscriber of ev.ListID. A subscriber whose
// buffer is full is closed instead of silently missing the event; its owner
// has to fetch the list again and resubscribe.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[ev.ListID]
	for sub := range subs {
		select {
		case sub.events <- ev:
		default:
			h.logger.Warn("subscriber fell behind, closing subscription",
				"list_id", ev.ListID,
				"type", ev.Type,
			)
			sub.overflowed.Store(true)
			delete(subs, sub)
			close(sub.events)
		}
	}
	if len(subs) == 0 {
		delete(h.topics, ev.ListID)
	}
}

// CloseTopic ends every subscription for the list. Used when the list itself
// is gone.
func (h *Hub) CloseTopic(listID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.topics[listID] {
		close(sub.events)
	}
	delete(h.topics, listID)
}

// SubscriberCount returns the number of open subscriptions for the list.
func (h *Hub) SubscriberCount(listID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[listID])
}

// TopicCount returns the number of lists with at least one subscriber.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

// Subscription is a stream of change events for one list. The Events channel
// is closed when the subscription is closed, the list is deleted, or the
// reader falls behind.
type Subscription struct {
	hub        *Hub
	listID     string
	events     chan Event
	once       sync.Once
	overflowed atomic.Bool
}

func (s *Subscription) ListID() string { return s.listID }

func (s *Subscription) Events() <-chan Event { return s.events }

// Overflowed reports whether the hub ended the subscription because its
// buffer filled up. Events were lost and any state built from them is stale.
func (s *Subscription) Overflowed() bool { return s.overflowed.Load() }

// Close unregisters the subscription. It is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}
