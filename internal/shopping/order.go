package shopping

import (
	"cmp"
	"slices"

	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/websocket"
)

// SortItems orders items for display: unchecked before checked, then by
// ascending position, then by creation time.
func SortItems(items []model.ShoppingItem) {
	slices.SortStableFunc(items, func(a, b model.ShoppingItem) int {
		if a.IsChecked != b.IsChecked {
			if a.IsChecked {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// ApplyEvent folds a change event into a list snapshot and keeps the items in
// display order. It reports false when the event means the snapshot is gone
// or stale and must be fetched again.
func ApplyEvent(list *model.ShoppingList, ev websocket.Event) bool {
	if ev.ListID != list.ID {
		return true
	}
	if ev.Entity == websocket.EntityList {
		return false
	}

	idx := slices.IndexFunc(list.Items, func(it model.ShoppingItem) bool { return it.ID == ev.ID })
	switch ev.Action {
	case websocket.ActionInsert, websocket.ActionUpdate:
		if ev.Record == nil {
			return false
		}
		if idx >= 0 {
			list.Items[idx] = *ev.Record
		} else {
			list.Items = append(list.Items, *ev.Record)
		}
	case websocket.ActionDelete:
		if idx >= 0 {
			list.Items = slices.Delete(list.Items, idx, idx+1)
		}
	default:
		return false
	}
	SortItems(list.Items)
	return true
}
