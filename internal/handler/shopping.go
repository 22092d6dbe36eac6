package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/shopping"
	"github.com/dukerupert/mila/internal/websocket"
)

// ShoppingHandler exposes the list synchronization service over HTTP. The
// caller comes from the AuthContext placed by middleware.RequireAuth.
type ShoppingHandler struct {
	svc    *shopping.Service
	logger *slog.Logger
}

func NewShoppingHandler(svc *shopping.Service, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{svc: svc, logger: logger.With("component", "shopping_api")}
}

type listResponse struct {
	*model.ShoppingList
	Counts model.ItemCounts `json:"counts"`
}

func newListResponse(l *model.ShoppingList) listResponse {
	return listResponse{ShoppingList: l, Counts: l.Counts()}
}

func caller(r *http.Request) auth.AuthContext {
	ac, _ := auth.FromContext(r.Context())
	return ac
}

func (h *ShoppingHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.svc.GetUserLists(r.Context(), caller(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	resp := make([]listResponse, len(lists))
	for i := range lists {
		resp[i] = newListResponse(&lists[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ShoppingHandler) GetList(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.GetList(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(l))
}

func (h *ShoppingHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string  `json:"name" validate:"required,max=100"`
		StoreID *string `json:"store_id" validate:"omitempty,max=64"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	l, err := h.svc.CreateList(r.Context(), caller(r), shopping.CreateListInput{
		Name:    req.Name,
		StoreID: req.StoreID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, newListResponse(l))
}

// UpdateList applies a partial update. Absent fields are left alone; an empty
// store_id detaches the store.
func (h *ShoppingHandler) UpdateList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name" validate:"omitempty,max=100"`
		StoreID  *string `json:"store_id" validate:"omitempty,max=64"`
		IsActive *bool   `json:"is_active"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	l, err := h.svc.UpdateList(r.Context(), caller(r), r.PathValue("id"), shopping.UpdateListInput{
		Name:     req.Name,
		StoreID:  req.StoreID,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(l))
}

func (h *ShoppingHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteList(r.Context(), caller(r), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShoppingHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string   `json:"name" validate:"required,max=200"`
		Quantity *float64 `json:"quantity"`
		Unit     string   `json:"unit" validate:"max=20"`
		Category string   `json:"category" validate:"max=50"`
		Notes    string   `json:"notes" validate:"max=500"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.svc.AddItem(r.Context(), caller(r), r.PathValue("id"), shopping.CreateItemInput{
		Name:     req.Name,
		Quantity: req.Quantity,
		Unit:     req.Unit,
		Category: req.Category,
		Notes:    req.Notes,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ShoppingHandler) ClearChecked(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ClearChecked(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// Subscribe upgrades to a WebSocket that streams the list's changes.
func (h *ShoppingHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.SubscribeToList(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	websocket.Serve(w, r, sub, h.logger)
}

func (h *ShoppingHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string  `json:"name" validate:"omitempty,max=200"`
		Quantity *float64 `json:"quantity"`
		Unit     *string  `json:"unit" validate:"omitempty,max=20"`
		Category *string  `json:"category" validate:"omitempty,max=50"`
		Notes    *string  `json:"notes" validate:"omitempty,max=500"`
		Price    *float64 `json:"price"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.svc.UpdateItem(r.Context(), caller(r), r.PathValue("id"), shopping.UpdateItemInput{
		Name:     req.Name,
		Quantity: req.Quantity,
		Unit:     req.Unit,
		Category: req.Category,
		Notes:    req.Notes,
		Price:    req.Price,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ShoppingHandler) ToggleItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.ToggleItem(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ShoppingHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteItem(r.Context(), caller(r), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShoppingHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.svc.GetStores(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stores)
}
