package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/mila/internal/store"
)

const maxSuggestions = 50

type SuggestionHandler struct {
	suggestions *store.SuggestionStore
	logger      *slog.Logger
}

func NewSuggestionHandler(s *store.SuggestionStore, logger *slog.Logger) *SuggestionHandler {
	return &SuggestionHandler{suggestions: s, logger: logger.With("component", "suggestions")}
}

// Search returns product suggestions whose name starts with q.
func (h *SuggestionHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = min(n, maxSuggestions)
	}

	results, err := h.suggestions.Search(r.Context(), q, limit)
	if err != nil {
		h.logger.Error("search suggestions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search suggestions")
		return
	}
	writeJSON(w, http.StatusOK, results)
}
