package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/mila/internal/auth"
	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/store"
)

type ProfileHandler struct {
	profiles *store.ProfileStore
	logger   *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: ps, logger: logger.With("component", "profile")}
}

type profileResponse struct {
	*model.UserProfile
	IsPremium bool `json:"is_premium"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{UserProfile: p, IsPremium: p.IsPremium(time.Now())})
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"full_name" validate:"max=100"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.profiles.UpdateFullName(r.Context(), auth.UserID(r.Context()), strings.TrimSpace(req.FullName))
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{UserProfile: p, IsPremium: p.IsPremium(time.Now())})
}
