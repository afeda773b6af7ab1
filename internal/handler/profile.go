package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hud-code/binqr-server/internal/auth"
	"github.com/hud-code/binqr-server/internal/store"
)

type ProfileHandler struct {
	profileStore *store.ProfileStore
	logger       *slog.Logger
}

func NewProfileHandler(ps *store.ProfileStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profileStore: ps, logger: logger}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	profile, err := h.profileStore.GetByUserID(userID)
	if err != nil {
		h.logger.Error("get profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type profileRequest struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	profile, err := h.profileStore.Update(userID, strings.TrimSpace(req.FullName), strings.TrimSpace(req.AvatarURL))
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeStoreError(w, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
