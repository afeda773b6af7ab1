package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hud-code/binqr-server/internal/auth"
	"github.com/hud-code/binqr-server/internal/model"
	"github.com/hud-code/binqr-server/internal/store"
	"github.com/hud-code/binqr-server/internal/websocket"
)

type LocationHandler struct {
	locationStore *store.LocationStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewLocationHandler(ls *store.LocationStore, hub *websocket.Hub, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{locationStore: ls, hub: hub, logger: logger}
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	locations, err := h.locationStore.List(ownerID)
	if err != nil {
		h.logger.Error("list locations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	writeJSON(w, http.StatusOK, locations)
}

func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	loc, err := h.locationStore.GetByID(ownerID, r.PathValue("id"))
	if err != nil {
		h.logger.Error("get location", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get location")
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

type createLocationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var req createLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	loc, err := h.locationStore.Create(ownerID, req.Name, req.Description)
	if err != nil {
		writeStoreError(w, err, "failed to create location")
		return
	}

	h.hub.Broadcast(ownerID, websocket.NewMessage("location", "created", loc.ID, nil))
	writeJSON(w, http.StatusCreated, loc)
}

type updateLocationRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	loc, err := h.locationStore.Update(ownerID, id, store.UpdateLocationParams{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeStoreError(w, err, "failed to update location")
		return
	}

	h.hub.Broadcast(ownerID, websocket.NewMessage("location", "updated", loc.ID, nil))
	writeJSON(w, http.StatusOK, loc)
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id := r.PathValue("id")

	if err := h.locationStore.Delete(ownerID, id); err != nil {
		// A location still holding boxes refuses deletion with a conflict.
		writeStoreError(w, err, "failed to delete location")
		return
	}

	h.hub.Broadcast(ownerID, websocket.NewMessage("location", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
