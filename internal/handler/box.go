package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hud-code/binqr-server/internal/auth"
	"github.com/hud-code/binqr-server/internal/model"
	"github.com/hud-code/binqr-server/internal/qr"
	"github.com/hud-code/binqr-server/internal/store"
	"github.com/hud-code/binqr-server/internal/websocket"
)

type BoxHandler struct {
	boxStore *store.BoxStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewBoxHandler(bs *store.BoxStore, hub *websocket.Hub, logger *slog.Logger) *BoxHandler {
	return &BoxHandler{boxStore: bs, hub: hub, logger: logger}
}

func (h *BoxHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	boxes, err := h.boxStore.List(ownerID)
	if err != nil {
		h.logger.Error("list boxes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list boxes")
		return
	}
	if boxes == nil {
		boxes = []model.Box{}
	}
	writeJSON(w, http.StatusOK, boxes)
}

func (h *BoxHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	box, err := h.boxStore.GetByID(ownerID, r.PathValue("id"))
	if err != nil {
		h.logger.Error("get box", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get box")
		return
	}
	if box == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, box)
}

type createBoxRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	LocationID      *string  `json:"location_id"`
	PrimaryImageURL string   `json:"primary_image_url"`
	Tags            []string `json:"tags"`
}

// Create mints the box id and its QR payload together, then persists both.
// A tag insert failure still creates the box; the response carries a
// warning so the client can retry the tags.
func (h *BoxHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var req createBoxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id := uuid.NewString()
	box, err := h.boxStore.Create(ownerID, store.CreateBoxParams{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		LocationID:      req.LocationID,
		QRCode:          qr.Encode(id),
		PrimaryImageURL: req.PrimaryImageURL,
		Tags:            req.Tags,
	})
	if err != nil {
		if errors.Is(err, store.ErrTagsPartial) && box != nil {
			h.logger.Warn("box created with partial tags", "box_id", box.ID, "error", err)
			h.hub.Broadcast(ownerID, websocket.NewMessage("box", "created", box.ID, nil))
			writeJSON(w, http.StatusCreated, map[string]any{
				"box":     box,
				"warning": "box saved but some tags were not",
			})
			return
		}
		writeStoreError(w, err, "failed to create box")
		return
	}

	h.hub.Broadcast(ownerID, websocket.NewMessage("box", "created", box.ID, nil))
	writeJSON(w, http.StatusCreated, box)
}

type updateBoxRequest struct {
	Name            *string   `json:"name"`
	Description     *string   `json:"description"`
	LocationID      *string   `json:"location_id"`
	PrimaryImageURL *string   `json:"primary_image_url"`
	Tags            *[]string `json:"tags"`
}

func (h *BoxHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id := r.PathValue("id")

	var req updateBoxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	box, err := h.boxStore.Update(ownerID, id, store.UpdateBoxParams{
		Name:            req.Name,
		Description:     req.Description,
		LocationID:      req.LocationID,
		PrimaryImageURL: req.PrimaryImageURL,
		Tags:            req.Tags,
	})
	if err != nil {
		if errors.Is(err, store.ErrTagsPartial) && box != nil {
			h.logger.Warn("box updated with partial tags", "box_id", box.ID, "error", err)
			h.hub.Broadcast(ownerID, websocket.NewMessage("box", "updated", box.ID, nil))
			writeJSON(w, http.StatusOK, map[string]any{
				"box":     box,
				"warning": "box saved but some tags were not",
			})
			return
		}
		writeStoreError(w, err, "failed to update box")
		return
	}

	h.hub.Broadcast(ownerID, websocket.NewMessage("box", "updated", box.ID, nil))
	writeJSON(w, http.StatusOK, box)
}

func (h *BoxHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id := r.PathValue("id")

	if err := h.boxStore.Delete(ownerID, id); err != nil {
		writeStoreError(w, err, "failed to delete box")
		return
	}

	h.hub.Broadcast(ownerID, websocket.NewMessage("box", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Search filters boxes by a case-insensitive substring over name and
// description, optionally narrowed to one location. An empty query returns
// the full list.
func (h *BoxHandler) Search(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	query := r.URL.Query().Get("q")
	locationID := r.URL.Query().Get("location_id")

	boxes, err := h.boxStore.Search(ownerID, query, locationID)
	if err != nil {
		h.logger.Error("search boxes", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if boxes == nil {
		boxes = []model.Box{}
	}
	writeJSON(w, http.StatusOK, boxes)
}

// ReissueQR replaces the box's printed payload with a fresh nonce-bearing
// one. The old payload stops resolving immediately.
func (h *BoxHandler) ReissueQR(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	id := r.PathValue("id")

	code, err := h.boxStore.ReissueQRCode(ownerID, id)
	if err != nil {
		writeStoreError(w, err, "failed to reissue qr code")
		return
	}

	h.hub.Broadcast(ownerID, websocket.NewMessage("box", "updated", id, nil))
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "qr_code": code})
}
