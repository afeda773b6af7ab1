package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hud-code/binqr-server/internal/auth"
	"github.com/hud-code/binqr-server/internal/images"
	"github.com/hud-code/binqr-server/internal/store"
	"github.com/hud-code/binqr-server/internal/websocket"
)

const maxImageUpload = 10 << 20 // 10 MiB

type ImageHandler struct {
	imageStore *images.Store
	boxStore   *store.BoxStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewImageHandler(is *images.Store, bs *store.BoxStore, hub *websocket.Hub, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{imageStore: is, boxStore: bs, hub: hub, logger: logger}
}

// Upload attaches a photo to a box. The file is stored in object storage
// and the box's primary_image_url is updated; an old image, if any, is
// removed best-effort.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	boxID := r.PathValue("id")

	box, err := h.boxStore.GetByID(ownerID, boxID)
	if err != nil {
		h.logger.Error("get box for image", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	if box == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUpload)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	url, err := h.imageStore.Upload(r.Context(), ownerID, header.Filename, file)
	if err != nil {
		if errors.Is(err, images.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
			return
		}
		h.logger.Error("upload image", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	old := box.PrimaryImageURL
	updated, err := h.boxStore.Update(ownerID, boxID, store.UpdateBoxParams{PrimaryImageURL: &url})
	if err != nil {
		h.logger.Error("attach image to box", "error", err)
		writeStoreError(w, err, "upload failed")
		return
	}

	if old != "" {
		if err := h.imageStore.Delete(r.Context(), old); err != nil {
			h.logger.Warn("delete replaced image", "error", err, "url", old)
		}
	}

	h.hub.Broadcast(ownerID, websocket.NewMessage("box", "updated", boxID, nil))
	writeJSON(w, http.StatusOK, updated)
}
