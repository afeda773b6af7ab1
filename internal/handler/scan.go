package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hud-code/binqr-server/internal/auth"
	"github.com/hud-code/binqr-server/internal/scan"
)

// ScanHandler keeps one resolver per user so a terminal scan outcome on
// one device holds until that user acknowledges it, without bleeding into
// other accounts.
type ScanHandler struct {
	mu        sync.Mutex
	resolvers map[string]*scan.Resolver
	finder    scan.Finder
	logger    *slog.Logger
}

func NewScanHandler(finder scan.Finder, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{
		resolvers: make(map[string]*scan.Resolver),
		finder:    finder,
		logger:    logger,
	}
}

func (h *ScanHandler) resolver(userID string) *scan.Resolver {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.resolvers[userID]
	if !ok {
		r = scan.NewResolver(h.finder, h.logger)
		h.resolvers[userID] = r
	}
	return r
}

type scanRequest struct {
	Payload string `json:"payload"`
}

// Resolve processes one scanned payload. When a previous scan is still
// unacknowledged the frame is dropped and the prior result is replayed
// with accepted=false.
func (h *ScanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Payload == "" {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}

	result, accepted := h.resolver(ownerID).Resolve(ownerID, req.Payload)
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"result":   result,
	})
}

// Status reports the resolver's current state and last result.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	res := h.resolver(ownerID)

	writeJSON(w, http.StatusOK, map[string]any{
		"state":  res.State(),
		"result": res.Last(),
	})
}

// Reset is the explicit "scan again" acknowledgement.
func (h *ScanHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.UserID(r.Context())
	h.resolver(ownerID).Reset()

	writeJSON(w, http.StatusOK, map[string]string{"state": string(scan.StateIdle)})
}
