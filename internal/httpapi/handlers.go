package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/greenwinther/guess-the-song2/internal/engine"
	"github.com/greenwinther/guess-the-song2/internal/hub"
)

type createRoomRequest struct {
	Code string `json:"code"`
}

type createRoomResponse struct {
	Code    string `json:"code"`
	HostKey string `json:"hostKey"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateRoom registers a room. The body is optional; without a code one is generated.
func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, engine.ErrBadPayload)
			return
		}

		lb, hostKey, err := h.Create(r.Context(), req.Code)
		switch {
		case errors.Is(err, engine.ErrInvalidCode):
			writeError(w, http.StatusBadRequest, engine.ErrInvalidCode)
			return
		case errors.Is(err, engine.ErrRoomExists):
			writeError(w, http.StatusConflict, engine.ErrRoomExists)
			return
		case err != nil:
			log.Error("create room failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, engine.ErrInternal)
			return
		}

		writeJSON(w, http.StatusCreated, createRoomResponse{Code: lb.Code(), HostKey: hostKey})
	}
}

// GetRoom returns the public projection of a live room.
func GetRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, err := h.Get(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, engine.ErrInternal)
			return
		}
		if lb == nil {
			writeError(w, http.StatusNotFound, engine.ErrRoomNotFound)
			return
		}
		view, err := lb.State(r.Context(), "")
		if errors.Is(err, engine.ErrNoRoom) {
			writeError(w, http.StatusNotFound, engine.ErrRoomNotFound)
			return
		}
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, engine.ErrInternal)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Version int               `json:"version"`
			Room    engine.PublicRoom `json:"room"`
		}{view.Version, view.Room})
	}
}

// Cleanup runs one expiry sweep on demand.
func Cleanup(h *hub.Hub, now func() time.Time, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := h.GC(r.Context(), now())
		if err != nil {
			log.Warn("cleanup failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, engine.ErrInternal)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Removed int `json:"removed"`
		}{removed})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code engine.Code) {
	writeJSON(w, status, errorResponse{Error: string(code)})
}
