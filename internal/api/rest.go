package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/flashzynex-dot/vps-bot/internal/registry"
)

// Handler is the read-only HTTP shim: an admin/debug surface next to
// the chat transport, never a second command path.
type Handler struct {
	reg *registry.Registry
	log *zap.Logger
}

func NewHTTPHandler(reg *registry.Registry, log *zap.Logger) http.Handler {
	h := &Handler{reg: reg, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/vps", h.handleGetVPS)
	mux.HandleFunc("/vps/list", h.handleListVPS)
	return mux
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGetVPS(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		h.writeError(w, http.StatusBadRequest, "owner required")
		return
	}
	v, err := h.reg.Find(r.Context(), owner)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "vps not found")
			return
		}
		h.log.Error("find failed", zap.String("owner", owner), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleListVPS(w http.ResponseWriter, r *http.Request) {
	recs, err := h.reg.List(r.Context())
	if err != nil {
		h.log.Error("list failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
	h.log.Warn("http error", zap.Int("status", status), zap.String("msg", msg))
}
