package handler

import (
	"net/http"

	"github.com/maraichr/batislens/internal/workspace"
)

type HealthHandler struct {
	ws *workspace.Workspace
}

func NewHealthHandler(ws *workspace.Workspace) *HealthHandler {
	return &HealthHandler{ws: ws}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"projects": len(h.ws.Projects()),
	})
}
