package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maraichr/batislens/internal/resolver"
	"github.com/maraichr/batislens/pkg/apierr"
)

type ResolveHandler struct {
	logger *slog.Logger
	engine *resolver.Engine
}

func NewResolveHandler(logger *slog.Logger, engine *resolver.Engine) *ResolveHandler {
	return &ResolveHandler{logger: logger, engine: engine}
}

type resolveRequest struct {
	Name string `json:"name"`
}

// Type resolves a type attribute value through built-in aliases, the
// project alias table and the introspector.
func (h *ResolveHandler) Type(w http.ResponseWriter, r *http.Request) {
	p, apiErr := projectParam(h.engine.Workspace(), r)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ResolveType(r.Context(), p.Key, req.Name))
}

type namespaceResponse struct {
	Namespace string `json:"namespace"`
	Path      string `json:"path,omitempty"`
	Found     bool   `json:"found"`
}

// Namespace returns the mapper file bound to a namespace.
func (h *ResolveHandler) Namespace(w http.ResponseWriter, r *http.Request) {
	p, apiErr := projectParam(h.engine.Workspace(), r)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	f, found := h.engine.Caches().Namespaces.Get(r.Context(), p.Key, req.Name)
	writeJSON(w, http.StatusOK, namespaceResponse{Namespace: req.Name, Path: f.Path, Found: found})
}

func (h *ResolveHandler) decode(w http.ResponseWriter, r *http.Request) (resolveRequest, bool) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeAPIError(w, h.logger, apierr.NameRequired())
		return req, false
	}
	return req, true
}
