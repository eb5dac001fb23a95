package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/validate"
	"github.com/maraichr/batislens/internal/workspace"
	"github.com/maraichr/batislens/pkg/apierr"
)

type ValidateHandler struct {
	logger    *slog.Logger
	ws        *workspace.Workspace
	validator *validate.Validator
	store     *diag.Store
}

func NewValidateHandler(logger *slog.Logger, ws *workspace.Workspace, v *validate.Validator, store *diag.Store) *ValidateHandler {
	return &ValidateHandler{logger: logger, ws: ws, validator: v, store: store}
}

type validateRequest struct {
	// Path is relative to the project root. Empty validates every XML file.
	Path string `json:"path"`
}

type validateResponse struct {
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	Summary     *validate.Summary `json:"summary,omitempty"`
}

func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	p, apiErr := projectParam(h.ws, r)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}
	var req validateRequest
	// an empty body validates the whole project
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	if req.Path == "" {
		var c diag.Collector
		sum, err := h.validator.ValidateProject(r.Context(), p.Key, &c)
		if err != nil {
			writeAPIError(w, h.logger, validationError(err))
			return
		}
		writeJSON(w, http.StatusOK, validateResponse{Diagnostics: nonNil(c.Diagnostics()), Summary: &sum})
		return
	}

	f, apiErr := projectFile(p, req.Path)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}
	if !h.ws.Exists(r.Context(), f) {
		writeAPIError(w, h.logger, apierr.FileNotFound(f.Path))
		return
	}
	items, err := h.validator.Refresh(r.Context(), f, h.store)
	if err != nil {
		writeAPIError(w, h.logger, validationError(err))
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Diagnostics: nonNil(items)})
}

// Diagnostics returns the stored diagnostics of a project, or of one file
// with ?path=.
func (h *ValidateHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	p, apiErr := projectParam(h.ws, r)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}
	rel := r.URL.Query().Get("path")
	if rel == "" {
		writeJSON(w, http.StatusOK, validateResponse{Diagnostics: nonNil(h.store.Project(p.Key))})
		return
	}
	f, apiErr := projectFile(p, rel)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}
	items, ok := h.store.Get(f)
	if !ok {
		writeAPIError(w, h.logger, apierr.NoDiagnostics(f.Path))
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Diagnostics: nonNil(items)})
}

func validationError(err error) *apierr.Error {
	if errors.Is(err, validate.ErrCancelled) {
		return apierr.ValidationCancelled()
	}
	return apierr.ValidationFailed(err)
}

func nonNil(items []diag.Diagnostic) []diag.Diagnostic {
	if items == nil {
		return []diag.Diagnostic{}
	}
	return items
}
