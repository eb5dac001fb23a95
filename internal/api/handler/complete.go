package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/maraichr/batislens/internal/complete"
	"github.com/maraichr/batislens/internal/workspace"
	"github.com/maraichr/batislens/pkg/apierr"
)

type CompleteHandler struct {
	logger    *slog.Logger
	ws        *workspace.Workspace
	completer *complete.Completer
}

func NewCompleteHandler(logger *slog.Logger, ws *workspace.Workspace, c *complete.Completer) *CompleteHandler {
	return &CompleteHandler{logger: logger, ws: ws, completer: c}
}

type completeRequest struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	// Content replaces the stored file, for editors with unsaved changes.
	Content *string `json:"content,omitempty"`
}

type completeResponse struct {
	Proposals []complete.Proposal `json:"proposals"`
}

func (h *CompleteHandler) Complete(w http.ResponseWriter, r *http.Request) {
	p, apiErr := projectParam(h.ws, r)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}
	f, apiErr := projectFile(p, req.Path)
	if apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}

	creq := complete.Request{File: f, Offset: req.Offset}
	if req.Content != nil {
		creq.Content = []byte(*req.Content)
	} else if !h.ws.Exists(r.Context(), f) {
		writeAPIError(w, h.logger, apierr.FileNotFound(f.Path))
		return
	}

	props, err := h.completer.Proposals(r.Context(), creq)
	switch {
	case errors.Is(err, complete.ErrOffset):
		writeAPIError(w, h.logger, apierr.InvalidOffset(req.Offset))
		return
	case err != nil:
		writeAPIError(w, h.logger, apierr.CompletionFailed(err))
		return
	}
	if props == nil {
		props = []complete.Proposal{}
	}
	writeJSON(w, http.StatusOK, completeResponse{Proposals: props})
}
