package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maraichr/batislens/internal/workspace"
	"github.com/maraichr/batislens/pkg/apierr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeAPIError writes a structured error response and logs 5xx errors.
func writeAPIError(w http.ResponseWriter, logger *slog.Logger, e *apierr.Error) {
	if e.Status() >= 500 && logger != nil {
		logger.Error(e.Message(), slog.String("code", string(e.Code())), slog.String("error", e.Error()))
	}
	writeJSON(w, e.Status(), e.Response())
}

// projectParam returns the project named in the URL.
func projectParam(ws *workspace.Workspace, r *http.Request) (workspace.Project, *apierr.Error) {
	key := chi.URLParam(r, "project")
	p, ok := ws.Project(workspace.Key(key))
	if !ok {
		return workspace.Project{}, apierr.ProjectNotFound(key)
	}
	return p, nil
}

// projectFile checks that rel names a file inside the project root.
func projectFile(p workspace.Project, rel string) (workspace.File, *apierr.Error) {
	if rel == "" {
		return workspace.File{}, apierr.PathRequired()
	}
	clean, ok := workspace.CleanPath(rel)
	if !ok {
		return workspace.File{}, apierr.InvalidPath()
	}
	return workspace.File{Project: p.Key, Path: clean}, nil
}
