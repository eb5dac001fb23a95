package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/maraichr/batislens/internal/events"
	"github.com/maraichr/batislens/internal/workspace"
	"github.com/maraichr/batislens/pkg/apierr"
)

// Publisher forwards batches to other processes instead of applying them
// locally.
type Publisher interface {
	Publish(ctx context.Context, b events.Batch) (string, error)
}

type EventsHandler struct {
	logger    *slog.Logger
	apply     events.Handler
	publisher Publisher
}

// NewEventsHandler applies posted batches with h, or publishes them when p
// is not nil.
func NewEventsHandler(logger *slog.Logger, h events.Handler, p Publisher) *EventsHandler {
	return &EventsHandler{logger: logger, apply: h, publisher: p}
}

type eventsResponse struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Records  int       `json:"records"`
	StreamID string    `json:"stream_id,omitempty"`
}

func (h *EventsHandler) Post(w http.ResponseWriter, r *http.Request) {
	var b events.Batch
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}
	if apiErr := checkBatch(b); apiErr != nil {
		writeAPIError(w, h.logger, apiErr)
		return
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Source == "" {
		b.Source = "api"
	}
	resp := eventsResponse{BatchID: b.ID, Records: len(b.Records)}

	if h.publisher != nil {
		id, err := h.publisher.Publish(r.Context(), b)
		if err != nil {
			writeAPIError(w, h.logger, apierr.PublishFailed(err))
			return
		}
		resp.StreamID = id
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	if err := h.apply.Apply(r.Context(), b); err != nil {
		writeAPIError(w, h.logger, apierr.EventsFailed(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// checkBatch validates b and normalizes its record paths in place.
func checkBatch(b events.Batch) *apierr.Error {
	if len(b.Records) == 0 && b.CleanBuild == nil {
		return apierr.EmptyBatch()
	}
	for i := range b.Records {
		rec := &b.Records[i]
		switch rec.Kind {
		case events.Added, events.Changed, events.Removed:
		default:
			return apierr.InvalidRecord(i, "kind must be one of: added, changed, removed")
		}
		if rec.Project == "" {
			return apierr.InvalidRecord(i, "project is required")
		}
		switch rec.Resource {
		case events.File:
			if rec.Path == "" {
				return apierr.InvalidRecord(i, "path is required for file records")
			}
			clean, ok := workspace.CleanPath(rec.Path)
			if !ok {
				return apierr.InvalidRecord(i, "path must be relative to the project root")
			}
			rec.Path = clean
		case events.Project:
		default:
			return apierr.InvalidRecord(i, "resource must be one of: file, project")
		}
	}
	return nil
}
