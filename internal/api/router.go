package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maraichr/batislens/internal/complete"
	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/events"
	"github.com/maraichr/batislens/internal/resolver"
	"github.com/maraichr/batislens/internal/validate"

	apihandler "github.com/maraichr/batislens/internal/api/handler"
	apimw "github.com/maraichr/batislens/internal/api/middleware"
)

// RouterDeps holds the components served over HTTP. Publisher is optional:
// when set, posted change batches go to the stream instead of Events.
type RouterDeps struct {
	Engine      *resolver.Engine
	Validator   *validate.Validator
	Completer   *complete.Completer
	Diagnostics *diag.Store
	Events      events.Handler
	Publisher   apihandler.Publisher
	Metrics     bool
}

func NewRouter(logger *slog.Logger, deps *RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(chimw.Recoverer)

	ws := deps.Engine.Workspace()
	store := deps.Diagnostics
	if store == nil {
		store = diag.NewStore()
	}

	health := apihandler.NewHealthHandler(ws)
	r.Get("/healthz", health.Healthz)
	if deps.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		validation := apihandler.NewValidateHandler(logger, ws, deps.Validator, store)
		completion := apihandler.NewCompleteHandler(logger, ws, deps.Completer)
		resolve := apihandler.NewResolveHandler(logger, deps.Engine)

		r.Route("/projects/{project}", func(r chi.Router) {
			r.Post("/validate", validation.Validate)
			r.Get("/diagnostics", validation.Diagnostics)
			r.Post("/complete", completion.Complete)
			r.Post("/resolve/type", resolve.Type)
			r.Post("/resolve/namespace", resolve.Namespace)
		})

		if deps.Events != nil || deps.Publisher != nil {
			r.Post("/events", apihandler.NewEventsHandler(logger, deps.Events, deps.Publisher).Post)
		}
	})

	return r
}
