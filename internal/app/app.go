// Package app wires the resolution stack shared by the server and the
// command line tool.
package app

import (
	"fmt"
	"log/slog"

	"github.com/maraichr/batislens/internal/cache"
	"github.com/maraichr/batislens/internal/complete"
	"github.com/maraichr/batislens/internal/config"
	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/invalidation"
	"github.com/maraichr/batislens/internal/parser"
	"github.com/maraichr/batislens/internal/parser/java"
	"github.com/maraichr/batislens/internal/resolver"
	"github.com/maraichr/batislens/internal/validate"
	"github.com/maraichr/batislens/internal/workspace"
)

type App struct {
	Workspace    *workspace.Workspace
	Introspector *introspect.SourceIntrospector
	Caches       *cache.Set
	Engine       *resolver.Engine
	Validator    *validate.Validator
	Completer    *complete.Completer
	Diagnostics  *diag.Store
	Revalidator  *invalidation.Revalidator
	Coordinator  *invalidation.Coordinator
}

// Load reads the workspace file named by cfg and builds an App over its
// projects.
func Load(cfg *config.Config, logger *slog.Logger) (*App, error) {
	projects, err := config.LoadWorkspace(cfg.Workspace.File)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("workspace file %s declares no projects", cfg.Workspace.File)
	}
	return New(cfg, projects, logger), nil
}

// New builds an App over projects read from the local file system.
func New(cfg *config.Config, projects []workspace.Project, logger *slog.Logger) *App {
	ws := workspace.New(nil)
	for _, p := range projects {
		ws.Add(p)
	}

	parsers := parser.NewRegistry()
	parsers.Register("java", java.New())
	source := introspect.NewSource(ws, parsers, logger, introspect.WithParseWorkers(cfg.Validate.ParseWorkers))

	caches := cache.NewSet(ws, source, source, logger)
	engine := resolver.NewEngine(ws, source, source, caches, logger)
	validator := validate.New(engine, logger, validate.WithWorkers(cfg.Validate.Workers))
	store := diag.NewStore()
	revalidator := invalidation.NewRevalidator(validator, store, logger, cfg.Validate.QueueSize)

	return &App{
		Workspace:    ws,
		Introspector: source,
		Caches:       caches,
		Engine:       engine,
		Validator:    validator,
		Completer:    complete.New(engine, logger),
		Diagnostics:  store,
		Revalidator:  revalidator,
		Coordinator: invalidation.New(ws, caches, source, logger,
			invalidation.WithSourceCache(source),
			invalidation.WithRevalidator(revalidator),
			invalidation.WithDiagnostics(store)),
	}
}
