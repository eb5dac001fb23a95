// Package cache owns the project-scoped caches shared by resolution and
// invalidation.
package cache

import (
	"log/slog"

	"github.com/maraichr/batislens/internal/cache/alias"
	"github.com/maraichr/batislens/internal/cache/beanprop"
	"github.com/maraichr/batislens/internal/cache/configreg"
	"github.com/maraichr/batislens/internal/cache/namespace"
	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/workspace"
)

// Set is the single owner of every cache. Resolvers only read through it;
// the invalidation coordinator is the only writer.
type Set struct {
	Configs    *configreg.Registry
	Aliases    *alias.Table
	Properties *beanprop.Index
	Namespaces *namespace.Index
}

// NewSet wires the caches for a workspace. Aliases are loaded from config
// files and the catalog on first use.
func NewSet(ws *workspace.Workspace, in introspect.TypeIntrospector, catalog introspect.Catalog, logger *slog.Logger) *Set {
	configs := configreg.New(ws, logger)
	var loader alias.Loader
	if catalog != nil {
		loader = alias.NewConfigLoader(ws, configs, catalog, logger)
	}
	return &Set{
		Configs:    configs,
		Aliases:    alias.New(loader, logger),
		Properties: beanprop.New(in, logger),
		Namespaces: namespace.New(ws, logger),
	}
}

// ClearAll empties every cache of every project.
func (s *Set) ClearAll() {
	s.Configs.Clear()
	s.Aliases.ClearAll()
	s.Namespaces.ClearAll()
	s.Properties.ClearAll()
}

// ClearProject empties every cache of one project.
func (s *Set) ClearProject(project workspace.Key) {
	s.Configs.Remove(project)
	s.Aliases.Clear(project)
	s.Namespaces.Remove(project)
	s.Properties.ClearProject(project)
}

// RemoveProject forgets a project that left the workspace. Property
// snapshots are dropped too since nothing can reach them any more.
func (s *Set) RemoveProject(project workspace.Key) {
	s.ClearProject(project)
}
