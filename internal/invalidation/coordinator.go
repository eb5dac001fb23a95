// Package invalidation applies workspace change batches to the caches. It
// is the only writer of cache state outside of lazy population.
package invalidation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maraichr/batislens/internal/cache"
	"github.com/maraichr/batislens/internal/cache/alias"
	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/events"
	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/metrics"
	"github.com/maraichr/batislens/internal/workspace"
)

// Trigger labels for the invalidation metric.
const (
	TriggerCleanBuild     = "clean_build"
	TriggerProjectRemoved = "project_removed"
	TriggerSourceChanged  = "source_changed"
	TriggerSourceRemoved  = "source_removed"
	TriggerMapperChanged  = "mapper_changed"
	TriggerConfigChanged  = "config_changed"
	TriggerXMLRemoved     = "xml_removed"
	TriggerIgnored        = "ignored"
)

// SourceCache is a parse cache of host source files.
type SourceCache interface {
	Invalidate(file workspace.File)
	InvalidateProject(key workspace.Key)
}

// Scheduler queues a mapper file for validation.
type Scheduler interface {
	Schedule(file workspace.File) bool
}

type Coordinator struct {
	ws      *workspace.Workspace
	caches  *cache.Set
	catalog introspect.Catalog
	logger  *slog.Logger

	sources     SourceCache
	revalidator Scheduler
	diags       *diag.Store

	mu sync.Mutex // one batch at a time
}

type Option func(*Coordinator)

func WithSourceCache(s SourceCache) Option { return func(c *Coordinator) { c.sources = s } }

func WithRevalidator(s Scheduler) Option { return func(c *Coordinator) { c.revalidator = s } }

// WithDiagnostics drops stored diagnostics of removed files and projects.
func WithDiagnostics(store *diag.Store) Option { return func(c *Coordinator) { c.diags = store } }

func New(ws *workspace.Workspace, caches *cache.Set, catalog introspect.Catalog, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{ws: ws, caches: caches, catalog: catalog, logger: logger}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Apply processes one batch. A record that fails is logged and skipped; the
// only error is cancellation between records.
func (c *Coordinator) Apply(ctx context.Context, b events.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b.CleanBuild != nil {
		c.cleanBuild(b.CleanBuild.Project)
	}
	for _, r := range b.Records {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch %s: %w", b.ID, err)
		}
		c.applyRecord(ctx, r)
	}
	c.logger.Debug("batch applied",
		slog.String("batch_id", b.ID.String()),
		slog.String("source", b.Source),
		slog.Int("records", len(b.Records)))
	return nil
}

func (c *Coordinator) cleanBuild(project workspace.Key) {
	if project == "" {
		c.caches.ClearAll()
	} else {
		c.caches.ClearProject(project)
	}
	if c.sources != nil {
		c.sources.InvalidateProject(project)
	}
	metrics.Invalidation(TriggerCleanBuild)
	c.logger.Info("caches cleared", slog.String("project", string(project)))
}

func (c *Coordinator) applyRecord(ctx context.Context, r events.Record) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("change record failed",
				slog.String("project", string(r.Project)),
				slog.String("path", r.Path),
				slog.Any("panic", p))
		}
	}()

	if r.Derived || r.MetadataOnly || workspace.IsDerived(r.Path) {
		metrics.Invalidation(TriggerIgnored)
		return
	}
	if r.Resource == events.Project {
		if r.Kind == events.Removed {
			c.removeProject(r.Project)
		}
		return
	}

	if _, ok := workspace.CleanPath(r.Path); !ok {
		c.logger.Warn("skip record outside project root",
			slog.String("project", string(r.Project)),
			slog.String("path", r.Path))
		metrics.Invalidation(TriggerIgnored)
		return
	}
	f := r.File()
	kind, readable := c.classify(ctx, r)
	switch {
	case kind == workspace.KindJavaSource && r.Kind == events.Removed:
		c.sourceRemoved(ctx, f)
	case kind == workspace.KindJavaSource:
		c.sourceChanged(ctx, f)
	case f.Ext() != "xml":
		metrics.Invalidation(TriggerIgnored)
	case r.Kind == events.Removed || !readable:
		c.xmlRemoved(f)
	case kind == workspace.KindMapperXML:
		c.mapperChanged(ctx, f)
	case kind.IsConfig():
		c.configChanged(f.Project)
	default:
		metrics.Invalidation(TriggerIgnored)
	}
}

// classify returns the content kind of the record's file, preferring the
// hint. readable is false when an XML file without a hint cannot be read.
func (c *Coordinator) classify(ctx context.Context, r events.Record) (workspace.ContentKind, bool) {
	switch r.ContentTypeHint {
	case events.HintJava:
		return workspace.KindJavaSource, true
	case events.HintMapper:
		return workspace.KindMapperXML, true
	case events.HintConfig:
		return workspace.KindConfigXML, true
	case events.HintSpringConfig:
		return workspace.KindSpringConfigXML, true
	}
	f := r.File()
	switch f.Ext() {
	case "java":
		return workspace.KindJavaSource, true
	case "xml":
		if r.Kind == events.Removed {
			return workspace.KindUnknown, false
		}
		content, err := c.ws.Read(ctx, f)
		if err != nil {
			c.logger.Warn("classify changed file", slog.String("file", f.String()), slog.String("error", err.Error()))
			return workspace.KindUnknown, false
		}
		return workspace.Classify(f.Path, content), true
	}
	return workspace.KindUnknown, true
}

func (c *Coordinator) removeProject(project workspace.Key) {
	c.caches.RemoveProject(project)
	if c.sources != nil {
		c.sources.InvalidateProject(project)
	}
	if c.diags != nil {
		c.diags.ForgetProject(project)
	}
	c.ws.Remove(project)
	metrics.Invalidation(TriggerProjectRemoved)
	c.logger.Info("project removed", slog.String("project", string(project)))
}

// typesIn returns the types declared by a source file, falling back to the
// name implied by its path.
func (c *Coordinator) typesIn(ctx context.Context, f workspace.File) []introspect.TypeSummary {
	if c.catalog != nil {
		types, err := c.catalog.TypesInFile(ctx, f)
		if err != nil {
			c.logger.Warn("types in file", slog.String("file", f.String()), slog.String("error", err.Error()))
		}
		if len(types) > 0 {
			return types
		}
	}
	p, ok := c.ws.Project(f.Project)
	if !ok {
		return nil
	}
	if q, ok := introspect.TypeNameFromPath(p, f.Path); ok {
		return []introspect.TypeSummary{{QualifiedName: q, SimpleName: introspect.SimpleName(q), Package: introspect.PackageOf(q)}}
	}
	return nil
}

func (c *Coordinator) sourceChanged(ctx context.Context, f workspace.File) {
	metrics.Invalidation(TriggerSourceChanged)
	if c.sources != nil {
		c.sources.Invalidate(f)
	}
	p, _ := c.ws.Project(f.Project)
	for _, t := range c.typesIn(ctx, f) {
		q := t.QualifiedName
		c.caches.Properties.Clear(f.Project, q)

		switch {
		case alias.IsModuleRoot(t, p.ModuleRootTypes):
			c.caches.Aliases.Clear(f.Project)
		case c.caches.Aliases.IsInPackage(ctx, f.Project, q):
			// package scans skip interfaces
			var name string
			if !t.Interface {
				name = t.Alias
				if name == "" {
					name = introspect.SimpleName(q)
				}
			}
			c.caches.Aliases.ReplaceType(f.Project, q, name)
		}

		if t.Interface && c.revalidator != nil {
			if bound, ok := c.caches.Namespaces.Get(ctx, f.Project, q); ok {
				c.revalidator.Schedule(bound)
			}
		}
	}
}

func (c *Coordinator) sourceRemoved(ctx context.Context, f workspace.File) {
	metrics.Invalidation(TriggerSourceRemoved)
	// the catalog still knows what the file declared until it is invalidated
	types := c.typesIn(ctx, f)
	if c.sources != nil {
		c.sources.Invalidate(f)
	}
	for _, t := range types {
		c.caches.Aliases.RemoveType(f.Project, t.QualifiedName)
		c.caches.Properties.Clear(f.Project, t.QualifiedName)
	}
}

func (c *Coordinator) mapperChanged(ctx context.Context, f workspace.File) {
	metrics.Invalidation(TriggerMapperChanged)
	if err := c.caches.Namespaces.Put(ctx, f); err != nil {
		c.logger.Warn("rebind namespace", slog.String("file", f.String()), slog.String("error", err.Error()))
		c.caches.Namespaces.RemoveFile(f)
		return
	}
	if c.revalidator != nil {
		c.revalidator.Schedule(f)
	}
}

// configChanged drops everything a config file can influence: its scan
// roots may affect many namespaces and aliases.
func (c *Coordinator) configChanged(project workspace.Key) {
	metrics.Invalidation(TriggerConfigChanged)
	c.caches.Configs.Remove(project)
	c.caches.Namespaces.Remove(project)
	c.caches.Aliases.Clear(project)
}

func (c *Coordinator) xmlRemoved(f workspace.File) {
	metrics.Invalidation(TriggerXMLRemoved)
	c.caches.Namespaces.RemoveFile(f)
	if c.caches.Configs.RemoveFile(f) {
		c.caches.Namespaces.Remove(f.Project)
		c.caches.Aliases.Clear(f.Project)
	}
	if c.diags != nil {
		c.diags.Forget(f)
	}
}
