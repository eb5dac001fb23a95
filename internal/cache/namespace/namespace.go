// Package namespace binds mapper namespaces to the files declaring them.
package namespace

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/maraichr/batislens/internal/mapperxml"
	"github.com/maraichr/batislens/internal/metrics"
	"github.com/maraichr/batislens/internal/workspace"
)

const cacheName = "namespace"

type Binding struct {
	Namespace string         `json:"namespace"`
	File      workspace.File `json:"-"`
	Path      string         `json:"path"`
}

// Index holds at most one file per (project, namespace). A project is
// scanned on its first Get; later changes arrive file by file through Put
// and RemoveFile.
type Index struct {
	ws     *workspace.Workspace
	logger *slog.Logger

	group    singleflight.Group
	mu       sync.RWMutex
	epoch    uint64
	projects map[workspace.Key]*projectBindings
}

type projectBindings struct {
	loaded   bool
	bindings map[string]workspace.File
}

func newProjectBindings() *projectBindings {
	return &projectBindings{bindings: make(map[string]workspace.File)}
}

func New(ws *workspace.Workspace, logger *slog.Logger) *Index {
	return &Index{ws: ws, logger: logger, projects: make(map[workspace.Key]*projectBindings)}
}

// Put reads only as far as the root element of file and binds its
// namespace, replacing any earlier binding of the same file.
func (x *Index) Put(ctx context.Context, file workspace.File) error {
	content, err := x.ws.Read(ctx, file)
	if err != nil {
		return err
	}
	ns, _ := mapperxml.ExtractNamespace(content)
	x.mu.Lock()
	defer x.mu.Unlock()
	pb := x.project(file.Project)
	unbind(pb, file)
	if ns != "" {
		if prev, ok := pb.bindings[ns]; ok && prev != file {
			x.logger.Info("namespace rebound",
				slog.String("namespace", ns),
				slog.String("from", prev.Path),
				slog.String("to", file.Path))
		}
		pb.bindings[ns] = file
	}
	return nil
}

// Bind records ns -> file directly. Binding the same pair twice is a no-op.
func (x *Index) Bind(ns string, file workspace.File) {
	if ns == "" {
		return
	}
	x.mu.Lock()
	x.project(file.Project).bindings[ns] = file
	x.mu.Unlock()
}

// project must be called with x.mu held for writing.
func (x *Index) project(key workspace.Key) *projectBindings {
	pb := x.projects[key]
	if pb == nil {
		pb = newProjectBindings()
		x.projects[key] = pb
	}
	return pb
}

func unbind(pb *projectBindings, file workspace.File) {
	for ns, f := range pb.bindings {
		if f == file {
			delete(pb.bindings, ns)
		}
	}
}

// Get returns the file bound to ns. Absence is a normal result.
func (x *Index) Get(ctx context.Context, project workspace.Key, ns string) (workspace.File, bool) {
	x.ensureLoaded(ctx, project)
	x.mu.RLock()
	defer x.mu.RUnlock()
	pb := x.projects[project]
	if pb == nil {
		metrics.CacheMiss(cacheName)
		return workspace.File{}, false
	}
	f, ok := pb.bindings[ns]
	if ok {
		metrics.CacheHit(cacheName)
	} else {
		metrics.CacheMiss(cacheName)
	}
	return f, ok
}

// Bindings returns a project's bindings sorted by namespace.
func (x *Index) Bindings(ctx context.Context, project workspace.Key) []Binding {
	x.ensureLoaded(ctx, project)
	x.mu.RLock()
	defer x.mu.RUnlock()
	pb := x.projects[project]
	if pb == nil {
		return nil
	}
	out := make([]Binding, 0, len(pb.bindings))
	for ns, f := range pb.bindings {
		out = append(out, Binding{Namespace: ns, File: f, Path: f.Path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Namespace < out[j].Namespace })
	return out
}

// RemoveFile drops the binding whose value is file. It is a no-op when the
// namespace has since moved to another file.
func (x *Index) RemoveFile(file workspace.File) {
	x.mu.Lock()
	if pb := x.projects[file.Project]; pb != nil {
		unbind(pb, file)
	}
	x.mu.Unlock()
	metrics.CacheClear(cacheName, "entry")
}

// Remove wipes a project's bindings. The next Get rescans it.
func (x *Index) Remove(project workspace.Key) {
	x.mu.Lock()
	delete(x.projects, project)
	x.epoch++
	x.mu.Unlock()
	metrics.CacheClear(cacheName, "project")
}

func (x *Index) ClearAll() {
	x.mu.Lock()
	x.projects = make(map[workspace.Key]*projectBindings)
	x.epoch++
	x.mu.Unlock()
	metrics.CacheClear(cacheName, "all")
}

func (x *Index) ensureLoaded(ctx context.Context, project workspace.Key) {
	x.mu.RLock()
	pb := x.projects[project]
	epoch := x.epoch
	x.mu.RUnlock()
	if pb != nil && pb.loaded {
		return
	}

	v, err, _ := x.group.Do(fmt.Sprintf("%s@%d", project, epoch), func() (any, error) {
		return x.scan(ctx, project)
	})
	if err != nil {
		x.logger.Warn("scan mapper namespaces", slog.String("project", string(project)), slog.String("error", err.Error()))
		return
	}
	found := v.(map[string]workspace.File)

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.epoch != epoch {
		return
	}
	pb = x.project(project)
	if pb.loaded {
		return
	}
	for ns, f := range found {
		if _, exists := pb.bindings[ns]; !exists {
			pb.bindings[ns] = f
		}
	}
	pb.loaded = true
}

func (x *Index) scan(ctx context.Context, project workspace.Key) (map[string]workspace.File, error) {
	p, ok := x.ws.Project(project)
	if !ok {
		return nil, fmt.Errorf("unknown project %q", project)
	}
	roots := p.MapperRoots
	if len(roots) == 0 {
		roots = []string{""}
	}
	found := map[string]workspace.File{}
	for _, root := range roots {
		files, err := x.ws.Walk(ctx, project, root, "xml")
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			content, err := x.ws.Read(ctx, f)
			if err != nil {
				continue
			}
			ns, ok := mapperxml.ExtractNamespace(content)
			if !ok || ns == "" {
				continue
			}
			if prev, dup := found[ns]; dup {
				x.logger.Warn("duplicate mapper namespace",
					slog.String("namespace", ns),
					slog.String("file", f.Path),
					slog.String("other", prev.Path))
			}
			found[ns] = f
		}
	}
	return found, nil
}
