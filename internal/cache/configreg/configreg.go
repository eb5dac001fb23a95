// Package configreg tracks, per project, which files are global or Spring
// configuration files.
package configreg

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/maraichr/batislens/internal/metrics"
	"github.com/maraichr/batislens/internal/workspace"
)

const cacheName = "configreg"

type ConfigFile struct {
	File workspace.File
	Kind workspace.ContentKind
}

// Registry discovers config files lazily by walking the project once.
type Registry struct {
	ws     *workspace.Workspace
	logger *slog.Logger

	group    singleflight.Group
	mu       sync.RWMutex
	epoch    uint64
	projects map[workspace.Key][]ConfigFile
}

func New(ws *workspace.Workspace, logger *slog.Logger) *Registry {
	return &Registry{ws: ws, logger: logger, projects: make(map[workspace.Key][]ConfigFile)}
}

// Files returns the config files of a project. Walk failures degrade to an
// empty, uncached result.
func (r *Registry) Files(ctx context.Context, project workspace.Key) []ConfigFile {
	r.mu.RLock()
	files, ok := r.projects[project]
	epoch := r.epoch
	r.mu.RUnlock()
	if ok {
		metrics.CacheHit(cacheName)
		return files
	}
	metrics.CacheMiss(cacheName)

	v, err, _ := r.group.Do(fmt.Sprintf("%s@%d", project, epoch), func() (any, error) {
		return r.scan(ctx, project)
	})
	if err != nil {
		r.logger.Warn("scan config files", slog.String("project", string(project)), slog.String("error", err.Error()))
		return nil
	}
	files = v.([]ConfigFile)

	r.mu.Lock()
	if r.epoch == epoch {
		if _, exists := r.projects[project]; !exists {
			r.projects[project] = files
		}
	}
	r.mu.Unlock()
	return files
}

func (r *Registry) scan(ctx context.Context, project workspace.Key) ([]ConfigFile, error) {
	all, err := r.ws.Walk(ctx, project, "", "xml")
	if err != nil {
		return nil, err
	}
	files := []ConfigFile{}
	for _, f := range all {
		content, err := r.ws.Read(ctx, f)
		if err != nil {
			r.logger.Debug("skip unreadable xml", slog.String("file", f.String()), slog.String("error", err.Error()))
			continue
		}
		if kind := workspace.Classify(f.Path, content); kind.IsConfig() {
			files = append(files, ConfigFile{File: f, Kind: kind})
		}
	}
	return files, nil
}

// Remove forgets a project's config files.
func (r *Registry) Remove(project workspace.Key) {
	r.mu.Lock()
	delete(r.projects, project)
	r.epoch++
	r.mu.Unlock()
	metrics.CacheClear(cacheName, "project")
}

// RemoveFile forgets the project's config files when file is a known one,
// and reports whether it was.
func (r *Registry) RemoveFile(file workspace.File) bool {
	r.mu.RLock()
	known := false
	for _, c := range r.projects[file.Project] {
		if c.File == file {
			known = true
			break
		}
	}
	r.mu.RUnlock()
	if known {
		r.Remove(file.Project)
	}
	return known
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.projects = make(map[workspace.Key][]ConfigFile)
	r.epoch++
	r.mu.Unlock()
	metrics.CacheClear(cacheName, "all")
}
