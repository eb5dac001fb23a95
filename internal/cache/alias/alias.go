// Package alias maps short type aliases to qualified type names, per project.
package alias

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/metrics"
	"github.com/maraichr/batislens/internal/workspace"
)

const cacheName = "alias"

// Declared is what a Loader finds for one project.
type Declared struct {
	Aliases  map[string]string // alias -> qualified name
	Packages []string          // alias-managed packages
	// Pinned lists aliases declared by name in config files or module
	// classes. Source edits of the aliased type never re-derive them.
	Pinned []string
}

// Loader discovers a project's declared aliases.
type Loader interface {
	Load(ctx context.Context, project workspace.Key) (Declared, error)
}

// Table is the per-project alias table. A project is loaded on its first
// lookup; entries registered before the load win over loaded ones.
type Table struct {
	loader Loader
	logger *slog.Logger

	group    singleflight.Group
	mu       sync.RWMutex
	epoch    uint64
	projects map[workspace.Key]*projectAliases
}

type projectAliases struct {
	loaded   bool
	aliases  map[string]string
	packages map[string]bool
	pinned   map[string]bool
}

func newProjectAliases() *projectAliases {
	return &projectAliases{
		aliases:  make(map[string]string),
		packages: make(map[string]bool),
		pinned:   make(map[string]bool),
	}
}

// New returns a Table. loader may be nil, in which case only registered
// aliases are known.
func New(loader Loader, logger *slog.Logger) *Table {
	return &Table{loader: loader, logger: logger, projects: make(map[workspace.Key]*projectAliases)}
}

// Resolve returns the qualified name registered for alias. Absence is not an
// error; callers then try the name verbatim.
func (t *Table) Resolve(ctx context.Context, project workspace.Key, alias string) (string, bool) {
	t.ensureLoaded(ctx, project)
	t.mu.RLock()
	defer t.mu.RUnlock()
	pa := t.projects[project]
	if pa == nil {
		metrics.CacheMiss(cacheName)
		return "", false
	}
	q, ok := pa.aliases[alias]
	if ok {
		metrics.CacheHit(cacheName)
	} else {
		metrics.CacheMiss(cacheName)
	}
	return q, ok
}

// Register upserts alias -> qname. Registering the same pair again is a no-op.
func (t *Table) Register(project workspace.Key, qname, alias string) {
	if alias == "" || qname == "" {
		return
	}
	t.mu.Lock()
	pa := t.projects[project]
	if pa == nil {
		pa = newProjectAliases()
		t.projects[project] = pa
	}
	pa.aliases[alias] = qname
	t.mu.Unlock()
}

// RemoveType drops every alias pointing at qname.
func (t *Table) RemoveType(project workspace.Key, qname string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pa := t.projects[project]
	if pa == nil {
		return
	}
	for a, q := range pa.aliases {
		if q == qname {
			delete(pa.aliases, a)
		}
	}
	metrics.CacheClear(cacheName, "entry")
}

// ReplaceType re-derives the alias of qname after its declaring source
// changed. Aliases pointing at qname are dropped unless pinned, then alias is
// registered unless a pinned alias already owns that name. An empty alias
// only drops.
func (t *Table) ReplaceType(project workspace.Key, qname, alias string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pa := t.projects[project]
	if pa == nil {
		pa = newProjectAliases()
		t.projects[project] = pa
	}
	for a, q := range pa.aliases {
		if q == qname && !pa.pinned[a] {
			delete(pa.aliases, a)
		}
	}
	if alias != "" && !pa.pinned[alias] {
		pa.aliases[alias] = qname
	}
	metrics.CacheClear(cacheName, "entry")
}

// Clear wipes one project. The next lookup reloads it.
func (t *Table) Clear(project workspace.Key) {
	t.mu.Lock()
	delete(t.projects, project)
	t.epoch++
	t.mu.Unlock()
	metrics.CacheClear(cacheName, "project")
}

// ClearAll wipes every project.
func (t *Table) ClearAll() {
	t.mu.Lock()
	t.projects = make(map[workspace.Key]*projectAliases)
	t.epoch++
	t.mu.Unlock()
	metrics.CacheClear(cacheName, "all")
}

// IsInPackage reports whether qname lives in an alias-managed package.
func (t *Table) IsInPackage(ctx context.Context, project workspace.Key, qname string) bool {
	t.ensureLoaded(ctx, project)
	pkg := introspect.PackageOf(qname)
	t.mu.RLock()
	defer t.mu.RUnlock()
	pa := t.projects[project]
	return pa != nil && pa.packages[pkg]
}

// Aliases returns a sorted snapshot of a project's aliases.
func (t *Table) Aliases(ctx context.Context, project workspace.Key) []Entry {
	t.ensureLoaded(ctx, project)
	t.mu.RLock()
	defer t.mu.RUnlock()
	pa := t.projects[project]
	if pa == nil {
		return nil
	}
	out := make([]Entry, 0, len(pa.aliases))
	for a, q := range pa.aliases {
		out = append(out, Entry{Alias: a, Type: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

type Entry struct {
	Alias string `json:"alias"`
	Type  string `json:"type"`
}

// ensureLoaded runs the loader once per project and epoch. No lock is held
// while the loader runs. Loader failures leave the project unloaded so the
// next lookup retries.
func (t *Table) ensureLoaded(ctx context.Context, project workspace.Key) {
	if t.loader == nil {
		return
	}
	t.mu.RLock()
	pa := t.projects[project]
	epoch := t.epoch
	t.mu.RUnlock()
	if pa != nil && pa.loaded {
		return
	}

	v, err, _ := t.group.Do(fmt.Sprintf("%s@%d", project, epoch), func() (any, error) {
		return t.loader.Load(ctx, project)
	})
	if err != nil {
		t.logger.Warn("load aliases", slog.String("project", string(project)), slog.String("error", err.Error()))
		return
	}
	decl := v.(Declared)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		return
	}
	pa = t.projects[project]
	if pa == nil {
		pa = newProjectAliases()
		t.projects[project] = pa
	}
	if pa.loaded {
		return
	}
	for a, q := range decl.Aliases {
		if _, exists := pa.aliases[a]; !exists {
			pa.aliases[a] = q
		}
	}
	for _, p := range decl.Packages {
		pa.packages[p] = true
	}
	for _, a := range decl.Pinned {
		if pa.aliases[a] == decl.Aliases[a] {
			pa.pinned[a] = true
		}
	}
	pa.loaded = true
}
