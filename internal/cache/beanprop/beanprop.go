// Package beanprop caches the bean properties of host-language types, per
// project, and answers prefix and nested-path searches over them.
package beanprop

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/metrics"
	"github.com/maraichr/batislens/internal/workspace"
)

const cacheName = "beanprop"

// Info is the property snapshot of one type including its supertypes.
// The maps are shared and must not be modified.
type Info struct {
	Readable map[string]string // name -> declared type
	Writable map[string]string
	// Dynamic is set for types assignable to the map type: any property
	// name is accepted.
	Dynamic bool
}

type entry struct {
	info Info
	deps []string // the type and its supertypes
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Index memoizes Info per (project, type). Searches are computed from the
// memoized snapshots, so clearing a type also refreshes every nested search
// that passed through it.
type Index struct {
	in     introspect.TypeIntrospector
	logger *slog.Logger

	group    singleflight.Group
	mu       sync.RWMutex
	epoch    uint64
	projects map[workspace.Key]*shard
}

func New(in introspect.TypeIntrospector, logger *slog.Logger) *Index {
	return &Index{in: in, logger: logger, projects: make(map[workspace.Key]*shard)}
}

func (x *Index) shard(project workspace.Key, create bool) *shard {
	x.mu.RLock()
	s := x.projects[project]
	x.mu.RUnlock()
	if s != nil || !create {
		return s
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if s = x.projects[project]; s == nil {
		s = &shard{entries: make(map[string]*entry)}
		x.projects[project] = s
	}
	return s
}

// Info returns the full property snapshot of qname. Introspection failures
// yield an empty, uncached snapshot.
func (x *Index) Info(ctx context.Context, project workspace.Key, qname string) Info {
	key := introspect.Erasure(qname)
	if s := x.shard(project, false); s != nil {
		s.mu.RLock()
		e := s.entries[key]
		s.mu.RUnlock()
		if e != nil {
			metrics.CacheHit(cacheName)
			return e.info
		}
	}
	metrics.CacheMiss(cacheName)

	x.mu.RLock()
	epoch := x.epoch
	x.mu.RUnlock()

	v, err, _ := x.group.Do(fmt.Sprintf("%s|%s@%d", project, key, epoch), func() (any, error) {
		return x.compute(ctx, project, key)
	})
	if err != nil {
		x.logger.Warn("introspect properties",
			slog.String("project", string(project)),
			slog.String("type", key),
			slog.String("error", err.Error()))
		return Info{Readable: map[string]string{}, Writable: map[string]string{}}
	}
	e := v.(*entry)

	// The epoch is checked under the shard lock so a concurrent Clear either
	// rejects this result or deletes it after insertion.
	s := x.shard(project, true)
	s.mu.Lock()
	x.mu.RLock()
	current := x.epoch == epoch
	x.mu.RUnlock()
	if _, exists := s.entries[key]; current && !exists {
		s.entries[key] = e
	}
	s.mu.Unlock()
	return e.info
}

// compute runs without any lock held.
func (x *Index) compute(ctx context.Context, project workspace.Key, qname string) (*entry, error) {
	chain, err := x.in.SupertypeChain(ctx, project, qname)
	if err != nil {
		return nil, err
	}
	e := &entry{
		info: Info{Readable: map[string]string{}, Writable: map[string]string{}},
		deps: append([]string{qname}, chain...),
	}
	for _, t := range e.deps {
		if introspect.Erasure(t) == introspect.MapType {
			e.info.Dynamic = true
			return e, nil
		}
	}
	// nearest declaration wins
	for _, t := range e.deps {
		props, err := x.in.DeclaredProperties(ctx, project, t)
		if err != nil {
			return nil, err
		}
		for _, p := range props {
			if p.Readable {
				if _, ok := e.info.Readable[p.Name]; !ok {
					e.info.Readable[p.Name] = p.Type
				}
			}
			if p.Writable {
				if _, ok := e.info.Writable[p.Name]; !ok {
					e.info.Writable[p.Name] = p.Type
				}
			}
		}
	}
	return e, nil
}

// IsDynamic reports whether qname is assignable to the map type.
func (x *Index) IsDynamic(ctx context.Context, project workspace.Key, qname string) bool {
	return x.Info(ctx, project, qname).Dynamic
}

type SearchOptions struct {
	// Writable searches setters and writable fields of the last segment
	// instead of readable ones.
	Writable bool
	// Limit caps the number of results; zero or negative means no limit.
	Limit int
	// Nested resolves a dotted path segment by segment.
	Nested bool
	// Exact matches the last segment by equality instead of by prefix.
	Exact bool
}

// SearchFields returns the properties of qname whose names start with the
// last segment of path, keyed by simple name. With Nested set, the leading
// segments are resolved first through readable properties; an unresolvable
// segment yields an empty result. Index suffixes such as "[0]" are stripped,
// and an indexed segment continues with its element type.
func (x *Index) SearchFields(ctx context.Context, project workspace.Key, qname, path string, opts SearchOptions) map[string]string {
	result := map[string]string{}
	typ := qname
	last := path
	if opts.Nested {
		segs := strings.Split(path, ".")
		last = segs[len(segs)-1]
		for _, seg := range segs[:len(segs)-1] {
			info := x.Info(ctx, project, typ)
			if info.Dynamic {
				return dynamicResult(last)
			}
			name, indexed := StripIndex(seg)
			next, ok := info.Readable[name]
			if !ok {
				return result
			}
			if indexed {
				if elem, ok := introspect.ElementType(next); ok {
					next = elem
				}
			}
			typ = next
		}
	}

	info := x.Info(ctx, project, typ)
	if info.Dynamic {
		return dynamicResult(last)
	}
	name, indexed := StripIndex(last)
	props := info.Readable
	if opts.Writable {
		props = info.Writable
	}

	names := make([]string, 0, len(props))
	for n := range props {
		if (opts.Exact && n == name) || (!opts.Exact && strings.HasPrefix(n, name)) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	if opts.Limit > 0 && len(names) > opts.Limit {
		names = names[:opts.Limit]
	}
	for _, n := range names {
		t := props[n]
		if indexed && n == name {
			if elem, ok := introspect.ElementType(t); ok {
				t = elem
			}
		}
		result[n] = t
	}
	return result
}

// ResolvePath returns the type of the property path on qname, or false when
// some segment does not resolve.
func (x *Index) ResolvePath(ctx context.Context, project workspace.Key, qname, path string, writable bool) (string, bool) {
	fields := x.SearchFields(ctx, project, qname, path, SearchOptions{Writable: writable, Nested: true, Exact: true})
	segs := strings.Split(path, ".")
	name, _ := StripIndex(segs[len(segs)-1])
	t, ok := fields[name]
	return t, ok
}

func dynamicResult(last string) map[string]string {
	name, _ := StripIndex(last)
	if name == "" {
		return map[string]string{}
	}
	return map[string]string{name: introspect.ObjectType}
}

// StripIndex removes a trailing "[...]" index and reports whether one was
// present.
func StripIndex(seg string) (string, bool) {
	if i := strings.IndexByte(seg, '['); i >= 0 && strings.HasSuffix(seg, "]") {
		return seg[:i], true
	}
	return seg, false
}

// Clear drops the snapshot of qname and of every type that inherits from it.
func (x *Index) Clear(project workspace.Key, qname string) {
	key := introspect.Erasure(qname)
	x.mu.Lock()
	x.epoch++
	s := x.projects[project]
	x.mu.Unlock()
	if s != nil {
		s.mu.Lock()
		for t, e := range s.entries {
			for _, d := range e.deps {
				if introspect.Erasure(d) == key {
					delete(s.entries, t)
					break
				}
			}
		}
		s.mu.Unlock()
	}
	metrics.CacheClear(cacheName, "entry")
}

func (x *Index) ClearProject(project workspace.Key) {
	x.mu.Lock()
	x.epoch++
	delete(x.projects, project)
	x.mu.Unlock()
	metrics.CacheClear(cacheName, "project")
}

func (x *Index) ClearAll() {
	x.mu.Lock()
	x.epoch++
	x.projects = make(map[workspace.Key]*shard)
	x.mu.Unlock()
	metrics.CacheClear(cacheName, "all")
}
