package introspect

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/maraichr/batislens/internal/workspace"
)

// MemType is a type declared to a Memory introspector. Names are qualified.
type MemType struct {
	Name       string
	Super      string
	Interfaces []string
	Interface  bool
	Alias      string
	AliasCalls []string
	File       string
	Methods    []Method
	Properties []Property
}

// Memory is a mutable in-memory TypeIntrospector and Catalog. Types not
// declared to it fall back to the JDK table.
type Memory struct {
	mu    sync.RWMutex
	types map[workspace.Key]map[string]MemType

	propertyCalls atomic.Int64
	methodCalls   atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{types: make(map[workspace.Key]map[string]MemType)}
}

// Put declares or replaces a type.
func (m *Memory) Put(project workspace.Key, t MemType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.types[project] == nil {
		m.types[project] = make(map[string]MemType)
	}
	m.types[project][t.Name] = t
}

func (m *Memory) Remove(project workspace.Key, qname string) {
	m.mu.Lock()
	delete(m.types[project], qname)
	m.mu.Unlock()
}

// PropertyCalls returns how many times DeclaredProperties ran.
func (m *Memory) PropertyCalls() int64 { return m.propertyCalls.Load() }

// MethodCalls returns how many times DeclaredMethods ran.
func (m *Memory) MethodCalls() int64 { return m.methodCalls.Load() }

func (m *Memory) get(project workspace.Key, qname string) (MemType, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[project][Erasure(qname)]
	return t, ok
}

func (m *Memory) Exists(_ context.Context, project workspace.Key, qname string) bool {
	name := Erasure(qname)
	if IsPrimitive(name) || IsJDKType(name) {
		return true
	}
	_, ok := m.get(project, name)
	return ok
}

func (m *Memory) SupertypeChain(_ context.Context, project workspace.Key, qname string) ([]string, error) {
	return m.chain(project, Erasure(qname)), nil
}

func (m *Memory) chain(project workspace.Key, qname string) []string {
	direct := func(q string) []string {
		t, ok := m.get(project, q)
		if !ok {
			return jdkSupertypes[q]
		}
		var out []string
		if t.Super != "" {
			out = append(out, Erasure(t.Super))
		}
		for _, i := range t.Interfaces {
			out = append(out, Erasure(i))
		}
		return out
	}
	var out []string
	seen := map[string]bool{qname: true, ObjectType: true}
	queue := direct(qname)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		queue = append(queue, direct(s)...)
	}
	return out
}

func (m *Memory) DeclaredMethods(_ context.Context, project workspace.Key, qname string) ([]Method, error) {
	m.methodCalls.Add(1)
	t, ok := m.get(project, qname)
	if !ok {
		return nil, nil
	}
	return append([]Method(nil), t.Methods...), nil
}

func (m *Memory) DeclaredProperties(_ context.Context, project workspace.Key, qname string) ([]Property, error) {
	m.propertyCalls.Add(1)
	t, ok := m.get(project, qname)
	if !ok {
		return nil, nil
	}
	return append([]Property(nil), t.Properties...), nil
}

func (m *Memory) summary(project workspace.Key, t MemType) TypeSummary {
	return TypeSummary{
		QualifiedName: t.Name,
		SimpleName:    SimpleName(t.Name),
		Package:       PackageOf(t.Name),
		Interface:     t.Interface,
		Alias:         t.Alias,
		Supertypes:    m.chain(project, t.Name),
		AliasCalls:    t.AliasCalls,
		File:          workspace.File{Project: project, Path: t.File},
	}
}

func (m *Memory) all(project workspace.Key, keep func(MemType) bool) []TypeSummary {
	m.mu.RLock()
	var picked []MemType
	for _, t := range m.types[project] {
		if keep(t) {
			picked = append(picked, t)
		}
	}
	m.mu.RUnlock()
	out := make([]TypeSummary, 0, len(picked))
	for _, t := range picked {
		out = append(out, m.summary(project, t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out
}

func (m *Memory) TypesInPackage(_ context.Context, project workspace.Key, pkg string) ([]TypeSummary, error) {
	return m.all(project, func(t MemType) bool { return PackageOf(t.Name) == pkg }), nil
}

func (m *Memory) TypesInFile(_ context.Context, file workspace.File) ([]TypeSummary, error) {
	return m.all(file.Project, func(t MemType) bool { return t.File != "" && t.File == file.Path }), nil
}

func (m *Memory) SearchTypes(_ context.Context, project workspace.Key, prefix string, limit int) ([]TypeSummary, error) {
	lower := strings.ToLower(prefix)
	qualified := strings.Contains(prefix, ".")
	out := m.all(project, func(t MemType) bool {
		name := SimpleName(t.Name)
		if qualified {
			name = t.Name
		}
		return strings.HasPrefix(strings.ToLower(name), lower)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) FileOf(_ context.Context, project workspace.Key, qname string) (workspace.File, bool) {
	t, ok := m.get(project, qname)
	if !ok || t.File == "" {
		return workspace.File{}, false
	}
	return workspace.File{Project: project, Path: t.File}, true
}
