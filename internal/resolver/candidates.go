package resolver

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/maraichr/batislens/internal/cache/alias"
	"github.com/maraichr/batislens/internal/cache/beanprop"
	"github.com/maraichr/batislens/internal/mapper"
	"github.com/maraichr/batislens/internal/workspace"
)

// CandidateKind tells where a type candidate came from.
type CandidateKind int

const (
	CandidateAlias CandidateKind = iota
	CandidateBuiltin
	CandidateType
)

// TypeCandidate is a completion candidate for a type attribute. Name is
// what gets inserted.
type TypeCandidate struct {
	Name      string
	Qualified string
	Kind      CandidateKind
}

// TypeCandidates lists aliases, default aliases and declared types whose
// names start with prefix, case-insensitively. A qualified prefix only
// matches declared types.
func (e *Engine) TypeCandidates(ctx context.Context, project workspace.Key, prefix string, limit int) []TypeCandidate {
	lower := strings.ToLower(prefix)
	var out []TypeCandidate
	if !strings.Contains(prefix, ".") {
		for _, a := range e.caches.Aliases.Aliases(ctx, project) {
			if strings.HasPrefix(strings.ToLower(a.Alias), lower) {
				out = append(out, TypeCandidate{Name: a.Alias, Qualified: a.Type, Kind: CandidateAlias})
			}
		}
		names := alias.BuiltinNames()
		sort.Strings(names)
		for _, n := range names {
			if strings.HasPrefix(n, lower) {
				q, _ := alias.Builtin(n)
				out = append(out, TypeCandidate{Name: n, Qualified: q, Kind: CandidateBuiltin})
			}
		}
	}
	if e.catalog != nil {
		types, err := e.catalog.SearchTypes(ctx, project, prefix, limit)
		if err != nil {
			e.logger.Warn("search types", slog.String("prefix", prefix), slog.String("error", err.Error()))
		}
		for _, t := range types {
			out = append(out, TypeCandidate{Name: t.QualifiedName, Qualified: t.QualifiedName, Kind: CandidateType})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ParameterCandidates lists what may follow prefix in a parameter
// expression of the scope's statement: variables and parameter names for a
// bare prefix, properties of the resolved head for a dotted one. The map
// holds name -> type.
func (e *Engine) ParameterCandidates(ctx context.Context, s Scope, prefix string) map[string]string {
	out := map[string]string{}
	if i := strings.LastIndexByte(prefix, '.'); i >= 0 {
		r := e.ResolveParameter(ctx, s, prefix[:i])
		if r.Outcome != Found {
			return out
		}
		return e.propertiesOf(ctx, s.Project, r.Type, prefix[i+1:], false)
	}

	for _, v := range s.vars {
		if strings.HasPrefix(v.Name, prefix) {
			out[v.Name] = v.Type
		}
	}
	if _, shadowed := out[DatabaseIDName]; !shadowed && strings.HasPrefix(DatabaseIDName, prefix) {
		out[DatabaseIDName] = "java.lang.String"
	}
	p := e.StatementParams(ctx, s)
	if p.Match == Missing {
		return out
	}
	if _, shadowed := out[ParameterObjectName]; !shadowed && strings.HasPrefix(ParameterObjectName, prefix) {
		out[ParameterObjectName] = p.ParameterObject()
	}
	for n, t := range p.Types {
		if _, shadowed := out[n]; !shadowed && strings.HasPrefix(n, prefix) {
			out[n] = t
		}
	}
	if p.Kind == mapper.Implicit && len(p.Types) == 0 && !isSimpleType(p.Implicit) {
		for n, t := range e.propertiesOf(ctx, s.Project, p.Implicit, prefix, false) {
			if _, shadowed := out[n]; !shadowed {
				out[n] = t
			}
		}
	}
	return out
}

// PropertyCandidates lists the properties of a raw type attribute value
// that start with the last segment of prefix, resolving leading segments.
func (e *Engine) PropertyCandidates(ctx context.Context, project workspace.Key, rawType, prefix string, writable bool) map[string]string {
	ref := e.ResolveType(ctx, project, rawType)
	if !ref.Found || ref.Builtin {
		return map[string]string{}
	}
	return e.propertiesOf(ctx, project, ref.Qualified, prefix, writable)
}

func (e *Engine) propertiesOf(ctx context.Context, project workspace.Key, typ, prefix string, writable bool) map[string]string {
	props := e.caches.Properties
	if props.IsDynamic(ctx, project, typ) {
		return map[string]string{}
	}
	return props.SearchFields(ctx, project, typ, prefix, beanprop.SearchOptions{Writable: writable, Nested: true})
}

// Info exposes the full property snapshot of a type attribute value.
func (e *Engine) Info(ctx context.Context, project workspace.Key, rawType string) (beanprop.Info, bool) {
	ref := e.ResolveType(ctx, project, rawType)
	if !ref.Found || ref.Builtin {
		return beanprop.Info{}, false
	}
	return e.caches.Properties.Info(ctx, project, ref.Qualified), true
}

// StatementCandidates lists the mapper methods of the scope's namespace
// whose names start with prefix, one per name.
func (e *Engine) StatementCandidates(ctx context.Context, s Scope, prefix string) []mapper.Signature {
	if s.Namespace == "" {
		return nil
	}
	return e.methods.Find(ctx, s.Project, s.Namespace, prefix, false, false)
}

// ReferenceCandidates lists ids of target elements: unqualified ids from
// the scope's document, then "namespace.id" for every other bound mapper
// file. For select targets the namespace's mapper methods are included.
func (e *Engine) ReferenceCandidates(ctx context.Context, s Scope, target Target, prefix string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		if !seen[v] && strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) {
			seen[v] = true
			out = append(out, v)
		}
	}
	if s.Doc != nil {
		for _, id := range s.Doc.IDs(string(target)) {
			add(id)
		}
	}
	if target == TargetSelect {
		for _, sig := range e.StatementCandidates(ctx, s, "") {
			add(sig.Name)
		}
	}
	for _, b := range e.caches.Namespaces.Bindings(ctx, s.Project) {
		if b.File == s.File || b.Namespace == s.Namespace {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(b.Namespace+"."), strings.ToLower(prefix)) &&
			!strings.HasPrefix(strings.ToLower(prefix), strings.ToLower(b.Namespace+".")) {
			continue
		}
		doc := e.Document(ctx, b.File)
		if doc == nil {
			continue
		}
		for _, id := range doc.IDs(string(target)) {
			add(b.Namespace + "." + id)
		}
	}
	return out
}

// NamespaceCandidates lists the declared interfaces whose simple name equals
// the base name of file, the usual pairing of a mapper file and its
// interface.
func (e *Engine) NamespaceCandidates(ctx context.Context, file workspace.File) []string {
	if e.catalog == nil {
		return nil
	}
	base := strings.TrimSuffix(path.Base(file.Path), path.Ext(file.Path))
	types, err := e.catalog.SearchTypes(ctx, file.Project, base, 0)
	if err != nil {
		e.logger.Warn("search types", slog.String("prefix", base), slog.String("error", err.Error()))
		return nil
	}
	var out []string
	for _, t := range types {
		if t.Interface && t.SimpleName == base {
			out = append(out, t.QualifiedName)
		}
	}
	return out
}

// PackageCandidates lists the packages of declared types that start with
// prefix.
func (e *Engine) PackageCandidates(ctx context.Context, project workspace.Key, prefix string) []string {
	if e.catalog == nil {
		return nil
	}
	types, err := e.catalog.SearchTypes(ctx, project, "", 0)
	if err != nil {
		e.logger.Warn("list types", slog.String("project", string(project)), slog.String("error", err.Error()))
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range types {
		pkg := t.Package
		if pkg != "" && !seen[pkg] && strings.HasPrefix(pkg, prefix) {
			seen[pkg] = true
			out = append(out, pkg)
		}
	}
	sort.Strings(out)
	return out
}
