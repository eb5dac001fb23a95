// Package resolver answers reference and candidate queries for mapper files
// by reading through the project caches.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/maraichr/batislens/internal/cache"
	"github.com/maraichr/batislens/internal/cache/alias"
	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/mapper"
	"github.com/maraichr/batislens/internal/mapperxml"
	"github.com/maraichr/batislens/internal/workspace"
)

// Engine is the resolution façade. It never writes to a cache except
// through the lazy population the caches perform on a miss.
type Engine struct {
	ws      *workspace.Workspace
	in      introspect.TypeIntrospector
	catalog introspect.Catalog
	caches  *cache.Set
	methods *mapper.Matcher
	logger  *slog.Logger
}

// NewEngine builds an Engine. catalog may be nil, which disables type and
// namespace candidates.
func NewEngine(ws *workspace.Workspace, in introspect.TypeIntrospector, catalog introspect.Catalog, caches *cache.Set, logger *slog.Logger) *Engine {
	return &Engine{
		ws:      ws,
		in:      in,
		catalog: catalog,
		caches:  caches,
		methods: mapper.NewMatcher(in, logger),
		logger:  logger,
	}
}

func (e *Engine) Workspace() *workspace.Workspace { return e.ws }

func (e *Engine) Caches() *cache.Set { return e.caches }

func (e *Engine) Methods() *mapper.Matcher { return e.methods }

// Outcome is the result class of a resolution.
type Outcome int

const (
	// Skipped means the reference could not be checked, for example because
	// the statement's method is ambiguous or the value is dynamic.
	Skipped Outcome = iota
	Found
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "skipped"
	}
}

// Resolution is the answer to a single reference. Problem and Message are
// set only for NotFound.
type Resolution struct {
	Outcome Outcome
	Type    string
	Problem diag.ProblemKind
	Message string
}

func found(typ string) Resolution { return Resolution{Outcome: Found, Type: typ} }

func notFound(kind diag.ProblemKind, msg string) Resolution {
	return Resolution{Outcome: NotFound, Problem: kind, Message: msg}
}

// TypeRef is a resolved type attribute.
type TypeRef struct {
	Raw       string `json:"raw"`
	Qualified string `json:"qualified,omitempty"`
	// Builtin is set for default aliases of the mapping runtime.
	Builtin bool `json:"builtin"`
	// Alias is set when the name was found in the project's alias table.
	Alias bool `json:"alias"`
	Found bool `json:"found"`
}

// NormalizeTypeName trims a raw type attribute and converts binary nested
// type names to canonical ones.
func NormalizeTypeName(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "$", ".")
}

// ResolveType resolves a type attribute: default aliases first, then the
// project's alias table, then the name verbatim through the introspector.
func (e *Engine) ResolveType(ctx context.Context, project workspace.Key, raw string) TypeRef {
	ref := TypeRef{Raw: raw}
	name := NormalizeTypeName(raw)
	if name == "" {
		return ref
	}
	if q, ok := alias.Builtin(name); ok {
		ref.Qualified, ref.Builtin, ref.Found = q, true, true
		return ref
	}
	if q, ok := e.caches.Aliases.Resolve(ctx, project, name); ok {
		ref.Qualified, ref.Alias, ref.Found = q, true, true
		return ref
	}
	if e.in.Exists(ctx, project, introspect.Erasure(name)) {
		ref.Qualified, ref.Found = name, true
	}
	return ref
}

// Document reads and parses a mapper file. A partially parsed document is
// returned with the parse error logged; nil means the file is unreadable.
func (e *Engine) Document(ctx context.Context, file workspace.File) *mapperxml.Document {
	content, err := e.ws.Read(ctx, file)
	if err != nil {
		e.logger.Warn("read mapper", slog.String("file", file.String()), slog.String("error", err.Error()))
		return nil
	}
	doc, err := mapperxml.Parse(content)
	if err != nil {
		e.logger.Debug("mapper parsed partially", slog.String("file", file.String()), slog.String("error", err.Error()))
	}
	return doc
}
