package resolver

import (
	"context"

	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/mapperxml"
	"github.com/maraichr/batislens/internal/workspace"
)

// Var is a name introduced inside a statement by foreach or bind. An empty
// Type means the type is unknown and references through it are not checked.
type Var struct {
	Name string
	Type string
}

// Scope is the resolution context at one position of a mapper file. It is a
// value: the With* methods return modified copies and never touch the
// receiver.
type Scope struct {
	Project   workspace.Key
	File      workspace.File
	Doc       *mapperxml.Document
	Namespace string

	// Statement is the id of the enclosing statement, ParameterType its
	// parameterType attribute.
	Statement     string
	ParameterType string

	vars []Var
}

// NewScope returns the file-level scope of doc.
func NewScope(file workspace.File, doc *mapperxml.Document) Scope {
	return Scope{Project: file.Project, File: file, Doc: doc, Namespace: doc.Namespace()}
}

func (s Scope) WithStatement(id, parameterType string) Scope {
	s.Statement = id
	s.ParameterType = parameterType
	s.vars = nil
	return s
}

func (s Scope) WithVars(vars ...Var) Scope {
	merged := make([]Var, 0, len(s.vars)+len(vars))
	merged = append(merged, s.vars...)
	for _, v := range vars {
		if v.Name != "" {
			merged = append(merged, v)
		}
	}
	s.vars = merged
	return s
}

// Lookup finds the innermost variable called name.
func (s Scope) Lookup(name string) (Var, bool) {
	for i := len(s.vars) - 1; i >= 0; i-- {
		if s.vars[i].Name == name {
			return s.vars[i], true
		}
	}
	return Var{}, false
}

func (s Scope) Vars() []Var {
	return append([]Var(nil), s.vars...)
}

// Enter returns the scope that applies to the content of el: statements
// start a fresh parameter context and foreach introduces its item and
// index variables. The foreach collection is resolved in s.
func (e *Engine) Enter(ctx context.Context, s Scope, el *mapperxml.Element) Scope {
	switch {
	case mapperxml.IsStatementTag(el.Name):
		return s.WithStatement(el.AttrValue("id"), el.AttrValue("parameterType"))
	case el.Name == "foreach":
		item, index := el.AttrValue("item"), el.AttrValue("index")
		if item == "" && index == "" {
			return s
		}
		itemType, indexType := e.loopTypes(ctx, s, el.AttrValue("collection"))
		return s.WithVars(Var{Name: item, Type: itemType}, Var{Name: index, Type: indexType})
	}
	return s
}

// loopTypes returns the element and index types of iterating over the
// collection expression. Unknown types are returned empty.
func (e *Engine) loopTypes(ctx context.Context, s Scope, collection string) (item, index string) {
	if collection == "" {
		return "", ""
	}
	r := e.ResolveParameter(ctx, s, collection)
	if r.Outcome != Found {
		return "", ""
	}
	if introspect.AssignableTo(ctx, e.in, s.Project, r.Type, introspect.MapType) {
		if args := introspect.TypeArgs(r.Type); len(args) == 2 {
			return args[1], args[0]
		}
		return "", ""
	}
	if elem, ok := introspect.ElementType(r.Type); ok {
		return elem, "int"
	}
	return "", "int"
}

// ScopeAt returns the scope that applies to the attributes of el, built by
// entering every strict ancestor from the root down.
func (e *Engine) ScopeAt(ctx context.Context, file workspace.File, doc *mapperxml.Document, el *mapperxml.Element) Scope {
	s := NewScope(file, doc)
	if el == nil {
		return s
	}
	var chain []*mapperxml.Element
	for p := el.Parent; p != nil; p = p.Parent {
		chain = append(chain, p)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		s = e.Enter(ctx, s, chain[i])
		s = e.withBinds(s, chain[i], el)
	}
	return s
}

// withBinds adds the bind elements among the children of parent that
// precede the position of target.
func (e *Engine) withBinds(s Scope, parent, target *mapperxml.Element) Scope {
	for _, c := range parent.Children {
		if c.Start >= target.Start {
			break
		}
		if c.Name == "bind" {
			s = s.WithVars(Var{Name: c.AttrValue("name")})
		}
	}
	return s
}
