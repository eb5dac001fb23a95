package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/mapperxml"
)

// Target is the element kind a reference attribute points at.
type Target string

const (
	TargetSelect    Target = "select"
	TargetSQL       Target = "sql"
	TargetResultMap Target = "resultMap"
)

func (t Target) problem() diag.ProblemKind {
	if t == TargetResultMap {
		return diag.MissingResultMap
	}
	return diag.MissingSQL
}

// SplitReference splits "namespace.id" at its last dot. Unqualified ids
// return an empty namespace.
func SplitReference(value string) (ns, id string) {
	if i := strings.LastIndexByte(value, '.'); i >= 0 {
		return value[:i], value[i+1:]
	}
	return "", value
}

// ResolveReference checks a reference to a select, sql or resultMap element.
// Unqualified ids are looked up in the scope's document, qualified ones in
// the file bound to their namespace. A select reference is also satisfied by
// a method of the namespace's mapper interface. Values containing property
// placeholders are not checked.
func (e *Engine) ResolveReference(ctx context.Context, s Scope, target Target, value string) Resolution {
	value = strings.TrimSpace(value)
	if value == "" || strings.Contains(value, "$") {
		return Resolution{}
	}
	ns, id := SplitReference(value)
	if ns == "" {
		if target == TargetSelect && s.Namespace != "" && e.hasMethod(ctx, s, s.Namespace, id) {
			return found(value)
		}
		if s.Doc.HasElement(string(target), id) {
			return found(value)
		}
		return notFound(target.problem(), fmt.Sprintf("%s with id='%s' not found.", target, value))
	}

	if target == TargetSelect && e.hasMethod(ctx, s, ns, id) {
		return found(value)
	}
	var doc *mapperxml.Document
	if ns == s.Namespace {
		doc = s.Doc
	} else {
		file, ok := e.caches.Namespaces.Get(ctx, s.Project, ns)
		if !ok {
			return notFound(diag.MissingNamespace, fmt.Sprintf("Namespace='%s' not found.", ns))
		}
		if file == s.File {
			doc = s.Doc
		} else if doc = e.Document(ctx, file); doc == nil {
			return Resolution{}
		}
	}
	if doc.HasElement(string(target), id) {
		return found(value)
	}
	return notFound(target.problem(), fmt.Sprintf("%s with id='%s' not found.", target, value))
}

// hasMethod reports whether the mapper interface declares id. Overloads
// count, as they do for statement ids.
func (e *Engine) hasMethod(ctx context.Context, s Scope, iface, id string) bool {
	return len(e.methods.Find(ctx, s.Project, iface, id, true, true)) > 0
}

// ResolveStatement checks that a statement id names a method of the
// namespace's mapper interface. Namespaces that are not types are not
// checked, and overloaded ids count as found.
func (e *Engine) ResolveStatement(ctx context.Context, s Scope, id string) Resolution {
	id = strings.TrimSpace(id)
	if id == "" || s.Namespace == "" || !e.in.Exists(ctx, s.Project, s.Namespace) {
		return Resolution{}
	}
	sigs := e.methods.Find(ctx, s.Project, s.Namespace, id, true, true)
	if len(sigs) == 0 {
		return notFound(diag.MissingStatementMethod,
			fmt.Sprintf("Method '%s' not found in mapper interface %s", id, s.Namespace))
	}
	return found(sigs[0].ReturnType)
}

// ResolveNamespace checks that ns is bound to a mapper file, as required by
// cache-ref elements.
func (e *Engine) ResolveNamespace(ctx context.Context, s Scope, ns string) Resolution {
	ns = strings.TrimSpace(ns)
	if ns == "" || strings.Contains(ns, "$") {
		return Resolution{}
	}
	if ns == s.Namespace {
		return found(ns)
	}
	if _, ok := e.caches.Namespaces.Get(ctx, s.Project, ns); !ok {
		return notFound(diag.MissingNamespace, fmt.Sprintf("Namespace='%s' not found.", ns))
	}
	return found(ns)
}
