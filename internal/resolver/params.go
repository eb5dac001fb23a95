package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/maraichr/batislens/internal/cache/beanprop"
	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/mapper"
)

// Match is how many mapper methods a statement id matched.
type Match int

const (
	Missing Match = iota
	Unique
	Ambiguous
)

// Names every statement may use besides its own parameters.
const (
	ParameterObjectName = "_parameter"
	DatabaseIDName      = "_databaseId"
)

// Params is the parameter context of a statement.
type Params struct {
	Match Match
	Kind  mapper.BindingKind
	// Implicit is the type of the single implicit parameter.
	Implicit string
	// Types maps binding names to types. An implicit parameter has entries
	// only when it is a collection or array the runtime wraps.
	Types map[string]string
	// Method is "namespace.id", used in messages.
	Method string
}

// StatementParams computes the parameter context of the scope's statement.
// An explicit parameterType wins over the mapper method. For an ambiguous
// id the first candidate's shape is returned with Match set to Ambiguous.
func (e *Engine) StatementParams(ctx context.Context, s Scope) Params {
	p := Params{Method: s.Namespace + "." + s.Statement}
	if s.ParameterType != "" {
		ref := e.ResolveType(ctx, s.Project, s.ParameterType)
		if !ref.Found {
			return p
		}
		p.Match, p.Kind, p.Implicit = Unique, mapper.Implicit, ref.Qualified
		p.Types = wrapped(ref.Qualified, "")
		return p
	}
	if s.Namespace == "" || s.Statement == "" {
		return p
	}
	sigs := e.methods.Find(ctx, s.Project, s.Namespace, s.Statement, true, true)
	switch len(sigs) {
	case 0:
		return p
	case 1:
		p.Match = Unique
	default:
		p.Match = Ambiguous
	}
	sig := sigs[0]
	p.Kind = sig.Kind
	if t, ok := sig.ImplicitType(); ok {
		p.Implicit = t
		p.Types = wrapped(t, sig.Params[0].Name)
	} else {
		p.Types = sig.ParamMap()
	}
	return p
}

// ParameterObject returns the type of the object the runtime passes to the
// statement: the implicit parameter itself, or a map wrapping named and
// collection parameters.
func (p Params) ParameterObject() string {
	if p.Kind == mapper.Implicit && len(p.Types) == 0 {
		return p.Implicit
	}
	return introspect.MapType
}

// wrapped returns the names a single collection or array parameter is
// reachable under, including its declared name. Other single parameters
// are not wrapped: their properties are referenced directly.
func wrapped(typ, declared string) map[string]string {
	out := map[string]string{}
	erased := introspect.Erasure(typ)
	switch {
	case strings.HasSuffix(strings.TrimSpace(typ), "[]"):
		out["array"] = typ
	case erased == "java.util.List" || erased == "java.util.ArrayList" || erased == "java.util.LinkedList":
		out["list"] = typ
		out["collection"] = typ
	case erased == "java.util.Collection" || erased == "java.util.Set" || erased == "java.util.HashSet":
		out["collection"] = typ
	default:
		return out
	}
	if declared != "" {
		out[declared] = typ
	}
	return out
}

// simpleTypes are single-value parameter types: a statement taking one of
// them may refer to the value under any name.
var simpleTypes = map[string]bool{
	"java.util.Date":     true,
	"java.util.UUID":     true,
	"java.util.Calendar": true,
}

func isSimpleType(t string) bool {
	t = introspect.Erasure(t)
	if introspect.IsPrimitive(t) || simpleTypes[t] {
		return true
	}
	for _, pkg := range []string{"java.lang.", "java.math.", "java.time.", "java.sql."} {
		if strings.HasPrefix(t, pkg) && !strings.Contains(t[len(pkg):], ".") {
			return t != introspect.ObjectType
		}
	}
	return false
}

func splitHead(path string) (head, rest string) {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

// ResolveParameter resolves a parameter expression such as "user.name" or
// "ids[0]" used inside a statement. Loop and bind variables shadow method
// parameters. An ambiguous or missing statement method skips the check.
func (e *Engine) ResolveParameter(ctx context.Context, s Scope, expr string) Resolution {
	path := strings.TrimSpace(expr)
	if path == "" || strings.ContainsAny(path, "$(") {
		return Resolution{}
	}
	head, rest := splitHead(path)
	name, indexed := beanprop.StripIndex(head)

	if v, ok := s.Lookup(name); ok {
		if v.Type == "" {
			return Resolution{}
		}
		return e.resolveIn(ctx, s, v.Type, indexed, rest)
	}

	if name == DatabaseIDName {
		return e.resolveIn(ctx, s, "java.lang.String", false, rest)
	}

	p := e.StatementParams(ctx, s)
	if p.Match != Unique {
		return Resolution{}
	}
	if name == ParameterObjectName {
		return e.resolveIn(ctx, s, p.ParameterObject(), indexed, rest)
	}
	switch p.Kind {
	case mapper.Implicit:
		if t, ok := p.Types[name]; ok {
			return e.resolveIn(ctx, s, t, indexed, rest)
		}
		if rest == "" && !indexed && isSimpleType(p.Implicit) {
			return found(p.Implicit)
		}
		if e.caches.Properties.IsDynamic(ctx, s.Project, p.Implicit) {
			return found(introspect.ObjectType)
		}
		if t, ok := e.caches.Properties.ResolvePath(ctx, s.Project, p.Implicit, path, false); ok {
			return found(t)
		}
		return notFound(diag.MissingType, fmt.Sprintf("Property '%s' not found in class %s", path, introspect.Erasure(p.Implicit)))
	case mapper.Named:
		t, ok := p.Types[name]
		if !ok {
			return notFound(diag.MissingType, fmt.Sprintf("Parameter '%s' not found as @Param in method %s", name, p.Method))
		}
		return e.resolveIn(ctx, s, t, indexed, rest)
	}
	return Resolution{}
}

// resolveIn resolves rest against typ, taking the element type first when
// the head segment was indexed.
func (e *Engine) resolveIn(ctx context.Context, s Scope, typ string, indexed bool, rest string) Resolution {
	if indexed {
		if elem, ok := introspect.ElementType(typ); ok {
			typ = elem
		}
	}
	if rest == "" {
		return found(typ)
	}
	if e.caches.Properties.IsDynamic(ctx, s.Project, typ) {
		return found(introspect.ObjectType)
	}
	if t, ok := e.caches.Properties.ResolvePath(ctx, s.Project, typ, rest, false); ok {
		return found(t)
	}
	return notFound(diag.MissingType, fmt.Sprintf("Property '%s' not found in class %s", rest, introspect.Erasure(typ)))
}

// ResolveResultProperty resolves the property attribute of a result
// mapping against the raw type of its enclosing mapping element. Unknown
// and default-alias types are not checked.
func (e *Engine) ResolveResultProperty(ctx context.Context, s Scope, rawType, path string) Resolution {
	path = strings.TrimSpace(path)
	if rawType == "" || path == "" {
		return Resolution{}
	}
	ref := e.ResolveType(ctx, s.Project, rawType)
	if !ref.Found || ref.Builtin {
		return Resolution{}
	}
	if e.caches.Properties.IsDynamic(ctx, s.Project, ref.Qualified) {
		return found(introspect.ObjectType)
	}
	if t, ok := e.caches.Properties.ResolvePath(ctx, s.Project, ref.Qualified, path, true); ok {
		return found(t)
	}
	return notFound(diag.NoWritableProperty, fmt.Sprintf("Property '%s' not found in class %s", path, introspect.Erasure(ref.Qualified)))
}
