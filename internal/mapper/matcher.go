// Package mapper matches statement ids to methods of mapper interfaces.
package mapper

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/workspace"
)

// BindingKind classifies how a statement refers to its method's parameters.
type BindingKind int

const (
	// NoParams: the method takes no parameters.
	NoParams BindingKind = iota
	// Implicit: one parameter without an explicit binding name; its
	// properties are referenced directly.
	Implicit
	// Named: parameters are referenced as name.property.
	Named
)

func (k BindingKind) String() string {
	switch k {
	case Implicit:
		return "implicit"
	case Named:
		return "named"
	default:
		return "none"
	}
}

// Signature is a mapper method with its parameter bindings classified.
type Signature struct {
	Name       string
	Declaring  string
	ReturnType string
	Params     []introspect.Param
	Kind       BindingKind
}

// ParamMap returns binding name -> type. For Implicit it holds the single
// parameter under its declared name. For Named every parameter is reachable
// by its binding name (or declared name) and by the generic paramN name.
func (s Signature) ParamMap() map[string]string {
	out := make(map[string]string, len(s.Params)*2)
	switch s.Kind {
	case Implicit:
		out[s.Params[0].Name] = s.Params[0].Type
	case Named:
		for i, p := range s.Params {
			if p.Binding != "" {
				out[p.Binding] = p.Type
			} else if p.Name != "" {
				out[p.Name] = p.Type
			}
			out["param"+strconv.Itoa(i+1)] = p.Type
		}
	}
	return out
}

// ImplicitType returns the type of the single implicit parameter.
func (s Signature) ImplicitType() (string, bool) {
	if s.Kind != Implicit {
		return "", false
	}
	return s.Params[0].Type, true
}

func classify(params []introspect.Param) BindingKind {
	switch {
	case len(params) == 0:
		return NoParams
	case len(params) == 1 && params[0].Binding == "":
		return Implicit
	default:
		return Named
	}
}

// Matcher resolves statement ids against mapper interfaces through a
// TypeIntrospector. It holds no state of its own.
type Matcher struct {
	in     introspect.TypeIntrospector
	logger *slog.Logger
}

func NewMatcher(in introspect.TypeIntrospector, logger *slog.Logger) *Matcher {
	return &Matcher{in: in, logger: logger}
}

// Find returns the methods of iface and its super-interfaces named id
// (exact) or starting with id (case-insensitive prefix). Without
// includeOverloads only the first method of each name is kept. A method
// redeclared with the same parameter types in a sub-interface hides the
// inherited one. Introspection failures yield no match.
func (m *Matcher) Find(ctx context.Context, project workspace.Key, iface, id string, exact, includeOverloads bool) []Signature {
	chain, err := m.in.SupertypeChain(ctx, project, iface)
	if err != nil {
		m.logger.Warn("mapper supertypes", slog.String("type", iface), slog.String("error", err.Error()))
		chain = nil
	}
	lowerID := strings.ToLower(id)
	seen := map[string]bool{}
	var out []Signature
	for _, t := range append([]string{introspect.Erasure(iface)}, chain...) {
		methods, err := m.in.DeclaredMethods(ctx, project, t)
		if err != nil {
			m.logger.Warn("mapper methods", slog.String("type", t), slog.String("error", err.Error()))
			continue
		}
		for _, meth := range methods {
			if meth.Static {
				continue
			}
			if exact && meth.Name != id {
				continue
			}
			if !exact && !strings.HasPrefix(strings.ToLower(meth.Name), lowerID) {
				continue
			}
			key := meth.Name
			if includeOverloads {
				key = signatureKey(meth)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Signature{
				Name:       meth.Name,
				Declaring:  t,
				ReturnType: meth.ReturnType,
				Params:     meth.Params,
				Kind:       classify(meth.Params),
			})
		}
	}
	return out
}

// Exists reports whether exactly one method named id exists. Overloads
// make the statement ambiguous, which counts as not existing.
func (m *Matcher) Exists(ctx context.Context, project workspace.Key, iface, id string) bool {
	return len(m.Find(ctx, project, iface, id, true, true)) == 1
}

// Resolve returns the single method named id; ambiguous or missing ids
// return false.
func (m *Matcher) Resolve(ctx context.Context, project workspace.Key, iface, id string) (Signature, bool) {
	sigs := m.Find(ctx, project, iface, id, true, true)
	if len(sigs) != 1 {
		return Signature{}, false
	}
	return sigs[0], true
}

func signatureKey(m introspect.Method) string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(stripGenerics(p.Type))
	}
	b.WriteByte(')')
	return b.String()
}

func stripGenerics(t string) string {
	open := strings.IndexByte(t, '<')
	if open < 0 {
		return t
	}
	closing := strings.LastIndexByte(t, '>')
	if closing < open {
		return t[:open]
	}
	return t[:open] + t[closing+1:]
}
