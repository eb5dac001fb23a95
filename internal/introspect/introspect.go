// Package introspect answers structural questions about host-language types:
// existence, supertypes, declared methods and bean properties.
package introspect

import (
	"context"
	"strings"

	"github.com/maraichr/batislens/internal/workspace"
)

const (
	ObjectType = "java.lang.Object"
	MapType    = "java.util.Map"
)

// TypeIntrospector is the capability the caches are built on. Implementations
// may perform I/O; callers must not hold locks while calling them.
type TypeIntrospector interface {
	Exists(ctx context.Context, project workspace.Key, qname string) bool

	// SupertypeChain returns every supertype of qname, superclasses before
	// interfaces, nearest first. The root object type is omitted.
	SupertypeChain(ctx context.Context, project workspace.Key, qname string) ([]string, error)

	// DeclaredMethods returns the methods declared by qname itself.
	DeclaredMethods(ctx context.Context, project workspace.Key, qname string) ([]Method, error)

	// DeclaredProperties returns the bean properties declared by qname itself.
	DeclaredProperties(ctx context.Context, project workspace.Key, qname string) ([]Property, error)
}

// Catalog lists types. It backs alias package scans, type completion and
// source-change classification.
type Catalog interface {
	TypesInPackage(ctx context.Context, project workspace.Key, pkg string) ([]TypeSummary, error)
	TypesInFile(ctx context.Context, file workspace.File) ([]TypeSummary, error)
	SearchTypes(ctx context.Context, project workspace.Key, prefix string, limit int) ([]TypeSummary, error)
	FileOf(ctx context.Context, project workspace.Key, qname string) (workspace.File, bool)
}

type Method struct {
	Name       string
	ReturnType string
	Params     []Param
	Static     bool
	Public     bool
}

// Param is a method parameter. Binding is the explicitly declared binding
// name, empty when the parameter has none.
type Param struct {
	Name    string
	Type    string
	Binding string
}

type Property struct {
	Name     string
	Type     string
	Readable bool
	Writable bool
}

// TypeSummary describes a declared type without its members.
type TypeSummary struct {
	QualifiedName string
	SimpleName    string
	Package       string
	Interface     bool
	Alias         string   // value of an @Alias annotation
	Supertypes    []string // full chain, qualified
	AliasCalls    []string // qualified types passed to addSimpleAlias
	File          workspace.File
}

var primitives = map[string]bool{
	"boolean": true, "byte": true, "char": true, "short": true,
	"int": true, "long": true, "float": true, "double": true, "void": true,
}

func IsPrimitive(t string) bool {
	return primitives[t]
}

// Erasure strips generic arguments and array brackets.
func Erasure(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	for strings.HasSuffix(t, "[]") {
		t = strings.TrimSuffix(t, "[]")
	}
	return strings.ReplaceAll(t, "$", ".")
}

// TypeArgs returns the top-level generic arguments of t.
func TypeArgs(t string) []string {
	open := strings.IndexByte(t, '<')
	if open < 0 || !strings.HasSuffix(t, ">") {
		return nil
	}
	return splitTopLevel(t[open+1 : len(t)-1])
}

// ElementType returns the element type of an array or of a generic type with
// exactly one argument.
func ElementType(t string) (string, bool) {
	t = strings.TrimSpace(t)
	if strings.HasSuffix(t, "[]") {
		return strings.TrimSuffix(t, "[]"), true
	}
	args := TypeArgs(t)
	if len(args) == 1 {
		return args[0], true
	}
	return "", false
}

func SimpleName(qname string) string {
	qname = Erasure(qname)
	if i := strings.LastIndexByte(qname, '.'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}

func PackageOf(qname string) string {
	if i := strings.LastIndexByte(qname, '.'); i >= 0 {
		return qname[:i]
	}
	return ""
}

// AssignableTo reports whether qname is target or has target among its
// supertypes. Lookup errors count as not assignable.
func AssignableTo(ctx context.Context, in TypeIntrospector, project workspace.Key, qname, target string) bool {
	qname = Erasure(qname)
	if qname == target {
		return true
	}
	chain, err := in.SupertypeChain(ctx, project, qname)
	if err != nil {
		return false
	}
	for _, s := range chain {
		if Erasure(s) == target {
			return true
		}
	}
	return false
}

func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// PropertyName derives a bean property name from an accessor name, or
// returns false when name is not an accessor.
func PropertyName(method string) (string, bool) {
	var rest string
	switch {
	case strings.HasPrefix(method, "get") && len(method) > 3:
		rest = method[3:]
	case strings.HasPrefix(method, "set") && len(method) > 3:
		rest = method[3:]
	case strings.HasPrefix(method, "is") && len(method) > 2:
		rest = method[2:]
	default:
		return "", false
	}
	if len(rest) == 1 || !isUpper(rest[1]) {
		rest = strings.ToLower(rest[:1]) + rest[1:]
	}
	return rest, true
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
