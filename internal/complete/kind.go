package complete

import (
	"github.com/maraichr/batislens/internal/resolver"
	"github.com/maraichr/batislens/internal/validate"
)

// Kind classifies a proposal.
type Kind string

const (
	KindType      Kind = "type"
	KindProperty  Kind = "property"
	KindParameter Kind = "parameter"
	KindStatement Kind = "statement"
	KindReference Kind = "reference"
	KindNamespace Kind = "namespace"
	KindPackage   Kind = "package"
	KindOption    Kind = "option"
	KindResult    Kind = "result"
)

// role is what is being completed at the offset.
type role int

const (
	roleNone role = iota
	roleType
	roleProperty
	roleParameter
	roleExpression
	roleStatement
	roleResultMap
	roleSQL
	roleSelect
	roleNamespace
	roleCacheRef
	rolePackage
	roleOption
	roleResult
)

var roleNames = [...]string{
	roleNone:       "none",
	roleType:       "type",
	roleProperty:   "property",
	roleParameter:  "parameter",
	roleExpression: "expression",
	roleStatement:  "statement",
	roleResultMap:  "resultMap",
	roleSQL:        "sql",
	roleSelect:     "select",
	roleNamespace:  "namespace",
	roleCacheRef:   "cacheRef",
	rolePackage:    "package",
	roleOption:     "option",
	roleResult:     "result",
}

func (r role) String() string { return roleNames[r] }

var roleTargets = map[role]resolver.Target{
	roleResultMap: resolver.TargetResultMap,
	roleSQL:       resolver.TargetSQL,
	roleSelect:    resolver.TargetSelect,
}

// listRoles complete the last entry of a comma-separated value.
var listRoles = map[role]bool{roleResultMap: true, roleParameter: true}

var fromRefKind = map[validate.RefKind]role{
	validate.RefType:              roleType,
	validate.RefTypeHandler:       roleType,
	validate.RefProperty:          roleProperty,
	validate.RefForEachCollection: roleParameter,
	validate.RefStatementID:       roleStatement,
	validate.RefResultMap:         roleResultMap,
	validate.RefSQL:               roleSQL,
	validate.RefSelect:            roleSelect,
	validate.RefNamespace:         roleNamespace,
	validate.RefCacheRef:          roleCacheRef,
}

type attrKey struct{ tag, attr string }

// completionOnly are attributes that are completed but not validated.
var completionOnly = map[attrKey]role{
	{"insert", "keyProperty"}: roleParameter,
	{"update", "keyProperty"}: roleParameter,
	{"if", "test"}:            roleExpression,
	{"when", "test"}:          roleExpression,
	{"bind", "value"}:         roleExpression,
	{"package", "name"}:       rolePackage,
}

func attrRole(tag, attr string) role {
	if r, ok := completionOnly[attrKey{tag, attr}]; ok {
		return r
	}
	return fromRefKind[validate.Lookup(tag, attr)]
}
