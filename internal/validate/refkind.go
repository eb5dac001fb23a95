package validate

// RefKind is what an attribute value refers to.
type RefKind int

const (
	RefNone RefKind = iota
	RefType
	RefTypeHandler
	RefProperty
	RefForEachCollection
	RefStatementID
	RefResultMap
	RefSQL
	RefSelect
	RefNamespace
	RefCacheRef
	RefDeprecated
)

var refKindNames = [...]string{
	RefNone:              "none",
	RefType:              "type",
	RefTypeHandler:       "typeHandler",
	RefProperty:          "property",
	RefForEachCollection: "foreachCollection",
	RefStatementID:       "statementId",
	RefResultMap:         "resultMap",
	RefSQL:               "sql",
	RefSelect:            "select",
	RefNamespace:         "namespace",
	RefCacheRef:          "cacheRef",
	RefDeprecated:        "deprecated",
}

func (k RefKind) String() string {
	if int(k) < len(refKindNames) {
		return refKindNames[k]
	}
	return "unknown"
}

type attrKey struct {
	tag  string
	attr string
}

// refTable maps (tag, attribute) to the kind of reference the value holds.
// Supporting another attribute means adding a row here.
var refTable = map[attrKey]RefKind{}

func rows(attr string, kind RefKind, tags ...string) {
	for _, t := range tags {
		refTable[attrKey{t, attr}] = kind
	}
}

var resultMappings = []string{"id", "idArg", "result", "arg", "collection", "association"}

func init() {
	rows("type", RefType, "resultMap", "cache", "typeAlias", "objectFactory", "objectWrapperFactory", "transactionManager", "databaseIdProvider")
	rows("resultType", RefType, "select", "case")
	rows("parameterType", RefType, "select", "insert", "update", "delete")
	rows("ofType", RefType, "collection")
	rows("javaType", RefType, append([]string{"typeHandler"}, resultMappings...)...)
	rows("interceptor", RefType, "plugin")
	rows("class", RefType, "mapper")
	rows("typeHandler", RefTypeHandler, resultMappings...)
	rows("handler", RefTypeHandler, "typeHandler")

	rows("property", RefProperty, "id", "result", "collection", "association")
	rows("collection", RefForEachCollection, "foreach")
	rows("id", RefStatementID, "select", "insert", "update", "delete")

	rows("resultMap", RefResultMap, "select", "collection", "association", "case")
	rows("extends", RefResultMap, "resultMap")
	rows("refid", RefSQL, "include")
	rows("select", RefSelect, "collection", "association")
	rows("namespace", RefNamespace, "mapper")
	rows("namespace", RefCacheRef, "cache-ref")

	rows("parameterMap", RefDeprecated, "select", "insert", "update", "delete")
}

// Lookup returns the reference kind of attr on tag.
func Lookup(tag, attr string) RefKind {
	return refTable[attrKey{tag, attr}]
}

// listKinds hold comma-separated lists of references.
var listKinds = map[RefKind]bool{RefResultMap: true}

// textTags are the elements whose character data may hold parameter
// expressions.
var textTags = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"if": true, "foreach": true, "when": true, "otherwise": true,
	"trim": true, "where": true, "set": true,
}

// deprecatedTags are elements reported as deprecated wherever they occur.
var deprecatedTags = map[string]bool{"parameterMap": true}
