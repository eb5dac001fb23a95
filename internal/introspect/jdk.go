package introspect

import "strings"

// jdkTypes maps simple names to the JDK types mapper code commonly uses.
// Only java.lang entries are implicitly visible; the rest need an import.
var jdkTypes = map[string]string{
	// java.lang
	"Object":        "java.lang.Object",
	"String":        "java.lang.String",
	"Integer":       "java.lang.Integer",
	"Long":          "java.lang.Long",
	"Short":         "java.lang.Short",
	"Byte":          "java.lang.Byte",
	"Double":        "java.lang.Double",
	"Float":         "java.lang.Float",
	"Boolean":       "java.lang.Boolean",
	"Character":     "java.lang.Character",
	"Number":        "java.lang.Number",
	"Void":          "java.lang.Void",
	"Enum":          "java.lang.Enum",
	"Class":         "java.lang.Class",
	"Iterable":      "java.lang.Iterable",
	"Comparable":    "java.lang.Comparable",
	"CharSequence":  "java.lang.CharSequence",
	"StringBuilder": "java.lang.StringBuilder",
	"Exception":     "java.lang.Exception",

	// java.util
	"Collection":        "java.util.Collection",
	"List":              "java.util.List",
	"ArrayList":         "java.util.ArrayList",
	"LinkedList":        "java.util.LinkedList",
	"Set":               "java.util.Set",
	"HashSet":           "java.util.HashSet",
	"LinkedHashSet":     "java.util.LinkedHashSet",
	"TreeSet":           "java.util.TreeSet",
	"Map":               "java.util.Map",
	"HashMap":           "java.util.HashMap",
	"LinkedHashMap":     "java.util.LinkedHashMap",
	"TreeMap":           "java.util.TreeMap",
	"SortedMap":         "java.util.SortedMap",
	"Hashtable":         "java.util.Hashtable",
	"Properties":        "java.util.Properties",
	"ConcurrentHashMap": "java.util.concurrent.ConcurrentHashMap",
	"Date":              "java.util.Date",
	"UUID":              "java.util.UUID",
	"Optional":          "java.util.Optional",
	"Iterator":          "java.util.Iterator",

	// java.math, java.sql, java.time
	"BigDecimal":     "java.math.BigDecimal",
	"BigInteger":     "java.math.BigInteger",
	"Timestamp":      "java.sql.Timestamp",
	"Time":           "java.sql.Time",
	"ResultSet":      "java.sql.ResultSet",
	"LocalDate":      "java.time.LocalDate",
	"LocalDateTime":  "java.time.LocalDateTime",
	"LocalTime":      "java.time.LocalTime",
	"Instant":        "java.time.Instant",
	"OffsetDateTime": "java.time.OffsetDateTime",
	"ZonedDateTime":  "java.time.ZonedDateTime",
}

// jdkSupertypes lists direct supertypes of JDK collection types.
var jdkSupertypes = map[string][]string{
	"java.util.Collection":                   {"java.lang.Iterable"},
	"java.util.List":                         {"java.util.Collection"},
	"java.util.Set":                          {"java.util.Collection"},
	"java.util.ArrayList":                    {"java.util.List"},
	"java.util.LinkedList":                   {"java.util.List"},
	"java.util.HashSet":                      {"java.util.Set"},
	"java.util.LinkedHashSet":                {"java.util.HashSet"},
	"java.util.TreeSet":                      {"java.util.Set"},
	"java.util.SortedMap":                    {"java.util.Map"},
	"java.util.HashMap":                      {"java.util.Map"},
	"java.util.LinkedHashMap":                {"java.util.HashMap"},
	"java.util.TreeMap":                      {"java.util.SortedMap"},
	"java.util.Hashtable":                    {"java.util.Map"},
	"java.util.Properties":                   {"java.util.Hashtable"},
	"java.util.concurrent.ConcurrentHashMap": {"java.util.Map"},
	"java.sql.Timestamp":                     {"java.util.Date"},
	"java.lang.Integer":                      {"java.lang.Number"},
	"java.lang.Long":                         {"java.lang.Number"},
	"java.lang.Double":                       {"java.lang.Number"},
	"java.math.BigDecimal":                   {"java.lang.Number"},
	"java.math.BigInteger":                   {"java.lang.Number"},
}

var jdkQualified = func() map[string]bool {
	m := make(map[string]bool, len(jdkTypes))
	for _, q := range jdkTypes {
		m[q] = true
	}
	return m
}()

// IsJDKType reports whether qname is a known JDK type.
func IsJDKType(qname string) bool {
	return jdkQualified[Erasure(qname)]
}

// JDKType returns the qualified name for a simple JDK type name.
func JDKType(simple string) (string, bool) {
	q, ok := jdkTypes[simple]
	return q, ok
}

func javaLang(simple string) (string, bool) {
	q, ok := jdkTypes[simple]
	if !ok || !strings.HasPrefix(q, "java.lang.") {
		return "", false
	}
	return q, true
}

// jdkChain returns the transitive JDK supertypes of qname.
func jdkChain(qname string) []string {
	var out []string
	seen := map[string]bool{}
	queue := append([]string(nil), jdkSupertypes[qname]...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		queue = append(queue, jdkSupertypes[s]...)
	}
	return out
}
