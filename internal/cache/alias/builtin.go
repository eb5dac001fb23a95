package alias

import "strings"

// builtin holds the aliases the mapping runtime registers by default. Keys
// are lower case; lookups are case-insensitive as in the runtime.
var builtin = map[string]string{
	"string": "java.lang.String",

	"byte":      "java.lang.Byte",
	"long":      "java.lang.Long",
	"short":     "java.lang.Short",
	"int":       "java.lang.Integer",
	"integer":   "java.lang.Integer",
	"double":    "java.lang.Double",
	"float":     "java.lang.Float",
	"boolean":   "java.lang.Boolean",
	"char":      "java.lang.Character",
	"character": "java.lang.Character",

	"_byte":    "byte",
	"_long":    "long",
	"_short":   "short",
	"_int":     "int",
	"_integer": "int",
	"_double":  "double",
	"_float":   "float",
	"_boolean": "boolean",
	"_char":    "char",

	"date":       "java.util.Date",
	"decimal":    "java.math.BigDecimal",
	"bigdecimal": "java.math.BigDecimal",
	"biginteger": "java.math.BigInteger",
	"object":     "java.lang.Object",

	"map":        "java.util.Map",
	"hashmap":    "java.util.HashMap",
	"list":       "java.util.List",
	"arraylist":  "java.util.ArrayList",
	"collection": "java.util.Collection",
	"iterator":   "java.util.Iterator",
	"resultset":  "java.sql.ResultSet",

	// configuration-level aliases
	"jdbc":     "org.apache.ibatis.transaction.jdbc.JdbcTransactionFactory",
	"managed":  "org.apache.ibatis.transaction.managed.ManagedTransactionFactory",
	"jndi":     "org.apache.ibatis.datasource.jndi.JndiDataSourceFactory",
	"pooled":   "org.apache.ibatis.datasource.pooled.PooledDataSourceFactory",
	"unpooled": "org.apache.ibatis.datasource.unpooled.UnpooledDataSourceFactory",

	"perpetual": "org.apache.ibatis.cache.impl.PerpetualCache",
	"fifo":      "org.apache.ibatis.cache.decorators.FifoCache",
	"lru":       "org.apache.ibatis.cache.decorators.LruCache",
	"soft":      "org.apache.ibatis.cache.decorators.SoftCache",
	"weak":      "org.apache.ibatis.cache.decorators.WeakCache",
	"db_vendor": "org.apache.ibatis.mapping.VendorDatabaseIdProvider",
	"xml":       "org.apache.ibatis.scripting.xmltags.XMLLanguageDriver",
	"raw":       "org.apache.ibatis.scripting.defaults.RawLanguageDriver",
}

// Builtin resolves a default alias. Array forms such as "int[]" resolve to
// the array of the element alias.
func Builtin(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if elem, ok := strings.CutSuffix(key, "[]"); ok {
		q, found := builtin[elem]
		if !found {
			return "", false
		}
		return q + "[]", true
	}
	q, ok := builtin[key]
	return q, ok
}

func IsBuiltin(name string) bool {
	_, ok := Builtin(name)
	return ok
}

// BuiltinNames returns the default aliases in their canonical spelling.
func BuiltinNames() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	return out
}
