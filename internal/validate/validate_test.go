package validate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/maraichr/batislens/internal/cache"
	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/mapperxml"
	"github.com/maraichr/batislens/internal/resolver"
	"github.com/maraichr/batislens/internal/workspace"
)

const userMapperPath = "src/main/resources/com/ex/UserMapper.xml"

const userMapperXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE mapper PUBLIC "-//mybatis.org//DTD Mapper 3.0//EN" "http://mybatis.org/dtd/mybatis-3-mapper.dtd">
<mapper namespace="com.ex.UserMapper">
  <cache-ref namespace="com.ex.Nowhere"/>
  <resultMap id="userMap" type="User">
    <id property="id" column="id"/>
    <result property="nmae" column="name" typeHandler="com.ex.NoHandler"/>
  </resultMap>
  <sql id="cols">id, name</sql>
  <select id="findById" resultMap="userMap, missingMap" parameterMap="legacy">
    select <include refid="cols"/> from users where id = #{id}
  </select>
  <select id="findByName" resultType="com.ex.Missing">
    select * from users where name = #{name} and x = #{other}
  </select>
  <update id="update">update users set name = #{name}, zip = #{address.zip}</update>
  <delete id="deleteAll">delete from users</delete>
  <select id="byIds" resultType="User">
    <foreach collection="list" item="uid">#{uid} #{uid.nope}</foreach>
    <include refid="com.ex.OrderMapper.cols"/>
  </select>
</mapper>
`

const orderMapperXML = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="com.ex.OrderMapper">
  <sql id="orderCols">id, total</sql>
  <select id="listAll" resultType="map">select * from orders</select>
</mapper>
`

const configXML = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE configuration PUBLIC "-//mybatis.org//DTD Config 3.0//EN" "http://mybatis.org/dtd/mybatis-3-config.dtd">
<configuration>
  <typeAliases>
    <typeAlias alias="Acct" type="com.ex.Account"/>
  </typeAliases>
  <environments default="dev">
    <environment id="dev">
      <transactionManager type="JDBC"/>
      <dataSource type="POOLED"/>
    </environment>
  </environments>
  <mappers><mapper class="com.ex.UserMapper"/></mappers>
</configuration>
`

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newValidator(t *testing.T, root string) *Validator {
	t.Helper()
	ctx := context.Background()
	fs := afs.New()
	files := map[string]string{
		userMapperPath: userMapperXML,
		"src/main/resources/com/ex/OrderMapper.xml": orderMapperXML,
		"src/main/resources/mybatis-config.xml":     configXML,
	}
	for p, body := range files {
		require.NoError(t, fs.Upload(ctx, root+"/"+p, file.DefaultFileOsMode, strings.NewReader(body)))
	}
	ws := workspace.New(fs)
	ws.Add(workspace.Project{Key: "p", RootURL: root})

	mem := introspect.NewMemory()
	mem.Put("p", introspect.MemType{
		Name: "com.ex.User",
		Properties: []introspect.Property{
			{Name: "id", Type: "java.lang.Long", Readable: true, Writable: true},
			{Name: "name", Type: "java.lang.String", Readable: true, Writable: true},
			{Name: "address", Type: "com.ex.Address", Readable: true},
		},
	})
	mem.Put("p", introspect.MemType{
		Name:       "com.ex.Address",
		Properties: []introspect.Property{{Name: "city", Type: "java.lang.String", Readable: true, Writable: true}},
	})
	mem.Put("p", introspect.MemType{
		Name:      "com.ex.UserMapper",
		Interface: true,
		Methods: []introspect.Method{
			{Name: "findById", Params: []introspect.Param{{Name: "id", Type: "java.lang.Long"}}},
			{Name: "findByName", Params: []introspect.Param{{Name: "name", Type: "java.lang.String", Binding: "name"}}},
			{Name: "update", Params: []introspect.Param{{Name: "user", Type: "com.ex.User"}}},
			{Name: "byIds", Params: []introspect.Param{{Name: "ids", Type: "java.util.List<java.lang.Long>"}}},
		},
	})

	caches := cache.NewSet(ws, mem, mem, discard())
	caches.Aliases.Register("p", "com.ex.User", "User")
	engine := resolver.NewEngine(ws, mem, mem, caches, discard())
	return New(engine, discard(), WithWorkers(2))
}

func TestValidateFile_Mapper(t *testing.T) {
	v := newValidator(t, "mem://localhost/validate/mapper")
	var c diag.Collector
	require.NoError(t, v.ValidateFile(context.Background(), workspace.File{Project: "p", Path: userMapperPath}, &c))

	assert.Equal(t, []diag.ProblemKind{
		diag.MissingNamespace,
		diag.NoWritableProperty,
		diag.MissingTypeHandler,
		diag.MissingResultMap,
		diag.Deprecated,
		diag.MissingType,
		diag.MissingType,
		diag.MissingType,
		diag.MissingStatementMethod,
		diag.MissingType,
		diag.MissingSQL,
	}, c.Kinds())

	messages := map[string]diag.Diagnostic{}
	for _, d := range c.Diagnostics() {
		messages[d.Message] = d
	}
	for _, m := range []string{
		"Namespace='com.ex.Nowhere' not found.",
		"Property 'nmae' not found in class com.ex.User",
		"Class/TypeAlias 'com.ex.NoHandler' not found.",
		"resultMap with id='missingMap' not found.",
		"'parameterMap' is deprecated and should not be used.",
		"Class/TypeAlias 'com.ex.Missing' not found.",
		"Parameter 'other' not found as @Param in method com.ex.UserMapper.findByName",
		"Property 'address.zip' not found in class com.ex.User",
		"Method 'deleteAll' not found in mapper interface com.ex.UserMapper",
		"Property 'nope' not found in class java.lang.Long",
		"sql with id='com.ex.OrderMapper.cols' not found.",
	} {
		assert.Contains(t, messages, m)
	}

	missing := messages["resultMap with id='missingMap' not found."]
	assert.Equal(t, strings.Index(userMapperXML, "missingMap"), missing.Offset)
	assert.Equal(t, len("missingMap"), missing.Length)

	other := messages["Parameter 'other' not found as @Param in method com.ex.UserMapper.findByName"]
	assert.Equal(t, strings.Index(userMapperXML, "#{other}")+2, other.Offset)
	assert.Equal(t, len("other"), other.Length)

	assert.Equal(t, diag.SeverityWarning, messages["'parameterMap' is deprecated and should not be used."].Severity)
}

func TestValidateFile_Config(t *testing.T) {
	v := newValidator(t, "mem://localhost/validate/config")
	var c diag.Collector
	require.NoError(t, v.ValidateFile(context.Background(), workspace.File{Project: "p", Path: "src/main/resources/mybatis-config.xml"}, &c))

	require.Len(t, c.Diagnostics(), 1)
	d := c.Diagnostics()[0]
	assert.Equal(t, diag.MissingType, d.Kind)
	assert.Equal(t, "Class/TypeAlias 'com.ex.Account' not found.", d.Message)
}

func TestValidateDocument_NamespaceMandatory(t *testing.T) {
	v := newValidator(t, "mem://localhost/validate/ns")
	f := workspace.File{Project: "p", Path: "m.xml"}

	for _, src := range []string{
		`<mapper><sql id="a">x</sql></mapper>`,
		`<mapper namespace=" "><sql id="a">x</sql></mapper>`,
	} {
		doc, err := mapperxml.Parse([]byte(src))
		require.NoError(t, err)
		var c diag.Collector
		require.NoError(t, v.ValidateDocument(context.Background(), f, doc, &c))
		assert.Equal(t, []diag.ProblemKind{diag.NamespaceMandatory}, c.Kinds(), src)
	}
}

func TestValidateDocument_Cancelled(t *testing.T) {
	v := newValidator(t, "mem://localhost/validate/cancel")
	doc, err := mapperxml.Parse([]byte(userMapperXML))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var c diag.Collector
	err = v.ValidateDocument(ctx, workspace.File{Project: "p", Path: userMapperPath}, doc, &c)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, c.Diagnostics())
}

func TestValidateProject(t *testing.T) {
	v := newValidator(t, "mem://localhost/validate/project")
	var c diag.Collector
	sum, err := v.ValidateProject(context.Background(), "p", &c)
	require.NoError(t, err)

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 3, sum.Files)
	assert.EqualValues(t, 12, sum.Problems)
	assert.Len(t, c.Diagnostics(), 12)
}

func TestRefresh(t *testing.T) {
	v := newValidator(t, "mem://localhost/validate/refresh")
	store := diag.NewStore()
	f := workspace.File{Project: "p", Path: "src/main/resources/com/ex/OrderMapper.xml"}

	items, err := v.Refresh(context.Background(), f, store)
	require.NoError(t, err)
	assert.Empty(t, items)
	stored, ok := store.Get(f)
	assert.True(t, ok)
	assert.Empty(t, stored)
}

func TestLookup(t *testing.T) {
	tests := []struct {
		tag, attr string
		want      RefKind
	}{
		{"select", "resultMap", RefResultMap},
		{"select", "parameterType", RefType},
		{"result", "typeHandler", RefTypeHandler},
		{"association", "select", RefSelect},
		{"include", "refid", RefSQL},
		{"foreach", "collection", RefForEachCollection},
		{"cache-ref", "namespace", RefCacheRef},
		{"dataSource", "type", RefNone},
		{"select", "unknown", RefNone},
	}
	for _, tt := range tests {
		if got := Lookup(tt.tag, tt.attr); got != tt.want {
			t.Errorf("Lookup(%q, %q) = %v, want %v", tt.tag, tt.attr, got, tt.want)
		}
	}
}
