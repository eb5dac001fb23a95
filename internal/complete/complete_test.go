package complete

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
	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/resolver"
	"github.com/maraichr/batislens/internal/workspace"
)

const userMapperPath = "src/main/resources/com/ex/UserMapper.xml"

const storedUserMapper = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="com.ex.UserMapper">
  <sql id="cols">id, name</sql>
  <select id="findById" resultType="User">select <include refid="cols"/> from users</select>
</mapper>
`

const orderMapperXML = `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="com.ex.OrderMapper">
  <sql id="orderCols">id, total</sql>
</mapper>
`

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newCompleter(t *testing.T, root string) *Completer {
	t.Helper()
	ctx := context.Background()
	fs := afs.New()
	files := map[string]string{
		userMapperPath: storedUserMapper,
		"src/main/resources/com/ex/OrderMapper.xml": orderMapperXML,
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
		Name: "com.ex.Account",
		Properties: []introspect.Property{
			{Name: "id", Type: "long", Readable: true, Writable: true},
			{Name: "firstName", Type: "java.lang.String", Readable: true, Writable: true},
			{Name: "lastName", Type: "java.lang.String", Readable: true, Writable: true},
		},
	})
	mem.Put("p", introspect.MemType{
		Name:      "com.ex.UserMapper",
		Interface: true,
		Methods: []introspect.Method{
			{Name: "findById", Params: []introspect.Param{{Name: "id", Type: "java.lang.Long"}}},
			{Name: "findByName", Params: []introspect.Param{
				{Name: "name", Type: "java.lang.String", Binding: "name"},
				{Name: "limit", Type: "int"},
			}},
			{Name: "find", Params: []introspect.Param{{Name: "id", Type: "int"}}},
			{Name: "find", Params: []introspect.Param{{Name: "name", Type: "java.lang.String"}}},
			{Name: "byIds", Params: []introspect.Param{{Name: "ids", Type: "java.util.List<java.lang.Long>"}}},
		},
	})

	caches := cache.NewSet(ws, mem, mem, discard())
	caches.Aliases.Register("p", "com.ex.User", "User")
	engine := resolver.NewEngine(ws, mem, mem, caches, discard())
	return New(engine, discard())
}

// at strips the "|" cursor marker from src and returns a request for it.
func at(src string) Request {
	i := strings.Index(src, "|")
	return Request{
		File:    workspace.File{Project: "p", Path: userMapperPath},
		Content: []byte(src[:i] + src[i+1:]),
		Offset:  i,
	}
}

func inMapper(body string) string {
	return `<mapper namespace="com.ex.UserMapper">` + "\n" + body + "\n</mapper>\n"
}

func labels(props []Proposal) []string {
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, p.Label)
	}
	return out
}

func TestProposals_Attributes(t *testing.T) {
	c := newCompleter(t, "mem://localhost/complete/attrs")
	ctx := context.Background()

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"type alias first", inMapper(`<resultMap id="m" type="Us|"/>`),
			[]string{"User - com.ex.User", "com.ex.User", "com.ex.UserMapper"}},
		{"writable properties", inMapper(`<resultMap id="m" type="User"><result property="|"/></resultMap>`),
			[]string{"id : Long", "name : String"}},
		{"nested property", inMapper(`<resultMap id="m" type="User"><result property="address.c|"/></resultMap>`),
			[]string{"city : String"}},
		{"statement ids", inMapper(`<select id="findById"/><select id="find|"/>`),
			[]string{"find - UserMapper", "findByName - UserMapper"}},
		{"result map list", inMapper(`<resultMap id="userMap" type="User"/><select id="x" resultMap="userMap, |"/>`),
			[]string{"userMap"}},
		{"sql refid", inMapper(`<sql id="cols">id</sql><select id="x"><include refid="|"/></select>`),
			[]string{"cols", "com.ex.OrderMapper.orderCols"}},
		{"test expression", inMapper(`<select id="findByName"><if test="name != null and li|">x</if></select>`),
			[]string{"limit : int"}},
		{"foreach collection", inMapper(`<select id="byIds"><foreach collection="l|" item="x"/></select>`),
			[]string{"list : List"}},
		{"namespace", `<mapper namespace="|"></mapper>`,
			[]string{"com.ex.UserMapper"}},
		{"cache-ref", inMapper(`<cache-ref namespace="com.ex.O|"/>`),
			[]string{"com.ex.OrderMapper"}},
		{"package", `<configuration><typeAliases><package name="com.|"/></typeAliases></configuration>`,
			[]string{"com.ex"}},
		{"unknown attribute", inMapper(`<select id="x" fetchSize="|"/>`), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props, err := c.Proposals(ctx, at(tt.src))
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, props)
				return
			}
			assert.Equal(t, tt.want, labels(props))
		})
	}
}

func TestProposals_ReplaceRegion(t *testing.T) {
	c := newCompleter(t, "mem://localhost/complete/region")
	ctx := context.Background()

	req := at(inMapper(`<resultMap id="m" type="User"><result property="address.c|"/></resultMap>`))
	props, err := c.Proposals(ctx, req)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "city", props[0].InsertText)
	assert.Equal(t, req.Offset-1, props[0].ReplaceStart)
	assert.Equal(t, 1, props[0].ReplaceLength)

	req = at(inMapper(`<resultMap id="m" type="Us|"/>`))
	props, err = c.Proposals(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, props)
	assert.Equal(t, "User", props[0].InsertText)
	assert.Equal(t, KindType, props[0].Kind)
	assert.Equal(t, req.Offset-2, props[0].ReplaceStart)
	assert.Equal(t, 2, props[0].ReplaceLength)
}

func TestProposals_ParameterExpressions(t *testing.T) {
	c := newCompleter(t, "mem://localhost/complete/text")
	ctx := context.Background()

	req := at(inMapper(`<select id="findByName">select * from users where name = #{na|}</select>`))
	props, err := c.Proposals(ctx, req)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "name", props[0].InsertText)
	assert.Equal(t, req.Offset-2, props[0].ReplaceStart)
	assert.Equal(t, KindParameter, props[0].Kind)

	props, err = c.Proposals(ctx, at(inMapper(`<select id="byIds"><foreach collection="list" item="uid">#{u|}</foreach></select>`)))
	require.NoError(t, err)
	assert.Equal(t, []string{"uid : Long"}, labels(props))

	props, err = c.Proposals(ctx, at(inMapper(`<select id="findByName">#{name,jdbc|}</select>`)))
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, "jdbcType=", props[0].InsertText)
	assert.Equal(t, KindOption, props[0].Kind)

	req = at(inMapper(`<select id="findByName">#{name, jdbcType=VARC|}</select>`))
	props, err = c.Proposals(ctx, req)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "VARCHAR", props[0].InsertText)
	assert.Equal(t, req.Offset-4, props[0].ReplaceStart)

	props, err = c.Proposals(ctx, at(inMapper(`<select id="findByName">#{name} and |</select>`)))
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestProposals_ResultGeneration(t *testing.T) {
	c := newCompleter(t, "mem://localhost/complete/results")
	ctx := context.Background()

	props, err := c.Proposals(ctx, at(inMapper("<resultMap id=\"m\" type=\"com.ex.Account\">\n<id property=\"id\" column=\"id\"/>\n|\n</resultMap>")))
	require.NoError(t, err)
	assert.Equal(t, []string{"result firstName", "result lastName", "result (all unmapped properties)"}, labels(props))
	assert.Equal(t, `<result property="firstName" column="first_name"/>`, props[0].InsertText)
	assert.Equal(t, 0, props[0].ReplaceLength)
	assert.Equal(t, "<result property=\"firstName\" column=\"first_name\"/>\n<result property=\"lastName\" column=\"last_name\"/>", props[2].InsertText)

	req := at(inMapper("<resultMap id=\"m\" type=\"com.ex.Account\">\n<re|\n</resultMap>"))
	props, err = c.Proposals(ctx, req)
	require.NoError(t, err)
	require.Len(t, props, 4)
	assert.Equal(t, req.Offset-3, props[0].ReplaceStart)
	assert.Equal(t, 3, props[0].ReplaceLength)
	assert.Equal(t, KindResult, props[0].Kind)
}

func TestComplete_StoredFile(t *testing.T) {
	c := newCompleter(t, "mem://localhost/complete/stored")
	offset := strings.Index(storedUserMapper, `refid="`) + len(`refid="`)

	var got []Proposal
	err := c.Complete(context.Background(), Request{
		File:   workspace.File{Project: "p", Path: userMapperPath},
		Offset: offset,
	}, SinkFunc(func(p []Proposal) { got = p }))
	require.NoError(t, err)
	assert.Equal(t, []string{"cols", "com.ex.OrderMapper.orderCols"}, labels(got))
}

func TestProposals_BadOffset(t *testing.T) {
	c := newCompleter(t, "mem://localhost/complete/offset")
	_, err := c.Proposals(context.Background(), Request{
		File:    workspace.File{Project: "p", Path: userMapperPath},
		Content: []byte("<mapper/>"),
		Offset:  42,
	})
	assert.True(t, errors.Is(err, ErrOffset))
}

func TestColumnName(t *testing.T) {
	tests := map[string]string{"id": "id", "firstName": "first_name", "zipCodeV2": "zip_code_v2"}
	for in, want := range tests {
		if got := columnName(in); got != want {
			t.Errorf("columnName(%q) = %q, want %q", in, got, want)
		}
	}
}
