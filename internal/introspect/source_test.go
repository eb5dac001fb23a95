package introspect

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/maraichr/batislens/internal/parser"
	"github.com/maraichr/batislens/internal/parser/java"
	"github.com/maraichr/batislens/internal/workspace"
)

func newSourceFixture(t *testing.T, root string, files map[string]string) (*SourceIntrospector, *workspace.Workspace, afs.Service) {
	t.Helper()
	ctx := context.Background()
	fs := afs.New()
	for p, body := range files {
		require.NoError(t, fs.Upload(ctx, root+"/"+p, file.DefaultFileOsMode, strings.NewReader(body)))
	}
	ws := workspace.New(fs)
	ws.Add(workspace.Project{Key: "p1", RootURL: root})
	reg := parser.NewRegistry()
	reg.Register("java", java.New())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSource(ws, reg, logger), ws, fs
}

const baseEntity = `package com.ex.domain;

public abstract class BaseEntity {
    private Long id;
    public Long getId() { return id; }
    public void setId(Long id) { this.id = id; }
}
`

const userSrc = `package com.ex.domain;

import java.util.List;

@Alias("member")
public class User extends BaseEntity {
    private String name;
    private final String code = "x";
    private static int counter;
    private List<Address> addresses;
    public boolean isActive() { return true; }
    public void setNickname(String n) {}

    public static class Address {
        private String city;
    }
}
`

const mapperSrc = `package com.ex.mapper;

import com.ex.domain.User;
import java.util.*;
import org.apache.ibatis.annotations.Param;

public interface UserMapper {
    User selectById(Integer id);
    List<User> search(@Param("name") String name, @Param("limit") int limit);
    Map<String, Object> stats();
}
`

func TestSourceIntrospector_Properties(t *testing.T) {
	ctx := context.Background()
	si, _, _ := newSourceFixture(t, "mem://localhost/si/props", map[string]string{
		"src/main/java/com/ex/domain/BaseEntity.java": baseEntity,
		"src/main/java/com/ex/domain/User.java":       userSrc,
	})

	assert.True(t, si.Exists(ctx, "p1", "com.ex.domain.User"))
	assert.True(t, si.Exists(ctx, "p1", "com.ex.domain.User$Address"))
	assert.True(t, si.Exists(ctx, "p1", "java.lang.String"))
	assert.True(t, si.Exists(ctx, "p1", "org.apache.ibatis.type.TypeHandler"))
	assert.False(t, si.Exists(ctx, "p1", "com.ex.domain.Missing"))

	chain, err := si.SupertypeChain(ctx, "p1", "com.ex.domain.User")
	require.NoError(t, err)
	assert.Equal(t, []string{"com.ex.domain.BaseEntity"}, chain)

	props, err := si.DeclaredProperties(ctx, "p1", "com.ex.domain.User")
	require.NoError(t, err)
	byName := map[string]Property{}
	for _, p := range props {
		byName[p.Name] = p
	}
	assert.Equal(t, Property{Name: "name", Type: "java.lang.String", Readable: true, Writable: true}, byName["name"])
	assert.Equal(t, Property{Name: "code", Type: "java.lang.String", Readable: true, Writable: false}, byName["code"])
	assert.Equal(t, "java.util.List<com.ex.domain.User.Address>", byName["addresses"].Type)
	assert.True(t, byName["active"].Readable)
	assert.False(t, byName["active"].Writable)
	assert.True(t, byName["nickname"].Writable)
	_, hasCounter := byName["counter"]
	assert.False(t, hasCounter)

	sums, err := si.TypesInPackage(ctx, "p1", "com.ex.domain")
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "com.ex.domain.User", sums[1].QualifiedName)
	assert.Equal(t, "member", sums[1].Alias)
}

func TestSourceIntrospector_Methods(t *testing.T) {
	ctx := context.Background()
	si, _, _ := newSourceFixture(t, "mem://localhost/si/methods", map[string]string{
		"src/main/java/com/ex/domain/User.java":       userSrc,
		"src/main/java/com/ex/domain/BaseEntity.java": baseEntity,
		"src/main/java/com/ex/mapper/UserMapper.java": mapperSrc,
	})

	methods, err := si.DeclaredMethods(ctx, "p1", "com.ex.mapper.UserMapper")
	require.NoError(t, err)
	require.Len(t, methods, 3)
	assert.Equal(t, "com.ex.domain.User", methods[0].ReturnType)
	assert.Equal(t, "java.lang.Integer", methods[0].Params[0].Type)
	assert.Equal(t, "java.util.List<com.ex.domain.User>", methods[1].ReturnType)
	assert.Equal(t, "name", methods[1].Params[0].Binding)
	assert.Equal(t, "java.util.Map<java.lang.String,java.lang.Object>", methods[2].ReturnType)

	f, ok := si.FileOf(ctx, "p1", "com.ex.mapper.UserMapper")
	require.True(t, ok)
	assert.Equal(t, "src/main/java/com/ex/mapper/UserMapper.java", f.Path)

	found, err := si.SearchTypes(ctx, "p1", "us", 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "com.ex.domain.User", found[0].QualifiedName)
	assert.Equal(t, "com.ex.mapper.UserMapper", found[1].QualifiedName)
}

func TestSourceIntrospector_Invalidate(t *testing.T) {
	ctx := context.Background()
	root := "mem://localhost/si/invalidate"
	si, _, fs := newSourceFixture(t, root, map[string]string{
		"src/main/java/com/ex/domain/Item.java": "package com.ex.domain;\npublic class Item { private String a; }\n",
	})

	props, err := si.DeclaredProperties(ctx, "p1", "com.ex.domain.Item")
	require.NoError(t, err)
	require.Len(t, props, 1)

	path := "src/main/java/com/ex/domain/Item.java"
	require.NoError(t, fs.Upload(ctx, root+"/"+path, file.DefaultFileOsMode,
		strings.NewReader("package com.ex.domain;\npublic class Item { private String a; private int b; }\n")))

	// stale until invalidated
	props, _ = si.DeclaredProperties(ctx, "p1", "com.ex.domain.Item")
	assert.Len(t, props, 1)

	si.Invalidate(workspace.File{Project: "p1", Path: path})
	props, err = si.DeclaredProperties(ctx, "p1", "com.ex.domain.Item")
	require.NoError(t, err)
	assert.Len(t, props, 2)

	require.NoError(t, fs.Delete(ctx, root+"/"+path))
	si.Invalidate(workspace.File{Project: "p1", Path: path})
	assert.False(t, si.Exists(ctx, "p1", "com.ex.domain.Item"))
}

func TestTypeNameFromPath(t *testing.T) {
	p := workspace.Project{Key: "p1", SourceRoots: workspace.DefaultSourceRoots}
	name, ok := TypeNameFromPath(p, "src/main/java/com/ex/User.java")
	assert.True(t, ok)
	assert.Equal(t, "com.ex.User", name)

	_, ok = TypeNameFromPath(p, "src/main/resources/User.xml")
	assert.False(t, ok)
}
