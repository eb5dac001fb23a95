package mapper

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/workspace"
)

const p workspace.Key = "p1"

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fixture() *introspect.Memory {
	m := introspect.NewMemory()
	m.Put(p, introspect.MemType{Name: "com.ex.BaseMapper", Interface: true, Methods: []introspect.Method{
		{Name: "count", ReturnType: "int", Public: true},
		{Name: "selectById", ReturnType: "java.lang.Object", Public: true, Params: []introspect.Param{{Name: "id", Type: "java.lang.Object"}}},
	}})
	m.Put(p, introspect.MemType{Name: "com.ex.UserMapper", Interface: true, Interfaces: []string{"com.ex.BaseMapper<com.ex.User>"}, Methods: []introspect.Method{
		{Name: "find", ReturnType: "com.ex.User", Public: true, Params: []introspect.Param{{Name: "id", Type: "int"}}},
		{Name: "find", ReturnType: "com.ex.User", Public: true, Params: []introspect.Param{{Name: "name", Type: "java.lang.String"}}},
		{Name: "findAll", ReturnType: "java.util.List<com.ex.User>", Public: true},
		{Name: "search", ReturnType: "java.util.List<com.ex.User>", Public: true, Params: []introspect.Param{
			{Name: "n", Type: "java.lang.String", Binding: "name"},
			{Name: "limit", Type: "int"},
		}},
		{Name: "insert", ReturnType: "int", Public: true, Params: []introspect.Param{{Name: "user", Type: "com.ex.User", Binding: "u"}}},
		{Name: "selectById", ReturnType: "com.ex.User", Public: true, Params: []introspect.Param{{Name: "id", Type: "java.lang.Object"}}},
		{Name: "helper", Static: true, Public: true},
	}})
	return m
}

func TestFind_OverloadAmbiguity(t *testing.T) {
	ctx := context.Background()
	m := NewMatcher(fixture(), discard())

	assert.False(t, m.Exists(ctx, p, "com.ex.UserMapper", "find"))
	_, ok := m.Resolve(ctx, p, "com.ex.UserMapper", "find")
	assert.False(t, ok)

	all := m.Find(ctx, p, "com.ex.UserMapper", "find", true, true)
	assert.Len(t, all, 2)

	first := m.Find(ctx, p, "com.ex.UserMapper", "find", true, false)
	require.Len(t, first, 1)
	assert.Equal(t, "int", first[0].Params[0].Type)
}

func TestFind_PrefixAndInheritance(t *testing.T) {
	ctx := context.Background()
	m := NewMatcher(fixture(), discard())

	names := func(sigs []Signature) []string {
		var out []string
		for _, s := range sigs {
			out = append(out, s.Name)
		}
		return out
	}
	assert.Equal(t, []string{"find", "findAll"}, names(m.Find(ctx, p, "com.ex.UserMapper", "FI", false, false)))
	assert.Equal(t, []string{"count"}, names(m.Find(ctx, p, "com.ex.UserMapper", "cou", false, true)))
	assert.Empty(t, m.Find(ctx, p, "com.ex.UserMapper", "helper", true, true), "static methods are not statements")

	// redeclared with identical parameters: the sub-interface wins
	sel, ok := m.Resolve(ctx, p, "com.ex.UserMapper", "selectById")
	require.True(t, ok)
	assert.Equal(t, "com.ex.UserMapper", sel.Declaring)
	assert.True(t, m.Exists(ctx, p, "com.ex.UserMapper", "count"))
	assert.False(t, m.Exists(ctx, p, "com.ex.Missing", "count"))
}

func TestSignature_Bindings(t *testing.T) {
	ctx := context.Background()
	m := NewMatcher(fixture(), discard())

	all, ok := m.Resolve(ctx, p, "com.ex.UserMapper", "findAll")
	require.True(t, ok)
	assert.Equal(t, NoParams, all.Kind)
	assert.Empty(t, all.ParamMap())

	sel, _ := m.Resolve(ctx, p, "com.ex.UserMapper", "selectById")
	assert.Equal(t, Implicit, sel.Kind)
	typ, ok := sel.ImplicitType()
	assert.True(t, ok)
	assert.Equal(t, "java.lang.Object", typ)

	search, _ := m.Resolve(ctx, p, "com.ex.UserMapper", "search")
	assert.Equal(t, Named, search.Kind)
	assert.Equal(t, map[string]string{
		"name":   "java.lang.String",
		"limit":  "int",
		"param1": "java.lang.String",
		"param2": "int",
	}, search.ParamMap())

	// a single annotated parameter is named, not implicit
	ins, _ := m.Resolve(ctx, p, "com.ex.UserMapper", "insert")
	assert.Equal(t, Named, ins.Kind)
	assert.Equal(t, "com.ex.User", ins.ParamMap()["u"])
	_, implicit := ins.ImplicitType()
	assert.False(t, implicit)
}
