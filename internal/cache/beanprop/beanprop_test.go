package beanprop

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

func rw(name, typ string) introspect.Property {
	return introspect.Property{Name: name, Type: typ, Readable: true, Writable: true}
}

func fixture() *introspect.Memory {
	m := introspect.NewMemory()
	m.Put(p, introspect.MemType{Name: "com.ex.A", Properties: []introspect.Property{rw("x", "int"), rw("b", "com.ex.B")}})
	m.Put(p, introspect.MemType{Name: "com.ex.B", Super: "com.ex.A", Properties: []introspect.Property{
		rw("c", "java.lang.String"),
		{Name: "readOnly", Type: "java.lang.String", Readable: true},
		rw("items", "java.util.List<com.ex.B>"),
		rw("arr", "com.ex.A[]"),
	}})
	m.Put(p, introspect.MemType{Name: "com.ex.Params", Super: "java.util.HashMap<java.lang.String,java.lang.Object>"})
	m.Put(p, introspect.MemType{Name: "com.ex.Holder", Properties: []introspect.Property{rw("params", "com.ex.Params")}})
	return m
}

func TestSearchFields_SupertypeInheritance(t *testing.T) {
	idx := New(fixture(), discard())
	got := idx.SearchFields(context.Background(), p, "com.ex.B", "x", SearchOptions{Writable: true, Limit: -1})
	assert.Equal(t, map[string]string{"x": "int"}, got)
}

func TestSearchFields_PrefixWritableLimit(t *testing.T) {
	ctx := context.Background()
	idx := New(fixture(), discard())

	all := idx.SearchFields(ctx, p, "com.ex.B", "", SearchOptions{Writable: true})
	assert.Len(t, all, 5)
	_, ok := all["readOnly"]
	assert.False(t, ok)

	readable := idx.SearchFields(ctx, p, "com.ex.B", "r", SearchOptions{})
	assert.Equal(t, map[string]string{"readOnly": "java.lang.String"}, readable)

	limited := idx.SearchFields(ctx, p, "com.ex.B", "", SearchOptions{Limit: 2})
	assert.Equal(t, map[string]string{"arr": "com.ex.A[]", "b": "com.ex.B"}, limited)

	exact := idx.SearchFields(ctx, p, "com.ex.B", "ite", SearchOptions{Exact: true})
	assert.Empty(t, exact)
}

func TestSearchFields_NestedPath(t *testing.T) {
	ctx := context.Background()
	idx := New(fixture(), discard())
	opts := SearchOptions{Nested: true, Exact: true}

	assert.Equal(t, map[string]string{"c": "java.lang.String"}, idx.SearchFields(ctx, p, "com.ex.A", "b.c", opts))
	assert.Empty(t, idx.SearchFields(ctx, p, "com.ex.A", "b.z", opts))
	assert.Empty(t, idx.SearchFields(ctx, p, "com.ex.A", "q.c", opts))

	typ, ok := idx.ResolvePath(ctx, p, "com.ex.A", "b.items[0].c", false)
	require.True(t, ok)
	assert.Equal(t, "java.lang.String", typ)

	typ, ok = idx.ResolvePath(ctx, p, "com.ex.B", "arr[1]", false)
	require.True(t, ok)
	assert.Equal(t, "com.ex.A", typ)

	typ, ok = idx.ResolvePath(ctx, p, "com.ex.B", "items", false)
	require.True(t, ok)
	assert.Equal(t, "java.util.List<com.ex.B>", typ)
}

func TestSearchFields_MapShortCircuit(t *testing.T) {
	ctx := context.Background()
	idx := New(fixture(), discard())

	for _, typ := range []string{"com.ex.Params", "java.util.HashMap", "java.util.Map"} {
		got := idx.SearchFields(ctx, p, typ, "anythingAtAll", SearchOptions{Writable: true, Exact: true})
		assert.NotEmpty(t, got, typ)
		assert.True(t, idx.IsDynamic(ctx, p, typ), typ)
	}

	typ, ok := idx.ResolvePath(ctx, p, "com.ex.Holder", "params.whatever.deeper", false)
	assert.True(t, ok)
	assert.Equal(t, introspect.ObjectType, typ)
}

func TestClear_RecomputesFromIntrospector(t *testing.T) {
	ctx := context.Background()
	m := fixture()
	idx := New(m, discard())

	assert.Len(t, idx.SearchFields(ctx, p, "com.ex.B", "c", SearchOptions{Exact: true}), 1)
	calls := m.PropertyCalls()
	idx.SearchFields(ctx, p, "com.ex.B", "c", SearchOptions{Exact: true})
	assert.Equal(t, calls, m.PropertyCalls(), "second search must be served from cache")

	m.Put(p, introspect.MemType{Name: "com.ex.B", Super: "com.ex.A", Properties: []introspect.Property{rw("d", "long")}})
	// stale until cleared
	assert.Len(t, idx.SearchFields(ctx, p, "com.ex.B", "c", SearchOptions{Exact: true}), 1)

	idx.Clear(p, "com.ex.B")
	assert.Empty(t, idx.SearchFields(ctx, p, "com.ex.B", "c", SearchOptions{Exact: true}))
	assert.Equal(t, map[string]string{"d": "long"}, idx.SearchFields(ctx, p, "com.ex.B", "d", SearchOptions{}))
	assert.Greater(t, m.PropertyCalls(), calls)
}

func TestClear_SupertypeChangeReachesSubtypes(t *testing.T) {
	ctx := context.Background()
	m := fixture()
	idx := New(m, discard())

	assert.Contains(t, idx.Info(ctx, p, "com.ex.B").Writable, "x")

	m.Put(p, introspect.MemType{Name: "com.ex.A", Properties: []introspect.Property{rw("y", "int")}})
	idx.Clear(p, "com.ex.A")

	info := idx.Info(ctx, p, "com.ex.B")
	assert.NotContains(t, info.Writable, "x")
	assert.Contains(t, info.Writable, "y")
}

func TestClearProjectAndAll(t *testing.T) {
	ctx := context.Background()
	m := fixture()
	m.Put("p2", introspect.MemType{Name: "com.ex.A", Properties: []introspect.Property{rw("x", "int")}})
	idx := New(m, discard())

	idx.Info(ctx, p, "com.ex.A")
	idx.Info(ctx, "p2", "com.ex.A")

	m.Remove(p, "com.ex.A")
	m.Remove("p2", "com.ex.A")
	idx.ClearProject(p)
	assert.Empty(t, idx.Info(ctx, p, "com.ex.A").Writable)
	assert.NotEmpty(t, idx.Info(ctx, "p2", "com.ex.A").Writable, "other project untouched")

	idx.ClearAll()
	assert.Empty(t, idx.Info(ctx, "p2", "com.ex.A").Writable)
}

func TestStripIndex(t *testing.T) {
	name, ok := StripIndex("items[0]")
	assert.True(t, ok)
	assert.Equal(t, "items", name)

	name, ok = StripIndex("items")
	assert.False(t, ok)
	assert.Equal(t, "items", name)
}
