package namespace

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

	"github.com/maraichr/batislens/internal/workspace"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fixture(t *testing.T, root string, files map[string]string) (*Index, afs.Service) {
	t.Helper()
	ctx := context.Background()
	fs := afs.New()
	for p, body := range files {
		require.NoError(t, fs.Upload(ctx, root+"/"+p, file.DefaultFileOsMode, strings.NewReader(body)))
	}
	ws := workspace.New(fs)
	ws.Add(workspace.Project{Key: "p", RootURL: root})
	return New(ws, discard()), fs
}

func TestIndex_LazyScan(t *testing.T) {
	ctx := context.Background()
	idx, _ := fixture(t, "mem://localhost/ns/scan", map[string]string{
		"src/main/resources/a/UserMapper.xml":  `<?xml version="1.0"?><mapper namespace="com.ex.UserMapper"><select id="x"/></mapper>`,
		"src/main/resources/a/OrderMapper.xml": `<mapper namespace="com.ex.OrderMapper"/>`,
		"src/main/resources/mybatis.xml":       `<configuration/>`,
		"target/classes/a/UserMapper.xml":      `<mapper namespace="com.ex.Stale"/>`,
	})

	f, ok := idx.Get(ctx, "p", "com.ex.UserMapper")
	require.True(t, ok)
	assert.Equal(t, "src/main/resources/a/UserMapper.xml", f.Path)

	_, ok = idx.Get(ctx, "p", "com.ex.Stale")
	assert.False(t, ok, "derived files are not scanned")

	bindings := idx.Bindings(ctx, "p")
	require.Len(t, bindings, 2)
	assert.Equal(t, "com.ex.OrderMapper", bindings[0].Namespace)
}

func TestIndex_Rebinding(t *testing.T) {
	ctx := context.Background()
	idx := New(workspace.New(afs.New()), discard())
	f1 := workspace.File{Project: "p", Path: "f1.xml"}
	f2 := workspace.File{Project: "p", Path: "f2.xml"}

	idx.Bind("N", f1)
	idx.Bind("N", f1)
	got, ok := idx.Get(ctx, "p", "N")
	require.True(t, ok)
	assert.Equal(t, f1, got)

	idx.Bind("N", f2)
	got, _ = idx.Get(ctx, "p", "N")
	assert.Equal(t, f2, got)

	// the binding already moved, removing f1 is a no-op
	idx.RemoveFile(f1)
	got, ok = idx.Get(ctx, "p", "N")
	assert.True(t, ok)
	assert.Equal(t, f2, got)

	idx.RemoveFile(f2)
	_, ok = idx.Get(ctx, "p", "N")
	assert.False(t, ok)
}

func TestIndex_PutFollowsFileContent(t *testing.T) {
	ctx := context.Background()
	root := "mem://localhost/ns/put"
	idx, fs := fixture(t, root, map[string]string{
		"m/A.xml": `<mapper namespace="com.ex.A"/>`,
	})
	a := workspace.File{Project: "p", Path: "m/A.xml"}

	_, ok := idx.Get(ctx, "p", "com.ex.A")
	require.True(t, ok)

	// namespace renamed inside the same file
	require.NoError(t, fs.Upload(ctx, root+"/m/A.xml", file.DefaultFileOsMode, strings.NewReader(`<mapper namespace="com.ex.B"/>`)))
	require.NoError(t, idx.Put(ctx, a))

	_, ok = idx.Get(ctx, "p", "com.ex.A")
	assert.False(t, ok)
	got, ok := idx.Get(ctx, "p", "com.ex.B")
	assert.True(t, ok)
	assert.Equal(t, a, got)

	assert.Error(t, idx.Put(ctx, workspace.File{Project: "p", Path: "missing.xml"}))
}

func TestIndex_RemoveProjectRescans(t *testing.T) {
	ctx := context.Background()
	idx, _ := fixture(t, "mem://localhost/ns/remove", map[string]string{
		"A.xml": `<mapper namespace="com.ex.A"/>`,
	})
	idx.Bind("manual", workspace.File{Project: "p", Path: "B.xml"})

	_, ok := idx.Get(ctx, "p", "manual")
	require.True(t, ok)

	idx.Remove("p")
	_, ok = idx.Get(ctx, "p", "manual")
	assert.False(t, ok)
	_, ok = idx.Get(ctx, "p", "com.ex.A")
	assert.True(t, ok, "next query repopulates from the files")

	idx.ClearAll()
	_, ok = idx.Get(ctx, "p", "manual")
	assert.False(t, ok)
}
