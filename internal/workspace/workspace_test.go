package workspace

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    ContentKind
	}{
		{"java", "src/main/java/a/B.java", "class B {}", KindJavaSource},
		{"mapper doctype", "m.xml", `<?xml version="1.0"?><!DOCTYPE mapper PUBLIC "-//mybatis.org//DTD Mapper 3.0//EN" "x"><mapper namespace="a"/>`, KindMapperXML},
		{"mapper root", "m.xml", `<?xml version="1.0"?><!-- c --><mapper namespace="a"/>`, KindMapperXML},
		{"config doctype", "c.xml", `<!DOCTYPE configuration PUBLIC "-//mybatis.org//DTD Config 3.0//EN" "x"><configuration/>`, KindConfigXML},
		{"spring", "ctx.xml", `<beans xmlns="x"><bean class="org.mybatis.spring.SqlSessionFactoryBean"/></beans>`, KindSpringConfigXML},
		{"plain beans", "ctx.xml", `<beans><bean class="a.B"/></beans>`, KindUnknown},
		{"pom", "pom.xml", `<project/>`, KindUnknown},
		{"text", "readme.md", `<mapper/>`, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path, []byte(tt.content)))
		})
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"src/main/A.java", "src/main/A.java", true},
		{"./src//a/../B.xml", "src/B.xml", true},
		{`src\main\C.xml`, "src/main/C.xml", true},
		{"", "", false},
		{"..", "", false},
		{"../x.xml", "", false},
		{"src/../../x.xml", "", false},
		{"/etc/passwd", "", false},
	}
	for _, tt := range tests {
		got, ok := CleanPath(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CleanPath(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsDerived(t *testing.T) {
	assert.True(t, IsDerived("target/classes/a.xml"))
	assert.True(t, IsDerived("module/build/x.java"))
	assert.False(t, IsDerived("src/main/resources/a.xml"))
	assert.False(t, IsDerived("src/main/java/targeted/A.java"))
}

func TestWorkspace_WalkAndRead(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	root := "mem://localhost/ws/walk001"
	for p, body := range map[string]string{
		"src/main/java/com/ex/User.java":           "class User {}",
		"src/main/resources/mapper/UserMapper.xml": "<mapper/>",
		"target/classes/mapper/UserMapper.xml":     "<mapper/>",
	} {
		require.NoError(t, fs.Upload(ctx, root+"/"+p, file.DefaultFileOsMode, strings.NewReader(body)))
	}

	ws := New(fs)
	ws.Add(Project{Key: "p1", RootURL: root})

	files, err := ws.Walk(ctx, "p1", "", "xml")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "src/main/resources/mapper/UserMapper.xml", files[0].Path)

	data, err := ws.Read(ctx, files[0])
	require.NoError(t, err)
	assert.Equal(t, "<mapper/>", string(data))

	assert.True(t, ws.Exists(ctx, File{Project: "p1", Path: "src/main/java/com/ex/User.java"}))
	assert.False(t, ws.Exists(ctx, File{Project: "p1", Path: "missing.xml"}))

	_, err = ws.Read(ctx, File{Project: "nope", Path: "x"})
	assert.Error(t, err)
}

func TestWorkspace_Locate(t *testing.T) {
	ws := New(afs.New())
	ws.Add(Project{Key: "outer", RootURL: "/home/dev/ws"})
	ws.Add(Project{Key: "inner", RootURL: "/home/dev/ws/inner"})

	f, ok := ws.Locate("/home/dev/ws/inner/src/A.java")
	require.True(t, ok)
	assert.Equal(t, File{Project: "inner", Path: "src/A.java"}, f)

	f, ok = ws.Locate("/home/dev/ws/other/B.xml")
	require.True(t, ok)
	assert.Equal(t, Key("outer"), f.Project)

	_, ok = ws.Locate("/home/dev/wsx/B.xml")
	assert.False(t, ok)

	key, ok := ws.LocateProject("/home/dev/ws/inner/")
	require.True(t, ok)
	assert.Equal(t, Key("inner"), key)
}
