package events

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraichr/batislens/internal/workspace"
)

const sampleDiff = `diff --git a/src/main/java/com/ex/User.java b/src/main/java/com/ex/User.java
index 1111111..2222222 100644
--- a/src/main/java/com/ex/User.java
+++ b/src/main/java/com/ex/User.java
@@ -1 +1 @@
-class User {}
+class User { int id; }
diff --git a/run.sh b/run.sh
old mode 100644
new mode 100755
diff --git a/src/A.java b/src/B.java
similarity index 100%
rename from src/A.java
rename to src/B.java
diff --git a/src/main/resources/com/ex/New.xml b/src/main/resources/com/ex/New.xml
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/src/main/resources/com/ex/New.xml
@@ -0,0 +1 @@
+<mapper namespace="com.ex.New"/>
diff --git a/target/classes/Gen.xml b/target/classes/Gen.xml
index 5555555..6666666 100644
--- a/target/classes/Gen.xml
+++ b/target/classes/Gen.xml
@@ -1 +1 @@
-<a/>
+<b/>
diff --git a/src/main/resources/com/ex/Old.xml b/src/main/resources/com/ex/Old.xml
deleted file mode 100644
index 4444444..0000000
--- a/src/main/resources/com/ex/Old.xml
+++ /dev/null
@@ -1 +0,0 @@
-<mapper namespace="com.ex.Old"/>
`

func TestDiffRecords(t *testing.T) {
	records, err := DiffRecords("p", []byte(sampleDiff))
	require.NoError(t, err)

	type row struct {
		kind    Kind
		path    string
		meta    bool
		derived bool
	}
	var got []row
	for _, r := range records {
		assert.Equal(t, workspace.Key("p"), r.Project)
		assert.Equal(t, File, r.Resource)
		got = append(got, row{r.Kind, r.Path, r.MetadataOnly, r.Derived})
	}
	assert.Equal(t, []row{
		{Changed, "src/main/java/com/ex/User.java", false, false},
		{Changed, "run.sh", true, false},
		{Removed, "src/A.java", false, false},
		{Added, "src/B.java", false, false},
		{Added, "src/main/resources/com/ex/New.xml", false, false},
		{Changed, "target/classes/Gen.xml", false, true},
		{Removed, "src/main/resources/com/ex/Old.xml", false, false},
	}, got)
}

func TestMerge(t *testing.T) {
	f := workspace.File{Project: "p", Path: "A.java"}
	meta := FileRecord(Changed, f)
	meta.MetadataOnly = true

	tests := []struct {
		name       string
		prev, next Record
		want       Kind
		wantMeta   bool
	}{
		{"create then write", FileRecord(Added, f), FileRecord(Changed, f), Added, false},
		{"write then remove", FileRecord(Changed, f), FileRecord(Removed, f), Removed, false},
		{"remove then create", FileRecord(Removed, f), FileRecord(Added, f), Changed, false},
		{"write then chmod", FileRecord(Changed, f), meta, Changed, false},
		{"chmod then write", meta, FileRecord(Changed, f), Changed, false},
		{"chmod twice", meta, meta, Changed, true},
	}
	for _, tt := range tests {
		got := merge(tt.prev, tt.next)
		if got.Kind != tt.want || got.MetadataOnly != tt.wantMeta {
			t.Errorf("%s: merge = %s (metadata %v), want %s (metadata %v)", tt.name, got.Kind, got.MetadataOnly, tt.want, tt.wantMeta)
		}
	}
}

func TestWatcher_DebouncedBatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "main", "java"), 0o755))

	ws := workspace.New(nil)
	ws.Add(workspace.Project{Key: "p", RootURL: root})

	batches := make(chan Batch, 4)
	h := HandlerFunc(func(_ context.Context, b Batch) error {
		batches <- b
		return nil
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := NewWatcher(ws, h, logger, 100*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	p, _ := ws.Project("p")
	require.NoError(t, w.AddProject(p))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "target"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "target", "Gen.java"), []byte("class Gen {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main", "java", "A.java"), []byte("class A {}"), 0o644))

	select {
	case b := <-batches:
		assert.Equal(t, "watcher", b.Source)
		require.Len(t, b.Records, 1)
		assert.Equal(t, Added, b.Records[0].Kind)
		assert.Equal(t, "src/main/java/A.java", b.Records[0].Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}
}
