package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraichr/batislens/internal/config"
	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/events"
	"github.com/maraichr/batislens/internal/workspace"
)

func write(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func TestApp_ValidatesLocalProject(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/main/java/com/ex/User.java", "package com.ex;\n\npublic class User {\n    private Long id;\n    public Long getId() { return id; }\n    public void setId(Long id) { this.id = id; }\n}\n")
	write(t, root, "src/main/resources/com/ex/UserMapper.xml", `<?xml version="1.0" encoding="UTF-8"?>
<mapper namespace="com.ex.UserMapper">
  <select id="findAll" resultType="com.ex.User">select * from users</select>
  <select id="findOther" resultType="com.ex.Missing">select * from users</select>
</mapper>
`)

	cfg := &config.Config{Validate: config.ValidateConfig{Workers: 2, ParseWorkers: 2, QueueSize: 8}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(cfg, []workspace.Project{{Key: "p", RootURL: root}}, logger)

	var c diag.Collector
	sum, err := a.Validator.ValidateProject(context.Background(), "p", &c)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)

	var messages []string
	for _, d := range c.Diagnostics() {
		messages = append(messages, d.Message)
	}
	assert.Contains(t, messages, "Class/TypeAlias 'com.ex.Missing' not found.")
	assert.NotContains(t, messages, "Class/TypeAlias 'com.ex.User' not found.")

	mapper := workspace.File{Project: "p", Path: "src/main/resources/com/ex/UserMapper.xml"}
	bound, ok := a.Caches.Namespaces.Get(context.Background(), "p", "com.ex.UserMapper")
	require.True(t, ok)
	assert.Equal(t, mapper, bound)

	require.NoError(t, a.Coordinator.Apply(context.Background(), events.NewBatch("test", events.FileRecord(events.Removed, mapper))))
	_, ok = a.Caches.Namespaces.Get(context.Background(), "p", "com.ex.UserMapper")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batislens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects:\n  - key: p\n    root: .\n"), 0o644))

	cfg := &config.Config{Workspace: config.WorkspaceConfig{File: path}}
	a, err := Load(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	p, ok := a.Workspace.Project("p")
	require.True(t, ok)
	assert.Equal(t, filepath.ToSlash(dir), filepath.ToSlash(p.RootURL))

	require.NoError(t, os.WriteFile(path, []byte("projects: []\n"), 0o644))
	_, err = Load(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
