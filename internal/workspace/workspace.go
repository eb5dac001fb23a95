package workspace

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
)

// Key identifies a compilation project. All caches are partitioned by Key.
type Key string

// File is a handle to a file inside a project. Path is slash separated and
// relative to the project root.
type File struct {
	Project Key
	Path    string
}

func (f File) String() string {
	return string(f.Project) + ":" + f.Path
}

// Ext returns the lower-cased extension without the dot.
func (f File) Ext() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(f.Path)), ".")
}

func (f File) IsZero() bool {
	return f.Project == "" && f.Path == ""
}

// Project describes one project of the workspace.
type Project struct {
	Key             Key      `yaml:"key"`
	RootURL         string   `yaml:"root"`
	SourceRoots     []string `yaml:"sourceRoots"`
	MapperRoots     []string `yaml:"mapperRoots"` // empty means the whole project
	ModuleRootTypes []string `yaml:"moduleRootTypes"`
	AliasPackages   []string `yaml:"aliasPackages"` // in addition to those declared by config files
}

// DefaultSourceRoots is used when a project declares none.
var DefaultSourceRoots = []string{"src/main/java", "src/test/java"}

// DefaultModuleRootTypes are supertypes whose subclasses register aliases by
// code (Guice style modules).
var DefaultModuleRootTypes = []string{"org.mybatis.guice.MyBatisModule", "MyBatisModule"}

// derivedDirs are never read or reported: build output and VCS metadata.
var derivedDirs = []string{"target", "build", "bin", "out", ".git", ".idea", "node_modules"}

// Workspace owns the project table and file access.
type Workspace struct {
	mu       sync.RWMutex
	projects map[Key]*Project
	fs       afs.Service
}

func New(fs afs.Service) *Workspace {
	if fs == nil {
		fs = afs.New()
	}
	return &Workspace{projects: make(map[Key]*Project), fs: fs}
}

// Add registers or replaces a project.
func (w *Workspace) Add(p Project) {
	if len(p.SourceRoots) == 0 {
		p.SourceRoots = DefaultSourceRoots
	}
	if len(p.ModuleRootTypes) == 0 {
		p.ModuleRootTypes = DefaultModuleRootTypes
	}
	p.RootURL = strings.TrimSuffix(p.RootURL, "/")
	w.mu.Lock()
	w.projects[p.Key] = &p
	w.mu.Unlock()
}

func (w *Workspace) Remove(key Key) {
	w.mu.Lock()
	delete(w.projects, key)
	w.mu.Unlock()
}

func (w *Workspace) Project(key Key) (Project, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.projects[key]
	if !ok {
		return Project{}, false
	}
	return *p, true
}

// Projects returns all projects sorted by key.
func (w *Workspace) Projects() []Project {
	w.mu.RLock()
	out := make([]Project, 0, len(w.projects))
	for _, p := range w.projects {
		out = append(out, *p)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CleanPath normalizes a project-relative path. It reports false for empty
// paths and for paths that are absolute or leave the project root.
func CleanPath(rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	clean := path.Clean(strings.ReplaceAll(rel, `\`, "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}

// URL returns the storage URL of f. Paths outside the project root are
// rejected.
func (w *Workspace) URL(f File) (string, error) {
	p, ok := w.Project(f.Project)
	if !ok {
		return "", fmt.Errorf("unknown project %q", f.Project)
	}
	rel, ok := CleanPath(f.Path)
	if !ok {
		return "", fmt.Errorf("path %q is outside project %q", f.Path, f.Project)
	}
	return url.Join(p.RootURL, rel), nil
}

// Read returns the content of f.
func (w *Workspace) Read(ctx context.Context, f File) ([]byte, error) {
	u, err := w.URL(f)
	if err != nil {
		return nil, err
	}
	data, err := w.fs.DownloadWithURL(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f, err)
	}
	return data, nil
}

// Exists reports whether f exists. Lookup failures count as absent.
func (w *Workspace) Exists(ctx context.Context, f File) bool {
	u, err := w.URL(f)
	if err != nil {
		return false
	}
	ok, err := w.fs.Exists(ctx, u)
	return err == nil && ok
}

// Walk lists the project's files with one of the given extensions (without
// dot), skipping derived directories. An empty root walks the whole project.
func (w *Workspace) Walk(ctx context.Context, key Key, root string, exts ...string) ([]File, error) {
	p, ok := w.Project(key)
	if !ok {
		return nil, fmt.Errorf("unknown project %q", key)
	}
	base := p.RootURL
	if root != "" {
		base = url.Join(p.RootURL, root)
	}
	if exists, err := w.fs.Exists(ctx, base); err != nil || !exists {
		return nil, nil
	}
	objects, err := w.fs.List(ctx, base, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", base, err)
	}
	rootPath := localPath(p.RootURL)
	var files []File
	for _, obj := range objects {
		if obj.IsDir() {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(localPath(obj.URL()), rootPath), "/")
		if IsDerived(rel) || !hasExt(rel, exts) {
			continue
		}
		files = append(files, File{Project: key, Path: rel})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Locate maps an absolute path or URL to the project file containing it.
// The project with the longest matching root wins.
func (w *Workspace) Locate(location string) (File, bool) {
	target := localPath(location)
	w.mu.RLock()
	defer w.mu.RUnlock()
	var best File
	bestLen := -1
	for _, p := range w.projects {
		root := localPath(p.RootURL)
		if root == "" || !strings.HasPrefix(target, root) {
			continue
		}
		rest := target[len(root):]
		if rest != "" && rest[0] != '/' {
			continue
		}
		if len(root) > bestLen {
			bestLen = len(root)
			best = File{Project: p.Key, Path: strings.TrimPrefix(rest, "/")}
		}
	}
	return best, bestLen >= 0
}

// LocateProject maps an absolute path to a project whose root equals it.
func (w *Workspace) LocateProject(location string) (Key, bool) {
	target := strings.TrimSuffix(localPath(location), "/")
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, p := range w.projects {
		if localPath(p.RootURL) == target {
			return p.Key, true
		}
	}
	return "", false
}

// LocalRoot returns the project root as a local file system path.
func (p Project) LocalRoot() string {
	return localPath(p.RootURL)
}

// IsDerived reports whether a project-relative path lies in build output or
// tool metadata.
func IsDerived(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		for _, d := range derivedDirs {
			if seg == d {
				return true
			}
		}
	}
	return false
}

// localPath strips the scheme and host from a storage URL; plain paths are
// returned unchanged.
func localPath(location string) string {
	i := strings.Index(location, "://")
	if i < 0 {
		return location
	}
	rest := location[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return rest[j:]
	}
	return "/"
}

func hasExt(p string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
