package introspect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/maraichr/batislens/internal/parser"
	"github.com/maraichr/batislens/internal/workspace"
)

// DefaultExternalPackages are package prefixes assumed to exist on the
// classpath even though no source for them is in the workspace.
var DefaultExternalPackages = []string{"org.apache.ibatis.", "org.mybatis.", "org.springframework."}

// SourceIntrospector implements TypeIntrospector and Catalog by parsing the
// host-language sources of each project. The per-project index is built on
// first use and refreshed file by file after Invalidate.
type SourceIntrospector struct {
	ws       *workspace.Workspace
	parsers  *parser.Registry
	external []string
	workers  int
	logger   *slog.Logger

	group    singleflight.Group
	mu       sync.Mutex
	projects map[workspace.Key]*sourceIndex
}

type SourceOption func(*SourceIntrospector)

// WithExternalPackages replaces DefaultExternalPackages.
func WithExternalPackages(prefixes ...string) SourceOption {
	return func(s *SourceIntrospector) { s.external = prefixes }
}

func WithParseWorkers(n int) SourceOption {
	return func(s *SourceIntrospector) {
		if n > 0 {
			s.workers = n
		}
	}
}

func NewSource(ws *workspace.Workspace, parsers *parser.Registry, logger *slog.Logger, opts ...SourceOption) *SourceIntrospector {
	s := &SourceIntrospector{
		ws:       ws,
		parsers:  parsers,
		external: DefaultExternalPackages,
		workers:  8,
		logger:   logger,
		projects: make(map[workspace.Key]*sourceIndex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type sourceIndex struct {
	mu       sync.RWMutex
	types    map[string]*sourceType // qualified name -> type
	files    map[string][]string    // path -> qualified names
	packages map[string]bool
	pending  map[string]struct{} // paths to re-parse
}

type sourceType struct {
	file workspace.File
	unit *unit
	decl parser.TypeDecl
}

// unit is the name-resolution scope of one source file.
type unit struct {
	pkg      string
	imports  []string
	wildcard []string
	local    map[string]string // simple name -> qualified, for types of the same file
}

func newSourceIndex() *sourceIndex {
	return &sourceIndex{
		types:    make(map[string]*sourceType),
		files:    make(map[string][]string),
		packages: make(map[string]bool),
		pending:  make(map[string]struct{}),
	}
}

// Invalidate drops what file declared. The file is re-parsed on next use.
func (s *SourceIntrospector) Invalidate(file workspace.File) {
	s.mu.Lock()
	idx := s.projects[file.Project]
	s.mu.Unlock()
	if idx == nil {
		return
	}
	idx.mu.Lock()
	idx.removeFile(file.Path)
	idx.pending[file.Path] = struct{}{}
	idx.mu.Unlock()
}

// InvalidateProject drops the whole index of a project, or of every project
// when key is empty.
func (s *SourceIntrospector) InvalidateProject(key workspace.Key) {
	s.mu.Lock()
	if key == "" {
		s.projects = make(map[workspace.Key]*sourceIndex)
	} else {
		delete(s.projects, key)
	}
	s.mu.Unlock()
}

func (idx *sourceIndex) removeFile(path string) {
	for _, q := range idx.files[path] {
		delete(idx.types, q)
	}
	delete(idx.files, path)
}

func (idx *sourceIndex) add(file workspace.File, res *parser.ParseResult) {
	u := &unit{
		pkg:      res.Package,
		imports:  res.Imports,
		wildcard: res.WildcardImports,
		local:    make(map[string]string, len(res.Types)),
	}
	for _, td := range res.Types {
		u.local[td.Name] = td.QualifiedName
	}
	names := make([]string, 0, len(res.Types))
	for _, td := range res.Types {
		idx.types[td.QualifiedName] = &sourceType{file: file, unit: u, decl: td}
		names = append(names, td.QualifiedName)
	}
	idx.files[file.Path] = names
	if res.Package != "" {
		idx.packages[res.Package] = true
	}
}

// index returns the up-to-date index of a project, loading or refreshing it
// as needed.
func (s *SourceIntrospector) index(ctx context.Context, key workspace.Key) (*sourceIndex, error) {
	s.mu.Lock()
	idx := s.projects[key]
	s.mu.Unlock()

	if idx == nil {
		v, err, _ := s.group.Do("load:"+string(key), func() (any, error) {
			return s.load(ctx, key)
		})
		if err != nil {
			return nil, err
		}
		idx = v.(*sourceIndex)
	}

	idx.mu.RLock()
	dirty := len(idx.pending) > 0
	idx.mu.RUnlock()
	if dirty {
		_, _, _ = s.group.Do("refresh:"+string(key), func() (any, error) {
			s.refresh(ctx, key, idx)
			return nil, nil
		})
	}
	return idx, nil
}

func (s *SourceIntrospector) load(ctx context.Context, key workspace.Key) (*sourceIndex, error) {
	p, ok := s.ws.Project(key)
	if !ok {
		return nil, fmt.Errorf("unknown project %q", key)
	}

	var files []workspace.File
	for _, root := range p.SourceRoots {
		found, err := s.ws.Walk(ctx, key, root, s.parsers.Extensions()...)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
		files = append(files, found...)
	}

	results := make([]*parser.ParseResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, f := range files {
		g.Go(func() error {
			results[i] = s.parseFile(gctx, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := newSourceIndex()
	for i, f := range files {
		if results[i] != nil {
			idx.add(f, results[i])
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.projects[key]; existing != nil {
		return existing, nil
	}
	s.projects[key] = idx
	s.logger.Debug("source index loaded",
		slog.String("project", string(key)),
		slog.Int("files", len(files)),
		slog.Int("types", len(idx.types)))
	return idx, nil
}

func (s *SourceIntrospector) refresh(ctx context.Context, key workspace.Key, idx *sourceIndex) {
	idx.mu.Lock()
	paths := make([]string, 0, len(idx.pending))
	for p := range idx.pending {
		paths = append(paths, p)
	}
	idx.pending = make(map[string]struct{})
	idx.mu.Unlock()

	parsed := make(map[string]*parser.ParseResult, len(paths))
	for _, p := range paths {
		f := workspace.File{Project: key, Path: p}
		if !s.ws.Exists(ctx, f) {
			continue
		}
		if res := s.parseFile(ctx, f); res != nil {
			parsed[p] = res
		}
	}

	idx.mu.Lock()
	for _, p := range paths {
		idx.removeFile(p)
		if res, ok := parsed[p]; ok {
			idx.add(workspace.File{Project: key, Path: p}, res)
		}
	}
	idx.mu.Unlock()
}

// parseFile returns nil for unreadable or unparsable files; one broken file
// never fails the index.
func (s *SourceIntrospector) parseFile(ctx context.Context, f workspace.File) *parser.ParseResult {
	if !s.parsers.Handles(f.Path) {
		return nil
	}
	content, err := s.ws.Read(ctx, f)
	if err != nil {
		s.logger.Warn("read source", slog.String("file", f.String()), slog.String("error", err.Error()))
		return nil
	}
	res, err := s.parsers.Parse(f.Path, content)
	if err != nil {
		s.logger.Warn("parse source", slog.String("file", f.String()), slog.String("error", err.Error()))
		return nil
	}
	return res
}

// lookup returns the declaration of qname, accepting binary names.
func (s *SourceIntrospector) lookup(ctx context.Context, key workspace.Key, qname string) (*sourceIndex, *sourceType, error) {
	idx, err := s.index(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx, idx.types[Erasure(qname)], nil
}

func (s *SourceIntrospector) isExternal(qname string) bool {
	for _, p := range s.external {
		if strings.HasPrefix(qname, p) {
			return true
		}
	}
	return false
}

func (s *SourceIntrospector) Exists(ctx context.Context, key workspace.Key, qname string) bool {
	name := Erasure(qname)
	if IsPrimitive(name) || IsJDKType(name) || s.isExternal(name) {
		return true
	}
	_, t, err := s.lookup(ctx, key, name)
	return err == nil && t != nil
}

func (s *SourceIntrospector) SupertypeChain(ctx context.Context, key workspace.Key, qname string) ([]string, error) {
	idx, err := s.index(ctx, key)
	if err != nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.chain(Erasure(qname)), nil
}

func (idx *sourceIndex) chain(qname string) []string {
	var out []string
	seen := map[string]bool{qname: true, ObjectType: true}
	queue := idx.direct(qname)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		queue = append(queue, idx.direct(s)...)
	}
	return out
}

// direct returns the erased direct supertypes of qname.
func (idx *sourceIndex) direct(qname string) []string {
	t := idx.types[qname]
	if t == nil {
		return jdkSupertypes[qname]
	}
	var out []string
	if t.decl.SuperClass != "" {
		out = append(out, Erasure(idx.qualify(t, t.decl.SuperClass)))
	}
	for _, i := range t.decl.Interfaces {
		out = append(out, Erasure(idx.qualify(t, i)))
	}
	return out
}

func (s *SourceIntrospector) DeclaredMethods(ctx context.Context, key workspace.Key, qname string) ([]Method, error) {
	idx, t, err := s.lookup(ctx, key, qname)
	if err != nil || t == nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Method, 0, len(t.decl.Methods))
	for _, m := range t.decl.Methods {
		im := Method{
			Name:       m.Name,
			ReturnType: idx.qualify(t, m.ReturnType),
			Static:     m.Static,
			Public:     m.Public,
		}
		for _, p := range m.Params {
			im.Params = append(im.Params, Param{Name: p.Name, Type: idx.qualify(t, p.Type), Binding: p.Binding})
		}
		out = append(out, im)
	}
	return out, nil
}

// DeclaredProperties derives bean properties the way the mapping runtime's
// reflector does: non-static fields of any visibility plus public accessors.
func (s *SourceIntrospector) DeclaredProperties(ctx context.Context, key workspace.Key, qname string) ([]Property, error) {
	idx, t, err := s.lookup(ctx, key, qname)
	if err != nil || t == nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	props := map[string]*Property{}
	var order []string
	get := func(name string) *Property {
		p, ok := props[name]
		if !ok {
			p = &Property{Name: name}
			props[name] = p
			order = append(order, name)
		}
		return p
	}

	if t.decl.Kind != "interface" {
		for _, f := range t.decl.Fields {
			if f.Static {
				continue
			}
			p := get(f.Name)
			p.Type = idx.qualify(t, f.Type)
			p.Readable = true
			p.Writable = p.Writable || !f.Final
		}
	}
	for _, m := range t.decl.Methods {
		if m.Static || !m.Public {
			continue
		}
		name, ok := PropertyName(m.Name)
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(m.Name, "set") && len(m.Params) == 1:
			p := get(name)
			p.Writable = true
			if p.Type == "" {
				p.Type = idx.qualify(t, m.Params[0].Type)
			}
		case strings.HasPrefix(m.Name, "get") && len(m.Params) == 0 && m.ReturnType != "void":
			p := get(name)
			p.Readable = true
			if p.Type == "" {
				p.Type = idx.qualify(t, m.ReturnType)
			}
		case strings.HasPrefix(m.Name, "is") && len(m.Params) == 0 && (m.ReturnType == "boolean" || m.ReturnType == "Boolean"):
			p := get(name)
			p.Readable = true
			if p.Type == "" {
				p.Type = idx.qualify(t, m.ReturnType)
			}
		}
	}

	out := make([]Property, 0, len(order))
	for _, n := range order {
		out = append(out, *props[n])
	}
	return out, nil
}

func (s *SourceIntrospector) TypesInPackage(ctx context.Context, key workspace.Key, pkg string) ([]TypeSummary, error) {
	idx, err := s.index(ctx, key)
	if err != nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []TypeSummary
	for q, t := range idx.types {
		// nested types are not package members
		if t.unit.pkg == pkg && PackageOf(q) == pkg {
			out = append(out, idx.summary(t))
		}
	}
	sortSummaries(out)
	return out, nil
}

func (s *SourceIntrospector) TypesInFile(ctx context.Context, file workspace.File) ([]TypeSummary, error) {
	idx, err := s.index(ctx, file.Project)
	if err != nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []TypeSummary
	for _, q := range idx.files[file.Path] {
		if t := idx.types[q]; t != nil {
			out = append(out, idx.summary(t))
		}
	}
	return out, nil
}

// SearchTypes matches prefix against simple names, or against qualified
// names when prefix contains a dot.
func (s *SourceIntrospector) SearchTypes(ctx context.Context, key workspace.Key, prefix string, limit int) ([]TypeSummary, error) {
	idx, err := s.index(ctx, key)
	if err != nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	qualified := strings.Contains(prefix, ".")
	lower := strings.ToLower(prefix)
	var out []TypeSummary
	for q, t := range idx.types {
		name := t.decl.Name
		if qualified {
			name = q
		}
		if strings.HasPrefix(strings.ToLower(name), lower) {
			out = append(out, idx.summary(t))
		}
	}
	sortSummaries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *SourceIntrospector) FileOf(ctx context.Context, key workspace.Key, qname string) (workspace.File, bool) {
	_, t, err := s.lookup(ctx, key, qname)
	if err != nil || t == nil {
		return workspace.File{}, false
	}
	return t.file, true
}

func (idx *sourceIndex) summary(t *sourceType) TypeSummary {
	sum := TypeSummary{
		QualifiedName: t.decl.QualifiedName,
		SimpleName:    t.decl.Name,
		Package:       t.unit.pkg,
		Interface:     t.decl.Kind == "interface",
		Supertypes:    idx.chain(t.decl.QualifiedName),
		File:          t.file,
	}
	if a, ok := t.decl.Annotation("Alias"); ok {
		sum.Alias = a.Value
	}
	for _, c := range t.decl.AliasCalls {
		sum.AliasCalls = append(sum.AliasCalls, idx.qualify(t, c))
	}
	return sum
}

func sortSummaries(s []TypeSummary) {
	sort.Slice(s, func(i, j int) bool { return s[i].QualifiedName < s[j].QualifiedName })
}

// qualify resolves a type as written inside t's file to a qualified name.
// Generic arguments are qualified recursively; unknown names are returned
// unchanged.
func (idx *sourceIndex) qualify(t *sourceType, written string) string {
	written = strings.TrimSpace(written)
	switch {
	case written == "":
		return ""
	case strings.HasSuffix(written, "[]"):
		return idx.qualify(t, strings.TrimSuffix(written, "[]")) + "[]"
	case strings.HasSuffix(written, ">"):
		open := strings.IndexByte(written, '<')
		if open < 0 {
			return written
		}
		args := splitTopLevel(written[open+1 : len(written)-1])
		for i, a := range args {
			args[i] = idx.qualify(t, a)
		}
		return idx.qualify(t, written[:open]) + "<" + strings.Join(args, ",") + ">"
	case written == "?":
		return ObjectType
	case strings.HasPrefix(written, "? extends "):
		return idx.qualify(t, strings.TrimPrefix(written, "? extends "))
	case strings.HasPrefix(written, "? super "):
		return ObjectType
	case IsPrimitive(written):
		return written
	}

	for _, tp := range t.decl.TypeParams {
		if tp == written {
			return ObjectType
		}
	}

	if first, rest, dotted := strings.Cut(written, "."); dotted {
		// Outer.Inner written relative to an imported or local type
		if q := idx.qualifySimple(t.unit, first); q != first {
			return q + "." + rest
		}
		return written
	}
	return idx.qualifySimple(t.unit, written)
}

func (idx *sourceIndex) qualifySimple(u *unit, name string) string {
	if q, ok := u.local[name]; ok {
		return q
	}
	for _, imp := range u.imports {
		if imp == name || strings.HasSuffix(imp, "."+name) {
			return imp
		}
	}
	if u.pkg != "" {
		if _, ok := idx.types[u.pkg+"."+name]; ok {
			return u.pkg + "." + name
		}
	}
	for _, w := range u.wildcard {
		cand := w + "." + name
		if _, ok := idx.types[cand]; ok || jdkQualified[cand] {
			return cand
		}
	}
	if q, ok := javaLang(name); ok {
		return q
	}
	return name
}

// TypeNameFromPath derives the top-level type a source file declares from its
// location under one of the project's source roots. Used when the file is
// gone and cannot be parsed.
func TypeNameFromPath(p workspace.Project, rel string) (string, bool) {
	for _, root := range p.SourceRoots {
		root = strings.Trim(root, "/")
		rest, ok := strings.CutPrefix(rel, root+"/")
		if root == "" {
			rest, ok = rel, true
		}
		if !ok {
			continue
		}
		dot := strings.LastIndexByte(rest, '.')
		if dot <= 0 {
			return "", false
		}
		return strings.ReplaceAll(rest[:dot], "/", "."), true
	}
	return "", false
}
