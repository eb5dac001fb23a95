package alias

import (
	"context"
	"log/slog"
	"strings"

	"github.com/maraichr/batislens/internal/cache/configreg"
	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/mapperxml"
	"github.com/maraichr/batislens/internal/workspace"
)

// ConfigLoader finds aliases declared by config files (typeAlias elements,
// package scans, Spring factory bean properties), by project settings and by
// module classes that call addSimpleAlias.
type ConfigLoader struct {
	ws      *workspace.Workspace
	configs *configreg.Registry
	catalog introspect.Catalog
	logger  *slog.Logger
}

func NewConfigLoader(ws *workspace.Workspace, configs *configreg.Registry, catalog introspect.Catalog, logger *slog.Logger) *ConfigLoader {
	return &ConfigLoader{ws: ws, configs: configs, catalog: catalog, logger: logger}
}

func (l *ConfigLoader) Load(ctx context.Context, project workspace.Key) (Declared, error) {
	decl := Declared{Aliases: map[string]string{}}
	var explicitTypes []string

	for _, cf := range l.configs.Files(ctx, project) {
		content, err := l.ws.Read(ctx, cf.File)
		if err != nil {
			l.logger.Warn("read config", slog.String("file", cf.File.String()), slog.String("error", err.Error()))
			continue
		}
		doc, err := mapperxml.Parse(content)
		if err != nil {
			l.logger.Debug("config parsed partially", slog.String("file", cf.File.String()), slog.String("error", err.Error()))
		}
		if doc.Root == nil {
			continue
		}
		switch cf.Kind {
		case workspace.KindConfigXML:
			for _, e := range doc.Find("typeAlias") {
				typ := e.AttrValue("type")
				if typ == "" {
					continue
				}
				if a := e.AttrValue("alias"); a != "" {
					decl.Aliases[a] = typ
					decl.Pinned = append(decl.Pinned, a)
				} else {
					explicitTypes = append(explicitTypes, typ)
				}
			}
			for _, e := range doc.Find("package") {
				if e.Parent != nil && e.Parent.Name == "typeAliases" {
					if name := e.AttrValue("name"); name != "" {
						decl.Packages = append(decl.Packages, name)
					}
				}
			}
		case workspace.KindSpringConfigXML:
			pkgs, types := springAliases(doc)
			decl.Packages = append(decl.Packages, pkgs...)
			explicitTypes = append(explicitTypes, types...)
		}
	}

	p, ok := l.ws.Project(project)
	if ok {
		decl.Packages = append(decl.Packages, p.AliasPackages...)
	}

	for _, q := range explicitTypes {
		decl.Aliases[l.aliasOf(ctx, project, q)] = q
	}

	for _, pkg := range decl.Packages {
		types, err := l.catalog.TypesInPackage(ctx, project, pkg)
		if err != nil {
			l.logger.Warn("scan alias package", slog.String("package", pkg), slog.String("error", err.Error()))
			continue
		}
		for _, t := range types {
			if t.Interface {
				continue
			}
			a := t.Alias
			if a == "" {
				a = t.SimpleName
			}
			if _, exists := decl.Aliases[a]; !exists {
				decl.Aliases[a] = t.QualifiedName
			}
		}
	}

	if ok {
		decl.Pinned = append(decl.Pinned, l.loadModuleAliases(ctx, p, decl.Aliases)...)
	}
	return decl, nil
}

// loadModuleAliases registers the simple names of classes passed to
// addSimpleAlias by subclasses of the project's module root types, and
// returns the names it registered.
func (l *ConfigLoader) loadModuleAliases(ctx context.Context, p workspace.Project, aliases map[string]string) []string {
	all, err := l.catalog.SearchTypes(ctx, p.Key, "", 0)
	if err != nil {
		l.logger.Warn("list types", slog.String("project", string(p.Key)), slog.String("error", err.Error()))
		return nil
	}
	var names []string
	for _, t := range all {
		if len(t.AliasCalls) == 0 || !IsModuleRoot(t, p.ModuleRootTypes) {
			continue
		}
		for _, q := range t.AliasCalls {
			a := introspect.SimpleName(q)
			aliases[a] = q
			names = append(names, a)
		}
	}
	return names
}

// IsModuleRoot reports whether t extends one of roots. A root given as a
// simple name matches unresolved supertypes too.
func IsModuleRoot(t introspect.TypeSummary, roots []string) bool {
	for _, s := range t.Supertypes {
		for _, r := range roots {
			if s == r || (!strings.Contains(r, ".") && introspect.SimpleName(s) == r) {
				return true
			}
		}
	}
	return false
}

func (l *ConfigLoader) aliasOf(ctx context.Context, project workspace.Key, qname string) string {
	types, err := l.catalog.TypesInPackage(ctx, project, introspect.PackageOf(qname))
	if err == nil {
		for _, t := range types {
			if t.QualifiedName == qname && t.Alias != "" {
				return t.Alias
			}
		}
	}
	return introspect.SimpleName(qname)
}

// springAliases reads typeAliasesPackage and typeAliases properties of
// factory beans.
func springAliases(doc *mapperxml.Document) (packages, types []string) {
	for _, prop := range doc.Find("property") {
		switch prop.AttrValue("name") {
		case "typeAliasesPackage":
			value := prop.AttrValue("value")
			if value == "" {
				value = childValues(prop, " ")
			}
			packages = append(packages, splitPackages(value)...)
		case "typeAliases":
			if v := prop.AttrValue("value"); v != "" {
				types = append(types, splitPackages(v)...)
			}
			types = append(types, strings.Fields(childValues(prop, " "))...)
		}
	}
	return packages, types
}

func childValues(e *mapperxml.Element, sep string) string {
	var parts []string
	var walk func(*mapperxml.Element)
	walk = func(n *mapperxml.Element) {
		for _, c := range n.Children {
			if c.Name == "value" {
				for _, t := range c.Texts {
					parts = append(parts, strings.TrimSpace(t.Raw))
				}
			}
			walk(c)
		}
	}
	walk(e)
	return strings.Join(parts, sep)
}

// splitPackages splits on the delimiters the Spring factory bean accepts.
func splitPackages(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
