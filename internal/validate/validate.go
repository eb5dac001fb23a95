// Package validate reports broken references in mapper and config files.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/mapperxml"
	"github.com/maraichr/batislens/internal/metrics"
	"github.com/maraichr/batislens/internal/resolver"
	"github.com/maraichr/batislens/internal/workspace"
)

// ErrCancelled is returned when the context ends during a traversal. It
// wraps the context error.
var ErrCancelled = errors.New("validation cancelled")

// paramPattern matches #{expr} and ${expr}, with or without options.
var paramPattern = regexp.MustCompile(`[#$]\{\s*([^,}\s]*)\s*[,}]`)

const defaultWorkers = 4

type Validator struct {
	engine  *resolver.Engine
	logger  *slog.Logger
	workers int
}

type Option func(*Validator)

// WithWorkers bounds how many files ValidateProject checks at once.
func WithWorkers(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.workers = n
		}
	}
}

func New(engine *resolver.Engine, logger *slog.Logger, opts ...Option) *Validator {
	v := &Validator{engine: engine, logger: logger, workers: defaultWorkers}
	for _, o := range opts {
		o(v)
	}
	return v
}

// ValidateFile checks one mapper or config file. Other files are ignored.
// The only errors are read failures and ErrCancelled.
func (v *Validator) ValidateFile(ctx context.Context, file workspace.File, sink diag.Sink) error {
	start := time.Now()
	content, err := v.engine.Workspace().Read(ctx, file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	switch workspace.Classify(file.Path, content) {
	case workspace.KindMapperXML, workspace.KindConfigXML:
	default:
		return nil
	}
	doc, err := mapperxml.Parse(content)
	if err != nil {
		v.logger.Debug("validating partial document", slog.String("file", file.String()), slog.String("error", err.Error()))
	}
	if doc.Root == nil {
		return nil
	}
	err = v.ValidateDocument(ctx, file, doc, sink)
	metrics.ValidationDuration(time.Since(start).Seconds())
	return err
}

// ValidateDocument checks an already parsed document.
func (v *Validator) ValidateDocument(ctx context.Context, file workspace.File, doc *mapperxml.Document, sink diag.Sink) error {
	r := &run{v: v, file: file, sink: sink}
	root := doc.Root
	if root.Name == "mapper" && root.AttrNode("namespace") == nil {
		r.report(root.Start+1, len(root.Name), diag.NamespaceMandatory, diag.SeverityError, "Namespace must be specified.")
	}
	return r.walk(ctx, resolver.NewScope(file, doc), root)
}

// Refresh validates file and stores its diagnostics, replacing older ones.
func (v *Validator) Refresh(ctx context.Context, file workspace.File, store *diag.Store) ([]diag.Diagnostic, error) {
	var c diag.Collector
	if err := v.ValidateFile(ctx, file, &c); err != nil {
		return nil, err
	}
	items := c.Diagnostics()
	store.Set(file, items)
	return items, nil
}

// Summary describes a project validation run.
type Summary struct {
	RunID    string        `json:"run_id"`
	Project  workspace.Key `json:"project"`
	Files    int           `json:"files"`
	Problems int64         `json:"problems"`
}

// ValidateProject checks every XML file of a project, a bounded number at
// a time. Per-file read failures are logged and skipped.
func (v *Validator) ValidateProject(ctx context.Context, project workspace.Key, sink diag.Sink) (Summary, error) {
	sum := Summary{RunID: uuid.NewString(), Project: project}
	files, err := v.engine.Workspace().Walk(ctx, project, "", "xml")
	if err != nil {
		return sum, err
	}
	sum.Files = len(files)
	v.logger.Info("validation started",
		slog.String("run_id", sum.RunID),
		slog.String("project", string(project)),
		slog.Int("files", len(files)))

	var problems atomic.Int64
	counting := diag.SinkFunc(func(f workspace.File, offset, length int, kind diag.ProblemKind, sev diag.Severity, msg string) {
		problems.Add(1)
		sink.Report(f, offset, length, kind, sev, msg)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for _, f := range files {
		g.Go(func() error {
			err := v.ValidateFile(gctx, f, counting)
			if errors.Is(err, ErrCancelled) {
				return err
			}
			if err != nil {
				v.logger.Warn("skip file", slog.String("file", f.String()), slog.String("error", err.Error()))
			}
			return nil
		})
	}
	err = g.Wait()
	sum.Problems = problems.Load()
	v.logger.Info("validation finished",
		slog.String("run_id", sum.RunID),
		slog.Int64("problems", sum.Problems))
	return sum, err
}

// run is the state of validating one document.
type run struct {
	v    *Validator
	file workspace.File
	sink diag.Sink
}

func (r *run) report(offset, length int, kind diag.ProblemKind, sev diag.Severity, msg string) {
	metrics.Diagnostic(string(kind))
	r.sink.Report(r.file, offset, length, kind, sev, msg)
}

// walk checks el in scope s, then its text and children in the scope el
// opens. Cancellation is checked before every element.
func (r *run) walk(ctx context.Context, s resolver.Scope, el *mapperxml.Element) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if deprecatedTags[el.Name] {
		r.report(el.Start+1, len(el.Name), diag.Deprecated, diag.SeverityWarning,
			fmt.Sprintf("'%s' is deprecated and should not be used.", el.Name))
	}
	for i := range el.Attrs {
		r.checkAttr(ctx, s, el, &el.Attrs[i])
	}

	inner := r.v.engine.Enter(ctx, s, el)
	if textTags[el.Name] {
		r.checkText(ctx, inner, el)
	}
	for _, c := range el.Children {
		if err := r.walk(ctx, inner, c); err != nil {
			return err
		}
		if c.Name == "bind" {
			inner = inner.WithVars(resolver.Var{Name: c.AttrValue("name")})
		}
	}
	return nil
}

func (r *run) checkAttr(ctx context.Context, s resolver.Scope, el *mapperxml.Element, a *mapperxml.Attr) {
	kind := Lookup(el.Name, a.Name)
	if kind == RefNone {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.v.logger.Error("attribute check failed",
				slog.String("file", r.file.String()),
				slog.String("tag", el.Name),
				slog.String("attr", a.Name),
				slog.Any("panic", p))
		}
	}()

	for _, part := range parts(el, a, listKinds[kind]) {
		if part.value == "" && kind != RefNamespace {
			continue
		}
		res := r.resolve(ctx, s, el, a.Name, kind, part.value)
		if res.Outcome != resolver.NotFound {
			continue
		}
		sev := diag.SeverityError
		if res.Problem == diag.Deprecated {
			sev = diag.SeverityWarning
		}
		r.report(part.offset, part.length, res.Problem, sev, res.Message)
	}
}

// resolve is the single dispatch from reference kind to resolver query.
func (r *run) resolve(ctx context.Context, s resolver.Scope, el *mapperxml.Element, attr string, kind RefKind, value string) resolver.Resolution {
	e := r.v.engine
	switch kind {
	case RefType, RefTypeHandler:
		if strings.Contains(value, "${") || e.ResolveType(ctx, s.Project, value).Found {
			return resolver.Resolution{Outcome: resolver.Found}
		}
		problem := diag.MissingType
		if kind == RefTypeHandler {
			problem = diag.MissingTypeHandler
		}
		return resolver.Resolution{Outcome: resolver.NotFound, Problem: problem,
			Message: fmt.Sprintf("Class/TypeAlias '%s' not found.", value)}
	case RefProperty:
		typ, owner := el.EnclosingType()
		if owner == nil {
			return resolver.Resolution{}
		}
		return e.ResolveResultProperty(ctx, s, typ, value)
	case RefForEachCollection:
		return e.ResolveParameter(ctx, s, value)
	case RefStatementID:
		return e.ResolveStatement(ctx, s, value)
	case RefResultMap:
		return e.ResolveReference(ctx, s, resolver.TargetResultMap, value)
	case RefSQL:
		return e.ResolveReference(ctx, s, resolver.TargetSQL, value)
	case RefSelect:
		return e.ResolveReference(ctx, s, resolver.TargetSelect, value)
	case RefNamespace:
		if value == "" && el.Parent == nil {
			return resolver.Resolution{Outcome: resolver.NotFound, Problem: diag.NamespaceMandatory,
				Message: "Namespace must be specified."}
		}
	case RefCacheRef:
		return e.ResolveNamespace(ctx, s, value)
	case RefDeprecated:
		return resolver.Resolution{Outcome: resolver.NotFound, Problem: diag.Deprecated,
			Message: fmt.Sprintf("'%s' is deprecated and should not be used.", attr)}
	}
	return resolver.Resolution{}
}

// checkText resolves the parameter expressions in the character data of el.
func (r *run) checkText(ctx context.Context, s resolver.Scope, el *mapperxml.Element) {
	for _, t := range el.Texts {
		for _, m := range paramPattern.FindAllStringSubmatchIndex(t.Raw, -1) {
			if m[2] < 0 || m[3] == m[2] {
				continue
			}
			expr := t.Raw[m[2]:m[3]]
			res := r.v.engine.ResolveParameter(ctx, s, expr)
			if res.Outcome == resolver.NotFound {
				r.report(t.Offset+m[2], m[3]-m[2], res.Problem, diag.SeverityError, res.Message)
			}
		}
	}
}

type valuePart struct {
	value  string
	offset int
	length int
}

// parts returns the trimmed value of a, split on commas for list
// attributes, with source positions. Attributes without a known position
// are reported at the element.
func parts(el *mapperxml.Element, a *mapperxml.Attr, list bool) []valuePart {
	if a.Length < 0 {
		return []valuePart{{value: strings.TrimSpace(a.Value), offset: el.Start + 1, length: len(el.Name)}}
	}
	segments := []string{a.Value}
	if list {
		segments = strings.Split(a.Value, ",")
	}
	var out []valuePart
	pos := 0
	for _, seg := range segments {
		trimmed := strings.TrimSpace(seg)
		lead := strings.Index(seg, trimmed)
		if trimmed == "" {
			lead = 0
		}
		out = append(out, valuePart{value: trimmed, offset: a.Offset + pos + lead, length: len(trimmed)})
		pos += len(seg) + 1
	}
	return out
}
