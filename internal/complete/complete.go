// Package complete computes completion proposals for attribute values and
// parameter expressions of mapper and config files.
package complete

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/maraichr/batislens/internal/introspect"
	"github.com/maraichr/batislens/internal/mapperxml"
	"github.com/maraichr/batislens/internal/metrics"
	"github.com/maraichr/batislens/internal/resolver"
	"github.com/maraichr/batislens/internal/workspace"
)

// ErrOffset is returned for an offset outside the content.
var ErrOffset = errors.New("offset out of range")

const typeLimit = 200

// Proposal is one completion. Applying it replaces ReplaceLength bytes at
// ReplaceStart with InsertText.
type Proposal struct {
	InsertText    string `json:"insert_text"`
	ReplaceStart  int    `json:"replace_start"`
	ReplaceLength int    `json:"replace_length"`
	Label         string `json:"label"`
	Kind          Kind   `json:"kind"`
	Relevance     int    `json:"relevance"`
}

// Sink receives the ordered proposals of one request.
type Sink interface {
	Accept(proposals []Proposal)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func([]Proposal)

func (f SinkFunc) Accept(p []Proposal) { f(p) }

// Request asks for proposals at Offset of File. Content overrides the
// stored file, for buffers with unsaved edits.
type Request struct {
	File    workspace.File
	Content []byte
	Offset  int
}

type Completer struct {
	engine *resolver.Engine
	logger *slog.Logger
}

func New(engine *resolver.Engine, logger *slog.Logger) *Completer {
	return &Completer{engine: engine, logger: logger}
}

// Complete hands the proposals for req to sink.
func (c *Completer) Complete(ctx context.Context, req Request, sink Sink) error {
	props, err := c.Proposals(ctx, req)
	if err != nil {
		return err
	}
	sink.Accept(props)
	return nil
}

// Proposals returns the proposals at the request offset ordered by
// relevance, then label.
func (c *Completer) Proposals(ctx context.Context, req Request) ([]Proposal, error) {
	content := req.Content
	if content == nil {
		var err error
		if content, err = c.engine.Workspace().Read(ctx, req.File); err != nil {
			return nil, fmt.Errorf("read %s: %w", req.File, err)
		}
	}
	if req.Offset < 0 || req.Offset > len(content) {
		return nil, fmt.Errorf("%w: %d", ErrOffset, req.Offset)
	}
	doc, err := mapperxml.Parse(content)
	if err != nil {
		c.logger.Debug("completing partial document", slog.String("file", req.File.String()), slog.String("error", err.Error()))
	}

	p := &position{file: req.File, doc: doc, src: content, offset: req.Offset}
	var out []Proposal
	r := roleNone
	if lt, tag, attr, valueStart, ok := mapperxml.OpenTag(content, req.Offset); ok {
		p.locate(lt)
		switch {
		case attr != "":
			r = attrRole(tag, attr)
			out = c.attribute(ctx, p, r, string(content[valueStart:req.Offset]))
		case isTagName(content[lt+1 : req.Offset]):
			r = roleResult
			out = c.results(ctx, p, p.parent, string(content[lt:req.Offset]))
		}
	} else {
		r, out = c.text(ctx, p)
	}

	sortProposals(out)
	metrics.Completion(r.String())
	return out, nil
}

// position is the completion site. self is the element whose start tag
// holds the offset when it was parsed; parent is the element containing it.
type position struct {
	file   workspace.File
	doc    *mapperxml.Document
	src    []byte
	offset int
	self   *mapperxml.Element
	parent *mapperxml.Element
}

func (p *position) locate(lt int) {
	el := p.doc.ElementAt(lt)
	if el != nil && el.Start == lt {
		p.self, p.parent = el, el.Parent
		return
	}
	p.parent = el
}

// scope returns the resolution context for the attributes of the element
// being edited.
func (c *Completer) scope(ctx context.Context, p *position) resolver.Scope {
	e := c.engine
	if p.self != nil {
		return e.ScopeAt(ctx, p.file, p.doc, p.self)
	}
	return c.inside(ctx, p, p.parent)
}

// inside returns the scope that applies to the content of el up to the
// completion offset.
func (c *Completer) inside(ctx context.Context, p *position, el *mapperxml.Element) resolver.Scope {
	e := c.engine
	if el == nil {
		return resolver.NewScope(p.file, p.doc)
	}
	s := e.Enter(ctx, e.ScopeAt(ctx, p.file, p.doc, el), el)
	for _, ch := range el.Children {
		if ch.Start >= p.offset {
			break
		}
		if ch.Name == "bind" {
			s = s.WithVars(resolver.Var{Name: ch.AttrValue("name")})
		}
	}
	return s
}

func (c *Completer) attribute(ctx context.Context, p *position, r role, value string) []Proposal {
	e := c.engine
	token := strings.TrimLeft(value, " \t\r\n")
	if listRoles[r] {
		if i := strings.LastIndexByte(token, ','); i >= 0 {
			token = strings.TrimLeft(token[i+1:], " \t\r\n")
		}
	}
	if r == roleExpression {
		token = trailingIdent(value)
	}
	start := p.offset - len(token)
	s := c.scope(ctx, p)

	switch r {
	case roleType:
		return c.types(ctx, s.Project, token, start)

	case roleProperty:
		owner := resultOwner(p)
		if owner == nil {
			return nil
		}
		props := e.PropertyCandidates(ctx, s.Project, owner.DeclaredType(), token, true)
		return members(props, token, p.offset, KindProperty)

	case roleParameter, roleExpression:
		return members(e.ParameterCandidates(ctx, s, token), token, p.offset, KindParameter)

	case roleStatement:
		declared := map[string]bool{}
		for _, st := range p.doc.Statements() {
			if st != p.self {
				declared[st.AttrValue("id")] = true
			}
		}
		var out []Proposal
		for _, sig := range e.StatementCandidates(ctx, s, token) {
			if declared[sig.Name] {
				continue
			}
			out = append(out, Proposal{
				InsertText: sig.Name, ReplaceStart: start, ReplaceLength: len(token),
				Label: fmt.Sprintf("%s - %s", sig.Name, introspect.SimpleName(sig.Declaring)),
				Kind:  KindStatement, Relevance: 20,
			})
		}
		return out

	case roleResultMap, roleSQL, roleSelect:
		var out []Proposal
		for _, ref := range e.ReferenceCandidates(ctx, s, roleTargets[r], token) {
			rel := 30
			if strings.Contains(ref, ".") {
				rel = 10
			}
			out = append(out, Proposal{
				InsertText: ref, ReplaceStart: start, ReplaceLength: len(token),
				Label: ref, Kind: KindReference, Relevance: rel,
			})
		}
		return out

	case roleNamespace:
		var out []Proposal
		for _, ns := range e.NamespaceCandidates(ctx, p.file) {
			if hasPrefixFold(ns, token) {
				out = append(out, Proposal{
					InsertText: ns, ReplaceStart: start, ReplaceLength: len(token),
					Label: ns, Kind: KindNamespace, Relevance: 30,
				})
			}
		}
		return out

	case roleCacheRef:
		var out []Proposal
		for _, b := range e.Caches().Namespaces.Bindings(ctx, s.Project) {
			if b.Namespace != s.Namespace && hasPrefixFold(b.Namespace, token) {
				out = append(out, Proposal{
					InsertText: b.Namespace, ReplaceStart: start, ReplaceLength: len(token),
					Label: b.Namespace, Kind: KindNamespace, Relevance: 20,
				})
			}
		}
		return out

	case rolePackage:
		var out []Proposal
		for _, pkg := range e.PackageCandidates(ctx, s.Project, token) {
			out = append(out, Proposal{
				InsertText: pkg, ReplaceStart: start, ReplaceLength: len(token),
				Label: pkg, Kind: KindPackage, Relevance: 20,
			})
		}
		return out
	}
	return nil
}

func (c *Completer) types(ctx context.Context, project workspace.Key, token string, start int) []Proposal {
	var out []Proposal
	for _, t := range c.engine.TypeCandidates(ctx, project, token, typeLimit) {
		pr := Proposal{
			InsertText: t.Name, ReplaceStart: start, ReplaceLength: len(token),
			Label: t.Name, Kind: KindType,
		}
		switch t.Kind {
		case resolver.CandidateAlias:
			pr.Label, pr.Relevance = t.Name+" - "+t.Qualified, 30
		case resolver.CandidateType:
			pr.Relevance = 20
		case resolver.CandidateBuiltin:
			pr.Label, pr.Relevance = t.Name+" - "+t.Qualified, 10
		}
		out = append(out, pr)
	}
	return out
}

// members turns name -> type candidates for the last segment of token into
// proposals that replace only that segment.
func members(cands map[string]string, token string, offset int, kind Kind) []Proposal {
	last := token
	if i := strings.LastIndexByte(token, '.'); i >= 0 {
		last = token[i+1:]
	}
	out := make([]Proposal, 0, len(cands))
	for name, typ := range cands {
		label := name
		if typ != "" {
			label = name + " : " + introspect.SimpleName(introspect.Erasure(typ))
		}
		out = append(out, Proposal{
			InsertText: name, ReplaceStart: offset - len(last), ReplaceLength: len(last),
			Label: label, Kind: kind, Relevance: 20,
		})
	}
	return out
}

// text completes inside character data: parameter expressions and their
// options, or result mappings in result map bodies.
func (c *Completer) text(ctx context.Context, p *position) (role, []Proposal) {
	el := p.doc.ElementAt(p.offset)
	if el != nil && el.InStartTag(p.offset) {
		return roleNone, nil
	}
	expr, ok := openExpression(p.src, p.offset)
	if !ok {
		if el != nil && resultOwners[el.Name] {
			token := ""
			if p.offset > 0 && p.src[p.offset-1] == '<' {
				token = "<"
			}
			return roleResult, c.results(ctx, p, el, token)
		}
		return roleNone, nil
	}
	if i := strings.LastIndexByte(expr, ','); i >= 0 {
		return roleOption, c.options(ctx, p, el, strings.TrimLeft(expr[i+1:], " \t\r\n"))
	}
	s := c.inside(ctx, p, el)
	token := strings.TrimLeft(expr, " \t\r\n")
	return roleParameter, members(c.engine.ParameterCandidates(ctx, s, token), token, p.offset, KindParameter)
}

// openExpression returns the text between an unclosed "#{" or "${" and
// offset.
func openExpression(src []byte, offset int) (string, bool) {
	before := string(src[:offset])
	i := max(strings.LastIndex(before, "#{"), strings.LastIndex(before, "${"))
	if i < 0 {
		return "", false
	}
	expr := before[i+2:]
	if strings.ContainsAny(expr, "}<>") {
		return "", false
	}
	return expr, true
}

var optionNames = []string{"jdbcType", "javaType", "typeHandler", "mode", "numericScale", "resultMap", "jdbcTypeName"}

var jdbcTypes = []string{
	"ARRAY", "BIGINT", "BINARY", "BIT", "BLOB", "BOOLEAN", "CHAR", "CLOB",
	"CURSOR", "DATALINK", "DATE", "DATETIMEOFFSET", "DECIMAL", "DOUBLE",
	"FLOAT", "INTEGER", "LONGNVARCHAR", "LONGVARBINARY", "LONGVARCHAR",
	"NCHAR", "NCLOB", "NULL", "NUMERIC", "NVARCHAR", "OTHER", "REAL",
	"SMALLINT", "SQLXML", "STRUCT", "TIME", "TIME_WITH_TIMEZONE",
	"TIMESTAMP", "TIMESTAMP_WITH_TIMEZONE", "TINYINT", "UNDEFINED",
	"VARBINARY", "VARCHAR",
}

var parameterModes = []string{"IN", "OUT", "INOUT"}

// options completes "name=" option names after a comma in a parameter
// expression, and values for the options that take known ones.
func (c *Completer) options(ctx context.Context, p *position, el *mapperxml.Element, opt string) []Proposal {
	name, value, hasValue := strings.Cut(opt, "=")
	if !hasValue {
		var out []Proposal
		for _, o := range optionNames {
			if hasPrefixFold(o, opt) {
				out = append(out, Proposal{
					InsertText: o + "=", ReplaceStart: p.offset - len(opt), ReplaceLength: len(opt),
					Label: o, Kind: KindOption, Relevance: 20,
				})
			}
		}
		return out
	}
	value = strings.TrimLeft(value, " \t")
	start := p.offset - len(value)
	var values []string
	switch strings.TrimSpace(name) {
	case "jdbcType":
		values = jdbcTypes
	case "mode":
		values = parameterModes
	case "javaType", "typeHandler":
		return c.types(ctx, p.file.Project, value, start)
	case "resultMap":
		s := c.inside(ctx, p, el)
		var out []Proposal
		for _, ref := range c.engine.ReferenceCandidates(ctx, s, resolver.TargetResultMap, value) {
			out = append(out, Proposal{
				InsertText: ref, ReplaceStart: start, ReplaceLength: len(value),
				Label: ref, Kind: KindReference, Relevance: 20,
			})
		}
		return out
	}
	var out []Proposal
	for _, v := range values {
		if hasPrefixFold(v, value) {
			out = append(out, Proposal{
				InsertText: v, ReplaceStart: start, ReplaceLength: len(value),
				Label: v, Kind: KindOption, Relevance: 20,
			})
		}
	}
	return out
}

var resultOwners = map[string]bool{"resultMap": true, "collection": true, "association": true, "case": true}

// resultOwner returns the element whose declared type the property
// attribute being edited refers to.
func resultOwner(p *position) *mapperxml.Element {
	if p.self != nil {
		_, owner := p.self.EnclosingType()
		return owner
	}
	if p.parent == nil {
		return nil
	}
	return p.parent.Closest("resultMap", "collection", "association", "case")
}

// results proposes a <result/> element for every writable property of the
// owner's type that no child maps yet, and one proposal mapping them all.
// token is the partial tag typed so far, including '<'.
func (c *Completer) results(ctx context.Context, p *position, owner *mapperxml.Element, token string) []Proposal {
	if owner == nil || !resultOwners[owner.Name] || !strings.HasPrefix("<result", token) {
		return nil
	}
	info, ok := c.engine.Info(ctx, p.file.Project, owner.DeclaredType())
	if !ok || info.Dynamic {
		return nil
	}
	mapped := map[string]bool{}
	for _, ch := range owner.Children {
		if v := ch.AttrValue("property"); v != "" {
			mapped[v] = true
		}
	}
	var names []string
	for n := range info.Writable {
		if !mapped[n] {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	start := p.offset - len(token)
	out := make([]Proposal, 0, len(names)+1)
	lines := make([]string, 0, len(names))
	for _, n := range names {
		line := fmt.Sprintf(`<result property="%s" column="%s"/>`, n, columnName(n))
		lines = append(lines, line)
		out = append(out, Proposal{
			InsertText: line, ReplaceStart: start, ReplaceLength: len(token),
			Label: "result " + n, Kind: KindResult, Relevance: 20,
		})
	}
	if len(names) > 1 {
		out = append(out, Proposal{
			InsertText: strings.Join(lines, "\n"), ReplaceStart: start, ReplaceLength: len(token),
			Label: "result (all unmapped properties)", Kind: KindResult, Relevance: 10,
		})
	}
	return out
}

// columnName converts a camel case property name to snake case.
func columnName(property string) string {
	var b strings.Builder
	for i := 0; i < len(property); i++ {
		ch := property[i]
		if ch >= 'A' && ch <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			ch += 'a' - 'A'
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func isTagName(b []byte) bool {
	for _, ch := range b {
		if !isIdentByte(ch) && ch != '-' {
			return false
		}
	}
	return true
}

func isIdentByte(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

// trailingIdent returns the property path at the end of an OGNL test or
// bind expression.
func trailingIdent(s string) string {
	i := len(s)
	for i > 0 {
		ch := s[i-1]
		if !isIdentByte(ch) && ch != '.' && ch != '[' && ch != ']' {
			break
		}
		i--
	}
	return s[i:]
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func sortProposals(out []Proposal) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		li, lj := strings.ToLower(out[i].Label), strings.ToLower(out[j].Label)
		if li != lj {
			return li < lj
		}
		return out[i].Label < out[j].Label
	})
}
