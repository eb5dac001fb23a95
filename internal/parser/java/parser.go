package java

import (
	"context"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/maraichr/batislens/internal/parser"
)

// Parser implements a tree-sitter based Java parser. A sitter.Parser is not
// safe for concurrent use, so calls are serialized.
type Parser struct {
	mu       sync.Mutex
	tsParser *sitter.Parser
}

func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Parser{tsParser: p}
}

func (p *Parser) Languages() []string {
	return []string{"java"}
}

func (p *Parser) Parse(input parser.FileInput) (*parser.ParseResult, error) {
	p.mu.Lock()
	tree, err := p.tsParser.ParseCtx(context.Background(), nil, input.Content)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	src := input.Content
	result := &parser.ParseResult{}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "package_declaration":
			result.Package = extractPackageName(child, src)

		case "import_declaration":
			path, wildcard, static := extractImport(child, src)
			if path == "" || static {
				continue
			}
			if wildcard {
				result.WildcardImports = append(result.WildcardImports, path)
			} else {
				result.Imports = append(result.Imports, path)
			}

		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			result.Types = append(result.Types, extractType(child, src, result.Package, "")...)
		}
	}

	return result, nil
}

func extractPackageName(node *sitter.Node, src []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "scoped_identifier" || child.Type() == "identifier" {
			return child.Content(src)
		}
	}
	return ""
}

func extractImport(node *sitter.Node, src []byte) (path string, wildcard, static bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "scoped_identifier", "identifier":
			path = child.Content(src)
		case "asterisk":
			wildcard = true
		case "static":
			static = true
		}
	}
	return path, wildcard, static
}

// extractType returns the declaration of node followed by its nested types.
func extractType(node *sitter.Node, src []byte, pkg, outer string) []parser.TypeDecl {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Content(src)
	local := name
	if outer != "" {
		local = outer + "." + name
	}

	decl := parser.TypeDecl{
		Name:          name,
		QualifiedName: qualifyJava(pkg, local),
		Kind:          strings.TrimSuffix(node.Type(), "_declaration"),
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
	}

	var nested []parser.TypeDecl
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "modifiers":
			decl.Annotations = extractAnnotations(child, src)
		case "type_parameters":
			decl.TypeParams = extractTypeParams(child, src)
		case "superclass":
			decl.SuperClass = extractTypeIdent(child, src)
		case "super_interfaces", "extends_interfaces":
			decl.Interfaces = append(decl.Interfaces, extractTypeList(child, src)...)
		case "formal_parameters":
			// record components become read-only properties
			for _, p := range extractParams(child, src) {
				decl.Fields = append(decl.Fields, parser.Field{Name: p.Name, Type: p.Type, Final: true})
				decl.Methods = append(decl.Methods, parser.Method{Name: p.Name, ReturnType: p.Type, Public: true})
			}
		case "class_body", "interface_body", "enum_body", "record_body":
			nested = extractMembers(child, src, pkg, local, &decl)
		}
	}
	if decl.Kind == "interface" {
		// interface members are implicitly public
		for i := range decl.Methods {
			decl.Methods[i].Public = true
		}
	}
	decl.AliasCalls = extractAliasCalls(node, src)

	return append([]parser.TypeDecl{decl}, nested...)
}

func extractMembers(body *sitter.Node, src []byte, pkg, local string, decl *parser.TypeDecl) []parser.TypeDecl {
	var nested []parser.TypeDecl
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "method_declaration":
			if m, ok := extractMethodDecl(child, src); ok {
				decl.Methods = append(decl.Methods, m)
			}

		case "field_declaration":
			decl.Fields = append(decl.Fields, extractFields(child, src)...)

		case "enum_body_declarations":
			nested = append(nested, extractMembers(child, src, pkg, local, decl)...)

		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			nested = append(nested, extractType(child, src, pkg, local)...)
		}
	}
	return nested
}

func extractMethodDecl(node *sitter.Node, src []byte) (parser.Method, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return parser.Method{}, false
	}
	m := parser.Method{
		Name: nameNode.Content(src),
		Line: int(node.StartPoint().Row) + 1,
	}
	if t := node.ChildByFieldName("type"); t != nil {
		m.ReturnType = normalizeType(t.Content(src))
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		m.Params = extractParams(params, src)
	}
	if mods := findChild(node, "modifiers"); mods != nil {
		m.Public = hasModifier(mods, "public")
		m.Static = hasModifier(mods, "static")
	}
	return m, true
}

func extractParams(node *sitter.Node, src []byte) []parser.Param {
	var params []parser.Param
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "formal_parameter" && child.Type() != "spread_parameter" {
			continue
		}
		p := parser.Param{}
		if t := child.ChildByFieldName("type"); t != nil {
			p.Type = normalizeType(t.Content(src))
		}
		if n := child.ChildByFieldName("name"); n != nil {
			p.Name = n.Content(src)
		}
		if child.Type() == "spread_parameter" {
			p = spreadParam(child, src)
		}
		if dims := child.ChildByFieldName("dimensions"); dims != nil {
			p.Type += normalizeType(dims.Content(src))
		}
		if mods := findChild(child, "modifiers"); mods != nil {
			for _, a := range extractAnnotations(mods, src) {
				if a.Name == "Param" || strings.HasSuffix(a.Name, ".Param") {
					p.Binding = a.Value
				}
			}
		}
		params = append(params, p)
	}
	return params
}

// spreadParam handles varargs, which tree-sitter models without field names.
func spreadParam(node *sitter.Node, src []byte) parser.Param {
	p := parser.Param{}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier", "generic_type", "scoped_type_identifier", "integral_type",
			"floating_point_type", "boolean_type", "array_type":
			p.Type = normalizeType(child.Content(src)) + "[]"
		case "variable_declarator":
			if n := child.ChildByFieldName("name"); n != nil {
				p.Name = n.Content(src)
			}
		}
	}
	return p
}

func extractFields(node *sitter.Node, src []byte) []parser.Field {
	var fields []parser.Field
	typ := ""
	if t := node.ChildByFieldName("type"); t != nil {
		typ = normalizeType(t.Content(src))
	}
	var static, final, public bool
	if mods := findChild(node, "modifiers"); mods != nil {
		static = hasModifier(mods, "static")
		final = hasModifier(mods, "final")
		public = hasModifier(mods, "public")
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		n := child.ChildByFieldName("name")
		if n == nil {
			continue
		}
		ft := typ
		if dims := child.ChildByFieldName("dimensions"); dims != nil {
			ft += normalizeType(dims.Content(src))
		}
		fields = append(fields, parser.Field{Name: n.Content(src), Type: ft, Static: static, Final: final, Public: public})
	}
	return fields
}

func extractAnnotations(mods *sitter.Node, src []byte) []parser.Annotation {
	var annos []parser.Annotation
	for i := 0; i < int(mods.ChildCount()); i++ {
		child := mods.Child(i)
		if child.Type() != "marker_annotation" && child.Type() != "annotation" {
			continue
		}
		a := parser.Annotation{}
		if n := child.ChildByFieldName("name"); n != nil {
			a.Name = n.Content(src)
		}
		if args := child.ChildByFieldName("arguments"); args != nil {
			a.Value = extractAnnotationValue(args.Content(src))
		}
		annos = append(annos, a)
	}
	return annos
}

// extractAnnotationValue returns the string given as the sole argument or as
// value = "...".
func extractAnnotationValue(text string) string {
	if v := extractAnnotationParam(text, "value"); v != "" {
		return v
	}
	return extractAnnotationStringParam(text)
}

func extractAnnotationParam(text, param string) string {
	_, rest, found := strings.Cut(text, param)
	if !found {
		return ""
	}
	rest = strings.TrimSpace(rest)
	if len(rest) > 0 && rest[0] == '=' {
		rest = strings.TrimSpace(rest[1:])
		if len(rest) > 0 && rest[0] == '"' {
			end := strings.IndexByte(rest[1:], '"')
			if end >= 0 {
				return rest[1 : end+1]
			}
		}
	}
	return ""
}

func extractAnnotationStringParam(text string) string {
	idx := strings.IndexByte(text, '"')
	if idx < 0 {
		return ""
	}
	end := strings.IndexByte(text[idx+1:], '"')
	if end < 0 {
		return ""
	}
	return text[idx+1 : idx+1+end]
}

// extractAliasCalls collects X from addSimpleAlias(X.class) calls.
func extractAliasCalls(node *sitter.Node, src []byte) []string {
	var out []string
	walkTree(node, func(n *sitter.Node) {
		if n.Type() != "method_invocation" {
			return
		}
		name := n.ChildByFieldName("name")
		if name == nil || name.Content(src) != "addSimpleAlias" {
			return
		}
		args := n.ChildByFieldName("arguments")
		if args == nil {
			return
		}
		for i := 0; i < int(args.ChildCount()); i++ {
			arg := args.Child(i)
			if arg.Type() != "class_literal" {
				continue
			}
			out = append(out, strings.TrimSuffix(strings.TrimSpace(arg.Content(src)), ".class"))
		}
	})
	return out
}

func extractTypeParams(node *sitter.Node, src []byte) []string {
	var out []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "type_parameter" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			if gc := child.Child(j); gc.Type() == "type_identifier" || gc.Type() == "identifier" {
				out = append(out, gc.Content(src))
				break
			}
		}
	}
	return out
}

func extractTypeIdent(node *sitter.Node, src []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier", "identifier", "generic_type", "scoped_type_identifier":
			return normalizeType(child.Content(src))
		}
	}
	return ""
}

func extractTypeList(node *sitter.Node, src []byte) []string {
	var types []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "type_list" {
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case "type_identifier", "generic_type", "scoped_type_identifier":
					types = append(types, normalizeType(grandchild.Content(src)))
				}
			}
		}
	}
	return types
}

func hasModifier(mods *sitter.Node, keyword string) bool {
	for i := 0; i < int(mods.ChildCount()); i++ {
		if mods.Child(i).Type() == keyword {
			return true
		}
	}
	return false
}

func findChild(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}

func walkTree(node *sitter.Node, fn func(*sitter.Node)) {
	fn(node)
	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(i), fn)
	}
}

func qualifyJava(pkg, name string) string {
	if pkg != "" {
		return pkg + "." + name
	}
	return name
}

// normalizeType drops whitespace and annotations from a type as written, e.g.
// "Map<String, @NonNull User>" -> "Map<String,User>".
func normalizeType(t string) string {
	var b strings.Builder
	for i := 0; i < len(t); i++ {
		c := t[i]
		switch {
		case c == '@':
			for i+1 < len(t) && (isIdentByte(t[i+1]) || t[i+1] == '.') {
				i++
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
