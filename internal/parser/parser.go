package parser

// Parser extracts type declarations from host-language source files.
type Parser interface {
	// Parse processes a single file and returns the declared types.
	Parse(input FileInput) (*ParseResult, error)

	// Languages returns the languages this parser handles.
	Languages() []string
}

// FileInput represents a file to be parsed.
type FileInput struct {
	Path     string
	Content  []byte
	Language string
}

// ParseResult holds what a source file declares plus the name-resolution
// context (package and imports) needed to qualify the types it mentions.
type ParseResult struct {
	Package         string
	Imports         []string // single-type imports, fully qualified
	WildcardImports []string // packages imported with .*
	Types           []TypeDecl
}

// TypeDecl is a class, interface, enum or record declaration. Nested types
// appear as separate entries with dotted qualified names.
type TypeDecl struct {
	Name          string
	QualifiedName string
	Kind          string // class, interface, enum, record
	SuperClass    string // as written, may be simple or generic
	Interfaces    []string
	TypeParams    []string
	Annotations   []Annotation
	Fields        []Field
	Methods       []Method
	AliasCalls    []string // class literals passed to addSimpleAlias(...)
	StartLine     int
	EndLine       int
}

// Annotation is an annotation use with its single (or "value") string argument.
type Annotation struct {
	Name  string
	Value string
}

type Field struct {
	Name   string
	Type   string
	Static bool
	Final  bool
	Public bool
}

type Method struct {
	Name       string
	ReturnType string
	Params     []Param
	Static     bool
	Public     bool
	Line       int
}

// Param is a formal parameter. Binding holds the explicit binding name
// declared with @Param, empty when absent.
type Param struct {
	Name    string
	Type    string
	Binding string
}

// Annotation returns the annotation with the given simple or qualified name.
func (t TypeDecl) Annotation(name string) (Annotation, bool) {
	for _, a := range t.Annotations {
		if a.Name == name || hasSimpleName(a.Name, name) {
			return a, true
		}
	}
	return Annotation{}, false
}

func hasSimpleName(qualified, simple string) bool {
	n := len(qualified) - len(simple)
	return n > 0 && qualified[n-1] == '.' && qualified[n:] == simple
}
