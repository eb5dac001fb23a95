// Package mapperxml is a minimal, offset-preserving DOM for mapper and
// config XML files.
package mapperxml

import "strings"

// StatementTags are the elements that declare mapped statements.
var StatementTags = []string{"select", "insert", "update", "delete"}

func IsStatementTag(tag string) bool {
	for _, t := range StatementTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Document is a parsed XML file. Offsets are byte offsets into Src.
type Document struct {
	Root     *Element
	Src      []byte
	elements []*Element // document order
}

type Element struct {
	Name     string
	Attrs    []Attr
	Children []*Element
	Texts    []Text
	Parent   *Element

	Start        int // offset of '<'
	ContentStart int // offset after the start tag
	End          int // offset after the end tag
}

// Attr is an attribute. Offset and Length delimit the raw value between the
// quotes; Length is -1 when the position could not be determined.
type Attr struct {
	Name   string
	Value  string
	Offset int
	Length int
}

// Text is a run of character data. Raw is the undecoded source, so offsets
// into Raw map directly to the file.
type Text struct {
	Raw    string
	Offset int
}

func (e *Element) Attr(name string) (string, bool) {
	if a := e.AttrNode(name); a != nil {
		return a.Value, true
	}
	return "", false
}

// AttrValue returns the trimmed value of name, or "".
func (e *Element) AttrValue(name string) string {
	v, _ := e.Attr(name)
	return strings.TrimSpace(v)
}

func (e *Element) AttrNode(name string) *Attr {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			return &e.Attrs[i]
		}
	}
	return nil
}

// Ancestor returns the nearest strict ancestor with one of the given names.
func (e *Element) Ancestor(names ...string) *Element {
	for p := e.Parent; p != nil; p = p.Parent {
		for _, n := range names {
			if p.Name == n {
				return p
			}
		}
	}
	return nil
}

// Closest is Ancestor but considers e itself first.
func (e *Element) Closest(names ...string) *Element {
	for _, n := range names {
		if e.Name == n {
			return e
		}
	}
	return e.Ancestor(names...)
}

// Namespace returns the namespace attribute of a mapper root, or "".
func (d *Document) Namespace() string {
	if d == nil || d.Root == nil || d.Root.Name != "mapper" {
		return ""
	}
	return d.Root.AttrValue("namespace")
}

// Elements returns all elements in document order.
func (d *Document) Elements() []*Element {
	return d.elements
}

// Find returns the elements with the given tag in document order.
func (d *Document) Find(tag string) []*Element {
	var out []*Element
	for _, e := range d.elements {
		if e.Name == tag {
			out = append(out, e)
		}
	}
	return out
}

// HasElement reports whether an element tag with the given id exists.
func (d *Document) HasElement(tag, id string) bool {
	if d == nil {
		return false
	}
	for _, e := range d.elements {
		if e.Name == tag && e.AttrValue("id") == id {
			return true
		}
	}
	return false
}

// IDs returns the id attributes of every tag element, in document order.
func (d *Document) IDs(tag string) []string {
	var out []string
	for _, e := range d.Find(tag) {
		if id := e.AttrValue("id"); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Statements returns the statement elements.
func (d *Document) Statements() []*Element {
	var out []*Element
	for _, e := range d.elements {
		if IsStatementTag(e.Name) {
			out = append(out, e)
		}
	}
	return out
}

// ElementAt returns the innermost element whose span contains offset.
func (d *Document) ElementAt(offset int) *Element {
	var best *Element
	for _, e := range d.elements {
		if offset >= e.Start && offset < e.End {
			best = e // later elements in document order are nested deeper
		}
	}
	return best
}

// AttrAt returns the attribute whose value contains offset. The position
// right after the last value byte counts as inside.
func (d *Document) AttrAt(offset int) (*Element, *Attr) {
	e := d.ElementAt(offset)
	if e == nil {
		return nil, nil
	}
	for i := range e.Attrs {
		a := &e.Attrs[i]
		if a.Length >= 0 && offset >= a.Offset && offset <= a.Offset+a.Length {
			return e, a
		}
	}
	return e, nil
}

// TextAt returns the text segment containing offset.
func (d *Document) TextAt(offset int) (*Element, *Text) {
	e := d.ElementAt(offset)
	if e == nil {
		return nil, nil
	}
	for i := range e.Texts {
		t := &e.Texts[i]
		if offset >= t.Offset && offset <= t.Offset+len(t.Raw) {
			return e, t
		}
	}
	return e, nil
}

// InStartTag reports whether offset lies inside the start tag of e.
func (e *Element) InStartTag(offset int) bool {
	return offset > e.Start && offset < e.ContentStart
}

// EnclosingStatement returns the statement element containing e, e included.
func (e *Element) EnclosingStatement() *Element {
	return e.Closest(StatementTags...)
}

// EnclosingForEach returns the nearest strict foreach ancestor of e.
func (e *Element) EnclosingForEach() *Element {
	return e.Ancestor("foreach")
}

// typeAttrs lists, per result mapping element, the attributes naming the
// type its nested property mappings apply to, in order of preference.
var typeAttrs = map[string][]string{
	"resultMap":   {"type"},
	"collection":  {"ofType", "javaType"},
	"association": {"javaType", "resultType"},
	"case":        {"resultType"},
}

// DeclaredType returns the raw type name a result mapping element declares
// for the property mappings nested in it, or "".
func (e *Element) DeclaredType() string {
	for _, a := range typeAttrs[e.Name] {
		if v := e.AttrValue(a); v != "" {
			return v
		}
	}
	return ""
}

// EnclosingType returns the raw type name that property attributes of e
// refer to, taken from the nearest strict ancestor that is a result mapping
// element. It returns "" when that ancestor declares no type.
func (e *Element) EnclosingType() (string, *Element) {
	owner := e.Ancestor("resultMap", "collection", "association", "case")
	if owner == nil {
		return "", nil
	}
	return owner.DeclaredType(), owner
}
