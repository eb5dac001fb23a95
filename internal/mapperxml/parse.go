package mapperxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Parse builds a Document from src. Parsing is lenient: on malformed input
// the document built so far is returned together with the error, and
// unclosed elements extend to the end of the input.
func Parse(src []byte) (*Document, error) {
	decoder := xml.NewDecoder(bytes.NewReader(src))
	decoder.Strict = false

	doc := &Document{Src: src}
	var stack []*Element
	var perr error

	for {
		start := int(decoder.InputOffset())
		tok, err := decoder.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			perr = fmt.Errorf("parse xml at offset %d: %w", start, err)
			break
		}
		end := int(decoder.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			elem := &Element{
				Name:         qualified(t.Name),
				Start:        start,
				ContentStart: end,
				End:          len(src),
			}
			offsets := scanAttrOffsets(src[start:end], start)
			for _, a := range t.Attr {
				name := qualified(a.Name)
				attr := Attr{Name: name, Value: a.Value, Offset: -1, Length: -1}
				if pos, ok := offsets[name]; ok {
					attr.Offset, attr.Length = pos[0], pos[1]
				}
				elem.Attrs = append(elem.Attrs, attr)
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, elem)
				elem.Parent = parent
			} else if doc.Root == nil {
				doc.Root = elem
			}
			doc.elements = append(doc.elements, elem)
			stack = append(stack, elem)

		case xml.EndElement:
			name := qualified(t.Name)
			// pop to the matching element; stray end tags are ignored
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].Name == name {
					for _, open := range stack[i:] {
						open.End = end
					}
					stack = stack[:i]
					break
				}
			}

		case xml.CharData:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.Texts = append(top.Texts, Text{Raw: string(src[start:end]), Offset: start})
			}
		}
	}

	if doc.Root == nil && perr == nil {
		perr = errors.New("parse xml: no root element")
	}
	return doc, perr
}

// ExtractNamespace reads only as far as the root element and returns its
// namespace attribute when the root is a mapper.
func ExtractNamespace(src []byte) (string, bool) {
	decoder := xml.NewDecoder(bytes.NewReader(src))
	decoder.Strict = false
	for {
		tok, err := decoder.RawToken()
		if err != nil {
			return "", false
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "mapper" || se.Name.Space != "" {
				return "", false
			}
			for _, a := range se.Attr {
				if a.Name.Local == "namespace" && a.Name.Space == "" {
					return a.Value, true
				}
			}
			return "", true
		}
	}
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// scanAttrOffsets locates quoted attribute values in a raw start tag. It
// returns name -> {offset, length} of the value between the quotes.
func scanAttrOffsets(raw []byte, base int) map[string][2]int {
	out := map[string][2]int{}
	i := 1 // skip '<'
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' && raw[i] != '/' {
		i++
	}
	for i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i >= len(raw) || raw[i] == '>' || raw[i] == '/' {
			break
		}
		nameStart := i
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		name := string(raw[nameStart:i])
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i >= len(raw) || raw[i] != '=' {
			continue
		}
		i++
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		if i >= len(raw) {
			break
		}
		quote := raw[i]
		if quote != '"' && quote != '\'' {
			// unquoted value
			for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' {
				i++
			}
			continue
		}
		valStart := i + 1
		closeAt := bytes.IndexByte(raw[valStart:], quote)
		if closeAt < 0 {
			out[name] = [2]int{base + valStart, len(raw) - valStart}
			break
		}
		if _, seen := out[name]; !seen {
			out[name] = [2]int{base + valStart, closeAt}
		}
		i = valStart + closeAt + 1
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// OpenTag inspects possibly incomplete src around offset. When offset lies in
// a start tag it returns the tag's '<' position and name, and, when offset is
// inside a quoted attribute value, that attribute's name and value start.
func OpenTag(src []byte, offset int) (lt int, tag, attr string, valueStart int, ok bool) {
	if offset > len(src) {
		offset = len(src)
	}
	lt = bytes.LastIndexByte(src[:offset], '<')
	if lt < 0 || bytes.IndexByte(src[lt:offset], '>') >= 0 {
		return 0, "", "", 0, false
	}
	raw := src[lt:offset]
	end := 1
	for end < len(raw) && !isSpace(raw[end]) && raw[end] != '/' {
		end++
	}
	tag = string(raw[1:end])
	if tag == "" || tag[0] == '/' || tag[0] == '!' || tag[0] == '?' {
		return 0, "", "", 0, false
	}
	for name, pos := range scanAttrOffsets(raw, lt) {
		if pos[0]+pos[1] == offset && quoteOpen(raw, pos[0]-lt) {
			return lt, tag, name, pos[0], true
		}
	}
	return lt, tag, "", -1, true
}

// quoteOpen reports whether the value starting at valStart has no closing
// quote in raw.
func quoteOpen(raw []byte, valStart int) bool {
	if valStart < 1 || valStart > len(raw) {
		return false
	}
	return bytes.IndexByte(raw[valStart:], raw[valStart-1]) < 0
}
