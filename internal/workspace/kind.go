package workspace

import (
	"bytes"
	"strings"
)

// ContentKind classifies a workspace file by what it declares.
type ContentKind int

const (
	KindUnknown ContentKind = iota
	KindJavaSource
	KindMapperXML
	KindConfigXML
	KindSpringConfigXML
)

func (k ContentKind) String() string {
	switch k {
	case KindJavaSource:
		return "java"
	case KindMapperXML:
		return "mapper"
	case KindConfigXML:
		return "config"
	case KindSpringConfigXML:
		return "spring-config"
	default:
		return "unknown"
	}
}

// IsConfig reports whether k declares global settings (aliases, scan roots).
func (k ContentKind) IsConfig() bool {
	return k == KindConfigXML || k == KindSpringConfigXML
}

// sniffLimit bounds how much of an XML file is inspected for its kind.
const sniffLimit = 4096

// Classify determines the content kind from the path and the head of the file.
// Non-XML, non-Java files are KindUnknown.
func Classify(p string, content []byte) ContentKind {
	switch ext := (File{Path: p}).Ext(); ext {
	case "java":
		return KindJavaSource
	case "xml":
	default:
		return KindUnknown
	}
	head := content
	if len(head) > sniffLimit {
		head = head[:sniffLimit]
	}
	if bytes.Contains(head, []byte("//DTD Mapper")) {
		return KindMapperXML
	}
	if bytes.Contains(head, []byte("//DTD Config")) {
		return KindConfigXML
	}
	switch rootElement(head) {
	case "mapper":
		return KindMapperXML
	case "configuration":
		return KindConfigXML
	case "beans":
		if bytes.Contains(content, []byte("mybatis")) {
			return KindSpringConfigXML
		}
	}
	return KindUnknown
}

// rootElement returns the local name of the first element in head, skipping
// the prolog, comments and doctype.
func rootElement(head []byte) string {
	s := string(head)
	for {
		i := strings.IndexByte(s, '<')
		if i < 0 || i+1 >= len(s) {
			return ""
		}
		s = s[i+1:]
		switch {
		case strings.HasPrefix(s, "?"):
			continue
		case strings.HasPrefix(s, "!--"):
			end := strings.Index(s, "-->")
			if end < 0 {
				return ""
			}
			s = s[end+3:]
			continue
		case strings.HasPrefix(s, "!"):
			continue
		}
		end := strings.IndexAny(s, " \t\r\n/>")
		if end < 0 {
			return ""
		}
		name := s[:end]
		if c := strings.IndexByte(name, ':'); c >= 0 {
			name = name[c+1:]
		}
		return name
	}
}
