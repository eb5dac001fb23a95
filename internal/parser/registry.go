package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Registry maps source file extensions to parsers.
type Registry struct {
	parsers map[string]Parser // ".java" -> parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register binds ext (with or without the leading dot) to p.
func (r *Registry) Register(ext string, p Parser) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.parsers[ext] = p
}

// ForFile returns the parser for a given file path, or nil if none matches.
func (r *Registry) ForFile(path string) Parser {
	return r.parsers[strings.ToLower(filepath.Ext(path))]
}

// Handles reports whether some parser is registered for path.
func (r *Registry) Handles(path string) bool {
	return r.ForFile(path) != nil
}

// Parse detects the parser and parses the content.
func (r *Registry) Parse(path string, content []byte) (*ParseResult, error) {
	p := r.ForFile(path)
	if p == nil {
		return nil, fmt.Errorf("no parser for file: %s", path)
	}
	return p.Parse(FileInput{Path: path, Content: content, Language: p.Languages()[0]})
}

// Extensions returns the registered extensions without dots, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(exts)
	return exts
}
