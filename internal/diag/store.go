package diag

import (
	"sort"
	"sync"

	"github.com/maraichr/batislens/internal/workspace"
)

// Store keeps the latest diagnostics of each validated file.
type Store struct {
	mu    sync.RWMutex
	files map[workspace.File][]Diagnostic
}

func NewStore() *Store {
	return &Store{files: make(map[workspace.File][]Diagnostic)}
}

// Set replaces the diagnostics of file. An empty list keeps the file known
// as clean.
func (s *Store) Set(file workspace.File, items []Diagnostic) {
	s.mu.Lock()
	s.files[file] = append([]Diagnostic{}, items...)
	s.mu.Unlock()
}

func (s *Store) Get(file workspace.File) ([]Diagnostic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items, ok := s.files[file]
	return items, ok
}

// Forget drops a file, for example after it was deleted.
func (s *Store) Forget(file workspace.File) {
	s.mu.Lock()
	delete(s.files, file)
	s.mu.Unlock()
}

// ForgetProject drops every file of a project.
func (s *Store) ForgetProject(project workspace.Key) {
	s.mu.Lock()
	for f := range s.files {
		if f.Project == project {
			delete(s.files, f)
		}
	}
	s.mu.Unlock()
}

// Project returns the diagnostics of every known file of a project ordered
// by path then offset.
func (s *Store) Project(project workspace.Key) []Diagnostic {
	s.mu.RLock()
	var out []Diagnostic
	for f, items := range s.files {
		if f.Project == project {
			out = append(out, items...)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}
