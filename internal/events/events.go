// Package events carries workspace change notifications from their sources
// (file watcher, Valkey stream, git history, HTTP) to the invalidation
// coordinator.
package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/maraichr/batislens/internal/workspace"
)

// Kind is what happened to a resource.
type Kind string

const (
	Added   Kind = "added"
	Changed Kind = "changed"
	Removed Kind = "removed"
)

// Resource is the kind of resource a record describes.
type Resource string

const (
	File    Resource = "file"
	Project Resource = "project"
)

// Content type hints. An empty hint lets the coordinator classify the file
// from its path and content.
const (
	HintJava         = "java"
	HintMapper       = "mapper"
	HintConfig       = "config"
	HintSpringConfig = "spring-config"
)

// Record is one change. Path is empty for project records.
type Record struct {
	Kind            Kind          `json:"kind"`
	Resource        Resource      `json:"resource"`
	Project         workspace.Key `json:"project"`
	Path            string        `json:"path,omitempty"`
	ContentTypeHint string        `json:"content_type,omitempty"`
	// Derived marks build output and generated files.
	Derived bool `json:"derived,omitempty"`
	// MetadataOnly marks changes that leave the content untouched, such as
	// permission or encoding changes.
	MetadataOnly bool `json:"metadata_only,omitempty"`
}

func (r Record) File() workspace.File {
	return workspace.File{Project: r.Project, Path: r.Path}
}

// CleanBuild requests a full rebuild. An empty Project means the whole
// workspace.
type CleanBuild struct {
	Project workspace.Key `json:"project,omitempty"`
}

// Batch is one atomic set of changes. Batches are applied one at a time in
// arrival order.
type Batch struct {
	ID         uuid.UUID   `json:"id"`
	Source     string      `json:"source"`
	CleanBuild *CleanBuild `json:"clean_build,omitempty"`
	Records    []Record    `json:"records,omitempty"`
}

func NewBatch(source string, records ...Record) Batch {
	return Batch{ID: uuid.New(), Source: source, Records: records}
}

// Handler applies change batches.
type Handler interface {
	Apply(ctx context.Context, b Batch) error
}

type HandlerFunc func(ctx context.Context, b Batch) error

func (f HandlerFunc) Apply(ctx context.Context, b Batch) error { return f(ctx, b) }

// FileRecord builds a record for a project file, marking derived paths.
func FileRecord(kind Kind, f workspace.File) Record {
	return Record{
		Kind:     kind,
		Resource: File,
		Project:  f.Project,
		Path:     f.Path,
		Derived:  workspace.IsDerived(f.Path),
	}
}
