package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maraichr/batislens/internal/app"
	"github.com/maraichr/batislens/internal/diag"
	"github.com/maraichr/batislens/internal/workspace"
)

// errProblems signals that errors were reported.
var errProblems = errors.New("problems found")

var validateCmd = &cobra.Command{
	Use:   "validate [path...]",
	Short: "Validate mapper and config files",
	Long: `Validate reports unresolved types, properties, statements and references.
Paths are relative to the project root and require --project. Without paths
every XML file of every selected project is checked.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	if len(args) > 0 && projectFlag == "" {
		return fmt.Errorf("--project is required with paths")
	}
	a, err := load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var c diag.Collector
	if len(args) > 0 {
		for _, rel := range args {
			f := workspace.File{Project: workspace.Key(projectFlag), Path: rel}
			if err := a.Validator.ValidateFile(ctx, f, &c); err != nil {
				return err
			}
		}
	} else {
		keys, err := projects(a)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := a.Validator.ValidateProject(ctx, key, &c); err != nil {
				return err
			}
		}
	}

	items := c.Diagnostics()
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(nonNil(items)); err != nil {
			return err
		}
	} else {
		lines := newLineIndex(a)
		for _, d := range items {
			line, col := lines.position(cmd, d.File, d.Offset)
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s:%d:%d: %s: %s [%s]\n", d.File.Project, d.Path, line, col, d.Severity, d.Message, d.Kind)
		}
	}

	for _, d := range items {
		if d.Severity == diag.SeverityError {
			return errProblems
		}
	}
	return nil
}

func projects(a *app.App) ([]workspace.Key, error) {
	if projectFlag != "" {
		if _, ok := a.Workspace.Project(workspace.Key(projectFlag)); !ok {
			return nil, fmt.Errorf("unknown project %q", projectFlag)
		}
		return []workspace.Key{workspace.Key(projectFlag)}, nil
	}
	var keys []workspace.Key
	for _, p := range a.Workspace.Projects() {
		keys = append(keys, p.Key)
	}
	return keys, nil
}

func nonNil(items []diag.Diagnostic) []diag.Diagnostic {
	if items == nil {
		return []diag.Diagnostic{}
	}
	return items
}

// lineIndex converts byte offsets to 1-based line and column numbers,
// reading each file once.
type lineIndex struct {
	a     *app.App
	files map[workspace.File][]byte
}

func newLineIndex(a *app.App) *lineIndex {
	return &lineIndex{a: a, files: make(map[workspace.File][]byte)}
}

func (l *lineIndex) position(cmd *cobra.Command, f workspace.File, offset int) (int, int) {
	content, ok := l.files[f]
	if !ok {
		content, _ = l.a.Workspace.Read(cmd.Context(), f)
		l.files[f] = content
	}
	return lineCol(content, offset)
}

func lineCol(content []byte, offset int) (int, int) {
	if offset > len(content) {
		offset = len(content)
	}
	head := content[:offset]
	line := bytes.Count(head, []byte("\n")) + 1
	col := offset - bytes.LastIndexByte(head, '\n')
	return line, col
}

func exitCode(err error) int {
	if errors.Is(err, errProblems) {
		return 1
	}
	fmt.Fprintln(os.Stderr, "Run 'batislint --help' for usage.")
	return 2
}
