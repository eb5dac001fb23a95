package events

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/maraichr/batislens/internal/workspace"
)

// Delta is the change set between two commits of a project checkout.
type Delta struct {
	Batch       Batch  `json:"batch"`
	PreviousSHA string `json:"previous_sha"`
	CurrentSHA  string `json:"current_sha"`
}

// ComputeGitDelta diffs previousSHA against HEAD in workDir and returns the
// changes as one batch. An unchanged HEAD yields an empty batch.
func ComputeGitDelta(ctx context.Context, project workspace.Key, workDir, previousSHA string) (*Delta, error) {
	headCmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	headCmd.Dir = workDir
	headOut, err := headCmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	current := strings.TrimSpace(string(headOut))

	d := &Delta{Batch: NewBatch("git"), PreviousSHA: previousSHA, CurrentSHA: current}
	if previousSHA == current {
		return d, nil
	}

	diffCmd := exec.CommandContext(ctx, "git", "diff", "--no-color", "--no-ext-diff", "-M", "--unified=0", previousSHA+"..HEAD")
	diffCmd.Dir = workDir
	out, err := diffCmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}
	records, err := DiffRecords(project, out)
	if err != nil {
		return nil, err
	}
	d.Batch.Records = records
	return d, nil
}

// DiffRecords converts a git unified diff into change records. Renames
// become a removal and an addition; mode-only changes are metadata-only.
func DiffRecords(project workspace.Key, unified []byte) ([]Record, error) {
	fds, err := diff.ParseMultiFileDiff(unified)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	var out []Record
	for _, fd := range fds {
		orig, next := diffPath(fd.OrigName), diffPath(fd.NewName)
		switch {
		case next == "" && orig == "":
			continue
		case next == "":
			out = append(out, FileRecord(Removed, workspace.File{Project: project, Path: orig}))
		case orig == "":
			out = append(out, FileRecord(Added, workspace.File{Project: project, Path: next}))
		case orig != next:
			out = append(out,
				FileRecord(Removed, workspace.File{Project: project, Path: orig}),
				FileRecord(Added, workspace.File{Project: project, Path: next}))
		default:
			r := FileRecord(Changed, workspace.File{Project: project, Path: next})
			r.MetadataOnly = len(fd.Hunks) == 0 && modeOnly(fd.Extended)
			out = append(out, r)
		}
	}
	return out, nil
}

// diffPath strips the a/ or b/ prefix git adds; /dev/null becomes "".
func diffPath(name string) string {
	if name == "/dev/null" || name == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(name, "a/"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(name, "b/"); ok {
		return rest
	}
	return name
}

func modeOnly(extended []string) bool {
	mode := false
	for _, line := range extended {
		switch {
		case strings.HasPrefix(line, "old mode "):
			mode = true
		case strings.HasPrefix(line, "index "), strings.HasPrefix(line, "Binary files"):
			return false
		}
	}
	return mode
}
