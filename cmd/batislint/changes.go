package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maraichr/batislens/internal/events"
	"github.com/maraichr/batislens/internal/workspace"
)

var sinceFlag string

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Print the change batch between a commit and HEAD",
	Long: `Changes diffs --since against HEAD in the project checkout and prints the
change records an invalidation would apply.`,
	RunE: runChanges,
}

func init() {
	changesCmd.Flags().StringVar(&sinceFlag, "since", "", "previous commit (required)")
	_ = changesCmd.MarkFlagRequired("since")
}

func runChanges(cmd *cobra.Command, _ []string) error {
	if projectFlag == "" {
		return fmt.Errorf("--project is required")
	}
	a, err := load()
	if err != nil {
		return err
	}
	p, ok := a.Workspace.Project(workspace.Key(projectFlag))
	if !ok {
		return fmt.Errorf("unknown project %q", projectFlag)
	}

	d, err := events.ComputeGitDelta(cmd.Context(), p.Key, p.LocalRoot(), sinceFlag)
	if err != nil {
		return err
	}
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s..%s: %d records\n", shortSHA(d.PreviousSHA), shortSHA(d.CurrentSHA), len(d.Batch.Records))
	for _, r := range d.Batch.Records {
		flags := ""
		if r.Derived {
			flags += " (derived)"
		}
		if r.MetadataOnly {
			flags += " (metadata)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s%s\n", r.Kind, r.Path, flags)
	}
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
