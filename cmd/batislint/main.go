// Command batislint validates mapper files and answers resolution queries
// from the command line.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maraichr/batislens/internal/app"
	"github.com/maraichr/batislens/internal/config"
)

var (
	workspaceFile string
	projectFlag   string
	jsonOutput    bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:           "batislint",
	Short:         "Check mapper XML cross references against the project sources",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFile, "workspace", "w", "", "workspace file (default $WORKSPACE_FILE or batislens.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "limit to one project")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(validateCmd, resolveCmd, changesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// load builds the application from the configured workspace file.
func load() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if workspaceFile != "" {
		cfg.Workspace.File = workspaceFile
	}
	return app.Load(cfg, newLogger(cfg.Log.Level))
}

func newLogger(level slog.Level) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
