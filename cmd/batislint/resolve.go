package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maraichr/batislens/internal/workspace"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a type name or a mapper namespace",
}

var resolveTypeCmd = &cobra.Command{
	Use:   "type NAME",
	Short: "Resolve a type attribute value to a qualified class name",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolveType,
}

var resolveNamespaceCmd = &cobra.Command{
	Use:   "namespace NAMESPACE",
	Short: "Find the mapper file bound to a namespace",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolveNamespace,
}

func init() {
	resolveCmd.AddCommand(resolveTypeCmd, resolveNamespaceCmd)
}

func runResolveType(cmd *cobra.Command, args []string) error {
	if projectFlag == "" {
		return fmt.Errorf("--project is required")
	}
	a, err := load()
	if err != nil {
		return err
	}
	ref := a.Engine.ResolveType(cmd.Context(), workspace.Key(projectFlag), args[0])
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(ref)
	}
	if !ref.Found {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: not found\n", ref.Raw)
		return errProblems
	}
	via := "class"
	switch {
	case ref.Builtin:
		via = "built-in alias"
	case ref.Alias:
		via = "alias"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", ref.Raw, ref.Qualified, via)
	return nil
}

func runResolveNamespace(cmd *cobra.Command, args []string) error {
	if projectFlag == "" {
		return fmt.Errorf("--project is required")
	}
	a, err := load()
	if err != nil {
		return err
	}
	f, ok := a.Caches.Namespaces.Get(cmd.Context(), workspace.Key(projectFlag), args[0])
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: not bound\n", args[0])
		return errProblems
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], f.Path)
	return nil
}
