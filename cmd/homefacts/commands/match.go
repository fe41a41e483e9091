// ABOUTME: CLI command to check one device against constraint groups
// ABOUTME: Each --constraint flag is a comma-separated group of clues
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/core"
)

var matchConstraints []string

// NewMatchCmd creates the match command
func NewMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <device-id>",
		Short: "Match constraint groups against a device",
		Long: `Match one or more constraint groups against a device's locating clues.

Examples:
  homefacts match lamp --constraint bedroom
  homefacts match lamp --constraint "near bed,nightstand" --constraint bedroom`,
		Args: cobra.ExactArgs(1),
		RunE: runMatch,
	}

	cmd.Flags().StringArrayVarP(&matchConstraints, "constraint", "c", nil, "Comma-separated clues forming one group (repeatable)")
	_ = cmd.MarkFlagRequired("constraint")

	return cmd
}

func runMatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	groups := make([][]string, 0, len(matchConstraints))
	for _, c := range matchConstraints {
		groups = append(groups, splitList(c))
	}

	matches, err := a.Engine.MatchConstraints(context.Background(), args[0], groups)
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), matches)
	}
	fmt.Fprintln(cmd.OutOrStdout(), core.RenderConstraintMatches(args[0], matches))
	return nil
}
