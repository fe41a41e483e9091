// ABOUTME: CLI command to learn fact changes from a dialogue
// ABOUTME: Uses the OpenAI extractor; each proposed op is applied and reported
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/core"
)

var learnFile string

// NewLearnCmd creates the learn command
func NewLearnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn [dialogue]",
		Short: "Update device facts from a conversation",
		Long: `Extract fact additions, corrections and removals from a conversation and
apply them. Requires OPENAI_API_KEY.

Examples:
  homefacts learn "I moved the bedside lamp to the hallway"
  homefacts learn --file transcript.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLearn,
	}
	cmd.Flags().StringVar(&learnFile, "file", "", "Read dialogue from file")
	return cmd
}

func runLearn(cmd *cobra.Command, args []string) error {
	dialogue, err := readInput(cmd, args, learnFile)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	if a.LLM == nil {
		return fmt.Errorf("learn requires OPENAI_API_KEY")
	}

	report, err := a.Updater.Apply(context.Background(), dialogue)
	if err != nil {
		return err
	}
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), core.RenderReport(report))
	return nil
}
