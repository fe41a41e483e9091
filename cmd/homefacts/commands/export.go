// ABOUTME: CLI command to export all devices and facts
// ABOUTME: Writes YAML, JSON or Markdown to stdout or a file
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/storage"
)

var (
	exportOutput string
	exportAs     string
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every device and fact",
		Long: `Export every device and its facts.

Examples:
  homefacts export > facts.yaml
  homefacts export --as markdown --output facts.md
  homefacts export --as json --output backup.json`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&exportAs, "as", "yaml", "Export format: yaml, json or markdown")
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	data, err := storage.Export(context.Background(), a.Index)
	if err != nil {
		return err
	}

	if exportOutput == "" {
		return data.Write(cmd.OutOrStdout(), exportAs)
	}
	if err := data.WriteFile(exportOutput, exportAs); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d device(s) to %s\n", len(data.Devices), exportOutput)
	}
	return nil
}
