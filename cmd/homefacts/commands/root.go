// ABOUTME: Root command, global flags and shared app construction for the CLI
// ABOUTME: Every subcommand opens the configured index through openApp
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/app"
	"github.com/harper/homefacts/internal/config"
	"github.com/harper/homefacts/internal/logging"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
 ██╗  ██╗ ██████╗ ███╗   ███╗███████╗███████╗ █████╗  ██████╗████████╗███████╗
 ██║  ██║██╔═══██╗████╗ ████║██╔════╝██╔════╝██╔══██╗██╔════╝╚══██╔══╝██╔════╝
 ███████║██║   ██║██╔████╔██║█████╗  █████╗  ███████║██║        ██║   ███████╗
 ██╔══██║██║   ██║██║╚██╔╝██║██╔══╝  ██╔══╝  ██╔══██║██║        ██║   ╚════██║
 ██║  ██║╚██████╔╝██║ ╚═╝ ██║███████╗██║     ██║  ██║╚██████╗   ██║   ███████║
 ╚═╝  ╚═╝ ╚═════╝ ╚═╝     ╚═╝╚══════╝╚═╝     ╚═╝  ╚═╝ ╚═════╝   ╚═╝   ╚══════╝`

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "homefacts",
		Short: "Device fact memory and multi-clue device resolution",
		Long: banner + `

homefacts remembers facts about your smart-home devices (what they can do,
what they report, where they are, how you use them) and works out which
device you mean from a handful of clues.

Examples:
  homefacts add lamp "near the bed" --category locating-clue
  homefacts rank bedroom "near bed"
  homefacts match lamp --constraint bedroom --constraint "near bed,nightstand"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch outputFormat {
			case "auto", "table", "json":
				return nil
			default:
				return fmt.Errorf("--format must be auto, table or json, got %q", outputFormat)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only print results")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, table or json")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		NewRankCmd(),
		NewMatchCmd(),
		NewAddCmd(),
		NewUpdateCmd(),
		NewDeleteCmd(),
		NewListCmd(),
		NewShowCmd(),
		NewSeedCmd(),
		NewExportCmd(),
		NewLearnCmd(),
		NewMCPCmd(),
		NewServeCmd(),
		NewSyncCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads .env files and the environment
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	return config.Load()
}

// openApp builds the services for one command. Callers must Close the app.
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Verbose: verbose, Quiet: quiet})
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return a, nil
}

func closeApp(a *app.App) {
	_ = a.Close()
	_ = a.Logger.Sync()
}

func wantJSON() bool {
	return outputFormat == "json"
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
