// ABOUTME: CLI commands to list devices and show one device's facts
// ABOUTME: Table output by default, JSON with --format json
package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/models"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List devices",
		Long: `List every device in creation order with its fact count.

Examples:
  homefacts list
  homefacts list --format json`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	devices, err := a.Engine.ListDevices(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if wantJSON() {
		return printJSON(out, devices)
	}
	if len(devices) == 0 {
		if !quiet {
			fmt.Fprintf(out, "No devices found\n")
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DEVICE\tNAME\tFACTS\tCREATED\n")
	fmt.Fprintf(w, "------\t----\t-----\t-------\n")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.DeviceID, truncate(d.DeviceName, 30), d.FactCount, formatTime(d.CreatedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(out, "\nTotal: %d device(s)\n", len(devices))
	}
	return nil
}

var showCategory string

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <device-id>",
		Short: "Show a device's facts",
		Long: `Show a device's facts in insertion order, grouped by category.

Examples:
  homefacts show lamp
  homefacts show lamp --category capability`,
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}
	cmd.Flags().StringVarP(&showCategory, "category", "c", "", "Only this category")
	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	var category models.Category
	if showCategory != "" {
		c, err := models.ParseCategory(showCategory)
		if err != nil {
			return err
		}
		category = c
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	facts, err := a.Engine.DeviceFacts(context.Background(), args[0], category)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if wantJSON() {
		return printJSON(out, facts)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "CATEGORY\tCONTENT\tUPDATED\tFACT ID\n")
	fmt.Fprintf(w, "--------\t-------\t-------\t-------\n")
	for _, c := range models.Categories {
		for _, f := range facts {
			if f.Category != c {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Category, truncate(f.Content, 50), formatTime(f.UpdatedAt), f.FactID)
		}
	}
	return w.Flush()
}
