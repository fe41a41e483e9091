// ABOUTME: Serve command runs the HTTP API
// ABOUTME: Listens on HOMEFACTS_HTTP_ADDR unless --addr is given
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harper/homefacts/internal/api"
)

var serveAddr string

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the JSON HTTP API.

Routes:
  GET    /health
  GET    /devices
  POST   /rank                          {"clues": [...], "top_k": 3}
  POST   /devices/{id}/constraints      {"constraints": [[...], ...]}
  GET    /devices/{id}/facts?category=
  POST   /devices/{id}/facts            {"content", "category", "device_name"}
  PUT    /devices/{id}/facts            {"old_content", "new_content"}
  DELETE /devices/{id}/facts            {"content"}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			addr := serveAddr
			if addr == "" {
				addr = a.Config.HTTPAddr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return api.New(a).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default HOMEFACTS_HTTP_ADDR)")
	return cmd
}
