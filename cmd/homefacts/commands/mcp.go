// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents resolve devices and edit facts over stdio
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/homefacts/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs homefacts as an MCP (Model Context Protocol) server so an agent
can rank devices, check constraints and keep device facts current.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically launched by the agent host)
  homefacts mcp

  # claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "homefacts": {
  #       "command": "homefacts",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	if a.LLM == nil {
		a.Logger.Warn("OPENAI_API_KEY not set - learn_from_dialogue is disabled")
	}

	server, _ := mcp.NewServer(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			a.Logger.Error("server error", zap.Error(err))
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
