// ABOUTME: Standalone entry point for the homefacts MCP server on stdio
// ABOUTME: Same tools as `homefacts mcp`, for hosts that launch a bare binary
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/harper/homefacts/internal/app"
	"github.com/harper/homefacts/internal/config"
	"github.com/harper/homefacts/internal/logging"
	"github.com/harper/homefacts/internal/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "homefacts-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	if a.LLM == nil {
		logger.Warn("OPENAI_API_KEY not set - learn_from_dialogue is disabled")
	}

	server, _ := mcp.NewServer(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("MCP server starting on stdio", zap.String("index", cfg.Index))

	serverErr := make(chan error, 1)
	go func() { serverErr <- mcpserver.ServeStdio(server) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return nil
	case err := <-serverErr:
		return err
	}
}
