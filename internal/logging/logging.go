// ABOUTME: Builds the zap logger shared by the CLI, MCP server and HTTP API
// ABOUTME: Production JSON config on stderr; verbose switches to debug, quiet to warn
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the level. Verbose wins over Quiet, and both win over Level.
type Options struct {
	Level   string
	Verbose bool
	Quiet   bool
}

// New builds a logger. Output goes to stderr so stdout stays free for results
// and for the MCP stdio transport.
func New(opts Options) (*zap.Logger, error) {
	level, err := parseLevel(opts)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func parseLevel(opts Options) (zapcore.Level, error) {
	switch {
	case opts.Verbose:
		return zapcore.DebugLevel, nil
	case opts.Quiet:
		return zapcore.WarnLevel, nil
	}
	if opts.Level == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", opts.Level)
	}
	return level, nil
}
