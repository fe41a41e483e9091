// ABOUTME: Composition root wiring config, logger, embedder, index and engine
// ABOUTME: Shared by the CLI, the MCP stdio server and the HTTP API
package app

import (
	"fmt"

	"github.com/harper/homefacts/internal/charm"
	"github.com/harper/homefacts/internal/config"
	"github.com/harper/homefacts/internal/core"
	"github.com/harper/homefacts/internal/llm"
	"github.com/harper/homefacts/internal/storage"
	"github.com/harper/homefacts/internal/storage/sqlite"
	"go.uber.org/zap"
)

// App holds the long-lived services
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Index   storage.Index
	Engine  *core.Engine
	Writer  *core.Writer
	Updater *core.MemoryUpdater

	// LLM is nil when no OpenAI key is configured
	LLM *llm.OpenAIClient
	// Charm is set only for the charm backend
	Charm *charm.Client
}

// New opens the configured index and builds the engine around it.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := NewLLMClient(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := NewEmbedder(cfg, client)
	if err != nil {
		return nil, err
	}

	idx, charmClient, err := OpenIndex(cfg, cfg.Index, embedder)
	if err != nil {
		return nil, err
	}

	var extractor core.OpExtractor
	if client != nil {
		extractor = client
	}
	a := Assemble(cfg, logger, idx, extractor)
	a.LLM = client
	a.Charm = charmClient

	logger.Debug("app ready",
		zap.String("index", cfg.Index),
		zap.String("embedder", embedder.Model()))
	return a, nil
}

// Assemble builds the services over an already-open index. extractor may be nil,
// in which case MemoryUpdater.Apply reports that no extractor is configured.
func Assemble(cfg *config.Config, logger *zap.Logger, idx storage.Index, extractor core.OpExtractor) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := core.NewEngine(idx, EngineOptions(cfg), logger)
	writer := core.NewWriter(engine)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Index:   idx,
		Engine:  engine,
		Writer:  writer,
		Updater: core.NewMemoryUpdater(extractor, engine, writer),
	}
}

// EngineOptions maps configuration onto engine constants
func EngineOptions(cfg *config.Config) core.Options {
	return core.Options{
		Epsilon:         cfg.Epsilon,
		DefaultDistance: cfg.DefaultDistance,
		ConstraintTopK:  cfg.ConstraintTopK,
		RankWorkers:     cfg.RankWorkers,
	}
}

// NewLLMClient returns nil when no OpenAI key is configured
func NewLLMClient(cfg *config.Config) (*llm.OpenAIClient, error) {
	if cfg.OpenAIKey == "" {
		return nil, nil
	}
	return llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
		APIKey:         cfg.OpenAIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		ChatModel:      cfg.ChatModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
	})
}

// NewEmbedder picks the embedding provider named by cfg.Embedder
func NewEmbedder(cfg *config.Config, client *llm.OpenAIClient) (storage.Embedder, error) {
	switch cfg.Embedder {
	case config.EmbedderHash:
		return llm.NewHashEmbedder(cfg.HashDimension), nil
	case config.EmbedderOpenAI:
		if client == nil {
			return nil, fmt.Errorf("openai embedder requires OPENAI_API_KEY")
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}

// OpenIndex opens one backend. The charm client is returned so callers can sync it.
func OpenIndex(cfg *config.Config, kind string, embedder storage.Embedder) (storage.Index, *charm.Client, error) {
	switch kind {
	case config.IndexSQLite:
		s, err := sqlite.NewStorageWithPath(cfg.DBPath, embedder)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite index: %w", err)
		}
		return s, nil, nil
	case config.IndexCharm:
		client, err := charm.NewClient(&charm.Config{
			Host:     cfg.CharmHost,
			DBName:   cfg.CharmDBName,
			AutoSync: cfg.AutoSync,
		})
		if err != nil {
			return nil, nil, err
		}
		return charm.NewIndex(client, embedder), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown index %q", kind)
	}
}

// Close releases the index
func (a *App) Close() error {
	if a.Index == nil {
		return nil
	}
	return a.Index.Close()
}
