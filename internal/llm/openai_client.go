// ABOUTME: OpenAI client for embeddings and LLM-based fact extraction
// ABOUTME: text-embedding-3-small for vectors, gpt-4o-mini for fact operations (configurable)
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harper/homefacts/internal/models"
	"github.com/harper/homefacts/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:         apiKey,
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	oc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oc.BaseURL = config.BaseURL
	}

	c := &OpenAIClient{
		client:         openai.NewClientWithConfig(oc),
		chatModel:      config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		timeout:        config.Timeout,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
	}
	if c.chatModel == "" {
		c.chatModel = DefaultChatModel
	}
	if c.embeddingModel == "" {
		c.embeddingModel = DefaultEmbeddingModel
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	return c, nil
}

// Model returns the embedding model id
func (c *OpenAIClient) Model() string {
	return c.embeddingModel
}

// Embed returns one vector per text, in input order
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float64
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context, _ int) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: openai.EmbeddingModel(c.embeddingModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts))
		}

		out = make([][]float64, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(texts) {
				return fmt.Errorf("embedding index %d out of range", d.Index)
			}
			v := make([]float64, len(d.Embedding))
			for i, f := range d.Embedding {
				v[i] = float64(f)
			}
			out[d.Index] = v
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return out, nil
}

const factOpsPrompt = `You maintain a memory of facts about smart-home devices.
Given a conversation, list the changes it implies to that memory.

Each change is a JSON object with:
- op: "add", "update" or "delete"
- device_id: the device id if the conversation names it exactly, otherwise ""
- clues: short phrases that identify the device (location, nickname), used when device_id is ""
- content: the new fact text (add, update) or the fact to remove (delete)
- old_content: the existing fact being replaced (update only)
- category: one of capability, state, locating-clue, usage-habit, other (add only)

Only record durable facts: where a device is, what users call it, how they use it.
Return ONLY a JSON object {"ops": [...]}. Return {"ops": []} when nothing changes.`

// ExtractFactOps asks the chat model for fact operations implied by dialogue
func (c *OpenAIClient) ExtractFactOps(ctx context.Context, dialogue string) ([]models.FactOp, error) {
	if strings.TrimSpace(dialogue) == "" {
		return nil, nil
	}

	var ops []models.FactOp
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context, _ int) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: factOpsPrompt},
				{Role: openai.ChatMessageRoleUser, Content: "Conversation:\n\n" + dialogue},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: 0.1, // Low temperature for factual extraction
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no completion choices returned")
		}

		parsed, err := ParseFactOps(resp.Choices[0].Message.Content)
		if err != nil {
			return err
		}
		ops = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract fact ops: %w", err)
	}
	return ops, nil
}

// ParseFactOps decodes the model's reply. It accepts {"ops": [...]} or a bare array,
// optionally wrapped in a markdown code fence.
func ParseFactOps(content string) ([]models.FactOp, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "[") {
		var ops []models.FactOp
		if err := json.Unmarshal([]byte(content), &ops); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return ops, nil
	}

	var wrapped struct {
		Ops []models.FactOp `json:"ops"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return wrapped.Ops, nil
}
