// ABOUTME: MCP tool handler implementations for the homefacts server
// ABOUTME: Each handler validates arguments, calls the engine and returns JSON plus a readable rendering
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/homefacts/internal/app"
	"github.com/harper/homefacts/internal/core"
	"github.com/harper/homefacts/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	engine  *core.Engine
	writer  *core.Writer
	updater *core.MemoryUpdater
	topK    int
	logger  *zap.Logger
}

// NewHandlers builds handlers over the app's services
func NewHandlers(a *app.App) *Handlers {
	topK := 3
	if a.Config != nil && a.Config.RankTopK > 0 {
		topK = a.Config.RankTopK
	}
	return &Handlers{
		engine:  a.Engine,
		writer:  a.Writer,
		updater: a.Updater,
		topK:    topK,
		logger:  a.Logger,
	}
}

// RankDevices handles the rank_devices tool
func (h *Handlers) RankDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clues, err := stringSlice(request, "clues")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := request.GetInt("top_k", h.topK)

	rankings, err := h.engine.RankDevices(ctx, clues, topK)
	if err != nil {
		return h.failure("rank_devices", err), nil
	}
	return jsonResult(map[string]interface{}{
		"rankings": rankings,
		"text":     core.RenderRanking(rankings),
	})
}

// MatchConstraints handles the match_constraints tool
func (h *Handlers) MatchConstraints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError("device_id argument is required and must be a string"), nil
	}
	groups, err := stringGroups(request, "constraints")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	matches, err := h.engine.MatchConstraints(ctx, deviceID, groups)
	if err != nil {
		return h.failure("match_constraints", err), nil
	}
	return jsonResult(map[string]interface{}{
		"device_id":   deviceID,
		"constraints": matches,
		"text":        core.RenderConstraintMatches(deviceID, matches),
	})
}

// AddFact handles the add_fact tool
func (h *Handlers) AddFact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError("device_id argument is required and must be a string"), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content argument is required and must be a string"), nil
	}
	category, err := models.ParseCategory(request.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if name := request.GetString("device_name", ""); name != "" {
		if _, err := h.writer.EnsureDevice(ctx, deviceID, name); err != nil {
			return h.failure("add_fact", err), nil
		}
	}
	fact, err := h.writer.AddFact(ctx, &models.Fact{
		DeviceID: deviceID,
		Content:  content,
		Category: category,
		Source:   "mcp",
	})
	if err != nil {
		return h.failure("add_fact", err), nil
	}
	return jsonResult(map[string]interface{}{
		"fact": fact,
		"text": fmt.Sprintf("added fact %s to %s", fact.FactID, deviceID),
	})
}

// UpdateFact handles the update_fact tool
func (h *Handlers) UpdateFact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError("device_id argument is required and must be a string"), nil
	}
	oldContent, err := request.RequireString("old_content")
	if err != nil {
		return mcp.NewToolResultError("old_content argument is required and must be a string"), nil
	}
	newContent, err := request.RequireString("new_content")
	if err != nil {
		return mcp.NewToolResultError("new_content argument is required and must be a string"), nil
	}

	category, err := optionalCategory(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := h.writer.UpdateIn(ctx, deviceID, category, oldContent, newContent)
	return h.outcome("update_fact", out, err)
}

// DeleteFact handles the delete_fact tool
func (h *Handlers) DeleteFact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError("device_id argument is required and must be a string"), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content argument is required and must be a string"), nil
	}

	category, err := optionalCategory(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := h.writer.DeleteIn(ctx, deviceID, category, content)
	return h.outcome("delete_fact", out, err)
}

// ResolveFact handles the resolve_fact tool
func (h *Handlers) ResolveFact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError("device_id argument is required and must be a string"), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}

	category, err := optionalCategory(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c, err := h.writer.ResolveCandidateIn(ctx, deviceID, text, category)
	if err != nil {
		return h.failure("resolve_fact", err), nil
	}
	return jsonResult(map[string]interface{}{
		"candidate": c,
		"text":      fmt.Sprintf("%q resolves to fact %s: %s (distance %.4f)", text, c.Fact.FactID, c.Fact.Content, c.Distance),
	})
}

// GetDeviceFacts handles the get_device_facts tool
func (h *Handlers) GetDeviceFacts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError("device_id argument is required and must be a string"), nil
	}
	category, err := optionalCategory(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	facts, err := h.engine.DeviceFacts(ctx, deviceID, category)
	if err != nil {
		return h.failure("get_device_facts", err), nil
	}
	return jsonResult(map[string]interface{}{
		"device_id": deviceID,
		"facts":     facts,
	})
}

// GetDeviceDigest handles the get_device_digest tool
func (h *Handlers) GetDeviceDigest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError("device_id argument is required and must be a string"), nil
	}
	raw, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError("category argument is required and must be a string"), nil
	}
	category, err := models.ParseCategory(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	contents, err := h.engine.FactsByCategory(ctx, deviceID, category)
	if err != nil {
		return h.failure("get_device_digest", err), nil
	}
	combined, err := h.engine.CombinedContent(ctx, deviceID, category)
	if err != nil {
		return h.failure("get_device_digest", err), nil
	}
	return jsonResult(map[string]interface{}{
		"device_id": deviceID,
		"category":  category,
		"contents":  contents,
		"text":      combined,
	})
}

// ApplyUpdate handles the apply_update tool
func (h *Handlers) ApplyUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError("device_id argument is required and must be a string"), nil
	}
	factID, err := request.RequireString("fact_id")
	if err != nil {
		return mcp.NewToolResultError("fact_id argument is required and must be a string"), nil
	}
	newContent, err := request.RequireString("new_content")
	if err != nil {
		return mcp.NewToolResultError("new_content argument is required and must be a string"), nil
	}

	out, err := h.writer.ApplyUpdate(ctx, deviceID, factID, newContent)
	return h.outcome("apply_update", out, err)
}

// ApplyDelete handles the apply_delete tool
func (h *Handlers) ApplyDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceID, err := request.RequireString("device_id")
	if err != nil {
		return mcp.NewToolResultError("device_id argument is required and must be a string"), nil
	}
	factID, err := request.RequireString("fact_id")
	if err != nil {
		return mcp.NewToolResultError("fact_id argument is required and must be a string"), nil
	}

	out, err := h.writer.ApplyDelete(ctx, deviceID, factID)
	return h.outcome("apply_delete", out, err)
}

// ListDevices handles the list_devices tool
func (h *Handlers) ListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := h.engine.ListDevices(ctx)
	if err != nil {
		return h.failure("list_devices", err), nil
	}
	return jsonResult(map[string]interface{}{
		"devices": devices,
	})
}

// LearnFromDialogue handles the learn_from_dialogue tool
func (h *Handlers) LearnFromDialogue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dialogue, err := request.RequireString("dialogue")
	if err != nil {
		return mcp.NewToolResultError("dialogue argument is required and must be a string"), nil
	}

	report, err := h.updater.Apply(ctx, dialogue)
	if err != nil {
		return h.failure("learn_from_dialogue", err), nil
	}
	return jsonResult(map[string]interface{}{
		"report": report,
		"text":   core.RenderReport(report),
	})
}

// outcome reports a write. Not-found is a normal answer for agents, not a tool error.
func (h *Handlers) outcome(tool string, out core.WriteOutcome, err error) (*mcp.CallToolResult, error) {
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return h.failure(tool, err), nil
	}
	return jsonResult(map[string]interface{}{
		"outcome": out,
		"text":    core.RenderOutcome(out),
	})
}

func (h *Handlers) failure(tool string, err error) *mcp.CallToolResult {
	if errors.Is(err, core.ErrIndex) {
		h.logger.Error("tool failed", zap.String("tool", tool), zap.Error(err))
	} else {
		h.logger.Debug("tool rejected", zap.String("tool", tool), zap.Error(err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}

// optionalCategory reads the category argument; absent or blank means every category
func optionalCategory(request mcp.CallToolRequest) (models.Category, error) {
	raw := request.GetString("category", "")
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return models.ParseCategory(raw)
}

func jsonResult(response map[string]interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	return args
}

// stringSlice reads an array of strings, also accepting one comma-separated string
func stringSlice(request mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := arguments(request)[key]
	if !ok {
		return nil, fmt.Errorf("%s argument is required", key)
	}
	switch v := raw.(type) {
	case string:
		var out []string
		for _, s := range strings.Split(v, ",") {
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	case []interface{}:
		return toStrings(key, v)
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
}

func stringGroups(request mcp.CallToolRequest, key string) ([][]string, error) {
	raw, ok := arguments(request)[key].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s argument is required and must be an array of string arrays", key)
	}
	groups := make([][]string, 0, len(raw))
	for _, g := range raw {
		switch v := g.(type) {
		case []interface{}:
			clues, err := toStrings(key, v)
			if err != nil {
				return nil, err
			}
			groups = append(groups, clues)
		case string:
			groups = append(groups, []string{v})
		default:
			return nil, fmt.Errorf("%s must be an array of string arrays", key)
		}
	}
	return groups, nil
}

func toStrings(key string, items []interface{}) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s must contain only strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}
