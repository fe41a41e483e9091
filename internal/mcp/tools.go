// ABOUTME: MCP tool definitions and registration for the homefacts server
// ABOUTME: Exposes ranking, constraint matching and fact writes to agents
package mcp

import (
	"github.com/harper/homefacts/internal/app"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ServerName and ServerVersion identify the MCP server
const (
	ServerName    = "homefacts"
	ServerVersion = "0.1.0"
)

const instructions = `homefacts remembers facts about smart-home devices and resolves which device a user means.
Call rank_devices with every clue from the request (room, nickname, position, what it is near) before acting on a device.
Use match_constraints to check a candidate against several conditions at once.
Record new information with add_fact; correct it with update_fact or delete_fact.
To change a specific fact, call resolve_fact first and then apply_update or apply_delete with its fact_id.`

// NewServer builds an MCP server with every tool registered
func NewServer(a *app.App) (*mcpserver.MCPServer, *Handlers) {
	s := mcpserver.NewMCPServer(
		ServerName,
		ServerVersion,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(instructions),
	)
	return s, RegisterTools(s, a)
}

var stringArray = map[string]interface{}{
	"type":  "array",
	"items": map[string]interface{}{"type": "string"},
}

func withDescription(schema map[string]interface{}, description string) map[string]interface{} {
	out := make(map[string]interface{}, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	out["description"] = description
	return out
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, a *app.App) *Handlers {
	handlers := NewHandlers(a)

	// 1. rank_devices - resolve a request to the most likely devices
	server.AddTool(mcp.Tool{
		Name:        "rank_devices",
		Description: "Rank every known device by how well its locating clues match the given clues. Lower score is a better match.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"clues": withDescription(stringArray, "Clues from the user's request, e.g. [\"bedroom\", \"near the bed\"]"),
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of devices to return (default from HOMEFACTS_RANK_TOP_K)",
				},
			},
			Required: []string{"clues"},
		},
	}, handlers.RankDevices)

	// 2. match_constraints - check one device against several clue groups
	server.AddTool(mcp.Tool{
		Name:        "match_constraints",
		Description: "Match groups of clues against one device's locating clues. Each group reports its matching facts and a harmonic distance.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"device_id": stringProp("Device to check"),
				"constraints": map[string]interface{}{
					"type":        "array",
					"items":       stringArray,
					"description": "Constraint groups, each a list of clues",
				},
			},
			Required: []string{"device_id", "constraints"},
		},
	}, handlers.MatchConstraints)

	// 3. add_fact
	server.AddTool(mcp.Tool{
		Name:        "add_fact",
		Description: "Add a fact to a device, creating the device if it does not exist.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"device_id":   stringProp("Device identifier"),
				"content":     stringProp("The fact, e.g. 'on the nightstand'"),
				"category":    stringProp("capability, state, locating-clue, usage-habit or other"),
				"device_name": stringProp("Optional display name used when the device is created"),
			},
			Required: []string{"device_id", "content", "category"},
		},
	}, handlers.AddFact)

	// 4. update_fact
	server.AddTool(mcp.Tool{
		Name:        "update_fact",
		Description: "Replace the device fact closest to old_content with new_content. Keeps the fact id and category.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"device_id":   stringProp("Device identifier"),
				"old_content": stringProp("Approximate text of the fact to change"),
				"new_content": stringProp("Replacement content"),
				"category":    stringProp("Optional category to limit the search to"),
			},
			Required: []string{"device_id", "old_content", "new_content"},
		},
	}, handlers.UpdateFact)

	// 5. delete_fact
	server.AddTool(mcp.Tool{
		Name:        "delete_fact",
		Description: "Delete the device fact closest to content.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"device_id": stringProp("Device identifier"),
				"content":   stringProp("Approximate text of the fact to delete"),
				"category":  stringProp("Optional category to limit the search to"),
			},
			Required: []string{"device_id", "content"},
		},
	}, handlers.DeleteFact)

	// 6. resolve_fact - dry run of update/delete resolution
	server.AddTool(mcp.Tool{
		Name:        "resolve_fact",
		Description: "Show which fact update_fact or delete_fact would change for the given text, without changing anything.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"device_id": stringProp("Device identifier"),
				"text":      stringProp("Approximate text of the fact"),
				"category":  stringProp("Optional category to limit the search to"),
			},
			Required: []string{"device_id", "text"},
		},
	}, handlers.ResolveFact)

	// 7. get_device_facts
	server.AddTool(mcp.Tool{
		Name:        "get_device_facts",
		Description: "List a device's facts in insertion order, optionally for one category.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"device_id": stringProp("Device identifier"),
				"category":  stringProp("Optional category filter"),
			},
			Required: []string{"device_id"},
		},
	}, handlers.GetDeviceFacts)

	// 8. get_device_digest - one category of a device as a single line
	server.AddTool(mcp.Tool{
		Name:        "get_device_digest",
		Description: "Summarize one category of a device: its distinct fact contents in insertion order, joined into one line.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"device_id": stringProp("Device identifier"),
				"category":  stringProp("capability, state, locating-clue, usage-habit or other"),
			},
			Required: []string{"device_id", "category"},
		},
	}, handlers.GetDeviceDigest)

	// 9. apply_update - commit an update to a resolved fact id
	server.AddTool(mcp.Tool{
		Name:        "apply_update",
		Description: "Replace the content of the fact with the given id, as returned by resolve_fact.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"device_id":   stringProp("Device identifier"),
				"fact_id":     stringProp("Fact id from resolve_fact or get_device_facts"),
				"new_content": stringProp("Replacement content"),
			},
			Required: []string{"device_id", "fact_id", "new_content"},
		},
	}, handlers.ApplyUpdate)

	// 10. apply_delete
	server.AddTool(mcp.Tool{
		Name:        "apply_delete",
		Description: "Delete the fact with the given id, as returned by resolve_fact.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"device_id": stringProp("Device identifier"),
				"fact_id":   stringProp("Fact id from resolve_fact or get_device_facts"),
			},
			Required: []string{"device_id", "fact_id"},
		},
	}, handlers.ApplyDelete)

	// 11. list_devices
	server.AddTool(mcp.Tool{
		Name:        "list_devices",
		Description: "List every known device with its name and fact count.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListDevices)

	// 12. learn_from_dialogue - extract and apply fact changes
	server.AddTool(mcp.Tool{
		Name:        "learn_from_dialogue",
		Description: "Extract fact additions, corrections and removals from a dialogue and apply them. Requires an OpenAI key.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"dialogue": stringProp("Conversation text mentioning devices"),
			},
			Required: []string{"dialogue"},
		},
	}, handlers.LearnFromDialogue)

	return handlers
}
