package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"factorioagent/internal/debug"
	"factorioagent/internal/tool"
)

// Catalog is the slice of the tool manager exposed over MCP.
type Catalog interface {
	CreateTool(ctx context.Context, toolType, requirement, details, name string) (tool.Descriptor, error)
	ExecuteTool(ctx context.Context, name string, params map[string]any) (tool.ExecutionResult, error)
	ListTools(typeFilter string) ([]tool.Descriptor, error)
	RemoveTool(name string) error
	GetStatistics() (tool.Statistics, error)
}

// Server publishes the catalog operations as MCP tools over stdio, so any
// MCP-capable agent front end can drive the same surface the built-in loop
// uses.
type Server struct {
	catalog Catalog
	debug   *debug.Logger
	server  *mcp.Server
}

func NewServer(catalog Catalog, debugLogger *debug.Logger) (*Server, error) {
	s := &Server{
		catalog: catalog,
		debug:   debugLogger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "factorio-tool-catalog",
			Version: "v1.0.0",
		}, &mcp.ServerOptions{HasTools: true}),
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

type toolSpec struct {
	schema  string
	handler mcp.ToolHandler
}

func (s *Server) registerTools() error {
	specs := map[string]toolSpec{
		"create_tool": {
			schema: `{
				"name": "create_tool",
				"description": "Generate, validate, and register a new game tool from a natural-language requirement",
				"inputSchema": {
					"type": "object",
					"properties": {
						"tool_type": {"type": "string", "description": "Provider type, defaults to script"},
						"requirement": {"type": "string", "description": "What the tool should do"},
						"details": {"type": "string", "description": "Parameters and edge cases"},
						"name": {"type": "string", "description": "Suggested tool name"}
					},
					"required": ["requirement"]
				}
			}`,
			handler: s.handleCreate,
		},
		"execute_tool": {
			schema: `{
				"name": "execute_tool",
				"description": "Execute a registered tool against the game server",
				"inputSchema": {
					"type": "object",
					"properties": {
						"name": {"type": "string", "description": "Tool name"},
						"params": {"type": "object", "description": "Placeholder values"}
					},
					"required": ["name"]
				}
			}`,
			handler: s.handleExecute,
		},
		"list_tools": {
			schema: `{
				"name": "list_tools",
				"description": "List the tool catalog, optionally filtered by type",
				"inputSchema": {
					"type": "object",
					"properties": {
						"tool_type": {"type": "string", "description": "Filter by provider type"}
					}
				}
			}`,
			handler: s.handleList,
		},
		"remove_tool": {
			schema: `{
				"name": "remove_tool",
				"description": "Retire a tool; it stays listed for audit but can no longer run",
				"inputSchema": {
					"type": "object",
					"properties": {
						"name": {"type": "string", "description": "Tool name"}
					},
					"required": ["name"]
				}
			}`,
			handler: s.handleRemove,
		},
		"get_statistics": {
			schema: `{
				"name": "get_statistics",
				"description": "Aggregate catalog counts: totals, per-status, most used",
				"inputSchema": {"type": "object", "properties": {}}
			}`,
			handler: s.handleStatistics,
		},
	}

	for name, spec := range specs {
		var t mcp.Tool
		if err := json.Unmarshal([]byte(spec.schema), &t); err != nil {
			return fmt.Errorf("decode %s schema: %w", name, err)
		}
		s.server.AddTool(&t, spec.handler)
	}
	return nil
}

func (s *Server) handleCreate(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ToolType    string `json:"tool_type"`
		Requirement string `json:"requirement"`
		Details     string `json:"details"`
		Name        string `json:"name"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err), nil
	}
	if args.ToolType == "" {
		args.ToolType = tool.ScriptType
	}

	desc, err := s.catalog.CreateTool(ctx, args.ToolType, args.Requirement, args.Details, args.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(desc)
}

func (s *Server) handleExecute(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Name   string         `json:"name"`
		Params map[string]any `json:"params"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err), nil
	}

	result, err := s.catalog.ExecuteTool(ctx, args.Name, args.Params)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		ToolType string `json:"tool_type"`
	}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errorResult(err), nil
		}
	}

	tools, err := s.catalog.ListTools(args.ToolType)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tools)
}

func (s *Server) handleRemove(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(err), nil
	}

	if err := s.catalog.RemoveTool(args.Name); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("retired %s", args.Name)), nil
}

func (s *Server) handleStatistics(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.catalog.GetStatistics()
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(stats)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(string(payload)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
