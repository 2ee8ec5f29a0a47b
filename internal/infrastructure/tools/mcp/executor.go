// Package mcp adapts Model Context Protocol servers as the assistant's
// tool plane: tool discovery and execution go through an MCP client,
// whether the server runs in-process or as an external command.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

const clientName = "context-assistant"

// Executor satisfies the tool executor port over an initialized MCP
// client session.
type Executor struct {
	client *client.Client
}

// NewInProcessExecutor connects to an MCP server living in the same
// process, with no transport in between.
func NewInProcessExecutor(ctx context.Context, srv *server.MCPServer) (*Executor, error) {
	c, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, fmt.Errorf("create in-process mcp client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}
	return initialize(ctx, c)
}

// NewStdioExecutor launches an external MCP server command and speaks
// to it over stdio.
func NewStdioExecutor(ctx context.Context, command string, env []string, args ...string) (*Executor, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("spawn mcp server %q: %w", command, err)
	}
	return initialize(ctx, c)
}

func initialize(ctx context.Context, c *client.Client) (*Executor, error) {
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: "1.0.0"}

	if _, err := c.Initialize(ctx, initRequest); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}
	return &Executor{client: c}, nil
}

func (e *Executor) Close() error {
	return e.client.Close()
}

// ListTools translates the server's tool catalog into gateway-neutral
// definitions.
func (e *Executor) ListTools(ctx context.Context) ([]domain.ToolDefinition, error) {
	result, err := e.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list mcp tools: %w", err)
	}

	tools := make([]domain.ToolDefinition, 0, len(result.Tools))
	for _, tool := range result.Tools {
		schema, err := schemaToMap(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("convert schema for tool %s: %w", tool.Name, err)
		}
		tools = append(tools, domain.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

// Execute calls one tool. A tool-level failure reported by the server
// is returned as an error so the loop can flag the result.
func (e *Executor) Execute(ctx context.Context, name string, arguments map[string]string) (string, error) {
	request := mcp.CallToolRequest{}
	request.Params.Name = name
	request.Params.Arguments = toAnyMap(arguments)

	result, err := e.client.CallTool(ctx, request)
	if err != nil {
		return "", fmt.Errorf("call tool %s: %w", name, err)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", fmt.Errorf("tool %s: %s", name, text)
	}
	return text, nil
}

func toAnyMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func flattenContent(content []mcp.Content) string {
	var b strings.Builder
	for _, item := range content {
		if text, ok := mcp.AsTextContent(item); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text.Text)
		}
	}
	return b.String()
}

func schemaToMap(schema mcp.ToolInputSchema) (map[string]any, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
