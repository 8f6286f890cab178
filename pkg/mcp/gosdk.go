package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
)

// ToolCallRequest adapts a go-sdk tool call to the api.ToolCallRequest
// interface consumed by tool handlers.
type ToolCallRequest struct {
	Name      string
	arguments map[string]any
}

var _ api.ToolCallRequest = (*ToolCallRequest)(nil)

func (r *ToolCallRequest) GetArguments() map[string]any {
	return r.arguments
}

// GoSdkToolCallParamsToToolCallRequest decodes the raw tool call arguments.
func GoSdkToolCallParamsToToolCallRequest(params *mcp.CallToolParamsRaw) (*ToolCallRequest, error) {
	request := &ToolCallRequest{arguments: make(map[string]any)}
	if params == nil {
		return request, nil
	}
	request.Name = params.Name
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &request.arguments); err != nil {
			return request, fmt.Errorf("failed to parse tool call arguments: %w", err)
		}
	}
	return request, nil
}

// ServerToolToGoSdkTool converts an api.ServerTool to MCP SDK types.
func ServerToolToGoSdkTool(s *Server, serverTool api.ServerTool) (*mcp.Tool, mcp.ToolHandler, error) {
	inputSchema := serverTool.Tool.InputSchema
	if inputSchema == nil {
		inputSchema = &jsonschema.Schema{Type: "object"}
	}

	sdkTool := &mcp.Tool{
		Name:        serverTool.Tool.Name,
		Description: serverTool.Tool.Description,
		InputSchema: inputSchema,
		Annotations: &mcp.ToolAnnotations{
			Title:           serverTool.Tool.Annotations.Title,
			ReadOnlyHint:    ptr.Deref(serverTool.Tool.Annotations.ReadOnlyHint, false),
			DestructiveHint: serverTool.Tool.Annotations.DestructiveHint,
			IdempotentHint:  ptr.Deref(serverTool.Tool.Annotations.IdempotentHint, false),
			OpenWorldHint:   serverTool.Tool.Annotations.OpenWorldHint,
		},
	}

	handler := func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		toolReq, err := GoSdkToolCallParamsToToolCallRequest(request.Params)
		if err != nil {
			return NewTextResult("", err), nil
		}

		result, err := serverTool.Handler(api.ToolHandlerParams{
			Context:         ctx,
			Client:          s.client,
			Dispatcher:      s.dispatcher,
			ToolCallRequest: toolReq,
			ListOutput:      s.configuration.ListOutput(),
		})
		if err != nil {
			return NewTextResult("", err), nil
		}

		callResult := NewTextResult(result.Content, result.Error)
		if result.StructuredContent != nil {
			callResult.StructuredContent = result.StructuredContent
		}
		return callResult, nil
	}

	return sdkTool, handler, nil
}
