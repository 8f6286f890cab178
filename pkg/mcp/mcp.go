package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/config"
	"github.com/pve-tools/proxmox-mcp-server/pkg/metrics"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/output"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
	"github.com/pve-tools/proxmox-mcp-server/pkg/toolsets"
	"github.com/pve-tools/proxmox-mcp-server/pkg/version"
)

type Configuration struct {
	*config.StaticConfig
	listOutput output.Output
	toolsets   []api.Toolset
}

func (c *Configuration) Toolsets() []api.Toolset {
	if c.toolsets == nil {
		for _, toolset := range c.StaticConfig.Toolsets {
			c.toolsets = append(c.toolsets, toolsets.ToolsetFromString(toolset))
		}
	}
	return c.toolsets
}

func (c *Configuration) ListOutput() output.Output {
	if c.listOutput == nil {
		c.listOutput = output.FromString(c.StaticConfig.ListOutput)
	}
	return c.listOutput
}

func (c *Configuration) isToolApplicable(tool api.ServerTool) bool {
	if c.ReadOnly && !ptr.Deref(tool.Tool.Annotations.ReadOnlyHint, false) {
		return false
	}
	if c.DisableDestructive && ptr.Deref(tool.Tool.Annotations.DestructiveHint, false) {
		return false
	}
	if c.EnabledTools != nil && !slices.Contains(c.EnabledTools, tool.Tool.Name) {
		return false
	}
	if c.DisabledTools != nil && slices.Contains(c.DisabledTools, tool.Tool.Name) {
		return false
	}
	return true
}

type Server struct {
	configuration *Configuration
	server        *mcp.Server
	enabledTools  []string
	client        proxmox.Client
	dispatcher    *orchestrator.Dispatcher
	metrics       *metrics.Metrics
}

func NewServer(configuration Configuration, client proxmox.Client) (*Server, error) {
	s := &Server{
		configuration: &configuration,
		server: mcp.NewServer(
			&mcp.Implementation{
				Name:       version.BinaryName,
				Title:      version.BinaryName,
				Version:    version.Version,
				WebsiteURL: version.WebsiteURL,
			},
			&mcp.ServerOptions{
				Capabilities: &mcp.ServerCapabilities{
					Tools:   &mcp.ToolCapabilities{ListChanged: true},
					Logging: &mcp.LoggingCapabilities{},
				},
			}),
		client:     client,
		dispatcher: orchestrator.NewDispatcher(client),
		metrics: metrics.New(metrics.Config{
			ServiceName:    version.BinaryName,
			ServiceVersion: version.Version,
		}),
	}

	s.server.AddReceivingMiddleware(toolCallLoggingMiddleware)
	s.server.AddReceivingMiddleware(s.metricsMiddleware())
	s.dispatcher.SetDefaultTimeout(time.Duration(configuration.Tasks.DefaultTimeoutSeconds) * time.Second)
	if err := s.reloadTools(); err != nil {
		return nil, err
	}

	return s, nil
}

// reloadTools recomputes the applicable tool list from the configured
// toolsets and syncs it into the MCP server, removing tools that are no
// longer applicable.
func (s *Server) reloadTools() error {
	applicable := make([]api.ServerTool, 0)
	for _, toolset := range s.configuration.Toolsets() {
		if toolset == nil {
			continue
		}
		for _, tool := range toolset.GetTools() {
			if s.configuration.isToolApplicable(tool) {
				applicable = append(applicable, tool)
			}
		}
	}

	enabled := make([]string, 0, len(applicable))
	for _, tool := range applicable {
		enabled = append(enabled, tool.Tool.Name)
	}

	toRemove := make([]string, 0)
	for _, old := range s.enabledTools {
		if !slices.Contains(enabled, old) {
			toRemove = append(toRemove, old)
		}
	}
	s.server.RemoveTools(toRemove...)

	for _, tool := range applicable {
		goSdkTool, goSdkToolHandler, err := ServerToolToGoSdkTool(s, tool)
		if err != nil {
			return fmt.Errorf("failed to convert tool %s: %w", tool.Tool.Name, err)
		}
		s.server.AddTool(goSdkTool, goSdkToolHandler)
	}

	s.enabledTools = enabled
	return nil
}

// metricsMiddleware returns a metrics middleware with access to the server's metrics system
func (s *Server) metricsMiddleware() func(mcp.MethodHandler) mcp.MethodHandler {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			toolName := method
			if method == "tools/call" {
				if params, ok := req.GetParams().(*mcp.CallToolParamsRaw); ok {
					if toolReq, _ := GoSdkToolCallParamsToToolCallRequest(params); toolReq != nil {
						toolName = toolReq.Name
					}
				}
			}

			s.metrics.RecordToolCall(ctx, toolName, duration, err)

			return result, err
		}
	}
}

// GetMetrics returns the metrics system for use by the HTTP server.
func (s *Server) GetMetrics() *metrics.Metrics {
	return s.metrics
}

func (s *Server) GetEnabledTools() []string {
	return s.enabledTools
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.LoggingTransport{Transport: &mcp.StdioTransport{}, Writer: os.Stderr})
}

func (s *Server) ServeSse() *mcp.SSEHandler {
	return mcp.NewSSEHandler(func(request *http.Request) *mcp.Server {
		return s.server
	}, &mcp.SSEOptions{})
}

func (s *Server) ServeHTTP() *mcp.StreamableHTTPHandler {
	return mcp.NewStreamableHTTPHandler(func(request *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{})
}

// ReloadConfiguration reloads the configuration and resyncs the tool list.
// This is intended to be called by the server lifecycle manager when
// configuration changes are detected.
func (s *Server) ReloadConfiguration(newConfig *config.StaticConfig) error {
	klog.V(1).Info("Reloading MCP server configuration...")

	s.configuration.StaticConfig = newConfig
	// Clear cached values so they get recomputed
	s.configuration.listOutput = nil
	s.configuration.toolsets = nil
	s.dispatcher.SetDefaultTimeout(time.Duration(newConfig.Tasks.DefaultTimeoutSeconds) * time.Second)

	if err := s.reloadTools(); err != nil {
		return fmt.Errorf("failed to reload toolsets: %w", err)
	}

	klog.V(1).Info("MCP server configuration reloaded successfully")
	return nil
}

func NewTextResult(content string, err error) *mcp.CallToolResult {
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: err.Error(),
				},
			},
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: content,
			},
		},
	}
}
