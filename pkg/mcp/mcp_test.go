package mcp

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/suite"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/config"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// stubProxmoxClient satisfies proxmox.Client for server construction; no tool
// is invoked in these tests so no method is ever called.
type stubProxmoxClient struct {
	proxmox.Client
}

type McpSuite struct {
	suite.Suite
}

func readTool(name string) api.ServerTool {
	return api.ServerTool{Tool: api.Tool{
		Name:        name,
		Annotations: api.ToolAnnotations{ReadOnlyHint: ptr.To(true)},
	}}
}

func destructiveTool(name string) api.ServerTool {
	return api.ServerTool{Tool: api.Tool{
		Name: name,
		Annotations: api.ToolAnnotations{
			ReadOnlyHint:    ptr.To(false),
			DestructiveHint: ptr.To(true),
		},
	}}
}

func (s *McpSuite) TestReadOnlyFiltering() {
	cfg := &Configuration{StaticConfig: &config.StaticConfig{ReadOnly: true}}
	s.True(cfg.isToolApplicable(readTool("get_vms")))
	s.False(cfg.isToolApplicable(destructiveTool("delete_vm")))
}

func (s *McpSuite) TestDisableDestructiveFiltering() {
	cfg := &Configuration{StaticConfig: &config.StaticConfig{DisableDestructive: true}}
	s.True(cfg.isToolApplicable(readTool("get_vms")))
	s.False(cfg.isToolApplicable(destructiveTool("delete_vm")))
	// Mutating but non-destructive tools stay available.
	s.True(cfg.isToolApplicable(api.ServerTool{Tool: api.Tool{
		Name:        "create_vm",
		Annotations: api.ToolAnnotations{ReadOnlyHint: ptr.To(false), DestructiveHint: ptr.To(false)},
	}}))
}

func (s *McpSuite) TestEnabledAndDisabledToolLists() {
	cfg := &Configuration{StaticConfig: &config.StaticConfig{EnabledTools: []string{"get_vms"}}}
	s.True(cfg.isToolApplicable(readTool("get_vms")))
	s.False(cfg.isToolApplicable(readTool("get_nodes")))

	cfg = &Configuration{StaticConfig: &config.StaticConfig{DisabledTools: []string{"get_nodes"}}}
	s.True(cfg.isToolApplicable(readTool("get_vms")))
	s.False(cfg.isToolApplicable(readTool("get_nodes")))
}

func (s *McpSuite) TestToolCallParamsDecoding() {
	params := &gosdk.CallToolParamsRaw{
		Name:      "start_vm",
		Arguments: json.RawMessage(`{"selector":"pve1:100","timeout_seconds":30}`),
	}
	request, err := GoSdkToolCallParamsToToolCallRequest(params)
	s.Require().NoError(err)
	s.Equal("start_vm", request.Name)
	s.Equal("pve1:100", request.GetArguments()["selector"])
	s.EqualValues(30, request.GetArguments()["timeout_seconds"])
}

func (s *McpSuite) TestToolCallParamsDecodingNil() {
	request, err := GoSdkToolCallParamsToToolCallRequest(nil)
	s.Require().NoError(err)
	s.Empty(request.Name)
	s.Empty(request.GetArguments())
}

func (s *McpSuite) TestNewTextResult() {
	result := NewTextResult("all good", nil)
	s.False(result.IsError)
	s.Require().Len(result.Content, 1)
	s.Equal("all good", result.Content[0].(*gosdk.TextContent).Text)

	result = NewTextResult("", errors.New("boom"))
	s.True(result.IsError)
	s.Equal("boom", result.Content[0].(*gosdk.TextContent).Text)
}

func (s *McpSuite) TestServerStartsWithConfiguredToolsets() {
	server, err := NewServer(Configuration{StaticConfig: config.Default()}, &stubProxmoxClient{})
	s.Require().NoError(err)
	s.NotEmpty(server.GetEnabledTools())
	s.Contains(server.GetEnabledTools(), "get_nodes")
}

func (s *McpSuite) TestTaskTimeoutFromConfig() {
	cfg := config.Default()
	cfg.Tasks.DefaultTimeoutSeconds = 60
	server, err := NewServer(Configuration{StaticConfig: cfg}, &stubProxmoxClient{})
	s.Require().NoError(err)
	s.Equal(60*time.Second, server.dispatcher.DefaultTimeout())

	reloaded := config.Default()
	reloaded.Tasks.DefaultTimeoutSeconds = 120
	s.Require().NoError(server.ReloadConfiguration(reloaded))
	s.Equal(120*time.Second, server.dispatcher.DefaultTimeout())
}

func (s *McpSuite) TestReadOnlyServerExposesNoMutatingTools() {
	cfg := config.Default()
	cfg.ReadOnly = true
	cfg.Toolsets = []string{"cluster", "vm", "container", "snapshot", "backup", "iso"}
	server, err := NewServer(Configuration{StaticConfig: cfg}, &stubProxmoxClient{})
	s.Require().NoError(err)
	s.NotContains(server.GetEnabledTools(), "delete_vm")
	s.NotContains(server.GetEnabledTools(), "create_vm")
	s.Contains(server.GetEnabledTools(), "get_vms")
}

func TestMcp(t *testing.T) {
	suite.Run(t, new(McpSuite))
}
