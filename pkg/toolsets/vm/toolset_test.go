package vm

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/output"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

type stubClient struct {
	proxmox.Client
	resources     []proxmox.ClusterResource
	pools         []proxmox.StoragePool
	createdParams url.Values
	actions       []string
	execCommands  []string
}

func (c *stubClient) ListClusterResources(ctx context.Context) ([]proxmox.ClusterResource, error) {
	return c.resources, nil
}

func (c *stubClient) ListStoragePools(ctx context.Context) ([]proxmox.StoragePool, error) {
	return c.pools, nil
}

func (c *stubClient) CreateGuest(ctx context.Context, node string, kind proxmox.ResourceKind, params url.Values) (string, error) {
	c.createdParams = params
	return "UPID:create:1", nil
}

func (c *stubClient) GuestAction(ctx context.Context, node string, kind proxmox.ResourceKind, vmid int, action string, params url.Values) (string, error) {
	c.actions = append(c.actions, action)
	return "UPID:action:1", nil
}

func (c *stubClient) GetTaskStatus(ctx context.Context, node, upid string) (*proxmox.TaskStatus, error) {
	return &proxmox.TaskStatus{UPID: upid, Status: "stopped", ExitStatus: "OK"}, nil
}

func (c *stubClient) AgentExec(ctx context.Context, node string, vmid int, command string) (*proxmox.AgentExecResult, error) {
	c.execCommands = append(c.execCommands, command)
	return &proxmox.AgentExecResult{Out: "hello\n", Exited: 1}, nil
}

type arguments map[string]any

func (a arguments) GetArguments() map[string]any { return a }

type VmToolsetSuite struct {
	suite.Suite
	client *stubClient
	tools  map[string]api.ServerTool
}

func (s *VmToolsetSuite) SetupTest() {
	s.client = &stubClient{
		resources: []proxmox.ClusterResource{
			{VMID: 100, Name: "web-01", Node: "pve1", Type: "qemu"},
			{VMID: 101, Name: "web-02", Node: "pve2", Type: "qemu"},
			{VMID: 200, Name: "db-01", Node: "pve1", Type: "lxc"},
		},
		pools: []proxmox.StoragePool{
			{Storage: "local-lvm", Type: "lvmthin", Content: "images,rootdir"},
		},
	}
	s.tools = make(map[string]api.ServerTool)
	for _, tool := range (&Toolset{}).GetTools() {
		s.tools[tool.Tool.Name] = tool
	}
}

func (s *VmToolsetSuite) call(name string, args arguments) *api.ToolCallResult {
	tool, ok := s.tools[name]
	s.Require().True(ok, "tool %s not registered", name)
	result, err := tool.Handler(api.ToolHandlerParams{
		Context:         context.Background(),
		Client:          s.client,
		Dispatcher:      orchestrator.NewDispatcher(s.client),
		ToolCallRequest: args,
		ListOutput:      output.FromString("json"),
	})
	s.Require().NoError(err)
	return result
}

func (s *VmToolsetSuite) TestToolCatalogue() {
	for _, name := range []string{"get_vms", "create_vm", "execute_vm_command", "start_vm", "stop_vm", "shutdown_vm", "reset_vm", "delete_vm"} {
		s.Contains(s.tools, name)
	}
}

func (s *VmToolsetSuite) TestGetVmsExcludesContainers() {
	result := s.call("get_vms", arguments{})
	s.Nil(result.Error)
	s.Contains(result.Content, "web-01")
	s.NotContains(result.Content, "db-01")
}

func (s *VmToolsetSuite) TestGetVmsNodeFilter() {
	result := s.call("get_vms", arguments{"node": "pve2"})
	s.Nil(result.Error)
	s.Contains(result.Content, "web-02")
	s.NotContains(result.Content, "web-01")
}

func (s *VmToolsetSuite) TestCreateVmPicksRawOnBlockStorage() {
	result := s.call("create_vm", arguments{
		"node":    "pve1",
		"vmid":    float64(150),
		"name":    "vm-new",
		"storage": "local-lvm",
	})
	s.Require().Nil(result.Error)
	s.Contains(result.Content, `"format":"raw"`)
	s.Equal("local-lvm:10,format=raw", s.client.createdParams.Get("scsi0"))
	s.NotNil(result.StructuredContent)
}

func (s *VmToolsetSuite) TestCreateVmReportsEveryViolation() {
	result := s.call("create_vm", arguments{
		"node":   "pve1",
		"vmid":   float64(150),
		"name":   "vm-bad",
		"cpus":   float64(99),
		"memory": float64(64),
	})
	s.Require().NotNil(result.Error)
	s.Contains(result.Error.Error(), "cpus")
	s.Contains(result.Error.Error(), "memory")
}

func (s *VmToolsetSuite) TestCreateVmMissingRequiredParameter() {
	result := s.call("create_vm", arguments{"node": "pve1", "vmid": float64(150)})
	s.Require().NotNil(result.Error)
	s.Contains(result.Error.Error(), "name parameter required")
}

func (s *VmToolsetSuite) TestStartVm() {
	result := s.call("start_vm", arguments{"selector": "web-01"})
	s.Nil(result.Error)
	s.Equal([]string{"start"}, s.client.actions)
}

func (s *VmToolsetSuite) TestStartVmRejectsContainers() {
	result := s.call("start_vm", arguments{"selector": "db-01"})
	s.Require().NotNil(result.Error)
	s.Contains(result.Error.Error(), "KindMismatch")
	s.Empty(s.client.actions)
}

func (s *VmToolsetSuite) TestExecuteVmCommand() {
	result := s.call("execute_vm_command", arguments{"selector": "pve1:100", "command": "uname -a"})
	s.Nil(result.Error)
	s.Equal([]string{"uname -a"}, s.client.execCommands)
	s.Contains(result.Content, "hello")
}

func TestVmToolset(t *testing.T) {
	suite.Run(t, new(VmToolsetSuite))
}
