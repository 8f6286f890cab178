package vm

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

const selectorDescription = "VM selector: a numeric id (100), node:id pair (pve1:100), node/name pair (pve1/web-01) or a unique VM name (web-01)"

func initVms() []api.ServerTool {
	return []api.ServerTool{
		{Tool: api.Tool{
			Name:        "get_vms",
			Description: "List all virtual machines across the cluster with their status and resource usage",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Restrict the listing to VMs on this node (Optional)",
					},
				},
			},
			Annotations: api.ToolAnnotations{
				Title:           "VM: List",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: getVms},
		{Tool: api.Tool{
			Name: "create_vm",
			Description: "Create a new virtual machine. The disk format (raw or qcow2) is chosen automatically " +
				"from the target storage pool's backend; block-based pools (LVM, ZFS) get raw, file-based pools get qcow2. " +
				"Waits for the creation task to finish",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Node to create the VM on",
					},
					"vmid": {
						Type:        "integer",
						Description: "Numeric id for the new VM (must be unused, 100 or greater)",
					},
					"name": {
						Type:        "string",
						Description: "Name of the new VM",
					},
					"cpus": {
						Type:        "integer",
						Description: "Number of CPU cores (1-32)",
						Default:     api.ToRawMessage(1),
					},
					"memory": {
						Type:        "integer",
						Description: "Memory in MB (512-131072)",
						Default:     api.ToRawMessage(2048),
					},
					"disk_size": {
						Type:        "integer",
						Description: "Disk size in GB (5-1000)",
						Default:     api.ToRawMessage(10),
					},
					"storage": {
						Type:        "string",
						Description: "Storage pool for the VM disk (Optional, auto-selected when omitted)",
					},
					"ostype": {
						Type:        "string",
						Description: "Guest OS type hint, e.g. l26 for Linux 2.6+ kernels (Optional)",
						Default:     api.ToRawMessage("l26"),
					},
					"format": {
						Type:        "string",
						Description: "Disk format override (raw or qcow2). Block-based storage only accepts raw (Optional)",
						Enum:        []any{"raw", "qcow2"},
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait for the creation task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"node", "vmid", "name"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "VM: Create",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(false),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: createVm},
		{Tool: api.Tool{
			Name: "execute_vm_command",
			Description: "Execute a shell command inside a running VM via the QEMU guest agent. " +
				"The agent must be installed and running in the guest",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"selector": {
						Type:        "string",
						Description: selectorDescription,
					},
					"command": {
						Type:        "string",
						Description: "Shell command to run inside the guest",
					},
				},
				Required: []string{"selector", "command"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "VM: Execute Command",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: executeVmCommand},
	}
}

func getVms(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node := api.OptionalString(params, "node", "")
	resources, err := params.Client.ListClusterResources(params)
	if err != nil {
		return api.NewToolCallResult("", fmt.Errorf("failed to list VMs: %v", err)), nil
	}
	vms := make([]proxmox.ClusterResource, 0, len(resources))
	for _, res := range resources {
		if res.Kind() != proxmox.KindVM {
			continue
		}
		if node != "" && res.Node != node {
			continue
		}
		vms = append(vms, res)
	}
	content, err := params.ListOutput.Print(vms)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return api.NewToolCallResult(content, nil), nil
}

func createVm(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node, err := api.RequiredString(params, "node")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	vmid, err := api.RequiredInt(params, "vmid")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	name, err := api.RequiredString(params, "name")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}

	outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpCreate,
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
		Create: &orchestrator.CreateSpec{
			Node:       node,
			VMID:       vmid,
			Name:       name,
			Cpus:       api.OptionalInt(params, "cpus", 1),
			Memory:     api.OptionalInt(params, "memory", 2048),
			DiskSize:   api.OptionalInt(params, "disk_size", 10),
			Storage:    api.OptionalString(params, "storage", ""),
			OSType:     api.OptionalString(params, "ostype", ""),
			DiskFormat: orchestrator.DiskFormat(api.OptionalString(params, "format", "")),
		},
	})
	return api.NewOutcomeResult(outcome, params.ListOutput)
}

func executeVmCommand(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	selector, err := api.RequiredString(params, "selector")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	command, err := api.RequiredString(params, "command")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}

	ref, err := params.Dispatcher.Resolver().Resolve(params, selector, proxmox.KindVM)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	result, err := params.Client.AgentExec(params, ref.Node, ref.ID, command)
	if err != nil {
		return api.NewToolCallResult("", fmt.Errorf("failed to execute command on %s: %v", ref, err)), nil
	}
	content, err := params.ListOutput.Print(result)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return api.NewToolCallResult(content, nil), nil
}
