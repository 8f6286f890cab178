package vm

import (
	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

func initPower() []api.ServerTool {
	return []api.ServerTool{
		{Tool: api.Tool{
			Name:        "start_vm",
			Description: "Start a virtual machine and wait for the start task to finish",
			InputSchema: powerSchema(),
			Annotations: api.ToolAnnotations{
				Title:           "VM: Start",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(false),
				IdempotentHint:  ptr.To(true),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: powerHandler(orchestrator.PowerStart)},
		{Tool: api.Tool{
			Name:        "stop_vm",
			Description: "Stop a virtual machine immediately (hard stop, like pulling the power cord). Use shutdown_vm for a clean stop",
			InputSchema: powerSchema(),
			Annotations: api.ToolAnnotations{
				Title:           "VM: Stop",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(true),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: powerHandler(orchestrator.PowerStop)},
		{Tool: api.Tool{
			Name:        "shutdown_vm",
			Description: "Shut down a virtual machine cleanly via ACPI and wait for the task to finish",
			InputSchema: powerSchema(),
			Annotations: api.ToolAnnotations{
				Title:           "VM: Shutdown",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(false),
				IdempotentHint:  ptr.To(true),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: powerHandler(orchestrator.PowerShutdown)},
		{Tool: api.Tool{
			Name:        "reset_vm",
			Description: "Hard reset a virtual machine (like pressing the reset button)",
			InputSchema: powerSchema(),
			Annotations: api.ToolAnnotations{
				Title:           "VM: Reset",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: powerHandler(orchestrator.PowerReset)},
		{Tool: api.Tool{
			Name: "delete_vm",
			Description: "Delete a virtual machine and its disks permanently. " +
				"With force set, a running VM is stopped first; without it, deleting a running VM fails",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"selector": {
						Type:        "string",
						Description: selectorDescription,
					},
					"force": {
						Type:        "boolean",
						Description: "Stop the VM first if it is running (Optional, default false)",
						Default:     api.ToRawMessage(false),
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait for the deletion task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"selector"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "VM: Delete",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: deleteVm},
	}
}

func powerSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"selector": {
				Type:        "string",
				Description: selectorDescription,
			},
			"timeout_seconds": {
				Type:        "integer",
				Description: "How long to wait for the power task, in seconds (1-600, default 300)",
			},
		},
		Required: []string{"selector"},
	}
}

func powerHandler(action orchestrator.PowerAction) api.ToolHandlerFunc {
	return func(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
		selector, err := api.RequiredString(params, "selector")
		if err != nil {
			return api.NewToolCallResult("", err), nil
		}
		outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
			Kind:           orchestrator.OpPower,
			Target:         selector,
			ExpectKind:     proxmox.KindVM,
			TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
			Power: &orchestrator.PowerSpec{
				Action: action,
			},
		})
		return api.NewOutcomeResult(outcome, params.ListOutput)
	}
}

func deleteVm(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	selector, err := api.RequiredString(params, "selector")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpDelete,
		Target:         selector,
		ExpectKind:     proxmox.KindVM,
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
		Power: &orchestrator.PowerSpec{
			Force: api.OptionalBool(params, "force", false),
		},
	})
	return api.NewOutcomeResult(outcome, params.ListOutput)
}
