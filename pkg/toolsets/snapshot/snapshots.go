package snapshot

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

const selectorDescription = "Guest selector: a numeric id (100), node:id pair (pve1:100), node/name pair (pve1/web-01) or a unique guest name (web-01). Works for both VMs and containers"

func initSnapshots() []api.ServerTool {
	return []api.ServerTool{
		{Tool: api.Tool{
			Name:        "list_snapshots",
			Description: "List the snapshots of a VM or container, excluding the synthetic 'current' run state entry",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"selector": {
						Type:        "string",
						Description: selectorDescription,
					},
				},
				Required: []string{"selector"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Snapshot: List",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: listSnapshots},
		{Tool: api.Tool{
			Name: "create_snapshot",
			Description: "Create a snapshot of a VM or container and wait for the task to finish. " +
				"Setting vmstate also captures RAM; that is only possible for VMs",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"selector": {
						Type:        "string",
						Description: selectorDescription,
					},
					"snapname": {
						Type:        "string",
						Description: "Name for the new snapshot (no spaces, slashes or colons)",
					},
					"description": {
						Type:        "string",
						Description: "Free-form description of the snapshot (Optional)",
					},
					"vmstate": {
						Type:        "boolean",
						Description: "Also capture the VM's RAM so a rollback resumes the running state. VMs only (Optional, default false)",
						Default:     api.ToRawMessage(false),
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait for the snapshot task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"selector", "snapname"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Snapshot: Create",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(false),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: createSnapshot},
		{Tool: api.Tool{
			Name:        "delete_snapshot",
			Description: "Delete a snapshot of a VM or container and wait for the task to finish",
			InputSchema: snapnameSchema(),
			Annotations: api.ToolAnnotations{
				Title:           "Snapshot: Delete",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: snapshotHandler(orchestrator.OpSnapshotDelete)},
		{Tool: api.Tool{
			Name: "rollback_snapshot",
			Description: "Roll a VM or container back to a snapshot, discarding all changes made since. " +
				"On ZFS storage, snapshots taken after the target are removed automatically when they block the rollback",
			InputSchema: snapnameSchema(),
			Annotations: api.ToolAnnotations{
				Title:           "Snapshot: Rollback",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: snapshotHandler(orchestrator.OpSnapshotRollback)},
	}
}

func snapnameSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"selector": {
				Type:        "string",
				Description: selectorDescription,
			},
			"snapname": {
				Type:        "string",
				Description: "Name of the snapshot",
			},
			"timeout_seconds": {
				Type:        "integer",
				Description: "How long to wait for the task, in seconds (1-600, default 300)",
			},
		},
		Required: []string{"selector", "snapname"},
	}
}

func listSnapshots(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	selector, err := api.RequiredString(params, "selector")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	ref, err := params.Dispatcher.Resolver().Resolve(params, selector, orchestrator.KindAny)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	snapshots, err := params.Client.ListSnapshots(params, ref.Node, ref.Kind, ref.ID)
	if err != nil {
		return api.NewToolCallResult("", fmt.Errorf("failed to list snapshots for %s: %v", ref, err)), nil
	}
	filtered := make([]proxmox.Snapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.Name == "current" {
			continue
		}
		filtered = append(filtered, snap)
	}
	content, err := params.ListOutput.Print(filtered)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return api.NewToolCallResult(content, nil), nil
}

func createSnapshot(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	selector, err := api.RequiredString(params, "selector")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	snapname, err := api.RequiredString(params, "snapname")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpSnapshotCreate,
		Target:         selector,
		ExpectKind:     orchestrator.KindAny,
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
		Snapshot: &orchestrator.SnapshotSpec{
			Snapname:    snapname,
			Description: api.OptionalString(params, "description", ""),
			VMState:     api.OptionalBool(params, "vmstate", false),
		},
	})
	return api.NewOutcomeResult(outcome, params.ListOutput)
}

func snapshotHandler(kind orchestrator.OpKind) api.ToolHandlerFunc {
	return func(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
		selector, err := api.RequiredString(params, "selector")
		if err != nil {
			return api.NewToolCallResult("", err), nil
		}
		snapname, err := api.RequiredString(params, "snapname")
		if err != nil {
			return api.NewToolCallResult("", err), nil
		}
		outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
			Kind:           kind,
			Target:         selector,
			ExpectKind:     orchestrator.KindAny,
			TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
			Snapshot: &orchestrator.SnapshotSpec{
				Snapname: snapname,
			},
		})
		return api.NewOutcomeResult(outcome, params.ListOutput)
	}
}
