package backup

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

func initBackups() []api.ServerTool {
	return []api.ServerTool{
		{Tool: api.Tool{
			Name:        "list_backups",
			Description: "List vzdump backup archives on a node, optionally filtered by storage pool and guest id",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Node whose backup storage to list",
					},
					"storage": {
						Type:        "string",
						Description: "Restrict the listing to this storage pool (Optional)",
					},
					"vmid": {
						Type:        "integer",
						Description: "Restrict the listing to backups of this guest id (Optional)",
					},
				},
				Required: []string{"node"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Backup: List",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: listBackups},
		{Tool: api.Tool{
			Name:        "create_backup",
			Description: "Create a vzdump backup of a guest and wait for the task to finish. Defaults to zstd compression in snapshot mode",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Node the guest runs on",
					},
					"vmid": {
						Type:        "integer",
						Description: "Id of the guest to back up",
					},
					"storage": {
						Type:        "string",
						Description: "Storage pool to write the backup to (Optional, node default when omitted)",
					},
					"compress": {
						Type:        "string",
						Description: "Compression algorithm (Optional, default zstd)",
						Enum:        []any{"0", "gzip", "lzo", "zstd"},
						Default:     api.ToRawMessage("zstd"),
					},
					"mode": {
						Type:        "string",
						Description: "Backup mode (Optional, default snapshot)",
						Enum:        []any{"snapshot", "suspend", "stop"},
						Default:     api.ToRawMessage("snapshot"),
					},
					"notes": {
						Type:        "string",
						Description: "Notes to attach to the backup archive (Optional)",
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait for the backup task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"node", "vmid"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Backup: Create",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(false),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: createBackup},
		{Tool: api.Tool{
			Name: "restore_backup",
			Description: "Restore a guest from a vzdump backup archive and wait for the task to finish. " +
				"The guest kind (VM or container) is derived from the archive name",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Node to restore onto",
					},
					"archive": {
						Type:        "string",
						Description: "Volume id of the backup archive, e.g. local:backup/vzdump-qemu-100-2026_01_01-00_00_00.vma.zst",
					},
					"vmid": {
						Type:        "integer",
						Description: "Id to restore the guest as",
					},
					"storage": {
						Type:        "string",
						Description: "Storage pool for the restored disks (Optional)",
					},
					"unique": {
						Type:        "boolean",
						Description: "Regenerate unique properties like MAC addresses (Optional, default false)",
						Default:     api.ToRawMessage(false),
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait for the restore task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"node", "archive", "vmid"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Backup: Restore",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: restoreBackup},
		{Tool: api.Tool{
			Name:        "delete_backup",
			Description: "Delete a vzdump backup archive. Protected archives are refused until their protection flag is removed",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Node the backup storage is reachable from",
					},
					"volid": {
						Type:        "string",
						Description: "Volume id of the backup archive to delete",
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait for the deletion task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"node", "volid"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Backup: Delete",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: deleteBackup},
	}
}

func listBackups(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node, err := api.RequiredString(params, "node")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	storage := api.OptionalString(params, "storage", "")
	vmid := api.OptionalInt(params, "vmid", 0)

	var storages []string
	if storage != "" {
		storages = []string{storage}
	} else {
		pools, err := params.Client.ListStoragePools(params)
		if err != nil {
			return api.NewToolCallResult("", fmt.Errorf("failed to list storage pools: %v", err)), nil
		}
		for _, pool := range pools {
			if pool.IsEnabled() {
				storages = append(storages, pool.Storage)
			}
		}
	}

	backups := make([]proxmox.VolumeItem, 0)
	for _, s := range storages {
		items, err := params.Client.ListStorageContent(params, node, s, "backup", vmid)
		if err != nil {
			// Pools without backup content or not reachable from this
			// node are skipped, not fatal.
			klog.V(2).Infof("skipping storage %s on %s: %v", s, node, err)
			continue
		}
		backups = append(backups, items...)
	}

	content, err := params.ListOutput.Print(backups)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return api.NewToolCallResult(content, nil), nil
}

func createBackup(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node, err := api.RequiredString(params, "node")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	vmid, err := api.RequiredInt(params, "vmid")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpBackupCreate,
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
		Backup: &orchestrator.BackupSpec{
			Node:     node,
			VMID:     vmid,
			Storage:  api.OptionalString(params, "storage", ""),
			Compress: api.OptionalString(params, "compress", ""),
			Mode:     api.OptionalString(params, "mode", ""),
			Notes:    api.OptionalString(params, "notes", ""),
		},
	})
	return api.NewOutcomeResult(outcome, params.ListOutput)
}

func restoreBackup(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node, err := api.RequiredString(params, "node")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	archive, err := api.RequiredString(params, "archive")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	vmid, err := api.RequiredInt(params, "vmid")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpBackupRestore,
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
		Backup: &orchestrator.BackupSpec{
			Node:    node,
			VMID:    vmid,
			Archive: archive,
			Storage: api.OptionalString(params, "storage", ""),
			Unique:  api.OptionalBool(params, "unique", false),
		},
	})
	return api.NewOutcomeResult(outcome, params.ListOutput)
}

func deleteBackup(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node, err := api.RequiredString(params, "node")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	volid, err := api.RequiredString(params, "volid")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpBackupDelete,
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
		Backup: &orchestrator.BackupSpec{
			Node:  node,
			VolID: volid,
		},
	})
	return api.NewOutcomeResult(outcome, params.ListOutput)
}
