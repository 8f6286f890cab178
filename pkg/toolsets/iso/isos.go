package iso

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

func initIsos() []api.ServerTool {
	return []api.ServerTool{
		{Tool: api.Tool{
			Name:        "list_isos",
			Description: "List ISO images available on a node, optionally restricted to one storage pool",
			InputSchema: contentListSchema(),
			Annotations: api.ToolAnnotations{
				Title:           "ISO: List",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: contentListHandler("iso")},
		{Tool: api.Tool{
			Name:        "list_templates",
			Description: "List LXC container templates available on a node, optionally restricted to one storage pool",
			InputSchema: contentListSchema(),
			Annotations: api.ToolAnnotations{
				Title:           "ISO: Templates",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: contentListHandler("vztmpl")},
		{Tool: api.Tool{
			Name: "download_iso",
			Description: "Download an ISO image from a URL onto a storage pool and wait for the download to finish. " +
				"An optional checksum is verified by the backend after the download",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Node that performs the download",
					},
					"storage": {
						Type:        "string",
						Description: "Storage pool to store the ISO on (must allow iso content)",
					},
					"url": {
						Type:        "string",
						Description: "HTTP(S) URL of the ISO image",
					},
					"filename": {
						Type:        "string",
						Description: "Filename to store the image as (Optional, derived from the URL when omitted)",
					},
					"checksum": {
						Type:        "string",
						Description: "Expected checksum of the image (Optional)",
					},
					"checksum_algorithm": {
						Type:        "string",
						Description: "Checksum algorithm (Optional, default sha256)",
						Enum:        []any{"md5", "sha1", "sha224", "sha256", "sha384", "sha512"},
						Default:     api.ToRawMessage("sha256"),
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait for the download task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"node", "storage", "url"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "ISO: Download",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(false),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: downloadIso},
		{Tool: api.Tool{
			Name:        "delete_iso",
			Description: "Delete an ISO image from a storage pool",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Node the storage pool is reachable from",
					},
					"storage": {
						Type:        "string",
						Description: "Storage pool holding the ISO",
					},
					"filename": {
						Type:        "string",
						Description: "Filename of the ISO to delete, or its full volume id",
					},
					"timeout_seconds": {
						Type:        "integer",
						Description: "How long to wait for the deletion task, in seconds (1-600, default 300)",
					},
				},
				Required: []string{"node", "storage", "filename"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "ISO: Delete",
				ReadOnlyHint:    ptr.To(false),
				DestructiveHint: ptr.To(true),
				IdempotentHint:  ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: deleteIso},
	}
}

func contentListSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"node": {
				Type:        "string",
				Description: "Node whose storage to list",
			},
			"storage": {
				Type:        "string",
				Description: "Restrict the listing to this storage pool (Optional)",
			},
		},
		Required: []string{"node"},
	}
}

func contentListHandler(contentType string) api.ToolHandlerFunc {
	return func(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
		node, err := api.RequiredString(params, "node")
		if err != nil {
			return api.NewToolCallResult("", err), nil
		}
		storage := api.OptionalString(params, "storage", "")

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

		items := make([]proxmox.VolumeItem, 0)
		for _, s := range storages {
			content, err := params.Client.ListStorageContent(params, node, s, contentType, 0)
			if err != nil {
				klog.V(2).Infof("skipping storage %s on %s: %v", s, node, err)
				continue
			}
			items = append(items, content...)
		}

		content, err := params.ListOutput.Print(items)
		if err != nil {
			return api.NewToolCallResult("", err), nil
		}
		return api.NewToolCallResult(content, nil), nil
	}
}

func downloadIso(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node, err := api.RequiredString(params, "node")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	storage, err := api.RequiredString(params, "storage")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	downloadURL, err := api.RequiredString(params, "url")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpIsoDownload,
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
		Iso: &orchestrator.IsoSpec{
			Node:              node,
			Storage:           storage,
			URL:               downloadURL,
			Filename:          api.OptionalString(params, "filename", ""),
			Checksum:          api.OptionalString(params, "checksum", ""),
			ChecksumAlgorithm: api.OptionalString(params, "checksum_algorithm", ""),
		},
	})
	return api.NewOutcomeResult(outcome, params.ListOutput)
}

func deleteIso(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node, err := api.RequiredString(params, "node")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	storage, err := api.RequiredString(params, "storage")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	filename, err := api.RequiredString(params, "filename")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	outcome := params.Dispatcher.Dispatch(params, &orchestrator.OperationRequest{
		Kind:           orchestrator.OpIsoDelete,
		TimeoutSeconds: api.OptionalInt(params, "timeout_seconds", 0),
		Iso: &orchestrator.IsoSpec{
			Node:     node,
			Storage:  storage,
			Filename: filename,
		},
	})
	return api.NewOutcomeResult(outcome, params.ListOutput)
}
