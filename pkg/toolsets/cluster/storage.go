package cluster

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/orchestrator"
	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// storageEntry is one row of the get_storage listing: pool configuration
// enriched with the detected profile and, when a node was given, live usage.
type storageEntry struct {
	proxmox.StoragePool
	Profile orchestrator.StorageProfile `json:"profile"`
	Status  *proxmox.StorageStatus      `json:"status,omitempty"`
}

func initStorage() []api.ServerTool {
	return []api.ServerTool{
		{Tool: api.Tool{
			Name:        "get_storage",
			Description: "List storage pools with their backend type, detected capabilities (disk format, cloud-init support) and, when a node is given, live usage",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Restrict the listing to pools visible from this node and include usage figures (Optional)",
					},
				},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Cluster: Storage",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: getStorage},
	}
}

func getStorage(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node := api.OptionalString(params, "node", "")
	pools, err := params.Client.ListStoragePools(params)
	if err != nil {
		return api.NewToolCallResult("", fmt.Errorf("failed to list storage pools: %v", err)), nil
	}

	entries := make([]storageEntry, 0, len(pools))
	for _, pool := range pools {
		entry := storageEntry{
			StoragePool: pool,
			Profile:     orchestrator.ProfileForType(pool.Storage, pool.Type),
		}
		if node != "" {
			if status, err := params.Client.GetStorageStatus(params, node, pool.Storage); err == nil {
				entry.Status = status
			}
		}
		entries = append(entries, entry)
	}

	content, err := params.ListOutput.Print(entries)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return api.NewToolCallResult(content, nil), nil
}
