package cluster

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"k8s.io/utils/ptr"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
)

func initNodes() []api.ServerTool {
	return []api.ServerTool{
		{Tool: api.Tool{
			Name:        "get_nodes",
			Description: "List all nodes in the Proxmox cluster with their status, uptime and resource usage",
			InputSchema: &jsonschema.Schema{
				Type: "object",
			},
			Annotations: api.ToolAnnotations{
				Title:           "Cluster: Nodes",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: getNodes},
		{Tool: api.Tool{
			Name:        "get_node_status",
			Description: "Get detailed status of a specific cluster node (CPU model, memory, load average)",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node": {
						Type:        "string",
						Description: "Name of the node to query",
					},
				},
				Required: []string{"node"},
			},
			Annotations: api.ToolAnnotations{
				Title:           "Cluster: Node Status",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: getNodeStatus},
		{Tool: api.Tool{
			Name:        "get_cluster_status",
			Description: "Get overall cluster health: cluster name, quorum state and per-node online status",
			InputSchema: &jsonschema.Schema{
				Type: "object",
			},
			Annotations: api.ToolAnnotations{
				Title:           "Cluster: Status",
				ReadOnlyHint:    ptr.To(true),
				DestructiveHint: ptr.To(false),
				OpenWorldHint:   ptr.To(true),
			},
		}, Handler: getClusterStatus},
	}
}

func getNodes(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	nodes, err := params.Client.ListNodes(params)
	if err != nil {
		return api.NewToolCallResult("", fmt.Errorf("failed to list nodes: %v", err)), nil
	}
	content, err := params.ListOutput.Print(nodes)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return api.NewToolCallResult(content, nil), nil
}

func getNodeStatus(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	node, err := api.RequiredString(params, "node")
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	status, err := params.Client.GetNodeStatus(params, node)
	if err != nil {
		return api.NewToolCallResult("", fmt.Errorf("failed to get status for node %s: %v", node, err)), nil
	}
	content, err := params.ListOutput.Print(status)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return api.NewToolCallResult(content, nil), nil
}

func getClusterStatus(params api.ToolHandlerParams) (*api.ToolCallResult, error) {
	entries, err := params.Client.GetClusterStatus(params)
	if err != nil {
		return api.NewToolCallResult("", fmt.Errorf("failed to get cluster status: %v", err)), nil
	}
	content, err := params.ListOutput.Print(entries)
	if err != nil {
		return api.NewToolCallResult("", err), nil
	}
	return api.NewToolCallResult(content, nil), nil
}
