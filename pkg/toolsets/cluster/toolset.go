package cluster

import (
	"slices"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/toolsets"
)

type Toolset struct{}

var _ api.Toolset = (*Toolset)(nil)

func (t *Toolset) GetName() string {
	return "cluster"
}

func (t *Toolset) GetDescription() string {
	return "Cluster inventory tools (nodes, storage pools, cluster health)"
}

func (t *Toolset) GetTools() []api.ServerTool {
	return slices.Concat(
		initNodes(),
		initStorage(),
	)
}

func init() {
	toolsets.Register(&Toolset{})
}
