package container

import (
	"slices"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/toolsets"
)

type Toolset struct{}

var _ api.Toolset = (*Toolset)(nil)

func (t *Toolset) GetName() string {
	return "container"
}

func (t *Toolset) GetDescription() string {
	return "LXC container tools (list with live stats, power control with batch selectors)"
}

func (t *Toolset) GetTools() []api.ServerTool {
	return slices.Concat(
		initContainers(),
		initPower(),
	)
}

func init() {
	toolsets.Register(&Toolset{})
}
