package vm

import (
	"slices"

	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/toolsets"
)

type Toolset struct{}

var _ api.Toolset = (*Toolset)(nil)

func (t *Toolset) GetName() string {
	return "vm"
}

func (t *Toolset) GetDescription() string {
	return "Virtual machine lifecycle tools (list, create, power control, command execution)"
}

func (t *Toolset) GetTools() []api.ServerTool {
	return slices.Concat(
		initVms(),
		initPower(),
	)
}

func init() {
	toolsets.Register(&Toolset{})
}
