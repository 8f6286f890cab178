package backup

import (
	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/toolsets"
)

type Toolset struct{}

var _ api.Toolset = (*Toolset)(nil)

func (t *Toolset) GetName() string {
	return "backup"
}

func (t *Toolset) GetDescription() string {
	return "vzdump backup tools (list, create, restore, delete)"
}

func (t *Toolset) GetTools() []api.ServerTool {
	return initBackups()
}

func init() {
	toolsets.Register(&Toolset{})
}
