package snapshot

import (
	"github.com/pve-tools/proxmox-mcp-server/pkg/api"
	"github.com/pve-tools/proxmox-mcp-server/pkg/toolsets"
)

type Toolset struct{}

var _ api.Toolset = (*Toolset)(nil)

func (t *Toolset) GetName() string {
	return "snapshot"
}

func (t *Toolset) GetDescription() string {
	return "Guest snapshot tools (list, create, delete, rollback)"
}

func (t *Toolset) GetTools() []api.ServerTool {
	return initSnapshots()
}

func init() {
	toolsets.Register(&Toolset{})
}
